package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	repo "github.com/joseph-ayodele/boardingpass-tracker/internal/repository"
)

func newDBCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "db",
		Short: "Database utilities",
	}
	var timeout time.Duration
	health := &cobra.Command{
		Use:   "health",
		Short: "Ping the airport store and report its row count",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			db, err := repo.Open(ctx, a.dbConfig(), a.logger)
			if err != nil {
				return fmt.Errorf("opening DB: %w", err)
			}
			defer db.Close()

			if err := db.HealthCheck(ctx, timeout); err != nil {
				return fmt.Errorf("DB health: FAIL (%w)", err)
			}
			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "DB health: OK (%s)\n", a.cfg.Database.Driver)

			n, err := repo.NewAirportStore(db.Driver, a.logger).Count(ctx)
			if err != nil {
				fmt.Fprintf(w, "airports: table missing, run `bptracker airports seed` or `airports import`\n")
				return nil
			}
			fmt.Fprintf(w, "airports count: %d\n", n)
			return nil
		},
	}
	health.Flags().DurationVar(&timeout, "timeout", time.Second, "ping timeout")
	cmd.AddCommand(health)
	return cmd
}
