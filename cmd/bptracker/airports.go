package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/boardingpass-tracker/internal/airports"
	"github.com/joseph-ayodele/boardingpass-tracker/internal/common"
	repo "github.com/joseph-ayodele/boardingpass-tracker/internal/repository"
)

func newAirportsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "airports",
		Short: "Manage the known-airport directory",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "import <csv>",
			Short: "Load an airports CSV (OurAirports dump or iata_code,name,municipality,iso_country)",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return a.withAirportStore(cmd.Context(), func(ctx context.Context, store *repo.AirportStore) error {
					f, err := os.Open(args[0])
					if err != nil {
						return err
					}
					defer f.Close()
					stats, err := store.ImportCSV(ctx, f)
					if err != nil {
						return err
					}
					total, err := store.Count(ctx)
					if err != nil {
						return err
					}
					fmt.Fprintf(cmd.OutOrStdout(), "rows=%d imported=%d skipped=%d total=%d\n",
						stats.Rows, stats.Imported, stats.Skipped, total)
					return nil
				})
			},
		},
		&cobra.Command{
			Use:   "seed",
			Short: "Load the embedded airport list into the store",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return a.withAirportStore(cmd.Context(), func(ctx context.Context, store *repo.AirportStore) error {
					n, err := store.Upsert(ctx, airports.Default().All())
					if err != nil {
						return err
					}
					fmt.Fprintf(cmd.OutOrStdout(), "seeded=%d\n", n)
					return nil
				})
			},
		},
		&cobra.Command{
			Use:   "lookup <iata>",
			Short: "Show one airport from the store",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				code := strings.ToUpper(strings.TrimSpace(args[0]))
				return a.withAirportStore(cmd.Context(), func(ctx context.Context, store *repo.AirportStore) error {
					ap, err := store.Get(ctx, code)
					if errors.Is(err, common.ErrNotFound) {
						// the embedded list still answers when the store is empty
						if fb, ok := airports.Default().Lookup(code); ok {
							return writeJSON(cmd.OutOrStdout(), fb)
						}
					}
					if err != nil {
						return err
					}
					return writeJSON(cmd.OutOrStdout(), ap)
				})
			},
		},
	)
	return cmd
}

// withAirportStore opens the database, makes sure the table exists and hands
// the store to fn.
func (a *app) withAirportStore(ctx context.Context, fn func(context.Context, *repo.AirportStore) error) error {
	db, err := repo.Open(ctx, a.dbConfig(), a.logger)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer db.Close()

	store := repo.NewAirportStore(db.Driver, a.logger)
	if err := store.Migrate(ctx); err != nil {
		return err
	}
	return fn(ctx, store)
}
