package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/boardingpass-tracker/constants"
	"github.com/joseph-ayodele/boardingpass-tracker/internal/common"
	"github.com/joseph-ayodele/boardingpass-tracker/internal/llm"
)

func newAICmd(a *app) *cobra.Command {
	var (
		times int
		year  int
		pause time.Duration
	)
	cmd := &cobra.Command{
		Use:   "ai <file>",
		Short: "Send one document to the vision model, optionally several times",
		Long: `ai calls only the Gemini fallback. Repeating the call on the same file
shows how stable the model's answer is. Requires GEMINI_API_KEY.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !a.cfg.AIEnabled() {
				return common.NewAppError("CONFIG_ERROR", "GEMINI_API_KEY env var is required", common.ErrInvalidInput)
			}
			if times < 1 {
				times = 1
			}
			path := args[0]
			mime := constants.MimeFromExt(path)
			if mime == "" {
				return fmt.Errorf("%w: %s", common.ErrInvalidInput, path)
			}
			doc, err := os.ReadFile(path)
			if err != nil {
				return err
			}
			client := a.geminiClient()
			base := filepath.Base(path)

			failures := 0
			for i := 1; i <= times; i++ {
				start := time.Now()
				a.logger.Info("ai.run.start", "iter", i, "basename", base)

				fields, _, err := client.ExtractFields(cmd.Context(), llm.ExtractRequest{
					Document:   doc,
					MimeType:   mime,
					TargetYear: year,
				})
				if err != nil {
					failures++
					var he *llm.HTTPError
					a.logger.Error("ai.run.error", "iter", i, "err", err,
						"malformed", errors.Is(err, llm.ErrMalformedResponse),
						"http", errors.As(err, &he))
				} else {
					a.logger.Info("ai.run.ok", "iter", i, "elapsed_ms", time.Since(start).Milliseconds())
					if err := writeJSON(cmd.OutOrStdout(), fields.ToEntity()); err != nil {
						return err
					}
				}
				if i == times {
					break
				}
				select {
				case <-cmd.Context().Done():
					return cmd.Context().Err()
				case <-time.After(pause):
				}
			}
			a.logger.Info("done", "file", base, "times", times, "failures", failures)
			if failures == times {
				return errors.New("every ai call failed")
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&times, "times", 1, "how many calls to make")
	cmd.Flags().IntVar(&year, "year", 0, "target year for dates without one")
	cmd.Flags().DurationVar(&pause, "pause", 750*time.Millisecond, "delay between calls")
	return cmd
}
