package main

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/boardingpass-tracker/internal/common"
)

var version = "0.1.0"

// app is shared by every subcommand. cfg and logger are set in
// PersistentPreRunE, before any RunE executes.
type app struct {
	cfg    *common.Config
	logger *slog.Logger

	logLevel  string
	logFormat string
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:   "bptracker",
		Short: "Extract flight data from boarding passes",
		Long: `bptracker reads boarding passes (PDF, JPEG or PNG) and extracts the flight
number, route, date and passenger. It tries the BCBP barcode first, then the
embedded PDF text, then OCR, and finally an optional Gemini vision fallback.

Configuration comes from the environment (or a .env file):
  DB_DRIVER, DB_URL          airport directory store (sqlite or postgres)
  OCR_ENGINE                 tesseract (default) or vision
  GEMINI_API_KEY             enables the AI fallback
  RUN_TIMEOUT, BATCH_WORKERS pipeline limits
  LOG_LEVEL, LOG_FORMAT      logging`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init()
		},
	}
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "override LOG_LEVEL (debug, info, warn, error)")
	root.PersistentFlags().StringVar(&a.logFormat, "log-format", "", "override LOG_FORMAT (json, text)")

	root.AddCommand(
		newExtractCmd(a),
		newBatchCmd(a),
		newWatchCmd(a),
		newAirportsCmd(a),
		newDBCmd(a),
		newOCRCmd(a),
		newAICmd(a),
	)
	return root
}

func (a *app) init() error {
	cfg := common.LoadConfig()
	if a.logLevel != "" {
		cfg.Log.Level = a.logLevel
	}
	if a.logFormat != "" {
		cfg.Log.Format = a.logFormat
	}
	// logs go to stderr; stdout carries results
	a.logger = common.NewLogger(cfg.Log, os.Stderr)
	slog.SetDefault(a.logger)

	if err := cfg.Validate(); err != nil {
		return err
	}
	a.cfg = cfg
	return nil
}
