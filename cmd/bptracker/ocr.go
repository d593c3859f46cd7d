package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/boardingpass-tracker/constants"
	"github.com/joseph-ayodele/boardingpass-tracker/internal/common"
	"github.com/joseph-ayodele/boardingpass-tracker/internal/ocr"
	"github.com/joseph-ayodele/boardingpass-tracker/internal/textparse"
)

func newOCRCmd(a *app) *cobra.Command {
	var (
		parse bool
		year  int
	)
	cmd := &cobra.Command{
		Use:   "ocr <file>",
		Short: "Print the text the PDF/OCR engines see, optionally parsed",
		Long: `ocr runs only the text side of the pipeline: embedded PDF text first,
then OCR. With --parse the text goes through the same field parser extract uses.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			path := args[0]
			format := constants.MapMimeToFormat(constants.MimeFromExt(path))
			if format == "" {
				return fmt.Errorf("%w: %s", common.ErrInvalidInput, path)
			}

			text, closeText, err := a.textExtractor(ctx)
			if err != nil {
				return err
			}
			defer closeText()

			start := time.Now()
			mode := textparse.OCR
			var res ocr.ExtractionResult
			if format == constants.PDF {
				res, err = text.PDFText(ctx, path)
				mode = textparse.PDFText
			}
			if format != constants.PDF || errors.Is(err, ocr.ErrNoText) {
				res, err = text.Recognize(ctx, path, format)
				mode = textparse.OCR
			}
			if err != nil {
				a.logger.Error("text extraction failed", "file", path, "error", err, "duration_ms", time.Since(start).Milliseconds())
				return err
			}
			a.logger.Info("text extraction OK",
				"method", res.Method,
				"engine", res.Engine,
				"pages", res.Pages,
				"bytes", len(res.Text),
				"confidence", res.Confidence,
				"duration_ms", time.Since(start).Milliseconds(),
			)

			if !parse {
				_, err := fmt.Fprintln(cmd.OutOrStdout(), res.Text)
				return err
			}
			fields, ok := textparse.NewParser(mode, a.loadAirports(ctx)).Parse(res.Text, year, nil)
			if !ok {
				return ocr.ErrNoText
			}
			return writeJSON(cmd.OutOrStdout(), fields)
		},
	}
	cmd.Flags().BoolVar(&parse, "parse", false, "parse the text into flight fields and print JSON")
	cmd.Flags().IntVar(&year, "year", 0, "year for dates printed without one")
	return cmd
}
