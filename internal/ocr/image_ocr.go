package ocr

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
)

// Tesseract recognizes text with the tesseract CLI.
type Tesseract struct {
	cfg    Config
	runner Runner
	logger *slog.Logger
}

func (t *Tesseract) Name() string { return "tesseract" }

func (t *Tesseract) Recognize(ctx context.Context, path string) (string, float32, error) {
	args := []string{path, "stdout", "-l", t.cfg.TesseractLang}
	if t.cfg.TessdataDir != "" {
		args = append(args, "--tessdata-dir", t.cfg.TessdataDir)
	}

	// tesseract <file> stdout -l <lang>
	out, errb, err := t.runner.Run(ctx, t.cfg.Tesseract, t.logger, args...)
	if err != nil {
		return "", 0, fmt.Errorf("tesseract: %w: %s", err, truncate(string(errb), 512))
	}

	var conf float32
	if t.cfg.EnableTSVConfidence {
		if c, err := t.tsvConfidence(ctx, path); err == nil {
			conf = c
		} else {
			t.logger.Debug("tesseract tsv confidence failed", "path", path, "error", err)
		}
	}
	return string(out), conf, nil
}

// tsvConfidence runs tesseract in TSV mode and returns mean word conf in 0..1.
func (t *Tesseract) tsvConfidence(ctx context.Context, path string) (float32, error) {
	args := []string{path, "stdout", "-l", t.cfg.TesseractLang}
	if t.cfg.PSM > 0 {
		args = append(args, "--psm", fmt.Sprintf("%d", t.cfg.PSM))
	}
	if t.cfg.OEM > 0 {
		args = append(args, "--oem", fmt.Sprintf("%d", t.cfg.OEM))
	}
	if t.cfg.TessdataDir != "" {
		args = append(args, "--tessdata-dir", t.cfg.TessdataDir)
	}
	// TSV output
	args = append(args, "tsv")

	out, _, err := t.runner.Run(ctx, t.cfg.Tesseract, t.logger, args...)
	if err != nil {
		return 0, fmt.Errorf("tesseract TSV: %w", err)
	}
	return meanTSVConfidence(string(out)), nil
}

func meanTSVConfidence(tsv string) float32 {
	lines := strings.Split(tsv, "\n")
	// conf is column 11 of 12; header line includes "conf"
	var sum, n float64
	for i, ln := range lines {
		if i == 0 || len(ln) == 0 {
			continue
		} // skip header
		cols := strings.Split(ln, "\t")
		if len(cols) < 12 {
			continue
		}
		confStr := cols[10]
		if confStr == "" || confStr == "-1" {
			continue
		}
		if v, err := strconv.ParseFloat(confStr, 64); err == nil {
			sum += v
			n++
		}
	}
	if n == 0 {
		return 0
	}
	mean := sum / n // 0..100
	return float32(mean / 100.0)
}
