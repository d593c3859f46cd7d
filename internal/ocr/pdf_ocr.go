package ocr

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/ledongthuc/pdf"

	"github.com/joseph-ayodele/boardingpass-tracker/constants"
)

// PDFText returns the embedded text layer. pdftotext is preferred for its
// layout mode; when it is missing or fails, the pure Go reader is used.
// ErrNoText means the PDF is a scan.
func (e *Extractor) PDFText(ctx context.Context, path string) (ExtractionResult, error) {
	start := time.Now()
	res := ExtractionResult{SourceType: constants.PDF}

	text, pages, warns, err := e.pdfToText(ctx, path)
	res.Method = "pdftotext"
	if err != nil {
		e.logger.Debug("pdftotext failed, using go reader", "path", path, "error", err)
		res.Warnings = append(res.Warnings, warns...)
		text, pages, err = readPDFText(path, e.cfg.MaxPages)
		res.Method = "pdf-go"
		if err != nil {
			res.Duration = time.Since(start)
			return res, fmt.Errorf("read pdf text: %w", err)
		}
	}

	res.Text = Normalize(text)
	res.Pages = pages
	res.Duration = time.Since(start)
	if res.Text == "" {
		return res, ErrNoText
	}
	res.Confidence = heuristicConfidence(res.Text)
	return res, nil
}

func (e *Extractor) pdfToText(ctx context.Context, path string) (text string, pages int, warnings []string, err error) {
	cctx, cancel := context.WithTimeout(ctx, e.cfg.Timeout)
	defer cancel()

	args := []string{"-layout", "-enc", "UTF-8", "-eol", "unix"}
	if e.cfg.MaxPages > 0 {
		args = append(args, "-l", fmt.Sprintf("%d", e.cfg.MaxPages))
	}
	// pdftotext -layout -enc UTF-8 -eol unix <path> -
	out, errb, err := e.runner.Run(cctx, e.cfg.Pdftotext, e.logger, append(args, path, "-")...)
	if err != nil {
		return "", 0, []string{string(errb)}, err
	}
	text = string(out)
	// A form-feed \f is used as page separator by default
	pages = 1 + strings.Count(strings.TrimRight(text, "\f"), "\f")
	return text, pages, nil, nil
}

func readPDFText(path string, maxPages int) (string, int, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return "", 0, err
	}
	defer f.Close()

	n := r.NumPage()
	if maxPages > 0 && n > maxPages {
		n = maxPages
	}
	var b strings.Builder
	for i := 1; i <= n; i++ {
		p := r.Page(i)
		if p.V.IsNull() {
			continue
		}
		txt, err := p.GetPlainText(nil)
		if err != nil {
			continue // skip unreadable pages
		}
		if b.Len() > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(strings.TrimSpace(txt))
	}
	return b.String(), n, nil
}

// RenderPDF rasterises up to MaxPages pages as PNG files inside dir and
// returns their paths in page order. The caller owns dir.
func (e *Extractor) RenderPDF(ctx context.Context, path, dir string) ([]string, error) {
	cctx, cancel := context.WithTimeout(ctx, e.cfg.Timeout)
	defer cancel()

	prefix := filepath.Join(dir, "page")
	args := []string{"-r", fmt.Sprintf("%d", e.cfg.DPI), "-png"}
	if e.cfg.MaxPages > 0 {
		args = append(args, "-f", "1", "-l", fmt.Sprintf("%d", e.cfg.MaxPages))
	}
	// pdftoppm -r 300 -png <in.pdf> <tmp/page>
	_, errb, err := e.runner.Run(cctx, e.cfg.Pdftoppm, e.logger, append(args, path, prefix)...)
	if err != nil {
		return nil, fmt.Errorf("pdftoppm: %w: %s", err, truncate(string(errb), 512))
	}

	// collect generated pngs (prefix-1.png, prefix-2.png, ...); pdftoppm zero-pads
	// page numbers for longer documents, so sort by length first
	matches, _ := filepath.Glob(prefix + "-*.png")
	sort.Slice(matches, func(i, j int) bool {
		if len(matches[i]) != len(matches[j]) {
			return len(matches[i]) < len(matches[j])
		}
		return matches[i] < matches[j]
	})
	if e.cfg.MaxPages > 0 && len(matches) > e.cfg.MaxPages {
		matches = matches[:e.cfg.MaxPages]
	}
	if len(matches) == 0 {
		return nil, fmt.Errorf("pdftoppm produced no images")
	}
	return matches, nil
}

func (e *Extractor) pdfToOCR(ctx context.Context, path, tmpDir string) (ExtractionResult, error) {
	res := ExtractionResult{
		SourceType: constants.PDF,
		Method:     "pdf-ocr",
		Engine:     e.recognizer.Name(),
		Language:   e.cfg.TesseractLang,
	}
	pagesPNG, err := e.RenderPDF(ctx, path, tmpDir)
	if err != nil {
		res.Warnings = append(res.Warnings, err.Error())
		return res, err
	}

	var b strings.Builder
	var confSum float32
	for _, img := range pagesPNG {
		page, err := e.recognizeImage(ctx, img)
		if err != nil {
			res.Warnings = append(res.Warnings, err.Error())
			continue
		}
		if b.Len() > 0 {
			b.WriteString("\n\n") // keep a clear page break
		}
		b.WriteString(page.Text)
		confSum += page.Confidence
	}
	res.Pages = len(pagesPNG)
	res.Text = b.String()
	if res.Text == "" {
		return res, ErrNoText
	}
	res.Confidence = confSum / float32(res.Pages)
	return res, nil
}

// fileExists is used by recognizers that read the file themselves.
func fileExists(path string) error {
	st, err := os.Stat(path)
	if err != nil {
		return err
	}
	if st.IsDir() {
		return fmt.Errorf("%s is a directory", path)
	}
	return nil
}
