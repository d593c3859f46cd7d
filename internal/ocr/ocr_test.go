package ocr

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/boardingpass-tracker/constants"
)

type fakeRunner struct {
	mu    sync.Mutex
	calls [][]string
	fn    func(name string, args []string) ([]byte, []byte, error)
}

func (f *fakeRunner) Run(_ context.Context, name string, _ *slog.Logger, args ...string) ([]byte, []byte, error) {
	f.mu.Lock()
	f.calls = append(f.calls, append([]string{name}, args...))
	f.mu.Unlock()
	return f.fn(name, args)
}

type fakeRecognizer struct {
	texts map[string]string
	err   error
}

func (f *fakeRecognizer) Name() string { return "fake" }

func (f *fakeRecognizer) Recognize(_ context.Context, path string) (string, float32, error) {
	if f.err != nil {
		return "", 0, f.err
	}
	return f.texts[filepath.Base(path)], 0.9, nil
}

const passText = "BOARDING PASS\r\nFLIGHT IB 3202\t\tMAD   BCN\r\n\r\n\r\n\r\nSEAT 12C  14JUN"

func TestPDFText_Pdftotext(t *testing.T) {
	r := &fakeRunner{fn: func(name string, args []string) ([]byte, []byte, error) {
		require.Equal(t, "pdftotext", name)
		return []byte(passText + "\f"), nil, nil
	}}
	e := NewExtractor(Config{MaxPages: 2}, nil, WithRunner(r))

	res, err := e.PDFText(context.Background(), "/docs/pass.pdf")
	require.NoError(t, err)
	assert.Equal(t, "pdftotext", res.Method)
	assert.Equal(t, 1, res.Pages)
	assert.Equal(t, "BOARDING PASS\nFLIGHT IB 3202 MAD BCN\n\nSEAT 12C 14JUN", res.Text)
	assert.Greater(t, res.Confidence, float32(0.5))

	require.Len(t, r.calls, 1)
	assert.Contains(t, strings.Join(r.calls[0], " "), "-l 2 /docs/pass.pdf -")
}

func TestPDFText_FallbackFailsOnMissingFile(t *testing.T) {
	r := &fakeRunner{fn: func(string, []string) ([]byte, []byte, error) {
		return nil, []byte("not found"), errors.New("exit status 127")
	}}
	e := NewExtractor(Config{}, nil, WithRunner(r))

	res, err := e.PDFText(context.Background(), filepath.Join(t.TempDir(), "missing.pdf"))
	require.Error(t, err)
	assert.Equal(t, "pdf-go", res.Method)
	assert.Contains(t, res.Warnings, "not found")
}

func TestPDFText_EmptyMeansScan(t *testing.T) {
	r := &fakeRunner{fn: func(string, []string) ([]byte, []byte, error) {
		return []byte("\f\f"), nil, nil
	}}
	e := NewExtractor(Config{}, nil, WithRunner(r))

	_, err := e.PDFText(context.Background(), "scan.pdf")
	assert.ErrorIs(t, err, ErrNoText)
}

// pdftoppm output names: page-1.png ... page-10.png sort numerically
func renderingRunner(t *testing.T, pages int) *fakeRunner {
	return &fakeRunner{fn: func(name string, args []string) ([]byte, []byte, error) {
		require.Equal(t, "pdftoppm", name)
		prefix := args[len(args)-1]
		for i := 1; i <= pages; i++ {
			p := prefix + "-" + strconv.Itoa(i) + ".png"
			require.NoError(t, os.WriteFile(p, []byte("png"), 0o600))
		}
		return nil, nil, nil
	}}
}

func TestRenderPDF_OrdersPages(t *testing.T) {
	dir := t.TempDir()
	e := NewExtractor(Config{}, nil, WithRunner(renderingRunner(t, 11)))

	pages, err := e.RenderPDF(context.Background(), "pass.pdf", dir)
	require.NoError(t, err)
	require.Len(t, pages, 11)
	assert.Equal(t, "page-1.png", filepath.Base(pages[0]))
	assert.Equal(t, "page-2.png", filepath.Base(pages[1]))
	assert.Equal(t, "page-10.png", filepath.Base(pages[9]))
	assert.Equal(t, "page-11.png", filepath.Base(pages[10]))
}

func TestRenderPDF_MaxPages(t *testing.T) {
	dir := t.TempDir()
	r := renderingRunner(t, 4)
	e := NewExtractor(Config{MaxPages: 2, DPI: 200}, nil, WithRunner(r))

	pages, err := e.RenderPDF(context.Background(), "pass.pdf", dir)
	require.NoError(t, err)
	assert.Len(t, pages, 2)
	assert.Equal(t, []string{"pdftoppm", "-r", "200", "-png", "-f", "1", "-l", "2", "pass.pdf", filepath.Join(dir, "page")}, r.calls[0])
}

func TestRecognize_PDFRemovesRenderedPages(t *testing.T) {
	rec := &fakeRecognizer{texts: map[string]string{
		"page-1.png": "FLIGHT VY 6048",
		"page-2.png": "PMI LHR",
	}}
	e := NewExtractor(Config{}, nil, WithRunner(renderingRunner(t, 2)), WithRecognizer(rec))

	before := tempEntries(t)
	res, err := e.Recognize(context.Background(), "pass.pdf", constants.PDF)
	require.NoError(t, err)
	assert.Equal(t, "FLIGHT VY 6048\n\nPMI LHR", res.Text)
	assert.Equal(t, 2, res.Pages)
	assert.Equal(t, "fake", res.Engine)
	assert.Equal(t, before, tempEntries(t))
}

func TestRecognize_Image(t *testing.T) {
	rec := &fakeRecognizer{texts: map[string]string{"pass.png": "  MAD  BCN  "}}
	e := NewExtractor(Config{}, nil, WithRecognizer(rec))

	res, err := e.Recognize(context.Background(), "/x/pass.png", constants.IMAGE)
	require.NoError(t, err)
	assert.Equal(t, "MAD BCN", res.Text)
	assert.Equal(t, "image-ocr", res.Method)

	rec.err = errors.New("boom")
	_, err = e.Recognize(context.Background(), "/x/pass.png", constants.IMAGE)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "fake: boom")

	rec.err = nil
	_, err = e.Recognize(context.Background(), "/x/blank.png", constants.IMAGE)
	assert.ErrorIs(t, err, ErrNoText)
}

func TestTesseractArgs(t *testing.T) {
	r := &fakeRunner{fn: func(name string, args []string) ([]byte, []byte, error) {
		if args[len(args)-1] == "tsv" {
			return []byte("level\tpage_num\tblock_num\tpar_num\tline_num\tword_num\tleft\ttop\twidth\theight\tconf\ttext\n" +
				"5\t1\t1\t1\t1\t1\t0\t0\t10\t10\t90\tMAD\n" +
				"5\t1\t1\t1\t1\t2\t0\t0\t10\t10\t70\tBCN\n" +
				"4\t1\t1\t1\t1\t0\t0\t0\t10\t10\t-1\t\n"), nil, nil
		}
		return []byte("MAD BCN"), nil, nil
	}}
	e := NewExtractor(Config{TessdataDir: "/td", EnableTSVConfidence: true}, nil, WithRunner(r))

	txt, conf, err := e.recognizer.Recognize(context.Background(), "p.png")
	require.NoError(t, err)
	assert.Equal(t, "MAD BCN", txt)
	assert.InDelta(t, 0.8, conf, 0.001)
	assert.Equal(t, []string{"tesseract", "p.png", "stdout", "-l", "eng+spa", "--tessdata-dir", "/td"}, r.calls[0])
}

func TestNormalize(t *testing.T) {
	assert.Equal(t, "", Normalize(""))
	assert.Equal(t, "BOS fixed: BOS\n\nnext", Normalize("BOS fixed: B0S\n-----\n\n\n\nnext"))
	// dates keep their zeros
	assert.Equal(t, "05/06/2025", Normalize("05/06/2025"))
}

func tempEntries(t *testing.T) []string {
	t.Helper()
	entries, err := os.ReadDir(os.TempDir())
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), "bp-ocr-") {
			names = append(names, e.Name())
		}
	}
	return names
}
