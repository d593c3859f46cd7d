package barcode

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/makiuchi-d/gozxing"
	"github.com/makiuchi-d/gozxing/aztec"
	"github.com/makiuchi-d/gozxing/datamatrix"
	"github.com/makiuchi-d/gozxing/qrcode"

	"github.com/joseph-ayodele/boardingpass-tracker/internal/ocr"
)

// Engine decodes the first barcode found in an image file. An empty string
// with a nil error means nothing was found.
type Engine interface {
	Name() string
	Decode(ctx context.Context, path string) (string, error)
}

// Native decodes in-process with gozxing, which reads the phone symbologies
// (Aztec, QR, DataMatrix). It has no PDF417 reader; paper passes are left to
// ZXingCLI.
type Native struct{}

func NewNative() *Native { return &Native{} }

// readers are stateful, so every Decode gets its own; an abandoned attempt
// may still be running when the next one starts.
func readers() []gozxing.Reader {
	return []gozxing.Reader{
		aztec.NewAztecReader(),
		qrcode.NewQRCodeReader(),
		datamatrix.NewDataMatrixReader(),
	}
}

func (n *Native) Name() string { return "gozxing" }

// Decode ignores ctx once a reader is running; the Decoder enforces the
// deadline around it.
func (n *Native) Decode(ctx context.Context, path string) (string, error) {
	img, err := imaging.Open(path)
	if err != nil {
		return "", fmt.Errorf("open %s: %w", path, err)
	}
	bmp, err := gozxing.NewBinaryBitmapFromImage(img)
	if err != nil {
		return "", fmt.Errorf("binarize: %w", err)
	}
	hints := map[gozxing.DecodeHintType]interface{}{
		gozxing.DecodeHintType_TRY_HARDER: true,
	}
	for _, r := range readers() {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		res, err := r.Decode(bmp, hints)
		if err != nil {
			// NotFound / Checksum / Format: try the next symbology
			continue
		}
		if txt := res.GetText(); strings.TrimSpace(txt) != "" {
			return txt, nil
		}
	}
	return "", nil
}

// CLI shells out to zbarimg.
type CLI struct {
	bin    string
	runner ocr.Runner
	logger *slog.Logger
}

func NewCLI(bin string, runner ocr.Runner, logger *slog.Logger) *CLI {
	if bin == "" {
		bin = "zbarimg"
	}
	if runner == nil {
		runner = ocr.ExecRunner{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &CLI{bin: bin, runner: runner, logger: logger}
}

func (c *CLI) Name() string { return "zbarimg" }

func (c *CLI) Decode(ctx context.Context, path string) (string, error) {
	// zbarimg --raw -q <file>; exit status 4 means no symbol found
	out, _, err := c.runner.Run(ctx, c.bin, c.logger, "--raw", "-q", path)
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && exitErr.ExitCode() == 4 {
			return "", nil
		}
		return "", fmt.Errorf("zbarimg: %w", err)
	}
	for _, line := range bytes.Split(out, []byte("\n")) {
		if s := strings.TrimRight(string(line), "\r"); strings.TrimSpace(s) != "" {
			return s, nil
		}
	}
	return "", nil
}

// ZXingCLI shells out to zxing-cpp's ZXingReader, the only engine here that
// reads PDF417 reliably.
type ZXingCLI struct {
	bin    string
	runner ocr.Runner
	logger *slog.Logger
}

func NewZXingCLI(bin string, runner ocr.Runner, logger *slog.Logger) *ZXingCLI {
	if bin == "" {
		bin = "ZXingReader"
	}
	if runner == nil {
		runner = ocr.ExecRunner{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ZXingCLI{bin: bin, runner: runner, logger: logger}
}

func (z *ZXingCLI) Name() string { return "zxing-cpp" }

// Decode reads the first `Text: "..."` line of ZXingReader's report.
// "No barcode found" is not an error, whatever the exit status.
func (z *ZXingCLI) Decode(ctx context.Context, path string) (string, error) {
	out, _, err := z.runner.Run(ctx, z.bin, z.logger, path)
	if txt, ok := zxingText(out); ok {
		return txt, nil
	}
	if bytes.Contains(out, []byte("No barcode found")) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("ZXingReader: %w", err)
	}
	return "", nil
}

func zxingText(out []byte) (string, bool) {
	for _, line := range bytes.Split(out, []byte("\n")) {
		s := strings.TrimSpace(string(line))
		if !strings.HasPrefix(s, "Text:") {
			continue
		}
		s = strings.TrimSpace(strings.TrimPrefix(s, "Text:"))
		if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
			s = s[1 : len(s)-1]
		}
		if strings.TrimSpace(s) != "" {
			return s, true
		}
	}
	return "", false
}
