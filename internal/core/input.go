package core

import (
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"sync"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"github.com/joseph-ayodele/boardingpass-tracker/constants"
)

var disableConfigDir sync.Once

// validateInput rejects documents no engine could read, before any engine runs.
func validateInput(req Request) (constants.Format, error) {
	mime := constants.NormalizeMime(req.MimeType)
	if mime == "" {
		mime = constants.MimeFromExt(req.FilePath)
	}
	format := constants.MapMimeToFormat(mime)
	if format == "" {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedMime, req.MimeType)
	}

	f, err := os.Open(req.FilePath)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnreadableFile, err)
	}
	defer f.Close()

	switch format {
	case constants.PDF:
		disableConfigDir.Do(api.DisableConfigDir)
		conf := model.NewDefaultConfiguration()
		conf.ValidationMode = model.ValidationRelaxed
		pctx, err := api.ReadAndValidate(f, conf)
		if err != nil {
			return "", fmt.Errorf("%w: pdf: %v", ErrUnreadableFile, err)
		}
		if pctx.PageCount == 0 {
			return "", fmt.Errorf("%w: pdf has no pages", ErrUnreadableFile)
		}
	case constants.IMAGE:
		cfg, _, err := image.DecodeConfig(f)
		if err != nil {
			return "", fmt.Errorf("%w: image: %v", ErrUnreadableFile, err)
		}
		if cfg.Width == 0 || cfg.Height == 0 {
			return "", fmt.Errorf("%w: empty image", ErrUnreadableFile)
		}
	}
	return format, nil
}
