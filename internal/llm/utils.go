package llm

import (
	"encoding/base64"
	"fmt"

	"github.com/joseph-ayodele/boardingpass-tracker/constants"
)

// EncodeDocument gates the document on size and returns it base64-encoded for
// an inline_data part.
func EncodeDocument(req ExtractRequest, maxMB int) (data, mimeType string, err error) {
	if maxMB <= 0 {
		maxMB = constants.MaxVisionMBDefault
	}
	if len(req.Document) == 0 {
		return "", "", fmt.Errorf("empty document")
	}
	if len(req.Document) > maxMB*1024*1024 {
		return "", "", fmt.Errorf("document is %d bytes, over the %d MB vision limit", len(req.Document), maxMB)
	}
	mimeType = constants.NormalizeMime(req.MimeType)
	if constants.MapMimeToFormat(mimeType) == "" {
		return "", "", fmt.Errorf("unsupported mime type %q", req.MimeType)
	}
	return base64.StdEncoding.EncodeToString(req.Document), mimeType, nil
}
