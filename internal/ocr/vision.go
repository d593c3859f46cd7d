package ocr

import (
	"context"
	"errors"
	"fmt"
	"os"

	vision "cloud.google.com/go/vision/v2/apiv1"
	"cloud.google.com/go/vision/v2/apiv1/visionpb"
	"google.golang.org/api/option"
	"google.golang.org/grpc/status"

	"github.com/joseph-ayodele/boardingpass-tracker/internal/common"
)

// ErrMissingCredentials is returned when no Google credentials are configured.
var ErrMissingCredentials = errors.New("ocr: google credentials not configured")

// VisionRecognizer recognizes text with Google Cloud Vision document text
// detection.
type VisionRecognizer struct {
	client *vision.ImageAnnotatorClient
}

// NewVisionRecognizer creates a client from GOOGLE_CREDENTIALS (inline JSON),
// GOOGLE_APPLICATION_CREDENTIALS (file) or the default credentials chain.
func NewVisionRecognizer(ctx context.Context) (*VisionRecognizer, error) {
	var opts []option.ClientOption
	if credJSON := os.Getenv("GOOGLE_CREDENTIALS"); credJSON != "" {
		opts = append(opts, option.WithCredentialsJSON([]byte(credJSON)))
	} else if credFile := os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"); credFile != "" {
		opts = append(opts, option.WithCredentialsFile(credFile))
	}
	client, err := vision.NewImageAnnotatorClient(ctx, opts...)
	if err != nil {
		if len(opts) == 0 {
			return nil, fmt.Errorf("%w: %v", ErrMissingCredentials, err)
		}
		return nil, fmt.Errorf("create vision client: %w", err)
	}
	return &VisionRecognizer{client: client}, nil
}

// NewVisionRecognizerWithClient wraps an existing client.
func NewVisionRecognizerWithClient(client *vision.ImageAnnotatorClient) *VisionRecognizer {
	return &VisionRecognizer{client: client}
}

func (v *VisionRecognizer) Name() string { return "google-vision" }

func (v *VisionRecognizer) Recognize(ctx context.Context, path string) (string, float32, error) {
	if err := fileExists(path); err != nil {
		return "", 0, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", 0, err
	}

	req := &visionpb.BatchAnnotateImagesRequest{
		Requests: []*visionpb.AnnotateImageRequest{
			{
				Image: &visionpb.Image{Content: data},
				Features: []*visionpb.Feature{
					{Type: visionpb.Feature_DOCUMENT_TEXT_DETECTION},
				},
			},
		},
	}
	resp, err := v.client.BatchAnnotateImages(ctx, req)
	if err != nil {
		return "", 0, fmt.Errorf("vision api call failed: %w", common.FromStatus(err))
	}
	if len(resp.Responses) == 0 {
		return "", 0, ErrNoText
	}
	r := resp.Responses[0]
	if r.Error != nil {
		return "", 0, fmt.Errorf("vision api error: %w", common.FromStatus(status.FromProto(r.Error).Err()))
	}
	if r.FullTextAnnotation == nil {
		return "", 0, ErrNoText
	}

	var sum float32
	var n int
	for _, page := range r.FullTextAnnotation.Pages {
		if page.Confidence > 0 {
			sum += page.Confidence
			n++
		}
	}
	var conf float32
	if n > 0 {
		conf = sum / float32(n)
	}
	return r.FullTextAnnotation.Text, conf, nil
}

// Close closes the underlying Vision client.
func (v *VisionRecognizer) Close() error {
	if v.client != nil {
		return v.client.Close()
	}
	return nil
}
