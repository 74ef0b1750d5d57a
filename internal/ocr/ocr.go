// Package ocr pulls raw text out of receipt images with the Cloud
// Vision API. The result feeds the same extraction pipeline as typed
// text.
package ocr

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"strings"

	goption "google.golang.org/api/option"
	vision "google.golang.org/api/vision/v1"
)

var (
	// ErrNoText is returned when the image contains no readable text.
	ErrNoText = errors.New("no text found in image")
	// ErrInvalidImage is returned when the payload is empty or the
	// service rejects it as not an image.
	ErrInvalidImage = errors.New("invalid image payload")
)

// Reader performs text detection on images.
type Reader struct {
	service *vision.Service
}

// New creates a Reader. Credentials resolve from
// GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or
// GOOGLE_APPLICATION_CREDENTIALS, in that order.
func New(ctx context.Context) (*Reader, error) {
	credentialsJSON, err := loadCredentials()
	if err != nil {
		return nil, err
	}
	service, err := vision.NewService(ctx,
		goption.WithCredentialsJSON(credentialsJSON),
		goption.WithScopes(vision.CloudVisionScope))
	if err != nil {
		return nil, fmt.Errorf("create vision service: %w", err)
	}
	return &Reader{service: service}, nil
}

func loadCredentials() ([]byte, error) {
	if inline := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_JSON")); inline != "" {
		return []byte(inline), nil
	}
	file := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_FILE"))
	if file == "" {
		file = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}
	if file == "" {
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}
	credentialsJSON, err := os.ReadFile(file)
	if err != nil {
		return nil, fmt.Errorf("read service account file: %w", err)
	}
	return credentialsJSON, nil
}

// RecognizeText returns the full text detected in the image bytes.
func (r *Reader) RecognizeText(ctx context.Context, image []byte) (string, error) {
	if len(image) == 0 {
		return "", ErrInvalidImage
	}

	req := &vision.BatchAnnotateImagesRequest{
		Requests: []*vision.AnnotateImageRequest{{
			Image:    &vision.Image{Content: base64.StdEncoding.EncodeToString(image)},
			Features: []*vision.Feature{{Type: "TEXT_DETECTION"}},
		}},
	}
	batch, err := r.service.Images.Annotate(req).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("annotate image: %w", err)
	}
	if len(batch.Responses) == 0 {
		return "", ErrNoText
	}

	resp := batch.Responses[0]
	if resp.Error != nil {
		// Code 3 is the API's invalid-argument status.
		if resp.Error.Code == 3 {
			return "", fmt.Errorf("%w: %s", ErrInvalidImage, resp.Error.Message)
		}
		return "", fmt.Errorf("vision error %d: %s", resp.Error.Code, resp.Error.Message)
	}

	text := extractText(resp)
	if text == "" {
		return "", ErrNoText
	}
	return text, nil
}

func extractText(resp *vision.AnnotateImageResponse) string {
	if resp.FullTextAnnotation != nil && resp.FullTextAnnotation.Text != "" {
		return strings.TrimSpace(resp.FullTextAnnotation.Text)
	}
	// The first text annotation aggregates the whole image.
	if len(resp.TextAnnotations) > 0 {
		return strings.TrimSpace(resp.TextAnnotations[0].Description)
	}
	return ""
}
