// Package tesseract recognizes Arabic and English text with libtesseract.
package tesseract

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/otiai10/gosseract/v2"

	"github.com/dealmungchi/dealextractor/internal/ocr"
	"github.com/dealmungchi/dealextractor/logger"
	"github.com/dealmungchi/dealextractor/pkg/errors"
)

// DefaultLanguages are the traineddata sets loaded for deal posts
var DefaultLanguages = []string{"ara", "eng"}

// Recognizer runs one tesseract client per call
type Recognizer struct {
	languages []string
	log       *logger.Logger
}

var _ ocr.Recognizer = (*Recognizer)(nil)

// New creates a recognizer for languages
func New(languages []string) *Recognizer {
	if len(languages) == 0 {
		languages = DefaultLanguages
	}
	return &Recognizer{
		languages: languages,
		log:       logger.ForOCR(),
	}
}

// Recognize never panics; any failure comes back as Result.Err with empty text
func (r *Recognizer) Recognize(ctx context.Context, image []byte) (res ocr.Result) {
	start := time.Now()
	defer func() {
		if p := recover(); p != nil {
			res = ocr.Result{Err: errors.NewOCR("tesseract", "recognizer panicked", fmt.Errorf("%v", p))}
		}
		res.Duration = time.Since(start)

		event := r.log.Debug()
		if res.Err != nil {
			event = r.log.Warn().Err(res.Err)
		}
		event.Int("image_bytes", len(image)).
			Int("text_length", len(res.Text)).
			Dur("duration", res.Duration).
			Msg("OCR finished")
	}()

	if err := ctx.Err(); err != nil {
		return ocr.Result{Err: errors.NewOCR("tesseract", "canceled before start", err)}
	}
	if len(image) == 0 {
		return ocr.Result{Err: errors.NewOCR("tesseract", "empty image", nil)}
	}

	text, err := r.recognize(image)
	if err != nil {
		return ocr.Result{Err: errors.NewOCR("tesseract", "recognition failed", err)}
	}
	return ocr.Result{Text: text}
}

func (r *Recognizer) recognize(image []byte) (string, error) {
	client := gosseract.NewClient()
	defer client.Close()

	if err := client.SetLanguage(r.languages...); err != nil {
		return "", fmt.Errorf("failed to set languages %s: %w", strings.Join(r.languages, "+"), err)
	}
	if err := client.SetImageFromBytes(image); err != nil {
		return "", fmt.Errorf("failed to load image: %w", err)
	}
	text, err := client.Text()
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(text), nil
}
