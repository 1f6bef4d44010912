package pipeline

import (
	"context"

	"github.com/dealmungchi/dealextractor/internal/deal"
	"github.com/dealmungchi/dealextractor/internal/ocr"
)

// Selection is the text chosen for parsing and where it came from.
// OCR is set only when recognition actually ran.
type Selection struct {
	Text   string
	Source deal.Source
	OCR    *ocr.Result
}

// SelectSource applies the provenance rule: native text wins; otherwise the
// image is recognized once and its output is used even when empty; with
// neither, parsing proceeds on empty text tagged as OCR.
func SelectSource(ctx context.Context, text string, image []byte, recognizer ocr.Recognizer) Selection {
	if text != "" {
		return Selection{Text: text, Source: deal.SourceText}
	}
	if len(image) == 0 || recognizer == nil {
		return Selection{Source: deal.SourceOCR}
	}

	res := recognizer.Recognize(ctx, image)
	sel := Selection{Source: deal.SourceOCR, OCR: &res}
	if res.Err == nil {
		sel.Text = res.Text
	}
	return sel
}
