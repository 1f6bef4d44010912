// Package pipeline runs one extraction: capture, image download, OCR when
// the post has no text, parsing and record assembly.
package pipeline

import (
	"context"
	"encoding/json"
	"time"

	"github.com/dealmungchi/dealextractor/internal/capture"
	"github.com/dealmungchi/dealextractor/internal/deal"
	"github.com/dealmungchi/dealextractor/internal/fetch"
	"github.com/dealmungchi/dealextractor/internal/ocr"
	"github.com/dealmungchi/dealextractor/internal/telemetry"
	"github.com/dealmungchi/dealextractor/logger"
	"github.com/dealmungchi/dealextractor/services/publisher"
)

// EventKey is the stream field under which extracted deals are published
const EventKey = "b64_deal"

// Capturer renders a post into raw text and an image URL
type Capturer interface {
	Capture(ctx context.Context, url string, cookies []capture.Cookie) (capture.RawCapture, error)
}

// ImageFetcher downloads an image; failures are carried in the result
type ImageFetcher interface {
	Fetch(ctx context.Context, url string, cookies []capture.Cookie) fetch.ImageResult
}

// ExtractRequest identifies one post
type ExtractRequest struct {
	URL     string           `json:"url" validate:"required,url"`
	Cookies []capture.Cookie `json:"cookies,omitempty" validate:"omitempty,dive"`
}

// Event is what gets published for each extraction. Image bytes are left out.
type Event struct {
	URL         string          `json:"url"`
	Deal        deal.ParsedDeal `json:"deal"`
	ImageURL    string          `json:"image_url,omitempty"`
	HasImage    bool            `json:"has_image"`
	ExtractedAt time.Time       `json:"extracted_at"`
}

// Extractor wires the pipeline stages together
type Extractor struct {
	capturer   Capturer
	images     ImageFetcher
	recognizer ocr.Recognizer
	builder    *deal.Builder
	publisher  publisher.Publisher
	metrics    *telemetry.Metrics
	now        func() time.Time
	log        *logger.Logger
}

// Option customizes an Extractor
type Option func(*Extractor)

// WithPublisher publishes every successful extraction
func WithPublisher(p publisher.Publisher) Option {
	return func(e *Extractor) { e.publisher = p }
}

// WithMetrics records extraction metrics
func WithMetrics(m *telemetry.Metrics) Option {
	return func(e *Extractor) { e.metrics = m }
}

// WithBuilder replaces the default deal builder
func WithBuilder(b *deal.Builder) Option {
	return func(e *Extractor) { e.builder = b }
}

// WithClock sets the clock used for event timestamps
func WithClock(now func() time.Time) Option {
	return func(e *Extractor) { e.now = now }
}

// NewExtractor creates an extractor
func NewExtractor(c Capturer, images ImageFetcher, recognizer ocr.Recognizer, opts ...Option) *Extractor {
	e := &Extractor{
		capturer:   c,
		images:     images,
		recognizer: recognizer,
		publisher:  publisher.NopPublisher{},
		now:        time.Now,
		log:        logger.ForPipeline(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.builder == nil {
		e.builder = deal.NewBuilder(nil, e.now)
	}
	return e
}

// Extract runs the stages in order. Only capture failures are returned;
// image and OCR failures degrade the record instead.
func (e *Extractor) Extract(ctx context.Context, req ExtractRequest) (*deal.Record, error) {
	start := time.Now()
	log := e.log.WithFields(logger.Fields{
		"url":     req.URL,
		"cookies": len(req.Cookies),
	})

	raw, err := e.capturer.Capture(ctx, req.URL, req.Cookies)
	if err != nil {
		log.Error().Err(err).Msg("Capture failed")
		e.metrics.ObserveExtraction("", err, time.Since(start))
		return nil, err
	}

	var image []byte
	if raw.ImageURL != "" {
		res := e.images.Fetch(ctx, raw.ImageURL, req.Cookies)
		if res.OK() {
			image = res.Bytes
		} else {
			e.metrics.ImageFetchFailed()
		}
	}

	sel := SelectSource(ctx, raw.Text, image, e.recognizer)
	if sel.OCR != nil {
		e.metrics.ObserveOCR(sel.OCR.Err, sel.OCR.Duration)
		if sel.OCR.Err != nil {
			log.Warn().Err(sel.OCR.Err).Msg("OCR failed, continuing with empty text")
		}
	}

	parsed := e.builder.Build(sel.Text, sel.Source)
	record := deal.Assemble(parsed, raw.ImageURL, image)

	elapsed := time.Since(start)
	e.metrics.ObserveExtraction(string(sel.Source), nil, elapsed)

	log.Info().
		Str("source", string(sel.Source)).
		Str("slug", parsed.Slug).
		Int("price", parsed.Price).
		Bool("has_image", image != nil).
		Dur("elapsed", elapsed).
		Msg("Deal extracted")

	e.publish(ctx, req.URL, record)
	return &record, nil
}

// publish emits the extraction event; failures are logged only
func (e *Extractor) publish(ctx context.Context, url string, record deal.Record) {
	data, err := json.Marshal(Event{
		URL:         url,
		Deal:        record.ParsedDeal,
		ImageURL:    record.ImageURL,
		HasImage:    record.ImageBase64 != nil,
		ExtractedAt: e.now().UTC(),
	})
	if err != nil {
		e.log.Error().Err(err).Msg("Failed to encode extraction event")
		return
	}
	if err := e.publisher.Publish(ctx, EventKey, data); err != nil {
		e.log.Warn().Err(err).Msg("Failed to publish extraction event")
	}
}
