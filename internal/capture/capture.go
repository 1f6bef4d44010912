package capture

import (
	"context"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/dealmungchi/dealextractor/logger"
	"github.com/dealmungchi/dealextractor/pkg/errors"
)

// Cookie is a session cookie applied before navigation
type Cookie struct {
	Name     string `json:"name" validate:"required"`
	Value    string `json:"value"`
	Domain   string `json:"domain,omitempty"`
	Path     string `json:"path,omitempty"`
	URL      string `json:"url,omitempty"`
	Secure   bool   `json:"secure,omitempty"`
	HTTPOnly bool   `json:"httpOnly,omitempty"`
}

// ImageCandidate is an <img> element as laid out by the browser
type ImageCandidate struct {
	Src           string `json:"src"`
	NaturalWidth  int    `json:"naturalWidth"`
	NaturalHeight int    `json:"naturalHeight"`
}

// Page is the rendered state of one post
type Page struct {
	HTML   string
	Images []ImageCandidate
}

// RawCapture is the visible text and leading image of a post.
// Either field may be empty.
type RawCapture struct {
	Text     string
	ImageURL string
}

// Renderer renders a URL in a browser surface and reports its DOM
type Renderer interface {
	Render(ctx context.Context, url string, cookies []Cookie) (*Page, error)
}

// DefaultTextSelectors are tried in order; the first non-empty block wins
var DefaultTextSelectors = []string{
	`[data-ad-preview="message"]`,
	`div[dir="auto"]`,
	`div[data-testid="post_message"]`,
}

// Options controls how a rendered page is reduced to a RawCapture
type Options struct {
	TextSelectors []string
	CDNMarker     string
	MinImageWidth int
}

// Capturer extracts post content through a Renderer
type Capturer struct {
	renderer  Renderer
	selectors []string
	cdnMarker string
	minWidth  int
	log       *logger.Logger
}

// NewCapturer creates a capturer; empty options fall back to defaults
func NewCapturer(renderer Renderer, opts Options) *Capturer {
	if len(opts.TextSelectors) == 0 {
		opts.TextSelectors = DefaultTextSelectors
	}
	if opts.CDNMarker == "" {
		opts.CDNMarker = "fbcdn"
	}
	if opts.MinImageWidth <= 0 {
		opts.MinImageWidth = 200
	}
	return &Capturer{
		renderer:  renderer,
		selectors: opts.TextSelectors,
		cdnMarker: opts.CDNMarker,
		minWidth:  opts.MinImageWidth,
		log:       logger.ForCapture(),
	}
}

// Capture renders url and returns its post text and largest CDN image.
// Render and DOM failures are returned as capture errors.
func (c *Capturer) Capture(ctx context.Context, url string, cookies []Cookie) (RawCapture, error) {
	page, err := c.renderer.Render(ctx, url, cookies)
	if err != nil {
		return RawCapture{}, errors.NewCapture("capture", "failed to render "+url, err)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page.HTML))
	if err != nil {
		return RawCapture{}, errors.NewCapture("capture", "failed to parse rendered DOM", err)
	}

	raw := RawCapture{
		Text:     ExtractText(doc, c.selectors),
		ImageURL: SelectImage(page.Images, c.cdnMarker, c.minWidth),
	}

	c.log.Debug().
		Str("url", url).
		Int("text_length", len(raw.Text)).
		Int("image_candidates", len(page.Images)).
		Bool("has_image", raw.ImageURL != "").
		Msg("Captured post")

	return raw, nil
}

// SelectImage picks the candidate with the largest pixel area among those
// served from the CDN and wider than minWidth. Ties keep document order.
func SelectImage(candidates []ImageCandidate, cdnMarker string, minWidth int) string {
	best := ""
	bestArea := -1
	for _, img := range candidates {
		if img.Src == "" || !strings.Contains(img.Src, cdnMarker) || img.NaturalWidth <= minWidth {
			continue
		}
		if area := img.NaturalWidth * img.NaturalHeight; area > bestArea {
			best, bestArea = img.Src, area
		}
	}
	return best
}
