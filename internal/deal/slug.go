package deal

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// MaxSlugLength bounds content-derived slugs
const MaxSlugLength = 50

var nonSlugRun = regexp.MustCompile(`[^a-z0-9]+`)

// Clock returns the current instant
type Clock func() time.Time

// SlugGenerator derives URL-safe identifiers. Slugs are not checked for
// collisions; two identical titles yield the same slug.
type SlugGenerator struct {
	now Clock
}

// NewSlugGenerator creates a generator; a nil clock uses time.Now
func NewSlugGenerator(now Clock) *SlugGenerator {
	if now == nil {
		now = time.Now
	}
	return &SlugGenerator{now: now}
}

// Generate lower-cases nameEn, hyphenates runs of other characters and
// truncates to MaxSlugLength. An empty result becomes "deal-<epoch-ms>".
func (g *SlugGenerator) Generate(nameEn string) string {
	slug := nonSlugRun.ReplaceAllString(strings.ToLower(nameEn), "-")
	slug = strings.Trim(slug, "-")
	if len(slug) > MaxSlugLength {
		slug = strings.TrimRight(slug[:MaxSlugLength], "-")
	}
	if slug == "" {
		return FallbackSlug(g.now())
	}
	return slug
}

// FallbackSlug is the timestamp-based slug for t
func FallbackSlug(t time.Time) string {
	return "deal-" + strconv.FormatInt(t.UnixMilli(), 10)
}
