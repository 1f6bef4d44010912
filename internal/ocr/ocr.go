package ocr

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"golang.org/x/sync/semaphore"
	"golang.org/x/sync/singleflight"

	"github.com/dealmungchi/dealextractor/logger"
	"github.com/dealmungchi/dealextractor/pkg/errors"
	"github.com/dealmungchi/dealextractor/services/cache"
)

// Result is the outcome of one recognition. A failed recognition has empty
// Text and a non-nil Err; callers treat both the same way.
type Result struct {
	Text     string
	Err      error
	Duration time.Duration
}

// Recognizer turns image bytes into text
type Recognizer interface {
	Recognize(ctx context.Context, image []byte) Result
}

// RecognizerFunc adapts a function to Recognizer
type RecognizerFunc func(ctx context.Context, image []byte) Result

// Recognize calls f
func (f RecognizerFunc) Recognize(ctx context.Context, image []byte) Result {
	return f(ctx, image)
}

// LimitedRecognizer bounds the number of recognitions running at once
type LimitedRecognizer struct {
	next Recognizer
	sem  *semaphore.Weighted
}

// NewLimitedRecognizer allows at most n concurrent calls into next
func NewLimitedRecognizer(next Recognizer, n int64) *LimitedRecognizer {
	if n <= 0 {
		n = 1
	}
	return &LimitedRecognizer{next: next, sem: semaphore.NewWeighted(n)}
}

// Recognize waits for a free slot, or fails when ctx ends first
func (l *LimitedRecognizer) Recognize(ctx context.Context, image []byte) Result {
	start := time.Now()
	if err := l.sem.Acquire(ctx, 1); err != nil {
		return Result{Err: errors.NewOCR("limiter", "gave up waiting for a recognition slot", err), Duration: time.Since(start)}
	}
	defer l.sem.Release(1)
	return l.next.Recognize(ctx, image)
}

// CachedRecognizer memoizes recognized text by image digest
type CachedRecognizer struct {
	next  Recognizer
	cache cache.CacheService
	ttl   time.Duration
	group singleflight.Group
	log   *logger.Logger
}

// NewCachedRecognizer wraps next with cache. A nil cache disables caching
// but identical concurrent images are still recognized once.
func NewCachedRecognizer(next Recognizer, c cache.CacheService, ttl time.Duration) *CachedRecognizer {
	return &CachedRecognizer{
		next:  next,
		cache: c,
		ttl:   ttl,
		log:   logger.ForOCR(),
	}
}

// CacheKey is the cache key for image
func CacheKey(image []byte) string {
	sum := sha256.Sum256(image)
	return "ocr:" + hex.EncodeToString(sum[:])
}

// Recognize returns cached text when present. Cache errors are logged and
// bypassed; failed recognitions are not stored. The shared recognition is
// detached from any one caller, so a caller whose ctx ends gets an error
// without failing the others waiting on the same image.
func (c *CachedRecognizer) Recognize(ctx context.Context, image []byte) Result {
	start := time.Now()
	key := CacheKey(image)

	if c.cache != nil {
		if data, err := c.cache.Get(key); err == nil {
			c.log.Debug().Str("key", key).Msg("OCR cache hit")
			return Result{Text: string(data), Duration: time.Since(start)}
		} else if !cache.IsMiss(err) {
			c.log.Warn().Err(err).Msg("OCR cache lookup failed")
		}
	}

	shared := context.WithoutCancel(ctx)
	ch := c.group.DoChan(key, func() (interface{}, error) {
		res := c.next.Recognize(shared, image)
		if res.Err == nil && c.cache != nil {
			if err := c.cache.Set(key, []byte(res.Text), c.ttl); err != nil {
				c.log.Warn().Err(err).Msg("OCR cache store failed")
			}
		}
		return res, nil
	})

	select {
	case out := <-ch:
		res := out.Val.(Result)
		res.Duration = time.Since(start)
		return res
	case <-ctx.Done():
		return Result{Err: errors.NewOCR("cache", "stopped waiting for recognition", ctx.Err()), Duration: time.Since(start)}
	}
}
