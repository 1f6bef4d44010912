package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/publicsuffix"

	"github.com/dealmungchi/dealextractor/internal/capture"
	"github.com/dealmungchi/dealextractor/logger"
	"github.com/dealmungchi/dealextractor/pkg/errors"
)

const (
	DefaultTimeout   = 30 * time.Second
	DefaultMaxBytes  = 20 << 20
	DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
)

// ImageResult is the outcome of one download. Failures are carried in Err.
type ImageResult struct {
	Bytes       []byte
	ContentType string
	Err         error
}

// OK reports whether the download produced usable bytes
func (r ImageResult) OK() bool {
	return r.Err == nil && len(r.Bytes) > 0
}

// Options configures an ImageFetcher
type Options struct {
	Timeout   time.Duration
	MaxBytes  int64
	UserAgent string
	Transport http.RoundTripper
}

// ImageFetcher downloads post images with the caller's session cookies
type ImageFetcher struct {
	timeout   time.Duration
	maxBytes  int64
	userAgent string
	transport http.RoundTripper
	log       *logger.Logger
}

// NewImageFetcher creates a fetcher; zero options use defaults
func NewImageFetcher(opts Options) *ImageFetcher {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.MaxBytes <= 0 {
		opts.MaxBytes = DefaultMaxBytes
	}
	if opts.UserAgent == "" {
		opts.UserAgent = DefaultUserAgent
	}
	if opts.Transport == nil {
		opts.Transport = http.DefaultTransport
	}
	return &ImageFetcher{
		timeout:   opts.Timeout,
		maxBytes:  opts.MaxBytes,
		userAgent: opts.UserAgent,
		transport: opts.Transport,
		log:       logger.ForImage(),
	}
}

// Fetch downloads rawURL. It never returns a Go error; a failed download
// yields an ImageResult with Err set and no bytes.
func (f *ImageFetcher) Fetch(ctx context.Context, rawURL string, cookies []capture.Cookie) ImageResult {
	data, contentType, err := f.fetch(ctx, rawURL, cookies)
	if err != nil {
		f.log.Warn().Err(err).Str("url", rawURL).Msg("Image download failed")
		return ImageResult{Err: errors.NewImageFetch("fetch", "failed to download "+rawURL, err)}
	}

	f.log.Debug().
		Str("url", rawURL).
		Int("bytes", len(data)).
		Str("content_type", contentType).
		Msg("Image downloaded")

	return ImageResult{Bytes: data, ContentType: contentType}
}

func (f *ImageFetcher) fetch(ctx context.Context, rawURL string, cookies []capture.Cookie) ([]byte, string, error) {
	target, err := url.Parse(rawURL)
	if err != nil {
		return nil, "", fmt.Errorf("invalid image url: %w", err)
	}
	if target.Scheme != "http" && target.Scheme != "https" {
		return nil, "", fmt.Errorf("unsupported scheme %q", target.Scheme)
	}

	jar, err := newJar(target, cookies)
	if err != nil {
		return nil, "", err
	}
	client := &http.Client{
		Timeout:   f.timeout,
		Transport: f.transport,
		Jar:       jar,
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, "", fmt.Errorf("failed to create request: %w", err)
	}

	// Browser-like headers
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "image/avif,image/webp,image/apng,image/*,*/*;q=0.8")
	req.Header.Set("Accept-Language", "ar-EG,ar;q=0.9,en-US;q=0.8,en;q=0.7")
	req.Header.Set("Referer", "https://www.facebook.com/")
	req.Header.Set("Sec-Fetch-Dest", "image")
	req.Header.Set("Sec-Fetch-Mode", "no-cors")
	req.Header.Set("Sec-Fetch-Site", "cross-site")

	resp, err := client.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("failed to fetch image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, "", fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes+1))
	if err != nil {
		return nil, "", fmt.Errorf("failed to read response body: %w", err)
	}
	if int64(len(data)) > f.maxBytes {
		return nil, "", fmt.Errorf("image exceeds %d bytes", f.maxBytes)
	}
	if len(data) == 0 {
		return nil, "", fmt.Errorf("empty response body")
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" || strings.HasPrefix(contentType, "application/octet-stream") {
		contentType = http.DetectContentType(data)
	}
	return data, contentType, nil
}

// newJar installs the session cookies for target's host. Cookies without a
// domain are scoped to the target host.
func newJar(target *url.URL, cookies []capture.Cookie) (http.CookieJar, error) {
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, fmt.Errorf("failed to create cookie jar: %w", err)
	}
	if len(cookies) == 0 {
		return jar, nil
	}

	httpCookies := make([]*http.Cookie, 0, len(cookies))
	for _, c := range cookies {
		if c.Name == "" {
			continue
		}
		path := c.Path
		if path == "" {
			path = "/"
		}
		hc := &http.Cookie{
			Name:     c.Name,
			Value:    c.Value,
			Path:     path,
			Secure:   c.Secure,
			HttpOnly: c.HTTPOnly,
		}
		// the jar only accepts domains that match the request host
		if d := strings.TrimPrefix(c.Domain, "."); d != "" && domainMatches(target.Hostname(), d) {
			hc.Domain = d
		}
		httpCookies = append(httpCookies, hc)
	}
	jar.SetCookies(target, httpCookies)
	return jar, nil
}

func domainMatches(host, domain string) bool {
	return host == domain || strings.HasSuffix(host, "."+domain)
}
