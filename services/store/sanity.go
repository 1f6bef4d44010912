package store

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/dealmungchi/dealextractor/internal/deal"
	"github.com/dealmungchi/dealextractor/logger"
	"github.com/dealmungchi/dealextractor/pkg/errors"
)

const storesQuery = `*[_type == "Restaurants"]{_id, name, name_ar, name_en, title, "displayName": coalesce(name_ar, name_en, name, title)}`

// Store is a restaurant deals can be attached to
type Store struct {
	ID     string `json:"_id"`
	Name   string `json:"name"`
	NameAr string `json:"name_ar"`
	NameEn string `json:"name_en"`
}

// DealUpload is a parsed deal bound to a store
type DealUpload struct {
	deal.ParsedDeal
	Store        string `json:"store" validate:"required"`
	ImageAssetID string `json:"imageAssetId,omitempty"`
}

// Options configures a SanityClient
type Options struct {
	ProjectID  string
	Dataset    string
	Token      string
	APIVersion string
	// BaseURL overrides https://<project>.api.sanity.io
	BaseURL    string
	RateLimit  float64
	Timeout    time.Duration
	HTTPClient *http.Client
}

// SanityClient talks to the Sanity HTTP API
type SanityClient struct {
	baseURL string
	dataset string
	token   string
	client  *http.Client
	limiter *rate.Limiter
	log     *logger.Logger
}

// NewSanityClient creates a client. All calls share one token bucket.
func NewSanityClient(opts Options) *SanityClient {
	if opts.APIVersion == "" {
		opts.APIVersion = "v2021-06-07"
	}
	if !strings.HasPrefix(opts.APIVersion, "v") {
		opts.APIVersion = "v" + opts.APIVersion
	}
	if opts.BaseURL == "" {
		opts.BaseURL = fmt.Sprintf("https://%s.api.sanity.io", opts.ProjectID)
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: opts.Timeout}
	}
	limit := rate.Inf
	if opts.RateLimit > 0 {
		limit = rate.Limit(opts.RateLimit)
	}

	return &SanityClient{
		baseURL: strings.TrimRight(opts.BaseURL, "/") + "/" + opts.APIVersion,
		dataset: opts.Dataset,
		token:   opts.Token,
		client:  opts.HTTPClient,
		limiter: rate.NewLimiter(limit, 1),
		log:     logger.ForStore(),
	}
}

// ListStores returns every restaurant with a display name resolved
func (c *SanityClient) ListStores(ctx context.Context) ([]Store, error) {
	endpoint := fmt.Sprintf("%s/data/query/%s?query=%s", c.baseURL, c.dataset, url.QueryEscape(storesQuery))

	var body struct {
		Result []struct {
			ID          string `json:"_id"`
			Name        string `json:"name"`
			NameAr      string `json:"name_ar"`
			NameEn      string `json:"name_en"`
			Title       string `json:"title"`
			DisplayName string `json:"displayName"`
		} `json:"result"`
	}
	if err := c.do(ctx, "stores", http.MethodGet, endpoint, "", nil, &body); err != nil {
		return nil, err
	}

	stores := make([]Store, 0, len(body.Result))
	for _, r := range body.Result {
		name := firstNonEmpty(r.DisplayName, r.NameAr, r.NameEn, r.Name)
		if name == "" {
			name = "Restaurant-" + truncate(r.ID, 8)
		}
		stores = append(stores, Store{
			ID:     r.ID,
			Name:   name,
			NameAr: firstNonEmpty(r.NameAr, name),
			NameEn: firstNonEmpty(r.NameEn, name),
		})
	}
	return stores, nil
}

// UploadImage stores a JPEG asset and returns its document id
func (c *SanityClient) UploadImage(ctx context.Context, jpeg []byte, filename string) (string, error) {
	endpoint := fmt.Sprintf("%s/assets/images/%s?filename=%s", c.baseURL, c.dataset, url.QueryEscape(filename))

	var body struct {
		Document struct {
			ID string `json:"_id"`
		} `json:"document"`
	}
	if err := c.do(ctx, "image", http.MethodPost, endpoint, "image/jpeg", jpeg, &body); err != nil {
		return "", err
	}
	if body.Document.ID == "" {
		return "", errors.NewUpload("sanity", "asset response has no document id", nil)
	}

	c.log.Info().Str("asset_id", body.Document.ID).Int("bytes", len(jpeg)).Msg("Image uploaded")
	return body.Document.ID, nil
}

// UploadDeal creates or replaces the deal document keyed by its slug
func (c *SanityClient) UploadDeal(ctx context.Context, upload DealUpload) (string, error) {
	doc := NewDealDocument(upload)
	payload, err := json.Marshal(map[string]interface{}{
		"mutations": []interface{}{
			map[string]interface{}{"createOrReplace": doc},
		},
	})
	if err != nil {
		return "", errors.NewUpload("sanity", "failed to encode mutation", err)
	}

	endpoint := fmt.Sprintf("%s/data/mutate/%s", c.baseURL, c.dataset)
	if err := c.do(ctx, "deal", http.MethodPost, endpoint, "application/json", payload, nil); err != nil {
		return "", err
	}

	c.log.Info().Str("deal_id", doc.ID).Str("store", upload.Store).Msg("Deal uploaded")
	return doc.ID, nil
}

// do sends one request and decodes a 2xx JSON body into out. Other
// statuses become upload errors carrying the response body.
func (c *SanityClient) do(ctx context.Context, op, method, endpoint, contentType string, payload []byte, out interface{}) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return errors.NewUpload("sanity", op+": rate limiter", err)
	}

	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return errors.NewUpload("sanity", op+": failed to create request", err)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		return errors.NewUpload("sanity", op+": request failed", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.NewUpload("sanity", op+": failed to read response", err)
	}

	c.log.Debug().
		Str("op", op).
		Int("status", resp.StatusCode).
		Dur("elapsed", time.Since(start)).
		Msg("Sanity request")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return errors.NewUpload("sanity", fmt.Sprintf("%s: status %d: %s", op, resp.StatusCode, strings.TrimSpace(string(data))), nil)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return errors.NewUpload("sanity", op+": failed to decode response", err)
	}
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
