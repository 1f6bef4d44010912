package api

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	stderrors "errors"
	"image"
	"image/png"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dealmungchi/dealextractor/internal/deal"
	"github.com/dealmungchi/dealextractor/internal/pipeline"
	"github.com/dealmungchi/dealextractor/internal/telemetry"
	"github.com/dealmungchi/dealextractor/pkg/errors"
	"github.com/dealmungchi/dealextractor/services/store"
)

type fakeExtractor struct {
	record *deal.Record
	err    error
	req    pipeline.ExtractRequest
	calls  int
}

func (f *fakeExtractor) Extract(ctx context.Context, req pipeline.ExtractRequest) (*deal.Record, error) {
	f.calls++
	f.req = req
	return f.record, f.err
}

type fakeStore struct {
	stores      []store.Store
	err         error
	jpeg        []byte
	filename    string
	upload      store.DealUpload
	uploadCalls int
}

func (f *fakeStore) ListStores(ctx context.Context) ([]store.Store, error) {
	return f.stores, f.err
}

func (f *fakeStore) UploadImage(ctx context.Context, jpeg []byte, filename string) (string, error) {
	f.jpeg, f.filename = jpeg, filename
	if f.err != nil {
		return "", f.err
	}
	return "image-asset-1", nil
}

func (f *fakeStore) UploadDeal(ctx context.Context, upload store.DealUpload) (string, error) {
	f.uploadCalls++
	f.upload = upload
	if f.err != nil {
		return "", f.err
	}
	return upload.Slug, nil
}

var testNow = time.Date(2025, 4, 2, 11, 0, 0, 0, time.UTC)

func newTestRouter(ex Extractor, st ContentStore) *gin.Engine {
	h := NewHandler(ex, st, telemetry.New(), 85)
	h.now = func() time.Time { return testNow }
	return NewRouter(h, telemetry.New(), false)
}

func do(router http.Handler, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestHealth(t *testing.T) {
	router := newTestRouter(&fakeExtractor{}, &fakeStore{})

	rec := do(router, http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, rec.Code)

	body := decode(t, rec)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "2025-04-02T11:00:00Z", body["timestamp"])
	assert.NotEmpty(t, rec.Header().Get(RequestIDHeader))
}

func TestRequestIDIsPropagated(t *testing.T) {
	router := newTestRouter(&fakeExtractor{}, &fakeStore{})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(RequestIDHeader, "abc-123")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, "abc-123", rec.Header().Get(RequestIDHeader))
}

func TestMetricsEndpoint(t *testing.T) {
	router := newTestRouter(&fakeExtractor{}, &fakeStore{})

	rec := do(router, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

func TestCORSPreflight(t *testing.T) {
	router := newTestRouter(&fakeExtractor{}, &fakeStore{})

	rec := do(router, http.MethodOptions, "/api/extract-fb-data", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestFetchStores(t *testing.T) {
	st := &fakeStore{stores: []store.Store{{ID: "r1", Name: "Diner", NameAr: "مطعم", NameEn: "Diner"}}}
	router := newTestRouter(&fakeExtractor{}, st)

	rec := do(router, http.MethodGet, "/api/fetch-stores", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"success":true,"stores":[{"_id":"r1","name":"Diner","name_ar":"مطعم","name_en":"Diner"}]}`, rec.Body.String())

	st.err = errors.NewUpload("sanity", "status 401: Unauthorized", nil)
	rec = do(router, http.MethodGet, "/api/fetch-stores", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, false, body["success"])
	assert.Contains(t, body["error"], "Unauthorized")
}

func TestExtractFBData(t *testing.T) {
	b := deal.NewBuilder(nil, func() time.Time { return testNow })
	record := deal.Assemble(b.Build("عرض خاص فراخ\n100 جنيه", deal.SourceText), "https://scontent.fbcdn.net/a.jpg", []byte("img"))
	ex := &fakeExtractor{record: &record}
	router := newTestRouter(ex, &fakeStore{})

	rec := do(router, http.MethodPost, "/api/extract-fb-data",
		`{"url":"https://www.facebook.com/share/p/1","cookies":[{"name":"c_user","value":"1","domain":".facebook.com"}]}`)
	require.Equal(t, http.StatusOK, rec.Code)

	assert.Equal(t, 1, ex.calls)
	assert.Equal(t, "https://www.facebook.com/share/p/1", ex.req.URL)
	require.Len(t, ex.req.Cookies, 1)
	assert.Equal(t, "c_user", ex.req.Cookies[0].Name)

	body := decode(t, rec)
	assert.Equal(t, true, body["success"])
	data := body["data"].(map[string]interface{})
	assert.Equal(t, "عرض خاص فراخ", data["name_ar"])
	assert.Equal(t, 100.0, data["price"])
	assert.Equal(t, "Text", data["extractedFrom"])
	assert.Equal(t, "2025-04-02", data["validFrom"])
	assert.Equal(t, "2025-04-09", data["validTo"])
	assert.Equal(t, "aW1n", data["image_base64"])
}

func TestExtractFBDataValidation(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"missing url", `{}`},
		{"empty url", `{"url":""}`},
		{"invalid url", `{"url":"not-a-url"}`},
		{"malformed json", `{"url":`},
		{"unnamed cookie", `{"url":"https://www.facebook.com/p/1","cookies":[{"value":"x"}]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ex := &fakeExtractor{}
			router := newTestRouter(ex, &fakeStore{})

			rec := do(router, http.MethodPost, "/api/extract-fb-data", tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, 0, ex.calls)

			body := decode(t, rec)
			assert.Equal(t, false, body["success"])
			assert.NotEmpty(t, body["error"])
		})
	}
}

func TestExtractFBDataCaptureFailure(t *testing.T) {
	ex := &fakeExtractor{err: errors.NewCapture("capture", "failed to render", stderrors.New("net::ERR_NAME_NOT_RESOLVED"))}
	router := newTestRouter(ex, &fakeStore{})

	rec := do(router, http.MethodPost, "/api/extract-fb-data", `{"url":"https://www.facebook.com/p/1"}`)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, false, body["success"])
	assert.Contains(t, body["error"], "ERR_NAME_NOT_RESOLVED")
}

func testPNGBase64(t *testing.T) string {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 4, 4))))
	return base64.StdEncoding.EncodeToString(buf.Bytes())
}

func TestUploadImage(t *testing.T) {
	st := &fakeStore{}
	router := newTestRouter(&fakeExtractor{}, st)

	for _, payload := range []string{testPNGBase64(t), "data:image/png;base64," + testPNGBase64(t)} {
		rec := do(router, http.MethodPost, "/api/upload-image", `{"imageBase64":"`+payload+`"}`)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.JSONEq(t, `{"success":true,"assetId":"image-asset-1"}`, rec.Body.String())

		_, format, err := image.Decode(bytes.NewReader(st.jpeg))
		require.NoError(t, err)
		assert.Equal(t, "jpeg", format)
		assert.Equal(t, "deal-1743591600000.jpg", st.filename)
	}
}

func TestUploadImageRejectsBadInput(t *testing.T) {
	router := newTestRouter(&fakeExtractor{}, &fakeStore{})

	for _, body := range []string{`{}`, `{"imageBase64":"%%%not base64%%%"}`, `{"imageBase64":"aGVsbG8="}`} {
		rec := do(router, http.MethodPost, "/api/upload-image", body)
		assert.Equal(t, http.StatusBadRequest, rec.Code, body)
	}
}

func TestUploadImageStoreFailure(t *testing.T) {
	st := &fakeStore{err: errors.NewUpload("sanity", "image: status 413: too large", nil)}
	router := newTestRouter(&fakeExtractor{}, st)

	rec := do(router, http.MethodPost, "/api/upload-image", `{"imageBase64":"`+testPNGBase64(t)+`"}`)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, decode(t, rec)["error"], "status 413")
}

func TestUploadDeal(t *testing.T) {
	st := &fakeStore{}
	router := newTestRouter(&fakeExtractor{}, st)

	rec := do(router, http.MethodPost, "/api/upload-deal", `{"deal":{
		"name_ar":"عرض خاص","name_en":"offer special",
		"description_ar":"عرض مميز","description_en":"special offer",
		"price":99,"slug":"offer-special",
		"validFrom":"2025-04-01","validTo":"2025-04-08",
		"store":"restaurant-1","imageAssetId":"image-asset-1"}}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.JSONEq(t, `{"success":true,"dealId":"offer-special"}`, rec.Body.String())

	assert.Equal(t, "restaurant-1", st.upload.Store)
	assert.Equal(t, "image-asset-1", st.upload.ImageAssetID)
	assert.Equal(t, 99, st.upload.Price)
	assert.Equal(t, "2025-04-01", st.upload.ValidFrom.String())
}

func TestUploadDealFillsMissingWindow(t *testing.T) {
	st := &fakeStore{}
	router := newTestRouter(&fakeExtractor{}, st)

	rec := do(router, http.MethodPost, "/api/upload-deal", `{"deal":{"slug":"x","store":"s"}}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "2025-04-02", st.upload.ValidFrom.String())
	assert.Equal(t, "2025-04-09", st.upload.ValidTo.String())
}

func TestUploadDealValidation(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"missing slug", `{"deal":{"store":"s"}}`},
		{"missing store", `{"deal":{"slug":"x"}}`},
		{"negative price", `{"deal":{"slug":"x","store":"s","price":-5}}`},
		{"bad date", `{"deal":{"slug":"x","store":"s","validFrom":"01/04/2025"}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := &fakeStore{}
			router := newTestRouter(&fakeExtractor{}, st)

			rec := do(router, http.MethodPost, "/api/upload-deal", tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, 0, st.uploadCalls)
		})
	}
}

func TestBodyLimit(t *testing.T) {
	router := newTestRouter(&fakeExtractor{}, &fakeStore{})

	huge := `{"imageBase64":"` + strings.Repeat("A", MaxBodyBytes+1) + `"}`
	rec := do(router, http.MethodPost, "/api/upload-image", huge)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestDecodeBase64Image(t *testing.T) {
	data, err := decodeBase64Image("aW1n")
	require.NoError(t, err)
	assert.Equal(t, "img", string(data))

	data, err = decodeBase64Image("data:image/jpeg;base64,aW1nMQ")
	require.NoError(t, err)
	assert.Equal(t, "img1", string(data))

	_, err = decodeBase64Image("")
	assert.Error(t, err)
	_, err = decodeBase64Image("!!")
	assert.Error(t, err)
}
