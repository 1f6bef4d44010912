package fetch

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dealmungchi/dealextractor/internal/capture"
	"github.com/dealmungchi/dealextractor/pkg/errors"
)

var pngHeader = []byte("\x89PNG\r\n\x1a\n0000")

func TestFetch(t *testing.T) {
	var gotCookie, gotUA string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if c, err := r.Cookie("c_user"); err == nil {
			gotCookie = c.Value
		}
		gotUA = r.Header.Get("User-Agent")
		w.Header().Set("Content-Type", "image/jpeg")
		w.Write([]byte("jpeg-bytes"))
	}))
	defer server.Close()

	f := NewImageFetcher(Options{})
	cookies := []capture.Cookie{
		{Name: "c_user", Value: "42", Domain: ".facebook.com"},
		{Name: ""},
	}

	res := f.Fetch(context.Background(), server.URL+"/v/deal.jpg", cookies)
	require.NoError(t, res.Err)
	assert.True(t, res.OK())
	assert.Equal(t, []byte("jpeg-bytes"), res.Bytes)
	assert.Equal(t, "image/jpeg", res.ContentType)
	assert.Equal(t, "42", gotCookie)
	assert.Equal(t, DefaultUserAgent, gotUA)
}

func TestFetchDetectsContentType(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/octet-stream")
		w.Write(pngHeader)
	}))
	defer server.Close()

	res := NewImageFetcher(Options{}).Fetch(context.Background(), server.URL, nil)
	require.NoError(t, res.Err)
	assert.Equal(t, "image/png", res.ContentType)
}

func TestFetchFailures(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/missing":
			http.NotFound(w, r)
		case "/empty":
			w.WriteHeader(http.StatusOK)
		case "/big":
			w.Write(bytes.Repeat([]byte("x"), 64))
		case "/slow":
			time.Sleep(200 * time.Millisecond)
			w.Write([]byte("late"))
		}
	}))
	defer server.Close()

	f := NewImageFetcher(Options{MaxBytes: 32, Timeout: 50 * time.Millisecond})

	tests := []struct {
		name string
		url  string
	}{
		{"not found", server.URL + "/missing"},
		{"empty body", server.URL + "/empty"},
		{"too large", server.URL + "/big"},
		{"timeout", server.URL + "/slow"},
		{"bad scheme", "ftp://example.com/a.jpg"},
		{"unparsable", "://nope"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := f.Fetch(context.Background(), tt.url, nil)
			require.Error(t, res.Err)
			assert.False(t, res.OK())
			assert.Nil(t, res.Bytes)
			assert.True(t, errors.IsType(res.Err, errors.ErrorTypeImageFetch))
		})
	}
}

func TestFetchCanceledContext(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("img"))
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res := NewImageFetcher(Options{}).Fetch(ctx, server.URL, nil)
	assert.Error(t, res.Err)
}
