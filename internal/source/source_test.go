package source

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const page = `<html><body><div class="agenda-container"></div></body></html>`

func TestHTTPFetcher_FetchesBody(t *testing.T) {
	gotUA := make(chan string, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA <- r.Header.Get("User-Agent")
		_, _ = w.Write([]byte(page))
	}))
	defer srv.Close()

	f := NewHTTPFetcher(srv.URL+"/agenda", HTTPOptions{})
	body, err := f.Fetch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, page, body)
	assert.Equal(t, defaultUserAgent, <-gotUA)
}

func TestHTTPFetcher_ErrorStatusWithoutCache(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := NewHTTPFetcher(srv.URL, HTTPOptions{}).Fetch(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "503")
}

func TestHTTPFetcher_EmptyURL(t *testing.T) {
	_, err := NewHTTPFetcher("", HTTPOptions{}).Fetch(context.Background())
	assert.Error(t, err)
}

func TestHTTPFetcher_ConditionalRequestUsesCache(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		if r.Header.Get("If-None-Match") == `"v1"` {
			w.WriteHeader(http.StatusNotModified)
			return
		}
		w.Header().Set("ETag", `"v1"`)
		_, _ = w.Write([]byte(page))
	}))
	defer srv.Close()

	f := NewHTTPFetcher(srv.URL, HTTPOptions{CacheDir: t.TempDir()})

	first, err := f.Fetch(context.Background())
	require.NoError(t, err)
	second, err := f.Fetch(context.Background())
	require.NoError(t, err)

	assert.Equal(t, page, first)
	assert.Equal(t, page, second)
	assert.Equal(t, int32(2), calls.Load())
}

func TestHTTPFetcher_FallsBackToCacheOnErrorStatus(t *testing.T) {
	var fail atomic.Bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if fail.Load() {
			http.Error(w, "boom", http.StatusInternalServerError)
			return
		}
		_, _ = w.Write([]byte(page))
	}))
	defer srv.Close()

	f := NewHTTPFetcher(srv.URL, HTTPOptions{CacheDir: t.TempDir()})
	_, err := f.Fetch(context.Background())
	require.NoError(t, err)

	fail.Store(true)
	body, err := f.Fetch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, page, body)
}

func TestHTTPFetcher_FallsBackToCacheOnNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(page))
	}))

	dir := t.TempDir()
	f := NewHTTPFetcher(srv.URL, HTTPOptions{CacheDir: dir, Timeout: time.Second})
	_, err := f.Fetch(context.Background())
	require.NoError(t, err)

	srv.Close()
	body, err := f.Fetch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, page, body)

	uncached := NewHTTPFetcher(srv.URL, HTTPOptions{Timeout: time.Second})
	_, err = uncached.Fetch(context.Background())
	assert.Error(t, err)
}

func TestNew(t *testing.T) {
	f, err := New("", "https://example.com/agenda", Options{})
	require.NoError(t, err)
	assert.IsType(t, &HTTPFetcher{}, f)

	f, err = New("Chromium", "https://example.com/agenda", Options{Timeout: 5 * time.Second})
	require.NoError(t, err)
	require.IsType(t, &ChromiumFetcher{}, f)
	assert.Equal(t, 5*time.Second, f.(*ChromiumFetcher).timeout)

	_, err = New("ftp", "https://example.com/agenda", Options{})
	assert.Error(t, err)
}

func TestRedactURL(t *testing.T) {
	assert.Equal(t, "https://example.com/...(redacted)", redactURL("https://example.com/agenda?token=abc"))
	assert.Equal(t, "(redacted)", redactURL("not a url"))
}
