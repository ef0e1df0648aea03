package source

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"time"

	appLog "confcal/internal/log"
)

const (
	defaultTimeout   = 15 * time.Second
	defaultUserAgent = "confcal/1.0 (+agenda calendar feed)"
	maxPageBytes     = 16 << 20
)

// cacheEntry holds HTTP cache metadata for the agenda URL.
type cacheEntry struct {
	URL          string    `json:"url"`
	ETag         string    `json:"etag,omitempty"`
	LastModified string    `json:"last_modified,omitempty"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// HTTPFetcher downloads the agenda page. With a cache directory it sends
// conditional requests (ETag / Last-Modified) and serves the last good body
// when the origin is unreachable or answers with an error status.
type HTTPFetcher struct {
	client    *http.Client
	url       string
	userAgent string
	cacheDir  string
}

// HTTPOptions configures NewHTTPFetcher. Zero values select defaults.
type HTTPOptions struct {
	Timeout   time.Duration
	UserAgent string
	// CacheDir enables the disk cache when non-empty.
	CacheDir string
	// Client overrides the HTTP client; Timeout is then ignored.
	Client *http.Client
}

func NewHTTPFetcher(pageURL string, opts HTTPOptions) *HTTPFetcher {
	client := opts.Client
	if client == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		client = &http.Client{Timeout: timeout}
	}
	ua := opts.UserAgent
	if ua == "" {
		ua = defaultUserAgent
	}
	return &HTTPFetcher{
		client:    client,
		url:       pageURL,
		userAgent: ua,
		cacheDir:  opts.CacheDir,
	}
}

// Fetch returns the page body as text.
func (f *HTTPFetcher) Fetch(ctx context.Context) (string, error) {
	if f.url == "" {
		return "", errors.New("agenda URL is empty")
	}

	var (
		meta       cacheEntry
		cachedBody []byte
		cachePath  string
	)
	if f.cacheDir != "" {
		cachePath = f.cachePathForURL()
		if err := os.MkdirAll(cachePath, 0o700); err != nil {
			appLog.Error("page cache dir unavailable", err, "dir", cachePath)
			cachePath = ""
		} else {
			meta, _ = loadCacheMeta(cachePath)
			cachedBody, _ = os.ReadFile(filepath.Join(cachePath, "body.html"))
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.url, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")
	if len(cachedBody) > 0 {
		if meta.ETag != "" {
			req.Header.Set("If-None-Match", meta.ETag)
		}
		if meta.LastModified != "" {
			req.Header.Set("If-Modified-Since", meta.LastModified)
		}
	}

	appLog.Debug("page fetch start", "url", redactURL(f.url))

	resp, err := f.client.Do(req)
	if err != nil {
		if len(cachedBody) > 0 {
			appLog.Error("page fetch network error, using cached body", err, "url", redactURL(f.url))
			return string(cachedBody), nil
		}
		return "", err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotModified:
		if len(cachedBody) == 0 {
			return "", errors.New("received 304 Not Modified but no cached body available")
		}
		appLog.Info("page not modified; using cache", "url", redactURL(f.url))
		return string(cachedBody), nil

	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		body, err := io.ReadAll(io.LimitReader(resp.Body, maxPageBytes))
		if err != nil {
			return "", err
		}
		if cachePath != "" {
			newMeta := cacheEntry{
				URL:          f.url,
				ETag:         resp.Header.Get("ETag"),
				LastModified: resp.Header.Get("Last-Modified"),
			}
			if err := saveCache(cachePath, newMeta, body); err != nil {
				// Log but still return the freshly fetched body.
				appLog.Error("page cache save failed", err, "url", redactURL(f.url))
			}
		}
		appLog.Info("page fetch success", "url", redactURL(f.url), "status", resp.StatusCode, "bytes", len(body))
		return string(body), nil

	default:
		if len(cachedBody) > 0 {
			appLog.Error("page fetch non-OK, using cached body", errors.New(resp.Status), "url", redactURL(f.url))
			return string(cachedBody), nil
		}
		return "", fmt.Errorf("unexpected status %s", resp.Status)
	}
}

func (f *HTTPFetcher) cachePathForURL() string {
	sum := sha256.Sum256([]byte(f.url))
	return filepath.Join(f.cacheDir, hex.EncodeToString(sum[:8]))
}

func loadCacheMeta(cachePath string) (cacheEntry, error) {
	var meta cacheEntry
	data, err := os.ReadFile(filepath.Join(cachePath, "meta.json"))
	if err != nil {
		return meta, err
	}
	if err := json.Unmarshal(data, &meta); err != nil {
		return cacheEntry{}, err
	}
	return meta, nil
}

func saveCache(cachePath string, meta cacheEntry, body []byte) error {
	// Write body first so meta never points at missing body.
	if err := os.WriteFile(filepath.Join(cachePath, "body.html"), body, 0o600); err != nil {
		return err
	}

	meta.UpdatedAt = time.Now().UTC()
	data, err := json.MarshalIndent(&meta, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(cachePath, "meta.json"), data, 0o600)
}

// redactURL keeps scheme and host only.
func redactURL(u string) string {
	parsed, err := url.Parse(u)
	if err != nil || parsed.Host == "" {
		return "(redacted)"
	}
	return parsed.Scheme + "://" + parsed.Host + "/...(redacted)"
}
