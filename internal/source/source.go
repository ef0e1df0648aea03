// Package source retrieves the agenda page markup.
package source

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Fetcher returns the current agenda page markup.
type Fetcher interface {
	Fetch(ctx context.Context) (string, error)
}

const (
	KindHTTP     = "http"
	KindChromium = "chromium"
)

// Options are shared by all fetcher kinds.
type Options struct {
	Timeout  time.Duration
	CacheDir string
}

// New selects a fetcher implementation by kind.
func New(kind, pageURL string, opts Options) (Fetcher, error) {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "", KindHTTP:
		return NewHTTPFetcher(pageURL, HTTPOptions{Timeout: opts.Timeout, CacheDir: opts.CacheDir}), nil
	case KindChromium:
		return NewChromiumFetcher(pageURL, opts.Timeout), nil
	default:
		return nil, fmt.Errorf("unknown fetcher kind %q", kind)
	}
}
