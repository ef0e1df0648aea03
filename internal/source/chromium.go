package source

import (
	"context"
	"fmt"
	"time"

	"github.com/chromedp/chromedp"

	appLog "confcal/internal/log"
)

const defaultChromiumTimeout = 30 * time.Second

// ChromiumFetcher renders the agenda in headless Chromium and returns the
// resulting DOM. Use it for agenda pages that build their markup in the
// browser.
type ChromiumFetcher struct {
	url     string
	timeout time.Duration
	// waitSelector must be visible before the DOM is captured.
	waitSelector string
}

func NewChromiumFetcher(pageURL string, timeout time.Duration) *ChromiumFetcher {
	if timeout <= 0 {
		timeout = defaultChromiumTimeout
	}
	return &ChromiumFetcher{
		url:          pageURL,
		timeout:      timeout,
		waitSelector: "body",
	}
}

func (f *ChromiumFetcher) Fetch(parentCtx context.Context) (string, error) {
	if f.url == "" {
		return "", fmt.Errorf("chromium fetch: URL is required")
	}

	ctx, cancel := chromedp.NewContext(parentCtx)
	defer cancel()

	// Apply timeout to the entire navigation sequence.
	ctx, timeoutCancel := context.WithTimeout(ctx, f.timeout)
	defer timeoutCancel()

	var html string
	tasks := chromedp.Tasks{
		chromedp.Navigate(f.url),
		chromedp.WaitReady(f.waitSelector, chromedp.ByQuery),
		// Small extra delay for client-side rendering to settle.
		chromedp.Sleep(500 * time.Millisecond),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	}

	if err := chromedp.Run(ctx, tasks); err != nil {
		return "", fmt.Errorf("chromium fetch: %w", err)
	}

	appLog.Info("page rendered", "url", redactURL(f.url), "bytes", len(html))
	return html, nil
}
