package browser

import (
	"context"
	"fmt"
	"time"

	"github.com/go-rod/rod/lib/proto"
	"github.com/rs/zerolog/log"
)

// RodFetcher loads pages in headless Chrome and returns their rendered text
type RodFetcher struct {
	process *chromeProcess
	timeout time.Duration
}

// NewRodFetcher creates a fetcher. Chrome starts lazily on the first fetch.
func NewRodFetcher(cfg ChromeConfig) *RodFetcher {
	timeout := time.Duration(cfg.Timeout) * time.Second
	if timeout <= 0 {
		timeout = time.Duration(DefaultChromeConfig().Timeout) * time.Second
	}
	return &RodFetcher{
		process: newChromeProcess(cfg),
		timeout: timeout,
	}
}

// Fetch navigates a fresh tab to address and extracts title and body text
func (f *RodFetcher) Fetch(ctx context.Context, address string) (*Page, error) {
	b, err := f.process.connect()
	if err != nil {
		return nil, err
	}

	page, err := b.Context(ctx).Page(proto.TargetCreateTarget{URL: "about:blank"})
	if err != nil {
		return nil, &BrowserError{
			Code:    ErrCodeBrowserCrash,
			Message: fmt.Sprintf("Failed to open tab: %v", err),
		}
	}
	defer func() {
		if cerr := page.Close(); cerr != nil {
			log.Debug().Err(cerr).Msg("Failed to close tab")
		}
	}()

	page = page.Timeout(f.timeout)
	if err := page.Navigate(address); err != nil {
		return nil, &BrowserError{
			Code:    ErrCodeNavigation,
			Message: fmt.Sprintf("Navigation failed: %v", err),
		}
	}
	if err := page.WaitLoad(); err != nil {
		return nil, &BrowserError{
			Code:    ErrCodeTimeout,
			Message: fmt.Sprintf("Page did not finish loading: %v", err),
		}
	}

	info, err := page.Info()
	if err != nil {
		return nil, &BrowserError{
			Code:    ErrCodeNavigation,
			Message: fmt.Sprintf("Failed to read page info: %v", err),
		}
	}

	res, err := page.Eval(`() => document.body ? document.body.innerText : ""`)
	if err != nil {
		return nil, &BrowserError{
			Code:    ErrCodeNavigation,
			Message: fmt.Sprintf("Failed to extract text: %v", err),
		}
	}

	log.Debug().Str("url", info.URL).Str("title", info.Title).Msg("Page fetched")

	return &Page{
		URL:     info.URL,
		Title:   info.Title,
		Content: res.Value.Str(),
	}, nil
}

// Close shuts down the Chrome instance if one was started
func (f *RodFetcher) Close() error {
	return f.process.close()
}
