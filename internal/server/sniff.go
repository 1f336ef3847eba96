package server

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/guiyumin/vsniff/internal/core/media"
	"github.com/guiyumin/vsniff/internal/core/publish"
	"github.com/guiyumin/vsniff/internal/core/session"
)

// BrowserSniffer runs sniff jobs on one lazily launched browser. Each job
// gets its own page.
type BrowserSniffer struct {
	browserOpts session.BrowserOptions
	opts        session.Options
	logger      *slog.Logger

	mu      sync.Mutex
	browser *session.Browser
}

// NewBrowserSniffer creates a sniffer; the browser starts with the first job
func NewBrowserSniffer(browserOpts session.BrowserOptions, opts session.Options, logger *slog.Logger) *BrowserSniffer {
	if logger == nil {
		logger = slog.Default()
	}
	return &BrowserSniffer{browserOpts: browserOpts, opts: opts, logger: logger}
}

func (b *BrowserSniffer) get() (*session.Browser, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.browser != nil {
		return b.browser, nil
	}
	browser, err := session.Launch(b.browserOpts)
	if err != nil {
		return nil, err
	}
	b.logger.Info("browser launched", "visible", b.browserOpts.Visible)
	b.browser = browser
	return browser, nil
}

// Func returns a SniffFunc that forwards every batch to relay
func (b *BrowserSniffer) Func(relay *publish.Publisher) SniffFunc {
	return func(ctx context.Context, url string, wait time.Duration, onBatch func()) ([]media.Candidate, error) {
		browser, err := b.get()
		if err != nil {
			return nil, err
		}

		opts := b.opts
		opts.Listener = func(batch publish.Batch) {
			relay.Publish(batch)
			onBatch()
		}

		sess, err := session.Open(ctx, browser.Browser, url, opts)
		if err != nil {
			return nil, fmt.Errorf("sniff %s: %w", url, err)
		}
		defer sess.Close()

		cands := sess.Collect(ctx, wait)
		return cands, ctx.Err()
	}
}

// Close shuts the browser down if it was started
func (b *BrowserSniffer) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.browser == nil {
		return nil
	}
	err := b.browser.Close()
	b.browser = nil
	return err
}
