// Package session wires one browser page to the capture, extraction, scan
// and publish pipeline.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/stealth"

	"github.com/guiyumin/vsniff/internal/core/capture"
	"github.com/guiyumin/vsniff/internal/core/extractor"
	"github.com/guiyumin/vsniff/internal/core/media"
	"github.com/guiyumin/vsniff/internal/core/publish"
	"github.com/guiyumin/vsniff/internal/core/scanner"
)

// DefaultNavigateTimeout bounds the initial page load
const DefaultNavigateTimeout = 30 * time.Second

// Options configure a Session
type Options struct {
	Filter   *capture.Filter
	Registry *extractor.Registry
	Scan     scanner.Options

	// NavigateTimeout bounds Navigate plus WaitLoad
	NavigateTimeout time.Duration

	// Listener, if set, receives every batch from before navigation starts
	Listener publish.Listener

	Logger *slog.Logger
}

// Session is one tapped and scanned page. Every batch it finds is published
// on its Publisher and accumulated for Collect without duplicates.
type Session struct {
	opts   Options
	logger *slog.Logger

	pub   *publish.Publisher
	dedup *publish.Dedup

	page    *rod.Page
	tap     *capture.PageTap
	scanner *scanner.Scanner

	cancel context.CancelFunc
	done   chan struct{}

	mu        sync.Mutex
	pageURL   string
	collected []media.Candidate

	closeOnce sync.Once
}

func newSession(pageURL string, opts Options) *Session {
	if opts.Registry == nil {
		opts.Registry = extractor.DefaultRegistry()
	}
	if opts.NavigateTimeout <= 0 {
		opts.NavigateTimeout = DefaultNavigateTimeout
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	s := &Session{
		opts:    opts,
		logger:  logger,
		pub:     publish.New(logger),
		dedup:   publish.NewDedup(),
		pageURL: pageURL,
		done:    make(chan struct{}),
	}
	s.pub.Subscribe(s.accumulate)
	if opts.Listener != nil {
		s.pub.Subscribe(opts.Listener)
	}
	return s
}

// Open creates a stealth page on browser, taps it and navigates to pageURL.
// The DOM scanner starts once the page has loaded. A navigation that times
// out keeps the session open with whatever was captured so far.
func Open(ctx context.Context, browser *rod.Browser, pageURL string, opts Options) (*Session, error) {
	s := newSession(pageURL, opts)

	page, err := stealth.Page(browser)
	if err != nil {
		return nil, fmt.Errorf("failed to create page: %w", err)
	}
	s.page = page

	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	tap, err := capture.Install(runCtx, page, s.opts.Filter, s.onExchange)
	if err != nil {
		cancel()
		page.Close()
		return nil, err
	}
	s.tap = tap

	navCtx, navCancel := context.WithTimeout(runCtx, s.opts.NavigateTimeout)
	defer navCancel()
	if err := page.Context(navCtx).Navigate(pageURL); err != nil {
		s.Close()
		return nil, fmt.Errorf("failed to navigate to %s: %w", pageURL, err)
	}
	if err := page.Context(navCtx).WaitLoad(); err != nil {
		if !errors.Is(err, context.DeadlineExceeded) {
			s.Close()
			return nil, fmt.Errorf("failed to load %s: %w", pageURL, err)
		}
		s.logger.Warn("page load timed out, continuing", "url", pageURL)
	}

	s.scanner = scanner.New(scanner.NewRodCollector(page), s.pub, s.opts.Scan)
	go func() {
		defer close(s.done)
		s.scanner.Run(runCtx)
	}()

	return s, nil
}

// Publisher returns the session's publisher for live subscribers
func (s *Session) Publisher() *publish.Publisher {
	return s.pub
}

// PageURL returns the last known page URL
func (s *Session) PageURL() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pageURL
}

// onExchange dispatches a captured exchange and publishes one batch per rule
// that found something
func (s *Session) onExchange(ex capture.Exchange) {
	pageURL := s.PageURL()
	for _, out := range s.opts.Registry.Dispatch(ex) {
		if len(out.Candidates) == 0 {
			continue
		}
		for i := range out.Candidates {
			if out.Candidates[i].PageURL == "" {
				out.Candidates[i].PageURL = pageURL
			}
		}
		s.pub.Publish(publish.Batch{Source: out.Rule, PageURL: pageURL, Candidates: out.Candidates})
	}
}

func (s *Session) accumulate(b publish.Batch) {
	fresh := s.dedup.Filter(b)

	s.mu.Lock()
	defer s.mu.Unlock()
	if b.Source == media.SourceDOM && b.PageURL != "" {
		s.pageURL = b.PageURL
	}
	s.collected = append(s.collected, fresh.Candidates...)
}

// Candidates returns everything found so far, each asset once, in discovery order
func (s *Session) Candidates() []media.Candidate {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]media.Candidate, len(s.collected))
	copy(out, s.collected)
	return out
}

// Collect waits for d or until ctx is done, runs a last DOM scan and returns
// the candidates found
func (s *Session) Collect(ctx context.Context, d time.Duration) []media.Candidate {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
	case <-timer.C:
	}

	if s.scanner != nil && ctx.Err() == nil {
		if _, err := s.scanner.ScanNow(ctx); err != nil {
			s.logger.Debug("final dom scan failed", "error", err)
		}
	}
	return s.Candidates()
}

// Close stops scanning, removes the tap and closes the page
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		if s.cancel != nil {
			s.cancel()
		}
		if s.scanner != nil {
			<-s.done
		}
		if s.page != nil {
			capture.Uninstall(string(s.page.TargetID))
			if err := s.page.Close(); err != nil {
				s.logger.Debug("page close failed", "error", err)
			}
		}
	})
}
