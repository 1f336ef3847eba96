package scanner

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/guiyumin/vsniff/internal/core/media"
	"github.com/guiyumin/vsniff/internal/core/publish"
)

// DefaultInterval between two timed scans
const DefaultInterval = 3 * time.Second

// Options tune a Scanner
type Options struct {
	Interval  time.Duration
	MaxImages int
	Images    bool
	Logger    *slog.Logger
}

// Result is what one scan found
type Result struct {
	PageURL string
	Videos  []media.Candidate
	Images  []media.Candidate
}

// Scanner scans a page on a timer and on demand and publishes what it finds.
// A batch identical to the previous one from the same scan kind is not
// published again.
type Scanner struct {
	collector Collector
	pub       *publish.Publisher
	opts      Options
	logger    *slog.Logger

	mu         sync.Mutex
	lastVideos string
	lastImages string
}

// New creates a Scanner publishing to pub
func New(c Collector, pub *publish.Publisher, opts Options) *Scanner {
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Scanner{collector: c, pub: pub, opts: opts, logger: logger}
}

// Run scans immediately and then on every tick until ctx is done
func (s *Scanner) Run(ctx context.Context) {
	ticker := time.NewTicker(s.opts.Interval)
	defer ticker.Stop()

	for {
		if _, err := s.ScanNow(ctx); err != nil && ctx.Err() == nil {
			s.logger.Debug("dom scan failed", "error", err)
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// ScanNow runs one scan and publishes its batches
func (s *Scanner) ScanNow(ctx context.Context) (Result, error) {
	pageURL, title, err := s.collector.Page(ctx)
	if err != nil {
		return Result{}, err
	}
	res := Result{PageURL: pageURL}

	els, err := s.collector.Elements(ctx)
	if err != nil {
		return res, err
	}
	res.Videos = ScanVideos(pageURL, title, els)

	if s.opts.Images {
		html, err := s.collector.HTML(ctx)
		if err != nil {
			return res, err
		}
		res.Images = ScanImages(pageURL, html, s.opts.MaxImages)
	}

	s.mu.Lock()
	publishVideos := s.changed(&s.lastVideos, pageURL, res.Videos)
	publishImages := s.changed(&s.lastImages, pageURL, res.Images)
	s.mu.Unlock()

	if publishVideos {
		s.pub.Publish(publish.Batch{Source: media.SourceDOM, PageURL: pageURL, Candidates: res.Videos})
	}
	if publishImages {
		s.pub.Publish(publish.Batch{Source: media.SourceDOM, PageURL: pageURL, Candidates: res.Images})
	}
	return res, nil
}

// changed records the fingerprint of cands and reports whether it differs
// from the previous one
func (s *Scanner) changed(last *string, pageURL string, cands []media.Candidate) bool {
	keys := make([]string, 0, len(cands)+1)
	for _, c := range cands {
		primary := ""
		if c.IsPrimary {
			primary = "*"
		}
		keys = append(keys, primary+c.URL+"|"+c.Quality)
	}
	sort.Strings(keys)
	fp := pageURL + "\n" + strings.Join(keys, "\n")
	if fp == *last {
		return false
	}
	*last = fp
	return true
}
