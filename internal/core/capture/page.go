package capture

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
)

// BodyFetcher returns the buffered body of a finished request
type BodyFetcher func(id proto.NetworkRequestID) ([]byte, error)

type pendingRequest struct {
	requestURL  string
	responseURL string
	contentType string
	length      int64
	kind        ResponseKind
	responded   bool
	seen        time.Time
}

// PageTap correlates the CDP Network events of one page into exchanges.
// Events are handled on the page's event loop, so exchanges are emitted in
// the order their loads finish.
type PageTap struct {
	target string
	filter *Filter
	fetch  BodyFetcher
	sink   Sink

	pending   map[proto.NetworkRequestID]*pendingRequest
	pendingMu sync.Mutex
	docURL    string

	cancel    context.CancelFunc
	done      chan struct{}
	closeOnce sync.Once
}

// NewPageTap creates a tap that is fed by calling its On* handlers
func NewPageTap(target string, filter *Filter, fetch BodyFetcher, sink Sink) *PageTap {
	return &PageTap{
		target:  target,
		filter:  filter,
		fetch:   fetch,
		sink:    sink,
		pending: make(map[proto.NetworkRequestID]*pendingRequest),
		done:    make(chan struct{}),
	}
}

// Target returns the CDP target ID this tap belongs to
func (t *PageTap) Target() string {
	return t.target
}

// OnRequestWillBeSent records call-time metadata
func (t *PageTap) OnRequestWillBeSent(ev *proto.NetworkRequestWillBeSent) {
	if ev == nil || ev.Request == nil {
		return
	}
	t.pendingMu.Lock()
	defer t.pendingMu.Unlock()

	if ev.Type == proto.NetworkResourceTypeDocument && ev.DocumentURL != "" {
		t.docURL = ev.DocumentURL
	}
	t.pending[ev.RequestID] = &pendingRequest{
		requestURL: ev.Request.URL,
		length:     -1,
		kind:       KindFromResourceType(ev.Type),
		seen:       time.Now(),
	}
}

// OnResponseReceived records response metadata. Missing headers are treated as empty.
func (t *PageTap) OnResponseReceived(ev *proto.NetworkResponseReceived) {
	if ev == nil || ev.Response == nil {
		return
	}
	t.pendingMu.Lock()
	defer t.pendingMu.Unlock()

	p, ok := t.pending[ev.RequestID]
	if !ok {
		// Requests issued before the tap was installed
		p = &pendingRequest{requestURL: ev.Response.URL, seen: time.Now()}
		t.pending[ev.RequestID] = p
	}
	p.responded = true
	p.responseURL = ev.Response.URL
	p.contentType = headerValue(ev.Response.Headers, "Content-Type")
	if p.contentType == "" {
		p.contentType = ev.Response.MIMEType
	}
	p.length = -1
	if cl := headerValue(ev.Response.Headers, "Content-Length"); cl != "" {
		if n, err := strconv.ParseInt(strings.TrimSpace(cl), 10, 64); err == nil {
			p.length = n
		}
	}
	if k := KindFromResourceType(ev.Type); k != KindUnknown {
		p.kind = k
	}
}

// OnLoadingFinished runs the filter and, if accepted, fetches and emits the body
func (t *PageTap) OnLoadingFinished(ev *proto.NetworkLoadingFinished) {
	if ev == nil {
		return
	}
	t.pendingMu.Lock()
	p, ok := t.pending[ev.RequestID]
	if ok {
		delete(t.pending, ev.RequestID)
	}
	base := t.docURL
	t.pendingMu.Unlock()

	if !ok || !p.responded {
		return
	}

	defer func() {
		if r := recover(); r != nil {
			slog.Debug("capture: page tap recovered", "target", t.target, "panic", r)
		}
	}()

	url := p.responseURL
	if url == "" {
		url = p.requestURL
	}
	if !t.filter.ShouldCapture(url, p.contentType, p.length, p.kind) {
		return
	}
	if t.fetch == nil || t.sink == nil {
		return
	}

	body, err := t.fetch(ev.RequestID)
	if err != nil {
		slog.Debug("capture: body unreadable", "url", url, "error", err)
		return
	}
	if base == "" {
		base = p.requestURL
	}
	ex, err := newExchange(base, p.requestURL, p.responseURL, p.contentType, body)
	if err != nil {
		slog.Debug("capture: dropped body", "url", url, "error", err)
		return
	}
	t.sink(ex)
}

// OnLoadingFailed forgets the request
func (t *PageTap) OnLoadingFailed(ev *proto.NetworkLoadingFailed) {
	if ev == nil {
		return
	}
	t.pendingMu.Lock()
	delete(t.pending, ev.RequestID)
	t.pendingMu.Unlock()
}

// Pending returns the number of in-flight requests being tracked
func (t *PageTap) Pending() int {
	t.pendingMu.Lock()
	defer t.pendingMu.Unlock()
	return len(t.pending)
}

func (t *PageTap) cleanupLoop() {
	ticker := time.NewTicker(1 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			t.cleanupStale(time.Now().Add(-5 * time.Minute))
		case <-t.done:
			return
		}
	}
}

func (t *PageTap) cleanupStale(threshold time.Time) {
	t.pendingMu.Lock()
	defer t.pendingMu.Unlock()

	for id, p := range t.pending {
		if p.seen.Before(threshold) {
			delete(t.pending, id)
		}
	}
}

// Close stops event delivery and the cleanup loop
func (t *PageTap) Close() {
	t.closeOnce.Do(func() {
		if t.cancel != nil {
			t.cancel()
		}
		close(t.done)
	})
}

var (
	installMu sync.Mutex
	installed = map[string]*PageTap{}
)

// Install taps the Network domain of page. Installing twice on the same target
// is a no-op that returns the existing tap.
func Install(ctx context.Context, page *rod.Page, filter *Filter, sink Sink) (*PageTap, error) {
	target := string(page.TargetID)

	installMu.Lock()
	defer installMu.Unlock()

	if tap, ok := installed[target]; ok {
		return tap, nil
	}

	if err := (proto.NetworkEnable{}).Call(page); err != nil {
		return nil, fmt.Errorf("failed to enable network domain: %w", err)
	}

	fetch := func(id proto.NetworkRequestID) ([]byte, error) {
		res, err := proto.NetworkGetResponseBody{RequestID: id}.Call(page)
		if err != nil {
			return nil, err
		}
		if res.Base64Encoded {
			return base64.StdEncoding.DecodeString(res.Body)
		}
		return []byte(res.Body), nil
	}

	tap := NewPageTap(target, filter, fetch, sink)
	listenCtx, cancel := context.WithCancel(ctx)
	tap.cancel = cancel

	wait := page.Context(listenCtx).EachEvent(
		tap.OnRequestWillBeSent,
		tap.OnResponseReceived,
		tap.OnLoadingFinished,
		tap.OnLoadingFailed,
	)
	go wait()
	go tap.cleanupLoop()

	installed[target] = tap
	slog.Debug("capture: page tap installed", "target", target)
	return tap, nil
}

// Uninstall removes and closes the tap on target, if any
func Uninstall(target string) {
	installMu.Lock()
	tap, ok := installed[target]
	delete(installed, target)
	installMu.Unlock()

	if ok {
		tap.Close()
	}
}

// Installed reports whether target is tapped
func Installed(target string) bool {
	installMu.Lock()
	defer installMu.Unlock()
	_, ok := installed[target]
	return ok
}

func headerValue(h proto.NetworkHeaders, name string) string {
	for k, v := range h {
		if strings.EqualFold(k, name) {
			return v.Str()
		}
	}
	return ""
}
