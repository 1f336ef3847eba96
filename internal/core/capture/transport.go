package capture

import (
	"bytes"
	"io"
	"log/slog"
	"net/http"
	"sync"
)

// Transport is an http.RoundTripper that passes every request through to Base
// unchanged and, once a response body has been fully read by the caller,
// emits it as an Exchange if the filter accepts it. The caller sees exactly
// the bytes and errors Base produced.
type Transport struct {
	Base   http.RoundTripper
	Filter *Filter
	Sink   Sink
}

// WrapTransport taps rt. Wrapping an already tapped transport returns it as is.
func WrapTransport(rt http.RoundTripper, filter *Filter, sink Sink) http.RoundTripper {
	if t, ok := rt.(*Transport); ok {
		return t
	}
	return &Transport{Base: rt, Filter: filter, Sink: sink}
}

// WrapClient installs the tap on c's transport, in place
func WrapClient(c *http.Client, filter *Filter, sink Sink) *http.Client {
	c.Transport = WrapTransport(c.Transport, filter, sink)
	return c
}

func (t *Transport) base() http.RoundTripper {
	if t.Base != nil {
		return t.Base
	}
	return http.DefaultTransport
}

// RoundTrip implements http.RoundTripper
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, err := t.base().RoundTrip(req)
	if err != nil || resp == nil {
		return resp, err
	}
	t.tap(req, resp)
	return resp, nil
}

func (t *Transport) tap(req *http.Request, resp *http.Response) {
	defer func() {
		if r := recover(); r != nil {
			slog.Debug("capture: transport tap recovered", "panic", r)
		}
	}()

	if t.Sink == nil || resp.Body == nil || resp.Body == http.NoBody {
		return
	}

	responseURL := req.URL.String()
	if resp.Request != nil && resp.Request.URL != nil {
		responseURL = resp.Request.URL.String()
	}
	contentType := resp.Header.Get("Content-Type")

	if !t.Filter.ShouldCapture(responseURL, contentType, resp.ContentLength, KindUnknown) {
		return
	}

	requestURL := req.URL.String()
	resp.Body = &tapBody{
		ReadCloser: resp.Body,
		onComplete: func(body []byte) {
			ex, err := newExchange(requestURL, requestURL, responseURL, contentType, body)
			if err != nil {
				slog.Debug("capture: dropped body", "url", responseURL, "error", err)
				return
			}
			t.Sink(ex)
		},
	}
}

// tapBody copies what the caller reads, up to one byte past the ceiling, and
// hands the copy to onComplete when the caller reaches EOF. Bodies abandoned
// before EOF or past the ceiling are never emitted.
type tapBody struct {
	io.ReadCloser
	buf        bytes.Buffer
	overflow   bool
	once       sync.Once
	onComplete func([]byte)
}

func (b *tapBody) Read(p []byte) (int, error) {
	n, err := b.ReadCloser.Read(p)
	if n > 0 && !b.overflow {
		if b.buf.Len()+n > MaxBodyBytes {
			b.overflow = true
			b.buf = bytes.Buffer{}
		} else {
			b.buf.Write(p[:n])
		}
	}
	if err == io.EOF {
		b.once.Do(b.complete)
	}
	return n, err
}

func (b *tapBody) complete() {
	defer func() {
		if r := recover(); r != nil {
			slog.Debug("capture: sink panicked", "panic", r)
		}
	}()
	if b.overflow {
		slog.Debug("capture: body over ceiling dropped")
		return
	}
	b.onComplete(b.buf.Bytes())
}
