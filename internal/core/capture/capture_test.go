package capture

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/go-rod/rod/lib/proto"
	"github.com/ysmood/gson"
)

type recorder struct {
	mu  sync.Mutex
	got []Exchange
}

func (r *recorder) sink(ex Exchange) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.got = append(r.got, ex)
}

func (r *recorder) all() []Exchange {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Exchange(nil), r.got...)
}

func TestTransportPassesThroughAndEmits(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/video":
			w.Header().Set("Content-Type", "application/json")
			io.WriteString(w, `{ "url" : "/v/1.mp4" }`)
		case "/logo.png":
			w.Header().Set("Content-Type", "image/png")
			io.WriteString(w, "PNGDATA")
		}
	}))
	defer srv.Close()

	rec := &recorder{}
	client := WrapClient(&http.Client{}, nil, rec.sink)

	resp, err := client.Get(srv.URL + "/api/video")
	if err != nil {
		t.Fatal(err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()

	if string(body) != `{ "url" : "/v/1.mp4" }` {
		t.Errorf("caller body altered: %q", body)
	}

	resp, err = client.Get(srv.URL + "/logo.png")
	if err != nil {
		t.Fatal(err)
	}
	io.ReadAll(resp.Body)
	resp.Body.Close()

	got := rec.all()
	if len(got) != 1 {
		t.Fatalf("emitted %d exchanges; want 1", len(got))
	}
	ex := got[0]
	if ex.BodyText != `{"url":"/v/1.mp4"}` {
		t.Errorf("json body should be re-serialized compactly, got %q", ex.BodyText)
	}
	if ex.ResolvedURL != srv.URL+"/api/video" || ex.Hostname != "127.0.0.1" {
		t.Errorf("unexpected exchange %+v", ex)
	}
}

func TestTransportAbandonedBodyIsNotEmitted(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		io.WriteString(w, strings.Repeat("x", 1024))
	}))
	defer srv.Close()

	rec := &recorder{}
	client := WrapClient(&http.Client{}, nil, rec.sink)

	resp, err := client.Get(srv.URL)
	if err != nil {
		t.Fatal(err)
	}
	buf := make([]byte, 10)
	resp.Body.Read(buf)
	resp.Body.Close()

	if n := len(rec.all()); n != 0 {
		t.Errorf("emitted %d exchanges for an unfinished body", n)
	}
}

type failingTransport struct{}

func (failingTransport) RoundTrip(*http.Request) (*http.Response, error) {
	return nil, errors.New("boom")
}

func TestTransportPropagatesErrors(t *testing.T) {
	rt := WrapTransport(failingTransport{}, nil, func(Exchange) { t.Error("sink must not be called") })
	req, _ := http.NewRequest(http.MethodGet, "https://example.com/", nil)

	if _, err := rt.RoundTrip(req); err == nil || err.Error() != "boom" {
		t.Errorf("err = %v; want boom", err)
	}
}

func TestWrapTransportIsIdempotent(t *testing.T) {
	first := WrapTransport(nil, nil, func(Exchange) {})
	second := WrapTransport(first, nil, func(Exchange) {})
	if first != second {
		t.Error("wrapping a tapped transport should return it unchanged")
	}
}

func TestTransportSinkPanicDoesNotReachCaller(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "hello")
	}))
	defer srv.Close()

	client := WrapClient(&http.Client{}, nil, func(Exchange) { panic("listener bug") })
	resp, err := client.Get(srv.URL)
	if err != nil {
		t.Fatal(err)
	}
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil || string(body) != "hello" {
		t.Errorf("body = %q, err = %v", body, err)
	}
}

func headers(kv ...string) proto.NetworkHeaders {
	h := proto.NetworkHeaders{}
	for i := 0; i+1 < len(kv); i += 2 {
		h[kv[i]] = gson.New(kv[i+1])
	}
	return h
}

func TestPageTapCorrelatesEvents(t *testing.T) {
	bodies := map[proto.NetworkRequestID]string{
		"1": `{"a": 1}`,
		"2": "#EXTM3U",
	}
	fetch := func(id proto.NetworkRequestID) ([]byte, error) {
		b, ok := bodies[id]
		if !ok {
			return nil, errors.New("no body")
		}
		return []byte(b), nil
	}
	rec := &recorder{}
	tap := NewPageTap("target", nil, fetch, rec.sink)

	tap.OnRequestWillBeSent(&proto.NetworkRequestWillBeSent{
		RequestID:   "0",
		DocumentURL: "https://site.example/watch",
		Type:        proto.NetworkResourceTypeDocument,
		Request:     &proto.NetworkRequest{URL: "https://site.example/watch"},
	})
	tap.OnRequestWillBeSent(&proto.NetworkRequestWillBeSent{
		RequestID: "1",
		Type:      proto.NetworkResourceTypeFetch,
		Request:   &proto.NetworkRequest{URL: "https://api.site.example/info"},
	})
	tap.OnRequestWillBeSent(&proto.NetworkRequestWillBeSent{
		RequestID: "2",
		Type:      proto.NetworkResourceTypeXHR,
		Request:   &proto.NetworkRequest{URL: "https://cdn.site.example/master.m3u8"},
	})
	tap.OnRequestWillBeSent(&proto.NetworkRequestWillBeSent{
		RequestID: "3",
		Type:      proto.NetworkResourceTypeImage,
		Request:   &proto.NetworkRequest{URL: "https://cdn.site.example/poster"},
	})

	tap.OnResponseReceived(&proto.NetworkResponseReceived{
		RequestID: "1",
		Type:      proto.NetworkResourceTypeFetch,
		Response: &proto.NetworkResponse{
			URL:     "https://api.site.example/info",
			Headers: headers("content-type", "application/json"),
		},
	})
	tap.OnResponseReceived(&proto.NetworkResponseReceived{
		RequestID: "2",
		Type:      proto.NetworkResourceTypeXHR,
		Response:  &proto.NetworkResponse{URL: "https://cdn.site.example/master.m3u8"},
	})
	tap.OnResponseReceived(&proto.NetworkResponseReceived{
		RequestID: "3",
		Type:      proto.NetworkResourceTypeImage,
		Response:  &proto.NetworkResponse{URL: "https://cdn.site.example/poster", MIMEType: "image/jpeg"},
	})

	// Completion order differs from call order
	tap.OnLoadingFinished(&proto.NetworkLoadingFinished{RequestID: "2"})
	tap.OnLoadingFinished(&proto.NetworkLoadingFinished{RequestID: "3"})
	tap.OnLoadingFinished(&proto.NetworkLoadingFinished{RequestID: "1"})

	got := rec.all()
	if len(got) != 2 {
		t.Fatalf("emitted %d exchanges; want 2: %+v", len(got), got)
	}
	if got[0].Hostname != "cdn.site.example" || got[0].BodyText != "#EXTM3U" {
		t.Errorf("first exchange = %+v; want the manifest", got[0])
	}
	if got[1].BodyText != `{"a":1}` || got[1].Hostname != "api.site.example" {
		t.Errorf("second exchange = %+v", got[1])
	}
	if tap.Pending() != 1 {
		t.Errorf("pending = %d; want only the document request left", tap.Pending())
	}
}

func TestPageTapDropsUnreadableAndFailed(t *testing.T) {
	rec := &recorder{}
	fetch := func(proto.NetworkRequestID) ([]byte, error) { return nil, errors.New("evicted") }
	tap := NewPageTap("target", nil, fetch, rec.sink)

	tap.OnRequestWillBeSent(&proto.NetworkRequestWillBeSent{RequestID: "1", Request: &proto.NetworkRequest{URL: "https://e.com/api"}})
	tap.OnResponseReceived(&proto.NetworkResponseReceived{RequestID: "1", Response: &proto.NetworkResponse{URL: "https://e.com/api"}})
	tap.OnLoadingFinished(&proto.NetworkLoadingFinished{RequestID: "1"})

	tap.OnRequestWillBeSent(&proto.NetworkRequestWillBeSent{RequestID: "2", Request: &proto.NetworkRequest{URL: "https://e.com/api2"}})
	tap.OnLoadingFailed(&proto.NetworkLoadingFailed{RequestID: "2"})

	if len(rec.all()) != 0 {
		t.Error("nothing should be emitted")
	}
	if tap.Pending() != 0 {
		t.Errorf("pending = %d; want 0", tap.Pending())
	}
}

func TestPageTapDropsOversizedBody(t *testing.T) {
	rec := &recorder{}
	fetch := func(proto.NetworkRequestID) ([]byte, error) {
		return make([]byte, MaxBodyBytes+1), nil
	}
	tap := NewPageTap("target", nil, fetch, rec.sink)

	tap.OnResponseReceived(&proto.NetworkResponseReceived{RequestID: "1", Response: &proto.NetworkResponse{URL: "https://e.com/master.m3u8"}})
	tap.OnLoadingFinished(&proto.NetworkLoadingFinished{RequestID: "1"})

	if len(rec.all()) != 0 {
		t.Error("oversized body should be dropped silently")
	}
}
