package server

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/guiyumin/vsniff/internal/core/media"
	"github.com/guiyumin/vsniff/internal/core/publish"
)

const masterPlaylist = "#EXTM3U\n#EXT-X-STREAM-INF:BANDWIDTH=2000000,RESOLUTION=1280x720\n720.m3u8\n"

func newTestServer(t *testing.T, apiKey string, sniff SniffFunc) *Server {
	t.Helper()
	s := NewServer(Options{
		APIKey:        apiKey,
		MaxConcurrent: 1,
		Sniff: func(*publish.Publisher) SniffFunc {
			return sniff
		},
	})
	s.jobQueue.Start()
	t.Cleanup(func() { s.Stop(context.Background()) })
	return s
}

func do(t *testing.T, h http.Handler, method, path string, body any, header map[string]string) (*httptest.ResponseRecorder, Response) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var resp Response
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode %s %s: %v (%s)", method, path, err, rec.Body.String())
	}
	return rec, resp
}

func TestHealth(t *testing.T) {
	s := newTestServer(t, "", nil)
	rec, resp := do(t, s.Handler(), http.MethodGet, "/api/health", nil, nil)
	if rec.Code != http.StatusOK || resp.Code != 200 {
		t.Errorf("health = %d %+v", rec.Code, resp)
	}
}

func TestAuthMiddleware(t *testing.T) {
	s := newTestServer(t, "secret", nil)

	tests := []struct {
		name   string
		path   string
		header map[string]string
		want   int
	}{
		{"health is open", "/api/health", nil, http.StatusOK},
		{"missing key", "/api/jobs", nil, http.StatusUnauthorized},
		{"wrong key", "/api/jobs", map[string]string{"X-API-Key": "nope"}, http.StatusUnauthorized},
		{"right key", "/api/jobs", map[string]string{"X-API-Key": "secret"}, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, _ := do(t, s.Handler(), http.MethodGet, tt.path, nil, tt.header)
			if rec.Code != tt.want {
				t.Errorf("status = %d; want %d", rec.Code, tt.want)
			}
		})
	}
}

func TestParse(t *testing.T) {
	s := newTestServer(t, "", nil)

	var relayed []publish.Batch
	s.Relay().Subscribe(func(b publish.Batch) { relayed = append(relayed, b) })

	rec, resp := do(t, s.Handler(), http.MethodPost, "/api/parse", ParseRequest{
		RequestURL: "https://cdn.example/master.m3u8",
		Body:       masterPlaylist,
	}, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}

	data := resp.Data.(map[string]any)
	cands := data["candidates"].([]any)
	if len(cands) == 0 {
		t.Fatal("no candidates")
	}
	if data["hostname"] != "cdn.example" {
		t.Errorf("hostname = %v", data["hostname"])
	}
	if len(relayed) != 1 || relayed[0].Source != "hls" {
		t.Errorf("relayed = %+v", relayed)
	}

	rec, _ = do(t, s.Handler(), http.MethodPost, "/api/parse", map[string]string{"body": "x"}, nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("missing request_url: status = %d", rec.Code)
	}
}

func TestSniffJobLifecycle(t *testing.T) {
	sniff := func(ctx context.Context, url string, wait time.Duration, onBatch func()) ([]media.Candidate, error) {
		onBatch()
		return []media.Candidate{{URL: "https://cdn.example/v.mp4", Kind: media.KindVideo, Quality: "720p"}}, nil
	}
	s := newTestServer(t, "", sniff)

	rec, resp := do(t, s.Handler(), http.MethodPost, "/api/sniff", SniffRequest{URL: "https://page.example/"}, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	id := resp.Data.(map[string]any)["id"].(string)

	job := waitForJob(t, s, id)
	if job.Status != JobStatusCompleted || job.Batches != 1 || len(job.Candidates) != 1 {
		t.Errorf("job = %+v", job)
	}

	rec, resp = do(t, s.Handler(), http.MethodGet, "/api/status/"+id, nil, nil)
	if rec.Code != http.StatusOK || resp.Message != string(JobStatusCompleted) {
		t.Errorf("status endpoint = %d %+v", rec.Code, resp)
	}

	rec, _ = do(t, s.Handler(), http.MethodDelete, "/api/jobs/"+id, nil, nil)
	if rec.Code != http.StatusOK {
		t.Errorf("remove finished job = %d", rec.Code)
	}
	rec, _ = do(t, s.Handler(), http.MethodGet, "/api/status/"+id, nil, nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("removed job still reported: %d", rec.Code)
	}
}

func TestSniffRejectsBadURL(t *testing.T) {
	s := newTestServer(t, "", nil)
	rec, _ := do(t, s.Handler(), http.MethodPost, "/api/sniff", SniffRequest{URL: "file:///etc/passwd"}, nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d", rec.Code)
	}
}

func TestCancelRunningJob(t *testing.T) {
	started := make(chan struct{})
	sniff := func(ctx context.Context, url string, wait time.Duration, onBatch func()) ([]media.Candidate, error) {
		close(started)
		<-ctx.Done()
		return nil, ctx.Err()
	}
	s := newTestServer(t, "", sniff)

	job, err := s.jobQueue.AddJob("https://page.example/", time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	<-started

	rec, resp := do(t, s.Handler(), http.MethodDelete, "/api/jobs/"+job.ID, nil, nil)
	if rec.Code != http.StatusOK || resp.Message != "job cancelled" {
		t.Errorf("cancel = %d %+v", rec.Code, resp)
	}
	if got := waitForJob(t, s, job.ID); got.Status != JobStatusCancelled {
		t.Errorf("status = %s; want cancelled", got.Status)
	}
}

func TestFailedJob(t *testing.T) {
	sniff := func(context.Context, string, time.Duration, func()) ([]media.Candidate, error) {
		return nil, errors.New("browser unavailable")
	}
	s := newTestServer(t, "", sniff)

	job, _ := s.jobQueue.AddJob("https://page.example/", time.Second)
	got := waitForJob(t, s, job.ID)
	if got.Status != JobStatusFailed || got.Error != "browser unavailable" {
		t.Errorf("job = %+v", got)
	}
}

func TestWaitDuration(t *testing.T) {
	tests := map[int]time.Duration{
		0:     DefaultWait,
		-3:    DefaultWait,
		5:     5 * time.Second,
		86400: MaxWait,
	}
	for in, want := range tests {
		if got := waitDuration(in); got != want {
			t.Errorf("waitDuration(%d) = %v; want %v", in, got, want)
		}
	}
}

func TestCleanupOldJobs(t *testing.T) {
	jq := NewJobQueue(1, nil)
	jq.jobs["old"] = &Job{ID: "old", Status: JobStatusCompleted, UpdatedAt: time.Now().Add(-2 * time.Hour)}
	jq.jobs["running"] = &Job{ID: "running", Status: JobStatusSniffing, UpdatedAt: time.Now().Add(-2 * time.Hour)}
	jq.jobs["fresh"] = &Job{ID: "fresh", Status: JobStatusFailed, UpdatedAt: time.Now()}

	jq.cleanupOldJobs(time.Now().Add(-time.Hour))

	if _, ok := jq.jobs["old"]; ok {
		t.Error("old finished job kept")
	}
	if len(jq.jobs) != 2 {
		t.Errorf("jobs = %d; want 2", len(jq.jobs))
	}
}

func TestEventsStreamDedupedBatches(t *testing.T) {
	s := newTestServer(t, "", nil)
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL+"/api/events", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	reader := bufio.NewReader(resp.Body)
	readEvent := func() (string, string) {
		var event, data string
		for {
			line, err := reader.ReadString('\n')
			if err != nil {
				t.Fatalf("read stream: %v", err)
			}
			line = strings.TrimRight(line, "\n")
			switch {
			case strings.HasPrefix(line, "event:"):
				event = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
			case strings.HasPrefix(line, "data:"):
				data = strings.TrimSpace(strings.TrimPrefix(line, "data:"))
			case line == "" && event != "":
				return event, data
			}
		}
	}

	if ev, _ := readEvent(); ev != "ready" {
		t.Fatalf("first event = %q; want ready", ev)
	}

	batch := publish.Batch{
		Source:     "hls",
		PageURL:    "https://page.example/",
		Candidates: []media.Candidate{{URL: "https://cdn.example/a.m3u8", Quality: "720p", Playlist: true}},
	}
	s.Relay().Publish(batch)
	s.Relay().Publish(batch)
	batch.Candidates = append(batch.Candidates, media.Candidate{URL: "https://cdn.example/b.mp4", Quality: "1080p"})
	s.Relay().Publish(batch)

	ev, data := readEvent()
	if ev != "batch" || !strings.Contains(data, "a.m3u8") {
		t.Fatalf("event = %q %s", ev, data)
	}
	ev, data = readEvent()
	if ev != "batch" || strings.Contains(data, "a.m3u8") || !strings.Contains(data, "b.mp4") {
		t.Errorf("second event should only carry the new asset: %q %s", ev, data)
	}
}

func waitForJob(t *testing.T, s *Server, id string) *Job {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		job := s.jobQueue.GetJob(id)
		if job != nil && job.Status.finished() {
			return job
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("job %s did not finish", id)
	return nil
}
