package extractor

import (
	"fmt"
	"testing"

	"github.com/guiyumin/vsniff/internal/core/capture"
	"github.com/guiyumin/vsniff/internal/core/media"
)

type fakeRule struct {
	name    string
	origins []Origin
	onLoad  func(body, requestURL string) Result
	calls   *int
}

func (f fakeRule) Name() string      { return f.name }
func (f fakeRule) Origins() []Origin { return f.origins }

func (f fakeRule) OnLoad(body, requestURL string) Result {
	if f.calls != nil {
		*f.calls++
	}
	if f.onLoad == nil {
		return NoMatch()
	}
	return f.onLoad(body, requestURL)
}

func one(u string) func(string, string) Result {
	return func(string, string) Result {
		return Found([]media.Candidate{{URL: u, Kind: media.KindVideo, Quality: "N/A"}})
	}
}

func exchange(rawURL, body string) capture.Exchange {
	return capture.Exchange{
		RequestURL:  rawURL,
		ResolvedURL: rawURL,
		Hostname:    media.Hostname(rawURL),
		BodyText:    body,
	}
}

func TestDispatchRunsFirstMatchingSiteRuleOnly(t *testing.T) {
	var first, second, generic int
	r := NewRegistry()
	r.Register(fakeRule{name: "first", origins: []Origin{Host("video.example")}, calls: &first, onLoad: one("https://video.example/a.mp4")})
	r.Register(fakeRule{name: "second", origins: []Origin{Pattern(`example$`)}, calls: &second})
	r.RegisterGeneric(fakeRule{name: "gen", calls: &generic})

	outcomes := r.Dispatch(exchange("https://www.video.example/api", "{}"))

	if first != 1 || second != 0 || generic != 1 {
		t.Errorf("calls first=%d second=%d generic=%d; want 1 0 1", first, second, generic)
	}
	if len(outcomes) != 2 || outcomes[0].Rule != "first" || outcomes[1].Rule != "gen" || !outcomes[1].Generic {
		t.Errorf("unexpected outcomes %+v", outcomes)
	}
	if got := Candidates(outcomes); len(got) != 1 || got[0].URL != "https://video.example/a.mp4" {
		t.Errorf("candidates = %+v", got)
	}
}

func TestDispatchRunsGenericRulesWithoutSiteMatch(t *testing.T) {
	var site, g1, g2 int
	r := NewRegistry()
	r.Register(fakeRule{name: "site", origins: []Origin{Host("other.example")}, calls: &site})
	r.RegisterGeneric(fakeRule{name: "g1", calls: &g1})
	r.RegisterGeneric(fakeRule{name: "g2", calls: &g2})

	r.Dispatch(exchange("https://cdn.example/x", ""))

	if site != 0 || g1 != 1 || g2 != 1 {
		t.Errorf("calls site=%d g1=%d g2=%d; want 0 1 1", site, g1, g2)
	}
}

func TestDispatchIsolatesPanics(t *testing.T) {
	var after int
	r := NewRegistry()
	r.Register(fakeRule{name: "bad", origins: []Origin{Host("e.com")}, onLoad: func(string, string) Result {
		var m map[string]any
		m["boom"] = 1
		return NoMatch()
	}})
	r.RegisterGeneric(fakeRule{name: "bad-generic", onLoad: func(string, string) Result { panic("generic bug") }})
	r.RegisterGeneric(fakeRule{name: "after", calls: &after, onLoad: one("https://e.com/v.mp4")})

	outcomes := r.Dispatch(exchange("https://e.com/api", "{}"))

	if after != 1 {
		t.Fatal("rules after a panicking rule must still run")
	}
	if len(outcomes) != 3 {
		t.Fatalf("len(outcomes) = %d; want 3", len(outcomes))
	}
	for _, o := range outcomes[:2] {
		if o.Matched() || o.Err == nil {
			t.Errorf("%s: want no candidates and a recorded error, got %+v", o.Rule, o)
		}
	}
	if !outcomes[2].Matched() {
		t.Error("last rule should have matched")
	}
}

func TestDispatchRanksAndCaps(t *testing.T) {
	r := NewRegistry()
	r.Register(fakeRule{name: "flood", origins: []Origin{Host("e.com")}, onLoad: func(string, string) Result {
		var cands []media.Candidate
		for i := 1; i <= 20; i++ {
			cands = append(cands, media.Candidate{
				URL:     fmt.Sprintf("https://e.com/%d.mp4", i),
				Quality: fmt.Sprintf("%dp", i*100),
			})
		}
		return Found(cands)
	}})

	got := r.Dispatch(exchange("https://e.com/api", ""))[0].Candidates

	if len(got) != DefaultSiteLimit {
		t.Fatalf("len = %d; want %d", len(got), DefaultSiteLimit)
	}
	if got[0].Quality != "2000p" || !got[0].IsPrimary {
		t.Errorf("first = %+v; want the highest quality as primary", got[0])
	}
	if got[len(got)-1].Quality != "1300p" {
		t.Errorf("last kept = %s; want 1300p", got[len(got)-1].Quality)
	}

	r.SetLimit("flood", 3)
	if got := r.Dispatch(exchange("https://e.com/api", ""))[0].Candidates; len(got) != 3 {
		t.Errorf("len after SetLimit = %d; want 3", len(got))
	}
}

func TestRegistryDisableAndAddOrigins(t *testing.T) {
	r := DefaultRegistry()

	if rule := r.Match("x.com"); rule == nil || rule.Name() != "twitter" {
		t.Fatalf("Match(x.com) = %v; want twitter", rule)
	}
	if rule := r.Match("api16-normal-c-useast1a.tiktokv.com"); rule == nil || rule.Name() != "tiktok" {
		t.Errorf("pattern origin did not match: %v", rule)
	}
	if rule := r.Match("nitter.example"); rule != nil {
		t.Errorf("Match(nitter.example) = %s; want nil", rule.Name())
	}

	if err := r.AddOrigins("twitter", Host("nitter.example")); err != nil {
		t.Fatal(err)
	}
	if rule := r.Match("nitter.example"); rule == nil || rule.Name() != "twitter" {
		t.Errorf("added origin did not match")
	}
	if err := r.AddOrigins("nope", Host("a.b")); err == nil {
		t.Error("expected error for unknown rule")
	}

	r.Disable("twitter")
	if rule := r.Match("x.com"); rule != nil {
		t.Errorf("disabled rule still matched")
	}
}

func TestDefaultRegistryMalformedBodyYieldsNothing(t *testing.T) {
	r := DefaultRegistry()
	bodies := []string{
		`{"video_info": {"variants": [`,
		`<html>video_versions streamingData reddit_video</html>`,
		"#EXTM",
		`<MPD><Period>`,
		"",
	}
	hosts := []string{
		"https://x.com/i/api/graphql",
		"https://www.instagram.com/api/v1/feed",
		"https://www.youtube.com/youtubei/v1/player",
		"https://www.reddit.com/r/videos.json",
		"https://unknown.example/data",
	}

	for _, h := range hosts {
		for _, b := range bodies {
			got := Candidates(r.Dispatch(exchange(h, b)))
			if len(got) != 0 {
				t.Errorf("%s %q: got %d candidates; want 0", h, b, len(got))
			}
		}
	}
}

func TestRulesListsSiteThenGeneric(t *testing.T) {
	infos := DefaultRegistry().Rules()

	seenGeneric := false
	names := map[string]bool{}
	for _, info := range infos {
		names[info.Name] = true
		if info.Generic {
			seenGeneric = true
			continue
		}
		if seenGeneric {
			t.Errorf("site rule %s listed after a generic rule", info.Name)
		}
		if len(info.Origins) == 0 {
			t.Errorf("site rule %s has no origins", info.Name)
		}
	}
	for _, want := range []string{"twitter", "instagram", "tiktok", "bilibili", "youtube", "vimeo", "reddit", "hls", "dash", "jsonurls"} {
		if !names[want] {
			t.Errorf("rule %s not registered", want)
		}
	}
}
