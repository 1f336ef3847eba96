package extractor

import (
	"testing"

	"github.com/guiyumin/vsniff/internal/core/media"
)

func byURL(cands []media.Candidate) map[string]media.Candidate {
	m := make(map[string]media.Candidate, len(cands))
	for _, c := range cands {
		m[c.URL] = c
	}
	return m
}

func assertUniqueKeys(t *testing.T, cands []media.Candidate) {
	t.Helper()
	seen := map[media.Key]bool{}
	for _, c := range cands {
		if seen[c.Key()] {
			t.Errorf("duplicate candidate %+v", c.Key())
		}
		seen[c.Key()] = true
	}
}

const twitterBody = `{"data":{"tweetResult":{"result":{"legacy":{
	"full_text":"Launch day",
	"entities":{"media":[{"type":"video","media_url_https":"https://pbs.twimg.com/ext_tw_video_thumb/1/pu/img/a.jpg",
		"video_info":{"variants":[
			{"content_type":"application/x-mpegURL","url":"https://video.twimg.com/ext_tw_video/1/pu/pl/a.m3u8"},
			{"bitrate":832000,"content_type":"video/mp4","url":"https://video.twimg.com/ext_tw_video/1/pu/vid/640x360/a.mp4"},
			{"bitrate":2176000,"content_type":"video/mp4","url":"https://video.twimg.com/ext_tw_video/1/pu/vid/1280x720/a.mp4"}]}}]},
	"extended_entities":{"media":[{"type":"video","media_url_https":"https://pbs.twimg.com/ext_tw_video_thumb/1/pu/img/a.jpg",
		"video_info":{"variants":[
			{"bitrate":2176000,"content_type":"video/mp4","url":"https://video.twimg.com/ext_tw_video/1/pu/vid/1280x720/a.mp4"}]}},
		{"type":"photo","media_url_https":"https://pbs.twimg.com/media/B.png","original_info":{"width":1200,"height":800}}]}
}}}}}`

func TestTwitterRule(t *testing.T) {
	res := twitterRule{}.OnLoad(twitterBody, "https://x.com/i/api/graphql/abc/TweetResultByRestId")
	if res.Err != nil {
		t.Fatal(res.Err)
	}
	assertUniqueKeys(t, res.Candidates)

	got := byURL(res.Candidates)
	if len(got) != 4 {
		t.Fatalf("got %d candidates; want 4: %+v", len(got), res.Candidates)
	}

	hd := got["https://video.twimg.com/ext_tw_video/1/pu/vid/1280x720/a.mp4"]
	if hd.Quality != "720p" || hd.FileName != "Launch day" || hd.Source != "twitter" {
		t.Errorf("hd = %+v", hd)
	}
	if hd.HasAudio == nil || !*hd.HasAudio {
		t.Error("tweet video should carry audio")
	}
	if got["https://video.twimg.com/ext_tw_video/1/pu/vid/640x360/a.mp4"].Quality != "360p" {
		t.Error("quality should come from the WxH path segment")
	}
	if pl := got["https://video.twimg.com/ext_tw_video/1/pu/pl/a.m3u8"]; !pl.Playlist || pl.Quality != media.UnknownQuality {
		t.Errorf("playlist = %+v", pl)
	}
	if img := got["https://pbs.twimg.com/media/B.png?format=png&name=orig"]; img.Kind != media.KindImage || img.Quality != "800p" {
		t.Errorf("photo = %+v", img)
	}
}

func TestTwitterRuleRejectsUnrelated(t *testing.T) {
	if res := (twitterRule{}).OnLoad(`{"data":{"user":{}}}`, "https://x.com/i/api"); res.Matched() || res.Err != nil {
		t.Errorf("unexpected result %+v", res)
	}
}

func TestInstagramRule(t *testing.T) {
	body := `{"items":[{
		"caption":{"text":"sunset"},
		"video_versions":[
			{"width":720,"height":1280,"url":"https://scontent.cdninstagram.com/v/a_720.mp4?x=1"},
			{"width":480,"height":854,"url":"https://scontent.cdninstagram.com/v/a_480.mp4?x=1"}],
		"image_versions2":{"candidates":[
			{"width":320,"height":568,"url":"https://scontent.cdninstagram.com/v/small.jpg"},
			{"width":1080,"height":1920,"url":"https://scontent.cdninstagram.com/v/large.jpg"}]}
	}]}`

	res := instagramRule{}.OnLoad(body, "https://www.instagram.com/api/v1/feed/timeline/")
	got := byURL(res.Candidates)

	v := got["https://scontent.cdninstagram.com/v/a_720.mp4?x=1"]
	if v.Quality != "720p" || v.FileName != "sunset" || v.Kind != media.KindVideo {
		t.Errorf("video = %+v", v)
	}
	if _, ok := got["https://scontent.cdninstagram.com/v/a_480.mp4?x=1"]; !ok {
		t.Error("second version missing")
	}
	img, ok := got["https://scontent.cdninstagram.com/v/large.jpg"]
	if !ok || img.Kind != media.KindImage || img.FileName != "sunset" {
		t.Errorf("image = %+v", img)
	}
	if _, ok := got["https://scontent.cdninstagram.com/v/small.jpg"]; ok {
		t.Error("only the largest image candidate should be kept")
	}
}

func TestTikTokRule(t *testing.T) {
	body := `{"itemList":[{"desc":"dance","video":{
		"height":1024,"width":576,
		"playAddr":"https://v16-webapp.tiktok.com/play/a?mime=video_mp4",
		"downloadAddr":"https://v16-webapp.tiktok.com/dl/a",
		"cover":"https://p16-sign.tiktokcdn.com/cover.jpeg",
		"bitrateInfo":[{"GearName":"normal_540_0","PlayAddr":{"Height":1024,"Width":576,"UrlList":["https://v16.tiktokcdn.com/gear/a"]}}]
	}}]}`

	res := tiktokRule{}.OnLoad(body, "https://www.tiktok.com/api/item_list/")
	got := byURL(res.Candidates)

	if len(got) != 3 {
		t.Fatalf("got %d candidates; want 3: %+v", len(got), res.Candidates)
	}
	play := got["https://v16-webapp.tiktok.com/play/a?mime=video_mp4"]
	if play.Quality != "576p" || play.FileName != "dance" || play.ThumbnailURL != "https://p16-sign.tiktokcdn.com/cover.jpeg" {
		t.Errorf("play = %+v", play)
	}
	if _, ok := got["https://v16.tiktokcdn.com/gear/a"]; !ok {
		t.Error("bitrateInfo address missing")
	}
}

func TestBilibiliRule(t *testing.T) {
	body := `{"code":0,"data":{"quality":80,"dash":{
		"video":[
			{"id":80,"baseUrl":"https://upos.bilivideo.com/80.m4s","bandwidth":2000000,"width":1920,"height":1080},
			{"id":64,"baseUrl":"https://upos.bilivideo.com/64.m4s","bandwidth":1000000,"width":1280,"height":720},
			{"id":125,"baseUrl":"https://upos.bilivideo.com/125.m4s","bandwidth":9000000,"width":3840,"height":2160}],
		"audio":[
			{"id":30216,"baseUrl":"https://upos.bilivideo.com/a1.m4s","bandwidth":60000},
			{"id":30280,"baseUrl":"https://upos.bilivideo.com/a2.m4s","bandwidth":190000}]}}}`

	res := bilibiliRule{}.OnLoad(body, "https://api.bilibili.com/x/player/wbi/playurl?bvid=BV1")
	got := byURL(res.Candidates)

	v := got["https://upos.bilivideo.com/80.m4s"]
	if v.Quality != "1080p" || v.AudioURL != "https://upos.bilivideo.com/a2.m4s" {
		t.Errorf("1080p track = %+v", v)
	}
	if v.HasAudio == nil || *v.HasAudio {
		t.Error("dash video tracks are video-only")
	}
	if got["https://upos.bilivideo.com/125.m4s"].Quality != "2160p" {
		t.Errorf("HDR track should fall back to its height, got %q", got["https://upos.bilivideo.com/125.m4s"].Quality)
	}
	if a := got["https://upos.bilivideo.com/a2.m4s"]; a.Kind != media.KindAudio {
		t.Errorf("best audio = %+v", a)
	}
	if _, ok := got["https://upos.bilivideo.com/a1.m4s"]; ok {
		t.Error("only the best audio track should be reported")
	}
}

func TestBilibiliRulePlayinfoPage(t *testing.T) {
	page := `<html><script>window.__playinfo__={"code":0,"data":{"quality":64,"durl":[{"url":"https://upos.bilivideo.com/flv.mp4"}]}}</script></html>`

	res := bilibiliRule{}.OnLoad(page, "https://www.bilibili.com/video/BV1xx")
	if len(res.Candidates) != 1 || res.Candidates[0].Quality != "720p" {
		t.Errorf("candidates = %+v, err = %v", res.Candidates, res.Err)
	}
}

const youtubeBody = `{
	"videoDetails":{"title":"Talk","thumbnail":{"thumbnails":[{"url":"https://i.ytimg.com/s.jpg"},{"url":"https://i.ytimg.com/l.jpg"}]}},
	"streamingData":{
		"formats":[{"itag":18,"url":"https://rr1.googlevideo.com/videoplayback?itag=18","mimeType":"video/mp4","qualityLabel":"360p"}],
		"adaptiveFormats":[
			{"itag":137,"url":"https://rr1.googlevideo.com/videoplayback?itag=137","mimeType":"video/mp4","qualityLabel":"1080p","bitrate":4000000},
			{"itag":248,"signatureCipher":"s=abc","mimeType":"video/webm","qualityLabel":"1080p"},
			{"itag":140,"url":"https://rr1.googlevideo.com/videoplayback?itag=140","mimeType":"audio/mp4","bitrate":130000},
			{"itag":139,"url":"https://rr1.googlevideo.com/videoplayback?itag=139","mimeType":"audio/mp4","bitrate":48000}],
		"hlsManifestUrl":"https://manifest.googlevideo.com/api/manifest/hls_variant/index.m3u8"}
}`

func TestYouTubeRule(t *testing.T) {
	res := youtubeRule{}.OnLoad(youtubeBody, "https://www.youtube.com/youtubei/v1/player")
	assertUniqueKeys(t, res.Candidates)
	got := byURL(res.Candidates)

	if len(got) != 4 {
		t.Fatalf("got %d candidates; want 4: %+v", len(got), res.Candidates)
	}
	hd := got["https://rr1.googlevideo.com/videoplayback?itag=137"]
	if hd.Quality != "1080p" || hd.AudioURL != "https://rr1.googlevideo.com/videoplayback?itag=140" || hd.ThumbnailURL != "https://i.ytimg.com/l.jpg" {
		t.Errorf("adaptive video = %+v", hd)
	}
	if muxed := got["https://rr1.googlevideo.com/videoplayback?itag=18"]; muxed.HasAudio == nil || !*muxed.HasAudio {
		t.Errorf("muxed format = %+v", muxed)
	}
	if hls := got["https://manifest.googlevideo.com/api/manifest/hls_variant/index.m3u8"]; !hls.Playlist {
		t.Errorf("hls = %+v", hls)
	}
}

func TestYouTubeRuleWatchPage(t *testing.T) {
	page := `<html><script>var ytInitialPlayerResponse = ` + youtubeBody + `;var meta = {};</script></html>`

	res := youtubeRule{}.OnLoad(page, "https://www.youtube.com/watch?v=abc")
	if len(res.Candidates) != 4 {
		t.Errorf("got %d candidates, err = %v", len(res.Candidates), res.Err)
	}
}

func TestVimeoRule(t *testing.T) {
	body := `{"request":{"files":{
		"progressive":[
			{"quality":"720p","url":"https://vod-progressive.akamaized.net/720.mp4","width":1280,"height":720},
			{"quality":"360p","url":"https://vod-progressive.akamaized.net/360.mp4","width":640,"height":360}],
		"hls":{"default_cdn":"akfire","cdns":{
			"akfire":{"url":"https://skyfire.vimeocdn.com/a/master.m3u8"},
			"fastly":{"url":"https://fastly.vimeocdn.com/a/master.m3u8"}}}}},
		"video":{"title":"Short film","thumbs":{"640":"https://i.vimeocdn.com/640.jpg","1280":"https://i.vimeocdn.com/1280.jpg"}}}`

	res := vimeoRule{}.OnLoad(body, "https://player.vimeo.com/video/1/config")
	got := byURL(res.Candidates)

	if len(got) != 3 {
		t.Fatalf("got %d candidates; want 3: %+v", len(got), res.Candidates)
	}
	if v := got["https://vod-progressive.akamaized.net/720.mp4"]; v.FileName != "Short film" || v.ThumbnailURL != "https://i.vimeocdn.com/1280.jpg" {
		t.Errorf("progressive = %+v", v)
	}
	if _, ok := got["https://skyfire.vimeocdn.com/a/master.m3u8"]; !ok {
		t.Error("default cdn manifest should be kept")
	}
}

func TestRedditRule(t *testing.T) {
	body := `[{"kind":"Listing","data":{"children":[{"kind":"t3","data":{
		"title":"Cat video",
		"preview":{"images":[{"source":{"url":"https://preview.redd.it/a.jpg?width=640&amp;s=1"}}]},
		"secure_media":{"reddit_video":{"fallback_url":"https://v.redd.it/abc/DASH_720.mp4?source=fallback","height":720,"width":1280,
			"hls_url":"https://v.redd.it/abc/HLSPlaylist.m3u8","dash_url":"https://v.redd.it/abc/DASHPlaylist.mpd","is_gif":false}}}}]}}]`

	res := redditRule{}.OnLoad(body, "https://www.reddit.com/r/cats/comments/abc.json")
	got := byURL(res.Candidates)

	if len(got) != 3 {
		t.Fatalf("got %d candidates; want 3: %+v", len(got), res.Candidates)
	}
	fb := got["https://v.redd.it/abc/DASH_720.mp4?source=fallback"]
	if fb.Quality != "720p" || fb.FileName != "Cat video" || fb.ThumbnailURL != "https://preview.redd.it/a.jpg?width=640&s=1" {
		t.Errorf("fallback = %+v", fb)
	}
	if !got["https://v.redd.it/abc/DASHPlaylist.mpd"].Playlist {
		t.Error("dash_url should be a playlist")
	}
}

func TestPodcastRules(t *testing.T) {
	lookup := `{"resultCount":2,"results":[
		{"wrapperType":"track","collectionName":"Show"},
		{"wrapperType":"podcastEpisode","collectionName":"Show","trackName":"Ep 1","episodeUrl":"https://traffic.megaphone.fm/ep1.mp3"}]}`
	res := itunesRule{}.OnLoad(lookup, "https://itunes.apple.com/lookup?id=1&entity=podcastEpisode")
	if len(res.Candidates) != 1 || res.Candidates[0].Kind != media.KindAudio || res.Candidates[0].FileName != "Show - Ep 1" {
		t.Errorf("itunes = %+v, err = %v", res.Candidates, res.Err)
	}

	page := `<html><script id="__NEXT_DATA__" type="application/json">{"props":{"pageProps":{"episode":{"title":"Ep 2","enclosure":{"url":"https://media.xyzcdn.net/ep2.m4a"},"podcast":{"title":"Cast"}}}}}</script></html>`
	res = xiaoyuzhouRule{}.OnLoad(page, "https://www.xiaoyuzhoufm.com/episode/1")
	if len(res.Candidates) != 1 || res.Candidates[0].URL != "https://media.xyzcdn.net/ep2.m4a" || res.Candidates[0].FileName != "Cast - Ep 2" {
		t.Errorf("xiaoyuzhou = %+v, err = %v", res.Candidates, res.Err)
	}
}

func TestHLSRuleMaster(t *testing.T) {
	body := `#EXTM3U
#EXT-X-MEDIA:TYPE=AUDIO,GROUP-ID="aud",NAME="English",URI="audio/en.m3u8"
#EXT-X-STREAM-INF:BANDWIDTH=800000,RESOLUTION=640x360,AUDIO="aud"
360/index.m3u8
#EXT-X-STREAM-INF:BANDWIDTH=5000000,AVERAGE-BANDWIDTH=4000000,RESOLUTION=1920x1080,AUDIO="aud"
1080/index.m3u8
#EXT-X-STREAM-INF:BANDWIDTH=1500000
https://cdn.example/hls/mid/index.m3u8
`
	res := hlsRule{}.OnLoad(body, "https://cdn.example/hls/master.m3u8")
	got := byURL(res.Candidates)

	if len(got) != 5 {
		t.Fatalf("got %d candidates; want 5: %+v", len(got), res.Candidates)
	}
	hd := got["https://cdn.example/hls/1080/index.m3u8"]
	if hd.Quality != "1080p" || !hd.Playlist || hd.Source != media.SourceGeneric || hd.AudioURL != "https://cdn.example/hls/audio/en.m3u8" {
		t.Errorf("1080 variant = %+v", hd)
	}
	if got["https://cdn.example/hls/mid/index.m3u8"].Quality != "720p" {
		t.Error("quality should fall back to bandwidth")
	}
	if m := got["https://cdn.example/hls/master.m3u8"]; m.Quality != media.UnknownQuality || !m.Playlist {
		t.Errorf("master = %+v", m)
	}
	if a := got["https://cdn.example/hls/audio/en.m3u8"]; a.Kind != media.KindAudio {
		t.Errorf("audio = %+v", a)
	}
}

func TestHLSRuleMediaPlaylist(t *testing.T) {
	body := "#EXTM3U\n#EXT-X-TARGETDURATION:6\n#EXTINF:6.0,\nseg0.ts\n#EXTINF:6.0,\nseg1.ts\n#EXT-X-ENDLIST\n"

	res := hlsRule{}.OnLoad(body, "https://cdn.example/v/720/index.m3u8")
	if len(res.Candidates) != 1 || res.Candidates[0].URL != "https://cdn.example/v/720/index.m3u8" || !res.Candidates[0].Playlist {
		t.Errorf("candidates = %+v", res.Candidates)
	}
}

func TestDASHRule(t *testing.T) {
	body := `<?xml version="1.0"?>
<MPD xmlns="urn:mpeg:dash:schema:mpd:2011" type="static">
  <BaseURL>https://media.example/v1/</BaseURL>
  <Period>
    <AdaptationSet mimeType="video/mp4">
      <Representation id="1" bandwidth="900000" width="854" height="480"><BaseURL>480.mp4</BaseURL></Representation>
      <Representation id="2" bandwidth="3000000" width="1920" height="1080"><BaseURL>1080.mp4</BaseURL></Representation>
      <Representation id="3" bandwidth="1000" width="10" height="10"><SegmentTemplate media="seg_$Number$.m4s"/></Representation>
    </AdaptationSet>
    <AdaptationSet mimeType="audio/mp4">
      <Representation id="a1" bandwidth="64000"><BaseURL>audio_64.mp4</BaseURL></Representation>
      <Representation id="a2" bandwidth="128000"><BaseURL>audio_128.mp4</BaseURL></Representation>
    </AdaptationSet>
  </Period>
</MPD>`

	res := dashRule{}.OnLoad(body, "https://media.example/manifest.mpd")
	if res.Err != nil {
		t.Fatal(res.Err)
	}
	got := byURL(res.Candidates)

	if len(got) != 4 {
		t.Fatalf("got %d candidates; want 4: %+v", len(got), res.Candidates)
	}
	hd := got["https://media.example/v1/1080.mp4"]
	if hd.Quality != "1080p" || hd.AudioURL != "https://media.example/v1/audio_128.mp4" {
		t.Errorf("1080 = %+v", hd)
	}
	if !got["https://media.example/manifest.mpd"].Playlist {
		t.Error("manifest should be reported as a playlist")
	}
}

func TestJSONURLsRule(t *testing.T) {
	body := `{"player":{"sources":[
		{"src":"\/media\/clip_hd.mp4","label":"HD 720"},
		{"src":"/media/clip_sd.mp4","height":480},
		{"src":"clip.mp4"}],
		"poster":"/media/poster.jpg",
		"track":{"url":"https://audio.example/a.mp3","title":"Song"}}}`

	res := jsonURLsRule{}.OnLoad(body, "https://site.example/api/player")
	got := byURL(res.Candidates)

	if len(got) != 3 {
		t.Fatalf("got %d candidates; want 3: %+v", len(got), res.Candidates)
	}
	if got["https://site.example/media/clip_hd.mp4"].Quality != "720p" {
		t.Errorf("hd = %+v", got["https://site.example/media/clip_hd.mp4"])
	}
	if got["https://site.example/media/clip_sd.mp4"].Quality != "480p" {
		t.Errorf("sd = %+v", got["https://site.example/media/clip_sd.mp4"])
	}
	if a := got["https://audio.example/a.mp3"]; a.Kind != media.KindAudio || a.FileName != "Song" {
		t.Errorf("audio = %+v", a)
	}
}

func TestJSONURLsRuleCleansPrefixedBodies(t *testing.T) {
	const doc = `{"video":{"src":"/media/clip.mp4","height":720}}`
	tests := []struct {
		name string
		body string
	}{
		{"plain", doc},
		{"bom", "\ufeff" + doc},
		{"for loop prefix", "for (;;);" + doc},
		{"while prefix", "while(1);" + doc},
		{"xssi prefix", ")]}'\n" + doc},
		{"wrapped in script", "callback(" + doc + ");"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := jsonURLsRule{}.OnLoad(tt.body, "https://site.example/api/player")
			got := byURL(res.Candidates)
			c, ok := got["https://site.example/media/clip.mp4"]
			if len(got) != 1 || !ok {
				t.Fatalf("candidates = %+v (err %v); want the clip", res.Candidates, res.Err)
			}
			if c.Quality != "720p" {
				t.Errorf("quality = %q; want 720p", c.Quality)
			}
		})
	}
}
