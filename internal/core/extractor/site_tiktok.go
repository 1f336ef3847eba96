package extractor

import (
	"github.com/guiyumin/vsniff/internal/core/media"
	"github.com/guiyumin/vsniff/internal/core/search"
)

type tiktokRule struct{}

func (tiktokRule) Name() string { return "tiktok" }

func (tiktokRule) Origins() []Origin {
	return []Origin{
		Host("tiktok.com"),
		Host("m.tiktok.com"),
		Pattern(`^.*\.tiktokv\.com$`),
	}
}

// OnLoad reads web item lists (playAddr as a string) and app feeds
// (play_addr with a url_list).
func (r tiktokRule) OnLoad(body, requestURL string) Result {
	if !hasAny(body, "playAddr", "play_addr", "downloadAddr", "bitrateInfo") {
		return NoMatch()
	}
	doc, err := DecodeJSON(body)
	if err != nil {
		return Failed(err)
	}

	set := media.NewSet(r.Name(), requestURL)
	for _, item := range search.Owners(doc, "desc") {
		title := search.FirstOf(item, "desc")
		for _, video := range tiktokVideos(item) {
			addTikTokVideo(set, video, title)
		}
	}
	for _, video := range tiktokVideos(doc) {
		addTikTokVideo(set, video, "")
	}
	return found(set)
}

func tiktokVideos(doc any) []map[string]any {
	videos := search.Owners(doc, "playAddr")
	return append(videos, search.Owners(doc, "play_addr")...)
}

func addTikTokVideo(set *media.Set, video map[string]any, title string) {
	quality := media.QualityLabel(shortSide(search.Int(video, "width"), search.Int(video, "height")))
	thumb := firstAddr(video["cover"])
	if thumb == "" {
		thumb = firstAddr(video["origin_cover"])
	}

	add := func(u, q string) {
		set.Add(media.Candidate{
			URL:          u,
			Kind:         media.KindVideo,
			Quality:      q,
			FileName:     title,
			ThumbnailURL: thumb,
			HasAudio:     media.Bool(true),
		})
	}

	for _, key := range []string{"playAddr", "play_addr", "downloadAddr", "download_addr"} {
		if u := firstAddr(video[key]); u != "" {
			add(u, quality)
		}
	}

	for _, b := range search.Slice(video, "bitrateInfo") {
		gear, ok := b.(map[string]any)
		if !ok {
			continue
		}
		addr := search.Map(gear, "PlayAddr")
		q := media.QualityLabel(shortSide(search.Int(addr, "Width"), search.Int(addr, "Height")))
		if q == media.UnknownQuality {
			q = search.String(gear, "GearName")
		}
		if u := firstAddr(addr); u != "" {
			add(u, q)
		}
	}
}

// firstAddr reads a TikTok address, which is either a plain URL or an object
// carrying UrlList/url_list
func firstAddr(v any) string {
	switch a := v.(type) {
	case string:
		return a
	case map[string]any:
		for _, key := range []string{"UrlList", "url_list"} {
			for _, u := range search.Slice(a, key) {
				if s, ok := u.(string); ok && s != "" {
					return s
				}
			}
		}
	}
	return ""
}

func init() {
	registerSite(tiktokRule{})
}
