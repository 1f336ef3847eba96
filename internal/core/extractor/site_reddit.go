package extractor

import (
	"github.com/guiyumin/vsniff/internal/core/media"
	"github.com/guiyumin/vsniff/internal/core/search"
)

type redditRule struct{}

func (redditRule) Name() string { return "reddit" }

func (redditRule) Origins() []Origin {
	return []Origin{
		Host("reddit.com"),
		Host("old.reddit.com"),
		Host("gateway.reddit.com"),
		Host("v.redd.it"),
	}
}

func (r redditRule) OnLoad(body, requestURL string) Result {
	if !hasAny(body, "reddit_video") {
		return NoMatch()
	}
	doc, err := DecodeJSON(body)
	if err != nil {
		return Failed(err)
	}

	set := media.NewSet(r.Name(), requestURL)
	for _, post := range search.Owners(doc, "title") {
		title := search.FirstOf(post, "title")
		thumb := search.String(post, "preview", "images", "0", "source", "url")
		for _, owner := range search.Owners(post, "reddit_video") {
			addRedditVideo(set, search.Map(owner, "reddit_video"), title, thumb)
		}
	}
	for _, owner := range search.Owners(doc, "reddit_video") {
		addRedditVideo(set, search.Map(owner, "reddit_video"), "", "")
	}
	return found(set)
}

func addRedditVideo(set *media.Set, video map[string]any, title, thumb string) {
	if video == nil {
		return
	}

	// fallback_url is a video-only DASH rendition; the audio track is not addressable here
	hasAudio, known := search.Bool(video, "has_audio")
	if gif, _ := search.Bool(video, "is_gif"); gif {
		hasAudio, known = false, true
	}
	var audio *bool
	if known {
		audio = media.Bool(hasAudio)
	}

	quality := media.QualityLabel(shortSide(search.Int(video, "width"), search.Int(video, "height")))
	set.Add(media.Candidate{
		URL:          search.String(video, "fallback_url"),
		Kind:         media.KindVideo,
		Quality:      quality,
		FileName:     title,
		ThumbnailURL: thumb,
		HasAudio:     media.Bool(false),
	})
	for _, key := range []string{"hls_url", "dash_url"} {
		set.Add(media.Candidate{
			URL:          search.String(video, key),
			Kind:         media.KindVideo,
			Playlist:     true,
			FileName:     title,
			ThumbnailURL: thumb,
			HasAudio:     audio,
		})
	}
}

func init() {
	registerSite(redditRule{})
}
