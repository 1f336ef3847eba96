package extractor

import (
	"strings"

	"github.com/guiyumin/vsniff/internal/core/media"
	"github.com/guiyumin/vsniff/internal/core/search"
)

// jsonMediaMarkers gate the parse; escaped slashes do not hide extensions
var jsonMediaMarkers = []string{
	".mp4", ".m3u8", ".mpd", ".webm", ".mov", ".m4v", ".flv", ".mkv",
	".mp3", ".m4a", ".aac", ".ogg", ".opus", ".wav", ".flac",
}

// siblingQualityKeys are looked up on the object holding a media URL
var siblingQualityKeys = []string{"quality", "qualityLabel", "quality_label", "label", "resolution", "definition"}

type jsonURLsRule struct{}

func (jsonURLsRule) Name() string { return "jsonurls" }

func (jsonURLsRule) Origins() []Origin { return nil }

// OnLoad walks every string of a JSON body and keeps the ones that resolve to
// an audio, video or manifest URL. Prefixed bodies go through the same
// cleanups as site rules.
func (jsonURLsRule) OnLoad(body, requestURL string) Result {
	if !hasAny(strings.ToLower(body), jsonMediaMarkers...) {
		return NoMatch()
	}
	doc, err := DecodeJSON(body)
	if err != nil {
		return Failed(err)
	}

	set := media.NewSet(media.SourceGeneric, requestURL)
	search.WalkStrings(doc, func(owner map[string]any, key, value string) {
		u := media.ResolveURL(requestURL, value)
		if u == "" || !media.HasMediaExtension(u) {
			return
		}
		// a relative string is only a URL if it looks like a path
		if !strings.Contains(value, "/") {
			return
		}
		set.Add(media.Candidate{
			URL:          u,
			Quality:      siblingQuality(owner),
			FileName:     search.FirstOf(owner, "title", "name"),
			ThumbnailURL: search.FirstOf(owner, "poster", "thumbnail", "thumbnailUrl", "cover"),
		})
	})
	return found(set)
}

func siblingQuality(owner map[string]any) string {
	if q := search.FirstOf(owner, siblingQualityKeys...); q != "" {
		return q
	}
	for _, key := range siblingQualityKeys {
		if n := search.ToInt(owner[key]); n > 0 {
			return media.QualityLabel(n)
		}
	}
	return media.QualityLabel(shortSide(search.ToInt(owner["width"]), search.ToInt(owner["height"])))
}

func init() {
	registerGeneric(jsonURLsRule{})
}
