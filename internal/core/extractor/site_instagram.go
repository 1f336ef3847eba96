package extractor

import (
	"github.com/guiyumin/vsniff/internal/core/media"
	"github.com/guiyumin/vsniff/internal/core/search"
)

type instagramRule struct{}

func (instagramRule) Name() string { return "instagram" }

func (instagramRule) Origins() []Origin {
	return []Origin{
		Host("instagram.com"),
		Host("i.instagram.com"),
	}
}

// OnLoad reads feed, reel and post-info payloads. Captions sit beside the
// version arrays, so titles come through SearchKeyRecursive's propagation.
func (r instagramRule) OnLoad(body, requestURL string) Result {
	if !hasAny(body, "video_versions", "image_versions2") {
		return NoMatch()
	}
	doc, err := DecodeJSON(body)
	if err != nil {
		return Failed(err)
	}

	set := media.NewSet(r.Name(), requestURL)

	for _, versions := range search.SearchKeyRecursive(doc, "video_versions") {
		list, ok := versions.([]any)
		if !ok {
			continue
		}
		for _, v := range list {
			version, ok := v.(map[string]any)
			if !ok {
				continue
			}
			set.Add(media.Candidate{
				URL:      search.String(version, "url"),
				Kind:     media.KindVideo,
				Quality:  media.QualityLabel(shortSide(search.Int(version, "width"), search.Int(version, "height"))),
				FileName: search.String(version, "title"),
				HasAudio: media.Bool(true),
			})
		}
	}

	for _, item := range search.Owners(doc, "image_versions2") {
		best := largestImage(search.Slice(item, "image_versions2", "candidates"))
		if best == nil {
			continue
		}
		set.Add(media.Candidate{
			URL:      search.String(best, "url"),
			Kind:     media.KindImage,
			Quality:  media.QualityLabel(shortSide(search.Int(best, "width"), search.Int(best, "height"))),
			FileName: search.String(item, "caption", "text"),
		})
	}

	return found(set)
}

func largestImage(candidates []any) map[string]any {
	var best map[string]any
	bestArea := -1
	for _, c := range candidates {
		m, ok := c.(map[string]any)
		if !ok || search.String(m, "url") == "" {
			continue
		}
		if area := search.Int(m, "width") * search.Int(m, "height"); area > bestArea {
			best, bestArea = m, area
		}
	}
	return best
}

func init() {
	registerSite(instagramRule{})
}
