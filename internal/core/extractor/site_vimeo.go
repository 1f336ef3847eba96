package extractor

import (
	"strconv"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/guiyumin/vsniff/internal/core/media"
)

type vimeoRule struct{}

func (vimeoRule) Name() string { return "vimeo" }

func (vimeoRule) Origins() []Origin {
	return []Origin{
		Host("player.vimeo.com"),
		Host("vimeo.com"),
	}
}

// OnLoad reads player config responses (/video/{id}/config) and the
// window.playerConfig blob of embed pages.
func (r vimeoRule) OnLoad(body, requestURL string) Result {
	if !hasAny(body, `"progressive"`, `"hls"`, `"dash"`) {
		return NoMatch()
	}

	var raw string
	var err error
	if hasAny(body, "window.playerConfig") && !strings.HasPrefix(strings.TrimSpace(body), "{") {
		raw, err = RawJSONAfter(body, "window.playerConfig")
	} else {
		raw, err = RawJSON(body)
	}
	if err != nil {
		return Failed(err)
	}

	config := gjson.Parse(raw)
	files := config.Get("request.files")
	if !files.Exists() {
		return NoMatch()
	}
	title := config.Get("video.title").String()
	thumb := largestVimeoThumb(config.Get("video.thumbs"))

	set := media.NewSet(r.Name(), requestURL)

	files.Get("progressive").ForEach(func(_, f gjson.Result) bool {
		quality := f.Get("quality").String()
		if quality == "" {
			quality = media.QualityLabel(shortSide(int(f.Get("width").Int()), int(f.Get("height").Int())))
		}
		set.Add(media.Candidate{
			URL:          f.Get("url").String(),
			Kind:         media.KindVideo,
			Quality:      quality,
			FileName:     title,
			ThumbnailURL: thumb,
			HasAudio:     media.Bool(true),
		})
		return true
	})

	for _, kind := range []string{"hls", "dash"} {
		manifests := files.Get(kind)
		defaultCDN := manifests.Get("default_cdn").String()
		var urls []string
		if defaultCDN != "" {
			urls = append(urls, manifests.Get("cdns."+gjson.Escape(defaultCDN)+".url").String())
		}
		manifests.Get("cdns").ForEach(func(_, cdn gjson.Result) bool {
			urls = append(urls, cdn.Get("url").String())
			return true
		})
		// every CDN serves the same stream; keep one
		for _, u := range urls {
			if set.Add(media.Candidate{
				URL:          u,
				Kind:         media.KindVideo,
				Playlist:     true,
				FileName:     title,
				ThumbnailURL: thumb,
				HasAudio:     media.Bool(true),
			}) {
				break
			}
		}
	}

	return found(set)
}

// largestVimeoThumb picks the widest entry of a {"640": url, "base": url} map
func largestVimeoThumb(thumbs gjson.Result) string {
	best, bestWidth := "", -1
	thumbs.ForEach(func(k, v gjson.Result) bool {
		w, err := strconv.Atoi(k.String())
		if err != nil {
			w = 0
		}
		if w > bestWidth {
			best, bestWidth = v.String(), w
		}
		return true
	})
	return best
}

func init() {
	registerSite(vimeoRule{})
}
