package extractor

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/guiyumin/vsniff/internal/core/media"
	"github.com/guiyumin/vsniff/internal/core/search"
)

type twitterRule struct{}

func (twitterRule) Name() string { return "twitter" }

func (twitterRule) Origins() []Origin {
	return []Origin{
		Host("twitter.com"),
		Host("x.com"),
		Host("mobile.twitter.com"),
		Host("mobile.x.com"),
		Host("api.twitter.com"),
		Host("api.x.com"),
	}
}

// OnLoad reads GraphQL and syndication tweet payloads. Media entities live
// under the tweet's legacy object, next to the full_text used as title.
func (r twitterRule) OnLoad(body, requestURL string) Result {
	if !hasAny(body, "video_info", "media_url_https") {
		return NoMatch()
	}
	doc, err := DecodeJSON(body)
	if err != nil {
		return Failed(err)
	}

	set := media.NewSet(r.Name(), requestURL)
	for _, tweet := range search.Owners(doc, "full_text") {
		title := truncateText(search.FirstOf(tweet, "full_text", "text"), 80)
		for _, entity := range search.Owners(tweet, "media_url_https") {
			addTwitterEntity(set, entity, title)
		}
	}
	// Entities outside a tweet object, e.g. syndication responses
	fallback := truncateText(search.FirstString(doc, "text"), 80)
	for _, entity := range search.Owners(doc, "media_url_https") {
		addTwitterEntity(set, entity, fallback)
	}
	return found(set)
}

func addTwitterEntity(set *media.Set, entity map[string]any, title string) {
	thumb := search.String(entity, "media_url_https")

	variants := search.Slice(entity, "video_info", "variants")
	if len(variants) == 0 {
		if search.String(entity, "type") == "photo" || entity["type"] == nil {
			set.Add(media.Candidate{
				URL:      highQualityImageURL(thumb),
				Kind:     media.KindImage,
				Quality:  media.QualityLabel(search.Int(entity, "original_info", "height")),
				FileName: title,
			})
		}
		return
	}

	for _, v := range variants {
		variant, ok := v.(map[string]any)
		if !ok {
			continue
		}
		u := search.String(variant, "url")
		if u == "" {
			continue
		}
		c := media.Candidate{
			URL:          u,
			Kind:         media.KindVideo,
			FileName:     title,
			ThumbnailURL: thumb,
			HasAudio:     media.Bool(search.String(entity, "type") != "animated_gif"),
		}
		if strings.Contains(search.String(variant, "content_type"), "mpegURL") {
			c.Playlist = true
		} else if w, h := resolutionFromURL(u); h > 0 {
			c.Quality = media.QualityLabel(shortSide(w, h))
		} else if bitrate := search.Int(variant, "bitrate"); bitrate > 0 {
			c.Quality = qualityFromBitrate(bitrate)
		}
		set.Add(c)
	}
}

var resolutionRegex = regexp.MustCompile(`/(\d+)x(\d+)/`)

func resolutionFromURL(u string) (width, height int) {
	m := resolutionRegex.FindStringSubmatch(u)
	if len(m) < 3 {
		return 0, 0
	}
	w, _ := strconv.Atoi(m[1])
	h, _ := strconv.Atoi(m[2])
	return w, h
}

func qualityFromBitrate(bitrate int) string {
	switch {
	case bitrate >= 2000000:
		return "1080p"
	case bitrate >= 1000000:
		return "720p"
	case bitrate >= 500000:
		return "480p"
	default:
		return "360p"
	}
}

// highQualityImageURL asks pbs.twimg.com for the original size
func highQualityImageURL(imageURL string) string {
	if imageURL == "" || !strings.Contains(imageURL, "twimg.com") {
		return imageURL
	}
	base := strings.Split(imageURL, "?")[0]

	format := "jpg"
	if strings.HasSuffix(base, ".png") {
		format = "png"
	} else if strings.HasSuffix(base, ".webp") {
		format = "webp"
	}
	return base + "?format=" + format + "&name=orig"
}

// shortSide is the dimension quality labels refer to, so portrait video
// ranks like its landscape equivalent
func shortSide(w, h int) int {
	if w > 0 && w < h {
		return w
	}
	return h
}

func truncateText(s string, maxLen int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	return string(runes[:maxLen-3]) + "..."
}

func init() {
	registerSite(twitterRule{})
}
