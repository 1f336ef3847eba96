package extractor

import (
	"errors"

	"github.com/guiyumin/vsniff/internal/core/media"
)

// Quality definitions
var bilibiliQualityMap = map[int]string{
	127: "8K",
	126: "Dolby Vision",
	125: "HDR",
	120: "4K",
	116: "1080P60",
	112: "1080P+",
	80:  "1080P",
	74:  "720P60",
	64:  "720P",
	32:  "480P",
	16:  "360P",
}

type bilibiliRule struct{}

func (bilibiliRule) Name() string { return "bilibili" }

func (bilibiliRule) Origins() []Origin {
	return []Origin{
		Host("bilibili.com"),
		Host("api.bilibili.com"),
		Host("m.bilibili.com"),
	}
}

// bilibiliStreamInfo is the dash section of a playurl response
type bilibiliStreamInfo struct {
	Videos []struct {
		ID        int    `json:"id"`
		BaseURL   string `json:"baseUrl"`
		BaseURL2  string `json:"base_url"`
		Bandwidth int64  `json:"bandwidth"`
		Width     int    `json:"width"`
		Height    int    `json:"height"`
	} `json:"video"`
	Audios []struct {
		ID        int    `json:"id"`
		BaseURL   string `json:"baseUrl"`
		BaseURL2  string `json:"base_url"`
		Bandwidth int64  `json:"bandwidth"`
	} `json:"audio"`
}

type bilibiliPlayURL struct {
	Quality int                 `json:"quality"`
	Dash    *bilibiliStreamInfo `json:"dash"`
	Durl    []struct {
		URL string `json:"url"`
	} `json:"durl"`
}

// bilibiliResponse covers the ugc (data) and pgc (result) playurl envelopes
type bilibiliResponse struct {
	Code   int              `json:"code"`
	Data   *bilibiliPlayURL `json:"data"`
	Result *bilibiliPlayURL `json:"result"`
}

var errBilibiliNoStreams = errors.New("bilibili: no playable streams")

// OnLoad reads playurl API responses and the window.__playinfo__ blob
// embedded in video pages.
func (r bilibiliRule) OnLoad(body, requestURL string) Result {
	if !hasAny(body, `"dash"`, `"durl"`) {
		return NoMatch()
	}

	var resp bilibiliResponse
	if hasAny(body, "window.__playinfo__") {
		if err := decodeAfter(body, "window.__playinfo__", &resp); err != nil {
			return Failed(err)
		}
	} else if err := DecodeJSONInto(body, &resp); err != nil {
		return Failed(err)
	}

	play := resp.Data
	if play == nil {
		play = resp.Result
	}
	if play == nil {
		return Failed(errBilibiliNoStreams)
	}

	set := media.NewSet(r.Name(), requestURL)
	if play.Dash != nil {
		addBilibiliDash(set, play.Dash)
	}
	for _, d := range play.Durl {
		set.Add(media.Candidate{
			URL:      d.URL,
			Kind:     media.KindVideo,
			Quality:  bilibiliQualityMap[play.Quality],
			HasAudio: media.Bool(true),
		})
	}
	return found(set)
}

func addBilibiliDash(set *media.Set, dash *bilibiliStreamInfo) {
	// Find best audio stream
	var bestAudioURL string
	var bestAudioBandwidth int64
	for _, audio := range dash.Audios {
		u := firstNonEmpty(audio.BaseURL, audio.BaseURL2)
		if u != "" && audio.Bandwidth > bestAudioBandwidth {
			bestAudioBandwidth = audio.Bandwidth
			bestAudioURL = u
		}
	}

	for _, video := range dash.Videos {
		quality := bilibiliQualityMap[video.ID]
		if media.QualityToPixels(quality) == 0 && video.Height > 0 {
			quality = media.QualityLabel(shortSide(video.Width, video.Height))
		}
		set.Add(media.Candidate{
			URL:      firstNonEmpty(video.BaseURL, video.BaseURL2),
			Kind:     media.KindVideo,
			Quality:  quality,
			HasAudio: media.Bool(false),
			AudioURL: bestAudioURL,
		})
	}

	if bestAudioURL != "" {
		set.Add(media.Candidate{
			URL:      bestAudioURL,
			Kind:     media.KindAudio,
			HasAudio: media.Bool(true),
		})
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func init() {
	registerSite(bilibiliRule{})
}
