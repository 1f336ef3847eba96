package extractor

import (
	"strings"

	"github.com/tidwall/gjson"

	"github.com/guiyumin/vsniff/internal/core/media"
)

type youtubeRule struct{}

func (youtubeRule) Name() string { return "youtube" }

func (youtubeRule) Origins() []Origin {
	return []Origin{
		Host("youtube.com"),
		Host("m.youtube.com"),
		Host("music.youtube.com"),
		Host("youtube-nocookie.com"),
	}
}

// OnLoad reads /youtubei/v1/player responses and the ytInitialPlayerResponse
// blob of watch pages. Formats protected by signatureCipher carry no url and
// are skipped.
func (r youtubeRule) OnLoad(body, requestURL string) Result {
	if !hasAny(body, "streamingData") {
		return NoMatch()
	}

	var raw string
	var err error
	if hasAny(body, "ytInitialPlayerResponse") && !strings.HasPrefix(strings.TrimSpace(body), "{") {
		raw, err = RawJSONAfter(body, "ytInitialPlayerResponse")
	} else {
		raw, err = RawJSON(body)
	}
	if err != nil {
		return Failed(err)
	}

	player := gjson.Parse(raw)
	if !player.Get("streamingData").Exists() {
		player = player.Get("playerResponse")
	}
	streaming := player.Get("streamingData")
	title := player.Get("videoDetails.title").String()
	thumb := ""
	if thumbs := player.Get("videoDetails.thumbnail.thumbnails").Array(); len(thumbs) > 0 {
		thumb = thumbs[len(thumbs)-1].Get("url").String()
	}

	set := media.NewSet(r.Name(), requestURL)

	streaming.Get("formats").ForEach(func(_, f gjson.Result) bool {
		set.Add(media.Candidate{
			URL:          f.Get("url").String(),
			Kind:         media.KindVideo,
			Quality:      youtubeQuality(f),
			FileName:     title,
			ThumbnailURL: thumb,
			HasAudio:     media.Bool(true),
		})
		return true
	})

	var bestAudio gjson.Result
	streaming.Get("adaptiveFormats").ForEach(func(_, f gjson.Result) bool {
		if strings.HasPrefix(f.Get("mimeType").String(), "audio/") && f.Get("url").Exists() {
			if f.Get("bitrate").Int() > bestAudio.Get("bitrate").Int() {
				bestAudio = f
			}
		}
		return true
	})
	audioURL := bestAudio.Get("url").String()

	streaming.Get("adaptiveFormats").ForEach(func(_, f gjson.Result) bool {
		if !strings.HasPrefix(f.Get("mimeType").String(), "video/") {
			return true
		}
		set.Add(media.Candidate{
			URL:          f.Get("url").String(),
			Kind:         media.KindVideo,
			Quality:      youtubeQuality(f),
			FileName:     title,
			ThumbnailURL: thumb,
			HasAudio:     media.Bool(false),
			AudioURL:     audioURL,
		})
		return true
	})

	if audioURL != "" {
		set.Add(media.Candidate{
			URL:          audioURL,
			Kind:         media.KindAudio,
			FileName:     title,
			ThumbnailURL: thumb,
			HasAudio:     media.Bool(true),
		})
	}

	if hls := streaming.Get("hlsManifestUrl").String(); hls != "" {
		set.Add(media.Candidate{
			URL:          hls,
			Kind:         media.KindVideo,
			Playlist:     true,
			FileName:     title,
			ThumbnailURL: thumb,
			HasAudio:     media.Bool(true),
		})
	}

	return found(set)
}

func youtubeQuality(f gjson.Result) string {
	if label := f.Get("qualityLabel").String(); label != "" {
		return label
	}
	return media.QualityLabel(shortSide(int(f.Get("width").Int()), int(f.Get("height").Int())))
}

func init() {
	registerSite(youtubeRule{})
}
