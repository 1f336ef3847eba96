package extractor

import (
	"fmt"

	"github.com/guiyumin/vsniff/internal/core/media"
)

// iTunes API response structures
type iTunesLookupResponse struct {
	ResultCount int                  `json:"resultCount"`
	Results     []iTunesLookupResult `json:"results"`
}

type iTunesLookupResult struct {
	WrapperType    string `json:"wrapperType"`
	ArtistName     string `json:"artistName"`
	CollectionName string `json:"collectionName"`
	TrackName      string `json:"trackName"`
	EpisodeURL     string `json:"episodeUrl"`
	PreviewURL     string `json:"previewUrl"`
	ArtworkURL600  string `json:"artworkUrl600"`
}

type itunesRule struct{}

func (itunesRule) Name() string { return "itunes" }

func (itunesRule) Origins() []Origin {
	return []Origin{
		Host("itunes.apple.com"),
		Host("podcasts.apple.com"),
	}
}

// OnLoad reads lookup?entity=podcastEpisode responses
func (r itunesRule) OnLoad(body, requestURL string) Result {
	if !hasAny(body, "episodeUrl") {
		return NoMatch()
	}
	var resp iTunesLookupResponse
	if err := DecodeJSONInto(body, &resp); err != nil {
		return Failed(err)
	}

	set := media.NewSet(r.Name(), requestURL)
	for _, item := range resp.Results {
		if item.WrapperType != "podcastEpisode" {
			continue
		}
		set.Add(media.Candidate{
			URL:          firstNonEmpty(item.EpisodeURL, item.PreviewURL),
			Kind:         media.KindAudio,
			FileName:     fmt.Sprintf("%s - %s", item.CollectionName, item.TrackName),
			ThumbnailURL: item.ArtworkURL600,
			HasAudio:     media.Bool(true),
		})
	}
	return found(set)
}

// Episode pages carry their data in the Next.js bootstrap script
type xiaoyuzhouNextData struct {
	Props struct {
		PageProps struct {
			Episode struct {
				Title     string `json:"title"`
				Enclosure struct {
					URL string `json:"url"`
				} `json:"enclosure"`
				Image struct {
					LargePicURL string `json:"largePicUrl"`
				} `json:"image"`
				Podcast struct {
					Title string `json:"title"`
				} `json:"podcast"`
			} `json:"episode"`
		} `json:"pageProps"`
	} `json:"props"`
}

type xiaoyuzhouRule struct{}

func (xiaoyuzhouRule) Name() string { return "xiaoyuzhou" }

func (xiaoyuzhouRule) Origins() []Origin {
	return []Origin{Host("xiaoyuzhoufm.com")}
}

func (r xiaoyuzhouRule) OnLoad(body, requestURL string) Result {
	if !hasAny(body, "__NEXT_DATA__") {
		return NoMatch()
	}
	var data xiaoyuzhouNextData
	if err := decodeAfter(body, `<script id="__NEXT_DATA__"`, &data); err != nil {
		return Failed(err)
	}

	episode := data.Props.PageProps.Episode
	title := episode.Title
	if episode.Podcast.Title != "" {
		title = fmt.Sprintf("%s - %s", episode.Podcast.Title, episode.Title)
	}

	set := media.NewSet(r.Name(), requestURL)
	set.Add(media.Candidate{
		URL:          episode.Enclosure.URL,
		Kind:         media.KindAudio,
		FileName:     title,
		ThumbnailURL: episode.Image.LargePicURL,
		HasAudio:     media.Bool(true),
	})
	return found(set)
}

func init() {
	registerSite(itunesRule{})
	registerSite(xiaoyuzhouRule{})
}
