package extractor

import (
	"encoding/xml"
	"fmt"
	"strings"

	"github.com/guiyumin/vsniff/internal/core/media"
)

type mpd struct {
	BaseURL string      `xml:"BaseURL"`
	Periods []mpdPeriod `xml:"Period"`
}

type mpdPeriod struct {
	BaseURL        string             `xml:"BaseURL"`
	AdaptationSets []mpdAdaptationSet `xml:"AdaptationSet"`
}

type mpdAdaptationSet struct {
	MimeType        string              `xml:"mimeType,attr"`
	ContentType     string              `xml:"contentType,attr"`
	Width           int                 `xml:"width,attr"`
	Height          int                 `xml:"height,attr"`
	BaseURL         string              `xml:"BaseURL"`
	Representations []mpdRepresentation `xml:"Representation"`
}

type mpdRepresentation struct {
	ID        string `xml:"id,attr"`
	MimeType  string `xml:"mimeType,attr"`
	Bandwidth int    `xml:"bandwidth,attr"`
	Width     int    `xml:"width,attr"`
	Height    int    `xml:"height,attr"`
	BaseURL   string `xml:"BaseURL"`
}

type dashRule struct{}

func (dashRule) Name() string { return "dash" }

func (dashRule) Origins() []Origin { return nil }

// OnLoad recognizes MPD manifests on any origin. Representations with a
// BaseURL are directly addressable; segment-templated ones are only reachable
// through the manifest, which is always reported.
func (dashRule) OnLoad(body, requestURL string) Result {
	if !strings.Contains(body, "<MPD") {
		return NoMatch()
	}

	var doc mpd
	if err := xml.Unmarshal([]byte(body), &doc); err != nil {
		return Failed(fmt.Errorf("dash: %w", err))
	}

	set := media.NewSet(media.SourceGeneric, requestURL)
	root := joinBase(requestURL, doc.BaseURL)

	var videos []media.Candidate
	var bestAudio string
	bestAudioBandwidth := -1

	for _, period := range doc.Periods {
		periodBase := joinBase(root, period.BaseURL)
		for _, as := range period.AdaptationSets {
			setBase := joinBase(periodBase, as.BaseURL)
			for _, rep := range as.Representations {
				if rep.BaseURL == "" {
					continue
				}
				u := joinBase(setBase, rep.BaseURL)
				if dashIsAudio(as, rep) {
					if rep.Bandwidth > bestAudioBandwidth {
						bestAudio, bestAudioBandwidth = u, rep.Bandwidth
					}
					continue
				}
				width, height := rep.Width, rep.Height
				if height == 0 {
					width, height = as.Width, as.Height
				}
				videos = append(videos, media.Candidate{
					URL:     u,
					Kind:    media.KindVideo,
					Quality: media.QualityLabel(shortSide(width, height)),
				})
			}
		}
	}

	for _, v := range videos {
		if bestAudio != "" {
			v.HasAudio = media.Bool(false)
			v.AudioURL = bestAudio
		}
		set.Add(v)
	}
	if bestAudio != "" {
		set.Add(media.Candidate{URL: bestAudio, Kind: media.KindAudio})
	}
	set.Add(media.Candidate{
		URL:      requestURL,
		Kind:     media.KindVideo,
		Playlist: true,
	})
	return found(set)
}

func dashIsAudio(as mpdAdaptationSet, rep mpdRepresentation) bool {
	mime := rep.MimeType
	if mime == "" {
		mime = as.MimeType
	}
	return strings.HasPrefix(mime, "audio/") || as.ContentType == "audio"
}

// joinBase resolves a BaseURL element against its parent base. An empty or
// unresolvable ref leaves the parent unchanged.
func joinBase(parent, ref string) string {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return parent
	}
	if u := media.ResolveURL(parent, ref); u != "" {
		return u
	}
	return parent
}

func init() {
	registerGeneric(dashRule{})
}
