package extractor

import (
	"bufio"
	"regexp"
	"strconv"
	"strings"

	"github.com/guiyumin/vsniff/internal/core/media"
)

var (
	hlsBandwidthRegex  = regexp.MustCompile(`(?:^|[:,])BANDWIDTH=(\d+)`)
	hlsResolutionRegex = regexp.MustCompile(`RESOLUTION=(\d+)x(\d+)`)
	hlsNameRegex       = regexp.MustCompile(`NAME="([^"]+)"`)
	hlsTypeRegex       = regexp.MustCompile(`TYPE=([A-Z-]+)`)
	hlsURIRegex        = regexp.MustCompile(`URI="([^"]+)"`)
)

// hlsVariant is one #EXT-X-STREAM-INF entry of a master playlist
type hlsVariant struct {
	URL       string
	Bandwidth int
	Width     int
	Height    int
	Name      string
	Audio     bool
}

type hlsRule struct{}

func (hlsRule) Name() string { return "hls" }

func (hlsRule) Origins() []Origin { return nil }

// OnLoad recognizes m3u8 playlists on any origin. Variants of a master
// playlist become candidates next to the master itself; a media playlist is
// reported as the request URL.
func (hlsRule) OnLoad(body, requestURL string) Result {
	text := strings.TrimPrefix(strings.TrimSpace(body), "\uFEFF")
	if !strings.HasPrefix(text, "#EXTM3U") {
		return NoMatch()
	}

	variants, master := parseHLS(text)
	set := media.NewSet(media.SourceGeneric, requestURL)

	if !master {
		set.Add(media.Candidate{
			URL:      requestURL,
			Kind:     media.KindVideo,
			Playlist: true,
		})
		return found(set)
	}

	var bestAudio hlsVariant
	for _, v := range variants {
		if v.Audio && (bestAudio.URL == "" || v.Bandwidth > bestAudio.Bandwidth) {
			bestAudio = v
		}
	}
	audioURL := media.ResolveURL(requestURL, bestAudio.URL)

	for _, v := range variants {
		if v.Audio {
			continue
		}
		c := media.Candidate{
			URL:      v.URL,
			Kind:     media.KindVideo,
			Quality:  hlsQuality(v),
			Playlist: true,
		}
		if audioURL != "" {
			c.HasAudio = media.Bool(false)
			c.AudioURL = audioURL
		}
		set.Add(c)
	}
	if audioURL != "" {
		set.Add(media.Candidate{
			URL:      audioURL,
			Kind:     media.KindAudio,
			Playlist: true,
			Quality:  bestAudio.Name,
		})
	}
	set.Add(media.Candidate{
		URL:      requestURL,
		Kind:     media.KindVideo,
		Playlist: true,
	})
	return found(set)
}

// parseHLS returns the variants of a master playlist, or master=false for a
// media playlist
func parseHLS(text string) (variants []hlsVariant, master bool) {
	scanner := bufio.NewScanner(strings.NewReader(text))
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		switch {
		case strings.HasPrefix(line, "#EXT-X-STREAM-INF:"):
			master = true
			v := parseHLSVariant(line)

			// Next non-comment line should be the URL
			for scanner.Scan() {
				next := strings.TrimSpace(scanner.Text())
				if next == "" || strings.HasPrefix(next, "#") {
					continue
				}
				v.URL = next
				break
			}
			if v.URL != "" {
				variants = append(variants, v)
			}

		case strings.HasPrefix(line, "#EXT-X-MEDIA:"):
			if extractRegex(hlsTypeRegex, line) != "AUDIO" {
				continue
			}
			uri := extractRegex(hlsURIRegex, line)
			if uri == "" {
				continue
			}
			master = true
			variants = append(variants, hlsVariant{
				URL:       uri,
				Name:      extractRegex(hlsNameRegex, line),
				Bandwidth: extractInt(hlsBandwidthRegex, line),
				Audio:     true,
			})
		}
	}
	return variants, master
}

func parseHLSVariant(line string) hlsVariant {
	v := hlsVariant{
		Bandwidth: extractInt(hlsBandwidthRegex, line),
		Name:      extractRegex(hlsNameRegex, line),
	}
	if m := hlsResolutionRegex.FindStringSubmatch(line); len(m) == 3 {
		v.Width, _ = strconv.Atoi(m[1])
		v.Height, _ = strconv.Atoi(m[2])
	}
	return v
}

func hlsQuality(v hlsVariant) string {
	if v.Height > 0 {
		return media.QualityLabel(shortSide(v.Width, v.Height))
	}
	if media.QualityToPixels(v.Name) > 0 {
		return v.Name
	}
	if v.Bandwidth > 0 {
		return qualityFromBitrate(v.Bandwidth)
	}
	return v.Name
}

func extractRegex(re *regexp.Regexp, s string) string {
	m := re.FindStringSubmatch(s)
	if len(m) < 2 {
		return ""
	}
	return m[1]
}

func extractInt(re *regexp.Regexp, s string) int {
	n, _ := strconv.Atoi(extractRegex(re, s))
	return n
}

func init() {
	registerGeneric(hlsRule{})
}
