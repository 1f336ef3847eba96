package scanner

import (
	"strings"

	"github.com/guiyumin/vsniff/internal/core/media"
)

// MaxVideoCandidates caps one video scan
const MaxVideoCandidates = 12

// ScanVideos turns media elements into candidates. URLs an element plays from
// are accepted as is; other referenced URLs need a media extension. The
// element with the highest focus score provides the primary candidate, even
// when its quality is unknown.
func ScanVideos(pageURL, title string, els []Element) []media.Candidate {
	set := media.NewSet(media.SourceDOM, pageURL)

	bestScore := -1.0
	primaryURL := ""

	for _, el := range els {
		focus := Focus(el)
		kind := media.KindVideo
		if strings.EqualFold(el.Tag, "audio") {
			kind = media.KindAudio
		}
		name := el.Title
		if name == "" {
			name = title
		}

		add := func(u string) string {
			if isEphemeral(u) {
				return ""
			}
			c := media.Candidate{
				URL:          u,
				Kind:         kind,
				Quality:      media.QualityLabel(shortSide(el.VideoWidth, el.VideoHeight)),
				FileName:     name,
				ThumbnailURL: el.Poster,
				DOMScore:     focus.Score,
				PageURL:      pageURL,
			}
			// a URL another element already added still counts for this one
			set.Add(c)
			return media.ResolveURL(pageURL, u)
		}

		first := ""
		for _, u := range el.ownURLs() {
			if got := add(u); got != "" && first == "" {
				first = got
			}
		}
		for _, u := range el.Refs {
			if media.HasMediaExtension(u) {
				if got := add(u); got != "" && first == "" {
					first = got
				}
			}
		}

		if first != "" && focus.Score > bestScore {
			bestScore, primaryURL = focus.Score, first
		}
	}

	cands := set.Candidates()
	for i := range cands {
		cands[i].IsPrimary = cands[i].URL == primaryURL
		if cands[i].IsPrimary {
			// one element may expose several URLs; only the first is primary
			primaryURL = ""
		}
	}
	return media.Cap(cands, MaxVideoCandidates)
}

// isEphemeral reports URLs that are meaningless outside the page
func isEphemeral(u string) bool {
	lower := strings.ToLower(strings.TrimSpace(u))
	return strings.HasPrefix(lower, "blob:") || strings.HasPrefix(lower, "data:") || strings.HasPrefix(lower, "mediasource:")
}

func shortSide(w, h int) int {
	if w > 0 && w < h {
		return w
	}
	return h
}
