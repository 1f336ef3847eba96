package media

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var (
	// 1920x1080, 1280×720
	dimensionRegex = regexp.MustCompile(`(\d{2,5})\s*[xX×]\s*(\d{2,5})`)
	// 720p, 1080p60, 480i
	heightRegex  = regexp.MustCompile(`(\d{2,4})\s*[pPiI](?:\d{2,3})?(?:[^0-9a-zA-Z]|$)`)
	bareIntRegex = regexp.MustCompile(`^\d{2,4}$`)
)

// namedTiers maps quality names without a numeric signal to pixel heights
var namedTiers = []struct {
	name   string
	height int
}{
	{"8k", 4320},
	{"4k", 2160},
	{"uhd", 2160},
	{"2k", 1440},
	{"qhd", 1440},
	{"full hd", 1080},
	{"fullhd", 1080},
	{"fhd", 1080},
	{"hd", 720},
	{"sd", 480},
	{"ld", 360},
}

// QualityToPixels converts a quality label into a comparable pixel-height rank.
// Returns 0 when the label carries no numeric or named signal (e.g. "N/A").
func QualityToPixels(label string) int {
	label = strings.TrimSpace(label)
	if label == "" || label == UnknownQuality {
		return 0
	}

	// Width-by-height, use the height component
	if m := lastSubmatch(dimensionRegex, label); m != nil {
		if h, err := strconv.Atoi(m[2]); err == nil {
			return h
		}
	}

	if m := lastSubmatch(heightRegex, label); m != nil {
		if h, err := strconv.Atoi(m[1]); err == nil {
			return h
		}
	}

	if bareIntRegex.MatchString(label) {
		h, _ := strconv.Atoi(label)
		return h
	}

	lower := strings.ToLower(label)
	for _, tier := range namedTiers {
		if containsWord(lower, tier.name) {
			return tier.height
		}
	}
	return 0
}

// QualityLabel renders a pixel height as a label such as "720p", or "N/A" for 0
func QualityLabel(height int) string {
	if height <= 0 {
		return UnknownQuality
	}
	return fmt.Sprintf("%dp", height)
}

// NormalizeQuality turns an arbitrary quality string into the shared label form.
// Labels with a numeric signal become "<height>p"; anything else is kept trimmed,
// or "N/A" when empty.
func NormalizeQuality(label string) string {
	label = strings.TrimSpace(label)
	if label == "" {
		return UnknownQuality
	}
	if px := QualityToPixels(label); px > 0 {
		return QualityLabel(px)
	}
	return label
}

func lastSubmatch(re *regexp.Regexp, s string) []string {
	all := re.FindAllStringSubmatch(s, -1)
	if len(all) == 0 {
		return nil
	}
	return all[len(all)-1]
}

func containsWord(s, word string) bool {
	idx := strings.Index(s, word)
	for idx >= 0 {
		before := idx == 0 || !isAlnum(s[idx-1])
		end := idx + len(word)
		after := end == len(s) || !isAlnum(s[end])
		if before && after {
			return true
		}
		next := strings.Index(s[idx+1:], word)
		if next < 0 {
			break
		}
		idx += next + 1
	}
	return false
}

func isAlnum(b byte) bool {
	return b >= '0' && b <= '9' || b >= 'a' && b <= 'z' || b >= 'A' && b <= 'Z'
}
