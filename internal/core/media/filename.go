package media

import (
	"regexp"
	"strings"
)

var (
	filenameURLRegex   = regexp.MustCompile(`https?://[^\s]+`)
	filenameSpaceRegex = regexp.MustCompile(`\s+`)
	filenameReplacer   = strings.NewReplacer(
		"/", "-",
		"\\", "-",
		":", "-",
		"*", "",
		"?", "",
		"\"", "",
		"<", "",
		">", "",
		"|", "",
		"\n", " ",
		"\r", "",
		"\t", " ",
	)
)

// SanitizeFilename removes or replaces characters that are invalid in filenames
func SanitizeFilename(name string) string {
	// Titles often end with a share link
	result := filenameURLRegex.ReplaceAllString(name, "")
	result = filenameReplacer.Replace(result)

	result = strings.Map(func(r rune) rune {
		if r < 0x20 || r == 0x7f {
			return -1
		}
		return r
	}, result)

	result = strings.TrimSpace(result)
	result = strings.Trim(result, ".")
	result = filenameSpaceRegex.ReplaceAllString(result, " ")

	// Most filesystems limit names to 255 bytes; 60 runes leaves room for CJK and an extension.
	const maxRunes = 60
	runes := []rune(result)
	if len(runes) > maxRunes {
		result = string(runes[:maxRunes])
	}

	return strings.TrimSpace(result)
}
