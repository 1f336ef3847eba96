package cli

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/fatih/color"

	"github.com/guiyumin/vsniff/internal/core/media"
)

var kindOrder = map[media.Kind]int{
	media.KindVideo: 0,
	media.KindAudio: 1,
	media.KindImage: 2,
}

var kindColor = map[media.Kind]*color.Color{
	media.KindVideo: color.New(color.FgCyan, color.Bold),
	media.KindAudio: color.New(color.FgMagenta, color.Bold),
	media.KindImage: color.New(color.FgYellow),
}

// sortForDisplay groups candidates by kind, best quality first
func sortForDisplay(cands []media.Candidate) []media.Candidate {
	out := make([]media.Candidate, len(cands))
	copy(out, cands)
	sort.SliceStable(out, func(i, j int) bool {
		if ki, kj := kindOrder[out[i].Kind], kindOrder[out[j].Kind]; ki != kj {
			return ki < kj
		}
		return out[i].Pixels() > out[j].Pixels()
	})
	return out
}

func printCandidates(w io.Writer, cands []media.Candidate) {
	if len(cands) == 0 {
		fmt.Fprintln(w, color.YellowString("  No media found. Try a longer --wait or --visible to interact with the page."))
		return
	}

	dim := color.New(color.Faint)
	green := color.New(color.FgGreen)

	var lastKind media.Kind
	for _, c := range sortForDisplay(cands) {
		if c.Kind != lastKind {
			kc := kindColor[c.Kind]
			if kc == nil {
				kc = color.New(color.Bold)
			}
			fmt.Fprintf(w, "\n  %s\n", kc.Sprint(strings.ToUpper(string(c.Kind))))
			lastKind = c.Kind
		}

		marker := " "
		if c.IsPrimary {
			marker = green.Sprint("★")
		}
		fmt.Fprintf(w, "  %s %-6s %s\n", marker, c.Quality, c.URL)

		var details []string
		if c.FileName != "" {
			details = append(details, c.FileName)
		}
		if c.Playlist {
			details = append(details, "playlist")
		}
		if c.HasAudio != nil && !*c.HasAudio {
			details = append(details, "no audio")
		}
		if c.AudioURL != "" {
			details = append(details, "audio: "+c.AudioURL)
		}
		details = append(details, "via "+c.Source)
		fmt.Fprintf(w, "           %s\n", dim.Sprint(strings.Join(details, " · ")))
	}
	fmt.Fprintln(w)
}

func warn(msg string) {
	fmt.Fprintln(color.Error, color.YellowString(msg))
}
