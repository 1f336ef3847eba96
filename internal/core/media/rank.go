package media

import (
	"sort"
)

// Rank orders candidates by descending pixel height, ties keep discovery order.
// The top candidate is marked primary unless one is already designated; any
// extra primaries are cleared so that at most one survives.
func Rank(cands []Candidate) []Candidate {
	out := make([]Candidate, len(cands))
	copy(out, cands)

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Pixels() > out[j].Pixels()
	})

	ensurePrimary(out)
	return out
}

// Cap ranks the candidates and keeps the n highest-ranked. n <= 0 means no cap.
// A designated primary that falls outside the cap is kept in place of the
// last slot, since it is the element the user is looking at.
func Cap(cands []Candidate, n int) []Candidate {
	ranked := Rank(cands)
	if n <= 0 || len(ranked) <= n {
		return ranked
	}

	kept := ranked[:n:n]
	for i := n; i < len(ranked); i++ {
		if ranked[i].IsPrimary {
			kept[n-1] = ranked[i]
			sort.SliceStable(kept, func(a, b int) bool {
				return kept[a].Pixels() > kept[b].Pixels()
			})
			break
		}
	}
	ensurePrimary(kept)
	return kept
}

// Primary returns the primary candidate of a batch, if any
func Primary(cands []Candidate) (Candidate, bool) {
	for _, c := range cands {
		if c.IsPrimary {
			return c, true
		}
	}
	return Candidate{}, false
}

func ensurePrimary(cands []Candidate) {
	if len(cands) == 0 {
		return
	}
	found := false
	for i := range cands {
		if !cands[i].IsPrimary {
			continue
		}
		if found {
			cands[i].IsPrimary = false
			continue
		}
		found = true
	}
	if !found {
		cands[0].IsPrimary = true
	}
}
