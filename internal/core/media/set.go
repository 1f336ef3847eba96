package media

import (
	"net/url"
	"path"
	"strings"
)

// Set accumulates the candidates of a single extraction run. URLs are resolved
// against the base URL, unresolvable ones are discarded, and (url, quality,
// playlist) duplicates are suppressed. A Set must not outlive one run.
type Set struct {
	source string
	base   string
	seen   map[Key]bool
	items  []Candidate
}

// NewSet creates a Set for one run of source, resolving against base
func NewSet(source, base string) *Set {
	return &Set{
		source: source,
		base:   base,
		seen:   make(map[Key]bool),
	}
}

// Add normalizes c and appends it. Returns false if c was dropped.
func (s *Set) Add(c Candidate) bool {
	c.URL = ResolveURL(s.base, c.URL)
	if c.URL == "" {
		return false
	}

	c.Quality = NormalizeQuality(c.Quality)
	if !c.Playlist {
		c.Playlist = IsPlaylistURL(c.URL)
	}
	if c.Kind == "" {
		c.Kind = KindFromURL(c.URL)
	}
	if c.Source == "" {
		c.Source = s.source
	}
	if c.ThumbnailURL != "" {
		c.ThumbnailURL = ResolveURL(s.base, c.ThumbnailURL)
	}
	if c.AudioURL != "" {
		c.AudioURL = ResolveURL(s.base, c.AudioURL)
	}
	c.FileName = FileName(c.FileName, c.URL)

	key := c.Key()
	if s.seen[key] {
		return false
	}
	s.seen[key] = true

	if c.ID == "" {
		c.ID = candidateID(c.URL, c.Quality)
	}
	s.items = append(s.items, c)
	return true
}

// Len returns the number of accepted candidates
func (s *Set) Len() int {
	return len(s.items)
}

// Candidates returns the accepted candidates in discovery order
func (s *Set) Candidates() []Candidate {
	out := make([]Candidate, len(s.items))
	copy(out, s.items)
	return out
}

// FileName returns a best-effort, never empty, filesystem-safe title.
// It prefers title, then the URL's last path element, then its host.
func FileName(title, rawURL string) string {
	if name := SanitizeFilename(title); name != "" {
		return name
	}

	if u, err := url.Parse(rawURL); err == nil {
		base := path.Base(u.Path)
		if base == "/" || base == "." {
			base = ""
		}
		if idx := strings.LastIndex(base, "."); idx > 0 {
			base = base[:idx]
		}
		if name := SanitizeFilename(base); name != "" {
			return name
		}
		if name := SanitizeFilename(u.Hostname()); name != "" {
			return name
		}
	}
	return "media"
}
