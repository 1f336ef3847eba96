package media

import (
	"github.com/google/uuid"
)

// Kind represents the type of a discovered asset
type Kind string

const (
	KindVideo Kind = "video"
	KindAudio Kind = "audio"
	KindImage Kind = "image"
)

// Source names used by non-site producers
const (
	SourceGeneric = "generic"
	SourceDOM     = "dom"
)

// UnknownQuality is the label used when no quality signal exists
const UnknownQuality = "N/A"

// Candidate is the normalized descriptor of one discovered audio/video/image asset.
// Both the network rules and the DOM scanner produce it.
type Candidate struct {
	ID           string  `json:"id"`
	URL          string  `json:"url"`
	Kind         Kind    `json:"kind"`
	Quality      string  `json:"quality"`
	Playlist     bool    `json:"playlist"`
	FileName     string  `json:"fileName"`
	ThumbnailURL string  `json:"thumbnailUrl"`
	Source       string  `json:"source"`
	HasAudio     *bool   `json:"hasAudio"` // nil = unknown
	AudioURL     string  `json:"audioUrl"`
	IsPrimary    bool    `json:"isPrimary"`
	DOMScore     float64 `json:"domScore"`
	PageURL      string  `json:"pageUrl"`
}

// Key identifies a candidate within one extraction run
type Key struct {
	URL      string
	Quality  string
	Playlist bool
}

// Key returns the uniqueness key of the candidate
func (c *Candidate) Key() Key {
	return Key{URL: c.URL, Quality: c.Quality, Playlist: c.Playlist}
}

// Pixels returns the comparable pixel-height rank of the candidate's quality
func (c *Candidate) Pixels() int {
	return QualityToPixels(c.Quality)
}

// Bool returns a pointer to b, for HasAudio
func Bool(b bool) *bool {
	return &b
}

// candidateID derives a stable ID for an asset: the same URL and quality always
// map to the same ID for the lifetime of the process and across processes.
func candidateID(rawURL, quality string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(rawURL+"#"+quality)).String()
}

// Flatten merges nested batches into one list, preserving order
func Flatten(batches ...[]Candidate) []Candidate {
	n := 0
	for _, b := range batches {
		n += len(b)
	}
	out := make([]Candidate, 0, n)
	for _, b := range batches {
		out = append(out, b...)
	}
	return out
}
