// Package scanner inspects the live page for media elements and images,
// independently of network traffic.
package scanner

// Rect is an element's bounding box in CSS pixels, relative to the viewport
type Rect struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Viewport is the size of the visible area
type Viewport struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Element is a snapshot of one <video> or <audio> element
type Element struct {
	Tag         string   `json:"tag"`
	Src         string   `json:"src"`
	CurrentSrc  string   `json:"currentSrc"`
	Sources     []string `json:"sources"` // <source src> children
	Refs        []string `json:"refs"`    // URLs found in other attributes (data-*)
	Poster      string   `json:"poster"`
	Title       string   `json:"title"`
	Paused      bool     `json:"paused"`
	Ended       bool     `json:"ended"`
	Muted       bool     `json:"muted"`
	ReadyState  int      `json:"readyState"`
	VideoWidth  int      `json:"videoWidth"`
	VideoHeight int      `json:"videoHeight"`
	Rect        Rect     `json:"rect"`
	Viewport    Viewport `json:"viewport"`
	Index       int      `json:"index"`
}

// Playing reports whether the element is currently playing
func (e Element) Playing() bool {
	return !e.Paused && !e.Ended
}

// ownURLs returns the URLs the element itself plays from, currentSrc first
func (e Element) ownURLs() []string {
	urls := make([]string, 0, 2+len(e.Sources))
	for _, u := range append([]string{e.CurrentSrc, e.Src}, e.Sources...) {
		if u != "" {
			urls = append(urls, u)
		}
	}
	return urls
}
