package scanner

import (
	"math"
)

// Focus score terms
const (
	playingBonus  = 100
	viewportBonus = 50
	maxAreaTerm   = 100

	minFocusWidth   = 200
	minFocusHeight  = 150
	minVisibleRatio = 0.4
)

// FocusMetrics are computed fresh on every scan and never stored
type FocusMetrics struct {
	VisibleRatio float64 `json:"visibleRatio"`
	Area         float64 `json:"area"`
	Playing      bool    `json:"playing"`
	InViewport   bool    `json:"inViewport"`
	Score        float64 `json:"score"`
}

// Focus scores how likely el is the media the user is watching
func Focus(el Element) FocusMetrics {
	m := FocusMetrics{
		Area:    math.Max(0, el.Rect.Width) * math.Max(0, el.Rect.Height),
		Playing: el.Playing(),
	}
	m.VisibleRatio = visibleRatio(el.Rect, el.Viewport)
	m.InViewport = m.VisibleRatio > 0

	if m.Playing {
		m.Score += playingBonus
	}
	bigEnough := el.Rect.Width >= minFocusWidth && el.Rect.Height >= minFocusHeight
	if m.InViewport && (bigEnough || m.VisibleRatio >= minVisibleRatio) {
		m.Score += viewportBonus
	}
	m.Score += math.Min(maxAreaTerm, m.Area/10000*m.VisibleRatio)
	m.Score += math.Max(0, float64(5-el.Index)) * 0.1
	return m
}

// visibleRatio is the share of r inside the viewport, in [0, 1]
func visibleRatio(r Rect, vp Viewport) float64 {
	if r.Width <= 0 || r.Height <= 0 || vp.Width <= 0 || vp.Height <= 0 {
		return 0
	}
	w := math.Min(r.X+r.Width, vp.Width) - math.Max(r.X, 0)
	h := math.Min(r.Y+r.Height, vp.Height) - math.Max(r.Y, 0)
	if w <= 0 || h <= 0 {
		return 0
	}
	return math.Min(1, (w*h)/(r.Width*r.Height))
}
