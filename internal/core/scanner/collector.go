package scanner

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-rod/rod"
)

// Collector reads a snapshot of the page. It only inspects the DOM and never
// changes it.
type Collector interface {
	// Elements returns every <video> and <audio> element with its geometry
	Elements(ctx context.Context) ([]Element, error)

	// HTML returns the serialized document
	HTML(ctx context.Context) (string, error)

	// Page returns the current page URL and title
	Page(ctx context.Context) (pageURL, title string, err error)
}

// elementsJS snapshots media elements, including URLs that players such as
// video.js keep outside the element's attributes
const elementsJS = `() => {
	const vw = window.innerWidth || document.documentElement.clientWidth;
	const vh = window.innerHeight || document.documentElement.clientHeight;
	const refAttrs = ['data-src', 'data-video-src', 'data-video-url', 'data-hls', 'data-mp4', 'data-url'];
	return Array.from(document.querySelectorAll('video, audio')).map((el, index) => {
		const r = el.getBoundingClientRect();
		const refs = [];
		for (const a of refAttrs) {
			const v = el.getAttribute(a);
			if (v) refs.push(v);
		}
		const vjs = el.closest('.video-js');
		if (vjs && vjs.player && typeof vjs.player.currentSrc === 'function') {
			const src = vjs.player.currentSrc();
			if (src) refs.push(src);
		}
		return {
			tag: el.tagName.toLowerCase(),
			src: el.getAttribute('src') ? el.src : '',
			currentSrc: el.currentSrc || '',
			sources: Array.from(el.querySelectorAll('source')).map(s => s.src).filter(Boolean),
			refs: refs,
			poster: el.poster || '',
			title: el.getAttribute('title') || el.getAttribute('aria-label') || '',
			paused: el.paused,
			ended: el.ended,
			muted: el.muted,
			readyState: el.readyState,
			videoWidth: el.videoWidth || 0,
			videoHeight: el.videoHeight || 0,
			rect: {x: r.x, y: r.y, width: r.width, height: r.height},
			viewport: {width: vw, height: vh},
			index: index,
		};
	});
}`

// RodCollector reads a go-rod page
type RodCollector struct {
	page *rod.Page
}

// NewRodCollector wraps page
func NewRodCollector(page *rod.Page) *RodCollector {
	return &RodCollector{page: page}
}

func (c *RodCollector) Elements(ctx context.Context) ([]Element, error) {
	res, err := c.page.Context(ctx).Eval(elementsJS)
	if err != nil {
		return nil, fmt.Errorf("evaluate media elements: %w", err)
	}
	var els []Element
	if err := res.Value.Unmarshal(&els); err != nil {
		return nil, fmt.Errorf("decode media elements: %w", err)
	}
	return els, nil
}

func (c *RodCollector) HTML(ctx context.Context) (string, error) {
	return c.page.Context(ctx).HTML()
}

func (c *RodCollector) Page(ctx context.Context) (string, string, error) {
	info, err := c.page.Context(ctx).Info()
	if err != nil {
		return "", "", err
	}
	return info.URL, strings.TrimSpace(info.Title), nil
}
