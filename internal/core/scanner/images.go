package scanner

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/guiyumin/vsniff/internal/core/media"
)

// DefaultMaxImages caps one image scan
const DefaultMaxImages = 40

var (
	lazySrcAttrs    = []string{"data-src", "data-original", "data-lazy-src", "data-lazy"}
	lazySrcsetAttrs = []string{"srcset", "data-srcset", "data-lazy-srcset"}

	backgroundImageRegex = regexp.MustCompile(`background(?:-image)?\s*:[^;]*url\(\s*['"]?([^'")]+)['"]?\s*\)`)
)

// metaImageSelectors name the image a page advertises for itself
var metaImageSelectors = []struct {
	selector string
	attr     string
}{
	{`meta[property="og:image"]`, "content"},
	{`meta[property="og:image:secure_url"]`, "content"},
	{`meta[name="twitter:image"]`, "content"},
	{`meta[name="twitter:image:src"]`, "content"},
	{`link[rel="image_src"]`, "href"},
}

// ScanImages collects displayed and lazily loaded images from an HTML
// snapshot of the page, deduplicated by resolved URL. max <= 0 uses
// DefaultMaxImages.
func ScanImages(pageURL, html string, max int) []media.Candidate {
	if max <= 0 {
		max = DefaultMaxImages
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil
	}

	title := strings.TrimSpace(doc.Find("title").First().Text())
	set := media.NewSet(media.SourceDOM, pageURL)
	seen := make(map[string]bool)

	add := func(ref, alt string) {
		if set.Len() >= max || isEphemeral(ref) {
			return
		}
		u := media.ResolveURL(pageURL, ref)
		if u == "" || seen[u] {
			return
		}
		seen[u] = true
		name := alt
		if name == "" {
			name = title
		}
		set.Add(media.Candidate{
			URL:      u,
			Kind:     media.KindImage,
			FileName: name,
			PageURL:  pageURL,
		})
	}

	doc.Find("img").Each(func(_ int, s *goquery.Selection) {
		alt, _ := s.Attr("alt")

		if ref := bestSrcset(srcsetOf(s)); ref != "" {
			add(ref, alt)
		}
		for _, attr := range lazySrcAttrs {
			if ref, ok := s.Attr(attr); ok {
				add(ref, alt)
			}
		}
		if ref, ok := s.Attr("src"); ok {
			add(ref, alt)
		}
	})

	doc.Find("picture source").Each(func(_ int, s *goquery.Selection) {
		if ref := bestSrcset(srcsetOf(s)); ref != "" {
			add(ref, "")
		}
	})

	doc.Find("[style]").Each(func(_ int, s *goquery.Selection) {
		style, _ := s.Attr("style")
		for _, m := range backgroundImageRegex.FindAllStringSubmatch(style, -1) {
			add(m[1], "")
		}
	})

	for _, meta := range metaImageSelectors {
		doc.Find(meta.selector).Each(func(_ int, s *goquery.Selection) {
			if ref, ok := s.Attr(meta.attr); ok {
				add(ref, "")
			}
		})
	}

	return set.Candidates()
}

func srcsetOf(s *goquery.Selection) string {
	for _, attr := range lazySrcsetAttrs {
		if v, ok := s.Attr(attr); ok && strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

// bestSrcset returns the widest entry of a srcset attribute. Density
// descriptors (2x) rank as multiples of 1000 so they beat bare entries.
func bestSrcset(srcset string) string {
	best, bestWidth := "", -1
	for _, entry := range strings.Split(srcset, ",") {
		fields := strings.Fields(strings.TrimSpace(entry))
		if len(fields) == 0 {
			continue
		}
		width := 0
		if len(fields) > 1 {
			d := fields[len(fields)-1]
			switch {
			case strings.HasSuffix(d, "w"):
				width, _ = strconv.Atoi(strings.TrimSuffix(d, "w"))
			case strings.HasSuffix(d, "x"):
				f, _ := strconv.ParseFloat(strings.TrimSuffix(d, "x"), 64)
				width = int(f * 1000)
			}
		}
		if width > bestWidth {
			best, bestWidth = fields[0], width
		}
	}
	return best
}
