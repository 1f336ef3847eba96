package media

import (
	"net/url"
	"path"
	"strings"
)

var urlUnescaper = strings.NewReplacer(
	`\/`, "/",
	`\u0026`, "&",
	`\u002F`, "/",
	`\u002f`, "/",
	"&amp;", "&",
)

// ResolveURL resolves ref against base the way a browser does (RFC 3986: the
// last segment of a base path without a trailing slash is dropped) and
// returns an absolute http(s) URL.
// References that cannot be resolved, or that resolve to any other scheme
// (javascript:, data:, blob:, mailto: ...), yield "".
func ResolveURL(base, ref string) string {
	ref = strings.TrimSpace(urlUnescaper.Replace(ref))
	if ref == "" {
		return ""
	}

	r, err := url.Parse(ref)
	if err != nil {
		return ""
	}

	if !r.IsAbs() {
		b, err := url.Parse(strings.TrimSpace(base))
		if err != nil || !b.IsAbs() {
			return ""
		}
		r = b.ResolveReference(r)
	}

	switch strings.ToLower(r.Scheme) {
	case "http", "https":
	default:
		return ""
	}
	if r.Host == "" {
		return ""
	}
	r.Fragment = ""
	return r.String()
}

// Hostname returns the lowercased host of rawURL without port, or ""
func Hostname(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Hostname())
}

// Ext returns the lowercased path extension of rawURL, including the dot
func Ext(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return strings.ToLower(path.Ext(u.Path))
}

var videoExtensions = map[string]bool{
	".mp4": true, ".webm": true, ".mov": true, ".avi": true, ".mkv": true,
	".flv": true, ".ts": true, ".m4v": true, ".wmv": true, ".3gp": true,
	".m3u8": true, ".m3u": true, ".mpd": true,
}

var audioExtensions = map[string]bool{
	".mp3": true, ".m4a": true, ".aac": true, ".ogg": true, ".oga": true,
	".opus": true, ".wav": true, ".flac": true, ".wma": true,
}

var imageExtensions = map[string]bool{
	".jpg": true, ".jpeg": true, ".png": true, ".gif": true, ".webp": true,
	".bmp": true, ".svg": true, ".avif": true, ".tiff": true, ".heic": true,
}

var playlistExtensions = map[string]bool{
	".m3u8": true, ".m3u": true, ".mpd": true,
}

// HasMediaExtension reports whether rawURL names a known audio or video file
func HasMediaExtension(rawURL string) bool {
	ext := Ext(rawURL)
	return videoExtensions[ext] || audioExtensions[ext]
}

// HasImageExtension reports whether rawURL names a known image file
func HasImageExtension(rawURL string) bool {
	return imageExtensions[Ext(rawURL)]
}

// IsPlaylistURL reports whether rawURL is a segmented-stream manifest
func IsPlaylistURL(rawURL string) bool {
	if playlistExtensions[Ext(rawURL)] {
		return true
	}
	lower := strings.ToLower(rawURL)
	return strings.Contains(lower, ".m3u8?") || strings.Contains(lower, "/manifest.mpd")
}

// KindFromURL guesses the asset kind from the URL extension, defaulting to video
func KindFromURL(rawURL string) Kind {
	ext := Ext(rawURL)
	switch {
	case audioExtensions[ext]:
		return KindAudio
	case imageExtensions[ext]:
		return KindImage
	default:
		return KindVideo
	}
}

// KindFromMIME maps a MIME type such as "video/mp4; codecs=..." to a Kind
func KindFromMIME(mime string) (Kind, bool) {
	mime = strings.ToLower(strings.TrimSpace(mime))
	switch {
	case strings.HasPrefix(mime, "video/"):
		return KindVideo, true
	case strings.HasPrefix(mime, "audio/"):
		return KindAudio, true
	case strings.HasPrefix(mime, "image/"):
		return KindImage, true
	}
	return "", false
}
