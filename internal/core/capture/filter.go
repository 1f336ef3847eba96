package capture

import (
	"regexp"
	"strings"

	"github.com/go-rod/rod/lib/proto"
)

// MaxBodyBytes is the ceiling above which bodies are never buffered
const MaxBodyBytes = 5_000_000

// ResponseKind is the transport-reported shape of a response body
type ResponseKind string

const (
	KindUnknown  ResponseKind = ""
	KindText     ResponseKind = "text"
	KindJSON     ResponseKind = "json"
	KindDocument ResponseKind = "document"
	KindBinary   ResponseKind = "arraybuffer"
	KindBlob     ResponseKind = "blob"
)

// IsBinary reports whether the kind can never hold a text document
func (k ResponseKind) IsBinary() bool {
	return k == KindBinary || k == KindBlob
}

// KindFromResourceType maps a CDP resource type onto a ResponseKind
func KindFromResourceType(t proto.NetworkResourceType) ResponseKind {
	switch t {
	case proto.NetworkResourceTypeImage, proto.NetworkResourceTypeMedia, proto.NetworkResourceTypeFont:
		return KindBinary
	case proto.NetworkResourceTypeDocument:
		return KindDocument
	case proto.NetworkResourceTypeXHR, proto.NetworkResourceTypeFetch,
		proto.NetworkResourceTypeScript, proto.NetworkResourceTypeManifest,
		proto.NetworkResourceTypeTextTrack:
		return KindText
	default:
		return KindUnknown
	}
}

var (
	// Manifests and API paths known to carry stream descriptions
	forceCaptureRegex = regexp.MustCompile(`(?i)(\.m3u8|\.mpd|\.m3u)(\?|#|$)|/youtubei/v\d+/player|streamingdata|get_video_info|video_info|videoinfo|/playlist|/manifest|playurl|/graphql|/api/v\d+/media|/item/detail|/aweme/|config\?|/video/config`)

	binaryExtRegex = regexp.MustCompile(`(?i)\.(jpe?g|png|gif|webp|avif|bmp|ico|svg|tiff?|heic|zip|rar|7z|gz|tgz|bz2|xz|tar|dmg|iso|exe|woff2?|ttf|otf|eot|mp4|m4v|m4s|m4a|webm|mkv|mov|avi|flv|wmv|ts|mp3|aac|ogg|oga|opus|wav|flac|pdf|wasm)(\?|#|$)`)

	binaryTypeRegex = regexp.MustCompile(`(?i)^(image|audio|video|font)/|octet-stream|application/(zip|x-zip|gzip|x-gzip|x-7z|x-rar|pdf|wasm)|font/`)

	textTypeRegex = regexp.MustCompile(`(?i)json|javascript|ecmascript|text/|xml|mpegurl|dash\+xml|x-www-form-urlencoded|graphql`)
)

// ShouldCapture decides whether a response body is worth buffering. It is a
// pure function of its inputs. contentLength < 0 means no length was declared.
func ShouldCapture(rawURL, contentType string, contentLength int64, kind ResponseKind) bool {
	return shouldCapture(rawURL, contentType, contentLength, kind, nil, MaxBodyBytes)
}

func shouldCapture(rawURL, contentType string, contentLength int64, kind ResponseKind, force []string, ceiling int64) bool {
	if forceCaptureRegex.MatchString(rawURL) || containsAny(rawURL, force) {
		return true
	}
	if binaryExtRegex.MatchString(stripQuery(rawURL)) {
		return false
	}
	if kind.IsBinary() {
		return false
	}
	if contentLength > ceiling {
		return false
	}

	contentType = strings.TrimSpace(contentType)
	if contentType == "" {
		return true
	}
	if binaryTypeRegex.MatchString(contentType) {
		return false
	}
	return textTypeRegex.MatchString(contentType)
}

// Filter is ShouldCapture with settings from configuration
type Filter struct {
	// Force lists extra URL substrings that are always captured
	Force []string

	// MaxBytes lowers the declared-length ceiling. Zero or values above
	// MaxBodyBytes mean MaxBodyBytes.
	MaxBytes int64
}

// ShouldCapture applies the filter decision with f's extra force patterns
func (f *Filter) ShouldCapture(rawURL, contentType string, contentLength int64, kind ResponseKind) bool {
	if f == nil {
		return ShouldCapture(rawURL, contentType, contentLength, kind)
	}
	return shouldCapture(rawURL, contentType, contentLength, kind, f.Force, f.ceiling())
}

func (f *Filter) ceiling() int64 {
	if f.MaxBytes <= 0 || f.MaxBytes > MaxBodyBytes {
		return MaxBodyBytes
	}
	return f.MaxBytes
}

func containsAny(s string, subs []string) bool {
	if len(subs) == 0 {
		return false
	}
	lower := strings.ToLower(s)
	for _, sub := range subs {
		if sub != "" && strings.Contains(lower, strings.ToLower(sub)) {
			return true
		}
	}
	return false
}

// stripQuery keeps the path part so that query values such as ?next=a.png
// are not mistaken for the resource extension.
func stripQuery(rawURL string) string {
	if i := strings.IndexAny(rawURL, "?#"); i >= 0 {
		return rawURL[:i]
	}
	return rawURL
}
