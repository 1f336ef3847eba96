// Package capture taps network exchanges made by a hosted page and emits the
// text bodies worth inspecting for media.
package capture

import (
	"bytes"
	"encoding/json"
	"errors"
	"mime"
	"strings"

	"github.com/guiyumin/vsniff/internal/core/media"
)

// ErrBodyTooLarge is returned when a body exceeds MaxBodyBytes after the fact
var ErrBodyTooLarge = errors.New("response body exceeds capture ceiling")

// Exchange is one captured request/response pair whose body was buffered as text.
// It lives for a single dispatch cycle.
type Exchange struct {
	RequestURL  string `json:"requestUrl"`
	ResolvedURL string `json:"resolvedUrl"`
	Hostname    string `json:"hostname"`
	BodyText    string `json:"bodyText"`
}

// Sink receives captured exchanges in completion order
type Sink func(Exchange)

// newExchange builds an Exchange, resolving the response URL against base.
// Unresolvable URLs are kept verbatim so the hostname may be empty.
func newExchange(base, requestURL, responseURL, contentType string, body []byte) (Exchange, error) {
	if len(body) > MaxBodyBytes {
		return Exchange{}, ErrBodyTooLarge
	}

	ref := responseURL
	if ref == "" {
		ref = requestURL
	}
	resolved := media.ResolveURL(base, ref)
	if resolved == "" {
		resolved = ref
	}

	return Exchange{
		RequestURL:  requestURL,
		ResolvedURL: resolved,
		Hostname:    media.Hostname(resolved),
		BodyText:    bodyText(contentType, body),
	}, nil
}

// bodyText returns a uniform text representation of body. JSON bodies are
// re-encoded compactly; anything else, including invalid JSON, is kept as is.
func bodyText(contentType string, body []byte) string {
	if isJSONType(contentType) {
		var buf bytes.Buffer
		if err := json.Compact(&buf, bytes.TrimSpace(body)); err == nil {
			return buf.String()
		}
	}
	return string(body)
}

func isJSONType(contentType string) bool {
	if contentType == "" {
		return false
	}
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		mt = strings.ToLower(strings.TrimSpace(contentType))
	}
	return mt == "application/json" || strings.HasSuffix(mt, "+json")
}
