// Package extractor turns captured network bodies into media candidates.
//
// Site rules are scoped to origins and are mutually exclusive per exchange;
// generic rules recognize payload shapes on any origin and always run.
package extractor

import (
	"regexp"
	"strings"

	"github.com/guiyumin/vsniff/internal/core/media"
)

// Rule inspects one captured body and reports the candidates it found.
// Rules are stateless across calls.
type Rule interface {
	// Name returns the rule name, also used as the candidate source (e.g., "twitter")
	Name() string

	// Origins returns the hostnames this rule is scoped to; generic rules return nil
	Origins() []Origin

	// OnLoad inspects body, which was fetched from requestURL
	OnLoad(body, requestURL string) Result
}

// Limiter is implemented by rules that want a candidate ceiling other than
// the registry default
type Limiter interface {
	Limit() int
}

// Origin matches a hostname exactly (ignoring a leading "www.") or by pattern
type Origin struct {
	Host    string
	Pattern *regexp.Regexp
}

// Host returns an exact-hostname origin
func Host(h string) Origin {
	return Origin{Host: strings.ToLower(h)}
}

// Pattern returns a regular-expression origin. It panics on an invalid expression.
func Pattern(expr string) Origin {
	return Origin{Pattern: regexp.MustCompile(expr)}
}

// Match reports whether hostname belongs to the origin
func (o Origin) Match(hostname string) bool {
	hostname = strings.ToLower(hostname)
	if o.Pattern != nil {
		return o.Pattern.MatchString(hostname)
	}
	if o.Host == "" {
		return false
	}
	return hostname == o.Host || strings.TrimPrefix(hostname, "www.") == o.Host
}

func (o Origin) String() string {
	if o.Pattern != nil {
		return o.Pattern.String()
	}
	return o.Host
}

// Result is the outcome of one rule invocation: either no match, or a list of
// candidates. Err keeps the reason for a no-match for diagnostics; it is never
// surfaced to the page.
type Result struct {
	Candidates []media.Candidate
	Err        error
}

// NoMatch is the result of a rule that found nothing
func NoMatch() Result {
	return Result{}
}

// Failed is a no-match that records why
func Failed(err error) Result {
	return Result{Err: err}
}

// Found wraps the candidates a rule produced
func Found(cands []media.Candidate) Result {
	return Result{Candidates: cands}
}

// Matched reports whether the rule produced any candidate
func (r Result) Matched() bool {
	return len(r.Candidates) > 0
}

// found is the common tail of every rule: an empty set is a no-match
func found(set *media.Set) Result {
	if set.Len() == 0 {
		return NoMatch()
	}
	return Found(set.Candidates())
}

// hasAny reports whether body contains any of the marker substrings. Rules use
// it to reject irrelevant traffic before paying for a parse.
func hasAny(body string, markers ...string) bool {
	for _, m := range markers {
		if strings.Contains(body, m) {
			return true
		}
	}
	return false
}
