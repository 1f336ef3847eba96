package extractor

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/guiyumin/vsniff/internal/core/capture"
	"github.com/guiyumin/vsniff/internal/core/media"
)

// Default per-call candidate ceilings
const (
	DefaultSiteLimit    = 8
	DefaultGenericLimit = 12
)

// builtinSite and builtinGeneric are filled by each rule's init
var (
	builtinSite    []Rule
	builtinGeneric []Rule
)

func registerSite(r Rule) {
	builtinSite = append(builtinSite, r)
}

func registerGeneric(r Rule) {
	builtinGeneric = append(builtinGeneric, r)
}

// Outcome is the result of one rule during a dispatch, after ranking and capping
type Outcome struct {
	Rule    string
	Generic bool
	Result
}

// Registry holds site rules in priority order followed by generic rules.
// It is safe for concurrent use.
type Registry struct {
	mu       sync.RWMutex
	site     []Rule
	generic  []Rule
	extra    map[string][]Origin
	disabled map[string]bool
	limits   map[string]int
	logger   *slog.Logger
}

// NewRegistry returns an empty registry
func NewRegistry() *Registry {
	return &Registry{
		extra:    make(map[string][]Origin),
		disabled: make(map[string]bool),
		limits:   make(map[string]int),
	}
}

// DefaultRegistry returns a registry with every built-in rule
func DefaultRegistry() *Registry {
	r := NewRegistry()
	for _, rule := range builtinSite {
		r.Register(rule)
	}
	for _, rule := range builtinGeneric {
		r.RegisterGeneric(rule)
	}
	return r
}

// SetLogger sets the logger used for recovered rule panics
func (r *Registry) SetLogger(l *slog.Logger) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.logger = l
}

// Register appends a site rule. Earlier rules win when origins overlap.
func (r *Registry) Register(rule Rule) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.site = append(r.site, rule)
}

// RegisterGeneric appends an origin-agnostic rule
func (r *Registry) RegisterGeneric(rule Rule) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.generic = append(r.generic, rule)
}

// AddOrigins scopes an already registered site rule to more origins
func (r *Registry) AddOrigins(name string, origins ...Origin) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, rule := range r.site {
		if rule.Name() == name {
			r.extra[name] = append(r.extra[name], origins...)
			return nil
		}
	}
	return fmt.Errorf("unknown site rule %q", name)
}

// Disable turns rules off by name. Unknown names are ignored.
func (r *Registry) Disable(names ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, n := range names {
		r.disabled[strings.ToLower(strings.TrimSpace(n))] = true
	}
}

// SetLimit overrides the candidate ceiling of one rule; n <= 0 restores the default
func (r *Registry) SetLimit(name string, n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if n <= 0 {
		delete(r.limits, name)
		return
	}
	r.limits[name] = n
}

// RuleInfo describes a registered rule
type RuleInfo struct {
	Name     string   `json:"name"`
	Generic  bool     `json:"generic"`
	Origins  []string `json:"origins,omitempty"`
	Disabled bool     `json:"disabled,omitempty"`
}

// Rules lists site rules in priority order, then generic rules
func (r *Registry) Rules() []RuleInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var infos []RuleInfo
	for _, rule := range r.site {
		info := RuleInfo{Name: rule.Name(), Disabled: r.disabled[rule.Name()]}
		for _, o := range r.originsOf(rule) {
			info.Origins = append(info.Origins, o.String())
		}
		infos = append(infos, info)
	}
	for _, rule := range r.generic {
		infos = append(infos, RuleInfo{Name: rule.Name(), Generic: true, Disabled: r.disabled[rule.Name()]})
	}
	return infos
}

// Match returns the site rule that would handle hostname, or nil
func (r *Registry) Match(hostname string) Rule {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.match(hostname)
}

func (r *Registry) match(hostname string) Rule {
	if hostname == "" {
		return nil
	}
	for _, rule := range r.site {
		if r.disabled[rule.Name()] {
			continue
		}
		for _, o := range r.originsOf(rule) {
			if o.Match(hostname) {
				return rule
			}
		}
	}
	return nil
}

func (r *Registry) originsOf(rule Rule) []Origin {
	origins := rule.Origins()
	if extra := r.extra[rule.Name()]; len(extra) > 0 {
		origins = append(append([]Origin(nil), origins...), extra...)
	}
	return origins
}

// Dispatch runs the first site rule whose origins match the exchange hostname,
// then every generic rule. A rule that panics yields no candidates and does not
// stop the others. Candidates of each rule are ranked and capped.
func (r *Registry) Dispatch(ex capture.Exchange) []Outcome {
	r.mu.RLock()
	site := r.match(ex.Hostname)
	var generic []Rule
	for _, g := range r.generic {
		if !r.disabled[g.Name()] {
			generic = append(generic, g)
		}
	}
	logger := r.logger
	r.mu.RUnlock()

	if logger == nil {
		logger = slog.Default()
	}

	var outcomes []Outcome
	if site != nil {
		outcomes = append(outcomes, r.run(logger, site, false, ex))
	}
	for _, g := range generic {
		outcomes = append(outcomes, r.run(logger, g, true, ex))
	}
	return outcomes
}

func (r *Registry) run(logger *slog.Logger, rule Rule, generic bool, ex capture.Exchange) (out Outcome) {
	out = Outcome{Rule: rule.Name(), Generic: generic}

	defer func() {
		if rec := recover(); rec != nil {
			out.Result = Failed(fmt.Errorf("rule %s panicked: %v", rule.Name(), rec))
			logger.Warn("extraction rule panicked", "rule", rule.Name(), "url", ex.ResolvedURL, "panic", rec)
		}
	}()

	res := rule.OnLoad(ex.BodyText, ex.ResolvedURL)
	if res.Err != nil {
		logger.Debug("extraction rule failed", "rule", rule.Name(), "url", ex.ResolvedURL, "error", res.Err)
	}
	if len(res.Candidates) > 0 {
		res.Candidates = media.Cap(media.Rank(res.Candidates), r.limit(rule, generic))
	}
	out.Result = res
	return out
}

func (r *Registry) limit(rule Rule, generic bool) int {
	r.mu.RLock()
	n, ok := r.limits[rule.Name()]
	r.mu.RUnlock()
	if ok {
		return n
	}
	if l, ok := rule.(Limiter); ok && l.Limit() > 0 {
		return l.Limit()
	}
	if generic {
		return DefaultGenericLimit
	}
	return DefaultSiteLimit
}

// Candidates flattens the candidates of all outcomes
func Candidates(outcomes []Outcome) []media.Candidate {
	batches := make([][]media.Candidate, 0, len(outcomes))
	for _, o := range outcomes {
		batches = append(batches, o.Candidates)
	}
	return media.Flatten(batches...)
}
