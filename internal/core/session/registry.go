package session

import (
	"fmt"
	"log/slog"
	"regexp"

	"github.com/guiyumin/vsniff/internal/core/capture"
	"github.com/guiyumin/vsniff/internal/core/config"
	"github.com/guiyumin/vsniff/internal/core/extractor"
	"github.com/guiyumin/vsniff/internal/core/scanner"
)

// NewRegistry builds the built-in registry with the configured disabled
// rules, candidate caps and sites.yml origins applied. sites may be nil.
func NewRegistry(cfg *config.Config, sites *config.SitesConfig, logger *slog.Logger) (*extractor.Registry, error) {
	reg := extractor.DefaultRegistry()
	if logger != nil {
		reg.SetLogger(logger)
	}
	if cfg == nil {
		return reg, nil
	}

	reg.Disable(cfg.Rules.Disabled...)
	for name, n := range cfg.Rules.MaxCandidates {
		reg.SetLimit(name, n)
	}

	if sites != nil {
		for _, s := range sites.Sites {
			origin := extractor.Origin{Pattern: regexp.MustCompile(regexp.QuoteMeta(s.Match))}
			if err := reg.AddOrigins(s.Rule, origin); err != nil {
				return nil, fmt.Errorf("sites.yml %q: %w", s.Match, err)
			}
		}
	}
	return reg, nil
}

// OptionsFromConfig maps the configuration onto session options
func OptionsFromConfig(cfg *config.Config, reg *extractor.Registry, logger *slog.Logger) Options {
	return Options{
		Filter: &capture.Filter{
			Force:    cfg.Capture.ForcePatterns,
			MaxBytes: cfg.Capture.MaxBodyBytes,
		},
		Registry: reg,
		Scan: scanner.Options{
			Interval:  cfg.Scan.Interval,
			MaxImages: cfg.Scan.MaxImages,
			Images:    cfg.Scan.Images,
			Logger:    logger,
		},
		Logger: logger,
	}
}

// BrowserOptionsFromConfig maps the browser section of the configuration
func BrowserOptionsFromConfig(cfg *config.Config) BrowserOptions {
	return BrowserOptions{
		Visible:     cfg.Browser.Visible,
		Bin:         cfg.Browser.Bin,
		UserDataDir: cfg.Browser.UserDataDir,
	}
}
