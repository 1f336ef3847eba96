package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

const SitesFileName = "sites.yml"

// Site scopes a built-in site rule to more hostnames
type Site struct {
	// Match is a substring matched against the response hostname (e.g., "vxtwitter.com")
	Match string `yaml:"match"`

	// Rule is the name of the built-in site rule to run (e.g., "twitter")
	Rule string `yaml:"rule"`
}

// SitesConfig holds the sites configuration
type SitesConfig struct {
	Sites []Site `yaml:"sites"`
}

// LoadSites reads sites.yml from the current directory
func LoadSites() (*SitesConfig, error) {
	return LoadSitesFile(SitesFileName)
}

// LoadSitesFile reads a sites file. A missing file yields nil and no error.
func LoadSitesFile(path string) (*SitesConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil // No sites.yml, that's fine
		}
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	cfg := &SitesConfig{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	for i, s := range cfg.Sites {
		if strings.TrimSpace(s.Match) == "" || strings.TrimSpace(s.Rule) == "" {
			return nil, fmt.Errorf("%s: site %d needs both match and rule", path, i+1)
		}
	}

	return cfg, nil
}

// SaveSites writes sites.yml to the current directory
func SaveSites(cfg *SitesConfig) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to serialize sites config: %w", err)
	}

	header := "# vsniff sites configuration\n# Extra hostnames handled by a built-in site rule\n\n"
	content := header + string(data)

	return os.WriteFile(SitesFileName, []byte(content), 0644)
}

// MatchSite finds a matching site for the given hostname
func (c *SitesConfig) MatchSite(hostname string) *Site {
	if c == nil {
		return nil
	}
	for i := range c.Sites {
		if strings.Contains(hostname, c.Sites[i].Match) {
			return &c.Sites[i]
		}
	}
	return nil
}

// AddSite adds a new site mapping
func (c *SitesConfig) AddSite(match, rule string) {
	c.Sites = append(c.Sites, Site{
		Match: match,
		Rule:  rule,
	})
}

// RemoveSite removes a site by match string
func (c *SitesConfig) RemoveSite(match string) bool {
	for i := range c.Sites {
		if c.Sites[i].Match == match {
			c.Sites = append(c.Sites[:i], c.Sites[i+1:]...)
			return true
		}
	}
	return false
}

// SitesExist checks if sites.yml exists in current directory
func SitesExist() bool {
	_, err := os.Stat(SitesFileName)
	return err == nil
}
