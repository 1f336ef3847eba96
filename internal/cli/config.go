package cli

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/guiyumin/vsniff/internal/core/config"
	"github.com/guiyumin/vsniff/internal/core/extractor"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage vsniff configuration",
	Long:  "View and modify vsniff settings, including extra site hostnames",
	RunE: func(cmd *cobra.Command, args []string) error {
		return configShowCmd.RunE(cmd, args)
	},
}

// vsniff config show - show current config
var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.LoadOrDefault()
		data, err := yaml.Marshal(cfg)
		if err != nil {
			return err
		}
		fmt.Printf("# %s\n%s", config.SavePath(), data)
		return nil
	},
}

// vsniff config path - show config file path
var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Show config file path",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(config.SavePath())
	},
}

const configKeysHelp = `Supported keys:
  log_file                  Rotating log file path
  log_level                 debug, info, warn, error
  capture.max_body_bytes    Declared-length ceiling for buffered bodies
  capture.force_patterns    Comma-separated URL substrings always captured
  scan.interval             DOM scan interval (e.g. 3s)
  scan.max_images           Max images per DOM scan
  scan.images               Scan images too (true/false)
  rules.disabled            Comma-separated rule names
  rules.max_candidates.NAME Candidate cap of one rule
  browser.visible           Show the browser window (true/false)
  browser.bin               Browser executable
  browser.user_data_dir     Browser profile directory
  server.port               Server listen port
  server.max_concurrent     Max concurrent sniff jobs
  server.api_key            Server API key`

// vsniff config set KEY VALUE - set a config value
var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Long: "Set a configuration value in config.yml.\n\n" + configKeysHelp + `

Examples:
  vsniff config set scan.interval 5s
  vsniff config set rules.disabled reddit,vimeo
  vsniff config set rules.max_candidates.twitter 4`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.LoadOrDefault()
		if err := setConfigValue(cfg, args[0], args[1]); err != nil {
			return err
		}
		if err := config.Save(cfg); err != nil {
			return fmt.Errorf("failed to save config: %w", err)
		}
		fmt.Printf("Set %s = %s\n", args[0], args[1])
		return nil
	},
}

// vsniff config get KEY - get a config value
var configGetCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Get a configuration value",
	Long:  "Get a configuration value from config.yml.\n\n" + configKeysHelp,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		value, err := getConfigValue(config.LoadOrDefault(), args[0])
		if err != nil {
			return err
		}
		fmt.Println(value)
		return nil
	},
}

// vsniff config unset KEY - reset a config value to its default
var configUnsetCmd = &cobra.Command{
	Use:   "unset <key>",
	Short: "Reset a configuration value to its default",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.LoadOrDefault()
		if err := unsetConfigValue(cfg, args[0]); err != nil {
			return err
		}
		if err := config.Save(cfg); err != nil {
			return fmt.Errorf("failed to save config: %w", err)
		}
		fmt.Printf("Unset %s\n", args[0])
		return nil
	},
}

func setConfigValue(cfg *config.Config, key, value string) error {
	if name, ok := strings.CutPrefix(key, "rules.max_candidates."); ok {
		n, err := strconv.Atoi(value)
		if err != nil || n < 0 {
			return fmt.Errorf("invalid candidate cap: %s", value)
		}
		if cfg.Rules.MaxCandidates == nil {
			cfg.Rules.MaxCandidates = make(map[string]int)
		}
		cfg.Rules.MaxCandidates[name] = n
		return nil
	}

	switch key {
	case "log_file":
		cfg.LogFile = value
	case "log_level":
		cfg.LogLevel = value
	case "capture.max_body_bytes":
		n, err := strconv.ParseInt(value, 10, 64)
		if err != nil || n < 0 {
			return fmt.Errorf("invalid byte count: %s", value)
		}
		cfg.Capture.MaxBodyBytes = n
	case "capture.force_patterns":
		cfg.Capture.ForcePatterns = splitCSV(value)
	case "scan.interval":
		d, err := time.ParseDuration(value)
		if err != nil || d <= 0 {
			return fmt.Errorf("invalid interval: %s", value)
		}
		cfg.Scan.Interval = d
	case "scan.max_images":
		n, err := strconv.Atoi(value)
		if err != nil || n < 0 {
			return fmt.Errorf("invalid image count: %s", value)
		}
		cfg.Scan.MaxImages = n
	case "scan.images":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid boolean: %s", value)
		}
		cfg.Scan.Images = b
	case "rules.disabled":
		cfg.Rules.Disabled = splitCSV(value)
	case "browser.visible":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid boolean: %s", value)
		}
		cfg.Browser.Visible = b
	case "browser.bin":
		cfg.Browser.Bin = value
	case "browser.user_data_dir":
		cfg.Browser.UserDataDir = value
	case "server.port":
		port, err := strconv.Atoi(value)
		if err != nil || port < 1 || port > 65535 {
			return fmt.Errorf("invalid port: %s", value)
		}
		cfg.Server.Port = port
	case "server.max_concurrent":
		n, err := strconv.Atoi(value)
		if err != nil || n < 1 {
			return fmt.Errorf("invalid max_concurrent: %s", value)
		}
		cfg.Server.MaxConcurrent = n
	case "server.api_key":
		cfg.Server.APIKey = value
	default:
		return fmt.Errorf("unknown config key: %s", key)
	}
	return nil
}

func getConfigValue(cfg *config.Config, key string) (string, error) {
	if name, ok := strings.CutPrefix(key, "rules.max_candidates."); ok {
		return strconv.Itoa(cfg.Rules.MaxCandidates[name]), nil
	}

	switch key {
	case "log_file":
		return cfg.LogFile, nil
	case "log_level":
		return cfg.LogLevel, nil
	case "capture.max_body_bytes":
		return strconv.FormatInt(cfg.Capture.MaxBodyBytes, 10), nil
	case "capture.force_patterns":
		return strings.Join(cfg.Capture.ForcePatterns, ","), nil
	case "scan.interval":
		return cfg.Scan.Interval.String(), nil
	case "scan.max_images":
		return strconv.Itoa(cfg.Scan.MaxImages), nil
	case "scan.images":
		return strconv.FormatBool(cfg.Scan.Images), nil
	case "rules.disabled":
		return strings.Join(cfg.Rules.Disabled, ","), nil
	case "browser.visible":
		return strconv.FormatBool(cfg.Browser.Visible), nil
	case "browser.bin":
		return cfg.Browser.Bin, nil
	case "browser.user_data_dir":
		return cfg.Browser.UserDataDir, nil
	case "server.port":
		return strconv.Itoa(cfg.Server.Port), nil
	case "server.max_concurrent":
		return strconv.Itoa(cfg.Server.MaxConcurrent), nil
	case "server.api_key":
		return cfg.Server.APIKey, nil
	default:
		return "", fmt.Errorf("unknown config key: %s", key)
	}
}

func unsetConfigValue(cfg *config.Config, key string) error {
	if name, ok := strings.CutPrefix(key, "rules.max_candidates."); ok {
		delete(cfg.Rules.MaxCandidates, name)
		return nil
	}

	def := config.DefaultConfig()
	switch key {
	case "log_file":
		cfg.LogFile = def.LogFile
	case "log_level":
		cfg.LogLevel = def.LogLevel
	case "capture.max_body_bytes":
		cfg.Capture.MaxBodyBytes = def.Capture.MaxBodyBytes
	case "capture.force_patterns":
		cfg.Capture.ForcePatterns = def.Capture.ForcePatterns
	case "scan.interval":
		cfg.Scan.Interval = def.Scan.Interval
	case "scan.max_images":
		cfg.Scan.MaxImages = def.Scan.MaxImages
	case "scan.images":
		cfg.Scan.Images = def.Scan.Images
	case "rules.disabled":
		cfg.Rules.Disabled = def.Rules.Disabled
	case "browser.visible":
		cfg.Browser.Visible = def.Browser.Visible
	case "browser.bin":
		cfg.Browser.Bin = def.Browser.Bin
	case "browser.user_data_dir":
		cfg.Browser.UserDataDir = def.Browser.UserDataDir
	case "server.port":
		cfg.Server.Port = def.Server.Port
	case "server.max_concurrent":
		cfg.Server.MaxConcurrent = def.Server.MaxConcurrent
	case "server.api_key":
		cfg.Server.APIKey = def.Server.APIKey
	default:
		return fmt.Errorf("unknown config key: %s", key)
	}
	return nil
}

func splitCSV(v string) []string {
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// vsniff config sites - manage sites.yml
var configSitesCmd = &cobra.Command{
	Use:   "sites",
	Short: "Manage extra hostnames for site rules (sites.yml in the current directory)",
	RunE: func(cmd *cobra.Command, args []string) error {
		sites, err := config.LoadSites()
		if err != nil {
			return err
		}
		if sites == nil || len(sites.Sites) == 0 {
			fmt.Println("No sites configured.")
			return nil
		}
		for _, s := range sites.Sites {
			fmt.Printf("  %-30s -> %s\n", s.Match, s.Rule)
		}
		return nil
	},
}

var configSitesAddCmd = &cobra.Command{
	Use:               "add <hostname-substring> <rule>",
	Short:             "Handle hostnames containing a substring with a built-in site rule",
	Args:              cobra.ExactArgs(2),
	ValidArgsFunction: completeSiteRules,
	RunE: func(cmd *cobra.Command, args []string) error {
		if !isSiteRule(args[1]) {
			return fmt.Errorf("unknown site rule %q (see 'vsniff rules')", args[1])
		}
		sites, err := config.LoadSites()
		if err != nil {
			return err
		}
		if sites == nil {
			sites = &config.SitesConfig{}
		}
		sites.RemoveSite(args[0])
		sites.AddSite(args[0], args[1])
		if err := config.SaveSites(sites); err != nil {
			return err
		}
		fmt.Printf("Added %s -> %s\n", args[0], args[1])
		return nil
	},
}

var configSitesRemoveCmd = &cobra.Command{
	Use:   "remove <hostname-substring>",
	Short: "Remove a site mapping",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		sites, err := config.LoadSites()
		if err != nil {
			return err
		}
		if sites == nil || !sites.RemoveSite(args[0]) {
			return fmt.Errorf("site %q not found", args[0])
		}
		if err := config.SaveSites(sites); err != nil {
			return err
		}
		fmt.Printf("Removed %s\n", args[0])
		return nil
	},
}

func isSiteRule(name string) bool {
	for _, info := range extractor.DefaultRegistry().Rules() {
		if !info.Generic && info.Name == name {
			return true
		}
	}
	return false
}

func completeSiteRules(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	if len(args) != 1 {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}
	var names []string
	for _, info := range extractor.DefaultRegistry().Rules() {
		if !info.Generic && strings.HasPrefix(info.Name, toComplete) {
			names = append(names, info.Name)
		}
	}
	return names, cobra.ShellCompDirectiveNoFileComp
}

func init() {
	configSitesCmd.AddCommand(configSitesAddCmd, configSitesRemoveCmd)
	configCmd.AddCommand(configShowCmd, configPathCmd, configSetCmd, configGetCmd, configUnsetCmd, configSitesCmd)
	rootCmd.AddCommand(configCmd)
}
