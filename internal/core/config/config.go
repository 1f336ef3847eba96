package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	ConfigFileName = "config.yml"
	AppDirName     = "vsniff"

	// EnvPrefix prefixes every environment override, e.g. VSNIFF_LOG_LEVEL
	EnvPrefix = "VSNIFF_"
)

// ConfigDir returns the standard config directory for vsniff.
// Windows: %APPDATA%\vsniff\
// macOS/Linux: ~/.config/vsniff/
func ConfigDir() (string, error) {
	if runtime.GOOS == "windows" {
		appData := os.Getenv("APPDATA")
		if appData != "" {
			return filepath.Join(appData, AppDirName), nil
		}
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", AppDirName), nil
}

// ConfigPath returns the path to the config file.
// e.g., ~/.config/vsniff/config.yml
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, ConfigFileName), nil
}

type Config struct {
	// LogFile enables a rotating log file next to stderr output
	LogFile string `yaml:"log_file,omitempty"`

	// LogLevel is one of debug, info, warn, error
	LogLevel string `yaml:"log_level,omitempty"`

	Capture CaptureConfig `yaml:"capture,omitempty"`
	Scan    ScanConfig    `yaml:"scan,omitempty"`
	Rules   RulesConfig   `yaml:"rules,omitempty"`
	Browser BrowserConfig `yaml:"browser,omitempty"`

	// Server configuration for `vsniff serve`
	Server ServerConfig `yaml:"server,omitempty"`
}

// CaptureConfig tunes which response bodies are buffered
type CaptureConfig struct {
	// MaxBodyBytes lowers the declared-length ceiling (0 keeps the built-in one)
	MaxBodyBytes int64 `yaml:"max_body_bytes,omitempty"`

	// ForcePatterns are extra URL substrings that are always captured
	ForcePatterns []string `yaml:"force_patterns,omitempty"`
}

// ScanConfig tunes the DOM scanner
type ScanConfig struct {
	Interval  time.Duration `yaml:"interval,omitempty"`
	MaxImages int           `yaml:"max_images,omitempty"`
	Images    bool          `yaml:"images,omitempty"`
}

// RulesConfig tunes the extraction rule registry
type RulesConfig struct {
	// Disabled lists rule names that never run
	Disabled []string `yaml:"disabled,omitempty"`

	// MaxCandidates overrides the per-rule candidate cap
	MaxCandidates map[string]int `yaml:"max_candidates,omitempty"`
}

// BrowserConfig holds browser launch settings
type BrowserConfig struct {
	// Visible shows the browser window instead of running headless
	Visible bool `yaml:"visible,omitempty"`

	// Bin is the browser executable; ROD_BROWSER wins when set
	Bin string `yaml:"bin,omitempty"`

	// UserDataDir keeps cookies and sessions between runs
	UserDataDir string `yaml:"user_data_dir,omitempty"`
}

// ServerConfig holds HTTP server settings for `vsniff serve`
type ServerConfig struct {
	// Port is the HTTP listen port (default: 8080)
	Port int `yaml:"port,omitempty"`

	// MaxConcurrent is the max number of concurrent sniff jobs (default: 2)
	MaxConcurrent int `yaml:"max_concurrent,omitempty"`

	// APIKey for authentication (optional, if set all requests must include X-API-Key header)
	APIKey string `yaml:"api_key,omitempty"`
}

// DefaultUserDataDir returns the browser profile directory
func DefaultUserDataDir() string {
	dir, err := ConfigDir()
	if err != nil {
		return filepath.Join(os.TempDir(), AppDirName, "browser")
	}
	return filepath.Join(dir, "browser")
}

// IsRunningInDocker detects if we're running inside a Docker container
func IsRunningInDocker() bool {
	if _, err := os.Stat("/.dockerenv"); err == nil {
		return true
	}
	if data, err := os.ReadFile("/proc/1/cgroup"); err == nil {
		content := string(data)
		if strings.Contains(content, "docker") || strings.Contains(content, "containerd") {
			return true
		}
	}
	if os.Getenv("KUBERNETES_SERVICE_HOST") != "" {
		return true
	}
	return false
}

// DefaultConfig returns a config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		LogLevel: "info",
		Scan: ScanConfig{
			Interval:  3 * time.Second,
			MaxImages: 40,
			Images:    true,
		},
		Browser: BrowserConfig{
			UserDataDir: DefaultUserDataDir(),
		},
		Server: ServerConfig{
			Port:          8080,
			MaxConcurrent: 2,
		},
	}
}

// Exists checks if config file exists
func Exists() bool {
	path, err := ConfigPath()
	if err != nil {
		return false
	}
	_, err = os.Stat(path)
	return err == nil
}

// Load reads the config from ~/.config/vsniff/config.yml and applies
// environment overrides
func Load() (*Config, error) {
	path, err := ConfigPath()
	if err != nil {
		return nil, err
	}
	return LoadFile(path)
}

// LoadFile reads the config at path over the defaults
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config file not found: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	cfg.LogFile = expandPath(cfg.LogFile)
	cfg.Browser.UserDataDir = expandPath(cfg.Browser.UserDataDir)
	cfg.ApplyEnv()

	return cfg, nil
}

// ApplyEnv loads an optional .env file from the working directory and
// overrides fields from VSNIFF_* variables
func (c *Config) ApplyEnv() {
	if err := godotenv.Load(); err != nil {
		slog.Debug("no .env file loaded", "error", err)
	}

	c.LogFile = expandPath(envString("LOG_FILE", c.LogFile))
	c.LogLevel = envString("LOG_LEVEL", c.LogLevel)

	c.Capture.MaxBodyBytes = int64(envInt("MAX_BODY_BYTES", int(c.Capture.MaxBodyBytes)))
	if v := os.Getenv(EnvPrefix + "FORCE_PATTERNS"); v != "" {
		c.Capture.ForcePatterns = splitList(v)
	}

	if v := os.Getenv(EnvPrefix + "SCAN_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.Scan.Interval = d
		}
	}
	c.Scan.MaxImages = envInt("SCAN_MAX_IMAGES", c.Scan.MaxImages)
	c.Scan.Images = envBool("SCAN_IMAGES", c.Scan.Images)

	if v := os.Getenv(EnvPrefix + "DISABLED_RULES"); v != "" {
		c.Rules.Disabled = splitList(v)
	}

	c.Browser.Visible = envBool("BROWSER_VISIBLE", c.Browser.Visible)
	c.Browser.Bin = envString("BROWSER_BIN", c.Browser.Bin)
	c.Browser.UserDataDir = expandPath(envString("USER_DATA_DIR", c.Browser.UserDataDir))

	c.Server.Port = envInt("PORT", c.Server.Port)
	c.Server.MaxConcurrent = envInt("MAX_CONCURRENT", c.Server.MaxConcurrent)
	c.Server.APIKey = envString("API_KEY", c.Server.APIKey)
}

func envString(key, def string) string {
	if v := os.Getenv(EnvPrefix + key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	if v := os.Getenv(EnvPrefix + key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func envBool(key string, def bool) bool {
	if v := os.Getenv(EnvPrefix + key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

func splitList(v string) []string {
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// expandPath expands the tilde (~) in the path to the user's home directory.
// It handles both forward and backward slashes to ensure cross-platform compatibility
// for configuration files.
func expandPath(path string) string {
	if path == "" {
		return ""
	}

	if strings.HasPrefix(path, "~") {
		// Only expand if it's explicitly "~", "~/", or "~\"
		if len(path) == 1 || path[1] == '/' || path[1] == '\\' {
			home, err := os.UserHomeDir()
			if err == nil {
				subPath := path[1:]
				if len(subPath) > 0 && (subPath[0] == '/' || subPath[0] == '\\') {
					subPath = subPath[1:]
				}
				return filepath.Join(home, subPath)
			}
		}
	}

	return path
}

// Save writes the config to ~/.config/vsniff/config.yml
func Save(cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to serialize config: %w", err)
	}

	configPath, err := ConfigPath()
	if err != nil {
		return fmt.Errorf("failed to get config path: %w", err)
	}

	configDir := filepath.Dir(configPath)
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	header := "# vsniff configuration file\n# Run 'vsniff init' to regenerate with defaults\n\n"
	content := header + string(data)

	return os.WriteFile(configPath, []byte(content), 0644)
}

// SavePath returns the path where config will be saved
func SavePath() string {
	if path, err := ConfigPath(); err == nil {
		return path
	}
	return ConfigFileName
}

// Init creates a new config.yml with default values
func Init() error {
	if Exists() {
		path, _ := ConfigPath()
		return fmt.Errorf("%s already exists", path)
	}
	return Save(DefaultConfig())
}

// LoadOrDefault loads config if it exists, otherwise returns defaults with
// environment overrides
func LoadOrDefault() *Config {
	cfg, err := Load()
	if err != nil {
		cfg = DefaultConfig()
		cfg.ApplyEnv()
	}
	return cfg
}
