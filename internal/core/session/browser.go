package session

import (
	"fmt"
	"os"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
)

// userAgent is presented by every launched browser
const userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// BrowserOptions configure Launch
type BrowserOptions struct {
	// Visible shows the window; the default is headless
	Visible bool

	// Bin is the browser executable. ROD_BROWSER takes precedence (set in Docker).
	Bin string

	// UserDataDir keeps cookies between runs; empty uses a temporary profile
	UserDataDir string
}

// Browser is a launched browser and its launcher
type Browser struct {
	*rod.Browser
	launcher *launcher.Launcher
}

// Launch starts a browser and connects to it
func Launch(opts BrowserOptions) (*Browser, error) {
	l := newLauncher(opts)

	u, err := l.Launch()
	if err != nil {
		l.Cleanup()
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}

	browser := rod.New().ControlURL(u)
	if err := browser.Connect(); err != nil {
		l.Kill()
		l.Cleanup()
		return nil, fmt.Errorf("failed to connect to browser: %w", err)
	}

	return &Browser{Browser: browser, launcher: l}, nil
}

// Close shuts the browser down and removes its temporary files
func (b *Browser) Close() error {
	err := b.Browser.Close()
	b.launcher.Kill()
	b.launcher.Cleanup()
	return err
}

func newLauncher(opts BrowserOptions) *launcher.Launcher {
	l := launcher.New().
		Headless(!opts.Visible).
		Set("no-sandbox").
		Set("disable-gpu").
		Set("disable-dev-shm-usage").
		Set("disable-software-rasterizer").
		Set("disable-extensions").
		Set("disable-background-networking").
		Set("disable-sync").
		Set("disable-translate").
		Set("no-first-run").
		Set("autoplay-policy", "no-user-gesture-required").
		Set("window-size", "1920,1080").
		Set("user-agent", userAgent)

	if opts.UserDataDir != "" {
		l = l.UserDataDir(opts.UserDataDir)
	}

	if bin := browserBin(opts.Bin); bin != "" {
		l = l.Bin(bin)
	}

	return l
}

func browserBin(configured string) string {
	if path := os.Getenv("ROD_BROWSER"); path != "" {
		return path
	}
	return configured
}
