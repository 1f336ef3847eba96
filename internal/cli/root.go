package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/guiyumin/vsniff/internal/core/config"
	"github.com/guiyumin/vsniff/internal/core/logging"
	"github.com/guiyumin/vsniff/internal/core/media"
	"github.com/guiyumin/vsniff/internal/core/publish"
	"github.com/guiyumin/vsniff/internal/core/session"
	"github.com/guiyumin/vsniff/internal/core/version"
)

var (
	wait     time.Duration
	jsonOut  bool
	visible  bool
	noImages bool
	logLevel string
)

var rootCmd = &cobra.Command{
	Use:   "vsniff [url]",
	Short: "Find the audio, video and image assets a web page loads",
	Long: `Open a page in a browser, watch its network traffic and media elements,
and list every audio, video and image asset found.

Examples:
  vsniff https://x.com/user/status/123
  vsniff --wait 30s --visible https://www.bilibili.com/video/BV1xx
  vsniff --json https://vimeo.com/123 > batches.json`,
	Version:       version.Version,
	Args:          cobra.MaximumNArgs(1),
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) == 0 {
			return cmd.Help()
		}
		return runSniff(args[0])
	},
}

func init() {
	// set here: the literal cannot refer to rootCmd
	rootCmd.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		setupLogging(quietLogging(cmd))
	}

	rootCmd.Flags().DurationVarP(&wait, "wait", "w", 15*time.Second, "how long to keep the page open")
	rootCmd.Flags().BoolVar(&jsonOut, "json", false, "print every published batch as JSON")
	rootCmd.Flags().BoolVar(&visible, "visible", false, "show browser window (for debugging)")
	rootCmd.Flags().BoolVar(&noImages, "no-images", false, "skip the DOM image scan")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: debug, info, warn, error")
}

// Execute runs the root command and prints any error
func Execute() error {
	err := rootCmd.Execute()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	}
	return err
}

var closeLog = func() error { return nil }

// quietLogging reports whether cmd draws the sniff spinner
func quietLogging(cmd *cobra.Command) bool {
	return !cmd.HasParent() && !jsonOut
}

func setupLogging(quiet bool) {
	cfg := config.LoadOrDefault()
	level := cfg.LogLevel
	if logLevel != "" {
		level = logLevel
	} else if quiet && (level == "" || level == "info") {
		// the spinner owns the terminal; keep routine records out of it
		level = "warn"
	}
	closeLog = logging.Setup(logging.Options{Level: level, File: cfg.LogFile})
}

func runSniff(rawURL string) error {
	defer closeLog()

	if !strings.HasPrefix(rawURL, "http://") && !strings.HasPrefix(rawURL, "https://") {
		rawURL = "https://" + rawURL
	}

	cfg := config.LoadOrDefault()
	if !config.Exists() {
		warn("config file not found, using defaults. Run 'vsniff init'.")
	}
	if visible {
		cfg.Browser.Visible = true
	}
	if noImages {
		cfg.Scan.Images = false
	}

	sites, err := config.LoadSites()
	if err != nil {
		return err
	}
	reg, err := session.NewRegistry(cfg, sites, slog.Default())
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	opts := session.OptionsFromConfig(cfg, reg, slog.Default())

	var enc *json.Encoder
	if jsonOut {
		enc = json.NewEncoder(os.Stdout)
		opts.Listener = func(b publish.Batch) {
			if err := enc.Encode(b); err != nil {
				slog.Warn("failed to write batch", "error", err)
			}
		}
	}

	run := func(progress func(found int)) ([]media.Candidate, error) {
		browser, err := session.Launch(session.BrowserOptionsFromConfig(cfg))
		if err != nil {
			return nil, err
		}
		defer browser.Close()

		sess, err := session.Open(ctx, browser.Browser, rawURL, opts)
		if err != nil {
			return nil, err
		}
		defer sess.Close()

		if progress != nil {
			unsubscribe := sess.Publisher().Subscribe(func(publish.Batch) {
				progress(len(sess.Candidates()))
			})
			defer unsubscribe()
		}
		return sess.Collect(ctx, wait), nil
	}

	if jsonOut {
		_, err := run(nil)
		return err
	}

	cands, err := runSniffWithSpinner(rawURL, wait, run)
	if err != nil {
		return err
	}
	printCandidates(os.Stdout, cands)
	return nil
}
