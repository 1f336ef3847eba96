package cli

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/guiyumin/vsniff/internal/core/config"
	"github.com/guiyumin/vsniff/internal/core/session"
	"github.com/guiyumin/vsniff/internal/server"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the relay HTTP server",
	Long: `Start an HTTP server that sniffs pages on request and relays every
batch found to event-stream subscribers.

Examples:
  vsniff serve              # Start server on port 8080
  vsniff serve -p 9000      # Start server on port 9000

API Endpoints:
  GET    /api/health        # Health check
  POST   /api/sniff         # Queue a sniff {url, wait_seconds}
  GET    /api/status/:id    # Get job status and candidates
  GET    /api/jobs          # List all jobs
  DELETE /api/jobs/:id      # Cancel or remove a job
  POST   /api/parse         # Run the rules on a body {request_url, body}
  GET    /api/rules         # List extraction rules
  GET    /api/events        # Server-sent event stream of batches`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe()
	},
}

func init() {
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 0, "HTTP listen port (default: 8080)")
	serveCmd.Flags().BoolVar(&visible, "visible", false, "show browser window (for debugging)")
	rootCmd.AddCommand(serveCmd)
}

func runServe() error {
	defer closeLog()
	cfg := config.LoadOrDefault()

	// Resolve port (flag > config > default)
	port := servePort
	if port == 0 {
		port = cfg.Server.Port
	}
	if port == 0 {
		port = 8080
	}
	if visible {
		cfg.Browser.Visible = true
	}

	sites, err := config.LoadSites()
	if err != nil {
		return err
	}
	reg, err := session.NewRegistry(cfg, sites, slog.Default())
	if err != nil {
		return err
	}

	sniffer := server.NewBrowserSniffer(
		session.BrowserOptionsFromConfig(cfg),
		session.OptionsFromConfig(cfg, reg, slog.Default()),
		slog.Default(),
	)
	defer sniffer.Close()

	srv := server.NewServer(server.Options{
		Port:          port,
		APIKey:        cfg.Server.APIKey,
		MaxConcurrent: cfg.Server.MaxConcurrent,
		Registry:      reg,
		Sniff:         sniffer.Func,
		Logger:        slog.Default(),
	})

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		slog.Info("shutting down server")
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		srv.Stop(ctx)
	}()

	return srv.Start()
}
