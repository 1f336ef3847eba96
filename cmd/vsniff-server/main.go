package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/guiyumin/vsniff/internal/core/config"
	"github.com/guiyumin/vsniff/internal/core/logging"
	"github.com/guiyumin/vsniff/internal/core/session"
	"github.com/guiyumin/vsniff/internal/core/version"
	"github.com/guiyumin/vsniff/internal/server"
)

func main() {
	// Command-line flags
	port := flag.Int("port", 0, "HTTP listen port (default: 8080)")
	visible := flag.Bool("visible", false, "show the browser window")
	showVersion := flag.Bool("version", false, "show version")
	flag.Parse()

	if *showVersion {
		fmt.Printf("vsniff-server %s\n", version.Version)
		return
	}

	cfg := config.LoadOrDefault()
	closeLog := logging.Setup(logging.Options{Level: cfg.LogLevel, File: cfg.LogFile})
	defer closeLog()

	// Resolve port (flag > config > default)
	serverPort := *port
	if serverPort == 0 {
		if cfg.Server.Port > 0 {
			serverPort = cfg.Server.Port
		} else {
			serverPort = 8080
		}
	}
	if *visible {
		cfg.Browser.Visible = true
	}

	sites, err := config.LoadSites()
	if err != nil {
		slog.Error("failed to load sites", "error", err)
		os.Exit(1)
	}
	reg, err := session.NewRegistry(cfg, sites, slog.Default())
	if err != nil {
		slog.Error("failed to build rule registry", "error", err)
		os.Exit(1)
	}

	sniffer := server.NewBrowserSniffer(
		session.BrowserOptionsFromConfig(cfg),
		session.OptionsFromConfig(cfg, reg, slog.Default()),
		slog.Default(),
	)
	defer sniffer.Close()

	srv := server.NewServer(server.Options{
		Port:          serverPort,
		APIKey:        cfg.Server.APIKey,
		MaxConcurrent: cfg.Server.MaxConcurrent,
		Registry:      reg,
		Sniff:         sniffer.Func,
	})

	// Handle graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		slog.Info("shutting down server")
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Stop(ctx); err != nil {
			slog.Warn("shutdown failed", "error", err)
		}
	}()

	if err := srv.Start(); err != nil {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
}
