// Command putbox serves a directory over HTTP with PUT upload support.
//
// Example:
//
//	putbox --listen 0.0.0.0:9999 /srv/files
//	curl --upload-file /etc/hosts http://localhost:9999/hosts
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"putbox/internal/config"
	"putbox/internal/httpserver"
)

func main() {
	flags := pflag.NewFlagSet("putbox", pflag.ContinueOnError)
	flags.String("listen", "127.0.0.1:9999", "listen address (host:port)")
	flags.String("root", ".", "served root directory (or pass as positional arg)")
	flags.Int("chunk", 4<<20, "buffer size in bytes per upload write step")
	flags.String("level", "info", "log level (debug, info, warn, error)")
	cfgPath := flags.String("config", "", "path to optional YAML config file")
	flags.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: putbox [flags] [root]\n")
		flags.PrintDefaults()
	}
	if err := flags.Parse(os.Args[1:]); err != nil {
		if err == pflag.ErrHelp {
			return
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	if flags.NArg() > 0 {
		_ = flags.Set("root", flags.Arg(0))
	}

	cfg, err := config.Load(*cfgPath, flags)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: cfg.Level(),
	}))
	slog.SetDefault(logger)

	if st, err := os.Stat(cfg.Root); err != nil || !st.IsDir() {
		logger.Error("root is not a directory", "root", cfg.Root)
		os.Exit(1)
	}

	srv := &http.Server{
		Addr:    cfg.Listen,
		Handler: httpserver.New(*cfg, logger).Handler(),
		// No read/write timeouts: uploads and exports may take a long
		// time on slow links.
		IdleTimeout: 2 * time.Minute,
	}

	go func() {
		logger.Info("putbox listening", "addr", cfg.Listen, "root", cfg.Root)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	logger.Info("shutdown signal received, draining connections")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("graceful shutdown failed", "error", err)
	}
	logger.Info("putbox stopped")
}
