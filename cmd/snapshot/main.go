package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/macaronshop/storefront/internal/snapshot"
	"github.com/macaronshop/storefront/pkg/logger"
)

func main() {
	if err := run(); err != nil {
		slog.Error("fatal error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run() error {
	var (
		baseURL     = flag.String("base-url", os.Getenv("COMMERCE_API_URL"), "commerce platform API root")
		outDir      = flag.String("out", "internal/catalog/data", "output directory for fixture files")
		imagePrefix = flag.String("image-prefix", "", "rewrite image URLs to this local prefix")
		logLevel    = flag.String("log-level", "info", "log level")
	)
	flag.Parse()

	if *baseURL == "" {
		return fmt.Errorf("base-url is required (flag or COMMERCE_API_URL)")
	}

	log := logger.New("snapshot", *logLevel)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	exporter := snapshot.New(snapshot.Config{
		BaseURL:     *baseURL,
		AuthToken:   os.Getenv("COMMERCE_API_TOKEN"),
		OutDir:      *outDir,
		ImagePrefix: *imagePrefix,
	}, log)

	if err := exporter.Run(ctx); err != nil {
		return fmt.Errorf("export snapshot: %w", err)
	}

	log.Info("snapshot export finished", slog.String("out", *outDir))
	return nil
}
