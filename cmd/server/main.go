// Package main runs the catalog API server: it wires the upstream client,
// the cached catalog service, the background refresher and the HTTP listener,
// then blocks until a shutdown signal arrives.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/davbaghdasaryann/ehvm2/internal/app/httpapi"
	"github.com/davbaghdasaryann/ehvm2/internal/app/services/apps"
	"github.com/davbaghdasaryann/ehvm2/internal/app/system"
	"github.com/davbaghdasaryann/ehvm2/internal/config"
	"github.com/davbaghdasaryann/ehvm2/internal/notion"
	"github.com/davbaghdasaryann/ehvm2/pkg/logger"
)

func main() {
	configPath := flag.String("config", "", "path to the yaml config file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log := logger.New(logger.LoggingConfig{
		Level:     cfg.Logging.Level,
		Format:    cfg.Logging.Format,
		Output:    cfg.Logging.Output,
		Component: "server",
	})

	// Without a token the catalog service serves empty results; the process
	// still comes up so health checks and metrics work.
	var upstream apps.Upstream
	if cfg.Notion.Token != "" {
		client, err := notion.NewClient(notion.Config{
			Token:             cfg.Notion.Token,
			BaseURL:           cfg.Notion.BaseURL,
			Version:           cfg.Notion.Version,
			RequestsPerSecond: cfg.Notion.RequestsPerSecond,
			Logger:            logger.NewDefault("notion"),
		})
		if err != nil {
			return fmt.Errorf("build upstream client: %w", err)
		}
		upstream = client
	} else {
		log.Warn("no upstream token configured, serving an empty catalog")
	}

	service := apps.NewService(upstream, *cfg, logger.NewDefault("apps"))
	handler := httpapi.NewHandler(service, logger.NewDefault("httpapi"))

	manager := system.NewManager(logger.NewDefault("system"))
	manager.Register(apps.NewRefresher(service, cfg.Content.RefreshSchedule, logger.NewDefault("apps-refresher")))
	manager.Register(httpapi.NewServer(cfg.Server, handler, logger.NewDefault("httpapi")))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := manager.Start(ctx); err != nil {
		return fmt.Errorf("start services: %w", err)
	}
	log.WithField("addr", cfg.Server.Addr).Info("catalog server up")

	<-ctx.Done()
	log.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	manager.Stop(shutdownCtx)
	return nil
}
