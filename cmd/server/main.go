package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/wrenhollow/continuity/internal/api"
	"github.com/wrenhollow/continuity/internal/config"
	"github.com/wrenhollow/continuity/internal/embedding"
	"github.com/wrenhollow/continuity/internal/maintenance"
	"github.com/wrenhollow/continuity/internal/registry"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to load config:", err)
		os.Exit(1)
	}

	logLevel := slog.LevelInfo
	if cfg.LogLevel == "debug" {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel}))
	slog.SetDefault(logger)

	var providers []embedding.Provider
	if cfg.Embedding.OllamaEndpoint != "" {
		providers = append(providers, embedding.NewOllamaProvider(cfg.Embedding.OllamaEndpoint, cfg.Embedding.Model))
	}
	providers = append(providers,
		embedding.NewHTTPProvider(cfg.Embedding.Endpoint, cfg.Embedding.Model, 5),
		embedding.NewFeatureExtractionProvider(cfg.Embedding.Dimensions),
	)
	embedChain := embedding.NewChain(providers...)

	reg := registry.New(cfg, embedChain, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Warm the default agent so /health and the admin API have
	// something to report immediately.
	if _, err := reg.Get(ctx, ""); err != nil {
		logger.Error("failed to initialize default agent storage", "error", err)
		os.Exit(1)
	}

	maint := maintenance.New(cfg.Maintenance, func() []maintenance.AgentSource {
		var sources []maintenance.AgentSource
		for _, a := range reg.Agents() {
			st, err := reg.Get(ctx, a.AgentID)
			if err != nil {
				continue
			}
			sources = append(sources, maintenance.AgentSource{
				AgentID:      st.AgentID,
				Archiver:     st.Archiver,
				Indexer:      st.Indexer,
				IndexedDates: st.IndexLog.IndexedDates,
			})
		}
		return sources
	}, logger)
	go maint.Run(ctx)

	router := api.NewRouter(reg, cfg, logger)

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("continuity server starting", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-done
	logger.Info("shutting down...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
	}

	logger.Info("server stopped")
}
