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

	"github.com/use-agent/mediaresolve/api"
	"github.com/use-agent/mediaresolve/api/handler"
	"github.com/use-agent/mediaresolve/cache"
	"github.com/use-agent/mediaresolve/config"
	"github.com/use-agent/mediaresolve/engine"
	"github.com/use-agent/mediaresolve/metrics"
	"github.com/use-agent/mediaresolve/scraper"
)

func main() {
	// ── 1. Load configuration ───────────────────────────────────────
	cfg := config.Load()

	// ── 2. Initialise structured logging ────────────────────────────
	initLogger(cfg.Log)
	slog.Info("mediaresolve starting",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
		"mode", cfg.Server.Mode,
		"maxPages", cfg.Browser.MaxPages,
		"allowedHosts", cfg.Resolve.AllowedHosts,
	)
	if cfg.Auth.Enabled && len(cfg.Auth.APIKeys) == 0 {
		slog.Warn("auth enabled but no AUTH_TOKEN set; protected routes will answer 500")
	}

	// ── 3. Launch the browser ───────────────────────────────────────
	sc, err := scraper.NewScraper(cfg.Browser, cfg.Renderer)
	if err != nil {
		slog.Error("failed to initialise scraper", "error", err)
		os.Exit(1)
	}
	defer sc.Close()

	// ── 3b. Optional engine racing ──────────────────────────────────
	if cfg.Engine.EnableMultiEngine {
		// sc.Render bypasses the dispatcher, so engine/ never imports scraper/.
		httpEngine := engine.NewHTTPEngine(cfg.Browser.Proxy, cfg.Renderer.UserAgent, cfg.Engine.HTTPTimeout)
		rodEngine := engine.NewRodEngine(sc.Render, false)
		rodStealthEngine := engine.NewRodEngine(sc.Render, true)

		engines := []engine.Engine{httpEngine, rodEngine, rodStealthEngine}
		memory := engine.NewDomainMemory(cfg.Engine.DomainMemoryTTL)
		sc.SetDispatcher(engine.NewDispatcher(engines, cfg.Engine.EscalationDelays, memory, engine.HasMedia))

		slog.Info("multi-engine dispatcher enabled",
			"engines", len(engines),
			"delays", cfg.Engine.EscalationDelays,
		)
	}

	// ── 4. Cache and metrics ────────────────────────────────────────
	var cc *cache.Cache
	if cfg.Cache.TTL > 0 {
		cc = cache.New(cfg.Cache.TTL, cfg.Cache.MaxEntries)
		defer cc.Stop()
	}
	m := metrics.New(sc.Stats)

	// ── 5. Setup router ─────────────────────────────────────────────
	res := handler.NewResolver(sc, cc, m, cfg)
	batches := handler.NewBatchStore(time.Hour)
	defer batches.Stop()
	router := api.NewRouter(res, batches, m, cfg, time.Now())

	// ── 6. Start HTTP server ────────────────────────────────────────
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		slog.Info("HTTP server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("HTTP server error", "error", err)
			os.Exit(1)
		}
	}()

	// ── 7. Graceful shutdown ────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	slog.Info("shutdown signal received", "signal", sig.String())

	// A resolution can hold a page for the full navigation timeout.
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Renderer.NavigationTimeout+5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("HTTP server forced shutdown", "error", err)
	} else {
		slog.Info("HTTP server drained gracefully")
	}

	slog.Info("mediaresolve stopped")
}

// initLogger configures slog based on the LogConfig.
func initLogger(cfg config.LogConfig) {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}

	var h slog.Handler
	if cfg.Format == "text" {
		h = slog.NewTextHandler(os.Stdout, opts)
	} else {
		h = slog.NewJSONHandler(os.Stdout, opts)
	}

	slog.SetDefault(slog.New(h))
}
