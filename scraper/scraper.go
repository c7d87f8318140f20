package scraper

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"
	"github.com/use-agent/mediaresolve/config"
	"github.com/use-agent/mediaresolve/engine"
	"github.com/use-agent/mediaresolve/models"
)

// Scraper owns the shared browser process and renders pages in isolated
// incognito contexts. It is safe for concurrent use.
type Scraper struct {
	browser     *rod.Browser
	slots       chan struct{}
	browserCfg  config.BrowserConfig
	rendererCfg config.RendererConfig
	activePages atomic.Int32
	dispatcher  *engine.Dispatcher
}

// NewScraper launches a headless browser. At most browserCfg.MaxPages pages
// are rendered at the same time.
func NewScraper(browserCfg config.BrowserConfig, rendererCfg config.RendererConfig) (*Scraper, error) {
	l := launcher.New().
		Headless(browserCfg.Headless).
		NoSandbox(browserCfg.NoSandbox)

	if browserCfg.BrowserBin != "" {
		l = l.Bin(browserCfg.BrowserBin)
	}
	if browserCfg.Proxy != "" {
		l = l.Proxy(browserCfg.Proxy)
	}

	// ── Stealth flags ────────────────────────────────────────────────
	l.Set(flags.Flag("disable-blink-features"), "AutomationControlled")
	l.Delete(flags.Flag("enable-automation"))
	l.Set(flags.Flag("disable-features"), "AudioServiceOutOfProcess,TranslateUI")
	l.Set(flags.Flag("disable-setuid-sandbox"))
	l.Set(flags.Flag("disable-dev-shm-usage"))
	l.Set(flags.Flag("disable-renderer-backgrounding"))
	l.Set(flags.Flag("disable-background-timer-throttling"))
	l.Set(flags.Flag("disable-backgrounding-occluded-windows"))
	l.Set(flags.Flag("disable-component-update"))
	l.Set(flags.Flag("disable-default-apps"))
	l.Set(flags.Flag("disable-extensions"))
	l.Set(flags.Flag("no-first-run"))

	controlURL, err := l.Launch()
	if err != nil {
		return nil, models.NewResolveError(
			models.ErrCodeBrowserCrash,
			"failed to launch browser",
			err,
		)
	}
	slog.Info("browser launched", "controlURL", controlURL)

	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		return nil, models.NewResolveError(
			models.ErrCodeBrowserCrash,
			"failed to connect to browser",
			err,
		)
	}

	maxPages := browserCfg.MaxPages
	if maxPages <= 0 {
		maxPages = 1
	}
	slog.Info("render slots created", "maxPages", maxPages)

	return &Scraper{
		browser:     browser,
		slots:       make(chan struct{}, maxPages),
		browserCfg:  browserCfg,
		rendererCfg: rendererCfg,
	}, nil
}

// SetDispatcher enables multi-engine racing for Load.
func (s *Scraper) SetDispatcher(d *engine.Dispatcher) {
	s.dispatcher = d
}

// Load fetches the page for req. With a dispatcher configured it races the
// engines and falls back to a direct render if the race fails outright;
// otherwise it renders directly.
func (s *Scraper) Load(ctx context.Context, req *engine.FetchRequest) (*engine.FetchResult, error) {
	if s.dispatcher != nil {
		dispatchCtx, cancel := context.WithTimeout(ctx, s.timeout(req.Timeout))
		defer cancel()

		result, err := s.dispatcher.Dispatch(dispatchCtx, req)
		if err == nil {
			return result, nil
		}
		if ctx.Err() != nil {
			return nil, categorizeError(ctx.Err(), "resolution aborted")
		}
		slog.Warn("dispatcher failed, falling back to direct render",
			"url", req.URL, "error", err)
	}

	return s.Render(ctx, req)
}

// Stats returns a snapshot of render slot usage.
func (s *Scraper) Stats() models.PoolStats {
	return models.PoolStats{
		MaxPages:    cap(s.slots),
		ActivePages: int(s.activePages.Load()),
	}
}

// timeout returns the effective deadline for a request, clamped to MaxTimeout.
func (s *Scraper) timeout(requested time.Duration) time.Duration {
	return clampTimeout(requested, s.rendererCfg.NavigationTimeout, s.rendererCfg.MaxTimeout)
}

func clampTimeout(requested, fallback, max time.Duration) time.Duration {
	t := requested
	if t <= 0 {
		t = fallback
	}
	if max > 0 && t > max {
		t = max
	}
	return t
}

// Close kills the browser process. Call this on graceful shutdown to prevent
// zombie Chrome processes.
func (s *Scraper) Close() {
	slog.Info("scraper shutting down: closing browser")
	if err := s.browser.Close(); err != nil {
		slog.Warn("browser close failed", "error", err)
	}
	slog.Info("scraper shutdown complete")
}
