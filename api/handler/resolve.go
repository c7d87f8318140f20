package handler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/mediaresolve/cache"
	"github.com/use-agent/mediaresolve/config"
	"github.com/use-agent/mediaresolve/engine"
	"github.com/use-agent/mediaresolve/extractor"
	"github.com/use-agent/mediaresolve/metrics"
	"github.com/use-agent/mediaresolve/models"
)

// PageLoader loads a target page for extraction. *scraper.Scraper
// implements it.
type PageLoader interface {
	Load(ctx context.Context, req *engine.FetchRequest) (*engine.FetchResult, error)
	Stats() models.PoolStats
}

// Resolver validates target URLs, loads pages and extracts their media.
// It is shared by the single and batch endpoints.
type Resolver struct {
	loader       PageLoader
	cache        *cache.Cache
	metrics      *metrics.Metrics
	stealth      bool
	allowedHosts map[string]struct{}
	hostList     string
}

// NewResolver wires a Resolver. cc and m may be nil.
func NewResolver(loader PageLoader, cc *cache.Cache, m *metrics.Metrics, cfg *config.Config) *Resolver {
	allowed := make(map[string]struct{}, len(cfg.Resolve.AllowedHosts))
	names := make([]string, 0, len(cfg.Resolve.AllowedHosts))
	for _, h := range cfg.Resolve.AllowedHosts {
		h = strings.ToLower(strings.TrimSpace(h))
		if h == "" {
			continue
		}
		if _, dup := allowed[h]; !dup {
			names = append(names, h)
		}
		allowed[h] = struct{}{}
	}
	sort.Strings(names)

	return &Resolver{
		loader:       loader,
		cache:        cc,
		metrics:      m,
		stealth:      cfg.Renderer.Stealth,
		allowedHosts: allowed,
		hostList:     strings.Join(names, ", "),
	}
}

// Stats reports the loader's pool usage.
func (r *Resolver) Stats() models.PoolStats {
	return r.loader.Stats()
}

// ValidateURL trims raw and checks it is an http(s) link to an allowed host
// with a path. It returns the trimmed URL.
func (r *Resolver) ValidateURL(raw string) (string, *models.ResolveError) {
	target := strings.TrimSpace(raw)
	if target == "" {
		return "", models.NewResolveError(models.ErrCodeInvalidInput, "Missing url", nil)
	}

	u, err := url.Parse(target)
	unsupported := err != nil ||
		(u.Scheme != "http" && u.Scheme != "https") ||
		u.User != nil ||
		!strings.HasPrefix(u.Path, "/")
	if !unsupported {
		_, ok := r.allowedHosts[strings.ToLower(u.Host)]
		unsupported = !ok
	}
	if unsupported {
		return "", models.NewResolveError(
			models.ErrCodeUnsupported,
			fmt.Sprintf("only links to %s are supported", r.hostList),
			nil,
		)
	}
	return target, nil
}

// Resolve loads target and returns its media. A page that loads but carries
// no media yields a response with an empty Media slice and a nil error; an
// error always means the page could not be loaded.
func (r *Resolver) Resolve(ctx context.Context, target string, timeout time.Duration, noCache bool) (*models.ResolveResponse, error) {
	start := time.Now()
	useCache := r.cache != nil && !noCache
	key := cache.Key(target)

	if useCache {
		entry, hit := r.cache.Get(key)
		r.metrics.ObserveCache(hit)
		if hit {
			return &models.ResolveResponse{
				Media:       entry.Media,
				FinalURL:    entry.FinalURL,
				StatusCode:  entry.StatusCode,
				EngineUsed:  entry.EngineUsed,
				CacheStatus: "hit",
				Timing:      models.TimingInfo{TotalMs: time.Since(start).Milliseconds()},
			}, nil
		}
	}

	result, err := r.loader.Load(ctx, &engine.FetchRequest{
		URL:     target,
		Timeout: timeout,
		Stealth: r.stealth,
	})
	renderMs := time.Since(start).Milliseconds()
	if err != nil {
		r.metrics.ObserveResolve(metrics.OutcomeFailed, "", time.Since(start), nil)
		slog.Warn("resolve failed", "url", target, "error", err)
		return nil, err
	}

	extractStart := time.Now()
	media := extractor.Extract(result.Page)
	extractMs := time.Since(extractStart).Milliseconds()

	resp := &models.ResolveResponse{
		Media:      media,
		FinalURL:   result.FinalURL,
		StatusCode: result.StatusCode,
		EngineUsed: result.EngineName,
		Timing: models.TimingInfo{
			TotalMs:   time.Since(start).Milliseconds(),
			RenderMs:  renderMs,
			ExtractMs: extractMs,
		},
	}

	outcome := metrics.OutcomeFound
	if len(media) == 0 {
		outcome = metrics.OutcomeNoMedia
	}
	r.metrics.ObserveResolve(outcome, result.EngineName, time.Since(start), media)
	slog.Info("resolved",
		"url", target,
		"final_url", result.FinalURL,
		"status", result.StatusCode,
		"engine", result.EngineName,
		"media", len(media),
	)

	// Empty results are not cached: a login wall is usually transient.
	if useCache && len(media) > 0 {
		r.cache.Set(key, &cache.Entry{
			Media:      media,
			FinalURL:   result.FinalURL,
			StatusCode: result.StatusCode,
			EngineUsed: result.EngineName,
		})
		resp.CacheStatus = "miss"
	}

	return resp, nil
}

// Resolve returns a handler for POST /api/v1/resolve (and the legacy POST /ig).
//
//  1. Parse the body and validate the URL     → 400 on failure
//  2. Resolver.Resolve                         → 502/504/500 on load failure
//  3. Empty media                              → 404 {"media": []}
//  4. Otherwise                                → 200 {"media": [...]}
func Resolve(res *Resolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req models.ResolveRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondError(c, models.NewResolveError(models.ErrCodeInvalidInput, "invalid request body", err))
			return
		}

		target, verr := res.ValidateURL(req.URL)
		if verr != nil {
			respondError(c, verr)
			return
		}

		resp, err := res.Resolve(c.Request.Context(), target, time.Duration(req.Timeout)*time.Second, req.NoCache)
		if err != nil {
			slog.Warn("resolve request failed", "request_id", c.GetString("request_id"), "url", target)
			respondError(c, err)
			return
		}

		if len(resp.Media) == 0 {
			c.JSON(http.StatusNotFound, resp)
			return
		}
		c.JSON(http.StatusOK, resp)
	}
}

// respondError maps an error to its HTTP status and writes the error envelope.
func respondError(c *gin.Context, err error) {
	var resolveErr *models.ResolveError
	if !errors.As(err, &resolveErr) {
		resolveErr = models.NewResolveError(models.ErrCodeInternal, "Resolver failed", err)
	}

	c.JSON(mapErrorToStatus(resolveErr), models.ErrorResponse{
		Error: resolveErr.ToDetail(),
	})
}

// mapErrorToStatus translates error codes to HTTP status codes.
func mapErrorToStatus(e *models.ResolveError) int {
	switch e.Code {
	case models.ErrCodeTimeout:
		return http.StatusGatewayTimeout // 504
	case models.ErrCodeNavigation:
		return http.StatusBadGateway // 502
	case models.ErrCodeInvalidInput, models.ErrCodeUnsupported:
		return http.StatusBadRequest // 400
	case models.ErrCodeRateLimited:
		return http.StatusTooManyRequests // 429
	case models.ErrCodeUnauthorized:
		return http.StatusUnauthorized // 401
	case models.ErrCodeNotFound:
		return http.StatusNotFound // 404
	default:
		return http.StatusInternalServerError // 500
	}
}
