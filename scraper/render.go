package scraper

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
	"github.com/use-agent/mediaresolve/engine"
	"github.com/use-agent/mediaresolve/extractor"
	"github.com/use-agent/mediaresolve/models"
	"github.com/ysmood/gson"
)

// metaJS picks og:video (or og:video:secure_url) and og:image from the live
// DOM, matching either the property or the name attribute case-insensitively.
const metaJS = `() => {
	const all = Array.from(document.querySelectorAll('meta'));
	const pick = (prop) => all.find(m =>
		(m.getAttribute('property') || '').toLowerCase() === prop ||
		(m.getAttribute('name') || '').toLowerCase() === prop);
	const video = pick('og:video') || pick('og:video:secure_url');
	const image = pick('og:image');
	return {
		video: video ? (video.getAttribute('content') || '') : '',
		image: image ? (image.getAttribute('content') || '') : '',
	};
}`

// statusJS reads the main document status without CDP network listeners,
// which conflict with the Fetch domain used by the hijack router.
const statusJS = `() => {
	try {
		const entries = performance.getEntriesByType("navigation");
		if (entries.length > 0) return entries[0].responseStatus || 0;
	} catch(e) {}
	return 0;
}`

// Render loads req.URL in a fresh incognito context and reads the page back.
// It has the engine.RodFetchFunc signature.
//
// Lifecycle:
//
//  1. Timeout guard          – hard deadline on the entire operation
//  2. Acquire slot           – bounded concurrency across all requests
//  3. Incognito context      – isolated cookies/storage, DEFER dispose
//  4. Identity               – user agent + locale
//  5. Stealth injection      – before navigation
//  6. Hijack mount           – block images/CSS/fonts/media, before navigation
//  7. DOMContentLoaded waiter – registered before Navigate
//  8. Navigate
//  9. Quiescence window      – fixed wait for deferred requests to settle
//  10. Read                  – status, meta values, serialized HTML, final URL
//
// A non-2xx main document is not an error: whatever content loaded is
// returned and scanned. The incognito context is disposed on every exit path,
// using the browser handle that is not bound to the request context so the
// cleanup still runs after a timeout.
func (s *Scraper) Render(ctx context.Context, req *engine.FetchRequest) (*engine.FetchResult, error) {
	// ── 1. Timeout guard ──────────────────────────────────────────────
	ctx, cancel := context.WithTimeout(ctx, s.timeout(req.Timeout))
	defer cancel()

	// ── 2. Acquire slot ───────────────────────────────────────────────
	select {
	case s.slots <- struct{}{}:
	case <-ctx.Done():
		return nil, categorizeError(ctx.Err(), "timed out waiting for a free browser page")
	}
	defer func() { <-s.slots }()

	s.activePages.Add(1)
	defer s.activePages.Add(-1)

	// ── 3. Incognito context ──────────────────────────────────────────
	session, err := s.browser.Incognito()
	if err != nil {
		return nil, models.NewResolveError(models.ErrCodeBrowserCrash, "failed to create browser context", err)
	}
	defer func() {
		if closeErr := session.Close(); closeErr != nil {
			slog.Warn("cleanup: failed to dispose browser context", "error", closeErr)
		}
	}()

	page, err := session.Page(proto.TargetCreateTarget{})
	if err != nil {
		return nil, models.NewResolveError(models.ErrCodeBrowserCrash, "failed to open page", err)
	}

	// ── 4. Identity ───────────────────────────────────────────────────
	if err := page.SetUserAgent(&proto.NetworkSetUserAgentOverride{
		UserAgent:      s.rendererCfg.UserAgent,
		AcceptLanguage: s.rendererCfg.Locale,
	}); err != nil {
		slog.Warn("user agent override failed", "error", err)
	}
	if s.rendererCfg.Locale != "" {
		_ = proto.EmulationSetLocaleOverride{Locale: s.rendererCfg.Locale}.Call(page)
	}
	if len(req.Headers) > 0 {
		_ = proto.NetworkSetExtraHTTPHeaders{Headers: toHeadersMap(req.Headers)}.Call(page)
	}

	// ── 5. Stealth injection ──────────────────────────────────────────
	if req.Stealth {
		if _, evalErr := page.EvalOnNewDocument(stealth.JS); evalErr != nil {
			slog.Warn("stealth injection failed, proceeding without stealth", "error", evalErr)
		}
	}

	// ── 6. Hijack mount ───────────────────────────────────────────────
	router := setupHijack(page, s.rendererCfg.BlockedResourceTypes)
	if router != nil {
		defer func() { _ = router.Stop() }()
	}

	p := page.Context(ctx)

	// ── 7–8. Navigate and wait for DOMContentLoaded ───────────────────
	waitDOM := p.WaitNavigation(proto.PageLifecycleEventNameDOMContentLoaded)
	if err := p.Navigate(req.URL); err != nil {
		return nil, categorizeError(err, "navigation to target URL failed")
	}
	waitDOM()

	// ── 9. Quiescence window ──────────────────────────────────────────
	if err := sleepCtx(ctx, s.rendererCfg.QuiescenceWindow); err != nil {
		return nil, categorizeError(err, "timed out while waiting for the page to settle")
	}

	// ── 10. Read ──────────────────────────────────────────────────────
	statusCode := 0
	if res, evalErr := p.Eval(statusJS); evalErr == nil {
		statusCode = res.Value.Int()
	}
	if statusCode >= 400 {
		slog.Debug("target answered with error status, scanning anyway",
			"url", req.URL, "status", statusCode)
	}

	var video, image string
	if res, evalErr := p.Eval(metaJS); evalErr == nil {
		video = res.Value.Get("video").Str()
		image = res.Value.Get("image").Str()
	} else if ctx.Err() != nil {
		return nil, categorizeError(evalErr, "failed to read meta tags")
	}

	rawHTML, err := p.HTML()
	if err != nil {
		return nil, categorizeError(err, "failed to extract page HTML")
	}

	finalURL := evalStringOrEmpty(p, `() => window.location.href`)
	if finalURL == "" {
		finalURL = req.URL
	}

	return &engine.FetchResult{
		Page: extractor.RenderedPage{
			MetaVideo: video,
			MetaImage: image,
			HTML:      rawHTML,
		},
		StatusCode: statusCode,
		FinalURL:   finalURL,
		EngineName: "rod",
	}, nil
}

// sleepCtx waits for d or until ctx is done.
func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// evalStringOrEmpty evaluates a JS expression and returns the string result,
// swallowing any errors.
func evalStringOrEmpty(page *rod.Page, js string) string {
	res, err := page.Eval(js)
	if err != nil {
		return ""
	}
	return res.Value.Str()
}

// toHeadersMap converts a plain string map to the proto.NetworkHeaders type
// (map[string]gson.JSON) required by NetworkSetExtraHTTPHeaders.
func toHeadersMap(headers map[string]string) proto.NetworkHeaders {
	m := make(proto.NetworkHeaders, len(headers))
	for k, v := range headers {
		m[k] = gson.New(v)
	}
	return m
}

// categorizeError wraps raw errors into typed ResolveErrors so the API layer
// can map them to appropriate HTTP status codes.
func categorizeError(err error, msg string) *models.ResolveError {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return models.NewResolveError(models.ErrCodeTimeout, msg, err)
	case errors.Is(err, context.Canceled):
		return models.NewResolveError(models.ErrCodeTimeout, "request canceled", err)
	default:
		return models.NewResolveError(models.ErrCodeNavigation, msg, err)
	}
}
