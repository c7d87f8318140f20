package engine

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/use-agent/mediaresolve/extractor"
	"golang.org/x/net/publicsuffix"
)

// AcceptFunc decides whether a fetched page is good enough to end the race.
type AcceptFunc func(*FetchResult) bool

// HasMedia accepts a page only when the extractor finds at least one media
// reference on it. A login wall served to the HTTP engine loads fine but
// carries nothing, and must not beat a browser render that does.
func HasMedia(r *FetchResult) bool {
	return len(extractor.Extract(r.Page)) > 0
}

// Dispatcher coordinates multi-engine racing with staged escalation.
// It starts the cheapest engine first and progressively starts heavier
// engines if earlier ones fail, time out, or return a page without media.
type Dispatcher struct {
	engines          []Engine
	escalationDelays []time.Duration
	memory           *DomainMemory
	accept           AcceptFunc
}

// escalationStep spaces out engines that have no configured delay.
const escalationStep = 3 * time.Second

// NewDispatcher creates a Dispatcher with the given engines and escalation
// delays. engines[i] starts after escalationDelays[i]; an engine without a
// configured delay starts escalationStep after the one before it.
// A nil accept treats every successful fetch as final.
func NewDispatcher(engines []Engine, escalationDelays []time.Duration, memory *DomainMemory, accept AcceptFunc) *Dispatcher {
	delays := stagedDelays(len(engines), escalationDelays)
	if accept == nil {
		accept = func(*FetchResult) bool { return true }
	}
	return &Dispatcher{
		engines:          engines,
		escalationDelays: delays,
		memory:           memory,
		accept:           accept,
	}
}

func stagedDelays(n int, configured []time.Duration) []time.Duration {
	delays := make([]time.Duration, n)
	copy(delays, configured)
	for i := len(configured); i < n; i++ {
		if i > 0 {
			delays[i] = delays[i-1] + escalationStep
		}
	}
	return delays
}

// Dispatch runs the race for req.
//
// It returns the first accepted result. If every engine finished but none was
// accepted, the first page that loaded at all is returned so the caller can
// report "no media" rather than a failure. Only when no engine loaded the
// page is an error returned.
func (d *Dispatcher) Dispatch(ctx context.Context, req *FetchRequest) (*FetchResult, error) {
	domain := extractDomain(req.URL)

	if remembered := d.memory.Get(domain); remembered != "" {
		for _, eng := range d.engines {
			if eng.Name() != remembered {
				continue
			}
			slog.Debug("domain memory hit", "domain", domain, "engine", remembered)
			result, err := eng.Fetch(ctx, req)
			if err == nil && d.accept(result) {
				return result, nil
			}
			slog.Info("domain memory miss, running full race",
				"domain", domain, "engine", remembered, "error", err)
			d.memory.Delete(domain)
			break
		}
	}

	return d.race(ctx, req, domain)
}

// race runs all engines with staged delays and returns the first accepted result.
func (d *Dispatcher) race(ctx context.Context, req *FetchRequest, domain string) (*FetchResult, error) {
	type raceResult struct {
		result *FetchResult
		err    error
	}

	raceCtx, raceCancel := context.WithCancel(ctx)
	defer raceCancel()

	results := make(chan raceResult, len(d.engines))
	var wg sync.WaitGroup

	for i, eng := range d.engines {
		wg.Add(1)
		go func(e Engine, delay time.Duration) {
			defer wg.Done()

			if delay > 0 {
				select {
				case <-raceCtx.Done():
					return
				case <-time.After(delay):
				}
			}

			select {
			case <-raceCtx.Done():
				return
			default:
			}

			slog.Debug("engine starting", "engine", e.Name(), "url", req.URL)
			result, err := e.Fetch(raceCtx, req)
			if err != nil {
				slog.Debug("engine failed", "engine", e.Name(), "url", req.URL, "error", err)
			}
			results <- raceResult{result: result, err: err}
		}(eng, d.escalationDelays[i])
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	var lastErr error
	var fallback *FetchResult
	for rr := range results {
		if rr.err != nil {
			lastErr = rr.err
			continue
		}
		if !d.accept(rr.result) {
			slog.Debug("engine returned page without media", "engine", rr.result.EngineName, "url", req.URL)
			if fallback == nil {
				fallback = rr.result
			}
			continue
		}
		raceCancel()
		slog.Info("engine won race", "engine", rr.result.EngineName, "url", req.URL)
		d.memory.Set(domain, rr.result.EngineName)
		return rr.result, nil
	}

	if fallback != nil {
		return fallback, nil
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("dispatcher: all engines failed for %s", req.URL)
	}
	return nil, lastErr
}

// extractDomain returns the registrable domain (eTLD+1) of a URL, so
// www.instagram.com and instagram.com share one memory entry. Hosts without
// a public suffix (localhost, IPs) are returned as is.
func extractDomain(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	host := strings.ToLower(u.Hostname())
	if net.ParseIP(host) != nil {
		return host
	}
	if etld1, err := publicsuffix.EffectiveTLDPlusOne(host); err == nil {
		return etld1
	}
	return host
}
