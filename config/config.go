package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration. It is loaded once at startup
// and passed explicitly to every component that needs it.
type Config struct {
	Server    ServerConfig
	Browser   BrowserConfig
	Renderer  RendererConfig
	Resolve   ResolveConfig
	Auth      AuthConfig
	RateLimit RateLimitConfig
	Cache     CacheConfig
	Log       LogConfig
	Engine    EngineConfig
}

// EngineConfig controls the multi-engine racing dispatcher.
type EngineConfig struct {
	// EnableMultiEngine races a plain HTTP fetch against the browser.
	EnableMultiEngine bool // default: false

	// EscalationDelays is the staged start delay for each engine tier.
	EscalationDelays []time.Duration // default: [0s, 3s, 6s], one per engine tier

	// HTTPTimeout is the deadline for the pure HTTP engine.
	HTTPTimeout time.Duration // default: 5s

	// DomainMemoryTTL is how long a winning engine is remembered per host.
	DomainMemoryTTL time.Duration // default: 24h
}

// CacheConfig controls the resolution cache.
type CacheConfig struct {
	// TTL is how long a successful resolution is served from cache.
	// Zero disables caching.
	TTL time.Duration // default: 0

	// MaxEntries is the maximum number of cached resolutions.
	MaxEntries int // default: 1000
}

// ServerConfig controls the HTTP server.
type ServerConfig struct {
	Host string // default: "0.0.0.0"
	Port int    // default: 10000
	Mode string // "debug", "release", "test"; default: "release"
}

// BrowserConfig controls the Rod browser instance.
type BrowserConfig struct {
	// Headless controls whether the browser runs headless.
	Headless bool // default: true

	// MaxPages is the page pool capacity (max concurrent tabs).
	MaxPages int // default: 5

	// Proxy is the proxy URL for all browser and HTTP traffic.
	Proxy string

	// NoSandbox disables Chrome's sandbox (needed in Docker).
	NoSandbox bool // default: true

	// BrowserBin overrides the Chromium binary path.
	BrowserBin string
}

// RendererConfig controls how a single page is loaded.
type RendererConfig struct {
	// NavigationTimeout bounds the whole page load.
	NavigationTimeout time.Duration // default: 30s

	// MaxTimeout is the largest per-request timeout a client may ask for.
	MaxTimeout time.Duration // default: 120s

	// QuiescenceWindow is the fixed wait after load before content is read.
	QuiescenceWindow time.Duration // default: 1.5s

	// UserAgent and Locale identify the browsing context.
	UserAgent string
	Locale    string // default: "en-US"

	// Stealth injects anti-automation-detection scripts before navigation.
	Stealth bool // default: true

	// BlockedResourceTypes lists resource types to block.
	// default: ["Image", "Stylesheet", "Font", "Media"]
	BlockedResourceTypes []string
}

// ResolveConfig controls which URLs the API accepts.
type ResolveConfig struct {
	// AllowedHosts are the hostnames a target URL may point to.
	AllowedHosts []string // default: ["instagram.com", "www.instagram.com"]

	// MaxBatchSize caps the number of URLs per batch job.
	MaxBatchSize int // default: 50
}

// AuthConfig controls bearer-token authentication.
type AuthConfig struct {
	// Enabled toggles authentication. When enabled with no keys, protected
	// routes answer 500 "server is not configured".
	Enabled bool // default: true

	// APIKeys is the list of accepted tokens.
	APIKeys []string
}

// RateLimitConfig controls per-key rate limiting.
type RateLimitConfig struct {
	// RequestsPerSecond is the sustained rate per API key.
	RequestsPerSecond float64 // default: 5

	// Burst is the maximum burst size per API key.
	Burst int // default: 10
}

// LogConfig controls structured logging.
type LogConfig struct {
	Level  string // default: "info"
	Format string // "json" or "text"; default: "json"
}

const defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"

// Load reads configuration from environment variables with sane defaults.
//
// The unprefixed PORT, AUTH_TOKEN, PROXY_URL, NAV_TIMEOUT and NETWORK_IDLE_MS
// variables are honoured for compatibility with existing deployments; the
// last two are plain milliseconds.
func Load() *Config {
	apiKeys := envSliceOr("MEDIARESOLVE_API_KEYS", nil)
	if token := os.Getenv("AUTH_TOKEN"); token != "" {
		apiKeys = append(apiKeys, token)
	}

	return &Config{
		Server: ServerConfig{
			Host: envOr("MEDIARESOLVE_HOST", "0.0.0.0"),
			Port: envIntOr("MEDIARESOLVE_PORT", envIntOr("PORT", 10000)),
			Mode: envOr("MEDIARESOLVE_MODE", "release"),
		},
		Browser: BrowserConfig{
			Headless:   envBoolOr("MEDIARESOLVE_HEADLESS", true),
			MaxPages:   envIntOr("MEDIARESOLVE_MAX_PAGES", 5),
			Proxy:      envOr("MEDIARESOLVE_PROXY", os.Getenv("PROXY_URL")),
			NoSandbox:  envBoolOr("MEDIARESOLVE_NO_SANDBOX", true),
			BrowserBin: os.Getenv("MEDIARESOLVE_BROWSER_BIN"),
		},
		Renderer: RendererConfig{
			NavigationTimeout: envMillisOr("NAV_TIMEOUT", 30*time.Second),
			MaxTimeout:        envDurationOr("MEDIARESOLVE_MAX_TIMEOUT", 120*time.Second),
			QuiescenceWindow:  envMillisOr("NETWORK_IDLE_MS", 1500*time.Millisecond),
			UserAgent:         envOr("MEDIARESOLVE_USER_AGENT", defaultUserAgent),
			Locale:            envOr("MEDIARESOLVE_LOCALE", "en-US"),
			Stealth:           envBoolOr("MEDIARESOLVE_STEALTH", true),
			BlockedResourceTypes: envSliceOr("MEDIARESOLVE_BLOCKED_RESOURCES", []string{
				"Image", "Stylesheet", "Font", "Media",
			}),
		},
		Resolve: ResolveConfig{
			AllowedHosts: envSliceOr("MEDIARESOLVE_ALLOWED_HOSTS", []string{"instagram.com", "www.instagram.com"}),
			MaxBatchSize: envIntOr("MEDIARESOLVE_MAX_BATCH", 50),
		},
		Auth: AuthConfig{
			Enabled: envBoolOr("MEDIARESOLVE_AUTH_ENABLED", true),
			APIKeys: apiKeys,
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: envFloatOr("MEDIARESOLVE_RATE_RPS", 5.0),
			Burst:             envIntOr("MEDIARESOLVE_RATE_BURST", 10),
		},
		Cache: CacheConfig{
			TTL:        envDurationOr("MEDIARESOLVE_CACHE_TTL", 0),
			MaxEntries: envIntOr("MEDIARESOLVE_CACHE_MAX_ENTRIES", 1000),
		},
		Log: LogConfig{
			Level:  envOr("MEDIARESOLVE_LOG_LEVEL", "info"),
			Format: envOr("MEDIARESOLVE_LOG_FORMAT", "json"),
		},
		Engine: EngineConfig{
			EnableMultiEngine: envBoolOr("MEDIARESOLVE_MULTI_ENGINE", false),
			EscalationDelays:  envDurationSliceOr("MEDIARESOLVE_ESCALATION_DELAYS", []time.Duration{0, 3 * time.Second, 6 * time.Second}),
			HTTPTimeout:       envDurationOr("MEDIARESOLVE_HTTP_TIMEOUT", 5*time.Second),
			DomainMemoryTTL:   envDurationOr("MEDIARESOLVE_DOMAIN_MEMORY_TTL", 24*time.Hour),
		},
	}
}

func envDurationSliceOr(key string, fallback []time.Duration) []time.Duration {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		result := make([]time.Duration, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				if d, err := time.ParseDuration(trimmed); err == nil {
					result = append(result, d)
				}
			}
		}
		if len(result) > 0 {
			return result
		}
	}
	return fallback
}

// --- helper functions ---

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOr(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func envBoolOr(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envFloatOr(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

// envMillisOr reads an integer number of milliseconds, also accepting a Go
// duration string such as "2s".
func envMillisOr(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if ms, err := strconv.Atoi(v); err == nil {
			return time.Duration(ms) * time.Millisecond
		}
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func envDurationOr(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func envSliceOr(key string, fallback []string) []string {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		result := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		return result
	}
	return fallback
}
