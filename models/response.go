package models

// ResolveResponse is the response for POST /api/v1/resolve.
//
// Media is always present on success paths, including the "no media found"
// case where it is an empty array. Error is only set when resolution failed.
type ResolveResponse struct {
	Media []MediaReference `json:"media"`

	// FinalURL is the URL after following all redirects.
	FinalURL string `json:"final_url,omitempty"`

	// StatusCode is the HTTP status of the main document, 0 if unknown.
	// Non-2xx statuses are tolerated: whatever loaded is still scanned.
	StatusCode int `json:"status_code,omitempty"`

	// EngineUsed is the fetch engine that produced the page ("rod", "http", ...).
	EngineUsed string `json:"engine_used,omitempty"`

	// CacheStatus is "hit", "miss", or empty when caching is off.
	CacheStatus string `json:"cache_status,omitempty"`

	Timing TimingInfo `json:"timing"`

	Error *ErrorDetail `json:"error,omitempty"`
}

// ErrorResponse is the body for requests rejected before resolution starts.
type ErrorResponse struct {
	Error *ErrorDetail `json:"error"`
}

// TimingInfo breaks down the time spent in each phase.
type TimingInfo struct {
	// TotalMs is the end-to-end duration in milliseconds.
	TotalMs int64 `json:"total_ms"`

	// RenderMs is the time spent navigating, waiting and reading the page.
	RenderMs int64 `json:"render_ms"`

	// ExtractMs is the time spent scanning the page for media.
	ExtractMs int64 `json:"extract_ms"`
}

// HealthResponse is the response for GET /api/v1/health.
type HealthResponse struct {
	OK        bool      `json:"ok"`
	Status    string    `json:"status"` // "healthy" or "degraded"
	Uptime    string    `json:"uptime"`
	PoolStats PoolStats `json:"pool_stats"`
	Version   string    `json:"version"`
}

// PoolStats reports the state of the browser page pool.
type PoolStats struct {
	MaxPages    int `json:"max_pages"`
	ActivePages int `json:"active_pages"`
}
