package engine

import (
	"context"
	"time"

	"github.com/use-agent/mediaresolve/extractor"
)

// Engine is the interface that all fetch engines must implement.
type Engine interface {
	// Name returns the engine identifier (e.g. "http", "rod", "rod-stealth").
	Name() string

	// Fetch loads the page for the given request.
	Fetch(ctx context.Context, req *FetchRequest) (*FetchResult, error)
}

// FetchRequest contains everything an engine needs to load a page.
type FetchRequest struct {
	URL     string
	Headers map[string]string
	Timeout time.Duration
	Stealth bool
}

// FetchResult is the output of a successful engine fetch.
type FetchResult struct {
	// Page holds the meta values and serialized HTML for extraction.
	Page extractor.RenderedPage

	// StatusCode is the main document status; non-2xx is not an error.
	StatusCode int
	FinalURL   string
	EngineName string
}
