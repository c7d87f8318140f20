package models

// ResolveRequest is the payload for POST /api/v1/resolve (and POST /ig).
type ResolveRequest struct {
	// URL is the public post to resolve. Required.
	URL string `json:"url"`

	// Timeout is the maximum duration in seconds for the entire resolution
	// (navigation + quiescence + extraction). 0 uses the server default.
	Timeout int `json:"timeout,omitempty" binding:"omitempty,min=1,max=120"`

	// NoCache bypasses the resolution cache for this request.
	NoCache bool `json:"no_cache,omitempty"`
}

// BatchRequest is the payload for POST /api/v1/batch/resolve.
type BatchRequest struct {
	// URLs is the list of posts to resolve. Required.
	URLs []string `json:"urls" binding:"required,min=1,max=50"`

	// WebhookURL, if set, receives a "batch.completed" event when the job ends.
	WebhookURL string `json:"webhook_url,omitempty" binding:"omitempty,url"`

	// WebhookSecret signs the webhook body with HMAC-SHA256.
	WebhookSecret string `json:"webhook_secret,omitempty"`
}
