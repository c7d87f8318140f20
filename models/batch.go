package models

// BatchResponse is the immediate response for POST /api/v1/batch/resolve.
type BatchResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Total  int    `json:"total"`
}

// BatchItem is the outcome for a single URL inside a batch.
type BatchItem struct {
	URL   string           `json:"url"`
	Media []MediaReference `json:"media"`
	Error *ErrorDetail     `json:"error,omitempty"`
}

// BatchStatusResponse is the response for GET /api/v1/batch/:id.
type BatchStatusResponse struct {
	ID        string       `json:"id"`
	Status    string       `json:"status"`
	Completed int          `json:"completed"`
	Total     int          `json:"total"`
	Results   []*BatchItem `json:"results,omitempty"`
}
