package models

// MediaKind classifies a media asset.
type MediaKind string

const (
	KindImage MediaKind = "image"
	KindVideo MediaKind = "video"
)

// MediaReference is a single direct media asset URL found on a page.
// Two references are the same asset when their URLs are equal; Kind does
// not take part in identity.
type MediaReference struct {
	URL  string    `json:"url"`
	Kind MediaKind `json:"type"`

	// Quality is reserved for variant information and is currently always empty.
	Quality string `json:"quality"`
}
