// Package model defines the core data types for the restaurant image service.
// Struct tags map fields to JSON (API responses, the SQLite mirror) and to
// sqlx columns where a type is stored directly.
package model

import "time"

// ImageSource records where an image came from. It is the only thing that
// tells a verified provider photo apart from a padded catalog placeholder.
type ImageSource string

const (
	SourcePrimary   ImageSource = "primary"
	SourceSecondary ImageSource = "secondary"
	SourceFallback  ImageSource = "fallback"
)

// Valid reports whether s is one of the known sources.
func (s ImageSource) Valid() bool {
	switch s {
	case SourcePrimary, SourceSecondary, SourceFallback:
		return true
	default:
		return false
	}
}

// ImageResult is a single resolved photo reference. It is passed by value;
// use WithSource to derive a copy with a different provenance tag.
type ImageResult struct {
	Title         string      `json:"title"`
	ImageLink     string      `json:"imageLink"`
	ThumbnailLink string      `json:"thumbnailLink"`
	ContextLink   string      `json:"contextLink"`
	Source        ImageSource `json:"source"`
}

// WithSource returns a copy of r tagged with source.
func (r ImageResult) WithSource(source ImageSource) ImageResult {
	r.Source = source
	return r
}

// Usable reports whether a provider result can be shown at all.
func (r ImageResult) Usable() bool {
	return r.ImageLink != ""
}

// CacheEntry is a resolved image set as mirrored to durable storage.
// Key is the normalized (query, page) composite used by the in-memory cache.
type CacheEntry struct {
	Key       string        `json:"key"`
	Query     string        `json:"query"`
	Page      int           `json:"page"`
	Images    []ImageResult `json:"images"`
	CreatedAt time.Time     `json:"created_at"`
}
