package service

import (
	"github.com/fleveque/restaurant-images/internal/fallback"
	"github.com/fleveque/restaurant-images/internal/model"
)

// Normalizer turns whatever the provider chain returned into exactly the
// number of images the caller asked for.
type Normalizer struct {
	catalog *fallback.Catalog
}

// NewNormalizer creates a Normalizer that fills empty results from catalog.
func NewNormalizer(catalog *fallback.Catalog) *Normalizer {
	return &Normalizer{catalog: catalog}
}

// Normalize returns exactly target images. Non-empty input is truncated or
// padded by cycling its own entries, keeping their source tags. Empty input
// is replaced by catalog images for the bucket cuisineHint classifies into.
func (n *Normalizer) Normalize(raw []model.ImageResult, cuisineHint string, target int) []model.ImageResult {
	if target <= 0 {
		return []model.ImageResult{}
	}
	if len(raw) == 0 {
		return n.catalog.Images(fallback.Classify(cuisineHint), target)
	}
	return Pad(raw, target)
}

// Pad truncates or cyclically repeats results to exactly target items,
// preserving order. It returns an empty slice when results is empty.
func Pad(results []model.ImageResult, target int) []model.ImageResult {
	if target <= 0 || len(results) == 0 {
		return []model.ImageResult{}
	}

	out := make([]model.ImageResult, target)
	for i := range out {
		out[i] = results[i%len(results)]
	}
	return out
}
