package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fleveque/restaurant-images/internal/fallback"
	"github.com/fleveque/restaurant-images/internal/model"
)

func TestPad(t *testing.T) {
	a := model.ImageResult{ImageLink: "a", Source: model.SourcePrimary}
	b := model.ImageResult{ImageLink: "b", Source: model.SourcePrimary}
	c := model.ImageResult{ImageLink: "c", Source: model.SourcePrimary}

	tests := []struct {
		name   string
		in     []model.ImageResult
		target int
		want   []model.ImageResult
	}{
		{"one repeated", []model.ImageResult{a}, 3, []model.ImageResult{a, a, a}},
		{"two cycled", []model.ImageResult{a, b}, 3, []model.ImageResult{a, b, a}},
		{"exact", []model.ImageResult{a, b, c}, 3, []model.ImageResult{a, b, c}},
		{"truncated", []model.ImageResult{a, b, c}, 2, []model.ImageResult{a, b}},
		{"cycled past twice", []model.ImageResult{a, b}, 5, []model.ImageResult{a, b, a, b, a}},
		{"empty input", nil, 3, []model.ImageResult{}},
		{"zero target", []model.ImageResult{a}, 0, []model.ImageResult{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Pad(tt.in, tt.target))
		})
	}
}

func TestPad_DoesNotAliasInput(t *testing.T) {
	in := []model.ImageResult{{ImageLink: "a"}, {ImageLink: "b"}, {ImageLink: "c"}}
	out := Pad(in, 2)
	out[0].ImageLink = "changed"
	assert.Equal(t, "a", in[0].ImageLink)
}

func TestNormalize_EmptyUsesCuisineBucket(t *testing.T) {
	n := NewNormalizer(fallback.NewCatalog())

	tests := []struct {
		hint   string
		bucket fallback.Bucket
	}{
		{"Mexican", fallback.Mexican},
		{"best ramen in town", fallback.Japanese},
		{"", fallback.General},
		{"molecular gastronomy", fallback.General},
	}

	for _, tt := range tests {
		t.Run(tt.hint, func(t *testing.T) {
			got := n.Normalize(nil, tt.hint, 3)
			require.Len(t, got, 3)
			assert.Equal(t, fallback.NewCatalog().Images(tt.bucket, 3), got)
			for _, img := range got {
				assert.Equal(t, model.SourceFallback, img.Source)
				assert.NotEmpty(t, img.ImageLink)
			}
		})
	}
}

func TestNormalize_NonEmptyIgnoresHint(t *testing.T) {
	n := NewNormalizer(fallback.NewCatalog())
	raw := []model.ImageResult{{ImageLink: "x", Source: model.SourceSecondary}}

	got := n.Normalize(raw, "Italian", 3)

	require.Len(t, got, 3)
	for _, img := range got {
		assert.Equal(t, "x", img.ImageLink)
		assert.Equal(t, model.SourceSecondary, img.Source)
	}
}

func TestNormalize_AlwaysExactCount(t *testing.T) {
	n := NewNormalizer(fallback.NewCatalog())
	for target := 1; target <= 10; target++ {
		assert.Len(t, n.Normalize(nil, "thai", target), target)
		assert.Len(t, n.Normalize([]model.ImageResult{{ImageLink: "a"}}, "", target), target)
	}
}
