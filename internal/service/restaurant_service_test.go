package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fleveque/restaurant-images/internal/cache"
	"github.com/fleveque/restaurant-images/internal/clock"
	"github.com/fleveque/restaurant-images/internal/fallback"
	"github.com/fleveque/restaurant-images/internal/model"
)

func newRestaurantService(images ImageSource, search bool, clk clock.Clock) *RestaurantService {
	listCache := cache.New[[]model.Restaurant](4, 30*time.Minute, cache.WithClock(clk))
	return NewRestaurantService(images, fallback.NewCatalog(), listCache, search, 3, nil, zap.NewNop())
}

func TestFeatured_CatalogModeSpendsNoQuota(t *testing.T) {
	images := &fakeImages{}
	svc := newRestaurantService(images, false, clock.Real{})

	list := svc.Featured(context.Background())

	require.Len(t, list, 5)
	assert.Equal(t, "Le Bernardin", list[0].Name)
	assert.Empty(t, images.requests)

	catalog := fallback.NewCatalog()
	assert.Equal(t, catalog.Images(fallback.French, 3), list[0].Images)
	assert.Equal(t, catalog.Images(fallback.Italian, 3), list[2].Images)
	assert.Equal(t, catalog.Images(fallback.Mexican, 3), list[4].Images)
	for _, r := range list {
		assert.Len(t, r.Images, 3)
	}
}

func TestFeatured_SearchModeResolvesEachRestaurant(t *testing.T) {
	images := &fakeImages{}
	svc := newRestaurantService(images, true, clock.Real{})

	list := svc.Featured(context.Background())

	require.Len(t, list, 5)
	assert.Len(t, images.requests, 5)
	queries := map[string]string{}
	for _, req := range images.requests {
		queries[req.Query] = req.Cuisine
		assert.Equal(t, 3, req.Count)
	}
	assert.Equal(t, "Italian", queries["Carbone 181 Thompson St, New York, NY 10012"])
	for _, r := range list {
		assert.Len(t, r.Images, 3)
	}
}

func TestFeatured_CachedForThirtyMinutes(t *testing.T) {
	clk := clock.NewFake(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	images := &fakeImages{}
	svc := newRestaurantService(images, true, clk)
	ctx := context.Background()

	svc.Featured(ctx)
	clk.Advance(29 * time.Minute)
	svc.Featured(ctx)
	assert.Len(t, images.requests, 5)

	clk.Advance(2 * time.Minute)
	svc.Featured(ctx)
	assert.Len(t, images.requests, 10)

	svc.Invalidate()
	svc.Featured(ctx)
	assert.Len(t, images.requests, 15)
}

func TestFeatured_DoesNotMutateSeedList(t *testing.T) {
	svc := newRestaurantService(&fakeImages{}, false, clock.Real{})
	svc.Featured(context.Background())

	for _, r := range featured {
		assert.Nil(t, r.Images)
	}
}
