package service

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/fleveque/restaurant-images/internal/cache"
	"github.com/fleveque/restaurant-images/internal/fallback"
	"github.com/fleveque/restaurant-images/internal/metrics"
	"github.com/fleveque/restaurant-images/internal/model"
)

const featuredKey = "featured"

// featured is the carousel shown on the landing page.
var featured = []model.Restaurant{
	{
		ID: "1", Name: "Le Bernardin", Cuisine: "French", PriceRange: "$$$", Neighborhood: "Midtown",
		Description: "Upscale French seafood restaurant with elegant atmosphere", Rating: 4.8,
		Address: "155 W 51st St, New York, NY 10019",
	},
	{
		ID: "2", Name: "Katz's Delicatessen", Cuisine: "Deli", PriceRange: "$$", Neighborhood: "Lower East Side",
		Description: "Famous deli known for pastrami sandwiches", Rating: 4.6,
		Address: "205 E Houston St, New York, NY 10002",
	},
	{
		ID: "3", Name: "Carbone", Cuisine: "Italian", PriceRange: "$$$", Neighborhood: "Greenwich Village",
		Description: "Upscale Italian-American restaurant with retro vibes", Rating: 4.7,
		Address: "181 Thompson St, New York, NY 10012",
	},
	{
		ID: "4", Name: "Peter Luger", Cuisine: "Steakhouse", PriceRange: "$$$", Neighborhood: "Williamsburg",
		Description: "Iconic steakhouse serving dry-aged beef since 1887", Rating: 4.5,
		Address: "178 Broadway, Brooklyn, NY 11211",
	},
	{
		ID: "5", Name: "Cosme", Cuisine: "Mexican", PriceRange: "$$$", Neighborhood: "Flatiron District",
		Description: "Modern Mexican restaurant with creative dishes", Rating: 4.6,
		Address: "35 E 21st St, New York, NY 10010",
	},
}

// RestaurantService assembles the featured restaurant list with photos.
type RestaurantService struct {
	images       ImageSource
	catalog      *fallback.Catalog
	cache        *cache.LRU[[]model.Restaurant]
	searchImages bool
	imageCount   int
	metrics      *metrics.Metrics
	logger       *zap.Logger
}

// NewRestaurantService creates the service. When searchImages is false the
// carousel is illustrated from the fallback catalog and spends no quota.
func NewRestaurantService(
	images ImageSource,
	catalog *fallback.Catalog,
	listCache *cache.LRU[[]model.Restaurant],
	searchImages bool,
	imageCount int,
	m *metrics.Metrics,
	logger *zap.Logger,
) *RestaurantService {
	if imageCount <= 0 {
		imageCount = 3
	}
	return &RestaurantService{
		images:       images,
		catalog:      catalog,
		cache:        listCache,
		searchImages: searchImages,
		imageCount:   imageCount,
		metrics:      m,
		logger:       logger,
	}
}

// Featured returns the featured restaurants, each with imageCount photos.
// The assembled list is cached as one entry.
func (s *RestaurantService) Featured(ctx context.Context) []model.Restaurant {
	if list, ok := s.cache.Get(featuredKey); ok {
		s.metrics.RecordCacheLookup("restaurants", true)
		return list
	}
	s.metrics.RecordCacheLookup("restaurants", false)

	list := make([]model.Restaurant, len(featured))
	copy(list, featured)

	if !s.searchImages {
		for i := range list {
			list[i].Images = s.catalog.ForText(list[i].Cuisine, s.imageCount)
		}
		s.cache.Set(featuredKey, list)
		return list
	}

	var wg sync.WaitGroup
	for i := range list {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r := &list[i]
			r.Images = s.images.ResolveRequest(ctx, ResolveRequest{
				Query:   r.Name + " " + r.Address,
				Cuisine: r.Cuisine,
				Count:   s.imageCount,
			})
		}()
	}
	wg.Wait()

	// a cancelled request may have left some restaurants on fallback photos
	if ctx.Err() == nil {
		s.cache.Set(featuredKey, list)
	}
	s.logger.Debug("assembled featured restaurants", zap.Int("count", len(list)))
	return list
}

// Invalidate drops the cached list.
func (s *RestaurantService) Invalidate() {
	s.cache.Delete(featuredKey)
}
