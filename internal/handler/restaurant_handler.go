package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/fleveque/restaurant-images/internal/model"
)

// FeaturedLister returns the carousel restaurants.
type FeaturedLister interface {
	Featured(ctx context.Context) []model.Restaurant
}

// RestaurantHandler serves the featured restaurant list.
type RestaurantHandler struct {
	restaurants FeaturedLister
}

func NewRestaurantHandler(restaurants FeaturedLister) *RestaurantHandler {
	return &RestaurantHandler{restaurants: restaurants}
}

// Featured returns the featured restaurants with photos.
// Route: GET /api/v1/restaurants
func (h *RestaurantHandler) Featured(c *gin.Context) {
	c.Header("Cache-Control", "public, max-age=300")
	c.JSON(http.StatusOK, h.restaurants.Featured(c.Request.Context()))
}
