package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/fleveque/restaurant-images/internal/service"
)

// ImageHandler serves resolved photo sets.
type ImageHandler struct {
	images service.ImageSource
}

// NewImageHandler creates a new ImageHandler.
func NewImageHandler(images service.ImageSource) *ImageHandler {
	return &ImageHandler{images: images}
}

// Search resolves photos for a free-text place description.
// Route: GET /api/v1/images?q=Carbone+New+York&page=1&cuisine=italian&count=3
//
// The response is always a non-empty list: when providers are unavailable
// the entries are catalog photos tagged "fallback".
func (h *ImageHandler) Search(c *gin.Context) {
	query := strings.TrimSpace(c.Query("q"))
	if query == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing q parameter"})
		return
	}

	page, ok := positiveIntQuery(c, "page", 1)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "page must be a positive integer"})
		return
	}
	count, ok := positiveIntQuery(c, "count", 0)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "count must be a positive integer"})
		return
	}

	images := h.images.ResolveRequest(c.Request.Context(), service.ResolveRequest{
		Query:   query,
		Page:    page,
		Cuisine: c.Query("cuisine"),
		Count:   count,
	})
	c.JSON(http.StatusOK, images)
}

// positiveIntQuery parses an optional positive integer query param.
func positiveIntQuery(c *gin.Context, name string, def int) (int, bool) {
	raw := c.Query(name)
	if raw == "" {
		return def, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 0, false
	}
	return n, true
}
