package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/fleveque/restaurant-images/internal/model"
	"github.com/fleveque/restaurant-images/internal/service"
)

const (
	maxConversationMessages = 50
	maxMessageLength        = 4000
)

// Recommender answers concierge conversations.
type Recommender interface {
	Recommend(ctx context.Context, messages []model.ChatMessage) (*service.RecommendationResult, error)
}

// RecommendationHandler handles the concierge chat endpoint.
type RecommendationHandler struct {
	recommender Recommender
	logger      *zap.Logger
}

func NewRecommendationHandler(recommender Recommender, logger *zap.Logger) *RecommendationHandler {
	return &RecommendationHandler{recommender: recommender, logger: logger}
}

type recommendRequest struct {
	Messages []model.ChatMessage `json:"messages" binding:"required,min=1,dive"`
}

// Recommend runs the conversation through the configured LLMs and attaches
// photos to the suggested restaurant.
// Route: POST /api/v1/recommendations
func (h *RecommendationHandler) Recommend(c *gin.Context) {
	var req recommendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: " + err.Error()})
		return
	}
	if len(req.Messages) > maxConversationMessages {
		c.JSON(http.StatusBadRequest, gin.H{"error": "conversation too long"})
		return
	}
	for _, m := range req.Messages {
		switch m.Role {
		case model.RoleUser, model.RoleAssistant, model.RoleSystem:
		default:
			c.JSON(http.StatusBadRequest, gin.H{"error": "unknown role: " + m.Role})
			return
		}
		if len(m.Content) > maxMessageLength {
			c.JSON(http.StatusBadRequest, gin.H{"error": "message too long"})
			return
		}
	}

	result, err := h.recommender.Recommend(c.Request.Context(), req.Messages)
	switch {
	case err == nil:
		c.JSON(http.StatusOK, result)
	case errors.Is(err, service.ErrNoUserMessage):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrNoLLMConfigured):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "recommendations are not configured"})
	default:
		h.logger.Error("recommendation failed", zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": "recommendation failed, please try again"})
	}
}
