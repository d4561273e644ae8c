package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/fleveque/restaurant-images/internal/llm"
	"github.com/fleveque/restaurant-images/internal/metrics"
	"github.com/fleveque/restaurant-images/internal/model"
	"github.com/fleveque/restaurant-images/internal/provider"
	"github.com/fleveque/restaurant-images/internal/requestid"
)

// ConciergePrompt is the system prompt sent ahead of every conversation.
const ConciergePrompt = `You are a friendly New York City dining concierge.
Help the user pick one restaurant that fits what they ask for. Answer conversationally in a few sentences,
then append a single JSON object describing your pick with exactly these fields:
{"name": "", "type": "", "cuisine": "", "location": "", "priceRange": "", "rating": 0.0,
 "openHours": "", "description": "", "website": ""}
rating is a number from 0 to 5. website is the restaurant's official URL.
Only recommend restaurants that are currently open. Never mention permanently closed establishments.
If the user is not asking for a restaurant, answer normally and omit the JSON object.`

var (
	ErrNoLLMConfigured = errors.New("no LLM providers configured")
	ErrNoUserMessage   = errors.New("conversation has no user message")
)

// ImageSource resolves photos for a recommendation.
type ImageSource interface {
	ResolveRequest(ctx context.Context, req ResolveRequest) []model.ImageResult
}

// RecommendationResult is the concierge reply plus the structured pick, when
// the reply contained a valid one.
type RecommendationResult struct {
	Content    string                `json:"content"`
	Provider   string                `json:"provider"`
	Restaurant *model.Recommendation `json:"restaurant,omitempty"`
}

// RecommendationService asks the LLM clients, in configured order, for a
// restaurant and attaches photos to the structured answer.
type RecommendationService struct {
	clients  []llm.Client // first is primary, rest are fallbacks
	images   ImageSource
	recorder provider.CallRecorder
	metrics  *metrics.Metrics
	logger   *zap.Logger
}

// NewRecommendationService wires the concierge. recorder and m may be nil.
func NewRecommendationService(
	clients []llm.Client,
	images ImageSource,
	recorder provider.CallRecorder,
	m *metrics.Metrics,
	logger *zap.Logger,
) *RecommendationService {
	return &RecommendationService{
		clients:  clients,
		images:   images,
		recorder: recorder,
		metrics:  m,
		logger:   logger,
	}
}

// Configured reports whether any LLM client is available.
func (s *RecommendationService) Configured() bool {
	return len(s.clients) > 0
}

// Recommend runs the conversation through the first LLM that answers. LLM
// failures are returned; image resolution never fails the call.
func (s *RecommendationService) Recommend(ctx context.Context, messages []model.ChatMessage) (*RecommendationResult, error) {
	if len(s.clients) == 0 {
		return nil, ErrNoLLMConfigured
	}
	lastUser := lastUserMessage(messages)
	if lastUser == "" {
		return nil, ErrNoUserMessage
	}
	ctx, _ = requestid.Ensure(ctx)

	var lastErr error
	for i, client := range s.clients {
		content, err := s.complete(ctx, client, lastUser, messages)
		if err == nil {
			result := &RecommendationResult{Content: content, Provider: client.ProviderName()}
			result.Restaurant = s.attachImages(ctx, content)
			return result, nil
		}

		lastErr = err
		if i < len(s.clients)-1 {
			s.logger.Warn("LLM provider failed, trying next",
				zap.String("provider", client.ProviderName()),
				zap.Error(err),
			)
		}
	}

	return nil, fmt.Errorf("all LLM providers failed: %w", lastErr)
}

func (s *RecommendationService) complete(ctx context.Context, client llm.Client, lastUser string, messages []model.ChatMessage) (string, error) {
	start := time.Now()
	content, err := client.Complete(ctx, ConciergePrompt, messages)
	elapsed := time.Since(start)

	outcome := model.OutcomeOK
	if err != nil {
		outcome = "error"
	}
	s.metrics.RecordLLMRequest(client.ProviderName(), outcome)

	if s.recorder != nil {
		id, _ := requestid.FromContext(ctx)
		call := &model.ProviderCall{
			RequestID:  id,
			Provider:   client.ProviderName() + ":" + client.ModelName(),
			Query:      truncate(lastUser, 200),
			Outcome:    outcome,
			DurationMs: elapsed.Milliseconds(),
		}
		if err := s.recorder.Create(context.WithoutCancel(ctx), call); err != nil {
			s.logger.Error("recording LLM call", zap.Error(err))
		}
	}
	return content, err
}

func (s *RecommendationService) attachImages(ctx context.Context, content string) *model.Recommendation {
	rec, err := ParseRecommendation(content)
	if err != nil {
		s.logger.Debug("reply carries no recommendation", zap.Error(err))
		return nil
	}

	rec.Images = s.images.ResolveRequest(ctx, ResolveRequest{
		Query:   rec.Name + " " + rec.Location,
		Cuisine: rec.Cuisine,
	})
	return rec
}

// rawRecommendation accepts rating as either a number or a string.
type rawRecommendation struct {
	Name        string          `json:"name"`
	Type        string          `json:"type"`
	Cuisine     string          `json:"cuisine"`
	Location    string          `json:"location"`
	PriceRange  string          `json:"priceRange"`
	Rating      json.RawMessage `json:"rating"`
	OpenHours   string          `json:"openHours"`
	Description string          `json:"description"`
	Website     string          `json:"website"`
}

// ParseRecommendation extracts the JSON object embedded in an LLM reply and
// validates it. Ratings are clamped to [0, 5]; an unusable website becomes "#".
func ParseRecommendation(content string) (*model.Recommendation, error) {
	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start < 0 || end <= start {
		return nil, errors.New("no JSON object in reply")
	}

	var raw rawRecommendation
	if err := json.Unmarshal([]byte(content[start:end+1]), &raw); err != nil {
		return nil, fmt.Errorf("decoding recommendation: %w", err)
	}

	rec := &model.Recommendation{
		Name:        strings.TrimSpace(raw.Name),
		Type:        strings.TrimSpace(raw.Type),
		Cuisine:     strings.TrimSpace(raw.Cuisine),
		Location:    strings.TrimSpace(raw.Location),
		PriceRange:  strings.TrimSpace(raw.PriceRange),
		OpenHours:   strings.TrimSpace(raw.OpenHours),
		Description: strings.TrimSpace(raw.Description),
		Website:     strings.TrimSpace(raw.Website),
	}

	missing := []string{}
	for field, v := range map[string]string{
		"name": rec.Name, "type": rec.Type, "cuisine": rec.Cuisine, "location": rec.Location,
		"priceRange": rec.PriceRange, "openHours": rec.OpenHours, "description": rec.Description,
		"website": rec.Website,
	} {
		if v == "" {
			missing = append(missing, field)
		}
	}
	rating, ok := parseRating(raw.Rating)
	if !ok {
		missing = append(missing, "rating")
	}
	if len(missing) > 0 {
		slices.Sort(missing)
		return nil, fmt.Errorf("recommendation missing fields: %s", strings.Join(missing, ", "))
	}

	rec.Rating = min(max(rating, 0), 5)
	if !validWebsite(rec.Website) {
		rec.Website = "#"
	}
	return rec, nil
}

func parseRating(raw json.RawMessage) (float64, bool) {
	if len(raw) == 0 {
		return 0, false
	}
	var n float64
	if err := json.Unmarshal(raw, &n); err == nil {
		return n, n != 0
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return 0, false
	}
	n, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, false
	}
	return n, n != 0
}

func validWebsite(raw string) bool {
	u, err := url.ParseRequestURI(raw)
	return err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

func lastUserMessage(messages []model.ChatMessage) string {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == model.RoleUser && strings.TrimSpace(messages[i].Content) != "" {
			return messages[i].Content
		}
	}
	return ""
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
