package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fleveque/restaurant-images/internal/llm"
	"github.com/fleveque/restaurant-images/internal/model"
)

type fakeLLM struct {
	name    string
	content string
	err     error
	calls   int
	system  string
}

func (f *fakeLLM) ProviderName() string { return f.name }
func (f *fakeLLM) ModelName() string    { return f.name + "-model" }

func (f *fakeLLM) Complete(_ context.Context, system string, _ []model.ChatMessage) (string, error) {
	f.calls++
	f.system = system
	return f.content, f.err
}

type fakeImages struct {
	mu       sync.Mutex
	requests []ResolveRequest
}

func (f *fakeImages) ResolveRequest(_ context.Context, req ResolveRequest) []model.ImageResult {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	return []model.ImageResult{
		{ImageLink: "a", Source: model.SourceSecondary},
		{ImageLink: "b", Source: model.SourceSecondary},
		{ImageLink: "a", Source: model.SourceSecondary},
	}
}

type callLog struct {
	calls []model.ProviderCall
}

func (c *callLog) Create(_ context.Context, call *model.ProviderCall) error {
	c.calls = append(c.calls, *call)
	return nil
}

const carboneReply = `Carbone is a great pick for a night out.

{"name": "Carbone", "type": "Restaurant", "cuisine": "Italian-American",
 "location": "181 Thompson St, New York", "priceRange": "$$$$", "rating": 4.7,
 "openHours": "5pm-11pm", "description": "Red sauce glamour.", "website": "https://carbonenewyork.com"}`

var askForPasta = []model.ChatMessage{{Role: model.RoleUser, Content: "Italian for a date night?"}}

func TestRecommend_FirstProviderWins(t *testing.T) {
	primary := &fakeLLM{name: "anthropic", content: carboneReply}
	backup := &fakeLLM{name: "openai", content: "unused"}
	images := &fakeImages{}
	log := &callLog{}
	svc := NewRecommendationService([]llm.Client{primary, backup}, images, log, nil, zap.NewNop())

	got, err := svc.Recommend(context.Background(), askForPasta)
	require.NoError(t, err)

	assert.Equal(t, "anthropic", got.Provider)
	assert.Equal(t, carboneReply, got.Content)
	assert.Equal(t, ConciergePrompt, primary.system)
	assert.Zero(t, backup.calls)

	require.NotNil(t, got.Restaurant)
	assert.Equal(t, "Carbone", got.Restaurant.Name)
	assert.InDelta(t, 4.7, got.Restaurant.Rating, 0.001)
	assert.Len(t, got.Restaurant.Images, 3)

	require.Len(t, images.requests, 1)
	assert.Equal(t, "Carbone 181 Thompson St, New York", images.requests[0].Query)
	assert.Equal(t, "Italian-American", images.requests[0].Cuisine)

	require.Len(t, log.calls, 1)
	assert.Equal(t, "anthropic:anthropic-model", log.calls[0].Provider)
	assert.Equal(t, model.OutcomeOK, log.calls[0].Outcome)
	assert.NotEmpty(t, log.calls[0].RequestID)
}

func TestRecommend_FallsBackToNextProvider(t *testing.T) {
	primary := &fakeLLM{name: "anthropic", err: errors.New("overloaded")}
	backup := &fakeLLM{name: "openai", content: carboneReply}
	log := &callLog{}
	svc := NewRecommendationService([]llm.Client{primary, backup}, &fakeImages{}, log, nil, zap.NewNop())

	got, err := svc.Recommend(context.Background(), askForPasta)
	require.NoError(t, err)

	assert.Equal(t, "openai", got.Provider)
	require.Len(t, log.calls, 2)
	assert.Equal(t, "error", log.calls[0].Outcome)
	assert.Equal(t, model.OutcomeOK, log.calls[1].Outcome)
}

func TestRecommend_AllProvidersFail(t *testing.T) {
	cause := errors.New("invalid api key")
	svc := NewRecommendationService([]llm.Client{
		&fakeLLM{name: "anthropic", err: errors.New("overloaded")},
		&fakeLLM{name: "openai", err: cause},
	}, &fakeImages{}, nil, nil, zap.NewNop())

	_, err := svc.Recommend(context.Background(), askForPasta)
	assert.ErrorIs(t, err, cause)
}

func TestRecommend_PlainReplyHasNoRestaurant(t *testing.T) {
	images := &fakeImages{}
	svc := NewRecommendationService([]llm.Client{&fakeLLM{name: "openai", content: "Hello! What are you in the mood for?"}},
		images, nil, nil, zap.NewNop())

	got, err := svc.Recommend(context.Background(), askForPasta)
	require.NoError(t, err)
	assert.Nil(t, got.Restaurant)
	assert.Empty(t, images.requests)
}

func TestRecommend_InputErrors(t *testing.T) {
	none := NewRecommendationService(nil, &fakeImages{}, nil, nil, zap.NewNop())
	_, err := none.Recommend(context.Background(), askForPasta)
	assert.ErrorIs(t, err, ErrNoLLMConfigured)
	assert.False(t, none.Configured())

	svc := NewRecommendationService([]llm.Client{&fakeLLM{name: "openai"}}, &fakeImages{}, nil, nil, zap.NewNop())
	_, err = svc.Recommend(context.Background(), []model.ChatMessage{{Role: model.RoleAssistant, Content: "hi"}})
	assert.ErrorIs(t, err, ErrNoUserMessage)
}

func TestParseRecommendation(t *testing.T) {
	tests := []struct {
		name        string
		content     string
		wantErr     bool
		wantRating  float64
		wantWebsite string
	}{
		{"valid", carboneReply, false, 4.7, "https://carbonenewyork.com"},
		{
			"rating as string clamped",
			`{"name":"A","type":"Bar","cuisine":"Cocktails","location":"NYC","priceRange":"$$","rating":"7.5","openHours":"late","description":"d","website":"https://a.example"}`,
			false, 5, "https://a.example",
		},
		{
			"negative rating clamped",
			`{"name":"A","type":"Bar","cuisine":"c","location":"NYC","priceRange":"$$","rating":-2,"openHours":"late","description":"d","website":"https://a.example"}`,
			false, 0, "https://a.example",
		},
		{
			"bad website replaced",
			`{"name":"A","type":"Bar","cuisine":"c","location":"NYC","priceRange":"$$","rating":4,"openHours":"late","description":"d","website":"not a url"}`,
			false, 4, "#",
		},
		{
			"missing field",
			`{"name":"A","type":"Bar","cuisine":"c","location":"NYC","rating":4,"openHours":"late","description":"d","website":"https://a.example"}`,
			true, 0, "",
		},
		{
			"zero rating counts as missing",
			`{"name":"A","type":"Bar","cuisine":"c","location":"NYC","priceRange":"$$","rating":0,"openHours":"late","description":"d","website":"https://a.example"}`,
			true, 0, "",
		},
		{"no json", "Just text.", true, 0, ""},
		{"broken json", `Here: {"name": "A",`, true, 0, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseRecommendation(tt.content)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.InDelta(t, tt.wantRating, got.Rating, 0.001)
			assert.Equal(t, tt.wantWebsite, got.Website)
		})
	}
}
