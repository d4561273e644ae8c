// Package llm provides a provider-agnostic chat completion interface used by
// the restaurant concierge. Anthropic and OpenAI both implement Client, so the
// service can fall back from one to the other.
package llm

import (
	"context"
	"errors"

	"github.com/fleveque/restaurant-images/internal/model"
)

// Sampling settings shared by every client.
const (
	Temperature = 0.7
	MaxTokens   = 1000
)

// ErrEmptyCompletion is returned when a provider answers without any text.
var ErrEmptyCompletion = errors.New("completion has no content")

// Client sends one conversation turn and returns the assistant's text.
type Client interface {
	Complete(ctx context.Context, system string, messages []model.ChatMessage) (string, error)
	ProviderName() string
	ModelName() string
}
