package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fleveque/restaurant-images/internal/model"
)

var conversation = []model.ChatMessage{
	{Role: model.RoleUser, Content: "Somewhere for pasta in the West Village?"},
	{Role: model.RoleAssistant, Content: "Any budget?"},
	{Role: model.RoleSystem, Content: "Only suggest places that are open."},
	{Role: model.RoleUser, Content: "Mid-range."},
}

func TestOpenAIClient_Complete(t *testing.T) {
	mock := httpmock.NewMockTransport()
	client := NewOpenAIClient("sk-test", "gpt-4o", "https://openai.test/v1", &http.Client{Transport: mock})

	mock.RegisterResponder(http.MethodPost, "https://openai.test/v1/chat/completions",
		func(req *http.Request) (*http.Response, error) {
			assert.Equal(t, "Bearer sk-test", req.Header.Get("Authorization"))

			var body struct {
				Model       string  `json:"model"`
				Temperature float64 `json:"temperature"`
				MaxTokens   int     `json:"max_tokens"`
				Messages    []struct {
					Role    string `json:"role"`
					Content string `json:"content"`
				} `json:"messages"`
			}
			require.NoError(t, json.NewDecoder(req.Body).Decode(&body))
			assert.Equal(t, "gpt-4o", body.Model)
			assert.InDelta(t, 0.7, body.Temperature, 0.001)
			assert.Equal(t, 1000, body.MaxTokens)
			require.Len(t, body.Messages, 5)
			assert.Equal(t, "system", body.Messages[0].Role)
			assert.Equal(t, "concierge", body.Messages[0].Content)
			assert.Equal(t, "assistant", body.Messages[2].Role)
			assert.Equal(t, "system", body.Messages[3].Role)

			return httpmock.NewJsonResponse(http.StatusOK, map[string]any{
				"id":      "chatcmpl-1",
				"object":  "chat.completion",
				"model":   "gpt-4o",
				"choices": []map[string]any{{"index": 0, "message": map[string]any{"role": "assistant", "content": "  Try Via Carota.  "}, "finish_reason": "stop"}},
			})
		})

	got, err := client.Complete(context.Background(), "concierge", conversation)
	require.NoError(t, err)
	assert.Equal(t, "Try Via Carota.", got)
	assert.Equal(t, "openai", client.ProviderName())
	assert.Equal(t, "gpt-4o", client.ModelName())
}

func TestOpenAIClient_EmptyAndErrors(t *testing.T) {
	tests := []struct {
		name      string
		responder httpmock.Responder
		wantEmpty bool
	}{
		{
			"no choices",
			httpmock.NewStringResponder(http.StatusOK, `{"id":"x","choices":[]}`),
			true,
		},
		{
			"blank content",
			httpmock.NewStringResponder(http.StatusOK, `{"id":"x","choices":[{"index":0,"message":{"role":"assistant","content":"  "}}]}`),
			true,
		},
		{
			"server error",
			httpmock.NewStringResponder(http.StatusInternalServerError, `{"error":{"message":"boom","type":"server_error"}}`),
			false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := httpmock.NewMockTransport()
			client := NewOpenAIClient("sk-test", "gpt-4o", "https://openai.test/v1", &http.Client{Transport: mock})
			mock.RegisterResponder(http.MethodPost, "https://openai.test/v1/chat/completions", tt.responder)

			_, err := client.Complete(context.Background(), "", conversation)
			require.Error(t, err)
			if tt.wantEmpty {
				assert.ErrorIs(t, err, ErrEmptyCompletion)
			}
		})
	}
}

func TestAnthropicClient_Complete(t *testing.T) {
	mock := httpmock.NewMockTransport()
	client := NewAnthropicClient("sk-ant-test", "claude-sonnet-4-5",
		option.WithBaseURL("https://anthropic.test/"),
		option.WithHTTPClient(&http.Client{Transport: mock}),
		option.WithMaxRetries(0),
	)

	mock.RegisterResponder(http.MethodPost, "https://anthropic.test/v1/messages",
		func(req *http.Request) (*http.Response, error) {
			assert.Equal(t, "sk-ant-test", req.Header.Get("X-Api-Key"))

			var body struct {
				Model     string `json:"model"`
				MaxTokens int    `json:"max_tokens"`
				System    []struct {
					Text string `json:"text"`
				} `json:"system"`
				Messages []struct {
					Role string `json:"role"`
				} `json:"messages"`
			}
			require.NoError(t, json.NewDecoder(req.Body).Decode(&body))
			assert.Equal(t, "claude-sonnet-4-5", body.Model)
			assert.Equal(t, 1000, body.MaxTokens)
			require.Len(t, body.System, 1)
			assert.Contains(t, body.System[0].Text, "concierge")
			assert.Contains(t, body.System[0].Text, "Only suggest places that are open.")
			require.Len(t, body.Messages, 3)
			assert.Equal(t, "user", body.Messages[0].Role)
			assert.Equal(t, "assistant", body.Messages[1].Role)

			return httpmock.NewJsonResponse(http.StatusOK, map[string]any{
				"id":          "msg_1",
				"type":        "message",
				"role":        "assistant",
				"model":       "claude-sonnet-4-5",
				"stop_reason": "end_turn",
				"content": []map[string]any{
					{"type": "text", "text": "Try "},
					{"type": "text", "text": "Via Carota."},
				},
				"usage": map[string]any{"input_tokens": 10, "output_tokens": 5},
			})
		})

	got, err := client.Complete(context.Background(), "concierge", conversation)
	require.NoError(t, err)
	assert.Equal(t, "Try Via Carota.", got)
	assert.Equal(t, "anthropic", client.ProviderName())
}

func TestAnthropicClient_APIError(t *testing.T) {
	mock := httpmock.NewMockTransport()
	client := NewAnthropicClient("sk-ant-test", "claude-sonnet-4-5",
		option.WithBaseURL("https://anthropic.test/"),
		option.WithHTTPClient(&http.Client{Transport: mock}),
		option.WithMaxRetries(0),
	)
	mock.RegisterResponder(http.MethodPost, "https://anthropic.test/v1/messages",
		httpmock.NewStringResponder(http.StatusUnauthorized,
			`{"type":"error","error":{"type":"authentication_error","message":"invalid x-api-key"}}`))

	_, err := client.Complete(context.Background(), "concierge", conversation)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "anthropic API call")
}
