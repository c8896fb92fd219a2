// Package llm wraps the OpenRouter-compatible chat completions API used for
// intent classification and response generation.
package llm

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/sashabaranov/go-openai"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Client is the language collaborator. Both calls return raw text; callers
// own parsing and fallback.
type Client interface {
	ClassifyIntent(ctx context.Context, systemPrompt, message string) (string, error)
	GenerateText(ctx context.Context, systemPrompt, userMessage string) (string, error)
}

const (
	classifyTimeout     = 8 * time.Second
	generateTimeout     = 10 * time.Second
	classifyTemperature = 0.1
	generateTemperature = 0.2
	classifyMaxTokens   = 120
	generateMaxTokens   = 220
)

// OpenRouterClient talks to OpenRouter (or any OpenAI-compatible endpoint).
type OpenRouterClient struct {
	client *openai.Client
	model  string
	logger *slog.Logger
}

type headerTransport struct {
	rt      http.RoundTripper
	headers http.Header
}

func (t headerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	cl := req.Clone(req.Context())
	for k, vs := range t.headers {
		for _, v := range vs {
			cl.Header.Add(k, v)
		}
	}
	return t.rt.RoundTrip(cl)
}

// NewOpenRouterClient builds a client for the given base URL and model.
// referrer and title become the HTTP-Referer / X-Title headers OpenRouter
// uses for app attribution; either may be empty.
func NewOpenRouterClient(apiKey, baseURL, model, referrer, title string, logger *slog.Logger) *OpenRouterClient {
	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = baseURL
	}
	if referrer != "" || title != "" {
		h := http.Header{}
		if referrer != "" {
			h.Set("HTTP-Referer", referrer)
		}
		if title != "" {
			h.Set("X-Title", title)
		}
		config.HTTPClient = &http.Client{Transport: headerTransport{rt: http.DefaultTransport, headers: h}}
	}
	return &OpenRouterClient{
		client: openai.NewClientWithConfig(config),
		model:  model,
		logger: logger,
	}
}

// ClassifyIntent runs a short low-temperature completion expected to yield a
// JSON intent object. The raw assistant text is returned untouched.
func (c *OpenRouterClient) ClassifyIntent(ctx context.Context, systemPrompt, message string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, classifyTimeout)
	defer cancel()
	return c.complete(ctx, "ClassifyIntent", systemPrompt, message, classifyTemperature, classifyMaxTokens)
}

// GenerateText runs the response-composition completion.
func (c *OpenRouterClient) GenerateText(ctx context.Context, systemPrompt, userMessage string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, generateTimeout)
	defer cancel()
	return c.complete(ctx, "GenerateText", systemPrompt, userMessage, generateTemperature, generateMaxTokens)
}

func (c *OpenRouterClient) complete(ctx context.Context, op, systemPrompt, userMessage string, temperature float32, maxTokens int) (string, error) {
	ctx, span := otel.Tracer("LLMClient").Start(ctx, op, trace.WithAttributes(
		attribute.String("llm.model", c.model),
		attribute.Float64("llm.temperature", float64(temperature)),
	))
	defer span.End()

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.model,
		Temperature: temperature,
		MaxTokens:   maxTokens,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: userMessage},
		},
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "chat completion failed")
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		err := fmt.Errorf("chat completion: empty choices")
		span.RecordError(err)
		span.SetStatus(codes.Error, "empty response")
		return "", err
	}

	c.logger.DebugContext(ctx, "completion finished",
		slog.String("operation", op),
		slog.Int("prompt_tokens", resp.Usage.PromptTokens),
		slog.Int("completion_tokens", resp.Usage.CompletionTokens))
	span.SetStatus(codes.Ok, "completion received")
	return resp.Choices[0].Message.Content, nil
}
