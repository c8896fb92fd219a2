package assistant

import (
	"context"
	"log/slog"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/iamnithishraja/cavens-assistant/internal/api/llm"
	"github.com/iamnithishraja/cavens-assistant/internal/types"
)

// cannedFallbackResponse covers composition failures so the pipeline always
// produces prose.
const cannedFallbackResponse = "I'm having a little trouble right now. " +
	"Try asking about events or clubs in your city, or check your bookings from the bookings screen."

// Composer renders the final natural-language answer for a resolved intent
// and its retrieved data.
type Composer struct {
	llm    llm.Client
	logger *slog.Logger
}

func NewComposer(client llm.Client, logger *slog.Logger) *Composer {
	return &Composer{llm: client, logger: logger}
}

// Compose builds the per-intent prompt and generates the response. A
// generation failure degrades to the canned fallback, never an error.
func (c *Composer) Compose(ctx context.Context, intent types.Intent, req types.ChatRequest, result *types.QueryResult) string {
	ctx, span := otel.Tracer("Composer").Start(ctx, "Compose")
	defer span.End()
	span.SetAttributes(attribute.String("intent.type", string(intent.Type)))

	builder, ok := composerPrompts[intent.Type]
	if !ok {
		builder = generalPrompt
	}
	systemPrompt := builder(promptContext{
		Message: req.Message,
		City:    req.City,
		Screen:  req.Screen,
		Result:  result,
		Intent:  intent,
		Prefs:   req.Preferences,
	})

	userPayload := c.userPayload(req)
	response, err := c.llm.GenerateText(ctx, systemPrompt, userPayload)
	if err != nil {
		c.logger.WarnContext(ctx, "response generation failed, using canned fallback",
			slog.String("intent", string(intent.Type)),
			slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Ok, "canned fallback")
		return cannedFallbackResponse
	}

	// Collapse whitespace so the streamed token sequence reassembles to the
	// exact response text.
	response = strings.Join(strings.Fields(response), " ")
	if response == "" {
		span.SetStatus(codes.Ok, "empty generation, canned fallback")
		return cannedFallbackResponse
	}
	span.SetStatus(codes.Ok, "response composed")
	return response
}

// userPayload is the message plus the last few turns so the model keeps
// conversational continuity.
func (c *Composer) userPayload(req types.ChatRequest) string {
	if len(req.ConversationHistory) == 0 {
		return req.Message
	}
	var b strings.Builder
	start := len(req.ConversationHistory) - 4
	if start < 0 {
		start = 0
	}
	b.WriteString("Recent conversation:\n")
	for _, turn := range req.ConversationHistory[start:] {
		b.WriteString(turn.Role)
		b.WriteString(": ")
		b.WriteString(turn.Content)
		b.WriteString("\n")
	}
	b.WriteString("User: ")
	b.WriteString(req.Message)
	return b.String()
}
