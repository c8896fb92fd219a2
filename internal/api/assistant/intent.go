package assistant

import (
	"context"
	"encoding/json"
	"log/slog"
	"regexp"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/iamnithishraja/cavens-assistant/internal/api/llm"
	"github.com/iamnithishraja/cavens-assistant/internal/types"
)

// IntentResolver classifies a message into one Intent. Resolution never
// fails: every degradation path lands on a keyword or general intent.
type IntentResolver struct {
	llm    llm.Client
	logger *slog.Logger
}

func NewIntentResolver(client llm.Client, logger *slog.Logger) *IntentResolver {
	return &IntentResolver{llm: client, logger: logger}
}

// Resolve runs the fast keyword pass, then the model, then the keyword
// fallback. The returned intent always has a valid type and a confidence
// in [0,1].
func (ir *IntentResolver) Resolve(ctx context.Context, message, city string, history []types.ChatTurn) types.Intent {
	ctx, span := otel.Tracer("IntentResolver").Start(ctx, "Resolve")
	defer span.End()

	if intent, ok := keywordPrePass(message); ok {
		span.SetAttributes(
			attribute.String("intent.type", string(intent.Type)),
			attribute.String("intent.path", "keyword-prepass"),
		)
		span.SetStatus(codes.Ok, "keyword prepass hit")
		return intent
	}

	raw, err := ir.llm.ClassifyIntent(ctx, classificationSystemPrompt,
		classificationUserPayload(message, city, history))
	if err == nil {
		if intent, ok := parseIntentJSON(raw, message); ok {
			span.SetAttributes(
				attribute.String("intent.type", string(intent.Type)),
				attribute.String("intent.path", "model"),
			)
			span.SetStatus(codes.Ok, "model classification")
			return intent
		}
		ir.logger.WarnContext(ctx, "unparseable classification output, using keyword fallback",
			slog.String("raw", truncate(raw, 200)))
	} else {
		ir.logger.WarnContext(ctx, "classification call failed, using keyword fallback",
			slog.Any("error", err))
		span.RecordError(err)
	}

	intent := keywordFallback(message)
	span.SetAttributes(
		attribute.String("intent.type", string(intent.Type)),
		attribute.String("intent.path", "keyword-fallback"),
	)
	span.SetStatus(codes.Ok, "keyword fallback")
	return intent
}

// keywordPrePass short-circuits unambiguous phrasings before any model call.
func keywordPrePass(message string) (types.Intent, bool) {
	lower := strings.ToLower(message)

	bookingPhrases := []string{"my booking", "my bookings", "my ticket", "my tickets", "my order", "my orders", "show my"}
	for _, p := range bookingPhrases {
		if strings.Contains(lower, p) {
			return types.Intent{
				Type:       types.IntentMyBookings,
				Confidence: 0.9,
				ShowCards:  true,
				CardType:   types.CardTypeMixed,
			}, true
		}
	}

	eventPhrases := []string{"find event", "find events", "show event", "show events", "events near", "what events", "events tonight"}
	for _, p := range eventPhrases {
		if strings.Contains(lower, p) {
			return types.Intent{
				Type:       types.IntentFindEvents,
				Confidence: 0.9,
				Query:      message,
				ShowCards:  true,
				CardType:   types.CardTypeEvents,
				Slots:      types.ExtractedSlots{NearMe: strings.Contains(lower, "near me")},
			}, true
		}
	}

	clubPhrases := []string{"find club", "find clubs", "show club", "show clubs", "clubs near", "best clubs"}
	for _, p := range clubPhrases {
		if strings.Contains(lower, p) {
			return types.Intent{
				Type:       types.IntentFindClubs,
				Confidence: 0.9,
				Query:      message,
				ShowCards:  true,
				CardType:   types.CardTypeClubs,
				Slots:      types.ExtractedSlots{NearMe: strings.Contains(lower, "near me")},
			}, true
		}
	}

	return types.Intent{}, false
}

// jsonObjectPattern pulls the first {...} span out of model output that
// wraps JSON in prose or code fences.
var jsonObjectPattern = regexp.MustCompile(`(?s)\{.*\}`)

// parseIntentJSON defensively extracts and validates the classifier output.
func parseIntentJSON(raw, message string) (types.Intent, bool) {
	cleaned := strings.TrimSpace(raw)
	cleaned = strings.TrimPrefix(cleaned, "```json")
	cleaned = strings.TrimPrefix(cleaned, "```")
	cleaned = strings.TrimSuffix(cleaned, "```")
	cleaned = strings.TrimSpace(cleaned)

	if !strings.HasPrefix(cleaned, "{") {
		match := jsonObjectPattern.FindString(cleaned)
		if match == "" {
			return types.Intent{}, false
		}
		cleaned = match
	}

	var intent types.Intent
	if err := json.Unmarshal([]byte(cleaned), &intent); err != nil {
		return types.Intent{}, false
	}
	if !intent.Type.Valid() {
		return types.Intent{}, false
	}

	// Out-of-range confidence is parse damage, not an error.
	if intent.Confidence < 0 {
		intent.Confidence = 0
	}
	if intent.Confidence > 1 {
		intent.Confidence = 1
	}
	if intent.Query == "" {
		intent.Query = message
	}
	return intent, true
}

// keywordFallback is the last resort when both the prepass and the model
// produce nothing usable.
func keywordFallback(message string) types.Intent {
	lower := strings.ToLower(message)

	if strings.Contains(lower, "event") || strings.Contains(lower, "party") || strings.Contains(lower, "concert") {
		return types.Intent{
			Type:       types.IntentFindEvents,
			Confidence: 0.7,
			Query:      message,
			ShowCards:  true,
			CardType:   types.CardTypeEvents,
			Slots:      types.ExtractedSlots{NearMe: strings.Contains(lower, "near me")},
		}
	}
	if strings.Contains(lower, "club") || strings.Contains(lower, "venue") || strings.Contains(lower, "bar") {
		return types.Intent{
			Type:       types.IntentFindClubs,
			Confidence: 0.7,
			Query:      message,
			ShowCards:  true,
			CardType:   types.CardTypeClubs,
			Slots:      types.ExtractedSlots{NearMe: strings.Contains(lower, "near me")},
		}
	}
	return types.Intent{
		Type:       types.IntentGeneral,
		Confidence: 0.5,
		Query:      message,
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
