package assistant

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/iamnithishraja/cavens-assistant/app/observability/metrics"
	"github.com/iamnithishraja/cavens-assistant/internal/api/store"
	"github.com/iamnithishraja/cavens-assistant/internal/types"
)

// ErrEmptyMessage is the only direct input error the chat pipeline returns;
// everything else degrades through fallbacks.
var ErrEmptyMessage = fmt.Errorf("message must not be empty")

const (
	defaultTokenDelay     = 20 * time.Millisecond
	sendTimeout           = 2 * time.Second
	defaultSuggestionsTTL = 5 * time.Minute
	suggestionCount       = 5
	popularEventsCount    = 3
)

// Options tunes the service; zero values fall back to the defaults above.
type Options struct {
	TokenDelay     time.Duration
	SuggestionsTTL time.Duration
}

func (o Options) withDefaults() Options {
	if o.TokenDelay <= 0 {
		o.TokenDelay = defaultTokenDelay
	}
	if o.SuggestionsTTL <= 0 {
		o.SuggestionsTTL = defaultSuggestionsTTL
	}
	return o
}

// StreamingResponse wraps the event channel for one streaming session.
type StreamingResponse struct {
	SessionID uuid.UUID
	Stream    <-chan types.StreamEvent
	Cancel    context.CancelFunc
}

// Service is the conversational engine surface.
type Service interface {
	Chat(ctx context.Context, req types.ChatRequest, userID uuid.UUID) (*types.ChatResult, error)
	ChatStream(ctx context.Context, req types.ChatRequest, userID uuid.UUID) (*StreamingResponse, error)
	Suggestions(ctx context.Context, city string) (*types.SuggestionsResponse, error)
}

var _ Service = (*ServiceImpl)(nil)

type ServiceImpl struct {
	intents    *IntentResolver
	planner    *Planner
	composer   *Composer
	repo       store.Repository
	cache      *cache.Cache
	logger     *slog.Logger
	tokenDelay time.Duration
}

func NewService(intents *IntentResolver, planner *Planner, composer *Composer, repo store.Repository, logger *slog.Logger, opts Options) *ServiceImpl {
	opts = opts.withDefaults()
	return &ServiceImpl{
		intents:    intents,
		planner:    planner,
		composer:   composer,
		repo:       repo,
		cache:      cache.New(opts.SuggestionsTTL, 2*opts.SuggestionsTTL),
		logger:     logger,
		tokenDelay: opts.TokenDelay,
	}
}

// Chat runs the pipeline synchronously.
func (s *ServiceImpl) Chat(ctx context.Context, req types.ChatRequest, userID uuid.UUID) (*types.ChatResult, error) {
	ctx, span := otel.Tracer("AssistantService").Start(ctx, "Chat", trace.WithAttributes(
		attribute.String("city", req.City),
	))
	defer span.End()

	if strings.TrimSpace(req.Message) == "" {
		span.SetStatus(codes.Error, "empty message")
		return nil, ErrEmptyMessage
	}

	start := time.Now()
	result, err := s.runPipeline(ctx, req, userID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "pipeline failed")
		return nil, err
	}
	metrics.Get().ChatDurationSeconds.Record(ctx, time.Since(start).Seconds(),
		metric.WithAttributes(attribute.String("mode", "sync")))

	span.SetAttributes(attribute.String("intent.type", string(result.Intent)))
	span.SetStatus(codes.Ok, "chat completed")
	return result, nil
}

// responseTypeFor is the numeric response category in the payload contract:
// 0 general, 1 event question, 2 event discovery, 3 club discovery, 4 club
// question, 5 booking help, 6 directions.
func responseTypeFor(t types.IntentType) int {
	switch t {
	case types.IntentEventQuestion:
		return 1
	case types.IntentFindEvents, types.IntentFilterEvents:
		return 2
	case types.IntentFindClubs, types.IntentFilterClubs:
		return 3
	case types.IntentClubQuestion:
		return 4
	case types.IntentBookingHelp:
		return 5
	case types.IntentDirections:
		return 6
	}
	return 0
}

// runPipeline is the shared core: classify, resolve follow-ups, query,
// compose, assemble cards. Streaming and sync modes both call it, so their
// payloads are byte-identical. An error means every query tier failed and
// the request must surface as the error terminal shape.
func (s *ServiceImpl) runPipeline(ctx context.Context, req types.ChatRequest, userID uuid.UUID) (*types.ChatResult, error) {
	intent := s.intents.Resolve(ctx, req.Message, req.City, req.ConversationHistory)
	metrics.Get().IntentResolvedTotal.Add(ctx, 1,
		metric.WithAttributes(attribute.String("intent", string(intent.Type))))

	// A follow-up reuses the event the previous answer recommended instead
	// of starting a fresh search.
	if IsFollowUp(req.Message) {
		if name, venue := ReferencedEvent(req.ConversationHistory); name != "" {
			intent.Type = types.IntentEventQuestion
			intent.Slots.EventName = name
			intent.Slots.ClubName = venue
			intent.ShowCards = true
			intent.CardType = types.CardTypeEvents
		}
	}

	var result *types.QueryResult
	if needsData(intent.Type) {
		var err error
		result, err = s.planner.ExecuteChain(ctx, intent, req, userID)
		if err != nil {
			return nil, fmt.Errorf("execute query chain: %w", err)
		}
	}

	response := s.composer.Compose(ctx, intent, req, result)
	cards := AssembleCards(intent, result)

	out := &types.ChatResult{
		Response:     response,
		ResponseType: responseTypeFor(intent.Type),
		Intent:       intent.Type,
		Confidence:   intent.Confidence,
		Cards:        cards,
	}
	if result != nil {
		out.Tier = result.Tier
	}
	return out, nil
}

// sendEvent delivers one event unless the session context is done or the
// consumer blocks past the send timeout.
func (s *ServiceImpl) sendEvent(ctx context.Context, ch chan<- types.StreamEvent, event types.StreamEvent) bool {
	if event.Ts == 0 {
		event.Ts = time.Now().UnixMilli()
	}
	select {
	case <-ctx.Done():
		s.logger.WarnContext(ctx, "Context cancelled, not sending stream event",
			slog.String("eventType", event.Type))
		return false
	default:
		select {
		case ch <- event:
			return true
		case <-ctx.Done():
			s.logger.WarnContext(ctx, "Context cancelled while trying to send stream event",
				slog.String("eventType", event.Type))
			return false
		case <-time.After(sendTimeout):
			s.logger.WarnContext(ctx, "Dropped stream event due to slow consumer",
				slog.String("eventType", event.Type))
			return false
		}
	}
}

// ChatStream runs the pipeline in a goroutine and emits connection, thinking,
// token, and exactly one terminal event on the returned channel. The channel
// closes after the terminal event.
func (s *ServiceImpl) ChatStream(ctx context.Context, req types.ChatRequest, userID uuid.UUID) (*StreamingResponse, error) {
	if strings.TrimSpace(req.Message) == "" {
		return nil, ErrEmptyMessage
	}

	sessionID := uuid.New()
	ctx, cancel := context.WithCancel(ctx)
	eventCh := make(chan types.StreamEvent, 100)

	metrics.Get().StreamSessionsTotal.Add(ctx, 1)

	go func() {
		defer close(eventCh)

		ctx, span := otel.Tracer("AssistantService").Start(ctx, "ChatStreamSession", trace.WithAttributes(
			attribute.String("session.id", sessionID.String()),
		))
		defer span.End()

		start := time.Now()

		s.sendEvent(ctx, eventCh, types.StreamEvent{
			Type:    types.EventTypeConnection,
			Message: "connected",
		})
		s.sendEvent(ctx, eventCh, types.StreamEvent{
			Type:    types.EventTypeThinking,
			Message: "Looking into that...",
		})

		result, err := s.runPipeline(ctx, req, userID)
		if err != nil {
			s.logger.ErrorContext(ctx, "pipeline failed, ending stream with error event",
				slog.Any("error", err))
			s.sendEvent(ctx, eventCh, types.StreamEvent{
				Type:  types.EventTypeError,
				Error: "Failed to process message",
			})
			span.RecordError(err)
			span.SetStatus(codes.Error, "pipeline failed")
			return
		}

		tokens := strings.Fields(result.Response)
		for i, token := range tokens {
			if i > 0 {
				token = " " + token
			}
			ok := s.sendEvent(ctx, eventCh, types.StreamEvent{
				Type:       types.EventTypeToken,
				Token:      token,
				IsComplete: i == len(tokens)-1,
			})
			if !ok {
				span.SetStatus(codes.Ok, "session cancelled mid-stream")
				return
			}
			select {
			case <-ctx.Done():
				span.SetStatus(codes.Ok, "session cancelled mid-stream")
				return
			case <-time.After(s.tokenDelay):
			}
		}

		s.sendEvent(ctx, eventCh, types.StreamEvent{
			Type:       types.EventTypeComplete,
			Response:   result.Response,
			Intent:     result.Intent,
			Confidence: result.Confidence,
			Cards:      result.Cards,
		})

		metrics.Get().ChatDurationSeconds.Record(ctx, time.Since(start).Seconds(),
			metric.WithAttributes(attribute.String("mode", "stream")))
		span.SetStatus(codes.Ok, "stream session completed")
	}()

	return &StreamingResponse{
		SessionID: sessionID,
		Stream:    eventCh,
		Cancel:    cancel,
	}, nil
}

var defaultSuggestions = []string{
	"What events are happening tonight?",
	"Find clubs near me",
	"Show my bookings",
	"What's the refund policy?",
	"Best rooftop venues in town",
}

// Suggestions returns conversation starters plus popular events for the
// city, cached per city.
func (s *ServiceImpl) Suggestions(ctx context.Context, city string) (*types.SuggestionsResponse, error) {
	ctx, span := otel.Tracer("AssistantService").Start(ctx, "Suggestions", trace.WithAttributes(
		attribute.String("city", city),
	))
	defer span.End()

	cacheKey := "suggestions:" + strings.ToLower(city)
	if cached, found := s.cache.Get(cacheKey); found {
		if resp, ok := cached.(*types.SuggestionsResponse); ok {
			span.SetStatus(codes.Ok, "cache hit")
			return resp, nil
		}
	}

	events, err := s.repo.PopularEvents(ctx, city, popularEventsCount)
	if err != nil {
		s.logger.WarnContext(ctx, "popular events lookup failed, returning defaults",
			slog.Any("error", err))
		span.RecordError(err)
		events = nil
	}

	resp := &types.SuggestionsResponse{
		Suggestions:   buildSuggestions(city, events),
		PopularEvents: make([]types.PopularEvent, 0, len(events)),
	}
	for _, e := range events {
		resp.PopularEvents = append(resp.PopularEvents, types.PopularEvent{
			ID:    e.ID,
			Name:  e.Name,
			Venue: e.Venue,
			Date:  e.Date.Format("Mon, Jan 2"),
		})
	}

	s.cache.Set(cacheKey, resp, cache.DefaultExpiration)
	span.SetStatus(codes.Ok, "suggestions built")
	return resp, nil
}

func buildSuggestions(city string, events []types.Event) []string {
	suggestions := make([]string, 0, suggestionCount)
	if len(events) > 0 {
		suggestions = append(suggestions, fmt.Sprintf("Tell me more about %s", events[0].Name))
	}
	if city != "" {
		suggestions = append(suggestions, fmt.Sprintf("What events are happening in %s this weekend?", city))
	}
	for _, def := range defaultSuggestions {
		if len(suggestions) == suggestionCount {
			break
		}
		suggestions = append(suggestions, def)
	}
	return suggestions
}
