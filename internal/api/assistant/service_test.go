package assistant

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/iamnithishraja/cavens-assistant/internal/types"
)

func newTestService(llmMock *MockLLMClient, repo *MockRepository, geoMock *MockGeoResolver) *ServiceImpl {
	logger := testLogger()
	intents := NewIntentResolver(llmMock, logger)
	planner := NewPlanner(llmMock, repo, geoMock, logger, 0)
	composer := NewComposer(llmMock, logger)
	return NewService(intents, planner, composer, repo, logger, Options{})
}

func TestServiceOptionsDefaults(t *testing.T) {
	svc := newTestService(new(MockLLMClient), new(MockRepository), new(MockGeoResolver))
	assert.Equal(t, defaultTokenDelay, svc.tokenDelay)

	opts := Options{TokenDelay: 5 * time.Millisecond, SuggestionsTTL: time.Minute}.withDefaults()
	assert.Equal(t, 5*time.Millisecond, opts.TokenDelay)
	assert.Equal(t, time.Minute, opts.SuggestionsTTL)
}

func isPlanPrompt(s string) bool {
	return strings.Contains(s, "query plan")
}

func isComposerPrompt(s string) bool {
	return strings.Contains(s, "Cavens")
}

func TestChatEmptyMessage(t *testing.T) {
	llmMock := new(MockLLMClient)
	svc := newTestService(llmMock, new(MockRepository), new(MockGeoResolver))

	_, err := svc.Chat(context.Background(), types.ChatRequest{Message: "   "}, uuid.New())
	assert.ErrorIs(t, err, ErrEmptyMessage)

	_, err = svc.ChatStream(context.Background(), types.ChatRequest{Message: ""}, uuid.New())
	assert.ErrorIs(t, err, ErrEmptyMessage)

	llmMock.AssertNotCalled(t, "ClassifyIntent", mock.Anything, mock.Anything, mock.Anything)
	llmMock.AssertNotCalled(t, "GenerateText", mock.Anything, mock.Anything, mock.Anything)
}

func TestChatBookingsPipeline(t *testing.T) {
	llmMock := new(MockLLMClient)
	repo := new(MockRepository)
	userID := uuid.New()

	llmMock.On("GenerateText", mock.Anything, mock.MatchedBy(isPlanPrompt), mock.Anything).
		Return(`{"model":"User","query":"","populate":false}`, nil)
	llmMock.On("GenerateText", mock.Anything, mock.MatchedBy(isComposerPrompt), mock.Anything).
		Return("You have one booking: Neon Nights at Blu Dubai.", nil)
	repo.On("PaidOrdersForUser", mock.Anything, userID, defaultResultLimit).
		Return([]types.Booking{{
			ID:        uuid.New(),
			EventName: "Neon Nights",
			ClubName:  "Blu Dubai",
			EventDate: time.Now().Add(48 * time.Hour),
			Status:    "paid",
		}}, nil)

	svc := newTestService(llmMock, repo, new(MockGeoResolver))
	result, err := svc.Chat(context.Background(), types.ChatRequest{Message: "show my bookings"}, userID)

	require.NoError(t, err)
	assert.Equal(t, types.IntentMyBookings, result.Intent)
	assert.Equal(t, 0, result.ResponseType)
	assert.InDelta(t, 0.9, result.Confidence, 1e-9)
	assert.Equal(t, "You have one booking: Neon Nights at Blu Dubai.", result.Response)
	require.Len(t, result.Cards, 1)
	assert.Equal(t, types.CardTypeMixed, result.Cards[0].Type)
	assert.Equal(t, "Neon Nights", result.Cards[0].Items[0].Name)
}

func collectStream(t *testing.T, stream <-chan types.StreamEvent) []types.StreamEvent {
	t.Helper()
	var events []types.StreamEvent
	timeout := time.After(10 * time.Second)
	for {
		select {
		case event, ok := <-stream:
			if !ok {
				return events
			}
			events = append(events, event)
		case <-timeout:
			t.Fatal("stream did not close in time")
		}
	}
}

func TestChatStreamEventSequence(t *testing.T) {
	llmMock := new(MockLLMClient)
	repo := new(MockRepository)
	userID := uuid.New()

	llmMock.On("GenerateText", mock.Anything, mock.MatchedBy(isPlanPrompt), mock.Anything).
		Return(`{"model":"User","query":"","populate":false}`, nil)
	llmMock.On("GenerateText", mock.Anything, mock.MatchedBy(isComposerPrompt), mock.Anything).
		Return("Your next booking is Neon Nights.", nil)
	repo.On("PaidOrdersForUser", mock.Anything, userID, defaultResultLimit).
		Return([]types.Booking{{EventName: "Neon Nights", Status: "paid"}}, nil)

	svc := newTestService(llmMock, repo, new(MockGeoResolver))
	streamResp, err := svc.ChatStream(context.Background(), types.ChatRequest{Message: "show my bookings"}, userID)
	require.NoError(t, err)
	defer streamResp.Cancel()

	events := collectStream(t, streamResp.Stream)
	require.NotEmpty(t, events)

	assert.Equal(t, types.EventTypeConnection, events[0].Type)
	assert.Equal(t, types.EventTypeThinking, events[1].Type)

	last := events[len(events)-1]
	assert.Equal(t, types.EventTypeComplete, last.Type, "terminal event must be last")

	terminals := 0
	var tokenConcat strings.Builder
	var lastToken *types.StreamEvent
	for i := range events {
		switch events[i].Type {
		case types.EventTypeComplete, types.EventTypeError:
			terminals++
		case types.EventTypeToken:
			tokenConcat.WriteString(events[i].Token)
			lastToken = &events[i]
		}
	}
	assert.Equal(t, 1, terminals, "exactly one terminal event")
	assert.Equal(t, last.Response, tokenConcat.String(), "token concatenation equals the complete response")
	require.NotNil(t, lastToken)
	assert.True(t, lastToken.IsComplete, "final token carries isComplete")

	assert.Equal(t, types.IntentMyBookings, last.Intent)
	require.Len(t, last.Cards, 1)
}

func TestChatStreamMatchesSyncPayload(t *testing.T) {
	buildMocks := func() (*MockLLMClient, *MockRepository) {
		llmMock := new(MockLLMClient)
		repo := new(MockRepository)
		llmMock.On("GenerateText", mock.Anything, mock.MatchedBy(isPlanPrompt), mock.Anything).
			Return(`{"model":"User","query":"","populate":false}`, nil)
		llmMock.On("GenerateText", mock.Anything, mock.MatchedBy(isComposerPrompt), mock.Anything).
			Return("You have one booking: Neon Nights.", nil)
		repo.On("PaidOrdersForUser", mock.Anything, mock.Anything, defaultResultLimit).
			Return([]types.Booking{{EventName: "Neon Nights", Status: "paid"}}, nil)
		return llmMock, repo
	}

	userID := uuid.New()
	req := types.ChatRequest{Message: "show my bookings"}

	llmSync, repoSync := buildMocks()
	syncResult, err := newTestService(llmSync, repoSync, new(MockGeoResolver)).Chat(context.Background(), req, userID)
	require.NoError(t, err)

	llmStream, repoStream := buildMocks()
	streamResp, err := newTestService(llmStream, repoStream, new(MockGeoResolver)).ChatStream(context.Background(), req, userID)
	require.NoError(t, err)
	defer streamResp.Cancel()
	events := collectStream(t, streamResp.Stream)
	last := events[len(events)-1]

	assert.Equal(t, syncResult.Response, last.Response)
	assert.Equal(t, syncResult.Intent, last.Intent)
	assert.InDelta(t, syncResult.Confidence, last.Confidence, 1e-9)
	assert.Equal(t, len(syncResult.Cards), len(last.Cards))
}

func TestChatFollowUpResolvesReference(t *testing.T) {
	llmMock := new(MockLLMClient)
	repo := new(MockRepository)
	geoMock := new(MockGeoResolver)

	// Follow-ups skip classification entirely only when the prepass hits;
	// "tell me more about this event" goes to the model first.
	llmMock.On("ClassifyIntent", mock.Anything, mock.Anything, mock.Anything).
		Return(`{"type":"general","confidence":0.6}`, nil)
	llmMock.On("GenerateText", mock.Anything, mock.MatchedBy(isPlanPrompt), mock.Anything).
		Return("not json", nil)
	llmMock.On("GenerateText", mock.Anything, mock.MatchedBy(isComposerPrompt), mock.Anything).
		Return("Neon Nights is at Blu Dubai on Saturday, doors at 10pm.", nil)
	repo.On("FindEventByName", mock.Anything, "Neon Nights", "Blu Dubai").
		Return(&types.Event{Name: "Neon Nights", Venue: "Blu Dubai", Date: time.Now().Add(48 * time.Hour)}, nil)

	svc := newTestService(llmMock, repo, geoMock)
	req := types.ChatRequest{
		Message: "tell me more about this event",
		ConversationHistory: []types.ChatTurn{
			{Role: types.RoleUser, Content: "events saturday?"},
			{Role: types.RoleAssistant, Content: "Check out Neon Nights at Blu Dubai on Saturday."},
		},
	}
	result, err := svc.Chat(context.Background(), req, uuid.New())

	require.NoError(t, err)
	assert.Equal(t, types.IntentEventQuestion, result.Intent)
	assert.Equal(t, 1, result.ResponseType)
	repo.AssertCalled(t, "FindEventByName", mock.Anything, "Neon Nights", "Blu Dubai")
	require.Len(t, result.Cards, 1)
	assert.Equal(t, "Neon Nights", result.Cards[0].Items[0].Name)
}

func TestResponseTypePerIntent(t *testing.T) {
	tests := []struct {
		intent types.IntentType
		want   int
	}{
		{types.IntentEventQuestion, 1},
		{types.IntentFindEvents, 2},
		{types.IntentFilterEvents, 2},
		{types.IntentFindClubs, 3},
		{types.IntentFilterClubs, 3},
		{types.IntentClubQuestion, 4},
		{types.IntentBookingHelp, 5},
		{types.IntentDirections, 6},
		{types.IntentMyBookings, 0},
		{types.IntentPolicyQuery, 0},
		{types.IntentGeneral, 0},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, responseTypeFor(tt.intent), string(tt.intent))
	}
}

func TestChatErrorsWhenAllQueryTiersFail(t *testing.T) {
	llmMock := new(MockLLMClient)
	repo := new(MockRepository)

	llmMock.On("GenerateText", mock.Anything, mock.Anything, mock.Anything).
		Return("", assert.AnError)
	repo.On("ClubsWithUpcomingEvents", mock.Anything, mock.Anything, mock.Anything).
		Return(nil, assert.AnError)
	repo.On("ApprovedClubsByCity", mock.Anything, mock.Anything, mock.Anything).
		Return(nil, assert.AnError)

	svc := newTestService(llmMock, repo, new(MockGeoResolver))
	result, err := svc.Chat(context.Background(), types.ChatRequest{Message: "best clubs in Dubai", City: "Dubai"}, uuid.New())

	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrEmptyMessage)
	assert.Nil(t, result)
}

func TestChatStreamEndsWithErrorWhenAllQueryTiersFail(t *testing.T) {
	llmMock := new(MockLLMClient)
	repo := new(MockRepository)

	llmMock.On("GenerateText", mock.Anything, mock.Anything, mock.Anything).
		Return("", assert.AnError)
	repo.On("ClubsWithUpcomingEvents", mock.Anything, mock.Anything, mock.Anything).
		Return(nil, assert.AnError)
	repo.On("ApprovedClubsByCity", mock.Anything, mock.Anything, mock.Anything).
		Return(nil, assert.AnError)

	svc := newTestService(llmMock, repo, new(MockGeoResolver))
	streamResp, err := svc.ChatStream(context.Background(), types.ChatRequest{Message: "best clubs in Dubai", City: "Dubai"}, uuid.New())
	require.NoError(t, err)
	defer streamResp.Cancel()

	events := collectStream(t, streamResp.Stream)
	require.NotEmpty(t, events)

	last := events[len(events)-1]
	assert.Equal(t, types.EventTypeError, last.Type, "terminal event must be the error shape")
	assert.Equal(t, "Failed to process message", last.Error)

	terminals := 0
	for _, event := range events {
		switch event.Type {
		case types.EventTypeComplete:
			t.Fatalf("no complete event expected, got %+v", event)
		case types.EventTypeError:
			terminals++
		}
	}
	assert.Equal(t, 1, terminals, "exactly one terminal event")
}

func TestSuggestionsCachesPerCity(t *testing.T) {
	llmMock := new(MockLLMClient)
	repo := new(MockRepository)

	repo.On("PopularEvents", mock.Anything, "Dubai", popularEventsCount).
		Return([]types.Event{{
			ID:    uuid.New(),
			Name:  "Neon Nights",
			Venue: "Blu Dubai",
			Date:  time.Now().Add(48 * time.Hour),
		}}, nil).Once()

	svc := newTestService(llmMock, repo, new(MockGeoResolver))

	first, err := svc.Suggestions(context.Background(), "Dubai")
	require.NoError(t, err)
	second, err := svc.Suggestions(context.Background(), "Dubai")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Len(t, first.Suggestions, suggestionCount)
	require.Len(t, first.PopularEvents, 1)
	assert.Contains(t, first.Suggestions[0], "Neon Nights")
	repo.AssertNumberOfCalls(t, "PopularEvents", 1)
}

func TestSuggestionsDefaultsWhenStoreFails(t *testing.T) {
	llmMock := new(MockLLMClient)
	repo := new(MockRepository)

	repo.On("PopularEvents", mock.Anything, "Atlantis", popularEventsCount).
		Return(nil, assert.AnError)

	svc := newTestService(llmMock, repo, new(MockGeoResolver))
	resp, err := svc.Suggestions(context.Background(), "Atlantis")

	require.NoError(t, err)
	assert.Len(t, resp.Suggestions, suggestionCount)
	assert.Empty(t, resp.PopularEvents)
}
