package assistant

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/iamnithishraja/cavens-assistant/internal/types"
)

func TestIsFollowUp(t *testing.T) {
	tests := []struct {
		message string
		want    bool
	}{
		{"tell me more about this event", true},
		{"Tell me more", true},
		{"what about that one?", true},
		{"what time does it start?", true},
		{"give me more details", true},
		{"where is the venue?", true},
		{"directions please", true},
		{"explain", true},
		{"how much are the tickets", true},
		{"when is it?", true},
		{"book it", true},
		{"the first one", true},
		{"find events near me", false},
		{"show my bookings", false},
		{"best clubs in Dubai", false},
		// Short entries must not fire inside other words.
		{"visit the city", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.message, func(t *testing.T) {
			assert.Equal(t, tt.want, IsFollowUp(tt.message))
		})
	}
}

func TestExtractRecommendedEvent(t *testing.T) {
	tests := []struct {
		name      string
		content   string
		wantName  string
		wantVenue string
	}{
		{
			name:      "marker with venue",
			content:   "Friday looks great! Check out Neon Nights at Blu Dubai, doors open at 10pm.",
			wantName:  "Neon Nights",
			wantVenue: "Blu Dubai",
		},
		{
			name:      "venue followed by a date",
			content:   "Check out Garden Grooves at Soho Garden this Friday.",
			wantName:  "Garden Grooves",
			wantVenue: "Soho Garden",
		},
		{
			name:     "marker without venue",
			content:  "Check out Techno Tuesday! You will love the lineup.",
			wantName: "Techno Tuesday",
		},
		{
			name:    "no marker",
			content: "There are plenty of events this weekend.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			name, venue := extractRecommendedEvent(tt.content)
			assert.Equal(t, tt.wantName, name)
			assert.Equal(t, tt.wantVenue, venue)
		})
	}
}

func TestReferencedEventPicksNewestAssistantTurn(t *testing.T) {
	history := []types.ChatTurn{
		{Role: types.RoleUser, Content: "any events?"},
		{Role: types.RoleAssistant, Content: "Check out Garden Grooves at Soho Garden this Friday."},
		{Role: types.RoleUser, Content: "anything else?"},
		{Role: types.RoleAssistant, Content: "Check out Neon Nights at Blu Dubai on Saturday."},
	}

	name, venue := ReferencedEvent(history)
	assert.Equal(t, "Neon Nights", name)
	assert.Equal(t, "Blu Dubai", venue)
}

func TestReferencedEventIgnoresUserTurns(t *testing.T) {
	history := []types.ChatTurn{
		{Role: types.RoleUser, Content: "Check out my playlist at home"},
		{Role: types.RoleAssistant, Content: "Happy to help you find a party!"},
	}

	name, venue := ReferencedEvent(history)
	assert.Empty(t, name)
	assert.Empty(t, venue)
}
