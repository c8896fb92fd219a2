package assistant

import (
	"strings"

	"github.com/iamnithishraja/cavens-assistant/internal/types"
)

// followUpPhrases is the fixed phrase set that marks a message as referring
// back to something the assistant already mentioned. Phrases match on word
// boundaries so the short entries ("it", "this", "that") do not fire inside
// other words.
var followUpPhrases = []string{
	"this event",
	"that event",
	"it",
	"this",
	"that",
	"give me more details",
	"tell me more",
	"what time",
	"how much",
	"where is",
	"directions",
	"more about",
	"explain",
	"the first one",
	"the second one",
}

// IsFollowUp reports whether the message refers back to an earlier answer
// rather than starting a new search.
func IsFollowUp(message string) bool {
	lower := strings.ToLower(strings.TrimSpace(message))
	for _, phrase := range followUpPhrases {
		if containsPhrase(lower, phrase) {
			return true
		}
	}
	return false
}

// containsPhrase reports whether phrase occurs in s delimited by non-word
// characters or the string edges.
func containsPhrase(s, phrase string) bool {
	for offset := 0; offset <= len(s)-len(phrase); {
		idx := strings.Index(s[offset:], phrase)
		if idx < 0 {
			return false
		}
		start := offset + idx
		end := start + len(phrase)
		if (start == 0 || !isWordChar(s[start-1])) && (end == len(s) || !isWordChar(s[end])) {
			return true
		}
		offset = start + 1
	}
	return false
}

func isWordChar(c byte) bool {
	return c >= 'a' && c <= 'z' || c >= '0' && c <= '9' || c == '\''
}

// recommendationMarker is the fixed phrasing the composer uses when naming an
// event, which makes the reference recoverable from prose.
const recommendationMarker = "Check out "

// ReferencedEvent scans assistant turns newest-first for the most recent
// recommendation and returns the event and venue names it carried. Both are
// empty when no assistant turn holds the marker; venue alone may be empty.
func ReferencedEvent(history []types.ChatTurn) (name, venue string) {
	for i := len(history) - 1; i >= 0; i-- {
		if history[i].Role != types.RoleAssistant {
			continue
		}
		if name, venue = extractRecommendedEvent(history[i].Content); name != "" {
			return name, venue
		}
	}
	return "", ""
}

// venueStopWords end the venue fragment when the recommendation sentence
// continues with a date or time.
var venueStopWords = []string{" on ", " this ", " next ", " tonight", " tomorrow"}

// extractRecommendedEvent parses "Check out <event> at <venue>" out of one
// assistant message.
func extractRecommendedEvent(content string) (name, venue string) {
	idx := strings.Index(content, recommendationMarker)
	if idx < 0 {
		return "", ""
	}
	rest := content[idx+len(recommendationMarker):]

	// The name runs until " at " (venue follows) or sentence end.
	at := strings.Index(rest, " at ")
	if at <= 0 {
		if end := strings.IndexAny(rest, ".!?\n"); end > 0 {
			return strings.TrimSpace(rest[:end]), ""
		}
		return strings.TrimSpace(rest), ""
	}

	name = strings.TrimSpace(rest[:at])
	venue = rest[at+len(" at "):]
	if end := strings.IndexAny(venue, ".,!?\n"); end >= 0 {
		venue = venue[:end]
	}
	for _, stop := range venueStopWords {
		if i := strings.Index(venue, stop); i > 0 {
			venue = venue[:i]
		}
	}
	return name, strings.TrimSpace(venue)
}
