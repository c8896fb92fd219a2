package types

import (
	"time"

	"github.com/google/uuid"
)

// ChatTurn is a single message in the caller-supplied conversation history.
// The engine never persists turns; order of the slice is conversational order.
type ChatTurn struct {
	Role      string     `json:"role"` // RoleUser or RoleAssistant
	Content   string     `json:"content"`
	Timestamp *time.Time `json:"timestamp,omitempty"`
}

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// IntentType is the closed classification taxonomy. Every consumption site
// must handle the full set; anything else is treated as IntentGeneral.
type IntentType string

const (
	IntentFindEvents       IntentType = "find_events"
	IntentFilterEvents     IntentType = "filter_events"
	IntentFindClubs        IntentType = "find_clubs"
	IntentFilterClubs      IntentType = "filter_clubs"
	IntentEventQuestion    IntentType = "event_question"
	IntentClubQuestion     IntentType = "club_question"
	IntentMyBookings       IntentType = "my_bookings"
	IntentBookingStatus    IntentType = "booking_status"
	IntentBookingDetails   IntentType = "booking_details"
	IntentClubRegistration IntentType = "club_registration"
	IntentPolicyQuery      IntentType = "policy_query"
	IntentBookingHelp      IntentType = "booking_help"
	IntentDirections       IntentType = "directions"
	IntentGeneral          IntentType = "general"
)

// AllIntentTypes enumerates the taxonomy in a stable order.
var AllIntentTypes = []IntentType{
	IntentFindEvents, IntentFilterEvents, IntentFindClubs, IntentFilterClubs,
	IntentEventQuestion, IntentClubQuestion, IntentMyBookings, IntentBookingStatus,
	IntentBookingDetails, IntentClubRegistration, IntentPolicyQuery,
	IntentBookingHelp, IntentDirections, IntentGeneral,
}

func (t IntentType) Valid() bool {
	for _, known := range AllIntentTypes {
		if t == known {
			return true
		}
	}
	return false
}

// CardType keys a CardBlock to the data category it previews.
type CardType string

const (
	CardTypeEvents CardType = "events"
	CardTypeClubs  CardType = "clubs"
	CardTypeMixed  CardType = "mixed"
)

// ExtractedSlots holds structured fragments pulled out of the user message
// during classification.
type ExtractedSlots struct {
	EventName string            `json:"eventName,omitempty"`
	ClubName  string            `json:"clubName,omitempty"`
	Location  string            `json:"location,omitempty"`
	NearMe    bool              `json:"nearMe,omitempty"`
	Date      string            `json:"date,omitempty"`
	Filters   map[string]string `json:"filters,omitempty"`
}

// Intent is the classified purpose of a message. It is created once by the
// intent resolver and read-only afterwards.
type Intent struct {
	Type       IntentType     `json:"type"`
	Confidence float64        `json:"confidence"`
	Query      string         `json:"query,omitempty"`
	ShowCards  bool           `json:"showCards,omitempty"`
	CardType   CardType       `json:"cardType,omitempty"`
	Slots      ExtractedSlots `json:"extractedInfo,omitempty"`
}

// EntityKind names the store entity a query plan targets.
type EntityKind string

const (
	EntityClub  EntityKind = "Club"
	EntityEvent EntityKind = "Event"
	EntityUser  EntityKind = "User"
)

// QueryPlan is a concrete, executable description of one store read.
// Built by the planner, consumed exactly once by the executor.
type QueryPlan struct {
	Target         EntityKind
	City           string
	NameContains   string
	VenueContains  string
	UpcomingOnly   bool
	PopulateEvents bool
	UserID         uuid.UUID
	Limit          int
}

// FallbackTier records which planning tier produced the final result set.
// Observability only; nothing downstream branches on it.
type FallbackTier string

const (
	TierAIPlan         FallbackTier = "ai-plan"
	TierRulePlan       FallbackTier = "rule-plan"
	TierGenericListing FallbackTier = "generic-listing"
)

// QueryResult is the executor output: exactly one of the slices is populated,
// indicated by Entity.
type QueryResult struct {
	Clubs    []Club
	Events   []Event
	Bookings []Booking
	Entity   EntityKind
	Tier     FallbackTier
}

// StreamEvent is one framed message on the streaming transport. Type selects
// which of the optional fields are meaningful.
type StreamEvent struct {
	Type       string      `json:"type"`
	Message    string      `json:"message,omitempty"`
	Token      string      `json:"token,omitempty"`
	IsComplete bool        `json:"isComplete,omitempty"`
	Ts         int64       `json:"ts,omitempty"`
	Response   string      `json:"response,omitempty"`
	Intent     IntentType  `json:"intent,omitempty"`
	Confidence float64     `json:"confidence,omitempty"`
	Cards      []CardBlock `json:"cards,omitempty"`
	Error      string      `json:"error,omitempty"`
}

const (
	EventTypeConnection = "connection"
	EventTypeThinking   = "thinking"
	EventTypeToken      = "token"
	EventTypeHeartbeat  = "heartbeat"
	EventTypeComplete   = "complete"
	EventTypeError      = "error"
)

// CardItem is one structured preview entry inside a CardBlock.
type CardItem struct {
	ID           uuid.UUID `json:"id"`
	Name         string    `json:"name"`
	Venue        string    `json:"venue,omitempty"`
	City         string    `json:"city,omitempty"`
	Date         string    `json:"date,omitempty"`
	Time         string    `json:"time,omitempty"`
	ImageURL     string    `json:"imageUrl,omitempty"`
	Rating       float64   `json:"rating,omitempty"`
	DistanceText string    `json:"distanceText,omitempty"`
	Status       string    `json:"status,omitempty"`
}

// CardBlock packages up to MaxCardItems retrieved entries for client rendering.
type CardBlock struct {
	Type  CardType   `json:"type"`
	Title string     `json:"title"`
	Items []CardItem `json:"items"`
}

// MaxCardItems caps card payload size per block.
const MaxCardItems = 4

// UserLocation is the caller-reported device coordinate.
type UserLocation struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Preferences are optional caller-supplied taste hints folded into prompts.
type Preferences struct {
	MusicGenres []string `json:"musicGenres,omitempty"`
	PriceRange  *struct {
		Min float64 `json:"min"`
		Max float64 `json:"max"`
	} `json:"priceRange,omitempty"`
	EventTypes []string `json:"eventTypes,omitempty"`
	ClubTypes  []string `json:"clubTypes,omitempty"`
}

// ChatRequest is the entry payload for both streaming and synchronous modes.
type ChatRequest struct {
	Message             string        `json:"message"`
	City                string        `json:"city,omitempty"`
	UserLocation        *UserLocation `json:"userLocation,omitempty"`
	Screen              string        `json:"screen,omitempty"`
	Stream              bool          `json:"stream,omitempty"`
	ConversationHistory []ChatTurn    `json:"conversationHistory,omitempty"`
	Preferences         *Preferences  `json:"preferences,omitempty"`
}

// ChatResult is the synchronous-mode payload; the streaming Complete event
// carries byte-identical response/intent/cards content.
type ChatResult struct {
	Response string `json:"response"`
	// ResponseType is the numeric category clients switch rendering on:
	// 0 general, 1 event question, 2 event discovery, 3 club discovery,
	// 4 club question, 5 booking help, 6 directions.
	ResponseType int          `json:"type"`
	Intent       IntentType   `json:"intent"`
	Confidence   float64      `json:"confidence"`
	Cards        []CardBlock  `json:"cards,omitempty"`
	Tier         FallbackTier `json:"-"`
}

// SuggestionsResponse is the payload of the suggestions endpoint.
type SuggestionsResponse struct {
	Suggestions   []string       `json:"suggestions"`
	PopularEvents []PopularEvent `json:"popularEvents"`
}

// PopularEvent is a trimmed event reference for the suggestions payload.
type PopularEvent struct {
	ID    uuid.UUID `json:"id"`
	Name  string    `json:"name"`
	Venue string    `json:"venue"`
	Date  string    `json:"date"`
}
