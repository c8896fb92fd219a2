package assistant

import (
	"fmt"
	"strings"

	"github.com/iamnithishraja/cavens-assistant/internal/types"
)

// classificationSystemPrompt instructs the model to emit a single JSON intent
// object. The taxonomy list must stay in sync with types.AllIntentTypes.
const classificationSystemPrompt = `You are an intent classifier for a nightlife and events platform.
Classify the user's message into exactly one of these intents:

- find_events: user wants to discover events (parties, concerts, club nights)
- filter_events: user wants events narrowed by date, genre, price, or other criteria
- find_clubs: user wants to discover clubs or venues
- filter_clubs: user wants clubs narrowed by type, rating, or other criteria
- event_question: user asks about a specific event (lineup, timing, tickets)
- club_question: user asks about a specific club or venue
- my_bookings: user wants to see their bookings or tickets
- booking_status: user asks whether a booking is confirmed or paid
- booking_details: user asks for details of one specific booking
- club_registration: a club owner asks how to list their venue on the platform
- policy_query: user asks about refunds, cancellations, or platform policies
- booking_help: user needs help with the booking flow
- directions: user wants to know how to get to a venue or how far it is
- general: greetings, small talk, or anything that fits nothing above

Respond with ONLY a JSON object, no prose, in this shape:
{"type":"find_events","confidence":0.9,"query":"search terms if any","showCards":true,"cardType":"events","extractedInfo":{"eventName":"","clubName":"","location":"","nearMe":false,"date":""}}

confidence is between 0 and 1. showCards is true only for intents that should
render result cards (event/club discovery and bookings). cardType is one of
"events", "clubs", "mixed".`

// classificationUserPayload renders the message plus recent turns for the
// classifier. History is capped to the last few turns to bound tokens.
func classificationUserPayload(message, city string, history []types.ChatTurn) string {
	var b strings.Builder
	if city != "" {
		fmt.Fprintf(&b, "City: %s\n", city)
	}
	if len(history) > 0 {
		b.WriteString("Recent conversation:\n")
		start := len(history) - 6
		if start < 0 {
			start = 0
		}
		for _, turn := range history[start:] {
			fmt.Fprintf(&b, "%s: %s\n", turn.Role, turn.Content)
		}
	}
	fmt.Fprintf(&b, "Message: %s", message)
	return b.String()
}

const composerBasePrompt = `You are Cavens, a friendly nightlife concierge. Answer in 2-4 short
sentences, conversational and upbeat but never pushy. Only mention venues and
events from the data provided. Never invent names, prices, or dates. When
recommending an event, mention it as: Check out <event name> at <venue name>.`

// screenContextInfo describes what the user currently sees in the app so the
// answer can reference it.
func screenContextInfo(screen string) string {
	switch strings.ToUpper(screen) {
	case "HOME":
		return "The user is on the home screen showing featured events."
	case "MAP":
		return "The user is on the map screen showing nearby venues."
	case "BOOKINGS":
		return "The user is on their bookings screen."
	case "PROFILE":
		return "The user is on their profile screen."
	default:
		return ""
	}
}

// policyKnowledge returns the policy text slice relevant to the message.
func policyKnowledge(message string) string {
	lower := strings.ToLower(message)
	switch {
	case strings.Contains(lower, "refund"):
		return `Refund policy: tickets are refundable up to 24 hours before the event
start time. Refunds are returned to the original payment method within 5-7
business days. Service fees are non-refundable.`
	case strings.Contains(lower, "cancel"):
		return `Cancellation policy: bookings can be cancelled from the bookings screen
up to 24 hours before the event. If the organizer cancels an event, all
tickets are refunded automatically in full.`
	default:
		return `Platform policies: tickets are refundable up to 24 hours before the
event. Entry requires a valid ID matching the booking name. Age restrictions
are set per venue and shown on the event page.`
	}
}

// clubRegistrationGuide is the fixed walkthrough for venue owners.
const clubRegistrationGuide = `Club registration steps: 1) Open the app and choose "Register your
club" from the profile screen. 2) Submit the venue name, city, address, and a
maps link. 3) Upload at least three photos and set operating days. 4) Our team
reviews and approves listings within 2-3 business days. Approved clubs can
publish events and sell tickets immediately.`

const bookingHelpGuide = `Booking flow: open an event page, pick a ticket tier, choose the
quantity, and pay in the app. The ticket QR code appears under bookings once
payment completes. At the door, show the QR code and an ID.`

type promptContext struct {
	Message string
	City    string
	Screen  string
	Result  *types.QueryResult
	Intent  types.Intent
	Prefs   *types.Preferences
}

// promptBuilder renders the system prompt for one intent.
type promptBuilder func(pc promptContext) string

// composerPrompts keys every intent to its prompt builder. Intents missing
// here fall through to the general builder.
var composerPrompts = map[types.IntentType]promptBuilder{
	types.IntentFindEvents:       eventsPrompt,
	types.IntentFilterEvents:     eventsPrompt,
	types.IntentFindClubs:        clubsPrompt,
	types.IntentFilterClubs:      clubsPrompt,
	types.IntentEventQuestion:    eventQuestionPrompt,
	types.IntentClubQuestion:     clubQuestionPrompt,
	types.IntentMyBookings:       bookingsPrompt,
	types.IntentBookingStatus:    bookingsPrompt,
	types.IntentBookingDetails:   bookingsPrompt,
	types.IntentClubRegistration: clubRegistrationPrompt,
	types.IntentPolicyQuery:      policyPrompt,
	types.IntentBookingHelp:      bookingHelpPrompt,
	types.IntentDirections:       directionsPrompt,
	types.IntentGeneral:          generalPrompt,
}

func dataSection(result *types.QueryResult) string {
	if result == nil {
		return "No data available."
	}
	var b strings.Builder
	switch result.Entity {
	case types.EntityEvent:
		if len(result.Events) == 0 {
			return "No matching events found."
		}
		b.WriteString("Events:\n")
		for _, e := range result.Events {
			fmt.Fprintf(&b, "- %s at %s on %s", e.Name, e.Venue, e.Date.Format("Mon Jan 2"))
			if e.Time != "" {
				fmt.Fprintf(&b, " %s", e.Time)
			}
			if e.DJArtists != "" {
				fmt.Fprintf(&b, ", lineup: %s", e.DJArtists)
			}
			if e.DistanceText != "" {
				fmt.Fprintf(&b, ", %s away", e.DistanceText)
			}
			if len(e.Tickets) > 0 {
				fmt.Fprintf(&b, ", from %.0f", e.Tickets[0].Price)
			}
			b.WriteString("\n")
		}
	case types.EntityClub:
		if len(result.Clubs) == 0 {
			return "No matching venues found."
		}
		b.WriteString("Venues:\n")
		for _, c := range result.Clubs {
			fmt.Fprintf(&b, "- %s (%s)", c.Name, c.City)
			if c.Rating > 0 {
				fmt.Fprintf(&b, ", rated %.1f", c.Rating)
			}
			if c.DistanceText != "" {
				fmt.Fprintf(&b, ", %s away", c.DistanceText)
			}
			if len(c.Events) > 0 {
				fmt.Fprintf(&b, ", next: %s", c.Events[0].Name)
			}
			b.WriteString("\n")
		}
	case types.EntityUser:
		if len(result.Bookings) == 0 {
			return "The user has no paid bookings."
		}
		b.WriteString("Bookings:\n")
		for _, bk := range result.Bookings {
			fmt.Fprintf(&b, "- %s at %s on %s, %d x %s, status %s\n",
				bk.EventName, bk.ClubName, bk.EventDate.Format("Mon Jan 2"),
				bk.Quantity, bk.TicketName, bk.Status)
		}
	default:
		return "No data available."
	}
	return b.String()
}

func preferencesSection(prefs *types.Preferences) string {
	if prefs == nil {
		return ""
	}
	var parts []string
	if len(prefs.MusicGenres) > 0 {
		parts = append(parts, "likes "+strings.Join(prefs.MusicGenres, ", "))
	}
	if len(prefs.EventTypes) > 0 {
		parts = append(parts, "prefers "+strings.Join(prefs.EventTypes, ", ")+" events")
	}
	if prefs.PriceRange != nil {
		parts = append(parts, fmt.Sprintf("budget %.0f-%.0f", prefs.PriceRange.Min, prefs.PriceRange.Max))
	}
	if len(parts) == 0 {
		return ""
	}
	return "User preferences: " + strings.Join(parts, "; ") + "."
}

func joinPrompt(sections ...string) string {
	var kept []string
	for _, s := range sections {
		if s != "" {
			kept = append(kept, s)
		}
	}
	return strings.Join(kept, "\n\n")
}

func eventsPrompt(pc promptContext) string {
	return joinPrompt(composerBasePrompt,
		"The user is looking for events. Recommend from the data, lead with the best match.",
		preferencesSection(pc.Prefs),
		dataSection(pc.Result))
}

func clubsPrompt(pc promptContext) string {
	return joinPrompt(composerBasePrompt,
		"The user is looking for venues. Recommend from the data, mention distance when present.",
		preferencesSection(pc.Prefs),
		dataSection(pc.Result))
}

func eventQuestionPrompt(pc promptContext) string {
	return joinPrompt(composerBasePrompt,
		"The user is asking about a specific event. Answer from the data only.",
		dataSection(pc.Result))
}

func clubQuestionPrompt(pc promptContext) string {
	return joinPrompt(composerBasePrompt,
		"The user is asking about a specific venue. Answer from the data only.",
		dataSection(pc.Result))
}

func bookingsPrompt(pc promptContext) string {
	return joinPrompt(composerBasePrompt,
		"The user is asking about their bookings. Summarize from the data. If there are none, say so and suggest browsing events.",
		dataSection(pc.Result))
}

func clubRegistrationPrompt(pc promptContext) string {
	return joinPrompt(composerBasePrompt,
		"A venue owner wants to list their club. Walk them through the steps below.",
		clubRegistrationGuide)
}

func policyPrompt(pc promptContext) string {
	return joinPrompt(composerBasePrompt,
		"Answer the policy question using only the policy text below.",
		policyKnowledge(pc.Message))
}

func bookingHelpPrompt(pc promptContext) string {
	return joinPrompt(composerBasePrompt,
		"The user needs help booking. Explain using the flow below.",
		bookingHelpGuide,
		screenContextInfo(pc.Screen))
}

func directionsPrompt(pc promptContext) string {
	return joinPrompt(composerBasePrompt,
		"The user wants directions or distance to a venue. Use the distance data when present and suggest opening the venue's map link.",
		screenContextInfo(pc.Screen),
		dataSection(pc.Result))
}

func generalPrompt(pc promptContext) string {
	return joinPrompt(composerBasePrompt,
		"Reply briefly and offer to help find events or clubs nearby.",
		screenContextInfo(pc.Screen))
}
