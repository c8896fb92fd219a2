package types

import (
	"time"

	"github.com/google/uuid"
)

// Club is one venue row. Events and DistanceMeters are populated only on the
// read paths that ask for them.
type Club struct {
	ID              uuid.UUID `json:"id"`
	Name            string    `json:"name"`
	City            string    `json:"city"`
	IsApproved      bool      `json:"isApproved"`
	MapLink         string    `json:"mapLink,omitempty"`
	Rating          float64   `json:"rating,omitempty"`
	Photos          []string  `json:"photos,omitempty"`
	TypeOfVenue     string    `json:"typeOfVenue,omitempty"`
	ClubDescription string    `json:"clubDescription,omitempty"`
	OperatingDays   []string  `json:"operatingDays,omitempty"`
	Address         string    `json:"address,omitempty"`
	Phone           string    `json:"phone,omitempty"`
	Email           string    `json:"email,omitempty"`

	Events []Event `json:"events,omitempty"`

	// DistanceMeters is nil until a geo lookup ran for this club. A value of
	// math.MaxFloat64 means the lookup failed; DistanceText then reads
	// "unknown distance".
	DistanceMeters *float64 `json:"distanceMeters,omitempty"`
	DistanceText   string   `json:"distanceText,omitempty"`
}

// Event is one event row, denormalized with its venue for card rendering.
type Event struct {
	ID              uuid.UUID `json:"id"`
	ClubID          uuid.UUID `json:"clubId"`
	Name            string    `json:"name"`
	Description     string    `json:"description,omitempty"`
	Date            time.Time `json:"date"`
	Time            string    `json:"time,omitempty"`
	DJArtists       string    `json:"djArtists,omitempty"`
	GuestExperience string    `json:"guestExperience,omitempty"`
	CoverImage      string    `json:"coverImage,omitempty"`
	Status          string    `json:"status"`
	IsFeatured      bool      `json:"isFeatured,omitempty"`
	FeaturedNumber  int       `json:"featuredNumber,omitempty"`

	Venue string `json:"venue,omitempty"`
	City  string `json:"city,omitempty"`

	// Distance fields are copied from the owning club when events are
	// flattened out of a geo-augmented club listing. Same sentinel rules
	// as Club.DistanceMeters.
	DistanceMeters *float64 `json:"distanceMeters,omitempty"`
	DistanceText   string   `json:"distanceText,omitempty"`

	Tickets []Ticket `json:"tickets,omitempty"`
}

const EventStatusActive = "active"

// Ticket is one ticket tier of an event.
type Ticket struct {
	ID                uuid.UUID `json:"id"`
	EventID           uuid.UUID `json:"eventId"`
	Name              string    `json:"name"`
	Price             float64   `json:"price"`
	Description       string    `json:"description,omitempty"`
	QuantityAvailable int       `json:"quantityAvailable"`
	QuantitySold      int       `json:"quantitySold"`
}

// Booking is a paid order joined with its event, ticket, and club.
type Booking struct {
	ID        uuid.UUID `json:"id"`
	UserID    uuid.UUID `json:"userId"`
	EventID   uuid.UUID `json:"eventId"`
	ClubID    uuid.UUID `json:"clubId"`
	TicketID  uuid.UUID `json:"ticketId"`
	Quantity  int       `json:"quantity"`
	Status    string    `json:"status"`
	IsPaid    bool      `json:"isPaid"`
	CreatedAt time.Time `json:"createdAt"`

	EventName  string    `json:"eventName,omitempty"`
	EventDate  time.Time `json:"eventDate,omitempty"`
	ClubName   string    `json:"clubName,omitempty"`
	TicketName string    `json:"ticketName,omitempty"`
}
