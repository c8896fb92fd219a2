// Package store holds the read-only repositories the assistant queries.
// Nothing here writes; booking and club mutations belong to other services.
package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/iamnithishraja/cavens-assistant/internal/types"
)

var _ Repository = (*RepositoryImpl)(nil)

// ErrNotFound signals a by-name lookup with no matching row.
var ErrNotFound = errors.New("store: not found")

// DB is the pgx query surface the repository needs. *pgxpool.Pool satisfies
// it, and so do the pgxmock pools used in tests.
type DB interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type Repository interface {
	ApprovedClubsByCity(ctx context.Context, city string, limit int) ([]types.Club, error)
	ClubsWithUpcomingEvents(ctx context.Context, city string, limit int) ([]types.Club, error)
	SearchEvents(ctx context.Context, query, city string, limit int) ([]types.Event, error)
	FindEventByName(ctx context.Context, name, venue string) (*types.Event, error)
	FindClubByName(ctx context.Context, name, city string) (*types.Club, error)
	PaidOrdersForUser(ctx context.Context, userID uuid.UUID, limit int) ([]types.Booking, error)
	PopularEvents(ctx context.Context, city string, limit int) ([]types.Event, error)
}

type RepositoryImpl struct {
	logger *slog.Logger
	db     DB
}

func NewRepositoryImpl(db DB, logger *slog.Logger) *RepositoryImpl {
	return &RepositoryImpl{
		logger: logger,
		db:     db,
	}
}

const clubColumns = `id, name, city, is_approved, COALESCE(map_link, ''), COALESCE(rating, 0),
		COALESCE(photos, '{}'), COALESCE(type_of_venue, ''), COALESCE(club_description, ''),
		COALESCE(operating_days, '{}'), COALESCE(address, ''), COALESCE(phone, ''), COALESCE(email, '')`

func scanClub(row pgx.Row) (types.Club, error) {
	var c types.Club
	err := row.Scan(&c.ID, &c.Name, &c.City, &c.IsApproved, &c.MapLink, &c.Rating,
		&c.Photos, &c.TypeOfVenue, &c.ClubDescription, &c.OperatingDays,
		&c.Address, &c.Phone, &c.Email)
	return c, err
}

// ApprovedClubsByCity is the generic-listing read: approved venues in the
// city, no event population.
func (r *RepositoryImpl) ApprovedClubsByCity(ctx context.Context, city string, limit int) ([]types.Club, error) {
	ctx, span := otel.Tracer("AssistantRepo").Start(ctx, "ApprovedClubsByCity", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.sql.table", "clubs"),
		attribute.String("city", city),
	))
	defer span.End()

	query := `
		SELECT ` + clubColumns + `
		FROM clubs
		WHERE is_approved = true AND city ILIKE $1
		ORDER BY rating DESC NULLS LAST, name
		LIMIT $2`

	rows, err := r.db.Query(ctx, query, city, limit)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "query failed")
		return nil, fmt.Errorf("query approved clubs: %w", err)
	}
	defer rows.Close()

	var clubs []types.Club
	for rows.Next() {
		c, err := scanClub(rows)
		if err != nil {
			span.RecordError(err)
			return nil, fmt.Errorf("scan club: %w", err)
		}
		clubs = append(clubs, c)
	}
	if err := rows.Err(); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("iterate clubs: %w", err)
	}
	span.SetStatus(codes.Ok, "clubs fetched")
	return clubs, nil
}

// ClubsWithUpcomingEvents returns approved clubs in the city with their
// active, future-dated events and ticket tiers populated.
func (r *RepositoryImpl) ClubsWithUpcomingEvents(ctx context.Context, city string, limit int) ([]types.Club, error) {
	ctx, span := otel.Tracer("AssistantRepo").Start(ctx, "ClubsWithUpcomingEvents", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.sql.table", "clubs"),
		attribute.String("city", city),
	))
	defer span.End()

	clubs, err := r.ApprovedClubsByCity(ctx, city, limit)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "club query failed")
		return nil, err
	}
	if len(clubs) == 0 {
		span.SetStatus(codes.Ok, "no clubs")
		return clubs, nil
	}

	clubIDs := make([]uuid.UUID, len(clubs))
	for i, c := range clubs {
		clubIDs[i] = c.ID
	}

	eventQuery := `
		SELECT e.id, e.club_id, e.name, COALESCE(e.description, ''), e.date,
			COALESCE(e.time, ''), COALESCE(e.dj_artists, ''), COALESCE(e.guest_experience, ''),
			COALESCE(e.cover_image, ''), e.status, e.is_featured, COALESCE(e.featured_number, 0)
		FROM events e
		WHERE e.club_id = ANY($1) AND e.status = $2 AND e.date >= NOW()
		ORDER BY e.date`

	rows, err := r.db.Query(ctx, eventQuery, clubIDs, types.EventStatusActive)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "event query failed")
		return nil, fmt.Errorf("query upcoming events: %w", err)
	}
	defer rows.Close()

	eventsByClub := make(map[uuid.UUID][]types.Event)
	var eventIDs []uuid.UUID
	for rows.Next() {
		var e types.Event
		if err := rows.Scan(&e.ID, &e.ClubID, &e.Name, &e.Description, &e.Date,
			&e.Time, &e.DJArtists, &e.GuestExperience, &e.CoverImage,
			&e.Status, &e.IsFeatured, &e.FeaturedNumber); err != nil {
			span.RecordError(err)
			return nil, fmt.Errorf("scan event: %w", err)
		}
		eventsByClub[e.ClubID] = append(eventsByClub[e.ClubID], e)
		eventIDs = append(eventIDs, e.ID)
	}
	if err := rows.Err(); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("iterate events: %w", err)
	}

	ticketsByEvent, err := r.ticketsForEvents(ctx, eventIDs)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "ticket query failed")
		return nil, err
	}

	for ci := range clubs {
		events := eventsByClub[clubs[ci].ID]
		for ei := range events {
			events[ei].Venue = clubs[ci].Name
			events[ei].City = clubs[ci].City
			events[ei].Tickets = ticketsByEvent[events[ei].ID]
		}
		clubs[ci].Events = events
	}
	span.SetStatus(codes.Ok, "clubs with events fetched")
	return clubs, nil
}

func (r *RepositoryImpl) ticketsForEvents(ctx context.Context, eventIDs []uuid.UUID) (map[uuid.UUID][]types.Ticket, error) {
	ticketsByEvent := make(map[uuid.UUID][]types.Ticket)
	if len(eventIDs) == 0 {
		return ticketsByEvent, nil
	}

	query := `
		SELECT id, event_id, name, price, COALESCE(description, ''),
			quantity_available, quantity_sold
		FROM tickets
		WHERE event_id = ANY($1)
		ORDER BY price`

	rows, err := r.db.Query(ctx, query, eventIDs)
	if err != nil {
		return nil, fmt.Errorf("query tickets: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var t types.Ticket
		if err := rows.Scan(&t.ID, &t.EventID, &t.Name, &t.Price, &t.Description,
			&t.QuantityAvailable, &t.QuantitySold); err != nil {
			return nil, fmt.Errorf("scan ticket: %w", err)
		}
		ticketsByEvent[t.EventID] = append(ticketsByEvent[t.EventID], t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tickets: %w", err)
	}
	return ticketsByEvent, nil
}

const eventWithVenueColumns = `e.id, e.club_id, e.name, COALESCE(e.description, ''), e.date,
		COALESCE(e.time, ''), COALESCE(e.dj_artists, ''), COALESCE(e.guest_experience, ''),
		COALESCE(e.cover_image, ''), e.status, e.is_featured, COALESCE(e.featured_number, 0),
		c.name, c.city`

func scanEventWithVenue(rows pgx.Rows) (types.Event, error) {
	var e types.Event
	err := rows.Scan(&e.ID, &e.ClubID, &e.Name, &e.Description, &e.Date,
		&e.Time, &e.DJArtists, &e.GuestExperience, &e.CoverImage,
		&e.Status, &e.IsFeatured, &e.FeaturedNumber, &e.Venue, &e.City)
	return e, err
}

// SearchEvents matches the free-text query against event name, description,
// and lineup. City narrows the venue when provided.
func (r *RepositoryImpl) SearchEvents(ctx context.Context, query, city string, limit int) ([]types.Event, error) {
	ctx, span := otel.Tracer("AssistantRepo").Start(ctx, "SearchEvents", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.sql.table", "events"),
		attribute.String("city", city),
	))
	defer span.End()

	sql := `
		SELECT ` + eventWithVenueColumns + `
		FROM events e
		JOIN clubs c ON c.id = e.club_id
		WHERE c.is_approved = true
			AND e.status = $1 AND e.date >= NOW()
			AND (e.name ILIKE $2 OR e.description ILIKE $2 OR e.dj_artists ILIKE $2)
			AND ($3 = '' OR c.city ILIKE $3)
		ORDER BY e.date
		LIMIT $4`

	rows, err := r.db.Query(ctx, sql, types.EventStatusActive, "%"+query+"%", city, limit)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "query failed")
		return nil, fmt.Errorf("search events: %w", err)
	}
	defer rows.Close()

	var events []types.Event
	for rows.Next() {
		e, err := scanEventWithVenue(rows)
		if err != nil {
			span.RecordError(err)
			return nil, fmt.Errorf("scan event: %w", err)
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	span.SetStatus(codes.Ok, "events searched")
	return events, nil
}

// FindEventByName returns the nearest upcoming event whose name matches,
// narrowed by venue name when provided. ErrNotFound when nothing matches.
func (r *RepositoryImpl) FindEventByName(ctx context.Context, name, venue string) (*types.Event, error) {
	ctx, span := otel.Tracer("AssistantRepo").Start(ctx, "FindEventByName", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.sql.table", "events"),
	))
	defer span.End()

	venueArg := ""
	if venue != "" {
		venueArg = "%" + venue + "%"
	}

	sql := `
		SELECT ` + eventWithVenueColumns + `
		FROM events e
		JOIN clubs c ON c.id = e.club_id
		WHERE c.is_approved = true AND e.status = $1 AND e.name ILIKE $2
			AND ($3 = '' OR c.name ILIKE $3)
		ORDER BY e.date
		LIMIT 1`

	rows, err := r.db.Query(ctx, sql, types.EventStatusActive, "%"+name+"%", venueArg)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "query failed")
		return nil, fmt.Errorf("find event by name: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			span.RecordError(err)
			return nil, fmt.Errorf("find event by name: %w", err)
		}
		span.SetStatus(codes.Ok, "no match")
		return nil, ErrNotFound
	}
	e, err := scanEventWithVenue(rows)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("scan event: %w", err)
	}
	span.SetStatus(codes.Ok, "event found")
	return &e, nil
}

// FindClubByName returns the best-rated approved club matching the name,
// narrowed by city when provided. ErrNotFound when nothing matches.
func (r *RepositoryImpl) FindClubByName(ctx context.Context, name, city string) (*types.Club, error) {
	ctx, span := otel.Tracer("AssistantRepo").Start(ctx, "FindClubByName", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.sql.table", "clubs"),
		attribute.String("city", city),
	))
	defer span.End()

	sql := `
		SELECT ` + clubColumns + `
		FROM clubs
		WHERE is_approved = true AND name ILIKE $1 AND ($2 = '' OR city ILIKE $2)
		ORDER BY rating DESC NULLS LAST
		LIMIT 1`

	rows, err := r.db.Query(ctx, sql, "%"+name+"%", city)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "query failed")
		return nil, fmt.Errorf("find club by name: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			span.RecordError(err)
			return nil, fmt.Errorf("find club by name: %w", err)
		}
		span.SetStatus(codes.Ok, "no match")
		return nil, ErrNotFound
	}
	c, err := scanClub(rows)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("scan club: %w", err)
	}
	span.SetStatus(codes.Ok, "club found")
	return &c, nil
}

// PaidOrdersForUser returns the user's paid bookings newest-first, joined
// with event, ticket, and club names for rendering.
func (r *RepositoryImpl) PaidOrdersForUser(ctx context.Context, userID uuid.UUID, limit int) ([]types.Booking, error) {
	ctx, span := otel.Tracer("AssistantRepo").Start(ctx, "PaidOrdersForUser", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.sql.table", "orders"),
		attribute.String("user.id", userID.String()),
	))
	defer span.End()

	sql := `
		SELECT o.id, o.user_id, o.event_id, o.club_id, o.ticket_id, o.quantity,
			o.status, o.is_paid, o.created_at,
			e.name, e.date, c.name, t.name
		FROM orders o
		JOIN events e ON e.id = o.event_id
		JOIN clubs c ON c.id = o.club_id
		JOIN tickets t ON t.id = o.ticket_id
		WHERE o.user_id = $1 AND o.is_paid = true
		ORDER BY o.created_at DESC
		LIMIT $2`

	rows, err := r.db.Query(ctx, sql, userID, limit)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "query failed")
		return nil, fmt.Errorf("query paid orders: %w", err)
	}
	defer rows.Close()

	var bookings []types.Booking
	for rows.Next() {
		var b types.Booking
		if err := rows.Scan(&b.ID, &b.UserID, &b.EventID, &b.ClubID, &b.TicketID,
			&b.Quantity, &b.Status, &b.IsPaid, &b.CreatedAt,
			&b.EventName, &b.EventDate, &b.ClubName, &b.TicketName); err != nil {
			span.RecordError(err)
			return nil, fmt.Errorf("scan booking: %w", err)
		}
		bookings = append(bookings, b)
	}
	if err := rows.Err(); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("iterate bookings: %w", err)
	}
	span.SetStatus(codes.Ok, "bookings fetched")
	return bookings, nil
}

// PopularEvents returns upcoming events for the city, featured ones first,
// for the suggestions endpoint.
func (r *RepositoryImpl) PopularEvents(ctx context.Context, city string, limit int) ([]types.Event, error) {
	ctx, span := otel.Tracer("AssistantRepo").Start(ctx, "PopularEvents", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.sql.table", "events"),
		attribute.String("city", city),
	))
	defer span.End()

	sql := `
		SELECT ` + eventWithVenueColumns + `
		FROM events e
		JOIN clubs c ON c.id = e.club_id
		WHERE c.is_approved = true AND e.status = $1 AND e.date >= NOW()
			AND ($2 = '' OR c.city ILIKE $2)
		ORDER BY e.is_featured DESC, e.featured_number DESC, e.date
		LIMIT $3`

	rows, err := r.db.Query(ctx, sql, types.EventStatusActive, city, limit)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "query failed")
		return nil, fmt.Errorf("query popular events: %w", err)
	}
	defer rows.Close()

	var events []types.Event
	for rows.Next() {
		e, err := scanEventWithVenue(rows)
		if err != nil {
			span.RecordError(err)
			return nil, fmt.Errorf("scan event: %w", err)
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	span.SetStatus(codes.Ok, "popular events fetched")
	return events, nil
}
