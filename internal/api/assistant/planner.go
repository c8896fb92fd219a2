package assistant

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"golang.org/x/sync/errgroup"

	"github.com/iamnithishraja/cavens-assistant/app/observability/metrics"
	"github.com/iamnithishraja/cavens-assistant/internal/api/geo"
	"github.com/iamnithishraja/cavens-assistant/internal/api/llm"
	"github.com/iamnithishraja/cavens-assistant/internal/api/store"
	"github.com/iamnithishraja/cavens-assistant/internal/types"
)

const (
	defaultResultLimit = 10
	geoFanOutLimit     = 5
)

// Planner turns an intent into store reads, degrading through three tiers:
// a model-generated plan, a deterministic rule plan, then a generic approved
// club listing for the city.
type Planner struct {
	llm    llm.Client
	repo   store.Repository
	geo    geo.Resolver
	logger *slog.Logger
	limit  int
}

// NewPlanner builds a planner capping result sets at limit; zero means the
// default cap.
func NewPlanner(client llm.Client, repo store.Repository, resolver geo.Resolver, logger *slog.Logger, limit int) *Planner {
	if limit <= 0 {
		limit = defaultResultLimit
	}
	return &Planner{
		llm:    client,
		repo:   repo,
		geo:    resolver,
		logger: logger,
		limit:  limit,
	}
}

// needsData reports whether the intent requires a store read at all.
// Knowledge intents compose from fixed text.
func needsData(t types.IntentType) bool {
	switch t {
	case types.IntentClubRegistration, types.IntentPolicyQuery,
		types.IntentBookingHelp, types.IntentGeneral:
		return false
	}
	return true
}

// ExecuteChain runs the fallback chain. An error means every tier failed,
// generic listing included, and the request has nothing to compose from.
// The winning tier is recorded on the result and in metrics.
func (p *Planner) ExecuteChain(ctx context.Context, intent types.Intent, req types.ChatRequest, userID uuid.UUID) (*types.QueryResult, error) {
	ctx, span := otel.Tracer("Planner").Start(ctx, "ExecuteChain")
	defer span.End()

	result, err := p.runTiers(ctx, intent, req, userID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "all tiers failed")
		return nil, err
	}

	if req.UserLocation != nil && result.Entity == types.EntityClub && len(result.Clubs) > 0 {
		if intent.Slots.NearMe || intent.Type == types.IntentDirections {
			p.attachDistances(ctx, result.Clubs, *req.UserLocation)
			sortClubsByDistance(result.Clubs)
		}
	}

	// Near-me event discovery goes through clubs; flatten back to events.
	// Clubs without populated events stay a club result so the answer can
	// still name venues.
	if wantsEvents(intent.Type) && result.Entity == types.EntityClub {
		if events := flattenEvents(result.Clubs, p.limit); len(events) > 0 {
			result.Events = events
			result.Entity = types.EntityEvent
		}
	}

	span.SetAttributes(
		attribute.String("query.tier", string(result.Tier)),
		attribute.String("query.entity", string(result.Entity)),
	)
	span.SetStatus(codes.Ok, "chain executed")
	metrics.Get().FallbackTierTotal.Add(ctx, 1,
		metric.WithAttributes(attribute.String("tier", string(result.Tier))))
	return result, nil
}

func (p *Planner) runTiers(ctx context.Context, intent types.Intent, req types.ChatRequest, userID uuid.UUID) (*types.QueryResult, error) {
	if plan, err := p.aiPlan(ctx, intent, req); err == nil {
		plan.UserID = userID
		if result, err := p.execute(ctx, plan); err == nil {
			result.Tier = types.TierAIPlan
			return result, nil
		} else {
			p.logger.WarnContext(ctx, "model-generated plan failed, trying rule plan",
				slog.Any("error", err))
		}
	} else {
		p.logger.DebugContext(ctx, "no usable model-generated plan", slog.Any("error", err))
	}

	if plan := p.rulePlan(intent, req, userID); plan != nil {
		if result, err := p.execute(ctx, plan); err == nil {
			result.Tier = types.TierRulePlan
			return result, nil
		} else {
			p.logger.WarnContext(ctx, "rule plan failed, falling back to generic listing",
				slog.Any("error", err))
		}
	}

	// An empty generic listing is still a successful result; only a failing
	// read here makes the whole chain fatal.
	clubs, err := p.repo.ApprovedClubsByCity(ctx, req.City, p.limit)
	if err != nil {
		p.logger.ErrorContext(ctx, "generic listing failed, no tier left",
			slog.Any("error", err))
		return nil, fmt.Errorf("generic listing: %w", err)
	}
	return &types.QueryResult{
		Clubs:  clubs,
		Entity: types.EntityClub,
		Tier:   types.TierGenericListing,
	}, nil
}

const planSystemPrompt = `You translate a nightlife search request into one query plan.
Respond with ONLY a JSON object:
{"model":"Event","query":"search terms","populate":false}

model is one of "Event" (search events), "Club" (list venues), "User" (the
user's bookings). query holds search terms for Event, or the venue name for
Club, and may be empty. populate true means include upcoming events for each
venue (Club only).`

type rawPlan struct {
	Model    string `json:"model"`
	Query    string `json:"query"`
	Populate bool   `json:"populate"`
}

// aiPlan asks the model for a query plan. Any parse or validation failure is
// an error so the chain can move to the rule tier.
func (p *Planner) aiPlan(ctx context.Context, intent types.Intent, req types.ChatRequest) (*types.QueryPlan, error) {
	if !needsData(intent.Type) {
		return nil, fmt.Errorf("intent %s takes no query plan", intent.Type)
	}

	payload := fmt.Sprintf("Intent: %s\nCity: %s\nMessage: %s", intent.Type, req.City, req.Message)
	raw, err := p.llm.GenerateText(ctx, planSystemPrompt, payload)
	if err != nil {
		return nil, fmt.Errorf("plan generation: %w", err)
	}

	cleaned := strings.TrimSpace(raw)
	if match := jsonObjectPattern.FindString(cleaned); match != "" {
		cleaned = match
	}
	var rp rawPlan
	if err := json.Unmarshal([]byte(cleaned), &rp); err != nil {
		return nil, fmt.Errorf("parse plan JSON: %w", err)
	}

	target := types.EntityKind(rp.Model)
	switch target {
	case types.EntityClub, types.EntityEvent, types.EntityUser:
	default:
		return nil, fmt.Errorf("plan names unknown model %q", rp.Model)
	}

	plan := &types.QueryPlan{
		Target:         target,
		City:           req.City,
		UpcomingOnly:   true,
		PopulateEvents: rp.Populate,
		Limit:          p.limit,
	}
	if rp.Query != "" && target != types.EntityUser {
		plan.NameContains = rp.Query
	}
	return plan, nil
}

// rulePlan builds the deterministic per-intent plan. Nil means the intent
// has no rule-tier read and the chain drops straight to the generic listing.
func (p *Planner) rulePlan(intent types.Intent, req types.ChatRequest, userID uuid.UUID) *types.QueryPlan {
	switch intent.Type {
	case types.IntentFindEvents, types.IntentFilterEvents:
		if intent.Slots.NearMe && req.UserLocation != nil {
			return &types.QueryPlan{
				Target:         types.EntityClub,
				City:           req.City,
				UpcomingOnly:   true,
				PopulateEvents: true,
				Limit:          p.limit,
			}
		}
		return &types.QueryPlan{
			Target:       types.EntityEvent,
			City:         req.City,
			NameContains: intent.Query,
			UpcomingOnly: true,
			Limit:        p.limit,
		}
	case types.IntentEventQuestion:
		name := intent.Slots.EventName
		if name == "" {
			name = intent.Query
		}
		return &types.QueryPlan{
			Target:        types.EntityEvent,
			NameContains:  name,
			VenueContains: intent.Slots.ClubName,
			UpcomingOnly:  true,
			Limit:         1,
		}
	case types.IntentFindClubs, types.IntentFilterClubs:
		return &types.QueryPlan{
			Target:         types.EntityClub,
			City:           req.City,
			UpcomingOnly:   true,
			PopulateEvents: true,
			Limit:          p.limit,
		}
	case types.IntentClubQuestion, types.IntentDirections:
		name := intent.Slots.ClubName
		if name == "" {
			name = intent.Query
		}
		return &types.QueryPlan{
			Target:       types.EntityClub,
			City:         req.City,
			NameContains: name,
			Limit:        1,
		}
	case types.IntentMyBookings, types.IntentBookingStatus, types.IntentBookingDetails:
		return &types.QueryPlan{
			Target: types.EntityUser,
			UserID: userID,
			Limit:  p.limit,
		}
	}
	return nil
}

// execute runs one plan against the store.
func (p *Planner) execute(ctx context.Context, plan *types.QueryPlan) (*types.QueryResult, error) {
	switch plan.Target {
	case types.EntityEvent:
		if plan.Limit == 1 && plan.NameContains != "" {
			event, err := p.repo.FindEventByName(ctx, plan.NameContains, plan.VenueContains)
			if err != nil {
				return nil, err
			}
			return &types.QueryResult{Events: []types.Event{*event}, Entity: types.EntityEvent}, nil
		}
		query := plan.NameContains
		if query == "" {
			return nil, fmt.Errorf("event search needs a query")
		}
		events, err := p.repo.SearchEvents(ctx, query, plan.City, plan.Limit)
		if err != nil {
			return nil, err
		}
		return &types.QueryResult{Events: events, Entity: types.EntityEvent}, nil

	case types.EntityClub:
		if plan.NameContains != "" && plan.Limit == 1 {
			club, err := p.repo.FindClubByName(ctx, plan.NameContains, plan.City)
			if err != nil {
				return nil, err
			}
			return &types.QueryResult{Clubs: []types.Club{*club}, Entity: types.EntityClub}, nil
		}
		var clubs []types.Club
		var err error
		if plan.PopulateEvents {
			clubs, err = p.repo.ClubsWithUpcomingEvents(ctx, plan.City, plan.Limit)
		} else {
			clubs, err = p.repo.ApprovedClubsByCity(ctx, plan.City, plan.Limit)
		}
		if err != nil {
			return nil, err
		}
		return &types.QueryResult{Clubs: clubs, Entity: types.EntityClub}, nil

	case types.EntityUser:
		if plan.UserID == uuid.Nil {
			return nil, fmt.Errorf("bookings plan needs a user")
		}
		bookings, err := p.repo.PaidOrdersForUser(ctx, plan.UserID, plan.Limit)
		if err != nil {
			return nil, err
		}
		return &types.QueryResult{Bookings: bookings, Entity: types.EntityUser}, nil
	}
	return nil, fmt.Errorf("unknown plan target %q", plan.Target)
}

// attachDistances resolves the distance from the user to every club
// concurrently. Failures get the sentinel; the slice is mutated in place.
func (p *Planner) attachDistances(ctx context.Context, clubs []types.Club, loc types.UserLocation) {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(geoFanOutLimit)

	for i := range clubs {
		g.Go(func() error {
			club := &clubs[i]
			if club.MapLink == "" {
				meters := geo.UnknownDistanceMeters
				club.DistanceMeters = &meters
				club.DistanceText = geo.UnknownDistanceText
				return nil
			}
			result, err := p.geo.Distance(gctx, loc.Latitude, loc.Longitude, club.MapLink, "driving", true)
			if err != nil {
				p.logger.WarnContext(gctx, "distance lookup failed",
					slog.String("club", club.Name),
					slog.Any("error", err))
				metrics.Get().DistanceLookupErrorsTotal.Add(gctx, 1)
				meters := geo.UnknownDistanceMeters
				club.DistanceMeters = &meters
				club.DistanceText = geo.UnknownDistanceText
				return nil
			}
			club.DistanceMeters = &result.Meters
			club.DistanceText = result.Text
			return nil
		})
	}
	// Workers only return nil; the group exists for the concurrency cap.
	_ = g.Wait()
}

// sortClubsByDistance orders ascending; sentinel distances land last and
// unresolved clubs keep their relative order.
func sortClubsByDistance(clubs []types.Club) {
	sort.SliceStable(clubs, func(i, j int) bool {
		di, dj := geo.UnknownDistanceMeters, geo.UnknownDistanceMeters
		if clubs[i].DistanceMeters != nil {
			di = *clubs[i].DistanceMeters
		}
		if clubs[j].DistanceMeters != nil {
			dj = *clubs[j].DistanceMeters
		}
		return di < dj
	})
}

// flattenEvents lifts populated events out of a club set, preserving club
// order, capped at limit. Each event inherits the club's venue name, city,
// and any computed distance.
func flattenEvents(clubs []types.Club, limit int) []types.Event {
	var events []types.Event
	for _, club := range clubs {
		for _, event := range club.Events {
			if event.Venue == "" {
				event.Venue = club.Name
			}
			if event.City == "" {
				event.City = club.City
			}
			if club.DistanceMeters != nil {
				event.DistanceMeters = club.DistanceMeters
				event.DistanceText = club.DistanceText
			}
			events = append(events, event)
			if len(events) >= limit {
				return events
			}
		}
	}
	return events
}

func wantsEvents(t types.IntentType) bool {
	switch t {
	case types.IntentFindEvents, types.IntentFilterEvents, types.IntentEventQuestion:
		return true
	}
	return false
}
