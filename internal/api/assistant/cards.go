package assistant

import (
	"github.com/iamnithishraja/cavens-assistant/internal/api/geo"
	"github.com/iamnithishraja/cavens-assistant/internal/types"
)

// AssembleCards builds the structured card payload for intents that render
// cards. Nil when the intent hides cards or there is nothing to show.
func AssembleCards(intent types.Intent, result *types.QueryResult) []types.CardBlock {
	if !intent.ShowCards || result == nil {
		return nil
	}

	switch result.Entity {
	case types.EntityEvent:
		return eventCards(result.Events)
	case types.EntityClub:
		return clubCards(result.Clubs)
	case types.EntityUser:
		return bookingCards(result.Bookings)
	}
	return nil
}

func eventCards(events []types.Event) []types.CardBlock {
	if len(events) == 0 {
		return nil
	}
	items := make([]types.CardItem, 0, types.MaxCardItems)
	for _, e := range events {
		if len(items) == types.MaxCardItems {
			break
		}
		item := types.CardItem{
			ID:       e.ID,
			Name:     e.Name,
			Venue:    e.Venue,
			City:     e.City,
			Date:     e.Date.Format("Mon, Jan 2"),
			Time:     e.Time,
			ImageURL: e.CoverImage,
		}
		if e.DistanceText != "" && e.DistanceText != geo.UnknownDistanceText {
			item.DistanceText = e.DistanceText
		}
		items = append(items, item)
	}
	return []types.CardBlock{{
		Type:  types.CardTypeEvents,
		Title: "Events for you",
		Items: items,
	}}
}

func clubCards(clubs []types.Club) []types.CardBlock {
	if len(clubs) == 0 {
		return nil
	}
	items := make([]types.CardItem, 0, types.MaxCardItems)
	for _, c := range clubs {
		if len(items) == types.MaxCardItems {
			break
		}
		item := types.CardItem{
			ID:     c.ID,
			Name:   c.Name,
			City:   c.City,
			Rating: c.Rating,
		}
		if len(c.Photos) > 0 {
			item.ImageURL = c.Photos[0]
		}
		if c.DistanceText != "" && c.DistanceText != geo.UnknownDistanceText {
			item.DistanceText = c.DistanceText
		}
		items = append(items, item)
	}
	return []types.CardBlock{{
		Type:  types.CardTypeClubs,
		Title: "Venues nearby",
		Items: items,
	}}
}

func bookingCards(bookings []types.Booking) []types.CardBlock {
	if len(bookings) == 0 {
		return nil
	}
	items := make([]types.CardItem, 0, types.MaxCardItems)
	for _, b := range bookings {
		if len(items) == types.MaxCardItems {
			break
		}
		items = append(items, types.CardItem{
			ID:     b.ID,
			Name:   b.EventName,
			Venue:  b.ClubName,
			Date:   b.EventDate.Format("Mon, Jan 2"),
			Status: b.Status,
		})
	}
	return []types.CardBlock{{
		Type:  types.CardTypeMixed,
		Title: "Your bookings",
		Items: items,
	}}
}
