package assistant

import (
	"context"
	"io"
	"log/slog"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/iamnithishraja/cavens-assistant/app/observability/metrics"
	"github.com/iamnithishraja/cavens-assistant/internal/api/geo"
	"github.com/iamnithishraja/cavens-assistant/internal/types"
)

func init() {
	// Instruments bind to the global no-op meter provider in tests.
	metrics.InitAppMetrics()
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type MockLLMClient struct {
	mock.Mock
}

func (m *MockLLMClient) ClassifyIntent(ctx context.Context, systemPrompt, message string) (string, error) {
	args := m.Called(ctx, systemPrompt, message)
	return args.String(0), args.Error(1)
}

func (m *MockLLMClient) GenerateText(ctx context.Context, systemPrompt, userMessage string) (string, error) {
	args := m.Called(ctx, systemPrompt, userMessage)
	return args.String(0), args.Error(1)
}

type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) ApprovedClubsByCity(ctx context.Context, city string, limit int) ([]types.Club, error) {
	args := m.Called(ctx, city, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]types.Club), args.Error(1)
}

func (m *MockRepository) ClubsWithUpcomingEvents(ctx context.Context, city string, limit int) ([]types.Club, error) {
	args := m.Called(ctx, city, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]types.Club), args.Error(1)
}

func (m *MockRepository) SearchEvents(ctx context.Context, query, city string, limit int) ([]types.Event, error) {
	args := m.Called(ctx, query, city, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]types.Event), args.Error(1)
}

func (m *MockRepository) FindEventByName(ctx context.Context, name, venue string) (*types.Event, error) {
	args := m.Called(ctx, name, venue)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*types.Event), args.Error(1)
}

func (m *MockRepository) FindClubByName(ctx context.Context, name, city string) (*types.Club, error) {
	args := m.Called(ctx, name, city)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*types.Club), args.Error(1)
}

func (m *MockRepository) PaidOrdersForUser(ctx context.Context, userID uuid.UUID, limit int) ([]types.Booking, error) {
	args := m.Called(ctx, userID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]types.Booking), args.Error(1)
}

func (m *MockRepository) PopularEvents(ctx context.Context, city string, limit int) ([]types.Event, error) {
	args := m.Called(ctx, city, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]types.Event), args.Error(1)
}

type MockGeoResolver struct {
	mock.Mock
}

func (m *MockGeoResolver) Distance(ctx context.Context, originLat, originLng float64, destinationRef, mode string, allowFallback bool) (*geo.DistanceResult, error) {
	args := m.Called(ctx, originLat, originLng, destinationRef, mode, allowFallback)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*geo.DistanceResult), args.Error(1)
}
