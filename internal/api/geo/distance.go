// Package geo resolves the distance between a user coordinate and a venue
// referenced by a Google Maps link or a raw "lat,lng" pair. The Distance
// Matrix API is the primary source; a great-circle estimate covers outages.
package geo

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	MethodDistanceMatrix = "distance-matrix"
	MethodHaversine      = "haversine"

	// UnknownDistanceMeters is the sentinel for venues whose distance could
	// not be resolved. It sorts after every real distance.
	UnknownDistanceMeters = math.MaxFloat64

	UnknownDistanceText = "unknown distance"

	distanceMatrixURL = "https://maps.googleapis.com/maps/api/distancematrix/json"
	earthRadiusMeters = 6371000.0
)

// DistanceResult is one resolved origin-to-destination measurement.
type DistanceResult struct {
	Meters       float64
	Text         string
	DurationText string
	Method       string
}

// Resolver computes travel distance to a destination reference. destinationRef
// is either a maps link or a "lat,lng" string. When allowFallback is false a
// Distance Matrix failure is returned as an error instead of an estimate.
type Resolver interface {
	Distance(ctx context.Context, originLat, originLng float64, destinationRef, mode string, allowFallback bool) (*DistanceResult, error)
}

// MapsResolver implements Resolver against the Google endpoints.
type MapsResolver struct {
	apiKey string
	client *http.Client
	logger *slog.Logger
}

func NewMapsResolver(apiKey string, logger *slog.Logger) *MapsResolver {
	return &MapsResolver{
		apiKey: apiKey,
		client: &http.Client{Timeout: 10 * time.Second},
		logger: logger,
	}
}

// coordPattern matches the "@lat,lng" fragment maps links carry after
// redirect expansion, and plain "lat,lng" references.
var (
	coordPattern     = regexp.MustCompile(`@(-?\d+\.?\d*),(-?\d+\.?\d*)`)
	bareCoordPattern = regexp.MustCompile(`^\s*(-?\d+\.?\d*)\s*,\s*(-?\d+\.?\d*)\s*$`)
)

func (m *MapsResolver) Distance(ctx context.Context, originLat, originLng float64, destinationRef, mode string, allowFallback bool) (*DistanceResult, error) {
	ctx, span := otel.Tracer("GeoResolver").Start(ctx, "Distance", trace.WithAttributes(
		attribute.String("geo.mode", mode),
	))
	defer span.End()

	destLat, destLng, err := m.resolveCoordinates(ctx, destinationRef)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "destination unresolvable")
		return nil, fmt.Errorf("resolve destination coordinates: %w", err)
	}

	if mode == "" {
		mode = "driving"
	}

	result, err := m.distanceMatrix(ctx, originLat, originLng, destLat, destLng, mode)
	if err == nil {
		span.SetStatus(codes.Ok, "distance matrix")
		return result, nil
	}
	if !allowFallback {
		span.RecordError(err)
		span.SetStatus(codes.Error, "distance matrix failed")
		return nil, err
	}

	m.logger.WarnContext(ctx, "distance matrix unavailable, using great-circle estimate",
		slog.Any("error", err))
	meters := Haversine(originLat, originLng, destLat, destLng)
	span.SetAttributes(attribute.String("geo.method", MethodHaversine))
	span.SetStatus(codes.Ok, "haversine fallback")
	return &DistanceResult{
		Meters: meters,
		Text:   FormatDistance(meters),
		Method: MethodHaversine,
	}, nil
}

// resolveCoordinates turns a destination reference into a coordinate pair.
// Bare "lat,lng" strings short-circuit; maps links are fetched so short URLs
// expand through redirects before the "@lat,lng" fragment is scanned.
func (m *MapsResolver) resolveCoordinates(ctx context.Context, ref string) (float64, float64, error) {
	if match := bareCoordPattern.FindStringSubmatch(ref); match != nil {
		return parseCoordPair(match[1], match[2])
	}
	if match := coordPattern.FindStringSubmatch(ref); match != nil {
		return parseCoordPair(match[1], match[2])
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ref, nil)
	if err != nil {
		return 0, 0, fmt.Errorf("build maps link request: %w", err)
	}
	resp, err := m.client.Do(req)
	if err != nil {
		return 0, 0, fmt.Errorf("follow maps link: %w", err)
	}
	defer resp.Body.Close()

	finalURL := resp.Request.URL.String()
	if match := coordPattern.FindStringSubmatch(finalURL); match != nil {
		return parseCoordPair(match[1], match[2])
	}

	// Some consent pages embed the target URL in the body instead.
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err == nil {
		if match := coordPattern.FindSubmatch(body); match != nil {
			return parseCoordPair(string(match[1]), string(match[2]))
		}
	}
	return 0, 0, fmt.Errorf("no coordinates in maps link %q", ref)
}

func parseCoordPair(latStr, lngStr string) (float64, float64, error) {
	lat, err := strconv.ParseFloat(latStr, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("parse latitude %q: %w", latStr, err)
	}
	lng, err := strconv.ParseFloat(lngStr, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("parse longitude %q: %w", lngStr, err)
	}
	if lat < -90 || lat > 90 || lng < -180 || lng > 180 {
		return 0, 0, fmt.Errorf("coordinates out of range: %s,%s", latStr, lngStr)
	}
	return lat, lng, nil
}

type distanceMatrixResponse struct {
	Status string `json:"status"`
	Rows   []struct {
		Elements []struct {
			Status   string `json:"status"`
			Distance struct {
				Text  string `json:"text"`
				Value int    `json:"value"`
			} `json:"distance"`
			Duration struct {
				Text string `json:"text"`
			} `json:"duration"`
		} `json:"elements"`
	} `json:"rows"`
}

func (m *MapsResolver) distanceMatrix(ctx context.Context, originLat, originLng, destLat, destLng float64, mode string) (*DistanceResult, error) {
	params := url.Values{}
	params.Set("origins", fmt.Sprintf("%f,%f", originLat, originLng))
	params.Set("destinations", fmt.Sprintf("%f,%f", destLat, destLng))
	params.Set("mode", mode)
	params.Set("units", "metric")
	params.Set("key", m.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, distanceMatrixURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("build distance matrix request: %w", err)
	}
	resp, err := m.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("distance matrix call: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("distance matrix status %d", resp.StatusCode)
	}

	var parsed distanceMatrixResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode distance matrix response: %w", err)
	}
	if parsed.Status != "OK" || len(parsed.Rows) == 0 || len(parsed.Rows[0].Elements) == 0 {
		return nil, fmt.Errorf("distance matrix response status %q", parsed.Status)
	}
	element := parsed.Rows[0].Elements[0]
	if element.Status != "OK" {
		return nil, fmt.Errorf("distance matrix element status %q", element.Status)
	}

	return &DistanceResult{
		Meters:       float64(element.Distance.Value),
		Text:         element.Distance.Text,
		DurationText: element.Duration.Text,
		Method:       MethodDistanceMatrix,
	}, nil
}

// Haversine returns the great-circle distance in meters between two points.
func Haversine(lat1, lng1, lat2, lng2 float64) float64 {
	dLat := (lat2 - lat1) * math.Pi / 180
	dLng := (lng2 - lng1) * math.Pi / 180
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1*math.Pi/180)*math.Cos(lat2*math.Pi/180)*
			math.Sin(dLng/2)*math.Sin(dLng/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return earthRadiusMeters * c
}

// FormatDistance renders meters for display. The sentinel renders as
// "unknown distance".
func FormatDistance(meters float64) string {
	if meters == UnknownDistanceMeters {
		return UnknownDistanceText
	}
	if meters < 1000 {
		return fmt.Sprintf("%.0f m", meters)
	}
	return fmt.Sprintf("%.1f km", meters/1000)
}
