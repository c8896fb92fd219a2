package metrics

import (
	"log"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

// AppMetrics holds the application's metric instruments.
type AppMetrics struct {
	IntentResolvedTotal       metric.Int64Counter
	FallbackTierTotal         metric.Int64Counter
	ChatDurationSeconds       metric.Float64Histogram
	DistanceLookupErrorsTotal metric.Int64Counter
	StreamSessionsTotal       metric.Int64Counter
}

var (
	appMetrics *AppMetrics
	once       sync.Once
)

// InitAppMetrics initializes the global metrics instruments only once,
// using the Meter from the globally configured MeterProvider.
func InitAppMetrics() {
	once.Do(func() {
		meter := otel.GetMeterProvider().Meter("CavensAssistant")
		var err error
		m := &AppMetrics{}

		m.IntentResolvedTotal, err = meter.Int64Counter(
			"assistant_intent_resolved_total",
			metric.WithDescription("Total resolved intents by type and path"),
			metric.WithUnit("{intent}"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create assistant_intent_resolved_total: %v", err)
		}

		m.FallbackTierTotal, err = meter.Int64Counter(
			"assistant_fallback_tier_total",
			metric.WithDescription("Total query executions by winning fallback tier"),
			metric.WithUnit("{query}"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create assistant_fallback_tier_total: %v", err)
		}

		m.ChatDurationSeconds, err = meter.Float64Histogram(
			"assistant_chat_duration_seconds",
			metric.WithDescription("End-to-end chat pipeline duration in seconds"),
			metric.WithUnit("s"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create assistant_chat_duration_seconds: %v", err)
		}

		m.DistanceLookupErrorsTotal, err = meter.Int64Counter(
			"assistant_distance_lookup_errors_total",
			metric.WithDescription("Total venue distance lookups that fell back to the sentinel"),
			metric.WithUnit("{error}"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create assistant_distance_lookup_errors_total: %v", err)
		}

		m.StreamSessionsTotal, err = meter.Int64Counter(
			"assistant_stream_sessions_total",
			metric.WithDescription("Total streaming chat sessions opened"),
			metric.WithUnit("{session}"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create assistant_stream_sessions_total: %v", err)
		}

		log.Println("Application metrics instruments initialized.")
		appMetrics = m
	})
}

// Get returns the globally initialized AppMetrics instance.
// Panics if InitAppMetrics was not called first.
func Get() *AppMetrics {
	if appMetrics == nil {
		panic("metrics instruments not initialized. Call metrics.InitAppMetrics() first.")
	}
	return appMetrics
}
