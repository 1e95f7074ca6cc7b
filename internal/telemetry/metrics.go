package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics holds all application metrics
type Metrics struct {
	RequestCounter   metric.Int64Counter
	RequestDuration  metric.Float64Histogram
	SearchCounter    metric.Int64Counter
	SearchDuration   metric.Float64Histogram
	FallbackCounter  metric.Int64Counter
	ChunksIndexed    metric.Int64Counter
	IndexErrors      metric.Int64Counter
	EmbeddingCalls   metric.Int64Counter
	IndexRunDuration metric.Float64Histogram
}

// InitMetrics initializes all application metrics
func InitMetrics() (*Metrics, error) {
	meter := otel.Meter("ai-search-service")

	requestCounter, err := meter.Int64Counter(
		"http.requests.total",
		metric.WithDescription("Total HTTP requests"),
	)
	if err != nil {
		return nil, err
	}

	requestDuration, err := meter.Float64Histogram(
		"http.request.duration",
		metric.WithDescription("HTTP request duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	searchCounter, err := meter.Int64Counter(
		"search.queries.total",
		metric.WithDescription("Total search queries by mode"),
	)
	if err != nil {
		return nil, err
	}

	searchDuration, err := meter.Float64Histogram(
		"search.query.duration",
		metric.WithDescription("Search query duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	fallbackCounter, err := meter.Int64Counter(
		"search.fallbacks.total",
		metric.WithDescription("Semantic searches degraded to keyword mode"),
	)
	if err != nil {
		return nil, err
	}

	chunksIndexed, err := meter.Int64Counter(
		"index.chunks.total",
		metric.WithDescription("Total chunks upserted to the vector store"),
	)
	if err != nil {
		return nil, err
	}

	indexErrors, err := meter.Int64Counter(
		"index.errors.total",
		metric.WithDescription("Chunks that failed to index"),
	)
	if err != nil {
		return nil, err
	}

	embeddingCalls, err := meter.Int64Counter(
		"embeddings.calls.total",
		metric.WithDescription("Embedding provider calls"),
	)
	if err != nil {
		return nil, err
	}

	indexRunDuration, err := meter.Float64Histogram(
		"index.run.duration",
		metric.WithDescription("Collection indexing run duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	return &Metrics{
		RequestCounter:   requestCounter,
		RequestDuration:  requestDuration,
		SearchCounter:    searchCounter,
		SearchDuration:   searchDuration,
		FallbackCounter:  fallbackCounter,
		ChunksIndexed:    chunksIndexed,
		IndexErrors:      indexErrors,
		EmbeddingCalls:   embeddingCalls,
		IndexRunDuration: indexRunDuration,
	}, nil
}

// RecordRequest records HTTP request metrics
func (m *Metrics) RecordRequest(method, path, status string, duration float64) {
	attrs := []attribute.KeyValue{
		attribute.String("http.method", method),
		attribute.String("http.path", path),
		attribute.String("http.status", status),
	}

	m.RequestCounter.Add(context.Background(), 1, metric.WithAttributes(attrs...))
	m.RequestDuration.Record(context.Background(), duration, metric.WithAttributes(attrs...))
}

// RecordSearch records a completed search query
func (m *Metrics) RecordSearch(mode string, fellBack bool, duration float64) {
	attrs := []attribute.KeyValue{
		attribute.String("search.mode", mode),
	}

	m.SearchCounter.Add(context.Background(), 1, metric.WithAttributes(attrs...))
	m.SearchDuration.Record(context.Background(), duration, metric.WithAttributes(attrs...))
	if fellBack {
		m.FallbackCounter.Add(context.Background(), 1)
	}
}

// RecordIndexRun records the outcome of one collection indexing run
func (m *Metrics) RecordIndexRun(collectionID string, indexed, errors int, duration float64) {
	attrs := []attribute.KeyValue{
		attribute.String("collection.id", collectionID),
	}

	m.ChunksIndexed.Add(context.Background(), int64(indexed), metric.WithAttributes(attrs...))
	m.IndexErrors.Add(context.Background(), int64(errors), metric.WithAttributes(attrs...))
	m.IndexRunDuration.Record(context.Background(), duration, metric.WithAttributes(attrs...))
}

// RecordEmbeddingCall records one embedding provider round trip
func (m *Metrics) RecordEmbeddingCall(texts int) {
	m.EmbeddingCalls.Add(context.Background(), 1, metric.WithAttributes(
		attribute.Int("embeddings.batch_size", texts),
	))
}
