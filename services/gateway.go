package services

import (
	"context"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"ai-search-service/internal/logger"
	"ai-search-service/internal/telemetry"
	"ai-search-service/models"
)

const suggestionLimit = 10

// SearchGateway is the single entry point for searches. It picks the
// retrieval mode from settings and availability, degrades semantic
// failures to keyword mode exactly once, and records query history.
type SearchGateway struct {
	settings SettingsSource
	semantic *QueryPipeline // nil when the semantic path is not configured
	keyword  *KeywordSearch
	history  HistorySink
	repo     ContentRepository
	metrics  *telemetry.Metrics
}

func NewSearchGateway(
	settings SettingsSource,
	semantic *QueryPipeline,
	keyword *KeywordSearch,
	history HistorySink,
	repo ContentRepository,
	metrics *telemetry.Metrics,
) *SearchGateway {
	return &SearchGateway{
		settings: settings,
		semantic: semantic,
		keyword:  keyword,
		history:  history,
		repo:     repo,
		metrics:  metrics,
	}
}

// Search executes one query. When search is disabled it returns an empty
// response without touching the embedding provider or vector store.
func (g *SearchGateway) Search(ctx context.Context, query models.SearchQuery) (*models.SearchResponse, error) {
	tracer := otel.Tracer("search-gateway")
	ctx, span := tracer.Start(ctx, "search")
	defer span.End()
	span.SetAttributes(attribute.String("search.requested_mode", string(query.Mode)))

	settings := g.settings.Load(ctx)
	if !settings.Enabled {
		return &models.SearchResponse{
			Results: []models.SearchResult{},
			Total:   0,
			Mode:    models.SearchModeKeyword,
		}, nil
	}

	started := time.Now()
	response, fellBack, err := g.dispatch(ctx, query, settings)
	if err != nil {
		return nil, err
	}

	response.QueryTimeMs = time.Since(started).Milliseconds()
	span.SetAttributes(
		attribute.String("search.mode", string(response.Mode)),
		attribute.Bool("search.fallback", fellBack),
		attribute.Int64("search.total", response.Total),
	)

	if g.metrics != nil {
		g.metrics.RecordSearch(string(response.Mode), fellBack, time.Since(started).Seconds())
	}
	g.logHistory(query.Query, response)

	return response, nil
}

// dispatch picks the mode and runs it, degrading semantic failures to a
// single keyword attempt.
func (g *SearchGateway) dispatch(ctx context.Context, query models.SearchQuery, settings models.SearchSettings) (*models.SearchResponse, bool, error) {
	wantSemantic := query.Mode != models.SearchModeKeyword &&
		settings.AIModeEnabled &&
		g.semantic != nil

	if !wantSemantic {
		response, err := g.keyword.Search(ctx, query, settings)
		return response, false, err
	}

	response, err := g.semantic.Search(ctx, query, settings)
	if err == nil {
		return response, false, nil
	}

	logger.Warn("semantic search failed, falling back to keyword mode",
		"query", query.Query, "error", err)
	response, kwErr := g.keyword.Search(ctx, query, settings)
	if kwErr != nil {
		// Both paths down; the semantic error is the root cause.
		return nil, false, err
	}
	return response, true, nil
}

// logHistory records the query off the request path. The request context
// may be cancelled the moment the response is written, so the write gets
// its own deadline.
func (g *SearchGateway) logHistory(query string, response *models.SearchResponse) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := g.history.Log(ctx, query, response.Mode, len(response.Results), response.QueryTimeMs); err != nil {
			logger.Debug("failed to log search query", "error", err)
		}
	}()
}

// Suggestions returns autocomplete candidates: matching content titles
// first, then recent distinct queries to fill out the list. Best effort;
// failures yield an empty list, never an error page.
func (g *SearchGateway) Suggestions(ctx context.Context, partial string) []string {
	settings := g.settings.Load(ctx)
	if !settings.Enabled || !settings.AutocompleteEnabled {
		return []string{}
	}
	if strings.TrimSpace(partial) == "" {
		return []string{}
	}

	suggestions, err := g.repo.SuggestTitles(ctx, partial, settings.SelectedCollections, suggestionLimit)
	if err != nil {
		logger.Warn("title suggestions failed", "error", err)
		suggestions = nil
	}

	if len(suggestions) < suggestionLimit {
		recent, err := g.history.RecentQueries(ctx, partial, suggestionLimit-len(suggestions))
		if err != nil {
			logger.Warn("history suggestions failed", "error", err)
		} else {
			suggestions = appendDistinct(suggestions, recent)
		}
	}

	if suggestions == nil {
		return []string{}
	}
	return suggestions
}

func appendDistinct(base []string, extra []string) []string {
	seen := make(map[string]bool, len(base))
	for _, s := range base {
		seen[strings.ToLower(s)] = true
	}
	for _, s := range extra {
		key := strings.ToLower(s)
		if seen[key] {
			continue
		}
		seen[key] = true
		base = append(base, s)
	}
	return base
}
