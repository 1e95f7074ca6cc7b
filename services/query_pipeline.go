package services

import (
	"context"
	"fmt"
	"sort"
	"time"
	"unicode/utf8"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"ai-search-service/internal/ai"
	"ai-search-service/internal/vectorstore"
	"ai-search-service/models"
)

// QueryOptions tunes the semantic query path. Zero values fall back to
// defaults.
type QueryOptions struct {
	// TopK is the raw candidate count requested from the vector store,
	// before dedup shrinks it to distinct records.
	TopK            int
	SnippetMaxChars int
	EmbedTimeout    time.Duration
	QueryTimeout    time.Duration
	FetchTimeout    time.Duration
}

func (o QueryOptions) withDefaults() QueryOptions {
	if o.TopK <= 0 {
		o.TopK = 50
	}
	if o.SnippetMaxChars <= 0 {
		o.SnippetMaxChars = 500
	}
	if o.EmbedTimeout <= 0 {
		o.EmbedTimeout = 30 * time.Second
	}
	if o.QueryTimeout <= 0 {
		o.QueryTimeout = 15 * time.Second
	}
	if o.FetchTimeout <= 0 {
		o.FetchTimeout = 15 * time.Second
	}
	return o
}

// QueryPipeline answers semantic searches: embed the query, retrieve
// similar chunks, deduplicate by record, hydrate from the content store.
// Errors propagate to the gateway, which owns the keyword fallback.
type QueryPipeline struct {
	embedder ai.EmbeddingClient
	store    vectorstore.VectorStore
	repo     ContentRepository
	opts     QueryOptions
}

func NewQueryPipeline(embedder ai.EmbeddingClient, store vectorstore.VectorStore, repo ContentRepository, opts QueryOptions) *QueryPipeline {
	return &QueryPipeline{
		embedder: embedder,
		store:    store,
		repo:     repo,
		opts:     opts.withDefaults(),
	}
}

// candidate is the best-scoring chunk seen so far for one content record.
type candidate struct {
	contentID string
	score     float64
	text      string
	metadata  map[string]any
}

// Search runs one semantic query. Settings scope the collections searched
// when the query itself does not.
func (qp *QueryPipeline) Search(ctx context.Context, query models.SearchQuery, settings models.SearchSettings) (*models.SearchResponse, error) {
	tracer := otel.Tracer("query-pipeline")
	ctx, span := tracer.Start(ctx, "search.semantic")
	defer span.End()

	embedCtx, cancel := context.WithTimeout(ctx, qp.opts.EmbedTimeout)
	queryVec, err := qp.embedder.Embed(embedCtx, query.Query)
	cancel()
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}

	filter := vectorstore.Filter{
		CollectionIDs: query.Filters.Collections,
		Statuses:      query.Filters.Statuses,
	}
	if len(filter.CollectionIDs) == 0 {
		filter.CollectionIDs = settings.SelectedCollections
	}
	if len(filter.Statuses) == 0 {
		filter.Statuses = []string{string(models.ContentStatusPublished)}
	}

	queryCtx, cancel := context.WithTimeout(ctx, qp.opts.QueryTimeout)
	matches, err := qp.store.Query(queryCtx, queryVec, qp.opts.TopK, filter)
	cancel()
	if err != nil {
		return nil, fmt.Errorf("vector query: %w", err)
	}
	span.SetAttributes(attribute.Int("search.matches", len(matches)))

	// Stores differ in how strictly they apply payload filters, so the
	// filter is re-checked locally before dedup.
	best := make(map[string]candidate)
	var order []string
	for _, match := range matches {
		if !payloadMatches(match.Metadata, filter) {
			continue
		}
		contentID, _ := match.Metadata["content_id"].(string)
		if contentID == "" {
			continue
		}
		text, _ := match.Metadata["text"].(string)
		existing, seen := best[contentID]
		if !seen {
			order = append(order, contentID)
		}
		if !seen || match.Score > existing.score {
			best[contentID] = candidate{
				contentID: contentID,
				score:     match.Score,
				text:      text,
				metadata:  match.Metadata,
			}
		}
	}

	if len(order) == 0 {
		return &models.SearchResponse{Results: []models.SearchResult{}, Mode: models.SearchModeAI}, nil
	}

	fetchCtx, cancel := context.WithTimeout(ctx, qp.opts.FetchTimeout)
	records, err := qp.repo.GetByIDs(fetchCtx, order)
	cancel()
	if err != nil {
		return nil, fmt.Errorf("hydrating results: %w", err)
	}

	// Records deleted since indexing simply drop out here.
	results := make([]models.SearchResult, 0, len(records))
	for _, record := range records {
		c := best[record.ID]
		displayName, _ := c.metadata["collection_display_name"].(string)
		results = append(results, models.SearchResult{
			ID:             record.ID,
			Title:          record.Title,
			Slug:           record.Slug,
			CollectionID:   record.CollectionID,
			CollectionName: displayName,
			Snippet:        truncateSnippet(c.text, qp.opts.SnippetMaxChars),
			RelevanceScore: c.score,
			Status:         string(record.Status),
			CreatedAt:      record.CreatedAt,
			UpdatedAt:      record.UpdatedAt,
		})
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].RelevanceScore != results[j].RelevanceScore {
			return results[i].RelevanceScore > results[j].RelevanceScore
		}
		return results[i].UpdatedAt > results[j].UpdatedAt
	})

	total := int64(len(results))
	results = paginate(results, query.Offset, effectiveLimit(query.Limit, settings))

	return &models.SearchResponse{
		Results: results,
		Total:   total,
		Mode:    models.SearchModeAI,
	}, nil
}

func effectiveLimit(queryLimit int, settings models.SearchSettings) int {
	if queryLimit > 0 {
		return queryLimit
	}
	if settings.ResultsLimit > 0 {
		return settings.ResultsLimit
	}
	return 20
}

func paginate(results []models.SearchResult, offset, limit int) []models.SearchResult {
	start, end := pageBounds(len(results), offset, limit)
	if start == end {
		return []models.SearchResult{}
	}
	return results[start:end]
}

// pageBounds clamps offset and limit to valid slice bounds. Offset and
// limit arrive straight from the request body, so negative values must
// not reach the slice expression. A non-positive limit means unbounded.
func pageBounds(length, offset, limit int) (int, int) {
	if offset < 0 {
		offset = 0
	}
	if offset >= length {
		return 0, 0
	}
	end := offset + limit
	if limit <= 0 || end > length {
		end = length
	}
	return offset, end
}

func payloadMatches(metadata map[string]any, filter vectorstore.Filter) bool {
	if len(filter.CollectionIDs) > 0 {
		id, _ := metadata["collection_id"].(string)
		if !containsString(filter.CollectionIDs, id) {
			return false
		}
	}
	if len(filter.Statuses) > 0 {
		status, _ := metadata["status"].(string)
		if !containsString(filter.Statuses, status) {
			return false
		}
	}
	return true
}

func containsString(values []string, v string) bool {
	for _, candidate := range values {
		if candidate == v {
			return true
		}
	}
	return false
}

func truncateSnippet(text string, maxChars int) string {
	if maxChars <= 0 || len(text) <= maxChars {
		return text
	}
	return text[:runeFloor(text, maxChars)] + "..."
}

// runeFloor backs a byte offset off to the nearest rune boundary so a
// slice at that offset never splits a multibyte character.
func runeFloor(s string, i int) int {
	if i >= len(s) {
		return len(s)
	}
	for i > 0 && !utf8.RuneStart(s[i]) {
		i--
	}
	return i
}
