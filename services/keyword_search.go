package services

import (
	"context"
	"strings"

	"ai-search-service/models"
)

const (
	snippetContext  = 50
	snippetFallback = 200
)

// KeywordSearch is the fallback retrieval strategy: case-insensitive
// substring matching over the content store. It has no external
// dependencies beyond the repository, so it stays available when the
// semantic path is down.
type KeywordSearch struct {
	repo ContentRepository
}

func NewKeywordSearch(repo ContentRepository) *KeywordSearch {
	return &KeywordSearch{repo: repo}
}

// Search runs one keyword query, scoping to the settings' selected
// collections when the query does not name any.
func (ks *KeywordSearch) Search(ctx context.Context, query models.SearchQuery, settings models.SearchSettings) (*models.SearchResponse, error) {
	filters := query.Filters
	if len(filters.Collections) == 0 {
		filters.Collections = settings.SelectedCollections
	}
	if len(filters.Statuses) == 0 {
		filters.Statuses = []string{string(models.ContentStatusPublished)}
	}

	limit := effectiveLimit(query.Limit, settings)
	records, total, err := ks.repo.Search(ctx, query.Query, filters, limit, query.Offset)
	if err != nil {
		return nil, err
	}

	results := make([]models.SearchResult, len(records))
	for i, record := range records {
		results[i] = models.SearchResult{
			ID:           record.ID,
			Title:        record.Title,
			Slug:         record.Slug,
			CollectionID: record.CollectionID,
			Snippet:      keywordSnippet(record, query.Query),
			Status:       string(record.Status),
			CreatedAt:    record.CreatedAt,
			UpdatedAt:    record.UpdatedAt,
		}
	}

	return &models.SearchResponse{
		Results: results,
		Total:   total,
		Mode:    models.SearchModeKeyword,
	}, nil
}

// keywordSnippet centers a window around the first occurrence of the query
// in the record's serialized payload, or falls back to the payload head.
func keywordSnippet(record models.ContentRecord, query string) string {
	text := SerializePayload(record.Data)
	if text == "" {
		text = record.Title
	}

	idx := strings.Index(strings.ToLower(text), strings.ToLower(query))
	if idx < 0 || query == "" {
		return truncateSnippet(text, snippetFallback)
	}

	// Window edges land on rune boundaries so multibyte content never
	// yields invalid UTF-8 in the snippet.
	start := idx - snippetContext
	if start < 0 {
		start = 0
	}
	start = runeFloor(text, start)
	end := idx + len(query) + snippetContext
	if end > len(text) {
		end = len(text)
	}
	end = runeFloor(text, end)

	snippet := text[start:end]
	if start > 0 {
		snippet = "..." + snippet
	}
	if end < len(text) {
		snippet = snippet + "..."
	}
	return snippet
}
