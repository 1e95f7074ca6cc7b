package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ai-search-service/internal/vectorstore"
	"ai-search-service/internal/vectorstore/memory"
	"ai-search-service/models"
)

type gatewayFixture struct {
	gateway  *SearchGateway
	settings *MemorySettingsSource
	embedder *fakeEmbedder
	repo     *fakeRepo
	history  *MemoryHistorySink
	store    *memory.Store
}

func newGatewayFixture(t *testing.T) *gatewayFixture {
	t.Helper()

	repo := newFakeRepo()
	repo.records = []models.ContentRecord{
		{ID: "a", CollectionID: "col-1", Title: "Widget Guide", Slug: "widget-guide",
			Status: models.ContentStatusPublished, UpdatedAt: 100,
			Data: map[string]any{"body": "All about widgets and their uses."}},
	}

	store := memory.NewStore()
	require.NoError(t, store.Upsert(context.Background(), []vectorstore.Vector{{
		ID:     "a_chunk_0",
		Values: []float32{1, 0, 0},
		Metadata: map[string]any{
			"content_id":    "a",
			"collection_id": "col-1",
			"text":          "All about widgets and their uses.",
			"status":        "published",
		},
	}}))

	embedder := newFakeEmbedder(3)
	settings := NewMemorySettingsSource()
	history := NewMemoryHistorySink()

	semantic := NewQueryPipeline(embedder, store, repo, QueryOptions{})
	keyword := NewKeywordSearch(repo)
	gateway := NewSearchGateway(settings, semantic, keyword, history, repo, nil)

	return &gatewayFixture{
		gateway:  gateway,
		settings: settings,
		embedder: embedder,
		repo:     repo,
		history:  history,
		store:    store,
	}
}

func enableSearch(t *testing.T, f *gatewayFixture) {
	t.Helper()
	require.NoError(t, f.settings.Save(context.Background(), models.DefaultSearchSettings()))
}

func TestGateway_DisabledReturnsEmptyWithoutBackendCalls(t *testing.T) {
	f := newGatewayFixture(t)
	// No settings saved: search is disabled.

	resp, err := f.gateway.Search(context.Background(), models.SearchQuery{Query: "widget", Mode: models.SearchModeAI})
	require.NoError(t, err)

	assert.Empty(t, resp.Results)
	assert.Equal(t, int64(0), resp.Total)
	assert.Equal(t, 0, f.embedder.callCount())
	assert.Equal(t, 0, f.history.Count())
}

func TestGateway_SemanticMode(t *testing.T) {
	f := newGatewayFixture(t)
	enableSearch(t, f)

	resp, err := f.gateway.Search(context.Background(), models.SearchQuery{Query: "widget", Mode: models.SearchModeAI})
	require.NoError(t, err)

	assert.Equal(t, models.SearchModeAI, resp.Mode)
	require.Len(t, resp.Results, 1)
	assert.Equal(t, "a", resp.Results[0].ID)
	assert.Greater(t, resp.Results[0].RelevanceScore, 0.0)
}

func TestGateway_KeywordModeSkipsEmbedding(t *testing.T) {
	f := newGatewayFixture(t)
	enableSearch(t, f)

	resp, err := f.gateway.Search(context.Background(), models.SearchQuery{Query: "widget", Mode: models.SearchModeKeyword})
	require.NoError(t, err)

	assert.Equal(t, models.SearchModeKeyword, resp.Mode)
	require.Len(t, resp.Results, 1)
	assert.Equal(t, 0, f.embedder.callCount())
}

func TestGateway_AIModeDisabledFallsToKeyword(t *testing.T) {
	f := newGatewayFixture(t)
	settings := models.DefaultSearchSettings()
	settings.AIModeEnabled = false
	require.NoError(t, f.settings.Save(context.Background(), settings))

	resp, err := f.gateway.Search(context.Background(), models.SearchQuery{Query: "widget", Mode: models.SearchModeAI})
	require.NoError(t, err)

	assert.Equal(t, models.SearchModeKeyword, resp.Mode)
	assert.Equal(t, 0, f.embedder.callCount())
}

func TestGateway_SemanticFailureFallsBackOnce(t *testing.T) {
	f := newGatewayFixture(t)
	enableSearch(t, f)
	f.embedder.err = errors.New("provider down")

	resp, err := f.gateway.Search(context.Background(), models.SearchQuery{Query: "widget", Mode: models.SearchModeAI})
	require.NoError(t, err)

	// Degraded response reports the mode actually used.
	assert.Equal(t, models.SearchModeKeyword, resp.Mode)
	require.Len(t, resp.Results, 1)
	assert.Equal(t, "a", resp.Results[0].ID)
	assert.Equal(t, 1, f.embedder.callCount())
}

func TestGateway_BothPathsFailing(t *testing.T) {
	f := newGatewayFixture(t)
	enableSearch(t, f)
	f.embedder.err = errors.New("provider down")
	f.repo.err = errors.New("store down")

	_, err := f.gateway.Search(context.Background(), models.SearchQuery{Query: "widget", Mode: models.SearchModeAI})
	assert.Error(t, err)
}

func TestGateway_NoSemanticPipelineConfigured(t *testing.T) {
	f := newGatewayFixture(t)
	enableSearch(t, f)

	keywordOnly := NewSearchGateway(f.settings, nil, NewKeywordSearch(f.repo), f.history, f.repo, nil)
	resp, err := keywordOnly.Search(context.Background(), models.SearchQuery{Query: "widget", Mode: models.SearchModeAI})
	require.NoError(t, err)

	assert.Equal(t, models.SearchModeKeyword, resp.Mode)
	require.Len(t, resp.Results, 1)
}

func TestGateway_RecordsQueryHistory(t *testing.T) {
	f := newGatewayFixture(t)
	enableSearch(t, f)

	_, err := f.gateway.Search(context.Background(), models.SearchQuery{Query: "widget", Mode: models.SearchModeKeyword})
	require.NoError(t, err)

	// History writes happen off the request path.
	assert.Eventually(t, func() bool {
		return f.history.Count() == 1
	}, time.Second, 10*time.Millisecond)
}

func TestGateway_Suggestions(t *testing.T) {
	f := newGatewayFixture(t)
	enableSearch(t, f)
	ctx := context.Background()

	t.Run("titles come first", func(t *testing.T) {
		suggestions := f.gateway.Suggestions(ctx, "widget")
		require.NotEmpty(t, suggestions)
		assert.Equal(t, "Widget Guide", suggestions[0])
	})

	t.Run("history fills the remainder", func(t *testing.T) {
		require.NoError(t, f.history.Log(ctx, "widget pricing", models.SearchModeKeyword, 3, 12))
		suggestions := f.gateway.Suggestions(ctx, "widget")
		assert.Contains(t, suggestions, "widget pricing")
	})

	t.Run("blank input", func(t *testing.T) {
		assert.Empty(t, f.gateway.Suggestions(ctx, "  "))
	})

	t.Run("autocomplete disabled", func(t *testing.T) {
		settings := models.DefaultSearchSettings()
		settings.AutocompleteEnabled = false
		require.NoError(t, f.settings.Save(ctx, settings))
		assert.Empty(t, f.gateway.Suggestions(ctx, "widget"))
	})
}

func TestGateway_Analytics(t *testing.T) {
	f := newGatewayFixture(t)
	ctx := context.Background()

	require.NoError(t, f.history.Log(ctx, "widgets", models.SearchModeAI, 5, 40))
	require.NoError(t, f.history.Log(ctx, "widgets", models.SearchModeAI, 5, 20))
	require.NoError(t, f.history.Log(ctx, "gadgets", models.SearchModeKeyword, 2, 30))

	analytics, err := f.history.Analytics(ctx)
	require.NoError(t, err)

	assert.Equal(t, int64(3), analytics.TotalQueries)
	assert.Equal(t, int64(2), analytics.AIQueries)
	assert.Equal(t, int64(1), analytics.KeywordQueries)
	assert.InDelta(t, 30.0, analytics.AvgQueryTimeMs, 1e-6)
	require.NotEmpty(t, analytics.PopularQueries)
	assert.Equal(t, "widgets", analytics.PopularQueries[0].Query)
	assert.Equal(t, int64(2), analytics.PopularQueries[0].Count)
}
