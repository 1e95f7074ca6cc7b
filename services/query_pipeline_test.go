package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ai-search-service/internal/vectorstore"
	"ai-search-service/internal/vectorstore/memory"
	"ai-search-service/models"
)

func chunkVector(id, contentID, collectionID, text string, values []float32) vectorstore.Vector {
	return vectorstore.Vector{
		ID:     id,
		Values: values,
		Metadata: map[string]any{
			"content_id":              contentID,
			"collection_id":           collectionID,
			"text":                    text,
			"status":                  "published",
			"collection_display_name": "Articles",
		},
	}
}

func TestQueryPipeline_DedupKeepsBestChunk(t *testing.T) {
	store := memory.NewStore()
	ctx := context.Background()

	// Two chunks of the same record at different similarity, one chunk of
	// another record in between.
	require.NoError(t, store.Upsert(ctx, []vectorstore.Vector{
		chunkVector("a_chunk_0", "a", "col-1", "best chunk of a", []float32{1, 0, 0}),
		chunkVector("a_chunk_1", "a", "col-1", "weaker chunk of a", []float32{0.6, 0.8, 0}),
		chunkVector("b_chunk_0", "b", "col-1", "only chunk of b", []float32{0.9, 0.1, 0}),
	}))

	repo := newFakeRepo()
	repo.records = []models.ContentRecord{
		{ID: "a", CollectionID: "col-1", Title: "Record A", Status: models.ContentStatusPublished, UpdatedAt: 100},
		{ID: "b", CollectionID: "col-1", Title: "Record B", Status: models.ContentStatusPublished, UpdatedAt: 200},
	}

	qp := NewQueryPipeline(newFakeEmbedder(3), store, repo, QueryOptions{TopK: 50})
	settings := models.DefaultSearchSettings()

	resp, err := qp.Search(ctx, models.SearchQuery{Query: "anything", Mode: models.SearchModeAI}, settings)
	require.NoError(t, err)

	require.Len(t, resp.Results, 2)
	assert.Equal(t, int64(2), resp.Total)
	assert.Equal(t, models.SearchModeAI, resp.Mode)

	// Record A wins via its best chunk; its weaker chunk is discarded.
	assert.Equal(t, "a", resp.Results[0].ID)
	assert.Equal(t, "best chunk of a", resp.Results[0].Snippet)
	assert.InDelta(t, 1.0, resp.Results[0].RelevanceScore, 1e-6)
	assert.Equal(t, "b", resp.Results[1].ID)
	assert.Greater(t, resp.Results[0].RelevanceScore, resp.Results[1].RelevanceScore)
}

func TestQueryPipeline_DropsOrphanedChunks(t *testing.T) {
	store := memory.NewStore()
	ctx := context.Background()

	require.NoError(t, store.Upsert(ctx, []vectorstore.Vector{
		chunkVector("a_chunk_0", "a", "col-1", "live record chunk", []float32{1, 0, 0}),
		chunkVector("gone_chunk_0", "gone", "col-1", "deleted record chunk", []float32{1, 0, 0}),
	}))

	repo := newFakeRepo()
	repo.records = []models.ContentRecord{
		{ID: "a", CollectionID: "col-1", Title: "Record A", Status: models.ContentStatusPublished},
	}

	qp := NewQueryPipeline(newFakeEmbedder(3), store, repo, QueryOptions{})
	resp, err := qp.Search(ctx, models.SearchQuery{Query: "q"}, models.DefaultSearchSettings())
	require.NoError(t, err)

	require.Len(t, resp.Results, 1)
	assert.Equal(t, "a", resp.Results[0].ID)
}

func TestQueryPipeline_FiltersByCollectionAndStatus(t *testing.T) {
	store := memory.NewStore()
	ctx := context.Background()

	draft := chunkVector("d_chunk_0", "d", "col-1", "draft chunk", []float32{1, 0, 0})
	draft.Metadata["status"] = "draft"
	require.NoError(t, store.Upsert(ctx, []vectorstore.Vector{
		chunkVector("a_chunk_0", "a", "col-1", "in scope", []float32{1, 0, 0}),
		chunkVector("c_chunk_0", "c", "col-2", "other collection", []float32{1, 0, 0}),
		draft,
	}))

	repo := newFakeRepo()
	repo.records = []models.ContentRecord{
		{ID: "a", CollectionID: "col-1", Status: models.ContentStatusPublished},
		{ID: "c", CollectionID: "col-2", Status: models.ContentStatusPublished},
		{ID: "d", CollectionID: "col-1", Status: models.ContentStatusDraft},
	}

	qp := NewQueryPipeline(newFakeEmbedder(3), store, repo, QueryOptions{})
	query := models.SearchQuery{
		Query:   "q",
		Filters: models.SearchFilters{Collections: []string{"col-1"}},
	}

	resp, err := qp.Search(ctx, query, models.DefaultSearchSettings())
	require.NoError(t, err)

	require.Len(t, resp.Results, 1)
	assert.Equal(t, "a", resp.Results[0].ID)
}

func TestQueryPipeline_SettingsScopeCollections(t *testing.T) {
	store := memory.NewStore()
	ctx := context.Background()

	require.NoError(t, store.Upsert(ctx, []vectorstore.Vector{
		chunkVector("a_chunk_0", "a", "col-1", "selected", []float32{1, 0, 0}),
		chunkVector("b_chunk_0", "b", "col-2", "not selected", []float32{1, 0, 0}),
	}))

	repo := newFakeRepo()
	repo.records = []models.ContentRecord{
		{ID: "a", CollectionID: "col-1", Status: models.ContentStatusPublished},
		{ID: "b", CollectionID: "col-2", Status: models.ContentStatusPublished},
	}

	settings := models.DefaultSearchSettings()
	settings.SelectedCollections = []string{"col-1"}

	qp := NewQueryPipeline(newFakeEmbedder(3), store, repo, QueryOptions{})
	resp, err := qp.Search(ctx, models.SearchQuery{Query: "q"}, settings)
	require.NoError(t, err)

	require.Len(t, resp.Results, 1)
	assert.Equal(t, "a", resp.Results[0].ID)
}

func TestQueryPipeline_LimitAndOffset(t *testing.T) {
	store := memory.NewStore()
	ctx := context.Background()

	vectors := []vectorstore.Vector{
		chunkVector("a_chunk_0", "a", "col-1", "a", []float32{1, 0, 0}),
		chunkVector("b_chunk_0", "b", "col-1", "b", []float32{0.9, 0.1, 0}),
		chunkVector("c_chunk_0", "c", "col-1", "c", []float32{0.8, 0.2, 0}),
	}
	require.NoError(t, store.Upsert(ctx, vectors))

	repo := newFakeRepo()
	repo.records = []models.ContentRecord{
		{ID: "a", CollectionID: "col-1", Status: models.ContentStatusPublished},
		{ID: "b", CollectionID: "col-1", Status: models.ContentStatusPublished},
		{ID: "c", CollectionID: "col-1", Status: models.ContentStatusPublished},
	}

	qp := NewQueryPipeline(newFakeEmbedder(3), store, repo, QueryOptions{})

	resp, err := qp.Search(ctx, models.SearchQuery{Query: "q", Limit: 2}, models.DefaultSearchSettings())
	require.NoError(t, err)
	assert.Equal(t, int64(3), resp.Total)
	require.Len(t, resp.Results, 2)
	assert.Equal(t, "a", resp.Results[0].ID)

	resp, err = qp.Search(ctx, models.SearchQuery{Query: "q", Limit: 2, Offset: 2}, models.DefaultSearchSettings())
	require.NoError(t, err)
	require.Len(t, resp.Results, 1)
	assert.Equal(t, "c", resp.Results[0].ID)

	// Offsets come straight from the request body; a negative one must
	// read from the start instead of panicking on the slice bounds.
	resp, err = qp.Search(ctx, models.SearchQuery{Query: "q", Limit: 1, Offset: -1}, models.DefaultSearchSettings())
	require.NoError(t, err)
	require.Len(t, resp.Results, 1)
	assert.Equal(t, "a", resp.Results[0].ID)
}

func TestTruncateSnippet_MultibyteBoundary(t *testing.T) {
	text := strings.Repeat("é", 300)
	got := truncateSnippet(text, 5)
	assert.True(t, utf8.ValidString(got))
	assert.Equal(t, "éé...", got)
}

func TestQueryPipeline_EmbedErrorPropagates(t *testing.T) {
	embedder := newFakeEmbedder(3)
	embedder.err = errors.New("provider down")

	qp := NewQueryPipeline(embedder, memory.NewStore(), newFakeRepo(), QueryOptions{})
	_, err := qp.Search(context.Background(), models.SearchQuery{Query: "q"}, models.DefaultSearchSettings())
	assert.Error(t, err)
}
