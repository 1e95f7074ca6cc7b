package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ai-search-service/internal/vectorstore"
)

func seed(t *testing.T, s *Store) {
	t.Helper()
	require.NoError(t, s.Upsert(context.Background(), []vectorstore.Vector{
		{ID: "a", Values: []float32{1, 0}, Metadata: map[string]any{"collection_id": "c1", "status": "published"}},
		{ID: "b", Values: []float32{0.9, 0.1}, Metadata: map[string]any{"collection_id": "c1", "status": "draft"}},
		{ID: "c", Values: []float32{0, 1}, Metadata: map[string]any{"collection_id": "c2", "status": "published"}},
	}))
}

func TestStore_QueryOrdersByScore(t *testing.T) {
	s := NewStore()
	seed(t, s)

	matches, err := s.Query(context.Background(), []float32{1, 0}, 0, vectorstore.Filter{})
	require.NoError(t, err)
	require.Len(t, matches, 3)
	assert.Equal(t, "a", matches[0].ID)
	assert.Equal(t, "b", matches[1].ID)
	assert.Equal(t, "c", matches[2].ID)
}

func TestStore_QueryTopK(t *testing.T) {
	s := NewStore()
	seed(t, s)

	matches, err := s.Query(context.Background(), []float32{1, 0}, 2, vectorstore.Filter{})
	require.NoError(t, err)
	assert.Len(t, matches, 2)
}

func TestStore_QueryFilters(t *testing.T) {
	s := NewStore()
	seed(t, s)

	matches, err := s.Query(context.Background(), []float32{1, 0}, 0, vectorstore.Filter{
		CollectionIDs: []string{"c1"},
		Statuses:      []string{"published"},
	})
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "a", matches[0].ID)
}

func TestStore_UpsertOverwritesAndDelete(t *testing.T) {
	s := NewStore()
	seed(t, s)
	ctx := context.Background()

	require.NoError(t, s.Upsert(ctx, []vectorstore.Vector{
		{ID: "a", Values: []float32{0, 1}, Metadata: map[string]any{"collection_id": "c9"}},
	}))
	assert.Equal(t, 3, s.Len())

	require.NoError(t, s.Delete(ctx, []string{"a", "b", "missing"}))
	assert.Equal(t, 1, s.Len())
	assert.False(t, s.Has("a"))
	assert.True(t, s.Has("c"))
}
