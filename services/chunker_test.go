package services

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ai-search-service/models"
)

func wordsText(n int) string {
	words := make([]string, n)
	for i := range words {
		words[i] = fmt.Sprintf("w%d", i)
	}
	return strings.Join(words, " ")
}

func testItem(id, collectionName string, wordCount int) ContentItem {
	return ContentItem{
		ID:           id,
		CollectionID: "col-1",
		Title:        "Test Record",
		Data:         map[string]any{"content": wordsText(wordCount)},
		Metadata:     models.ChunkMetadata{CollectionName: collectionName},
	}
}

func TestChunkContent_EmptyPayload(t *testing.T) {
	cs := NewChunkerService(DefaultChunkSizes())

	assert.Nil(t, cs.ChunkContent(ContentItem{ID: "c1", Data: nil}))
	assert.Nil(t, cs.ChunkContent(ContentItem{ID: "c2", Data: map[string]any{"count": 42}}))
}

func TestChunkContent_OverlapExceedingWindowIsClamped(t *testing.T) {
	// Overlap 7 over the short window of 5 would make the step negative
	// and the window loop spin forever; the constructor clamps it.
	cs := NewChunkerService(ChunkSizes{Default: 10, LongForm: 12, Structured: 8, Short: 5, Overlap: 7})

	chunks := cs.ChunkContent(testItem("c1", "comments", 12))
	require.Len(t, chunks, 4)
	assert.Contains(t, chunks[len(chunks)-1].Text, "w11")
}

func TestChunkContent_WindowBoundaries(t *testing.T) {
	sizes := ChunkSizes{Default: 10, LongForm: 12, Structured: 8, Short: 5, Overlap: 3}
	cs := NewChunkerService(sizes)
	size, overlap := sizes.Default, sizes.Overlap
	step := size - overlap

	cases := []struct {
		words      int
		wantChunks int
	}{
		{1, 1},
		{size - 1, 1},
		{size, 1},
		{size + 1, 2},
		{2 * size, 3},
		{2*size + overlap, 3},
	}

	for _, tc := range cases {
		t.Run(fmt.Sprintf("%d_words", tc.words), func(t *testing.T) {
			chunks := cs.ChunkContent(testItem("c1", "", tc.words))
			require.Len(t, chunks, tc.wantChunks)

			for i, chunk := range chunks {
				assert.Equal(t, models.ChunkID("c1", i), chunk.ID)
				assert.Equal(t, i, chunk.ChunkIndex)
				assert.Equal(t, tc.wantChunks, chunk.Metadata.TotalChunks)

				words := strings.Fields(chunk.Text)
				if tc.wantChunks > 1 {
					// Each window starts one step after the previous one.
					assert.Equal(t, fmt.Sprintf("w%d", i*step), words[0])
				}
			}

			// The last window must reach the final word.
			last := strings.Fields(chunks[len(chunks)-1].Text)
			assert.Equal(t, fmt.Sprintf("w%d", tc.words-1), last[len(last)-1])
		})
	}
}

func TestChunkContent_OverlapBetweenWindows(t *testing.T) {
	sizes := ChunkSizes{Default: 10, LongForm: 12, Structured: 8, Short: 5, Overlap: 3}
	cs := NewChunkerService(sizes)

	chunks := cs.ChunkContent(testItem("c1", "", 20))
	require.Len(t, chunks, 3)

	first := strings.Fields(chunks[0].Text)
	second := strings.Fields(chunks[1].Text)
	// The tail of one window re-appears at the head of the next.
	assert.Equal(t, first[len(first)-sizes.Overlap:], second[:sizes.Overlap])
}

func TestChunkContent_SizeByCollectionType(t *testing.T) {
	sizes := ChunkSizes{Default: 10, LongForm: 12, Structured: 8, Short: 5, Overlap: 3}
	cs := NewChunkerService(sizes)

	// Six words fit in one default window but need two short windows.
	assert.Len(t, cs.ChunkContent(testItem("c1", "widgets", 6)), 1)
	assert.Len(t, cs.ChunkContent(testItem("c1", "comments", 6)), 2)

	assert.Equal(t, sizes.LongForm, cs.chunkSizeFor("blog-posts"))
	assert.Equal(t, sizes.LongForm, cs.chunkSizeFor("News"))
	assert.Equal(t, sizes.Short, cs.chunkSizeFor("product-reviews"))
	assert.Equal(t, sizes.Structured, cs.chunkSizeFor("faq"))
	assert.Equal(t, sizes.Default, cs.chunkSizeFor("unknown"))
}

func TestChunkContent_LongDocument(t *testing.T) {
	cs := NewChunkerService(DefaultChunkSizes())

	chunks := cs.ChunkContent(testItem("c1", "", 800))
	require.Len(t, chunks, 2)
	assert.Len(t, strings.Fields(chunks[0].Text), 500)
	assert.Len(t, strings.Fields(chunks[1].Text), 350)
	assert.Equal(t, 2, chunks[0].Metadata.TotalChunks)
	assert.Equal(t, 2, chunks[1].Metadata.TotalChunks)
}

func TestChunkBatch(t *testing.T) {
	cs := NewChunkerService(ChunkSizes{Default: 10, LongForm: 12, Structured: 8, Short: 5, Overlap: 3})

	items := []ContentItem{
		testItem("c1", "", 20), // 3 chunks
		{ID: "c2", Data: map[string]any{}},
		testItem("c3", "", 4), // 1 chunk
	}
	chunks, empty := cs.ChunkBatch(items)

	assert.Len(t, chunks, 4)
	assert.Equal(t, []string{"c2"}, empty)
	assert.Equal(t, "c1", chunks[0].ContentID)
	assert.Equal(t, "c3", chunks[3].ContentID)
}
