package models

import "fmt"

// Chunk is an overlapping slice of a content record's extracted text.
// Chunks are transient: only the embedding plus metadata are persisted in
// the vector store, keyed by Chunk.ID.
type Chunk struct {
	ID           string        `json:"id"`
	ContentID    string        `json:"content_id"`
	CollectionID string        `json:"collection_id"`
	Title        string        `json:"title"`
	Text         string        `json:"text"`
	ChunkIndex   int           `json:"chunk_index"`
	Metadata     ChunkMetadata `json:"metadata"`
}

// ChunkMetadata carries denormalized content attributes into the vector
// store so search results can be displayed without re-hydration.
type ChunkMetadata struct {
	Status                ContentStatus `json:"status"`
	CreatedAt             int64         `json:"created_at"`
	UpdatedAt             int64         `json:"updated_at"`
	AuthorID              string        `json:"author_id,omitempty"`
	CollectionName        string        `json:"collection_name"`
	CollectionDisplayName string        `json:"collection_display_name"`
	TotalChunks           int           `json:"total_chunks"`
}

// ChunkID derives the deterministic vector id for a content chunk.
// Removal relies on this naming plus a stored per-content chunk count.
func ChunkID(contentID string, index int) string {
	return fmt.Sprintf("%s_chunk_%d", contentID, index)
}
