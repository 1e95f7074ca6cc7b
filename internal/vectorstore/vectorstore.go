// Package vectorstore defines the narrow contract the search core needs
// from an approximate nearest-neighbor index with metadata filtering.
package vectorstore

import "context"

// Vector is one embedding plus its display metadata, keyed by the
// deterministic chunk id.
type Vector struct {
	ID       string
	Values   []float32
	Metadata map[string]any
}

// Match is a scored query hit. Higher scores are more similar.
type Match struct {
	ID       string
	Score    float64
	Metadata map[string]any
}

// Filter narrows a query by denormalized chunk metadata. Empty slices match
// everything. Stores may apply filters only partially; callers re-filter
// locally.
type Filter struct {
	CollectionIDs []string
	Statuses      []string
}

// VectorStore is the external vector index consumed by the pipelines.
type VectorStore interface {
	Upsert(ctx context.Context, vectors []Vector) error
	Query(ctx context.Context, vector []float32, topK int, filter Filter) ([]Match, error)
	Delete(ctx context.Context, ids []string) error
}
