// Package memory is an in-process vectorstore implementation backed by a
// map and brute-force cosine scoring. It backs tests and local development;
// production deployments use the qdrant adapter.
package memory

import (
	"context"
	"sort"
	"sync"

	"ai-search-service/internal/ai"
	"ai-search-service/internal/vectorstore"
)

type Store struct {
	mu      sync.RWMutex
	vectors map[string]vectorstore.Vector
}

func NewStore() *Store {
	return &Store{vectors: make(map[string]vectorstore.Vector)}
}

func (s *Store) Upsert(ctx context.Context, vectors []vectorstore.Vector) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, v := range vectors {
		s.vectors[v.ID] = v
	}
	return nil
}

func (s *Store) Query(ctx context.Context, vector []float32, topK int, filter vectorstore.Filter) ([]vectorstore.Match, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	matches := make([]vectorstore.Match, 0, len(s.vectors))
	for _, v := range s.vectors {
		if !matchesFilter(v.Metadata, filter) {
			continue
		}
		score, err := ai.CosineSimilarity(vector, v.Values)
		if err != nil {
			return nil, err
		}
		matches = append(matches, vectorstore.Match{
			ID:       v.ID,
			Score:    score,
			Metadata: v.Metadata,
		})
	}

	sort.Slice(matches, func(i, j int) bool {
		return matches[i].Score > matches[j].Score
	})
	if topK > 0 && len(matches) > topK {
		matches = matches[:topK]
	}
	return matches, nil
}

func (s *Store) Delete(ctx context.Context, ids []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range ids {
		delete(s.vectors, id)
	}
	return nil
}

// Len reports the number of stored vectors.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.vectors)
}

// Has reports whether a vector with the given id is stored.
func (s *Store) Has(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.vectors[id]
	return ok
}

func matchesFilter(metadata map[string]any, filter vectorstore.Filter) bool {
	if len(filter.CollectionIDs) > 0 {
		id, _ := metadata["collection_id"].(string)
		if !contains(filter.CollectionIDs, id) {
			return false
		}
	}
	if len(filter.Statuses) > 0 {
		status, _ := metadata["status"].(string)
		if !contains(filter.Statuses, status) {
			return false
		}
	}
	return true
}

func contains(values []string, v string) bool {
	for _, candidate := range values {
		if candidate == v {
			return true
		}
	}
	return false
}
