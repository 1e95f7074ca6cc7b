package services

import (
	"context"
	"sort"
	"strings"
	"sync"

	"ai-search-service/models"
)

// fakeEmbedder is a deterministic EmbeddingClient for tests. Texts map to
// configured vectors, anything else gets the default vector.
type fakeEmbedder struct {
	mu         sync.Mutex
	calls      int
	vectors    map[string][]float32
	defaultVec []float32
	err        error
}

func newFakeEmbedder(dim int) *fakeEmbedder {
	vec := make([]float32, dim)
	vec[0] = 1
	return &fakeEmbedder{
		vectors:    make(map[string][]float32),
		defaultVec: vec,
	}
}

func (f *fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := f.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

func (f *fakeEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float32, len(texts))
	for i, text := range texts {
		if vec, ok := f.vectors[text]; ok {
			out[i] = vec
		} else {
			out[i] = f.defaultVec
		}
	}
	return out, nil
}

func (f *fakeEmbedder) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// fakeRepo is an in-memory ContentRepository.
type fakeRepo struct {
	collections map[string]models.Collection
	records     []models.ContentRecord
	err         error
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{collections: make(map[string]models.Collection)}
}

func (r *fakeRepo) addCollection(c models.Collection) {
	r.collections[c.ID] = c
}

func (r *fakeRepo) ListPublished(ctx context.Context, collectionID string) ([]models.ContentRecord, error) {
	if r.err != nil {
		return nil, r.err
	}
	var out []models.ContentRecord
	for _, rec := range r.records {
		if rec.CollectionID == collectionID && rec.Status == models.ContentStatusPublished {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (r *fakeRepo) GetByID(ctx context.Context, id string) (*models.ContentRecord, error) {
	if r.err != nil {
		return nil, r.err
	}
	for _, rec := range r.records {
		if rec.ID == id {
			copy := rec
			return &copy, nil
		}
	}
	return nil, nil
}

func (r *fakeRepo) GetByIDs(ctx context.Context, ids []string) ([]models.ContentRecord, error) {
	if r.err != nil {
		return nil, r.err
	}
	want := make(map[string]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}
	var out []models.ContentRecord
	for _, rec := range r.records {
		if want[rec.ID] {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (r *fakeRepo) Search(ctx context.Context, substr string, filters models.SearchFilters, limit, offset int) ([]models.ContentRecord, int64, error) {
	if r.err != nil {
		return nil, 0, r.err
	}
	needle := strings.ToLower(substr)
	var matched []models.ContentRecord
	for _, rec := range r.records {
		if len(filters.Collections) > 0 && !containsString(filters.Collections, rec.CollectionID) {
			continue
		}
		if len(filters.Statuses) > 0 && !containsString(filters.Statuses, string(rec.Status)) {
			continue
		}
		haystack := strings.ToLower(rec.Title + " " + rec.Slug + " " + SerializePayload(rec.Data))
		if needle != "" && !strings.Contains(haystack, needle) {
			continue
		}
		matched = append(matched, rec)
	}
	sort.Slice(matched, func(i, j int) bool {
		return matched[i].UpdatedAt > matched[j].UpdatedAt
	})
	total := int64(len(matched))
	start, end := pageBounds(len(matched), offset, limit)
	if start == end {
		return nil, total, nil
	}
	return matched[start:end], total, nil
}

func (r *fakeRepo) SuggestTitles(ctx context.Context, partial string, collectionIDs []string, limit int) ([]string, error) {
	if r.err != nil {
		return nil, r.err
	}
	needle := strings.ToLower(partial)
	seen := make(map[string]bool)
	var out []string
	for _, rec := range r.records {
		if rec.Status != models.ContentStatusPublished {
			continue
		}
		if len(collectionIDs) > 0 && !containsString(collectionIDs, rec.CollectionID) {
			continue
		}
		if !strings.Contains(strings.ToLower(rec.Title), needle) || seen[rec.Title] {
			continue
		}
		seen[rec.Title] = true
		out = append(out, rec.Title)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (r *fakeRepo) GetCollection(ctx context.Context, id string) (*models.Collection, error) {
	if r.err != nil {
		return nil, r.err
	}
	c, ok := r.collections[id]
	if !ok {
		return nil, nil
	}
	return &c, nil
}

func (r *fakeRepo) ListCollections(ctx context.Context) ([]models.Collection, error) {
	if r.err != nil {
		return nil, r.err
	}
	out := make([]models.Collection, 0, len(r.collections))
	for _, c := range r.collections {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DisplayName < out[j].DisplayName })
	return out, nil
}

func (r *fakeRepo) CountItems(ctx context.Context, collectionID string) (int64, error) {
	if r.err != nil {
		return 0, r.err
	}
	var n int64
	for _, rec := range r.records {
		if rec.CollectionID == collectionID {
			n++
		}
	}
	return n, nil
}
