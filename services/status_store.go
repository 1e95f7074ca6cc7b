package services

import (
	"context"
	"fmt"
	"sync"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"ai-search-service/models"
)

// IndexStatusStore persists per-collection indexing progress.
type IndexStatusStore interface {
	Get(ctx context.Context, collectionID string) (*models.IndexStatus, error)
	GetAll(ctx context.Context) ([]models.IndexStatus, error)
	Put(ctx context.Context, status models.IndexStatus) error
}

// ChunkCountStore remembers how many chunks each content record produced on
// its last indexing, so removal can enumerate the exact vector ids.
type ChunkCountStore interface {
	Get(ctx context.Context, contentID string) (int, error)
	Put(ctx context.Context, contentID string, count int) error
	Delete(ctx context.Context, contentID string) error
}

type MongoIndexStatusStore struct {
	coll *mongo.Collection
}

func NewMongoIndexStatusStore(db *mongo.Database) *MongoIndexStatusStore {
	return &MongoIndexStatusStore{coll: db.Collection("search_index_meta")}
}

func (s *MongoIndexStatusStore) Get(ctx context.Context, collectionID string) (*models.IndexStatus, error) {
	var status models.IndexStatus
	err := s.coll.FindOne(ctx, bson.M{"collection_id": collectionID}).Decode(&status)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("fetching index status: %w", err)
	}
	return &status, nil
}

func (s *MongoIndexStatusStore) GetAll(ctx context.Context) ([]models.IndexStatus, error) {
	cursor, err := s.coll.Find(ctx, bson.M{})
	if err != nil {
		return nil, fmt.Errorf("listing index statuses: %w", err)
	}
	defer cursor.Close(ctx)

	var statuses []models.IndexStatus
	if err := cursor.All(ctx, &statuses); err != nil {
		return nil, fmt.Errorf("decoding index statuses: %w", err)
	}
	return statuses, nil
}

// Put replaces the whole status document so partial writes never mix runs.
func (s *MongoIndexStatusStore) Put(ctx context.Context, status models.IndexStatus) error {
	_, err := s.coll.ReplaceOne(ctx,
		bson.M{"collection_id": status.CollectionID},
		status,
		options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("saving index status: %w", err)
	}
	return nil
}

type chunkCountDoc struct {
	ContentID string `bson:"content_id"`
	Count     int    `bson:"count"`
}

type MongoChunkCountStore struct {
	coll *mongo.Collection
}

func NewMongoChunkCountStore(db *mongo.Database) *MongoChunkCountStore {
	return &MongoChunkCountStore{coll: db.Collection("search_chunk_counts")}
}

func (s *MongoChunkCountStore) Get(ctx context.Context, contentID string) (int, error) {
	var doc chunkCountDoc
	err := s.coll.FindOne(ctx, bson.M{"content_id": contentID}).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("fetching chunk count: %w", err)
	}
	return doc.Count, nil
}

func (s *MongoChunkCountStore) Put(ctx context.Context, contentID string, count int) error {
	_, err := s.coll.ReplaceOne(ctx,
		bson.M{"content_id": contentID},
		chunkCountDoc{ContentID: contentID, Count: count},
		options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("saving chunk count: %w", err)
	}
	return nil
}

func (s *MongoChunkCountStore) Delete(ctx context.Context, contentID string) error {
	_, err := s.coll.DeleteOne(ctx, bson.M{"content_id": contentID})
	if err != nil {
		return fmt.Errorf("deleting chunk count: %w", err)
	}
	return nil
}

// MemoryIndexStatusStore is the in-process IndexStatusStore used by tests.
type MemoryIndexStatusStore struct {
	mu       sync.RWMutex
	statuses map[string]models.IndexStatus
}

func NewMemoryIndexStatusStore() *MemoryIndexStatusStore {
	return &MemoryIndexStatusStore{statuses: make(map[string]models.IndexStatus)}
}

func (s *MemoryIndexStatusStore) Get(ctx context.Context, collectionID string) (*models.IndexStatus, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	status, ok := s.statuses[collectionID]
	if !ok {
		return nil, nil
	}
	return &status, nil
}

func (s *MemoryIndexStatusStore) GetAll(ctx context.Context) ([]models.IndexStatus, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	all := make([]models.IndexStatus, 0, len(s.statuses))
	for _, status := range s.statuses {
		all = append(all, status)
	}
	return all, nil
}

func (s *MemoryIndexStatusStore) Put(ctx context.Context, status models.IndexStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.statuses[status.CollectionID] = status
	return nil
}

// MemoryChunkCountStore is the in-process ChunkCountStore used by tests.
type MemoryChunkCountStore struct {
	mu     sync.RWMutex
	counts map[string]int
}

func NewMemoryChunkCountStore() *MemoryChunkCountStore {
	return &MemoryChunkCountStore{counts: make(map[string]int)}
}

func (s *MemoryChunkCountStore) Get(ctx context.Context, contentID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.counts[contentID], nil
}

func (s *MemoryChunkCountStore) Put(ctx context.Context, contentID string, count int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counts[contentID] = count
	return nil
}

func (s *MemoryChunkCountStore) Delete(ctx context.Context, contentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.counts, contentID)
	return nil
}
