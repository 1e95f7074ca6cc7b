package services

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"ai-search-service/models"
)

const (
	analyticsWindow    = 30 * 24 * time.Hour
	popularQueryLimit  = 10
	historySuggestions = 5
)

// HistorySink records executed searches and answers analytics queries over
// them. Logging is best-effort; the gateway never fails a search because
// history could not be written.
type HistorySink interface {
	Log(ctx context.Context, query string, mode models.SearchMode, resultsCount int, queryTimeMs int64) error
	// RecentQueries returns distinct past queries matching the partial
	// text, most recent first.
	RecentQueries(ctx context.Context, partial string, limit int) ([]string, error)
	// Analytics summarizes the trailing 30 days.
	Analytics(ctx context.Context) (*models.SearchAnalytics, error)
}

type historyDoc struct {
	ID           string            `bson:"_id"`
	Query        string            `bson:"query"`
	Mode         models.SearchMode `bson:"mode"`
	ResultsCount int               `bson:"results_count"`
	QueryTimeMs  int64             `bson:"query_time_ms"`
	CreatedAt    int64             `bson:"created_at"`
}

type MongoHistorySink struct {
	coll *mongo.Collection
}

func NewMongoHistorySink(db *mongo.Database) *MongoHistorySink {
	return &MongoHistorySink{coll: db.Collection("search_history")}
}

func (h *MongoHistorySink) Log(ctx context.Context, query string, mode models.SearchMode, resultsCount int, queryTimeMs int64) error {
	_, err := h.coll.InsertOne(ctx, historyDoc{
		ID:           uuid.New().String(),
		Query:        query,
		Mode:         mode,
		ResultsCount: resultsCount,
		QueryTimeMs:  queryTimeMs,
		CreatedAt:    time.Now().Unix(),
	})
	if err != nil {
		return fmt.Errorf("logging search query: %w", err)
	}
	return nil
}

func (h *MongoHistorySink) RecentQueries(ctx context.Context, partial string, limit int) ([]string, error) {
	if limit <= 0 {
		limit = historySuggestions
	}
	cursor, err := h.coll.Find(ctx,
		bson.M{"query": bson.M{"$regex": escapeRegex(partial), "$options": "i"}},
		options.Find().SetSort(bson.M{"created_at": -1}).SetLimit(int64(limit*4)))
	if err != nil {
		return nil, fmt.Errorf("fetching recent queries: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []historyDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decoding query history: %w", err)
	}

	seen := make(map[string]bool)
	queries := make([]string, 0, limit)
	for _, doc := range docs {
		key := strings.ToLower(doc.Query)
		if seen[key] {
			continue
		}
		seen[key] = true
		queries = append(queries, doc.Query)
		if len(queries) == limit {
			break
		}
	}
	return queries, nil
}

func (h *MongoHistorySink) Analytics(ctx context.Context) (*models.SearchAnalytics, error) {
	since := time.Now().Add(-analyticsWindow).Unix()
	window := bson.M{"created_at": bson.M{"$gte": since}}

	total, err := h.coll.CountDocuments(ctx, window)
	if err != nil {
		return nil, fmt.Errorf("counting queries: %w", err)
	}
	aiTotal, err := h.coll.CountDocuments(ctx, bson.M{
		"created_at": bson.M{"$gte": since},
		"mode":       models.SearchModeAI,
	})
	if err != nil {
		return nil, fmt.Errorf("counting semantic queries: %w", err)
	}

	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: window}},
		{{Key: "$group", Value: bson.M{
			"_id":      "$query",
			"count":    bson.M{"$sum": 1},
			"avg_time": bson.M{"$avg": "$query_time_ms"},
		}}},
		{{Key: "$sort", Value: bson.M{"count": -1}}},
		{{Key: "$limit", Value: popularQueryLimit}},
	}
	cursor, err := h.coll.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("aggregating popular queries: %w", err)
	}
	defer cursor.Close(ctx)

	var popular []models.QueryCount
	if err := cursor.All(ctx, &popular); err != nil {
		return nil, fmt.Errorf("decoding popular queries: %w", err)
	}

	avgTime, err := h.averageQueryTime(ctx, window)
	if err != nil {
		return nil, err
	}

	return &models.SearchAnalytics{
		TotalQueries:   total,
		AIQueries:      aiTotal,
		KeywordQueries: total - aiTotal,
		PopularQueries: popular,
		AvgQueryTimeMs: avgTime,
	}, nil
}

func (h *MongoHistorySink) averageQueryTime(ctx context.Context, window bson.M) (float64, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: window}},
		{{Key: "$group", Value: bson.M{
			"_id": nil,
			"avg": bson.M{"$avg": "$query_time_ms"},
		}}},
	}
	cursor, err := h.coll.Aggregate(ctx, pipeline)
	if err != nil {
		return 0, fmt.Errorf("averaging query time: %w", err)
	}
	defer cursor.Close(ctx)

	var out []struct {
		Avg float64 `bson:"avg"`
	}
	if err := cursor.All(ctx, &out); err != nil {
		return 0, fmt.Errorf("decoding query time average: %w", err)
	}
	if len(out) == 0 {
		return 0, nil
	}
	return out[0].Avg, nil
}

// MemoryHistorySink is the in-process HistorySink used by tests.
type MemoryHistorySink struct {
	mu      sync.RWMutex
	entries []historyDoc
}

func NewMemoryHistorySink() *MemoryHistorySink {
	return &MemoryHistorySink{}
}

func (h *MemoryHistorySink) Log(ctx context.Context, query string, mode models.SearchMode, resultsCount int, queryTimeMs int64) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.entries = append(h.entries, historyDoc{
		ID:           uuid.New().String(),
		Query:        query,
		Mode:         mode,
		ResultsCount: resultsCount,
		QueryTimeMs:  queryTimeMs,
		CreatedAt:    time.Now().Unix(),
	})
	return nil
}

func (h *MemoryHistorySink) RecentQueries(ctx context.Context, partial string, limit int) ([]string, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if limit <= 0 {
		limit = historySuggestions
	}
	needle := strings.ToLower(partial)
	seen := make(map[string]bool)
	var queries []string
	for i := len(h.entries) - 1; i >= 0; i-- {
		q := h.entries[i].Query
		key := strings.ToLower(q)
		if !strings.Contains(key, needle) || seen[key] {
			continue
		}
		seen[key] = true
		queries = append(queries, q)
		if len(queries) == limit {
			break
		}
	}
	return queries, nil
}

func (h *MemoryHistorySink) Analytics(ctx context.Context) (*models.SearchAnalytics, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	since := time.Now().Add(-analyticsWindow).Unix()

	counts := make(map[string]int64)
	var analytics models.SearchAnalytics
	var timeSum int64
	for _, e := range h.entries {
		if e.CreatedAt < since {
			continue
		}
		analytics.TotalQueries++
		if e.Mode == models.SearchModeAI {
			analytics.AIQueries++
		}
		counts[e.Query]++
		timeSum += e.QueryTimeMs
	}
	analytics.KeywordQueries = analytics.TotalQueries - analytics.AIQueries
	if analytics.TotalQueries > 0 {
		analytics.AvgQueryTimeMs = float64(timeSum) / float64(analytics.TotalQueries)
	}
	for q, c := range counts {
		analytics.PopularQueries = append(analytics.PopularQueries, models.QueryCount{Query: q, Count: c})
	}
	sort.Slice(analytics.PopularQueries, func(i, j int) bool {
		return analytics.PopularQueries[i].Count > analytics.PopularQueries[j].Count
	})
	if len(analytics.PopularQueries) > popularQueryLimit {
		analytics.PopularQueries = analytics.PopularQueries[:popularQueryLimit]
	}
	return &analytics, nil
}

// Count reports the number of logged entries.
func (h *MemoryHistorySink) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.entries)
}
