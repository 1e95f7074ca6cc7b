package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"ai-search-service/models"
)

// ContentRepository is the read-only view of the external content store the
// search core consumes, for both indexing and result hydration.
type ContentRepository interface {
	ListPublished(ctx context.Context, collectionID string) ([]models.ContentRecord, error)
	GetByID(ctx context.Context, id string) (*models.ContentRecord, error)
	GetByIDs(ctx context.Context, ids []string) ([]models.ContentRecord, error)
	// Search performs a case-insensitive substring match over title, slug
	// and serialized payload, applying the given filters. Returns the page
	// of matching records plus the total match count.
	Search(ctx context.Context, substr string, filters models.SearchFilters, limit, offset int) ([]models.ContentRecord, int64, error)
	// SuggestTitles returns distinct titles containing the partial text.
	SuggestTitles(ctx context.Context, partial string, collectionIDs []string, limit int) ([]string, error)
	GetCollection(ctx context.Context, id string) (*models.Collection, error)
	ListCollections(ctx context.Context) ([]models.Collection, error)
	CountItems(ctx context.Context, collectionID string) (int64, error)
}

// MongoContentRepository implements ContentRepository over the host CMS
// database.
type MongoContentRepository struct {
	content     *mongo.Collection
	collections *mongo.Collection
}

func NewMongoContentRepository(db *mongo.Database) *MongoContentRepository {
	return &MongoContentRepository{
		content:     db.Collection("content"),
		collections: db.Collection("collections"),
	}
}

func (r *MongoContentRepository) ListPublished(ctx context.Context, collectionID string) ([]models.ContentRecord, error) {
	cursor, err := r.content.Find(ctx, bson.M{
		"collection_id": collectionID,
		"status":        models.ContentStatusPublished,
	})
	if err != nil {
		return nil, fmt.Errorf("listing published content: %w", err)
	}
	defer cursor.Close(ctx)

	var records []models.ContentRecord
	if err := cursor.All(ctx, &records); err != nil {
		return nil, fmt.Errorf("decoding content records: %w", err)
	}
	return records, nil
}

func (r *MongoContentRepository) GetByID(ctx context.Context, id string) (*models.ContentRecord, error) {
	var record models.ContentRecord
	err := r.content.FindOne(ctx, bson.M{"_id": id}).Decode(&record)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("fetching content %s: %w", id, err)
	}
	return &record, nil
}

func (r *MongoContentRepository) GetByIDs(ctx context.Context, ids []string) ([]models.ContentRecord, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	cursor, err := r.content.Find(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return nil, fmt.Errorf("hydrating content: %w", err)
	}
	defer cursor.Close(ctx)

	var records []models.ContentRecord
	if err := cursor.All(ctx, &records); err != nil {
		return nil, fmt.Errorf("decoding content records: %w", err)
	}
	return records, nil
}

// Search fetches the filter-narrowed candidate set from Mongo and applies
// the substring predicate in process. The payload is schemaless, so the
// match runs over its JSON serialization, like the LIKE query it replaces.
func (r *MongoContentRepository) Search(ctx context.Context, substr string, filters models.SearchFilters, limit, offset int) ([]models.ContentRecord, int64, error) {
	query := bson.M{}
	if len(filters.Collections) > 0 {
		query["collection_id"] = bson.M{"$in": filters.Collections}
	}
	if len(filters.Statuses) > 0 {
		query["status"] = bson.M{"$in": filters.Statuses}
	} else {
		// Exclude deleted by default
		query["status"] = bson.M{"$ne": models.ContentStatusDeleted}
	}
	if filters.DateRange != nil {
		field := filters.DateRange.Field
		if field != "updated_at" {
			field = "created_at"
		}
		bounds := bson.M{}
		if filters.DateRange.Start > 0 {
			bounds["$gte"] = filters.DateRange.Start
		}
		if filters.DateRange.End > 0 {
			bounds["$lte"] = filters.DateRange.End
		}
		if len(bounds) > 0 {
			query[field] = bounds
		}
	}
	if filters.AuthorID != "" {
		query["author_id"] = filters.AuthorID
	}

	cursor, err := r.content.Find(ctx, query, options.Find().SetSort(bson.M{"updated_at": -1}))
	if err != nil {
		return nil, 0, fmt.Errorf("keyword search: %w", err)
	}
	defer cursor.Close(ctx)

	var candidates []models.ContentRecord
	if err := cursor.All(ctx, &candidates); err != nil {
		return nil, 0, fmt.Errorf("decoding content records: %w", err)
	}

	needle := strings.ToLower(substr)
	var matched []models.ContentRecord
	for _, record := range candidates {
		if needle == "" || recordMatches(record, needle) {
			matched = append(matched, record)
		}
	}

	total := int64(len(matched))
	start, end := pageBounds(len(matched), offset, limit)
	if start == end {
		return nil, total, nil
	}
	return matched[start:end], total, nil
}

func recordMatches(record models.ContentRecord, needle string) bool {
	if strings.Contains(strings.ToLower(record.Title), needle) {
		return true
	}
	if strings.Contains(strings.ToLower(record.Slug), needle) {
		return true
	}
	return strings.Contains(strings.ToLower(SerializePayload(record.Data)), needle)
}

// SerializePayload renders a payload to the JSON form used for substring
// matching and snippet derivation.
func SerializePayload(data map[string]any) string {
	if len(data) == 0 {
		return ""
	}
	encoded, err := json.Marshal(data)
	if err != nil {
		return ""
	}
	return string(encoded)
}

func (r *MongoContentRepository) SuggestTitles(ctx context.Context, partial string, collectionIDs []string, limit int) ([]string, error) {
	if limit <= 0 {
		limit = 10
	}
	query := bson.M{
		"title":  bson.M{"$regex": escapeRegex(partial), "$options": "i"},
		"status": models.ContentStatusPublished,
	}
	if len(collectionIDs) > 0 {
		query["collection_id"] = bson.M{"$in": collectionIDs}
	}

	values, err := r.content.Distinct(ctx, "title", query)
	if err != nil {
		return nil, fmt.Errorf("title suggestions: %w", err)
	}

	titles := make([]string, 0, limit)
	for _, v := range values {
		if title, ok := v.(string); ok && title != "" {
			titles = append(titles, title)
			if len(titles) == limit {
				break
			}
		}
	}
	return titles, nil
}

func escapeRegex(s string) string {
	replacer := strings.NewReplacer(
		`\`, `\\`, `.`, `\.`, `+`, `\+`, `*`, `\*`, `?`, `\?`,
		`(`, `\(`, `)`, `\)`, `[`, `\[`, `]`, `\]`, `{`, `\{`, `}`, `\}`,
		`^`, `\^`, `$`, `\$`, `|`, `\|`,
	)
	return replacer.Replace(s)
}

func (r *MongoContentRepository) GetCollection(ctx context.Context, id string) (*models.Collection, error) {
	var collection models.Collection
	err := r.collections.FindOne(ctx, bson.M{"_id": id}).Decode(&collection)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("fetching collection %s: %w", id, err)
	}
	return &collection, nil
}

func (r *MongoContentRepository) ListCollections(ctx context.Context) ([]models.Collection, error) {
	cursor, err := r.collections.Find(ctx, bson.M{"is_active": true},
		options.Find().SetSort(bson.M{"display_name": 1}))
	if err != nil {
		return nil, fmt.Errorf("listing collections: %w", err)
	}
	defer cursor.Close(ctx)

	var collections []models.Collection
	if err := cursor.All(ctx, &collections); err != nil {
		return nil, fmt.Errorf("decoding collections: %w", err)
	}
	return collections, nil
}

func (r *MongoContentRepository) CountItems(ctx context.Context, collectionID string) (int64, error) {
	count, err := r.content.CountDocuments(ctx, bson.M{"collection_id": collectionID})
	if err != nil {
		return 0, fmt.Errorf("counting collection items: %w", err)
	}
	return count, nil
}
