package config

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func ConnectMongoDB(cfg *Config) (*mongo.Client, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %v", err)
	}

	// Test connection
	err = client.Ping(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to ping MongoDB: %v", err)
	}

	// Create indexes
	err = createIndexes(client, cfg.DBName)
	if err != nil {
		return nil, fmt.Errorf("failed to create indexes: %v", err)
	}

	return client, nil
}

func createIndexes(client *mongo.Client, dbName string) error {
	db := client.Database(dbName)

	// Content collection indexes for list-published and keyword search
	contentCollection := db.Collection("content")
	contentIndexes := []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "collection_id", Value: 1}, {Key: "status", Value: 1}},
		},
		{
			Keys: bson.D{{Key: "updated_at", Value: -1}},
		},
		{
			Keys: bson.D{{Key: "author_id", Value: 1}},
		},
	}
	_, err := contentCollection.Indexes().CreateMany(context.Background(), contentIndexes)
	if err != nil {
		return err
	}

	// Collections lookup by name
	collectionsCollection := db.Collection("collections")
	collectionIndexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "name", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
	}
	_, err = collectionsCollection.Indexes().CreateMany(context.Background(), collectionIndexes)
	if err != nil {
		return err
	}

	// Per-collection index status, one document per collection
	metaCollection := db.Collection("search_index_meta")
	metaIndexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "collection_id", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
	}
	_, err = metaCollection.Indexes().CreateMany(context.Background(), metaIndexes)
	if err != nil {
		return err
	}

	// Per-content chunk counts, used to enumerate chunk ids on removal
	countsCollection := db.Collection("search_chunk_counts")
	countIndexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "content_id", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
	}
	_, err = countsCollection.Indexes().CreateMany(context.Background(), countIndexes)
	if err != nil {
		return err
	}

	// Query history for analytics and suggestion fallback
	historyCollection := db.Collection("search_history")
	historyIndexes := []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "created_at", Value: -1}},
		},
		{
			Keys: bson.D{{Key: "query", Value: 1}},
		},
	}
	_, err = historyCollection.Indexes().CreateMany(context.Background(), historyIndexes)
	if err != nil {
		return err
	}

	return nil
}
