package services

import (
	"context"
	"fmt"
	"sync"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"ai-search-service/internal/logger"
	"ai-search-service/models"
)

const settingsDocID = "ai-search"

// SettingsSource reads and writes the admin search settings. Load never
// fails: a missing document yields defaults, an unreadable one yields a
// disabled configuration so a corrupt settings write cannot take search
// error-paths down with it.
type SettingsSource interface {
	Load(ctx context.Context) models.SearchSettings
	Save(ctx context.Context, settings models.SearchSettings) error
}

type settingsDoc struct {
	ID       string                `bson:"_id"`
	Settings models.SearchSettings `bson:"settings"`
}

type MongoSettingsSource struct {
	coll *mongo.Collection
}

func NewMongoSettingsSource(db *mongo.Database) *MongoSettingsSource {
	return &MongoSettingsSource{coll: db.Collection("plugin_settings")}
}

func (s *MongoSettingsSource) Load(ctx context.Context) models.SearchSettings {
	var doc settingsDoc
	err := s.coll.FindOne(ctx, bson.M{"_id": settingsDocID}).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		// No admin has configured search yet: disabled, not an error.
		return disabledSettings()
	}
	if err != nil {
		logger.Error("failed to load search settings, treating search as disabled", "error", err)
		return disabledSettings()
	}
	return normalizeSettings(doc.Settings)
}

func (s *MongoSettingsSource) Save(ctx context.Context, settings models.SearchSettings) error {
	_, err := s.coll.ReplaceOne(ctx,
		bson.M{"_id": settingsDocID},
		settingsDoc{ID: settingsDocID, Settings: normalizeSettings(settings)},
		options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("saving search settings: %w", err)
	}
	return nil
}

func disabledSettings() models.SearchSettings {
	s := models.DefaultSearchSettings()
	s.Enabled = false
	s.AIModeEnabled = false
	return s
}

// normalizeSettings backfills zero values a partial or legacy document may
// carry.
func normalizeSettings(s models.SearchSettings) models.SearchSettings {
	if s.ResultsLimit <= 0 {
		s.ResultsLimit = models.DefaultSearchSettings().ResultsLimit
	}
	if s.CacheDurationHours <= 0 {
		s.CacheDurationHours = models.DefaultSearchSettings().CacheDurationHours
	}
	if s.SelectedCollections == nil {
		s.SelectedCollections = []string{}
	}
	if s.DismissedCollections == nil {
		s.DismissedCollections = []string{}
	}
	return s
}

// MemorySettingsSource is the in-process SettingsSource used by tests.
type MemorySettingsSource struct {
	mu       sync.RWMutex
	settings models.SearchSettings
	saved    bool
}

func NewMemorySettingsSource() *MemorySettingsSource {
	return &MemorySettingsSource{}
}

func (s *MemorySettingsSource) Load(ctx context.Context) models.SearchSettings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.saved {
		return disabledSettings()
	}
	return s.settings
}

func (s *MemorySettingsSource) Save(ctx context.Context, settings models.SearchSettings) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settings = normalizeSettings(settings)
	s.saved = true
	return nil
}
