package services

import (
	"context"
	"time"

	"github.com/go-co-op/gocron"

	"ai-search-service/internal/logger"
)

// SyncScheduler re-indexes the admin-selected collections on a fixed
// interval so the vector store tracks content edits made outside the
// update hooks.
type SyncScheduler struct {
	scheduler *gocron.Scheduler
	pipeline  *IndexPipeline
	settings  SettingsSource
	ctx       context.Context
	cancel    context.CancelFunc
}

func NewSyncScheduler(pipeline *IndexPipeline, settings SettingsSource) *SyncScheduler {
	ctx, cancel := context.WithCancel(context.Background())
	s := gocron.NewScheduler(time.UTC)
	s.TagsUnique()

	return &SyncScheduler{
		scheduler: s,
		pipeline:  pipeline,
		settings:  settings,
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Start schedules the periodic sync and runs the scheduler in the
// background. An interval of zero disables scheduling entirely.
func (s *SyncScheduler) Start(interval time.Duration) error {
	if interval <= 0 {
		logger.Info("scheduled sync disabled")
		return nil
	}
	_, err := s.scheduler.Every(interval).Tag("collection-sync").Do(s.runSync)
	if err != nil {
		return err
	}
	s.scheduler.StartAsync()
	logger.Info("scheduled sync started", "interval", interval.String())
	return nil
}

// Stop halts the scheduler and cancels any sync in flight.
func (s *SyncScheduler) Stop() {
	s.scheduler.Stop()
	s.cancel()
}

func (s *SyncScheduler) runSync() error {
	settings := s.settings.Load(s.ctx)
	if !settings.Enabled || len(settings.SelectedCollections) == 0 {
		return nil
	}
	logger.Info("scheduled sync starting", "collections", len(settings.SelectedCollections))
	if err := s.pipeline.SyncAll(s.ctx, settings.SelectedCollections); err != nil {
		logger.Error("scheduled sync finished with failures", "error", err)
		return err
	}
	return nil
}
