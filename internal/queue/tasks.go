package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"

	"ai-search-service/internal/logger"
	"ai-search-service/services"
)

const (
	TaskIndexCollection = "index:collection"
	TaskIndexContent    = "index:content"
)

type IndexCollectionPayload struct {
	CollectionID string `json:"collection_id"`
}

type IndexContentPayload struct {
	ContentID string `json:"content_id"`
}

// Task creators
func NewIndexCollectionTask(collectionID string) (*asynq.Task, error) {
	payload, err := json.Marshal(IndexCollectionPayload{CollectionID: collectionID})
	if err != nil {
		return nil, err
	}

	return asynq.NewTask(
		TaskIndexCollection,
		payload,
		asynq.MaxRetry(3),
		asynq.Timeout(30*time.Minute),
		asynq.Queue("indexing"),
	), nil
}

func NewIndexContentTask(contentID string) (*asynq.Task, error) {
	payload, err := json.Marshal(IndexContentPayload{ContentID: contentID})
	if err != nil {
		return nil, err
	}

	return asynq.NewTask(
		TaskIndexContent,
		payload,
		asynq.MaxRetry(5),
		asynq.Timeout(2*time.Minute),
		asynq.Queue("default"),
	), nil
}

// TaskProcessor executes queued indexing work in the worker process.
type TaskProcessor struct {
	pipeline *services.IndexPipeline
}

func NewTaskProcessor(pipeline *services.IndexPipeline) *TaskProcessor {
	return &TaskProcessor{pipeline: pipeline}
}

func (p *TaskProcessor) ProcessIndexCollection(ctx context.Context, t *asynq.Task) error {
	var payload IndexCollectionPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("unmarshal failed: %w", asynq.SkipRetry)
	}

	logger.Info("processing collection index task", "collection_id", payload.CollectionID)

	err := p.pipeline.IndexCollection(ctx, payload.CollectionID)
	if errors.Is(err, services.ErrAlreadyIndexing) {
		// Another run owns the collection; retrying would just collide again.
		logger.Warn("collection already indexing, dropping task", "collection_id", payload.CollectionID)
		return nil
	}
	return err
}

func (p *TaskProcessor) ProcessIndexContent(ctx context.Context, t *asynq.Task) error {
	var payload IndexContentPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("unmarshal failed: %w", asynq.SkipRetry)
	}

	logger.Info("processing content index task", "content_id", payload.ContentID)
	return p.pipeline.UpdateContentIndex(ctx, payload.ContentID)
}
