package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/panjf2000/ants/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"ai-search-service/internal/ai"
	"ai-search-service/internal/logger"
	"ai-search-service/internal/telemetry"
	"ai-search-service/internal/vectorstore"
	"ai-search-service/models"
)

// ErrAlreadyIndexing is returned when an indexing run is requested for a
// collection that has one in flight.
var ErrAlreadyIndexing = errors.New("collection is already being indexed")

// IndexerOptions tunes the pipeline. Zero values fall back to defaults.
type IndexerOptions struct {
	UpsertBatchSize int
	Workers         int
	// SnippetMaxChars bounds the text stored in vector metadata, which
	// backs snippets without a re-hydration round trip.
	SnippetMaxChars int
	EmbedTimeout    time.Duration
	UpsertTimeout   time.Duration
	FetchTimeout    time.Duration
}

func (o IndexerOptions) withDefaults() IndexerOptions {
	if o.UpsertBatchSize <= 0 {
		o.UpsertBatchSize = 100
	}
	if o.Workers <= 0 {
		o.Workers = 4
	}
	if o.SnippetMaxChars <= 0 {
		o.SnippetMaxChars = 500
	}
	if o.EmbedTimeout <= 0 {
		o.EmbedTimeout = 30 * time.Second
	}
	if o.UpsertTimeout <= 0 {
		o.UpsertTimeout = 30 * time.Second
	}
	if o.FetchTimeout <= 0 {
		o.FetchTimeout = 15 * time.Second
	}
	return o
}

// IndexPipeline drives content into the vector store: fetch published
// records, chunk, embed, upsert. One pipeline instance serves all
// collections.
type IndexPipeline struct {
	repo     ContentRepository
	chunker  *ChunkerService
	embedder ai.EmbeddingClient
	store    vectorstore.VectorStore
	statuses IndexStatusStore
	counts   ChunkCountStore
	metrics  *telemetry.Metrics
	pool     *ants.Pool
	opts     IndexerOptions
}

func NewIndexPipeline(
	repo ContentRepository,
	chunker *ChunkerService,
	embedder ai.EmbeddingClient,
	store vectorstore.VectorStore,
	statuses IndexStatusStore,
	counts ChunkCountStore,
	metrics *telemetry.Metrics,
	opts IndexerOptions,
) (*IndexPipeline, error) {
	opts = opts.withDefaults()
	pool, err := ants.NewPool(opts.Workers, ants.WithNonblocking(false))
	if err != nil {
		return nil, fmt.Errorf("creating indexing pool: %w", err)
	}
	return &IndexPipeline{
		repo:     repo,
		chunker:  chunker,
		embedder: embedder,
		store:    store,
		statuses: statuses,
		counts:   counts,
		metrics:  metrics,
		pool:     pool,
		opts:     opts,
	}, nil
}

// Close releases the worker pool. In-flight batches finish first.
func (p *IndexPipeline) Close() {
	p.pool.Release()
}

// IndexCollection runs a full indexing pass over one collection's published
// content. Progress is persisted in the status store so concurrent requests
// and external observers see the run. Per-batch failures are counted, not
// fatal; the run completes with an error summary when some chunks failed.
func (p *IndexPipeline) IndexCollection(ctx context.Context, collectionID string) error {
	tracer := otel.Tracer("index-pipeline")
	ctx, span := tracer.Start(ctx, "index.collection")
	defer span.End()
	span.SetAttributes(attribute.String("collection.id", collectionID))

	current, err := p.statuses.Get(ctx, collectionID)
	if err != nil {
		return err
	}
	if current != nil && current.Status == models.IndexStateIndexing {
		return ErrAlreadyIndexing
	}

	fetchCtx, cancelFetch := context.WithTimeout(ctx, p.opts.FetchTimeout)
	collection, err := p.repo.GetCollection(fetchCtx, collectionID)
	cancelFetch()
	if err != nil {
		return err
	}
	if collection == nil {
		return fmt.Errorf("collection %s not found", collectionID)
	}

	started := time.Now()
	status := models.IndexStatus{
		CollectionID:   collectionID,
		CollectionName: collection.DisplayName,
		Status:         models.IndexStateIndexing,
	}
	if err := p.statuses.Put(ctx, status); err != nil {
		return err
	}

	finalize := func(st models.IndexStatus) {
		// Finalization must survive a cancelled run context.
		saveCtx, cancel := context.WithTimeout(context.Background(), p.opts.FetchTimeout)
		defer cancel()
		if err := p.statuses.Put(saveCtx, st); err != nil {
			logger.Error("failed to persist index status", "collection_id", collectionID, "error", err)
		}
	}

	fetchCtx, cancelFetch = context.WithTimeout(ctx, p.opts.FetchTimeout)
	records, err := p.repo.ListPublished(fetchCtx, collectionID)
	cancelFetch()
	if err != nil {
		status.Status = models.IndexStateError
		status.ErrorMessage = err.Error()
		finalize(status)
		return err
	}

	items := make([]ContentItem, len(records))
	for i, record := range records {
		items[i] = contentItem(record, collection)
	}

	chunks, emptyIDs := p.chunker.ChunkBatch(items)
	for _, id := range emptyIDs {
		logger.Warn("content record produced no indexable text", "content_id", id)
	}
	span.SetAttributes(
		attribute.Int("index.records", len(records)),
		attribute.Int("index.chunks", len(chunks)),
	)

	status.TotalItems = len(chunks)

	var indexed, errCount atomic.Int64
	var wg sync.WaitGroup

	var failedMu sync.Mutex
	failed := make(map[string]bool)
	markFailed := func(batch []models.Chunk) {
		failedMu.Lock()
		for _, chunk := range batch {
			failed[chunk.ContentID] = true
		}
		failedMu.Unlock()
	}

	cancelled := false
	for start := 0; start < len(chunks); start += p.opts.UpsertBatchSize {
		if ctx.Err() != nil {
			cancelled = true
			break
		}
		end := start + p.opts.UpsertBatchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		batch := chunks[start:end]

		wg.Add(1)
		submitErr := p.pool.Submit(func() {
			defer wg.Done()
			if err := p.indexBatch(ctx, batch); err != nil {
				logger.Error("batch indexing failed",
					"collection_id", collectionID,
					"batch_size", len(batch),
					"error", err)
				markFailed(batch)
				errCount.Add(int64(len(batch)))
				return
			}
			indexed.Add(int64(len(batch)))
		})
		if submitErr != nil {
			wg.Done()
			markFailed(batch)
			errCount.Add(int64(len(batch)))
		}
	}
	wg.Wait()

	if cancelled {
		// Leave the status as indexing; a retry will overwrite it.
		return ctx.Err()
	}

	// Record chunk counts and drop stale chunks from shrunken records.
	// Records touched by a failed batch keep their previous bookkeeping,
	// since their new chunks may never have been written; the next run
	// reconciles them.
	newCounts := make(map[string]int, len(items))
	for i := range items {
		if !failed[items[i].ID] {
			newCounts[items[i].ID] = 0
		}
	}
	for _, chunk := range chunks {
		if !failed[chunk.ContentID] {
			newCounts[chunk.ContentID]++
		}
	}
	p.reconcileChunkCounts(ctx, newCounts)

	status.IndexedItems = int(indexed.Load())
	status.LastSyncAt = time.Now().Unix()
	if failures := errCount.Load(); failures > 0 {
		status.Status = models.IndexStateError
		status.ErrorMessage = fmt.Sprintf("%d errors during indexing", failures)
	} else {
		status.Status = models.IndexStateCompleted
	}
	finalize(status)

	if p.metrics != nil {
		p.metrics.RecordIndexRun(collectionID, int(indexed.Load()), int(errCount.Load()), time.Since(started).Seconds())
	}
	logger.Info("collection indexing finished",
		"collection_id", collectionID,
		"records", len(records),
		"chunks", len(chunks),
		"indexed", indexed.Load(),
		"errors", errCount.Load(),
		"duration", time.Since(started).String())
	return nil
}

// indexBatch embeds one batch of chunks and upserts the vectors.
func (p *IndexPipeline) indexBatch(ctx context.Context, batch []models.Chunk) error {
	inputs := make([]string, len(batch))
	for i, chunk := range batch {
		// Prefixing the title anchors every chunk to its record.
		inputs[i] = fmt.Sprintf("%s\n\n%s", chunk.Title, chunk.Text)
	}

	embedCtx, cancel := context.WithTimeout(ctx, p.opts.EmbedTimeout)
	vecs, err := p.embedder.EmbedBatch(embedCtx, inputs)
	cancel()
	if err != nil {
		return fmt.Errorf("embedding batch: %w", err)
	}
	if p.metrics != nil {
		p.metrics.RecordEmbeddingCall(len(inputs))
	}

	vectors := make([]vectorstore.Vector, len(batch))
	for i, chunk := range batch {
		vectors[i] = vectorstore.Vector{
			ID:       chunk.ID,
			Values:   vecs[i],
			Metadata: chunkMetadata(chunk, p.opts.SnippetMaxChars),
		}
	}

	upsertCtx, cancel := context.WithTimeout(ctx, p.opts.UpsertTimeout)
	defer cancel()
	if err := p.store.Upsert(upsertCtx, vectors); err != nil {
		return fmt.Errorf("upserting batch: %w", err)
	}
	return nil
}

// reconcileChunkCounts persists each record's new chunk count and deletes
// vectors left over from a previous, longer chunking of the same record.
func (p *IndexPipeline) reconcileChunkCounts(ctx context.Context, newCounts map[string]int) {
	for id, count := range newCounts {
		old, err := p.counts.Get(ctx, id)
		if err != nil {
			logger.Error("failed to read chunk count", "content_id", id, "error", err)
			continue
		}
		if old > count {
			stale := make([]string, 0, old-count)
			for i := count; i < old; i++ {
				stale = append(stale, models.ChunkID(id, i))
			}
			if err := p.store.Delete(ctx, stale); err != nil {
				logger.Error("failed to delete stale chunks", "content_id", id, "error", err)
				continue
			}
		}
		if count == 0 {
			if err := p.counts.Delete(ctx, id); err != nil {
				logger.Error("failed to delete chunk count", "content_id", id, "error", err)
			}
			continue
		}
		if err := p.counts.Put(ctx, id, count); err != nil {
			logger.Error("failed to save chunk count", "content_id", id, "error", err)
		}
	}
}

// UpdateContentIndex re-indexes a single content record after a change.
// Records that are no longer published are removed from the index instead.
func (p *IndexPipeline) UpdateContentIndex(ctx context.Context, contentID string) error {
	fetchCtx, cancel := context.WithTimeout(ctx, p.opts.FetchTimeout)
	record, err := p.repo.GetByID(fetchCtx, contentID)
	cancel()
	if err != nil {
		return err
	}
	if record == nil || record.Status != models.ContentStatusPublished {
		return p.RemoveFromIndex(ctx, contentID)
	}

	fetchCtx, cancel = context.WithTimeout(ctx, p.opts.FetchTimeout)
	collection, err := p.repo.GetCollection(fetchCtx, record.CollectionID)
	cancel()
	if err != nil {
		return err
	}
	if collection == nil {
		return fmt.Errorf("collection %s not found", record.CollectionID)
	}

	item := contentItem(*record, collection)
	chunks := p.chunker.ChunkContent(item)
	if len(chunks) == 0 {
		logger.Warn("content record produced no indexable text", "content_id", contentID)
		return p.RemoveFromIndex(ctx, contentID)
	}

	for start := 0; start < len(chunks); start += p.opts.UpsertBatchSize {
		end := start + p.opts.UpsertBatchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		if err := p.indexBatch(ctx, chunks[start:end]); err != nil {
			return err
		}
	}

	old, err := p.counts.Get(ctx, contentID)
	if err != nil {
		return err
	}
	if old > len(chunks) {
		stale := make([]string, 0, old-len(chunks))
		for i := len(chunks); i < old; i++ {
			stale = append(stale, models.ChunkID(contentID, i))
		}
		if err := p.store.Delete(ctx, stale); err != nil {
			return fmt.Errorf("deleting stale chunks: %w", err)
		}
	}
	return p.counts.Put(ctx, contentID, len(chunks))
}

// RemoveFromIndex deletes every vector belonging to a content record, using
// the persisted chunk count to enumerate the deterministic chunk ids.
func (p *IndexPipeline) RemoveFromIndex(ctx context.Context, contentID string) error {
	count, err := p.counts.Get(ctx, contentID)
	if err != nil {
		return err
	}
	if count == 0 {
		return nil
	}
	ids := make([]string, count)
	for i := 0; i < count; i++ {
		ids[i] = models.ChunkID(contentID, i)
	}
	deleteCtx, cancel := context.WithTimeout(ctx, p.opts.UpsertTimeout)
	defer cancel()
	if err := p.store.Delete(deleteCtx, ids); err != nil {
		return fmt.Errorf("removing content %s from index: %w", contentID, err)
	}
	return p.counts.Delete(ctx, contentID)
}

// SyncAll re-indexes every given collection, continuing past individual
// failures. Collections with a run already in flight are skipped.
func (p *IndexPipeline) SyncAll(ctx context.Context, collectionIDs []string) error {
	var failed []string
	for _, id := range collectionIDs {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		err := p.IndexCollection(ctx, id)
		if errors.Is(err, ErrAlreadyIndexing) {
			logger.Info("skipping collection with indexing in flight", "collection_id", id)
			continue
		}
		if err != nil {
			logger.Error("sync failed for collection", "collection_id", id, "error", err)
			failed = append(failed, id)
		}
	}
	if len(failed) > 0 {
		return fmt.Errorf("sync failed for %d of %d collections", len(failed), len(collectionIDs))
	}
	return nil
}

func contentItem(record models.ContentRecord, collection *models.Collection) ContentItem {
	return ContentItem{
		ID:           record.ID,
		CollectionID: record.CollectionID,
		Title:        record.Title,
		Data:         record.Data,
		Metadata: models.ChunkMetadata{
			Status:                record.Status,
			CreatedAt:             record.CreatedAt,
			UpdatedAt:             record.UpdatedAt,
			AuthorID:              record.AuthorID,
			CollectionName:        collection.Name,
			CollectionDisplayName: collection.DisplayName,
		},
	}
}

// chunkMetadata flattens a chunk into the payload persisted alongside its
// vector. A bounded slice of the text rides along so snippets can be shown
// without re-hydration.
func chunkMetadata(chunk models.Chunk, snippetMax int) map[string]any {
	return map[string]any{
		"content_id":              chunk.ContentID,
		"collection_id":           chunk.CollectionID,
		"title":                   chunk.Title,
		"text":                    truncateSnippet(chunk.Text, snippetMax),
		"chunk_index":             chunk.ChunkIndex,
		"status":                  string(chunk.Metadata.Status),
		"created_at":              chunk.Metadata.CreatedAt,
		"updated_at":              chunk.Metadata.UpdatedAt,
		"author_id":               chunk.Metadata.AuthorID,
		"collection_name":         chunk.Metadata.CollectionName,
		"collection_display_name": chunk.Metadata.CollectionDisplayName,
		"total_chunks":            chunk.Metadata.TotalChunks,
	}
}
