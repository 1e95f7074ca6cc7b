package models

// IndexState is the lifecycle state of a collection's index.
type IndexState string

const (
	IndexStateIdle      IndexState = "idle"
	IndexStateIndexing  IndexState = "indexing"
	IndexStateCompleted IndexState = "completed"
	IndexStateError     IndexState = "error"
)

// IndexStatus tracks per-collection indexing progress and health.
// IndexedItems counts chunks, not source records. The record is created on
// the first indexing request and overwritten atomically on every run.
type IndexStatus struct {
	CollectionID   string     `bson:"collection_id" json:"collection_id"`
	CollectionName string     `bson:"collection_name" json:"collection_name"`
	TotalItems     int        `bson:"total_items" json:"total_items"`
	IndexedItems   int        `bson:"indexed_items" json:"indexed_items"`
	LastSyncAt     int64      `bson:"last_sync_at,omitempty" json:"last_sync_at,omitempty"`
	Status         IndexState `bson:"status" json:"status"`
	ErrorMessage   string     `bson:"error_message,omitempty" json:"error_message,omitempty"`
}
