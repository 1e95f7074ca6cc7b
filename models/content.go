package models

// ContentStatus is the lifecycle state of a content record.
type ContentStatus string

const (
	ContentStatusDraft     ContentStatus = "draft"
	ContentStatusPublished ContentStatus = "published"
	ContentStatusArchived  ContentStatus = "archived"
	ContentStatusDeleted   ContentStatus = "deleted"
)

// ContentRecord is a single item owned by the external content store.
// The search core only reads these; it never writes them.
type ContentRecord struct {
	ID           string         `bson:"_id" json:"id"`
	CollectionID string         `bson:"collection_id" json:"collection_id"`
	Title        string         `bson:"title" json:"title"`
	Slug         string         `bson:"slug" json:"slug"`
	Status       ContentStatus  `bson:"status" json:"status"`
	Data         map[string]any `bson:"data" json:"data"`
	CreatedAt    int64          `bson:"created_at" json:"created_at"`
	UpdatedAt    int64          `bson:"updated_at" json:"updated_at"`
	AuthorID     string         `bson:"author_id,omitempty" json:"author_id,omitempty"`
}

// Collection groups content records.
type Collection struct {
	ID          string `bson:"_id" json:"id"`
	Name        string `bson:"name" json:"name"`
	DisplayName string `bson:"display_name" json:"display_name"`
	Description string `bson:"description,omitempty" json:"description,omitempty"`
	IsActive    bool   `bson:"is_active" json:"is_active"`
}

// CollectionInfo is a collection enriched with indexing state for the admin UI.
type CollectionInfo struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	DisplayName string `json:"display_name"`
	Description string `json:"description,omitempty"`
	ItemCount   int64  `json:"item_count"`
	IsIndexed   bool   `json:"is_indexed"`
	IsDismissed bool   `json:"is_dismissed"`
	IsNew       bool   `json:"is_new"`
}
