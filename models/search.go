package models

// SearchMode selects between semantic and keyword retrieval.
type SearchMode string

const (
	SearchModeAI      SearchMode = "ai"
	SearchModeKeyword SearchMode = "keyword"
)

// DateRange bounds a search on created_at or updated_at (unix seconds).
type DateRange struct {
	Field string `json:"field,omitempty"` // "created_at" (default) or "updated_at"
	Start int64  `json:"start,omitempty"`
	End   int64  `json:"end,omitempty"`
}

// SearchFilters narrows a search query.
type SearchFilters struct {
	Collections []string   `json:"collections,omitempty"`
	Statuses    []string   `json:"status,omitempty"`
	DateRange   *DateRange `json:"date_range,omitempty"`
	AuthorID    string     `json:"author,omitempty"`
}

// SearchQuery is one search request. Transient, constructed per request.
type SearchQuery struct {
	Query   string        `json:"query" binding:"required"`
	Mode    SearchMode    `json:"mode"`
	Filters SearchFilters `json:"filters"`
	Limit   int           `json:"limit"`
	Offset  int           `json:"offset"`
}

// SearchResult is a single hydrated hit, unique by content id within a
// response. RelevanceScore is only set in semantic mode.
type SearchResult struct {
	ID             string  `json:"id"`
	Title          string  `json:"title"`
	Slug           string  `json:"slug"`
	CollectionID   string  `json:"collection_id"`
	CollectionName string  `json:"collection_name"`
	Snippet        string  `json:"snippet"`
	RelevanceScore float64 `json:"relevance_score,omitempty"`
	Status         string  `json:"status"`
	CreatedAt      int64   `json:"created_at"`
	UpdatedAt      int64   `json:"updated_at"`
	AuthorName     string  `json:"author_name,omitempty"`
}

// SearchResponse is the wire shape returned to the HTTP layer. Mode reports
// the mode actually used, which may differ from the requested one after a
// semantic failure.
type SearchResponse struct {
	Results     []SearchResult `json:"results"`
	Total       int64          `json:"total"`
	QueryTimeMs int64          `json:"query_time_ms"`
	Mode        SearchMode     `json:"mode"`
}

// QueryHistoryEntry records one executed search for analytics.
type QueryHistoryEntry struct {
	ID           string     `bson:"_id" json:"id"`
	Query        string     `bson:"query" json:"query"`
	Mode         SearchMode `bson:"mode" json:"mode"`
	ResultsCount int        `bson:"results_count" json:"results_count"`
	CreatedAt    int64      `bson:"created_at" json:"created_at"`
}

// QueryCount is a popular-query aggregate.
type QueryCount struct {
	Query string `bson:"_id" json:"query"`
	Count int64  `bson:"count" json:"count"`
}

// SearchAnalytics summarizes the last 30 days of query history.
type SearchAnalytics struct {
	TotalQueries   int64        `json:"total_queries"`
	AIQueries      int64        `json:"ai_queries"`
	KeywordQueries int64        `json:"keyword_queries"`
	PopularQueries []QueryCount `json:"popular_queries"`
	AvgQueryTimeMs float64      `json:"average_query_time"`
}
