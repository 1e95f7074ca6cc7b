package services

import (
	"strings"

	"ai-search-service/models"
)

// ChunkSizes configures the word-window size per content type plus the
// fixed overlap between consecutive windows.
type ChunkSizes struct {
	Default    int // fallback for unknown collection types
	LongForm   int // blog posts, articles
	Structured int // products, pages
	Short      int // comments, messages
	Overlap    int
}

// DefaultChunkSizes mirrors the tuning the embedding provider was sized for.
func DefaultChunkSizes() ChunkSizes {
	return ChunkSizes{
		Default:    500,
		LongForm:   600,
		Structured: 400,
		Short:      200,
		Overlap:    50,
	}
}

// ChunkerService splits a content record's extracted text into overlapping
// word-windows sized per content type.
type ChunkerService struct {
	extractor *TextExtractor
	sizes     ChunkSizes
}

func NewChunkerService(sizes ChunkSizes) *ChunkerService {
	return &ChunkerService{
		extractor: NewTextExtractor(),
		sizes:     sizes.withDefaults(),
	}
}

func (s ChunkSizes) withDefaults() ChunkSizes {
	d := DefaultChunkSizes()
	if s.Default <= 0 {
		return d
	}
	if s.LongForm <= 0 {
		s.LongForm = d.LongForm
	}
	if s.Structured <= 0 {
		s.Structured = d.Structured
	}
	if s.Short <= 0 {
		s.Short = d.Short
	}
	if s.Overlap < 0 {
		s.Overlap = 0
	}
	// The window step is size minus overlap; an overlap reaching the
	// smallest window would stall the loop, so it is clamped below it.
	if w := s.minWindow(); s.Overlap >= w {
		s.Overlap = w / 2
	}
	return s
}

func (s ChunkSizes) minWindow() int {
	w := s.Default
	for _, v := range []int{s.LongForm, s.Structured, s.Short} {
		if v < w {
			w = v
		}
	}
	return w
}

// ContentItem is one record prepared for chunking.
type ContentItem struct {
	ID           string
	CollectionID string
	Title        string
	Data         map[string]any
	Metadata     models.ChunkMetadata
}

// ChunkContent extracts text from one record and windows it. Returns an
// empty slice when the record yields no prose; the caller logs that as a
// warning, not an error.
func (cs *ChunkerService) ChunkContent(item ContentItem) []models.Chunk {
	text := cs.extractor.Extract(item.Data)
	if strings.TrimSpace(text) == "" {
		return nil
	}

	words := strings.Fields(text)
	size := cs.chunkSizeFor(item.Metadata.CollectionName)
	overlap := cs.sizes.Overlap

	var windows []string
	if len(words) <= size {
		windows = []string{strings.Join(words, " ")}
	} else {
		step := size - overlap
		for start := 0; start < len(words); start += step {
			// The previous full window already covers the tail once
			// the next start lands within the overlap of the end.
			if start > 0 && start+overlap >= len(words) {
				break
			}
			end := start + size
			if end > len(words) {
				end = len(words)
			}
			windows = append(windows, strings.Join(words[start:end], " "))
		}
	}

	chunks := make([]models.Chunk, len(windows))
	for i, window := range windows {
		chunks[i] = models.Chunk{
			ID:           models.ChunkID(item.ID, i),
			ContentID:    item.ID,
			CollectionID: item.CollectionID,
			Title:        item.Title,
			Text:         window,
			ChunkIndex:   i,
			Metadata:     item.Metadata,
		}
	}
	// Back-patch the final count onto every chunk in the batch.
	for i := range chunks {
		chunks[i].Metadata.TotalChunks = len(chunks)
	}
	return chunks
}

// ChunkBatch chunks every item, preserving record order, and returns the
// flat chunk list plus the ids of records that produced no text.
func (cs *ChunkerService) ChunkBatch(items []ContentItem) ([]models.Chunk, []string) {
	var chunks []models.Chunk
	var empty []string
	for _, item := range items {
		c := cs.ChunkContent(item)
		if len(c) == 0 {
			empty = append(empty, item.ID)
			continue
		}
		chunks = append(chunks, c...)
	}
	return chunks, empty
}

// chunkSizeFor picks a window size from the collection's type name.
func (cs *ChunkerService) chunkSizeFor(collectionName string) int {
	name := strings.ToLower(collectionName)
	switch {
	case containsAny(name, "blog", "article", "post", "news"):
		return cs.sizes.LongForm
	case containsAny(name, "comment", "message", "review"):
		return cs.sizes.Short
	case containsAny(name, "product", "page", "faq"):
		return cs.sizes.Structured
	default:
		return cs.sizes.Default
	}
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
