package services

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtract_PriorityFieldOrder(t *testing.T) {
	te := NewTextExtractor()

	text := te.Extract(map[string]any{
		"body":        "The body copy of the page.",
		"title":       "Page Title",
		"description": "A short description.",
	})

	parts := strings.Split(text, "\n\n")
	assert.Equal(t, []string{"Page Title", "A short description.", "The body copy of the page."}, parts)
}

func TestExtract_SkipsNonProse(t *testing.T) {
	te := NewTextExtractor()

	text := te.Extract(map[string]any{
		"title":     "Widget Review",
		"id":        "should never appear in output",
		"slug":      "should never appear either",
		"url":       "https://example.com/widget-review-article",
		"image":     "a long image path that looks like prose",
		"thumbnail": "another long path that looks like prose",
		"metadata":  map[string]any{"notes": "hidden metadata prose content"},
		"views":     12845,
		"published": true,
		"extra":     nil,
	})

	assert.Equal(t, "Widget Review", text)
}

func TestExtract_NestedStructures(t *testing.T) {
	te := NewTextExtractor()

	text := te.Extract(map[string]any{
		"title": "Nested Record",
		"sections": []any{
			map[string]any{"heading": "First section heading text"},
			map[string]any{"heading": "Second section heading text"},
		},
		"attributes": map[string]any{
			"zeta":  "prose under the zeta key here",
			"alpha": "prose under the alpha key here",
		},
	})

	// Map keys are walked in sorted order for determinism.
	assert.Equal(t, strings.Join([]string{
		"Nested Record",
		"prose under the alpha key here",
		"prose under the zeta key here",
		"First section heading text",
		"Second section heading text",
	}, "\n\n"), text)
}

func TestExtract_ShortStringsAndURLs(t *testing.T) {
	te := NewTextExtractor()

	text := te.Extract(map[string]any{
		"details": map[string]any{
			"code": "ok", // below the prose threshold
			"link": "http://example.com/a-long-link-that-is-not-prose",
			"note": "this note is long enough to count",
		},
	})

	assert.Equal(t, "this note is long enough to count", text)
}

func TestExtract_CyclicPayload(t *testing.T) {
	te := NewTextExtractor()

	inner := map[string]any{"note": "cycle guard keeps this from looping"}
	inner["self"] = inner

	text := te.Extract(map[string]any{"details": inner})
	assert.Equal(t, "cycle guard keeps this from looping", text)
}

func TestExtract_Empty(t *testing.T) {
	te := NewTextExtractor()

	assert.Equal(t, "", te.Extract(nil))
	assert.Equal(t, "", te.Extract(map[string]any{}))
	assert.Equal(t, "", te.Extract(map[string]any{"title": "   "}))
}
