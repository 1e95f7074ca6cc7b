package services

import (
	"fmt"
	"reflect"
	"sort"
	"strings"
)

// priorityFields are concatenated first, in this order, when present at the
// top level of a content payload.
var priorityFields = []string{"title", "name", "description", "content", "body", "text", "summary"}

// skippedKeys are payload keys that never contain prose.
var skippedKeys = map[string]bool{
	"id":        true,
	"slug":      true,
	"url":       true,
	"image":     true,
	"thumbnail": true,
	"metadata":  true,
}

const minProseLength = 10

// TextExtractor flattens a semi-structured content payload into ordered
// prose, skipping non-prose fields.
type TextExtractor struct{}

func NewTextExtractor() *TextExtractor {
	return &TextExtractor{}
}

// Extract deterministically concatenates the priority fields, then walks the
// remainder of the payload appending prose strings. Maps and slices can be
// self-referential in Go, so visited containers are tracked and repeats
// skipped.
func (te *TextExtractor) Extract(data map[string]any) string {
	if len(data) == 0 {
		return ""
	}

	var parts []string
	consumed := make(map[string]bool, len(priorityFields))

	for _, field := range priorityFields {
		if v, ok := data[field]; ok {
			if s, ok := v.(string); ok && strings.TrimSpace(s) != "" {
				parts = append(parts, s)
				consumed[field] = true
			}
		}
	}

	visited := make(map[uintptr]bool)
	keys := make([]string, 0, len(data))
	for k := range data {
		if !consumed[k] {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	for _, k := range keys {
		if skippedKeys[strings.ToLower(k)] {
			continue
		}
		parts = te.walk(data[k], parts, visited)
	}

	return strings.TrimSpace(strings.Join(parts, "\n\n"))
}

func (te *TextExtractor) walk(v any, parts []string, visited map[uintptr]bool) []string {
	switch val := v.(type) {
	case string:
		if len(val) > minProseLength && !strings.HasPrefix(val, "http") {
			parts = append(parts, val)
		}
	case []any:
		ptr := reflect.ValueOf(val).Pointer()
		if visited[ptr] {
			return parts
		}
		visited[ptr] = true
		for _, item := range val {
			parts = te.walk(item, parts, visited)
		}
	case map[string]any:
		ptr := reflect.ValueOf(val).Pointer()
		if visited[ptr] {
			return parts
		}
		visited[ptr] = true
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			if skippedKeys[strings.ToLower(k)] {
				continue
			}
			parts = te.walk(val[k], parts, visited)
		}
	case fmt.Stringer:
		parts = te.walk(val.String(), parts, visited)
	}
	// Numbers, bools and nulls carry no prose.
	return parts
}
