// Package visibility computes the ordered set of fields visible under a
// tag for a given selection. Static binding and tag-level include/exclude
// combine with selection-triggered include/exclude maps; exclusion always
// wins over inclusion regardless of source.
package visibility

import (
	"github.com/servicegraph/servicegraph-go/index"
)

// VisibleFields returns the ordered field ids visible under tagID for the
// given selected button keys. An unknown tag yields an empty list.
//
// Ordering: when the tag declares an explicit field order, those fields
// come first in that order, then remaining pool members in pool order.
// Otherwise fields revealed by the current selection come first, in the
// order their keys were revealed, then the rest of the pool in insertion
// order. A UI can thereby animate newly revealed fields first without the
// resolver knowing about UI concerns.
func VisibleFields(ix *index.Index, tagID string, selected []string) []string {
	tag, ok := ix.Tag(tagID)
	if !ok {
		return []string{}
	}

	doc := ix.Document()

	// Candidate pool in insertion order: bound fields, tag includes,
	// selection-triggered includes.
	var pool []string
	inPool := make(map[string]bool)
	add := func(fieldID string) {
		if inPool[fieldID] {
			return
		}
		if _, ok := ix.Field(fieldID); !ok {
			return
		}
		inPool[fieldID] = true
		pool = append(pool, fieldID)
	}

	for _, field := range doc.Fields {
		if field.BindID.Contains(tagID) {
			add(field.ID)
		}
	}
	for _, fieldID := range tag.Includes {
		add(fieldID)
	}

	// Track the per-key first-occurrence order of revealed fields for the
	// selection-first ordering rule.
	var revealed []string
	revealedSet := make(map[string]bool)
	for _, key := range selected {
		for _, fieldID := range doc.IncludesForButtons[key] {
			add(fieldID)
			if inPool[fieldID] && !revealedSet[fieldID] {
				revealedSet[fieldID] = true
				revealed = append(revealed, fieldID)
			}
		}
	}

	excluded := make(map[string]bool)
	for _, fieldID := range tag.Excludes {
		excluded[fieldID] = true
	}
	for _, key := range selected {
		for _, fieldID := range doc.ExcludesForButtons[key] {
			excluded[fieldID] = true
		}
	}

	if len(tag.FieldOrder) > 0 {
		return orderExplicit(pool, tag.FieldOrder, excluded)
	}
	return orderRevealedFirst(pool, revealed, revealedSet, excluded)
}

func orderExplicit(pool, order []string, excluded map[string]bool) []string {
	inPool := make(map[string]bool, len(pool))
	for _, fieldID := range pool {
		inPool[fieldID] = true
	}

	out := make([]string, 0, len(pool))
	placed := make(map[string]bool, len(pool))
	for _, fieldID := range order {
		if inPool[fieldID] && !excluded[fieldID] && !placed[fieldID] {
			placed[fieldID] = true
			out = append(out, fieldID)
		}
	}
	for _, fieldID := range pool {
		if !excluded[fieldID] && !placed[fieldID] {
			out = append(out, fieldID)
		}
	}
	return out
}

func orderRevealedFirst(pool, revealed []string, revealedSet, excluded map[string]bool) []string {
	out := make([]string, 0, len(pool))
	for _, fieldID := range revealed {
		if !excluded[fieldID] {
			out = append(out, fieldID)
		}
	}
	for _, fieldID := range pool {
		if !excluded[fieldID] && !revealedSet[fieldID] {
			out = append(out, fieldID)
		}
	}
	return out
}
