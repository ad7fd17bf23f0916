// Package history keeps a bounded undo/redo history of whole-document
// snapshots for builder-facing callers. Documents are cloned on the way
// in and on the way out, so no two holders ever share mutable state.
package history

import (
	servicegraph "github.com/servicegraph/servicegraph-go"
)

// DefaultLimit bounds the history when the caller passes a non-positive
// limit.
const DefaultLimit = 50

// History is a bounded undo/redo stack of document snapshots.
type History struct {
	limit   int
	past    []*servicegraph.Document
	present *servicegraph.Document
	future  []*servicegraph.Document
}

// New creates a history bounded to the given number of undo steps.
func New(limit int) *History {
	if limit <= 0 {
		limit = DefaultLimit
	}
	return &History{limit: limit}
}

// Push records a new present snapshot. Any redo branch is discarded and
// the oldest undo step is evicted once the bound is reached.
func (h *History) Push(doc *servicegraph.Document) {
	if doc == nil {
		return
	}
	if h.present != nil {
		h.past = append(h.past, h.present)
		if len(h.past) > h.limit {
			h.past = h.past[1:]
		}
	}
	h.present = doc.Clone()
	h.future = nil
}

// Current returns a copy of the present snapshot.
func (h *History) Current() *servicegraph.Document {
	return h.present.Clone()
}

// CanUndo reports whether an older snapshot exists.
func (h *History) CanUndo() bool { return len(h.past) > 0 }

// CanRedo reports whether an undone snapshot can be restored.
func (h *History) CanRedo() bool { return len(h.future) > 0 }

// Undo steps back one snapshot and returns a copy of it.
func (h *History) Undo() (*servicegraph.Document, bool) {
	if !h.CanUndo() {
		return nil, false
	}
	h.future = append(h.future, h.present)
	h.present = h.past[len(h.past)-1]
	h.past = h.past[:len(h.past)-1]
	return h.present.Clone(), true
}

// Redo restores the most recently undone snapshot and returns a copy.
func (h *History) Redo() (*servicegraph.Document, bool) {
	if !h.CanRedo() {
		return nil, false
	}
	h.past = append(h.past, h.present)
	h.present = h.future[len(h.future)-1]
	h.future = h.future[:len(h.future)-1]
	return h.present.Clone(), true
}
