package history

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	servicegraph "github.com/servicegraph/servicegraph-go"
)

func snapshot(version int) *servicegraph.Document {
	return &servicegraph.Document{
		SchemaVersion: version,
		Filters:       []*servicegraph.Tag{{ID: "root", Label: fmt.Sprintf("v%d", version)}},
	}
}

func TestUndoRedoWalk(t *testing.T) {
	h := New(10)
	h.Push(snapshot(1))
	h.Push(snapshot(2))
	h.Push(snapshot(3))

	require.True(t, h.CanUndo())
	assert.False(t, h.CanRedo())

	doc, ok := h.Undo()
	require.True(t, ok)
	assert.Equal(t, 2, doc.SchemaVersion)

	doc, ok = h.Undo()
	require.True(t, ok)
	assert.Equal(t, 1, doc.SchemaVersion)
	assert.False(t, h.CanUndo())

	doc, ok = h.Redo()
	require.True(t, ok)
	assert.Equal(t, 2, doc.SchemaVersion)

	doc, ok = h.Redo()
	require.True(t, ok)
	assert.Equal(t, 3, doc.SchemaVersion)
	assert.False(t, h.CanRedo())
}

func TestPushDiscardsRedoBranch(t *testing.T) {
	h := New(10)
	h.Push(snapshot(1))
	h.Push(snapshot(2))

	_, ok := h.Undo()
	require.True(t, ok)
	require.True(t, h.CanRedo())

	h.Push(snapshot(9))
	assert.False(t, h.CanRedo())

	doc, ok := h.Undo()
	require.True(t, ok)
	assert.Equal(t, 1, doc.SchemaVersion)
}

func TestLimitEvictsOldest(t *testing.T) {
	h := New(2)
	for version := 1; version <= 5; version++ {
		h.Push(snapshot(version))
	}

	doc, ok := h.Undo()
	require.True(t, ok)
	assert.Equal(t, 4, doc.SchemaVersion)

	doc, ok = h.Undo()
	require.True(t, ok)
	assert.Equal(t, 3, doc.SchemaVersion)

	_, ok = h.Undo()
	assert.False(t, ok, "snapshots beyond the bound are gone")
}

func TestSnapshotsAreIsolated(t *testing.T) {
	h := New(10)
	original := snapshot(1)
	h.Push(original)

	original.Filters[0].Label = "mutated"
	assert.Equal(t, "v1", h.Current().Filters[0].Label, "pushing clones the document")

	current := h.Current()
	current.Filters[0].Label = "mutated again"
	assert.Equal(t, "v1", h.Current().Filters[0].Label, "reading clones the document")
}

func TestEmptyHistory(t *testing.T) {
	h := New(0)
	assert.False(t, h.CanUndo())
	assert.False(t, h.CanRedo())

	_, ok := h.Undo()
	assert.False(t, ok)
	_, ok = h.Redo()
	assert.False(t, ok)
	assert.Nil(t, h.Current())

	h.Push(nil)
	assert.Nil(t, h.Current())
}
