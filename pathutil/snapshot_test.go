package pathutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleSnapshot() Snapshot {
	return NewSnapshot(map[string]interface{}{
		"service": map[string]interface{}{
			"id":   "42",
			"rate": 2.5,
			"min":  100,
			"flags": map[string]interface{}{
				"refill": map[string]interface{}{"enabled": true},
			},
			"aliases": []interface{}{"a", "b"},
		},
	})
}

func TestGetDotPaths(t *testing.T) {
	snap := sampleSnapshot()

	value, ok := snap.Get("service.id")
	require.True(t, ok)
	assert.Equal(t, "42", value)

	value, ok = snap.Get("service.rate")
	require.True(t, ok)
	assert.Equal(t, 2.5, value)

	value, ok = snap.Get("service.min")
	require.True(t, ok)
	assert.Equal(t, int64(100), value, "whole numbers project as integers")

	value, ok = snap.Get("service.flags.refill.enabled")
	require.True(t, ok)
	assert.Equal(t, true, value)
}

func TestGetArrayIndexing(t *testing.T) {
	snap := sampleSnapshot()

	value, ok := snap.Get("service.aliases[1]")
	require.True(t, ok)
	assert.Equal(t, "b", value)

	value, ok = snap.Get("service.aliases")
	require.True(t, ok)
	assert.Equal(t, []interface{}{"a", "b"}, value)
}

func TestGetMissingPath(t *testing.T) {
	snap := sampleSnapshot()

	_, ok := snap.Get("service.nope")
	assert.False(t, ok)

	_, ok = snap.Get("service.aliases[9]")
	assert.False(t, ok)
}

func TestZeroSnapshotResolvesNothing(t *testing.T) {
	var snap Snapshot
	_, ok := snap.Get("anything")
	assert.False(t, ok)
}

func TestUnmarshalableValueResolvesNothing(t *testing.T) {
	snap := NewSnapshot(map[string]interface{}{"bad": func() {}})
	_, ok := snap.Get("bad")
	assert.False(t, ok)
}

func TestTruthy(t *testing.T) {
	assert.False(t, Truthy(nil))
	assert.False(t, Truthy(false))
	assert.False(t, Truthy(""))
	assert.False(t, Truthy(int64(0)))
	assert.False(t, Truthy(float64(0)))
	assert.False(t, Truthy([]interface{}{}))
	assert.False(t, Truthy(map[string]interface{}{}))

	assert.True(t, Truthy(true))
	assert.True(t, Truthy("x"))
	assert.True(t, Truthy(int64(3)))
	assert.True(t, Truthy(0.1))
	assert.True(t, Truthy([]interface{}{1}))
}

func TestEqualNormalizesNumericTypes(t *testing.T) {
	assert.True(t, Equal(int64(3), float64(3)))
	assert.True(t, Equal(3, 3.0))
	assert.True(t, Equal("a", "a"))
	assert.False(t, Equal("3", 3))
	assert.False(t, Equal(int64(3), float64(4)))
	assert.True(t, Equal(nil, nil))
	assert.True(t, Equal(
		map[string]interface{}{"a": int64(1)},
		map[string]interface{}{"a": 1.0},
	))
}
