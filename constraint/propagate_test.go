package constraint

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	servicegraph "github.com/servicegraph/servicegraph-go"
)

func doc(tags ...*servicegraph.Tag) *servicegraph.Document {
	return &servicegraph.Document{Filters: tags}
}

func TestPropagateAncestorAlwaysWins(t *testing.T) {
	d := doc(
		&servicegraph.Tag{ID: "root", Constraints: map[string]bool{"refill": true}},
		&servicegraph.Tag{ID: "mid", BindID: "root", Constraints: map[string]bool{"refill": false}},
		&servicegraph.Tag{ID: "leaf", BindID: "mid"},
	)

	Propagate(d)

	mid := d.Filters[1]
	assert.True(t, mid.Constraints["refill"], "ancestor value wins over local")
	assert.Equal(t, "root", mid.ConstraintsOrigin["refill"])
	require.Contains(t, mid.ConstraintsOverrides, "refill")
	assert.Equal(t, servicegraph.ConstraintOverride{From: false, To: true, Origin: "root"}, mid.ConstraintsOverrides["refill"])

	leaf := d.Filters[2]
	assert.True(t, leaf.Constraints["refill"], "effective value flows to descendants")
	assert.Empty(t, leaf.ConstraintsOverrides)
}

func TestPropagateCoincidentalMatchReRootsProvenance(t *testing.T) {
	d := doc(
		&servicegraph.Tag{ID: "root", Constraints: map[string]bool{"cancel": true}},
		&servicegraph.Tag{ID: "child", BindID: "root", Constraints: map[string]bool{"cancel": true}},
	)

	Propagate(d)

	child := d.Filters[1]
	assert.True(t, child.Constraints["cancel"])
	assert.Equal(t, "child", child.ConstraintsOrigin["cancel"], "matching local value re-roots the origin")
	assert.Empty(t, child.ConstraintsOverrides)
}

func TestPropagateLocalValueWithoutAncestor(t *testing.T) {
	d := doc(
		&servicegraph.Tag{ID: "root"},
		&servicegraph.Tag{ID: "child", BindID: "root", Constraints: map[string]bool{"dripfeed": true}},
	)

	Propagate(d)

	child := d.Filters[1]
	assert.True(t, child.Constraints["dripfeed"])
	assert.Equal(t, "child", child.ConstraintsOrigin["dripfeed"])
}

func TestPropagateForestWithDanglingParent(t *testing.T) {
	d := doc(
		&servicegraph.Tag{ID: "root", Constraints: map[string]bool{"refill": true}},
		&servicegraph.Tag{ID: "orphan", BindID: "gone", Constraints: map[string]bool{"cancel": true}},
	)

	Propagate(d)

	orphan := d.Filters[1]
	assert.True(t, orphan.Constraints["cancel"], "a dangling parent makes the tag its own root")
	assert.NotContains(t, orphan.Constraints, "refill")
}

func TestPropagateSurvivesMalformedCycle(t *testing.T) {
	d := doc(
		&servicegraph.Tag{ID: "root"},
		&servicegraph.Tag{ID: "a", BindID: "b", Constraints: map[string]bool{"refill": true}},
		&servicegraph.Tag{ID: "b", BindID: "a"},
	)

	// Both cycle members resolve their parents, so neither is a root; the
	// walk must simply not hang or revisit.
	Propagate(d)
}

func TestEffectiveRecomputesFromScratch(t *testing.T) {
	d := doc(
		&servicegraph.Tag{ID: "root", Constraints: map[string]bool{"refill": true}},
		&servicegraph.Tag{ID: "child", BindID: "root", Constraints: map[string]bool{"refill": false, "cancel": true}},
	)

	// No Propagate call: Effective stays self-contained.
	effective := Effective(d, "child")
	assert.True(t, effective["refill"], "ancestor wins even without prior propagation")
	assert.True(t, effective["cancel"])
}

func TestEffectiveUnknownTag(t *testing.T) {
	assert.Nil(t, Effective(doc(&servicegraph.Tag{ID: "root"}), "missing"))
}

func TestEffectiveGuardsCycles(t *testing.T) {
	d := doc(
		&servicegraph.Tag{ID: "a", BindID: "b", Constraints: map[string]bool{"refill": true}},
		&servicegraph.Tag{ID: "b", BindID: "a"},
	)
	effective := Effective(d, "a")
	assert.True(t, effective["refill"])
}
