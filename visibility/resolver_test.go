package visibility

import (
	"testing"

	"github.com/stretchr/testify/assert"

	servicegraph "github.com/servicegraph/servicegraph-go"
	"github.com/servicegraph/servicegraph-go/index"
)

func buildIndex(doc *servicegraph.Document) *index.Index {
	return index.Build(doc)
}

func TestVisibleFieldsBindingAndIncludes(t *testing.T) {
	doc := &servicegraph.Document{
		Filters: []*servicegraph.Tag{
			{ID: "root"},
			{ID: "A", BindID: "root", Includes: []string{"fX"}, Excludes: []string{"fY"}},
		},
		Fields: []*servicegraph.Field{
			{ID: "f1", BindID: servicegraph.StringList{"A"}},
			{ID: "fX"},
			{ID: "fY"},
		},
	}

	assert.Equal(t, []string{"f1", "fX"}, VisibleFields(buildIndex(doc), "A", nil))
}

func TestVisibleFieldsUnknownTag(t *testing.T) {
	doc := &servicegraph.Document{Filters: []*servicegraph.Tag{{ID: "root"}}}
	assert.Empty(t, VisibleFields(buildIndex(doc), "nope", nil))
}

func TestVisibleFieldsExclusionAlwaysWins(t *testing.T) {
	doc := &servicegraph.Document{
		Filters: []*servicegraph.Tag{
			{ID: "A", Includes: []string{"f1"}, Excludes: []string{"f1"}},
		},
		Fields: []*servicegraph.Field{
			{ID: "f1", BindID: servicegraph.StringList{"A"}},
		},
	}
	assert.Empty(t, VisibleFields(buildIndex(doc), "A", nil), "excluding an included field removes it")
}

func TestVisibleFieldsSelectionIncludesAndExcludes(t *testing.T) {
	doc := &servicegraph.Document{
		Filters: []*servicegraph.Tag{{ID: "A"}},
		Fields: []*servicegraph.Field{
			{ID: "f1", BindID: servicegraph.StringList{"A"}},
			{ID: "f2"},
			{ID: "f3"},
		},
		IncludesForButtons: map[string][]string{
			"btn::opt1": {"f2"},
			"btn::opt2": {"f3"},
		},
		ExcludesForButtons: map[string][]string{
			"btn::opt3": {"f1"},
		},
	}
	ix := buildIndex(doc)

	// Revealed fields come first, in key-selection order.
	assert.Equal(t, []string{"f3", "f2", "f1"},
		VisibleFields(ix, "A", []string{"btn::opt2", "btn::opt1"}))

	// A selected exclude key removes a bound field.
	assert.Equal(t, []string{"f2"},
		VisibleFields(ix, "A", []string{"btn::opt1", "btn::opt3"}))
}

func TestVisibleFieldsSelectionExcludeWinsOverInclude(t *testing.T) {
	doc := &servicegraph.Document{
		Filters: []*servicegraph.Tag{{ID: "A"}},
		Fields:  []*servicegraph.Field{{ID: "f1"}},
		IncludesForButtons: map[string][]string{
			"k::in": {"f1"},
		},
		ExcludesForButtons: map[string][]string{
			"k::out": {"f1"},
		},
	}
	assert.Empty(t, VisibleFields(buildIndex(doc), "A", []string{"k::in", "k::out"}))
}

func TestVisibleFieldsExplicitOrder(t *testing.T) {
	doc := &servicegraph.Document{
		Filters: []*servicegraph.Tag{
			{ID: "A", FieldOrder: []string{"f3", "f1"}},
		},
		Fields: []*servicegraph.Field{
			{ID: "f1", BindID: servicegraph.StringList{"A"}},
			{ID: "f2", BindID: servicegraph.StringList{"A"}},
			{ID: "f3", BindID: servicegraph.StringList{"A"}},
		},
	}

	// Ordered fields first, remaining pool members in pool order after.
	assert.Equal(t, []string{"f3", "f1", "f2"}, VisibleFields(buildIndex(doc), "A", nil))
}

func TestVisibleFieldsDeterministic(t *testing.T) {
	doc := &servicegraph.Document{
		Filters: []*servicegraph.Tag{{ID: "A", Includes: []string{"f2"}}},
		Fields: []*servicegraph.Field{
			{ID: "f1", BindID: servicegraph.StringList{"A"}},
			{ID: "f2"},
		},
	}
	ix := buildIndex(doc)

	first := VisibleFields(ix, "A", nil)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, VisibleFields(ix, "A", nil))
	}
}
