package index

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	servicegraph "github.com/servicegraph/servicegraph-go"
)

func testDoc() *servicegraph.Document {
	return &servicegraph.Document{
		Filters: []*servicegraph.Tag{
			{ID: "root"},
			{ID: "A", BindID: "root"},
			{ID: "B", BindID: "root"},
			{ID: "orphan", BindID: "gone"},
		},
		Fields: []*servicegraph.Field{
			{
				ID:     "f1",
				BindID: servicegraph.StringList{"A", "B"},
				Options: []*servicegraph.FieldOption{
					{ID: "o1"},
					{ID: "o2"},
				},
			},
		},
	}
}

func TestBuildLookups(t *testing.T) {
	ix := Build(testDoc())

	tag, ok := ix.Tag("A")
	require.True(t, ok)
	assert.Equal(t, "A", tag.ID)

	field, ok := ix.Field("f1")
	require.True(t, ok)
	assert.Equal(t, "f1", field.ID)

	opt, ok := ix.Option("o2")
	require.True(t, ok)
	assert.Equal(t, "o2", opt.ID)

	owner, ok := ix.OptionOwner("o2")
	require.True(t, ok)
	assert.Equal(t, "f1", owner.ID)

	assert.ElementsMatch(t, []string{"A", "B"}, ix.Children("root"))
}

func TestParentResolution(t *testing.T) {
	ix := Build(testDoc())

	tagA, _ := ix.Tag("A")
	parent, ok := ix.Parent(tagA)
	require.True(t, ok)
	assert.Equal(t, "root", parent.ID)

	orphan, _ := ix.Tag("orphan")
	_, ok = ix.Parent(orphan)
	assert.False(t, ok, "dangling bind_id resolves to no parent")
}

func TestFieldTagsSkipsDangling(t *testing.T) {
	doc := testDoc()
	doc.Fields[0].BindID = servicegraph.StringList{"A", "missing"}
	ix := Build(doc)

	field, _ := ix.Field("f1")
	assert.Equal(t, []string{"A"}, ix.FieldTags(field))
}

func TestParseButtonKey(t *testing.T) {
	fieldID, optionID, composite := ParseButtonKey("f1::o1")
	assert.True(t, composite)
	assert.Equal(t, "f1", fieldID)
	assert.Equal(t, "o1", optionID)

	fieldID, optionID, composite = ParseButtonKey("f1")
	assert.False(t, composite)
	assert.Equal(t, "f1", fieldID)
	assert.Empty(t, optionID)
}

func TestResolveButtonKey(t *testing.T) {
	ix := Build(testDoc())

	field, opt, ok := ix.ResolveButtonKey("f1::o1")
	require.True(t, ok)
	assert.Equal(t, "f1", field.ID)
	assert.Equal(t, "o1", opt.ID)

	_, opt, ok = ix.ResolveButtonKey("f1")
	assert.True(t, ok)
	assert.Nil(t, opt)

	_, _, ok = ix.ResolveButtonKey("f1::nope")
	assert.False(t, ok)

	_, _, ok = ix.ResolveButtonKey("ghost::o1")
	assert.False(t, ok)
}
