// Package index builds id-keyed lookups over a catalog document. The
// index holds non-owning back-references (tag to children, option to
// owning field) and is rebuilt wholesale whenever the document is
// replaced, never patched in place.
package index

import (
	"strings"

	servicegraph "github.com/servicegraph/servicegraph-go"
)

// Index provides id-keyed access to the tags, fields and options of one
// document.
type Index struct {
	doc *servicegraph.Document

	tags        map[string]*servicegraph.Tag
	fields      map[string]*servicegraph.Field
	options     map[string]*servicegraph.FieldOption
	optionOwner map[string]*servicegraph.Field
	children    map[string][]string
}

// Build constructs the index for a document.
func Build(doc *servicegraph.Document) *Index {
	ix := &Index{
		doc:         doc,
		tags:        make(map[string]*servicegraph.Tag),
		fields:      make(map[string]*servicegraph.Field),
		options:     make(map[string]*servicegraph.FieldOption),
		optionOwner: make(map[string]*servicegraph.Field),
		children:    make(map[string][]string),
	}
	if doc == nil {
		return ix
	}

	for _, tag := range doc.Filters {
		ix.tags[tag.ID] = tag
	}
	for _, tag := range doc.Filters {
		if tag.BindID == "" {
			continue
		}
		if _, ok := ix.tags[tag.BindID]; ok {
			ix.children[tag.BindID] = append(ix.children[tag.BindID], tag.ID)
		}
	}
	for _, field := range doc.Fields {
		ix.fields[field.ID] = field
		for _, opt := range field.Options {
			ix.options[opt.ID] = opt
			ix.optionOwner[opt.ID] = field
		}
	}
	return ix
}

// Document returns the indexed document.
func (ix *Index) Document() *servicegraph.Document { return ix.doc }

// Tag returns the tag with the given id.
func (ix *Index) Tag(id string) (*servicegraph.Tag, bool) {
	tag, ok := ix.tags[id]
	return tag, ok
}

// Field returns the field with the given id.
func (ix *Index) Field(id string) (*servicegraph.Field, bool) {
	field, ok := ix.fields[id]
	return field, ok
}

// Option returns the option with the given id.
func (ix *Index) Option(id string) (*servicegraph.FieldOption, bool) {
	opt, ok := ix.options[id]
	return opt, ok
}

// OptionOwner returns the field that owns the given option id.
func (ix *Index) OptionOwner(optionID string) (*servicegraph.Field, bool) {
	field, ok := ix.optionOwner[optionID]
	return field, ok
}

// Children returns the ids of the tags whose bind_id resolves to the
// given tag.
func (ix *Index) Children(tagID string) []string {
	return ix.children[tagID]
}

// Parent resolves the tag's bind_id. A tag with an absent or dangling
// parent is a traversal root and resolves to false.
func (ix *Index) Parent(tag *servicegraph.Tag) (*servicegraph.Tag, bool) {
	if tag == nil || tag.BindID == "" {
		return nil, false
	}
	parent, ok := ix.tags[tag.BindID]
	return parent, ok
}

// FieldTags returns the ids of the existing tags a field is bound to.
func (ix *Index) FieldTags(field *servicegraph.Field) []string {
	if field == nil {
		return nil
	}
	var out []string
	for _, tagID := range field.BindID {
		if _, ok := ix.tags[tagID]; ok {
			out = append(out, tagID)
		}
	}
	return out
}

// ParseButtonKey splits a button key into its field and option parts.
// A bare field id yields an empty option id.
func ParseButtonKey(key string) (fieldID, optionID string, composite bool) {
	idx := strings.Index(key, servicegraph.ButtonKeySep)
	if idx < 0 {
		return key, "", false
	}
	return key[:idx], key[idx+len(servicegraph.ButtonKeySep):], true
}

// ResolveButtonKey resolves a button key to its field and, for composite
// keys, the option on that field. ok is false when any part does not
// resolve.
func (ix *Index) ResolveButtonKey(key string) (*servicegraph.Field, *servicegraph.FieldOption, bool) {
	fieldID, optionID, composite := ParseButtonKey(key)
	field, ok := ix.fields[fieldID]
	if !ok {
		return nil, nil, false
	}
	if !composite {
		return field, nil, true
	}
	for _, opt := range field.Options {
		if opt.ID == optionID {
			return field, opt, true
		}
	}
	return field, nil, false
}
