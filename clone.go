package servicegraph

// Clone returns a deep copy of the document. Pruning and history both
// operate on whole-document snapshots, never on shared state.
func (d *Document) Clone() *Document {
	if d == nil {
		return nil
	}

	out := &Document{
		SchemaVersion:      d.SchemaVersion,
		IncludesForButtons: cloneStringListMap(d.IncludesForButtons),
		ExcludesForButtons: cloneStringListMap(d.ExcludesForButtons),
		Fallbacks: Fallbacks{
			Nodes:  cloneStringListMap(d.Fallbacks.Nodes),
			Global: cloneStringListMap(d.Fallbacks.Global),
		},
	}

	if d.Filters != nil {
		out.Filters = make([]*Tag, len(d.Filters))
		for i, tag := range d.Filters {
			out.Filters[i] = tag.Clone()
		}
	}
	if d.Fields != nil {
		out.Fields = make([]*Field, len(d.Fields))
		for i, field := range d.Fields {
			out.Fields[i] = field.Clone()
		}
	}
	return out
}

// Clone returns a deep copy of the tag.
func (t *Tag) Clone() *Tag {
	if t == nil {
		return nil
	}

	out := *t
	out.Includes = cloneStrings(t.Includes)
	out.Excludes = cloneStrings(t.Excludes)
	out.FieldOrder = cloneStrings(t.FieldOrder)
	out.Constraints = cloneBoolMap(t.Constraints)
	if t.ConstraintsOrigin != nil {
		out.ConstraintsOrigin = make(map[string]string, len(t.ConstraintsOrigin))
		for flag, origin := range t.ConstraintsOrigin {
			out.ConstraintsOrigin[flag] = origin
		}
	}
	if t.ConstraintsOverrides != nil {
		out.ConstraintsOverrides = make(map[string]ConstraintOverride, len(t.ConstraintsOverrides))
		for flag, override := range t.ConstraintsOverrides {
			out.ConstraintsOverrides[flag] = override
		}
	}
	return &out
}

// Clone returns a deep copy of the field and its options.
func (f *Field) Clone() *Field {
	if f == nil {
		return nil
	}

	out := *f
	out.BindID = StringList(cloneStrings(f.BindID))
	out.Meta = cloneMeta(f.Meta)
	if f.Options != nil {
		out.Options = make([]*FieldOption, len(f.Options))
		for i, opt := range f.Options {
			out.Options[i] = opt.Clone()
		}
	}
	return &out
}

// Clone returns a deep copy of the option.
func (o *FieldOption) Clone() *FieldOption {
	if o == nil {
		return nil
	}

	out := *o
	out.Meta = cloneMeta(o.Meta)
	return &out
}

func cloneStrings(in []string) []string {
	if in == nil {
		return nil
	}
	out := make([]string, len(in))
	copy(out, in)
	return out
}

func cloneBoolMap(in map[string]bool) map[string]bool {
	if in == nil {
		return nil
	}
	out := make(map[string]bool, len(in))
	for key, value := range in {
		out[key] = value
	}
	return out
}

func cloneStringListMap(in map[string][]string) map[string][]string {
	if in == nil {
		return nil
	}
	out := make(map[string][]string, len(in))
	for key, values := range in {
		out[key] = cloneStrings(values)
	}
	return out
}

func cloneMeta(in map[string]interface{}) map[string]interface{} {
	if in == nil {
		return nil
	}
	out := make(map[string]interface{}, len(in))
	for key, value := range in {
		out[key] = cloneValue(value)
	}
	return out
}

func cloneValue(value interface{}) interface{} {
	switch v := value.(type) {
	case map[string]interface{}:
		return cloneMeta(v)
	case []interface{}:
		out := make([]interface{}, len(v))
		for i, item := range v {
			out[i] = cloneValue(item)
		}
		return out
	default:
		return value
	}
}
