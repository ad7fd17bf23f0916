// Package servicegraph defines the catalog document model: a tree of
// categorized tags, the configurable fields bound to them, and the
// selectable options that may map to concrete purchasable services.
// The engines that make a document safe to ship live in the subpackages
// (index, constraint, visibility, lint, policy, fallback).
package servicegraph

// RootTagID is the well-known id of the catalog root tag. Exactly one tag
// carries it in a normalized document; the loader injects it when absent.
const RootTagID = "root"

// TypeCustom marks a field rendered by a host-supplied component.
const TypeCustom = "custom"

// ButtonKeySep separates the field id from the option id in a button key.
const ButtonKeySep = "::"

// Pricing roles for fields and options.
const (
	RoleBase    = "base"
	RoleUtility = "utility"
)

// ConstraintFlags is the fixed set of inheritable capability flags a tag
// may require from the services selectable underneath it.
var ConstraintFlags = []string{"refill", "cancel", "dripfeed"}

// ConstraintOverride records an ancestor overwriting a tag's own explicit
// constraint value during propagation.
type ConstraintOverride struct {
	From   bool   `json:"from" yaml:"from"`
	To     bool   `json:"to" yaml:"to"`
	Origin string `json:"origin" yaml:"origin"`
}

// Tag is a node in the category tree. BindID names the parent tag; a tag
// with an absent or dangling BindID is a traversal root. Constraints holds
// the tag's local requirements before propagation and the effective values
// after it.
type Tag struct {
	ID                   string                        `json:"id" yaml:"id"`
	Label                string                        `json:"label" yaml:"label"`
	BindID               string                        `json:"bind_id,omitempty" yaml:"bind_id,omitempty"`
	ServiceID            string                        `json:"service_id,omitempty" yaml:"service_id,omitempty"`
	Includes             []string                      `json:"includes,omitempty" yaml:"includes,omitempty"`
	Excludes             []string                      `json:"excludes,omitempty" yaml:"excludes,omitempty"`
	FieldOrder           []string                      `json:"field_order,omitempty" yaml:"field_order,omitempty"`
	Constraints          map[string]bool               `json:"constraints,omitempty" yaml:"constraints,omitempty"`
	ConstraintsOrigin    map[string]string             `json:"constraints_origin,omitempty" yaml:"constraints_origin,omitempty"`
	ConstraintsOverrides map[string]ConstraintOverride `json:"constraints_overrides,omitempty" yaml:"constraints_overrides,omitempty"`
}

// Field is a configurable input or button bound to one or more tags.
// A field with a Name collects user input; a field without one is
// service-backed and is expected to carry at least one option that maps
// to a service.
type Field struct {
	ID          string                 `json:"id" yaml:"id"`
	Type        string                 `json:"type,omitempty" yaml:"type,omitempty"`
	Label       string                 `json:"label" yaml:"label"`
	BindID      StringList             `json:"bind_id,omitempty" yaml:"bind_id,omitempty"`
	Name        string                 `json:"name,omitempty" yaml:"name,omitempty"`
	Options     []*FieldOption         `json:"options,omitempty" yaml:"options,omitempty"`
	PricingRole string                 `json:"pricing_role,omitempty" yaml:"pricing_role,omitempty"`
	Component   string                 `json:"component,omitempty" yaml:"component,omitempty"`
	ServiceID   string                 `json:"service_id,omitempty" yaml:"service_id,omitempty"`
	Meta        map[string]interface{} `json:"meta,omitempty" yaml:"meta,omitempty"`
}

// Role returns the field's pricing role, defaulting to base.
func (f *Field) Role() string {
	if f.PricingRole == "" {
		return RoleBase
	}
	return f.PricingRole
}

// IsUserInput reports whether the field collects user input rather than
// selecting a service.
func (f *Field) IsUserInput() bool {
	return f.Name != ""
}

// HasServiceOption reports whether any option on the field maps to a
// concrete service.
func (f *Field) HasServiceOption() bool {
	for _, opt := range f.Options {
		if opt.ServiceID != "" {
			return true
		}
	}
	return false
}

// FieldOption is a selectable choice on a field, optionally mapped to a
// concrete service.
type FieldOption struct {
	ID          string                 `json:"id" yaml:"id"`
	Label       string                 `json:"label" yaml:"label"`
	Value       interface{}            `json:"value,omitempty" yaml:"value,omitempty"`
	ServiceID   string                 `json:"service_id,omitempty" yaml:"service_id,omitempty"`
	PricingRole string                 `json:"pricing_role,omitempty" yaml:"pricing_role,omitempty"`
	Meta        map[string]interface{} `json:"meta,omitempty" yaml:"meta,omitempty"`
}

// Role returns the option's pricing role, inheriting from the owning field
// when the option does not override it.
func (o *FieldOption) Role(owner *Field) string {
	if o.PricingRole != "" {
		return o.PricingRole
	}
	if owner != nil {
		return owner.Role()
	}
	return RoleBase
}

// Fallbacks declares alternative services. Nodes is keyed by a tag or
// option id; Global is keyed by the primary service id being replaced and
// is usable from anywhere.
type Fallbacks struct {
	Nodes  map[string][]string `json:"nodes,omitempty" yaml:"nodes,omitempty"`
	Global map[string][]string `json:"global,omitempty" yaml:"global,omitempty"`
}

// Document is the whole catalog: tags ("filters"), fields, the
// selection-triggered include/exclude maps keyed by button key, and the
// declared fallback candidates.
type Document struct {
	Filters            []*Tag              `json:"filters" yaml:"filters"`
	Fields             []*Field            `json:"fields" yaml:"fields"`
	IncludesForButtons map[string][]string `json:"includes_for_buttons,omitempty" yaml:"includes_for_buttons,omitempty"`
	ExcludesForButtons map[string][]string `json:"excludes_for_buttons,omitempty" yaml:"excludes_for_buttons,omitempty"`
	Fallbacks          Fallbacks           `json:"fallbacks,omitempty" yaml:"fallbacks,omitempty"`
	SchemaVersion      int                 `json:"schema_version,omitempty" yaml:"schema_version,omitempty"`
}

// RootTag returns the tag carrying RootTagID, or nil.
func (d *Document) RootTag() *Tag {
	for _, tag := range d.Filters {
		if tag.ID == RootTagID {
			return tag
		}
	}
	return nil
}
