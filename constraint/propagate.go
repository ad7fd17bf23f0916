// Package constraint resolves the inheritable capability flags of the tag
// tree. A value set anywhere on an ancestor always wins over a
// descendant's own explicit value; provenance and overrides are recorded
// so the result is fully auditable.
package constraint

import (
	servicegraph "github.com/servicegraph/servicegraph-go"
)

type inherited struct {
	value  bool
	origin string
}

// Propagate walks the tag forest and rewrites every tag's Constraints to
// the effective values, filling ConstraintsOrigin and, where an ancestor
// overwrote a tag's own explicit value, ConstraintsOverrides. Any tag
// whose parent is absent or unresolved is a traversal root; a seen-set
// guards against malformed cycles that survived upstream checks.
func Propagate(doc *servicegraph.Document) {
	if doc == nil {
		return
	}

	tags := make(map[string]*servicegraph.Tag, len(doc.Filters))
	for _, tag := range doc.Filters {
		tags[tag.ID] = tag
	}

	children := make(map[string][]*servicegraph.Tag)
	var roots []*servicegraph.Tag
	for _, tag := range doc.Filters {
		if tag.BindID == "" {
			roots = append(roots, tag)
			continue
		}
		if _, ok := tags[tag.BindID]; !ok {
			roots = append(roots, tag)
			continue
		}
		children[tag.BindID] = append(children[tag.BindID], tag)
	}

	seen := make(map[string]bool, len(doc.Filters))
	for _, root := range roots {
		propagateFrom(root, nil, children, seen)
	}
}

func propagateFrom(tag *servicegraph.Tag, inh map[string]inherited, children map[string][]*servicegraph.Tag, seen map[string]bool) {
	if seen[tag.ID] {
		return
	}
	seen[tag.ID] = true

	local := tag.Constraints
	effective := make(map[string]bool)
	origin := make(map[string]string)
	overrides := make(map[string]servicegraph.ConstraintOverride)

	flags := make(map[string]struct{}, len(inh)+len(local))
	for flag := range inh {
		flags[flag] = struct{}{}
	}
	for flag := range local {
		flags[flag] = struct{}{}
	}

	for flag := range flags {
		up, hasUp := inh[flag]
		localValue, hasLocal := local[flag]

		switch {
		case hasUp && hasLocal && localValue != up.value:
			effective[flag] = up.value
			origin[flag] = up.origin
			overrides[flag] = servicegraph.ConstraintOverride{
				From:   localValue,
				To:     up.value,
				Origin: up.origin,
			}
		case hasUp && hasLocal:
			// Coincidental match re-roots provenance at this tag.
			effective[flag] = up.value
			origin[flag] = tag.ID
		case hasUp:
			effective[flag] = up.value
			origin[flag] = up.origin
		default:
			effective[flag] = localValue
			origin[flag] = tag.ID
		}
	}

	tag.Constraints = effective
	tag.ConstraintsOrigin = origin
	if len(overrides) > 0 {
		tag.ConstraintsOverrides = overrides
	} else {
		tag.ConstraintsOverrides = nil
	}

	// Children inherit the effective map, not the local one.
	down := make(map[string]inherited, len(effective))
	for flag, value := range effective {
		down[flag] = inherited{value: value, origin: origin[flag]}
	}

	for _, child := range children[tag.ID] {
		propagateFrom(child, down, children, seen)
	}
}

// Effective recomputes a tag's effective constraint map from scratch by
// walking its ancestor chain. It does not depend on Propagate having run,
// so validation stays self-contained even on an unpropagated document.
func Effective(doc *servicegraph.Document, tagID string) map[string]bool {
	if doc == nil {
		return nil
	}

	tags := make(map[string]*servicegraph.Tag, len(doc.Filters))
	for _, tag := range doc.Filters {
		tags[tag.ID] = tag
	}

	tag, ok := tags[tagID]
	if !ok {
		return nil
	}

	// Walk tag-to-root, guarded against malformed cycles.
	var chain []*servicegraph.Tag
	visited := make(map[string]bool)
	for current := tag; current != nil && !visited[current.ID]; {
		visited[current.ID] = true
		chain = append(chain, current)
		if current.BindID == "" {
			break
		}
		current = tags[current.BindID]
	}

	// Root-first, first setter wins: the highest ancestor that set a flag
	// is authoritative for the whole subtree.
	effective := make(map[string]bool)
	for i := len(chain) - 1; i >= 0; i-- {
		for flag, value := range chain[i].Constraints {
			if _, taken := effective[flag]; !taken {
				effective[flag] = value
			}
		}
	}
	return effective
}
