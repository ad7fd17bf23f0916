package lint

import (
	"fmt"
	"strings"

	servicegraph "github.com/servicegraph/servicegraph-go"
	"github.com/servicegraph/servicegraph-go/index"
)

// checkStructure verifies the root tag, the acyclicity of the parent
// chain, and that every bind_id reference resolves.
func checkStructure(ctx *Context) []Issue {
	issues := make([]Issue, 0)

	if ctx.Doc.RootTag() == nil {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Code:     CodeMissingRoot,
			Message:  fmt.Sprintf("no tag carries the root id %q", servicegraph.RootTagID),
		})
	}

	if offender, found := firstCycleTag(ctx.Doc); found {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Code:     CodeTagCycle,
			Message:  fmt.Sprintf("tag %q closes a cycle in the parent chain", offender),
			NodeID:   offender,
		})
	}

	for _, tag := range ctx.Doc.Filters {
		if tag.BindID == "" {
			continue
		}
		if _, ok := ctx.Index.Tag(tag.BindID); !ok {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Code:     CodeDanglingBind,
				Message:  fmt.Sprintf("tag %q binds to unknown tag %q", tag.ID, tag.BindID),
				NodeID:   tag.ID,
				Details:  map[string]interface{}{"bind_id": tag.BindID},
			})
		}
	}

	for _, field := range ctx.Doc.Fields {
		for _, tagID := range field.BindID {
			if _, ok := ctx.Index.Tag(tagID); !ok {
				issues = append(issues, Issue{
					Severity: SeverityError,
					Code:     CodeDanglingBind,
					Message:  fmt.Sprintf("field %q binds to unknown tag %q", field.ID, tagID),
					NodeID:   field.ID,
					Details:  map[string]interface{}{"bind_id": tagID},
				})
			}
		}
	}

	return issues
}

// firstCycleTag walks every parent chain with visiting/visited marks and
// reports the first tag that closes a cycle, only that one.
func firstCycleTag(doc *servicegraph.Document) (string, bool) {
	tags := make(map[string]*servicegraph.Tag, len(doc.Filters))
	for _, tag := range doc.Filters {
		tags[tag.ID] = tag
	}

	const (
		unvisited = 0
		visiting  = 1
		visited   = 2
	)
	state := make(map[string]int, len(tags))

	var walk func(tag *servicegraph.Tag) (string, bool)
	walk = func(tag *servicegraph.Tag) (string, bool) {
		switch state[tag.ID] {
		case visiting:
			return tag.ID, true
		case visited:
			return "", false
		}
		state[tag.ID] = visiting
		if parent, ok := tags[tag.BindID]; ok && tag.BindID != "" {
			if offender, found := walk(parent); found {
				state[tag.ID] = visited
				return offender, true
			}
		}
		state[tag.ID] = visited
		return "", false
	}

	for _, tag := range doc.Filters {
		if offender, found := walk(tag); found {
			return offender, true
		}
	}
	return "", false
}

// checkIdentity verifies id uniqueness across the combined tag and field
// space, non-blank labels, unique tag labels, and unique names among
// user-input fields.
func checkIdentity(ctx *Context) []Issue {
	issues := make([]Issue, 0)

	seenIDs := make(map[string]string)
	reportDuplicate := func(id, kind string) {
		first, dup := seenIDs[id]
		if !dup {
			seenIDs[id] = kind
			return
		}
		issues = append(issues, Issue{
			Severity: SeverityError,
			Code:     CodeDuplicateID,
			Message:  fmt.Sprintf("id %q is used by both a %s and a %s", id, first, kind),
			NodeID:   id,
		})
	}

	tagLabels := make(map[string]string)
	for _, tag := range ctx.Doc.Filters {
		reportDuplicate(tag.ID, "tag")
		if strings.TrimSpace(tag.Label) == "" {
			issues = append(issues, blankLabel("tag", tag.ID))
			continue
		}
		if firstID, dup := tagLabels[tag.Label]; dup {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Code:     CodeDuplicateTagLabel,
				Message:  fmt.Sprintf("tag label %q is used by %q and %q", tag.Label, firstID, tag.ID),
				NodeID:   tag.ID,
				Details:  map[string]interface{}{"affectedIds": []string{firstID, tag.ID}},
			})
		} else {
			tagLabels[tag.Label] = tag.ID
		}
	}

	inputNames := make(map[string]string)
	for _, field := range ctx.Doc.Fields {
		reportDuplicate(field.ID, "field")
		if strings.TrimSpace(field.Label) == "" {
			issues = append(issues, blankLabel("field", field.ID))
		}
		for _, opt := range field.Options {
			if strings.TrimSpace(opt.Label) == "" {
				issues = append(issues, blankLabel("option", opt.ID))
			}
		}

		if !field.IsUserInput() || field.HasServiceOption() {
			continue
		}
		if firstID, dup := inputNames[field.Name]; dup {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Code:     CodeDuplicateName,
				Message:  fmt.Sprintf("input name %q is used by fields %q and %q", field.Name, firstID, field.ID),
				NodeID:   field.ID,
				Details:  map[string]interface{}{"affectedIds": []string{firstID, field.ID}},
			})
		} else {
			inputNames[field.Name] = field.ID
		}
	}

	return issues
}

func blankLabel(kind, id string) Issue {
	return Issue{
		Severity: SeverityError,
		Code:     CodeBlankLabel,
		Message:  fmt.Sprintf("%s %q has a blank label", kind, id),
		NodeID:   id,
	}
}

// checkOptionMaps verifies that every button-map key parses as
// fieldId::optionId and resolves to a real option, and that no key sits
// in both the include and the exclude map.
func checkOptionMaps(ctx *Context) []Issue {
	issues := make([]Issue, 0)

	verify := func(key, mapName string) {
		fieldID, _, composite := index.ParseButtonKey(key)
		if !composite {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Code:     CodeBadButtonKey,
				Message:  fmt.Sprintf("%s key %q does not parse as fieldId::optionId", mapName, key),
				NodeID:   key,
			})
			return
		}
		_, opt, ok := ctx.Index.ResolveButtonKey(key)
		if !ok || opt == nil {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Code:     CodeBadButtonKey,
				Message:  fmt.Sprintf("%s key %q does not resolve to an option on field %q", mapName, key, fieldID),
				NodeID:   key,
			})
		}
	}

	for _, key := range sortedMapKeys(ctx.Doc.IncludesForButtons) {
		verify(key, "includes_for_buttons")
	}
	for _, key := range sortedMapKeys(ctx.Doc.ExcludesForButtons) {
		verify(key, "excludes_for_buttons")
		if _, both := ctx.Doc.IncludesForButtons[key]; both {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Code:     CodeButtonKeyConflict,
				Message:  fmt.Sprintf("key %q appears in both the include and the exclude map", key),
				NodeID:   key,
			})
		}
	}

	return issues
}
