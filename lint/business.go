package lint

import (
	"fmt"
	"sort"
	"strings"

	servicegraph "github.com/servicegraph/servicegraph-go"
	"github.com/servicegraph/servicegraph-go/constraint"
)

// checkVisibilityDerived flags, per tag and per the current selection:
// duplicate visible labels, more than one quantity-marker field visible at
// once, and a utility priced item visible without any base in the group.
func checkVisibilityDerived(ctx *Context) []Issue {
	issues := make([]Issue, 0)

	for _, tag := range ctx.Doc.Filters {
		visible := ctx.Visible(tag.ID)

		labels := make(map[string]string)
		var quantityFields []string
		mix := roleMix{}

		for _, fieldID := range visible {
			field, ok := ctx.Index.Field(fieldID)
			if !ok {
				continue
			}

			if label := strings.TrimSpace(field.Label); label != "" {
				if firstID, dup := labels[label]; dup {
					issues = append(issues, Issue{
						Severity: SeverityError,
						Code:     CodeDuplicateVisibleLabel,
						Message:  fmt.Sprintf("label %q appears twice in tag %q", label, tag.ID),
						NodeID:   tag.ID,
						Details:  map[string]interface{}{"affectedIds": []string{firstID, field.ID}},
					})
				} else {
					labels[label] = field.ID
				}
			}

			if _, marked := field.Meta["quantity"]; marked {
				quantityFields = append(quantityFields, field.ID)
			}

			mix.addField(field)
		}

		if len(quantityFields) > 1 {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Code:     CodeMultipleQuantity,
				Message:  fmt.Sprintf("tag %q shows %d quantity fields at once", tag.ID, len(quantityFields)),
				NodeID:   tag.ID,
				Details:  map[string]interface{}{"affectedIds": quantityFields},
			})
		}

		if mix.utilityWithoutBase() {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Code:     CodeUtilityWithoutBase,
				Message:  fmt.Sprintf("tag %q shows a utility item without any base item", tag.ID),
				NodeID:   tag.ID,
			})
		}
	}

	return issues
}

// roleMix tracks which pricing roles the priced items of a group carry.
// Roles are determined per option, falling back to the owning field's
// role; a field contributes directly only when it is itself priced (a
// button with a service id, or a field carrying a utility marker).
type roleMix struct {
	hasBase    bool
	hasUtility bool
}

func (m *roleMix) add(role string) {
	if role == servicegraph.RoleUtility {
		m.hasUtility = true
	} else {
		m.hasBase = true
	}
}

func (m *roleMix) addField(field *servicegraph.Field) {
	for _, opt := range field.Options {
		m.add(opt.Role(field))
	}
	if len(field.Options) > 0 {
		return
	}
	if field.ServiceID != "" {
		m.add(field.Role())
		return
	}
	if _, marked := field.Meta["utility"]; marked || field.Role() == servicegraph.RoleUtility {
		m.add(servicegraph.RoleUtility)
	}
}

func (m *roleMix) utilityWithoutBase() bool {
	return m.hasUtility && !m.hasBase
}

// checkServiceVsUserInput enforces the service-vs-user-input invariant: a
// custom field carries no service-bearing option, a named field carries
// none either, and an unnamed non-custom field carries at least one (or
// maps a service itself).
func checkServiceVsUserInput(ctx *Context) []Issue {
	issues := make([]Issue, 0)

	for _, field := range ctx.Doc.Fields {
		switch {
		case field.Type == servicegraph.TypeCustom:
			if field.HasServiceOption() {
				issues = append(issues, Issue{
					Severity: SeverityError,
					Code:     CodeCustomWithServiceOption,
					Message:  fmt.Sprintf("custom field %q carries a service-bearing option", field.ID),
					NodeID:   field.ID,
				})
			}
		case field.IsUserInput():
			if field.HasServiceOption() {
				issues = append(issues, Issue{
					Severity: SeverityError,
					Code:     CodeNamedFieldWithService,
					Message:  fmt.Sprintf("field %q has a name and a service-bearing option", field.ID),
					NodeID:   field.ID,
				})
			}
		default:
			if !field.HasServiceOption() && field.ServiceID == "" {
				issues = append(issues, Issue{
					Severity: SeverityError,
					Code:     CodeServiceFieldWithoutService,
					Message:  fmt.Sprintf("field %q has no name and no service-bearing option", field.ID),
					NodeID:   field.ID,
				})
			}
		}
	}

	return issues
}

// checkRates flags multi-select fields whose base-role options resolve to
// services with more than one distinct rate.
func checkRates(ctx *Context) []Issue {
	issues := make([]Issue, 0)
	if ctx.Opts.Services == nil {
		return issues
	}

	for _, field := range ctx.Doc.Fields {
		if !ctx.multiSelect(field) {
			continue
		}

		rates := make(map[float64][]string)
		for _, opt := range field.Options {
			if opt.ServiceID == "" || opt.Role(field) != servicegraph.RoleBase {
				continue
			}
			svc, ok := ctx.Opts.Services[opt.ServiceID]
			if !ok {
				continue
			}
			rates[svc.Rate] = append(rates[svc.Rate], opt.ServiceID)
		}

		if len(rates) > 1 {
			var affected []string
			var distinct []float64
			for rate, serviceIDs := range rates {
				distinct = append(distinct, rate)
				affected = append(affected, serviceIDs...)
			}
			sort.Float64s(distinct)
			sort.Strings(affected)
			issues = append(issues, Issue{
				Severity: SeverityError,
				Code:     CodeRateMismatchAcrossBase,
				Message:  fmt.Sprintf("field %q mixes %d distinct base rates", field.ID, len(distinct)),
				NodeID:   field.ID,
				Details: map[string]interface{}{
					"rates":       distinct,
					"affectedIds": affected,
				},
			})
		}
	}

	return issues
}

// checkConstraints recomputes every tag's effective constraints from
// scratch, requires each flag set true to be exposed by every service in
// the group, and surfaces recorded overrides as non-blocking notices.
func checkConstraints(ctx *Context) []Issue {
	issues := make([]Issue, 0)

	for _, tag := range ctx.Doc.Filters {
		effective := constraint.Effective(ctx.Doc, tag.ID)

		var required []string
		for flag, value := range effective {
			if value {
				required = append(required, flag)
			}
		}
		sort.Strings(required)

		if len(required) > 0 {
			for _, serviceID := range groupServiceIDs(ctx, tag) {
				svc := ctx.Opts.Services[serviceID]
				for _, flag := range required {
					if !svc.FlagEnabled(flag) {
						issues = append(issues, Issue{
							Severity: SeverityError,
							Code:     CodeUnsupportedConstraint,
							Message:  fmt.Sprintf("tag %q requires %q but service %q does not expose it", tag.ID, flag, serviceID),
							NodeID:   tag.ID,
							Details: map[string]interface{}{
								"flag":       flag,
								"service_id": serviceID,
							},
						})
					}
				}
			}
		}

		for _, flag := range sortedOverrideFlags(tag.ConstraintsOverrides) {
			override := tag.ConstraintsOverrides[flag]
			issues = append(issues, Issue{
				Severity: SeverityWarning,
				Code:     CodeConstraintOverride,
				Message:  fmt.Sprintf("tag %q had its %q constraint overridden by %q", tag.ID, flag, override.Origin),
				NodeID:   tag.ID,
				Details: map[string]interface{}{
					"flag":   flag,
					"from":   override.From,
					"to":     override.To,
					"origin": override.Origin,
				},
			})
		}
	}

	return issues
}

// groupServiceIDs collects, in deterministic order, the tag's own mapped
// service and every service reachable from the tag's visible fields.
func groupServiceIDs(ctx *Context, tag *servicegraph.Tag) []string {
	seen := make(map[string]bool)
	var out []string
	add := func(serviceID string) {
		if serviceID == "" || seen[serviceID] {
			return
		}
		seen[serviceID] = true
		out = append(out, serviceID)
	}

	add(tag.ServiceID)
	for _, fieldID := range ctx.Visible(tag.ID) {
		field, ok := ctx.Index.Field(fieldID)
		if !ok {
			continue
		}
		add(field.ServiceID)
		for _, opt := range field.Options {
			add(opt.ServiceID)
		}
	}
	return out
}

func sortedOverrideFlags(overrides map[string]servicegraph.ConstraintOverride) []string {
	flags := make([]string, 0, len(overrides))
	for flag := range overrides {
		flags = append(flags, flag)
	}
	sort.Strings(flags)
	return flags
}

// checkCustomFields requires a component reference on every custom field.
func checkCustomFields(ctx *Context) []Issue {
	issues := make([]Issue, 0)

	for _, field := range ctx.Doc.Fields {
		if field.Type != servicegraph.TypeCustom {
			continue
		}
		if strings.TrimSpace(field.Component) == "" {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Code:     CodeMissingComponent,
				Message:  fmt.Sprintf("custom field %q names no component", field.ID),
				NodeID:   field.ID,
			})
		}
	}

	return issues
}

// checkGlobalUtilityGuard is the opt-in document-wide utility-without-base
// check; it ignores visibility and reports once at the global node.
func checkGlobalUtilityGuard(ctx *Context) []Issue {
	if !ctx.Opts.GlobalUtilityGuard {
		return nil
	}

	mix := roleMix{}
	for _, field := range ctx.Doc.Fields {
		mix.addField(field)
	}

	if !mix.utilityWithoutBase() {
		return nil
	}
	return []Issue{{
		Severity: SeverityError,
		Code:     CodeUtilityWithoutBase,
		Message:  "the catalog defines utility items but no base item",
		NodeID:   GlobalNodeID,
	}}
}

// checkUnboundFields flags fields that no tag binding, tag include, or
// button include can ever reveal.
func checkUnboundFields(ctx *Context) []Issue {
	issues := make([]Issue, 0)

	included := make(map[string]bool)
	for _, tag := range ctx.Doc.Filters {
		for _, fieldID := range tag.Includes {
			included[fieldID] = true
		}
	}
	for _, fieldIDs := range ctx.Doc.IncludesForButtons {
		for _, fieldID := range fieldIDs {
			included[fieldID] = true
		}
	}

	for _, field := range ctx.Doc.Fields {
		if included[field.ID] || len(ctx.Index.FieldTags(field)) > 0 {
			continue
		}
		issues = append(issues, Issue{
			Severity: SeverityWarning,
			Code:     CodeUnboundField,
			Message:  fmt.Sprintf("field %q is unreachable from every tag and selection", field.ID),
			NodeID:   field.ID,
		})
	}

	return issues
}

func sortedMapKeys(m map[string][]string) []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
