package policy

import (
	"fmt"
	"sort"
	"strings"

	servicegraph "github.com/servicegraph/servicegraph-go"
	"github.com/servicegraph/servicegraph-go/index"
	"github.com/servicegraph/servicegraph-go/pathutil"
	"github.com/servicegraph/servicegraph-go/visibility"
)

// GlobalNodeID is the synthetic node violations of global-scope rules are
// recorded against.
const GlobalNodeID = "global"

// Item kinds, in the order a group is assembled.
const (
	ItemTagService     = "tag_service"
	ItemButtonField    = "button_field"
	ItemOption         = "option"
	ItemFallbackNode   = "fallback_node"
	ItemFallbackGlobal = "fallback_global"
)

// Item is one service occurrence collected from a scope.
type Item struct {
	Kind      string
	TagID     string
	FieldID   string
	OptionID  string
	ServiceID string
	Role      string

	snapshot pathutil.Snapshot
	known    bool
}

// Violation is one failed rule evaluation.
type Violation struct {
	RuleID   string        `json:"rule_id"`
	TagID    string        `json:"tag_id"`
	Severity string        `json:"severity"`
	Message  string        `json:"message"`
	Values   []interface{} `json:"values,omitempty"`
}

// Evaluate runs every compiled rule against the document. Rules scoped to
// visible_group are checked once per tag over that tag's selection-aware
// visible set; global rules see the whole catalog at once.
func Evaluate(ix *index.Index, rules []Rule, services servicegraph.ServiceMap, selected []string) []Violation {
	doc := ix.Document()
	if doc == nil || len(rules) == 0 {
		return nil
	}

	var violations []Violation
	for _, rule := range rules {
		switch rule.Scope {
		case ScopeGlobal:
			items := globalItems(ix, rule, services, selected)
			violations = append(violations, applyRule(rule, GlobalNodeID, items)...)
		default:
			for _, tag := range doc.Filters {
				if len(rule.Filter.TagIDs) > 0 && !containsString(rule.Filter.TagIDs, tag.ID) {
					continue
				}
				items := groupItems(ix, tag, services, selected)
				violations = append(violations, applyRule(rule, tag.ID, items)...)
			}
		}
	}
	return violations
}

// groupItems assembles the service items of one tag's visible group: the
// tag's own default service, button fields with a service id, options
// with a service id, plus fallback candidates addressed to the group.
func groupItems(ix *index.Index, tag *servicegraph.Tag, services servicegraph.ServiceMap, selected []string) []Item {
	doc := ix.Document()
	var items []Item
	add := func(item Item) {
		item.known = false
		if svc, ok := services[item.ServiceID]; ok {
			item.known = true
			item.snapshot = pathutil.NewSnapshot(map[string]interface{}{"service": svc.Snapshot()})
		}
		items = append(items, item)
	}

	if tag.ServiceID != "" {
		add(Item{Kind: ItemTagService, TagID: tag.ID, ServiceID: tag.ServiceID, Role: servicegraph.RoleBase})
	}

	visibleOptions := make(map[string]bool)
	groupServices := make(map[string]string) // service id -> role

	for _, fieldID := range visibility.VisibleFields(ix, tag.ID, selected) {
		field, ok := ix.Field(fieldID)
		if !ok {
			continue
		}
		if field.ServiceID != "" {
			add(Item{Kind: ItemButtonField, TagID: tag.ID, FieldID: field.ID, ServiceID: field.ServiceID, Role: field.Role()})
			groupServices[field.ServiceID] = field.Role()
		}
		for _, opt := range field.Options {
			visibleOptions[opt.ID] = true
			if opt.ServiceID == "" {
				continue
			}
			role := opt.Role(field)
			add(Item{Kind: ItemOption, TagID: tag.ID, FieldID: field.ID, OptionID: opt.ID, ServiceID: opt.ServiceID, Role: role})
			groupServices[opt.ServiceID] = role
		}
	}
	if tag.ServiceID != "" {
		groupServices[tag.ServiceID] = servicegraph.RoleBase
	}

	for _, nodeID := range sortedKeys(doc.Fallbacks.Nodes) {
		if nodeID != tag.ID && !visibleOptions[nodeID] {
			continue
		}
		role := servicegraph.RoleBase
		if opt, ok := ix.Option(nodeID); ok {
			owner, _ := ix.OptionOwner(nodeID)
			role = opt.Role(owner)
		}
		for _, candidateID := range doc.Fallbacks.Nodes[nodeID] {
			add(Item{Kind: ItemFallbackNode, TagID: tag.ID, OptionID: nodeID, ServiceID: candidateID, Role: role})
		}
	}

	for _, primaryID := range sortedKeys(doc.Fallbacks.Global) {
		role, inGroup := groupServices[primaryID]
		if !inGroup {
			continue
		}
		for _, candidateID := range doc.Fallbacks.Global[primaryID] {
			add(Item{Kind: ItemFallbackGlobal, TagID: tag.ID, ServiceID: candidateID, Role: role})
		}
	}

	return items
}

// globalItems assembles items with no group boundary. A tag_id allow-list
// restricts the pool to the union of those tags' visible groups; otherwise
// every field, option, tag service and fallback entry in the document
// contributes.
func globalItems(ix *index.Index, rule Rule, services servicegraph.ServiceMap, selected []string) []Item {
	doc := ix.Document()

	if len(rule.Filter.TagIDs) > 0 {
		var items []Item
		seen := make(map[string]bool)
		for _, tagID := range rule.Filter.TagIDs {
			tag, ok := ix.Tag(tagID)
			if !ok {
				continue
			}
			for _, item := range groupItems(ix, tag, services, selected) {
				key := item.Kind + "|" + item.FieldID + "|" + item.OptionID + "|" + item.ServiceID
				if seen[key] {
					continue
				}
				seen[key] = true
				items = append(items, item)
			}
		}
		return items
	}

	var items []Item
	add := func(item Item) {
		if svc, ok := services[item.ServiceID]; ok {
			item.known = true
			item.snapshot = pathutil.NewSnapshot(map[string]interface{}{"service": svc.Snapshot()})
		}
		items = append(items, item)
	}

	for _, tag := range doc.Filters {
		if tag.ServiceID != "" {
			add(Item{Kind: ItemTagService, TagID: tag.ID, ServiceID: tag.ServiceID, Role: servicegraph.RoleBase})
		}
	}
	for _, field := range doc.Fields {
		if field.ServiceID != "" {
			add(Item{Kind: ItemButtonField, FieldID: field.ID, ServiceID: field.ServiceID, Role: field.Role()})
		}
		for _, opt := range field.Options {
			if opt.ServiceID != "" {
				add(Item{Kind: ItemOption, FieldID: field.ID, OptionID: opt.ID, ServiceID: opt.ServiceID, Role: opt.Role(field)})
			}
		}
	}
	for _, nodeID := range sortedKeys(doc.Fallbacks.Nodes) {
		for _, candidateID := range doc.Fallbacks.Nodes[nodeID] {
			add(Item{Kind: ItemFallbackNode, OptionID: nodeID, ServiceID: candidateID, Role: servicegraph.RoleBase})
		}
	}
	for _, primaryID := range sortedKeys(doc.Fallbacks.Global) {
		for _, candidateID := range doc.Fallbacks.Global[primaryID] {
			add(Item{Kind: ItemFallbackGlobal, ServiceID: candidateID, Role: servicegraph.RoleBase})
		}
	}
	return items
}

func applyRule(rule Rule, nodeID string, items []Item) []Violation {
	var values []interface{}
	count := 0

	for _, item := range items {
		if rule.Filter.Role != RoleFilterBoth && item.Role != rule.Filter.Role {
			continue
		}
		if len(rule.Filter.FieldIDs) > 0 && !containsString(rule.Filter.FieldIDs, item.FieldID) {
			continue
		}
		if !wherePasses(rule.Where, item) {
			continue
		}
		count++
		value, _ := item.snapshot.Get(rule.Projection)
		values = append(values, value)
	}

	if count == 0 {
		return nil
	}

	failed, detail := opFails(rule, values, count)
	if !failed {
		return nil
	}

	return []Violation{{
		RuleID:   rule.ID,
		TagID:    nodeID,
		Severity: rule.Severity,
		Message:  fmt.Sprintf("policy %s: %s", rule.ID, detail),
		Values:   values,
	}}
}

// wherePasses evaluates every clause against the item snapshot. Unknown
// services are included by default: a clause that reaches into the
// service record of an unknown service is skipped for that item.
func wherePasses(where []Predicate, item Item) bool {
	for _, clause := range where {
		if !item.known && referencesService(clause.Path) {
			continue
		}
		value, exists := item.snapshot.Get(clause.Path)
		if !predicateHolds(clause, value, exists) {
			return false
		}
	}
	return true
}

func referencesService(path string) bool {
	return path == "service" || strings.HasPrefix(path, "service.")
}

func predicateHolds(clause Predicate, value interface{}, exists bool) bool {
	switch clause.Op {
	case WhereEq:
		return pathutil.Equal(value, clause.Value)
	case WhereNeq:
		return !pathutil.Equal(value, clause.Value)
	case WhereIn:
		return valueInList(value, clause.Value)
	case WhereNin:
		return !valueInList(value, clause.Value)
	case WhereExists:
		return exists
	case WhereTruthy:
		return pathutil.Truthy(value)
	case WhereFalsy:
		return !pathutil.Truthy(value)
	default:
		return true
	}
}

func valueInList(value, list interface{}) bool {
	items, ok := list.([]interface{})
	if !ok {
		return false
	}
	for _, item := range items {
		if pathutil.Equal(value, item) {
			return true
		}
	}
	return false
}

func opFails(rule Rule, values []interface{}, count int) (bool, string) {
	switch rule.Op {
	case OpAllEqual:
		for i := 1; i < len(values); i++ {
			if !pathutil.Equal(values[i], values[0]) {
				return true, fmt.Sprintf("%s is not equal across the group", rule.Projection)
			}
		}
	case OpUnique:
		for i := 0; i < len(values); i++ {
			if values[i] == nil {
				continue
			}
			for j := i + 1; j < len(values); j++ {
				if pathutil.Equal(values[i], values[j]) {
					return true, fmt.Sprintf("%s is not unique", rule.Projection)
				}
			}
		}
	case OpNoMix:
		distinct := 0
		var first interface{}
		for _, value := range values {
			if value == nil {
				continue
			}
			if distinct == 0 {
				first = value
				distinct = 1
				continue
			}
			if !pathutil.Equal(value, first) {
				return true, fmt.Sprintf("%s mixes distinct values", rule.Projection)
			}
		}
	case OpAllTrue:
		for _, value := range values {
			if !pathutil.Truthy(value) {
				return true, fmt.Sprintf("%s is not true for every item", rule.Projection)
			}
		}
	case OpAnyTrue:
		for _, value := range values {
			if pathutil.Truthy(value) {
				return false, ""
			}
		}
		return true, fmt.Sprintf("%s is not true for any item", rule.Projection)
	case OpMaxCount:
		if float64(count) > rule.Value {
			return true, fmt.Sprintf("%d items exceed max_count %v", count, rule.Value)
		}
	case OpMinCount:
		if float64(count) < rule.Value {
			return true, fmt.Sprintf("%d items fall short of min_count %v", count, rule.Value)
		}
	}
	return false, ""
}

func containsString(list []string, value string) bool {
	for _, item := range list {
		if item == value {
			return true
		}
	}
	return false
}

func sortedKeys(m map[string][]string) []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
