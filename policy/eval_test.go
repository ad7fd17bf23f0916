package policy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	servicegraph "github.com/servicegraph/servicegraph-go"
	"github.com/servicegraph/servicegraph-go/index"
)

func evalDoc() *servicegraph.Document {
	return &servicegraph.Document{
		Filters: []*servicegraph.Tag{
			{ID: "root"},
			{ID: "A", BindID: "root"},
		},
		Fields: []*servicegraph.Field{
			{
				ID:     "f1",
				BindID: servicegraph.StringList{"A"},
				Options: []*servicegraph.FieldOption{
					{ID: "o1", ServiceID: "1"},
					{ID: "o2", ServiceID: "2"},
				},
			},
		},
	}
}

func handlerServices(h1, h2 string) servicegraph.ServiceMap {
	return servicegraph.ServiceMap{
		"1": {ID: "1", Rate: 10, Meta: map[string]interface{}{"handler_id": h1}},
		"2": {ID: "2", Rate: 12, Meta: map[string]interface{}{"handler_id": h2}},
	}
}

func noMixRule(id string) Rule {
	return Rule{
		ID:         id,
		Scope:      ScopeVisibleGroup,
		Subject:    SubjectServices,
		Severity:   SeverityError,
		Op:         OpNoMix,
		Projection: "service.handler_id",
		Filter:     Filter{Role: RoleFilterBoth},
	}
}

func TestEvaluateNoMixViolation(t *testing.T) {
	ix := index.Build(evalDoc())

	violations := Evaluate(ix, []Rule{noMixRule("handlers")}, handlerServices("api", "panel"), nil)

	require.Len(t, violations, 1, "one violation for the mixed group, none for root")
	assert.Equal(t, "handlers", violations[0].RuleID)
	assert.Equal(t, "A", violations[0].TagID)
	assert.Equal(t, SeverityError, violations[0].Severity)
	assert.Equal(t, []interface{}{"api", "panel"}, violations[0].Values)
}

func TestEvaluateNoMixPassesOnUniformGroup(t *testing.T) {
	ix := index.Build(evalDoc())

	violations := Evaluate(ix, []Rule{noMixRule("handlers")}, handlerServices("api", "api"), nil)
	assert.Empty(t, violations)
}

func TestEvaluateEmptyGroupNeverFires(t *testing.T) {
	doc := evalDoc()
	doc.Fields = nil
	ix := index.Build(doc)

	rule := noMixRule("handlers")
	rule.Op = OpMinCount
	rule.Value = 2
	rule.HasValue = true

	assert.Empty(t, Evaluate(ix, []Rule{rule}, handlerServices("api", "api"), nil))
}

func TestEvaluateRoleFilter(t *testing.T) {
	doc := evalDoc()
	doc.Fields[0].Options[1].PricingRole = servicegraph.RoleUtility
	ix := index.Build(doc)

	rule := noMixRule("handlers")
	rule.Filter.Role = RoleFilterBase

	// The utility option is filtered out, leaving a uniform group.
	assert.Empty(t, Evaluate(ix, []Rule{rule}, handlerServices("api", "panel"), nil))
}

func TestEvaluateTagAllowList(t *testing.T) {
	ix := index.Build(evalDoc())

	rule := noMixRule("handlers")
	rule.Filter.TagIDs = []string{"root"}

	assert.Empty(t, Evaluate(ix, []Rule{rule}, handlerServices("api", "panel"), nil))
}

func TestEvaluateWhereClauseNarrowsItems(t *testing.T) {
	ix := index.Build(evalDoc())
	services := handlerServices("api", "panel")
	services["2"].Category = "legacy"

	rule := noMixRule("handlers")
	rule.Where = []Predicate{{Path: "service.category", Op: WhereNeq, Value: "legacy"}}

	assert.Empty(t, Evaluate(ix, []Rule{rule}, services, nil))
}

func TestEvaluateUnknownServiceSkipsServiceClauses(t *testing.T) {
	ix := index.Build(evalDoc())
	services := handlerServices("api", "panel")
	delete(services, "2")

	rule := Rule{
		ID:         "cap",
		Scope:      ScopeVisibleGroup,
		Severity:   SeverityError,
		Op:         OpMaxCount,
		Value:      1,
		HasValue:   true,
		Projection: "service.id",
		Filter:     Filter{Role: RoleFilterBoth},
		Where:      []Predicate{{Path: "service.rate", Op: WhereExists}},
	}

	// The unknown service cannot satisfy or fail a service.* clause, so it
	// stays in the pool and the count still exceeds the cap.
	violations := Evaluate(ix, []Rule{rule}, services, nil)
	require.Len(t, violations, 1)
	assert.Equal(t, "A", violations[0].TagID)
}

func TestEvaluateGlobalScope(t *testing.T) {
	doc := evalDoc()
	doc.Filters[0].ServiceID = "1"
	ix := index.Build(doc)

	rule := Rule{
		ID:         "uniq",
		Scope:      ScopeGlobal,
		Severity:   SeverityWarning,
		Op:         OpUnique,
		Projection: "service.id",
		Filter:     Filter{Role: RoleFilterBoth},
	}

	// Service 1 appears as both the root tag service and option o1.
	violations := Evaluate(ix, []Rule{rule}, handlerServices("api", "panel"), nil)
	require.Len(t, violations, 1)
	assert.Equal(t, GlobalNodeID, violations[0].TagID)
	assert.Equal(t, SeverityWarning, violations[0].Severity)
}

func TestEvaluateAllTrueOverFlags(t *testing.T) {
	ix := index.Build(evalDoc())
	services := servicegraph.ServiceMap{
		"1": {ID: "1", Flags: map[string]servicegraph.ServiceFlag{"refill": {Enabled: true}}},
		"2": {ID: "2", Flags: map[string]servicegraph.ServiceFlag{"refill": {Enabled: false}}},
	}

	rule := noMixRule("refill-everywhere")
	rule.Op = OpAllTrue
	rule.Projection = "service.flags.refill.enabled"

	violations := Evaluate(ix, []Rule{rule}, services, nil)
	require.Len(t, violations, 1)
	assert.Equal(t, "A", violations[0].TagID)
}

func TestEvaluateFallbackCandidatesJoinTheGroup(t *testing.T) {
	doc := evalDoc()
	doc.Fallbacks.Nodes = map[string][]string{"o1": {"3"}}
	ix := index.Build(doc)

	services := handlerServices("api", "api")
	services["3"] = &servicegraph.Service{ID: "3", Meta: map[string]interface{}{"handler_id": "panel"}}

	violations := Evaluate(ix, []Rule{noMixRule("handlers")}, services, nil)
	require.Len(t, violations, 1)
	assert.Equal(t, "A", violations[0].TagID)
}
