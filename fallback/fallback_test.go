package fallback

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	servicegraph "github.com/servicegraph/servicegraph-go"
	"github.com/servicegraph/servicegraph-go/index"
)

func rateDoc() *servicegraph.Document {
	return &servicegraph.Document{
		Filters: []*servicegraph.Tag{
			{ID: "root"},
			{ID: "T", BindID: "root", ServiceID: "100"},
		},
		Fallbacks: servicegraph.Fallbacks{
			Nodes: map[string][]string{
				"T": {"101", "102"},
			},
		},
	}
}

func rateServices() servicegraph.ServiceMap {
	return servicegraph.ServiceMap{
		"100": {ID: "100", Name: "primary", Rate: 10},
		"101": {ID: "101", Name: "cheaper", Rate: 8},
		"102": {ID: "102", Name: "pricier", Rate: 20},
	}
}

func TestCollectFailedRateViolation(t *testing.T) {
	ix := index.Build(rateDoc())

	diags := CollectFailed(ix, rateServices(), Settings{RatePolicy: RateLTEPrimary})

	require.Len(t, diags, 1)
	assert.Equal(t, ReasonRateViolation, diags[0].Reason)
	assert.Equal(t, "102", diags[0].CandidateID)
	assert.Equal(t, "T", diags[0].NodeID)
	assert.Equal(t, ScopeNode, diags[0].Scope)
}

func TestPruneRemovesOnlyRateViolators(t *testing.T) {
	ix := index.Build(rateDoc())

	result := PruneNodes(ix, rateServices(), Settings{})

	assert.Equal(t, []string{"101"}, result.Document.Fallbacks.Nodes["T"])
	require.Len(t, result.Removed, 1)
	assert.Equal(t, RemovedCandidate{NodeID: "T", CandidateID: "102", Reason: ReasonRateViolation}, result.Removed[0])

	// The input document is untouched.
	assert.Equal(t, []string{"101", "102"}, ix.Document().Fallbacks.Nodes["T"])
}

func TestPruneIsIdempotent(t *testing.T) {
	ix := index.Build(rateDoc())
	services := rateServices()

	once := PruneNodes(ix, services, Settings{})
	twice := PruneNodes(index.Build(once.Document), services, Settings{})

	assert.Equal(t, once.Document.Fallbacks.Nodes, twice.Document.Fallbacks.Nodes)
	assert.Empty(t, twice.Removed)
}

func TestRatePolicies(t *testing.T) {
	tests := []struct {
		name     string
		settings Settings
		rate     float64
		passes   bool
	}{
		{"lte pass", Settings{RatePolicy: RateLTEPrimary}, 10, true},
		{"lte fail", Settings{RatePolicy: RateLTEPrimary}, 10.5, false},
		{"within pct pass", Settings{RatePolicy: RateWithinPct, RatePct: 10}, 10.9, true},
		{"within pct fail", Settings{RatePolicy: RateWithinPct, RatePct: 10}, 11.5, false},
		{"at least pct lower pass", Settings{RatePolicy: RateAtLeastPctLower, RatePct: 20}, 7.9, true},
		{"at least pct lower fail", Settings{RatePolicy: RateAtLeastPctLower, RatePct: 20}, 9, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.passes, ratePasses(tt.rate, 10, tt.settings))
		})
	}
}

func TestCollectFailedCycleAndUnknown(t *testing.T) {
	doc := rateDoc()
	doc.Fallbacks.Nodes["T"] = []string{"100", "999"}
	ix := index.Build(doc)

	diags := CollectFailed(ix, rateServices(), Settings{})

	require.Len(t, diags, 2)
	assert.Equal(t, ReasonCycle, diags[0].Reason)
	assert.Equal(t, "100", diags[0].CandidateID)
	assert.Equal(t, ReasonUnknownService, diags[1].Reason)
	assert.Equal(t, "999", diags[1].CandidateID)
}

func TestCollectFailedNoPrimary(t *testing.T) {
	doc := rateDoc()
	doc.Filters[1].ServiceID = ""
	ix := index.Build(doc)

	diags := CollectFailed(ix, rateServices(), Settings{})

	require.Len(t, diags, 2)
	for _, diag := range diags {
		assert.Equal(t, ReasonNoPrimary, diag.Reason)
	}
}

func constraintDoc() *servicegraph.Document {
	return &servicegraph.Document{
		Filters: []*servicegraph.Tag{
			{ID: "root"},
			{ID: "A", BindID: "root", Constraints: map[string]bool{"refill": true}},
			{ID: "B", BindID: "root"},
		},
		Fields: []*servicegraph.Field{
			{
				ID:     "f1",
				BindID: servicegraph.StringList{"A", "B"},
				Options: []*servicegraph.FieldOption{
					{ID: "o1", ServiceID: "200"},
				},
			},
		},
		Fallbacks: servicegraph.Fallbacks{
			Nodes: map[string][]string{
				"o1": {"201"},
			},
		},
	}
}

func TestConstraintFitFailingContextIsReported(t *testing.T) {
	ix := index.Build(constraintDoc())
	services := servicegraph.ServiceMap{
		"200": {ID: "200", Rate: 10},
		"201": {ID: "201", Rate: 5}, // no refill flag
	}

	diags := CollectFailed(ix, services, Settings{RequireConstraintFit: true})

	require.Len(t, diags, 1)
	assert.Equal(t, ReasonConstraintMismatch, diags[0].Reason)
	assert.Equal(t, "A", diags[0].TagID, "only the refill-requiring context fails")
}

func TestPruneKeepsCandidatePassingOneContext(t *testing.T) {
	ix := index.Build(constraintDoc())
	services := servicegraph.ServiceMap{
		"200": {ID: "200", Rate: 10},
		"201": {ID: "201", Rate: 5},
	}

	// 201 fails the refill constraint under A but passes under B:
	// fails-not-all keeps it.
	result := PruneNodes(ix, services, Settings{RequireConstraintFit: true})
	assert.Equal(t, []string{"201"}, result.Document.Fallbacks.Nodes["o1"])
	assert.Empty(t, result.Removed)
}

func TestPruneRemovesCandidateFailingAllContexts(t *testing.T) {
	doc := constraintDoc()
	doc.Filters[2].Constraints = map[string]bool{"refill": true}
	ix := index.Build(doc)
	services := servicegraph.ServiceMap{
		"200": {ID: "200", Rate: 10},
		"201": {ID: "201", Rate: 5},
	}

	result := PruneNodes(ix, services, Settings{RequireConstraintFit: true})
	assert.Empty(t, result.Document.Fallbacks.Nodes["o1"])
	require.Len(t, result.Removed, 1)
	assert.Equal(t, ReasonConstraintMismatch, result.Removed[0].Reason)
}

func TestConstraintFitHonorsLegacyFlag(t *testing.T) {
	ix := index.Build(constraintDoc())
	services := servicegraph.ServiceMap{
		"200": {ID: "200", Rate: 10},
		"201": {ID: "201", Rate: 5, Meta: map[string]interface{}{"refill": true}},
	}

	diags := CollectFailed(ix, services, Settings{RequireConstraintFit: true})
	assert.Empty(t, diags, "a boolean top-level property satisfies the flag")
}

func TestGlobalFallbacksNeverPruned(t *testing.T) {
	doc := rateDoc()
	doc.Fallbacks.Global = map[string][]string{
		"100": {"102"}, // rate violator, but global entries are advisory
	}
	ix := index.Build(doc)

	result := PruneNodes(ix, rateServices(), Settings{})
	assert.Equal(t, []string{"102"}, result.Document.Fallbacks.Global["100"])
}

func TestGlobalFallbackDiagnosticsHaveGlobalScope(t *testing.T) {
	doc := &servicegraph.Document{
		Filters: []*servicegraph.Tag{{ID: "root"}},
		Fallbacks: servicegraph.Fallbacks{
			Global: map[string][]string{
				"100": {"102"},
			},
		},
	}
	ix := index.Build(doc)

	diags := CollectFailed(ix, rateServices(), Settings{})
	require.Len(t, diags, 1)
	assert.Equal(t, ScopeGlobal, diags[0].Scope)
	assert.Equal(t, ReasonRateViolation, diags[0].Reason)
}

func TestNoTagContextReported(t *testing.T) {
	doc := &servicegraph.Document{
		Filters: []*servicegraph.Tag{{ID: "root"}},
		Fields: []*servicegraph.Field{
			{
				ID: "floating",
				Options: []*servicegraph.FieldOption{
					{ID: "o1", ServiceID: "200"},
				},
			},
		},
		Fallbacks: servicegraph.Fallbacks{
			Nodes: map[string][]string{
				"o1": {"201"},
			},
		},
	}
	ix := index.Build(doc)
	services := servicegraph.ServiceMap{
		"200": {ID: "200", Rate: 10},
		"201": {ID: "201", Rate: 5},
	}

	diags := CollectFailed(ix, services, Settings{RequireConstraintFit: true})
	require.Len(t, diags, 1)
	assert.Equal(t, ReasonNoTagContext, diags[0].Reason)
}
