package report

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/servicegraph/servicegraph-go/fallback"
	"github.com/servicegraph/servicegraph-go/lint"
	"github.com/servicegraph/servicegraph-go/policy"
)

func TestBuildSummarizesFindings(t *testing.T) {
	issues := []lint.Issue{
		{Severity: lint.SeverityError, Code: lint.CodeMissingRoot},
		{Severity: lint.SeverityWarning, Code: lint.CodeUnboundField},
	}
	violations := []policy.Violation{
		{RuleID: "handlers", Severity: policy.SeverityError},
		{RuleID: "caps", Severity: policy.SeverityWarning},
	}
	failures := []fallback.Diagnostic{
		{Scope: fallback.ScopeNode, Reason: fallback.ReasonRateViolation},
	}

	built := Build("cat-1", issues, violations, failures)

	assert.Equal(t, "cat-1", built.CatalogID)
	assert.False(t, built.GeneratedAt.IsZero())
	assert.Equal(t, 2, built.Summary.Errors)
	assert.Equal(t, 2, built.Summary.Warnings)
	assert.Equal(t, 5, built.Summary.Total)
	assert.False(t, built.Clean())
}

func TestBuildEmptyRunIsClean(t *testing.T) {
	built := Build("cat-2", nil, nil, nil)

	require.NotNil(t, built)
	assert.Equal(t, 0, built.Summary.Total)
	assert.True(t, built.Clean())
}

func TestWarningsOnlyRunIsClean(t *testing.T) {
	built := Build("cat-3", []lint.Issue{
		{Severity: lint.SeverityWarning, Code: lint.CodeConstraintOverride},
	}, nil, nil)

	assert.Equal(t, 0, built.Summary.Errors)
	assert.Equal(t, 1, built.Summary.Warnings)
	assert.True(t, built.Clean())
}
