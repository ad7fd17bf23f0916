// Package report assembles the results of one validation run into a
// single publishable record.
package report

import (
	"time"

	"github.com/servicegraph/servicegraph-go/fallback"
	"github.com/servicegraph/servicegraph-go/lint"
	"github.com/servicegraph/servicegraph-go/policy"
)

// Summary counts findings by severity.
type Summary struct {
	Errors   int `json:"errors"`
	Warnings int `json:"warnings"`
	Total    int `json:"total"`
}

// Report is the combined result of validating one catalog.
type Report struct {
	CatalogID        string                `json:"catalog_id"`
	GeneratedAt      time.Time             `json:"generated_at"`
	Issues           []lint.Issue          `json:"issues"`
	PolicyViolations []policy.Violation    `json:"policy_violations,omitempty"`
	FallbackFailures []fallback.Diagnostic `json:"fallback_failures,omitempty"`
	Summary          Summary               `json:"summary"`
}

// Build assembles a report and fills its summary.
func Build(catalogID string, issues []lint.Issue, violations []policy.Violation, failures []fallback.Diagnostic) *Report {
	report := &Report{
		CatalogID:        catalogID,
		GeneratedAt:      time.Now(),
		Issues:           issues,
		PolicyViolations: violations,
		FallbackFailures: failures,
	}

	for _, issue := range issues {
		switch issue.Severity {
		case lint.SeverityError:
			report.Summary.Errors++
		case lint.SeverityWarning:
			report.Summary.Warnings++
		}
	}
	for _, violation := range violations {
		if violation.Severity == policy.SeverityError {
			report.Summary.Errors++
		} else {
			report.Summary.Warnings++
		}
	}
	report.Summary.Total = len(issues) + len(violations) + len(failures)
	return report
}

// Clean reports whether the run produced no error-level findings.
func (r *Report) Clean() bool {
	return r.Summary.Errors == 0
}
