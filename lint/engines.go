package lint

import (
	"fmt"

	"github.com/servicegraph/servicegraph-go/fallback"
	"github.com/servicegraph/servicegraph-go/policy"
)

// checkFallbacks delegates to the fallback engine in diagnostic mode and,
// in strict mode only, re-emits node-scoped failures as validation
// errors. Global-scope failures are advisory and never promoted,
// regardless of mode.
func checkFallbacks(ctx *Context) []Issue {
	if ctx.Opts.Fallbacks.Mode != fallback.ModeStrict {
		return nil
	}

	issues := make([]Issue, 0)
	for _, diag := range fallback.CollectFailed(ctx.Index, ctx.Opts.Services, ctx.Opts.Fallbacks) {
		if diag.Scope != fallback.ScopeNode {
			continue
		}
		details := map[string]interface{}{
			"candidate_id": diag.CandidateID,
		}
		if diag.PrimaryID != "" {
			details["primary_id"] = diag.PrimaryID
		}
		if diag.TagID != "" {
			details["tag_id"] = diag.TagID
		}
		issues = append(issues, Issue{
			Severity: SeverityError,
			Code:     codeFallbackPrefix + diag.Reason,
			Message:  fmt.Sprintf("fallback candidate %q on node %q: %s", diag.CandidateID, diag.NodeID, diag.Reason),
			NodeID:   diag.NodeID,
			Details:  details,
		})
	}
	return issues
}

// checkPolicies compiles the caller-supplied dynamic rules, surfaces
// every compile deviation, and evaluates the surviving rules. A rule
// dropped at compile time never blocks the others.
func checkPolicies(ctx *Context) []Issue {
	if len(ctx.Opts.Policies) == 0 {
		return nil
	}

	issues := make([]Issue, 0)
	compiled := policy.Compile(ctx.Opts.Policies)

	for _, diag := range compiled.Diagnostics {
		issues = append(issues, Issue{
			Severity: diag.Severity,
			Code:     CodePolicyDefinition,
			Message:  diag.Message,
			NodeID:   diag.RuleID,
			Details:  map[string]interface{}{"path": diag.Path},
		})
	}

	violations := policy.Evaluate(ctx.Index, compiled.Policies, ctx.Opts.Services, ctx.Opts.SelectedKeys)
	for _, violation := range violations {
		issues = append(issues, Issue{
			Severity: violation.Severity,
			Code:     CodePolicyViolation,
			Message:  violation.Message,
			NodeID:   violation.TagID,
			Details: map[string]interface{}{
				"rule_id": violation.RuleID,
				"values":  violation.Values,
			},
		})
	}

	return issues
}
