// Package fallback decides which declared fallback candidates are
// admissible under a rate policy and an optional capability-constraint
// fit. Diagnostic mode explains every failing (node, candidate, context)
// triple; pruning mode returns a cleaned copy of the fallback map.
package fallback

import (
	"sort"

	servicegraph "github.com/servicegraph/servicegraph-go"
	"github.com/servicegraph/servicegraph-go/constraint"
	"github.com/servicegraph/servicegraph-go/index"
)

// Rate policies for candidate admissibility.
const (
	RateLTEPrimary      = "lte_primary"
	RateWithinPct       = "within_pct"
	RateAtLeastPctLower = "at_least_pct_lower"
)

// Validation modes. Strict promotes node-scoped failures to validation
// errors; dev keeps them as inspectable diagnostics only.
const (
	ModeStrict = "strict"
	ModeDev    = "dev"
)

// Diagnostic scopes.
const (
	ScopeNode   = "node"
	ScopeGlobal = "global"
)

// Failure reasons.
const (
	ReasonUnknownService     = "unknown_service"
	ReasonNoPrimary          = "no_primary"
	ReasonRateViolation      = "rate_violation"
	ReasonConstraintMismatch = "constraint_mismatch"
	ReasonCycle              = "cycle"
	ReasonNoTagContext       = "no_tag_context"
)

// Settings configures admissibility.
type Settings struct {
	RatePolicy           string  `json:"rate_policy,omitempty" yaml:"rate_policy,omitempty"`
	RatePct              float64 `json:"rate_pct,omitempty" yaml:"rate_pct,omitempty"`
	RequireConstraintFit bool    `json:"require_constraint_fit,omitempty" yaml:"require_constraint_fit,omitempty"`
	SelectionStrategy    string  `json:"selection_strategy,omitempty" yaml:"selection_strategy,omitempty"`
	Mode                 string  `json:"mode,omitempty" yaml:"mode,omitempty"`
}

func (s Settings) ratePolicy() string {
	if s.RatePolicy == "" {
		return RateLTEPrimary
	}
	return s.RatePolicy
}

// Diagnostic is one failing (node, candidate[, tagContext]) record.
type Diagnostic struct {
	Scope       string `json:"scope"`
	NodeID      string `json:"node_id,omitempty"`
	PrimaryID   string `json:"primary_id,omitempty"`
	CandidateID string `json:"candidate_id,omitempty"`
	TagID       string `json:"tag_id,omitempty"`
	Reason      string `json:"reason"`
}

// RemovedCandidate is one pruning decision.
type RemovedCandidate struct {
	NodeID      string `json:"node_id"`
	CandidateID string `json:"candidate_id"`
	Reason      string `json:"reason"`
}

// PruneResult is the pruned document copy plus the removal report.
type PruneResult struct {
	Document *servicegraph.Document
	Removed  []RemovedCandidate
}

// CollectFailed emits one diagnostic per failing candidate check. For a
// multi-context option node each failing context produces its own record;
// a candidate is not globally bad just because one context rejects it.
func CollectFailed(ix *index.Index, services servicegraph.ServiceMap, settings Settings) []Diagnostic {
	doc := ix.Document()
	if doc == nil {
		return nil
	}

	var diags []Diagnostic

	for _, nodeID := range sortedKeys(doc.Fallbacks.Nodes) {
		candidates := doc.Fallbacks.Nodes[nodeID]
		primaryID, contexts := resolveNode(ix, nodeID)

		if primaryID == "" {
			for _, candidateID := range candidates {
				diags = append(diags, Diagnostic{
					Scope:       ScopeNode,
					NodeID:      nodeID,
					CandidateID: candidateID,
					Reason:      ReasonNoPrimary,
				})
			}
			continue
		}

		primary, primaryKnown := services[primaryID]
		if !primaryKnown {
			diags = append(diags, Diagnostic{
				Scope:       ScopeNode,
				NodeID:      nodeID,
				PrimaryID:   primaryID,
				CandidateID: primaryID,
				Reason:      ReasonUnknownService,
			})
		}

		for _, candidateID := range candidates {
			diags = append(diags, checkCandidate(ix, nodeID, ScopeNode, primaryID, primary, primaryKnown, candidateID, contexts, services, settings)...)
		}
	}

	for _, primaryID := range sortedKeys(doc.Fallbacks.Global) {
		candidates := doc.Fallbacks.Global[primaryID]
		primary, primaryKnown := services[primaryID]
		if !primaryKnown {
			diags = append(diags, Diagnostic{
				Scope:       ScopeGlobal,
				PrimaryID:   primaryID,
				CandidateID: primaryID,
				Reason:      ReasonUnknownService,
			})
		}
		for _, candidateID := range candidates {
			// Global entries have no tag context; constraint fit never
			// applies to them.
			diags = append(diags, checkCandidate(ix, "", ScopeGlobal, primaryID, primary, primaryKnown, candidateID, nil, services, Settings{
				RatePolicy: settings.RatePolicy,
				RatePct:    settings.RatePct,
			})...)
		}
	}

	return diags
}

func checkCandidate(ix *index.Index, nodeID, scope, primaryID string, primary *servicegraph.Service, primaryKnown bool, candidateID string, contexts []string, services servicegraph.ServiceMap, settings Settings) []Diagnostic {
	base := Diagnostic{
		Scope:       scope,
		NodeID:      nodeID,
		PrimaryID:   primaryID,
		CandidateID: candidateID,
	}

	if candidateID == primaryID {
		base.Reason = ReasonCycle
		return []Diagnostic{base}
	}

	candidate, ok := services[candidateID]
	if !ok {
		base.Reason = ReasonUnknownService
		return []Diagnostic{base}
	}

	var diags []Diagnostic
	if primaryKnown && !ratePasses(candidate.Rate, primary.Rate, settings) {
		violation := base
		violation.Reason = ReasonRateViolation
		diags = append(diags, violation)
	}

	if settings.RequireConstraintFit && scope == ScopeNode {
		if len(contexts) == 0 {
			missing := base
			missing.Reason = ReasonNoTagContext
			diags = append(diags, missing)
		}
		for _, tagID := range contexts {
			if !constraintFit(ix, tagID, candidate) {
				mismatch := base
				mismatch.Reason = ReasonConstraintMismatch
				mismatch.TagID = tagID
				diags = append(diags, mismatch)
			}
		}
	}

	return diags
}

// PruneNodes returns a copy of the document with inadmissible node-scoped
// candidates removed. A candidate is removed only when it fails the rate
// policy outright, or when constraint fit is required and it fails in
// every one of its tag contexts; passing even one context keeps it.
// Global entries are advisory and never touched.
func PruneNodes(ix *index.Index, services servicegraph.ServiceMap, settings Settings) PruneResult {
	doc := ix.Document()
	result := PruneResult{Document: doc.Clone()}
	if doc == nil || len(doc.Fallbacks.Nodes) == 0 {
		return result
	}

	for _, nodeID := range sortedKeys(doc.Fallbacks.Nodes) {
		candidates := doc.Fallbacks.Nodes[nodeID]
		primaryID, contexts := resolveNode(ix, nodeID)
		if primaryID == "" {
			continue
		}
		primary, primaryKnown := services[primaryID]

		kept := make([]string, 0, len(candidates))
		for _, candidateID := range candidates {
			reason := pruneReason(ix, primary, primaryKnown, primaryID, candidateID, contexts, services, settings)
			if reason == "" {
				kept = append(kept, candidateID)
				continue
			}
			result.Removed = append(result.Removed, RemovedCandidate{
				NodeID:      nodeID,
				CandidateID: candidateID,
				Reason:      reason,
			})
		}
		result.Document.Fallbacks.Nodes[nodeID] = kept
	}

	return result
}

func pruneReason(ix *index.Index, primary *servicegraph.Service, primaryKnown bool, primaryID, candidateID string, contexts []string, services servicegraph.ServiceMap, settings Settings) string {
	candidate, ok := services[candidateID]
	if !ok || candidateID == primaryID {
		// Diagnosed elsewhere; not a pruning decision.
		return ""
	}

	if primaryKnown && !ratePasses(candidate.Rate, primary.Rate, settings) {
		return ReasonRateViolation
	}

	if settings.RequireConstraintFit && len(contexts) > 0 {
		passing := false
		for _, tagID := range contexts {
			if constraintFit(ix, tagID, candidate) {
				passing = true
				break
			}
		}
		if !passing {
			return ReasonConstraintMismatch
		}
	}

	return ""
}

// resolveNode resolves a fallback node id structurally: a tag node's
// primary is the tag's service id and its only context is the tag; an
// option node's primary is the option's service id and its contexts are
// the tags the owning field is bound to.
func resolveNode(ix *index.Index, nodeID string) (primaryID string, contexts []string) {
	if tag, ok := ix.Tag(nodeID); ok {
		return tag.ServiceID, []string{tag.ID}
	}
	if opt, ok := ix.Option(nodeID); ok {
		owner, _ := ix.OptionOwner(nodeID)
		return opt.ServiceID, ix.FieldTags(owner)
	}
	return "", nil
}

func constraintFit(ix *index.Index, tagID string, candidate *servicegraph.Service) bool {
	effective := constraint.Effective(ix.Document(), tagID)
	for flag, required := range effective {
		if required && !candidate.FlagEnabled(flag) {
			return false
		}
	}
	return true
}

func ratePasses(candidateRate, primaryRate float64, settings Settings) bool {
	switch settings.ratePolicy() {
	case RateWithinPct:
		return candidateRate <= primaryRate*(1+settings.RatePct/100)
	case RateAtLeastPctLower:
		return candidateRate <= primaryRate*(1-settings.RatePct/100)
	default:
		return candidateRate <= primaryRate
	}
}

func sortedKeys(m map[string][]string) []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
