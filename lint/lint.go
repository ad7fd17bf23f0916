// Package lint validates a catalog document. Passes run in a fixed order
// over one shared context and only ever append diagnostics; no pass may
// suppress another's findings, so a caller can render every problem at
// once.
package lint

import (
	servicegraph "github.com/servicegraph/servicegraph-go"
	"github.com/servicegraph/servicegraph-go/fallback"
	"github.com/servicegraph/servicegraph-go/index"
	"github.com/servicegraph/servicegraph-go/policy"
	"github.com/servicegraph/servicegraph-go/visibility"
)

const (
	SeverityWarning = "warning"
	SeverityError   = "error"

	CodeMissingRoot  = "missing_root"
	CodeTagCycle     = "tag_cycle"
	CodeDanglingBind = "dangling_bind"

	CodeDuplicateID       = "duplicate_id"
	CodeBlankLabel        = "blank_label"
	CodeDuplicateTagLabel = "duplicate_tag_label"
	CodeDuplicateName     = "duplicate_name"

	CodeBadButtonKey      = "bad_button_key"
	CodeButtonKeyConflict = "button_key_conflict"

	CodeDuplicateVisibleLabel = "duplicate_visible_label"
	CodeMultipleQuantity      = "multiple_quantity_fields"
	CodeUtilityWithoutBase    = "utility_without_base"

	CodeCustomWithServiceOption    = "custom_with_service_option"
	CodeServiceFieldWithoutService = "service_field_without_service"
	CodeNamedFieldWithService      = "named_field_with_service"

	CodeRateMismatchAcrossBase = "rate_mismatch_across_base"

	CodeUnsupportedConstraint = "unsupported_constraint"
	CodeConstraintOverride    = "constraint_override"

	CodeMissingComponent = "missing_component"
	CodeUnboundField     = "unbound_field"

	CodePolicyDefinition = "policy_definition"
	CodePolicyViolation  = "policy_violation"

	// Strict-mode fallback failures are re-emitted as fallback_<reason>.
	codeFallbackPrefix = "fallback_"
)

// GlobalNodeID is the synthetic node document-wide findings attach to.
const GlobalNodeID = "global"

// Issue is one validation finding with a stable code.
type Issue struct {
	Severity string                 `json:"severity"`
	Code     string                 `json:"code"`
	Message  string                 `json:"message"`
	NodeID   string                 `json:"node_id,omitempty"`
	Details  map[string]interface{} `json:"details,omitempty"`
}

// Options carries everything the caller supplies for one validation run.
type Options struct {
	// Services is the host capability map.
	Services servicegraph.ServiceMap

	// SelectedKeys are the currently selected button keys; visibility-
	// derived passes resolve groups against this selection.
	SelectedKeys []string

	// Policies are host-authored dynamic rules, compiled and evaluated as
	// part of the run.
	Policies []policy.RawRule

	// GlobalUtilityGuard enables the document-wide utility-without-base
	// check that ignores visibility.
	GlobalUtilityGuard bool

	// Fallbacks configures the fallback engine; strict mode promotes
	// node-scoped fallback failures to validation errors.
	Fallbacks fallback.Settings

	// MultiSelect decides which fields behave as multi-select for the
	// rate coherence pass. When nil, service-backed fields with more than
	// one option are treated as multi-select.
	MultiSelect func(*servicegraph.Field) bool
}

// Context is built once per validation call and shared read-only by every
// pass.
type Context struct {
	Doc   *servicegraph.Document
	Index *index.Index
	Opts  Options
}

// Visible resolves a tag's selection-aware visible field set.
func (c *Context) Visible(tagID string) []string {
	return visibility.VisibleFields(c.Index, tagID, c.Opts.SelectedKeys)
}

func (c *Context) multiSelect(field *servicegraph.Field) bool {
	if c.Opts.MultiSelect != nil {
		return c.Opts.MultiSelect(field)
	}
	return !field.IsUserInput() && len(field.Options) > 1
}

type pass func(*Context) []Issue

// ValidateDocument runs every pass in order and returns the combined
// diagnostic list. Business failures never abort the run.
func ValidateDocument(doc *servicegraph.Document, opts Options) []Issue {
	if doc == nil {
		return nil
	}

	ctx := &Context{
		Doc:   doc,
		Index: index.Build(doc),
		Opts:  opts,
	}

	passes := []pass{
		checkStructure,
		checkIdentity,
		checkOptionMaps,
		checkVisibilityDerived,
		checkServiceVsUserInput,
		checkRates,
		checkConstraints,
		checkCustomFields,
		checkGlobalUtilityGuard,
		checkUnboundFields,
		checkFallbacks,
		checkPolicies,
	}

	issues := make([]Issue, 0)
	for _, run := range passes {
		issues = append(issues, run(ctx)...)
	}
	return issues
}
