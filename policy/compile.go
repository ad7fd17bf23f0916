// Package policy compiles host-supplied rule definitions into a validated
// internal form and evaluates them against service items collected from a
// scope. Projection and comparison are path-based over plain snapshots;
// no host-supplied code is ever executed.
package policy

import (
	"fmt"

	"github.com/google/uuid"
)

// Severities for compiled rules and compile diagnostics.
const (
	SeverityWarning = "warning"
	SeverityError   = "error"
)

// Scopes a rule may evaluate over.
const (
	ScopeVisibleGroup = "visible_group"
	ScopeGlobal       = "global"
)

// SubjectServices is the only supported rule subject.
const SubjectServices = "services"

// Role filters.
const (
	RoleFilterBase    = "base"
	RoleFilterUtility = "utility"
	RoleFilterBoth    = "both"
)

// Aggregate operators.
const (
	OpAllEqual = "all_equal"
	OpUnique   = "unique"
	OpNoMix    = "no_mix"
	OpAllTrue  = "all_true"
	OpAnyTrue  = "any_true"
	OpMaxCount = "max_count"
	OpMinCount = "min_count"
)

// Where-clause predicate operators.
const (
	WhereEq     = "eq"
	WhereNeq    = "neq"
	WhereIn     = "in"
	WhereNin    = "nin"
	WhereExists = "exists"
	WhereTruthy = "truthy"
	WhereFalsy  = "falsy"
)

// RawRule is one host-supplied rule-like record.
type RawRule map[string]interface{}

// Predicate is one compiled where clause.
type Predicate struct {
	Path  string
	Op    string
	Value interface{}
}

// Filter narrows the service items a rule sees.
type Filter struct {
	Role     string
	TagIDs   []string
	FieldIDs []string
}

// Rule is a compiled, validated policy.
type Rule struct {
	ID         string
	Scope      string
	Subject    string
	Severity   string
	Op         string
	Value      float64
	HasValue   bool
	Projection string
	Filter     Filter
	Where      []Predicate
}

// Diagnostic is one compile-time deviation report.
type Diagnostic struct {
	RuleID   string `json:"rule_id"`
	Path     string `json:"path"`
	Severity string `json:"severity"`
	Message  string `json:"message"`
}

// CompileResult pairs the compiled policy set with every deviation found.
// A rule dropped for an error-level deviation never appears in Policies.
type CompileResult struct {
	Policies    []Rule
	Diagnostics []Diagnostic
}

// SplitDiagnostics separates error-level from warning-level diagnostics.
func SplitDiagnostics(diags []Diagnostic) (errors, warnings []Diagnostic) {
	for _, diag := range diags {
		if diag.Severity == SeverityError {
			errors = append(errors, diag)
		} else {
			warnings = append(warnings, diag)
		}
	}
	return errors, warnings
}

// Compile fills defaults, validates every record, and drops rules whose
// operator cannot be evaluated. One malformed rule never blocks the rest.
func Compile(raw []RawRule) CompileResult {
	var result CompileResult

	for _, record := range raw {
		rule, diags, ok := compileOne(record)
		result.Diagnostics = append(result.Diagnostics, diags...)
		if ok {
			result.Policies = append(result.Policies, rule)
		}
	}
	return result
}

var numericOps = map[string]bool{OpMaxCount: true, OpMinCount: true}
var booleanOps = map[string]bool{OpAllTrue: true, OpAnyTrue: true}

var knownOps = map[string]bool{
	OpAllEqual: true, OpUnique: true, OpNoMix: true,
	OpAllTrue: true, OpAnyTrue: true,
	OpMaxCount: true, OpMinCount: true,
}

var knownWhereOps = map[string]bool{
	WhereEq: true, WhereNeq: true, WhereIn: true, WhereNin: true,
	WhereExists: true, WhereTruthy: true, WhereFalsy: true,
}

func compileOne(record RawRule) (Rule, []Diagnostic, bool) {
	var diags []Diagnostic

	rule := Rule{
		Scope:      ScopeVisibleGroup,
		Subject:    SubjectServices,
		Severity:   SeverityError,
		Projection: "service.id",
		Filter:     Filter{Role: RoleFilterBoth},
	}

	rule.ID = stringField(record, "id")
	if rule.ID == "" {
		rule.ID = uuid.NewString()
	}

	warn := func(path, message string) {
		diags = append(diags, Diagnostic{RuleID: rule.ID, Path: path, Severity: SeverityWarning, Message: message})
	}
	fail := func(path, message string) {
		diags = append(diags, Diagnostic{RuleID: rule.ID, Path: path, Severity: SeverityError, Message: message})
	}

	if raw, ok := record["scope"]; ok {
		switch value := stringValue(raw); value {
		case ScopeVisibleGroup, ScopeGlobal:
			rule.Scope = value
		default:
			warn("scope", fmt.Sprintf("unknown scope %q, defaulting to %q", raw, ScopeVisibleGroup))
		}
	}
	if raw, ok := record["subject"]; ok {
		if value := stringValue(raw); value == SubjectServices {
			rule.Subject = value
		} else {
			warn("subject", fmt.Sprintf("unknown subject %q, defaulting to %q", raw, SubjectServices))
		}
	}
	if raw, ok := record["severity"]; ok {
		switch value := stringValue(raw); value {
		case SeverityError, SeverityWarning:
			rule.Severity = value
		default:
			warn("severity", fmt.Sprintf("unknown severity %q, defaulting to %q", raw, SeverityError))
		}
	}
	if projection := stringField(record, "projection"); projection != "" {
		rule.Projection = projection
	}

	if raw, ok := record["filter"]; ok {
		if filter, ok := raw.(map[string]interface{}); ok {
			if roleRaw, ok := filter["role"]; ok {
				switch value := stringValue(roleRaw); value {
				case RoleFilterBase, RoleFilterUtility, RoleFilterBoth:
					rule.Filter.Role = value
				default:
					warn("filter.role", fmt.Sprintf("unknown role %q, defaulting to %q", roleRaw, RoleFilterBoth))
				}
			}
			rule.Filter.TagIDs = stringList(filter, "tag_id")
			rule.Filter.FieldIDs = stringList(filter, "field_id")
		} else {
			warn("filter", "filter must be a mapping, ignoring")
		}
	}

	if raw, ok := record["where"]; ok {
		clauses, _ := raw.([]interface{})
		if clauses == nil {
			warn("where", "where must be a list of predicates, ignoring")
		}
		for i, rawClause := range clauses {
			clause, ok := rawClause.(map[string]interface{})
			if !ok {
				warn(fmt.Sprintf("where[%d]", i), "predicate must be a mapping, ignoring")
				continue
			}
			pred := Predicate{
				Path:  stringField(clause, "path"),
				Op:    stringField(clause, "op"),
				Value: clause["value"],
			}
			if pred.Path == "" {
				warn(fmt.Sprintf("where[%d].path", i), "predicate has no path, ignoring")
				continue
			}
			if !knownWhereOps[pred.Op] {
				warn(fmt.Sprintf("where[%d].op", i), fmt.Sprintf("unknown predicate op %q, ignoring", pred.Op))
				continue
			}
			rule.Where = append(rule.Where, pred)
		}
	}

	rule.Op = stringField(record, "op")
	if !knownOps[rule.Op] {
		fail("op", fmt.Sprintf("unknown op %q, rule dropped", rule.Op))
		return Rule{}, diags, false
	}

	rawValue, hasRawValue := record["value"]
	if numericOps[rule.Op] {
		number, ok := numberValue(rawValue)
		if !hasRawValue || !ok {
			fail("value", fmt.Sprintf("op %q requires a numeric value, rule dropped", rule.Op))
			return Rule{}, diags, false
		}
		rule.Value = number
		rule.HasValue = true
	} else if hasRawValue {
		if booleanOps[rule.Op] {
			warn("value", fmt.Sprintf("op %q ignores the supplied value", rule.Op))
		} else {
			warn("value", fmt.Sprintf("op %q does not use a value", rule.Op))
		}
	}

	return rule, diags, true
}

func stringField(record map[string]interface{}, key string) string {
	raw, ok := record[key]
	if !ok {
		return ""
	}
	return stringValue(raw)
}

func stringValue(raw interface{}) string {
	value, _ := raw.(string)
	return value
}

func numberValue(raw interface{}) (float64, bool) {
	switch v := raw.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	default:
		return 0, false
	}
}

// stringList accepts a bare string or a list of strings under either the
// singular key or its plural form.
func stringList(record map[string]interface{}, key string) []string {
	raw, ok := record[key]
	if !ok {
		raw, ok = record[key+"s"]
	}
	if !ok {
		return nil
	}
	switch v := raw.(type) {
	case string:
		return []string{v}
	case []interface{}:
		var out []string
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	case []string:
		return v
	default:
		return nil
	}
}
