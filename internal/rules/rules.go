// Package rules implements the declarative condition/action interpreter used
// for scoring overrides, notifications and workflow triggers. The package is
// pure: conditions are evaluated against in-memory records and actions return
// intent objects describing the side effect. Applying an intent (persistence,
// notification, workflow start) is the caller's job.
package rules

import (
	"fmt"
	"strconv"
	"strings"
)

// Condition is either a leaf comparison or a composite of child conditions.
// When Conditions is non-empty it takes precedence over the leaf fields.
type Condition struct {
	Field           string      `json:"field,omitempty"`
	Operator        string      `json:"operator,omitempty"`
	Value           any         `json:"value,omitempty"`
	LogicalOperator string      `json:"logical_operator,omitempty" enum:"and,or"`
	Conditions      []Condition `json:"conditions,omitempty"`
}

// Action describes the side effect to take when a rule's condition matches.
type Action struct {
	Type       string         `json:"type" enum:"set_score,set_status,send_notification,trigger_workflow,log_event"`
	Parameters map[string]any `json:"parameters,omitempty"`
}

// Rule pairs a condition with an action against a target entity kind.
type Rule struct {
	Name         string    `json:"name"`
	TargetEntity string    `json:"target_entity"`
	Condition    Condition `json:"condition"`
	Action       Action    `json:"action"`
}

// Result is the intent produced by a matched action. Fields are populated
// according to the action type.
type Result struct {
	Type       string         `json:"type"`
	Entity     string         `json:"entity,omitempty"`
	Score      *float64       `json:"score,omitempty"`
	Status     string         `json:"status,omitempty"`
	Recipient  string         `json:"recipient,omitempty"`
	Message    string         `json:"message,omitempty"`
	Severity   string         `json:"severity,omitempty"`
	WorkflowID string         `json:"workflow_id,omitempty"`
	Event      string         `json:"event,omitempty"`
	Parameters map[string]any `json:"parameters,omitempty"`
}

// EvaluateCondition resolves the condition against record. Missing fields
// resolve to nil and unknown operators evaluate to false; evaluation never
// fails.
func EvaluateCondition(c Condition, record map[string]any) bool {
	if len(c.Conditions) > 0 {
		switch c.LogicalOperator {
		case "or":
			for _, child := range c.Conditions {
				if EvaluateCondition(child, record) {
					return true
				}
			}
			return false
		default: // "and" is the implicit combinator
			for _, child := range c.Conditions {
				if !EvaluateCondition(child, record) {
					return false
				}
			}
			return true
		}
	}
	field := resolvePath(record, c.Field)
	switch c.Operator {
	case "equals":
		return looseEquals(field, c.Value)
	case "not_equals":
		return !looseEquals(field, c.Value)
	case "contains":
		return strings.Contains(coerceString(field), coerceString(c.Value))
	case "greater_than":
		a, aok := coerceFloat(field)
		b, bok := coerceFloat(c.Value)
		return aok && bok && a > b
	case "less_than":
		a, aok := coerceFloat(field)
		b, bok := coerceFloat(c.Value)
		return aok && bok && a < b
	case "in":
		return memberOf(field, c.Value)
	case "not_in":
		return !memberOf(field, c.Value)
	default:
		return false
	}
}

// ExecuteAction dispatches on the action type and returns the resulting
// intent. It performs no I/O.
func ExecuteAction(a Action, record map[string]any) (Result, error) {
	entity := coerceString(resolvePath(record, "id"))
	switch a.Type {
	case "set_score":
		score, ok := coerceFloat(a.Parameters["score"])
		if !ok {
			return Result{}, fmt.Errorf("set_score requires a numeric score parameter")
		}
		return Result{Type: a.Type, Entity: entity, Score: &score}, nil
	case "set_status":
		status := coerceString(a.Parameters["status"])
		if status == "" {
			return Result{}, fmt.Errorf("set_status requires a status parameter")
		}
		return Result{Type: a.Type, Entity: entity, Status: status}, nil
	case "send_notification":
		return Result{
			Type:      a.Type,
			Entity:    entity,
			Recipient: coerceString(a.Parameters["recipient"]),
			Message:   coerceString(a.Parameters["message"]),
			Severity:  coerceString(a.Parameters["severity"]),
		}, nil
	case "trigger_workflow":
		wf := coerceString(a.Parameters["workflow_id"])
		if wf == "" {
			return Result{}, fmt.Errorf("trigger_workflow requires a workflow_id parameter")
		}
		return Result{Type: a.Type, Entity: entity, WorkflowID: wf}, nil
	case "log_event":
		return Result{
			Type:       a.Type,
			Entity:     entity,
			Event:      coerceString(a.Parameters["event"]),
			Parameters: a.Parameters,
		}, nil
	default:
		return Result{}, fmt.Errorf("unknown action type %q", a.Type)
	}
}

// ExecuteRule evaluates the rule's condition and, when it matches, executes
// the action. matched reports whether the condition held.
func ExecuteRule(r Rule, record map[string]any) (result Result, matched bool, err error) {
	if !EvaluateCondition(r.Condition, record) {
		return Result{}, false, nil
	}
	result, err = ExecuteAction(r.Action, record)
	if err != nil {
		return Result{}, true, err
	}
	return result, true, nil
}

// maxConditionDepth is the nesting depth beyond which Validate emits a
// performance warning.
const maxConditionDepth = 5

// Validate checks structural requirements and returns non-fatal warnings.
func Validate(r Rule) (warnings []string, err error) {
	var missing []string
	if strings.TrimSpace(r.Name) == "" {
		missing = append(missing, "name")
	}
	if strings.TrimSpace(r.TargetEntity) == "" {
		missing = append(missing, "target_entity")
	}
	if emptyCondition(r.Condition) {
		missing = append(missing, "condition")
	}
	if r.Action.Type == "" {
		missing = append(missing, "action")
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("rule missing required fields: %s", strings.Join(missing, ", "))
	}
	if depth := conditionDepth(r.Condition); depth > maxConditionDepth {
		warnings = append(warnings, fmt.Sprintf("condition nesting depth %d exceeds %d; deeply nested rules are slow to evaluate", depth, maxConditionDepth))
	}
	return warnings, nil
}

func emptyCondition(c Condition) bool {
	return len(c.Conditions) == 0 && c.Field == "" && c.Operator == ""
}

func conditionDepth(c Condition) int {
	if len(c.Conditions) == 0 {
		return 1
	}
	deepest := 0
	for _, child := range c.Conditions {
		if d := conditionDepth(child); d > deepest {
			deepest = d
		}
	}
	return deepest + 1
}

// resolvePath walks a dot-separated path into nested maps. Any missing
// segment yields nil.
func resolvePath(record map[string]any, path string) any {
	if path == "" {
		return nil
	}
	var cur any = record
	for _, seg := range strings.Split(path, ".") {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil
		}
		cur, ok = m[seg]
		if !ok {
			return nil
		}
	}
	return cur
}

func looseEquals(a, b any) bool {
	if a == nil && b == nil {
		return true
	}
	if a == nil || b == nil {
		return false
	}
	if af, aok := coerceFloat(a); aok {
		if bf, bok := coerceFloat(b); bok {
			return af == bf
		}
	}
	return coerceString(a) == coerceString(b)
}

func memberOf(v, set any) bool {
	items, ok := set.([]any)
	if !ok {
		return false
	}
	for _, item := range items {
		if looseEquals(v, item) {
			return true
		}
	}
	return false
}

func coerceString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	default:
		return fmt.Sprint(t)
	}
}

func coerceFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case float32:
		return float64(t), true
	case int:
		return float64(t), true
	case int64:
		return float64(t), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		return f, err == nil
	default:
		return 0, false
	}
}
