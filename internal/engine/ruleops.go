package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"standline/internal/domain"
	"standline/internal/events"
	"standline/internal/notify"
	"standline/internal/rules"
)

// CreateRule validates and stores a rule at version 1.
func (e Engine) CreateRule(ctx context.Context, rl domain.Rule, actorID string) (domain.Rule, []string, error) {
	if err := requireActor(actorID); err != nil {
		return domain.Rule{}, nil, err
	}
	warnings, err := validateStoredRule(rl)
	if err != nil {
		return domain.Rule{}, warnings, err
	}
	nowStr := e.Timestamp()
	rl.ID = uuid.New().String()
	rl.Version = 1
	rl.CreatedBy = actorID
	rl.CreatedAt = nowStr
	rl.UpdatedAt = nowStr
	if err := e.Repo.InsertRule(ctx, rl); err != nil {
		return domain.Rule{}, warnings, fmt.Errorf("insert rule: %w", err)
	}
	return rl, warnings, nil
}

// UpdateRule replaces a rule's definition wholesale and bumps its version.
// There is no partial patch; callers send the complete new definition.
func (e Engine) UpdateRule(ctx context.Context, id string, rl domain.Rule, actorID string) (domain.Rule, []string, error) {
	if err := requireActor(actorID); err != nil {
		return domain.Rule{}, nil, err
	}
	warnings, err := validateStoredRule(rl)
	if err != nil {
		return domain.Rule{}, warnings, err
	}
	rl.ID = id
	rl.UpdatedAt = e.Timestamp()
	updated, err := e.Repo.ReplaceRule(ctx, rl)
	if err != nil {
		return domain.Rule{}, warnings, fmt.Errorf("replace rule %s: %w", id, err)
	}
	return updated, warnings, nil
}

func validateStoredRule(rl domain.Rule) ([]string, error) {
	parsed, err := parseRule(rl)
	if err != nil {
		return nil, err
	}
	warnings, err := rules.Validate(parsed)
	if err != nil {
		return warnings, fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}
	return warnings, nil
}

func parseRule(rl domain.Rule) (rules.Rule, error) {
	parsed := rules.Rule{
		Name:         rl.Name,
		TargetEntity: rl.TargetEntity,
	}
	if strings.TrimSpace(rl.ConditionJSON) != "" {
		if err := json.Unmarshal([]byte(rl.ConditionJSON), &parsed.Condition); err != nil {
			return parsed, fmt.Errorf("%w: bad condition json: %v", domain.ErrValidation, err)
		}
	}
	if strings.TrimSpace(rl.ActionJSON) != "" {
		if err := json.Unmarshal([]byte(rl.ActionJSON), &parsed.Action); err != nil {
			return parsed, fmt.Errorf("%w: bad action json: %v", domain.ErrValidation, err)
		}
	}
	return parsed, nil
}

// RuleTestResult reports a dry run of one rule against caller-supplied data.
// Nothing is persisted.
type RuleTestResult struct {
	Matched bool          `json:"matched"`
	Result  *rules.Result `json:"result,omitempty"`
	Error   string        `json:"error,omitempty"`
}

// TestRule runs a stored rule against a test record without applying the
// outcome.
func (e Engine) TestRule(ctx context.Context, id string, testData map[string]any) (RuleTestResult, error) {
	stored, err := e.Repo.GetRule(ctx, id)
	if err != nil {
		return RuleTestResult{}, fmt.Errorf("rule %s: %w", id, err)
	}
	parsed, err := parseRule(stored)
	if err != nil {
		return RuleTestResult{}, err
	}
	result, matched, err := rules.ExecuteRule(parsed, testData)
	out := RuleTestResult{Matched: matched}
	if err != nil {
		out.Error = err.Error()
		return out, nil
	}
	if matched {
		out.Result = &result
	}
	return out, nil
}

// RunRules executes every active rule for an entity kind against a record
// and applies the matched results. Per-rule failures are logged and skipped.
func (e Engine) RunRules(ctx context.Context, targetEntity string, record map[string]any, actorID string) ([]rules.Result, error) {
	if err := requireActor(actorID); err != nil {
		return nil, err
	}
	active, err := e.Repo.ListRules(ctx, targetEntity, true)
	if err != nil {
		return nil, fmt.Errorf("list rules: %w", err)
	}
	var applied []rules.Result
	for _, stored := range active {
		parsed, err := parseRule(stored)
		if err != nil {
			e.logger().Warn("skipping unparsable rule", zap.String("rule_id", stored.ID), zap.Error(err))
			continue
		}
		result, matched, err := rules.ExecuteRule(parsed, record)
		if err != nil {
			e.logger().Warn("rule execution failed", zap.String("rule_id", stored.ID), zap.Error(err))
			continue
		}
		if !matched {
			continue
		}
		if err := e.ApplyResult(ctx, result, record, actorID); err != nil {
			e.logger().Warn("rule result apply failed", zap.String("rule_id", stored.ID), zap.Error(err))
			continue
		}
		applied = append(applied, result)
	}
	return applied, nil
}

// ApplyResult turns one interpreter result into a persisted side effect.
// The interpreter itself never touches storage; this is the only place its
// intents become writes.
func (e Engine) ApplyResult(ctx context.Context, result rules.Result, record map[string]any, actorID string) error {
	recordID, _ := record["id"].(string)
	switch result.Type {
	case "set_score":
		if recordID == "" {
			return fmt.Errorf("%w: set_score needs a record id", domain.ErrValidation)
		}
		return e.Repo.UpdateRecordScore(ctx, recordID, *result.Score, e.Timestamp())
	case "set_status":
		if recordID == "" {
			return fmt.Errorf("%w: set_status needs a record id", domain.ErrValidation)
		}
		return e.Repo.UpdateRecordStatus(ctx, recordID, result.Status, &actorID, e.Timestamp())
	case "send_notification":
		return e.Notifier.Notify(ctx, notify.Message{
			RecipientID: result.Recipient,
			Type:        "rule_notification",
			Severity:    severityOrDefault(result.Severity),
			Text:        result.Message,
			EntityKind:  "compliance_record",
			EntityID:    recordID,
		})
	case "trigger_workflow":
		entityID := recordID
		if entityID == "" {
			return fmt.Errorf("%w: trigger_workflow needs a record id", domain.ErrValidation)
		}
		_, err := e.StartWorkflow(ctx, result.WorkflowID, entityID, actorID)
		return err
	case "log_event":
		tx, err := e.DB.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		defer tx.Rollback()
		if err := e.Events.Append(ctx, tx, result.Event, "", "compliance_record", recordID, actorID, events.EventPayload(result.Parameters)); err != nil {
			return err
		}
		return tx.Commit()
	default:
		return fmt.Errorf("%w: unknown result type %q", domain.ErrValidation, result.Type)
	}
}

func severityOrDefault(s string) string {
	if s == "" {
		return "medium"
	}
	return s
}
