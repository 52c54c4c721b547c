package engine

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"standline/internal/domain"
	"standline/internal/events"
	"standline/internal/notify"
	"standline/internal/rules"
)

// ensureInstanceTransition rejects instance status changes outside the state
// machine: active -> {completed,paused,escalated}, escalated -> {active,
// completed}, paused -> {active,cancelled}; completed and cancelled are
// terminal.
func ensureInstanceTransition(oldStatus, newStatus string) error {
	switch oldStatus {
	case "active":
		if newStatus == "completed" || newStatus == "paused" || newStatus == "escalated" {
			return nil
		}
	case "escalated":
		if newStatus == "active" || newStatus == "completed" {
			return nil
		}
	case "paused":
		if newStatus == "active" || newStatus == "cancelled" {
			return nil
		}
	}
	return fmt.Errorf("%w: invalid workflow instance transition %s -> %s", domain.ErrInvariant, oldStatus, newStatus)
}

func requireActor(actorID string) error {
	if strings.TrimSpace(actorID) == "" {
		return fmt.Errorf("%w: actor identity required", domain.ErrUnauthorized)
	}
	return nil
}

// StartWorkflow creates a running instance of a workflow for one entity.
// At most one live (active/paused/escalated) instance may exist per entity.
func (e Engine) StartWorkflow(ctx context.Context, workflowID, entityID, actorID string) (domain.WorkflowInstance, error) {
	if err := requireActor(actorID); err != nil {
		return domain.WorkflowInstance{}, err
	}
	if strings.TrimSpace(entityID) == "" {
		return domain.WorkflowInstance{}, fmt.Errorf("%w: entity id required", domain.ErrValidation)
	}
	wf, err := e.Repo.GetWorkflow(ctx, workflowID)
	if err != nil {
		return domain.WorkflowInstance{}, fmt.Errorf("workflow %s: %w", workflowID, err)
	}
	if !wf.IsActive {
		return domain.WorkflowInstance{}, fmt.Errorf("%w: workflow %s is not active", domain.ErrValidation, workflowID)
	}
	if len(wf.Steps) == 0 {
		return domain.WorkflowInstance{}, fmt.Errorf("%w: workflow %s has no steps", domain.ErrValidation, workflowID)
	}
	if existing, err := e.Repo.LiveInstanceForEntity(ctx, entityID); err == nil {
		return domain.WorkflowInstance{}, fmt.Errorf("%w: entity %s already has workflow instance %s in status %s",
			domain.ErrInvariant, entityID, existing.ID, existing.Status)
	} else if !errors.Is(err, domain.ErrNotFound) {
		return domain.WorkflowInstance{}, err
	}

	now := e.now().UTC()
	nowStr := now.Format(time.RFC3339)
	first := wf.Steps[0]
	instance := domain.WorkflowInstance{
		ID:            uuid.New().String(),
		WorkflowID:    workflowID,
		EntityID:      entityID,
		CurrentStepID: &first.ID,
		Status:        "active",
		StartedBy:     actorID,
		StartedAt:     nowStr,
		UpdatedAt:     nowStr,
	}
	if first.Assignee != "" {
		assignee := first.Assignee
		instance.CurrentAssignee = &assignee
	}
	var firstDue *string
	if first.DueDateOffsetDays > 0 {
		due := now.AddDate(0, 0, first.DueDateOffsetDays).Format(time.RFC3339)
		firstDue = &due
		instance.NextDueDate = &due
	}

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.WorkflowInstance{}, err
	}
	defer tx.Rollback()
	if err := e.Repo.InsertInstanceTx(ctx, tx, instance); err != nil {
		return domain.WorkflowInstance{}, fmt.Errorf("insert workflow instance: %w", err)
	}
	for i, step := range wf.Steps {
		si := domain.WorkflowStepInstance{
			ID:         uuid.New().String(),
			InstanceID: instance.ID,
			StepID:     step.ID,
			Status:     "pending",
		}
		if i == 0 {
			si.Status = "in_progress"
			si.DueDate = firstDue
		}
		if err := e.Repo.InsertStepInstanceTx(ctx, tx, si); err != nil {
			return domain.WorkflowInstance{}, fmt.Errorf("insert step instance: %w", err)
		}
	}
	if err := e.Events.Append(ctx, tx, "workflow.started", "", "workflow_instance", instance.ID, actorID, events.EventPayload{
		"workflow_id": workflowID,
		"entity_id":   entityID,
		"first_step":  first.ID,
	}); err != nil {
		return domain.WorkflowInstance{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.WorkflowInstance{}, err
	}
	return instance, nil
}

// CompleteStep marks a step done and advances the instance to the next step,
// or completes the instance when the step is the tail of the chain.
// condition_check steps whose condition evaluates false against the instance
// record are skipped on the way through.
func (e Engine) CompleteStep(ctx context.Context, instanceID, stepID, actorID, notes string) (domain.WorkflowInstance, error) {
	if err := requireActor(actorID); err != nil {
		return domain.WorkflowInstance{}, err
	}
	instance, err := e.Repo.GetInstance(ctx, instanceID)
	if err != nil {
		return domain.WorkflowInstance{}, fmt.Errorf("workflow instance %s: %w", instanceID, err)
	}
	if instance.Status != "active" {
		return domain.WorkflowInstance{}, fmt.Errorf("%w: cannot complete a step on a %s instance", domain.ErrInvariant, instance.Status)
	}
	if instance.CurrentStepID == nil || *instance.CurrentStepID != stepID {
		return domain.WorkflowInstance{}, fmt.Errorf("%w: step %s is not the current step of instance %s", domain.ErrInvariant, stepID, instanceID)
	}
	stepInstance, err := e.Repo.GetStepInstance(ctx, instanceID, stepID)
	if err != nil {
		return domain.WorkflowInstance{}, fmt.Errorf("step %s: %w", stepID, err)
	}
	if stepInstance.Status != "in_progress" {
		return domain.WorkflowInstance{}, fmt.Errorf("%w: step %s is %s, only an in_progress step can be completed", domain.ErrInvariant, stepID, stepInstance.Status)
	}
	stepDef, err := e.Repo.GetWorkflowStep(ctx, stepID)
	if err != nil {
		return domain.WorkflowInstance{}, fmt.Errorf("step definition %s: %w", stepID, err)
	}

	now := e.now().UTC()
	nowStr := now.Format(time.RFC3339)
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.WorkflowInstance{}, err
	}
	defer tx.Rollback()

	stepInstance.Status = "completed"
	stepInstance.CompletedBy = &actorID
	stepInstance.CompletedAt = &nowStr
	if notes != "" {
		stepInstance.Notes = notes
	}
	if err := e.Repo.UpdateStepInstanceTx(ctx, tx, stepInstance); err != nil {
		return domain.WorkflowInstance{}, err
	}
	if err := e.Events.Append(ctx, tx, "workflow.step.completed", "", "workflow_instance", instance.ID, actorID, events.EventPayload{
		"step_id": stepID,
	}); err != nil {
		return domain.WorkflowInstance{}, err
	}

	instance, err = e.advance(ctx, tx, instance, stepDef.NextStepID, actorID, now)
	if err != nil {
		return domain.WorkflowInstance{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.WorkflowInstance{}, err
	}
	return instance, nil
}

// advance walks the step chain from nextStepID, skipping condition_check
// steps whose condition is false, and updates the instance accordingly.
func (e Engine) advance(ctx context.Context, tx *sql.Tx, instance domain.WorkflowInstance, nextStepID *string, actorID string, now time.Time) (domain.WorkflowInstance, error) {
	nowStr := now.Format(time.RFC3339)
	for nextStepID != nil {
		next, err := e.Repo.GetWorkflowStep(ctx, *nextStepID)
		if err != nil {
			return instance, fmt.Errorf("next step %s: %w", *nextStepID, err)
		}
		nextInstance, err := e.Repo.GetStepInstance(ctx, instance.ID, next.ID)
		if err != nil {
			return instance, fmt.Errorf("next step instance %s: %w", next.ID, err)
		}
		if next.Type == "condition_check" && !e.stepConditionHolds(next, instance) {
			nextInstance.Status = "skipped"
			if err := e.Repo.UpdateStepInstanceTx(ctx, tx, nextInstance); err != nil {
				return instance, err
			}
			if err := e.Events.Append(ctx, tx, "workflow.step.skipped", "", "workflow_instance", instance.ID, actorID, events.EventPayload{
				"step_id": next.ID,
			}); err != nil {
				return instance, err
			}
			nextStepID = next.NextStepID
			continue
		}

		nextInstance.Status = "in_progress"
		if next.DueDateOffsetDays > 0 {
			due := now.AddDate(0, 0, next.DueDateOffsetDays).Format(time.RFC3339)
			nextInstance.DueDate = &due
			instance.NextDueDate = &due
		} else {
			nextInstance.DueDate = nil
			instance.NextDueDate = nil
		}
		if err := e.Repo.UpdateStepInstanceTx(ctx, tx, nextInstance); err != nil {
			return instance, err
		}
		instance.CurrentStepID = &next.ID
		instance.CurrentAssignee = nil
		if next.Assignee != "" {
			assignee := next.Assignee
			instance.CurrentAssignee = &assignee
		}
		instance.UpdatedAt = nowStr
		if err := e.Repo.UpdateInstanceTx(ctx, tx, instance); err != nil {
			return instance, err
		}
		return instance, nil
	}

	// End of the chain: the instance completes and assignment clears.
	if err := ensureInstanceTransition(instance.Status, "completed"); err != nil {
		return instance, err
	}
	instance.Status = "completed"
	instance.CurrentStepID = nil
	instance.CurrentAssignee = nil
	instance.NextDueDate = nil
	instance.UpdatedAt = nowStr
	if err := e.Repo.UpdateInstanceTx(ctx, tx, instance); err != nil {
		return instance, err
	}
	if err := e.Events.Append(ctx, tx, "workflow.completed", "", "workflow_instance", instance.ID, actorID, events.EventPayload{
		"entity_id": instance.EntityID,
	}); err != nil {
		return instance, err
	}
	return instance, nil
}

// stepConditionHolds evaluates a condition_check step's condition against
// the instance record. A missing or unparsable condition counts as true so a
// misconfigured check never silently drops work.
func (e Engine) stepConditionHolds(step domain.WorkflowStep, instance domain.WorkflowInstance) bool {
	if step.ConditionJSON == nil || strings.TrimSpace(*step.ConditionJSON) == "" {
		return true
	}
	var cond rules.Condition
	if err := json.Unmarshal([]byte(*step.ConditionJSON), &cond); err != nil {
		e.logger().Warn("unparsable step condition, treating as true",
			zap.String("step_id", step.ID), zap.Error(err))
		return true
	}
	record := map[string]any{
		"id":               instance.ID,
		"entity_id":        instance.EntityID,
		"status":           instance.Status,
		"escalation_level": float64(instance.EscalationLevel),
	}
	return rules.EvaluateCondition(cond, record)
}

// EscalateStep reassigns a step to its configured escalation target and
// moves the instance into escalated status.
func (e Engine) EscalateStep(ctx context.Context, instanceID, stepID, actorID, reason string) (domain.WorkflowInstance, error) {
	if err := requireActor(actorID); err != nil {
		return domain.WorkflowInstance{}, err
	}
	instance, err := e.Repo.GetInstance(ctx, instanceID)
	if err != nil {
		return domain.WorkflowInstance{}, fmt.Errorf("workflow instance %s: %w", instanceID, err)
	}
	if instance.CurrentStepID == nil || *instance.CurrentStepID != stepID {
		return domain.WorkflowInstance{}, fmt.Errorf("%w: step %s is not the current step of instance %s", domain.ErrInvariant, stepID, instanceID)
	}
	stepDef, err := e.Repo.GetWorkflowStep(ctx, stepID)
	if err != nil {
		return domain.WorkflowInstance{}, fmt.Errorf("step definition %s: %w", stepID, err)
	}
	if stepDef.EscalationTo == "" {
		return domain.WorkflowInstance{}, fmt.Errorf("%w: step %s has no escalation target", domain.ErrInvariant, stepID)
	}
	if err := ensureInstanceTransition(instance.Status, "escalated"); err != nil {
		return domain.WorkflowInstance{}, err
	}
	stepInstance, err := e.Repo.GetStepInstance(ctx, instanceID, stepID)
	if err != nil {
		return domain.WorkflowInstance{}, fmt.Errorf("step %s: %w", stepID, err)
	}

	nowStr := e.Timestamp()
	from := stepDef.Assignee
	if instance.CurrentAssignee != nil {
		from = *instance.CurrentAssignee
	}

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.WorkflowInstance{}, err
	}
	defer tx.Rollback()

	stepInstance.Status = "escalated"
	if err := e.Repo.UpdateStepInstanceTx(ctx, tx, stepInstance); err != nil {
		return domain.WorkflowInstance{}, err
	}
	level := instance.EscalationLevel + 1
	if err := e.Repo.InsertEscalationTx(ctx, tx, domain.Escalation{
		ID:         uuid.New().String(),
		InstanceID: instanceID,
		StepID:     stepID,
		From:       from,
		To:         stepDef.EscalationTo,
		Reason:     reason,
		Level:      level,
		CreatedAt:  nowStr,
	}); err != nil {
		return domain.WorkflowInstance{}, err
	}
	escalatee := stepDef.EscalationTo
	instance.CurrentAssignee = &escalatee
	instance.EscalationLevel = level
	instance.Status = "escalated"
	instance.UpdatedAt = nowStr
	if err := e.Repo.UpdateInstanceTx(ctx, tx, instance); err != nil {
		return domain.WorkflowInstance{}, err
	}
	if err := e.Events.Append(ctx, tx, "workflow.escalated", "", "workflow_instance", instance.ID, actorID, events.EventPayload{
		"step_id": stepID,
		"to":      stepDef.EscalationTo,
		"level":   level,
		"reason":  reason,
	}); err != nil {
		return domain.WorkflowInstance{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.WorkflowInstance{}, err
	}

	if err := e.Notifier.Notify(ctx, notify.Message{
		RecipientID: stepDef.EscalationTo,
		Type:        "workflow_escalation",
		Severity:    "high",
		Text:        fmt.Sprintf("Workflow step %s escalated to you: %s", stepDef.Name, reason),
		EntityKind:  "workflow_instance",
		EntityID:    instanceID,
	}); err != nil {
		e.logger().Warn("escalation notification failed",
			zap.String("recipient", stepDef.EscalationTo), zap.Error(err))
	}
	return instance, nil
}

// SetInstanceStatus applies pause/resume/cancel transitions.
func (e Engine) SetInstanceStatus(ctx context.Context, instanceID, status, actorID string) (domain.WorkflowInstance, error) {
	if err := requireActor(actorID); err != nil {
		return domain.WorkflowInstance{}, err
	}
	instance, err := e.Repo.GetInstance(ctx, instanceID)
	if err != nil {
		return domain.WorkflowInstance{}, fmt.Errorf("workflow instance %s: %w", instanceID, err)
	}
	if err := ensureInstanceTransition(instance.Status, status); err != nil {
		return domain.WorkflowInstance{}, err
	}
	from := instance.Status
	instance.Status = status
	instance.UpdatedAt = e.Timestamp()

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.WorkflowInstance{}, err
	}
	defer tx.Rollback()
	if err := e.Repo.UpdateInstanceTx(ctx, tx, instance); err != nil {
		return domain.WorkflowInstance{}, err
	}
	if err := e.Events.Append(ctx, tx, "workflow.status.changed", "", "workflow_instance", instance.ID, actorID, events.EventPayload{
		"from": from,
		"to":   status,
	}); err != nil {
		return domain.WorkflowInstance{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.WorkflowInstance{}, err
	}
	return instance, nil
}
