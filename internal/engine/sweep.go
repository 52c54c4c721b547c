package engine

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"standline/internal/domain"
)

// SweepReport summarizes one scheduler pass.
type SweepReport struct {
	Checked   int      `json:"checked"`
	Acted     int      `json:"acted"`
	Failed    int      `json:"failed"`
	ActedIDs  []string `json:"acted_ids,omitempty"`
	FailedIDs []string `json:"failed_ids,omitempty"`
}

// SweepDueSchedules runs every compliance schedule whose next_run_at has
// passed, recording an evaluation as the configured scheduler actor and
// advancing next_run_at by the schedule's frequency. Failures are logged and
// skipped so one broken schedule never stalls the rest.
func (e Engine) SweepDueSchedules(ctx context.Context) (SweepReport, error) {
	now := e.now().UTC()
	due, err := e.Repo.ListDueSchedules(ctx, now.Format(time.RFC3339))
	if err != nil {
		return SweepReport{}, fmt.Errorf("list due schedules: %w", err)
	}
	report := SweepReport{Checked: len(due)}
	actor := e.Config.Scheduler.ActorID
	for _, sched := range due {
		if _, err := e.Evaluate(ctx, sched.ProjectID, sched.StandardID, actor, "scheduled evaluation"); err != nil {
			report.Failed++
			report.FailedIDs = append(report.FailedIDs, sched.ID)
			e.logger().Warn("scheduled evaluation failed",
				zap.String("schedule_id", sched.ID),
				zap.String("project_id", sched.ProjectID),
				zap.String("standard_id", sched.StandardID),
				zap.Error(err))
			continue
		}
		next := now.AddDate(0, 0, sched.FrequencyDays).Format(time.RFC3339)
		if err := e.Repo.AdvanceSchedule(ctx, sched.ID, next); err != nil {
			report.Failed++
			report.FailedIDs = append(report.FailedIDs, sched.ID)
			e.logger().Warn("advance schedule failed", zap.String("schedule_id", sched.ID), zap.Error(err))
			continue
		}
		report.Acted++
		report.ActedIDs = append(report.ActedIDs, sched.ID)
	}
	return report, nil
}

// SweepOverdueSteps escalates active instances whose current step is past
// due by at least the step's escalation_after_days. The whole sweep is
// measured against a single clock reading.
func (e Engine) SweepOverdueSteps(ctx context.Context) (SweepReport, error) {
	now := e.now().UTC()
	overdue, err := e.Repo.ListOverdueActiveInstances(ctx, now.Format(time.RFC3339))
	if err != nil {
		return SweepReport{}, fmt.Errorf("list overdue instances: %w", err)
	}
	report := SweepReport{Checked: len(overdue)}
	actor := e.Config.Scheduler.ActorID
	for _, instance := range overdue {
		acted, err := e.escalateIfOverdue(ctx, instance, now, actor)
		if err != nil {
			report.Failed++
			report.FailedIDs = append(report.FailedIDs, instance.ID)
			e.logger().Warn("overdue escalation failed", zap.String("instance_id", instance.ID), zap.Error(err))
			continue
		}
		if acted {
			report.Acted++
			report.ActedIDs = append(report.ActedIDs, instance.ID)
		}
	}
	return report, nil
}

func (e Engine) escalateIfOverdue(ctx context.Context, instance domain.WorkflowInstance, now time.Time, actor string) (bool, error) {
	if instance.CurrentStepID == nil || instance.NextDueDate == nil {
		return false, nil
	}
	step, err := e.Repo.GetWorkflowStep(ctx, *instance.CurrentStepID)
	if err != nil {
		return false, err
	}
	if step.EscalationAfterDays <= 0 || step.EscalationTo == "" {
		return false, nil
	}
	due, err := time.Parse(time.RFC3339, *instance.NextDueDate)
	if err != nil {
		return false, fmt.Errorf("bad due date on instance %s: %w", instance.ID, err)
	}
	overdueDays := daysBetween(due, now)
	if overdueDays < step.EscalationAfterDays {
		return false, nil
	}
	reason := fmt.Sprintf("Step overdue by %d days", overdueDays)
	if _, err := e.EscalateStep(ctx, instance.ID, step.ID, actor, reason); err != nil {
		return false, err
	}
	return true, nil
}
