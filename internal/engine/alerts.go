package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"

	"standline/internal/domain"
	"standline/internal/notify"
)

// overdueAfterDays is how stale the last evaluation may be before an
// overdue_evaluation alert fires.
const overdueAfterDays = 30

// AlertInput is everything the alert rules need, precomputed so the
// generator itself stays pure and deterministic.
type AlertInput struct {
	Result           domain.EvaluationResult
	Trend            string
	MissingMandatory int
	LastEvaluatedAt  time.Time
	Now              time.Time
}

// GenerateAlerts derives typed, severity-ranked alerts from one evaluation.
// Each rule fires independently and output order is fixed: non_compliant,
// declining_trend, missing_evidence, overdue_evaluation.
func GenerateAlerts(in AlertInput) []domain.ComplianceAlert {
	var alerts []domain.ComplianceAlert
	score := in.Result.OverallScore

	if ComplianceStatus(score) == "non_compliant" {
		severity := "high"
		if score < 40 {
			severity = "critical"
		}
		alerts = append(alerts, domain.ComplianceAlert{
			Type:         "non_compliant",
			Severity:     severity,
			Message:      fmt.Sprintf("Project %s is non-compliant with standard %s (score %.2f)", in.Result.ProjectID, in.Result.StandardID, score),
			CurrentValue: score,
		})
	}

	if in.Trend == "declining" && score < 70 {
		alerts = append(alerts, domain.ComplianceAlert{
			Type:         "declining_trend",
			Severity:     "medium",
			Message:      fmt.Sprintf("Compliance score for project %s is declining (currently %.2f)", in.Result.ProjectID, score),
			CurrentValue: score,
		})
	}

	if in.MissingMandatory > 0 {
		severity := "medium"
		if in.MissingMandatory > 3 {
			severity = "high"
		}
		alerts = append(alerts, domain.ComplianceAlert{
			Type:         "missing_evidence",
			Severity:     severity,
			Message:      fmt.Sprintf("%d mandatory criteria have no evidence submitted", in.MissingMandatory),
			CurrentValue: float64(in.MissingMandatory),
		})
	}

	if !in.LastEvaluatedAt.IsZero() {
		overdueDays := int(in.Now.Sub(in.LastEvaluatedAt).Hours() / 24)
		if overdueDays > overdueAfterDays {
			alerts = append(alerts, domain.ComplianceAlert{
				Type:         "overdue_evaluation",
				Severity:     "low",
				Message:      fmt.Sprintf("Last evaluation was %d days ago", overdueDays),
				CurrentValue: float64(overdueDays - overdueAfterDays),
			})
		}
	}

	return alerts
}

// AlertsFor assembles the alert input for an evaluation result from stored
// history and runs the generator. The missing_evidence count covers mandatory
// criteria with no compliance record at all; a record with empty evidence
// scores as missing in the breakdown but does not raise this alert.
func (e Engine) AlertsFor(ctx context.Context, result domain.EvaluationResult) ([]domain.ComplianceAlert, error) {
	history, err := e.EvaluationHistory(ctx, result.ProjectID, result.StandardID)
	if err != nil {
		return nil, err
	}
	missing, err := e.countUnrecordedMandatory(ctx, result.ProjectID, result.StandardID)
	if err != nil {
		return nil, err
	}
	in := AlertInput{
		Result:           result,
		Trend:            history.Trend,
		MissingMandatory: missing,
		Now:              e.now().UTC(),
	}
	// The overdue rule looks at the evaluation before this one; a first
	// evaluation is never overdue.
	if n := len(history.Evaluations); n > 1 {
		prev := history.Evaluations[n-2]
		if ts, err := time.Parse(time.RFC3339, prev.EvaluatedAt); err == nil {
			in.LastEvaluatedAt = ts
		}
	}
	return GenerateAlerts(in), nil
}

// countUnrecordedMandatory counts mandatory criteria of the standard for
// which the project has submitted no compliance record.
func (e Engine) countUnrecordedMandatory(ctx context.Context, projectID, standardID string) (int, error) {
	criteria, err := e.Repo.ListCriteria(ctx, standardID)
	if err != nil {
		return 0, err
	}
	records, err := e.Repo.ListRecords(ctx, projectID, standardID)
	if err != nil {
		return 0, err
	}
	recorded := make(map[string]bool, len(records))
	for _, rec := range records {
		recorded[rec.CriterionID] = true
	}
	missing := 0
	for _, c := range criteria {
		if c.IsMandatory && !recorded[c.ID] {
			missing++
		}
	}
	return missing, nil
}

// LatestAlerts rebuilds the evaluation result from the newest stored
// evaluation and runs the alert rules against it.
func (e Engine) LatestAlerts(ctx context.Context, projectID, standardID string) ([]domain.ComplianceAlert, error) {
	latest, err := e.Repo.LatestEvaluation(ctx, projectID, standardID)
	if err != nil {
		return nil, err
	}
	result := domain.EvaluationResult{
		ProjectID:    latest.ProjectID,
		StandardID:   latest.StandardID,
		OverallScore: latest.OverallScore,
		EvaluatorID:  latest.EvaluatorID,
		EvaluatedAt:  latest.EvaluatedAt,
	}
	if latest.BreakdownJSON != nil {
		if err := json.Unmarshal([]byte(*latest.BreakdownJSON), &result.Criteria); err != nil {
			return nil, fmt.Errorf("decode evaluation breakdown: %w", err)
		}
	}
	return e.AlertsFor(ctx, result)
}

// FanOutAlerts delivers one notification per (recipient, alert) to the
// project owner and every team member.
func (e Engine) FanOutAlerts(ctx context.Context, result domain.EvaluationResult, alerts []domain.ComplianceAlert) error {
	if len(alerts) == 0 {
		return nil
	}
	project, err := e.Repo.GetProject(ctx, result.ProjectID)
	if err != nil {
		return err
	}
	recipients := append([]string{project.OwnerID}, project.MemberIDs...)
	seen := make(map[string]bool, len(recipients))
	for _, recipient := range recipients {
		if recipient == "" || seen[recipient] {
			continue
		}
		seen[recipient] = true
		for _, alert := range alerts {
			msg := notify.Message{
				RecipientID: recipient,
				Type:        alert.Type,
				Severity:    alert.Severity,
				Text:        alert.Message,
				EntityKind:  "project",
				EntityID:    result.ProjectID,
			}
			if err := e.Notifier.Notify(ctx, msg); err != nil {
				e.logger().Warn("alert notification failed",
					zap.String("recipient", recipient),
					zap.String("alert_type", alert.Type),
					zap.Error(err))
			}
		}
	}
	return nil
}

// daysBetween is a whole-day difference, used by the workflow sweep too.
func daysBetween(from, to time.Time) int {
	return int(math.Floor(to.Sub(from).Hours() / 24))
}
