package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"standline/internal/domain"
	"standline/internal/events"
)

// Compliance status thresholds. These were designed for a 0-100 scale but
// are applied to the weighted overall score, which tops out at 100*weight.
// The mismatch is inherited behavior that downstream consumers depend on;
// see DESIGN.md before "fixing" it.
const (
	compliantThreshold = 80
	partialThreshold   = 60
)

// ComplianceStatus buckets a weighted overall score into
// compliant/partial/non_compliant.
func ComplianceStatus(score float64) string {
	switch {
	case score >= compliantThreshold:
		return "compliant"
	case score >= partialThreshold:
		return "partial"
	default:
		return "non_compliant"
	}
}

// Evaluate scores one project against one standard's criteria set and
// appends the result to the evaluation history.
func (e Engine) Evaluate(ctx context.Context, projectID, standardID, evaluatorID, notes string) (domain.EvaluationResult, error) {
	if strings.TrimSpace(evaluatorID) == "" {
		return domain.EvaluationResult{}, fmt.Errorf("%w: evaluator identity required", domain.ErrUnauthorized)
	}
	if _, err := e.Repo.GetProject(ctx, projectID); err != nil {
		return domain.EvaluationResult{}, fmt.Errorf("project %s: %w", projectID, err)
	}
	standard, err := e.Repo.GetStandard(ctx, standardID)
	if err != nil {
		return domain.EvaluationResult{}, fmt.Errorf("standard %s: %w", standardID, err)
	}
	criteria, err := e.Repo.ListCriteria(ctx, standardID)
	if err != nil {
		return domain.EvaluationResult{}, err
	}
	if len(criteria) == 0 {
		return domain.EvaluationResult{}, fmt.Errorf("%w: no criteria found for this standard", domain.ErrNotFound)
	}
	records, err := e.Repo.ListRecords(ctx, projectID, standardID)
	if err != nil {
		return domain.EvaluationResult{}, err
	}
	byCriterion := make(map[string]domain.ComplianceRecord, len(records))
	for _, rec := range records {
		byCriterion[rec.CriterionID] = rec
	}

	result := domain.EvaluationResult{
		ProjectID:   projectID,
		StandardID:  standardID,
		EvaluatorID: evaluatorID,
		EvaluatedAt: e.Timestamp(),
		Notes:       notes,
	}
	var achieved, possible float64
	anyPartial := false
	mandatoryFailed := false
	for _, c := range criteria {
		rec, hasRecord := byCriterion[c.ID]
		cr := scoreCriterion(c, rec, hasRecord)
		result.Criteria = append(result.Criteria, cr)
		achieved += cr.Score
		possible += cr.MaxScore
		if cr.Status == "partial" {
			anyPartial = true
		}
		if c.IsMandatory && cr.Status == "not_met" {
			mandatoryFailed = true
		}
	}

	raw := 0.0
	if possible > 0 {
		raw = achieved / possible * 100
	}
	result.OverallScore = round2(raw * standard.Weight)
	switch {
	case mandatoryFailed:
		result.Status = "failed"
	case anyPartial:
		result.Status = "partial"
	default:
		result.Status = "complete"
	}

	if err := e.persistEvaluation(ctx, result); err != nil {
		return domain.EvaluationResult{}, err
	}
	return result, nil
}

// BatchEvaluate runs Evaluate across many projects with partial-failure
// semantics: a failing project is logged and skipped, never aborting the
// batch.
func (e Engine) BatchEvaluate(ctx context.Context, projectIDs []string, standardID, evaluatorID string) ([]domain.EvaluationResult, error) {
	var results []domain.EvaluationResult
	for _, projectID := range projectIDs {
		res, err := e.Evaluate(ctx, projectID, standardID, evaluatorID, "")
		if err != nil {
			e.logger().Warn("batch evaluation item failed",
				zap.String("project_id", projectID),
				zap.String("standard_id", standardID),
				zap.Error(err))
			continue
		}
		results = append(results, res)
	}
	return results, nil
}

// scoreCriterion resolves one criterion against its evidence record.
func scoreCriterion(c domain.Criterion, rec domain.ComplianceRecord, hasRecord bool) domain.CriterionResult {
	cr := domain.CriterionResult{
		CriterionID: c.ID,
		MaxScore:    c.MaxScore,
		IsMandatory: c.IsMandatory,
	}
	if !hasRecord {
		cr.EvidenceStatus = "missing"
		cr.Status = criterionStatus(c.ScoringMethod, 0, c.MaxScore)
		return cr
	}

	switch {
	case rec.Status == "approved":
		// Approval overrides evidence-shape validation entirely.
		cr.EvidenceStatus = "provided"
		cr.Score = c.MaxScore
	case rec.Evidence == "" && rec.EvidenceURL == "":
		cr.EvidenceStatus = "missing"
	case evidenceValid(c, rec):
		cr.EvidenceStatus = "provided"
	default:
		cr.EvidenceStatus = "invalid"
	}
	if rec.Status == "submitted" {
		cr.Score = submittedFraction(c.ScoringMethod) * c.MaxScore
	}
	cr.Status = criterionStatus(c.ScoringMethod, cr.Score, c.MaxScore)
	return cr
}

// evidenceValid checks the evidence shape against the criterion's required
// evidence type.
func evidenceValid(c domain.Criterion, rec domain.ComplianceRecord) bool {
	switch c.EvidenceType {
	case "document", "file":
		return strings.TrimSpace(rec.EvidenceURL) != ""
	case "link":
		v := rec.EvidenceURL
		if v == "" {
			v = rec.Evidence
		}
		return strings.HasPrefix(v, "http")
	case "text":
		return len(rec.Evidence) > 10
	default:
		return false
	}
}

// submittedFraction is the share of max score a submitted-but-unreviewed
// record earns per scoring method.
func submittedFraction(method string) float64 {
	switch method {
	case "partial":
		return 0.5
	case "scale":
		return 0.7
	default: // binary earns nothing until approved
		return 0
	}
}

// criterionStatus derives met/partial/not_met from the score ratio.
func criterionStatus(method string, score, maxScore float64) string {
	if maxScore <= 0 {
		return "not_met"
	}
	switch method {
	case "binary":
		if score >= maxScore {
			return "met"
		}
		return "not_met"
	case "partial":
		switch {
		case score >= 0.8*maxScore:
			return "met"
		case score > 0:
			return "partial"
		default:
			return "not_met"
		}
	case "scale":
		switch {
		case score >= 0.9*maxScore:
			return "met"
		case score >= 0.5*maxScore:
			return "partial"
		default:
			return "not_met"
		}
	default:
		return "not_met"
	}
}

func (e Engine) persistEvaluation(ctx context.Context, result domain.EvaluationResult) error {
	breakdown, err := json.Marshal(result.Criteria)
	if err != nil {
		return fmt.Errorf("marshal breakdown: %w", err)
	}
	breakdownStr := string(breakdown)
	row := domain.Evaluation{
		ID:            uuid.New().String(),
		ProjectID:     result.ProjectID,
		StandardID:    result.StandardID,
		OverallScore:  result.OverallScore,
		EvaluatorID:   result.EvaluatorID,
		EvaluatedAt:   result.EvaluatedAt,
		Notes:         result.Notes,
		BreakdownJSON: &breakdownStr,
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := e.Repo.InsertEvaluationTx(ctx, tx, row); err != nil {
		return fmt.Errorf("insert evaluation: %w", err)
	}
	if err := e.Events.Append(ctx, tx, "evaluation.recorded", result.ProjectID, "evaluation", row.ID, result.EvaluatorID, events.EventPayload{
		"standard_id":   result.StandardID,
		"overall_score": result.OverallScore,
		"status":        result.Status,
	}); err != nil {
		return err
	}
	return tx.Commit()
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
