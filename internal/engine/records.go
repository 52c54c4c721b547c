package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"standline/internal/domain"
	"standline/internal/events"
)

// SubmitRecordOptions carries one evidence submission. Resubmitting against
// the same (project, standard, criterion) triple patches the existing record.
type SubmitRecordOptions struct {
	ProjectID   string
	StandardID  string
	CriterionID string
	Status      string
	Evidence    string
	EvidenceURL string
	ActorID     string
}

// SubmitRecord records evidence against a criterion. The status defaults to
// submitted; approval and rejection go through ReviewRecord.
func (e Engine) SubmitRecord(ctx context.Context, opts SubmitRecordOptions) (domain.ComplianceRecord, error) {
	if err := requireActor(opts.ActorID); err != nil {
		return domain.ComplianceRecord{}, err
	}
	if _, err := e.Repo.GetProject(ctx, opts.ProjectID); err != nil {
		return domain.ComplianceRecord{}, fmt.Errorf("project %s: %w", opts.ProjectID, err)
	}
	criterion, err := e.Repo.GetCriterion(ctx, opts.CriterionID)
	if err != nil {
		return domain.ComplianceRecord{}, fmt.Errorf("criterion %s: %w", opts.CriterionID, err)
	}
	if criterion.StandardID != opts.StandardID {
		return domain.ComplianceRecord{}, fmt.Errorf("%w: criterion %s does not belong to standard %s",
			domain.ErrValidation, opts.CriterionID, opts.StandardID)
	}
	status := opts.Status
	if status == "" {
		status = "submitted"
	}
	switch status {
	case "not_started", "in_progress", "submitted":
	case "approved", "rejected":
		return domain.ComplianceRecord{}, fmt.Errorf("%w: status %s is set by review, not submission", domain.ErrValidation, status)
	default:
		return domain.ComplianceRecord{}, fmt.Errorf("%w: unknown record status %q", domain.ErrValidation, status)
	}

	nowStr := e.Timestamp()
	rec := domain.ComplianceRecord{
		ID:          uuid.New().String(),
		ProjectID:   opts.ProjectID,
		StandardID:  opts.StandardID,
		CriterionID: opts.CriterionID,
		Status:      status,
		Evidence:    opts.Evidence,
		EvidenceURL: opts.EvidenceURL,
		SubmittedBy: opts.ActorID,
		CreatedAt:   nowStr,
		UpdatedAt:   nowStr,
	}
	// Keep the original id when the triple already has a record.
	if existing, err := e.Repo.GetRecordByTriple(ctx, opts.ProjectID, opts.StandardID, opts.CriterionID); err == nil {
		rec.ID = existing.ID
		rec.CreatedAt = existing.CreatedAt
	} else if !errors.Is(err, domain.ErrNotFound) {
		return domain.ComplianceRecord{}, err
	}
	stored, err := e.Repo.UpsertRecord(ctx, rec)
	if err != nil {
		return domain.ComplianceRecord{}, fmt.Errorf("upsert record: %w", err)
	}
	if err := e.appendEvent(ctx, "record.submitted", opts.ProjectID, "compliance_record", stored.ID, opts.ActorID, events.EventPayload{
		"criterion_id": opts.CriterionID,
		"status":       status,
	}); err != nil {
		return domain.ComplianceRecord{}, err
	}
	return stored, nil
}

// ReviewRecord approves or rejects submitted evidence.
func (e Engine) ReviewRecord(ctx context.Context, id, status, reviewerID string) (domain.ComplianceRecord, error) {
	if err := requireActor(reviewerID); err != nil {
		return domain.ComplianceRecord{}, err
	}
	if status != "approved" && status != "rejected" {
		return domain.ComplianceRecord{}, fmt.Errorf("%w: review status must be approved or rejected", domain.ErrValidation)
	}
	rec, err := e.Repo.GetRecord(ctx, id)
	if err != nil {
		return domain.ComplianceRecord{}, fmt.Errorf("record %s: %w", id, err)
	}
	if rec.Status != "submitted" {
		return domain.ComplianceRecord{}, fmt.Errorf("%w: only submitted records can be reviewed, record is %s", domain.ErrInvariant, rec.Status)
	}
	if err := e.Repo.UpdateRecordStatus(ctx, id, status, &reviewerID, e.Timestamp()); err != nil {
		return domain.ComplianceRecord{}, err
	}
	if err := e.appendEvent(ctx, "record.reviewed", rec.ProjectID, "compliance_record", id, reviewerID, events.EventPayload{
		"status": status,
	}); err != nil {
		return domain.ComplianceRecord{}, err
	}
	return e.Repo.GetRecord(ctx, id)
}

// appendEvent writes a single event in its own transaction, for operations
// whose main write does not run inside one.
func (e Engine) appendEvent(ctx context.Context, evtType, projectID, entityKind, entityID, actorID string, payload events.EventPayload) error {
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := e.Events.Append(ctx, tx, evtType, projectID, entityKind, entityID, actorID, payload); err != nil {
		return err
	}
	return tx.Commit()
}
