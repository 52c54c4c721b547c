package repo

import (
	"context"
	"database/sql"

	"standline/internal/domain"
)

const recordCols = `id,project_id,standard_id,criterion_id,status,score,evidence,evidence_url,reviewer_id,reviewed_at,submitted_by,created_at,updated_at`

func scanRecord(scan func(dest ...any) error) (domain.ComplianceRecord, error) {
	var rec domain.ComplianceRecord
	var evidence, evidenceURL, reviewer, reviewedAt sql.NullString
	err := scan(&rec.ID, &rec.ProjectID, &rec.StandardID, &rec.CriterionID, &rec.Status, &rec.Score,
		&evidence, &evidenceURL, &reviewer, &reviewedAt, &rec.SubmittedBy, &rec.CreatedAt, &rec.UpdatedAt)
	if err == sql.ErrNoRows {
		return rec, ErrNotFound
	}
	if err != nil {
		return rec, err
	}
	rec.Evidence = evidence.String
	rec.EvidenceURL = evidenceURL.String
	if reviewer.Valid {
		rec.ReviewerID = &reviewer.String
	}
	if reviewedAt.Valid {
		rec.ReviewedAt = &reviewedAt.String
	}
	return rec, nil
}

// UpsertRecord inserts or patches the unique record for the (project,
// standard, criterion) triple. Re-submission never duplicates rows.
func (r Repo) UpsertRecord(ctx context.Context, rec domain.ComplianceRecord) (domain.ComplianceRecord, error) {
	_, err := r.DB.ExecContext(ctx, `INSERT INTO compliance_records(`+recordCols+`) VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?)
ON CONFLICT(project_id, standard_id, criterion_id) DO UPDATE SET
  status=excluded.status, score=excluded.score, evidence=excluded.evidence,
  evidence_url=excluded.evidence_url, reviewer_id=excluded.reviewer_id,
  reviewed_at=excluded.reviewed_at, submitted_by=excluded.submitted_by,
  updated_at=excluded.updated_at`,
		rec.ID, rec.ProjectID, rec.StandardID, rec.CriterionID, rec.Status, rec.Score,
		nullableString(rec.Evidence), nullableString(rec.EvidenceURL),
		nullablePtr(rec.ReviewerID), nullablePtr(rec.ReviewedAt),
		rec.SubmittedBy, rec.CreatedAt, rec.UpdatedAt)
	if err != nil {
		return domain.ComplianceRecord{}, err
	}
	return r.GetRecordByTriple(ctx, rec.ProjectID, rec.StandardID, rec.CriterionID)
}

func (r Repo) GetRecord(ctx context.Context, id string) (domain.ComplianceRecord, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+recordCols+` FROM compliance_records WHERE id=?`, id)
	return scanRecord(row.Scan)
}

func (r Repo) GetRecordByTriple(ctx context.Context, projectID, standardID, criterionID string) (domain.ComplianceRecord, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+recordCols+` FROM compliance_records WHERE project_id=? AND standard_id=? AND criterion_id=?`,
		projectID, standardID, criterionID)
	return scanRecord(row.Scan)
}

// ListRecords returns all evidence records for one (project, standard) pair.
func (r Repo) ListRecords(ctx context.Context, projectID, standardID string) ([]domain.ComplianceRecord, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT `+recordCols+` FROM compliance_records WHERE project_id=? AND standard_id=?`,
		projectID, standardID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.ComplianceRecord
	for rows.Next() {
		rec, err := scanRecord(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, rec)
	}
	return res, rows.Err()
}

// UpdateRecordScore sets just the score, used when applying set_score rule
// intents.
func (r Repo) UpdateRecordScore(ctx context.Context, id string, score float64, updatedAt string) error {
	res, err := r.DB.ExecContext(ctx, `UPDATE compliance_records SET score=?, updated_at=? WHERE id=?`, score, updatedAt, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateRecordStatus sets just the status, used when applying set_status rule
// intents and evidence review decisions.
func (r Repo) UpdateRecordStatus(ctx context.Context, id, status string, reviewerID *string, updatedAt string) error {
	res, err := r.DB.ExecContext(ctx, `UPDATE compliance_records SET status=?, reviewer_id=COALESCE(?, reviewer_id), reviewed_at=?, updated_at=? WHERE id=?`,
		status, nullablePtr(reviewerID), updatedAt, updatedAt, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func nullablePtr(v *string) any {
	if v == nil || *v == "" {
		return nil
	}
	return *v
}
