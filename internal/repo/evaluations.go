package repo

import (
	"context"
	"database/sql"

	"standline/internal/domain"
)

const evaluationCols = `id,project_id,standard_id,overall_score,evaluator_id,evaluated_at,notes,breakdown_json`

func scanEvaluation(scan func(dest ...any) error) (domain.Evaluation, error) {
	var e domain.Evaluation
	var notes, breakdown sql.NullString
	err := scan(&e.ID, &e.ProjectID, &e.StandardID, &e.OverallScore, &e.EvaluatorID, &e.EvaluatedAt, &notes, &breakdown)
	if err == sql.ErrNoRows {
		return e, ErrNotFound
	}
	if err != nil {
		return e, err
	}
	e.Notes = notes.String
	if breakdown.Valid {
		e.BreakdownJSON = &breakdown.String
	}
	return e, nil
}

// InsertEvaluationTx appends one history row. History is append-only: rows
// are never updated or deleted, only superseded by newer ones.
func (r Repo) InsertEvaluationTx(ctx context.Context, tx *sql.Tx, e domain.Evaluation) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO evaluations(`+evaluationCols+`) VALUES (?,?,?,?,?,?,?,?)`,
		e.ID, e.ProjectID, e.StandardID, e.OverallScore, e.EvaluatorID, e.EvaluatedAt,
		nullableString(e.Notes), nullablePtr(e.BreakdownJSON))
	return err
}

// ListEvaluations returns history for one (project, standard) pair sorted
// ascending by evaluation time. limit 0 means no limit; a positive limit
// keeps the most recent rows.
func (r Repo) ListEvaluations(ctx context.Context, projectID, standardID string, limit int) ([]domain.Evaluation, error) {
	q := `SELECT ` + evaluationCols + ` FROM evaluations WHERE project_id=? AND standard_id=? ORDER BY evaluated_at DESC, id DESC`
	args := []any{projectID, standardID}
	if limit > 0 {
		q += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := r.DB.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Evaluation
	for rows.Next() {
		e, err := scanEvaluation(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	// reverse into ascending order
	for i, j := 0, len(res)-1; i < j; i, j = i+1, j-1 {
		res[i], res[j] = res[j], res[i]
	}
	return res, nil
}

// ListProjectEvaluations returns every history row for a project, ascending.
func (r Repo) ListProjectEvaluations(ctx context.Context, projectID string) ([]domain.Evaluation, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT `+evaluationCols+` FROM evaluations WHERE project_id=? ORDER BY evaluated_at, id`, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Evaluation
	for rows.Next() {
		e, err := scanEvaluation(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, e)
	}
	return res, rows.Err()
}

// LatestEvaluation returns the most recent history row for the pair.
func (r Repo) LatestEvaluation(ctx context.Context, projectID, standardID string) (domain.Evaluation, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+evaluationCols+` FROM evaluations WHERE project_id=? AND standard_id=? ORDER BY evaluated_at DESC, id DESC LIMIT 1`,
		projectID, standardID)
	return scanEvaluation(row.Scan)
}

// --- notifications ---

func (r Repo) InsertNotification(ctx context.Context, n domain.Notification) error {
	_, err := r.DB.ExecContext(ctx, `INSERT INTO notifications(id,recipient_id,type,severity,message,entity_kind,entity_id,read_at,created_at) VALUES (?,?,?,?,?,?,?,?,?)`,
		n.ID, n.RecipientID, n.Type, n.Severity, n.Message, n.EntityKind, n.EntityID, nullablePtr(n.ReadAt), n.CreatedAt)
	return err
}

func (r Repo) ListNotifications(ctx context.Context, recipientID string, unreadOnly bool, limit int) ([]domain.Notification, error) {
	q := `SELECT id,recipient_id,type,severity,message,entity_kind,entity_id,read_at,created_at FROM notifications WHERE recipient_id=?`
	if unreadOnly {
		q += ` AND read_at IS NULL`
	}
	q += ` ORDER BY created_at DESC`
	args := []any{recipientID}
	if limit > 0 {
		q += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := r.DB.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Notification
	for rows.Next() {
		var n domain.Notification
		var readAt sql.NullString
		if err := rows.Scan(&n.ID, &n.RecipientID, &n.Type, &n.Severity, &n.Message, &n.EntityKind, &n.EntityID, &readAt, &n.CreatedAt); err != nil {
			return nil, err
		}
		if readAt.Valid {
			n.ReadAt = &readAt.String
		}
		res = append(res, n)
	}
	return res, rows.Err()
}

func (r Repo) MarkNotificationRead(ctx context.Context, id, readAt string) error {
	res, err := r.DB.ExecContext(ctx, `UPDATE notifications SET read_at=? WHERE id=? AND read_at IS NULL`, readAt, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// --- schedules ---

func (r Repo) InsertSchedule(ctx context.Context, s domain.ComplianceSchedule) error {
	_, err := r.DB.ExecContext(ctx, `INSERT INTO compliance_schedules(id,project_id,standard_id,frequency_days,next_run_at,is_active,created_at) VALUES (?,?,?,?,?,?,?)`,
		s.ID, s.ProjectID, s.StandardID, s.FrequencyDays, s.NextRunAt, boolToInt(s.IsActive), s.CreatedAt)
	return err
}

func (r Repo) ListDueSchedules(ctx context.Context, now string) ([]domain.ComplianceSchedule, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT id,project_id,standard_id,frequency_days,next_run_at,is_active,created_at
FROM compliance_schedules WHERE is_active=1 AND next_run_at<=? ORDER BY next_run_at`, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectSchedules(rows)
}

func (r Repo) ListSchedules(ctx context.Context, projectID string) ([]domain.ComplianceSchedule, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT id,project_id,standard_id,frequency_days,next_run_at,is_active,created_at
FROM compliance_schedules WHERE project_id=? ORDER BY next_run_at`, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectSchedules(rows)
}

func collectSchedules(rows *sql.Rows) ([]domain.ComplianceSchedule, error) {
	var res []domain.ComplianceSchedule
	for rows.Next() {
		var s domain.ComplianceSchedule
		var active int
		if err := rows.Scan(&s.ID, &s.ProjectID, &s.StandardID, &s.FrequencyDays, &s.NextRunAt, &active, &s.CreatedAt); err != nil {
			return nil, err
		}
		s.IsActive = active == 1
		res = append(res, s)
	}
	return res, rows.Err()
}

func (r Repo) AdvanceSchedule(ctx context.Context, id, nextRunAt string) error {
	res, err := r.DB.ExecContext(ctx, `UPDATE compliance_schedules SET next_run_at=? WHERE id=?`, nextRunAt, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
