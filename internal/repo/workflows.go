package repo

import (
	"context"
	"database/sql"

	"standline/internal/domain"
)

// --- workflow templates ---

func (r Repo) InsertWorkflow(ctx context.Context, w domain.Workflow) error {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if _, err := tx.ExecContext(ctx, `INSERT INTO workflows(id,name,description,trigger_type,is_active,created_at) VALUES (?,?,?,?,?,?)`,
		w.ID, w.Name, nullableString(w.Description), nullableString(w.TriggerType), boolToInt(w.IsActive), w.CreatedAt); err != nil {
		return err
	}
	for _, step := range w.Steps {
		if _, err := tx.ExecContext(ctx, `INSERT INTO workflow_steps(id,workflow_id,name,type,assignee,due_date_offset_days,escalation_after_days,escalation_to,next_step_id,condition_json) VALUES (?,?,?,?,?,?,?,?,?,?)`,
			step.ID, w.ID, step.Name, step.Type, nullableString(step.Assignee), step.DueDateOffsetDays,
			step.EscalationAfterDays, nullableString(step.EscalationTo), nullablePtr(step.NextStepID), nullablePtr(step.ConditionJSON)); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (r Repo) GetWorkflow(ctx context.Context, id string) (domain.Workflow, error) {
	var w domain.Workflow
	var desc, trigger sql.NullString
	var active int
	err := r.DB.QueryRowContext(ctx, `SELECT id,name,description,trigger_type,is_active,created_at FROM workflows WHERE id=?`, id).
		Scan(&w.ID, &w.Name, &desc, &trigger, &active, &w.CreatedAt)
	if err == sql.ErrNoRows {
		return w, ErrNotFound
	}
	if err != nil {
		return w, err
	}
	w.Description = desc.String
	w.TriggerType = trigger.String
	w.IsActive = active == 1
	w.Steps, err = r.ListWorkflowSteps(ctx, id)
	return w, err
}

func (r Repo) ListWorkflows(ctx context.Context) ([]domain.Workflow, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT id,name,description,trigger_type,is_active,created_at FROM workflows ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Workflow
	for rows.Next() {
		var w domain.Workflow
		var desc, trigger sql.NullString
		var active int
		if err := rows.Scan(&w.ID, &w.Name, &desc, &trigger, &active, &w.CreatedAt); err != nil {
			return nil, err
		}
		w.Description = desc.String
		w.TriggerType = trigger.String
		w.IsActive = active == 1
		res = append(res, w)
	}
	return res, rows.Err()
}

const stepCols = `id,workflow_id,name,type,assignee,due_date_offset_days,escalation_after_days,escalation_to,next_step_id,condition_json`

func scanStep(scan func(dest ...any) error) (domain.WorkflowStep, error) {
	var s domain.WorkflowStep
	var assignee, escalationTo, nextStep, cond sql.NullString
	err := scan(&s.ID, &s.WorkflowID, &s.Name, &s.Type, &assignee, &s.DueDateOffsetDays, &s.EscalationAfterDays, &escalationTo, &nextStep, &cond)
	if err == sql.ErrNoRows {
		return s, ErrNotFound
	}
	if err != nil {
		return s, err
	}
	s.Assignee = assignee.String
	s.EscalationTo = escalationTo.String
	if nextStep.Valid {
		s.NextStepID = &nextStep.String
	}
	if cond.Valid {
		s.ConditionJSON = &cond.String
	}
	return s, nil
}

func (r Repo) GetWorkflowStep(ctx context.Context, id string) (domain.WorkflowStep, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+stepCols+` FROM workflow_steps WHERE id=?`, id)
	return scanStep(row.Scan)
}

// ListWorkflowSteps returns step definitions in linked-list order starting
// from the head (the step no other step points to).
func (r Repo) ListWorkflowSteps(ctx context.Context, workflowID string) ([]domain.WorkflowStep, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT `+stepCols+` FROM workflow_steps WHERE workflow_id=?`, workflowID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var steps []domain.WorkflowStep
	for rows.Next() {
		s, err := scanStep(rows.Scan)
		if err != nil {
			return nil, err
		}
		steps = append(steps, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return orderSteps(steps), nil
}

func orderSteps(steps []domain.WorkflowStep) []domain.WorkflowStep {
	if len(steps) == 0 {
		return steps
	}
	byID := make(map[string]domain.WorkflowStep, len(steps))
	pointedTo := make(map[string]bool, len(steps))
	for _, s := range steps {
		byID[s.ID] = s
		if s.NextStepID != nil {
			pointedTo[*s.NextStepID] = true
		}
	}
	var head string
	for _, s := range steps {
		if !pointedTo[s.ID] {
			head = s.ID
			break
		}
	}
	if head == "" {
		// cycle; fall back to insertion order
		return steps
	}
	ordered := make([]domain.WorkflowStep, 0, len(steps))
	for cur := head; cur != ""; {
		s, ok := byID[cur]
		if !ok || len(ordered) == len(steps) {
			break
		}
		ordered = append(ordered, s)
		if s.NextStepID == nil {
			break
		}
		cur = *s.NextStepID
	}
	if len(ordered) != len(steps) {
		return steps
	}
	return ordered
}

// --- workflow instances ---

const instanceCols = `id,workflow_id,entity_id,current_step_id,status,current_assignee,next_due_date,escalation_level,started_by,started_at,updated_at`

func scanInstance(scan func(dest ...any) error) (domain.WorkflowInstance, error) {
	var in domain.WorkflowInstance
	var curStep, assignee, due sql.NullString
	err := scan(&in.ID, &in.WorkflowID, &in.EntityID, &curStep, &in.Status, &assignee, &due, &in.EscalationLevel, &in.StartedBy, &in.StartedAt, &in.UpdatedAt)
	if err == sql.ErrNoRows {
		return in, ErrNotFound
	}
	if err != nil {
		return in, err
	}
	if curStep.Valid {
		in.CurrentStepID = &curStep.String
	}
	if assignee.Valid {
		in.CurrentAssignee = &assignee.String
	}
	if due.Valid {
		in.NextDueDate = &due.String
	}
	return in, nil
}

func (r Repo) InsertInstanceTx(ctx context.Context, tx *sql.Tx, in domain.WorkflowInstance) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO workflow_instances(`+instanceCols+`) VALUES (?,?,?,?,?,?,?,?,?,?,?)`,
		in.ID, in.WorkflowID, in.EntityID, nullablePtr(in.CurrentStepID), in.Status, nullablePtr(in.CurrentAssignee),
		nullablePtr(in.NextDueDate), in.EscalationLevel, in.StartedBy, in.StartedAt, in.UpdatedAt)
	return err
}

func (r Repo) GetInstance(ctx context.Context, id string) (domain.WorkflowInstance, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+instanceCols+` FROM workflow_instances WHERE id=?`, id)
	return scanInstance(row.Scan)
}

// LiveInstanceForEntity returns the non-terminal instance for an entity, if
// one exists.
func (r Repo) LiveInstanceForEntity(ctx context.Context, entityID string) (domain.WorkflowInstance, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+instanceCols+` FROM workflow_instances
WHERE entity_id=? AND status IN ('active','paused','escalated')`, entityID)
	return scanInstance(row.Scan)
}

func (r Repo) ListInstances(ctx context.Context, status string) ([]domain.WorkflowInstance, error) {
	q := `SELECT ` + instanceCols + ` FROM workflow_instances`
	var args []any
	if status != "" {
		q += ` WHERE status=?`
		args = append(args, status)
	}
	q += ` ORDER BY started_at DESC`
	rows, err := r.DB.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.WorkflowInstance
	for rows.Next() {
		in, err := scanInstance(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, in)
	}
	return res, rows.Err()
}

// ListOverdueActiveInstances returns active instances whose next due date has
// passed as of now.
func (r Repo) ListOverdueActiveInstances(ctx context.Context, now string) ([]domain.WorkflowInstance, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT `+instanceCols+` FROM workflow_instances
WHERE status='active' AND next_due_date IS NOT NULL AND next_due_date<? ORDER BY next_due_date`, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.WorkflowInstance
	for rows.Next() {
		in, err := scanInstance(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, in)
	}
	return res, rows.Err()
}

func (r Repo) UpdateInstanceTx(ctx context.Context, tx *sql.Tx, in domain.WorkflowInstance) error {
	res, err := tx.ExecContext(ctx, `UPDATE workflow_instances SET current_step_id=?, status=?, current_assignee=?, next_due_date=?, escalation_level=?, updated_at=? WHERE id=?`,
		nullablePtr(in.CurrentStepID), in.Status, nullablePtr(in.CurrentAssignee), nullablePtr(in.NextDueDate), in.EscalationLevel, in.UpdatedAt, in.ID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// --- step instances ---

const stepInstanceCols = `id,instance_id,step_id,status,due_date,completed_by,completed_at,notes`

func scanStepInstance(scan func(dest ...any) error) (domain.WorkflowStepInstance, error) {
	var si domain.WorkflowStepInstance
	var due, by, at, notes sql.NullString
	err := scan(&si.ID, &si.InstanceID, &si.StepID, &si.Status, &due, &by, &at, &notes)
	if err == sql.ErrNoRows {
		return si, ErrNotFound
	}
	if err != nil {
		return si, err
	}
	if due.Valid {
		si.DueDate = &due.String
	}
	if by.Valid {
		si.CompletedBy = &by.String
	}
	if at.Valid {
		si.CompletedAt = &at.String
	}
	si.Notes = notes.String
	return si, nil
}

func (r Repo) InsertStepInstanceTx(ctx context.Context, tx *sql.Tx, si domain.WorkflowStepInstance) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO workflow_step_instances(`+stepInstanceCols+`) VALUES (?,?,?,?,?,?,?,?)`,
		si.ID, si.InstanceID, si.StepID, si.Status, nullablePtr(si.DueDate), nullablePtr(si.CompletedBy), nullablePtr(si.CompletedAt), nullableString(si.Notes))
	return err
}

func (r Repo) GetStepInstance(ctx context.Context, instanceID, stepID string) (domain.WorkflowStepInstance, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+stepInstanceCols+` FROM workflow_step_instances WHERE instance_id=? AND step_id=?`, instanceID, stepID)
	return scanStepInstance(row.Scan)
}

func (r Repo) ListStepInstances(ctx context.Context, instanceID string) ([]domain.WorkflowStepInstance, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT `+stepInstanceCols+` FROM workflow_step_instances WHERE instance_id=?`, instanceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.WorkflowStepInstance
	for rows.Next() {
		si, err := scanStepInstance(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, si)
	}
	return res, rows.Err()
}

func (r Repo) UpdateStepInstanceTx(ctx context.Context, tx *sql.Tx, si domain.WorkflowStepInstance) error {
	res, err := tx.ExecContext(ctx, `UPDATE workflow_step_instances SET status=?, due_date=?, completed_by=?, completed_at=?, notes=? WHERE id=?`,
		si.Status, nullablePtr(si.DueDate), nullablePtr(si.CompletedBy), nullablePtr(si.CompletedAt), nullableString(si.Notes), si.ID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// --- escalations ---

func (r Repo) InsertEscalationTx(ctx context.Context, tx *sql.Tx, e domain.Escalation) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO escalations(id,instance_id,step_id,from_assignee,to_assignee,reason,level,created_at) VALUES (?,?,?,?,?,?,?,?)`,
		e.ID, e.InstanceID, e.StepID, e.From, e.To, e.Reason, e.Level, e.CreatedAt)
	return err
}

func (r Repo) ListEscalations(ctx context.Context, instanceID string) ([]domain.Escalation, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT id,instance_id,step_id,from_assignee,to_assignee,reason,level,created_at FROM escalations WHERE instance_id=? ORDER BY created_at, id`, instanceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Escalation
	for rows.Next() {
		var e domain.Escalation
		if err := rows.Scan(&e.ID, &e.InstanceID, &e.StepID, &e.From, &e.To, &e.Reason, &e.Level, &e.CreatedAt); err != nil {
			return nil, err
		}
		res = append(res, e)
	}
	return res, rows.Err()
}
