package domain

// Standard is a named compliance framework entry. Its weight multiplies the
// raw percentage score of every evaluation against it.
type Standard struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Description string  `json:"description,omitempty"`
	Category    string  `json:"category" enum:"portfolio,program,project"`
	Level       string  `json:"level" enum:"foundational,intermediate,advanced"`
	Weight      float64 `json:"weight"`
	Version     int     `json:"version"`
	IsActive    bool    `json:"is_active"`
	CreatedAt   string  `json:"created_at" format:"date-time"`
	UpdatedAt   string  `json:"updated_at" format:"date-time"`
}

// Criterion is one scorable requirement within a Standard.
type Criterion struct {
	ID            string  `json:"id"`
	StandardID    string  `json:"standard_id"`
	Name          string  `json:"name"`
	Description   string  `json:"description,omitempty"`
	EvidenceType  string  `json:"evidence_type" enum:"document,link,text,file"`
	ScoringMethod string  `json:"scoring_method" enum:"binary,partial,scale"`
	MaxScore      float64 `json:"max_score"`
	IsMandatory   bool    `json:"is_mandatory"`
	Order         int     `json:"order"`
	CreatedAt     string  `json:"created_at" format:"date-time"`
}

// ComplianceRecord is evidence submitted against one (project, standard,
// criterion) triple. Re-submission patches the existing record.
type ComplianceRecord struct {
	ID          string  `json:"id"`
	ProjectID   string  `json:"project_id"`
	StandardID  string  `json:"standard_id"`
	CriterionID string  `json:"criterion_id"`
	Status      string  `json:"status" enum:"not_started,in_progress,submitted,approved,rejected"`
	Score       float64 `json:"score"`
	Evidence    string  `json:"evidence,omitempty"`
	EvidenceURL string  `json:"evidence_url,omitempty"`
	ReviewerID  *string `json:"reviewer_id,omitempty"`
	ReviewedAt  *string `json:"reviewed_at,omitempty" format:"date-time"`
	SubmittedBy string  `json:"submitted_by"`
	CreatedAt   string  `json:"created_at" format:"date-time"`
	UpdatedAt   string  `json:"updated_at" format:"date-time"`
}

// CriterionResult is the per-criterion outcome inside an EvaluationResult.
type CriterionResult struct {
	CriterionID    string  `json:"criterion_id"`
	Score          float64 `json:"score"`
	MaxScore       float64 `json:"max_score"`
	Status         string  `json:"status" enum:"met,partial,not_met,not_applicable"`
	EvidenceStatus string  `json:"evidence_status" enum:"provided,missing,invalid"`
	IsMandatory    bool    `json:"is_mandatory"`
}

// EvaluationResult is the computed score/status for one (project, standard)
// pair at a point in time.
type EvaluationResult struct {
	ProjectID    string            `json:"project_id"`
	StandardID   string            `json:"standard_id"`
	Criteria     []CriterionResult `json:"criteria"`
	OverallScore float64           `json:"overall_score"`
	Status       string            `json:"status" enum:"complete,partial,failed"`
	EvaluatorID  string            `json:"evaluator_id"`
	EvaluatedAt  string            `json:"evaluated_at" format:"date-time"`
	Notes        string            `json:"notes,omitempty"`
}

// Evaluation is the persisted history row. The per-criterion breakdown is
// stored alongside as JSON for audit; trend and statistics read only the
// aggregate score.
type Evaluation struct {
	ID            string  `json:"id"`
	ProjectID     string  `json:"project_id"`
	StandardID    string  `json:"standard_id"`
	OverallScore  float64 `json:"overall_score"`
	EvaluatorID   string  `json:"evaluator_id"`
	EvaluatedAt   string  `json:"evaluated_at" format:"date-time"`
	Notes         string  `json:"notes,omitempty"`
	BreakdownJSON *string `json:"breakdown_json,omitempty"`
}

// ComplianceAlert is derived fresh from an evaluation, never stored as its
// own aggregate. CurrentValue carries the score or days-overdue figure the
// alert fired on.
type ComplianceAlert struct {
	Type         string  `json:"type" enum:"non_compliant,declining_trend,missing_evidence,overdue_evaluation"`
	Severity     string  `json:"severity" enum:"low,medium,high,critical"`
	Message      string  `json:"message"`
	CurrentValue float64 `json:"current_value"`
}

// Notification is one persisted fan-out row per (recipient, alert).
type Notification struct {
	ID          string  `json:"id"`
	RecipientID string  `json:"recipient_id"`
	Type        string  `json:"type"`
	Severity    string  `json:"severity" enum:"low,medium,high,critical"`
	Message     string  `json:"message"`
	EntityKind  string  `json:"entity_kind"`
	EntityID    string  `json:"entity_id"`
	ReadAt      *string `json:"read_at,omitempty" format:"date-time"`
	CreatedAt   string  `json:"created_at" format:"date-time"`
}

// Workflow is a step-sequence template. Steps form an ordered linked list
// through NextStepID.
type Workflow struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	TriggerType string         `json:"trigger_type,omitempty"`
	IsActive    bool           `json:"is_active"`
	Steps       []WorkflowStep `json:"steps,omitempty"`
	CreatedAt   string         `json:"created_at" format:"date-time"`
}

// WorkflowStep is one step definition inside a Workflow template.
type WorkflowStep struct {
	ID                  string  `json:"id"`
	WorkflowID          string  `json:"workflow_id"`
	Name                string  `json:"name"`
	Type                string  `json:"type" enum:"evidence_request,approval,notification,escalation,condition_check"`
	Assignee            string  `json:"assignee,omitempty"`
	DueDateOffsetDays   int     `json:"due_date_offset_days,omitempty"`
	EscalationAfterDays int     `json:"escalation_after_days,omitempty"`
	EscalationTo        string  `json:"escalation_to,omitempty"`
	NextStepID          *string `json:"next_step_id,omitempty"`
	ConditionJSON       *string `json:"condition_json,omitempty"`
}

// WorkflowInstance is a per-entity running execution of a Workflow. At most
// one non-terminal instance may exist per entity at a time.
type WorkflowInstance struct {
	ID              string  `json:"id"`
	WorkflowID      string  `json:"workflow_id"`
	EntityID        string  `json:"entity_id"`
	CurrentStepID   *string `json:"current_step_id,omitempty"`
	Status          string  `json:"status" enum:"active,paused,completed,cancelled,escalated"`
	CurrentAssignee *string `json:"current_assignee,omitempty"`
	NextDueDate     *string `json:"next_due_date,omitempty" format:"date-time"`
	EscalationLevel int     `json:"escalation_level"`
	StartedBy       string  `json:"started_by"`
	StartedAt       string  `json:"started_at" format:"date-time"`
	UpdatedAt       string  `json:"updated_at" format:"date-time"`
}

// WorkflowStepInstance mirrors one step's lifecycle within an instance.
type WorkflowStepInstance struct {
	ID          string  `json:"id"`
	InstanceID  string  `json:"instance_id"`
	StepID      string  `json:"step_id"`
	Status      string  `json:"status" enum:"pending,in_progress,completed,escalated,skipped"`
	DueDate     *string `json:"due_date,omitempty" format:"date-time"`
	CompletedBy *string `json:"completed_by,omitempty"`
	CompletedAt *string `json:"completed_at,omitempty" format:"date-time"`
	Notes       string  `json:"notes,omitempty"`
}

// Escalation is one audit record of a step reassignment.
type Escalation struct {
	ID         string `json:"id"`
	InstanceID string `json:"instance_id"`
	StepID     string `json:"step_id"`
	From       string `json:"from"`
	To         string `json:"to"`
	Reason     string `json:"reason"`
	Level      int    `json:"level"`
	CreatedAt  string `json:"created_at" format:"date-time"`
}

// Rule is a declarative condition -> action pair. Every update replaces the
// rule wholesale and increments Version.
type Rule struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	Description   string `json:"description,omitempty"`
	TargetEntity  string `json:"target_entity"`
	ConditionJSON string `json:"condition_json"`
	ActionJSON    string `json:"action_json"`
	IsActive      bool   `json:"is_active"`
	Version       int    `json:"version"`
	CreatedBy     string `json:"created_by"`
	CreatedAt     string `json:"created_at" format:"date-time"`
	UpdatedAt     string `json:"updated_at" format:"date-time"`
}

// ComplianceSchedule drives periodic re-evaluation of one (project, standard)
// pair. The schedule sweep evaluates every due schedule and advances
// NextRunAt by FrequencyDays.
type ComplianceSchedule struct {
	ID            string `json:"id"`
	ProjectID     string `json:"project_id"`
	StandardID    string `json:"standard_id"`
	FrequencyDays int    `json:"frequency_days"`
	NextRunAt     string `json:"next_run_at" format:"date-time"`
	IsActive      bool   `json:"is_active"`
	CreatedAt     string `json:"created_at" format:"date-time"`
}

// Project is the minimal slice of the surrounding portfolio system this core
// needs: identity plus the owner/member set alert fan-out targets.
type Project struct {
	ID        string   `json:"id"`
	Name      string   `json:"name"`
	OwnerID   string   `json:"owner_id"`
	Status    string   `json:"status"`
	MemberIDs []string `json:"member_ids,omitempty"`
	CreatedAt string   `json:"created_at" format:"date-time"`
}

// Event is one append-only audit log row.
type Event struct {
	ID         int64  `json:"id"`
	TS         string `json:"ts" format:"date-time"`
	Type       string `json:"type"`
	ProjectID  string `json:"project_id,omitempty"`
	EntityKind string `json:"entity_kind"`
	EntityID   string `json:"entity_id,omitempty"`
	ActorID    string `json:"actor_id"`
	Payload    string `json:"payload_json"`
}
