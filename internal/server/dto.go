package server

// Request payloads

type CreateProjectRequest struct {
	ID        *string  `json:"id,omitempty"`
	Name      string   `json:"name"`
	OwnerID   string   `json:"owner_id"`
	MemberIDs []string `json:"member_ids,omitempty"`
}

type CreateStandardRequest struct {
	ID          *string `json:"id,omitempty"`
	Name        string  `json:"name"`
	Description *string `json:"description,omitempty"`
	Category    string  `json:"category" enum:"portfolio,program,project"`
	Level       string  `json:"level" enum:"foundational,intermediate,advanced"`
	Weight      float64 `json:"weight"`
}

type UpdateStandardRequest struct {
	Name        *string  `json:"name,omitempty"`
	Description *string  `json:"description,omitempty"`
	Category    *string  `json:"category,omitempty" enum:"portfolio,program,project"`
	Level       *string  `json:"level,omitempty" enum:"foundational,intermediate,advanced"`
	Weight      *float64 `json:"weight,omitempty"`
	IsActive    *bool    `json:"is_active,omitempty"`
}

type CreateCriterionRequest struct {
	ID            *string `json:"id,omitempty"`
	Name          string  `json:"name"`
	Description   *string `json:"description,omitempty"`
	EvidenceType  string  `json:"evidence_type" enum:"document,link,text,file"`
	ScoringMethod string  `json:"scoring_method" enum:"binary,partial,scale"`
	MaxScore      float64 `json:"max_score"`
	IsMandatory   bool    `json:"is_mandatory"`
	Order         int     `json:"order,omitempty"`
}

type SubmitRecordRequest struct {
	ProjectID   string `json:"project_id"`
	StandardID  string `json:"standard_id"`
	CriterionID string `json:"criterion_id"`
	Status      string `json:"status,omitempty" enum:"not_started,in_progress,submitted,approved,rejected"`
	Evidence    string `json:"evidence,omitempty"`
	EvidenceURL string `json:"evidence_url,omitempty"`
}

type EvaluateRequest struct {
	ProjectID  string `json:"project_id"`
	StandardID string `json:"standard_id"`
	Notes      string `json:"notes,omitempty"`
}

type BatchEvaluateRequest struct {
	ProjectIDs []string `json:"project_ids"`
	StandardID string   `json:"standard_id"`
}

type CreateWorkflowRequest struct {
	ID          *string               `json:"id,omitempty"`
	Name        string                `json:"name"`
	Description *string               `json:"description,omitempty"`
	TriggerType string                `json:"trigger_type,omitempty" enum:"manual,rule,schedule"`
	IsActive    *bool                 `json:"is_active,omitempty"`
	Steps       []WorkflowStepRequest `json:"steps"`
}

type WorkflowStepRequest struct {
	ID                  *string `json:"id,omitempty"`
	Name                string  `json:"name"`
	Type                string  `json:"type" enum:"evidence_request,approval,notification,escalation,condition_check"`
	Assignee            string  `json:"assignee,omitempty"`
	DueDateOffsetDays   int     `json:"due_date_offset_days,omitempty"`
	EscalationAfterDays int     `json:"escalation_after_days,omitempty"`
	EscalationTo        string  `json:"escalation_to,omitempty"`
	NextStepID          *string `json:"next_step_id,omitempty"`
	ConditionJSON       *string `json:"condition_json,omitempty"`
}

type StartInstanceRequest struct {
	EntityID string `json:"entity_id"`
}

type CompleteStepRequest struct {
	StepID string `json:"step_id"`
	Notes  string `json:"notes,omitempty"`
}

type EscalateStepRequest struct {
	StepID string `json:"step_id"`
	Reason string `json:"reason"`
}

type RuleRequest struct {
	Name          string `json:"name"`
	Description   string `json:"description,omitempty"`
	TargetEntity  string `json:"target_entity"`
	ConditionJSON string `json:"condition_json"`
	ActionJSON    string `json:"action_json"`
	IsActive      *bool  `json:"is_active,omitempty"`
}

type TestRuleRequest struct {
	TestData map[string]any `json:"test_data"`
}

type CreateScheduleRequest struct {
	ID            *string `json:"id,omitempty"`
	ProjectID     string  `json:"project_id"`
	StandardID    string  `json:"standard_id"`
	FrequencyDays int     `json:"frequency_days"`
	NextRunAt     string  `json:"next_run_at" format:"date-time"`
}

type PredictRiskRequest struct {
	ProjectID   string  `json:"project_id"`
	RiskID      string  `json:"risk_id,omitempty"`
	Category    string  `json:"category,omitempty"`
	Probability float64 `json:"probability"`
	Impact      float64 `json:"impact"`
	Description string  `json:"description,omitempty"`
}
