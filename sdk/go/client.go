package standlinesdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client is a minimal Standline HTTP API client.
type Client struct {
	BaseURL     string
	BearerToken string
	ActorID     string // legacy header auth, used when no token is set
	HTTPClient  *http.Client
	Timeout     time.Duration
}

// New creates a client with sane defaults.
func New(baseURL string) *Client {
	return &Client{
		BaseURL: baseURL,
		Timeout: 10 * time.Second,
	}
}

// Standard represents the API standard model (partial).
type Standard struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	Category string  `json:"category"`
	Level    string  `json:"level"`
	Weight   float64 `json:"weight"`
	Version  int     `json:"version"`
	IsActive bool    `json:"is_active"`
}

// Record represents a submitted evidence record (partial).
type Record struct {
	ID          string  `json:"id"`
	ProjectID   string  `json:"project_id"`
	StandardID  string  `json:"standard_id"`
	CriterionID string  `json:"criterion_id"`
	Status      string  `json:"status"`
	Score       float64 `json:"score"`
}

// CriterionResult is one criterion's outcome inside an evaluation.
type CriterionResult struct {
	CriterionID    string  `json:"criterion_id"`
	Score          float64 `json:"score"`
	MaxScore       float64 `json:"max_score"`
	Status         string  `json:"status"`
	EvidenceStatus string  `json:"evidence_status"`
}

// EvaluationResult is a weighted compliance evaluation.
type EvaluationResult struct {
	ProjectID    string            `json:"project_id"`
	StandardID   string            `json:"standard_id"`
	Criteria     []CriterionResult `json:"criteria"`
	OverallScore float64           `json:"overall_score"`
	Status       string            `json:"status"`
	EvaluatedAt  string            `json:"evaluated_at"`
}

// Alert is one compliance alert derived from an evaluation.
type Alert struct {
	Type         string  `json:"type"`
	Severity     string  `json:"severity"`
	Message      string  `json:"message"`
	CurrentValue float64 `json:"current_value"`
}

// Evaluation bundles the result with its alerts, mirroring the evaluate
// endpoint response.
type Evaluation struct {
	Result EvaluationResult `json:"result"`
	Alerts []Alert          `json:"alerts,omitempty"`
}

// WorkflowInstance represents a running workflow (partial).
type WorkflowInstance struct {
	ID              string  `json:"id"`
	WorkflowID      string  `json:"workflow_id"`
	EntityID        string  `json:"entity_id"`
	Status          string  `json:"status"`
	CurrentStepID   *string `json:"current_step_id,omitempty"`
	CurrentAssignee *string `json:"current_assignee,omitempty"`
	NextDueDate     *string `json:"next_due_date,omitempty"`
}

// Event represents an audit log entry.
type Event struct {
	ID         int64  `json:"id"`
	TS         string `json:"ts"`
	Type       string `json:"type"`
	ProjectID  string `json:"project_id"`
	EntityKind string `json:"entity_kind"`
	EntityID   string `json:"entity_id"`
	ActorID    string `json:"actor_id"`
}

// Prediction is a risk assessment.
type Prediction struct {
	RiskScore   float64 `json:"risk_score"`
	Severity    string  `json:"severity"`
	Confidence  float64 `json:"confidence"`
	Explanation string  `json:"explanation,omitempty"`
}

// APIError wraps non-2xx responses.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error: status=%d body=%s", e.StatusCode, e.Body)
}

// ListStandards returns standards, optionally only active ones.
func (c *Client) ListStandards(ctx context.Context, activeOnly bool) ([]Standard, error) {
	endpoint := "v0/standards"
	if activeOnly {
		endpoint += "?active=true"
	}
	var resp []Standard
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

// SubmitRecord submits or updates evidence for a criterion.
func (c *Client) SubmitRecord(ctx context.Context, projectID, standardID, criterionID, evidence, evidenceURL string) (Record, error) {
	body := map[string]any{
		"project_id":   projectID,
		"standard_id":  standardID,
		"criterion_id": criterionID,
		"evidence":     evidence,
		"evidence_url": evidenceURL,
	}
	var resp Record
	err := c.do(ctx, http.MethodPut, "v0/records", body, &resp)
	return resp, err
}

// ReviewRecord approves or rejects a submitted record.
func (c *Client) ReviewRecord(ctx context.Context, recordID, status string) (Record, error) {
	body := map[string]any{"status": status}
	var resp Record
	endpoint := fmt.Sprintf("v0/records/%s/review", url.PathEscape(recordID))
	err := c.do(ctx, http.MethodPost, endpoint, body, &resp)
	return resp, err
}

// Evaluate runs an evaluation and returns the result with derived alerts.
func (c *Client) Evaluate(ctx context.Context, projectID, standardID, notes string) (Evaluation, error) {
	body := map[string]any{
		"project_id":  projectID,
		"standard_id": standardID,
		"notes":       notes,
	}
	var resp Evaluation
	err := c.do(ctx, http.MethodPost, "v0/evaluations", body, &resp)
	return resp, err
}

// StartWorkflow starts a workflow instance for an entity.
func (c *Client) StartWorkflow(ctx context.Context, workflowID, entityID string) (WorkflowInstance, error) {
	body := map[string]any{"entity_id": entityID}
	var resp WorkflowInstance
	endpoint := fmt.Sprintf("v0/workflows/%s/instances", url.PathEscape(workflowID))
	err := c.do(ctx, http.MethodPost, endpoint, body, &resp)
	return resp, err
}

// CompleteStep completes a step and advances the instance.
func (c *Client) CompleteStep(ctx context.Context, instanceID, stepID, notes string) (WorkflowInstance, error) {
	body := map[string]any{"step_id": stepID, "notes": notes}
	var resp WorkflowInstance
	endpoint := fmt.Sprintf("v0/workflow-instances/%s/complete-step", url.PathEscape(instanceID))
	err := c.do(ctx, http.MethodPost, endpoint, body, &resp)
	return resp, err
}

// RuleTestResult is the outcome of a rule dry run.
type RuleTestResult struct {
	Matched bool           `json:"matched"`
	Result  map[string]any `json:"result,omitempty"`
	Error   string         `json:"error,omitempty"`
}

// TestRule dry-runs a rule against test data without side effects.
func (c *Client) TestRule(ctx context.Context, ruleID string, testData map[string]any) (RuleTestResult, error) {
	body := map[string]any{"test_data": testData}
	var resp RuleTestResult
	endpoint := fmt.Sprintf("v0/rules/%s/test", url.PathEscape(ruleID))
	err := c.do(ctx, http.MethodPost, endpoint, body, &resp)
	return resp, err
}

// Events returns audit events after the cursor.
func (c *Client) Events(ctx context.Context, limit int, cursor int64) ([]Event, error) {
	endpoint := "v0/events"
	params := url.Values{}
	if limit > 0 {
		params.Set("limit", fmt.Sprintf("%d", limit))
	}
	if cursor > 0 {
		params.Set("cursor", fmt.Sprintf("%d", cursor))
	}
	if len(params) > 0 {
		endpoint += "?" + params.Encode()
	}
	var resp []Event
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

// PredictRisk requests a risk prediction.
func (c *Client) PredictRisk(ctx context.Context, projectID string, probability, impact float64) (Prediction, error) {
	body := map[string]any{
		"project_id":  projectID,
		"probability": probability,
		"impact":      impact,
	}
	var resp Prediction
	err := c.do(ctx, http.MethodPost, "v0/predictions/risk", body, &resp)
	return resp, err
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any, out any) error {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
	target := c.base() + "/" + strings.TrimLeft(endpoint, "/")
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, target, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	switch {
	case c.BearerToken != "":
		req.Header.Set("Authorization", "Bearer "+c.BearerToken)
	case c.ActorID != "":
		req.Header.Set("X-Actor-Id", c.ActorID)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return &APIError{StatusCode: resp.StatusCode, Body: string(b)}
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func (c *Client) base() string {
	return strings.TrimRight(c.BaseURL, "/")
}
