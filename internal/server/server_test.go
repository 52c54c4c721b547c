package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"standline/internal/config"
	"standline/internal/db"
	"standline/internal/domain"
	"standline/internal/engine"
	"standline/internal/migrate"
)

const testJWTSecret = "test-secret"

type testServer struct {
	URL    string
	Engine engine.Engine
	client *http.Client
	close  func()
}

func (s *testServer) Client() *http.Client { return s.client }
func (s *testServer) Close()               { s.close() }

func newTestServer(t *testing.T) (*testServer, func()) {
	t.Helper()
	conn, err := db.Open(db.Config{Workspace: t.TempDir()})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	e, err := engine.New(conn, config.Default(), nil)
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	handler, err := New(Config{
		Engine:   e,
		BasePath: "/v0",
		Auth: AuthConfig{
			JWTSecret:              testJWTSecret,
			AllowLegacyActorHeader: true,
		},
	})
	if err != nil {
		t.Fatalf("build handler: %v", err)
	}
	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	srv := &http.Server{Handler: handler}
	go srv.Serve(ln)
	testSrv := &testServer{
		URL:    "http://" + ln.Addr().String(),
		Engine: e,
		client: &http.Client{},
		close: func() {
			srv.Shutdown(context.Background())
			ln.Close()
			conn.Close()
		},
	}
	return testSrv, func() { testSrv.Close() }
}

// doJSON sends a request as actor "tester" via the legacy header unless the
// caller supplies its own auth headers.
func doJSON(t *testing.T, client *http.Client, method, url string, body any, headers map[string]string) (*http.Response, []byte) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Actor-Id", "tester")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	res, err := client.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer res.Body.Close()
	data, err := io.ReadAll(res.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return res, data
}

func seedStandardWithCriterion(t *testing.T, srv *testServer) {
	t.Helper()
	client := srv.Client()
	res, data := doJSON(t, client, http.MethodPost, srv.URL+"/v0/projects", map[string]any{
		"id":         "proj-1",
		"name":       "Digital Services",
		"owner_id":   "owner-1",
		"member_ids": []string{"member-1"},
	}, nil)
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create project: %d %s", res.StatusCode, string(data))
	}
	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v0/standards", map[string]any{
		"id":       "std-1",
		"name":     "Security Baseline",
		"category": "project",
		"level":    "foundational",
		"weight":   1.0,
	}, nil)
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create standard: %d %s", res.StatusCode, string(data))
	}
	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v0/standards/std-1/criteria", map[string]any{
		"id":             "crit-1",
		"name":           "Security policy on file",
		"evidence_type":  "document",
		"scoring_method": "binary",
		"max_score":      10,
		"is_mandatory":   true,
	}, nil)
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create criterion: %d %s", res.StatusCode, string(data))
	}
}

func TestComplianceFlowOverHTTP(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()
	seedStandardWithCriterion(t, srv)

	res, data := doJSON(t, client, http.MethodPut, srv.URL+"/v0/records", map[string]any{
		"project_id":   "proj-1",
		"standard_id":  "std-1",
		"criterion_id": "crit-1",
		"evidence_url": "https://docs.example.gov/policy.pdf",
	}, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("submit record: %d %s", res.StatusCode, string(data))
	}
	var rec domain.ComplianceRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		t.Fatalf("unmarshal record: %v", err)
	}
	if rec.Status != "submitted" {
		t.Fatalf("expected submitted, got %s", rec.Status)
	}

	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v0/records/"+rec.ID+"/review", map[string]any{
		"status": "approved",
	}, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("review record: %d %s", res.StatusCode, string(data))
	}

	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v0/evaluations", map[string]any{
		"project_id":  "proj-1",
		"standard_id": "std-1",
	}, nil)
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("evaluate: %d %s", res.StatusCode, string(data))
	}
	var out EvaluationResponse
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("unmarshal evaluation: %v", err)
	}
	if out.Result.OverallScore != 100 {
		t.Fatalf("expected overall 100, got %v", out.Result.OverallScore)
	}
	if out.Result.Status != "complete" {
		t.Fatalf("expected status complete, got %s", out.Result.Status)
	}
	if len(out.Alerts) != 0 {
		t.Fatalf("expected no alerts, got %d", len(out.Alerts))
	}

	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v0/projects/proj-1/standards/std-1/history", nil, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("history: %d %s", res.StatusCode, string(data))
	}
	var history engine.History
	if err := json.Unmarshal(data, &history); err != nil {
		t.Fatalf("unmarshal history: %v", err)
	}
	if len(history.Evaluations) != 1 || history.Trend != "stable" {
		t.Fatalf("unexpected history: %+v", history)
	}
}

func TestEvaluationAlertFanOut(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()
	seedStandardWithCriterion(t, srv)

	// No evidence at all: mandatory criterion missing, overall 0.
	res, data := doJSON(t, client, http.MethodPost, srv.URL+"/v0/evaluations", map[string]any{
		"project_id":  "proj-1",
		"standard_id": "std-1",
	}, nil)
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("evaluate: %d %s", res.StatusCode, string(data))
	}
	var out EvaluationResponse
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("unmarshal evaluation: %v", err)
	}
	if out.Result.Status != "failed" {
		t.Fatalf("expected failed, got %s", out.Result.Status)
	}
	foundCritical := false
	for _, a := range out.Alerts {
		if a.Type == "non_compliant" && a.Severity == "critical" {
			foundCritical = true
		}
	}
	if !foundCritical {
		t.Fatalf("expected critical non_compliant alert, got %+v", out.Alerts)
	}

	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v0/notifications", nil, map[string]string{"X-Actor-Id": "owner-1"})
	if res.StatusCode != http.StatusOK {
		t.Fatalf("notifications: %d %s", res.StatusCode, string(data))
	}
	var notifications []domain.Notification
	if err := json.Unmarshal(data, &notifications); err != nil {
		t.Fatalf("unmarshal notifications: %v", err)
	}
	if len(notifications) == 0 {
		t.Fatalf("expected alert notifications for the project owner")
	}
}

func TestWorkflowLifecycleOverHTTP(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()

	res, data := doJSON(t, client, http.MethodPost, srv.URL+"/v0/workflows", map[string]any{
		"id":   "wf-1",
		"name": "Evidence review",
		"steps": []map[string]any{
			{
				"id":                   "wf-1-a",
				"name":                 "Collect evidence",
				"type":                 "evidence_request",
				"assignee":             "analyst",
				"due_date_offset_days": 7,
				"next_step_id":         "wf-1-b",
			},
			{
				"id":       "wf-1-b",
				"name":     "Approve",
				"type":     "approval",
				"assignee": "manager",
			},
		},
	}, nil)
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create workflow: %d %s", res.StatusCode, string(data))
	}
	var wf domain.Workflow
	if err := json.Unmarshal(data, &wf); err != nil {
		t.Fatalf("unmarshal workflow: %v", err)
	}
	if len(wf.Steps) != 2 {
		t.Fatalf("expected 2 steps, got %d", len(wf.Steps))
	}

	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v0/workflows/wf-1/instances", map[string]any{
		"entity_id": "rec-9",
	}, nil)
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("start instance: %d %s", res.StatusCode, string(data))
	}
	var instance domain.WorkflowInstance
	if err := json.Unmarshal(data, &instance); err != nil {
		t.Fatalf("unmarshal instance: %v", err)
	}
	if instance.CurrentStepID == nil || *instance.CurrentStepID != "wf-1-a" {
		t.Fatalf("expected current step wf-1-a, got %+v", instance.CurrentStepID)
	}

	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v0/workflows/wf-1/instances", map[string]any{
		"entity_id": "rec-9",
	}, nil)
	if res.StatusCode != http.StatusConflict {
		t.Fatalf("expected conflict for duplicate live instance, got %d %s", res.StatusCode, string(data))
	}

	for _, stepID := range []string{"wf-1-a", "wf-1-b"} {
		res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v0/workflow-instances/"+instance.ID+"/complete-step", map[string]any{
			"step_id": stepID,
		}, nil)
		if res.StatusCode != http.StatusOK {
			t.Fatalf("complete %s: %d %s", stepID, res.StatusCode, string(data))
		}
	}
	var done domain.WorkflowInstance
	if err := json.Unmarshal(data, &done); err != nil {
		t.Fatalf("unmarshal instance: %v", err)
	}
	if done.Status != "completed" {
		t.Fatalf("expected completed, got %s", done.Status)
	}

	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v0/workflow-instances/"+instance.ID, nil, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("get instance: %d %s", res.StatusCode, string(data))
	}
	var detail InstanceDetailResponse
	if err := json.Unmarshal(data, &detail); err != nil {
		t.Fatalf("unmarshal detail: %v", err)
	}
	if len(detail.Steps) != 2 {
		t.Fatalf("expected 2 step instances, got %d", len(detail.Steps))
	}
}

func TestRuleEndpoints(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()

	res, data := doJSON(t, client, http.MethodPost, srv.URL+"/v0/rules", map[string]any{
		"name":           "flag low scores",
		"target_entity":  "compliance_record",
		"condition_json": `{"field":"score","operator":"less_than","value":50}`,
		"action_json":    `{"type":"set_status","parameters":{"status":"rejected"}}`,
	}, nil)
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create rule: %d %s", res.StatusCode, string(data))
	}
	var created RuleResponse
	if err := json.Unmarshal(data, &created); err != nil {
		t.Fatalf("unmarshal rule: %v", err)
	}
	if created.Rule.Version != 1 {
		t.Fatalf("expected version 1, got %d", created.Rule.Version)
	}

	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v0/rules/"+created.Rule.ID+"/test", map[string]any{
		"test_data": map[string]any{"score": 30},
	}, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("test rule: %d %s", res.StatusCode, string(data))
	}
	var tested engine.RuleTestResult
	if err := json.Unmarshal(data, &tested); err != nil {
		t.Fatalf("unmarshal test result: %v", err)
	}
	if !tested.Matched {
		t.Fatalf("expected rule to match score 30")
	}

	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v0/rules", map[string]any{
		"name":           "broken",
		"target_entity":  "compliance_record",
		"condition_json": `not json`,
		"action_json":    `{"type":"set_status"}`,
	}, nil)
	if res.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for invalid condition, got %d %s", res.StatusCode, string(data))
	}
}

func TestAuthRequired(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()

	req, err := http.NewRequest(http.MethodGet, srv.URL+"/v0/standards", nil)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	res, err := client.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	res.Body.Close()
	if res.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 without credentials, got %d", res.StatusCode)
	}

	req, err = http.NewRequest(http.MethodGet, srv.URL+"/v0/health", nil)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	res, err = client.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	res.Body.Close()
	if res.StatusCode != http.StatusOK {
		t.Fatalf("expected health exempt from auth, got %d", res.StatusCode)
	}
}

func TestJWTAuth(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwtClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "jwt-user",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
		Roles: []string{"admin"},
	})
	signed, err := token.SignedString([]byte(testJWTSecret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}

	req, err := http.NewRequest(http.MethodGet, srv.URL+"/v0/standards", nil)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Authorization", "Bearer "+signed)
	res, err := client.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	res.Body.Close()
	if res.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 with valid token, got %d", res.StatusCode)
	}

	req, err = http.NewRequest(http.MethodGet, srv.URL+"/v0/standards", nil)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Authorization", "Bearer not.a.token")
	res, err = client.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	res.Body.Close()
	if res.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 with bad token, got %d", res.StatusCode)
	}
}

func TestErrorEnvelope(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()

	res, data := doJSON(t, client, http.MethodGet, srv.URL+"/v0/standards/ghost", nil, nil)
	if res.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d %s", res.StatusCode, string(data))
	}
	var envelope struct {
		Error apiErrorBody `json:"error"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		t.Fatalf("unmarshal error envelope: %v", err)
	}
	if envelope.Error.Code != "not_found" {
		t.Fatalf("expected not_found code, got %q", envelope.Error.Code)
	}
}
