package engine_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"standline/internal/config"
	"standline/internal/db"
	"standline/internal/domain"
	"standline/internal/engine"
	"standline/internal/migrate"
)

type testEnv struct {
	Engine engine.Engine
	Ctx    context.Context
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	dir := t.TempDir()
	conn, err := db.Open(db.Config{Workspace: dir})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	eng, err := engine.New(conn, config.Default(), nil)
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	eng.Now = func() time.Time { return time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC) }
	eng.Events.Now = eng.Now
	return &testEnv{Engine: eng, Ctx: context.Background()}
}

func (env *testEnv) seedProject(t *testing.T, id, owner string, members ...string) {
	t.Helper()
	err := env.Engine.Repo.InsertProject(env.Ctx, domain.Project{
		ID: id, Name: id, OwnerID: owner, Status: "active",
		MemberIDs: members,
		CreatedAt: "2024-01-01T00:00:00Z",
	})
	if err != nil {
		t.Fatalf("seed project: %v", err)
	}
}

func (env *testEnv) seedStandard(t *testing.T, id string, weight float64) {
	t.Helper()
	err := env.Engine.Repo.InsertStandard(env.Ctx, domain.Standard{
		ID: id, Name: id, Category: "project", Level: "foundational",
		Weight: weight, Version: 1, IsActive: true,
		CreatedAt: "2024-01-01T00:00:00Z", UpdatedAt: "2024-01-01T00:00:00Z",
	})
	if err != nil {
		t.Fatalf("seed standard: %v", err)
	}
}

func (env *testEnv) seedCriterion(t *testing.T, id, standardID, evidenceType, method string, maxScore float64, mandatory bool, order int) {
	t.Helper()
	err := env.Engine.Repo.InsertCriterion(env.Ctx, domain.Criterion{
		ID: id, StandardID: standardID, Name: id,
		EvidenceType: evidenceType, ScoringMethod: method,
		MaxScore: maxScore, IsMandatory: mandatory, Order: order,
		CreatedAt: "2024-01-01T00:00:00Z",
	})
	if err != nil {
		t.Fatalf("seed criterion: %v", err)
	}
}

func (env *testEnv) seedRecord(t *testing.T, rec domain.ComplianceRecord) domain.ComplianceRecord {
	t.Helper()
	if rec.ID == "" {
		rec.ID = "rec-" + rec.CriterionID
	}
	if rec.SubmittedBy == "" {
		rec.SubmittedBy = "submitter"
	}
	if rec.CreatedAt == "" {
		rec.CreatedAt = "2024-01-02T00:00:00Z"
		rec.UpdatedAt = rec.CreatedAt
	}
	out, err := env.Engine.Repo.UpsertRecord(env.Ctx, rec)
	if err != nil {
		t.Fatalf("seed record: %v", err)
	}
	return out
}

// seedEvaluations inserts a history of overall scores one day apart,
// oldest first, ending the day before the engine's fixed clock.
func (env *testEnv) seedEvaluations(t *testing.T, projectID, standardID string, scores ...float64) {
	t.Helper()
	base := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC).AddDate(0, 0, -len(scores))
	tx, err := env.Engine.DB.BeginTx(env.Ctx, nil)
	if err != nil {
		t.Fatalf("begin tx: %v", err)
	}
	defer tx.Rollback()
	for i, score := range scores {
		err := env.Engine.Repo.InsertEvaluationTx(env.Ctx, tx, domain.Evaluation{
			ID:           fmt.Sprintf("eval-%s-%s-%d", projectID, standardID, i),
			ProjectID:    projectID,
			StandardID:   standardID,
			OverallScore: score,
			EvaluatorID:  "tester",
			EvaluatedAt:  base.AddDate(0, 0, i).Format(time.RFC3339),
		})
		if err != nil {
			t.Fatalf("seed evaluation: %v", err)
		}
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}
}

func strPtr(s string) *string { return &s }

// seedWorkflow creates a two step review chain: step A assigned to u1 with
// an escalation path, then step B assigned to u2 ending the chain.
func (env *testEnv) seedWorkflow(t *testing.T, id string, active bool) {
	t.Helper()
	err := env.Engine.Repo.InsertWorkflow(env.Ctx, domain.Workflow{
		ID: id, Name: id, TriggerType: "manual", IsActive: active,
		CreatedAt: "2024-01-01T00:00:00Z",
		Steps: []domain.WorkflowStep{
			{
				ID: id + "-a", WorkflowID: id, Name: "collect evidence",
				Type: "evidence_request", Assignee: "u1",
				DueDateOffsetDays: 7, EscalationAfterDays: 3, EscalationTo: "manager",
				NextStepID: strPtr(id + "-b"),
			},
			{
				ID: id + "-b", WorkflowID: id, Name: "approve",
				Type: "approval", Assignee: "u2",
				DueDateOffsetDays: 3,
			},
		},
	})
	if err != nil {
		t.Fatalf("seed workflow: %v", err)
	}
}
