package engine_test

import (
	"errors"
	"testing"

	"standline/internal/domain"
	"standline/internal/engine"
)

func TestEvaluateWeightedScore(t *testing.T) {
	env := newTestEnv(t)
	env.seedProject(t, "proj-1", "owner-1")
	env.seedStandard(t, "std-1", 0.2)
	env.seedCriterion(t, "c1", "std-1", "document", "binary", 10, true, 1)
	env.seedCriterion(t, "c2", "std-1", "document", "binary", 10, true, 2)
	env.seedRecord(t, domain.ComplianceRecord{
		ProjectID: "proj-1", StandardID: "std-1", CriterionID: "c1",
		Status: "approved", EvidenceURL: "https://docs.example.com/plan.pdf",
	})

	result, err := env.Engine.Evaluate(env.Ctx, "proj-1", "std-1", "tester", "")
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	// 10 of 20 points raw, scaled by the 0.2 standard weight.
	if result.OverallScore != 10.0 {
		t.Fatalf("overall score = %v, want 10.0", result.OverallScore)
	}
	if result.Status != "failed" {
		t.Fatalf("status = %s, want failed (mandatory criterion unmet)", result.Status)
	}
	if len(result.Criteria) != 2 {
		t.Fatalf("criteria count = %d, want 2", len(result.Criteria))
	}
	byID := map[string]domain.CriterionResult{}
	for _, cr := range result.Criteria {
		byID[cr.CriterionID] = cr
	}
	if got := byID["c1"]; got.Score != 10 || got.Status != "met" || got.EvidenceStatus != "provided" {
		t.Fatalf("c1 = %+v", got)
	}
	if got := byID["c2"]; got.Score != 0 || got.Status != "not_met" || got.EvidenceStatus != "missing" {
		t.Fatalf("c2 = %+v", got)
	}

	// The evaluation must be persisted with its breakdown.
	latest, err := env.Engine.Repo.LatestEvaluation(env.Ctx, "proj-1", "std-1")
	if err != nil {
		t.Fatalf("latest evaluation: %v", err)
	}
	if latest.OverallScore != 10.0 || latest.BreakdownJSON == nil {
		t.Fatalf("persisted evaluation = %+v", latest)
	}
}

func TestComplianceStatusThresholds(t *testing.T) {
	cases := []struct {
		score float64
		want  string
	}{
		{80, "compliant"},
		{79.99, "partial"},
		{60, "partial"},
		{59.99, "non_compliant"},
		{0, "non_compliant"},
		{100, "compliant"},
	}
	for _, tc := range cases {
		if got := engine.ComplianceStatus(tc.score); got != tc.want {
			t.Errorf("ComplianceStatus(%v) = %s, want %s", tc.score, got, tc.want)
		}
	}
}

func TestSubmittedScoreFractions(t *testing.T) {
	cases := []struct {
		method      string
		wantScore   float64
		wantOverall float64
		wantStatus  string
	}{
		{"binary", 0, 0, "not_met"},
		{"partial", 5, 50, "partial"},
		{"scale", 7, 70, "partial"},
	}
	for _, tc := range cases {
		t.Run(tc.method, func(t *testing.T) {
			env := newTestEnv(t)
			env.seedProject(t, "proj-1", "owner-1")
			env.seedStandard(t, "std-1", 1.0)
			env.seedCriterion(t, "c1", "std-1", "text", tc.method, 10, false, 1)
			env.seedRecord(t, domain.ComplianceRecord{
				ProjectID: "proj-1", StandardID: "std-1", CriterionID: "c1",
				Status: "submitted", Evidence: "detailed written evidence",
			})
			result, err := env.Engine.Evaluate(env.Ctx, "proj-1", "std-1", "tester", "")
			if err != nil {
				t.Fatalf("evaluate: %v", err)
			}
			cr := result.Criteria[0]
			if cr.Score != tc.wantScore || cr.Status != tc.wantStatus {
				t.Fatalf("criterion = %+v, want score %v status %s", cr, tc.wantScore, tc.wantStatus)
			}
			if result.OverallScore != tc.wantOverall {
				t.Fatalf("overall = %v, want %v", result.OverallScore, tc.wantOverall)
			}
		})
	}
}

func TestApprovalOverridesEvidenceShape(t *testing.T) {
	env := newTestEnv(t)
	env.seedProject(t, "proj-1", "owner-1")
	env.seedStandard(t, "std-1", 1.0)
	env.seedCriterion(t, "c1", "std-1", "link", "binary", 10, false, 1)
	// Evidence would fail link validation, but approval wins.
	env.seedRecord(t, domain.ComplianceRecord{
		ProjectID: "proj-1", StandardID: "std-1", CriterionID: "c1",
		Status: "approved", Evidence: "see attachment",
	})
	result, err := env.Engine.Evaluate(env.Ctx, "proj-1", "std-1", "tester", "")
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	cr := result.Criteria[0]
	if cr.Score != 10 || cr.EvidenceStatus != "provided" || cr.Status != "met" {
		t.Fatalf("criterion = %+v", cr)
	}
	if result.Status != "complete" {
		t.Fatalf("status = %s, want complete", result.Status)
	}
}

func TestEvidenceShapeValidation(t *testing.T) {
	cases := []struct {
		name         string
		evidenceType string
		record       domain.ComplianceRecord
		want         string
	}{
		{"link without http is invalid", "link", domain.ComplianceRecord{Evidence: "ftp://host/file"}, "invalid"},
		{"link with http is provided", "link", domain.ComplianceRecord{EvidenceURL: "https://tracker.example.com/item/9"}, "provided"},
		{"short text is invalid", "text", domain.ComplianceRecord{Evidence: "done"}, "invalid"},
		{"long text is provided", "text", domain.ComplianceRecord{Evidence: "risk register reviewed on 2024-05-30"}, "provided"},
		{"document without url is invalid", "document", domain.ComplianceRecord{Evidence: "uploaded separately"}, "invalid"},
		{"no evidence at all is missing", "document", domain.ComplianceRecord{}, "missing"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			env := newTestEnv(t)
			env.seedProject(t, "proj-1", "owner-1")
			env.seedStandard(t, "std-1", 1.0)
			env.seedCriterion(t, "c1", "std-1", tc.evidenceType, "binary", 10, false, 1)
			rec := tc.record
			rec.ProjectID, rec.StandardID, rec.CriterionID = "proj-1", "std-1", "c1"
			rec.Status = "submitted"
			env.seedRecord(t, rec)
			result, err := env.Engine.Evaluate(env.Ctx, "proj-1", "std-1", "tester", "")
			if err != nil {
				t.Fatalf("evaluate: %v", err)
			}
			if got := result.Criteria[0].EvidenceStatus; got != tc.want {
				t.Fatalf("evidence status = %s, want %s", got, tc.want)
			}
		})
	}
}

func TestEvaluateFailures(t *testing.T) {
	env := newTestEnv(t)
	env.seedProject(t, "proj-1", "owner-1")
	env.seedStandard(t, "std-1", 1.0)

	if _, err := env.Engine.Evaluate(env.Ctx, "proj-1", "std-1", "", ""); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("missing evaluator: err = %v, want ErrUnauthorized", err)
	}
	if _, err := env.Engine.Evaluate(env.Ctx, "proj-1", "std-1", "tester", ""); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("no criteria: err = %v, want ErrNotFound", err)
	}
	if _, err := env.Engine.Evaluate(env.Ctx, "ghost", "std-1", "tester", ""); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("unknown project: err = %v, want ErrNotFound", err)
	}
}

func TestBatchEvaluateSkipsFailures(t *testing.T) {
	env := newTestEnv(t)
	env.seedProject(t, "proj-1", "owner-1")
	env.seedProject(t, "proj-2", "owner-2")
	env.seedStandard(t, "std-1", 1.0)
	env.seedCriterion(t, "c1", "std-1", "text", "binary", 10, false, 1)

	results, err := env.Engine.BatchEvaluate(env.Ctx, []string{"proj-1", "ghost", "proj-2"}, "std-1", "tester")
	if err != nil {
		t.Fatalf("batch evaluate: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("results = %d, want 2 (failing project skipped)", len(results))
	}
}
