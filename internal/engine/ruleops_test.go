package engine_test

import (
	"errors"
	"testing"

	"standline/internal/domain"
)

func ruleFixture() domain.Rule {
	return domain.Rule{
		Name:          "flag low scores",
		TargetEntity:  "compliance_record",
		ConditionJSON: `{"field":"score","operator":"less_than","value":50}`,
		ActionJSON:    `{"type":"set_status","parameters":{"status":"rejected"}}`,
		IsActive:      true,
	}
}

func TestCreateRule(t *testing.T) {
	env := newTestEnv(t)
	created, warnings, err := env.Engine.CreateRule(env.Ctx, ruleFixture(), "admin")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if len(warnings) != 0 {
		t.Fatalf("warnings = %v", warnings)
	}
	if created.Version != 1 || created.CreatedBy != "admin" || created.ID == "" {
		t.Fatalf("created = %+v", created)
	}

	bad := ruleFixture()
	bad.Name = ""
	if _, _, err := env.Engine.CreateRule(env.Ctx, bad, "admin"); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("missing name: err = %v, want ErrValidation", err)
	}
	bad = ruleFixture()
	bad.ConditionJSON = `{not json`
	if _, _, err := env.Engine.CreateRule(env.Ctx, bad, "admin"); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("bad condition json: err = %v, want ErrValidation", err)
	}
}

func TestCreateRuleWarnsOnDeepNesting(t *testing.T) {
	env := newTestEnv(t)
	rl := ruleFixture()
	rl.ConditionJSON = `{"logical_operator":"and","conditions":[
		{"logical_operator":"or","conditions":[
			{"logical_operator":"and","conditions":[
				{"logical_operator":"or","conditions":[
					{"logical_operator":"and","conditions":[
						{"field":"score","operator":"less_than","value":50}
					]}
				]}
			]}
		]}
	]}`
	_, warnings, err := env.Engine.CreateRule(env.Ctx, rl, "admin")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if len(warnings) == 0 {
		t.Fatalf("expected a nesting depth warning")
	}
}

func TestUpdateRuleBumpsVersion(t *testing.T) {
	env := newTestEnv(t)
	created, _, err := env.Engine.CreateRule(env.Ctx, ruleFixture(), "admin")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	next := ruleFixture()
	next.ConditionJSON = `{"field":"score","operator":"less_than","value":40}`
	updated, _, err := env.Engine.UpdateRule(env.Ctx, created.ID, next, "admin")
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Version != 2 {
		t.Fatalf("version = %d, want 2", updated.Version)
	}
	if updated.ConditionJSON != next.ConditionJSON {
		t.Fatalf("condition = %s", updated.ConditionJSON)
	}
	if _, _, err := env.Engine.UpdateRule(env.Ctx, "ghost", next, "admin"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("unknown rule: err = %v, want ErrNotFound", err)
	}
}

func TestTestRuleDryRun(t *testing.T) {
	env := newTestEnv(t)
	created, _, err := env.Engine.CreateRule(env.Ctx, ruleFixture(), "admin")
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	out, err := env.Engine.TestRule(env.Ctx, created.ID, map[string]any{"score": 30.0})
	if err != nil {
		t.Fatalf("test rule: %v", err)
	}
	if !out.Matched || out.Result == nil || out.Result.Status != "rejected" {
		t.Fatalf("out = %+v", out)
	}

	out, err = env.Engine.TestRule(env.Ctx, created.ID, map[string]any{"score": 80.0})
	if err != nil {
		t.Fatalf("test rule: %v", err)
	}
	if out.Matched || out.Result != nil {
		t.Fatalf("out = %+v, want no match", out)
	}
}

func TestRunRulesAppliesResults(t *testing.T) {
	env := newTestEnv(t)
	env.seedProject(t, "proj-1", "owner-1")
	env.seedStandard(t, "std-1", 1.0)
	env.seedCriterion(t, "c1", "std-1", "text", "binary", 10, false, 1)
	rec := env.seedRecord(t, domain.ComplianceRecord{
		ProjectID: "proj-1", StandardID: "std-1", CriterionID: "c1",
		Status: "submitted", Score: 30, Evidence: "evidence under review",
	})
	if _, _, err := env.Engine.CreateRule(env.Ctx, ruleFixture(), "admin"); err != nil {
		t.Fatalf("create rule: %v", err)
	}
	// An inactive rule must not run.
	dormant := ruleFixture()
	dormant.Name = "dormant"
	dormant.ActionJSON = `{"type":"set_status","parameters":{"status":"approved"}}`
	dormant.IsActive = false
	if _, _, err := env.Engine.CreateRule(env.Ctx, dormant, "admin"); err != nil {
		t.Fatalf("create dormant rule: %v", err)
	}

	record := map[string]any{"id": rec.ID, "score": rec.Score}
	applied, err := env.Engine.RunRules(env.Ctx, "compliance_record", record, "admin")
	if err != nil {
		t.Fatalf("run rules: %v", err)
	}
	if len(applied) != 1 || applied[0].Type != "set_status" {
		t.Fatalf("applied = %+v", applied)
	}
	got, err := env.Engine.Repo.GetRecordByTriple(env.Ctx, "proj-1", "std-1", "c1")
	if err != nil {
		t.Fatalf("get record: %v", err)
	}
	if got.Status != "rejected" {
		t.Fatalf("record status = %s, want rejected", got.Status)
	}
}
