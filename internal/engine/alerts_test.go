package engine_test

import (
	"testing"
	"time"

	"standline/internal/domain"
	"standline/internal/engine"
)

func alertTypes(alerts []domain.ComplianceAlert) []string {
	types := make([]string, len(alerts))
	for i, a := range alerts {
		types[i] = a.Type
	}
	return types
}

func TestGenerateAlertsSeverities(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	result := func(score float64) domain.EvaluationResult {
		return domain.EvaluationResult{ProjectID: "proj-1", StandardID: "std-1", OverallScore: score}
	}

	t.Run("non compliant below 40 is critical", func(t *testing.T) {
		alerts := engine.GenerateAlerts(engine.AlertInput{Result: result(35), Trend: "stable", Now: now})
		if len(alerts) != 1 || alerts[0].Type != "non_compliant" || alerts[0].Severity != "critical" {
			t.Fatalf("alerts = %+v", alerts)
		}
	})
	t.Run("non compliant at 40 and above is high", func(t *testing.T) {
		alerts := engine.GenerateAlerts(engine.AlertInput{Result: result(55), Trend: "stable", Now: now})
		if len(alerts) != 1 || alerts[0].Severity != "high" {
			t.Fatalf("alerts = %+v", alerts)
		}
	})
	t.Run("declining trend fires only under 70", func(t *testing.T) {
		alerts := engine.GenerateAlerts(engine.AlertInput{Result: result(65), Trend: "declining", Now: now})
		if got := alertTypes(alerts); len(got) != 1 || got[0] != "declining_trend" {
			t.Fatalf("alerts = %v", got)
		}
		if alerts[0].Severity != "medium" {
			t.Fatalf("severity = %s, want medium", alerts[0].Severity)
		}
		alerts = engine.GenerateAlerts(engine.AlertInput{Result: result(75), Trend: "declining", Now: now})
		if len(alerts) != 0 {
			t.Fatalf("expected no alerts at 75, got %+v", alerts)
		}
	})
	t.Run("missing evidence escalates past three", func(t *testing.T) {
		alerts := engine.GenerateAlerts(engine.AlertInput{Result: result(90), Trend: "stable", MissingMandatory: 3, Now: now})
		if len(alerts) != 1 || alerts[0].Type != "missing_evidence" || alerts[0].Severity != "medium" {
			t.Fatalf("alerts = %+v", alerts)
		}
		alerts = engine.GenerateAlerts(engine.AlertInput{Result: result(90), Trend: "stable", MissingMandatory: 4, Now: now})
		if alerts[0].Severity != "high" {
			t.Fatalf("severity = %s, want high", alerts[0].Severity)
		}
	})
	t.Run("overdue evaluation", func(t *testing.T) {
		in := engine.AlertInput{
			Result:          result(90),
			Trend:           "stable",
			LastEvaluatedAt: now.AddDate(0, 0, -40),
			Now:             now,
		}
		alerts := engine.GenerateAlerts(in)
		if len(alerts) != 1 || alerts[0].Type != "overdue_evaluation" || alerts[0].Severity != "low" {
			t.Fatalf("alerts = %+v", alerts)
		}
		if alerts[0].CurrentValue != 10 {
			t.Fatalf("current value = %v, want 10 days past the window", alerts[0].CurrentValue)
		}
		in.LastEvaluatedAt = now.AddDate(0, 0, -30)
		if alerts := engine.GenerateAlerts(in); len(alerts) != 0 {
			t.Fatalf("30 days exactly must not fire, got %+v", alerts)
		}
	})
}

func TestGenerateAlertsOrderIsFixed(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	alerts := engine.GenerateAlerts(engine.AlertInput{
		Result:           domain.EvaluationResult{ProjectID: "proj-1", StandardID: "std-1", OverallScore: 30},
		Trend:            "declining",
		MissingMandatory: 2,
		LastEvaluatedAt:  now.AddDate(0, 0, -45),
		Now:              now,
	})
	want := []string{"non_compliant", "declining_trend", "missing_evidence", "overdue_evaluation"}
	got := alertTypes(alerts)
	if len(got) != len(want) {
		t.Fatalf("alerts = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("alerts = %v, want %v", got, want)
		}
	}
}

func TestFanOutAlertsDeduplicatesRecipients(t *testing.T) {
	env := newTestEnv(t)
	// The owner also appears in the member list and must get each alert once.
	env.seedProject(t, "proj-1", "owner-1", "owner-1", "member-1")
	alerts := []domain.ComplianceAlert{
		{Type: "non_compliant", Severity: "critical", Message: "bad", CurrentValue: 30},
		{Type: "missing_evidence", Severity: "medium", Message: "missing", CurrentValue: 2},
	}
	result := domain.EvaluationResult{ProjectID: "proj-1", StandardID: "std-1", OverallScore: 30}
	if err := env.Engine.FanOutAlerts(env.Ctx, result, alerts); err != nil {
		t.Fatalf("fan out: %v", err)
	}
	for _, recipient := range []string{"owner-1", "member-1"} {
		got, err := env.Engine.Repo.ListNotifications(env.Ctx, recipient, true, 0)
		if err != nil {
			t.Fatalf("list notifications: %v", err)
		}
		if len(got) != 2 {
			t.Fatalf("%s notifications = %d, want 2", recipient, len(got))
		}
	}
}

func TestAlertsForUsesStoredHistory(t *testing.T) {
	env := newTestEnv(t)
	env.seedProject(t, "proj-1", "owner-1")
	env.seedStandard(t, "std-1", 1.0)
	env.seedEvaluations(t, "proj-1", "std-1", 80, 65)

	result := domain.EvaluationResult{ProjectID: "proj-1", StandardID: "std-1", OverallScore: 65}
	alerts, err := env.Engine.AlertsFor(env.Ctx, result)
	if err != nil {
		t.Fatalf("alerts for: %v", err)
	}
	got := alertTypes(alerts)
	if len(got) != 1 || got[0] != "declining_trend" {
		t.Fatalf("alerts = %v, want declining_trend only", got)
	}
}

func TestAlertsForCountsOnlyAbsentRecords(t *testing.T) {
	env := newTestEnv(t)
	env.seedProject(t, "proj-1", "owner-1")
	env.seedStandard(t, "std-1", 1.0)
	env.seedCriterion(t, "c1", "std-1", "text", "binary", 10, true, 1)
	env.seedCriterion(t, "c2", "std-1", "text", "binary", 10, true, 2)
	// c1 has a record with no evidence attached, c2 has no record at all.
	// Only c2 lacks a compliance record, so the alert counts one.
	env.seedRecord(t, domain.ComplianceRecord{
		ProjectID: "proj-1", StandardID: "std-1", CriterionID: "c1", Status: "submitted",
	})

	result, err := env.Engine.Evaluate(env.Ctx, "proj-1", "std-1", "tester", "")
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	for _, cr := range result.Criteria {
		if cr.EvidenceStatus != "missing" {
			t.Fatalf("criterion %s evidence status = %s, want missing", cr.CriterionID, cr.EvidenceStatus)
		}
	}

	alerts, err := env.Engine.AlertsFor(env.Ctx, result)
	if err != nil {
		t.Fatalf("alerts for: %v", err)
	}
	var missing *domain.ComplianceAlert
	for i := range alerts {
		if alerts[i].Type == "missing_evidence" {
			missing = &alerts[i]
		}
	}
	if missing == nil {
		t.Fatalf("alerts = %v, want a missing_evidence alert", alertTypes(alerts))
	}
	if missing.CurrentValue != 1 || missing.Severity != "medium" {
		t.Fatalf("missing_evidence = %+v, want one absent record at medium", missing)
	}
}
