package engine_test

import (
	"testing"

	"standline/internal/engine"
)

func TestTrend(t *testing.T) {
	cases := []struct {
		name   string
		scores []float64
		want   string
	}{
		{"empty", nil, "stable"},
		{"single score", []float64{42}, "stable"},
		{"clear rise", []float64{60, 70}, "improving"},
		{"clear fall", []float64{80, 70}, "declining"},
		{"within tolerance", []float64{75, 76}, "stable"},
		{"exactly five up", []float64{70, 75}, "stable"},
		{"just over five up", []float64{70, 75.01}, "improving"},
		{"mid dip ignored", []float64{60, 20, 70}, "improving"},
		{"reversal symmetry", []float64{70, 60}, "declining"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := engine.Trend(tc.scores); got != tc.want {
				t.Fatalf("Trend(%v) = %s, want %s", tc.scores, got, tc.want)
			}
		})
	}
}

func TestComplianceLevel(t *testing.T) {
	cases := []struct {
		avg  float64
		want string
	}{
		{95, "excellent"},
		{90, "excellent"},
		{89.99, "good"},
		{75, "good"},
		{74.99, "fair"},
		{60, "fair"},
		{59.99, "poor"},
		{0, "poor"},
	}
	for _, tc := range cases {
		if got := engine.ComplianceLevel(tc.avg); got != tc.want {
			t.Errorf("ComplianceLevel(%v) = %s, want %s", tc.avg, got, tc.want)
		}
	}
}

func TestEvaluationHistoryTrendWindow(t *testing.T) {
	env := newTestEnv(t)
	env.seedProject(t, "proj-1", "owner-1")
	env.seedStandard(t, "std-1", 1.0)
	// Seven evaluations: the trend window only sees the last five, whose
	// oldest (40) to newest (80) swing is improving even though the full
	// history starts at 90.
	env.seedEvaluations(t, "proj-1", "std-1", 90, 85, 40, 50, 60, 70, 80)

	h, err := env.Engine.EvaluationHistory(env.Ctx, "proj-1", "std-1")
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(h.Evaluations) != 7 {
		t.Fatalf("evaluations = %d, want 7", len(h.Evaluations))
	}
	if h.Trend != "improving" {
		t.Fatalf("trend = %s, want improving", h.Trend)
	}
	// Average over all seven: 475/7 = 67.86, which is fair.
	if h.Average != 67.86 || h.Level != "fair" {
		t.Fatalf("average = %v level = %s", h.Average, h.Level)
	}
	// History must come back oldest first.
	if h.Evaluations[0].OverallScore != 90 || h.Evaluations[6].OverallScore != 80 {
		t.Fatalf("history order wrong: first %v last %v",
			h.Evaluations[0].OverallScore, h.Evaluations[6].OverallScore)
	}
}

func TestProjectStatistics(t *testing.T) {
	env := newTestEnv(t)
	env.seedProject(t, "proj-1", "owner-1")
	env.seedStandard(t, "std-1", 1.0)
	env.seedStandard(t, "std-2", 1.0)
	env.seedEvaluations(t, "proj-1", "std-1", 80, 90)
	env.seedEvaluations(t, "proj-1", "std-2", 70)

	stats, err := env.Engine.ProjectStatistics(env.Ctx, "proj-1")
	if err != nil {
		t.Fatalf("statistics: %v", err)
	}
	if stats.Count != 3 || stats.BestScore != 90 || stats.WorstScore != 70 {
		t.Fatalf("stats = %+v", stats)
	}
	if stats.AverageScore != 80 || stats.Level != "good" {
		t.Fatalf("stats = %+v", stats)
	}
}

func TestProjectStatisticsEmpty(t *testing.T) {
	env := newTestEnv(t)
	env.seedProject(t, "proj-1", "owner-1")
	stats, err := env.Engine.ProjectStatistics(env.Ctx, "proj-1")
	if err != nil {
		t.Fatalf("statistics: %v", err)
	}
	if stats.Count != 0 || stats.Level != "poor" {
		t.Fatalf("stats = %+v", stats)
	}
}
