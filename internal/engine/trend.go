package engine

import (
	"context"

	"standline/internal/domain"
)

// trendWindow is how many recent evaluations feed the trend computation.
const trendWindow = 5

// Trend classifies a score sequence sorted ascending by time. The newest
// score is compared against the oldest: a swing of more than 5 points either
// way is improving/declining, anything else is stable. Fewer than two scores
// is always stable.
func Trend(scores []float64) string {
	if len(scores) < 2 {
		return "stable"
	}
	oldest, newest := scores[0], scores[len(scores)-1]
	switch {
	case newest > oldest+5:
		return "improving"
	case newest < oldest-5:
		return "declining"
	default:
		return "stable"
	}
}

// ComplianceLevel buckets an average score.
func ComplianceLevel(avg float64) string {
	switch {
	case avg >= 90:
		return "excellent"
	case avg >= 75:
		return "good"
	case avg >= 60:
		return "fair"
	default:
		return "poor"
	}
}

// History is the evaluation history for one (project, standard) pair plus
// the derived trend and level.
type History struct {
	Evaluations []domain.Evaluation `json:"evaluations"`
	Trend       string              `json:"trend"`
	Level       string              `json:"level"`
	Average     float64             `json:"average"`
}

// EvaluationHistory loads history ascending by time and derives trend (over
// the most recent evaluations) and level (over the full average).
func (e Engine) EvaluationHistory(ctx context.Context, projectID, standardID string) (History, error) {
	evals, err := e.Repo.ListEvaluations(ctx, projectID, standardID, 0)
	if err != nil {
		return History{}, err
	}
	h := History{Evaluations: evals}
	recent := evals
	if len(recent) > trendWindow {
		recent = recent[len(recent)-trendWindow:]
	}
	h.Trend = Trend(scoresOf(recent))
	if len(evals) > 0 {
		h.Average = round2(average(scoresOf(evals)))
	}
	h.Level = ComplianceLevel(h.Average)
	return h, nil
}

// Statistics aggregates a project's evaluation history.
type Statistics struct {
	ProjectID    string  `json:"project_id"`
	Count        int     `json:"count"`
	AverageScore float64 `json:"average_score"`
	BestScore    float64 `json:"best_score"`
	WorstScore   float64 `json:"worst_score"`
	Level        string  `json:"level"`
}

// ProjectStatistics computes count/average/best/worst over every evaluation
// recorded for the project.
func (e Engine) ProjectStatistics(ctx context.Context, projectID string) (Statistics, error) {
	if _, err := e.Repo.GetProject(ctx, projectID); err != nil {
		return Statistics{}, err
	}
	evals, err := e.Repo.ListProjectEvaluations(ctx, projectID)
	if err != nil {
		return Statistics{}, err
	}
	stats := Statistics{ProjectID: projectID, Count: len(evals)}
	if len(evals) == 0 {
		stats.Level = ComplianceLevel(0)
		return stats, nil
	}
	scores := scoresOf(evals)
	stats.BestScore = scores[0]
	stats.WorstScore = scores[0]
	for _, s := range scores[1:] {
		if s > stats.BestScore {
			stats.BestScore = s
		}
		if s < stats.WorstScore {
			stats.WorstScore = s
		}
	}
	stats.AverageScore = round2(average(scores))
	stats.Level = ComplianceLevel(stats.AverageScore)
	return stats, nil
}

func scoresOf(evals []domain.Evaluation) []float64 {
	scores := make([]float64, len(evals))
	for i, ev := range evals {
		scores[i] = ev.OverallScore
	}
	return scores
}

func average(scores []float64) float64 {
	if len(scores) == 0 {
		return 0
	}
	sum := 0.0
	for _, s := range scores {
		sum += s
	}
	return sum / float64(len(scores))
}
