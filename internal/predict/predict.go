// Package predict wraps the external AI risk-prediction service. The core
// treats it as a collaborator behind the Provider interface; dev and test
// environments use the deterministic mock.
package predict

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"standline/internal/config"
	"standline/internal/domain"
)

// Input describes one risk to predict against.
type Input struct {
	ProjectID   string  `json:"project_id"`
	RiskID      string  `json:"risk_id,omitempty"`
	Category    string  `json:"category,omitempty"`
	Probability float64 `json:"probability"` // 0-100
	Impact      float64 `json:"impact"`      // 0-100
	Description string  `json:"description,omitempty"`
}

// Prediction is the provider's assessment.
type Prediction struct {
	RiskScore   float64 `json:"risk_score"`
	Severity    string  `json:"severity"`
	Confidence  float64 `json:"confidence"`
	Explanation string  `json:"explanation,omitempty"`
}

// Provider produces risk predictions.
type Provider interface {
	PredictRisk(ctx context.Context, in Input) (Prediction, error)
}

// Score computes the composite risk score probability*impact/100, clamped to
// [0,100].
func Score(probability, impact float64) float64 {
	s := probability * impact / 100
	if s < 0 {
		return 0
	}
	if s > 100 {
		return 100
	}
	return s
}

// Severity buckets a risk score: <25 low, <50 medium, <75 high, else
// critical.
func Severity(score float64) string {
	switch {
	case score < 25:
		return "low"
	case score < 50:
		return "medium"
	case score < 75:
		return "high"
	default:
		return "critical"
	}
}

// ValidateInput rejects out-of-range probability/impact values.
func ValidateInput(in Input) error {
	if in.Probability < 0 || in.Probability > 100 {
		return fmt.Errorf("%w: probability must be within [0,100]", domain.ErrValidation)
	}
	if in.Impact < 0 || in.Impact > 100 {
		return fmt.Errorf("%w: impact must be within [0,100]", domain.ErrValidation)
	}
	return nil
}

// New builds the provider named by the injected config.
func New(cfg config.PredictorConfig) (Provider, error) {
	switch cfg.Mode {
	case "mock":
		return MockProvider{}, nil
	case "http":
		timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		return &HTTPProvider{
			BaseURL: cfg.BaseURL,
			Client:  &http.Client{Timeout: timeout},
		}, nil
	default:
		return nil, fmt.Errorf("%w: unknown predictor mode %q", domain.ErrValidation, cfg.Mode)
	}
}

// HTTPProvider calls the prediction service over HTTP.
type HTTPProvider struct {
	BaseURL string
	Client  *http.Client
}

func (p *HTTPProvider) PredictRisk(ctx context.Context, in Input) (Prediction, error) {
	if err := ValidateInput(in); err != nil {
		return Prediction{}, err
	}
	body, err := json.Marshal(in)
	if err != nil {
		return Prediction{}, fmt.Errorf("marshal prediction request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.BaseURL+"/predictions/risk", bytes.NewReader(body))
	if err != nil {
		return Prediction{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := p.Client.Do(req)
	if err != nil {
		return Prediction{}, fmt.Errorf("prediction request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return Prediction{}, fmt.Errorf("prediction service returned status %d", resp.StatusCode)
	}
	var out Prediction
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return Prediction{}, fmt.Errorf("decode prediction response: %w", err)
	}
	return out, nil
}

// MockProvider is the deterministic dev/test provider: score and severity
// derive from the inputs alone.
type MockProvider struct{}

func (MockProvider) PredictRisk(_ context.Context, in Input) (Prediction, error) {
	if err := ValidateInput(in); err != nil {
		return Prediction{}, err
	}
	score := Score(in.Probability, in.Impact)
	return Prediction{
		RiskScore:   score,
		Severity:    Severity(score),
		Confidence:  0.75,
		Explanation: fmt.Sprintf("mock prediction for project %s", in.ProjectID),
	}, nil
}
