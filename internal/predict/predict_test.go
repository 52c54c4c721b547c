package predict

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"standline/internal/config"
	"standline/internal/domain"
)

func TestScore(t *testing.T) {
	cases := []struct {
		probability, impact, want float64
	}{
		{50, 50, 25},
		{100, 100, 100},
		{0, 100, 0},
		{80, 90, 72},
		{-10, 50, 0},
	}
	for _, tc := range cases {
		if got := Score(tc.probability, tc.impact); got != tc.want {
			t.Errorf("Score(%v, %v) = %v, want %v", tc.probability, tc.impact, got, tc.want)
		}
	}
}

func TestSeverityBuckets(t *testing.T) {
	cases := []struct {
		score float64
		want  string
	}{
		{0, "low"},
		{24.99, "low"},
		{25, "medium"},
		{49.99, "medium"},
		{50, "high"},
		{74.99, "high"},
		{75, "critical"},
		{100, "critical"},
	}
	for _, tc := range cases {
		if got := Severity(tc.score); got != tc.want {
			t.Errorf("Severity(%v) = %s, want %s", tc.score, got, tc.want)
		}
	}
}

func TestMockProviderDeterministic(t *testing.T) {
	in := Input{ProjectID: "proj-1", Probability: 60, Impact: 90}
	first, err := MockProvider{}.PredictRisk(context.Background(), in)
	if err != nil {
		t.Fatalf("predict: %v", err)
	}
	second, _ := MockProvider{}.PredictRisk(context.Background(), in)
	if first != second {
		t.Fatalf("mock must be deterministic: %+v vs %+v", first, second)
	}
	if first.RiskScore != 54 || first.Severity != "high" || first.Confidence != 0.75 {
		t.Fatalf("prediction = %+v", first)
	}
}

func TestValidateInput(t *testing.T) {
	for _, in := range []Input{
		{Probability: -1, Impact: 50},
		{Probability: 101, Impact: 50},
		{Probability: 50, Impact: -1},
		{Probability: 50, Impact: 101},
	} {
		if err := ValidateInput(in); !errors.Is(err, domain.ErrValidation) {
			t.Errorf("ValidateInput(%+v) = %v, want ErrValidation", in, err)
		}
	}
	if err := ValidateInput(Input{Probability: 0, Impact: 100}); err != nil {
		t.Errorf("bounds are inclusive: %v", err)
	}
}

func TestNewProvider(t *testing.T) {
	if _, err := New(config.PredictorConfig{Mode: "mock"}); err != nil {
		t.Fatalf("mock mode: %v", err)
	}
	if _, err := New(config.PredictorConfig{Mode: "http", BaseURL: "http://localhost:9"}); err != nil {
		t.Fatalf("http mode: %v", err)
	}
	if _, err := New(config.PredictorConfig{Mode: "oracle"}); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("unknown mode: err = %v, want ErrValidation", err)
	}
}

func TestHTTPProvider(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/predictions/risk" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		var in Input
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
			t.Errorf("decode request: %v", err)
		}
		json.NewEncoder(w).Encode(Prediction{RiskScore: 42, Severity: "medium", Confidence: 0.9})
	}))
	defer srv.Close()

	p := &HTTPProvider{BaseURL: srv.URL, Client: srv.Client()}
	out, err := p.PredictRisk(context.Background(), Input{ProjectID: "proj-1", Probability: 60, Impact: 70})
	if err != nil {
		t.Fatalf("predict: %v", err)
	}
	if out.RiskScore != 42 || out.Severity != "medium" {
		t.Fatalf("prediction = %+v", out)
	}
}

func TestHTTPProviderErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	p := &HTTPProvider{BaseURL: srv.URL, Client: srv.Client()}
	if _, err := p.PredictRisk(context.Background(), Input{Probability: 10, Impact: 10}); err == nil {
		t.Fatal("expected error on non-200 status")
	}
}
