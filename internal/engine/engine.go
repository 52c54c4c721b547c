// Package engine implements the compliance core: criteria evaluation against
// weighted standards, history and trend tracking, alert generation, the
// workflow state machine with escalation, and rule execution.
package engine

import (
	"database/sql"
	"time"

	"go.uber.org/zap"

	"standline/internal/config"
	"standline/internal/events"
	"standline/internal/notify"
	"standline/internal/predict"
	"standline/internal/repo"
)

type Engine struct {
	DB        *sql.DB
	Repo      repo.Repo
	Events    events.Writer
	Config    *config.Config
	Notifier  notify.Sink
	Predictor predict.Provider
	Logger    *zap.Logger
	Now       func() time.Time
}

// New wires an Engine over an open database. The notifier defaults to the
// store-backed sink and the predictor to the configured provider.
func New(db *sql.DB, cfg *config.Config, logger *zap.Logger) (Engine, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	r := repo.Repo{DB: db}
	provider, err := predict.New(cfg.Predictor)
	if err != nil {
		return Engine{}, err
	}
	return Engine{
		DB:        db,
		Repo:      r,
		Events:    events.Writer{DB: db},
		Config:    cfg,
		Notifier:  notify.StoreSink{Repo: r},
		Predictor: provider,
		Logger:    logger,
		Now:       time.Now,
	}, nil
}

func (e Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

func (e Engine) logger() *zap.Logger {
	if e.Logger != nil {
		return e.Logger
	}
	return zap.NewNop()
}

// Timestamp renders the engine clock as an RFC 3339 UTC string, the format
// every persisted time column uses.
func (e Engine) Timestamp() string {
	return e.now().UTC().Format(time.RFC3339)
}
