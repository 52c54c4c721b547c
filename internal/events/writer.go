package events

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// Writer appends rows to the append-only compliance audit log. Every
// mutating engine operation records one event inside its own transaction:
// record.submitted, record.reviewed, evaluation.recorded, workflow.started,
// workflow.step.completed, workflow.step.skipped, workflow.escalated,
// workflow.completed, workflow.status.changed, rule.created, rule.updated.
type Writer struct {
	DB  *sql.DB
	Now func() time.Time
}

// EventPayload carries the event-specific detail, such as the step id of a
// completed workflow step or the from/to pair of a status change.
type EventPayload map[string]any

// Append writes one event using the caller's transaction so the audit row
// commits or rolls back with the mutation it describes. projectID and
// entityID may be empty when the event is not tied to one.
func (w Writer) Append(ctx context.Context, tx *sql.Tx, evtType, projectID, entityKind, entityID, actorID string, payload EventPayload) error {
	if w.Now == nil {
		w.Now = time.Now
	}
	ts := w.Now().UTC().Format(time.RFC3339)
	if payload == nil {
		payload = EventPayload{}
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal event payload: %w", err)
	}
	_, err = tx.ExecContext(ctx, `INSERT INTO events(ts,type,project_id,entity_kind,entity_id,actor_id,payload_json) VALUES (?,?,?,?,?,?,?)`,
		ts, evtType, nullable(projectID), entityKind, nullable(entityID), actorID, string(data))
	return err
}

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}
