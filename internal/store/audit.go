package store

import (
	"context"
	"encoding/json"

	"github.com/lzjever/mbos-irp/internal/core"
)

type InsertAuditParams struct {
	Actor     json.RawMessage
	Action    string
	RequestID *int64
	JobID     *string
	Payload   json.RawMessage
}

func (q *Queries) InsertAudit(ctx context.Context, arg InsertAuditParams) (core.AuditEvent, error) {
	row := q.db.QueryRow(ctx, `
		INSERT INTO irp.audit_events (actor, action, request_id, job_id, payload)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING event_id, ts, actor, action, request_id, job_id, payload`,
		normalizeJSON(arg.Actor), arg.Action, arg.RequestID, arg.JobID, normalizeJSON(arg.Payload))
	var e core.AuditEvent
	err := row.Scan(&e.EventID, &e.Ts, &e.Actor, &e.Action, &e.RequestID, &e.JobID, &e.Payload)
	return e, err
}
