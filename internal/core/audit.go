package core

import (
	"encoding/json"
	"time"
)

type AuditEvent struct {
	EventID   int64           `json:"event_id"`
	Ts        time.Time       `json:"ts"`
	Actor     json.RawMessage `json:"actor"`
	Action    string          `json:"action"`
	RequestID *int64          `json:"request_id,omitempty"`
	JobID     *string         `json:"job_id,omitempty"`
	Payload   json.RawMessage `json:"payload"`
}
