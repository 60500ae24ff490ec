package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/lzjever/mbos-irp/internal/core"
)

// ErrNotFound is returned when a row does not exist.
var ErrNotFound = errors.New("not found")

const requestColumns = `id, user_id, team_id, resource_type, name, config, status, notes, created_at, updated_at`

func scanRequest(row pgx.Row) (core.ResourceRequest, error) {
	var r core.ResourceRequest
	err := row.Scan(&r.ID, &r.UserID, &r.TeamID, &r.ResourceType, &r.Name,
		&r.Config, &r.Status, &r.Notes, &r.CreatedAt, &r.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return r, ErrNotFound
	}
	return r, err
}

type CreateRequestParams struct {
	UserID         int64
	TeamID         int64
	ResourceType   core.ResourceType
	Name           string
	Config         json.RawMessage
	IdempotencyKey string
	RequestHash    string
}

func (q *Queries) CreateRequest(ctx context.Context, arg CreateRequestParams) (core.ResourceRequest, error) {
	row := q.db.QueryRow(ctx, `
		INSERT INTO irp.resource_requests (user_id, team_id, resource_type, name, config, idempotency_key, request_hash)
		VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), NULLIF($7, ''))
		RETURNING `+requestColumns,
		arg.UserID, arg.TeamID, arg.ResourceType, arg.Name, normalizeJSON(arg.Config), arg.IdempotencyKey, arg.RequestHash)
	return scanRequest(row)
}

func (q *Queries) GetRequest(ctx context.Context, id int64) (core.ResourceRequest, error) {
	row := q.db.QueryRow(ctx, `
		SELECT `+requestColumns+` FROM irp.resource_requests WHERE id = $1`, id)
	return scanRequest(row)
}

type GetRequestByIdempotencyKeyParams struct {
	UserID         int64
	IdempotencyKey string
}

// GetRequestByIdempotencyKey returns an earlier submission with the same
// key, together with its recorded request hash for mismatch detection.
func (q *Queries) GetRequestByIdempotencyKey(ctx context.Context, arg GetRequestByIdempotencyKeyParams) (core.ResourceRequest, string, error) {
	row := q.db.QueryRow(ctx, `
		SELECT `+requestColumns+`, COALESCE(request_hash, '')
		FROM irp.resource_requests
		WHERE user_id = $1 AND idempotency_key = $2`,
		arg.UserID, arg.IdempotencyKey)
	var r core.ResourceRequest
	var hash string
	err := row.Scan(&r.ID, &r.UserID, &r.TeamID, &r.ResourceType, &r.Name,
		&r.Config, &r.Status, &r.Notes, &r.CreatedAt, &r.UpdatedAt, &hash)
	if errors.Is(err, pgx.ErrNoRows) {
		return r, "", ErrNotFound
	}
	return r, hash, err
}

type ListRequestsParams struct {
	Status core.RequestStatus // zero value lists all
	Limit  int32
}

func (q *Queries) ListRequests(ctx context.Context, arg ListRequestsParams) ([]core.ResourceRequest, error) {
	rows, err := q.db.Query(ctx, `
		SELECT `+requestColumns+` FROM irp.resource_requests
		WHERE ($1 = '' OR status = $1)
		ORDER BY created_at DESC
		LIMIT $2`, string(arg.Status), arg.Limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectRequests(rows)
}

func (q *Queries) ListRequestsByUser(ctx context.Context, userID int64) ([]core.ResourceRequest, error) {
	rows, err := q.db.Query(ctx, `
		SELECT `+requestColumns+` FROM irp.resource_requests
		WHERE user_id = $1
		ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectRequests(rows)
}

func collectRequests(rows pgx.Rows) ([]core.ResourceRequest, error) {
	requests := []core.ResourceRequest{}
	for rows.Next() {
		r, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		requests = append(requests, r)
	}
	return requests, rows.Err()
}

type CompareAndSetRequestStatusParams struct {
	ID       int64
	Expected core.RequestStatus
	Next     core.RequestStatus
}

// CompareAndSetRequestStatus atomically moves a request from Expected to
// Next. It reports false when the row was absent or no longer in the
// expected status; this is the sole synchronization point that keeps
// provisioning attempts mutually exclusive.
func (q *Queries) CompareAndSetRequestStatus(ctx context.Context, arg CompareAndSetRequestStatusParams) (bool, error) {
	tag, err := q.db.Exec(ctx, `
		UPDATE irp.resource_requests
		SET status = $3, updated_at = now()
		WHERE id = $1 AND status = $2`,
		arg.ID, arg.Expected, arg.Next)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (q *Queries) SetRequestStatus(ctx context.Context, id int64, status core.RequestStatus) error {
	tag, err := q.db.Exec(ctx, `
		UPDATE irp.resource_requests SET status = $2, updated_at = now() WHERE id = $1`,
		id, status)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// AppendRequestNotes adds text to the request's append-only notes log,
// separated from earlier entries by a blank line.
func (q *Queries) AppendRequestNotes(ctx context.Context, id int64, text string) error {
	tag, err := q.db.Exec(ctx, `
		UPDATE irp.resource_requests
		SET notes = CASE WHEN notes = '' THEN $2 ELSE notes || E'\n\n' || $2 END,
		    updated_at = now()
		WHERE id = $1`, id, text)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ListStaleProvisioning returns ids of requests that have sat in
// provisioning longer than the given age, oldest first. These are
// claims orphaned by a crashed attempt.
func (q *Queries) ListStaleProvisioning(ctx context.Context, olderThan time.Duration, limit int32) ([]int64, error) {
	rows, err := q.db.Query(ctx, `
		SELECT id FROM irp.resource_requests
		WHERE status = 'provisioning' AND updated_at < now() - make_interval(secs => $1)
		ORDER BY updated_at
		LIMIT $2`, olderThan.Seconds(), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func normalizeJSON(raw json.RawMessage) []byte {
	if len(raw) == 0 {
		return []byte("{}")
	}
	return raw
}
