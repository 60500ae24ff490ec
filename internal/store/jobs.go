package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/lzjever/mbos-irp/internal/core"
)

const jobColumns = `job_id, request_id, op, status, attempt, max_attempts, next_run_at, created_at, started_at, ended_at, result, error`

func scanJob(row pgx.Row) (core.ProvisionJob, error) {
	var j core.ProvisionJob
	err := row.Scan(&j.JobID, &j.RequestID, &j.Op, &j.Status, &j.Attempt, &j.MaxAttempts,
		&j.NextRunAt, &j.CreatedAt, &j.StartedAt, &j.EndedAt, &j.Result, &j.Error)
	if errors.Is(err, pgx.ErrNoRows) {
		return j, ErrNotFound
	}
	return j, err
}

type CreateJobParams struct {
	JobID       string
	RequestID   int64
	Op          core.JobOp
	MaxAttempts int32
}

func (q *Queries) CreateJob(ctx context.Context, arg CreateJobParams) (core.ProvisionJob, error) {
	row := q.db.QueryRow(ctx, `
		INSERT INTO irp.provision_jobs (job_id, request_id, op, max_attempts)
		VALUES ($1, $2, $3, $4)
		RETURNING `+jobColumns,
		arg.JobID, arg.RequestID, arg.Op, arg.MaxAttempts)
	return scanJob(row)
}

func (q *Queries) GetJob(ctx context.Context, jobID string) (core.ProvisionJob, error) {
	row := q.db.QueryRow(ctx, `
		SELECT `+jobColumns+` FROM irp.provision_jobs WHERE job_id = $1`, jobID)
	return scanJob(row)
}

type ListJobsParams struct {
	Status core.JobStatus // zero value lists all
	Limit  int32
}

func (q *Queries) ListJobs(ctx context.Context, arg ListJobsParams) ([]core.ProvisionJob, error) {
	rows, err := q.db.Query(ctx, `
		SELECT `+jobColumns+` FROM irp.provision_jobs
		WHERE ($1 = '' OR status = $1)
		ORDER BY created_at DESC
		LIMIT $2`, string(arg.Status), arg.Limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	jobs := []core.ProvisionJob{}
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, j)
	}
	return jobs, rows.Err()
}

// DequeueJob claims the oldest due job. SKIP LOCKED keeps concurrent
// workers from fighting over the same row; the claimed job moves to
// RUNNING with its attempt counter bumped. ErrNotFound means the queue
// is idle.
func (q *Queries) DequeueJob(ctx context.Context) (core.ProvisionJob, error) {
	row := q.db.QueryRow(ctx, `
		UPDATE irp.provision_jobs
		SET status = 'RUNNING', attempt = attempt + 1, started_at = now()
		WHERE job_id = (
			SELECT job_id FROM irp.provision_jobs
			WHERE status IN ('PENDING', 'FAILED') AND next_run_at <= now()
			ORDER BY next_run_at
			LIMIT 1
			FOR UPDATE SKIP LOCKED
		)
		RETURNING `+jobColumns)
	return scanJob(row)
}

type CompleteJobParams struct {
	JobID  string
	Result json.RawMessage
}

func (q *Queries) CompleteJob(ctx context.Context, arg CompleteJobParams) error {
	_, err := q.db.Exec(ctx, `
		UPDATE irp.provision_jobs
		SET status = 'SUCCEEDED', result = $2, ended_at = now()
		WHERE job_id = $1`, arg.JobID, normalizeJSON(arg.Result))
	return err
}

type FailJobParams struct {
	JobID   string
	Error   json.RawMessage
	Backoff time.Duration
}

// FailJob records a retryable failure and schedules the next attempt
// after the backoff interval.
func (q *Queries) FailJob(ctx context.Context, arg FailJobParams) error {
	_, err := q.db.Exec(ctx, `
		UPDATE irp.provision_jobs
		SET status = 'FAILED', error = $2, ended_at = now(),
		    next_run_at = now() + make_interval(secs => $3)
		WHERE job_id = $1`, arg.JobID, normalizeJSON(arg.Error), arg.Backoff.Seconds())
	return err
}

type MarkJobDeadParams struct {
	JobID string
	Error json.RawMessage
}

func (q *Queries) MarkJobDead(ctx context.Context, arg MarkJobDeadParams) error {
	_, err := q.db.Exec(ctx, `
		UPDATE irp.provision_jobs
		SET status = 'DEAD', error = $2, ended_at = now()
		WHERE job_id = $1`, arg.JobID, normalizeJSON(arg.Error))
	return err
}

// ReapOrphanedJobs kills RUNNING jobs whose claim is older than the
// given age. Such jobs belong to worker processes that died mid-attempt;
// the rows would otherwise read as active forever and block the stale
// claim reclaim. Returns the reaped jobs.
func (q *Queries) ReapOrphanedJobs(ctx context.Context, olderThan time.Duration) ([]core.ProvisionJob, error) {
	rows, err := q.db.Query(ctx, `
		UPDATE irp.provision_jobs
		SET status = 'DEAD', ended_at = now(),
		    error = '{"error":"orphaned by crashed worker"}'::jsonb
		WHERE status = 'RUNNING' AND started_at < now() - make_interval(secs => $1)
		RETURNING `+jobColumns, olderThan.Seconds())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	jobs := []core.ProvisionJob{}
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, j)
	}
	return jobs, rows.Err()
}

// CountJobsForRequest counts every job ever created for a request with
// the given op, regardless of state. Bounds how many times the janitor
// will re-enqueue a request whose attempts keep getting orphaned.
func (q *Queries) CountJobsForRequest(ctx context.Context, requestID int64, op core.JobOp) (int64, error) {
	var n int64
	err := q.db.QueryRow(ctx, `
		SELECT count(*) FROM irp.provision_jobs
		WHERE request_id = $1 AND op = $2`, requestID, op).Scan(&n)
	return n, err
}

// GetQueueDepth counts jobs still owed a run.
func (q *Queries) GetQueueDepth(ctx context.Context) (int64, error) {
	var depth int64
	err := q.db.QueryRow(ctx, `
		SELECT count(*) FROM irp.provision_jobs
		WHERE status IN ('PENDING', 'FAILED') AND attempt < max_attempts`).Scan(&depth)
	return depth, err
}

// CountActiveJobsForRequest counts jobs for a request that are queued,
// running, or still owed a retry. The janitor uses it to avoid piling
// duplicate jobs onto a request that is already being worked.
func (q *Queries) CountActiveJobsForRequest(ctx context.Context, requestID int64) (int64, error) {
	var n int64
	err := q.db.QueryRow(ctx, `
		SELECT count(*) FROM irp.provision_jobs
		WHERE request_id = $1
		  AND (status IN ('PENDING', 'RUNNING') OR (status = 'FAILED' AND attempt < max_attempts))`,
		requestID).Scan(&n)
	return n, err
}
