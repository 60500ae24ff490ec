// Package worker pulls provisioning jobs off the Postgres-backed queue
// and drives the orchestrator, one attempt per claimed job. Retry and
// dead-letter bookkeeping lives here; the orchestrator only reports
// whether an attempt committed a terminal request status.
package worker

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/lzjever/mbos-irp/internal/core"
	"github.com/lzjever/mbos-irp/internal/observability"
	"github.com/lzjever/mbos-irp/internal/provision"
	"github.com/lzjever/mbos-irp/internal/store"
)

// Provisioner is the orchestrator surface the worker drives.
type Provisioner interface {
	Provision(ctx context.Context, requestID int64, dryRun bool) (provision.Outcome, error)
	Destroy(ctx context.Context, requestID int64) (provision.Outcome, error)
}

type Worker struct {
	pool    *pgxpool.Pool
	queries *store.Queries
	orch    Provisioner
	cfg     Config
	log     *zap.Logger
}

func New(pool *pgxpool.Pool, orch Provisioner, cfg Config, log *zap.Logger) *Worker {
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}
	if cfg.StaleClaimAfter > 0 && cfg.StaleClaimAfter < 4*cfg.StepTimeout {
		log.Warn("stale claim threshold is below the worst-case attempt duration; live claims could be reclaimed",
			zap.Duration("stale_claim_after", cfg.StaleClaimAfter),
			zap.Duration("step_timeout", cfg.StepTimeout))
	}
	return &Worker{
		pool:    pool,
		queries: store.New(pool),
		orch:    orch,
		cfg:     cfg,
		log:     log,
	}
}

// Run starts the executor pool and the janitor, then blocks until ctx
// is canceled and every in-flight attempt has drained.
func (w *Worker) Run(ctx context.Context) {
	w.log.Info("worker started", zap.Int("concurrency", w.cfg.Concurrency), zap.Bool("dry_run", w.cfg.DryRun))

	var wg sync.WaitGroup
	for i := 0; i < w.cfg.Concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			w.runLoop(ctx)
		}()
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		w.runJanitor(ctx)
	}()

	wg.Wait()
	w.log.Info("worker stopped")
}

func (w *Worker) runLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		job, err := w.queries.DequeueJob(ctx)
		if err != nil {
			// Idle queue and store hiccups look the same here:
			// back off and poll again.
			observability.DequeueEmptyTotal.Inc()
			select {
			case <-ctx.Done():
				return
			case <-time.After(w.cfg.IdleBackoff):
			}
			continue
		}

		w.handle(ctx, &job)

		if depth, err := w.queries.GetQueueDepth(ctx); err == nil {
			observability.JobQueueDepth.Set(float64(depth))
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(w.cfg.PollInterval):
		}
	}
}

// failJob books a failed attempt: retryable errors with attempts left
// re-enqueue after the backoff, everything else goes to the dead
// letter state and the request is finalized.
func (w *Worker) failJob(ctx context.Context, job *core.ProvisionJob, jobErr error, log *zap.Logger) {
	errJSON := marshalJobError(jobErr)

	if core.IsRetryable(jobErr) && job.Attempt < job.MaxAttempts {
		if err := w.queries.FailJob(ctx, store.FailJobParams{
			JobID: job.JobID, Error: errJSON, Backoff: w.cfg.RetryBackoff,
		}); err != nil {
			log.Error("could not record job failure", zap.Error(err))
			return
		}
		observability.JobTotal.WithLabelValues(string(job.Op), string(core.JobFailed)).Inc()
		observability.JobRetryTotal.WithLabelValues(string(job.Op)).Inc()
		log.Warn("job failed, will retry",
			zap.Error(jobErr), zap.Int("attempt", job.Attempt), zap.Duration("backoff", w.cfg.RetryBackoff))
		return
	}

	if err := w.queries.MarkJobDead(ctx, store.MarkJobDeadParams{JobID: job.JobID, Error: errJSON}); err != nil {
		log.Error("could not mark job dead", zap.Error(err))
		return
	}
	observability.JobTotal.WithLabelValues(string(job.Op), string(core.JobDead)).Inc()
	w.finalizeRequest(ctx, job, jobErr, log)
	log.Error("job dead", zap.Error(jobErr), zap.Int("attempt", job.Attempt))
}

// finalizeRequest reconciles the request row once its job is dead. A
// provision job that never committed a terminal status leaves the
// request failed; a destroy job leaves status untouched because the
// workspace still describes live infrastructure.
func (w *Worker) finalizeRequest(ctx context.Context, job *core.ProvisionJob, jobErr error, log *zap.Logger) {
	note := "Provisioning failed: " + jobErr.Error()
	if job.Op == core.OpDestroy {
		note = "Destroy failed: " + jobErr.Error()
	}
	if len(note) > 4000 {
		note = note[:4000]
	}

	if job.Op == core.OpProvision {
		for _, from := range []core.RequestStatus{core.StatusProvisioning, core.StatusApproved} {
			ok, err := w.queries.CompareAndSetRequestStatus(ctx, store.CompareAndSetRequestStatusParams{
				ID: job.RequestID, Expected: from, Next: core.StatusFailed,
			})
			if err != nil {
				log.Error("could not finalize request", zap.Error(err))
				return
			}
			if ok {
				observability.RequestStateTransitions.WithLabelValues(string(from), string(core.StatusFailed)).Inc()
				break
			}
		}
	}
	if err := w.queries.AppendRequestNotes(ctx, job.RequestID, note); err != nil {
		log.Warn("could not append failure notes", zap.Error(err))
	}

	actor, _ := json.Marshal(map[string]string{"system": "worker"})
	_, _ = w.queries.InsertAudit(ctx, store.InsertAuditParams{
		Actor:     actor,
		Action:    "job.dead",
		RequestID: &job.RequestID,
		JobID:     &job.JobID,
	})
}
