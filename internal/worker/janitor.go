package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/lzjever/mbos-irp/internal/core"
	"github.com/lzjever/mbos-irp/internal/observability"
	"github.com/lzjever/mbos-irp/internal/store"
)

// staleScanLimit bounds one janitor sweep so a backlog of stuck
// requests cannot starve the dequeue loops sharing the pool.
const staleScanLimit = 50

// runJanitor periodically repairs state left behind by crashed
// workers: RUNNING jobs whose owner died become DEAD, and requests
// stuck in provisioning with no live job are either re-queued or
// finalized failed once their attempt budget is spent.
func (w *Worker) runJanitor(ctx context.Context) {
	if w.cfg.StaleClaimAfter <= 0 {
		w.log.Info("janitor disabled")
		return
	}
	ticker := time.NewTicker(w.cfg.JanitorInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.sweep(ctx)
		}
	}
}

func (w *Worker) sweep(ctx context.Context) {
	reaped, err := w.queries.ReapOrphanedJobs(ctx, w.cfg.StaleClaimAfter)
	if err != nil {
		w.log.Warn("orphan reap failed", zap.Error(err))
		return
	}
	for i := range reaped {
		job := &reaped[i]
		observability.JobTotal.WithLabelValues(string(job.Op), string(core.JobDead)).Inc()
		w.log.Warn("reaped orphaned job",
			zap.String("job_id", job.JobID),
			zap.Int64("request_id", job.RequestID),
			zap.String("op", string(job.Op)))
	}

	ids, err := w.queries.ListStaleProvisioning(ctx, w.cfg.StaleClaimAfter, staleScanLimit)
	if err != nil {
		w.log.Warn("stale scan failed", zap.Error(err))
		return
	}
	for _, id := range ids {
		w.reclaim(ctx, id)
	}
}

// reclaim returns one stuck request to the queue, or fails it when the
// attempt budget is already spent.
func (w *Worker) reclaim(ctx context.Context, requestID int64) {
	log := w.log.With(zap.Int64("request_id", requestID))

	active, err := w.queries.CountActiveJobsForRequest(ctx, requestID)
	if err != nil {
		log.Warn("could not count active jobs", zap.Error(err))
		return
	}
	if active > 0 {
		// A live job will resolve the claim on its own.
		return
	}

	attempts, err := w.queries.CountJobsForRequest(ctx, requestID, core.OpProvision)
	if err != nil {
		log.Warn("could not count provision jobs", zap.Error(err))
		return
	}
	if attempts >= int64(w.cfg.MaxAttempts) {
		ok, err := w.queries.CompareAndSetRequestStatus(ctx, store.CompareAndSetRequestStatusParams{
			ID: requestID, Expected: core.StatusProvisioning, Next: core.StatusFailed,
		})
		if err != nil || !ok {
			return
		}
		observability.RequestStateTransitions.WithLabelValues(string(core.StatusProvisioning), string(core.StatusFailed)).Inc()
		_ = w.queries.AppendRequestNotes(ctx, requestID,
			fmt.Sprintf("Provisioning abandoned after %d attempts: worker lost while provisioning", attempts))
		log.Error("stale request failed, attempt budget spent", zap.Int64("attempts", attempts))
		return
	}

	ok, err := w.queries.CompareAndSetRequestStatus(ctx, store.CompareAndSetRequestStatusParams{
		ID: requestID, Expected: core.StatusProvisioning, Next: core.StatusApproved,
	})
	if err != nil || !ok {
		return
	}
	observability.RequestStateTransitions.WithLabelValues(string(core.StatusProvisioning), string(core.StatusApproved)).Inc()
	observability.StaleClaimReclaimedTotal.Inc()
	_ = w.queries.AppendRequestNotes(ctx, requestID, "Reclaimed from stalled provisioning; re-queued")

	job, err := w.queries.CreateJob(ctx, store.CreateJobParams{
		JobID:       core.NewID(),
		RequestID:   requestID,
		Op:          core.OpProvision,
		MaxAttempts: int32(w.cfg.MaxAttempts),
	})
	if err != nil {
		log.Error("could not re-queue provision job", zap.Error(err))
		return
	}
	actor, _ := json.Marshal(map[string]string{"system": "janitor"})
	_, _ = w.queries.InsertAudit(ctx, store.InsertAuditParams{
		Actor:     actor,
		Action:    "request.reclaimed",
		RequestID: &requestID,
		JobID:     &job.JobID,
	})
	log.Warn("stale claim reclaimed", zap.String("job_id", job.JobID))
}
