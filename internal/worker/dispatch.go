package worker

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"github.com/lzjever/mbos-irp/internal/core"
	"github.com/lzjever/mbos-irp/internal/observability"
	"github.com/lzjever/mbos-irp/internal/provision"
	"github.com/lzjever/mbos-irp/internal/store"
)

func (w *Worker) handle(ctx context.Context, job *core.ProvisionJob) {
	log := observability.JobLogger(w.log, job.JobID, job.RequestID, string(job.Op))
	log.Info("job dequeued", zap.Int("attempt", job.Attempt))

	start := time.Now()
	defer func() {
		observability.JobDuration.WithLabelValues(string(job.Op)).Observe(time.Since(start).Seconds())
	}()

	var (
		out provision.Outcome
		err error
	)
	switch job.Op {
	case core.OpProvision:
		out, err = w.orch.Provision(ctx, job.RequestID, w.cfg.DryRun)
	case core.OpDestroy:
		out, err = w.orch.Destroy(ctx, job.RequestID)
	default:
		err = &core.ProvisionError{Kind: core.FailureInvalidState, Op: string(job.Op), Detail: "unknown job op"}
	}
	if err != nil {
		w.failJob(ctx, job, err, log)
		return
	}

	w.completeJob(ctx, job, out, log)
}

func (w *Worker) completeJob(ctx context.Context, job *core.ProvisionJob, out provision.Outcome, log *zap.Logger) {
	resultJSON, _ := json.Marshal(out)
	if err := w.queries.CompleteJob(ctx, store.CompleteJobParams{JobID: job.JobID, Result: resultJSON}); err != nil {
		log.Error("could not record job completion", zap.Error(err))
		return
	}
	observability.JobTotal.WithLabelValues(string(job.Op), string(core.JobSucceeded)).Inc()
	log.Info("job finished", zap.String("outcome", string(out.Code)), zap.String("reason", out.Reason))
}

func marshalJobError(err error) []byte {
	b, _ := json.Marshal(map[string]string{
		"error": err.Error(),
		"kind":  string(core.KindOf(err)),
	})
	return b
}
