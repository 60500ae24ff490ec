package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/lzjever/mbos-irp/internal/core"
	"github.com/lzjever/mbos-irp/internal/observability"
	"github.com/lzjever/mbos-irp/internal/store"
)

type ReviewBody struct {
	Notes string `json:"notes"`
}

// ListUsers lists non-admin accounts, for team assignment.
func (a *API) ListUsers(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	users, err := a.queries.ListUsers(ctx)
	if err != nil {
		a.log.Error("list users failed", zap.Error(err))
		WriteError(w, core.NewAppError(core.ErrInternal, "failed to list users"))
		return
	}
	resp := make([]core.User, 0, len(users))
	for _, u := range users {
		if !u.IsAdmin {
			resp = append(resp, u)
		}
	}
	WriteJSON(w, http.StatusOK, resp)
}

// AdminListRequests lists requests across all users, optionally
// filtered by status, newest first.
func (a *API) AdminListRequests(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	status := core.RequestStatus(r.URL.Query().Get("status"))
	if status != "" && !status.Valid() {
		WriteError(w, core.NewAppError(core.ErrBadRequest, fmt.Sprintf("unknown status %q", status)))
		return
	}
	limit := parseLimit(r.URL.Query().Get("limit"), 50, 200)

	requests, err := a.queries.ListRequests(ctx, store.ListRequestsParams{
		Status: status,
		Limit:  int32(limit),
	})
	if err != nil {
		a.log.Error("list requests failed", zap.Error(err))
		WriteError(w, core.NewAppError(core.ErrInternal, "failed to list requests"))
		return
	}
	WriteJSON(w, http.StatusOK, requests)
}

// AdminGetRequest returns any request by id.
func (a *API) AdminGetRequest(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, err := pathID(r, "id")
	if err != nil {
		WriteError(w, core.NewAppError(core.ErrBadRequest, "invalid request id"))
		return
	}
	req, err := a.queries.GetRequest(ctx, id)
	if err != nil {
		WriteError(w, core.NewAppError(core.ErrNotFound, "request not found"))
		return
	}
	WriteJSON(w, http.StatusOK, req)
}

// ApproveRequest moves a pending request to approved and queues the
// provisioning job. The pending check is a compare-and-set, so two
// admins racing on the same request produce exactly one job.
func (a *API) ApproveRequest(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, err := pathID(r, "id")
	if err != nil {
		WriteError(w, core.NewAppError(core.ErrBadRequest, "invalid request id"))
		return
	}
	if _, err := a.queries.GetRequest(ctx, id); err != nil {
		WriteError(w, core.NewAppError(core.ErrNotFound, "request not found"))
		return
	}

	var body ReviewBody
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			WriteError(w, core.NewAppError(core.ErrBadRequest, "invalid request body"))
			return
		}
	}

	ok, err := a.queries.CompareAndSetRequestStatus(ctx, store.CompareAndSetRequestStatusParams{
		ID: id, Expected: core.StatusPending, Next: core.StatusApproved,
	})
	if err != nil {
		a.log.Error("approve failed", zap.Error(err))
		WriteError(w, core.NewAppError(core.ErrInternal, "failed to approve request"))
		return
	}
	if !ok {
		current, _ := a.queries.GetRequest(ctx, id)
		WriteError(w, core.NewAppError(core.ErrConflictState, fmt.Sprintf("request already %s", current.Status)))
		return
	}
	observability.RequestStateTransitions.WithLabelValues(string(core.StatusPending), string(core.StatusApproved)).Inc()

	if body.Notes != "" {
		_ = a.queries.AppendRequestNotes(ctx, id, "Approved: "+body.Notes)
	}

	job, err := a.queries.CreateJob(ctx, store.CreateJobParams{
		JobID:       core.NewID(),
		RequestID:   id,
		Op:          core.OpProvision,
		MaxAttempts: a.maxAttempts,
	})
	if err != nil {
		a.log.Error("create provision job failed", zap.Error(err), zap.Int64("request_id", id))
		WriteError(w, core.NewAppError(core.ErrInternal, "request approved but job creation failed"))
		return
	}

	_ = a.writeAudit(ctx, "request.approved", &id, &job.JobID, body)

	WriteAccepted(w, job.JobID, "/v1/admin/jobs/")
}

// RejectRequest moves a pending request to rejected. Notes are
// mandatory so the requester learns why.
func (a *API) RejectRequest(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, err := pathID(r, "id")
	if err != nil {
		WriteError(w, core.NewAppError(core.ErrBadRequest, "invalid request id"))
		return
	}
	if _, err := a.queries.GetRequest(ctx, id); err != nil {
		WriteError(w, core.NewAppError(core.ErrNotFound, "request not found"))
		return
	}

	var body ReviewBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Notes == "" {
		WriteError(w, core.NewAppError(core.ErrBadRequest, "notes are required when rejecting"))
		return
	}

	ok, err := a.queries.CompareAndSetRequestStatus(ctx, store.CompareAndSetRequestStatusParams{
		ID: id, Expected: core.StatusPending, Next: core.StatusRejected,
	})
	if err != nil {
		a.log.Error("reject failed", zap.Error(err))
		WriteError(w, core.NewAppError(core.ErrInternal, "failed to reject request"))
		return
	}
	if !ok {
		current, _ := a.queries.GetRequest(ctx, id)
		WriteError(w, core.NewAppError(core.ErrConflictState, fmt.Sprintf("request already %s", current.Status)))
		return
	}
	observability.RequestStateTransitions.WithLabelValues(string(core.StatusPending), string(core.StatusRejected)).Inc()

	_ = a.queries.AppendRequestNotes(ctx, id, "Rejected: "+body.Notes)
	_ = a.writeAudit(ctx, "request.rejected", &id, nil, body)

	updated, err := a.queries.GetRequest(ctx, id)
	if err != nil {
		WriteError(w, core.NewAppError(core.ErrInternal, "failed to reload request"))
		return
	}
	WriteJSON(w, http.StatusOK, updated)
}

// DestroyRequest queues a teardown job for provisioned or failed
// infrastructure. The request status only changes when the worker's
// destroy succeeds.
func (a *API) DestroyRequest(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, err := pathID(r, "id")
	if err != nil {
		WriteError(w, core.NewAppError(core.ErrBadRequest, "invalid request id"))
		return
	}
	req, err := a.queries.GetRequest(ctx, id)
	if err != nil {
		WriteError(w, core.NewAppError(core.ErrNotFound, "request not found"))
		return
	}
	if req.Status != core.StatusProvisioned && req.Status != core.StatusFailed {
		WriteError(w, core.NewAppError(core.ErrConflictState,
			fmt.Sprintf("only provisioned or failed requests can be destroyed, request is %s", req.Status)))
		return
	}

	active, err := a.queries.CountActiveJobsForRequest(ctx, id)
	if err != nil {
		a.log.Error("active job check failed", zap.Error(err))
		WriteError(w, core.NewAppError(core.ErrInternal, "failed to queue destroy"))
		return
	}
	if active > 0 {
		WriteError(w, core.NewAppError(core.ErrConflictState, "request already has an active job"))
		return
	}

	job, err := a.queries.CreateJob(ctx, store.CreateJobParams{
		JobID:       core.NewID(),
		RequestID:   id,
		Op:          core.OpDestroy,
		MaxAttempts: a.maxAttempts,
	})
	if err != nil {
		a.log.Error("create destroy job failed", zap.Error(err), zap.Int64("request_id", id))
		WriteError(w, core.NewAppError(core.ErrInternal, "failed to queue destroy"))
		return
	}

	_ = a.writeAudit(ctx, "request.destroy_queued", &id, &job.JobID, nil)

	WriteAccepted(w, job.JobID, "/v1/admin/jobs/")
}

// ListJobs lists provisioning jobs, optionally filtered by status.
func (a *API) ListJobs(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	status := core.JobStatus(r.URL.Query().Get("status"))
	switch status {
	case "", core.JobPending, core.JobRunning, core.JobSucceeded, core.JobFailed, core.JobDead:
	default:
		WriteError(w, core.NewAppError(core.ErrBadRequest, fmt.Sprintf("unknown status %q", status)))
		return
	}
	limit := parseLimit(r.URL.Query().Get("limit"), 50, 200)

	jobs, err := a.queries.ListJobs(ctx, store.ListJobsParams{
		Status: status,
		Limit:  int32(limit),
	})
	if err != nil {
		a.log.Error("list jobs failed", zap.Error(err))
		WriteError(w, core.NewAppError(core.ErrInternal, "failed to list jobs"))
		return
	}
	WriteJSON(w, http.StatusOK, jobs)
}

// GetJob returns one provisioning job by id.
func (a *API) GetJob(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	jobID := chi.URLParam(r, "job_id")

	job, err := a.queries.GetJob(ctx, jobID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			WriteError(w, core.NewAppError(core.ErrNotFound, "job not found"))
			return
		}
		a.log.Error("get job failed", zap.Error(err))
		WriteError(w, core.NewAppError(core.ErrInternal, "failed to load job"))
		return
	}
	WriteJSON(w, http.StatusOK, job)
}

func parseLimit(s string, defaultVal, maxVal int) int {
	if s == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 {
		return defaultVal
	}
	if n > maxVal {
		return maxVal
	}
	return n
}
