package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/lzjever/mbos-irp/internal/auth"
	"github.com/lzjever/mbos-irp/internal/core"
	"github.com/lzjever/mbos-irp/internal/store"
)

// SubmitRequestBody carries a new resource request. resource_type is
// deliberately not checked against the known set here: unknown types
// are accepted and fail at provisioning time with a clear error, so
// the request record keeps what the user actually asked for.
type SubmitRequestBody struct {
	ResourceType string          `json:"resource_type" validate:"required,max=64"`
	Name         string          `json:"name" validate:"required,min=3,max=63"`
	Config       json.RawMessage `json:"config"`
}

// SubmitRequest files a resource request for the user's team.
func (a *API) SubmitRequest(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	claims, _ := auth.ClaimsFromContext(ctx)

	user, err := a.queries.GetUser(ctx, claims.UserID)
	if err != nil {
		WriteError(w, core.NewAppError(core.ErrNotFound, "user not found"))
		return
	}
	if user.TeamID == nil {
		WriteError(w, core.NewAppError(core.ErrBadRequest, "you must be assigned to a team before submitting requests"))
		return
	}

	var req SubmitRequestBody
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, core.NewAppError(core.ErrBadRequest, "invalid request body"))
		return
	}
	if err := a.validate.Struct(req); err != nil {
		WriteError(w, core.NewAppError(core.ErrBadRequest, "resource_type and name (3-63 chars) are required"))
		return
	}

	body, _ := json.Marshal(req)
	requestHash := core.ComputeRequestHash(body, "POST", "/v1/requests")

	// Replay detection when the client supplies an idempotency key.
	idempotencyKey := r.Header.Get("Idempotency-Key")
	if idempotencyKey != "" {
		existing, hash, err := a.queries.GetRequestByIdempotencyKey(ctx, store.GetRequestByIdempotencyKeyParams{
			UserID:         user.ID,
			IdempotencyKey: idempotencyKey,
		})
		if err == nil {
			if hash == requestHash {
				WriteJSON(w, http.StatusOK, existing)
				return
			}
			WriteError(w, core.NewAppError(core.ErrConflictIdempotent, "idempotency key reused with a different payload"))
			return
		}
		if !errors.Is(err, store.ErrNotFound) {
			a.log.Error("idempotency lookup failed", zap.Error(err))
			WriteError(w, core.NewAppError(core.ErrInternal, "failed to submit request"))
			return
		}
	}

	created, err := a.queries.CreateRequest(ctx, store.CreateRequestParams{
		UserID:         user.ID,
		TeamID:         *user.TeamID,
		ResourceType:   core.ResourceType(req.ResourceType),
		Name:           req.Name,
		Config:         req.Config,
		IdempotencyKey: idempotencyKey,
		RequestHash:    requestHash,
	})
	if err != nil {
		a.log.Error("create request failed", zap.Error(err))
		WriteError(w, core.NewAppError(core.ErrInternal, "failed to submit request"))
		return
	}

	_ = a.writeAudit(ctx, "request.submitted", &created.ID, nil, req)

	WriteJSON(w, http.StatusCreated, created)
}

// ListMyRequests lists the authenticated user's requests, newest first.
func (a *API) ListMyRequests(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	claims, _ := auth.ClaimsFromContext(ctx)

	requests, err := a.queries.ListRequestsByUser(ctx, claims.UserID)
	if err != nil {
		a.log.Error("list requests failed", zap.Error(err))
		WriteError(w, core.NewAppError(core.ErrInternal, "failed to list requests"))
		return
	}
	WriteJSON(w, http.StatusOK, requests)
}

// GetMyRequest returns one of the authenticated user's requests.
// Requests belonging to other users read as not found.
func (a *API) GetMyRequest(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	claims, _ := auth.ClaimsFromContext(ctx)

	id, err := pathID(r, "id")
	if err != nil {
		WriteError(w, core.NewAppError(core.ErrBadRequest, "invalid request id"))
		return
	}

	req, err := a.queries.GetRequest(ctx, id)
	if err != nil || req.UserID != claims.UserID {
		WriteError(w, core.NewAppError(core.ErrNotFound, "request not found"))
		return
	}
	WriteJSON(w, http.StatusOK, req)
}
