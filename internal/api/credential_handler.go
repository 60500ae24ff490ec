package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/lzjever/mbos-irp/internal/auth"
	"github.com/lzjever/mbos-irp/internal/core"
	"github.com/lzjever/mbos-irp/internal/store"
)

type UpsertCredentialBody struct {
	TeamID          *int64 `json:"team_id"` // nil configures the global fallback
	AccessKeyID     string `json:"access_key_id" validate:"required"`
	SecretAccessKey string `json:"secret_access_key" validate:"required"`
	SessionToken    string `json:"session_token"`
	Region          string `json:"region" validate:"required"`
}

// CredentialResponse is the credential row without any key material,
// sealed or otherwise.
type CredentialResponse struct {
	ID        int64     `json:"id"`
	TeamID    *int64    `json:"team_id,omitempty"`
	Region    string    `json:"region"`
	IsActive  bool      `json:"is_active"`
	CreatedBy int64     `json:"created_by"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func credentialToResponse(c core.TeamCredential) CredentialResponse {
	return CredentialResponse{
		ID:        c.ID,
		TeamID:    c.TeamID,
		Region:    c.Region,
		IsActive:  c.IsActive,
		CreatedBy: c.CreatedBy,
		CreatedAt: c.CreatedAt,
		UpdatedAt: c.UpdatedAt,
	}
}

// UpsertCredential stores cloud credentials for a team, or the global
// fallback when team_id is absent. Key material is sealed before it
// touches the store and never appears in responses or the audit log.
func (a *API) UpsertCredential(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	claims, _ := auth.ClaimsFromContext(ctx)

	var body UpsertCredentialBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		WriteError(w, core.NewAppError(core.ErrBadRequest, "invalid request body"))
		return
	}
	if err := a.validate.Struct(body); err != nil {
		WriteError(w, core.NewAppError(core.ErrBadRequest, "access_key_id, secret_access_key and region are required"))
		return
	}

	if body.TeamID != nil {
		if _, err := a.queries.GetTeam(ctx, *body.TeamID); err != nil {
			WriteError(w, core.NewAppError(core.ErrNotFound, "team not found"))
			return
		}
	}

	accessKeySealed, err := a.cipher.Seal(body.AccessKeyID)
	if err != nil {
		a.log.Error("seal failed", zap.Error(err))
		WriteError(w, core.NewAppError(core.ErrInternal, "failed to store credentials"))
		return
	}
	secretKeySealed, err := a.cipher.Seal(body.SecretAccessKey)
	if err != nil {
		a.log.Error("seal failed", zap.Error(err))
		WriteError(w, core.NewAppError(core.ErrInternal, "failed to store credentials"))
		return
	}
	var sessionTokenSealed string
	if body.SessionToken != "" {
		sessionTokenSealed, err = a.cipher.Seal(body.SessionToken)
		if err != nil {
			a.log.Error("seal failed", zap.Error(err))
			WriteError(w, core.NewAppError(core.ErrInternal, "failed to store credentials"))
			return
		}
	}

	cred, err := a.queries.UpsertCredential(ctx, store.UpsertCredentialParams{
		TeamID:             body.TeamID,
		AccessKeyIDSealed:  accessKeySealed,
		SecretKeySealed:    secretKeySealed,
		SessionTokenSealed: sessionTokenSealed,
		Region:             body.Region,
		CreatedBy:          claims.UserID,
	})
	if err != nil {
		a.log.Error("upsert credential failed", zap.Error(err))
		WriteError(w, core.NewAppError(core.ErrInternal, "failed to store credentials"))
		return
	}

	// Audit carries scope only, never the keys.
	_ = a.writeAudit(ctx, "credential.upserted", nil, nil, map[string]interface{}{
		"credential_id": cred.ID,
		"team_id":       cred.TeamID,
		"region":        cred.Region,
	})

	WriteJSON(w, http.StatusOK, credentialToResponse(cred))
}

// ListCredentials lists active credential rows without key material.
func (a *API) ListCredentials(w http.ResponseWriter, r *http.Request) {
	creds, err := a.queries.ListCredentials(r.Context())
	if err != nil {
		a.log.Error("list credentials failed", zap.Error(err))
		WriteError(w, core.NewAppError(core.ErrInternal, "failed to list credentials"))
		return
	}
	resp := make([]CredentialResponse, len(creds))
	for i, c := range creds {
		resp[i] = credentialToResponse(c)
	}
	WriteJSON(w, http.StatusOK, resp)
}

func (a *API) GetCredential(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		WriteError(w, core.NewAppError(core.ErrBadRequest, "invalid credential id"))
		return
	}
	cred, err := a.queries.GetCredential(r.Context(), id)
	if err != nil {
		WriteError(w, core.NewAppError(core.ErrNotFound, "credentials not found"))
		return
	}
	WriteJSON(w, http.StatusOK, credentialToResponse(cred))
}

// DeactivateCredential soft deletes a credential row. Workers stop
// resolving it immediately; history is kept for audit.
func (a *API) DeactivateCredential(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, err := pathID(r, "id")
	if err != nil {
		WriteError(w, core.NewAppError(core.ErrBadRequest, "invalid credential id"))
		return
	}
	if err := a.queries.DeactivateCredential(ctx, id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			WriteError(w, core.NewAppError(core.ErrNotFound, "credentials not found"))
			return
		}
		a.log.Error("deactivate credential failed", zap.Error(err))
		WriteError(w, core.NewAppError(core.ErrInternal, "failed to deactivate credentials"))
		return
	}

	_ = a.writeAudit(ctx, "credential.deactivated", nil, nil, map[string]interface{}{"credential_id": id})

	w.WriteHeader(http.StatusNoContent)
}
