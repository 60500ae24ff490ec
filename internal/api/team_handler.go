package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/lzjever/mbos-irp/internal/auth"
	"github.com/lzjever/mbos-irp/internal/core"
	"github.com/lzjever/mbos-irp/internal/store"
)

type CreateTeamBody struct {
	Name        string `json:"name" validate:"required,min=2,max=64"`
	Description string `json:"description" validate:"max=256"`
}

type UpdateTeamBody struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
}

type AddMemberBody struct {
	UserID int64 `json:"user_id" validate:"required"`
}

func (a *API) CreateTeam(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	claims, _ := auth.ClaimsFromContext(ctx)

	var body CreateTeamBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		WriteError(w, core.NewAppError(core.ErrBadRequest, "invalid request body"))
		return
	}
	if err := a.validate.Struct(body); err != nil {
		WriteError(w, core.NewAppError(core.ErrBadRequest, "team name (2-64 chars) is required"))
		return
	}

	if _, err := a.queries.GetTeamByName(ctx, body.Name); err == nil {
		WriteError(w, core.NewAppError(core.ErrConflictExists, "team name already exists"))
		return
	}

	team, err := a.queries.CreateTeam(ctx, store.CreateTeamParams{
		Name:        body.Name,
		Description: body.Description,
		CreatedBy:   claims.UserID,
	})
	if err != nil {
		a.log.Error("create team failed", zap.Error(err))
		WriteError(w, core.NewAppError(core.ErrInternal, "failed to create team"))
		return
	}
	WriteJSON(w, http.StatusCreated, team)
}

func (a *API) ListTeams(w http.ResponseWriter, r *http.Request) {
	teams, err := a.queries.ListTeams(r.Context())
	if err != nil {
		a.log.Error("list teams failed", zap.Error(err))
		WriteError(w, core.NewAppError(core.ErrInternal, "failed to list teams"))
		return
	}
	WriteJSON(w, http.StatusOK, teams)
}

func (a *API) GetTeam(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		WriteError(w, core.NewAppError(core.ErrBadRequest, "invalid team id"))
		return
	}
	team, err := a.queries.GetTeam(r.Context(), id)
	if err != nil {
		WriteError(w, core.NewAppError(core.ErrNotFound, "team not found"))
		return
	}
	WriteJSON(w, http.StatusOK, team)
}

// UpdateTeam renames a team or updates its description. Fields left out
// of the body keep their current value.
func (a *API) UpdateTeam(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, err := pathID(r, "id")
	if err != nil {
		WriteError(w, core.NewAppError(core.ErrBadRequest, "invalid team id"))
		return
	}
	team, err := a.queries.GetTeam(ctx, id)
	if err != nil {
		WriteError(w, core.NewAppError(core.ErrNotFound, "team not found"))
		return
	}

	var body UpdateTeamBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		WriteError(w, core.NewAppError(core.ErrBadRequest, "invalid request body"))
		return
	}

	if body.Name != nil && *body.Name != team.Name {
		if existing, err := a.queries.GetTeamByName(ctx, *body.Name); err == nil && existing.ID != id {
			WriteError(w, core.NewAppError(core.ErrConflictExists, "team name already taken"))
			return
		}
		team.Name = *body.Name
	}
	if body.Description != nil {
		team.Description = *body.Description
	}

	updated, err := a.queries.UpdateTeam(ctx, store.UpdateTeamParams{
		ID:          id,
		Name:        team.Name,
		Description: team.Description,
	})
	if err != nil {
		a.log.Error("update team failed", zap.Error(err))
		WriteError(w, core.NewAppError(core.ErrInternal, "failed to update team"))
		return
	}
	WriteJSON(w, http.StatusOK, updated)
}

func (a *API) AddTeamMember(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	teamID, err := pathID(r, "id")
	if err != nil {
		WriteError(w, core.NewAppError(core.ErrBadRequest, "invalid team id"))
		return
	}
	if _, err := a.queries.GetTeam(ctx, teamID); err != nil {
		WriteError(w, core.NewAppError(core.ErrNotFound, "team not found"))
		return
	}

	var body AddMemberBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.UserID == 0 {
		WriteError(w, core.NewAppError(core.ErrBadRequest, "user_id is required"))
		return
	}

	user, err := a.queries.GetUser(ctx, body.UserID)
	if err != nil {
		WriteError(w, core.NewAppError(core.ErrNotFound, "user not found"))
		return
	}
	if user.TeamID != nil && *user.TeamID == teamID {
		WriteError(w, core.NewAppError(core.ErrConflictExists, "user already in this team"))
		return
	}

	if err := a.queries.SetUserTeam(ctx, body.UserID, &teamID); err != nil {
		a.log.Error("assign team failed", zap.Error(err))
		WriteError(w, core.NewAppError(core.ErrInternal, "failed to add member"))
		return
	}
	WriteJSON(w, http.StatusCreated, map[string]string{
		"message": fmt.Sprintf("user %d added to team %d", body.UserID, teamID),
	})
}

func (a *API) RemoveTeamMember(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	teamID, err := pathID(r, "id")
	if err != nil {
		WriteError(w, core.NewAppError(core.ErrBadRequest, "invalid team id"))
		return
	}
	userID, err := pathID(r, "user_id")
	if err != nil {
		WriteError(w, core.NewAppError(core.ErrBadRequest, "invalid user id"))
		return
	}

	user, err := a.queries.GetUser(ctx, userID)
	if err != nil || user.TeamID == nil || *user.TeamID != teamID {
		WriteError(w, core.NewAppError(core.ErrNotFound, "user not found in this team"))
		return
	}

	if err := a.queries.SetUserTeam(ctx, userID, nil); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			WriteError(w, core.NewAppError(core.ErrNotFound, "user not found"))
			return
		}
		a.log.Error("remove member failed", zap.Error(err))
		WriteError(w, core.NewAppError(core.ErrInternal, "failed to remove member"))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
