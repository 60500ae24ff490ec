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

type RegisterRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Username string `json:"username" validate:"required,min=3,max=32"`
	Password string `json:"password" validate:"required,min=8"`
}

type LoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type TokenResponse struct {
	Token string    `json:"token"`
	User  core.User `json:"user"`
}

// Register creates a user account. Accounts start without a team and
// without admin rights; both are granted by an admin afterwards.
func (a *API) Register(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, core.NewAppError(core.ErrBadRequest, "invalid request body"))
		return
	}
	if err := a.validate.Struct(req); err != nil {
		WriteError(w, core.NewAppError(core.ErrBadRequest, "email, username (3-32 chars) and password (min 8 chars) are required"))
		return
	}

	if _, err := a.queries.GetUserByEmail(ctx, req.Email); err == nil {
		WriteError(w, core.NewAppError(core.ErrConflictExists, "email already registered"))
		return
	}
	if _, err := a.queries.GetUserByUsername(ctx, req.Username); err == nil {
		WriteError(w, core.NewAppError(core.ErrConflictExists, "username already taken"))
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		a.log.Error("password hash failed", zap.Error(err))
		WriteError(w, core.NewAppError(core.ErrInternal, "failed to register"))
		return
	}

	user, err := a.queries.CreateUser(ctx, store.CreateUserParams{
		Email:        req.Email,
		Username:     req.Username,
		PasswordHash: hash,
	})
	if err != nil {
		a.log.Error("create user failed", zap.Error(err))
		WriteError(w, core.NewAppError(core.ErrInternal, "failed to register"))
		return
	}

	WriteJSON(w, http.StatusCreated, user)
}

// Login exchanges username and password for a bearer token. The reason
// for a rejection is never disclosed.
func (a *API) Login(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, core.NewAppError(core.ErrBadRequest, "invalid request body"))
		return
	}
	if err := a.validate.Struct(req); err != nil {
		WriteError(w, core.NewAppError(core.ErrBadRequest, "username and password are required"))
		return
	}

	user, err := a.queries.GetUserByUsername(ctx, req.Username)
	if err != nil || !auth.CheckPassword(user.PasswordHash, req.Password) {
		WriteError(w, core.NewAppError(core.ErrUnauthorized, "invalid username or password"))
		return
	}

	token, err := a.authn.MintToken(user)
	if err != nil {
		a.log.Error("token mint failed", zap.Error(err))
		WriteError(w, core.NewAppError(core.ErrInternal, "failed to log in"))
		return
	}

	WriteJSON(w, http.StatusOK, TokenResponse{Token: token, User: user})
}

// GetMe returns the authenticated user.
func (a *API) GetMe(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	claims, _ := auth.ClaimsFromContext(ctx)

	user, err := a.queries.GetUser(ctx, claims.UserID)
	if err != nil {
		WriteError(w, core.NewAppError(core.ErrNotFound, "user not found"))
		return
	}
	WriteJSON(w, http.StatusOK, user)
}

// GetMyTeam returns the team the authenticated user belongs to.
func (a *API) GetMyTeam(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	claims, _ := auth.ClaimsFromContext(ctx)

	user, err := a.queries.GetUser(ctx, claims.UserID)
	if err != nil || user.TeamID == nil {
		WriteError(w, core.NewAppError(core.ErrNotFound, "you are not in a team"))
		return
	}

	team, err := a.queries.GetTeam(ctx, *user.TeamID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			WriteError(w, core.NewAppError(core.ErrNotFound, "team not found"))
			return
		}
		a.log.Error("get team failed", zap.Error(err))
		WriteError(w, core.NewAppError(core.ErrInternal, "failed to load team"))
		return
	}
	WriteJSON(w, http.StatusOK, team)
}

// GetMyTeamMembers lists the members of the authenticated user's team.
func (a *API) GetMyTeamMembers(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	claims, _ := auth.ClaimsFromContext(ctx)

	user, err := a.queries.GetUser(ctx, claims.UserID)
	if err != nil || user.TeamID == nil {
		WriteError(w, core.NewAppError(core.ErrNotFound, "you are not in a team"))
		return
	}

	members, err := a.queries.ListUsersByTeam(ctx, *user.TeamID)
	if err != nil {
		a.log.Error("list team members failed", zap.Error(err))
		WriteError(w, core.NewAppError(core.ErrInternal, "failed to list members"))
		return
	}
	WriteJSON(w, http.StatusOK, members)
}
