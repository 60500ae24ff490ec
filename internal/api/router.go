package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/lzjever/mbos-irp/internal/api/middleware"
	"github.com/lzjever/mbos-irp/internal/auth"
	"github.com/lzjever/mbos-irp/internal/credentials"
	"github.com/lzjever/mbos-irp/internal/store"
)

type API struct {
	pool        *pgxpool.Pool
	queries     *store.Queries
	authn       *auth.Authenticator
	cipher      *credentials.FieldCipher
	validate    *validator.Validate
	maxAttempts int32
	log         *zap.Logger
}

func NewAPI(pool *pgxpool.Pool, authn *auth.Authenticator, cipher *credentials.FieldCipher, maxAttempts int, log *zap.Logger) *API {
	return &API{
		pool:        pool,
		queries:     store.New(pool),
		authn:       authn,
		cipher:      cipher,
		validate:    validator.New(),
		maxAttempts: int32(maxAttempts),
		log:         log,
	}
}

func (a *API) Router() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Metrics)
	r.Use(middleware.Recoverer(a.log))
	r.Use(middleware.Logger)
	r.Use(chiMiddleware.AllowContentType("application/json"))

	// Health endpoints
	r.Get("/healthz", a.HealthHandler)
	r.Get("/readyz", a.ReadyHandler)

	// API v1 routes
	r.Route("/v1", func(r chi.Router) {
		r.Post("/auth/register", a.Register)
		r.Post("/auth/login", a.Login)

		// Authenticated user surface
		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireAuth(a.authn))

			r.Get("/me", a.GetMe)
			r.Get("/me/team", a.GetMyTeam)
			r.Get("/me/team/members", a.GetMyTeamMembers)

			r.Post("/requests", a.SubmitRequest)
			r.Get("/requests", a.ListMyRequests)
			r.Get("/requests/{id}", a.GetMyRequest)

			// Admin surface
			r.Route("/admin", func(r chi.Router) {
				r.Use(middleware.RequireAdmin)

				r.Get("/users", a.ListUsers)

				r.Get("/requests", a.AdminListRequests)
				r.Get("/requests/{id}", a.AdminGetRequest)
				r.Post("/requests/{id}:approve", a.ApproveRequest)
				r.Post("/requests/{id}:reject", a.RejectRequest)
				r.Post("/requests/{id}:destroy", a.DestroyRequest)

				r.Get("/jobs", a.ListJobs)
				r.Get("/jobs/{job_id}", a.GetJob)

				r.Get("/teams", a.ListTeams)
				r.Post("/teams", a.CreateTeam)
				r.Get("/teams/{id}", a.GetTeam)
				r.Put("/teams/{id}", a.UpdateTeam)
				r.Post("/teams/{id}/members", a.AddTeamMember)
				r.Delete("/teams/{id}/members/{user_id}", a.RemoveTeamMember)

				r.Get("/credentials", a.ListCredentials)
				r.Post("/credentials", a.UpsertCredential)
				r.Get("/credentials/{id}", a.GetCredential)
				r.Delete("/credentials/{id}", a.DeactivateCredential)
			})
		})
	})

	return r
}

// writeAudit records an admin action together with the acting identity.
func (a *API) writeAudit(ctx context.Context, action string, requestID *int64, jobID *string, payload interface{}) error {
	claims, _ := auth.ClaimsFromContext(ctx)
	actor, _ := json.Marshal(map[string]interface{}{
		"source":  "api",
		"user_id": claims.UserID,
		"email":   claims.Email,
	})
	payloadBytes, _ := json.Marshal(payload)

	_, err := a.queries.InsertAudit(ctx, store.InsertAuditParams{
		Actor:     actor,
		Action:    action,
		RequestID: requestID,
		JobID:     jobID,
		Payload:   payloadBytes,
	})
	return err
}

func pathID(r *http.Request, name string) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, name), 10, 64)
}
