// Package provision turns approved resource requests into real
// infrastructure. The orchestrator owns the request status state
// machine for an attempt: it claims the request, prepares a workspace,
// routes to the type's config generator, and reconciles the stored
// status with the engine outcome.
package provision

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/lzjever/mbos-irp/internal/core"
	"github.com/lzjever/mbos-irp/internal/credentials"
	"github.com/lzjever/mbos-irp/internal/observability"
	"github.com/lzjever/mbos-irp/internal/store"
	"github.com/lzjever/mbos-irp/internal/terraform"
	"github.com/lzjever/mbos-irp/internal/workspace"
)

type OutcomeCode string

const (
	OutcomeProvisioned OutcomeCode = "provisioned"
	OutcomeFailed      OutcomeCode = "failed"
	OutcomeSkipped     OutcomeCode = "skipped"
	OutcomeDestroyed   OutcomeCode = "destroyed"
)

// Outcome is the business result of one completed attempt. A returned
// Outcome means the request's stored status reflects it; faults that
// left the request short of a terminal status surface as errors
// instead, for the queue's retry wrapper to judge.
type Outcome struct {
	Code   OutcomeCode `json:"outcome"`
	Reason string      `json:"reason,omitempty"` // why the attempt was skipped
	Output string      `json:"output,omitempty"` // sanitized engine output
}

// RequestStore is the narrow slice of the persistence layer an attempt
// drives. Every status write is a compare-and-set so no attempt can
// overwrite a transition it does not own.
type RequestStore interface {
	GetRequest(ctx context.Context, id int64) (core.ResourceRequest, error)
	CompareAndSetRequestStatus(ctx context.Context, arg store.CompareAndSetRequestStatusParams) (bool, error)
	AppendRequestNotes(ctx context.Context, id int64, text string) error
}

// CredentialSource resolves the tool process environment for a team.
type CredentialSource interface {
	Resolve(ctx context.Context, teamID int64) (credentials.Resolved, error)
}

type Orchestrator struct {
	store  RequestStore
	ws     *workspace.Manager
	router *Router
	runner terraform.Runner // destroy runs against recorded state, outside any generator
	creds  CredentialSource
	log    *zap.Logger
}

func NewOrchestrator(st RequestStore, ws *workspace.Manager, router *Router, runner terraform.Runner, creds CredentialSource, log *zap.Logger) *Orchestrator {
	return &Orchestrator{store: st, ws: ws, router: router, runner: runner, creds: creds, log: log}
}

// Provision runs one provisioning attempt for a request. Only requests
// in approved status are acted on; the approved to provisioning claim
// is a store-level compare-and-set, so at most one attempt ever runs
// the engine against a given workspace.
func (o *Orchestrator) Provision(ctx context.Context, requestID int64, dryRun bool) (Outcome, error) {
	log := o.log.With(zap.Int64("request_id", requestID))

	req, err := o.store.GetRequest(ctx, requestID)
	if errors.Is(err, store.ErrNotFound) {
		return Outcome{}, core.NewProvisionError(core.FailureNotFound, "provision",
			fmt.Errorf("request %d not found", requestID))
	}
	if err != nil {
		return Outcome{}, core.NewProvisionError(core.FailureTransient, "provision",
			fmt.Errorf("load request: %w", err))
	}

	if req.Status != core.StatusApproved {
		log.Info("skipping request not in approved status", zap.String("status", string(req.Status)))
		observability.ProvisionOutcomeTotal.WithLabelValues("provision", string(OutcomeSkipped)).Inc()
		return Outcome{Code: OutcomeSkipped, Reason: fmt.Sprintf("request is %s, not approved", req.Status)}, nil
	}

	claimed, err := o.setStatus(ctx, requestID, core.StatusApproved, core.StatusProvisioning)
	if err != nil {
		return Outcome{}, err
	}
	if !claimed {
		log.Info("lost provisioning claim race")
		observability.ProvisionOutcomeTotal.WithLabelValues("provision", string(OutcomeSkipped)).Inc()
		return Outcome{Code: OutcomeSkipped, Reason: "already in progress"}, nil
	}
	log.Info("claimed request for provisioning",
		zap.String("resource_type", string(req.ResourceType)), zap.Bool("dry_run", dryRun))

	// Routing happens before any workspace I/O: an unknown type must
	// fail without touching disk.
	gen, routeErr := o.router.Route(req.ResourceType)
	if routeErr != nil {
		return o.finalizeFailed(ctx, log, requestID, NewSanitizer(), routeErr)
	}

	sanitizer := NewSanitizer()
	resolved, err := o.creds.Resolve(ctx, req.TeamID)
	if err != nil {
		return Outcome{}, core.NewProvisionError(core.FailureTransient, "provision",
			fmt.Errorf("resolve credentials: %w", err))
	}
	for _, s := range resolved.Secrets {
		sanitizer.Add(s)
	}

	existed := o.ws.Exists(requestID)
	dir, err := o.ws.Ensure(requestID)
	if err != nil {
		return Outcome{}, core.NewProvisionError(core.FailureTransient, "provision", err)
	}
	if !existed {
		observability.WorkspacesActive.Inc()
	}

	result, genErr := gen.Generate(ctx, GenerateInput{
		Request: req,
		Dir:     dir,
		Env:     resolved.Env,
		DryRun:  dryRun,
		Secrets: sanitizer,
	})
	if genErr != nil {
		if core.KindOf(genErr) == core.FailureTransient {
			// The request stays claimed; the retry wrapper decides
			// what happens next.
			return Outcome{}, scrub(sanitizer, genErr)
		}
		return o.finalizeFailed(ctx, log, requestID, sanitizer, genErr)
	}

	committed, err := o.setStatus(ctx, requestID, core.StatusProvisioning, core.StatusProvisioned)
	if err != nil {
		return Outcome{}, err
	}
	if !committed {
		return Outcome{}, core.NewProvisionError(core.FailureTransient, "provision",
			fmt.Errorf("request %d left provisioning under our claim", requestID))
	}
	output := sanitizer.Clean(result.Summary)
	if err := o.store.AppendRequestNotes(ctx, requestID, "Provisioned successfully:\n"+output); err != nil {
		return Outcome{}, core.NewProvisionError(core.FailureTransient, "provision",
			fmt.Errorf("append notes: %w", err))
	}

	log.Info("request provisioned", zap.Bool("dry_run", result.DryRun))
	observability.ProvisionOutcomeTotal.WithLabelValues("provision", string(OutcomeProvisioned)).Inc()
	return Outcome{Code: OutcomeProvisioned, Output: output}, nil
}

// Destroy tears down a previously provisioned request. The workspace
// holds the only record of what exists remotely, so it is removed on
// success and deliberately preserved on failure.
func (o *Orchestrator) Destroy(ctx context.Context, requestID int64) (Outcome, error) {
	log := o.log.With(zap.Int64("request_id", requestID))

	req, err := o.store.GetRequest(ctx, requestID)
	if errors.Is(err, store.ErrNotFound) {
		return Outcome{}, core.NewProvisionError(core.FailureNotFound, "destroy",
			fmt.Errorf("request %d not found", requestID))
	}
	if err != nil {
		return Outcome{}, core.NewProvisionError(core.FailureTransient, "destroy",
			fmt.Errorf("load request: %w", err))
	}

	if req.Status != core.StatusProvisioned && req.Status != core.StatusFailed {
		log.Info("skipping destroy for request not in a destroyable status", zap.String("status", string(req.Status)))
		observability.ProvisionOutcomeTotal.WithLabelValues("destroy", string(OutcomeSkipped)).Inc()
		return Outcome{Code: OutcomeSkipped, Reason: fmt.Sprintf("request is %s, nothing to destroy", req.Status)}, nil
	}
	if !o.ws.Exists(requestID) {
		return Outcome{}, core.NewProvisionError(core.FailureNotFound, "destroy",
			fmt.Errorf("workspace for request %d does not exist", requestID))
	}

	sanitizer := NewSanitizer()
	resolved, err := o.creds.Resolve(ctx, req.TeamID)
	if err != nil {
		return Outcome{}, core.NewProvisionError(core.FailureTransient, "destroy",
			fmt.Errorf("resolve credentials: %w", err))
	}
	for _, s := range resolved.Secrets {
		sanitizer.Add(s)
	}

	if _, err := o.runner.Destroy(ctx, o.ws.Path(requestID), resolved.Env); err != nil {
		// Status intentionally unchanged: the state file still
		// describes live infrastructure, so the attempt may retry.
		note := "Destroy failed: " + sanitizer.Clean(errText(err))
		if aerr := o.store.AppendRequestNotes(ctx, requestID, note); aerr != nil {
			log.Warn("could not record destroy failure", zap.Error(aerr))
		}
		observability.ProvisionOutcomeTotal.WithLabelValues("destroy", string(OutcomeFailed)).Inc()
		return Outcome{}, scrub(sanitizer, err)
	}

	committed, err := o.setStatus(ctx, requestID, req.Status, core.StatusDestroyed)
	if err != nil {
		return Outcome{}, err
	}
	if !committed {
		return Outcome{}, core.NewProvisionError(core.FailureTransient, "destroy",
			fmt.Errorf("request %d changed status during destroy", requestID))
	}
	if err := o.store.AppendRequestNotes(ctx, requestID, "Resources destroyed"); err != nil {
		return Outcome{}, core.NewProvisionError(core.FailureTransient, "destroy",
			fmt.Errorf("append notes: %w", err))
	}

	if err := o.ws.Remove(requestID); err != nil {
		log.Warn("workspace left behind after destroy", zap.Error(err))
	} else {
		observability.WorkspacesActive.Dec()
	}

	log.Info("request destroyed")
	observability.ProvisionOutcomeTotal.WithLabelValues("destroy", string(OutcomeDestroyed)).Inc()
	return Outcome{Code: OutcomeDestroyed, Output: "resources destroyed"}, nil
}

// finalizeFailed commits the failed status and the sanitized failure
// text for a non-transient generator or engine error. The attempt is
// complete at that point, so no error propagates to the retry wrapper.
func (o *Orchestrator) finalizeFailed(ctx context.Context, log *zap.Logger, requestID int64, sanitizer *Sanitizer, cause error) (Outcome, error) {
	committed, err := o.setStatus(ctx, requestID, core.StatusProvisioning, core.StatusFailed)
	if err != nil {
		return Outcome{}, err
	}
	if !committed {
		return Outcome{}, core.NewProvisionError(core.FailureTransient, "provision",
			fmt.Errorf("request %d left provisioning under our claim", requestID))
	}
	detail := sanitizer.Clean(errText(cause))
	if err := o.store.AppendRequestNotes(ctx, requestID, "Provisioning failed: "+detail); err != nil {
		return Outcome{}, core.NewProvisionError(core.FailureTransient, "provision",
			fmt.Errorf("append notes: %w", err))
	}

	log.Warn("request provisioning failed",
		zap.String("kind", string(core.KindOf(cause))), zap.Error(cause))
	observability.ProvisionOutcomeTotal.WithLabelValues("provision", string(OutcomeFailed)).Inc()
	return Outcome{Code: OutcomeFailed, Output: detail}, nil
}

// setStatus performs one compare-and-set transition. Store faults are
// transient; a false return means the expected status no longer holds.
func (o *Orchestrator) setStatus(ctx context.Context, requestID int64, from, to core.RequestStatus) (bool, error) {
	ok, err := o.store.CompareAndSetRequestStatus(ctx, store.CompareAndSetRequestStatusParams{
		ID: requestID, Expected: from, Next: to,
	})
	if err != nil {
		return false, core.NewProvisionError(core.FailureTransient, "provision",
			fmt.Errorf("set status %s: %w", to, err))
	}
	if ok {
		observability.RequestStateTransitions.WithLabelValues(string(from), string(to)).Inc()
	}
	return ok, nil
}

// errText prefers the captured tool diagnostics over the Go error chain.
func errText(err error) string {
	var perr *core.ProvisionError
	if errors.As(err, &perr) && perr.Detail != "" {
		return perr.Detail
	}
	return err.Error()
}

// scrub redacts registered secrets from an error's captured diagnostics
// before it leaves the attempt.
func scrub(s *Sanitizer, err error) error {
	var perr *core.ProvisionError
	if errors.As(err, &perr) {
		perr.Detail = s.Clean(perr.Detail)
	}
	return err
}
