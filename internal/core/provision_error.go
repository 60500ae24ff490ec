package core

import (
	"errors"
	"fmt"
)

// FailureKind classifies why a provisioning or destroy attempt could not
// complete. The kind decides whether the queue may retry the attempt.
type FailureKind string

const (
	// FailureNotFound: the request (or, for destroy, its workspace) does not exist.
	FailureNotFound FailureKind = "NOT_FOUND"
	// FailureInvalidState: the request is not in a status the operation acts on.
	FailureInvalidState FailureKind = "INVALID_STATE"
	// FailureUnknownType: no generator is registered for the resource type.
	FailureUnknownType FailureKind = "UNKNOWN_RESOURCE_TYPE"
	// FailureToolNotFound: the provisioning tool binary is not installed.
	FailureToolNotFound FailureKind = "TOOL_NOT_FOUND"
	// FailureToolTimeout: a tool step exceeded its wall-clock timeout.
	FailureToolTimeout FailureKind = "TOOL_TIMEOUT"
	// FailureToolExec: a tool step exited non-zero.
	FailureToolExec FailureKind = "TOOL_EXECUTION"
	// FailureTransient: store or filesystem fault outside the tool itself.
	FailureTransient FailureKind = "TRANSIENT"
)

// Retryable reports whether the queue may re-run an attempt that failed
// with this kind.
func (k FailureKind) Retryable() bool {
	switch k {
	case FailureToolTimeout, FailureToolExec, FailureTransient:
		return true
	}
	return false
}

// ProvisionError is the typed failure returned by the orchestrator and the
// execution engine. Detail carries captured tool diagnostics when present.
type ProvisionError struct {
	Kind   FailureKind
	Op     string
	Detail string
	Err    error
}

func (e *ProvisionError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Op, e.Kind)
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	if e.Detail != "" {
		msg = fmt.Sprintf("%s: %s", msg, e.Detail)
	}
	return msg
}

func (e *ProvisionError) Unwrap() error {
	return e.Err
}

func (e *ProvisionError) Retryable() bool {
	return e.Kind.Retryable()
}

// NewProvisionError builds a ProvisionError for op with the given kind.
func NewProvisionError(kind FailureKind, op string, err error) *ProvisionError {
	return &ProvisionError{Kind: kind, Op: op, Err: err}
}

// IsRetryable reports whether err carries a retryable failure kind.
// Errors outside the taxonomy count as transient faults.
func IsRetryable(err error) bool {
	var perr *ProvisionError
	if errors.As(err, &perr) {
		return perr.Retryable()
	}
	return true
}

// KindOf extracts the failure kind from err, defaulting to FailureTransient
// for untyped errors.
func KindOf(err error) FailureKind {
	var perr *ProvisionError
	if errors.As(err, &perr) {
		return perr.Kind
	}
	return FailureTransient
}
