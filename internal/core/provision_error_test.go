package core

import (
	"errors"
	"fmt"
	"testing"
)

func TestFailureKindRetryable(t *testing.T) {
	retryable := []FailureKind{FailureToolTimeout, FailureToolExec, FailureTransient}
	for _, k := range retryable {
		if !k.Retryable() {
			t.Errorf("expected %s to be retryable", k)
		}
	}
	terminal := []FailureKind{FailureNotFound, FailureInvalidState, FailureUnknownType, FailureToolNotFound}
	for _, k := range terminal {
		if k.Retryable() {
			t.Errorf("expected %s to be terminal", k)
		}
	}
}

func TestIsRetryableWrapped(t *testing.T) {
	perr := NewProvisionError(FailureToolNotFound, "plan", errors.New("exec: \"terraform\": executable file not found in $PATH"))
	wrapped := fmt.Errorf("attempt 1: %w", perr)
	if IsRetryable(wrapped) {
		t.Error("expected wrapped tool-not-found to be non-retryable")
	}
	if KindOf(wrapped) != FailureToolNotFound {
		t.Errorf("expected kind %s, got %s", FailureToolNotFound, KindOf(wrapped))
	}
}

func TestIsRetryableUntyped(t *testing.T) {
	if !IsRetryable(errors.New("connection refused")) {
		t.Error("expected untyped error to default to retryable")
	}
	if KindOf(errors.New("connection refused")) != FailureTransient {
		t.Error("expected untyped error to classify as transient")
	}
}

func TestProvisionErrorMessage(t *testing.T) {
	perr := &ProvisionError{Kind: FailureToolExec, Op: "apply", Detail: "Error: creating DB instance: quota exceeded"}
	msg := perr.Error()
	if msg != "apply: TOOL_EXECUTION: Error: creating DB instance: quota exceeded" {
		t.Errorf("unexpected message: %s", msg)
	}
}
