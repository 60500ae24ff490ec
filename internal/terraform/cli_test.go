package terraform

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/lzjever/mbos-irp/internal/core"
)

// writeFakeTool installs a shell script standing in for the tool binary.
func writeFakeTool(t *testing.T, script string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "faketool")
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+script+"\n"), 0o755); err != nil {
		t.Fatalf("write fake tool: %s", err)
	}
	return path
}

func TestRunCapturesStdout(t *testing.T) {
	bin := writeFakeTool(t, `echo "Initializing the backend..."`)
	r := NewCLIRunner(bin, time.Minute)

	out, err := r.Init(context.Background(), t.TempDir(), nil)
	if err != nil {
		t.Fatalf("init failed: %s", err)
	}
	if !strings.Contains(out, "Initializing the backend") {
		t.Errorf("expected captured stdout, got %q", out)
	}
}

func TestRunPassesArgsAndWorkdir(t *testing.T) {
	bin := writeFakeTool(t, `echo "$@" > invoked.txt; pwd >> invoked.txt`)
	r := NewCLIRunner(bin, time.Minute)
	dir := t.TempDir()

	if _, err := r.Plan(context.Background(), dir, nil); err != nil {
		t.Fatalf("plan failed: %s", err)
	}

	recorded, err := os.ReadFile(filepath.Join(dir, "invoked.txt"))
	if err != nil {
		t.Fatalf("read recording: %s", err)
	}
	if !strings.Contains(string(recorded), "plan -input=false -out="+PlanArtifact) {
		t.Errorf("unexpected args: %s", recorded)
	}
	if !strings.Contains(string(recorded), dir) {
		t.Errorf("expected workdir %s in recording: %s", dir, recorded)
	}
}

func TestRunMergesEnv(t *testing.T) {
	bin := writeFakeTool(t, `echo "key=$AWS_ACCESS_KEY_ID automation=$TF_IN_AUTOMATION"`)
	r := NewCLIRunner(bin, time.Minute)

	out, err := r.Init(context.Background(), t.TempDir(), []string{"AWS_ACCESS_KEY_ID=AKIATESTONLY"})
	if err != nil {
		t.Fatalf("init failed: %s", err)
	}
	if !strings.Contains(out, "key=AKIATESTONLY") {
		t.Errorf("expected credential env to reach the tool, got %q", out)
	}
	if !strings.Contains(out, "automation=true") {
		t.Errorf("expected TF_IN_AUTOMATION=true, got %q", out)
	}
}

func TestRunClassifiesExitError(t *testing.T) {
	bin := writeFakeTool(t, `echo "Error: Invalid provider configuration" >&2; exit 1`)
	r := NewCLIRunner(bin, time.Minute)

	_, err := r.Apply(context.Background(), t.TempDir(), nil)
	var perr *core.ProvisionError
	if !errors.As(err, &perr) {
		t.Fatalf("expected ProvisionError, got %v", err)
	}
	if perr.Kind != core.FailureToolExec {
		t.Errorf("expected kind %s, got %s", core.FailureToolExec, perr.Kind)
	}
	if !strings.Contains(perr.Detail, "Invalid provider configuration") {
		t.Errorf("expected stderr in detail, got %q", perr.Detail)
	}
	if !perr.Retryable() {
		t.Error("expected exec failure to be retryable")
	}
}

func TestRunFallsBackToStdout(t *testing.T) {
	bin := writeFakeTool(t, `echo "diagnostics went to stdout"; exit 2`)
	r := NewCLIRunner(bin, time.Minute)

	_, err := r.Init(context.Background(), t.TempDir(), nil)
	var perr *core.ProvisionError
	if !errors.As(err, &perr) {
		t.Fatalf("expected ProvisionError, got %v", err)
	}
	if !strings.Contains(perr.Detail, "diagnostics went to stdout") {
		t.Errorf("expected stdout fallback in detail, got %q", perr.Detail)
	}
}

func TestRunClassifiesMissingBinary(t *testing.T) {
	r := NewCLIRunner("irp-no-such-tool-on-path", time.Minute)

	_, err := r.Init(context.Background(), t.TempDir(), nil)
	var perr *core.ProvisionError
	if !errors.As(err, &perr) {
		t.Fatalf("expected ProvisionError, got %v", err)
	}
	if perr.Kind != core.FailureToolNotFound {
		t.Errorf("expected kind %s, got %s", core.FailureToolNotFound, perr.Kind)
	}
	if perr.Retryable() {
		t.Error("expected missing binary to be terminal")
	}
}

func TestRunClassifiesTimeout(t *testing.T) {
	bin := writeFakeTool(t, `sleep 5`)
	r := NewCLIRunner(bin, 100*time.Millisecond)

	_, err := r.Plan(context.Background(), t.TempDir(), nil)
	var perr *core.ProvisionError
	if !errors.As(err, &perr) {
		t.Fatalf("expected ProvisionError, got %v", err)
	}
	if perr.Kind != core.FailureToolTimeout {
		t.Errorf("expected kind %s, got %s", core.FailureToolTimeout, perr.Kind)
	}
	if !perr.Retryable() {
		t.Error("expected timeout to be retryable")
	}
}
