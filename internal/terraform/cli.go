package terraform

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/lzjever/mbos-irp/internal/core"
	"github.com/lzjever/mbos-irp/internal/observability"
)

const (
	defaultBinary      = "terraform"
	defaultStepTimeout = 600 * time.Second

	// maxDiag bounds captured diagnostics before they reach error values.
	maxDiag = 8192
)

// CLIRunner invokes the real tool binary. Every step runs with the
// workspace as working directory and its own wall-clock timeout.
type CLIRunner struct {
	binary  string
	timeout time.Duration
}

func NewCLIRunner(binary string, stepTimeout time.Duration) *CLIRunner {
	if binary == "" {
		binary = defaultBinary
	}
	if stepTimeout <= 0 {
		stepTimeout = defaultStepTimeout
	}
	return &CLIRunner{binary: binary, timeout: stepTimeout}
}

func (c *CLIRunner) Init(ctx context.Context, dir string, env []string) (string, error) {
	return c.run(ctx, dir, env, "init", "-input=false")
}

func (c *CLIRunner) Plan(ctx context.Context, dir string, env []string) (string, error) {
	return c.run(ctx, dir, env, "plan", "-input=false", "-out="+PlanArtifact)
}

func (c *CLIRunner) Apply(ctx context.Context, dir string, env []string) (string, error) {
	return c.run(ctx, dir, env, "apply", "-input=false", "-auto-approve", PlanArtifact)
}

func (c *CLIRunner) Output(ctx context.Context, dir string, env []string) (map[string]OutputValue, error) {
	raw, err := c.run(ctx, dir, env, "output", "-json")
	if err != nil {
		return nil, err
	}
	return ParseOutputs(raw)
}

func (c *CLIRunner) Destroy(ctx context.Context, dir string, env []string) (string, error) {
	return c.run(ctx, dir, env, "destroy", "-input=false", "-auto-approve")
}

// run executes one tool step and classifies any failure: missing binary,
// wall-clock timeout, non-zero exit with captured stderr (stdout when
// stderr is empty), or a spawn-level fault.
func (c *CLIRunner) run(ctx context.Context, dir string, env []string, args ...string) (string, error) {
	step := args[0]
	stepCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	cmd := exec.CommandContext(stepCtx, c.binary, args...)
	cmd.Dir = dir
	cmd.Env = append(append(os.Environ(), "TF_IN_AUTOMATION=true"), env...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	err := cmd.Run()
	observability.ToolStepDuration.WithLabelValues(step).Observe(time.Since(start).Seconds())
	if err == nil {
		return stdout.String(), nil
	}

	diag := strings.TrimSpace(stderr.String())
	if diag == "" {
		diag = strings.TrimSpace(stdout.String())
	}
	if len(diag) > maxDiag {
		diag = diag[:maxDiag]
	}

	kind := core.FailureTransient
	switch {
	case errors.Is(err, exec.ErrNotFound):
		kind = core.FailureToolNotFound
		err = fmt.Errorf("%s not installed: %w", c.binary, err)
	case stepCtx.Err() == context.DeadlineExceeded && ctx.Err() == nil:
		kind = core.FailureToolTimeout
		err = fmt.Errorf("step exceeded %s: %w", c.timeout, err)
	default:
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			kind = core.FailureToolExec
		}
	}
	observability.ToolStepFailTotal.WithLabelValues(step, string(kind)).Inc()
	return "", &core.ProvisionError{Kind: kind, Op: step, Err: err, Detail: diag}
}
