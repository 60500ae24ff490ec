package terraform

import (
	"context"
	"strings"
)

// Workflow drives the full lifecycle against a prepared workspace:
// init, plan, then apply and output. With dryRun set it stops after plan
// and reports the plan text; apply never runs.
func Workflow(ctx context.Context, r Runner, dir string, env []string, dryRun bool) (*RunResult, error) {
	if _, err := r.Init(ctx, dir, env); err != nil {
		return nil, err
	}

	planText, err := r.Plan(ctx, dir, env)
	if err != nil {
		return nil, err
	}

	if dryRun {
		return &RunResult{
			DryRun:   true,
			PlanText: planText,
			Summary:  "dry-run plan:\n" + strings.TrimSpace(planText),
		}, nil
	}

	if _, err := r.Apply(ctx, dir, env); err != nil {
		return nil, err
	}

	outputs, err := r.Output(ctx, dir, env)
	if err != nil {
		return nil, err
	}

	return &RunResult{
		PlanText: planText,
		Outputs:  outputs,
		Summary:  FormatOutputs(outputs),
	}, nil
}
