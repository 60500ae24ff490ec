// Package terraform drives the external provisioning tool through its
// init/plan/apply/output/destroy lifecycle as bounded child processes.
// The tool is a black box: this package only knows its subcommand and
// exit-code contract.
package terraform

import "context"

// PlanArtifact is the file name of the saved plan inside a workspace.
const PlanArtifact = "tfplan"

// Runner executes single tool steps against a workspace directory.
// env entries are appended to the inherited process environment.
type Runner interface {
	Init(ctx context.Context, dir string, env []string) (string, error)
	Plan(ctx context.Context, dir string, env []string) (string, error)
	Apply(ctx context.Context, dir string, env []string) (string, error)
	Output(ctx context.Context, dir string, env []string) (map[string]OutputValue, error)
	Destroy(ctx context.Context, dir string, env []string) (string, error)
}

// OutputValue is one entry of the tool's structured output report.
type OutputValue struct {
	Value     any  `json:"value"`
	Type      any  `json:"type"`
	Sensitive bool `json:"sensitive"`
}

// RunResult is the outcome of one successful workflow run.
type RunResult struct {
	DryRun   bool
	PlanText string
	Outputs  map[string]OutputValue
	Summary  string
}
