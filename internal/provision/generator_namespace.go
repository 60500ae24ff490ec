package provision

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/lzjever/mbos-irp/internal/core"
	"github.com/lzjever/mbos-irp/internal/terraform"
)

const (
	defaultCluster = "default"
	defaultQuota   = "standard"
)

// nsQuota maps a friendly quota name to cluster resource limits.
type nsQuota struct {
	CPU    string
	Memory string
}

// nsQuotas is the quota translation table; unknown quota names fall
// back to standard.
var nsQuotas = map[string]nsQuota{
	"small":    {CPU: "2", Memory: "4Gi"},
	"standard": {CPU: "4", Memory: "8Gi"},
	"large":    {CPU: "8", Memory: "16Gi"},
}

// NamespaceGenerator renders the cluster-namespace module configuration:
// a namespace plus a resource quota sized from the request.
type NamespaceGenerator struct {
	Runner      terraform.Runner
	ModulesRoot string
}

func (g *NamespaceGenerator) Generate(ctx context.Context, in GenerateInput) (*terraform.RunResult, error) {
	if err := validateResourceName(in.Request.Name); err != nil {
		return nil, err
	}
	cfg := in.Request.ConfigMap()

	quota, ok := nsQuotas[stringOption(cfg, "quota", defaultQuota)]
	if !ok {
		quota = nsQuotas[defaultQuota]
	}

	mc := moduleConfig{
		Providers: map[string]providerRequirement{
			"kubernetes": {Source: "hashicorp/kubernetes", Version: "~> 2.23"},
		},
		Source: filepath.Join(g.ModulesRoot, "namespace"),
		Variables: map[string]variableDecl{
			"name":         {Type: "string"},
			"cluster":      {Type: "string"},
			"quota_cpu":    {Type: "string"},
			"quota_memory": {Type: "string"},
		},
		Values: map[string]any{
			"name":         in.Request.Name,
			"cluster":      stringOption(cfg, "cluster", defaultCluster),
			"quota_cpu":    quota.CPU,
			"quota_memory": quota.Memory,
		},
		Outputs: []string{"namespace", "cluster"},
	}
	if err := mc.emit(in.Dir); err != nil {
		return nil, core.NewProvisionError(core.FailureTransient, "generate", fmt.Errorf("write namespace config: %w", err))
	}

	return terraform.Workflow(ctx, g.Runner, in.Dir, in.Env, in.DryRun)
}
