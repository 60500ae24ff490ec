package provision

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/lzjever/mbos-irp/internal/core"
	"github.com/lzjever/mbos-irp/internal/terraform"
)

const defaultStorageRegion = "us-east-1"

// ObjectStorageGenerator renders the object-storage bucket module
// configuration. Buckets are private unless the request opts in.
type ObjectStorageGenerator struct {
	Runner      terraform.Runner
	ModulesRoot string
}

func (g *ObjectStorageGenerator) Generate(ctx context.Context, in GenerateInput) (*terraform.RunResult, error) {
	if err := validateResourceName(in.Request.Name); err != nil {
		return nil, err
	}
	cfg := in.Request.ConfigMap()

	mc := moduleConfig{
		Providers: map[string]providerRequirement{
			"aws": {Source: "hashicorp/aws", Version: "~> 5.0"},
		},
		Source: filepath.Join(g.ModulesRoot, "object_storage"),
		Variables: map[string]variableDecl{
			"name":   {Type: "string"},
			"region": {Type: "string"},
			"public": {Type: "bool"},
		},
		Values: map[string]any{
			"name":   in.Request.Name,
			"region": stringOption(cfg, "region", defaultStorageRegion),
			"public": boolOption(cfg, "public", false),
		},
		Outputs: []string{"bucket_name", "bucket_arn"},
	}
	if err := mc.emit(in.Dir); err != nil {
		return nil, core.NewProvisionError(core.FailureTransient, "generate", fmt.Errorf("write object storage config: %w", err))
	}

	return terraform.Workflow(ctx, g.Runner, in.Dir, in.Env, in.DryRun)
}
