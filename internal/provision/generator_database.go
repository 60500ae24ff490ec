package provision

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/lzjever/mbos-irp/internal/core"
	"github.com/lzjever/mbos-irp/internal/terraform"
)

const (
	defaultDBEngine = "postgres"
	defaultDBSize   = "small"

	dbMasterUsername = "dbadmin"
)

// dbTier maps a friendly size name to concrete instance sizing.
type dbTier struct {
	InstanceClass string
	StorageGB     int
}

// dbSizes is the size translation table. Requests carrying a size not
// listed here fall back to the small tier rather than failing.
var dbSizes = map[string]dbTier{
	"small":  {InstanceClass: "db.t3.micro", StorageGB: 20},
	"medium": {InstanceClass: "db.t3.medium", StorageGB: 50},
	"large":  {InstanceClass: "db.r5.large", StorageGB: 100},
}

// dbEngineVersions pins the version provisioned for each supported
// engine. Unsupported engines fall back to postgres entirely.
var dbEngineVersions = map[string]string{
	"postgres": "15.4",
	"mysql":    "8.0",
	"mariadb":  "10.11",
}

// DatabaseGenerator renders the managed-database module configuration
// and runs the engine workflow against it. It mints the instance's
// master password; the password reaches only the variable file.
type DatabaseGenerator struct {
	Runner      terraform.Runner
	ModulesRoot string
}

func (g *DatabaseGenerator) Generate(ctx context.Context, in GenerateInput) (*terraform.RunResult, error) {
	if err := validateResourceName(in.Request.Name); err != nil {
		return nil, err
	}
	cfg := in.Request.ConfigMap()

	engine := stringOption(cfg, "engine", defaultDBEngine)
	version, ok := dbEngineVersions[engine]
	if !ok {
		engine = defaultDBEngine
		version = dbEngineVersions[defaultDBEngine]
	}
	tier, ok := dbSizes[stringOption(cfg, "size", defaultDBSize)]
	if !ok {
		tier = dbSizes[defaultDBSize]
	}

	password, err := newMasterPassword()
	if err != nil {
		return nil, core.NewProvisionError(core.FailureTransient, "generate", err)
	}
	in.Secrets.Add(password)

	mc := moduleConfig{
		Providers: map[string]providerRequirement{
			"aws": {Source: "hashicorp/aws", Version: "~> 5.0"},
		},
		Source: filepath.Join(g.ModulesRoot, "database"),
		Variables: map[string]variableDecl{
			"name":                 {Type: "string"},
			"engine":               {Type: "string"},
			"engine_version":       {Type: "string"},
			"instance_class":       {Type: "string"},
			"allocated_storage_gb": {Type: "number"},
			"master_username":      {Type: "string"},
			"master_password":      {Type: "string", Sensitive: true},
		},
		Values: map[string]any{
			"name":                 in.Request.Name,
			"engine":               engine,
			"engine_version":       version,
			"instance_class":       tier.InstanceClass,
			"allocated_storage_gb": tier.StorageGB,
			"master_username":      dbMasterUsername,
			"master_password":      password,
		},
		Outputs: []string{"endpoint", "port", "identifier"},
	}
	if err := mc.emit(in.Dir); err != nil {
		return nil, core.NewProvisionError(core.FailureTransient, "generate", fmt.Errorf("write database config: %w", err))
	}

	return terraform.Workflow(ctx, g.Runner, in.Dir, in.Env, in.DryRun)
}
