package provision

import (
	"context"
	"fmt"
	"regexp"

	"github.com/lzjever/mbos-irp/internal/core"
	"github.com/lzjever/mbos-irp/internal/terraform"
)

// Generator renders tool configuration for one resource type into a
// prepared workspace and drives the execution engine against it.
type Generator interface {
	Generate(ctx context.Context, in GenerateInput) (*terraform.RunResult, error)
}

// GenerateInput is everything an attempt hands to a generator.
type GenerateInput struct {
	Request core.ResourceRequest
	Dir     string   // prepared workspace directory
	Env     []string // resolved credential environment for tool steps
	DryRun  bool
	Secrets *Sanitizer // minted secrets must be registered here
}

// resourceNamePattern is the only shape a request name may take before it
// is interpolated into tool configuration.
var resourceNamePattern = regexp.MustCompile(`^[a-z][a-z0-9-]{2,62}$`)

func validateResourceName(name string) error {
	if !resourceNamePattern.MatchString(name) {
		return &core.ProvisionError{
			Kind:   core.FailureInvalidState,
			Op:     "generate",
			Detail: fmt.Sprintf("resource name %q must match %s", name, resourceNamePattern),
		}
	}
	return nil
}

// stringOption reads a string config key, falling back when absent or of
// the wrong type. Unknown values never fail a request.
func stringOption(cfg map[string]any, key, fallback string) string {
	if v, ok := cfg[key].(string); ok && v != "" {
		return v
	}
	return fallback
}

func boolOption(cfg map[string]any, key string, fallback bool) bool {
	if v, ok := cfg[key].(bool); ok {
		return v
	}
	return fallback
}
