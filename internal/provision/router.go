package provision

import (
	"fmt"

	"github.com/lzjever/mbos-irp/internal/core"
	"github.com/lzjever/mbos-irp/internal/terraform"
)

// Router dispatches a request to the generator for its resource type.
type Router struct {
	generators map[core.ResourceType]Generator
}

// NewRouter builds the dispatch table. All generators share one engine
// runner and the modules root the definition files source from.
func NewRouter(runner terraform.Runner, modulesRoot string) *Router {
	return &Router{
		generators: map[core.ResourceType]Generator{
			core.ResourceDatabase:      &DatabaseGenerator{Runner: runner, ModulesRoot: modulesRoot},
			core.ResourceObjectStorage: &ObjectStorageGenerator{Runner: runner, ModulesRoot: modulesRoot},
			core.ResourceNamespace:     &NamespaceGenerator{Runner: runner, ModulesRoot: modulesRoot},
		},
	}
}

// Route returns the generator for a resource type. An unknown type is a
// terminal failure; routing itself never touches the workspace or the
// store, so callers can rely on a failed route having had no side
// effects.
func (r *Router) Route(t core.ResourceType) (Generator, error) {
	gen, ok := r.generators[t]
	if !ok {
		return nil, &core.ProvisionError{
			Kind:   core.FailureUnknownType,
			Op:     "route",
			Detail: fmt.Sprintf("unknown resource type: %s", t),
		}
	}
	return gen, nil
}
