package provision

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// The tool's JSON configuration syntax. Every document is assembled as Go
// values and marshaled with encoding/json, so request-supplied strings are
// always data, never configuration syntax.

type providerRequirement struct {
	Source  string `json:"source"`
	Version string `json:"version"`
}

type variableDecl struct {
	Type      string `json:"type"`
	Sensitive bool   `json:"sensitive,omitempty"`
}

// moduleConfig is the root configuration a generator assembles: provider
// requirements, variable declarations with their values, one module
// invocation, and the module outputs forwarded to the root.
type moduleConfig struct {
	Providers      map[string]providerRequirement
	ProviderConfig map[string]map[string]any
	Source         string
	Variables      map[string]variableDecl
	Values         map[string]any
	Outputs        []string
}

// emit writes provider.tf.json, main.tf.json and terraform.tfvars.json
// into dir. tfvars may carry secrets and is written mode 0600.
func (mc moduleConfig) emit(dir string) error {
	provider := map[string]any{
		"terraform": map[string]any{
			"required_version":   ">= 1.5.0",
			"required_providers": mc.Providers,
		},
	}
	if len(mc.ProviderConfig) > 0 {
		provider["provider"] = mc.ProviderConfig
	}

	moduleArgs := map[string]any{"source": mc.Source}
	for name := range mc.Variables {
		moduleArgs[name] = fmt.Sprintf("${var.%s}", name)
	}
	main := map[string]any{
		"variable": mc.Variables,
		"module":   map[string]any{"main": moduleArgs},
	}
	if len(mc.Outputs) > 0 {
		outputs := make(map[string]any, len(mc.Outputs))
		for _, name := range mc.Outputs {
			outputs[name] = map[string]any{"value": fmt.Sprintf("${module.main.%s}", name)}
		}
		main["output"] = outputs
	}

	if err := writeConfigFile(dir, "provider.tf.json", provider, 0o644); err != nil {
		return err
	}
	if err := writeConfigFile(dir, "main.tf.json", main, 0o644); err != nil {
		return err
	}
	return writeConfigFile(dir, "terraform.tfvars.json", mc.Values, 0o600)
}

func writeConfigFile(dir, name string, doc any, mode os.FileMode) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", name, err)
	}
	data = append(data, '\n')
	if err := os.WriteFile(filepath.Join(dir, name), data, mode); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	return nil
}
