package terraform

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/lzjever/mbos-irp/internal/core"
)

// ParseOutputs decodes the tool's `output -json` report.
func ParseOutputs(raw string) (map[string]OutputValue, error) {
	outputs := map[string]OutputValue{}
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" || trimmed == "{}" {
		return outputs, nil
	}
	if err := json.Unmarshal([]byte(trimmed), &outputs); err != nil {
		return nil, &core.ProvisionError{
			Kind: core.FailureToolExec,
			Op:   "output",
			Err:  fmt.Errorf("decode output report: %w", err),
		}
	}
	return outputs, nil
}

// FormatOutputs renders outputs as sorted `key = value` lines for the
// request notes. Values of sensitive outputs are never rendered.
func FormatOutputs(outputs map[string]OutputValue) string {
	if len(outputs) == 0 {
		return "no outputs"
	}
	keys := make([]string, 0, len(outputs))
	for k := range outputs {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for i, k := range keys {
		if i > 0 {
			b.WriteByte('\n')
		}
		if outputs[k].Sensitive {
			fmt.Fprintf(&b, "%s = (sensitive)", k)
			continue
		}
		fmt.Fprintf(&b, "%s = %s", k, renderValue(outputs[k].Value))
	}
	return b.String()
}

func renderValue(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case nil:
		return "null"
	default:
		b, err := json.Marshal(val)
		if err != nil {
			return fmt.Sprintf("%v", val)
		}
		return string(b)
	}
}
