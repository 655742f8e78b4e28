package flow

import (
	"rcmos/internal/domain"

	"gopkg.in/yaml.v3"
)

// Definition is a flow document.
type Definition struct {
	FlowID string        `yaml:"flow_id"`
	Steps  []domain.Step `yaml:"steps"`
}

// ParseDefinition validates flow YAML: a mapping with a non-empty steps list.
func ParseDefinition(doc string) (*Definition, error) {
	var raw map[string]any
	if err := yaml.Unmarshal([]byte(doc), &raw); err != nil {
		return nil, domain.Validationf("invalid flow: %v", err)
	}
	if raw == nil {
		return nil, domain.Validationf("invalid flow: missing steps")
	}

	rawSteps, ok := raw["steps"]
	if !ok {
		return nil, domain.Validationf("invalid flow: missing steps")
	}
	list, ok := rawSteps.([]any)
	if !ok || len(list) == 0 {
		return nil, domain.Validationf("invalid flow: steps must be non-empty list")
	}

	def := &Definition{Steps: make([]domain.Step, 0, len(list))}
	if id, ok := raw["flow_id"].(string); ok {
		def.FlowID = id
	}
	for i, item := range list {
		step, ok := item.(map[string]any)
		if !ok {
			return nil, domain.Validationf("invalid flow: step %d must be a mapping", i)
		}
		def.Steps = append(def.Steps, domain.Step(step))
	}
	return def, nil
}
