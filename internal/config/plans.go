package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// PlanDefaults maps a plan type to the feature flags granted when an
// organization record carries none of its own.
type PlanDefaults map[string]map[string]bool

// LoadPlanDefaults parses the optional plan-defaults YAML file. An empty path
// yields an empty map, so callers can use the result unconditionally.
func LoadPlanDefaults(path string) (PlanDefaults, error) {
	if path == "" {
		return PlanDefaults{}, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read plan defaults: %w", err)
	}
	var defaults PlanDefaults
	if err := yaml.Unmarshal(raw, &defaults); err != nil {
		return nil, fmt.Errorf("config: parse plan defaults: %w", err)
	}
	if defaults == nil {
		defaults = PlanDefaults{}
	}
	return defaults, nil
}

// FeaturesFor returns the defaults for plan, or nil when the plan is unknown.
func (p PlanDefaults) FeaturesFor(plan string) map[string]bool {
	if p == nil {
		return nil
	}
	flags, ok := p[plan]
	if !ok {
		return nil
	}
	out := make(map[string]bool, len(flags))
	for k, v := range flags {
		out[k] = v
	}
	return out
}
