package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// slaPolicyFile is the YAML shape for operator-provided SLA policies. Zero
// values leave the env-provided defaults in place.
type slaPolicyFile struct {
	TargetHours struct {
		P1 float64 `yaml:"p1"`
		P2 float64 `yaml:"p2"`
		P3 float64 `yaml:"p3"`
	} `yaml:"target_hours"`
	Thresholds struct {
		Warning  float64 `yaml:"warning"`
		Critical float64 `yaml:"critical"`
	} `yaml:"thresholds"`
}

func applyPolicyFile(cfg *SLAConfig, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	var policy slaPolicyFile
	if err := yaml.Unmarshal(data, &policy); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}

	if policy.TargetHours.P1 > 0 {
		cfg.TargetHoursP1 = policy.TargetHours.P1
	}
	if policy.TargetHours.P2 > 0 {
		cfg.TargetHoursP2 = policy.TargetHours.P2
	}
	if policy.TargetHours.P3 > 0 {
		cfg.TargetHoursP3 = policy.TargetHours.P3
	}
	if policy.Thresholds.Warning > 0 {
		cfg.WarningThreshold = policy.Thresholds.Warning
	}
	if policy.Thresholds.Critical > 0 {
		cfg.CriticalThreshold = policy.Thresholds.Critical
	}

	if cfg.WarningThreshold >= cfg.CriticalThreshold {
		return fmt.Errorf("warning threshold %.2f must be below critical threshold %.2f",
			cfg.WarningThreshold, cfg.CriticalThreshold)
	}
	return nil
}
