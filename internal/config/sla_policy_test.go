package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writePolicyFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sla_policy.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func defaultSLAConfig() SLAConfig {
	return SLAConfig{
		TargetHoursP1:     4,
		TargetHoursP2:     8,
		TargetHoursP3:     24,
		WarningThreshold:  0.2,
		CriticalThreshold: 0.6,
	}
}

func TestApplyPolicyFileFullOverride(t *testing.T) {
	path := writePolicyFile(t, `
target_hours:
  p1: 2
  p2: 6
  p3: 12
thresholds:
  warning: 0.3
  critical: 0.8
`)

	cfg := defaultSLAConfig()
	require.NoError(t, applyPolicyFile(&cfg, path))
	assert.Equal(t, 2.0, cfg.TargetHoursP1)
	assert.Equal(t, 6.0, cfg.TargetHoursP2)
	assert.Equal(t, 12.0, cfg.TargetHoursP3)
	assert.Equal(t, 0.3, cfg.WarningThreshold)
	assert.Equal(t, 0.8, cfg.CriticalThreshold)
}

func TestApplyPolicyFilePartialOverrideKeepsDefaults(t *testing.T) {
	path := writePolicyFile(t, `
target_hours:
  p1: 1
`)

	cfg := defaultSLAConfig()
	require.NoError(t, applyPolicyFile(&cfg, path))
	assert.Equal(t, 1.0, cfg.TargetHoursP1)
	assert.Equal(t, 8.0, cfg.TargetHoursP2)
	assert.Equal(t, 24.0, cfg.TargetHoursP3)
	assert.Equal(t, 0.2, cfg.WarningThreshold)
	assert.Equal(t, 0.6, cfg.CriticalThreshold)
}

func TestApplyPolicyFileRejectsInvertedThresholds(t *testing.T) {
	path := writePolicyFile(t, `
thresholds:
  warning: 0.9
  critical: 0.5
`)

	cfg := defaultSLAConfig()
	err := applyPolicyFile(&cfg, path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "must be below critical")
}

func TestApplyPolicyFileMissingFile(t *testing.T) {
	cfg := defaultSLAConfig()
	assert.Error(t, applyPolicyFile(&cfg, filepath.Join(t.TempDir(), "absent.yaml")))
}

func TestApplyPolicyFileMalformedYAML(t *testing.T) {
	path := writePolicyFile(t, "target_hours: [not, a, map]")

	cfg := defaultSLAConfig()
	assert.Error(t, applyPolicyFile(&cfg, path))
}
