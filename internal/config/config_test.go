package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLoad_Defaults(t *testing.T) {
	cfg := Load()
	assert.Equal(t, "uxplore", cfg.AppName)
	assert.Equal(t, CoverageModeTime, cfg.CoverageMode)
	assert.Equal(t, 240, cfg.GuidanceIntervalSeconds)
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("APP_NAME", "myapp")
	t.Setenv("COVERAGE_MODE", string(CoverageModeMethodLog))
	t.Setenv("GUIDANCE_INTERVAL_SECONDS", "60")

	cfg := Load()
	assert.Equal(t, "myapp", cfg.AppName)
	assert.Equal(t, CoverageModeMethodLog, cfg.CoverageMode)
	assert.Equal(t, 60, cfg.GuidanceIntervalSeconds)
}

func TestLoad_MalformedIntFallsBack(t *testing.T) {
	t.Setenv("GUIDANCE_INTERVAL_SECONDS", "not-a-number")
	cfg := Load()
	assert.Equal(t, 240, cfg.GuidanceIntervalSeconds)
}

func TestGetPortInt(t *testing.T) {
	cfg := &Config{Port: "9090"}
	assert.Equal(t, 9090, cfg.GetPortInt())

	bad := &Config{Port: "not-a-port"}
	assert.Equal(t, 0, bad.GetPortInt())
}
