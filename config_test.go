package vex

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConfig_DefaultsSeeded(t *testing.T) {
	cfg := NewConfig()
	assert.Equal(t, 1000, cfg.GetInt("gc.threshold"))
	assert.Equal(t, 100, cfg.GetInt("jit.hot_threshold"))
	assert.True(t, cfg.GetBool("jit.enabled"))
	assert.Equal(t, 50, cfg.GetInt("trace.loop_threshold"))
	assert.Equal(t, "", cfg.GetString("ffi.search_paths"))
}

func TestConfig_SetOverridesDefault(t *testing.T) {
	cfg := NewConfig()
	cfg.SetInt("gc.threshold", 5000)
	assert.Equal(t, 5000, cfg.GetInt("gc.threshold"))
}

func TestConfig_WrongTypeAccessPanics(t *testing.T) {
	cfg := NewConfig()
	assert.Panics(t, func() { cfg.GetBool("gc.threshold") })
}

func TestConfig_MissingKeyPanics(t *testing.T) {
	cfg := NewConfig()
	assert.Panics(t, func() { cfg.GetInt("does.not.exist") })
}
