package config

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/spaghettifunk/octoon/engine/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	core.SetLogOutput(io.Discard)
	os.Exit(m.Run())
}

func TestDefaultIsValid(t *testing.T) {
	assert.NoError(t, Default().Validate())
}

func TestParseOverridesDefaults(t *testing.T) {
	cfg, err := Parse([]byte(`
[graphics]
backend = "soft"
width = 320
height = 240

[renderer]
pass_failure = "abort"
enable_selector = false
`))
	require.NoError(t, err)
	assert.Equal(t, BACKEND_SOFT, cfg.Graphics.Backend)
	assert.Equal(t, uint32(320), cfg.Graphics.Width)
	assert.Equal(t, PASS_FAILURE_ABORT, cfg.Renderer.PassFailure)
	assert.False(t, cfg.Renderer.EnableSelector)
	// untouched keys keep their defaults
	assert.Equal(t, uint32(512), cfg.Renderer.ShadowMapSize)
	assert.Equal(t, "Octoon", cfg.Application.Name)
}

func TestParseRejectsUnknownKeys(t *testing.T) {
	_, err := Parse([]byte("[graphics]\nbackend = \"soft\"\nantialias = true\n"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	cases := map[string]func(c *Config){
		"backend":     func(c *Config) { c.Graphics.Backend = "opengl" },
		"width":       func(c *Config) { c.Graphics.Width = 0 },
		"msaa":        func(c *Config) { c.Renderer.MSAA = 3 },
		"shadow size": func(c *Config) { c.Renderer.ShadowMapSize = 500 },
		"failure":     func(c *Config) { c.Renderer.PassFailure = "retry" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := Default()
			mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.True(t, errors.Is(err, core.ErrInvalidDesc))
		})
	}
}

func TestLoadRoundTripsThroughFile(t *testing.T) {
	cfg := Default()
	cfg.Graphics.Backend = BACKEND_SOFT
	cfg.Log.Level = "debug"

	data, err := cfg.Encode()
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "octoon.toml")
	require.NoError(t, os.WriteFile(path, data, 0o644))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	assert.Error(t, err)
}
