package loaders

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/spaghettifunk/octoon/engine/core"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	core.SetLogOutput(io.Discard)
	os.Exit(m.Run())
}

func writeFile(t *testing.T, dir, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func TestDetermineType(t *testing.T) {
	cases := map[string]ResourceType{
		"shaders/basic.shader":   RESOURCE_TYPE_SHADER,
		"shaders/basic.vert":     RESOURCE_TYPE_SHADER_STAGE,
		"shaders/basic.frag.spv": RESOURCE_TYPE_SHADER_STAGE,
		"materials/ground.yaml":  RESOURCE_TYPE_MATERIAL,
		"textures/ground.PNG":    RESOURCE_TYPE_IMAGE,
		"textures/sky.tiff":      RESOURCE_TYPE_IMAGE,
		"models/box.obj":         RESOURCE_TYPE_MODEL,
		"data/lut.bin":           RESOURCE_TYPE_BINARY,
		"README.md":              RESOURCE_TYPE_NONE,
	}
	for path, want := range cases {
		require.Equal(t, want, DetermineType(path), path)
	}
}
