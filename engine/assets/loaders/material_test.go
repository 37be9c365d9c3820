package loaders

import (
	"errors"
	"testing"

	"github.com/spaghettifunk/octoon/engine/core"
	"github.com/spaghettifunk/octoon/engine/hal"
	"github.com/spaghettifunk/octoon/engine/material"
	"github.com/spaghettifunk/octoon/engine/math"
	"github.com/spaghettifunk/octoon/engine/object"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const groundMaterial = `
name: ground
shader: builtin.basic
queue: Transparent
params:
  color: [0.5, 0.25, 1.0, 1.0]
  opacity: 1
  steps: 5
  mapEnable: true
  offset: [0.5, 2]
  map: textures/ground.png
`

func TestParseMaterialKeepsParamOrder(t *testing.T) {
	cfg, err := ParseMaterial([]byte(groundMaterial))
	require.NoError(t, err)
	assert.Equal(t, "ground", cfg.Name)
	assert.Equal(t, "builtin.basic", cfg.Shader)

	var names []string
	for _, p := range cfg.MaterialParams() {
		names = append(names, p.Name)
	}
	assert.Equal(t, []string{"color", "opacity", "steps", "mapEnable", "offset", "map"}, names)

	params := cfg.MaterialParams()
	assert.Equal(t, math.NewVec4(0.5, 0.25, 1, 1), params[0].Value)
	assert.Equal(t, true, params[3].Value)
	assert.Equal(t, math.NewVec2(0.5, 2), params[4].Value)
	assert.Equal(t, "textures/ground.png", params[5].Texture)
	assert.Nil(t, params[5].Value)
}

func TestApplyMaterialCoercesToDeclaredTypes(t *testing.T) {
	cfg, err := ParseMaterial([]byte(groundMaterial))
	require.NoError(t, err)

	objects := object.NewContext()
	ctrl := objects.NextControllerID()
	m := material.NewBasicMaterial(objects, math.NewVec4One())
	require.NoError(t, m.Set("steps", int32(2)))
	m.ClearDirty(ctrl)

	var resolved []string
	tex := hal.GraphicsTexture(nil)
	err = cfg.Apply(m, func(path string) (hal.GraphicsTexture, error) {
		resolved = append(resolved, path)
		return tex, nil
	})
	require.NoError(t, err)

	assert.True(t, m.IsDirty(ctrl))
	assert.Equal(t, "ground", m.Name())
	assert.True(t, m.IsTransparent())
	assert.Equal(t, []string{"textures/ground.png"}, resolved)

	assert.Equal(t, hal.UNIFORM_TYPE_FLOAT, m.At(material.PARAM_OPACITY).Type())
	assert.Equal(t, float32(1), m.At(material.PARAM_OPACITY).Float())
	assert.Equal(t, hal.UNIFORM_TYPE_INT, m.At("steps").Type())
	assert.Equal(t, int32(5), m.At("steps").Int())
	assert.True(t, m.At(material.PARAM_MAP_ENABLE).Bool())
	assert.Equal(t, math.NewVec4(0.5, 0.25, 1, 1), m.At(material.PARAM_COLOR).Float4())
}

func TestApplyMaterialPropagatesTextureErrors(t *testing.T) {
	cfg, err := ParseMaterial([]byte(groundMaterial))
	require.NoError(t, err)
	m := material.NewBasicMaterial(object.NewContext(), math.NewVec4One())

	missing := errors.New("missing")
	err = cfg.Apply(m, func(string) (hal.GraphicsTexture, error) { return nil, missing })
	assert.ErrorIs(t, err, missing)

	err = cfg.Apply(m, nil)
	assert.ErrorIs(t, err, core.ErrInvalidDesc)
}

func TestParseMaterialValidation(t *testing.T) {
	cases := map[string]string{
		"no name":      "shader: builtin.basic\n",
		"no shader":    "name: a\n",
		"bad queue":    "name: a\nshader: builtin.basic\nqueue: Overlay\n",
		"color range":  "name: a\nshader: builtin.basic\nparams:\n  color: [2, 0, 0, 1]\n",
		"params list":  "name: a\nshader: builtin.basic\nparams: [1, 2]\n",
		"nested param": "name: a\nshader: builtin.basic\nparams:\n  color: {r: 1}\n",
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ParseMaterial([]byte(doc))
			assert.Error(t, err)
		})
	}
}

func TestMaterialLoaderReadsFile(t *testing.T) {
	path := writeFile(t, t.TempDir(), "materials/ground.yaml", []byte(groundMaterial))

	loader := &MaterialLoader{}
	res, err := loader.Load(path, nil)
	require.NoError(t, err)
	assert.Equal(t, RESOURCE_TYPE_MATERIAL, res.Type)
	assert.Equal(t, "ground", res.Data.(*MaterialConfig).Name)

	_, err = loader.Load(path+".missing", nil)
	assert.Error(t, err)
}
