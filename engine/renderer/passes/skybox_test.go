package passes

import (
	"testing"

	"github.com/spaghettifunk/octoon/engine/hal"
	"github.com/spaghettifunk/octoon/engine/hal/soft"
	"github.com/spaghettifunk/octoon/engine/material"
	"github.com/spaghettifunk/octoon/engine/math"
	"github.com/spaghettifunk/octoon/engine/object"
	"github.com/spaghettifunk/octoon/engine/renderer"
	"github.com/spaghettifunk/octoon/engine/scene"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRadianceMap(t *testing.T, device hal.GraphicsDevice) hal.GraphicsTexture {
	t.Helper()
	texture, err := device.CreateTexture(hal.GraphicsTextureDesc{
		Name:   "radiance",
		Dim:    hal.TEXTURE_DIM_2D,
		Format: hal.FORMAT_R8G8B8A8_UNORM,
		Width:  4,
		Height: 2,
		Usage:  hal.TEXTURE_USAGE_SAMPLED_BIT,
	})
	require.NoError(t, err)
	t.Cleanup(texture.Close)
	return texture
}

func uniform(cmd soft.Command, name string) *hal.UniformSet {
	for _, u := range cmd.Uniforms {
		if u.Name() == name {
			return u
		}
	}
	return nil
}

func TestSkyboxDrawsRadianceMapWithoutTranslation(t *testing.T) {
	objects := object.NewContext()
	spy, device, gctx := newSpy(t, true)

	camera := newCamera(objects, 640, 480)
	env := scene.NewEnvironmentLight(objects, math.NewVec3One(), 0.5)
	radiance := newRadianceMap(t, device)
	env.SetRadianceMap(radiance)

	data := renderer.NewRenderingData()
	frame(data, camera, []scene.Light{env})

	pass := NewDrawSkyboxPass(objects)
	t.Cleanup(pass.Close)
	require.NoError(t, pass.Execute(spy, data))

	draws := gctx.CommandsOf(soft.OP_DRAW_INDEXED)
	require.Len(t, draws, 1)
	assert.Equal(t, camera.PixelViewport(), draws[0].Rect)
	assert.Empty(t, gctx.Errors())

	view := camera.View()
	view.Data[12], view.Data[13], view.Data[14] = 0, 0, 0
	viewProj := uniform(draws[0], material.PARAM_VIEW_PROJECTION)
	require.NotNil(t, viewProj)
	assert.True(t, view.Mul(camera.Projection()).Equal(viewProj.Float4x4(), 1e-5))

	mapUniform := uniform(draws[0], material.PARAM_MAP)
	require.NotNil(t, mapUniform)
	assert.Same(t, radiance, mapUniform.Texture())
	assert.True(t, uniform(draws[0], material.PARAM_MAP_ENABLE).Bool())
	assert.Equal(t, math.NewVec4(0.5, 0.5, 0.5, 1), uniform(draws[0], material.PARAM_COLOR).Float4())
}

func TestSkyboxSkipsHiddenOrEmptyBackground(t *testing.T) {
	objects := object.NewContext()
	spy, device, gctx := newSpy(t, true)

	camera := newCamera(objects, 640, 480)
	ambient := scene.NewEnvironmentLight(objects, math.NewVec3One(), 1)
	hidden := scene.NewEnvironmentLight(objects, math.NewVec3One(), 1)
	hidden.SetRadianceMap(newRadianceMap(t, device))
	hidden.SetShowBackground(false)

	data := renderer.NewRenderingData()
	frame(data, camera, []scene.Light{ambient, hidden})

	pass := NewDrawSkyboxPass(objects)
	t.Cleanup(pass.Close)
	require.NoError(t, pass.Execute(spy, data))
	assert.Empty(t, gctx.Commands())
}
