package passes

import (
	"testing"

	"github.com/spaghettifunk/octoon/engine/hal/soft"
	"github.com/spaghettifunk/octoon/engine/material"
	"github.com/spaghettifunk/octoon/engine/math"
	"github.com/spaghettifunk/octoon/engine/object"
	"github.com/spaghettifunk/octoon/engine/renderer"
	"github.com/spaghettifunk/octoon/engine/scene"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSelectorOutlinesSelectedGeometries(t *testing.T) {
	objects := object.NewContext()
	spy, _, gctx := newSpy(t, true)

	camera := newCamera(objects, 320, 200)
	mat := material.NewBasicMaterial(objects, math.NewVec4One())
	picked := scene.NewGeometry(objects, "picked", scene.CubeMesh(objects, 1, 1, 1), mat)
	picked.SetSelected(true)
	other := scene.NewGeometry(objects, "other", scene.CubeMesh(objects, 1, 1, 1), mat)

	data := renderer.NewRenderingData()
	frame(data, camera, nil, picked, other)

	pass := NewDrawSelectorPass(objects, DEFAULT_SELECTION_COLOR)
	t.Cleanup(pass.Close)
	require.NoError(t, pass.Execute(spy, data))

	require.Len(t, spy.calls, 1)
	assert.Equal(t, []*scene.Geometry{picked}, spy.calls[0].geometries)
	assert.Same(t, pass.flat, spy.calls[0].override)

	// silhouette, edge filter and composite
	draws := gctx.CommandsOf(soft.OP_DRAW_INDEXED)
	require.Len(t, draws, 3)
	assert.Same(t, pass.silhouette.Framebuffer, draws[0].Framebuffer)
	assert.Same(t, pass.outline.Framebuffer, draws[1].Framebuffer)
	assert.Nil(t, draws[2].Framebuffer)
	assert.Equal(t, camera.PixelViewport(), draws[2].Rect)

	edgeMap := uniform(draws[1], material.PARAM_MAP)
	require.NotNil(t, edgeMap)
	assert.Same(t, pass.silhouette.Color, edgeMap.Texture())
	assert.Equal(t, math.NewVec2(320, 200), uniform(draws[1], material.PARAM_TEX_SIZE).Float2())
	assert.Same(t, pass.outline.Color, uniform(draws[2], material.PARAM_MAP).Texture())
	assert.Empty(t, gctx.Errors())
}

func TestSelectorResizesTargetsWithViewport(t *testing.T) {
	objects := object.NewContext()
	spy, device, _ := newSpy(t, true)

	camera := newCamera(objects, 320, 200)
	picked := scene.NewGeometry(objects, "picked", scene.PlaneMesh(objects, 1, 1), material.NewBasicMaterial(objects, math.NewVec4One()))
	picked.SetSelected(true)

	data := renderer.NewRenderingData()
	pass := NewDrawSelectorPass(objects, DEFAULT_SELECTION_COLOR)

	frame(data, camera, nil, picked)
	require.NoError(t, pass.Execute(spy, data))
	first := pass.silhouette
	live := device.LiveResources()

	frame(data, camera, nil, picked)
	require.NoError(t, pass.Execute(spy, data))
	assert.Same(t, first, pass.silhouette)

	camera.SetScreenSize(640, 400)
	frame(data, camera, nil, picked)
	require.NoError(t, pass.Execute(spy, data))
	assert.NotSame(t, first, pass.silhouette)
	assert.True(t, first.Framebuffer.IsClosed())
	assert.Equal(t, uint32(640), pass.silhouette.Framebuffer.Desc().Width)
	assert.Equal(t, live, device.LiveResources())

	pass.Close()
	assert.Nil(t, pass.silhouette)
}

func TestSelectorWithoutSelectionIsNoop(t *testing.T) {
	objects := object.NewContext()
	spy, device, gctx := newSpy(t, true)
	before := device.LiveResources()

	camera := newCamera(objects, 320, 200)
	geo := scene.NewGeometry(objects, "geo", scene.PlaneMesh(objects, 1, 1), material.NewBasicMaterial(objects, math.NewVec4One()))

	data := renderer.NewRenderingData()
	frame(data, camera, nil, geo)

	pass := NewDrawSelectorPass(objects, DEFAULT_SELECTION_COLOR)
	t.Cleanup(pass.Close)
	require.NoError(t, pass.Execute(spy, data))
	assert.Empty(t, gctx.Commands())
	assert.Equal(t, before, device.LiveResources())
}
