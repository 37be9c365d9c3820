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

func TestDrawOpaquePassDrawsOneGeometry(t *testing.T) {
	objects := object.NewContext()
	spy, _, gctx := newSpy(t, false)

	camera := newCamera(objects, 800, 600)
	geo := scene.NewGeometry(objects, "box", scene.CubeMesh(objects, 1, 1, 1), material.NewBasicMaterial(objects, math.NewVec4One()))

	rs := scene.NewRenderScene()
	rs.AddCamera(camera)
	rs.AddRenderObject(geo)

	controller := renderer.NewSceneController(objects)
	defer controller.Close()
	data, err := controller.Compile(rs, camera, spy.ScriptableRenderContext)
	require.NoError(t, err)
	require.Same(t, camera, data.Camera)

	pass := NewDrawOpaquePass()
	require.NoError(t, pass.Execute(spy, data))

	require.Len(t, spy.calls, 1)
	assert.Equal(t, []*scene.Geometry{geo}, spy.calls[0].geometries)
	assert.Same(t, camera, spy.calls[0].camera)
	assert.Nil(t, spy.calls[0].override)

	want := camera.PixelViewport()
	assert.Equal(t, want, gctx.Viewport(0))
	draws := gctx.CommandsOf(soft.OP_DRAW_INDEXED)
	require.Len(t, draws, 1)
	assert.Equal(t, want, draws[0].Rect)
}

func TestDrawObjectPassesSplitQueues(t *testing.T) {
	objects := object.NewContext()
	spy, _, _ := newSpy(t, true)

	camera := newCamera(objects, 640, 480)
	solid := scene.NewGeometry(objects, "solid", scene.PlaneMesh(objects, 1, 1), material.NewBasicMaterial(objects, math.NewVec4One()))
	glass := scene.NewGeometry(objects, "glass", scene.PlaneMesh(objects, 1, 1), material.NewBasicMaterial(objects, math.NewVec4(1, 1, 1, 0.5)))
	glass.SetRenderPriority(1)

	data := renderer.NewRenderingData()
	frame(data, camera, nil, solid, glass)

	require.NoError(t, NewDrawOpaquePass().Execute(spy, data))
	require.NoError(t, NewDrawTransparentPass().Execute(spy, data))

	require.Len(t, spy.calls, 2)
	assert.Equal(t, []*scene.Geometry{solid}, spy.calls[0].geometries)
	assert.Equal(t, []*scene.Geometry{glass}, spy.calls[1].geometries)
}

func TestDrawObjectPassClearsOnlyWhenOpaque(t *testing.T) {
	objects := object.NewContext()
	spy, _, gctx := newSpy(t, true)

	camera := newCamera(objects, 320, 240)
	camera.SetClearFlags(hal.CLEAR_ALL)
	camera.SetClearColor(math.NewVec4(0.1, 0.2, 0.3, 1))

	data := renderer.NewRenderingData()
	frame(data, camera, nil)

	require.NoError(t, NewDrawTransparentPass().Execute(spy, data))
	assert.Empty(t, gctx.CommandsOf(soft.OP_CLEAR))

	require.NoError(t, NewDrawOpaquePass().Execute(spy, data))
	clears := gctx.CommandsOf(soft.OP_CLEAR)
	require.Len(t, clears, 1)
	assert.Equal(t, hal.CLEAR_ALL, clears[0].ClearFlags)
	assert.Equal(t, math.NewVec4(0.1, 0.2, 0.3, 1), clears[0].Color)

	// nothing to draw
	assert.Empty(t, spy.calls)
}

func TestDrawObjectPassWithoutCameraIsNoop(t *testing.T) {
	spy, _, gctx := newSpy(t, true)

	data := renderer.NewRenderingData()
	require.NoError(t, NewDrawOpaquePass().Execute(spy, data))
	assert.Empty(t, gctx.Commands())
	assert.Empty(t, spy.calls)
}

func TestDrawObjectPassEvents(t *testing.T) {
	assert.Equal(t, renderer.RENDER_PASS_EVENT_OPAQUES, NewDrawOpaquePass().Event())
	assert.Equal(t, renderer.RENDER_PASS_EVENT_TRANSPARENTS, NewDrawTransparentPass().Event())
	assert.NotEqual(t, NewDrawOpaquePass().Name(), NewDrawTransparentPass().Name())
}
