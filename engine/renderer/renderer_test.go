package renderer

import (
	"io"
	"os"
	"testing"

	"github.com/spaghettifunk/octoon/engine/core"
	"github.com/spaghettifunk/octoon/engine/hal"
	"github.com/spaghettifunk/octoon/engine/hal/soft"
	"github.com/spaghettifunk/octoon/engine/material"
	"github.com/spaghettifunk/octoon/engine/math"
	"github.com/spaghettifunk/octoon/engine/object"
	"github.com/spaghettifunk/octoon/engine/scene"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	core.SetLogOutput(io.Discard)
	os.Exit(m.Run())
}

func newSoftContext(t *testing.T) (*soft.Device, *soft.Context) {
	t.Helper()
	sys := hal.NewGraphicsSystem()
	soft.Register(sys)
	t.Cleanup(sys.Close)

	device, err := sys.CreateDevice(hal.GraphicsDeviceDesc{DeviceType: hal.DEVICE_TYPE_SOFT, EnableDebug: true})
	require.NoError(t, err)
	gctx, err := device.CreateDeviceContext(hal.GraphicsContextDesc{})
	require.NoError(t, err)
	return device.(*soft.Device), gctx.(*soft.Context)
}

func newCamera(ctx *object.Context) *scene.Camera {
	camera := scene.NewPerspectiveCamera(ctx, "main", 60, 0.1, 100)
	camera.SetScreenSize(640, 480)
	camera.LookAt(math.NewVec3(0, 0, 5), math.NewVec3Zero(), math.NewVec3Up())
	return camera
}

func TestDrawRenderersIssuesOneDrawPerSubset(t *testing.T) {
	objects := object.NewContext()
	device, gctx := newSoftContext(t)
	rctx := NewScriptableRenderContext(device, gctx)
	defer rctx.Close()

	camera := newCamera(objects)
	mat := material.NewBasicMaterial(objects, math.NewVec4(1, 0, 0, 1))
	geo := scene.NewGeometry(objects, "quad", scene.PlaneMesh(objects, 1, 1), mat)

	require.NoError(t, rctx.DrawRenderers([]*scene.Geometry{geo}, camera, nil))

	draws := gctx.CommandsOf(soft.OP_DRAW_INDEXED)
	require.Len(t, draws, 1)
	assert.Equal(t, uint32(6), draws[0].Count)
	assert.Empty(t, gctx.Errors())

	var color, viewProj *hal.UniformSet
	for _, u := range draws[0].Uniforms {
		switch u.Name() {
		case material.PARAM_COLOR:
			color = u
		case UNIFORM_VIEW_PROJ_MATRIX:
			viewProj = u
		}
	}
	require.NotNil(t, color)
	require.NotNil(t, viewProj)
	assert.Equal(t, math.NewVec4(1, 0, 0, 1), color.Float4())
	assert.True(t, camera.ViewProjection().Equal(viewProj.Float4x4(), 1e-5))
}

func TestDrawRenderersSkipsOtherLayersAndInvisible(t *testing.T) {
	objects := object.NewContext()
	device, gctx := newSoftContext(t)
	rctx := NewScriptableRenderContext(device, gctx)
	defer rctx.Close()

	camera := newCamera(objects)
	mat := material.NewBasicMaterial(objects, math.NewVec4One())
	hidden := scene.NewGeometry(objects, "hidden", scene.PlaneMesh(objects, 1, 1), mat)
	hidden.SetVisible(false)
	other := scene.NewGeometry(objects, "other", scene.PlaneMesh(objects, 1, 1), mat)
	other.SetLayer(3)
	noMaterial := scene.NewGeometry(objects, "bare", scene.PlaneMesh(objects, 1, 1))

	require.NoError(t, rctx.DrawRenderers([]*scene.Geometry{hidden, other, noMaterial}, camera, nil))
	assert.Empty(t, gctx.CommandsOf(soft.OP_DRAW_INDEXED))
	assert.Empty(t, gctx.CommandsOf(soft.OP_DRAW))
}

func TestDrawRenderersOverrideMaterial(t *testing.T) {
	objects := object.NewContext()
	device, gctx := newSoftContext(t)
	rctx := NewScriptableRenderContext(device, gctx)
	defer rctx.Close()

	camera := newCamera(objects)
	geo := scene.NewGeometry(objects, "quad", scene.PlaneMesh(objects, 1, 1), material.NewBasicMaterial(objects, math.NewVec4One()))
	depth := material.NewDepthMaterial(objects)

	require.NoError(t, rctx.DrawRenderers([]*scene.Geometry{geo}, camera, depth))
	draws := gctx.CommandsOf(soft.OP_DRAW_INDEXED)
	require.Len(t, draws, 1)
	assert.Equal(t, depth.RenderState(), draws[0].Pipeline.Desc().State)
}

func TestClonedMaterialsSharePipeline(t *testing.T) {
	objects := object.NewContext()
	device, gctx := newSoftContext(t)
	rctx := NewScriptableRenderContext(device, gctx)
	defer rctx.Close()

	camera := newCamera(objects)
	a := material.NewBasicMaterial(objects, math.NewVec4One())
	b := a.Clone()
	require.NoError(t, b.Set(material.PARAM_COLOR, math.NewVec4(0, 1, 0, 1)))
	mesh := scene.PlaneMesh(objects, 1, 1)

	require.NoError(t, rctx.DrawMesh(mesh, 0, a, camera, math.NewMat4Identity()))
	require.NoError(t, rctx.DrawMesh(mesh, 0, b, camera, math.NewMat4Identity()))

	draws := gctx.CommandsOf(soft.OP_DRAW_INDEXED)
	require.Len(t, draws, 2)
	assert.Same(t, draws[0].Pipeline, draws[1].Pipeline)
	assert.NotSame(t, draws[0].DescriptorSet, draws[1].DescriptorSet)
}

func TestReloadShaderRecompiles(t *testing.T) {
	objects := object.NewContext()
	device, gctx := newSoftContext(t)
	rctx := NewScriptableRenderContext(device, gctx)
	defer rctx.Close()

	mat := material.NewBasicMaterial(objects, math.NewVec4One())
	require.NoError(t, rctx.CompileMaterial(mat))
	live := device.LiveResources()

	rctx.ReloadShader(mat.Shader())
	assert.Less(t, device.LiveResources(), live)

	require.NoError(t, rctx.CompileMaterial(mat))
	assert.Equal(t, live, device.LiveResources())
}

func TestMaterialWithoutShaderFails(t *testing.T) {
	objects := object.NewContext()
	device, gctx := newSoftContext(t)
	rctx := NewScriptableRenderContext(device, gctx)
	defer rctx.Close()

	mat := material.NewMaterial(objects, "broken", nil)
	err := rctx.DrawMesh(scene.PlaneMesh(objects, 1, 1), 0, mat, nil, math.NewMat4Identity())
	assert.ErrorIs(t, err, core.ErrInvalidDesc)
	assert.Empty(t, gctx.CommandsOf(soft.OP_DRAW_INDEXED))
}

func TestCloseReleasesDeviceObjects(t *testing.T) {
	objects := object.NewContext()
	device, gctx := newSoftContext(t)
	base := device.LiveResources()
	rctx := NewScriptableRenderContext(device, gctx)

	camera := newCamera(objects)
	geo := scene.NewGeometry(objects, "cube", scene.CubeMesh(objects, 1, 1, 1), material.NewBasicMaterial(objects, math.NewVec4One()))
	require.NoError(t, rctx.DrawRenderers([]*scene.Geometry{geo}, camera, nil))
	assert.Greater(t, device.LiveResources(), base)

	rctx.Close()
	assert.Equal(t, base, device.LiveResources())
}
