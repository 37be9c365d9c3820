package renderer

import (
	"testing"

	"github.com/spaghettifunk/octoon/engine/core"
	"github.com/spaghettifunk/octoon/engine/material"
	"github.com/spaghettifunk/octoon/engine/math"
	"github.com/spaghettifunk/octoon/engine/object"
	"github.com/spaghettifunk/octoon/engine/scene"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	objects *object.Context
	scene   *scene.RenderScene
	camera  *scene.Camera
	geo     *scene.Geometry
	mat     *material.Material
}

func newFixture() *fixture {
	objects := object.NewContext()
	f := &fixture{
		objects: objects,
		scene:   scene.NewRenderScene(),
		camera:  newCamera(objects),
		mat:     material.NewBasicMaterial(objects, math.NewVec4One()),
	}
	f.geo = scene.NewGeometry(objects, "box", scene.CubeMesh(objects, 1, 1, 1), f.mat)
	f.scene.AddCamera(f.camera)
	f.scene.AddRenderObject(f.geo)
	f.scene.AddRenderObject(scene.NewDirectionalLight(objects, math.NewVec3One(), 1))
	return f
}

func TestCompileFillsRenderingData(t *testing.T) {
	f := newFixture()
	device, gctx := newSoftContext(t)
	rctx := NewScriptableRenderContext(device, gctx)
	defer rctx.Close()

	c := NewSceneController(f.objects)
	defer c.Close()

	data, err := c.Compile(f.scene, f.camera, rctx)
	require.NoError(t, err)
	assert.Same(t, f.camera, data.Camera)
	assert.Equal(t, []*scene.Geometry{f.geo}, data.Geometries)
	assert.Len(t, data.DirectionalLights, 1)
	assert.NotNil(t, data.DirectionalLightBuffer)
	assert.NotNil(t, data.ScreenQuad)
	assert.Same(t, data, rctx.RenderingData())
	assert.Same(t, data, c.RenderingData(f.camera))

	again, err := c.Compile(f.scene, f.camera, rctx)
	require.NoError(t, err)
	assert.Same(t, data, again)
	assert.Len(t, again.Geometries, 1)
}

func TestCompileConsumesOnlyItsOwnDirtyBits(t *testing.T) {
	f := newFixture()
	device, gctx := newSoftContext(t)
	rctx := NewScriptableRenderContext(device, gctx)
	defer rctx.Close()

	a := NewSceneController(f.objects)
	defer a.Close()
	b := NewSceneController(f.objects)
	defer b.Close()

	_, err := a.Compile(f.scene, f.camera, rctx)
	require.NoError(t, err)
	assert.False(t, f.geo.IsDirtyFor(a.ID()))
	assert.False(t, f.camera.IsDirty(a.ID()))
	assert.True(t, f.geo.IsDirtyFor(b.ID()))
	assert.True(t, f.mat.IsDirty(b.ID()))

	f.mat.MustSet(material.PARAM_OPACITY, float32(0.5))
	assert.True(t, f.geo.IsDirtyFor(a.ID()))
	assert.False(t, f.geo.Mesh().IsDirty(a.ID()))
}

func TestCompileSchedulesDirtyMeshes(t *testing.T) {
	f := newFixture()
	device, gctx := newSoftContext(t)
	rctx := NewScriptableRenderContext(device, gctx)
	defer rctx.Close()

	c := NewSceneController(f.objects)
	defer c.Close()

	_, err := c.Compile(f.scene, f.camera, rctx)
	require.NoError(t, err)
	buffer := rctx.RenderBuffer(f.geo.Mesh())
	require.NoError(t, buffer.Bind(gctx, 0))
	assert.Equal(t, uint32(24), buffer.NumVertices())

	f.geo.Mesh().SetVertices(f.geo.Mesh().Vertices()[:3])
	f.geo.Mesh().SetIndices(0, []uint32{0, 1, 2})
	_, err = c.Compile(f.scene, f.camera, rctx)
	require.NoError(t, err)
	require.NoError(t, buffer.Bind(gctx, 0))
	assert.Equal(t, uint32(3), buffer.NumVertices())
}

func TestCompileReportsMaterialErrors(t *testing.T) {
	f := newFixture()
	device, gctx := newSoftContext(t)
	rctx := NewScriptableRenderContext(device, gctx)
	defer rctx.Close()

	c := NewSceneController(f.objects)
	defer c.Close()

	f.mat.SetShader(nil)
	_, err := c.Compile(f.scene, f.camera, rctx)
	assert.ErrorIs(t, err, core.ErrInvalidDesc)

	// the failed traversal ended, a second one can begin
	_, active := f.objects.Active()
	assert.False(t, active)
}

func TestPruneDropsRemovedCameras(t *testing.T) {
	f := newFixture()
	device, gctx := newSoftContext(t)
	rctx := NewScriptableRenderContext(device, gctx)
	defer rctx.Close()

	c := NewSceneController(f.objects)
	defer c.Close()

	data, err := c.Compile(f.scene, f.camera, rctx)
	require.NoError(t, err)
	buffer := data.DirectionalLightBuffer

	other := newCamera(f.objects)
	f.scene.RemoveCamera(f.camera)
	f.scene.AddCamera(other)
	_, err = c.Compile(f.scene, other, rctx)
	require.NoError(t, err)

	assert.Nil(t, c.RenderingData(f.camera))
	assert.True(t, buffer.IsClosed())
}

func TestCloseReleasesControllerID(t *testing.T) {
	objects := object.NewContext()
	c := NewSceneController(objects)
	assert.Equal(t, 1, objects.LiveControllers())

	c.Close()
	c.Close()
	assert.Zero(t, objects.LiveControllers())
	assert.NotPanics(t, objects.ResetControllerIDs)

	assert.Panics(t, func() {
		_, _ = c.Compile(scene.NewRenderScene(), newCamera(objects), nil)
	})
}
