package scene

import (
	"errors"
	"io"
	"os"
	"testing"

	"github.com/spaghettifunk/octoon/engine/core"
	"github.com/spaghettifunk/octoon/engine/hal"
	"github.com/spaghettifunk/octoon/engine/hal/soft"
	"github.com/spaghettifunk/octoon/engine/material"
	"github.com/spaghettifunk/octoon/engine/math"
	"github.com/spaghettifunk/octoon/engine/object"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	core.SetLogOutput(io.Discard)
	os.Exit(m.Run())
}

func newSoftDevice(t *testing.T) *soft.Device {
	t.Helper()
	sys := hal.NewGraphicsSystem()
	soft.Register(sys)
	t.Cleanup(sys.Close)

	device, err := sys.CreateDevice(hal.GraphicsDeviceDesc{DeviceType: hal.DEVICE_TYPE_SOFT})
	require.NoError(t, err)
	return device.(*soft.Device)
}

func TestRemoveCameraTwiceIsNoop(t *testing.T) {
	ctx := object.NewContext()
	s := NewRenderScene()
	a := NewPerspectiveCamera(ctx, "a", 60, 0.1, 100)
	b := NewPerspectiveCamera(ctx, "b", 60, 0.1, 100)
	s.AddCamera(a)
	s.AddCamera(b)

	s.RemoveCamera(a)
	rev := s.Revision()
	assert.Equal(t, []*Camera{b}, s.Cameras())

	s.RemoveCamera(a)
	assert.Equal(t, []*Camera{b}, s.Cameras())
	assert.Equal(t, rev, s.Revision())

	s.RemoveCamera(nil)
	assert.Len(t, s.Cameras(), 1)
}

func TestAddIsIdempotent(t *testing.T) {
	ctx := object.NewContext()
	s := NewRenderScene()
	cam := NewPerspectiveCamera(ctx, "main", 60, 0.1, 100)
	geo := NewGeometry(ctx, "box", CubeMesh(ctx, 1, 1, 1))

	s.AddCamera(cam)
	s.AddCamera(cam)
	s.AddRenderObject(geo)
	s.AddRenderObject(geo)
	s.AddCamera(nil)
	s.AddRenderObject(nil)

	assert.Len(t, s.Cameras(), 1)
	assert.Len(t, s.RenderObjects(), 1)
	assert.Equal(t, uint64(2), s.Revision())
}

func TestRemoveSwapsLastIntoSlot(t *testing.T) {
	ctx := object.NewContext()
	s := NewRenderScene()
	var geos []*Geometry
	for _, name := range []string{"a", "b", "c", "d"} {
		g := NewGeometry(ctx, name, nil)
		geos = append(geos, g)
		s.AddRenderObject(g)
	}

	s.RemoveRenderObject(geos[1])
	got := s.Geometries()
	require.Len(t, got, 3)
	assert.Same(t, geos[0], got[0])
	assert.Same(t, geos[3], got[1])
	assert.Same(t, geos[2], got[2])
}

func TestTypedViews(t *testing.T) {
	ctx := object.NewContext()
	s := NewRenderScene()
	sun := NewDirectionalLight(ctx, math.NewVec3One(), 1)
	ambient := NewAmbientLight(ctx, math.NewVec3(0.1, 0.1, 0.1), 1)
	box := NewGeometry(ctx, "box", CubeMesh(ctx, 1, 1, 1))

	s.AddRenderObject(sun)
	s.AddRenderObject(box)
	s.AddRenderObject(ambient)

	assert.Equal(t, []*Geometry{box}, s.Geometries())
	lights := s.Lights()
	require.Len(t, lights, 2)
	assert.Equal(t, LIGHT_TYPE_DIRECTIONAL, lights[0].LightType())
	assert.Equal(t, LIGHT_TYPE_AMBIENT, lights[1].LightType())
	assert.True(t, object.IsKind(lights[1], object.KIND_LIGHT))

	s.Clear()
	assert.Empty(t, s.RenderObjects())
	assert.Empty(t, s.Cameras())
}

func TestSortCamerasByOrder(t *testing.T) {
	ctx := object.NewContext()
	s := NewRenderScene()
	names := []string{"ui", "main", "overlay", "shadow"}
	orders := []int32{2, 0, 2, -1}
	for i, name := range names {
		c := NewPerspectiveCamera(ctx, name, 60, 0.1, 100)
		c.SetOrder(orders[i])
		s.AddCamera(c)
	}

	s.SortCameras()
	var got []string
	for _, c := range s.Cameras() {
		got = append(got, c.Name())
	}
	assert.Equal(t, []string{"shadow", "main", "ui", "overlay"}, got)
}

func TestInstanceIsShared(t *testing.T) {
	assert.Same(t, Instance(), Instance())
}

func TestPixelViewport(t *testing.T) {
	ctx := object.NewContext()
	cam := NewPerspectiveCamera(ctx, "main", 60, 0.1, 100)
	assert.Equal(t, math.NewViewport(0, 0, 1920, 1080), cam.PixelViewport())

	cam.SetViewport(math.NewViewport(0.5, 0, 0.5, 1))
	assert.Equal(t, math.NewViewport(960, 0, 960, 1080), cam.PixelViewport())

	cam.SetScreenSize(800, 600)
	assert.Equal(t, math.NewViewport(400, 0, 400, 600), cam.PixelViewport())

	device := newSoftDevice(t)
	require.NoError(t, cam.SetupFramebuffers(device, 256, 128, 1, hal.FORMAT_R8G8B8A8_UNORM, hal.FORMAT_D16_UNORM))
	assert.Equal(t, math.NewViewport(128, 0, 128, 128), cam.PixelViewport())
}

func TestCameraDefaults(t *testing.T) {
	cam := NewPerspectiveCamera(object.NewContext(), "main", 60, 0.1, 100)
	assert.Equal(t, hal.CLEAR_ALL, cam.ClearFlags())
	assert.Equal(t, math.NewVec4(0, 0, 0, 1), cam.ClearColor())
	assert.Equal(t, math.NewViewport(0, 0, 1, 1), cam.Viewport())
	assert.True(t, cam.Visible())
	assert.Equal(t, object.KIND_CAMERA, cam.Kind())
	assert.True(t, cam.ViewProjection().Equal(cam.Projection(), 1e-6))
}

func TestCameraLookAt(t *testing.T) {
	cam := NewPerspectiveCamera(object.NewContext(), "main", 60, 0.1, 100)
	cam.LookAt(math.NewVec3(0, 0, 5), math.NewVec3Zero(), math.NewVec3Up())

	eye := cam.Translate()
	assert.InDelta(t, 5, eye.Z, 1e-5)
	origin := cam.View().MulVec4(math.NewVec4(0, 0, 0, 1))
	assert.True(t, origin.Compare(math.NewVec4(0, 0, -5, 1), 1e-4), "got %+v", origin)

	cam.MoveForward(2)
	assert.InDelta(t, 3, cam.Translate().Z, 1e-5)
}

func TestCameraSettersMarkDirty(t *testing.T) {
	ctx := object.NewContext()
	ctrl := ctx.NextControllerID()
	cam := NewPerspectiveCamera(ctx, "main", 60, 0.1, 100)

	cam.ClearDirty(ctrl)
	cam.SetClearColor(math.NewVec4One())
	assert.True(t, cam.IsDirty(ctrl))

	cam.ClearDirty(ctrl)
	cam.Yaw(0.5)
	assert.True(t, cam.IsDirty(ctrl))
}

func TestSetupFramebuffersMultisampleCreatesSwap(t *testing.T) {
	device := newSoftDevice(t)
	cam := NewPerspectiveCamera(object.NewContext(), "main", 60, 0.1, 100)

	require.NoError(t, cam.SetupFramebuffers(device, 64, 64, 4, hal.FORMAT_R8G8B8A8_UNORM, hal.FORMAT_D16_UNORM))
	require.NotNil(t, cam.Framebuffer())
	require.NotNil(t, cam.SwapFramebuffer())
	assert.Equal(t, uint32(4), cam.ColorTexture().Desc().Multisample)
	assert.Equal(t, uint32(1), cam.SwapFramebuffer().Desc().ColorAttachments[0].Texture.Desc().Multisample)
	assert.Equal(t, hal.FORMAT_D16_UNORM, cam.DepthTexture().Desc().Format)

	old := cam.Framebuffer()
	require.NoError(t, cam.SetupFramebuffers(device, 32, 32, 1, hal.FORMAT_R8G8B8A8_UNORM, hal.FORMAT_D16_UNORM))
	assert.True(t, old.IsClosed())
	assert.Nil(t, cam.SwapFramebuffer())

	cam.Close()
	assert.Nil(t, cam.Framebuffer())
	assert.Equal(t, 0, device.LiveResources())
}

func TestSetupFramebuffersFailureKeepsNothing(t *testing.T) {
	device := newSoftDevice(t)
	device.SetMaxSamples(1)
	cam := NewPerspectiveCamera(object.NewContext(), "main", 60, 0.1, 100)

	err := cam.SetupFramebuffers(device, 64, 64, 4, hal.FORMAT_R8G8B8A8_UNORM, hal.FORMAT_D16_UNORM)
	assert.True(t, errors.Is(err, core.ErrUnsupportedFormat))
	assert.Nil(t, cam.Framebuffer())
	assert.Equal(t, 0, device.LiveResources())
}

func TestShadowCameraFollowsLight(t *testing.T) {
	ctx := object.NewContext()
	sun := NewDirectionalLight(ctx, math.NewVec3One(), 1)
	sun.SetTranslate(math.NewVec3(0, 10, 0))
	sun.SetLayer(3)

	require.Equal(t, 1, sun.ShadowFaces())
	cam := sun.ShadowCamera(0)
	require.NotNil(t, cam)
	assert.Equal(t, math.NewVec3(0, 10, 0), cam.Translate())
	assert.Equal(t, uint8(3), cam.Layer())
	assert.Equal(t, CAMERA_TYPE_ORTHOGRAPHIC, cam.CameraType())
	assert.Nil(t, sun.ShadowCamera(1))

	point := NewPointLight(ctx, math.NewVec3One(), 1, 20)
	assert.Equal(t, 6, point.ShadowFaces())
	point.SetTranslate(math.NewVec3(1, 2, 3))
	for i := 0; i < point.ShadowFaces(); i++ {
		assert.True(t, point.ShadowCamera(i).Translate().Sub(math.NewVec3(1, 2, 3)).Length() < 1e-5)
	}
}

func TestSetupShadowMap(t *testing.T) {
	device := newSoftDevice(t)
	ctx := object.NewContext()
	spot := NewSpotLight(ctx, math.NewVec3One(), 1, 20, 30)
	spot.SetShadowEnable(true)
	spot.SetShadowMapSize(256)

	require.NoError(t, spot.SetupShadowMap(device))
	fb := spot.ShadowCamera(0).Framebuffer()
	require.NotNil(t, fb)
	assert.Equal(t, uint32(256), fb.Desc().Width)
	assert.Equal(t, hal.FORMAT_R32_SFLOAT, spot.ShadowCamera(0).ColorTexture().Desc().Format)

	// a second setup keeps the maps
	require.NoError(t, spot.SetupShadowMap(device))
	assert.Same(t, fb, spot.ShadowCamera(0).Framebuffer())

	spot.SetShadowMapSize(128)
	assert.Nil(t, spot.ShadowCamera(0).Framebuffer())
	assert.True(t, fb.IsClosed())
}

func TestLightVariants(t *testing.T) {
	ctx := object.NewContext()
	env := NewEnvironmentLight(ctx, math.NewVec3One(), 2)
	assert.True(t, env.ShowBackground())
	assert.Nil(t, env.RadianceMap())
	assert.Equal(t, "environment", env.LightType().String())

	hemi := NewHemisphereLight(ctx, math.NewVec3(0, 0, 1), math.NewVec3(0, 1, 0), 1)
	assert.Equal(t, math.NewVec3(0, 1, 0), hemi.GroundColor())

	rect := NewRectangleLight(ctx, math.NewVec3One(), 1, 2, 3)
	w, h := rect.Size()
	assert.Equal(t, float32(2), w)
	assert.Equal(t, float32(3), h)

	var caster ShadowCaster = NewSpotLight(ctx, math.NewVec3One(), 1, 10, 20)
	assert.False(t, caster.ShadowEnable())
	assert.Equal(t, DEFAULT_SHADOW_MAP_SIZE, caster.ShadowMapSize())
}

func TestPlaneMeshIsScreenQuad(t *testing.T) {
	m := PlaneMesh(object.NewContext(), 2, 2)
	assert.Equal(t, 4, m.NumVertices())
	assert.Equal(t, 1, m.NumSubsets())
	assert.Equal(t, []uint32{0, 1, 2, 2, 1, 3}, m.Indices(0))
	assert.Equal(t, math.NewVec3(-1, -1, 0), m.BoundingBox().Min)
	assert.Equal(t, math.NewVec3(1, 1, 0), m.BoundingBox().Max)
	assert.Len(t, m.Texcoords(0), 4)
	assert.Nil(t, m.Texcoords(1))
	assert.Nil(t, m.Texcoords(5))
}

func TestCubeAndSphereMesh(t *testing.T) {
	ctx := object.NewContext()
	cube := CubeMesh(ctx, 2, 2, 2)
	assert.Equal(t, 24, cube.NumVertices())
	assert.Equal(t, 36, cube.NumIndices())
	assert.Equal(t, math.NewVec3(-1, -1, -1), cube.BoundingBox().Min)

	sphere := SphereMesh(ctx, 1, 8, 4)
	assert.Equal(t, 45, sphere.NumVertices())
	assert.Equal(t, 144, sphere.NumIndices())
	for _, n := range sphere.Normals() {
		assert.InDelta(t, 1, n.Length(), 1e-5)
	}
}

func TestMeshEdits(t *testing.T) {
	ctx := object.NewContext()
	ctrl := ctx.NextControllerID()
	m := NewMesh(ctx, "tri")
	m.ClearDirty(ctrl)

	m.SetVertices([]math.Vec3{math.NewVec3(0, 0, 0), math.NewVec3(1, 0, 0), math.NewVec3(0, 1, 0)})
	m.SetIndices(1, []uint32{0, 1, 2})
	assert.True(t, m.IsDirty(ctrl))
	assert.Equal(t, 2, m.NumSubsets())
	assert.Empty(t, m.Indices(0))

	m.ComputeVertexNormals()
	for _, n := range m.Normals() {
		assert.Equal(t, math.NewVec3(0, 0, 1), n)
	}

	err := m.SetTexcoords(MAX_TEXCOORDS, nil)
	assert.True(t, errors.Is(err, core.ErrInvalidDesc))

	m.Clear()
	assert.Equal(t, 0, m.NumVertices())
	assert.Equal(t, 0, m.NumSubsets())
}

func TestGeometryMaterials(t *testing.T) {
	ctx := object.NewContext()
	ctrl := ctx.NextControllerID()
	red := material.NewBasicMaterial(ctx, math.NewVec4(1, 0, 0, 1))
	blue := material.NewBasicMaterial(ctx, math.NewVec4(0, 0, 1, 1))
	g := NewGeometry(ctx, "box", CubeMesh(ctx, 1, 1, 1), red, blue)

	assert.Same(t, red, g.Material(0))
	assert.Same(t, blue, g.Material(1))
	assert.Same(t, blue, g.Material(7))
	assert.Nil(t, g.Material(-1))
	assert.Nil(t, NewGeometry(ctx, "empty", nil).Material(0))

	assert.True(t, g.IsOpaque())
	g.SetRenderPriority(1)
	assert.False(t, g.IsOpaque())

	g.ClearDirty(ctrl)
	g.Mesh().ClearDirty(ctrl)
	red.ClearDirty(ctrl)
	blue.ClearDirty(ctrl)
	assert.False(t, g.IsDirtyFor(ctrl))

	require.NoError(t, blue.Set(material.PARAM_OPACITY, float32(0.5)))
	assert.True(t, g.IsDirtyFor(ctrl))
	assert.False(t, g.IsDirty(ctrl))
}
