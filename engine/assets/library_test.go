package assets

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/spaghettifunk/octoon/engine/core"
	"github.com/spaghettifunk/octoon/engine/hal"
	"github.com/spaghettifunk/octoon/engine/hal/soft"
	"github.com/spaghettifunk/octoon/engine/material"
	"github.com/spaghettifunk/octoon/engine/object"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type compilerSpy struct {
	mu       sync.Mutex
	reloaded []*material.Shader
}

func (c *compilerSpy) ReloadShader(shader *material.Shader) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.reloaded = append(c.reloaded, shader)
}

func (c *compilerSpy) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.reloaded)
}

type libraryFixture struct {
	root     string
	manager  *AssetManager
	device   *soft.Device
	objects  *object.Context
	compiler *compilerSpy
	library  *Library
}

func newLibraryFixture(t *testing.T, files map[string]string) *libraryFixture {
	t.Helper()
	sys := hal.NewGraphicsSystem()
	soft.Register(sys)
	t.Cleanup(sys.Close)
	device, err := sys.CreateDevice(hal.GraphicsDeviceDesc{DeviceType: hal.DEVICE_TYPE_SOFT})
	require.NoError(t, err)

	root := t.TempDir()
	for name, data := range files {
		writeAsset(t, root, name, data)
	}

	f := &libraryFixture{
		root:     root,
		manager:  newManager(t, root),
		device:   device.(*soft.Device),
		objects:  object.NewContext(),
		compiler: &compilerSpy{},
	}
	f.library = NewLibrary(f.manager, device, f.objects, f.compiler)
	t.Cleanup(f.library.Close)
	return f
}

func solidPNG(t *testing.T, c color.NRGBA) string {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, 2, 2))
	for y := 0; y < 2; y++ {
		for x := 0; x < 2; x++ {
			img.Set(x, y, c)
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.String()
}

const texturedMaterial = `name: ground
shader: builtin.basic
params:
  opacity: 0.5
  mapEnable: true
  map: textures/ground.png
`

func TestLoadMaterialResolvesBuiltinShaderAndTextures(t *testing.T) {
	f := newLibraryFixture(t, map[string]string{
		"materials/ground.yaml": texturedMaterial,
		"textures/ground.png":   solidPNG(t, color.NRGBA{G: 255, A: 255}),
	})

	m, err := f.library.LoadMaterial("materials/ground.yaml")
	require.NoError(t, err)
	assert.Same(t, material.BuiltinShader("builtin.basic"), m.Shader())
	assert.Equal(t, float32(0.5), m.At(material.PARAM_OPACITY).Float())

	tex := m.At(material.PARAM_MAP).Texture()
	require.NotNil(t, tex)
	assert.Equal(t, uint32(2), tex.Desc().Width)

	again, err := f.library.LoadMaterial("materials/ground.yaml")
	require.NoError(t, err)
	assert.Same(t, m, again)
}

func TestLoadMaterialUnknownShader(t *testing.T) {
	f := newLibraryFixture(t, map[string]string{
		"materials/odd.yaml": "name: odd\nshader: custom.missing\n",
	})
	_, err := f.library.LoadMaterial("materials/odd.yaml")
	assert.ErrorIs(t, err, core.ErrAssetNotFound)
}

func TestMaterialReloadMarksDirty(t *testing.T) {
	f := newLibraryFixture(t, map[string]string{
		"materials/ground.yaml": basicMaterial,
	})
	m, err := f.library.LoadMaterial("materials/ground.yaml")
	require.NoError(t, err)
	ctrl := f.objects.NextControllerID()
	m.ClearDirty(ctrl)

	writeAsset(t, f.root, "materials/ground.yaml", "name: ground\nshader: builtin.basic\nparams:\n  opacity: 0.25\n")
	waitForReloads(t, f.manager, func() bool {
		return m.At(material.PARAM_OPACITY).Float() == 0.25
	})
	assert.True(t, m.IsDirty(ctrl))
}

func TestStageEditReloadsOwningShader(t *testing.T) {
	f := newLibraryFixture(t, map[string]string{
		"shaders/unlit.shader": "name: unlit\nvertex: unlit.vert\nfragment: unlit.frag\n",
		"shaders/unlit.vert":   "#version 450\nvoid main() {}\n",
		"shaders/unlit.frag":   "#version 450\nvoid main() {}\n",
	})
	shader, err := f.library.LoadShader("shaders/unlit.shader")
	require.NoError(t, err)
	assert.Same(t, shader, f.library.Shader("unlit"))

	writeAsset(t, f.root, "shaders/unlit.frag", "#version 450\nvoid main() { discard; }\n")
	waitForReloads(t, f.manager, func() bool {
		return f.compiler.count() > 0 && strings.Contains(shader.FragmentShader, "discard")
	})
	f.compiler.mu.Lock()
	defer f.compiler.mu.Unlock()
	assert.Same(t, shader, f.compiler.reloaded[0])
}

func TestBrokenReloadKeepsPreviousState(t *testing.T) {
	f := newLibraryFixture(t, map[string]string{
		"materials/ground.yaml": basicMaterial,
	})
	m, err := f.library.LoadMaterial("materials/ground.yaml")
	require.NoError(t, err)

	f.library.reloadMaterial("materials/unknown.yaml")
	writeAsset(t, f.root, "materials/ground.yaml", "name: [")
	f.library.reloadMaterial("materials/ground.yaml")
	assert.Equal(t, float32(0.5), m.At(material.PARAM_OPACITY).Float())
}

func TestTextureReloadRebindsMaterials(t *testing.T) {
	f := newLibraryFixture(t, map[string]string{
		"materials/ground.yaml": texturedMaterial,
		"textures/ground.png":   solidPNG(t, color.NRGBA{R: 255, A: 255}),
	})
	m, err := f.library.LoadMaterial("materials/ground.yaml")
	require.NoError(t, err)
	old := m.At(material.PARAM_MAP).Texture()
	live := f.device.LiveResources()

	writeAsset(t, f.root, "textures/ground.png", solidPNG(t, color.NRGBA{B: 255, A: 255}))
	waitForReloads(t, f.manager, func() bool {
		return m.At(material.PARAM_MAP).Texture() != old
	})
	assert.True(t, old.IsClosed())
	assert.Equal(t, live, f.device.LiveResources())
}

func TestLoadModel(t *testing.T) {
	f := newLibraryFixture(t, map[string]string{
		"models/tri.obj": "v 0 0 0\nv 1 0 0\nv 0 1 0\nf 1 2 3\n",
	})
	model, err := f.library.LoadModel("models/tri.obj")
	require.NoError(t, err)
	assert.Equal(t, 3, model.Mesh.NumVertices())
}

func newJobs(t *testing.T) *core.JobSystem {
	t.Helper()
	jobs, err := core.NewJobSystem(2, 4)
	require.NoError(t, err)
	t.Cleanup(func() { _ = jobs.Shutdown() })
	return jobs
}

func TestPreloadTexturesUploadsOnUpdate(t *testing.T) {
	f := newLibraryFixture(t, map[string]string{
		"textures/a.png": solidPNG(t, color.NRGBA{R: 255, A: 255}),
		"textures/b.png": solidPNG(t, color.NRGBA{G: 255, A: 255}),
	})
	jobs := newJobs(t)
	live := f.device.LiveResources()

	n, err := f.library.PreloadTextures(jobs, "textures/a.png", "textures/b.png", "textures/a.png")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, live, f.device.LiveResources())

	require.Eventually(t, func() bool {
		jobs.Update()
		return jobs.Pending() == 0
	}, 5*time.Second, time.Millisecond)
	assert.Equal(t, live+2, f.device.LiveResources())

	texture, err := f.library.Texture("textures/a.png")
	require.NoError(t, err)
	assert.Equal(t, uint32(2), texture.Desc().Width)
	assert.Equal(t, live+2, f.device.LiveResources())

	n, err = f.library.PreloadTextures(jobs, "textures/a.png")
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestPreloadMissingTextureCanBeRetried(t *testing.T) {
	f := newLibraryFixture(t, nil)
	jobs := newJobs(t)

	_, err := f.library.PreloadTextures(jobs, "textures/missing.png")
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		jobs.Update()
		return jobs.Pending() == 0
	}, 5*time.Second, time.Millisecond)

	n, err := f.library.PreloadTextures(jobs, "textures/missing.png")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}
