package testbed

import (
	"errors"
	"fmt"

	"github.com/chewxy/math32"
	"github.com/spaghettifunk/octoon/engine"
	"github.com/spaghettifunk/octoon/engine/assets/loaders"
	"github.com/spaghettifunk/octoon/engine/core"
	"github.com/spaghettifunk/octoon/engine/material"
	"github.com/spaghettifunk/octoon/engine/math"
	"github.com/spaghettifunk/octoon/engine/scene"
)

// Loaded from the assets directory when it exists, the built-in colour is
// used otherwise.
const CUBE_MATERIAL_PATH string = "materials/cube.yaml"

type TestGame struct {
	*engine.Game
}

type gameState struct {
	WorldCamera *scene.Camera
	Sun         *scene.DirectionalLight
	Lamp        *scene.PointLight

	cube   *scene.Geometry
	sphere *scene.Geometry
	ground *scene.Geometry

	angle       float32
	elapsed     float64
	reportEvery float64
	width       uint32
	height      uint32
}

func NewTestGame() *TestGame {
	tg := &TestGame{
		Game: &engine.Game{
			State: &gameState{reportEvery: 5},
		},
	}

	tg.FnInitialize = tg.Initialize
	tg.FnUpdate = tg.Update
	tg.FnRender = tg.Render
	tg.FnOnResize = tg.OnResize
	tg.FnShutdown = tg.Shutdown

	return tg
}

func (g *TestGame) Initialize() error {
	core.LogDebug("TestGame Initialize fn....")

	if g.Scene == nil || g.Objects == nil {
		return fmt.Errorf("the engine did not hand over a scene")
	}
	state := g.State.(*gameState)

	state.WorldCamera = scene.NewPerspectiveCamera(g.Objects, "world", 60, 0.1, 100)
	state.WorldCamera.LookAt(math.NewVec3(6, 4, 8), math.NewVec3Zero(), math.NewVec3Up())
	state.WorldCamera.SetClearColor(math.NewVec4(0.1, 0.1, 0.15, 1))
	state.WorldCamera.SetRenderToScreen(true)
	g.Scene.AddCamera(state.WorldCamera)

	g.Scene.AddRenderObject(scene.NewAmbientLight(g.Objects, math.NewVec3(1, 1, 1), 0.2))

	state.Sun = scene.NewDirectionalLight(g.Objects, math.NewVec3(1, 0.95, 0.9), 1)
	state.Sun.SetTransform(math.NewMat4LookAt(math.NewVec3(5, 10, 5), math.NewVec3Zero(), math.NewVec3Up()).Inverse())
	state.Sun.SetShadowEnable(true)
	if g.Config != nil {
		state.Sun.SetShadowMapSize(g.Config.Renderer.ShadowMapSize)
	}
	g.Scene.AddRenderObject(state.Sun)

	state.Lamp = scene.NewPointLight(g.Objects, math.NewVec3(1, 0.6, 0.3), 2, 10)
	state.Lamp.SetTranslate(math.NewVec3(-3, 2, 0))
	g.Scene.AddRenderObject(state.Lamp)

	if err := g.preloadTextures(); err != nil {
		return err
	}

	cubeMaterial, err := g.cubeMaterial()
	if err != nil {
		return err
	}
	state.cube = scene.NewGeometry(g.Objects, "cube", scene.CubeMesh(g.Objects, 2, 2, 2), cubeMaterial)
	state.cube.SetCastShadow(true)
	state.cube.SetSelected(true)
	g.Scene.AddRenderObject(state.cube)

	sphereMaterial := material.NewBasicMaterial(g.Objects, math.NewVec4(0.2, 0.5, 0.9, 1))
	state.sphere = scene.NewGeometry(g.Objects, "sphere", scene.SphereMesh(g.Objects, 1, 32, 16), sphereMaterial)
	state.sphere.SetTranslate(math.NewVec3(3, 1, 0))
	state.sphere.SetCastShadow(true)
	g.Scene.AddRenderObject(state.sphere)

	glass := material.NewBasicMaterial(g.Objects, math.NewVec4(0.9, 0.9, 1, 0.4))
	glass.MustSet(material.PARAM_OPACITY, float32(0.4))
	glass.SetQueue(material.QUEUE_TRANSPARENT)
	pane := scene.NewGeometry(g.Objects, "pane", scene.PlaneMesh(g.Objects, 2, 2), glass)
	pane.SetTranslate(math.NewVec3(0, 1, 3))
	g.Scene.AddRenderObject(pane)

	groundMaterial := material.NewBasicMaterial(g.Objects, math.NewVec4(0.4, 0.4, 0.4, 1))
	state.ground = scene.NewGeometry(g.Objects, "ground", scene.PlaneMesh(g.Objects, 20, 20), groundMaterial)
	state.ground.SetTransform(math.NewMat4EulerX(-math.K_PI / 2).Mul(math.NewMat4Translation(math.NewVec3(0, -1, 0))))
	state.ground.SetReceiveShadow(true)
	g.Scene.AddRenderObject(state.ground)

	return nil
}

// preloadTextures decodes every image in the assets directory off the frame
// thread so materials loaded later find their textures uploaded.
func (g *TestGame) preloadTextures() error {
	if g.Library == nil || g.Jobs == nil {
		return nil
	}
	var paths []string
	for _, asset := range g.Library.Manager().Assets() {
		if asset.Type == loaders.RESOURCE_TYPE_IMAGE {
			paths = append(paths, asset.Path)
		}
	}
	n, err := g.Library.PreloadTextures(g.Jobs, paths...)
	if err != nil {
		return err
	}
	if n > 0 {
		core.LogInfo("preloading %d textures", n)
	}
	return nil
}

func (g *TestGame) cubeMaterial() (*material.Material, error) {
	if g.Library != nil {
		m, err := g.Library.LoadMaterial(CUBE_MATERIAL_PATH)
		if err == nil {
			return m, nil
		}
		if !errors.Is(err, core.ErrAssetNotFound) {
			return nil, err
		}
		core.LogDebug("'%s' not found, using the built-in cube material", CUBE_MATERIAL_PATH)
	}
	return material.NewBasicMaterial(g.Objects, math.NewVec4(0.9, 0.3, 0.2, 1)), nil
}

func (g *TestGame) Update(deltaTime float64) error {
	state := g.State.(*gameState)

	// Perform a small rotation on the cube.
	state.angle += float32(0.5 * deltaTime)
	state.cube.SetTransform(math.NewMat4EulerY(state.angle))

	state.elapsed += deltaTime
	if state.elapsed >= state.reportEvery && g.Pipeline != nil {
		state.elapsed = 0
		fps, frameTime := g.Pipeline.Metrics().Frame()
		pos := state.WorldCamera.Translate()
		core.LogInfo("FPS: %5.1f(%4.1fms) Pos=[%7.3f %7.3f %7.3f] skipped passes: %d",
			fps, frameTime, pos.X, pos.Y, pos.Z, g.Pipeline.Metrics().SkippedPasses())
	}
	return nil
}

func (g *TestGame) Render(deltaTime float64) error {
	state := g.State.(*gameState)
	// keep the lamp circling the cube
	x := 3 * math32.Cos(state.angle)
	z := 3 * math32.Sin(state.angle)
	state.Lamp.SetTranslate(math.NewVec3(x, 2, z))
	return nil
}

func (g *TestGame) OnResize(width uint32, height uint32) error {
	state := g.State.(*gameState)

	state.width = width
	state.height = height
	if height > 0 {
		state.WorldCamera.SetAspect(float32(width) / float32(height))
	}
	return nil
}

func (g *TestGame) Shutdown() error {
	for _, camera := range g.Scene.Cameras() {
		camera.Close()
	}
	for _, light := range g.Scene.Lights() {
		if s, ok := light.(interface{ CloseShadowMap() }); ok {
			s.CloseShadowMap()
		}
	}
	return nil
}
