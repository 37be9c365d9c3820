package engine

import (
	"errors"
	"io"
	"os"
	"testing"

	"github.com/spaghettifunk/octoon/engine/config"
	"github.com/spaghettifunk/octoon/engine/core"
	"github.com/spaghettifunk/octoon/engine/material"
	"github.com/spaghettifunk/octoon/engine/math"
	"github.com/spaghettifunk/octoon/engine/scene"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	core.SetLogOutput(io.Discard)
	os.Exit(m.Run())
}

type countingGame struct {
	*Game
	initialized int
	updates     int
	renders     int
	resizes     [][2]uint32
	shutdowns   int
	failUpdate  bool
}

func newCountingGame() *countingGame {
	g := &countingGame{Game: &Game{}}
	g.FnInitialize = func() error {
		g.initialized++
		camera := scene.NewPerspectiveCamera(g.Objects, "main", 60, 0.1, 100)
		camera.LookAt(math.NewVec3(0, 0, 5), math.NewVec3Zero(), math.NewVec3Up())
		camera.SetRenderToScreen(true)
		g.Scene.AddCamera(camera)
		mat := material.NewBasicMaterial(g.Objects, math.NewVec4One())
		g.Scene.AddRenderObject(scene.NewGeometry(g.Objects, "box", scene.CubeMesh(g.Objects, 1, 1, 1), mat))
		return nil
	}
	g.FnUpdate = func(deltaTime float64) error {
		g.updates++
		if g.failUpdate {
			return errors.New("update failed")
		}
		return nil
	}
	g.FnRender = func(deltaTime float64) error {
		g.renders++
		return nil
	}
	g.FnOnResize = func(width, height uint32) error {
		g.resizes = append(g.resizes, [2]uint32{width, height})
		return nil
	}
	g.FnShutdown = func() error {
		g.shutdowns++
		return nil
	}
	return g
}

func headlessConfig(frames uint64) *config.Config {
	cfg := config.Default()
	cfg.Application.Headless = true
	cfg.Application.Frames = frames
	cfg.Application.TargetFPS = 0
	cfg.Graphics.Backend = config.BACKEND_SOFT
	cfg.Graphics.Width = 160
	cfg.Graphics.Height = 120
	cfg.Assets.HotReload = false
	cfg.Log.Level = "error"
	return cfg
}

func TestStageString(t *testing.T) {
	assert.Equal(t, "running", EngineStageRunning.String())
	assert.Equal(t, "stage(42)", Stage(42).String())
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	cfg := headlessConfig(1)
	cfg.Graphics.Width = 0

	_, err := New(newCountingGame().Game, cfg)
	assert.ErrorIs(t, err, core.ErrInvalidDesc)
}

func TestHeadlessRunRendersConfiguredFrames(t *testing.T) {
	g := newCountingGame()
	e, err := New(g.Game, headlessConfig(3))
	require.NoError(t, err)

	require.NoError(t, e.Initialize())
	assert.Equal(t, EngineStageInitialized, e.Stage())
	assert.Equal(t, 1, g.initialized)
	assert.Equal(t, [][2]uint32{{160, 120}}, g.resizes)

	require.NoError(t, e.Run())
	assert.Equal(t, uint64(3), e.Frames())
	assert.Equal(t, 3, g.updates)
	assert.Equal(t, 3, g.renders)
	assert.Equal(t, uint64(3), g.Pipeline.FrameNumber())

	require.NoError(t, e.Shutdown())
	assert.Equal(t, EngineStageShuttingDown, e.Stage())
	assert.Equal(t, 1, g.shutdowns)
	assert.True(t, e.device.IsClosed())
}

func TestHeadlessForcesSoftBackend(t *testing.T) {
	cfg := headlessConfig(1)
	cfg.Graphics.Backend = config.BACKEND_VULKAN

	e, err := New(newCountingGame().Game, cfg)
	require.NoError(t, err)
	require.NoError(t, e.Initialize())
	t.Cleanup(func() { _ = e.Shutdown() })

	assert.Equal(t, "soft", e.device.Desc().DeviceType.String())
}

func TestRunStopsOnGameError(t *testing.T) {
	g := newCountingGame()
	g.failUpdate = true
	e, err := New(g.Game, headlessConfig(10))
	require.NoError(t, err)
	require.NoError(t, e.Initialize())
	t.Cleanup(func() { _ = e.Shutdown() })

	require.Error(t, e.Run())
	assert.Equal(t, 1, g.updates)
	assert.Equal(t, uint64(0), e.Frames())
}

func TestRunRequiresInitialize(t *testing.T) {
	e, err := New(newCountingGame().Game, headlessConfig(1))
	require.NoError(t, err)
	assert.ErrorIs(t, e.Run(), core.ErrInvalidDesc)
}

func TestQuitEventStopsLoop(t *testing.T) {
	g := newCountingGame()
	e, err := New(g.Game, headlessConfig(0))
	require.NoError(t, err)
	require.NoError(t, e.Initialize())
	t.Cleanup(func() { _ = e.Shutdown() })

	g.FnUpdate = func(deltaTime float64) error {
		g.updates++
		if g.updates == 2 {
			e.Events().Fire(core.EVENT_CODE_APPLICATION_QUIT, g, core.EventContext{})
		}
		return nil
	}
	require.NoError(t, e.Run())
	assert.Equal(t, 2, g.updates)
}

func TestResizeSuspendsAndResumes(t *testing.T) {
	g := newCountingGame()
	e, err := New(g.Game, headlessConfig(1))
	require.NoError(t, err)
	require.NoError(t, e.Initialize())
	t.Cleanup(func() { _ = e.Shutdown() })

	var data core.EventContext
	e.Events().Fire(core.EVENT_CODE_RESIZED, e, data)
	assert.True(t, e.isSuspended)

	data.U32[0], data.U32[1] = 320, 240
	e.Events().Fire(core.EVENT_CODE_RESIZED, e, data)
	assert.False(t, e.isSuspended)
	assert.Equal(t, [2]uint32{320, 240}, g.resizes[len(g.resizes)-1])
	assert.Equal(t, uint32(320), e.swapchain.Desc().Width)

	w, h := e.GetFramebufferSize()
	assert.Equal(t, uint32(320), w)
	assert.Equal(t, uint32(240), h)
}
