package engine

import (
	"errors"
	"fmt"
	"os"
	"runtime"
	"sync/atomic"

	"github.com/spaghettifunk/octoon/engine/assets"
	"github.com/spaghettifunk/octoon/engine/config"
	"github.com/spaghettifunk/octoon/engine/core"
	"github.com/spaghettifunk/octoon/engine/hal"
	"github.com/spaghettifunk/octoon/engine/hal/soft"
	"github.com/spaghettifunk/octoon/engine/hal/vulkan"
	"github.com/spaghettifunk/octoon/engine/object"
	"github.com/spaghettifunk/octoon/engine/platform"
	"github.com/spaghettifunk/octoon/engine/renderer"
	"github.com/spaghettifunk/octoon/engine/renderer/forward"
	"github.com/spaghettifunk/octoon/engine/scene"
)

// Jobs queued beyond this block the submitter.
const JOB_QUEUE_SIZE int = 64

/**
 * @brief Engine drives a Game: it boots the window and the graphics device
 * from the configuration, runs the frame loop and tears everything down in
 * reverse order. Headless engines skip the window, render on the soft
 * device and stop after Application.Frames frames.
 */
type Engine struct {
	currentStage Stage
	gameInstance *Game
	config       *config.Config
	isRunning    atomic.Bool
	isSuspended  bool
	width        uint32
	height       uint32
	clock        *core.Clock
	lastTime     float64
	frames       uint64

	events    *core.EventBus
	jobs      *core.JobSystem
	platform  *platform.Platform
	graphics  *hal.GraphicsSystem
	device    hal.GraphicsDevice
	swapchain hal.GraphicsSwapchain
	context   hal.GraphicsContext
	render    *renderer.ScriptableRenderContext
	pipeline  *forward.Pipeline
	objects   *object.Context
	scene     *scene.RenderScene
	assets    *assets.AssetManager
	library   *assets.Library
}

func New(g *Game, cfg *config.Config) (*Engine, error) {
	if g == nil {
		return nil, fmt.Errorf("engine needs a game: %w", core.ErrInvalidDesc)
	}
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		core.LogError(err.Error())
		return nil, err
	}
	core.SetLogLevel(cfg.Log.Level)

	events := core.NewEventBus()
	e := &Engine{
		currentStage: EngineStageUninitialized,
		gameInstance: g,
		config:       cfg,
		clock:        core.NewClock(),
		events:       events,
		platform:     platform.New(events),
		width:        cfg.Graphics.Width,
		height:       cfg.Graphics.Height,
	}
	g.Config = cfg
	return e, nil
}

func (e *Engine) Stage() Stage {
	return e.currentStage
}

// Events returns the bus window and asset events are fired on.
func (e *Engine) Events() *core.EventBus {
	return e.events
}

func (e *Engine) Initialize() error {
	if e.currentStage != EngineStageUninitialized {
		return fmt.Errorf("engine cannot initialize from stage %s: %w", e.currentStage, core.ErrInvalidDesc)
	}

	e.currentStage = EngineStageBooting
	e.events.Register(core.EVENT_CODE_APPLICATION_QUIT, e, e.onEvent)
	e.events.Register(core.EVENT_CODE_RESIZED, e, e.onResized)

	app := e.config.Application
	if !app.Headless {
		if err := e.platform.Startup(app.Name, app.StartPosX, app.StartPosY, e.width, e.height); err != nil {
			return err
		}
		// the window manager may have picked another size
		if w, h := e.platform.FramebufferSize(); w > 0 && h > 0 {
			e.width, e.height = w, h
		}
	}
	e.currentStage = EngineStageBootComplete

	e.currentStage = EngineStageInitializing
	if err := e.initializeGraphics(); err != nil {
		return err
	}
	err := e.initializeAssets()
	if err != nil {
		return err
	}

	e.jobs, err = core.NewJobSystem(max(runtime.NumCPU()-1, 1), JOB_QUEUE_SIZE)
	if err != nil {
		core.LogError(err.Error())
		return err
	}

	e.objects = object.NewContext()
	e.scene = scene.NewRenderScene()
	e.render = renderer.NewScriptableRenderContext(e.device, e.context)

	opts, err := forward.OptionsFromConfig(e.config.Renderer)
	if err != nil {
		return err
	}
	e.pipeline = forward.NewPipeline(e.render, e.objects, opts)
	if err := e.pipeline.SetupFramebuffers(e.width, e.height); err != nil {
		return err
	}
	e.library = assets.NewLibrary(e.assets, e.device, e.objects, e.render)

	e.gameInstance.Jobs = e.jobs
	e.gameInstance.Objects = e.objects
	e.gameInstance.Scene = e.scene
	e.gameInstance.Library = e.library
	e.gameInstance.Pipeline = e.pipeline

	if e.gameInstance.FnInitialize != nil {
		if err := e.gameInstance.FnInitialize(); err != nil {
			err = fmt.Errorf("game initialize: %w", err)
			core.LogError(err.Error())
			return err
		}
	}
	if e.gameInstance.FnOnResize != nil {
		if err := e.gameInstance.FnOnResize(e.width, e.height); err != nil {
			return err
		}
	}

	e.currentStage = EngineStageInitialized
	core.LogInfo("engine initialized (%s backend, %dx%d)", e.device.Desc().DeviceType, e.width, e.height)
	return nil
}

func (e *Engine) initializeGraphics() error {
	deviceType, err := hal.ParseDeviceType(e.config.Graphics.Backend)
	if err != nil {
		core.LogError(err.Error())
		return err
	}
	if e.config.Application.Headless && deviceType != hal.DEVICE_TYPE_SOFT {
		core.LogWarn("headless engines render on the soft device, ignoring backend '%s'", e.config.Graphics.Backend)
		deviceType = hal.DEVICE_TYPE_SOFT
	}

	e.graphics = hal.NewGraphicsSystem()
	switch deviceType {
	case hal.DEVICE_TYPE_VULKAN:
		vulkan.Register(e.graphics, e.platform.RequiredInstanceExtensions()...)
	default:
		soft.Register(e.graphics)
	}

	e.device, err = e.graphics.CreateDevice(hal.GraphicsDeviceDesc{
		DeviceType:      deviceType,
		EnableDebug:     e.config.Graphics.Debug,
		ApplicationName: e.config.Application.Name,
	})
	if err != nil {
		return err
	}

	desc := hal.GraphicsSwapchainDesc{
		Width:              e.width,
		Height:             e.height,
		VSync:              e.config.Graphics.VSync,
		ColorFormat:        hal.FORMAT_B8G8R8A8_UNORM,
		DepthStencilFormat: hal.FORMAT_D24_UNORM_S8_UINT,
		ImageCount:         2,
	}
	if window := e.platform.Window(); window != nil {
		desc.Window = window
	}
	e.swapchain, err = e.device.CreateSwapchain(desc)
	if err != nil {
		err = fmt.Errorf("failed to create the swapchain: %w", err)
		core.LogError(err.Error())
		return err
	}

	e.context, err = e.device.CreateDeviceContext(hal.GraphicsContextDesc{Swapchain: e.swapchain})
	if err != nil {
		err = fmt.Errorf("failed to create the device context: %w", err)
		core.LogError(err.Error())
		return err
	}
	return nil
}

// initializeAssets indexes the assets directory. It is only watched when hot
// reload is enabled; a missing directory leaves the manager empty.
func (e *Engine) initializeAssets() error {
	am, err := assets.NewAssetManager(e.config.Assets.Dir)
	if err != nil {
		err = fmt.Errorf("failed to create the asset manager: %w", err)
		core.LogError(err.Error())
		return err
	}
	e.assets = am

	if !e.config.Assets.HotReload {
		return nil
	}
	if _, err := os.Stat(am.Root()); err != nil {
		core.LogWarn("assets directory '%s' not found, hot reload disabled", am.Root())
		return nil
	}
	return am.Initialize()
}

func (e *Engine) Run() error {
	if e.currentStage != EngineStageInitialized {
		return fmt.Errorf("engine cannot run from stage %s: %w", e.currentStage, core.ErrInvalidDesc)
	}
	e.currentStage = EngineStageRunning
	e.isRunning.Store(true)

	e.clock.Start()
	e.clock.Update()
	e.lastTime = e.clock.Elapsed()

	var targetFrameSeconds float64
	if fps := e.config.Application.TargetFPS; fps > 0 {
		targetFrameSeconds = 1.0 / float64(fps)
	}

	for e.isRunning.Load() {
		if !e.platform.PumpMessages() {
			e.isRunning.Store(false)
			break
		}
		if e.isSuspended {
			e.platform.Sleep(10)
			continue
		}

		// Update clock and get delta time.
		e.clock.Update()
		currentTime := e.clock.Elapsed()
		delta := currentTime - e.lastTime
		frameStartTime := currentTime

		if err := e.frame(delta); err != nil {
			core.LogError("frame %d failed, shutting down: %s", e.frames, err.Error())
			e.isRunning.Store(false)
			return err
		}
		e.frames++

		// Figure out how long the frame took and, if below the target, give
		// the rest back to the OS.
		e.clock.Update()
		remainingSeconds := targetFrameSeconds - (e.clock.Elapsed() - frameStartTime)
		if targetFrameSeconds > 0 && remainingSeconds > 0.001 {
			e.platform.Sleep(remainingSeconds*1000 - 1)
		}
		e.lastTime = currentTime

		if e.config.Application.Headless && e.config.Application.Frames > 0 && e.frames >= e.config.Application.Frames {
			core.LogInfo("rendered %d headless frames, stopping", e.frames)
			e.isRunning.Store(false)
		}
	}
	return nil
}

func (e *Engine) frame(delta float64) error {
	if e.config.Assets.HotReload {
		e.assets.DispatchReloads()
	}
	e.jobs.Update()
	if e.gameInstance.FnUpdate != nil {
		if err := e.gameInstance.FnUpdate(delta); err != nil {
			return fmt.Errorf("game update: %w", err)
		}
	}
	if e.gameInstance.FnRender != nil {
		if err := e.gameInstance.FnRender(delta); err != nil {
			return fmt.Errorf("game render: %w", err)
		}
	}
	if err := e.pipeline.Render(e.scene, delta); err != nil {
		if errors.Is(err, core.ErrSwapchainBooting) {
			return nil
		}
		return err
	}
	return nil
}

// Frames returns how many frames were rendered so far.
func (e *Engine) Frames() uint64 {
	return e.frames
}

// Quit asks the frame loop to stop after the current frame. It is safe to
// call from any goroutine.
func (e *Engine) Quit() {
	e.isRunning.Store(false)
}

func (e *Engine) Shutdown() error {
	if e.currentStage == EngineStageShuttingDown || e.currentStage == EngineStageUninitialized {
		return nil
	}
	e.currentStage = EngineStageShuttingDown
	e.isRunning.Store(false)

	var err error
	if e.gameInstance.FnShutdown != nil && e.pipeline != nil {
		if gerr := e.gameInstance.FnShutdown(); gerr != nil {
			core.LogError("game shutdown: %s", gerr.Error())
			err = gerr
		}
	}
	if e.jobs != nil {
		_ = e.jobs.Shutdown()
	}
	if e.library != nil {
		e.library.Close()
	}
	if e.assets != nil {
		e.assets.Close()
	}
	if e.pipeline != nil {
		e.pipeline.Close()
	}
	if e.render != nil {
		e.render.Close()
	}
	if e.scene != nil {
		e.scene.Clear()
	}
	if e.context != nil {
		e.context.Close()
	}
	if e.swapchain != nil {
		e.swapchain.Close()
	}
	if e.device != nil {
		e.device.Close()
	}
	if e.graphics != nil {
		e.graphics.Close()
	}
	if perr := e.platform.Shutdown(); perr != nil && err == nil {
		err = perr
	}
	e.events.Shutdown()
	core.LogInfo("engine shut down after %d frames", e.frames)
	return err
}

// GetFramebufferSize returns the width and height (in this order) of the
// application framebuffer.
func (e *Engine) GetFramebufferSize() (uint32, uint32) {
	return e.width, e.height
}

func (e *Engine) onEvent(code core.SystemEventCode, sender interface{}, listener interface{}, data core.EventContext) bool {
	if code == core.EVENT_CODE_APPLICATION_QUIT {
		core.LogInfo("EVENT_CODE_APPLICATION_QUIT received, shutting down.")
		e.isRunning.Store(false)
		return true
	}
	return false
}

func (e *Engine) onResized(code core.SystemEventCode, sender interface{}, listener interface{}, data core.EventContext) bool {
	width, height := data.U32[0], data.U32[1]
	if width == e.width && height == e.height {
		return false
	}
	e.width, e.height = width, height
	core.LogDebug("Window resize: %d, %d", width, height)

	// Handle minimization
	if width == 0 || height == 0 {
		core.LogInfo("Window minimized, suspending application.")
		e.isSuspended = true
		return false
	}
	if e.isSuspended {
		core.LogInfo("Window restored, resuming application.")
		e.isSuspended = false
	}

	if err := e.swapchain.Resize(width, height); err != nil && !errors.Is(err, core.ErrSwapchainBooting) {
		core.LogError("swapchain resize: %s", err.Error())
	}
	e.pipeline.OnResize(width, height)
	if e.gameInstance.FnOnResize != nil {
		if err := e.gameInstance.FnOnResize(width, height); err != nil {
			core.LogError(err.Error())
		}
	}
	return false
}
