package platform

import (
	"fmt"
	"runtime"
	"time"

	"github.com/go-gl/glfw/v3.3/glfw"
	"github.com/spaghettifunk/octoon/engine/core"
)

func init() {
	// GLFW event handling must run on the main OS thread
	runtime.LockOSThread()
}

/**
 * @brief Platform owns the application window. Window events are turned into
 * engine events on the bus it was created with: closing the window or
 * pressing escape fires EVENT_CODE_APPLICATION_QUIT, a framebuffer size
 * change fires EVENT_CODE_RESIZED.
 */
type Platform struct {
	window    *glfw.Window
	events    *core.EventBus
	startTime float64
	started   bool
}

func New(events *core.EventBus) *Platform {
	return &Platform{events: events}
}

func (p *Platform) Startup(applicationName string, x uint32, y uint32, width uint32, height uint32) error {
	if err := glfw.Init(); err != nil {
		err = fmt.Errorf("failed to initialize glfw: %w", err)
		core.LogError(err.Error())
		return err
	}
	p.started = true

	glfw.WindowHint(glfw.Visible, glfw.False)
	glfw.WindowHint(glfw.Resizable, glfw.True)
	glfw.WindowHint(glfw.ClientAPI, glfw.NoAPI) // Required for Vulkan.

	window, err := glfw.CreateWindow(int(width), int(height), applicationName, nil, nil)
	if err != nil {
		err = fmt.Errorf("failed to create window: %w", err)
		core.LogError(err.Error())
		return err
	}
	p.window = window

	p.window.SetCloseCallback(p.closeCallback)
	p.window.SetKeyCallback(p.keyCallback)
	p.window.SetFramebufferSizeCallback(p.framebufferSizeCallback)
	p.window.SetPos(int(x), int(y))
	p.window.Show()

	p.startTime = glfw.GetTime()
	core.LogInfo("window '%s' created (%dx%d)", applicationName, width, height)
	return nil
}

func (p *Platform) Shutdown() error {
	if p.window != nil {
		p.window.Destroy()
		p.window = nil
	}
	if p.started {
		glfw.Terminate()
		p.started = false
	}
	return nil
}

// PumpMessages processes pending window events. It returns false once the
// window was asked to close.
func (p *Platform) PumpMessages() bool {
	if p.window == nil {
		return true
	}
	glfw.PollEvents()
	return !p.window.ShouldClose()
}

// Window returns the native window handed to swapchains, nil before Startup.
func (p *Platform) Window() *glfw.Window {
	return p.window
}

func (p *Platform) FramebufferSize() (uint32, uint32) {
	if p.window == nil {
		return 0, 0
	}
	w, h := p.window.GetFramebufferSize()
	return uint32(w), uint32(h)
}

// RequiredInstanceExtensions lists the Vulkan instance extensions the window
// surface needs.
func (p *Platform) RequiredInstanceExtensions() []string {
	if p.window == nil || !glfw.VulkanSupported() {
		return nil
	}
	return p.window.GetRequiredInstanceExtensions()
}

// GetAbsoluteTime returns the seconds elapsed since Startup.
func (p *Platform) GetAbsoluteTime() float64 {
	if !p.started {
		return 0
	}
	return glfw.GetTime() - p.startTime
}

func (p *Platform) Sleep(ms float64) {
	time.Sleep(time.Duration(ms * float64(time.Millisecond)))
}

func (p *Platform) closeCallback(w *glfw.Window) {
	p.events.Fire(core.EVENT_CODE_APPLICATION_QUIT, p, core.EventContext{})
}

func (p *Platform) keyCallback(w *glfw.Window, key glfw.Key, scancode int, action glfw.Action, mods glfw.ModifierKey) {
	if key == glfw.KeyEscape && action == glfw.Press {
		p.events.Fire(core.EVENT_CODE_APPLICATION_QUIT, p, core.EventContext{})
	}
}

func (p *Platform) framebufferSizeCallback(w *glfw.Window, width, height int) {
	var data core.EventContext
	data.U32[0] = uint32(width)
	data.U32[1] = uint32(height)
	p.events.Fire(core.EVENT_CODE_RESIZED, p, data)
}
