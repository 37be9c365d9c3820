package forward

import (
	"errors"
	"fmt"

	"github.com/spaghettifunk/octoon/engine/config"
	"github.com/spaghettifunk/octoon/engine/core"
	"github.com/spaghettifunk/octoon/engine/hal"
	"github.com/spaghettifunk/octoon/engine/math"
	"github.com/spaghettifunk/octoon/engine/object"
	"github.com/spaghettifunk/octoon/engine/renderer"
	"github.com/spaghettifunk/octoon/engine/renderer/passes"
	"github.com/spaghettifunk/octoon/engine/scene"
	"golang.org/x/exp/slices"
)

const (
	DEFAULT_MULTISAMPLE uint32 = 4
	// frames to wait after the last resize before the targets are rebuilt
	DEFAULT_RESIZE_SETTLE_FRAMES uint8 = 30
)

// FailurePolicy decides what Render does when a pass returns an error.
type FailurePolicy uint8

const (
	// Log the error, count the pass as skipped and run the next one.
	FAILURE_POLICY_SKIP FailurePolicy = iota
	// End the frame and return the error.
	FAILURE_POLICY_ABORT
)

func ParseFailurePolicy(s string) (FailurePolicy, error) {
	switch s {
	case config.PASS_FAILURE_SKIP, "":
		return FAILURE_POLICY_SKIP, nil
	case config.PASS_FAILURE_ABORT:
		return FAILURE_POLICY_ABORT, nil
	}
	return FAILURE_POLICY_SKIP, fmt.Errorf("unknown pass failure policy '%s': %w", s, core.ErrInvalidDesc)
}

type Options struct {
	Multisample        uint32
	PassFailure        FailurePolicy
	EnableSkybox       bool
	EnableSelector     bool
	SelectionColor     math.Vec4
	ResizeSettleFrames uint8
}

func DefaultOptions() Options {
	return Options{
		Multisample:        DEFAULT_MULTISAMPLE,
		PassFailure:        FAILURE_POLICY_SKIP,
		EnableSkybox:       true,
		EnableSelector:     true,
		SelectionColor:     passes.DEFAULT_SELECTION_COLOR,
		ResizeSettleFrames: DEFAULT_RESIZE_SETTLE_FRAMES,
	}
}

// OptionsFromConfig maps the renderer section of the engine configuration.
func OptionsFromConfig(cfg config.RendererConfig) (Options, error) {
	policy, err := ParseFailurePolicy(cfg.PassFailure)
	if err != nil {
		core.LogError(err.Error())
		return Options{}, err
	}
	opts := DefaultOptions()
	opts.Multisample = max(cfg.MSAA, 1)
	opts.PassFailure = policy
	opts.EnableSkybox = cfg.EnableSkybox
	opts.EnableSelector = cfg.EnableSelector
	return opts, nil
}

/**
 * @brief Pipeline is the forward frame driver. Every frame it compiles the
 * rendering data of each registered camera and runs the passes in event
 * order. Cameras without a framebuffer of their own render into the
 * pipeline target, which is multisampled when the device allows it and is
 * resolved and presented after the passes.
 */
type Pipeline struct {
	ctx        *renderer.ScriptableRenderContext
	controller *renderer.SceneController
	passes     []renderer.ScriptableRenderPass
	metrics    *core.FrameMetrics
	opts       Options

	// multisampled or plain target, and its resolve target when multisampled
	target  *hal.RenderTarget
	resolve *hal.RenderTarget
	samples uint32
	width   uint32
	height  uint32

	resizing          bool
	framesSinceResize uint8
	pendingWidth      uint32
	pendingHeight     uint32

	frameNumber uint64
}

func NewPipeline(ctx *renderer.ScriptableRenderContext, objects *object.Context, opts Options) *Pipeline {
	p := &Pipeline{
		ctx:        ctx,
		controller: renderer.NewSceneController(objects),
		metrics:    core.NewFrameMetrics(),
		opts:       opts,
	}
	p.AddPass(passes.NewLightsShadowCasterPass(objects))
	p.AddPass(passes.NewDrawOpaquePass())
	if opts.EnableSkybox {
		p.AddPass(passes.NewDrawSkyboxPass(objects))
	}
	p.AddPass(passes.NewDrawTransparentPass())
	if opts.EnableSelector {
		p.AddPass(passes.NewDrawSelectorPass(objects, opts.SelectionColor))
	}
	return p
}

// AddPass inserts pass after every pass with the same or an earlier event.
func (p *Pipeline) AddPass(pass renderer.ScriptableRenderPass) {
	p.passes = append(p.passes, pass)
	slices.SortStableFunc(p.passes, func(a, b renderer.ScriptableRenderPass) int {
		return int(a.Event()) - int(b.Event())
	})
}

func (p *Pipeline) Passes() []renderer.ScriptableRenderPass {
	return p.passes
}

func (p *Pipeline) Metrics() *core.FrameMetrics {
	return p.metrics
}

func (p *Pipeline) Controller() *renderer.SceneController {
	return p.controller
}

func (p *Pipeline) FrameNumber() uint64 {
	return p.frameNumber
}

// Framebuffer is the target cameras without a framebuffer render into.
func (p *Pipeline) Framebuffer() hal.GraphicsFramebuffer {
	if p.target == nil {
		return nil
	}
	return p.target.Framebuffer
}

func (p *Pipeline) Multisample() uint32 {
	return p.samples
}

func (p *Pipeline) Size() (uint32, uint32) {
	return p.width, p.height
}

/**
 * @brief Creates the pipeline target. A multisampled R32G32B32 colour with
 * an X8_D24 depth buffer is tried first; when the device refuses it a plain
 * R8G8B8A8 colour with a D16 depth buffer is used instead. Previous targets
 * are closed only once the new ones exist.
 */
func (p *Pipeline) SetupFramebuffers(width, height uint32) error {
	device := p.ctx.Device()

	samples := max(p.opts.Multisample, 1)
	target, resolve, err := createTargets(device, width, height, samples, hal.FORMAT_R32G32B32_SFLOAT, hal.FORMAT_X8_D24_UNORM_PACK32)
	if err != nil {
		core.LogWarn("forward pipeline: %dx MSAA target unavailable, falling back: %s", samples, err.Error())
		samples = 1
		target, resolve, err = createTargets(device, width, height, samples, hal.FORMAT_R8G8B8A8_UNORM, hal.FORMAT_D16_UNORM)
	}
	if err != nil {
		err = fmt.Errorf("forward pipeline %dx%d: %w: %w", width, height, core.ErrFramebufferSetup, err)
		core.LogError(err.Error())
		return err
	}

	p.closeTargets()
	p.target, p.resolve = target, resolve
	p.samples = samples
	p.width, p.height = width, height
	core.LogDebug("forward pipeline target %dx%d with %d samples", width, height, samples)
	return nil
}

func createTargets(device hal.GraphicsDevice, width, height, samples uint32, color, depth hal.GraphicsFormat) (*hal.RenderTarget, *hal.RenderTarget, error) {
	target, err := hal.CreateRenderTarget(device, hal.RenderTargetDesc{
		Name:               "forward.target",
		Width:              width,
		Height:             height,
		Multisample:        samples,
		ColorFormat:        color,
		DepthStencilFormat: depth,
	})
	if err != nil {
		return nil, nil, err
	}
	if samples <= 1 {
		return target, nil, nil
	}
	resolve, err := hal.CreateRenderTarget(device, hal.RenderTargetDesc{
		Name:        "forward.resolve",
		Width:       width,
		Height:      height,
		Multisample: 1,
		ColorFormat: color,
	})
	if err != nil {
		target.Close()
		return nil, nil, err
	}
	return target, resolve, nil
}

/**
 * @brief Records a window resize. The targets are rebuilt once no resize has
 * arrived for ResizeSettleFrames frames; frames in between are skipped.
 */
func (p *Pipeline) OnResize(width, height uint32) {
	p.resizing = true
	p.framesSinceResize = 0
	p.pendingWidth, p.pendingHeight = width, height
}

/**
 * @brief Renders one frame of s. Cameras are drawn in order; each one gets
 * its rendering data compiled by the pipeline's scene controller before the
 * passes run. What happens when a pass fails follows the failure policy.
 * A swapchain that is being recreated skips the frame without an error.
 */
func (p *Pipeline) Render(s *scene.RenderScene, deltaTime float64) error {
	p.frameNumber++
	p.metrics.Update(deltaTime)

	if p.resizing {
		if p.framesSinceResize < p.opts.ResizeSettleFrames {
			p.framesSinceResize++
			return nil
		}
		if err := p.SetupFramebuffers(p.pendingWidth, p.pendingHeight); err != nil {
			return err
		}
		p.resizing = false
		p.framesSinceResize = 0
	}

	if err := p.ctx.BeginFrame(); err != nil {
		if errors.Is(err, core.ErrSwapchainBooting) {
			return nil
		}
		return err
	}

	s.SortCameras()
	for _, camera := range s.Cameras() {
		if !camera.Visible() {
			continue
		}
		if err := p.renderCamera(s, camera); err != nil {
			if p.opts.PassFailure == FAILURE_POLICY_ABORT {
				if endErr := p.ctx.EndFrame(); endErr != nil {
					core.LogError(endErr.Error())
				}
				return err
			}
		}
	}

	if err := p.ctx.EndFrame(); err != nil {
		err = fmt.Errorf("forward pipeline end frame: %w", err)
		core.LogError(err.Error())
		return err
	}
	return p.ctx.Present()
}

func (p *Pipeline) renderCamera(s *scene.RenderScene, camera *scene.Camera) error {
	own := camera.Framebuffer() != nil
	if !own && p.target != nil {
		if w, h := camera.ScreenSize(); w != p.width || h != p.height {
			camera.SetScreenSize(p.width, p.height)
		}
	}

	data, err := p.controller.Compile(s, camera, p.ctx)
	if err != nil {
		err = fmt.Errorf("camera '%s': %w", camera.Name(), err)
		core.LogError(err.Error())
		return err
	}
	if !own && p.target != nil {
		data.Framebuffer = p.target.Framebuffer
		data.ColorTexture = p.target.Color
		data.DepthTexture = p.target.DepthStencil
	}

	for _, pass := range p.passes {
		if err := pass.Execute(p.ctx, data); err != nil {
			err = fmt.Errorf("camera '%s' pass '%s': %w", camera.Name(), pass.Name(), err)
			core.LogError(err.Error())
			if p.opts.PassFailure == FAILURE_POLICY_ABORT {
				return err
			}
			p.metrics.PassSkipped()
		}
	}

	p.present(camera, data)
	return nil
}

// present resolves the pipeline target, copies a camera framebuffer whole
// into the camera's swap framebuffer and copies the frame to the screen when
// the camera asks for it.
func (p *Pipeline) present(camera *scene.Camera, data *renderer.RenderingData) {
	src := data.Framebuffer
	if src == nil {
		return
	}
	viewport := camera.PixelViewport()

	if camera.Framebuffer() == nil {
		if p.resolve != nil {
			p.ctx.BlitFramebuffer(src, viewport, p.resolve.Framebuffer, viewport)
			src = p.resolve.Framebuffer
		}
	} else if swap := camera.SwapFramebuffer(); swap != nil {
		p.ctx.BlitFramebuffer(src, framebufferRect(src), swap, framebufferRect(swap))
	}
	if camera.RenderToScreen() {
		screen := camera.Viewport().Scale(float32(p.width), float32(p.height))
		if p.target == nil {
			screen = viewport
		}
		p.ctx.BlitFramebuffer(src, viewport, nil, screen)
	}
}

func framebufferRect(fb hal.GraphicsFramebuffer) math.Viewport {
	desc := fb.Desc()
	return math.NewViewport(0, 0, float32(desc.Width), float32(desc.Height))
}

func (p *Pipeline) closeTargets() {
	p.target.Close()
	p.resolve.Close()
	p.target, p.resolve = nil, nil
}

// Close closes the passes that own resources, the targets and the scene
// controller. The render context stays open.
func (p *Pipeline) Close() {
	for _, pass := range p.passes {
		if c, ok := pass.(interface{ Close() }); ok {
			c.Close()
		}
	}
	p.passes = nil
	p.closeTargets()
	p.controller.Close()
}
