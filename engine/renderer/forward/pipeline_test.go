package forward

import (
	"errors"
	"io"
	"os"
	"testing"

	"github.com/spaghettifunk/octoon/engine/config"
	"github.com/spaghettifunk/octoon/engine/core"
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

func TestMain(m *testing.M) {
	core.SetLogOutput(io.Discard)
	os.Exit(m.Run())
}

var errBroken = errors.New("broken pass")

type recordingPass struct {
	name  string
	event renderer.RenderPassEvent
	fail  bool
	runs  int
}

func (p *recordingPass) Name() string                    { return p.name }
func (p *recordingPass) Event() renderer.RenderPassEvent { return p.event }

func (p *recordingPass) Execute(ctx renderer.RenderContext, data *renderer.RenderingData) error {
	p.runs++
	if p.fail {
		return errBroken
	}
	return nil
}

type fixture struct {
	objects *object.Context
	device  *soft.Device
	gctx    *soft.Context
	rctx    *renderer.ScriptableRenderContext
	scene   *scene.RenderScene
	camera  *scene.Camera
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	sys := hal.NewGraphicsSystem()
	soft.Register(sys)
	t.Cleanup(sys.Close)

	device, err := sys.CreateDevice(hal.GraphicsDeviceDesc{DeviceType: hal.DEVICE_TYPE_SOFT, EnableDebug: true})
	require.NoError(t, err)
	gctx, err := device.CreateDeviceContext(hal.GraphicsContextDesc{})
	require.NoError(t, err)
	rctx := renderer.NewScriptableRenderContext(device, gctx)
	t.Cleanup(rctx.Close)

	f := &fixture{
		objects: object.NewContext(),
		device:  device.(*soft.Device),
		gctx:    gctx.(*soft.Context),
		rctx:    rctx,
		scene:   scene.NewRenderScene(),
	}
	f.camera = scene.NewPerspectiveCamera(f.objects, "main", 60, 0.1, 100)
	f.camera.LookAt(math.NewVec3(0, 0, 5), math.NewVec3Zero(), math.NewVec3Up())
	f.scene.AddCamera(f.camera)

	mat := material.NewBasicMaterial(f.objects, math.NewVec4One())
	f.scene.AddRenderObject(scene.NewGeometry(f.objects, "box", scene.CubeMesh(f.objects, 1, 1, 1), mat))
	return f
}

func (f *fixture) pipeline(t *testing.T, opts Options) *Pipeline {
	t.Helper()
	p := NewPipeline(f.rctx, f.objects, opts)
	t.Cleanup(p.Close)
	return p
}

func TestSetupFramebuffersUsesMultisampling(t *testing.T) {
	f := newFixture(t)
	p := f.pipeline(t, DefaultOptions())

	require.NoError(t, p.SetupFramebuffers(320, 240))
	assert.Equal(t, DEFAULT_MULTISAMPLE, p.Multisample())
	require.NotNil(t, p.target)
	require.NotNil(t, p.resolve)
	assert.Equal(t, hal.FORMAT_R32G32B32_SFLOAT, p.target.Color.Desc().Format)
	assert.Equal(t, hal.FORMAT_X8_D24_UNORM_PACK32, p.target.DepthStencil.Desc().Format)
	assert.Equal(t, uint32(1), p.resolve.Color.Desc().Multisample)
}

func TestSetupFramebuffersFallsBackWithoutMultisampling(t *testing.T) {
	f := newFixture(t)
	f.device.SetMaxSamples(1)
	p := f.pipeline(t, DefaultOptions())

	require.NoError(t, p.SetupFramebuffers(320, 240))
	assert.Equal(t, uint32(1), p.Multisample())
	assert.Nil(t, p.resolve)
	assert.Equal(t, hal.FORMAT_R8G8B8A8_UNORM, p.target.Color.Desc().Format)
	assert.Equal(t, hal.FORMAT_D16_UNORM, p.target.DepthStencil.Desc().Format)
}

func TestSetupFramebuffersReplacesTargets(t *testing.T) {
	f := newFixture(t)
	p := f.pipeline(t, DefaultOptions())

	require.NoError(t, p.SetupFramebuffers(320, 240))
	first := p.target
	live := f.device.LiveResources()

	require.NoError(t, p.SetupFramebuffers(640, 480))
	assert.True(t, first.Framebuffer.IsClosed())
	assert.Equal(t, live, f.device.LiveResources())
	w, h := p.Size()
	assert.Equal(t, uint32(640), w)
	assert.Equal(t, uint32(480), h)
}

func TestSetupFramebuffersFailsOnZeroSize(t *testing.T) {
	f := newFixture(t)
	p := f.pipeline(t, DefaultOptions())

	err := p.SetupFramebuffers(0, 0)
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrFramebufferSetup)
	assert.Nil(t, p.Framebuffer())
}

func TestRenderDrawsResolvesAndPresents(t *testing.T) {
	f := newFixture(t)
	f.camera.SetRenderToScreen(true)
	p := f.pipeline(t, DefaultOptions())
	require.NoError(t, p.SetupFramebuffers(320, 240))

	require.NoError(t, p.Render(f.scene, 1.0/60.0))

	commands := f.gctx.Commands()
	require.NotEmpty(t, commands)
	assert.Equal(t, soft.OP_BEGIN_FRAME, commands[0].Op)
	assert.Equal(t, soft.OP_PRESENT, commands[len(commands)-1].Op)
	assert.Empty(t, f.gctx.Errors())

	draws := f.gctx.CommandsOf(soft.OP_DRAW_INDEXED)
	require.Len(t, draws, 1)
	assert.Same(t, p.Framebuffer(), draws[0].Framebuffer)
	assert.Equal(t, math.NewViewport(0, 0, 320, 240), draws[0].Rect)

	blits := f.gctx.CommandsOf(soft.OP_BLIT)
	require.Len(t, blits, 2)
	assert.Same(t, p.target.Framebuffer, blits[0].Source)
	assert.Same(t, p.resolve.Framebuffer, blits[0].Framebuffer)
	assert.Same(t, p.resolve.Framebuffer, blits[1].Source)
	assert.Nil(t, blits[1].Framebuffer)

	assert.Equal(t, uint64(1), p.FrameNumber())
	assert.Same(t, p.Controller().RenderingData(f.camera), f.rctx.RenderingData())
}

func TestRenderCopiesCameraFramebufferIntoSwapFramebuffer(t *testing.T) {
	f := newFixture(t)
	target := func(w, h uint32) *hal.RenderTarget {
		rt, err := hal.CreateRenderTarget(f.device, hal.RenderTargetDesc{
			Width:              w,
			Height:             h,
			ColorFormat:        hal.FORMAT_R8G8B8A8_UNORM,
			DepthStencilFormat: hal.FORMAT_D16_UNORM,
		})
		require.NoError(t, err)
		t.Cleanup(rt.Close)
		return rt
	}
	own, swap := target(128, 64), target(256, 128)
	f.camera.SetFramebuffer(own.Framebuffer)
	f.camera.SetSwapFramebuffer(swap.Framebuffer)
	f.camera.SetViewport(math.NewViewport(0, 0, 0.5, 0.5))

	p := f.pipeline(t, DefaultOptions())
	require.NoError(t, p.SetupFramebuffers(320, 240))
	require.NoError(t, p.Render(f.scene, 1.0/60.0))

	blits := f.gctx.CommandsOf(soft.OP_BLIT)
	require.Len(t, blits, 1)
	assert.Same(t, own.Framebuffer, blits[0].Source)
	assert.Equal(t, math.NewViewport(0, 0, 128, 64), blits[0].SourceRect)
	assert.Same(t, swap.Framebuffer, blits[0].Framebuffer)
	assert.Equal(t, math.NewViewport(0, 0, 256, 128), blits[0].Rect)
}

func TestRenderSkipsFailedPass(t *testing.T) {
	f := newFixture(t)
	opts := DefaultOptions()
	opts.PassFailure = FAILURE_POLICY_SKIP
	p := f.pipeline(t, opts)
	require.NoError(t, p.SetupFramebuffers(64, 64))

	broken := &recordingPass{name: "broken", event: renderer.RENDER_PASS_EVENT_BEFORE_RENDERING, fail: true}
	after := &recordingPass{name: "after", event: renderer.RENDER_PASS_EVENT_AFTER_RENDERING}
	p.AddPass(broken)
	p.AddPass(after)

	require.NoError(t, p.Render(f.scene, 0.016))
	assert.Equal(t, 1, broken.runs)
	assert.Equal(t, 1, after.runs)
	assert.Equal(t, uint64(1), p.Metrics().SkippedPasses())
	assert.Len(t, f.gctx.CommandsOf(soft.OP_DRAW_INDEXED), 1)
}

func TestRenderAbortsOnFailedPass(t *testing.T) {
	f := newFixture(t)
	opts := DefaultOptions()
	opts.PassFailure = FAILURE_POLICY_ABORT
	p := f.pipeline(t, opts)
	require.NoError(t, p.SetupFramebuffers(64, 64))

	broken := &recordingPass{name: "broken", event: renderer.RENDER_PASS_EVENT_BEFORE_RENDERING, fail: true}
	after := &recordingPass{name: "after", event: renderer.RENDER_PASS_EVENT_AFTER_RENDERING}
	p.AddPass(broken)
	p.AddPass(after)

	err := p.Render(f.scene, 0.016)
	require.ErrorIs(t, err, errBroken)
	assert.Equal(t, 0, after.runs)
	assert.Empty(t, f.gctx.CommandsOf(soft.OP_DRAW_INDEXED))
	assert.Empty(t, f.gctx.CommandsOf(soft.OP_PRESENT))

	commands := f.gctx.Commands()
	assert.Equal(t, soft.OP_END_FRAME, commands[len(commands)-1].Op)
}

func TestPassesRunInEventOrder(t *testing.T) {
	f := newFixture(t)
	p := f.pipeline(t, DefaultOptions())

	late := &recordingPass{name: "late", event: renderer.RENDER_PASS_EVENT_AFTER_RENDERING}
	early := &recordingPass{name: "early", event: renderer.RENDER_PASS_EVENT_BEFORE_RENDERING}
	second := &recordingPass{name: "second", event: renderer.RENDER_PASS_EVENT_OPAQUES}
	p.AddPass(late)
	p.AddPass(early)
	p.AddPass(second)

	var names []string
	for _, pass := range p.Passes() {
		names = append(names, pass.Name())
	}
	assert.Equal(t, []string{
		"early",
		"lights_shadow_caster",
		"draw_opaque",
		"second",
		"draw_skybox",
		"draw_transparent",
		"draw_selector",
		"late",
	}, names)
}

func TestResizeWaitsForSettleFrames(t *testing.T) {
	f := newFixture(t)
	opts := DefaultOptions()
	opts.ResizeSettleFrames = 2
	p := f.pipeline(t, opts)
	require.NoError(t, p.SetupFramebuffers(64, 64))

	p.OnResize(128, 96)
	require.NoError(t, p.Render(f.scene, 0.016))
	require.NoError(t, p.Render(f.scene, 0.016))
	assert.Empty(t, f.gctx.CommandsOf(soft.OP_BEGIN_FRAME))
	w, _ := p.Size()
	assert.Equal(t, uint32(64), w)

	require.NoError(t, p.Render(f.scene, 0.016))
	w, h := p.Size()
	assert.Equal(t, uint32(128), w)
	assert.Equal(t, uint32(96), h)
	assert.Len(t, f.gctx.CommandsOf(soft.OP_BEGIN_FRAME), 1)

	sw, sh := f.camera.ScreenSize()
	assert.Equal(t, uint32(128), sw)
	assert.Equal(t, uint32(96), sh)
}

func TestOptionsFromConfig(t *testing.T) {
	cfg := config.Default().Renderer
	cfg.PassFailure = config.PASS_FAILURE_ABORT
	cfg.MSAA = 0
	cfg.EnableSkybox = false

	opts, err := OptionsFromConfig(cfg)
	require.NoError(t, err)
	assert.Equal(t, FAILURE_POLICY_ABORT, opts.PassFailure)
	assert.Equal(t, uint32(1), opts.Multisample)
	assert.False(t, opts.EnableSkybox)

	cfg.PassFailure = "retry"
	_, err = OptionsFromConfig(cfg)
	assert.ErrorIs(t, err, core.ErrInvalidDesc)
}
