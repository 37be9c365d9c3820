package soft

import (
	"errors"
	"io"
	"os"
	"testing"

	"github.com/spaghettifunk/octoon/engine/core"
	"github.com/spaghettifunk/octoon/engine/hal"
	"github.com/spaghettifunk/octoon/engine/math"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	core.SetLogOutput(io.Discard)
	os.Exit(m.Run())
}

func newDebugDevice(t *testing.T) *Device {
	t.Helper()
	sys := hal.NewGraphicsSystem()
	Register(sys)
	t.Cleanup(sys.Close)

	device, err := sys.CreateDevice(hal.GraphicsDeviceDesc{DeviceType: hal.DEVICE_TYPE_SOFT, EnableDebug: true})
	require.NoError(t, err)
	return device.(*Device)
}

func newTestContext(t *testing.T, d *Device) *Context {
	t.Helper()
	ctx, err := d.CreateDeviceContext(hal.GraphicsContextDesc{})
	require.NoError(t, err)
	return ctx.(*Context)
}

const testVertexShader = `
#version 450
layout(location = 0) in vec3 POSITION0;
uniform mat4 model;
uniform mat4 viewProject;
uniform vec4 color; // tint
void main() {}
`

const testFragmentShader = `
#version 450
uniform vec4 color;
uniform highp sampler2D decal;
uniform float weights[4];
void main() {}
`

func newTestPipeline(t *testing.T, d *Device) (hal.GraphicsPipeline, hal.GraphicsDescriptorSet) {
	t.Helper()
	program, err := d.CreateProgram(hal.GraphicsProgramDesc{
		Name: "test",
		Shaders: []hal.ShaderStageDesc{
			{Stage: hal.SHADER_STAGE_VERTEX_BIT, Language: hal.SHADER_LANGUAGE_GLSL, Source: testVertexShader},
			{Stage: hal.SHADER_STAGE_FRAGMENT_BIT, Language: hal.SHADER_LANGUAGE_GLSL, Source: testFragmentShader},
		},
	})
	require.NoError(t, err)
	layout, err := d.CreateDescriptorSetLayout(hal.GraphicsDescriptorSetLayoutDesc{Params: program.Params()})
	require.NoError(t, err)
	pipeline, err := d.CreateRenderPipeline(hal.GraphicsPipelineDesc{
		Program:             program,
		State:               hal.DefaultStateDesc(),
		DescriptorSetLayout: layout,
	})
	require.NoError(t, err)
	set, err := d.CreateDescriptorSet(hal.GraphicsDescriptorSetDesc{Layout: layout})
	require.NoError(t, err)
	return pipeline, set
}

func TestReflectProgram(t *testing.T) {
	params := reflectProgram(hal.GraphicsProgramDesc{
		Shaders: []hal.ShaderStageDesc{
			{Stage: hal.SHADER_STAGE_VERTEX_BIT, Language: hal.SHADER_LANGUAGE_GLSL, Source: testVertexShader},
			{Stage: hal.SHADER_STAGE_FRAGMENT_BIT, Language: hal.SHADER_LANGUAGE_GLSL, Source: testFragmentShader},
		},
	})

	names := make([]string, len(params))
	for i, p := range params {
		names[i] = p.Name
		assert.Equal(t, uint32(i), p.BindingPoint)
	}
	assert.Equal(t, []string{"model", "viewProject", "color", "decal", "weights"}, names)
	assert.Equal(t, hal.SHADER_STAGE_VERTEX_BIT|hal.SHADER_STAGE_FRAGMENT_BIT, params[2].Stage)
	assert.Equal(t, hal.UNIFORM_TYPE_COMBINED_IMAGE_SAMPLER, params[3].Type)
	assert.Equal(t, hal.UNIFORM_TYPE_FLOAT_ARRAY, params[4].Type)
}

func TestContextRecordsDraws(t *testing.T) {
	d := newDebugDevice(t)
	ctx := newTestContext(t, d)
	pipeline, set := newTestPipeline(t, d)

	set.UniformSet("color").Uniform4f(math.NewVec4(1, 0, 0, 1))

	viewport := math.NewViewport(0, 0, 320, 200)
	ctx.SetViewport(0, viewport)
	ctx.SetRenderPipeline(pipeline)
	ctx.SetDescriptorSet(set)
	ctx.Draw(3, 1, 0, 0)

	// later changes must not leak into the recorded draw
	set.UniformSet("color").Uniform4f(math.NewVec4(0, 1, 0, 1))

	draws := ctx.CommandsOf(OP_DRAW)
	require.Len(t, draws, 1)
	assert.Equal(t, uint32(3), draws[0].Count)
	assert.Equal(t, viewport, draws[0].Rect)
	assert.Same(t, pipeline, draws[0].Pipeline)

	var color *hal.UniformSet
	for _, u := range draws[0].Uniforms {
		if u.Name() == "color" {
			color = u
		}
	}
	require.NotNil(t, color)
	assert.Equal(t, math.NewVec4(1, 0, 0, 1), color.Float4())
	assert.Empty(t, ctx.Errors())
	assert.Equal(t, viewport, ctx.Viewport(0))

	ctx.Reset()
	assert.Empty(t, ctx.Commands())
	assert.Same(t, pipeline, ctx.RenderPipeline(), "reset keeps bound state")
}

func TestDebugValidation(t *testing.T) {
	d := newDebugDevice(t)
	ctx := newTestContext(t, d)

	ctx.Draw(3, 1, 0, 0)
	require.Len(t, ctx.Errors(), 1)

	pipeline, set := newTestPipeline(t, d)
	ctx.SetRenderPipeline(pipeline)
	ctx.SetDescriptorSet(set)
	ctx.DrawIndexed(6, 1, 0, 0, 0)
	assert.Len(t, ctx.Errors(), 2, "indexed draw without index buffer")
}

func TestClosedResourcePanics(t *testing.T) {
	d := newDebugDevice(t)
	ctx := newTestContext(t, d)
	pipeline, _ := newTestPipeline(t, d)

	pipeline.Close()
	assert.Panics(t, func() { ctx.SetRenderPipeline(pipeline) })

	ctx.Close()
	assert.Panics(t, func() { ctx.Draw(1, 1, 0, 0) })
}

func TestClearFillsColorAttachment(t *testing.T) {
	d := newDebugDevice(t)
	ctx := newTestContext(t, d)

	color, err := d.CreateTexture(hal.GraphicsTextureDesc{Format: hal.FORMAT_R8G8B8A8_UNORM, Width: 2, Height: 2})
	require.NoError(t, err)
	layout, err := d.CreateFramebufferLayout(hal.GraphicsFramebufferLayoutDesc{
		Components: []hal.AttachmentLayout{{Slot: 0, Format: hal.FORMAT_R8G8B8A8_UNORM}},
	})
	require.NoError(t, err)
	fb, err := d.CreateFramebuffer(hal.GraphicsFramebufferDesc{
		Width: 2, Height: 2, Layout: layout,
		ColorAttachments: []hal.Attachment{{Texture: color}},
	})
	require.NoError(t, err)

	ctx.SetFramebuffer(fb)
	ctx.ClearFramebuffer(0, hal.CLEAR_COLOR, math.NewVec4(1, 0, 0, 1), 1, 0)

	pixels := color.(*Texture).Pixels()
	require.Len(t, pixels, 16)
	for i := 0; i < len(pixels); i += 4 {
		assert.Equal(t, []byte{255, 0, 0, 255}, pixels[i:i+4])
	}
}

func TestDataUploadBounds(t *testing.T) {
	d := newDebugDevice(t)
	data, err := d.CreateGraphicsData(hal.GraphicsDataDesc{Type: hal.DATA_TYPE_UNIFORM_BUFFER, Size: 4})
	require.NoError(t, err)

	require.NoError(t, data.Upload(1, []byte{1, 2, 3}))
	assert.Equal(t, []byte{0, 1, 2, 3}, data.(*Data).Bytes())

	err = data.Upload(2, []byte{1, 2, 3})
	assert.True(t, errors.Is(err, core.ErrInvalidDesc))
}

func TestDescriptorPoolExhaustion(t *testing.T) {
	d := newDebugDevice(t)
	pool, err := d.CreateDescriptorPool(hal.GraphicsDescriptorPoolDesc{MaxSets: 1})
	require.NoError(t, err)
	layout, err := d.CreateDescriptorSetLayout(hal.GraphicsDescriptorSetLayoutDesc{})
	require.NoError(t, err)

	_, err = d.CreateDescriptorSet(hal.GraphicsDescriptorSetDesc{Layout: layout, Pool: pool})
	require.NoError(t, err)
	_, err = d.CreateDescriptorSet(hal.GraphicsDescriptorSetDesc{Layout: layout, Pool: pool})
	assert.Error(t, err)
}

func TestSwapchainPresent(t *testing.T) {
	d := newDebugDevice(t)
	sc, err := d.CreateSwapchain(hal.GraphicsSwapchainDesc{Width: 64, Height: 32, ColorFormat: hal.FORMAT_B8G8R8A8_UNORM})
	require.NoError(t, err)
	ctx, err := d.CreateDeviceContext(hal.GraphicsContextDesc{Swapchain: sc})
	require.NoError(t, err)

	require.NoError(t, ctx.BeginFrame())
	assert.Error(t, ctx.BeginFrame())
	require.NoError(t, ctx.EndFrame())
	require.NoError(t, ctx.Present())
	assert.Equal(t, uint64(1), sc.(*Swapchain).Presents())

	assert.True(t, errors.Is(sc.Resize(0, 10), core.ErrSwapchainBooting))
	require.NoError(t, sc.Resize(128, 64))
	assert.Equal(t, uint32(128), sc.Desc().Width)
}

func TestDeviceCloseReleasesResources(t *testing.T) {
	d := newDebugDevice(t)
	newTestPipeline(t, d)
	assert.Positive(t, d.LiveResources())

	d.Close()
	assert.Zero(t, d.LiveResources())
}

func TestMaxSamplesRejectsMultisampledTextures(t *testing.T) {
	d := newDebugDevice(t)
	desc := hal.GraphicsTextureDesc{Format: hal.FORMAT_R8G8B8A8_UNORM, Width: 4, Height: 4, Multisample: 4}

	tex, err := d.CreateTexture(desc)
	require.NoError(t, err)
	tex.Close()

	d.SetMaxSamples(1)
	tex, err = d.CreateTexture(desc)
	assert.Nil(t, tex)
	assert.True(t, errors.Is(err, core.ErrUnsupportedFormat))

	desc.Multisample = 1
	tex, err = d.CreateTexture(desc)
	require.NoError(t, err)
	assert.NotNil(t, tex)
}

func TestDeviceKeepsItsOwnDescriptions(t *testing.T) {
	d := newDebugDevice(t)

	bytecode := []byte{0x03, 0x02, 0x23, 0x07}
	stages := []hal.ShaderStageDesc{
		{Stage: hal.SHADER_STAGE_VERTEX_BIT, Language: hal.SHADER_LANGUAGE_GLSL, Source: testVertexShader},
		{Stage: hal.SHADER_STAGE_FRAGMENT_BIT, Language: hal.SHADER_LANGUAGE_SPIRV, Bytecode: bytecode},
	}
	program, err := d.CreateProgram(hal.GraphicsProgramDesc{Name: "owned", Shaders: stages})
	require.NoError(t, err)

	stages[0].Source = "void main() {}"
	bytecode[0] = 0xff
	desc := program.Desc()
	assert.Equal(t, testVertexShader, desc.Shaders[0].Source)
	assert.Equal(t, byte(0x03), desc.Shaders[1].Bytecode[0])

	attributes := []hal.VertexAttribute{{Semantic: "POSITION", Format: hal.FORMAT_R32G32B32_SFLOAT}}
	layout, err := d.CreateInputLayout(hal.GraphicsInputLayoutDesc{Attributes: attributes})
	require.NoError(t, err)
	attributes[0].Semantic = "NORMAL"
	assert.Equal(t, "POSITION", layout.Desc().Attributes[0].Semantic)
}
