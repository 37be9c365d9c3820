package vulkan

import (
	"encoding/binary"
	"fmt"
	"sync"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/octoon/engine/core"
	"github.com/spaghettifunk/octoon/engine/hal"
)

const SPIRV_MAGIC uint32 = 0x07230203

type InputLayout struct {
	hal.Lifecycle
	desc hal.GraphicsInputLayoutDesc
}

func (l *InputLayout) Desc() hal.GraphicsInputLayoutDesc { return l.desc }
func (l *InputLayout) Close()                            { l.CloseOnce(nil) }

// vertexInput describes the layout to the pipeline. Bindings left out of the
// desc are derived from the attributes reading them.
func (l *InputLayout) vertexInput() ([]vk.VertexInputBindingDescription, []vk.VertexInputAttributeDescription) {
	var bindings []vk.VertexInputBindingDescription
	seen := make(map[uint32]bool)
	for _, b := range l.desc.Bindings {
		seen[b.Slot] = true
		stride := b.Stride
		if stride == 0 {
			stride = l.desc.VertexSize(b.Slot)
		}
		bindings = append(bindings, vk.VertexInputBindingDescription{
			Binding:   b.Slot,
			Stride:    stride,
			InputRate: vkInputRate(b.StepMode),
		})
	}
	attributes := make([]vk.VertexInputAttributeDescription, 0, len(l.desc.Attributes))
	for i, a := range l.desc.Attributes {
		attributes = append(attributes, vk.VertexInputAttributeDescription{
			Location: uint32(i),
			Binding:  a.Binding,
			Format:   vkFormat(a.Format),
			Offset:   a.Offset,
		})
		if !seen[a.Binding] {
			seen[a.Binding] = true
			bindings = append(bindings, vk.VertexInputBindingDescription{
				Binding:   a.Binding,
				Stride:    l.desc.VertexSize(a.Binding),
				InputRate: vk.VertexInputRateVertex,
			})
		}
	}
	return bindings, attributes
}

type shaderStage struct {
	stage  vk.ShaderStageFlagBits
	module vk.ShaderModule
	entry  string
}

/**
 * @brief Program holds one shader module per stage. Stages must carry SPIR-V
 * bytecode; the backend has no GLSL compiler.
 */
type Program struct {
	hal.Lifecycle
	device *Device
	desc   hal.GraphicsProgramDesc
	stages []shaderStage
}

func (d *Device) newProgram(desc hal.GraphicsProgramDesc) (*Program, error) {
	p := &Program{device: d, desc: desc}
	for _, s := range desc.Shaders {
		stage := vkShaderStage(s.Stage)
		if stage == 0 {
			p.destroy()
			return nil, fail(fmt.Errorf("program '%s' stage %d is not a single shader stage: %w", desc.Name, s.Stage, core.ErrInvalidDesc))
		}
		info, ok := shaderModuleInfo(s.Bytecode)
		if !ok {
			p.destroy()
			return nil, fail(fmt.Errorf("program '%s' stage %d needs SPIR-V bytecode: %w", desc.Name, s.Stage, core.ErrUnsupportedFormat))
		}
		var module vk.ShaderModule
		if err := check(vk.CreateShaderModule(d.handle, &info, nil, &module), "vkCreateShaderModule"); err != nil {
			p.destroy()
			return nil, err
		}
		entry := s.EntryPoint
		if entry == "" {
			entry = "main"
		}
		p.stages = append(p.stages, shaderStage{stage: stage, module: module, entry: entry})
	}
	p.InitLifecycle(d.ref)
	return p, nil
}

// shaderModuleInfo reports false unless code is a whole number of words
// starting with the SPIR-V magic.
func shaderModuleInfo(code []byte) (vk.ShaderModuleCreateInfo, bool) {
	if len(code) < 4 || len(code)%4 != 0 || binary.LittleEndian.Uint32(code) != SPIRV_MAGIC {
		return vk.ShaderModuleCreateInfo{}, false
	}
	return vk.ShaderModuleCreateInfo{
		SType:    vk.StructureTypeShaderModuleCreateInfo,
		CodeSize: uint64(len(code)),
		PCode:    spirvWords(code),
	}, true
}

func (p *Program) Desc() hal.GraphicsProgramDesc { return p.desc }

// Params returns nil: SPIR-V is not reflected, callers describe the uniforms.
func (p *Program) Params() []hal.UniformParam { return nil }

func (p *Program) destroy() {
	for _, s := range p.stages {
		vk.DestroyShaderModule(p.device.handle, s.module, nil)
	}
	p.stages = nil
}

func (p *Program) Close() {
	p.CloseOnce(func() {
		p.device.release(p.destroy)
	})
}

/**
 * @brief Pipeline owns the pipeline layout and builds one vk.Pipeline per
 * render pass it is drawn into, the first time it is drawn there.
 */
type Pipeline struct {
	hal.Lifecycle
	device    *Device
	desc      hal.GraphicsPipelineDesc
	program   *Program
	input     *InputLayout
	setLayout *DescriptorSetLayout
	layout    vk.PipelineLayout

	mu       sync.Mutex
	variants map[renderPassSpec]vk.Pipeline
}

func (d *Device) newPipeline(desc hal.GraphicsPipelineDesc) (*Pipeline, error) {
	program, ok := desc.Program.(*Program)
	if !ok {
		return nil, fail(fmt.Errorf("pipeline program was not created by a vulkan device: %w", core.ErrInvalidDesc))
	}
	setLayout, ok := desc.DescriptorSetLayout.(*DescriptorSetLayout)
	if !ok {
		return nil, fail(fmt.Errorf("pipeline descriptor set layout was not created by a vulkan device: %w", core.ErrInvalidDesc))
	}
	var input *InputLayout
	if desc.InputLayout != nil {
		if input, ok = desc.InputLayout.(*InputLayout); !ok {
			return nil, fail(fmt.Errorf("pipeline input layout was not created by a vulkan device: %w", core.ErrInvalidDesc))
		}
	}

	info := vk.PipelineLayoutCreateInfo{
		SType:          vk.StructureTypePipelineLayoutCreateInfo,
		SetLayoutCount: 1,
		PSetLayouts:    []vk.DescriptorSetLayout{setLayout.handle},
	}
	p := &Pipeline{
		device:    d,
		desc:      desc,
		program:   program,
		input:     input,
		setLayout: setLayout,
		variants:  make(map[renderPassSpec]vk.Pipeline),
	}
	if err := check(vk.CreatePipelineLayout(d.handle, &info, nil, &p.layout), "vkCreatePipelineLayout"); err != nil {
		return nil, err
	}

	// a pipeline built against a declared layout is ready before the first draw
	if desc.FramebufferLayout != nil {
		if spec, ok := specFromLayout(desc.FramebufferLayout.Desc()); ok {
			if _, err := p.variant(spec); err != nil {
				p.destroy()
				return nil, err
			}
		}
	}
	p.InitLifecycle(d.ref)
	return p, nil
}

func specFromLayout(desc hal.GraphicsFramebufferLayoutDesc) (renderPassSpec, bool) {
	spec := renderPassSpec{samples: vk.SampleCount1Bit}
	for _, c := range desc.Components {
		if c.Format.IsDepth() {
			spec.depth = vkFormat(c.Format)
			spec.depthLayout = vkImageLayout(c.Layout)
			continue
		}
		if spec.count == MAX_COLOR_ATTACHMENTS {
			return spec, false
		}
		spec.colors[spec.count] = vkFormat(c.Format)
		spec.layouts[spec.count] = vkImageLayout(c.Layout)
		spec.count++
	}
	for i := 0; i < spec.count; i++ {
		if spec.layouts[i] == vk.ImageLayoutUndefined {
			spec.layouts[i] = vk.ImageLayoutColorAttachmentOptimal
		}
	}
	if spec.depth != vk.FormatUndefined && spec.depthLayout == vk.ImageLayoutUndefined {
		spec.depthLayout = vk.ImageLayoutDepthStencilAttachmentOptimal
	}
	return spec, true
}

func (p *Pipeline) Desc() hal.GraphicsPipelineDesc { return p.desc }

// variant returns the vk.Pipeline for render passes compatible with spec.
func (p *Pipeline) variant(spec renderPassSpec) (vk.Pipeline, error) {
	key := spec.compatible()
	p.mu.Lock()
	defer p.mu.Unlock()
	if pipeline, ok := p.variants[key]; ok {
		return pipeline, nil
	}
	pass, err := p.device.renderPass(spec)
	if err != nil {
		return vk.NullPipeline, err
	}
	pipeline, err := p.build(pass, spec)
	if err != nil {
		return vk.NullPipeline, err
	}
	p.variants[key] = pipeline
	core.LogDebug("built pipeline variant for %d colour attachments, %d samples", spec.count, spec.samples)
	return pipeline, nil
}

func (p *Pipeline) build(pass vk.RenderPass, spec renderPassSpec) (vk.Pipeline, error) {
	d := p.device
	state := p.desc.State

	stages := make([]vk.PipelineShaderStageCreateInfo, 0, len(p.program.stages))
	for _, s := range p.program.stages {
		stages = append(stages, vk.PipelineShaderStageCreateInfo{
			SType:  vk.StructureTypePipelineShaderStageCreateInfo,
			Stage:  s.stage,
			Module: s.module,
			PName:  safeString(s.entry),
		})
	}

	vertexInput := &vk.PipelineVertexInputStateCreateInfo{
		SType: vk.StructureTypePipelineVertexInputStateCreateInfo,
	}
	if p.input != nil {
		bindings, attributes := p.input.vertexInput()
		vertexInput.VertexBindingDescriptionCount = uint32(len(bindings))
		vertexInput.PVertexBindingDescriptions = bindings
		vertexInput.VertexAttributeDescriptionCount = uint32(len(attributes))
		vertexInput.PVertexAttributeDescriptions = attributes
	}

	polygonMode := vkPolygonMode(state.PolygonMode)
	if polygonMode != vk.PolygonModeFill && d.features.FillModeNonSolid != vk.True {
		core.LogWarn("GPU cannot rasterize non-solid polygons, drawing them filled")
		polygonMode = vk.PolygonModeFill
	}
	lineWidth := float32(1.0)
	if d.features.WideLines == vk.True && state.LineWidth > 0 {
		lineWidth = state.LineWidth
	}
	rasterization := &vk.PipelineRasterizationStateCreateInfo{
		SType:                   vk.StructureTypePipelineRasterizationStateCreateInfo,
		DepthClampEnable:        vkBool(state.DepthClampEnable && d.features.DepthClamp == vk.True),
		PolygonMode:             polygonMode,
		CullMode:                vkCullMode(state.CullMode),
		FrontFace:               vkFrontFace(state.FrontFace),
		DepthBiasEnable:         vkBool(state.DepthBiasEnable),
		DepthBiasConstantFactor: state.DepthBias,
		DepthBiasSlopeFactor:    state.DepthSlopeScale,
		LineWidth:               lineWidth,
	}

	stencil := func(f hal.StencilFaceDesc) vk.StencilOpState {
		return vk.StencilOpState{
			FailOp:      vkStencilOp(f.Fail),
			PassOp:      vkStencilOp(f.Pass),
			DepthFailOp: vkStencilOp(f.ZFail),
			CompareOp:   vkCompareOp(f.Func),
			CompareMask: f.ReadMask,
			WriteMask:   f.WriteMask,
			Reference:   f.Ref,
		}
	}
	depthStencil := &vk.PipelineDepthStencilStateCreateInfo{
		SType:             vk.StructureTypePipelineDepthStencilStateCreateInfo,
		DepthTestEnable:   vkBool(state.DepthEnable && spec.depth != vk.FormatUndefined),
		DepthWriteEnable:  vkBool(state.DepthWriteEnable && spec.depth != vk.FormatUndefined),
		DepthCompareOp:    vkCompareOp(state.DepthFunc),
		StencilTestEnable: vkBool(state.StencilEnable && spec.depth != vk.FormatUndefined),
		Front:             stencil(state.StencilFront),
		Back:              stencil(state.StencilBack),
	}

	blend := vk.PipelineColorBlendAttachmentState{
		BlendEnable:         vkBool(state.BlendEnable),
		SrcColorBlendFactor: vkBlendFactor(state.BlendSrc),
		DstColorBlendFactor: vkBlendFactor(state.BlendDest),
		ColorBlendOp:        vkBlendOp(state.BlendOp),
		SrcAlphaBlendFactor: vkBlendFactor(state.BlendAlphaSrc),
		DstAlphaBlendFactor: vkBlendFactor(state.BlendAlphaDest),
		AlphaBlendOp:        vkBlendOp(state.BlendAlphaOp),
		ColorWriteMask:      vkColorWriteMask(state.ColorWriteMask),
	}
	attachments := make([]vk.PipelineColorBlendAttachmentState, spec.count)
	for i := range attachments {
		attachments[i] = blend
	}

	info := vk.GraphicsPipelineCreateInfo{
		SType:             vk.StructureTypeGraphicsPipelineCreateInfo,
		StageCount:        uint32(len(stages)),
		PStages:           stages,
		PVertexInputState: vertexInput,
		PInputAssemblyState: &vk.PipelineInputAssemblyStateCreateInfo{
			SType:    vk.StructureTypePipelineInputAssemblyStateCreateInfo,
			Topology: vkTopology(state.PrimitiveType),
		},
		PViewportState: &vk.PipelineViewportStateCreateInfo{
			SType:         vk.StructureTypePipelineViewportStateCreateInfo,
			ViewportCount: 1,
			ScissorCount:  1,
		},
		PRasterizationState: rasterization,
		PMultisampleState: &vk.PipelineMultisampleStateCreateInfo{
			SType:                vk.StructureTypePipelineMultisampleStateCreateInfo,
			RasterizationSamples: spec.samples,
		},
		PDepthStencilState: depthStencil,
		PColorBlendState: &vk.PipelineColorBlendStateCreateInfo{
			SType:           vk.StructureTypePipelineColorBlendStateCreateInfo,
			AttachmentCount: uint32(len(attachments)),
			PAttachments:    attachments,
		},
		PDynamicState: &vk.PipelineDynamicStateCreateInfo{
			SType:             vk.StructureTypePipelineDynamicStateCreateInfo,
			DynamicStateCount: 2,
			PDynamicStates:    []vk.DynamicState{vk.DynamicStateViewport, vk.DynamicStateScissor},
		},
		Layout:     p.layout,
		RenderPass: pass,
	}
	pipelines := make([]vk.Pipeline, 1)
	if err := check(vk.CreateGraphicsPipelines(d.handle, vk.PipelineCache(vk.NullHandle), 1, []vk.GraphicsPipelineCreateInfo{info}, nil, pipelines), "vkCreateGraphicsPipelines"); err != nil {
		return vk.NullPipeline, err
	}
	return pipelines[0], nil
}

func (p *Pipeline) destroy() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, pipeline := range p.variants {
		vk.DestroyPipeline(p.device.handle, pipeline, nil)
	}
	p.variants = nil
	if p.layout != vk.NullPipelineLayout {
		vk.DestroyPipelineLayout(p.device.handle, p.layout, nil)
	}
}

func (p *Pipeline) Close() {
	p.CloseOnce(func() {
		p.device.release(p.destroy)
	})
}
