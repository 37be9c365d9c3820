package vulkan

import (
	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/octoon/engine/hal"
)

var formats = [...]vk.Format{
	hal.FORMAT_UNDEFINED:           vk.FormatUndefined,
	hal.FORMAT_R8_UNORM:            vk.FormatR8Unorm,
	hal.FORMAT_R8G8B8_UNORM:        vk.FormatR8g8b8Unorm,
	hal.FORMAT_R8G8B8A8_UNORM:      vk.FormatR8g8b8a8Unorm,
	hal.FORMAT_R8G8B8A8_SRGB:       vk.FormatR8g8b8a8Srgb,
	hal.FORMAT_B8G8R8A8_UNORM:      vk.FormatB8g8r8a8Unorm,
	hal.FORMAT_B8G8R8A8_SRGB:       vk.FormatB8g8r8a8Srgb,
	hal.FORMAT_R16G16B16A16_SFLOAT: vk.FormatR16g16b16a16Sfloat,
	hal.FORMAT_R32_SFLOAT:          vk.FormatR32Sfloat,
	hal.FORMAT_R32G32_SFLOAT:       vk.FormatR32g32Sfloat,
	hal.FORMAT_R32G32B32_SFLOAT:    vk.FormatR32g32b32Sfloat,
	hal.FORMAT_R32G32B32A32_SFLOAT: vk.FormatR32g32b32a32Sfloat,
	hal.FORMAT_R32_UINT:            vk.FormatR32Uint,
	hal.FORMAT_D16_UNORM:           vk.FormatD16Unorm,
	hal.FORMAT_X8_D24_UNORM_PACK32: vk.FormatX8D24UnormPack32,
	hal.FORMAT_D32_SFLOAT:          vk.FormatD32Sfloat,
	hal.FORMAT_D24_UNORM_S8_UINT:   vk.FormatD24UnormS8Uint,
	hal.FORMAT_D32_SFLOAT_S8_UINT:  vk.FormatD32SfloatS8Uint,
}

func vkFormat(f hal.GraphicsFormat) vk.Format {
	if int(f) >= len(formats) {
		return vk.FormatUndefined
	}
	return formats[f]
}

// halFormat maps a surface format back, FORMAT_UNDEFINED when it has no counterpart.
func halFormat(f vk.Format) hal.GraphicsFormat {
	for i, v := range formats {
		if v == f {
			return hal.GraphicsFormat(i)
		}
	}
	return hal.FORMAT_UNDEFINED
}

func aspectMask(f hal.GraphicsFormat) vk.ImageAspectFlags {
	switch {
	case f.IsStencil():
		return vk.ImageAspectFlags(vk.ImageAspectDepthBit | vk.ImageAspectStencilBit)
	case f.IsDepth():
		return vk.ImageAspectFlags(vk.ImageAspectDepthBit)
	}
	return vk.ImageAspectFlags(vk.ImageAspectColorBit)
}

var topologies = [...]vk.PrimitiveTopology{
	hal.PRIMITIVE_TYPE_POINT_LIST:     vk.PrimitiveTopologyPointList,
	hal.PRIMITIVE_TYPE_LINE_LIST:      vk.PrimitiveTopologyLineList,
	hal.PRIMITIVE_TYPE_LINE_STRIP:     vk.PrimitiveTopologyLineStrip,
	hal.PRIMITIVE_TYPE_TRIANGLE_LIST:  vk.PrimitiveTopologyTriangleList,
	hal.PRIMITIVE_TYPE_TRIANGLE_STRIP: vk.PrimitiveTopologyTriangleStrip,
	hal.PRIMITIVE_TYPE_TRIANGLE_FAN:   vk.PrimitiveTopologyTriangleFan,
}

var cullModes = [...]vk.CullModeFlagBits{
	hal.CULL_MODE_NONE:           vk.CullModeNone,
	hal.CULL_MODE_FRONT:          vk.CullModeFrontBit,
	hal.CULL_MODE_BACK:           vk.CullModeBackBit,
	hal.CULL_MODE_FRONT_AND_BACK: vk.CullModeFrontAndBack,
}

var polygonModes = [...]vk.PolygonMode{
	hal.POLYGON_MODE_SOLID:     vk.PolygonModeFill,
	hal.POLYGON_MODE_WIREFRAME: vk.PolygonModeLine,
	hal.POLYGON_MODE_POINT:     vk.PolygonModePoint,
}

var blendOps = [...]vk.BlendOp{
	hal.BLEND_OP_ADD:          vk.BlendOpAdd,
	hal.BLEND_OP_SUBTRACT:     vk.BlendOpSubtract,
	hal.BLEND_OP_REV_SUBTRACT: vk.BlendOpReverseSubtract,
}

var blendFactors = [...]vk.BlendFactor{
	hal.BLEND_FACTOR_ZERO:                vk.BlendFactorZero,
	hal.BLEND_FACTOR_ONE:                 vk.BlendFactorOne,
	hal.BLEND_FACTOR_SRC_COLOR:           vk.BlendFactorSrcColor,
	hal.BLEND_FACTOR_ONE_MINUS_SRC_COLOR: vk.BlendFactorOneMinusSrcColor,
	hal.BLEND_FACTOR_DST_COLOR:           vk.BlendFactorDstColor,
	hal.BLEND_FACTOR_ONE_MINUS_DST_COLOR: vk.BlendFactorOneMinusDstColor,
	hal.BLEND_FACTOR_SRC_ALPHA:           vk.BlendFactorSrcAlpha,
	hal.BLEND_FACTOR_ONE_MINUS_SRC_ALPHA: vk.BlendFactorOneMinusSrcAlpha,
	hal.BLEND_FACTOR_DST_ALPHA:           vk.BlendFactorDstAlpha,
	hal.BLEND_FACTOR_ONE_MINUS_DST_ALPHA: vk.BlendFactorOneMinusDstAlpha,
}

var compareOps = [...]vk.CompareOp{
	hal.COMPARE_NEVER:     vk.CompareOpNever,
	hal.COMPARE_LESS:      vk.CompareOpLess,
	hal.COMPARE_EQUAL:     vk.CompareOpEqual,
	hal.COMPARE_LEQUAL:    vk.CompareOpLessOrEqual,
	hal.COMPARE_GREATER:   vk.CompareOpGreater,
	hal.COMPARE_NOT_EQUAL: vk.CompareOpNotEqual,
	hal.COMPARE_GEQUAL:    vk.CompareOpGreaterOrEqual,
	hal.COMPARE_ALWAYS:    vk.CompareOpAlways,
}

var stencilOps = [...]vk.StencilOp{
	hal.STENCIL_OP_KEEP:    vk.StencilOpKeep,
	hal.STENCIL_OP_ZERO:    vk.StencilOpZero,
	hal.STENCIL_OP_REPLACE: vk.StencilOpReplace,
	hal.STENCIL_OP_INCR:    vk.StencilOpIncrementAndClamp,
	hal.STENCIL_OP_DECR:    vk.StencilOpDecrementAndClamp,
	hal.STENCIL_OP_INVERT:  vk.StencilOpInvert,
}

var imageLayouts = [...]vk.ImageLayout{
	hal.IMAGE_LAYOUT_UNDEFINED:                        vk.ImageLayoutUndefined,
	hal.IMAGE_LAYOUT_GENERAL:                          vk.ImageLayoutGeneral,
	hal.IMAGE_LAYOUT_COLOR_ATTACHMENT_OPTIMAL:         vk.ImageLayoutColorAttachmentOptimal,
	hal.IMAGE_LAYOUT_DEPTH_STENCIL_ATTACHMENT_OPTIMAL: vk.ImageLayoutDepthStencilAttachmentOptimal,
	hal.IMAGE_LAYOUT_SHADER_READ_ONLY_OPTIMAL:         vk.ImageLayoutShaderReadOnlyOptimal,
	hal.IMAGE_LAYOUT_PRESENT_SRC:                      vk.ImageLayoutPresentSrc,
}

var addressModes = [...]vk.SamplerAddressMode{
	hal.SAMPLER_WRAP_REPEAT:          vk.SamplerAddressModeRepeat,
	hal.SAMPLER_WRAP_MIRRORED_REPEAT: vk.SamplerAddressModeMirroredRepeat,
	hal.SAMPLER_WRAP_CLAMP_TO_EDGE:   vk.SamplerAddressModeClampToEdge,
}

func vkTopology(p hal.PrimitiveType) vk.PrimitiveTopology { return topologies[p] }
func vkCullMode(m hal.CullMode) vk.CullModeFlags          { return vk.CullModeFlags(cullModes[m]) }
func vkPolygonMode(m hal.PolygonMode) vk.PolygonMode      { return polygonModes[m] }
func vkBlendOp(op hal.BlendOp) vk.BlendOp                 { return blendOps[op] }
func vkBlendFactor(f hal.BlendFactor) vk.BlendFactor      { return blendFactors[f] }
func vkCompareOp(f hal.CompareFunction) vk.CompareOp      { return compareOps[f] }
func vkStencilOp(op hal.StencilOp) vk.StencilOp           { return stencilOps[op] }
func vkImageLayout(l hal.ImageLayout) vk.ImageLayout      { return imageLayouts[l] }
func vkAddressMode(w hal.SamplerWrap) vk.SamplerAddressMode {
	return addressModes[w]
}

func vkFrontFace(f hal.FrontFace) vk.FrontFace {
	if f == hal.FRONT_FACE_CW {
		return vk.FrontFaceClockwise
	}
	return vk.FrontFaceCounterClockwise
}

func vkFilter(f hal.SamplerFilter) (vk.Filter, vk.SamplerMipmapMode) {
	switch f {
	case hal.SAMPLER_FILTER_NEAREST:
		return vk.FilterNearest, vk.SamplerMipmapModeNearest
	case hal.SAMPLER_FILTER_LINEAR_MIPMAP_LINEAR:
		return vk.FilterLinear, vk.SamplerMipmapModeLinear
	}
	return vk.FilterLinear, vk.SamplerMipmapModeNearest
}

func vkColorWriteMask(m hal.ColorWriteMask) vk.ColorComponentFlags {
	var flags vk.ColorComponentFlagBits
	if m&hal.COLOR_WRITE_R_BIT != 0 {
		flags |= vk.ColorComponentRBit
	}
	if m&hal.COLOR_WRITE_G_BIT != 0 {
		flags |= vk.ColorComponentGBit
	}
	if m&hal.COLOR_WRITE_B_BIT != 0 {
		flags |= vk.ColorComponentBBit
	}
	if m&hal.COLOR_WRITE_A_BIT != 0 {
		flags |= vk.ColorComponentABit
	}
	return vk.ColorComponentFlags(flags)
}

func vkShaderStages(s hal.ShaderStageFlags) vk.ShaderStageFlags {
	var flags vk.ShaderStageFlagBits
	if s&hal.SHADER_STAGE_VERTEX_BIT != 0 {
		flags |= vk.ShaderStageVertexBit
	}
	if s&hal.SHADER_STAGE_FRAGMENT_BIT != 0 {
		flags |= vk.ShaderStageFragmentBit
	}
	if s&hal.SHADER_STAGE_GEOMETRY_BIT != 0 {
		flags |= vk.ShaderStageGeometryBit
	}
	if s&hal.SHADER_STAGE_COMPUTE_BIT != 0 {
		flags |= vk.ShaderStageComputeBit
	}
	if flags == 0 {
		flags = vk.ShaderStageVertexBit | vk.ShaderStageFragmentBit
	}
	return vk.ShaderStageFlags(flags)
}

// vkShaderStage maps a single program stage, the zero value when s names none or several.
func vkShaderStage(s hal.ShaderStageFlags) vk.ShaderStageFlagBits {
	switch s {
	case hal.SHADER_STAGE_VERTEX_BIT:
		return vk.ShaderStageVertexBit
	case hal.SHADER_STAGE_FRAGMENT_BIT:
		return vk.ShaderStageFragmentBit
	case hal.SHADER_STAGE_GEOMETRY_BIT:
		return vk.ShaderStageGeometryBit
	case hal.SHADER_STAGE_COMPUTE_BIT:
		return vk.ShaderStageComputeBit
	}
	return 0
}

// vkDescriptorType returns the descriptor a resource uniform binds. Plain
// values live in the uniform block and have no descriptor of their own.
func vkDescriptorType(t hal.UniformType) (vk.DescriptorType, bool) {
	switch t {
	case hal.UNIFORM_TYPE_SAMPLER:
		return vk.DescriptorTypeSampler, true
	case hal.UNIFORM_TYPE_SAMPLED_IMAGE:
		return vk.DescriptorTypeSampledImage, true
	case hal.UNIFORM_TYPE_COMBINED_IMAGE_SAMPLER:
		return vk.DescriptorTypeCombinedImageSampler, true
	case hal.UNIFORM_TYPE_STORAGE_IMAGE:
		return vk.DescriptorTypeStorageImage, true
	case hal.UNIFORM_TYPE_UNIFORM_BUFFER:
		return vk.DescriptorTypeUniformBuffer, true
	case hal.UNIFORM_TYPE_STORAGE_BUFFER:
		return vk.DescriptorTypeStorageBuffer, true
	}
	return 0, false
}

func vkSampleCount(samples uint32) vk.SampleCountFlagBits {
	switch {
	case samples >= 64:
		return vk.SampleCount64Bit
	case samples >= 32:
		return vk.SampleCount32Bit
	case samples >= 16:
		return vk.SampleCount16Bit
	case samples >= 8:
		return vk.SampleCount8Bit
	case samples >= 4:
		return vk.SampleCount4Bit
	case samples >= 2:
		return vk.SampleCount2Bit
	}
	return vk.SampleCount1Bit
}

func vkImageUsage(usage hal.TextureUsageFlags, format hal.GraphicsFormat) vk.ImageUsageFlags {
	var flags vk.ImageUsageFlagBits
	if usage&hal.TEXTURE_USAGE_SAMPLED_BIT != 0 {
		flags |= vk.ImageUsageSampledBit
	}
	if usage&hal.TEXTURE_USAGE_COLOR_ATTACHMENT_BIT != 0 && !format.IsDepth() {
		flags |= vk.ImageUsageColorAttachmentBit
	}
	if usage&hal.TEXTURE_USAGE_DEPTH_ATTACHMENT_BIT != 0 || (usage&hal.TEXTURE_USAGE_COLOR_ATTACHMENT_BIT != 0 && format.IsDepth()) {
		flags |= vk.ImageUsageDepthStencilAttachmentBit
	}
	if usage&hal.TEXTURE_USAGE_TRANSFER_SRC_BIT != 0 {
		flags |= vk.ImageUsageTransferSrcBit
	}
	// every image can be uploaded to or blitted into
	flags |= vk.ImageUsageTransferDstBit
	return vk.ImageUsageFlags(flags)
}

func vkBufferUsage(t hal.GraphicsDataType) vk.BufferUsageFlags {
	flags := vk.BufferUsageTransferSrcBit | vk.BufferUsageTransferDstBit
	switch t {
	case hal.DATA_TYPE_STORAGE_VERTEX_BUFFER:
		flags |= vk.BufferUsageVertexBufferBit
	case hal.DATA_TYPE_STORAGE_INDEX_BUFFER:
		flags |= vk.BufferUsageIndexBufferBit
	case hal.DATA_TYPE_UNIFORM_BUFFER:
		flags |= vk.BufferUsageUniformBufferBit
	case hal.DATA_TYPE_STORAGE_BUFFER:
		flags |= vk.BufferUsageStorageBufferBit
	}
	return vk.BufferUsageFlags(flags)
}

func vkIndexType(f hal.IndexFormat) vk.IndexType {
	if f == hal.INDEX_FORMAT_UINT16 {
		return vk.IndexTypeUint16
	}
	return vk.IndexTypeUint32
}

func vkInputRate(m hal.VertexStepMode) vk.VertexInputRate {
	if m == hal.VERTEX_STEP_PER_INSTANCE {
		return vk.VertexInputRateInstance
	}
	return vk.VertexInputRateVertex
}

func vkBool(b bool) vk.Bool32 {
	if b {
		return vk.True
	}
	return vk.False
}

/**
 * @brief Layout an image rests in between commands. Attachments that are
 * also sampled stay GENERAL so render passes and shaders can both use them
 * without a transition.
 */
func restingLayout(usage hal.TextureUsageFlags, format hal.GraphicsFormat) vk.ImageLayout {
	attachment := usage&(hal.TEXTURE_USAGE_COLOR_ATTACHMENT_BIT|hal.TEXTURE_USAGE_DEPTH_ATTACHMENT_BIT) != 0
	sampled := usage&hal.TEXTURE_USAGE_SAMPLED_BIT != 0
	switch {
	case attachment && sampled:
		return vk.ImageLayoutGeneral
	case attachment && format.IsDepth():
		return vk.ImageLayoutDepthStencilAttachmentOptimal
	case attachment:
		return vk.ImageLayoutColorAttachmentOptimal
	}
	return vk.ImageLayoutShaderReadOnlyOptimal
}
