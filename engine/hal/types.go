package hal

import (
	"fmt"
	"strings"

	"github.com/spaghettifunk/octoon/engine/core"
)

/** @brief The graphics API a device is created for. */
type GraphicsDeviceType uint8

const (
	DEVICE_TYPE_OPENGL_CORE GraphicsDeviceType = iota
	DEVICE_TYPE_OPENGL
	DEVICE_TYPE_OPENGL_ES2
	DEVICE_TYPE_OPENGL_ES3
	DEVICE_TYPE_OPENGL_ES31
	DEVICE_TYPE_OPENGL_ES32
	DEVICE_TYPE_VULKAN
	/** @brief Host memory device, records commands instead of submitting them. */
	DEVICE_TYPE_SOFT
	DEVICE_TYPE_MAX
)

var deviceTypeNames = [...]string{
	DEVICE_TYPE_OPENGL_CORE: "opengl_core",
	DEVICE_TYPE_OPENGL:      "opengl",
	DEVICE_TYPE_OPENGL_ES2:  "opengl_es2",
	DEVICE_TYPE_OPENGL_ES3:  "opengl_es3",
	DEVICE_TYPE_OPENGL_ES31: "opengl_es31",
	DEVICE_TYPE_OPENGL_ES32: "opengl_es32",
	DEVICE_TYPE_VULKAN:      "vulkan",
	DEVICE_TYPE_SOFT:        "soft",
}

func (t GraphicsDeviceType) String() string {
	if t >= DEVICE_TYPE_MAX {
		return fmt.Sprintf("device_type(%d)", t)
	}
	return deviceTypeNames[t]
}

// ParseDeviceType maps a configuration name such as "vulkan" to its device type.
func ParseDeviceType(name string) (GraphicsDeviceType, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	for i, n := range deviceTypeNames {
		if n == name {
			return GraphicsDeviceType(i), nil
		}
	}
	return DEVICE_TYPE_MAX, fmt.Errorf("unknown graphics device type '%s': %w", name, core.ErrInvalidDesc)
}

type GraphicsFormat uint16

const (
	FORMAT_UNDEFINED GraphicsFormat = iota
	FORMAT_R8_UNORM
	FORMAT_R8G8B8_UNORM
	FORMAT_R8G8B8A8_UNORM
	FORMAT_R8G8B8A8_SRGB
	FORMAT_B8G8R8A8_UNORM
	FORMAT_B8G8R8A8_SRGB
	FORMAT_R16G16B16A16_SFLOAT
	FORMAT_R32_SFLOAT
	FORMAT_R32G32_SFLOAT
	FORMAT_R32G32B32_SFLOAT
	FORMAT_R32G32B32A32_SFLOAT
	FORMAT_R32_UINT
	FORMAT_D16_UNORM
	FORMAT_X8_D24_UNORM_PACK32
	FORMAT_D32_SFLOAT
	FORMAT_D24_UNORM_S8_UINT
	FORMAT_D32_SFLOAT_S8_UINT
	FORMAT_MAX
)

var formatSizes = [...]uint32{
	FORMAT_UNDEFINED:           0,
	FORMAT_R8_UNORM:            1,
	FORMAT_R8G8B8_UNORM:        3,
	FORMAT_R8G8B8A8_UNORM:      4,
	FORMAT_R8G8B8A8_SRGB:       4,
	FORMAT_B8G8R8A8_UNORM:      4,
	FORMAT_B8G8R8A8_SRGB:       4,
	FORMAT_R16G16B16A16_SFLOAT: 8,
	FORMAT_R32_SFLOAT:          4,
	FORMAT_R32G32_SFLOAT:       8,
	FORMAT_R32G32B32_SFLOAT:    12,
	FORMAT_R32G32B32A32_SFLOAT: 16,
	FORMAT_R32_UINT:            4,
	FORMAT_D16_UNORM:           2,
	FORMAT_X8_D24_UNORM_PACK32: 4,
	FORMAT_D32_SFLOAT:          4,
	FORMAT_D24_UNORM_S8_UINT:   4,
	FORMAT_D32_SFLOAT_S8_UINT:  8,
}

// Size returns the number of bytes of one texel or vertex element.
func (f GraphicsFormat) Size() uint32 {
	if f >= FORMAT_MAX {
		return 0
	}
	return formatSizes[f]
}

func (f GraphicsFormat) IsDepth() bool {
	switch f {
	case FORMAT_D16_UNORM, FORMAT_X8_D24_UNORM_PACK32, FORMAT_D32_SFLOAT, FORMAT_D24_UNORM_S8_UINT, FORMAT_D32_SFLOAT_S8_UINT:
		return true
	}
	return false
}

func (f GraphicsFormat) IsStencil() bool {
	return f == FORMAT_D24_UNORM_S8_UINT || f == FORMAT_D32_SFLOAT_S8_UINT
}

type TextureDim uint8

const (
	TEXTURE_DIM_2D TextureDim = iota
	TEXTURE_DIM_2D_ARRAY
	TEXTURE_DIM_3D
	TEXTURE_DIM_CUBE
	TEXTURE_DIM_CUBE_ARRAY
)

type TextureUsageFlags uint32

const (
	TEXTURE_USAGE_SAMPLED_BIT          TextureUsageFlags = 0x01
	TEXTURE_USAGE_COLOR_ATTACHMENT_BIT TextureUsageFlags = 0x02
	TEXTURE_USAGE_DEPTH_ATTACHMENT_BIT TextureUsageFlags = 0x04
	TEXTURE_USAGE_TRANSFER_SRC_BIT     TextureUsageFlags = 0x08
	TEXTURE_USAGE_TRANSFER_DST_BIT     TextureUsageFlags = 0x10
)

/**
 * @brief The types of clearing to be done on a framebuffer.
 * Can be combined together for multiple clearing functions.
 */
type ClearFlags uint32

const (
	CLEAR_NONE          ClearFlags = 0x0
	CLEAR_COLOR         ClearFlags = 0x1
	CLEAR_DEPTH         ClearFlags = 0x2
	CLEAR_STENCIL       ClearFlags = 0x4
	CLEAR_DEPTH_STENCIL ClearFlags = CLEAR_DEPTH | CLEAR_STENCIL
	CLEAR_ALL           ClearFlags = CLEAR_COLOR | CLEAR_DEPTH | CLEAR_STENCIL
)

type GraphicsDataType uint8

const (
	DATA_TYPE_NONE GraphicsDataType = iota
	DATA_TYPE_STORAGE_VERTEX_BUFFER
	DATA_TYPE_STORAGE_INDEX_BUFFER
	DATA_TYPE_UNIFORM_BUFFER
	DATA_TYPE_STORAGE_BUFFER
)

type UsageFlags uint32

const (
	USAGE_READ_BIT          UsageFlags = 0x01
	USAGE_WRITE_BIT         UsageFlags = 0x02
	USAGE_PERSISTENT_BIT    UsageFlags = 0x04
	USAGE_COHERENT_BIT      UsageFlags = 0x08
	USAGE_FLUSH_EXPLICIT    UsageFlags = 0x10
	USAGE_DYNAMIC_STORAGE   UsageFlags = 0x20
	USAGE_CLIENT_STORAGE    UsageFlags = 0x40
	USAGE_IMMUTABLE_STORAGE UsageFlags = 0x80
)

type ShaderStageFlags uint32

const (
	SHADER_STAGE_VERTEX_BIT   ShaderStageFlags = 0x01
	SHADER_STAGE_FRAGMENT_BIT ShaderStageFlags = 0x02
	SHADER_STAGE_GEOMETRY_BIT ShaderStageFlags = 0x04
	SHADER_STAGE_COMPUTE_BIT  ShaderStageFlags = 0x08
	SHADER_STAGE_ALL          ShaderStageFlags = 0x0F
)

type ShaderLanguage uint8

const (
	SHADER_LANGUAGE_GLSL ShaderLanguage = iota
	SHADER_LANGUAGE_HLSL
	/** @brief Precompiled SPIR-V bytecode. */
	SHADER_LANGUAGE_SPIRV
)

type UniformType uint8

const (
	UNIFORM_TYPE_NONE UniformType = iota
	UNIFORM_TYPE_BOOL
	UNIFORM_TYPE_INT
	UNIFORM_TYPE_INT2
	UNIFORM_TYPE_INT3
	UNIFORM_TYPE_INT4
	UNIFORM_TYPE_UINT
	UNIFORM_TYPE_FLOAT
	UNIFORM_TYPE_FLOAT2
	UNIFORM_TYPE_FLOAT3
	UNIFORM_TYPE_FLOAT4
	UNIFORM_TYPE_FLOAT3X3
	UNIFORM_TYPE_FLOAT4X4
	UNIFORM_TYPE_INT_ARRAY
	UNIFORM_TYPE_FLOAT_ARRAY
	UNIFORM_TYPE_FLOAT3_ARRAY
	UNIFORM_TYPE_FLOAT4_ARRAY
	UNIFORM_TYPE_FLOAT4X4_ARRAY
	UNIFORM_TYPE_SAMPLER
	UNIFORM_TYPE_SAMPLED_IMAGE
	UNIFORM_TYPE_COMBINED_IMAGE_SAMPLER
	UNIFORM_TYPE_STORAGE_IMAGE
	UNIFORM_TYPE_UNIFORM_BUFFER
	UNIFORM_TYPE_STORAGE_BUFFER
)

// IsResource reports whether the uniform binds a texture, sampler or buffer
// rather than a plain value.
func (t UniformType) IsResource() bool {
	return t >= UNIFORM_TYPE_SAMPLER
}

type IndexFormat uint8

const (
	INDEX_FORMAT_UINT16 IndexFormat = iota
	INDEX_FORMAT_UINT32
)

func (f IndexFormat) Size() uint32 {
	if f == INDEX_FORMAT_UINT16 {
		return 2
	}
	return 4
}

type PrimitiveType uint8

const (
	PRIMITIVE_TYPE_POINT_LIST PrimitiveType = iota
	PRIMITIVE_TYPE_LINE_LIST
	PRIMITIVE_TYPE_LINE_STRIP
	PRIMITIVE_TYPE_TRIANGLE_LIST
	PRIMITIVE_TYPE_TRIANGLE_STRIP
	PRIMITIVE_TYPE_TRIANGLE_FAN
)

type CullMode uint8

const (
	CULL_MODE_NONE CullMode = iota
	CULL_MODE_FRONT
	CULL_MODE_BACK
	CULL_MODE_FRONT_AND_BACK
)

type FrontFace uint8

const (
	FRONT_FACE_CCW FrontFace = iota
	FRONT_FACE_CW
)

type PolygonMode uint8

const (
	POLYGON_MODE_SOLID PolygonMode = iota
	POLYGON_MODE_WIREFRAME
	POLYGON_MODE_POINT
)

type BlendOp uint8

const (
	BLEND_OP_ADD BlendOp = iota
	BLEND_OP_SUBTRACT
	BLEND_OP_REV_SUBTRACT
)

type BlendFactor uint8

const (
	BLEND_FACTOR_ZERO BlendFactor = iota
	BLEND_FACTOR_ONE
	BLEND_FACTOR_SRC_COLOR
	BLEND_FACTOR_ONE_MINUS_SRC_COLOR
	BLEND_FACTOR_DST_COLOR
	BLEND_FACTOR_ONE_MINUS_DST_COLOR
	BLEND_FACTOR_SRC_ALPHA
	BLEND_FACTOR_ONE_MINUS_SRC_ALPHA
	BLEND_FACTOR_DST_ALPHA
	BLEND_FACTOR_ONE_MINUS_DST_ALPHA
)

type CompareFunction uint8

const (
	COMPARE_NEVER CompareFunction = iota
	COMPARE_LESS
	COMPARE_EQUAL
	COMPARE_LEQUAL
	COMPARE_GREATER
	COMPARE_NOT_EQUAL
	COMPARE_GEQUAL
	COMPARE_ALWAYS
)

type StencilOp uint8

const (
	STENCIL_OP_KEEP StencilOp = iota
	STENCIL_OP_ZERO
	STENCIL_OP_REPLACE
	STENCIL_OP_INCR
	STENCIL_OP_DECR
	STENCIL_OP_INVERT
)

type ColorWriteMask uint8

const (
	COLOR_WRITE_R_BIT   ColorWriteMask = 0x1
	COLOR_WRITE_G_BIT   ColorWriteMask = 0x2
	COLOR_WRITE_B_BIT   ColorWriteMask = 0x4
	COLOR_WRITE_A_BIT   ColorWriteMask = 0x8
	COLOR_WRITE_RGBA    ColorWriteMask = 0xF
	COLOR_WRITE_DISABLE ColorWriteMask = 0x0
)

type ImageLayout uint8

const (
	IMAGE_LAYOUT_UNDEFINED ImageLayout = iota
	IMAGE_LAYOUT_GENERAL
	IMAGE_LAYOUT_COLOR_ATTACHMENT_OPTIMAL
	IMAGE_LAYOUT_DEPTH_STENCIL_ATTACHMENT_OPTIMAL
	IMAGE_LAYOUT_SHADER_READ_ONLY_OPTIMAL
	IMAGE_LAYOUT_PRESENT_SRC
)

type SamplerFilter uint8

const (
	SAMPLER_FILTER_NEAREST SamplerFilter = iota
	SAMPLER_FILTER_LINEAR
	SAMPLER_FILTER_LINEAR_MIPMAP_LINEAR
)

type SamplerWrap uint8

const (
	SAMPLER_WRAP_REPEAT SamplerWrap = iota
	SAMPLER_WRAP_MIRRORED_REPEAT
	SAMPLER_WRAP_CLAMP_TO_EDGE
)

type VertexStepMode uint8

const (
	VERTEX_STEP_PER_VERTEX VertexStepMode = iota
	VERTEX_STEP_PER_INSTANCE
)
