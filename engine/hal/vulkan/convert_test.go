package vulkan

import (
	"testing"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/octoon/engine/hal"
	"github.com/stretchr/testify/assert"
)

func TestFormatRoundTrip(t *testing.T) {
	for _, f := range []hal.GraphicsFormat{
		hal.FORMAT_R8G8B8A8_UNORM,
		hal.FORMAT_B8G8R8A8_SRGB,
		hal.FORMAT_R16G16B16A16_SFLOAT,
		hal.FORMAT_D32_SFLOAT,
	} {
		assert.Equal(t, f, halFormat(vkFormat(f)))
	}
	assert.Equal(t, vk.FormatUndefined, vkFormat(hal.GraphicsFormat(255)))
	assert.Equal(t, hal.FORMAT_UNDEFINED, halFormat(vk.FormatBc1RgbUnormBlock))
}

func TestAspectMask(t *testing.T) {
	assert.Equal(t, vk.ImageAspectFlags(vk.ImageAspectColorBit), aspectMask(hal.FORMAT_R8G8B8A8_UNORM))
	assert.Equal(t, vk.ImageAspectFlags(vk.ImageAspectDepthBit), aspectMask(hal.FORMAT_D32_SFLOAT))
	assert.Equal(t, vk.ImageAspectFlags(vk.ImageAspectDepthBit|vk.ImageAspectStencilBit), aspectMask(hal.FORMAT_D24_UNORM_S8_UINT))
}

func TestRestingLayout(t *testing.T) {
	cases := []struct {
		name   string
		usage  hal.TextureUsageFlags
		format hal.GraphicsFormat
		want   vk.ImageLayout
	}{
		{"sampled", hal.TEXTURE_USAGE_SAMPLED_BIT, hal.FORMAT_R8G8B8A8_UNORM, vk.ImageLayoutShaderReadOnlyOptimal},
		{"colour target", hal.TEXTURE_USAGE_COLOR_ATTACHMENT_BIT, hal.FORMAT_R8G8B8A8_UNORM, vk.ImageLayoutColorAttachmentOptimal},
		{"depth target", hal.TEXTURE_USAGE_DEPTH_ATTACHMENT_BIT, hal.FORMAT_D32_SFLOAT, vk.ImageLayoutDepthStencilAttachmentOptimal},
		{"sampled target", hal.TEXTURE_USAGE_COLOR_ATTACHMENT_BIT | hal.TEXTURE_USAGE_SAMPLED_BIT, hal.FORMAT_R16G16B16A16_SFLOAT, vk.ImageLayoutGeneral},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			assert.Equal(t, c.want, restingLayout(c.usage, c.format))
		})
	}
}

func TestImageUsage(t *testing.T) {
	usage := vkImageUsage(hal.TEXTURE_USAGE_COLOR_ATTACHMENT_BIT, hal.FORMAT_D32_SFLOAT)
	assert.NotZero(t, usage&vk.ImageUsageFlags(vk.ImageUsageDepthStencilAttachmentBit))
	assert.Zero(t, usage&vk.ImageUsageFlags(vk.ImageUsageColorAttachmentBit))
	assert.NotZero(t, usage&vk.ImageUsageFlags(vk.ImageUsageTransferDstBit))
}

func TestSampleCount(t *testing.T) {
	assert.Equal(t, vk.SampleCount1Bit, vkSampleCount(0))
	assert.Equal(t, vk.SampleCount4Bit, vkSampleCount(4))
	assert.Equal(t, vk.SampleCount4Bit, vkSampleCount(6))
	assert.Equal(t, vk.SampleCount64Bit, vkSampleCount(128))
}

func TestShaderStages(t *testing.T) {
	all := vk.ShaderStageFlags(vk.ShaderStageVertexBit | vk.ShaderStageFragmentBit)
	assert.Equal(t, all, vkShaderStages(0))
	assert.Equal(t, vk.ShaderStageFlags(vk.ShaderStageFragmentBit), vkShaderStages(hal.SHADER_STAGE_FRAGMENT_BIT))
	assert.Equal(t, vk.ShaderStageVertexBit, vkShaderStage(hal.SHADER_STAGE_VERTEX_BIT))
	assert.Zero(t, vkShaderStage(hal.SHADER_STAGE_VERTEX_BIT|hal.SHADER_STAGE_FRAGMENT_BIT))
}

func TestDescriptorTypes(t *testing.T) {
	typ, ok := vkDescriptorType(hal.UNIFORM_TYPE_COMBINED_IMAGE_SAMPLER)
	assert.True(t, ok)
	assert.Equal(t, vk.DescriptorTypeCombinedImageSampler, typ)

	_, ok = vkDescriptorType(hal.UNIFORM_TYPE_FLOAT4X4)
	assert.False(t, ok, "plain values live in the uniform block")
}

func TestRenderPassSpecCompatible(t *testing.T) {
	a := renderPassSpec{count: 1, samples: vk.SampleCount1Bit}
	a.colors[0] = vk.FormatR8g8b8a8Unorm
	a.layouts[0] = vk.ImageLayoutGeneral
	b := a
	b.layouts[0] = vk.ImageLayoutColorAttachmentOptimal

	assert.NotEqual(t, a, b)
	assert.Equal(t, a.compatible(), b.compatible())
}

func TestSpecFromLayoutDefaults(t *testing.T) {
	spec, ok := specFromLayout(hal.GraphicsFramebufferLayoutDesc{
		Components: []hal.AttachmentLayout{
			{Format: hal.FORMAT_R8G8B8A8_UNORM},
			{Format: hal.FORMAT_D32_SFLOAT},
		},
	})
	assert.True(t, ok)
	assert.Equal(t, 1, spec.count)
	assert.Equal(t, vk.ImageLayoutColorAttachmentOptimal, spec.layouts[0])
	assert.Equal(t, vk.FormatD32Sfloat, spec.depth)
	assert.Equal(t, vk.ImageLayoutDepthStencilAttachmentOptimal, spec.depthLayout)
}

func TestSpirvWords(t *testing.T) {
	code := []byte{0x03, 0x02, 0x23, 0x07, 0x00, 0x00, 0x01, 0x00}
	words := spirvWords(code)
	assert.Equal(t, []uint32{SPIRV_MAGIC, 0x00010000}, words)
}

func TestShaderModuleInfo(t *testing.T) {
	code := []byte{0x03, 0x02, 0x23, 0x07, 0x00, 0x00, 0x01, 0x00}
	info, ok := shaderModuleInfo(code)
	assert.True(t, ok)
	assert.Equal(t, vk.StructureTypeShaderModuleCreateInfo, info.SType)
	assert.Equal(t, uint64(len(code)), info.CodeSize)
	assert.Len(t, info.PCode, 2)

	_, ok = shaderModuleInfo([]byte("#version 450\n"))
	assert.False(t, ok)
	_, ok = shaderModuleInfo(code[:6])
	assert.False(t, ok)
}
