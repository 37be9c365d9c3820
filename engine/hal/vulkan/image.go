package vulkan

import (
	"fmt"
	"sync"
	"unsafe"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/octoon/engine/core"
	"github.com/spaghettifunk/octoon/engine/hal"
)

const MAX_SAMPLER_LOD float32 = 1000.0

/**
 * @brief Texture is a device local image with a view over all of its levels
 * and layers. Between commands it rests in the layout restingLayout picks for
 * its usage; anything that moves it elsewhere moves it back.
 */
type Texture struct {
	hal.Lifecycle
	mu      sync.Mutex
	device  *Device
	desc    hal.GraphicsTextureDesc
	image   vk.Image
	memory  vk.DeviceMemory
	view    vk.ImageView
	layout  vk.ImageLayout
	aspect  vk.ImageAspectFlags
	layers  uint32
	samples vk.SampleCountFlagBits
}

func imageTypes(dim hal.TextureDim) (vk.ImageType, vk.ImageViewType) {
	switch dim {
	case hal.TEXTURE_DIM_2D_ARRAY:
		return vk.ImageType2d, vk.ImageViewType2dArray
	case hal.TEXTURE_DIM_3D:
		return vk.ImageType3d, vk.ImageViewType3d
	case hal.TEXTURE_DIM_CUBE:
		return vk.ImageType2d, vk.ImageViewTypeCube
	case hal.TEXTURE_DIM_CUBE_ARRAY:
		return vk.ImageType2d, vk.ImageViewTypeCubeArray
	}
	return vk.ImageType2d, vk.ImageViewType2d
}

func (d *Device) newTexture(desc hal.GraphicsTextureDesc) (*Texture, error) {
	if desc.Name == "" {
		desc.Name = hal.DefaultName("vulkan.texture")
	}
	if desc.MipLevels == 0 {
		desc.MipLevels = 1
	}
	if desc.Layers == 0 {
		desc.Layers = 1
	}
	if err := desc.Validate(); err != nil {
		return nil, fail(err)
	}
	if !d.supportsTexture(desc) {
		return nil, fail(fmt.Errorf("texture '%s' format %d with %d samples is not supported by the GPU: %w", desc.Name, desc.Format, desc.Multisample, core.ErrUnsupportedFormat))
	}

	imageType, viewType := imageTypes(desc.Dim)
	layers := desc.Layers
	var flags vk.ImageCreateFlagBits
	if desc.Dim == hal.TEXTURE_DIM_CUBE || desc.Dim == hal.TEXTURE_DIM_CUBE_ARRAY {
		layers *= 6
		flags |= vk.ImageCreateCubeCompatibleBit
	}
	depth := uint32(1)
	if desc.Dim == hal.TEXTURE_DIM_3D {
		depth = max(desc.Depth, 1)
		layers = 1
	}

	t := &Texture{
		device:  d,
		desc:    desc,
		layout:  restingLayout(desc.Usage, desc.Format),
		aspect:  aspectMask(desc.Format),
		layers:  layers,
		samples: vkSampleCount(desc.Multisample),
	}
	imageInfo := vk.ImageCreateInfo{
		SType:         vk.StructureTypeImageCreateInfo,
		Flags:         vk.ImageCreateFlags(flags),
		ImageType:     imageType,
		Format:        vkFormat(desc.Format),
		Extent:        vk.Extent3D{Width: desc.Width, Height: desc.Height, Depth: depth},
		MipLevels:     desc.MipLevels,
		ArrayLayers:   layers,
		Samples:       t.samples,
		Tiling:        vk.ImageTilingOptimal,
		Usage:         vkImageUsage(desc.Usage, desc.Format),
		SharingMode:   vk.SharingModeExclusive,
		InitialLayout: vk.ImageLayoutUndefined,
	}
	if err := check(vk.CreateImage(d.handle, &imageInfo, nil, &t.image), "vkCreateImage"); err != nil {
		return nil, err
	}
	var req vk.MemoryRequirements
	vk.GetImageMemoryRequirements(d.handle, t.image, &req)
	req.Deref()
	memory, err := d.allocate(req, vk.MemoryPropertyDeviceLocalBit)
	if err != nil {
		t.destroy()
		return nil, err
	}
	t.memory = memory
	if err := check(vk.BindImageMemory(d.handle, t.image, t.memory, 0), "vkBindImageMemory"); err != nil {
		t.destroy()
		return nil, err
	}
	view, err := t.createView(viewType, 0, desc.MipLevels, 0, layers)
	if err != nil {
		t.destroy()
		return nil, err
	}
	t.view = view

	if desc.Stream != nil {
		err = t.upload(desc.Stream, vk.ImageLayoutUndefined)
	} else {
		err = d.submitOnce(func(cmd vk.CommandBuffer) {
			t.transition(cmd, vk.ImageLayoutUndefined, t.layout)
		})
	}
	if err != nil {
		t.destroy()
		return nil, err
	}
	t.desc.Stream = nil
	t.InitLifecycle(d.ref)
	return t, nil
}

func (t *Texture) createView(viewType vk.ImageViewType, mip, levels, layer, layers uint32) (vk.ImageView, error) {
	info := vk.ImageViewCreateInfo{
		SType:    vk.StructureTypeImageViewCreateInfo,
		Image:    t.image,
		ViewType: viewType,
		Format:   vkFormat(t.desc.Format),
		Components: vk.ComponentMapping{
			R: vk.ComponentSwizzleIdentity,
			G: vk.ComponentSwizzleIdentity,
			B: vk.ComponentSwizzleIdentity,
			A: vk.ComponentSwizzleIdentity,
		},
		SubresourceRange: vk.ImageSubresourceRange{
			AspectMask:     t.aspect,
			BaseMipLevel:   mip,
			LevelCount:     levels,
			BaseArrayLayer: layer,
			LayerCount:     layers,
		},
	}
	var view vk.ImageView
	if err := check(vk.CreateImageView(t.device.handle, &info, nil, &view), "vkCreateImageView"); err != nil {
		return vk.NullImageView, err
	}
	return view, nil
}

// attachmentView returns a single level, single layer view for framebuffers.
func (t *Texture) attachmentView(a hal.Attachment) (vk.ImageView, error) {
	if a.MipLevel >= t.desc.MipLevels || a.Layer >= t.layers {
		return vk.NullImageView, fmt.Errorf("attachment level %d layer %d outside texture '%s': %w", a.MipLevel, a.Layer, t.desc.Name, core.ErrFramebufferSetup)
	}
	return t.createView(vk.ImageViewType2d, a.MipLevel, 1, a.Layer, 1)
}

func (t *Texture) transition(cmd vk.CommandBuffer, from, to vk.ImageLayout) {
	transitionImage(cmd, t.image, t.aspect, t.desc.MipLevels, t.layers, from, to)
}

func (t *Texture) Desc() hal.GraphicsTextureDesc { return t.desc }

// Upload replaces the first level of every layer with data, tightly packed.
func (t *Texture) Upload(data []byte) error {
	if t.IsClosed() {
		return fmt.Errorf("upload to closed texture '%s': %w", t.desc.Name, core.ErrDeviceClosed)
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.upload(data, t.layout)
}

func (t *Texture) upload(data []byte, from vk.ImageLayout) error {
	if t.samples != vk.SampleCount1Bit {
		return fmt.Errorf("upload to multisampled texture '%s': %w", t.desc.Name, core.ErrInvalidDesc)
	}
	depth := uint32(1)
	if t.desc.Dim == hal.TEXTURE_DIM_3D {
		depth = max(t.desc.Depth, 1)
	}
	size := uint64(t.desc.Width) * uint64(t.desc.Height) * uint64(depth) * uint64(t.desc.Format.Size()) * uint64(t.layers)
	if uint64(len(data)) > size {
		return fmt.Errorf("upload of %d bytes overflows texture '%s' of %d bytes: %w", len(data), t.desc.Name, size, core.ErrInvalidDesc)
	}
	if len(data) == 0 {
		return nil
	}

	d := t.device
	staging, memory, err := d.createBuffer(uint64(len(data)), vk.BufferUsageFlags(vk.BufferUsageTransferSrcBit), vk.MemoryPropertyHostVisibleBit|vk.MemoryPropertyHostCoherentBit)
	if err != nil {
		return err
	}
	defer func() {
		vk.DestroyBuffer(d.handle, staging, nil)
		vk.FreeMemory(d.handle, memory, nil)
	}()
	var ptr unsafe.Pointer
	if err := check(vk.MapMemory(d.handle, memory, 0, vk.DeviceSize(len(data)), 0, &ptr), "vkMapMemory"); err != nil {
		return err
	}
	copy(unsafe.Slice((*byte)(ptr), len(data)), data)
	vk.UnmapMemory(d.handle, memory)

	layers := uint32(uint64(len(data)) / max(size/uint64(t.layers), 1))
	return d.submitOnce(func(cmd vk.CommandBuffer) {
		t.transition(cmd, from, vk.ImageLayoutTransferDstOptimal)
		region := vk.BufferImageCopy{
			ImageSubresource: vk.ImageSubresourceLayers{
				AspectMask:     t.aspect,
				MipLevel:       0,
				BaseArrayLayer: 0,
				LayerCount:     max(layers, 1),
			},
			ImageExtent: vk.Extent3D{Width: t.desc.Width, Height: t.desc.Height, Depth: depth},
		}
		vk.CmdCopyBufferToImage(cmd, staging, t.image, vk.ImageLayoutTransferDstOptimal, 1, []vk.BufferImageCopy{region})
		t.transition(cmd, vk.ImageLayoutTransferDstOptimal, t.layout)
	})
}

func (t *Texture) destroy() {
	h := t.device.handle
	if t.view != vk.NullImageView {
		vk.DestroyImageView(h, t.view, nil)
	}
	if t.image != vk.NullImage {
		vk.DestroyImage(h, t.image, nil)
	}
	if t.memory != vk.NullDeviceMemory {
		vk.FreeMemory(h, t.memory, nil)
	}
}

func (t *Texture) Close() {
	t.CloseOnce(func() {
		t.device.release(t.destroy)
	})
}

type Sampler struct {
	hal.Lifecycle
	device *Device
	desc   hal.GraphicsSamplerDesc
	handle vk.Sampler
}

func (d *Device) newSampler(desc hal.GraphicsSamplerDesc) (*Sampler, error) {
	magFilter, _ := vkFilter(desc.MagFilter)
	minFilter, mipmapMode := vkFilter(desc.MinFilter)
	info := vk.SamplerCreateInfo{
		SType:        vk.StructureTypeSamplerCreateInfo,
		MagFilter:    magFilter,
		MinFilter:    minFilter,
		MipmapMode:   mipmapMode,
		AddressModeU: vkAddressMode(desc.WrapU),
		AddressModeV: vkAddressMode(desc.WrapV),
		AddressModeW: vkAddressMode(desc.WrapW),
		CompareOp:    vk.CompareOpAlways,
		MaxLod:       MAX_SAMPLER_LOD,
		BorderColor:  vk.BorderColorIntOpaqueBlack,
	}
	if desc.Anisotropy > 1 && d.features.SamplerAnisotropy == vk.True {
		info.AnisotropyEnable = vk.True
		info.MaxAnisotropy = min(float32(desc.Anisotropy), d.limits.MaxSamplerAnisotropy)
	}
	s := &Sampler{device: d, desc: desc}
	if err := check(vk.CreateSampler(d.handle, &info, nil, &s.handle), "vkCreateSampler"); err != nil {
		return nil, err
	}
	s.InitLifecycle(d.ref)
	return s, nil
}

func (s *Sampler) Desc() hal.GraphicsSamplerDesc { return s.desc }

func (s *Sampler) Close() {
	s.CloseOnce(func() {
		device, handle := s.device, s.handle
		device.release(func() { vk.DestroySampler(device.handle, handle, nil) })
	})
}

// layoutAccess returns the access and stage an image in layout is used with.
func layoutAccess(layout vk.ImageLayout) (vk.AccessFlagBits, vk.PipelineStageFlagBits) {
	switch layout {
	case vk.ImageLayoutUndefined:
		return 0, vk.PipelineStageTopOfPipeBit
	case vk.ImageLayoutTransferDstOptimal:
		return vk.AccessTransferWriteBit, vk.PipelineStageTransferBit
	case vk.ImageLayoutTransferSrcOptimal:
		return vk.AccessTransferReadBit, vk.PipelineStageTransferBit
	case vk.ImageLayoutColorAttachmentOptimal:
		return vk.AccessColorAttachmentReadBit | vk.AccessColorAttachmentWriteBit, vk.PipelineStageColorAttachmentOutputBit
	case vk.ImageLayoutDepthStencilAttachmentOptimal:
		return vk.AccessDepthStencilAttachmentReadBit | vk.AccessDepthStencilAttachmentWriteBit,
			vk.PipelineStageEarlyFragmentTestsBit | vk.PipelineStageLateFragmentTestsBit
	case vk.ImageLayoutShaderReadOnlyOptimal:
		return vk.AccessShaderReadBit, vk.PipelineStageFragmentShaderBit
	case vk.ImageLayoutPresentSrc:
		return 0, vk.PipelineStageBottomOfPipeBit
	}
	return vk.AccessMemoryReadBit | vk.AccessMemoryWriteBit, vk.PipelineStageAllCommandsBit
}

func transitionImage(cmd vk.CommandBuffer, image vk.Image, aspect vk.ImageAspectFlags, levels, layers uint32, from, to vk.ImageLayout) {
	if from == to && from != vk.ImageLayoutGeneral {
		return
	}
	srcAccess, srcStage := layoutAccess(from)
	dstAccess, dstStage := layoutAccess(to)
	barrier := vk.ImageMemoryBarrier{
		SType:               vk.StructureTypeImageMemoryBarrier,
		SrcAccessMask:       vk.AccessFlags(srcAccess),
		DstAccessMask:       vk.AccessFlags(dstAccess),
		OldLayout:           from,
		NewLayout:           to,
		SrcQueueFamilyIndex: vk.QueueFamilyIgnored,
		DstQueueFamilyIndex: vk.QueueFamilyIgnored,
		Image:               image,
		SubresourceRange: vk.ImageSubresourceRange{
			AspectMask: aspect,
			LevelCount: levels,
			LayerCount: layers,
		},
	}
	vk.CmdPipelineBarrier(cmd, vk.PipelineStageFlags(srcStage), vk.PipelineStageFlags(dstStage), 0, 0, nil, 0, nil, 1, []vk.ImageMemoryBarrier{barrier})
}
