package vulkan

import (
	"fmt"
	"sync"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/octoon/engine/core"
	"github.com/spaghettifunk/octoon/engine/hal"
)

const MAX_COLOR_ATTACHMENTS = 8

/**
 * @brief Everything a render pass depends on. Two specs that differ only in
 * layouts describe compatible passes, which is what pipelines care about.
 */
type renderPassSpec struct {
	colors      [MAX_COLOR_ATTACHMENTS]vk.Format
	layouts     [MAX_COLOR_ATTACHMENTS]vk.ImageLayout
	count       int
	depth       vk.Format
	depthLayout vk.ImageLayout
	samples     vk.SampleCountFlagBits
}

func (s renderPassSpec) compatible() renderPassSpec {
	s.layouts = [MAX_COLOR_ATTACHMENTS]vk.ImageLayout{}
	s.depthLayout = vk.ImageLayoutUndefined
	return s
}

// renderPassCache keeps one render pass per spec for the life of the device.
type renderPassCache struct {
	mu     sync.Mutex
	passes map[renderPassSpec]vk.RenderPass
}

func (c *renderPassCache) destroy(device vk.Device) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, pass := range c.passes {
		vk.DestroyRenderPass(device, pass, nil)
	}
	c.passes = nil
}

func (d *Device) renderPass(spec renderPassSpec) (vk.RenderPass, error) {
	d.passes.mu.Lock()
	defer d.passes.mu.Unlock()
	if pass, ok := d.passes.passes[spec]; ok {
		return pass, nil
	}

	// contents are loaded and kept, clears happen inside the pass
	attachment := func(format vk.Format, layout vk.ImageLayout) vk.AttachmentDescription {
		return vk.AttachmentDescription{
			Format:         format,
			Samples:        spec.samples,
			LoadOp:         vk.AttachmentLoadOpLoad,
			StoreOp:        vk.AttachmentStoreOpStore,
			StencilLoadOp:  vk.AttachmentLoadOpLoad,
			StencilStoreOp: vk.AttachmentStoreOpStore,
			InitialLayout:  layout,
			FinalLayout:    layout,
		}
	}
	attachments := make([]vk.AttachmentDescription, 0, spec.count+1)
	colorRefs := make([]vk.AttachmentReference, 0, spec.count)
	for i := 0; i < spec.count; i++ {
		attachments = append(attachments, attachment(spec.colors[i], spec.layouts[i]))
		colorRefs = append(colorRefs, vk.AttachmentReference{Attachment: uint32(i), Layout: spec.layouts[i]})
	}
	subpass := vk.SubpassDescription{
		PipelineBindPoint:    vk.PipelineBindPointGraphics,
		ColorAttachmentCount: uint32(len(colorRefs)),
		PColorAttachments:    colorRefs,
	}
	if spec.depth != vk.FormatUndefined {
		attachments = append(attachments, attachment(spec.depth, spec.depthLayout))
		subpass.PDepthStencilAttachment = &vk.AttachmentReference{Attachment: uint32(spec.count), Layout: spec.depthLayout}
	}

	all := vk.PipelineStageFlags(vk.PipelineStageAllCommandsBit)
	access := vk.AccessFlags(vk.AccessMemoryReadBit | vk.AccessMemoryWriteBit)
	dependencies := []vk.SubpassDependency{
		{SrcSubpass: vk.SubpassExternal, DstSubpass: 0, SrcStageMask: all, DstStageMask: all, SrcAccessMask: access, DstAccessMask: access},
		{SrcSubpass: 0, DstSubpass: vk.SubpassExternal, SrcStageMask: all, DstStageMask: all, SrcAccessMask: access, DstAccessMask: access},
	}
	createInfo := vk.RenderPassCreateInfo{
		SType:           vk.StructureTypeRenderPassCreateInfo,
		AttachmentCount: uint32(len(attachments)),
		PAttachments:    attachments,
		SubpassCount:    1,
		PSubpasses:      []vk.SubpassDescription{subpass},
		DependencyCount: uint32(len(dependencies)),
		PDependencies:   dependencies,
	}
	var pass vk.RenderPass
	if err := check(vk.CreateRenderPass(d.handle, &createInfo, nil, &pass), "vkCreateRenderPass"); err != nil {
		return vk.NullRenderPass, err
	}
	if d.passes.passes == nil {
		d.passes.passes = make(map[renderPassSpec]vk.RenderPass)
	}
	d.passes.passes[spec] = pass
	return pass, nil
}

// surfaceImage is one attachment image as blits and clears see it.
type surfaceImage struct {
	image   vk.Image
	aspect  vk.ImageAspectFlags
	layout  vk.ImageLayout
	samples vk.SampleCountFlagBits
	mip     uint32
	layer   uint32
}

/**
 * @brief What the context needs to render into a framebuffer or a swapchain
 * image: the vk.Framebuffer, the pass it was made for and its images.
 */
type renderTarget struct {
	framebuffer vk.Framebuffer
	renderPass  vk.RenderPass
	spec        renderPassSpec
	width       uint32
	height      uint32
	colors      []surfaceImage
	depth       *surfaceImage
}

func (d *Device) createFramebuffer(pass vk.RenderPass, views []vk.ImageView, width, height uint32) (vk.Framebuffer, error) {
	info := vk.FramebufferCreateInfo{
		SType:           vk.StructureTypeFramebufferCreateInfo,
		RenderPass:      pass,
		AttachmentCount: uint32(len(views)),
		PAttachments:    views,
		Width:           width,
		Height:          height,
		Layers:          1,
	}
	var framebuffer vk.Framebuffer
	if err := check(vk.CreateFramebuffer(d.handle, &info, nil, &framebuffer), "vkCreateFramebuffer"); err != nil {
		return vk.NullFramebuffer, err
	}
	return framebuffer, nil
}

// FramebufferLayout only describes attachments, passes are made per spec.
type FramebufferLayout struct {
	hal.Lifecycle
	desc hal.GraphicsFramebufferLayoutDesc
}

func (d *Device) newFramebufferLayout(desc hal.GraphicsFramebufferLayoutDesc) (*FramebufferLayout, error) {
	colors := 0
	for _, c := range desc.Components {
		if !c.Format.IsDepth() {
			colors++
		}
	}
	if colors > MAX_COLOR_ATTACHMENTS {
		return nil, fail(fmt.Errorf("framebuffer layout has %d colour attachments, at most %d allowed: %w", colors, MAX_COLOR_ATTACHMENTS, core.ErrInvalidDesc))
	}
	l := &FramebufferLayout{desc: desc}
	l.InitLifecycle(d.ref)
	return l, nil
}

func (l *FramebufferLayout) Desc() hal.GraphicsFramebufferLayoutDesc { return l.desc }
func (l *FramebufferLayout) Close()                                  { l.CloseOnce(nil) }

type Framebuffer struct {
	hal.Lifecycle
	device *Device
	desc   hal.GraphicsFramebufferDesc
	views  []vk.ImageView
	target renderTarget
}

func (d *Device) newFramebuffer(desc hal.GraphicsFramebufferDesc) (*Framebuffer, error) {
	if len(desc.ColorAttachments) > MAX_COLOR_ATTACHMENTS {
		return nil, fail(fmt.Errorf("framebuffer '%s' has %d colour attachments: %w", desc.Name, len(desc.ColorAttachments), core.ErrFramebufferSetup))
	}
	f := &Framebuffer{device: d, desc: desc}
	f.target.width, f.target.height = desc.Width, desc.Height

	samples := vk.SampleCountFlagBits(0)
	add := func(a hal.Attachment) (surfaceImage, error) {
		tex, ok := a.Texture.(*Texture)
		if !ok {
			return surfaceImage{}, fmt.Errorf("framebuffer '%s' attachment was not created by a vulkan device: %w", desc.Name, core.ErrFramebufferSetup)
		}
		if samples != 0 && tex.samples != samples {
			return surfaceImage{}, fmt.Errorf("framebuffer '%s' mixes sample counts %d and %d: %w", desc.Name, samples, tex.samples, core.ErrFramebufferSetup)
		}
		samples = tex.samples
		view, err := tex.attachmentView(a)
		if err != nil {
			return surfaceImage{}, err
		}
		f.views = append(f.views, view)
		return surfaceImage{image: tex.image, aspect: tex.aspect, layout: tex.layout, samples: tex.samples, mip: a.MipLevel, layer: a.Layer}, nil
	}

	for i, a := range desc.ColorAttachments {
		img, err := add(a)
		if err != nil {
			f.destroy()
			return nil, fail(err)
		}
		f.target.colors = append(f.target.colors, img)
		f.target.spec.colors[i] = vkFormat(a.Texture.Desc().Format)
		f.target.spec.layouts[i] = img.layout
	}
	f.target.spec.count = len(desc.ColorAttachments)
	if a := desc.DepthStencilAttachment; a.Texture != nil {
		img, err := add(a)
		if err != nil {
			f.destroy()
			return nil, fail(err)
		}
		f.target.depth = &img
		f.target.spec.depth = vkFormat(a.Texture.Desc().Format)
		f.target.spec.depthLayout = img.layout
	}
	f.target.spec.samples = samples

	pass, err := d.renderPass(f.target.spec)
	if err != nil {
		f.destroy()
		return nil, err
	}
	f.target.renderPass = pass
	framebuffer, err := d.createFramebuffer(pass, f.views, desc.Width, desc.Height)
	if err != nil {
		f.destroy()
		return nil, err
	}
	f.target.framebuffer = framebuffer
	f.InitLifecycle(d.ref)
	return f, nil
}

func (f *Framebuffer) Desc() hal.GraphicsFramebufferDesc { return f.desc }

func (f *Framebuffer) destroy() {
	h := f.device.handle
	if f.target.framebuffer != vk.NullFramebuffer {
		vk.DestroyFramebuffer(h, f.target.framebuffer, nil)
	}
	for _, v := range f.views {
		vk.DestroyImageView(h, v, nil)
	}
	f.views = nil
}

func (f *Framebuffer) Close() {
	f.CloseOnce(func() {
		f.device.release(f.destroy)
	})
}
