package vulkan

import (
	"fmt"
	"sync"

	"github.com/go-gl/glfw/v3.3/glfw"
	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/octoon/engine/core"
	"github.com/spaghettifunk/octoon/engine/hal"
)

/**
 * @brief Swapchain presents to a glfw window (or a surface made elsewhere).
 * Every image gets a render target sharing one depth texture, so drawing to
 * the nil framebuffer goes through the same path as offscreen targets.
 */
type Swapchain struct {
	hal.Lifecycle
	mu     sync.Mutex
	device *Device
	desc   hal.GraphicsSwapchainDesc

	surface     vk.Surface
	ownsSurface bool
	handle      vk.Swapchain
	format      vk.SurfaceFormat
	extent      vk.Extent2D
	images      []vk.Image
	views       []vk.ImageView
	depth       *Texture
	targets     []renderTarget

	current  uint32
	acquired bool
	// semaphore the next present waits on, set when a frame is submitted
	pending vk.Semaphore
	stale   bool
}

func newSwapchain(d *Device, desc hal.GraphicsSwapchainDesc) (*Swapchain, error) {
	s := &Swapchain{device: d, desc: desc}
	switch w := desc.Window.(type) {
	case *glfw.Window:
		ptr, err := w.CreateWindowSurface(d.instance, nil)
		if err != nil {
			return nil, fail(fmt.Errorf("failed to create window surface: %s: %w", err.Error(), core.ErrBackendUnavailable))
		}
		s.surface = vk.SurfaceFromPointer(ptr)
		s.ownsSurface = true
	case vk.Surface:
		s.surface = w
	default:
		return nil, fail(fmt.Errorf("swapchain window of type %T cannot be presented to: %w", desc.Window, core.ErrInvalidDesc))
	}

	var supported vk.Bool32
	vk.GetPhysicalDeviceSurfaceSupport(d.physical, d.queueFamily, s.surface, &supported)
	if supported != vk.True {
		s.destroySurface()
		return nil, fail(fmt.Errorf("graphics queue cannot present to the window surface: %w", core.ErrBackendUnavailable))
	}
	if err := s.create(); err != nil {
		s.destroyImages()
		s.destroySurface()
		return nil, err
	}
	return s, nil
}

func (s *Swapchain) chooseFormat() (vk.SurfaceFormat, error) {
	d := s.device
	var count uint32
	vk.GetPhysicalDeviceSurfaceFormats(d.physical, s.surface, &count, nil)
	if count == 0 {
		return vk.SurfaceFormat{}, fail(fmt.Errorf("surface has no pixel formats: %w", core.ErrUnsupportedFormat))
	}
	formats := make([]vk.SurfaceFormat, count)
	vk.GetPhysicalDeviceSurfaceFormats(d.physical, s.surface, &count, formats)
	for i := range formats {
		formats[i].Deref()
	}

	want := vk.FormatB8g8r8a8Unorm
	if s.desc.ColorFormat != hal.FORMAT_UNDEFINED {
		want = vkFormat(s.desc.ColorFormat)
	}
	if len(formats) == 1 && formats[0].Format == vk.FormatUndefined {
		return vk.SurfaceFormat{Format: want, ColorSpace: formats[0].ColorSpace}, nil
	}
	for _, f := range formats {
		if f.Format == want && f.ColorSpace == vk.ColorSpaceSrgbNonlinear {
			return f, nil
		}
	}
	core.LogWarn("surface lacks format %d, presenting with %d", want, formats[0].Format)
	return formats[0], nil
}

func (s *Swapchain) choosePresentMode() vk.PresentMode {
	if s.desc.VSync {
		return vk.PresentModeFifo
	}
	d := s.device
	var count uint32
	vk.GetPhysicalDeviceSurfacePresentModes(d.physical, s.surface, &count, nil)
	modes := make([]vk.PresentMode, count)
	vk.GetPhysicalDeviceSurfacePresentModes(d.physical, s.surface, &count, modes)
	for _, m := range modes {
		if m == vk.PresentModeMailbox {
			return m
		}
	}
	for _, m := range modes {
		if m == vk.PresentModeImmediate {
			return m
		}
	}
	// FIFO is always there
	return vk.PresentModeFifo
}

func (s *Swapchain) create() error {
	d := s.device
	var caps vk.SurfaceCapabilities
	if err := check(vk.GetPhysicalDeviceSurfaceCapabilities(d.physical, s.surface, &caps), "vkGetPhysicalDeviceSurfaceCapabilities"); err != nil {
		return err
	}
	caps.Deref()
	caps.CurrentExtent.Deref()
	caps.MinImageExtent.Deref()
	caps.MaxImageExtent.Deref()

	format, err := s.chooseFormat()
	if err != nil {
		return err
	}
	extent := vk.Extent2D{Width: s.desc.Width, Height: s.desc.Height}
	if caps.CurrentExtent.Width != vk.MaxUint32 {
		extent = caps.CurrentExtent
	}
	extent.Width = clamp(extent.Width, caps.MinImageExtent.Width, caps.MaxImageExtent.Width)
	extent.Height = clamp(extent.Height, caps.MinImageExtent.Height, caps.MaxImageExtent.Height)
	if extent.Width == 0 || extent.Height == 0 {
		return core.ErrSwapchainBooting
	}

	imageCount := s.desc.ImageCount
	if imageCount == 0 {
		imageCount = caps.MinImageCount + 1
	}
	imageCount = max(imageCount, caps.MinImageCount)
	if caps.MaxImageCount > 0 {
		imageCount = min(imageCount, caps.MaxImageCount)
	}

	preTransform := caps.CurrentTransform
	if vk.SurfaceTransformFlagBits(caps.SupportedTransforms)&vk.SurfaceTransformIdentityBit != 0 {
		preTransform = vk.SurfaceTransformIdentityBit
	}
	compositeAlpha := vk.CompositeAlphaOpaqueBit
	for _, flag := range []vk.CompositeAlphaFlagBits{
		vk.CompositeAlphaOpaqueBit,
		vk.CompositeAlphaPreMultipliedBit,
		vk.CompositeAlphaPostMultipliedBit,
		vk.CompositeAlphaInheritBit,
	} {
		if caps.SupportedCompositeAlpha&vk.CompositeAlphaFlags(flag) != 0 {
			compositeAlpha = flag
			break
		}
	}

	old := s.handle
	info := vk.SwapchainCreateInfo{
		SType:            vk.StructureTypeSwapchainCreateInfo,
		Surface:          s.surface,
		MinImageCount:    imageCount,
		ImageFormat:      format.Format,
		ImageColorSpace:  format.ColorSpace,
		ImageExtent:      extent,
		ImageArrayLayers: 1,
		ImageUsage:       vk.ImageUsageFlags(vk.ImageUsageColorAttachmentBit | vk.ImageUsageTransferDstBit),
		ImageSharingMode: vk.SharingModeExclusive,
		PreTransform:     preTransform,
		CompositeAlpha:   compositeAlpha,
		PresentMode:      s.choosePresentMode(),
		Clipped:          vk.True,
		OldSwapchain:     old,
	}
	var handle vk.Swapchain
	if err := check(vk.CreateSwapchain(d.handle, &info, nil, &handle), "vkCreateSwapchain"); err != nil {
		return err
	}
	if old != vk.NullSwapchain {
		vk.DestroySwapchain(d.handle, old, nil)
	}
	s.handle = handle
	s.format = format
	s.extent = extent

	var count uint32
	if err := check(vk.GetSwapchainImages(d.handle, handle, &count, nil), "vkGetSwapchainImages"); err != nil {
		return err
	}
	s.images = make([]vk.Image, count)
	if err := check(vk.GetSwapchainImages(d.handle, handle, &count, s.images), "vkGetSwapchainImages"); err != nil {
		return err
	}

	if s.desc.DepthStencilFormat != hal.FORMAT_UNDEFINED {
		depth, err := d.newTexture(hal.GraphicsTextureDesc{
			Name:   "vulkan.swapchain.depth",
			Format: s.desc.DepthStencilFormat,
			Width:  extent.Width,
			Height: extent.Height,
			Usage:  hal.TEXTURE_USAGE_DEPTH_ATTACHMENT_BIT,
		})
		if err != nil {
			return err
		}
		s.depth = depth
	}

	spec := renderPassSpec{count: 1, samples: vk.SampleCount1Bit}
	spec.colors[0] = format.Format
	spec.layouts[0] = vk.ImageLayoutColorAttachmentOptimal
	if s.depth != nil {
		spec.depth = vkFormat(s.depth.desc.Format)
		spec.depthLayout = s.depth.layout
	}
	pass, err := d.renderPass(spec)
	if err != nil {
		return err
	}

	colorAspect := vk.ImageAspectFlags(vk.ImageAspectColorBit)
	for _, image := range s.images {
		viewInfo := vk.ImageViewCreateInfo{
			SType:    vk.StructureTypeImageViewCreateInfo,
			Image:    image,
			ViewType: vk.ImageViewType2d,
			Format:   format.Format,
			SubresourceRange: vk.ImageSubresourceRange{
				AspectMask: colorAspect,
				LevelCount: 1,
				LayerCount: 1,
			},
		}
		var view vk.ImageView
		if err := check(vk.CreateImageView(d.handle, &viewInfo, nil, &view), "vkCreateImageView"); err != nil {
			return err
		}
		s.views = append(s.views, view)

		views := []vk.ImageView{view}
		target := renderTarget{
			renderPass: pass,
			spec:       spec,
			width:      extent.Width,
			height:     extent.Height,
			colors: []surfaceImage{{
				image:   image,
				aspect:  colorAspect,
				layout:  vk.ImageLayoutColorAttachmentOptimal,
				samples: vk.SampleCount1Bit,
			}},
		}
		if s.depth != nil {
			views = append(views, s.depth.view)
			target.depth = &surfaceImage{image: s.depth.image, aspect: s.depth.aspect, layout: s.depth.layout, samples: vk.SampleCount1Bit}
		}
		framebuffer, err := d.createFramebuffer(pass, views, extent.Width, extent.Height)
		if err != nil {
			return err
		}
		target.framebuffer = framebuffer
		s.targets = append(s.targets, target)
	}

	s.desc.Width, s.desc.Height = extent.Width, extent.Height
	s.desc.ColorFormat = halFormat(format.Format)
	s.desc.ImageCount = count
	s.stale = false
	core.LogInfo("swapchain created: %dx%d, %d images", extent.Width, extent.Height, count)
	return nil
}

func clamp(v, lo, hi uint32) uint32 {
	return max(lo, min(v, hi))
}

// destroyImages drops everything made per image. The device must be idle.
func (s *Swapchain) destroyImages() {
	h := s.device.handle
	for _, t := range s.targets {
		vk.DestroyFramebuffer(h, t.framebuffer, nil)
	}
	for _, v := range s.views {
		vk.DestroyImageView(h, v, nil)
	}
	if s.depth != nil {
		s.depth.destroy()
		s.depth = nil
	}
	s.targets, s.views, s.images = nil, nil, nil
	s.acquired = false
}

func (s *Swapchain) destroySurface() {
	if s.ownsSurface && s.surface != vk.NullSurface {
		vk.DestroySurface(s.device.instance, s.surface, nil)
	}
	s.surface = vk.NullSurface
}

func (s *Swapchain) recreate() error {
	s.device.waitIdle()
	s.destroyImages()
	return s.create()
}

func (s *Swapchain) Desc() hal.GraphicsSwapchainDesc {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.desc
}

func (s *Swapchain) Resize(width, height uint32) error {
	if s.IsClosed() {
		return fmt.Errorf("resize of a closed swapchain: %w", core.ErrDeviceClosed)
	}
	if width == 0 || height == 0 {
		// minimised windows report zero, keep the old images
		return core.ErrSwapchainBooting
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if width == s.desc.Width && height == s.desc.Height && !s.stale {
		return nil
	}
	s.desc.Width, s.desc.Height = width, height
	return s.recreate()
}

/**
 * @brief Acquires the next image, signalling available when it can be drawn
 * to. An out of date swapchain is rebuilt and ErrSwapchainBooting returned
 * so the caller skips the frame.
 */
func (s *Swapchain) acquire(available vk.Semaphore) (*renderTarget, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stale {
		if err := s.recreate(); err != nil {
			return nil, err
		}
	}
	var index uint32
	switch res := vk.AcquireNextImage(s.device.handle, s.handle, vk.MaxUint64, available, vk.NullFence, &index); res {
	case vk.Success, vk.Suboptimal:
		s.stale = res == vk.Suboptimal
	case vk.ErrorOutOfDate:
		if err := s.recreate(); err != nil {
			return nil, err
		}
		return nil, core.ErrSwapchainBooting
	default:
		return nil, check(res, "vkAcquireNextImage")
	}
	s.current = index
	s.acquired = true
	return &s.targets[index], nil
}

// submitted records the semaphore the next present has to wait on.
func (s *Swapchain) submitted(done vk.Semaphore) {
	s.mu.Lock()
	s.pending = done
	s.mu.Unlock()
}

func (s *Swapchain) Present() error {
	if s.IsClosed() {
		return fmt.Errorf("present on a closed swapchain: %w", core.ErrDeviceClosed)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.acquired {
		return fmt.Errorf("present without an acquired image: %w", core.ErrInvalidDesc)
	}
	info := vk.PresentInfo{
		SType:          vk.StructureTypePresentInfo,
		SwapchainCount: 1,
		PSwapchains:    []vk.Swapchain{s.handle},
		PImageIndices:  []uint32{s.current},
	}
	if s.pending != vk.NullSemaphore {
		info.WaitSemaphoreCount = 1
		info.PWaitSemaphores = []vk.Semaphore{s.pending}
	}
	s.acquired = false
	s.pending = vk.NullSemaphore

	d := s.device
	d.queueMu.Lock()
	res := vk.QueuePresent(d.queue, &info)
	d.queueMu.Unlock()
	switch res {
	case vk.Success:
		return nil
	case vk.Suboptimal, vk.ErrorOutOfDate:
		// rebuilt by the next acquire, the frame itself was shown or dropped
		s.stale = true
		return nil
	}
	return check(res, "vkQueuePresent")
}

func (s *Swapchain) Close() {
	s.CloseOnce(func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.device.waitIdle()
		s.destroyImages()
		if s.handle != vk.NullSwapchain {
			vk.DestroySwapchain(s.device.handle, s.handle, nil)
			s.handle = vk.NullSwapchain
		}
		s.destroySurface()
		core.LogInfo("swapchain destroyed")
	})
}
