package vulkan

import (
	"errors"
	"fmt"
	"sync"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/octoon/engine/core"
	"github.com/spaghettifunk/octoon/engine/hal"
	"github.com/spaghettifunk/octoon/engine/math"
)

const MAX_BINDINGS = 8

/**
 * @brief Context records one frame at a time into a single command buffer.
 * State set between draws is only remembered; each draw binds what it needs,
 * begins the render pass of the bound target if it is not already running
 * and takes a fresh descriptor set so later uniform writes never reach back.
 */
type Context struct {
	hal.Lifecycle
	mu        sync.Mutex
	device    *Device
	desc      hal.GraphicsContextDesc
	swapchain *Swapchain

	cmd       vk.CommandBuffer
	fence     vk.Fence
	available vk.Semaphore
	finished  vk.Semaphore
	arena     *blockArena
	sets      descriptorAllocator

	inFrame    bool
	inFlight   bool
	backbuffer *renderTarget
	active     *renderTarget
	// first recording error of the frame, reported by EndFrame
	err error

	viewports     [MAX_BINDINGS]math.Viewport
	scissors      [MAX_BINDINGS]math.Viewport
	pipeline      hal.GraphicsPipeline
	descriptorSet hal.GraphicsDescriptorSet
	vertexBuffers [MAX_BINDINGS]hal.GraphicsData
	vertexOffsets [MAX_BINDINGS]uint64
	indexBuffer   hal.GraphicsData
	indexOffset   uint64
	indexFormat   hal.IndexFormat
	framebuffer   hal.GraphicsFramebuffer
}

func newContext(d *Device, desc hal.GraphicsContextDesc, swapchain *Swapchain) (*Context, error) {
	c := &Context{
		device:    d,
		desc:      desc,
		swapchain: swapchain,
		arena:     newBlockArena(d),
		sets:      descriptorAllocator{device: d},
	}

	d.poolMu.Lock()
	cmds := make([]vk.CommandBuffer, 1)
	allocInfo := vk.CommandBufferAllocateInfo{
		SType:              vk.StructureTypeCommandBufferAllocateInfo,
		CommandPool:        d.commandPool,
		Level:              vk.CommandBufferLevelPrimary,
		CommandBufferCount: 1,
	}
	err := check(vk.AllocateCommandBuffers(d.handle, &allocInfo, cmds), "vkAllocateCommandBuffers")
	d.poolMu.Unlock()
	if err != nil {
		return nil, err
	}
	c.cmd = cmds[0]

	fenceInfo := vk.FenceCreateInfo{SType: vk.StructureTypeFenceCreateInfo}
	if err := check(vk.CreateFence(d.handle, &fenceInfo, nil, &c.fence), "vkCreateFence"); err != nil {
		c.destroy()
		return nil, err
	}
	semaphoreInfo := vk.SemaphoreCreateInfo{SType: vk.StructureTypeSemaphoreCreateInfo}
	for _, sem := range []*vk.Semaphore{&c.available, &c.finished} {
		if err := check(vk.CreateSemaphore(d.handle, &semaphoreInfo, nil, sem), "vkCreateSemaphore"); err != nil {
			c.destroy()
			return nil, err
		}
	}
	return c, nil
}

func (c *Context) destroy() {
	d := c.device
	h := d.handle
	if c.fence != vk.NullFence {
		vk.DestroyFence(h, c.fence, nil)
	}
	if c.available != vk.NullSemaphore {
		vk.DestroySemaphore(h, c.available, nil)
	}
	if c.finished != vk.NullSemaphore {
		vk.DestroySemaphore(h, c.finished, nil)
	}
	if c.cmd != nil {
		d.poolMu.Lock()
		vk.FreeCommandBuffers(h, d.commandPool, 1, []vk.CommandBuffer{c.cmd})
		d.poolMu.Unlock()
	}
	c.sets.destroy()
}

func (c *Context) Close() {
	c.CloseOnce(func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		c.wait()
		c.device.contexts.Add(-1)
		c.arena.close()
		c.destroy()
	})
}

// wait blocks until the last submitted frame has finished on the GPU.
func (c *Context) wait() {
	if !c.inFlight {
		return
	}
	fences := []vk.Fence{c.fence}
	if res := vk.WaitForFences(c.device.handle, 1, fences, vk.True, vk.MaxUint64); res != vk.Success {
		core.LogWarn("vkWaitForFences failed with %s", ResultString(res))
	}
	vk.ResetFences(c.device.handle, 1, fences)
	c.inFlight = false
}

// collect runs deferred releases. Other contexts may still be drawing with
// them, so with more than one the device is drained first.
func (d *Device) collect() {
	d.releaseMu.Lock()
	pending := len(d.releases)
	d.releaseMu.Unlock()
	if pending == 0 {
		return
	}
	if d.contexts.Load() > 1 {
		d.waitIdle()
	}
	d.flushReleases()
}

func (c *Context) failf(format string, args ...interface{}) {
	err := fmt.Errorf(format, args...)
	core.LogError("vulkan context: %s", err.Error())
	if c.err == nil {
		c.err = err
	}
}

func mustBeOpen(r hal.GraphicsResource, what string) {
	if r != nil && r.IsClosed() {
		panic(fmt.Errorf("vulkan: %s is closed: %w", what, core.ErrDeviceClosed))
	}
}

func (c *Context) BeginFrame() error {
	if c.IsClosed() {
		return fmt.Errorf("begin frame on a closed context: %w", core.ErrDeviceClosed)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.inFrame {
		return fmt.Errorf("frame already started: %w", core.ErrInvalidDesc)
	}
	c.wait()
	c.device.collect()
	c.sets.reset()
	c.arena.reset()
	c.err = nil
	c.active = nil
	c.backbuffer = nil

	if c.swapchain != nil {
		target, err := c.swapchain.acquire(c.available)
		if err != nil {
			if !errors.Is(err, core.ErrSwapchainBooting) {
				core.LogError("failed to acquire swapchain image: %s", err.Error())
			}
			return err
		}
		c.backbuffer = target
	}

	if err := check(vk.ResetCommandBuffer(c.cmd, 0), "vkResetCommandBuffer"); err != nil {
		return err
	}
	beginInfo := vk.CommandBufferBeginInfo{
		SType: vk.StructureTypeCommandBufferBeginInfo,
		Flags: vk.CommandBufferUsageFlags(vk.CommandBufferUsageOneTimeSubmitBit),
	}
	if err := check(vk.BeginCommandBuffer(c.cmd, &beginInfo), "vkBeginCommandBuffer"); err != nil {
		return err
	}
	if c.backbuffer != nil {
		// last frame's contents are gone once presented
		barrier(c.cmd, c.backbuffer.colors[0], vk.ImageLayoutUndefined, vk.ImageLayoutColorAttachmentOptimal)
	}
	c.inFrame = true
	return nil
}

func (c *Context) EndFrame() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.inFrame {
		return fmt.Errorf("no frame in progress: %w", core.ErrInvalidDesc)
	}
	c.inFrame = false
	c.endPass()
	if c.backbuffer != nil {
		barrier(c.cmd, c.backbuffer.colors[0], vk.ImageLayoutColorAttachmentOptimal, vk.ImageLayoutPresentSrc)
	}
	if err := check(vk.EndCommandBuffer(c.cmd), "vkEndCommandBuffer"); err != nil {
		return err
	}

	submit := vk.SubmitInfo{
		SType:              vk.StructureTypeSubmitInfo,
		CommandBufferCount: 1,
		PCommandBuffers:    []vk.CommandBuffer{c.cmd},
	}
	if c.backbuffer != nil {
		submit.WaitSemaphoreCount = 1
		submit.PWaitSemaphores = []vk.Semaphore{c.available}
		submit.PWaitDstStageMask = []vk.PipelineStageFlags{vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit)}
		submit.SignalSemaphoreCount = 1
		submit.PSignalSemaphores = []vk.Semaphore{c.finished}
	}
	d := c.device
	d.queueMu.Lock()
	res := vk.QueueSubmit(d.queue, 1, []vk.SubmitInfo{submit}, c.fence)
	d.queueMu.Unlock()
	if err := check(res, "vkQueueSubmit"); err != nil {
		return err
	}
	c.inFlight = true
	if c.backbuffer != nil {
		c.swapchain.submitted(c.finished)
	}
	return c.err
}

func (c *Context) Present() error {
	c.mu.Lock()
	inFrame := c.inFrame
	c.mu.Unlock()
	if inFrame {
		return fmt.Errorf("present inside a frame: %w", core.ErrInvalidDesc)
	}
	if c.swapchain == nil {
		return nil
	}
	return c.swapchain.Present()
}

func (c *Context) SetViewport(i uint32, viewport math.Viewport) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if i >= MAX_BINDINGS {
		panic(fmt.Errorf("vulkan: viewport index %d out of range: %w", i, core.ErrInvalidDesc))
	}
	c.viewports[i] = viewport
}

func (c *Context) Viewport(i uint32) math.Viewport {
	c.mu.Lock()
	defer c.mu.Unlock()
	if i >= MAX_BINDINGS {
		return math.Viewport{}
	}
	return c.viewports[i]
}

func (c *Context) SetScissor(i uint32, scissor math.Viewport) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if i >= MAX_BINDINGS {
		panic(fmt.Errorf("vulkan: scissor index %d out of range: %w", i, core.ErrInvalidDesc))
	}
	c.scissors[i] = scissor
}

func (c *Context) Scissor(i uint32) math.Viewport {
	c.mu.Lock()
	defer c.mu.Unlock()
	if i >= MAX_BINDINGS {
		return math.Viewport{}
	}
	return c.scissors[i]
}

func (c *Context) SetRenderPipeline(pipeline hal.GraphicsPipeline) {
	mustBeOpen(pipeline, "pipeline")
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pipeline = pipeline
}

func (c *Context) RenderPipeline() hal.GraphicsPipeline {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pipeline
}

func (c *Context) SetDescriptorSet(set hal.GraphicsDescriptorSet) {
	mustBeOpen(set, "descriptor set")
	c.mu.Lock()
	defer c.mu.Unlock()
	c.descriptorSet = set
}

func (c *Context) DescriptorSet() hal.GraphicsDescriptorSet {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.descriptorSet
}

func (c *Context) SetVertexBufferData(i uint32, data hal.GraphicsData, offset uint64) {
	mustBeOpen(data, "vertex buffer")
	c.mu.Lock()
	defer c.mu.Unlock()
	if i >= MAX_BINDINGS {
		panic(fmt.Errorf("vulkan: vertex binding %d out of range: %w", i, core.ErrInvalidDesc))
	}
	c.vertexBuffers[i] = data
	c.vertexOffsets[i] = offset
}

func (c *Context) VertexBufferData(i uint32) hal.GraphicsData {
	c.mu.Lock()
	defer c.mu.Unlock()
	if i >= MAX_BINDINGS {
		return nil
	}
	return c.vertexBuffers[i]
}

func (c *Context) SetIndexBufferData(data hal.GraphicsData, offset uint64, format hal.IndexFormat) {
	mustBeOpen(data, "index buffer")
	c.mu.Lock()
	defer c.mu.Unlock()
	c.indexBuffer = data
	c.indexOffset = offset
	c.indexFormat = format
}

func (c *Context) IndexBufferData() hal.GraphicsData {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.indexBuffer
}

func (c *Context) SetFramebuffer(target hal.GraphicsFramebuffer) {
	mustBeOpen(target, "framebuffer")
	if target != nil {
		if _, ok := target.(*Framebuffer); !ok {
			panic(fmt.Errorf("vulkan: framebuffer was not created by a vulkan device: %w", core.ErrInvalidDesc))
		}
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.framebuffer = target
}

func (c *Context) Framebuffer() hal.GraphicsFramebuffer {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.framebuffer
}

// target returns what draws go to: the bound framebuffer, else the backbuffer.
func (c *Context) target() *renderTarget {
	if c.framebuffer != nil {
		return &c.framebuffer.(*Framebuffer).target
	}
	return c.backbuffer
}

func (c *Context) beginPass() *renderTarget {
	if !c.inFrame {
		c.failf("recording outside of a frame")
		return nil
	}
	target := c.target()
	if target == nil {
		c.failf("no framebuffer bound and no swapchain image to draw to")
		return nil
	}
	if c.active == target {
		return target
	}
	c.endPass()
	info := vk.RenderPassBeginInfo{
		SType:       vk.StructureTypeRenderPassBeginInfo,
		RenderPass:  target.renderPass,
		Framebuffer: target.framebuffer,
		RenderArea: vk.Rect2D{
			Offset: vk.Offset2D{X: 0, Y: 0},
			Extent: vk.Extent2D{Width: target.width, Height: target.height},
		},
	}
	vk.CmdBeginRenderPass(c.cmd, &info, vk.SubpassContentsInline)
	c.active = target
	return target
}

func (c *Context) endPass() {
	if c.active == nil {
		return
	}
	vk.CmdEndRenderPass(c.cmd)
	c.active = nil
}

func (c *Context) ClearFramebuffer(i uint32, flags hal.ClearFlags, color math.Vec4, depth float32, stencil int32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	target := c.beginPass()
	if target == nil {
		return
	}

	var attachments []vk.ClearAttachment
	if flags&hal.CLEAR_COLOR != 0 && int(i) < len(target.colors) {
		a := vk.ClearAttachment{AspectMask: vk.ImageAspectFlags(vk.ImageAspectColorBit), ColorAttachment: i}
		a.ClearValue.SetColor([]float32{color.X, color.Y, color.Z, color.W})
		attachments = append(attachments, a)
	}
	if target.depth != nil {
		var aspect vk.ImageAspectFlags
		if flags&hal.CLEAR_DEPTH != 0 {
			aspect |= vk.ImageAspectFlags(vk.ImageAspectDepthBit)
		}
		if flags&hal.CLEAR_STENCIL != 0 {
			aspect |= vk.ImageAspectFlags(vk.ImageAspectStencilBit)
		}
		if aspect &= target.depth.aspect; aspect != 0 {
			a := vk.ClearAttachment{AspectMask: aspect}
			a.ClearValue.SetDepthStencil(depth, uint32(stencil))
			attachments = append(attachments, a)
		}
	}
	if len(attachments) == 0 {
		return
	}
	rect := vk.ClearRect{
		Rect:       vk.Rect2D{Extent: vk.Extent2D{Width: target.width, Height: target.height}},
		LayerCount: 1,
	}
	vk.CmdClearAttachments(c.cmd, uint32(len(attachments)), attachments, 1, []vk.ClearRect{rect})
}

// DiscardFramebuffer only closes the pass, attachments are always stored.
func (c *Context) DiscardFramebuffer(target hal.GraphicsFramebuffer, flags hal.ClearFlags) {
	mustBeOpen(target, "framebuffer")
	c.mu.Lock()
	defer c.mu.Unlock()
	if fb, ok := target.(*Framebuffer); ok && c.active == &fb.target {
		c.endPass()
	}
}

/**
 * @brief Copies the first colour attachment of src into dest, scaling with a
 * linear filter. Multisampled sources are resolved instead, which needs equal
 * sizes. A nil dest is the swapchain image of the current frame.
 */
func (c *Context) BlitFramebuffer(src hal.GraphicsFramebuffer, srcRect math.Viewport, dest hal.GraphicsFramebuffer, destRect math.Viewport) {
	mustBeOpen(src, "blit source")
	mustBeOpen(dest, "blit destination")
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.inFrame {
		c.failf("blit outside of a frame")
		return
	}
	from, ok := src.(*Framebuffer)
	if !ok {
		c.failf("blit without a vulkan source framebuffer")
		return
	}
	to := c.backbuffer
	if dest != nil {
		fb, ok := dest.(*Framebuffer)
		if !ok {
			c.failf("blit to a framebuffer not created by a vulkan device")
			return
		}
		to = &fb.target
	}
	if to == nil {
		c.failf("blit to the swapchain without one")
		return
	}
	if len(from.target.colors) == 0 || len(to.colors) == 0 {
		c.failf("blit between framebuffers without colour attachments")
		return
	}
	c.endPass()

	s, d := from.target.colors[0], to.colors[0]
	sx0, sy0, sx1, sy1 := rectBounds(srcRect, from.target.width, from.target.height)
	dx0, dy0, dx1, dy1 := rectBounds(destRect, to.width, to.height)

	barrier(c.cmd, s, s.layout, vk.ImageLayoutTransferSrcOptimal)
	barrier(c.cmd, d, d.layout, vk.ImageLayoutTransferDstOptimal)
	srcLayers := vk.ImageSubresourceLayers{AspectMask: s.aspect, MipLevel: s.mip, BaseArrayLayer: s.layer, LayerCount: 1}
	dstLayers := vk.ImageSubresourceLayers{AspectMask: d.aspect, MipLevel: d.mip, BaseArrayLayer: d.layer, LayerCount: 1}
	if s.samples != vk.SampleCount1Bit && d.samples == vk.SampleCount1Bit {
		region := vk.ImageResolve{
			SrcSubresource: srcLayers,
			SrcOffset:      vk.Offset3D{X: sx0, Y: sy0},
			DstSubresource: dstLayers,
			DstOffset:      vk.Offset3D{X: dx0, Y: dy0},
			Extent:         vk.Extent3D{Width: uint32(min(sx1-sx0, dx1-dx0)), Height: uint32(min(sy1-sy0, dy1-dy0)), Depth: 1},
		}
		vk.CmdResolveImage(c.cmd, s.image, vk.ImageLayoutTransferSrcOptimal, d.image, vk.ImageLayoutTransferDstOptimal, 1, []vk.ImageResolve{region})
	} else {
		region := vk.ImageBlit{
			SrcSubresource: srcLayers,
			SrcOffsets:     [2]vk.Offset3D{{X: sx0, Y: sy0, Z: 0}, {X: sx1, Y: sy1, Z: 1}},
			DstSubresource: dstLayers,
			DstOffsets:     [2]vk.Offset3D{{X: dx0, Y: dy0, Z: 0}, {X: dx1, Y: dy1, Z: 1}},
		}
		vk.CmdBlitImage(c.cmd, s.image, vk.ImageLayoutTransferSrcOptimal, d.image, vk.ImageLayoutTransferDstOptimal, 1, []vk.ImageBlit{region}, vk.FilterLinear)
	}
	barrier(c.cmd, s, vk.ImageLayoutTransferSrcOptimal, s.layout)
	barrier(c.cmd, d, vk.ImageLayoutTransferDstOptimal, d.layout)
}

// rectBounds turns a pixel rect into corners, an empty rect meaning all of it.
func rectBounds(r math.Viewport, width, height uint32) (x0, y0, x1, y1 int32) {
	if r.Width <= 0 || r.Height <= 0 {
		return 0, 0, int32(width), int32(height)
	}
	x0 = int32(math.Clamp(r.X, 0, float32(width)))
	y0 = int32(math.Clamp(r.Y, 0, float32(height)))
	x1 = int32(math.Clamp(r.X+r.Width, 0, float32(width)))
	y1 = int32(math.Clamp(r.Y+r.Height, 0, float32(height)))
	return x0, y0, x1, y1
}

// barrier moves one level and layer of an attachment image between layouts.
func barrier(cmd vk.CommandBuffer, img surfaceImage, from, to vk.ImageLayout) {
	if from == to && from != vk.ImageLayoutGeneral {
		return
	}
	srcAccess, srcStage := layoutAccess(from)
	dstAccess, dstStage := layoutAccess(to)
	b := vk.ImageMemoryBarrier{
		SType:               vk.StructureTypeImageMemoryBarrier,
		SrcAccessMask:       vk.AccessFlags(srcAccess),
		DstAccessMask:       vk.AccessFlags(dstAccess),
		OldLayout:           from,
		NewLayout:           to,
		SrcQueueFamilyIndex: vk.QueueFamilyIgnored,
		DstQueueFamilyIndex: vk.QueueFamilyIgnored,
		Image:               img.image,
		SubresourceRange: vk.ImageSubresourceRange{
			AspectMask:     img.aspect,
			BaseMipLevel:   img.mip,
			LevelCount:     1,
			BaseArrayLayer: img.layer,
			LayerCount:     1,
		},
	}
	vk.CmdPipelineBarrier(cmd, vk.PipelineStageFlags(srcStage), vk.PipelineStageFlags(dstStage), 0, 0, nil, 0, nil, 1, []vk.ImageMemoryBarrier{b})
}

// viewportRect returns v in pixels, the whole target when v is empty.
func viewportRect(v math.Viewport, target *renderTarget) math.Viewport {
	if v.Width <= 0 || v.Height <= 0 {
		return math.NewViewport(0, 0, float32(target.width), float32(target.height))
	}
	return v
}

/**
 * @brief Binds everything a draw needs. Returns false when the draw has to
 * be skipped; the reason is logged and reported by EndFrame.
 */
func (c *Context) prepareDraw() bool {
	if c.pipeline == nil {
		c.failf("draw without a render pipeline")
		return false
	}
	mustBeOpen(c.pipeline, "pipeline")
	mustBeOpen(c.descriptorSet, "descriptor set")
	pipeline, ok := c.pipeline.(*Pipeline)
	if !ok {
		c.failf("render pipeline was not created by a vulkan device")
		return false
	}
	target := c.beginPass()
	if target == nil {
		return false
	}
	variant, err := pipeline.variant(target.spec)
	if err != nil {
		c.failf("no pipeline for the bound target: %w", err)
		return false
	}
	vk.CmdBindPipeline(c.cmd, vk.PipelineBindPointGraphics, variant)

	// y grows down in clip space here, a negative height puts it back up
	v := viewportRect(c.viewports[0], target)
	vk.CmdSetViewport(c.cmd, 0, 1, []vk.Viewport{{
		X:        v.X,
		Y:        v.Y + v.Height,
		Width:    v.Width,
		Height:   -v.Height,
		MinDepth: 0,
		MaxDepth: 1,
	}})
	scissor := c.scissors[0]
	if scissor.Width <= 0 || scissor.Height <= 0 {
		scissor = v
	}
	sx0, sy0, sx1, sy1 := rectBounds(scissor, target.width, target.height)
	vk.CmdSetScissor(c.cmd, 0, 1, []vk.Rect2D{{
		Offset: vk.Offset2D{X: sx0, Y: sy0},
		Extent: vk.Extent2D{Width: uint32(sx1 - sx0), Height: uint32(sy1 - sy0)},
	}})

	var uniforms []*hal.UniformSet
	if c.descriptorSet != nil {
		uniforms = c.descriptorSet.UniformSets()
	}
	set, err := pipeline.setLayout.bind(uniforms, c.arena, &c.sets)
	if err != nil {
		c.failf("failed to bind uniforms: %w", err)
		return false
	}
	vk.CmdBindDescriptorSets(c.cmd, vk.PipelineBindPointGraphics, pipeline.layout, 0, 1, []vk.DescriptorSet{set}, 0, nil)

	for i, data := range c.vertexBuffers {
		if data == nil {
			continue
		}
		mustBeOpen(data, "vertex buffer")
		buffer, ok := data.(*Data)
		if !ok {
			c.failf("vertex buffer %d was not created by a vulkan device", i)
			return false
		}
		vk.CmdBindVertexBuffers(c.cmd, uint32(i), 1, []vk.Buffer{buffer.buffer}, []vk.DeviceSize{vk.DeviceSize(c.vertexOffsets[i])})
	}
	if c.vertexBuffers[0] == nil && pipeline.input != nil {
		c.failf("draw without a vertex buffer")
		return false
	}
	return true
}

func (c *Context) Draw(numVertices, numInstances, startVertex, startInstance uint32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.prepareDraw() {
		return
	}
	vk.CmdDraw(c.cmd, numVertices, max(numInstances, 1), startVertex, startInstance)
}

func (c *Context) DrawIndexed(numIndices, numInstances, startIndice, startVertex, startInstance uint32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.indexBuffer == nil {
		c.failf("indexed draw without an index buffer")
		return
	}
	mustBeOpen(c.indexBuffer, "index buffer")
	indices, ok := c.indexBuffer.(*Data)
	if !ok {
		c.failf("index buffer was not created by a vulkan device")
		return
	}
	if need := c.indexOffset + uint64(startIndice+numIndices)*uint64(c.indexFormat.Size()); need > indices.Size() {
		c.failf("indexed draw reads %d bytes from index buffer of %d", need, indices.Size())
		return
	}
	if !c.prepareDraw() {
		return
	}
	vk.CmdBindIndexBuffer(c.cmd, indices.buffer, vk.DeviceSize(c.indexOffset), vkIndexType(c.indexFormat))
	vk.CmdDrawIndexed(c.cmd, numIndices, max(numInstances, 1), startIndice, int32(startVertex), startInstance)
}
