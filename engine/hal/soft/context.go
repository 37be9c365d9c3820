package soft

import (
	"encoding/binary"
	"fmt"
	gomath "math"
	"sync"

	"github.com/spaghettifunk/octoon/engine/core"
	"github.com/spaghettifunk/octoon/engine/hal"
	"github.com/spaghettifunk/octoon/engine/math"
)

type CommandOp uint8

const (
	OP_BEGIN_FRAME CommandOp = iota
	OP_END_FRAME
	OP_PRESENT
	OP_SET_VIEWPORT
	OP_SET_SCISSOR
	OP_SET_PIPELINE
	OP_SET_DESCRIPTOR_SET
	OP_SET_VERTEX_BUFFER
	OP_SET_INDEX_BUFFER
	OP_SET_FRAMEBUFFER
	OP_CLEAR
	OP_DISCARD
	OP_BLIT
	OP_DRAW
	OP_DRAW_INDEXED
)

var opNames = [...]string{
	OP_BEGIN_FRAME:        "begin_frame",
	OP_END_FRAME:          "end_frame",
	OP_PRESENT:            "present",
	OP_SET_VIEWPORT:       "set_viewport",
	OP_SET_SCISSOR:        "set_scissor",
	OP_SET_PIPELINE:       "set_pipeline",
	OP_SET_DESCRIPTOR_SET: "set_descriptor_set",
	OP_SET_VERTEX_BUFFER:  "set_vertex_buffer",
	OP_SET_INDEX_BUFFER:   "set_index_buffer",
	OP_SET_FRAMEBUFFER:    "set_framebuffer",
	OP_CLEAR:              "clear",
	OP_DISCARD:            "discard",
	OP_BLIT:               "blit",
	OP_DRAW:               "draw",
	OP_DRAW_INDEXED:       "draw_indexed",
}

func (op CommandOp) String() string {
	if int(op) < len(opNames) {
		return opNames[op]
	}
	return fmt.Sprintf("op(%d)", uint8(op))
}

/**
 * @brief One recorded command. Only the fields relevant to Op are set. Draw
 * commands also carry a snapshot of the bound uniform values.
 */
type Command struct {
	Op            CommandOp
	Index         uint32
	Rect          math.Viewport
	SourceRect    math.Viewport
	Pipeline      hal.GraphicsPipeline
	DescriptorSet hal.GraphicsDescriptorSet
	Data          hal.GraphicsData
	Offset        uint64
	IndexFormat   hal.IndexFormat
	Framebuffer   hal.GraphicsFramebuffer
	Source        hal.GraphicsFramebuffer
	ClearFlags    hal.ClearFlags
	Color         math.Vec4
	Depth         float32
	Stencil       int32
	Count         uint32
	Instances     uint32
	First         uint32
	BaseVertex    uint32
	FirstInstance uint32
	Uniforms      []*hal.UniformSet
}

const maxBindings = 8

/**
 * @brief Context executes nothing on a GPU. It keeps the bound state the way
 * a driver would, records every command in order and clears colour
 * attachments of 8-bit formats in host memory.
 */
type Context struct {
	hal.Lifecycle
	mu    sync.Mutex
	desc  hal.GraphicsContextDesc
	debug bool

	inFrame       bool
	viewports     [maxBindings]math.Viewport
	scissors      [maxBindings]math.Viewport
	pipeline      hal.GraphicsPipeline
	descriptorSet hal.GraphicsDescriptorSet
	vertexBuffers [maxBindings]hal.GraphicsData
	indexBuffer   hal.GraphicsData
	indexFormat   hal.IndexFormat
	framebuffer   hal.GraphicsFramebuffer

	commands []Command
	errors   []error
}

func newContext(desc hal.GraphicsContextDesc, debug bool) *Context {
	return &Context{desc: desc, debug: debug}
}

func (c *Context) Close() {
	c.CloseOnce(func() {
		c.mu.Lock()
		c.commands = nil
		c.mu.Unlock()
	})
}

// Commands returns a copy of the commands recorded since the last Reset.
func (c *Context) Commands() []Command {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Command(nil), c.commands...)
}

// CommandsOf returns the recorded commands with the given op.
func (c *Context) CommandsOf(op CommandOp) []Command {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []Command
	for _, cmd := range c.commands {
		if cmd.Op == op {
			out = append(out, cmd)
		}
	}
	return out
}

// Errors returns the misuse found by debug validation.
func (c *Context) Errors() []error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]error(nil), c.errors...)
}

// Reset drops recorded commands and validation errors. Bound state is kept.
func (c *Context) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.commands = c.commands[:0]
	c.errors = c.errors[:0]
}

func (c *Context) record(cmd Command) {
	if c.IsClosed() {
		panic(fmt.Errorf("soft: %s on a closed context: %w", cmd.Op, core.ErrDeviceClosed))
	}
	c.commands = append(c.commands, cmd)
}

func (c *Context) invalid(format string, args ...interface{}) {
	if !c.debug {
		return
	}
	err := fmt.Errorf(format, args...)
	core.LogWarn("soft context: %s", err.Error())
	c.errors = append(c.errors, err)
}

func mustBeOpen(r hal.GraphicsResource, what string) {
	if r != nil && r.IsClosed() {
		panic(fmt.Errorf("soft: %s is closed: %w", what, core.ErrDeviceClosed))
	}
}

func (c *Context) BeginFrame() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.inFrame {
		return fmt.Errorf("frame already started: %w", core.ErrInvalidDesc)
	}
	c.inFrame = true
	c.record(Command{Op: OP_BEGIN_FRAME})
	return nil
}

func (c *Context) EndFrame() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.inFrame {
		return fmt.Errorf("no frame in progress: %w", core.ErrInvalidDesc)
	}
	c.inFrame = false
	c.record(Command{Op: OP_END_FRAME})
	return nil
}

func (c *Context) Present() error {
	func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		c.record(Command{Op: OP_PRESENT})
	}()

	if c.desc.Swapchain != nil {
		return c.desc.Swapchain.Present()
	}
	return nil
}

func (c *Context) SetViewport(i uint32, viewport math.Viewport) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if i >= maxBindings {
		panic(fmt.Errorf("soft: viewport index %d out of range: %w", i, core.ErrInvalidDesc))
	}
	c.viewports[i] = viewport
	c.record(Command{Op: OP_SET_VIEWPORT, Index: i, Rect: viewport})
}

func (c *Context) Viewport(i uint32) math.Viewport {
	c.mu.Lock()
	defer c.mu.Unlock()
	if i >= maxBindings {
		return math.Viewport{}
	}
	return c.viewports[i]
}

func (c *Context) SetScissor(i uint32, scissor math.Viewport) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if i >= maxBindings {
		panic(fmt.Errorf("soft: scissor index %d out of range: %w", i, core.ErrInvalidDesc))
	}
	c.scissors[i] = scissor
	c.record(Command{Op: OP_SET_SCISSOR, Index: i, Rect: scissor})
}

func (c *Context) Scissor(i uint32) math.Viewport {
	c.mu.Lock()
	defer c.mu.Unlock()
	if i >= maxBindings {
		return math.Viewport{}
	}
	return c.scissors[i]
}

func (c *Context) SetRenderPipeline(pipeline hal.GraphicsPipeline) {
	mustBeOpen(pipeline, "pipeline")
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pipeline = pipeline
	c.record(Command{Op: OP_SET_PIPELINE, Pipeline: pipeline})
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
	c.record(Command{Op: OP_SET_DESCRIPTOR_SET, DescriptorSet: set})
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
	if i >= maxBindings {
		panic(fmt.Errorf("soft: vertex binding %d out of range: %w", i, core.ErrInvalidDesc))
	}
	if data != nil && data.Desc().Type != hal.DATA_TYPE_STORAGE_VERTEX_BUFFER {
		c.invalid("buffer '%s' bound as vertex buffer has type %d", data.Desc().Name, data.Desc().Type)
	}
	c.vertexBuffers[i] = data
	c.record(Command{Op: OP_SET_VERTEX_BUFFER, Index: i, Data: data, Offset: offset})
}

func (c *Context) VertexBufferData(i uint32) hal.GraphicsData {
	c.mu.Lock()
	defer c.mu.Unlock()
	if i >= maxBindings {
		return nil
	}
	return c.vertexBuffers[i]
}

func (c *Context) SetIndexBufferData(data hal.GraphicsData, offset uint64, format hal.IndexFormat) {
	mustBeOpen(data, "index buffer")
	c.mu.Lock()
	defer c.mu.Unlock()
	if data != nil && data.Desc().Type != hal.DATA_TYPE_STORAGE_INDEX_BUFFER {
		c.invalid("buffer '%s' bound as index buffer has type %d", data.Desc().Name, data.Desc().Type)
	}
	c.indexBuffer = data
	c.indexFormat = format
	c.record(Command{Op: OP_SET_INDEX_BUFFER, Data: data, Offset: offset, IndexFormat: format})
}

func (c *Context) IndexBufferData() hal.GraphicsData {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.indexBuffer
}

func (c *Context) SetFramebuffer(target hal.GraphicsFramebuffer) {
	mustBeOpen(target, "framebuffer")
	c.mu.Lock()
	defer c.mu.Unlock()
	c.framebuffer = target
	c.record(Command{Op: OP_SET_FRAMEBUFFER, Framebuffer: target})
}

func (c *Context) Framebuffer() hal.GraphicsFramebuffer {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.framebuffer
}

func (c *Context) ClearFramebuffer(i uint32, flags hal.ClearFlags, color math.Vec4, depth float32, stencil int32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.record(Command{Op: OP_CLEAR, Index: i, Framebuffer: c.framebuffer, ClearFlags: flags, Color: color, Depth: depth, Stencil: stencil})

	if c.framebuffer == nil {
		return
	}
	desc := c.framebuffer.Desc()
	if flags&hal.CLEAR_COLOR != 0 && int(i) < len(desc.ColorAttachments) {
		if t, ok := desc.ColorAttachments[i].Texture.(*Texture); ok {
			if texel := encodeTexel(t.desc.Format, color); texel != nil {
				t.fill(texel)
			}
		}
	}
	if flags&hal.CLEAR_DEPTH != 0 {
		if t, ok := desc.DepthStencilAttachment.Texture.(*Texture); ok && t.desc.Format == hal.FORMAT_D32_SFLOAT {
			texel := make([]byte, 4)
			binary.LittleEndian.PutUint32(texel, gomath.Float32bits(depth))
			t.fill(texel)
		}
	}
}

func (c *Context) DiscardFramebuffer(target hal.GraphicsFramebuffer, flags hal.ClearFlags) {
	mustBeOpen(target, "framebuffer")
	c.mu.Lock()
	defer c.mu.Unlock()
	c.record(Command{Op: OP_DISCARD, Framebuffer: target, ClearFlags: flags})
}

func (c *Context) BlitFramebuffer(src hal.GraphicsFramebuffer, srcRect math.Viewport, dest hal.GraphicsFramebuffer, destRect math.Viewport) {
	mustBeOpen(src, "blit source")
	mustBeOpen(dest, "blit destination")
	c.mu.Lock()
	defer c.mu.Unlock()
	if src == nil {
		c.invalid("blit without a source framebuffer")
	}
	c.record(Command{Op: OP_BLIT, Source: src, SourceRect: srcRect, Framebuffer: dest, Rect: destRect})
}

func (c *Context) Draw(numVertices, numInstances, startVertex, startInstance uint32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.validateDraw()
	c.record(Command{
		Op:            OP_DRAW,
		Pipeline:      c.pipeline,
		DescriptorSet: c.descriptorSet,
		Data:          c.vertexBuffers[0],
		Framebuffer:   c.framebuffer,
		Rect:          c.viewports[0],
		Count:         numVertices,
		Instances:     numInstances,
		First:         startVertex,
		FirstInstance: startInstance,
		Uniforms:      c.snapshotUniforms(),
	})
}

func (c *Context) DrawIndexed(numIndices, numInstances, startIndice, startVertex, startInstance uint32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.validateDraw()
	if c.indexBuffer == nil {
		c.invalid("indexed draw without an index buffer")
	} else if need := uint64(startIndice+numIndices) * uint64(c.indexFormat.Size()); need > c.indexBuffer.Size() {
		c.invalid("indexed draw reads %d bytes from index buffer of %d", need, c.indexBuffer.Size())
	}
	c.record(Command{
		Op:            OP_DRAW_INDEXED,
		Pipeline:      c.pipeline,
		DescriptorSet: c.descriptorSet,
		Data:          c.indexBuffer,
		IndexFormat:   c.indexFormat,
		Framebuffer:   c.framebuffer,
		Rect:          c.viewports[0],
		Count:         numIndices,
		Instances:     numInstances,
		First:         startIndice,
		BaseVertex:    startVertex,
		FirstInstance: startInstance,
		Uniforms:      c.snapshotUniforms(),
	})
}

func (c *Context) validateDraw() {
	if c.pipeline == nil {
		c.invalid("draw without a render pipeline")
		return
	}
	mustBeOpen(c.pipeline, "pipeline")
	mustBeOpen(c.descriptorSet, "descriptor set")
	if c.descriptorSet == nil {
		c.invalid("draw without a descriptor set")
	}
	if c.vertexBuffers[0] == nil && c.pipeline.Desc().InputLayout != nil {
		c.invalid("draw without a vertex buffer")
	}
}

func (c *Context) snapshotUniforms() []*hal.UniformSet {
	if c.descriptorSet == nil {
		return nil
	}
	sets := c.descriptorSet.UniformSets()
	out := make([]*hal.UniformSet, len(sets))
	for i, u := range sets {
		out[i] = u.Clone()
	}
	return out
}

func encodeTexel(format hal.GraphicsFormat, color math.Vec4) []byte {
	unorm := func(v float32) byte {
		return byte(math.Clamp(v, 0, 1)*255 + 0.5)
	}
	switch format {
	case hal.FORMAT_R8G8B8A8_UNORM, hal.FORMAT_R8G8B8A8_SRGB:
		return []byte{unorm(color.X), unorm(color.Y), unorm(color.Z), unorm(color.W)}
	case hal.FORMAT_B8G8R8A8_UNORM, hal.FORMAT_B8G8R8A8_SRGB:
		return []byte{unorm(color.Z), unorm(color.Y), unorm(color.X), unorm(color.W)}
	case hal.FORMAT_R8G8B8_UNORM:
		return []byte{unorm(color.X), unorm(color.Y), unorm(color.Z)}
	case hal.FORMAT_R8_UNORM:
		return []byte{unorm(color.X)}
	}
	return nil
}
