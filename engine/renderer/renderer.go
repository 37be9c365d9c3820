package renderer

import (
	"fmt"

	"github.com/spaghettifunk/octoon/engine/core"
	"github.com/spaghettifunk/octoon/engine/hal"
	"github.com/spaghettifunk/octoon/engine/material"
	"github.com/spaghettifunk/octoon/engine/math"
	"github.com/spaghettifunk/octoon/engine/scene"
)

/**
 * @brief ScriptableRenderContext is the frontend render passes talk to. It
 * forwards state calls to a HAL context, keeps one RenderBuffer per mesh and
 * the compiled materials, and turns geometries into draw calls.
 *
 * Like the HAL context it wraps, it is used from the frame loop only.
 */
type ScriptableRenderContext struct {
	device    hal.GraphicsDevice
	context   hal.GraphicsContext
	materials *materialCache
	buffers   map[uint64]*RenderBuffer
	data      *RenderingData
}

var _ RenderContext = (*ScriptableRenderContext)(nil)

func NewScriptableRenderContext(device hal.GraphicsDevice, context hal.GraphicsContext) *ScriptableRenderContext {
	return &ScriptableRenderContext{
		device:    device,
		context:   context,
		materials: newMaterialCache(device),
		buffers:   make(map[uint64]*RenderBuffer),
	}
}

func (c *ScriptableRenderContext) Device() hal.GraphicsDevice {
	return c.device
}

func (c *ScriptableRenderContext) GraphicsContext() hal.GraphicsContext {
	return c.context
}

func (c *ScriptableRenderContext) BeginFrame() error {
	return c.context.BeginFrame()
}

func (c *ScriptableRenderContext) EndFrame() error {
	return c.context.EndFrame()
}

func (c *ScriptableRenderContext) Present() error {
	return c.context.Present()
}

// SetRenderingData selects the frame data the light uniforms are read from.
func (c *ScriptableRenderContext) SetRenderingData(data *RenderingData) {
	c.data = data
}

func (c *ScriptableRenderContext) RenderingData() *RenderingData {
	return c.data
}

func (c *ScriptableRenderContext) SetFramebuffer(target hal.GraphicsFramebuffer) {
	c.context.SetFramebuffer(target)
}

func (c *ScriptableRenderContext) Framebuffer() hal.GraphicsFramebuffer {
	return c.context.Framebuffer()
}

func (c *ScriptableRenderContext) ClearFramebuffer(i uint32, flags hal.ClearFlags, color math.Vec4, depth float32, stencil int32) {
	c.context.ClearFramebuffer(i, flags, color, depth, stencil)
}

func (c *ScriptableRenderContext) DiscardFramebuffer(target hal.GraphicsFramebuffer, flags hal.ClearFlags) {
	c.context.DiscardFramebuffer(target, flags)
}

func (c *ScriptableRenderContext) BlitFramebuffer(src hal.GraphicsFramebuffer, srcRect math.Viewport, dest hal.GraphicsFramebuffer, destRect math.Viewport) {
	c.context.BlitFramebuffer(src, srcRect, dest, destRect)
}

func (c *ScriptableRenderContext) SetViewport(i uint32, viewport math.Viewport) {
	c.context.SetViewport(i, viewport)
}

func (c *ScriptableRenderContext) Viewport(i uint32) math.Viewport {
	return c.context.Viewport(i)
}

func (c *ScriptableRenderContext) SetScissor(i uint32, scissor math.Viewport) {
	c.context.SetScissor(i, scissor)
}

// RenderBuffer returns the cached buffer of mesh, creating an unbuilt one on first use.
func (c *ScriptableRenderContext) RenderBuffer(mesh *scene.Mesh) *RenderBuffer {
	if b, ok := c.buffers[mesh.ID()]; ok {
		return b
	}
	b := NewRenderBuffer(c.device, mesh)
	c.buffers[mesh.ID()] = b
	return b
}

// ReleaseMesh closes the buffer cached for mesh.
func (c *ScriptableRenderContext) ReleaseMesh(mesh *scene.Mesh) {
	if b, ok := c.buffers[mesh.ID()]; ok {
		b.Close()
		delete(c.buffers, mesh.ID())
	}
}

// CompileMaterial creates the device objects of mat ahead of its first draw.
func (c *ScriptableRenderContext) CompileMaterial(mat *material.Material) error {
	_, _, err := c.materials.compile(mat)
	return err
}

// ReleaseMaterial drops the descriptor set of mat.
func (c *ScriptableRenderContext) ReleaseMaterial(mat *material.Material) {
	c.materials.release(mat)
}

// ReloadShader drops everything compiled from shader so the next draw recompiles it.
func (c *ScriptableRenderContext) ReloadShader(shader *material.Shader) {
	c.materials.evict(shader)
}

/**
 * @brief Binds the pipeline and descriptor set of mat and writes the uniform
 * values: the material parameters first, then the engine uniforms for camera
 * and transform. Only names the program declares are written.
 */
func (c *ScriptableRenderContext) SetMaterial(mat *material.Material, camera *scene.Camera, transform math.Mat4) error {
	pipeline, set, err := c.materials.compile(mat)
	if err != nil {
		return err
	}
	for _, p := range mat.Params() {
		if u := set.UniformSet(p.Name()); u != nil {
			u.CopyFrom(p)
		}
	}
	fillEngineUniforms(set, camera, transform, c.data)

	c.context.SetRenderPipeline(pipeline)
	c.context.SetDescriptorSet(set)
	return nil
}

func (c *ScriptableRenderContext) DrawRenderers(geometries []*scene.Geometry, camera *scene.Camera, override *material.Material) error {
	for _, g := range geometries {
		if g == nil || !g.Visible() || g.Layer() != camera.Layer() {
			continue
		}
		mesh := g.Mesh()
		if mesh == nil {
			continue
		}
		for subset := 0; subset < max(mesh.NumSubsets(), 1); subset++ {
			mat := override
			if mat == nil {
				mat = g.Material(subset)
			}
			if mat == nil {
				continue
			}
			if err := c.DrawMesh(mesh, subset, mat, camera, g.Transform()); err != nil {
				return fmt.Errorf("geometry '%s': %w", g.Name(), err)
			}
		}
	}
	return nil
}

func (c *ScriptableRenderContext) DrawMesh(mesh *scene.Mesh, subset int, mat *material.Material, camera *scene.Camera, transform math.Mat4) error {
	if mesh == nil || mat == nil {
		return nil
	}
	if err := c.SetMaterial(mat, camera, transform); err != nil {
		return err
	}
	return c.RenderBuffer(mesh).Draw(c.context, subset)
}

// Close releases every buffer and compiled material. The HAL context is not closed.
func (c *ScriptableRenderContext) Close() {
	for _, b := range c.buffers {
		b.Close()
	}
	clear(c.buffers)
	c.materials.close()
	core.LogDebug("render context closed")
}
