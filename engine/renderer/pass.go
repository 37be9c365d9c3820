package renderer

import (
	"fmt"

	"github.com/spaghettifunk/octoon/engine/hal"
	"github.com/spaghettifunk/octoon/engine/material"
	"github.com/spaghettifunk/octoon/engine/math"
	"github.com/spaghettifunk/octoon/engine/scene"
)

/** @brief Where a pass runs in the frame. Passes run in ascending order. */
type RenderPassEvent uint8

const (
	RENDER_PASS_EVENT_BEFORE_RENDERING RenderPassEvent = iota
	RENDER_PASS_EVENT_SHADOWS
	RENDER_PASS_EVENT_OPAQUES
	RENDER_PASS_EVENT_SKYBOX
	RENDER_PASS_EVENT_TRANSPARENTS
	RENDER_PASS_EVENT_POST_PROCESSING
	RENDER_PASS_EVENT_AFTER_RENDERING
)

var passEventNames = [...]string{
	RENDER_PASS_EVENT_BEFORE_RENDERING: "before_rendering",
	RENDER_PASS_EVENT_SHADOWS:          "shadows",
	RENDER_PASS_EVENT_OPAQUES:          "opaques",
	RENDER_PASS_EVENT_SKYBOX:           "skybox",
	RENDER_PASS_EVENT_TRANSPARENTS:     "transparents",
	RENDER_PASS_EVENT_POST_PROCESSING:  "post_processing",
	RENDER_PASS_EVENT_AFTER_RENDERING:  "after_rendering",
}

func (e RenderPassEvent) String() string {
	if int(e) < len(passEventNames) {
		return passEventNames[e]
	}
	return fmt.Sprintf("render_pass_event(%d)", uint8(e))
}

/**
 * @brief The operations a render pass may issue. ScriptableRenderContext
 * implements it over a HAL context; tests wrap it to observe the calls.
 */
type RenderContext interface {
	Device() hal.GraphicsDevice

	SetFramebuffer(target hal.GraphicsFramebuffer)
	Framebuffer() hal.GraphicsFramebuffer
	ClearFramebuffer(i uint32, flags hal.ClearFlags, color math.Vec4, depth float32, stencil int32)
	DiscardFramebuffer(target hal.GraphicsFramebuffer, flags hal.ClearFlags)
	BlitFramebuffer(src hal.GraphicsFramebuffer, srcRect math.Viewport, dest hal.GraphicsFramebuffer, destRect math.Viewport)

	SetViewport(i uint32, viewport math.Viewport)
	Viewport(i uint32) math.Viewport
	SetScissor(i uint32, scissor math.Viewport)

	// DrawRenderers draws every subset of geometries seen by camera, with
	// override instead of the geometry materials when it is not nil.
	DrawRenderers(geometries []*scene.Geometry, camera *scene.Camera, override *material.Material) error
	// DrawMesh draws one subset of mesh. camera may be nil for screen space
	// materials.
	DrawMesh(mesh *scene.Mesh, subset int, mat *material.Material, camera *scene.Camera, transform math.Mat4) error
}

/**
 * @brief One step of a frame. Execute reads the frame state from data and
 * returns an error when it could not set up the resources it needs; the
 * frame driver decides whether to skip the pass or abort the frame.
 */
type ScriptableRenderPass interface {
	Name() string
	Event() RenderPassEvent
	Execute(ctx RenderContext, data *RenderingData) error
}
