package passes

import (
	"github.com/spaghettifunk/octoon/engine/hal"
	"github.com/spaghettifunk/octoon/engine/renderer"
)

/**
 * @brief Draws the opaque or the transparent geometries of the frame with
 * their own materials into the camera target. Only the opaque instance
 * applies the camera clear flags, so transparents land on top of what the
 * opaque pass and the skybox drew.
 */
type DrawObjectPass struct {
	opaque bool
}

func NewDrawOpaquePass() *DrawObjectPass {
	return &DrawObjectPass{opaque: true}
}

func NewDrawTransparentPass() *DrawObjectPass {
	return &DrawObjectPass{opaque: false}
}

func (p *DrawObjectPass) Name() string {
	if p.opaque {
		return "draw_opaque"
	}
	return "draw_transparent"
}

func (p *DrawObjectPass) Event() renderer.RenderPassEvent {
	if p.opaque {
		return renderer.RENDER_PASS_EVENT_OPAQUES
	}
	return renderer.RENDER_PASS_EVENT_TRANSPARENTS
}

func (p *DrawObjectPass) Execute(ctx renderer.RenderContext, data *renderer.RenderingData) error {
	camera := data.Camera
	if camera == nil {
		return nil
	}

	ctx.SetFramebuffer(data.Framebuffer)
	viewport := camera.PixelViewport()
	ctx.SetViewport(0, viewport)
	ctx.SetScissor(0, viewport)

	if p.opaque && camera.ClearFlags() != hal.CLEAR_NONE {
		ctx.ClearFramebuffer(0, camera.ClearFlags(), camera.ClearColor(), 1.0, 0)
	}

	geometries := data.TransparentGeometries()
	if p.opaque {
		geometries = data.OpaqueGeometries()
	}
	if len(geometries) == 0 {
		return nil
	}
	return ctx.DrawRenderers(geometries, camera, nil)
}
