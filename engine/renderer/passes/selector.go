package passes

import (
	"fmt"

	"github.com/spaghettifunk/octoon/engine/core"
	"github.com/spaghettifunk/octoon/engine/hal"
	"github.com/spaghettifunk/octoon/engine/material"
	"github.com/spaghettifunk/octoon/engine/math"
	"github.com/spaghettifunk/octoon/engine/object"
	"github.com/spaghettifunk/octoon/engine/renderer"
	"github.com/spaghettifunk/octoon/engine/scene"
)

var DEFAULT_SELECTION_COLOR = math.NewVec4(1.0, 0.6, 0.1, 1.0)

/**
 * @brief Outlines the selected geometries. The selection is drawn flat into
 * a silhouette target, an edge filter turns the silhouette into an outline
 * in a second target, and the outline is blended over the camera target.
 * Both targets follow the size of the camera viewport.
 */
type DrawSelectorPass struct {
	objects *object.Context
	flat    *material.Material
	edge    *material.Material
	copy    *material.Material
	quad    *scene.Mesh

	silhouette *hal.RenderTarget
	outline    *hal.RenderTarget
	width      uint32
	height     uint32
}

func NewDrawSelectorPass(objects *object.Context, color math.Vec4) *DrawSelectorPass {
	return &DrawSelectorPass{
		objects: objects,
		flat:    material.NewBasicMaterial(objects, math.NewVec4One()),
		edge:    material.NewEdgeMaterial(objects, color),
		copy:    material.NewCopyMaterial(objects),
	}
}

func (p *DrawSelectorPass) Name() string {
	return "draw_selector"
}

func (p *DrawSelectorPass) Event() renderer.RenderPassEvent {
	return renderer.RENDER_PASS_EVENT_POST_PROCESSING
}

func (p *DrawSelectorPass) Execute(ctx renderer.RenderContext, data *renderer.RenderingData) error {
	camera := data.Camera
	if camera == nil {
		return nil
	}
	selected := data.SelectedGeometries()
	if len(selected) == 0 {
		return nil
	}

	viewport := camera.PixelViewport()
	width, height := uint32(viewport.Width), uint32(viewport.Height)
	if err := p.setupTargets(ctx.Device(), width, height); err != nil {
		return err
	}
	local := math.NewViewport(0, 0, float32(width), float32(height))

	quad := data.ScreenQuad
	if quad == nil {
		if p.quad == nil {
			p.quad = scene.PlaneMesh(p.objects, 2, 2)
		}
		quad = p.quad
	}

	ctx.SetFramebuffer(p.silhouette.Framebuffer)
	ctx.SetViewport(0, local)
	ctx.ClearFramebuffer(0, hal.CLEAR_ALL, math.Vec4{}, 1.0, 0)
	if err := ctx.DrawRenderers(selected, camera, p.flat); err != nil {
		return err
	}

	ctx.SetFramebuffer(p.outline.Framebuffer)
	ctx.ClearFramebuffer(0, hal.CLEAR_COLOR, math.Vec4{}, 1.0, 0)
	p.edge.SetTexture(material.PARAM_MAP, p.silhouette.Color)
	p.edge.MustSet(material.PARAM_TEX_SIZE, math.NewVec2(float32(width), float32(height)))
	if err := ctx.DrawMesh(quad, 0, p.edge, nil, math.NewMat4Identity()); err != nil {
		return err
	}

	ctx.SetFramebuffer(data.Framebuffer)
	ctx.SetViewport(0, viewport)
	p.copy.SetTexture(material.PARAM_MAP, p.outline.Color)
	return ctx.DrawMesh(quad, 0, p.copy, nil, math.NewMat4Identity())
}

func (p *DrawSelectorPass) setupTargets(device hal.GraphicsDevice, width, height uint32) error {
	if p.silhouette != nil && p.width == width && p.height == height {
		return nil
	}
	p.closeTargets()

	silhouette, err := hal.CreateRenderTarget(device, hal.RenderTargetDesc{
		Name:               "selector.silhouette",
		Width:              width,
		Height:             height,
		ColorFormat:        hal.FORMAT_R8G8B8A8_UNORM,
		DepthStencilFormat: hal.FORMAT_D16_UNORM,
	})
	if err != nil {
		err = fmt.Errorf("selector silhouette target: %w", err)
		core.LogError(err.Error())
		return err
	}
	outline, err := hal.CreateRenderTarget(device, hal.RenderTargetDesc{
		Name:        "selector.outline",
		Width:       width,
		Height:      height,
		ColorFormat: hal.FORMAT_R8G8B8A8_UNORM,
	})
	if err != nil {
		silhouette.Close()
		err = fmt.Errorf("selector outline target: %w", err)
		core.LogError(err.Error())
		return err
	}
	p.silhouette, p.outline = silhouette, outline
	p.width, p.height = width, height
	return nil
}

func (p *DrawSelectorPass) closeTargets() {
	p.silhouette.Close()
	p.outline.Close()
	p.silhouette, p.outline = nil, nil
}

func (p *DrawSelectorPass) Close() {
	p.closeTargets()
	p.flat.Release()
	p.edge.Release()
	p.copy.Release()
	if p.quad != nil {
		p.quad.Release()
	}
}
