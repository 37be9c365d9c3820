package passes

import (
	"fmt"

	"github.com/spaghettifunk/octoon/engine/core"
	"github.com/spaghettifunk/octoon/engine/material"
	"github.com/spaghettifunk/octoon/engine/object"
	"github.com/spaghettifunk/octoon/engine/renderer"
	"github.com/spaghettifunk/octoon/engine/scene"
)

/**
 * @brief Renders the shadow maps of every light with shadows enabled. Each
 * face gets its own map: one for directional and spot lights, six for point
 * lights. Shadow maps are created on first use, so a failure to create one
 * fails the pass for the frame.
 */
type LightsShadowCasterPass struct {
	depth *material.Material
}

func NewLightsShadowCasterPass(objects *object.Context) *LightsShadowCasterPass {
	return &LightsShadowCasterPass{depth: material.NewDepthMaterial(objects)}
}

func (p *LightsShadowCasterPass) Name() string {
	return "lights_shadow_caster"
}

func (p *LightsShadowCasterPass) Event() renderer.RenderPassEvent {
	return renderer.RENDER_PASS_EVENT_SHADOWS
}

func (p *LightsShadowCasterPass) Execute(ctx renderer.RenderContext, data *renderer.RenderingData) error {
	var casters []*scene.Geometry
	for _, g := range data.Geometries {
		if g.CastShadow() {
			casters = append(casters, g)
		}
	}

	for _, l := range data.DirectionalLights {
		if l.Shadow < 0 {
			continue
		}
		if err := p.renderFace(ctx, l.Light, 0, &data.DirectionalShadows[l.Shadow], casters); err != nil {
			return err
		}
	}
	for _, l := range data.SpotLights {
		if l.Shadow < 0 {
			continue
		}
		if err := p.renderFace(ctx, l.Light, 0, &data.SpotShadows[l.Shadow], casters); err != nil {
			return err
		}
	}
	for _, l := range data.PointLights {
		if l.Shadow < 0 {
			continue
		}
		for face := 0; face < l.Light.ShadowFaces(); face++ {
			if err := p.renderFace(ctx, l.Light, face, &data.PointShadows[l.Shadow+face], casters); err != nil {
				return err
			}
		}
	}
	return nil
}

func (p *LightsShadowCasterPass) renderFace(ctx renderer.RenderContext, caster scene.ShadowCaster, face int, shadow *renderer.ShadowData, geometries []*scene.Geometry) error {
	if err := caster.SetupShadowMap(ctx.Device()); err != nil {
		err = fmt.Errorf("%s light shadow map: %w", caster.LightType(), err)
		core.LogError(err.Error())
		return err
	}

	camera := caster.ShadowCamera(face)
	ctx.SetFramebuffer(camera.Framebuffer())
	ctx.SetViewport(0, camera.PixelViewport())
	ctx.SetScissor(0, camera.PixelViewport())
	ctx.ClearFramebuffer(0, camera.ClearFlags(), camera.ClearColor(), 1.0, 0)

	if len(geometries) > 0 {
		if err := ctx.DrawRenderers(geometries, camera, p.depth); err != nil {
			return err
		}
	}

	shadow.Map = camera.ColorTexture()
	shadow.Matrix = renderer.ShadowMatrix(camera)
	return nil
}

func (p *LightsShadowCasterPass) Close() {
	p.depth.Release()
}
