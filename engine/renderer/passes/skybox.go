package passes

import (
	"github.com/spaghettifunk/octoon/engine/material"
	"github.com/spaghettifunk/octoon/engine/math"
	"github.com/spaghettifunk/octoon/engine/object"
	"github.com/spaghettifunk/octoon/engine/renderer"
	"github.com/spaghettifunk/octoon/engine/scene"
)

const (
	SKYBOX_RADIUS          float32 = 1.0
	SKYBOX_WIDTH_SEGMENTS  uint32  = 32
	SKYBOX_HEIGHT_SEGMENTS uint32  = 16
)

/**
 * @brief Draws the radiance map of the first environment light that shows
 * its background, on a unit sphere around the camera. The sphere is drawn
 * at the far plane, after the opaques, so only uncovered pixels are shaded.
 */
type DrawSkyboxPass struct {
	material *material.Material
	sphere   *scene.Mesh
}

func NewDrawSkyboxPass(objects *object.Context) *DrawSkyboxPass {
	return &DrawSkyboxPass{
		material: material.NewSkyboxMaterial(objects),
		sphere:   scene.SphereMesh(objects, SKYBOX_RADIUS, SKYBOX_WIDTH_SEGMENTS, SKYBOX_HEIGHT_SEGMENTS),
	}
}

func (p *DrawSkyboxPass) Name() string {
	return "draw_skybox"
}

func (p *DrawSkyboxPass) Event() renderer.RenderPassEvent {
	return renderer.RENDER_PASS_EVENT_SKYBOX
}

// Material is the skybox material, exposed so the backdrop colour can be tinted.
func (p *DrawSkyboxPass) Material() *material.Material {
	return p.material
}

func (p *DrawSkyboxPass) Execute(ctx renderer.RenderContext, data *renderer.RenderingData) error {
	camera := data.Camera
	if camera == nil {
		return nil
	}
	var env *renderer.EnvironmentLightData
	for i := range data.EnvironmentLights {
		if l := &data.EnvironmentLights[i]; l.Light.ShowBackground() && l.Radiance != nil {
			env = l
			break
		}
	}
	if env == nil {
		return nil
	}

	// rotation only, the sky never moves with the camera
	view := camera.View()
	view.Data[12], view.Data[13], view.Data[14] = 0, 0, 0

	p.material.MustSet(material.PARAM_VIEW_PROJECTION, view.Mul(camera.Projection()))
	p.material.MustSet(material.PARAM_COLOR, math.NewVec4(env.Intensity, env.Intensity, env.Intensity, 1))
	p.material.SetTexture(material.PARAM_MAP, env.Radiance)
	p.material.MustSet(material.PARAM_MAP_ENABLE, true)

	ctx.SetFramebuffer(data.Framebuffer)
	ctx.SetViewport(0, camera.PixelViewport())
	return ctx.DrawMesh(p.sphere, 0, p.material, camera, math.NewMat4Identity())
}

func (p *DrawSkyboxPass) Close() {
	p.material.Release()
	p.sphere.Release()
}
