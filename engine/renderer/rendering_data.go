package renderer

import (
	"github.com/chewxy/math32"
	"github.com/spaghettifunk/octoon/engine/hal"
	"github.com/spaghettifunk/octoon/engine/math"
	"github.com/spaghettifunk/octoon/engine/scene"
)

/**
 * @brief Shadow lookup of one light face: the shadow map and the matrix that
 * maps world positions into its texture space.
 */
type ShadowData struct {
	Map    hal.GraphicsTexture
	Matrix math.Mat4
	Bias   float32
	Radius float32
	// Size of the shadow map in texels
	Size math.Vec2
}

type DirectionalLightData struct {
	Light *scene.DirectionalLight
	Color math.Vec3
	// Direction towards the light, in view space.
	Direction math.Vec3
	Shadow    int
}

type SpotLightData struct {
	Light     *scene.SpotLight
	Color     math.Vec3
	Position  math.Vec3
	Direction math.Vec3
	// Cosines of the inner and outer cone angles.
	InnerCos float32
	OuterCos float32
	Shadow   int
}

type PointLightData struct {
	Light    *scene.PointLight
	Color    math.Vec3
	Position math.Vec3
	Distance float32
	// Index of the first of six faces in PointShadows, or -1.
	Shadow int
}

type HemisphereLightData struct {
	Light       *scene.HemisphereLight
	SkyColor    math.Vec3
	GroundColor math.Vec3
	Direction   math.Vec3
}

type EnvironmentLightData struct {
	Light     *scene.EnvironmentLight
	Intensity float32
	Offset    math.Vec2
	Radiance  hal.GraphicsTexture
}

type RectangleLightData struct {
	Light      *scene.RectangleLight
	Color      math.Vec3
	Position   math.Vec3
	HalfWidth  math.Vec3
	HalfHeight math.Vec3
}

/**
 * @brief RenderingData is the per-frame aggregate a scene controller fills
 * for one camera and the render passes consume. Reset empties it at the
 * start of every frame; accumulating across frames without a Reset is
 * invalid.
 *
 * The light buffers and the screen quad are owned resources reused from
 * frame to frame and survive Reset.
 */
type RenderingData struct {
	Camera *scene.Camera

	NumLights int
	// light counts by category, indexed by scene.LightType
	Counts [scene.LIGHT_TYPE_MAX]int

	AmbientLightColor math.Vec3

	DirectionalLights []DirectionalLightData
	SpotLights        []SpotLightData
	PointLights       []PointLightData
	HemisphereLights  []HemisphereLightData
	EnvironmentLights []EnvironmentLightData
	RectangleLights   []RectangleLightData

	DirectionalShadows []ShadowData
	SpotShadows        []ShadowData
	PointShadows       []ShadowData

	Geometries []*scene.Geometry

	// target the current camera renders to and its attachments
	Framebuffer  hal.GraphicsFramebuffer
	ColorTexture hal.GraphicsTexture
	DepthTexture hal.GraphicsTexture

	DirectionalLightBuffer hal.GraphicsData
	SpotLightBuffer        hal.GraphicsData
	PointLightBuffer       hal.GraphicsData
	RectangleLightBuffer   hal.GraphicsData

	ScreenQuad *scene.Mesh
}

func NewRenderingData() *RenderingData {
	return &RenderingData{}
}

// Reset clears the camera, every count and every list. Calling it twice is
// the same as calling it once.
func (d *RenderingData) Reset() {
	d.Camera = nil
	d.NumLights = 0
	d.Counts = [scene.LIGHT_TYPE_MAX]int{}
	d.AmbientLightColor = math.NewVec3Zero()

	d.DirectionalLights = d.DirectionalLights[:0]
	d.SpotLights = d.SpotLights[:0]
	d.PointLights = d.PointLights[:0]
	d.HemisphereLights = d.HemisphereLights[:0]
	d.EnvironmentLights = d.EnvironmentLights[:0]
	d.RectangleLights = d.RectangleLights[:0]

	d.DirectionalShadows = d.DirectionalShadows[:0]
	d.SpotShadows = d.SpotShadows[:0]
	d.PointShadows = d.PointShadows[:0]

	clear(d.Geometries)
	d.Geometries = d.Geometries[:0]

	d.Framebuffer = nil
	d.ColorTexture = nil
	d.DepthTexture = nil
}

// Close releases the light buffers and the screen quad.
func (d *RenderingData) Close() {
	for _, b := range []*hal.GraphicsData{&d.DirectionalLightBuffer, &d.SpotLightBuffer, &d.PointLightBuffer, &d.RectangleLightBuffer} {
		if *b != nil {
			(*b).Close()
			*b = nil
		}
	}
	if d.ScreenQuad != nil {
		d.ScreenQuad.Release()
		d.ScreenQuad = nil
	}
}

// Count returns the number of collected lights of type t.
func (d *RenderingData) Count(t scene.LightType) int {
	if t >= scene.LIGHT_TYPE_MAX {
		return 0
	}
	return d.Counts[t]
}

/**
 * @brief Accumulates the lights camera can see into d. Invisible lights and
 * lights on another layer are skipped. Ambient lights and environment lights
 * without a radiance map only add to AmbientLightColor. Directions and
 * positions are stored in the view space of camera.
 *
 * Shadow entries are recorded for shadow casters with shadows enabled; the
 * shadow caster pass fills in the maps and matrices.
 */
func (d *RenderingData) CollectLights(lights []scene.Light, camera *scene.Camera) {
	d.Camera = camera
	view := camera.View()

	for _, l := range lights {
		if !l.Visible() || l.Layer() != camera.Layer() {
			continue
		}
		color := l.Color().MulScalar(l.Intensity())
		transform := l.Transform()

		switch light := l.(type) {
		case *scene.AmbientLight:
			d.AmbientLightColor = d.AmbientLightColor.Add(color)
		case *scene.EnvironmentLight:
			if light.RadianceMap() == nil {
				d.AmbientLightColor = d.AmbientLightColor.Add(color)
				d.Counts[scene.LIGHT_TYPE_AMBIENT]++
				d.NumLights++
				continue
			}
			d.EnvironmentLights = append(d.EnvironmentLights, EnvironmentLightData{
				Light:     light,
				Intensity: light.Intensity(),
				Offset:    light.Offset(),
				Radiance:  light.RadianceMap(),
			})
		case *scene.DirectionalLight:
			entry := DirectionalLightData{
				Light:     light,
				Color:     color,
				Direction: transform.Forward().MulScalar(-1).TransformDirection(view).Normalized(),
				Shadow:    -1,
			}
			if light.ShadowEnable() {
				entry.Shadow = len(d.DirectionalShadows)
				d.DirectionalShadows = append(d.DirectionalShadows, newShadowData(light, light.ShadowCamera(0)))
			}
			d.DirectionalLights = append(d.DirectionalLights, entry)
		case *scene.SpotLight:
			entry := SpotLightData{
				Light:     light,
				Color:     color,
				Position:  transform.Translation().Transform(view),
				Direction: transform.Forward().MulScalar(-1).TransformDirection(view).Normalized(),
				InnerCos:  cosDegrees(light.InnerCone()),
				OuterCos:  cosDegrees(light.OuterCone()),
				Shadow:    -1,
			}
			if light.ShadowEnable() {
				entry.Shadow = len(d.SpotShadows)
				d.SpotShadows = append(d.SpotShadows, newShadowData(light, light.ShadowCamera(0)))
			}
			d.SpotLights = append(d.SpotLights, entry)
		case *scene.PointLight:
			entry := PointLightData{
				Light:    light,
				Color:    color,
				Position: transform.Translation().Transform(view),
				Distance: light.Distance(),
				Shadow:   -1,
			}
			if light.ShadowEnable() {
				entry.Shadow = len(d.PointShadows)
				for face := 0; face < light.ShadowFaces(); face++ {
					d.PointShadows = append(d.PointShadows, newShadowData(light, light.ShadowCamera(face)))
				}
			}
			d.PointLights = append(d.PointLights, entry)
		case *scene.HemisphereLight:
			d.HemisphereLights = append(d.HemisphereLights, HemisphereLightData{
				Light:       light,
				SkyColor:    color,
				GroundColor: light.GroundColor().MulScalar(light.Intensity()),
				Direction:   transform.Up().TransformDirection(view).Normalized(),
			})
		case *scene.RectangleLight:
			w, h := light.Size()
			d.RectangleLights = append(d.RectangleLights, RectangleLightData{
				Light:      light,
				Color:      color,
				Position:   transform.Translation().Transform(view),
				HalfWidth:  transform.Right().MulScalar(w * 0.5).TransformDirection(view),
				HalfHeight: transform.Up().MulScalar(h * 0.5).TransformDirection(view),
			})
		default:
			continue
		}
		d.Counts[l.LightType()]++
		d.NumLights++
	}
}

// CollectGeometries appends the visible geometries. Layers are filtered when
// drawing, because shadow cameras may render a different layer.
func (d *RenderingData) CollectGeometries(geometries []*scene.Geometry) {
	for _, g := range geometries {
		if g == nil || !g.Visible() || g.Mesh() == nil {
			continue
		}
		d.Geometries = append(d.Geometries, g)
	}
}

// OpaqueGeometries returns the collected geometries with priority below 1.
func (d *RenderingData) OpaqueGeometries() []*scene.Geometry {
	return d.filter(func(g *scene.Geometry) bool { return g.IsOpaque() })
}

func (d *RenderingData) TransparentGeometries() []*scene.Geometry {
	return d.filter(func(g *scene.Geometry) bool { return !g.IsOpaque() })
}

func (d *RenderingData) SelectedGeometries() []*scene.Geometry {
	return d.filter(func(g *scene.Geometry) bool { return g.Selected() })
}

func (d *RenderingData) filter(keep func(*scene.Geometry) bool) []*scene.Geometry {
	var out []*scene.Geometry
	for _, g := range d.Geometries {
		if keep(g) {
			out = append(out, g)
		}
	}
	return out
}

// ShadowMatrix maps world positions into the texture space of camera.
func ShadowMatrix(camera *scene.Camera) math.Mat4 {
	return camera.ViewProjection().Mul(math.NewMat4ClipToTexture())
}

func newShadowData(caster scene.ShadowCaster, camera *scene.Camera) ShadowData {
	size := float32(caster.ShadowMapSize())
	return ShadowData{
		Map:    camera.ColorTexture(),
		Matrix: ShadowMatrix(camera),
		Bias:   caster.ShadowBias(),
		Radius: caster.ShadowRadius(),
		Size:   math.NewVec2(size, size),
	}
}

func cosDegrees(degrees float32) float32 {
	return math32.Cos(math.DegToRad(degrees))
}
