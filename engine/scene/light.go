package scene

import (
	"fmt"

	"github.com/spaghettifunk/octoon/engine/core"
	"github.com/spaghettifunk/octoon/engine/hal"
	"github.com/spaghettifunk/octoon/engine/math"
	"github.com/spaghettifunk/octoon/engine/object"
)

type LightType uint8

const (
	LIGHT_TYPE_AMBIENT LightType = iota
	LIGHT_TYPE_DIRECTIONAL
	LIGHT_TYPE_SPOT
	LIGHT_TYPE_POINT
	LIGHT_TYPE_HEMISPHERE
	LIGHT_TYPE_ENVIRONMENT
	LIGHT_TYPE_RECTANGLE
	LIGHT_TYPE_MAX
)

var lightTypeNames = [...]string{
	LIGHT_TYPE_AMBIENT:     "ambient",
	LIGHT_TYPE_DIRECTIONAL: "directional",
	LIGHT_TYPE_SPOT:        "spot",
	LIGHT_TYPE_POINT:       "point",
	LIGHT_TYPE_HEMISPHERE:  "hemisphere",
	LIGHT_TYPE_ENVIRONMENT: "environment",
	LIGHT_TYPE_RECTANGLE:   "rectangle",
}

func (t LightType) String() string {
	if t >= LIGHT_TYPE_MAX {
		return fmt.Sprintf("light_type(%d)", t)
	}
	return lightTypeNames[t]
}

const (
	DEFAULT_SHADOW_MAP_SIZE uint32  = 512
	DEFAULT_SHADOW_BIAS     float32 = 0.0
	DEFAULT_SHADOW_RADIUS   float32 = 1.0
)

/**
 * @brief Implemented by every light variant. Code that needs the variant
 * switches on the concrete type.
 */
type Light interface {
	RenderObject
	LightType() LightType
	Color() math.Vec3
	Intensity() float32
}

/**
 * @brief Implemented by lights that render shadow maps. Each face has its own
 * shadow camera; directional and spot lights have one face, point lights six.
 */
type ShadowCaster interface {
	Light
	ShadowEnable() bool
	ShadowBias() float32
	ShadowRadius() float32
	ShadowMapSize() uint32
	ShadowFaces() int
	ShadowCamera(face int) *Camera
	// SetupShadowMap creates the depth targets of every face that lacks one.
	SetupShadowMap(device hal.GraphicsDevice) error
}

type baseLight struct {
	node

	color     math.Vec3
	intensity float32
}

func (l *baseLight) initLight(ctx *object.Context) {
	l.initNode(ctx, object.KIND_LIGHT)
	l.color = math.NewVec3One()
	l.intensity = 1.0
}

func (l *baseLight) Color() math.Vec3 {
	return l.color
}

func (l *baseLight) SetColor(color math.Vec3) {
	l.color = color
	l.MarkDirty()
}

func (l *baseLight) Intensity() float32 {
	return l.intensity
}

func (l *baseLight) SetIntensity(intensity float32) {
	l.intensity = intensity
	l.MarkDirty()
}

// shadow holds the shadow settings and per face cameras of a caster.
type shadow struct {
	owner   *baseLight
	enable  bool
	bias    float32
	radius  float32
	mapSize uint32
	cameras []*Camera
	// local rotation of each face relative to the light
	faces []math.Mat4
}

func (s *shadow) initShadow(owner *baseLight, cameras []*Camera, faces []math.Mat4) {
	s.owner = owner
	s.bias = DEFAULT_SHADOW_BIAS
	s.radius = DEFAULT_SHADOW_RADIUS
	s.mapSize = DEFAULT_SHADOW_MAP_SIZE
	s.cameras = cameras
	s.faces = faces
	for _, c := range cameras {
		c.SetClearColor(math.NewVec4One())
	}
}

func (s *shadow) ShadowEnable() bool {
	return s.enable
}

func (s *shadow) SetShadowEnable(enable bool) {
	s.enable = enable
	s.owner.MarkDirty()
}

func (s *shadow) ShadowBias() float32 {
	return s.bias
}

func (s *shadow) SetShadowBias(bias float32) {
	s.bias = bias
	s.owner.MarkDirty()
}

func (s *shadow) ShadowRadius() float32 {
	return s.radius
}

func (s *shadow) SetShadowRadius(radius float32) {
	s.radius = radius
	s.owner.MarkDirty()
}

func (s *shadow) ShadowMapSize() uint32 {
	return s.mapSize
}

// SetShadowMapSize drops the existing shadow maps; they are rebuilt at the
// new size on the next SetupShadowMap.
func (s *shadow) SetShadowMapSize(size uint32) {
	if size == s.mapSize {
		return
	}
	s.mapSize = size
	s.CloseShadowMap()
	s.owner.MarkDirty()
}

func (s *shadow) ShadowFaces() int {
	return len(s.cameras)
}

// ShadowCamera returns the camera of face with its transform following the
// light. Out of range faces return nil.
func (s *shadow) ShadowCamera(face int) *Camera {
	if face < 0 || face >= len(s.cameras) {
		return nil
	}
	c := s.cameras[face]
	want := s.faces[face].Mul(s.owner.transform)
	if !c.Transform().Equal(want, 0) {
		c.SetTransform(want)
	}
	if c.Layer() != s.owner.layer {
		c.SetLayer(s.owner.layer)
	}
	return c
}

func (s *shadow) SetupShadowMap(device hal.GraphicsDevice) error {
	for i, c := range s.cameras {
		if c.Framebuffer() != nil {
			continue
		}
		if err := c.SetupFramebuffers(device, s.mapSize, s.mapSize, 1, hal.FORMAT_R32_SFLOAT, hal.FORMAT_D32_SFLOAT); err != nil {
			err = fmt.Errorf("shadow map face %d: %w", i, err)
			core.LogError(err.Error())
			return err
		}
	}
	return nil
}

func (s *shadow) CloseShadowMap() {
	for _, c := range s.cameras {
		c.Close()
	}
}

type AmbientLight struct {
	baseLight
}

func NewAmbientLight(ctx *object.Context, color math.Vec3, intensity float32) *AmbientLight {
	l := &AmbientLight{}
	l.initLight(ctx)
	l.color = color
	l.intensity = intensity
	return l
}

func (l *AmbientLight) LightType() LightType {
	return LIGHT_TYPE_AMBIENT
}

/**
 * @brief Parallel light shining along the -Z axis of its transform. The
 * shadow camera is orthographic and covers ShadowExtent around the light.
 */
type DirectionalLight struct {
	baseLight
	shadow
}

func NewDirectionalLight(ctx *object.Context, color math.Vec3, intensity float32) *DirectionalLight {
	l := &DirectionalLight{}
	l.initLight(ctx)
	l.color = color
	l.intensity = intensity
	cam := NewOrthographicCamera(ctx, "directional.shadow", -10, 10, -10, 10, 0.1, 100)
	l.initShadow(&l.baseLight, []*Camera{cam}, []math.Mat4{math.NewMat4Identity()})
	return l
}

func (l *DirectionalLight) LightType() LightType {
	return LIGHT_TYPE_DIRECTIONAL
}

// SetShadowExtent sets the half size of the area the shadow map covers.
func (l *DirectionalLight) SetShadowExtent(extent float32) {
	l.cameras[0].SetOrtho(-extent, extent, -extent, extent)
	l.MarkDirty()
}

type SpotLight struct {
	baseLight
	shadow

	innerCone float32
	outerCone float32
}

// NewSpotLight creates a spot light with cone angles in degrees.
func NewSpotLight(ctx *object.Context, color math.Vec3, intensity, innerCone, outerCone float32) *SpotLight {
	l := &SpotLight{innerCone: innerCone, outerCone: outerCone}
	l.initLight(ctx)
	l.color = color
	l.intensity = intensity
	cam := NewPerspectiveCamera(ctx, "spot.shadow", outerCone*2, 0.1, 100)
	cam.SetAspect(1)
	l.initShadow(&l.baseLight, []*Camera{cam}, []math.Mat4{math.NewMat4Identity()})
	return l
}

func (l *SpotLight) LightType() LightType {
	return LIGHT_TYPE_SPOT
}

func (l *SpotLight) InnerCone() float32 {
	return l.innerCone
}

func (l *SpotLight) OuterCone() float32 {
	return l.outerCone
}

func (l *SpotLight) SetCone(inner, outer float32) {
	l.innerCone, l.outerCone = inner, outer
	l.cameras[0].SetFov(outer * 2)
	l.MarkDirty()
}

// PointLight shines in every direction and renders one shadow face per axis.
type PointLight struct {
	baseLight
	shadow

	distance float32
}

func NewPointLight(ctx *object.Context, color math.Vec3, intensity, distance float32) *PointLight {
	l := &PointLight{distance: distance}
	l.initLight(ctx)
	l.color = color
	l.intensity = intensity

	halfPi := math.K_PI * 0.5
	faces := []math.Mat4{
		math.NewMat4EulerY(-halfPi),
		math.NewMat4EulerY(halfPi),
		math.NewMat4EulerX(halfPi),
		math.NewMat4EulerX(-halfPi),
		math.NewMat4EulerY(math.K_PI),
		math.NewMat4Identity(),
	}
	cameras := make([]*Camera, len(faces))
	for i := range cameras {
		cameras[i] = NewPerspectiveCamera(ctx, fmt.Sprintf("point.shadow.%d", i), 90, 0.1, max(distance, 1))
		cameras[i].SetAspect(1)
	}
	l.initShadow(&l.baseLight, cameras, faces)
	return l
}

func (l *PointLight) LightType() LightType {
	return LIGHT_TYPE_POINT
}

// Distance is the range of the light. Zero means unbounded.
func (l *PointLight) Distance() float32 {
	return l.distance
}

func (l *PointLight) SetDistance(distance float32) {
	l.distance = distance
	l.MarkDirty()
}

// HemisphereLight blends between the sky colour and GroundColor by normal.
type HemisphereLight struct {
	baseLight

	groundColor math.Vec3
}

func NewHemisphereLight(ctx *object.Context, skyColor, groundColor math.Vec3, intensity float32) *HemisphereLight {
	l := &HemisphereLight{groundColor: groundColor}
	l.initLight(ctx)
	l.color = skyColor
	l.intensity = intensity
	return l
}

func (l *HemisphereLight) LightType() LightType {
	return LIGHT_TYPE_HEMISPHERE
}

func (l *HemisphereLight) GroundColor() math.Vec3 {
	return l.groundColor
}

func (l *HemisphereLight) SetGroundColor(color math.Vec3) {
	l.groundColor = color
	l.MarkDirty()
}

/**
 * @brief Image based light. Without a radiance map it only adds its colour to
 * the ambient term. With ShowBackground the skybox pass draws the map behind
 * the scene.
 */
type EnvironmentLight struct {
	baseLight

	radianceMap    hal.GraphicsTexture
	offset         math.Vec2
	showBackground bool
}

func NewEnvironmentLight(ctx *object.Context, color math.Vec3, intensity float32) *EnvironmentLight {
	l := &EnvironmentLight{showBackground: true}
	l.initLight(ctx)
	l.color = color
	l.intensity = intensity
	return l
}

func (l *EnvironmentLight) LightType() LightType {
	return LIGHT_TYPE_ENVIRONMENT
}

func (l *EnvironmentLight) RadianceMap() hal.GraphicsTexture {
	return l.radianceMap
}

func (l *EnvironmentLight) SetRadianceMap(texture hal.GraphicsTexture) {
	l.radianceMap = texture
	l.MarkDirty()
}

// Offset shifts the lookup into the radiance map, in texture units.
func (l *EnvironmentLight) Offset() math.Vec2 {
	return l.offset
}

func (l *EnvironmentLight) SetOffset(offset math.Vec2) {
	l.offset = offset
	l.MarkDirty()
}

func (l *EnvironmentLight) ShowBackground() bool {
	return l.showBackground
}

func (l *EnvironmentLight) SetShowBackground(show bool) {
	l.showBackground = show
	l.MarkDirty()
}

type RectangleLight struct {
	baseLight

	width  float32
	height float32
}

func NewRectangleLight(ctx *object.Context, color math.Vec3, intensity, width, height float32) *RectangleLight {
	l := &RectangleLight{width: width, height: height}
	l.initLight(ctx)
	l.color = color
	l.intensity = intensity
	return l
}

func (l *RectangleLight) LightType() LightType {
	return LIGHT_TYPE_RECTANGLE
}

func (l *RectangleLight) Size() (float32, float32) {
	return l.width, l.height
}

func (l *RectangleLight) SetSize(width, height float32) {
	l.width, l.height = width, height
	l.MarkDirty()
}
