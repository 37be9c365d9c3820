package hal

import (
	"fmt"

	"github.com/spaghettifunk/octoon/engine/core"
	"github.com/spaghettifunk/octoon/engine/math"
)

/**
 * @brief A named uniform binding of a descriptor set. Holds either a plain
 * value (scalar, vector, matrix, array) or a GPU resource (texture, buffer).
 * The setters change the stored type along with the value.
 */
type UniformSet struct {
	param UniformParam

	b    bool
	i    [4]int32
	ui   uint32
	f    [4]float32
	m    math.Mat4
	iv   []int32
	fv   []float32
	v3   []math.Vec3
	v4   []math.Vec4
	mv   []math.Mat4
	tex  GraphicsTexture
	samp GraphicsSampler
	data GraphicsData
}

func NewUniformSet(param UniformParam) *UniformSet {
	return &UniformSet{param: param}
}

func (u *UniformSet) Name() string {
	return u.param.Name
}

func (u *UniformSet) Type() UniformType {
	return u.param.Type
}

func (u *UniformSet) Param() UniformParam {
	return u.param
}

func (u *UniformSet) Uniform1b(value bool) {
	u.param.Type = UNIFORM_TYPE_BOOL
	u.b = value
}

func (u *UniformSet) Uniform1i(value int32) {
	u.param.Type = UNIFORM_TYPE_INT
	u.i = [4]int32{value}
}

func (u *UniformSet) Uniform2i(x, y int32) {
	u.param.Type = UNIFORM_TYPE_INT2
	u.i = [4]int32{x, y}
}

func (u *UniformSet) Uniform3i(x, y, z int32) {
	u.param.Type = UNIFORM_TYPE_INT3
	u.i = [4]int32{x, y, z}
}

func (u *UniformSet) Uniform4i(x, y, z, w int32) {
	u.param.Type = UNIFORM_TYPE_INT4
	u.i = [4]int32{x, y, z, w}
}

func (u *UniformSet) Uniform1ui(value uint32) {
	u.param.Type = UNIFORM_TYPE_UINT
	u.ui = value
}

func (u *UniformSet) Uniform1f(value float32) {
	u.param.Type = UNIFORM_TYPE_FLOAT
	u.f = [4]float32{value}
}

func (u *UniformSet) Uniform2f(value math.Vec2) {
	u.param.Type = UNIFORM_TYPE_FLOAT2
	u.f = [4]float32{value.X, value.Y}
}

func (u *UniformSet) Uniform3f(value math.Vec3) {
	u.param.Type = UNIFORM_TYPE_FLOAT3
	u.f = [4]float32{value.X, value.Y, value.Z}
}

func (u *UniformSet) Uniform4f(value math.Vec4) {
	u.param.Type = UNIFORM_TYPE_FLOAT4
	u.f = [4]float32{value.X, value.Y, value.Z, value.W}
}

// Uniform3fmat stores the upper 3x3 block of value.
func (u *UniformSet) Uniform3fmat(value math.Mat4) {
	u.param.Type = UNIFORM_TYPE_FLOAT3X3
	u.m = value.Mat3()
}

func (u *UniformSet) Uniform4fmat(value math.Mat4) {
	u.param.Type = UNIFORM_TYPE_FLOAT4X4
	u.m = value
}

func (u *UniformSet) Uniform1iv(values []int32) {
	u.param.Type = UNIFORM_TYPE_INT_ARRAY
	u.iv = append(u.iv[:0], values...)
}

func (u *UniformSet) Uniform1fv(values []float32) {
	u.param.Type = UNIFORM_TYPE_FLOAT_ARRAY
	u.fv = append(u.fv[:0], values...)
}

func (u *UniformSet) Uniform3fv(values []math.Vec3) {
	u.param.Type = UNIFORM_TYPE_FLOAT3_ARRAY
	u.v3 = append(u.v3[:0], values...)
}

func (u *UniformSet) Uniform4fv(values []math.Vec4) {
	u.param.Type = UNIFORM_TYPE_FLOAT4_ARRAY
	u.v4 = append(u.v4[:0], values...)
}

func (u *UniformSet) Uniform4fmatv(values []math.Mat4) {
	u.param.Type = UNIFORM_TYPE_FLOAT4X4_ARRAY
	u.mv = append(u.mv[:0], values...)
}

// UniformTexture binds texture with an optional sampler. A nil texture unbinds.
func (u *UniformSet) UniformTexture(texture GraphicsTexture, sampler GraphicsSampler) {
	if u.param.Type != UNIFORM_TYPE_SAMPLED_IMAGE && u.param.Type != UNIFORM_TYPE_STORAGE_IMAGE {
		u.param.Type = UNIFORM_TYPE_COMBINED_IMAGE_SAMPLER
	}
	u.tex = texture
	u.samp = sampler
}

func (u *UniformSet) UniformBuffer(data GraphicsData) {
	if u.param.Type != UNIFORM_TYPE_STORAGE_BUFFER {
		u.param.Type = UNIFORM_TYPE_UNIFORM_BUFFER
	}
	u.data = data
}

func (u *UniformSet) Bool() bool {
	return u.b
}

func (u *UniformSet) Int() int32 {
	return u.i[0]
}

func (u *UniformSet) Int4() [4]int32 {
	return u.i
}

func (u *UniformSet) UInt() uint32 {
	return u.ui
}

func (u *UniformSet) Float() float32 {
	return u.f[0]
}

func (u *UniformSet) Float2() math.Vec2 {
	return math.Vec2{X: u.f[0], Y: u.f[1]}
}

func (u *UniformSet) Float3() math.Vec3 {
	return math.Vec3{X: u.f[0], Y: u.f[1], Z: u.f[2]}
}

func (u *UniformSet) Float4() math.Vec4 {
	return math.Vec4{X: u.f[0], Y: u.f[1], Z: u.f[2], W: u.f[3]}
}

func (u *UniformSet) Float3x3() math.Mat4 {
	return u.m
}

func (u *UniformSet) Float4x4() math.Mat4 {
	return u.m
}

func (u *UniformSet) IntArray() []int32 {
	return u.iv
}

func (u *UniformSet) FloatArray() []float32 {
	return u.fv
}

func (u *UniformSet) Float3Array() []math.Vec3 {
	return u.v3
}

func (u *UniformSet) Float4Array() []math.Vec4 {
	return u.v4
}

func (u *UniformSet) Float4x4Array() []math.Mat4 {
	return u.mv
}

func (u *UniformSet) Texture() GraphicsTexture {
	return u.tex
}

func (u *UniformSet) TextureSampler() GraphicsSampler {
	return u.samp
}

func (u *UniformSet) Buffer() GraphicsData {
	return u.data
}

/**
 * @brief Stores value with the setter matching its Go type. Accepted types:
 * bool, int, int32, uint32, float32, float64, Vec2, Vec3, Vec4, Mat4, []int32,
 * []float32, []Vec3, []Vec4, []Mat4, GraphicsTexture and GraphicsData.
 */
func (u *UniformSet) SetValue(value interface{}) error {
	switch v := value.(type) {
	case bool:
		u.Uniform1b(v)
	case int:
		u.Uniform1i(int32(v))
	case int32:
		u.Uniform1i(v)
	case uint32:
		u.Uniform1ui(v)
	case float32:
		u.Uniform1f(v)
	case float64:
		u.Uniform1f(float32(v))
	case math.Vec2:
		u.Uniform2f(v)
	case math.Vec3:
		u.Uniform3f(v)
	case math.Vec4:
		u.Uniform4f(v)
	case math.Mat4:
		u.Uniform4fmat(v)
	case []int32:
		u.Uniform1iv(v)
	case []float32:
		u.Uniform1fv(v)
	case []math.Vec3:
		u.Uniform3fv(v)
	case []math.Vec4:
		u.Uniform4fv(v)
	case []math.Mat4:
		u.Uniform4fmatv(v)
	case GraphicsTexture:
		u.UniformTexture(v, nil)
	case GraphicsData:
		u.UniformBuffer(v)
	case nil:
		if u.param.Type.IsResource() {
			u.tex, u.samp, u.data = nil, nil, nil
			return nil
		}
		return fmt.Errorf("uniform '%s' cannot hold nil: %w", u.param.Name, core.ErrInvalidDesc)
	default:
		return fmt.Errorf("uniform '%s' does not accept values of type %T: %w", u.param.Name, value, core.ErrInvalidDesc)
	}
	return nil
}

// Value returns the stored value boxed with the Go type SetValue accepts.
func (u *UniformSet) Value() interface{} {
	switch u.param.Type {
	case UNIFORM_TYPE_BOOL:
		return u.b
	case UNIFORM_TYPE_INT:
		return u.i[0]
	case UNIFORM_TYPE_INT2, UNIFORM_TYPE_INT3, UNIFORM_TYPE_INT4:
		return u.i
	case UNIFORM_TYPE_UINT:
		return u.ui
	case UNIFORM_TYPE_FLOAT:
		return u.f[0]
	case UNIFORM_TYPE_FLOAT2:
		return u.Float2()
	case UNIFORM_TYPE_FLOAT3:
		return u.Float3()
	case UNIFORM_TYPE_FLOAT4:
		return u.Float4()
	case UNIFORM_TYPE_FLOAT3X3, UNIFORM_TYPE_FLOAT4X4:
		return u.m
	case UNIFORM_TYPE_INT_ARRAY:
		return u.iv
	case UNIFORM_TYPE_FLOAT_ARRAY:
		return u.fv
	case UNIFORM_TYPE_FLOAT3_ARRAY:
		return u.v3
	case UNIFORM_TYPE_FLOAT4_ARRAY:
		return u.v4
	case UNIFORM_TYPE_FLOAT4X4_ARRAY:
		return u.mv
	case UNIFORM_TYPE_UNIFORM_BUFFER, UNIFORM_TYPE_STORAGE_BUFFER:
		return u.data
	case UNIFORM_TYPE_SAMPLER, UNIFORM_TYPE_SAMPLED_IMAGE, UNIFORM_TYPE_COMBINED_IMAGE_SAMPLER, UNIFORM_TYPE_STORAGE_IMAGE:
		return u.tex
	}
	return nil
}

// CopyFrom replaces the value of u with the value of other, keeping u's name.
func (u *UniformSet) CopyFrom(other *UniformSet) {
	name, binding, stage := u.param.Name, u.param.BindingPoint, u.param.Stage
	*u = *other.Clone()
	u.param.Name, u.param.BindingPoint, u.param.Stage = name, binding, stage
}

/**
 * @brief Returns an independent copy. Arrays are copied; textures, samplers
 * and buffers are GPU resources and stay shared.
 */
func (u *UniformSet) Clone() *UniformSet {
	c := *u
	c.iv = append([]int32(nil), u.iv...)
	c.fv = append([]float32(nil), u.fv...)
	c.v3 = append([]math.Vec3(nil), u.v3...)
	c.v4 = append([]math.Vec4(nil), u.v4...)
	c.mv = append([]math.Mat4(nil), u.mv...)
	return &c
}
