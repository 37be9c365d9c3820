package vulkan

import (
	"encoding/binary"
	"io"
	gomath "math"
	"os"
	"testing"

	"github.com/spaghettifunk/octoon/engine/core"
	"github.com/spaghettifunk/octoon/engine/hal"
	"github.com/spaghettifunk/octoon/engine/math"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	core.SetLogOutput(io.Discard)
	os.Exit(m.Run())
}

func floatAt(b []byte, off uint32) float32 {
	return gomath.Float32frombits(binary.LittleEndian.Uint32(b[off:]))
}

func TestBlockLayoutStd140Offsets(t *testing.T) {
	params := []hal.UniformParam{
		{Name: "alpha", Type: hal.UNIFORM_TYPE_FLOAT},
		{Name: "diffuse", Type: hal.UNIFORM_TYPE_COMBINED_IMAGE_SAMPLER},
		{Name: "color", Type: hal.UNIFORM_TYPE_FLOAT3},
		{Name: "offset", Type: hal.UNIFORM_TYPE_FLOAT2},
		{Name: "model", Type: hal.UNIFORM_TYPE_FLOAT4X4},
	}
	b := newBlockLayout(params)

	require.Len(t, b.members, 4)
	assert.Equal(t, uint32(0), b.members[0].offset)
	// vec3 aligns to 16
	assert.Equal(t, 2, b.members[1].index)
	assert.Equal(t, uint32(16), b.members[1].offset)
	// vec2 packs right after the vec3
	assert.Equal(t, uint32(32), b.members[2].offset)
	assert.Equal(t, uint32(48), b.members[3].offset)
	assert.Equal(t, uint32(112), b.size)
}

func TestBlockLayoutOnlyResources(t *testing.T) {
	b := newBlockLayout([]hal.UniformParam{
		{Name: "diffuse", Type: hal.UNIFORM_TYPE_COMBINED_IMAGE_SAMPLER},
		{Name: "lights", Type: hal.UNIFORM_TYPE_STORAGE_BUFFER},
	})
	assert.Empty(t, b.members)
	assert.Equal(t, uint32(0), b.size)
}

func TestBlockEncode(t *testing.T) {
	params := []hal.UniformParam{
		{Name: "alpha", Type: hal.UNIFORM_TYPE_FLOAT},
		{Name: "enabled", Type: hal.UNIFORM_TYPE_BOOL},
		{Name: "color", Type: hal.UNIFORM_TYPE_FLOAT4},
		{Name: "weights", Type: hal.UNIFORM_TYPE_FLOAT_ARRAY},
	}
	b := newBlockLayout(params)
	uniforms := make([]*hal.UniformSet, len(params))
	for i, p := range params {
		uniforms[i] = hal.NewUniformSet(p)
	}
	uniforms[0].Uniform1f(0.5)
	uniforms[1].Uniform1b(true)
	uniforms[2].Uniform4f(math.NewVec4(1, 2, 3, 4))
	uniforms[3].Uniform1fv([]float32{7, 8})

	dst := make([]byte, b.size)
	b.encode(dst, uniforms)

	assert.Equal(t, float32(0.5), floatAt(dst, 0))
	assert.Equal(t, uint32(1), binary.LittleEndian.Uint32(dst[4:]))
	assert.Equal(t, float32(1), floatAt(dst, 16))
	assert.Equal(t, float32(4), floatAt(dst, 28))
	// array elements are vec4 strided
	assert.Equal(t, float32(7), floatAt(dst, 32))
	assert.Equal(t, float32(8), floatAt(dst, 48))
	assert.Equal(t, float32(0), floatAt(dst, 36))
}

func TestBlockEncodeClampsArrays(t *testing.T) {
	param := hal.UniformParam{Name: "values", Type: hal.UNIFORM_TYPE_INT_ARRAY}
	b := newBlockLayout([]hal.UniformParam{param})
	u := hal.NewUniformSet(param)
	values := make([]int32, MAX_BLOCK_ARRAY_LENGTH+4)
	for i := range values {
		values[i] = int32(i + 1)
	}
	u.Uniform1iv(values)

	dst := make([]byte, b.size)
	assert.NotPanics(t, func() { b.encode(dst, []*hal.UniformSet{u}) })
	last := 16 * uint32(MAX_BLOCK_ARRAY_LENGTH-1)
	assert.Equal(t, uint32(MAX_BLOCK_ARRAY_LENGTH), binary.LittleEndian.Uint32(dst[last:]))
}

func TestResourceBindingSkipsBlock(t *testing.T) {
	p := hal.UniformParam{Name: "diffuse", Type: hal.UNIFORM_TYPE_COMBINED_IMAGE_SAMPLER, BindingPoint: 0}
	assert.Equal(t, UNIFORM_BLOCK_BINDING+1, resourceBinding(p))
}

func TestAlign(t *testing.T) {
	assert.Equal(t, uint32(0), align(0, 16))
	assert.Equal(t, uint32(16), align(1, 16))
	assert.Equal(t, uint32(256), align(200, 256))
	assert.Equal(t, uint32(7), align(7, 0))
}
