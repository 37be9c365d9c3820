package vulkan

import (
	"encoding/binary"
	gomath "math"

	"github.com/spaghettifunk/octoon/engine/hal"
)

/** @brief Elements reserved for each array uniform in the uniform block. */
const MAX_BLOCK_ARRAY_LENGTH = 16

/** @brief Binding of the uniform block holding every plain value of a set. */
const UNIFORM_BLOCK_BINDING uint32 = 0

type blockMember struct {
	index  int
	offset uint32
	typ    hal.UniformType
}

/**
 * @brief std140 placement of the plain-value uniforms of a descriptor set
 * layout, in declaration order. Resource uniforms are not part of the block.
 */
type blockLayout struct {
	members []blockMember
	size    uint32
}

// std140 returns alignment and size of one uniform of type t.
func std140(t hal.UniformType) (uint32, uint32) {
	switch t {
	case hal.UNIFORM_TYPE_BOOL, hal.UNIFORM_TYPE_INT, hal.UNIFORM_TYPE_UINT, hal.UNIFORM_TYPE_FLOAT:
		return 4, 4
	case hal.UNIFORM_TYPE_INT2, hal.UNIFORM_TYPE_FLOAT2:
		return 8, 8
	case hal.UNIFORM_TYPE_INT3, hal.UNIFORM_TYPE_FLOAT3:
		return 16, 12
	case hal.UNIFORM_TYPE_INT4, hal.UNIFORM_TYPE_FLOAT4:
		return 16, 16
	case hal.UNIFORM_TYPE_FLOAT3X3:
		return 16, 48
	case hal.UNIFORM_TYPE_FLOAT4X4:
		return 16, 64
	case hal.UNIFORM_TYPE_INT_ARRAY, hal.UNIFORM_TYPE_FLOAT_ARRAY, hal.UNIFORM_TYPE_FLOAT3_ARRAY, hal.UNIFORM_TYPE_FLOAT4_ARRAY:
		// array elements are padded to a vec4
		return 16, 16 * MAX_BLOCK_ARRAY_LENGTH
	case hal.UNIFORM_TYPE_FLOAT4X4_ARRAY:
		return 16, 64 * MAX_BLOCK_ARRAY_LENGTH
	}
	return 0, 0
}

func align(v, a uint32) uint32 {
	if a == 0 {
		return v
	}
	return (v + a - 1) / a * a
}

func newBlockLayout(params []hal.UniformParam) blockLayout {
	var b blockLayout
	for i, p := range params {
		if p.Type.IsResource() {
			continue
		}
		a, size := std140(p.Type)
		if size == 0 {
			continue
		}
		b.size = align(b.size, a)
		b.members = append(b.members, blockMember{index: i, offset: b.size, typ: p.Type})
		b.size += size
	}
	b.size = align(b.size, 16)
	return b
}

// encode writes the values of uniforms into dst, which must hold b.size bytes.
func (b *blockLayout) encode(dst []byte, uniforms []*hal.UniformSet) {
	le := binary.LittleEndian
	putF := func(off uint32, v float32) { le.PutUint32(dst[off:], gomath.Float32bits(v)) }
	putI := func(off uint32, v int32) { le.PutUint32(dst[off:], uint32(v)) }

	for _, m := range b.members {
		if m.index >= len(uniforms) {
			continue
		}
		u := uniforms[m.index]
		off := m.offset
		switch m.typ {
		case hal.UNIFORM_TYPE_BOOL:
			v := int32(0)
			if u.Bool() {
				v = 1
			}
			putI(off, v)
		case hal.UNIFORM_TYPE_INT, hal.UNIFORM_TYPE_INT2, hal.UNIFORM_TYPE_INT3, hal.UNIFORM_TYPE_INT4:
			n := uint32(m.typ-hal.UNIFORM_TYPE_INT) + 1
			iv := u.Int4()
			for i := uint32(0); i < n; i++ {
				putI(off+4*i, iv[i])
			}
		case hal.UNIFORM_TYPE_UINT:
			le.PutUint32(dst[off:], u.UInt())
		case hal.UNIFORM_TYPE_FLOAT:
			putF(off, u.Float())
		case hal.UNIFORM_TYPE_FLOAT2:
			v := u.Float2()
			putF(off, v.X)
			putF(off+4, v.Y)
		case hal.UNIFORM_TYPE_FLOAT3:
			v := u.Float3()
			putF(off, v.X)
			putF(off+4, v.Y)
			putF(off+8, v.Z)
		case hal.UNIFORM_TYPE_FLOAT4:
			v := u.Float4()
			putF(off, v.X)
			putF(off+4, v.Y)
			putF(off+8, v.Z)
			putF(off+12, v.W)
		case hal.UNIFORM_TYPE_FLOAT3X3:
			// three rows padded to vec4, the fourth column of each is zero after Mat3
			mat := u.Float3x3()
			for i := uint32(0); i < 12; i++ {
				putF(off+4*i, mat.Data[i])
			}
		case hal.UNIFORM_TYPE_FLOAT4X4:
			mat := u.Float4x4()
			for i := uint32(0); i < 16; i++ {
				putF(off+4*i, mat.Data[i])
			}
		case hal.UNIFORM_TYPE_INT_ARRAY:
			for i, v := range clampArray(u.IntArray()) {
				putI(off+16*uint32(i), v)
			}
		case hal.UNIFORM_TYPE_FLOAT_ARRAY:
			for i, v := range clampArray(u.FloatArray()) {
				putF(off+16*uint32(i), v)
			}
		case hal.UNIFORM_TYPE_FLOAT3_ARRAY:
			for i, v := range clampArray(u.Float3Array()) {
				base := off + 16*uint32(i)
				putF(base, v.X)
				putF(base+4, v.Y)
				putF(base+8, v.Z)
			}
		case hal.UNIFORM_TYPE_FLOAT4_ARRAY:
			for i, v := range clampArray(u.Float4Array()) {
				base := off + 16*uint32(i)
				putF(base, v.X)
				putF(base+4, v.Y)
				putF(base+8, v.Z)
				putF(base+12, v.W)
			}
		case hal.UNIFORM_TYPE_FLOAT4X4_ARRAY:
			for i, v := range clampArray(u.Float4x4Array()) {
				for j := uint32(0); j < 16; j++ {
					putF(off+64*uint32(i)+4*j, v.Data[j])
				}
			}
		}
	}
}

func clampArray[T any](v []T) []T {
	if len(v) > MAX_BLOCK_ARRAY_LENGTH {
		return v[:MAX_BLOCK_ARRAY_LENGTH]
	}
	return v
}

// resourceBinding is the descriptor binding of the resource uniform param.
// Binding UNIFORM_BLOCK_BINDING is taken by the block.
func resourceBinding(p hal.UniformParam) uint32 {
	return p.BindingPoint + 1
}
