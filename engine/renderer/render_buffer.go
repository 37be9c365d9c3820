package renderer

import (
	"encoding/binary"
	"fmt"
	gomath "math"

	"github.com/spaghettifunk/octoon/engine/core"
	"github.com/spaghettifunk/octoon/engine/hal"
	"github.com/spaghettifunk/octoon/engine/math"
	"github.com/spaghettifunk/octoon/engine/scene"
)

/** @brief Bytes of one interleaved vertex: position, normal, two texcoords. */
const VERTEX_STRIDE uint32 = 40

const (
	vertexOffsetPosition  uint32 = 0
	vertexOffsetNormal    uint32 = 12
	vertexOffsetTexcoord0 uint32 = 24
	vertexOffsetTexcoord1 uint32 = 32
)

// VertexLayoutDesc is the input layout every RenderBuffer is encoded with.
func VertexLayoutDesc() hal.GraphicsInputLayoutDesc {
	return hal.GraphicsInputLayoutDesc{
		Attributes: []hal.VertexAttribute{
			{Semantic: "POSITION", SemanticIndex: 0, Format: hal.FORMAT_R32G32B32_SFLOAT, Offset: vertexOffsetPosition},
			{Semantic: "NORMAL", SemanticIndex: 0, Format: hal.FORMAT_R32G32B32_SFLOAT, Offset: vertexOffsetNormal},
			{Semantic: "TEXCOORD", SemanticIndex: 0, Format: hal.FORMAT_R32G32_SFLOAT, Offset: vertexOffsetTexcoord0},
			{Semantic: "TEXCOORD", SemanticIndex: 1, Format: hal.FORMAT_R32G32_SFLOAT, Offset: vertexOffsetTexcoord1},
		},
		Bindings: []hal.VertexBinding{
			{Slot: 0, Stride: VERTEX_STRIDE, StepMode: hal.VERTEX_STEP_PER_VERTEX},
		},
	}
}

/**
 * @brief GPU copy of a mesh: one interleaved vertex buffer and one 32-bit
 * index buffer per subset. The buffers are built on the first Bind after
 * creation or SetMesh; UpdateData rebuilds them right away. There are no
 * partial updates.
 */
type RenderBuffer struct {
	device hal.GraphicsDevice
	mesh   *scene.Mesh

	vertices    hal.GraphicsData
	indices     []hal.GraphicsData
	numVertices uint32
	numIndices  []uint32
	stale       bool
}

func NewRenderBuffer(device hal.GraphicsDevice, mesh *scene.Mesh) *RenderBuffer {
	return &RenderBuffer{device: device, mesh: mesh, stale: true}
}

func (b *RenderBuffer) Mesh() *scene.Mesh {
	return b.mesh
}

// SetMesh replaces the source mesh. The buffers are rebuilt on the next Bind.
func (b *RenderBuffer) SetMesh(mesh *scene.Mesh) {
	b.mesh = mesh
	b.stale = true
}

// UpdateData re-encodes every vertex and index of mesh now.
func (b *RenderBuffer) UpdateData(mesh *scene.Mesh) error {
	b.mesh = mesh
	return b.rebuild()
}

func (b *RenderBuffer) NumVertices() uint32 {
	return b.numVertices
}

func (b *RenderBuffer) NumSubsets() int {
	return len(b.numIndices)
}

// NumIndices returns the index count of subset, 0 when the subset is not indexed.
func (b *RenderBuffer) NumIndices(subset int) uint32 {
	if subset < 0 || subset >= len(b.numIndices) {
		return 0
	}
	return b.numIndices[subset]
}

/**
 * @brief Binds the vertex buffer and the index buffer of subset to ctx,
 * rebuilding first when the mesh changed. Binding an empty mesh binds
 * nothing.
 */
func (b *RenderBuffer) Bind(ctx hal.GraphicsContext, subset int) error {
	if b.stale {
		if err := b.rebuild(); err != nil {
			return err
		}
	}
	if b.vertices == nil {
		return nil
	}
	ctx.SetVertexBufferData(0, b.vertices, 0)
	if subset >= 0 && subset < len(b.indices) && b.indices[subset] != nil {
		ctx.SetIndexBufferData(b.indices[subset], 0, hal.INDEX_FORMAT_UINT32)
	}
	return nil
}

// Draw binds subset and issues an indexed draw when the subset has indices.
func (b *RenderBuffer) Draw(ctx hal.GraphicsContext, subset int) error {
	if err := b.Bind(ctx, subset); err != nil {
		return err
	}
	if b.numVertices == 0 {
		return nil
	}
	if n := b.NumIndices(subset); n > 0 {
		ctx.DrawIndexed(n, 1, 0, 0, 0)
		return nil
	}
	ctx.Draw(b.numVertices, 1, 0, 0)
	return nil
}

func (b *RenderBuffer) Close() {
	if b.vertices != nil {
		b.vertices.Close()
		b.vertices = nil
	}
	for _, data := range b.indices {
		if data != nil {
			data.Close()
		}
	}
	b.indices = nil
	b.numIndices = nil
	b.numVertices = 0
}

func (b *RenderBuffer) rebuild() error {
	b.Close()
	b.stale = false
	if b.mesh == nil || b.mesh.NumVertices() == 0 {
		return nil
	}
	name := b.mesh.Name()

	stream := encodeVertices(b.mesh)
	vertices, err := b.device.CreateGraphicsData(hal.GraphicsDataDesc{
		Name:   name + ".vertices",
		Type:   hal.DATA_TYPE_STORAGE_VERTEX_BUFFER,
		Usage:  hal.USAGE_WRITE_BIT | hal.USAGE_IMMUTABLE_STORAGE,
		Stream: stream,
		Size:   uint64(len(stream)),
	})
	if err != nil {
		err = fmt.Errorf("render buffer '%s': %w", name, err)
		core.LogError(err.Error())
		return err
	}
	b.vertices = vertices
	b.numVertices = uint32(b.mesh.NumVertices())

	subsets := b.mesh.NumSubsets()
	b.indices = make([]hal.GraphicsData, subsets)
	b.numIndices = make([]uint32, subsets)
	for i := 0; i < subsets; i++ {
		indices := b.mesh.Indices(i)
		if len(indices) == 0 {
			continue
		}
		stream := encodeIndices(indices)
		data, err := b.device.CreateGraphicsData(hal.GraphicsDataDesc{
			Name:   fmt.Sprintf("%s.indices.%d", name, i),
			Type:   hal.DATA_TYPE_STORAGE_INDEX_BUFFER,
			Usage:  hal.USAGE_WRITE_BIT | hal.USAGE_IMMUTABLE_STORAGE,
			Stream: stream,
			Size:   uint64(len(stream)),
		})
		if err != nil {
			b.Close()
			err = fmt.Errorf("render buffer '%s' subset %d: %w", name, i, err)
			core.LogError(err.Error())
			return err
		}
		b.indices[i] = data
		b.numIndices[i] = uint32(len(indices))
	}
	return nil
}

// encodeVertices interleaves the mesh attributes. Missing normals and
// texcoords are written as zeros.
func encodeVertices(mesh *scene.Mesh) []byte {
	positions := mesh.Vertices()
	normals := mesh.Normals()
	uv0 := mesh.Texcoords(0)
	uv1 := mesh.Texcoords(1)

	buf := make([]byte, len(positions)*int(VERTEX_STRIDE))
	for i, p := range positions {
		v := buf[i*int(VERTEX_STRIDE):]
		putVec3(v[vertexOffsetPosition:], p)
		if i < len(normals) {
			putVec3(v[vertexOffsetNormal:], normals[i])
		}
		if i < len(uv0) {
			putVec2(v[vertexOffsetTexcoord0:], uv0[i])
		}
		if i < len(uv1) {
			putVec2(v[vertexOffsetTexcoord1:], uv1[i])
		}
	}
	return buf
}

func encodeIndices(indices []uint32) []byte {
	buf := make([]byte, len(indices)*4)
	for i, index := range indices {
		binary.LittleEndian.PutUint32(buf[i*4:], index)
	}
	return buf
}

func putFloat(buf []byte, f float32) {
	binary.LittleEndian.PutUint32(buf, gomath.Float32bits(f))
}

func putVec2(buf []byte, v math.Vec2) {
	putFloat(buf[0:], v.X)
	putFloat(buf[4:], v.Y)
}

func putVec3(buf []byte, v math.Vec3) {
	putFloat(buf[0:], v.X)
	putFloat(buf[4:], v.Y)
	putFloat(buf[8:], v.Z)
}

func putVec4(buf []byte, v math.Vec4) {
	putFloat(buf[0:], v.X)
	putFloat(buf[4:], v.Y)
	putFloat(buf[8:], v.Z)
	putFloat(buf[12:], v.W)
}
