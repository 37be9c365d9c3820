package scene

import (
	"fmt"

	"github.com/chewxy/math32"
	"github.com/spaghettifunk/octoon/engine/core"
	"github.com/spaghettifunk/octoon/engine/math"
	"github.com/spaghettifunk/octoon/engine/object"
)

/** @brief Number of texture coordinate channels a mesh can carry. */
const MAX_TEXCOORDS int = 2

/**
 * @brief Vertex streams plus one index list per subset. Each subset is drawn
 * with the material of the same index on the geometry that references the
 * mesh. Changing any stream marks the mesh dirty so render buffers rebuild.
 */
type Mesh struct {
	object.Object

	name      string
	vertices  []math.Vec3
	normals   []math.Vec3
	texcoords [MAX_TEXCOORDS][]math.Vec2
	indices   [][]uint32
	bounds    math.Extents3D
}

func NewMesh(ctx *object.Context, name string) *Mesh {
	m := &Mesh{name: name}
	m.Init(ctx, object.KIND_MESH)
	return m
}

func (m *Mesh) Name() string {
	return m.name
}

func (m *Mesh) NumVertices() int {
	return len(m.vertices)
}

func (m *Mesh) NumSubsets() int {
	return len(m.indices)
}

func (m *Mesh) Vertices() []math.Vec3 {
	return m.vertices
}

func (m *Mesh) SetVertices(vertices []math.Vec3) {
	m.vertices = vertices
	m.computeBounds()
	m.MarkDirty()
}

func (m *Mesh) Normals() []math.Vec3 {
	return m.normals
}

func (m *Mesh) SetNormals(normals []math.Vec3) {
	m.normals = normals
	m.MarkDirty()
}

// Texcoords returns channel n, or nil when the channel is out of range.
func (m *Mesh) Texcoords(n int) []math.Vec2 {
	if n < 0 || n >= MAX_TEXCOORDS {
		return nil
	}
	return m.texcoords[n]
}

func (m *Mesh) SetTexcoords(n int, texcoords []math.Vec2) error {
	if n < 0 || n >= MAX_TEXCOORDS {
		err := fmt.Errorf("mesh '%s': texcoord channel %d out of range: %w", m.name, n, core.ErrInvalidDesc)
		core.LogError(err.Error())
		return err
	}
	m.texcoords[n] = texcoords
	m.MarkDirty()
	return nil
}

// Indices returns the index list of subset n, or nil.
func (m *Mesh) Indices(n int) []uint32 {
	if n < 0 || n >= len(m.indices) {
		return nil
	}
	return m.indices[n]
}

// SetIndices replaces the indices of subset n, adding empty subsets up to n.
func (m *Mesh) SetIndices(n int, indices []uint32) {
	for len(m.indices) <= n {
		m.indices = append(m.indices, nil)
	}
	m.indices[n] = indices
	m.MarkDirty()
}

// NumIndices returns the summed index count of every subset.
func (m *Mesh) NumIndices() int {
	n := 0
	for _, subset := range m.indices {
		n += len(subset)
	}
	return n
}

func (m *Mesh) BoundingBox() math.Extents3D {
	return m.bounds
}

func (m *Mesh) Clear() {
	m.vertices = nil
	m.normals = nil
	m.texcoords = [MAX_TEXCOORDS][]math.Vec2{}
	m.indices = nil
	m.bounds = math.Extents3D{}
	m.MarkDirty()
}

/**
 * @brief Rebuilds the normals by averaging the face normals around each
 * vertex. Triangles of every subset contribute.
 */
func (m *Mesh) ComputeVertexNormals() {
	normals := make([]math.Vec3, len(m.vertices))
	for _, subset := range m.indices {
		for i := 0; i+2 < len(subset); i += 3 {
			a, b, c := subset[i], subset[i+1], subset[i+2]
			if int(a) >= len(m.vertices) || int(b) >= len(m.vertices) || int(c) >= len(m.vertices) {
				continue
			}
			edge1 := m.vertices[b].Sub(m.vertices[a])
			edge2 := m.vertices[c].Sub(m.vertices[a])
			face := edge1.Cross(edge2)
			normals[a] = normals[a].Add(face)
			normals[b] = normals[b].Add(face)
			normals[c] = normals[c].Add(face)
		}
	}
	for i := range normals {
		if normals[i].Length() > math.K_FLOAT_EPSILON {
			normals[i] = normals[i].Normalized()
		}
	}
	m.normals = normals
	m.MarkDirty()
}

func (m *Mesh) computeBounds() {
	if len(m.vertices) == 0 {
		m.bounds = math.Extents3D{}
		return
	}
	lo, hi := m.vertices[0], m.vertices[0]
	for _, v := range m.vertices[1:] {
		lo = math.NewVec3(min(lo.X, v.X), min(lo.Y, v.Y), min(lo.Z, v.Z))
		hi = math.NewVec3(max(hi.X, v.X), max(hi.Y, v.Y), max(hi.Z, v.Z))
	}
	m.bounds = math.Extents3D{Min: lo, Max: hi}
}

/**
 * @brief A width x height quad in the XY plane facing +Z, centered on the
 * origin. PlaneMesh(2, 2) covers clip space and is the screen quad.
 */
func PlaneMesh(ctx *object.Context, width, height float32) *Mesh {
	hw, hh := width*0.5, height*0.5
	m := NewMesh(ctx, "plane")
	m.vertices = []math.Vec3{
		math.NewVec3(-hw, -hh, 0),
		math.NewVec3(hw, -hh, 0),
		math.NewVec3(-hw, hh, 0),
		math.NewVec3(hw, hh, 0),
	}
	n := math.NewVec3(0, 0, 1)
	m.normals = []math.Vec3{n, n, n, n}
	m.texcoords[0] = []math.Vec2{
		math.NewVec2(0, 1),
		math.NewVec2(1, 1),
		math.NewVec2(0, 0),
		math.NewVec2(1, 0),
	}
	m.indices = [][]uint32{{0, 1, 2, 2, 1, 3}}
	m.computeBounds()
	return m
}

// CubeMesh is an axis aligned box centered on the origin with one subset and
// four vertices per face so every face has flat normals.
func CubeMesh(ctx *object.Context, width, height, depth float32) *Mesh {
	hw, hh, hd := width*0.5, height*0.5, depth*0.5
	faces := []struct {
		normal    math.Vec3
		right, up math.Vec3
		extent    float32
		halfR     float32
		halfU     float32
	}{
		{math.NewVec3(1, 0, 0), math.NewVec3(0, 0, -1), math.NewVec3(0, 1, 0), hw, hd, hh},
		{math.NewVec3(-1, 0, 0), math.NewVec3(0, 0, 1), math.NewVec3(0, 1, 0), hw, hd, hh},
		{math.NewVec3(0, 1, 0), math.NewVec3(1, 0, 0), math.NewVec3(0, 0, -1), hh, hw, hd},
		{math.NewVec3(0, -1, 0), math.NewVec3(1, 0, 0), math.NewVec3(0, 0, 1), hh, hw, hd},
		{math.NewVec3(0, 0, 1), math.NewVec3(1, 0, 0), math.NewVec3(0, 1, 0), hd, hw, hh},
		{math.NewVec3(0, 0, -1), math.NewVec3(-1, 0, 0), math.NewVec3(0, 1, 0), hd, hw, hh},
	}

	m := NewMesh(ctx, "cube")
	indices := make([]uint32, 0, 36)
	for _, f := range faces {
		base := uint32(len(m.vertices))
		center := f.normal.MulScalar(f.extent)
		r := f.right.MulScalar(f.halfR)
		u := f.up.MulScalar(f.halfU)
		m.vertices = append(m.vertices,
			center.Sub(r).Sub(u),
			center.Add(r).Sub(u),
			center.Sub(r).Add(u),
			center.Add(r).Add(u),
		)
		for i := 0; i < 4; i++ {
			m.normals = append(m.normals, f.normal)
		}
		m.texcoords[0] = append(m.texcoords[0],
			math.NewVec2(0, 1), math.NewVec2(1, 1), math.NewVec2(0, 0), math.NewVec2(1, 0))
		indices = append(indices, base, base+1, base+2, base+2, base+1, base+3)
	}
	m.indices = [][]uint32{indices}
	m.computeBounds()
	return m
}

// SphereMesh is a UV sphere. Segments below 3 (width) or 2 (height) are raised.
func SphereMesh(ctx *object.Context, radius float32, widthSegments, heightSegments uint32) *Mesh {
	widthSegments = max(widthSegments, 3)
	heightSegments = max(heightSegments, 2)

	m := NewMesh(ctx, "sphere")
	for y := uint32(0); y <= heightSegments; y++ {
		v := float32(y) / float32(heightSegments)
		theta := v * math.K_PI
		for x := uint32(0); x <= widthSegments; x++ {
			u := float32(x) / float32(widthSegments)
			phi := u * 2 * math.K_PI
			n := math.NewVec3(
				-math32.Cos(phi)*math32.Sin(theta),
				math32.Cos(theta),
				math32.Sin(phi)*math32.Sin(theta),
			)
			m.vertices = append(m.vertices, n.MulScalar(radius))
			m.normals = append(m.normals, n)
			m.texcoords[0] = append(m.texcoords[0], math.NewVec2(u, v))
		}
	}

	stride := widthSegments + 1
	indices := make([]uint32, 0, widthSegments*heightSegments*6)
	for y := uint32(0); y < heightSegments; y++ {
		for x := uint32(0); x < widthSegments; x++ {
			a := y*stride + x
			b := a + stride
			if y != 0 {
				indices = append(indices, a, b, a+1)
			}
			if y != heightSegments-1 {
				indices = append(indices, a+1, b, b+1)
			}
		}
	}
	m.indices = [][]uint32{indices}
	m.computeBounds()
	return m
}
