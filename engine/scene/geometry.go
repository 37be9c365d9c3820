package scene

import (
	"github.com/spaghettifunk/octoon/engine/material"
	"github.com/spaghettifunk/octoon/engine/object"
)

/**
 * @brief A Geometry draws a mesh with one material per mesh subset. Subsets
 * past the last material reuse the last one. Geometries with a render
 * priority below 1 are opaque and draw before the transparent ones.
 */
type Geometry struct {
	node

	name          string
	mesh          *Mesh
	materials     []*material.Material
	priority      int32
	castShadow    bool
	receiveShadow bool
	selected      bool
}

func NewGeometry(ctx *object.Context, name string, mesh *Mesh, materials ...*material.Material) *Geometry {
	g := &Geometry{
		name:          name,
		mesh:          mesh,
		materials:     materials,
		castShadow:    true,
		receiveShadow: true,
	}
	g.initNode(ctx, object.KIND_GEOMETRY)
	return g
}

func (g *Geometry) Name() string {
	return g.name
}

func (g *Geometry) Mesh() *Mesh {
	return g.mesh
}

func (g *Geometry) SetMesh(mesh *Mesh) {
	g.mesh = mesh
	g.MarkDirty()
}

func (g *Geometry) Materials() []*material.Material {
	return g.materials
}

func (g *Geometry) SetMaterials(materials ...*material.Material) {
	g.materials = materials
	g.MarkDirty()
}

// Material returns the material of subset, or nil when there is none.
func (g *Geometry) Material(subset int) *material.Material {
	if len(g.materials) == 0 || subset < 0 {
		return nil
	}
	if subset >= len(g.materials) {
		return g.materials[len(g.materials)-1]
	}
	return g.materials[subset]
}

func (g *Geometry) RenderPriority() int32 {
	return g.priority
}

func (g *Geometry) SetRenderPriority(priority int32) {
	g.priority = priority
	g.MarkDirty()
}

func (g *Geometry) IsOpaque() bool {
	return g.priority < 1
}

func (g *Geometry) CastShadow() bool {
	return g.castShadow
}

func (g *Geometry) SetCastShadow(enable bool) {
	g.castShadow = enable
	g.MarkDirty()
}

func (g *Geometry) ReceiveShadow() bool {
	return g.receiveShadow
}

func (g *Geometry) SetReceiveShadow(enable bool) {
	g.receiveShadow = enable
	g.MarkDirty()
}

// Selected geometries are outlined by the selector pass.
func (g *Geometry) Selected() bool {
	return g.selected
}

func (g *Geometry) SetSelected(selected bool) {
	g.selected = selected
	g.MarkDirty()
}

// IsDirtyFor reports whether the geometry, its mesh or one of its materials
// changed since ctrl last cleared them.
func (g *Geometry) IsDirtyFor(ctrl object.ControllerID) bool {
	if g.IsDirty(ctrl) || (g.mesh != nil && g.mesh.IsDirty(ctrl)) {
		return true
	}
	for _, m := range g.materials {
		if m != nil && m.IsDirty(ctrl) {
			return true
		}
	}
	return false
}
