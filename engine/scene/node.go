package scene

import (
	"github.com/spaghettifunk/octoon/engine/math"
	"github.com/spaghettifunk/octoon/engine/object"
)

/**
 * @brief node is the placement shared by cameras, lights and geometries: a
 * world transform, the render layer and visibility. Every setter marks the
 * object dirty.
 */
type node struct {
	object.Object

	transform math.Mat4
	layer     uint8
	visible   bool
}

func (n *node) initNode(ctx *object.Context, kind object.Kind) {
	n.Init(ctx, kind)
	n.transform = math.NewMat4Identity()
	n.visible = true
}

// Transform returns the local-to-world matrix.
func (n *node) Transform() math.Mat4 {
	return n.transform
}

func (n *node) SetTransform(m math.Mat4) {
	n.transform = m
	n.MarkDirty()
}

// Translate returns the world position.
func (n *node) Translate() math.Vec3 {
	return n.transform.Translation()
}

func (n *node) SetTranslate(position math.Vec3) {
	n.transform.Data[12] = position.X
	n.transform.Data[13] = position.Y
	n.transform.Data[14] = position.Z
	n.MarkDirty()
}

// Forward returns the world direction of the local -Z axis.
func (n *node) Forward() math.Vec3 {
	return n.transform.Forward()
}

func (n *node) Layer() uint8 {
	return n.layer
}

func (n *node) SetLayer(layer uint8) {
	n.layer = layer
	n.MarkDirty()
}

func (n *node) Visible() bool {
	return n.visible
}

func (n *node) SetVisible(visible bool) {
	n.visible = visible
	n.MarkDirty()
}
