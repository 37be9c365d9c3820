package object

import (
	"testing"

	"github.com/spaghettifunk/octoon/engine/core"
	"github.com/stretchr/testify/assert"
)

type testNode struct {
	Object
	name string
}

func newTestNode(ctx *Context, name string) *testNode {
	n := &testNode{name: name}
	n.Init(ctx, KIND_GEOMETRY)
	return n
}

func TestObjectIDsAreMonotonic(t *testing.T) {
	ctx := NewContext()
	for want := uint64(0); want < 5; want++ {
		assert.Equal(t, want, NewObject(ctx, KIND_MESH).ID())
	}
}

func TestNewObjectIsDirtyForEveryController(t *testing.T) {
	ctx := NewContext()
	a, b := ctx.NextControllerID(), ctx.NextControllerID()
	o := NewObject(ctx, KIND_MESH)
	assert.True(t, o.IsDirty(a))
	assert.True(t, o.IsDirty(b))
}

func TestDirtyBitsAreIndependent(t *testing.T) {
	ctx := NewContext()
	a, b := ctx.NextControllerID(), ctx.NextControllerID()
	o := NewObject(ctx, KIND_MESH)
	o.ClearDirty(a)
	o.ClearDirty(b)

	o.SetDirtyFor(a, true)
	assert.True(t, o.IsDirty(b))

	o.SetDirtyFor(a, false)
	assert.False(t, o.IsDirty(a))
	assert.True(t, o.IsDirty(b))

	o.ClearDirty(b)
	assert.False(t, o.IsDirty(b))

	o.MarkDirty()
	assert.True(t, o.IsDirty(a))
	assert.True(t, o.IsDirty(b))
}

func TestReleasedControllerPanics(t *testing.T) {
	ctx := NewContext()
	a := ctx.NextControllerID()
	o := NewObject(ctx, KIND_MESH)
	ctx.ReleaseControllerID(a)
	panicsWith(t, core.ErrInvalidController, func() { o.IsDirty(a) })
	panicsWith(t, core.ErrInvalidController, func() { o.ClearDirty(a) })
}

func TestReleasedObjectPanics(t *testing.T) {
	ctx := NewContext()
	a := ctx.NextControllerID()
	o := NewObject(ctx, KIND_MESH)
	o.Release()
	assert.True(t, o.IsReleased())
	panicsWith(t, core.ErrStaleGeneration, func() { o.IsDirty(a) })
}

func TestKindDowncast(t *testing.T) {
	ctx := NewContext()
	var obj SceneObject = newTestNode(ctx, "cube")

	assert.True(t, IsKind(obj, KIND_GEOMETRY))
	assert.False(t, IsKind(obj, KIND_CAMERA))
	assert.False(t, IsKind(nil, KIND_CAMERA))
	assert.Equal(t, "geometry", obj.Kind().String())

	n, ok := As[*testNode](obj)
	assert.True(t, ok)
	assert.Equal(t, "cube", n.name)
	assert.Same(t, &n.Object, obj.Base())
}
