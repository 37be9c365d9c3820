package object

import (
	"fmt"
	"sync/atomic"

	"github.com/spaghettifunk/octoon/engine/core"
)

/**
 * @brief Object is the base of every scene entity. It carries a unique id
 * assigned from its Context and a dirty bit per scene controller, so several
 * controllers can each consume a change once without coordinating.
 *
 * Embed it by value and call Init before use. An Object must not be copied
 * after Init.
 */
type Object struct {
	ctx        *Context
	id         uint64
	generation uint32
	kind       Kind
	released   atomic.Bool
	// low 32 bits: one dirty bit per controller id, high 32 bits: the
	// controller generation those bits belong to
	dirty atomic.Uint64
}

func packDirty(generation uint32, mask uint32) uint64 {
	return uint64(generation)<<32 | uint64(mask)
}

// dirtyMask returns the bits recorded for the controller generation of
// ctrl. Bits written under an older generation are meaningless after
// ResetControllerIDs, so the object counts as dirty for everyone.
func dirtyMask(state uint64, ctrl ControllerID) uint32 {
	if uint32(state>>32) != ctrl.generation {
		return allDirty
	}
	return uint32(state)
}

// NewObject returns an initialized standalone Object.
func NewObject(ctx *Context, kind Kind) *Object {
	o := &Object{}
	o.Init(ctx, kind)
	return o
}

/**
 * @brief Assigns the next object id of ctx. New objects start dirty for
 * every controller so the first traversal of each one picks them up.
 */
func (o *Object) Init(ctx *Context, kind Kind) {
	if ctx == nil {
		panic(fmt.Errorf("object initialized without a context: %w", core.ErrInvalidDesc))
	}
	o.ctx = ctx
	o.kind = kind
	o.id, o.generation = ctx.acquireObject()
	o.released.Store(false)
	o.dirty.Store(packDirty(ctx.controllerGeneration(), allDirty))
}

func (o *Object) Base() *Object {
	return o
}

func (o *Object) Kind() Kind {
	return o.kind
}

func (o *Object) ID() uint64 {
	return o.id
}

func (o *Object) Generation() uint32 {
	return o.generation
}

func (o *Object) Context() *Context {
	return o.ctx
}

// IsDirty reports whether the object changed since ctrl last cleared it.
func (o *Object) IsDirty(ctrl ControllerID) bool {
	o.check(ctrl)
	return dirtyMask(o.dirty.Load(), ctrl)&ctrl.bit() != 0
}

// MarkDirty flags the object as changed for every controller.
func (o *Object) MarkDirty() {
	for {
		old := o.dirty.Load()
		if o.dirty.CompareAndSwap(old, packDirty(uint32(old>>32), allDirty)) {
			return
		}
	}
}

// ClearDirty consumes the change for ctrl only. Other controllers keep
// seeing the object as dirty until they clear it themselves.
func (o *Object) ClearDirty(ctrl ControllerID) {
	o.check(ctrl)
	for {
		old := o.dirty.Load()
		mask := dirtyMask(old, ctrl) &^ ctrl.bit()
		if o.dirty.CompareAndSwap(old, packDirty(ctrl.generation, mask)) {
			return
		}
	}
}

/**
 * @brief Toggle form of MarkDirty/ClearDirty. Setting dirty affects all
 * controllers, clearing affects only ctrl.
 */
func (o *Object) SetDirtyFor(ctrl ControllerID, dirty bool) {
	if dirty {
		o.check(ctrl)
		o.MarkDirty()
		return
	}
	o.ClearDirty(ctrl)
}

// Release gives the id back to the context. Calling it twice is a no-op.
func (o *Object) Release() {
	if o.ctx == nil || !o.released.CompareAndSwap(false, true) {
		return
	}
	o.ctx.releaseObject()
}

func (o *Object) IsReleased() bool {
	return o.released.Load()
}

func (o *Object) check(ctrl ControllerID) {
	if o.ctx == nil {
		panic(fmt.Errorf("object used before Init: %w", core.ErrInvalidDesc))
	}
	if o.released.Load() || o.generation != o.ctx.objectGeneration() {
		err := fmt.Errorf("object %d (generation %d) used after release: %w", o.id, o.generation, core.ErrStaleGeneration)
		core.LogError(err.Error())
		panic(err)
	}
	o.ctx.checkController(ctrl)
}
