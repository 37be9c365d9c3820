package object

import (
	"fmt"
	"sync"

	"github.com/spaghettifunk/octoon/engine/core"
)

// MaxDirtyBits is the maximum number of concurrently issued scene controller ids.
const MaxDirtyBits = 16

const allDirty uint32 = 1<<MaxDirtyBits - 1

// ControllerID is a scene controller's view of dirty state. It is only valid
// for the Context that issued it and until it is released.
type ControllerID struct {
	ctx        *Context
	id         uint8
	generation uint32
}

func (c ControllerID) ID() int {
	return int(c.id)
}

func (c ControllerID) Generation() uint32 {
	return c.generation
}

func (c ControllerID) bit() uint32 {
	return 1 << c.id
}

/**
 * @brief Context owns the identifier state of one scene graph: the object id
 * counter and the scene controller id counter. Independent contexts share
 * nothing, so tests can run them in parallel.
 */
type Context struct {
	mu sync.Mutex

	objects     *core.Sequence
	controllers *core.Sequence

	// bit i is set while controller id i is issued and not released
	liveControllers uint32

	active    ControllerID
	hasActive bool
}

func NewContext() *Context {
	return &Context{
		objects:     core.NewSequence(0),
		controllers: core.NewSequence(MaxDirtyBits),
	}
}

/**
 * @brief Issues the next controller id. Ids start at 0 and increase strictly
 * until ResetControllerIDs. Running out of ids is a programming error and panics.
 */
func (c *Context) NextControllerID() ControllerID {
	c.mu.Lock()
	defer c.mu.Unlock()

	id, err := c.controllers.Acquire()
	if err != nil {
		err = fmt.Errorf("cannot issue more than %d scene controller ids: %w", MaxDirtyBits, core.ErrControllerOverflow)
		core.LogError(err.Error())
		panic(err)
	}
	c.liveControllers |= 1 << id
	return ControllerID{ctx: c, id: uint8(id), generation: c.controllers.Generation()}
}

/**
 * @brief Retires a controller id. The id is not handed out again until the
 * counter is reset.
 */
func (c *Context) ReleaseControllerID(ctrl ControllerID) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.checkControllerLocked(ctrl)
	if c.hasActive && c.active == ctrl {
		c.hasActive = false
	}
	c.liveControllers &^= ctrl.bit()
	// the sequence cannot underflow, the live mask above guarantees it
	_ = c.controllers.Release()
}

/**
 * @brief Rewinds the controller counter to 0. Every issued id must have been
 * released first; that case panics. Objects that outlive the reset report
 * dirty to the new controllers until each one clears them.
 */
func (c *Context) ResetControllerIDs() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.controllers.Reset(); err != nil {
		err = fmt.Errorf("%s: %w", err.Error(), core.ErrLiveControllers)
		core.LogError(err.Error())
		panic(err)
	}
}

/**
 * @brief Rewinds the object counter to 0. Objects from the previous
 * generation must all be released first; that case panics.
 */
func (c *Context) ResetObjectIDs() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.objects.Reset(); err != nil {
		err = fmt.Errorf("%s: %w", err.Error(), core.ErrLiveObjects)
		core.LogError(err.Error())
		panic(err)
	}
}

// LiveControllers returns how many controller ids are issued and not released.
func (c *Context) LiveControllers() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return int(c.controllers.Live())
}

func (c *Context) LiveObjects() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return int(c.objects.Live())
}

/**
 * @brief Marks ctrl as the one controller currently traversing the scene.
 * Only code that wants the single-traversal discipline needs this; dirty
 * calls take the controller explicitly and never consult it.
 */
func (c *Context) Begin(ctrl ControllerID) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.checkControllerLocked(ctrl)
	if c.hasActive {
		err := fmt.Errorf("controller %d began a traversal while controller %d is active: %w", ctrl.id, c.active.id, core.ErrInvalidController)
		core.LogError(err.Error())
		panic(err)
	}
	c.active = ctrl
	c.hasActive = true
}

func (c *Context) End(ctrl ControllerID) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.hasActive || c.active != ctrl {
		err := fmt.Errorf("controller %d ended a traversal it did not begin: %w", ctrl.id, core.ErrInvalidController)
		core.LogError(err.Error())
		panic(err)
	}
	c.hasActive = false
}

// Active returns the controller between Begin and End, if any.
func (c *Context) Active() (ControllerID, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active, c.hasActive
}

func (c *Context) checkController(ctrl ControllerID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.checkControllerLocked(ctrl)
}

func (c *Context) checkControllerLocked(ctrl ControllerID) {
	var err error
	switch {
	case ctrl.ctx != c:
		err = fmt.Errorf("controller %d was issued by another context: %w", ctrl.id, core.ErrInvalidController)
	case ctrl.generation != c.controllers.Generation():
		err = fmt.Errorf("controller %d is from generation %d, current is %d: %w", ctrl.id, ctrl.generation, c.controllers.Generation(), core.ErrStaleGeneration)
	case c.liveControllers&ctrl.bit() == 0:
		err = fmt.Errorf("controller %d was released: %w", ctrl.id, core.ErrInvalidController)
	default:
		return
	}
	core.LogError(err.Error())
	panic(err)
}

func (c *Context) acquireObject() (uint64, uint32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	// the object sequence is unbounded
	id, _ := c.objects.Acquire()
	return id, c.objects.Generation()
}

func (c *Context) releaseObject() {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.objects.Release()
}

func (c *Context) controllerGeneration() uint32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.controllers.Generation()
}

func (c *Context) objectGeneration() uint32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.objects.Generation()
}
