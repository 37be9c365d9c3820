package object

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"testing"

	"github.com/spaghettifunk/octoon/engine/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	core.SetLogOutput(io.Discard)
	os.Exit(m.Run())
}

// panicsWith asserts that f panics with an error wrapping target.
func panicsWith(t *testing.T, target error, f func()) {
	t.Helper()
	defer func() {
		r := recover()
		require.NotNil(t, r, "expected a panic")
		err, ok := r.(error)
		require.True(t, ok, "panic value is not an error: %v", r)
		assert.True(t, errors.Is(err, target), "got %v, want %v", err, target)
	}()
	f()
}

func TestControllerIDsIncreaseFromZero(t *testing.T) {
	ctx := NewContext()
	for want := 0; want < MaxDirtyBits; want++ {
		assert.Equal(t, want, ctx.NextControllerID().ID())
	}
	assert.Equal(t, MaxDirtyBits, ctx.LiveControllers())
}

func TestControllerIDsAreNotReusedAfterRelease(t *testing.T) {
	ctx := NewContext()
	a := ctx.NextControllerID()
	ctx.ReleaseControllerID(a)
	b := ctx.NextControllerID()
	assert.Equal(t, 0, a.ID())
	assert.Equal(t, 1, b.ID())
}

func TestControllerOverflowPanics(t *testing.T) {
	ctx := NewContext()
	for i := 0; i < MaxDirtyBits; i++ {
		ctx.NextControllerID()
	}
	panicsWith(t, core.ErrControllerOverflow, func() { ctx.NextControllerID() })
}

func TestResetControllerIDsWithLiveIDsPanics(t *testing.T) {
	ctx := NewContext()
	ctrl := ctx.NextControllerID()
	panicsWith(t, core.ErrLiveControllers, ctx.ResetControllerIDs)

	ctx.ReleaseControllerID(ctrl)
	ctx.ResetControllerIDs()
	assert.Equal(t, 0, ctx.NextControllerID().ID())
}

func TestStaleControllerPanics(t *testing.T) {
	ctx := NewContext()
	old := ctx.NextControllerID()
	ctx.ReleaseControllerID(old)
	ctx.ResetControllerIDs()

	// same numeric id, new generation
	fresh := ctx.NextControllerID()
	require.Equal(t, old.ID(), fresh.ID())

	obj := NewObject(ctx, KIND_MESH)
	panicsWith(t, core.ErrStaleGeneration, func() { obj.IsDirty(old) })
	assert.True(t, obj.IsDirty(fresh))
}

func TestObjectsSurvivingControllerResetAreDirty(t *testing.T) {
	ctx := NewContext()
	obj := NewObject(ctx, KIND_GEOMETRY)

	old := ctx.NextControllerID()
	obj.ClearDirty(old)
	require.False(t, obj.IsDirty(old))
	ctx.ReleaseControllerID(old)
	ctx.ResetControllerIDs()

	fresh := ctx.NextControllerID()
	require.Equal(t, old.ID(), fresh.ID())
	assert.True(t, obj.IsDirty(fresh))

	obj.ClearDirty(fresh)
	assert.False(t, obj.IsDirty(fresh))
	other := ctx.NextControllerID()
	assert.True(t, obj.IsDirty(other))

	obj.MarkDirty()
	assert.True(t, obj.IsDirty(fresh))
}

func TestForeignControllerPanics(t *testing.T) {
	a, b := NewContext(), NewContext()
	ctrl := b.NextControllerID()
	obj := NewObject(a, KIND_MESH)
	panicsWith(t, core.ErrInvalidController, func() { obj.IsDirty(ctrl) })
}

func TestResetObjectIDs(t *testing.T) {
	ctx := NewContext()
	obj := NewObject(ctx, KIND_CAMERA)
	assert.Equal(t, uint64(0), obj.ID())
	panicsWith(t, core.ErrLiveObjects, ctx.ResetObjectIDs)

	obj.Release()
	obj.Release()
	assert.Equal(t, 0, ctx.LiveObjects())
	ctx.ResetObjectIDs()

	again := NewObject(ctx, KIND_CAMERA)
	assert.Equal(t, uint64(0), again.ID())
	assert.NotEqual(t, obj.Generation(), again.Generation())
}

func TestBeginEndSingleTraversal(t *testing.T) {
	ctx := NewContext()
	a, b := ctx.NextControllerID(), ctx.NextControllerID()

	ctx.Begin(a)
	active, ok := ctx.Active()
	require.True(t, ok)
	assert.Equal(t, a, active)

	panicsWith(t, core.ErrInvalidController, func() { ctx.Begin(b) })
	panicsWith(t, core.ErrInvalidController, func() { ctx.End(b) })

	ctx.End(a)
	_, ok = ctx.Active()
	assert.False(t, ok)
	ctx.Begin(b)
	ctx.End(b)
}

func TestIndependentContextsInParallel(t *testing.T) {
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ctx := NewContext()
			for want := 0; want < MaxDirtyBits; want++ {
				if got := ctx.NextControllerID().ID(); got != want {
					panic(fmt.Sprintf("got %d want %d", got, want))
				}
			}
		}()
	}
	wg.Wait()
}
