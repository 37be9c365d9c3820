package hal_test

import (
	"errors"
	"io"
	"os"
	"testing"

	"github.com/spaghettifunk/octoon/engine/core"
	"github.com/spaghettifunk/octoon/engine/hal"
	"github.com/spaghettifunk/octoon/engine/hal/soft"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	core.SetLogOutput(io.Discard)
	os.Exit(m.Run())
}

func newSoftSystem(t *testing.T) *hal.GraphicsSystem {
	t.Helper()
	sys := hal.NewGraphicsSystem()
	soft.Register(sys)
	t.Cleanup(sys.Close)
	return sys
}

func newSoftDevice(t *testing.T, sys *hal.GraphicsSystem) hal.GraphicsDevice {
	t.Helper()
	device, err := sys.CreateDevice(hal.GraphicsDeviceDesc{DeviceType: hal.DEVICE_TYPE_SOFT})
	require.NoError(t, err)
	require.NotNil(t, device)
	return device
}

func TestCreateDeviceWithoutBackend(t *testing.T) {
	sys := newSoftSystem(t)

	for _, dt := range []hal.GraphicsDeviceType{hal.DEVICE_TYPE_OPENGL, hal.DEVICE_TYPE_OPENGL_CORE, hal.DEVICE_TYPE_OPENGL_ES3} {
		device, err := sys.CreateDevice(hal.GraphicsDeviceDesc{DeviceType: dt})
		assert.Nil(t, device)
		assert.True(t, errors.Is(err, core.ErrBackendUnavailable), "device type %s: %v", dt, err)
	}
	assert.Empty(t, sys.Devices())
}

func TestDeviceRefExpiresOnClose(t *testing.T) {
	sys := newSoftSystem(t)
	device := newSoftDevice(t, sys)

	ref := device.Ref()
	got, ok := ref.Lookup()
	require.True(t, ok)
	assert.Same(t, device, got)
	assert.Len(t, sys.Devices(), 1)

	device.Close()
	assert.True(t, device.IsClosed())
	assert.True(t, ref.Expired())
	assert.Empty(t, sys.Devices())

	// close is idempotent
	assert.NotPanics(t, device.Close)
}

func TestDeviceRefSurvivesSlotReuse(t *testing.T) {
	sys := newSoftSystem(t)
	first := newSoftDevice(t, sys)
	stale := first.Ref()
	first.Close()

	second := newSoftDevice(t, sys)
	defer second.Close()

	assert.True(t, stale.Expired(), "a reference to a closed device must not resolve to its successor")
	got, ok := second.Ref().Lookup()
	require.True(t, ok)
	assert.Same(t, second, got)
}

func TestZeroDeviceRef(t *testing.T) {
	var ref hal.DeviceRef
	assert.True(t, ref.IsZero())
	assert.True(t, ref.Expired())
	assert.NotPanics(t, ref.Release)
}

func TestResourcesKeepWeakDeviceReference(t *testing.T) {
	sys := newSoftSystem(t)
	device := newSoftDevice(t, sys)

	data, err := device.CreateGraphicsData(hal.GraphicsDataDesc{
		Type: hal.DATA_TYPE_STORAGE_VERTEX_BUFFER,
		Size: 64,
	})
	require.NoError(t, err)

	owner, ok := data.Device().Lookup()
	require.True(t, ok)
	assert.Same(t, device, owner)

	device.Close()
	assert.True(t, data.IsClosed(), "closing a device closes what it created")
	assert.True(t, data.Device().Expired())
}

func TestCreateOnClosedDevice(t *testing.T) {
	sys := newSoftSystem(t)
	device := newSoftDevice(t, sys)
	device.Close()

	tex, err := device.CreateTexture(hal.GraphicsTextureDesc{Format: hal.FORMAT_R8G8B8A8_UNORM, Width: 4, Height: 4})
	assert.Nil(t, tex)
	assert.True(t, errors.Is(err, core.ErrDeviceClosed))
}

func TestResourceCloseOnce(t *testing.T) {
	var l hal.Lifecycle
	calls := 0
	release := func() { calls++ }

	assert.True(t, l.CloseOnce(release))
	assert.False(t, l.CloseOnce(release))
	assert.True(t, l.IsClosed())
	assert.Equal(t, 1, calls)
}

type fakeResource struct {
	hal.Lifecycle
	name   string
	closed *[]string
}

func (f *fakeResource) Close() {
	f.CloseOnce(func() { *f.closed = append(*f.closed, f.name) })
}

func TestResourceTrackerClosesNewestFirst(t *testing.T) {
	var tracker hal.ResourceTracker
	var order []string

	a := &fakeResource{name: "a", closed: &order}
	b := &fakeResource{name: "b", closed: &order}
	c := &fakeResource{name: "c", closed: &order}
	tracker.Track(a)
	tracker.Track(b)
	tracker.Track(c)
	assert.Equal(t, 3, tracker.Live())

	b.Close()
	assert.Equal(t, 2, tracker.Live())

	tracker.CloseAll()
	assert.Equal(t, []string{"b", "c", "a"}, order)
	assert.Equal(t, 0, tracker.Live())
}

func TestInvalidDescriptions(t *testing.T) {
	sys := newSoftSystem(t)
	device := newSoftDevice(t, sys)

	_, err := device.CreateGraphicsData(hal.GraphicsDataDesc{Type: hal.DATA_TYPE_UNIFORM_BUFFER})
	assert.True(t, errors.Is(err, core.ErrInvalidDesc), "zero sized buffer: %v", err)

	_, err = device.CreateTexture(hal.GraphicsTextureDesc{Width: 4, Height: 4})
	assert.True(t, errors.Is(err, core.ErrUnsupportedFormat), "undefined format: %v", err)

	layout, err := device.CreateFramebufferLayout(hal.GraphicsFramebufferLayoutDesc{
		Components: []hal.AttachmentLayout{{Slot: 0, Format: hal.FORMAT_R8G8B8A8_UNORM}},
	})
	require.NoError(t, err)
	_, err = device.CreateFramebuffer(hal.GraphicsFramebufferDesc{Width: 8, Height: 8, Layout: layout})
	assert.True(t, errors.Is(err, core.ErrFramebufferSetup), "no attachments: %v", err)
}

func TestParseDeviceType(t *testing.T) {
	dt, err := hal.ParseDeviceType("soft")
	require.NoError(t, err)
	assert.Equal(t, hal.DEVICE_TYPE_SOFT, dt)

	dt, err = hal.ParseDeviceType("vulkan")
	require.NoError(t, err)
	assert.Equal(t, hal.DEVICE_TYPE_VULKAN, dt)

	_, err = hal.ParseDeviceType("directx")
	assert.Error(t, err)
}

func TestCreateRenderTarget(t *testing.T) {
	sys := newSoftSystem(t)
	device := newSoftDevice(t, sys).(*soft.Device)

	target, err := hal.CreateRenderTarget(device, hal.RenderTargetDesc{
		Width:              64,
		Height:             32,
		ColorFormat:        hal.FORMAT_R8G8B8A8_UNORM,
		DepthStencilFormat: hal.FORMAT_D16_UNORM,
	})
	require.NoError(t, err)
	assert.Equal(t, uint32(64), target.Framebuffer.Desc().Width)
	assert.Same(t, target.Color, target.Framebuffer.Desc().ColorAttachments[0].Texture)
	assert.Same(t, target.DepthStencil, target.Framebuffer.Desc().DepthStencilAttachment.Texture)
	assert.Equal(t, 4, device.LiveResources())

	target.Close()
	assert.Equal(t, 0, device.LiveResources())

	depthOnly, err := hal.CreateRenderTarget(device, hal.RenderTargetDesc{Width: 16, Height: 16, DepthStencilFormat: hal.FORMAT_D32_SFLOAT})
	require.NoError(t, err)
	assert.Nil(t, depthOnly.Color)
	assert.Empty(t, depthOnly.Framebuffer.Desc().ColorAttachments)
	depthOnly.Close()
}

func TestCreateRenderTargetCleansUpOnFailure(t *testing.T) {
	sys := newSoftSystem(t)
	device := newSoftDevice(t, sys).(*soft.Device)

	// a colour format in the depth slot makes the framebuffer invalid after
	// both textures were created
	target, err := hal.CreateRenderTarget(device, hal.RenderTargetDesc{
		Width:              8,
		Height:             8,
		ColorFormat:        hal.FORMAT_R8G8B8A8_UNORM,
		DepthStencilFormat: hal.FORMAT_R8_UNORM,
	})
	assert.Nil(t, target)
	assert.True(t, errors.Is(err, core.ErrFramebufferSetup), "%v", err)
	assert.Equal(t, 0, device.LiveResources())

	var nilTarget *hal.RenderTarget
	assert.NotPanics(t, nilTarget.Close)
}
