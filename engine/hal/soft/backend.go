package soft

import (
	"fmt"

	"github.com/spaghettifunk/octoon/engine/core"
	"github.com/spaghettifunk/octoon/engine/hal"
)

// Backend creates host-memory devices. It needs no driver and never fails to open.
type Backend struct {
	debug bool
}

func NewBackend() *Backend {
	return &Backend{}
}

// Register adds the soft backend to system under DEVICE_TYPE_SOFT.
func Register(system *hal.GraphicsSystem) {
	system.RegisterBackend(hal.DEVICE_TYPE_SOFT, NewBackend())
}

func (b *Backend) Open(debug bool) error {
	b.debug = debug
	return nil
}

func (b *Backend) Close() {}

func (b *Backend) CreateDevice(desc hal.GraphicsDeviceDesc, ref hal.DeviceRef) (hal.GraphicsDevice, error) {
	if desc.DeviceType != hal.DEVICE_TYPE_SOFT {
		return nil, fmt.Errorf("soft backend cannot create %s devices: %w", desc.DeviceType, core.ErrInvalidDesc)
	}
	return newDevice(desc, ref, b.debug || desc.EnableDebug), nil
}
