package hal

import (
	"fmt"
	"sync"

	"github.com/spaghettifunk/octoon/engine/core"
	"golang.org/x/exp/slices"
)

/**
 * @brief A backend creates devices for one graphics API. Backends register
 * themselves with a GraphicsSystem; device types without a backend cannot be
 * created.
 */
type Backend interface {
	// Open prepares the backend. debug enables validation where the API has it.
	Open(debug bool) error
	Close()
	CreateDevice(desc GraphicsDeviceDesc, ref DeviceRef) (GraphicsDevice, error)
}

/**
 * @brief DeviceRef is a weak reference to a device: the registry slot plus
 * the generation the slot had when the device was created. It never keeps
 * the device alive; Lookup fails once the device is closed.
 */
type DeviceRef struct {
	system     *GraphicsSystem
	index      uint32
	generation uint32
}

func (r DeviceRef) IsZero() bool {
	return r.system == nil
}

// Lookup resolves the reference. The second value is false when the device
// has been closed or the reference is empty.
func (r DeviceRef) Lookup() (GraphicsDevice, bool) {
	if r.system == nil {
		return nil, false
	}
	return r.system.lookup(r)
}

// Expired reports whether the referenced device is gone.
func (r DeviceRef) Expired() bool {
	_, ok := r.Lookup()
	return !ok
}

// Release removes the device from its system registry. Device
// implementations call it from their Close.
func (r DeviceRef) Release() {
	if r.system != nil {
		r.system.release(r)
	}
}

type deviceSlot struct {
	device     GraphicsDevice
	generation uint32
	reserved   bool
}

/**
 * @brief GraphicsSystem creates graphics devices and keeps a non-owning
 * registry of the ones still open, for enumeration and diagnostics. Whoever
 * calls CreateDevice owns the device and must Close it.
 */
type GraphicsSystem struct {
	mu       sync.Mutex
	debug    bool
	opened   bool
	backends map[GraphicsDeviceType]Backend
	slots    []deviceSlot
}

var (
	systemOnce sync.Once
	system     *GraphicsSystem
)

// Instance returns the process-wide graphics system.
func Instance() *GraphicsSystem {
	systemOnce.Do(func() {
		system = NewGraphicsSystem()
	})
	return system
}

// NewGraphicsSystem returns an independent system, mostly useful for tests.
func NewGraphicsSystem() *GraphicsSystem {
	return &GraphicsSystem{
		backends: make(map[GraphicsDeviceType]Backend),
	}
}

func (s *GraphicsSystem) RegisterBackend(deviceType GraphicsDeviceType, backend Backend) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.backends[deviceType]; exists {
		core.LogWarn("graphics backend for %s registered twice, replacing it", deviceType)
	}
	s.backends[deviceType] = backend
}

// Open enables debug-capable backends. It is called implicitly by the first
// CreateDevice with the desc's debug flag when not called before.
func (s *GraphicsSystem) Open(debug bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.openLocked(debug)
}

func (s *GraphicsSystem) openLocked(debug bool) error {
	if s.opened {
		return nil
	}
	for t, b := range s.backends {
		if err := b.Open(debug); err != nil {
			err = fmt.Errorf("failed to open graphics backend %s: %w", t, err)
			core.LogError(err.Error())
			return err
		}
	}
	s.debug = debug
	s.opened = true
	core.LogDebug("graphics system opened (debug=%t, backends=%d)", debug, len(s.backends))
	return nil
}

func (s *GraphicsSystem) IsDebug() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.debug
}

/**
 * @brief Creates a device of desc.DeviceType. On failure it returns nil and
 * the error; device types without a registered backend report
 * ErrBackendUnavailable.
 */
func (s *GraphicsSystem) CreateDevice(desc GraphicsDeviceDesc) (GraphicsDevice, error) {
	s.mu.Lock()
	backend, ok := s.backends[desc.DeviceType]
	if !ok {
		s.mu.Unlock()
		err := fmt.Errorf("cannot create a %s device: %w", desc.DeviceType, core.ErrBackendUnavailable)
		core.LogError(err.Error())
		return nil, err
	}
	if err := s.openLocked(desc.EnableDebug); err != nil {
		s.mu.Unlock()
		return nil, err
	}
	ref := s.reserveLocked()
	s.mu.Unlock()

	// backends may block on the driver, do not hold the registry lock
	device, err := backend.CreateDevice(desc, ref)
	if err != nil || device == nil {
		s.release(ref)
		if err == nil {
			err = fmt.Errorf("backend %s returned no device: %w", desc.DeviceType, core.ErrUnknown)
		}
		core.LogError("failed to create %s device: %s", desc.DeviceType, err.Error())
		return nil, err
	}

	s.mu.Lock()
	s.slots[ref.index].device = device
	s.mu.Unlock()

	core.LogInfo("created %s graphics device (debug=%t)", desc.DeviceType, desc.EnableDebug)
	return device, nil
}

// Devices returns the devices that are still open.
func (s *GraphicsSystem) Devices() []GraphicsDevice {
	s.mu.Lock()
	defer s.mu.Unlock()

	devices := make([]GraphicsDevice, 0, len(s.slots))
	for _, slot := range s.slots {
		if slot.device != nil {
			devices = append(devices, slot.device)
		}
	}
	return devices
}

// Close closes every device still open and the backends. Owners that kept a
// device past this point will find it closed.
func (s *GraphicsSystem) Close() {
	for _, d := range s.Devices() {
		core.LogWarn("graphics device %s still open at shutdown, closing it", d.Desc().DeviceType)
		d.Close()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, b := range s.backends {
		b.Close()
	}
	s.opened = false
}

func (s *GraphicsSystem) reserveLocked() DeviceRef {
	index := slices.IndexFunc(s.slots, func(slot deviceSlot) bool { return !slot.reserved })
	if index < 0 {
		s.slots = append(s.slots, deviceSlot{})
		index = len(s.slots) - 1
	}
	slot := &s.slots[index]
	slot.reserved = true
	slot.generation++
	return DeviceRef{system: s, index: uint32(index), generation: slot.generation}
}

func (s *GraphicsSystem) lookup(r DeviceRef) (GraphicsDevice, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if int(r.index) >= len(s.slots) {
		return nil, false
	}
	slot := s.slots[r.index]
	if !slot.reserved || slot.generation != r.generation || slot.device == nil {
		return nil, false
	}
	return slot.device, true
}

func (s *GraphicsSystem) release(r DeviceRef) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if int(r.index) >= len(s.slots) {
		return
	}
	slot := &s.slots[r.index]
	if slot.generation != r.generation {
		return
	}
	slot.device = nil
	slot.reserved = false
}
