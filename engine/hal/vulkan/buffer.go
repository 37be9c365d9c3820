package vulkan

import (
	"fmt"
	"sync"
	"unsafe"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/octoon/engine/core"
	"github.com/spaghettifunk/octoon/engine/hal"
)

/**
 * @brief Data is a host visible, coherent buffer mapped for its whole life.
 * Upload writes straight into the mapping.
 */
type Data struct {
	hal.Lifecycle
	mu     sync.Mutex
	device *Device
	desc   hal.GraphicsDataDesc
	buffer vk.Buffer
	memory vk.DeviceMemory
	mapped []byte
}

func (d *Device) newData(desc hal.GraphicsDataDesc) (*Data, error) {
	buffer, memory, err := d.createBuffer(desc.Size, vkBufferUsage(desc.Type), vk.MemoryPropertyHostVisibleBit|vk.MemoryPropertyHostCoherentBit)
	if err != nil {
		return nil, err
	}
	var ptr unsafe.Pointer
	if err := check(vk.MapMemory(d.handle, memory, 0, vk.DeviceSize(desc.Size), 0, &ptr), "vkMapMemory"); err != nil {
		vk.DestroyBuffer(d.handle, buffer, nil)
		vk.FreeMemory(d.handle, memory, nil)
		return nil, err
	}

	data := &Data{
		device: d,
		desc:   desc,
		buffer: buffer,
		memory: memory,
		mapped: unsafe.Slice((*byte)(ptr), desc.Size),
	}
	copy(data.mapped, desc.Stream)
	data.desc.Stream = nil
	data.InitLifecycle(d.ref)
	return data, nil
}

func (b *Data) Desc() hal.GraphicsDataDesc { return b.desc }
func (b *Data) Size() uint64               { return b.desc.Size }

func (b *Data) Upload(offset uint64, data []byte) error {
	if b.IsClosed() {
		return fmt.Errorf("upload to closed buffer '%s': %w", b.desc.Name, core.ErrDeviceClosed)
	}
	if offset+uint64(len(data)) > b.desc.Size {
		return fmt.Errorf("upload of %d bytes at %d overflows buffer '%s' of %d bytes: %w", len(data), offset, b.desc.Name, b.desc.Size, core.ErrInvalidDesc)
	}
	b.mu.Lock()
	copy(b.mapped[offset:], data)
	b.mu.Unlock()
	return nil
}

func (b *Data) Close() {
	b.CloseOnce(func() {
		device, buffer, memory := b.device, b.buffer, b.memory
		b.mu.Lock()
		b.mapped = nil
		b.mu.Unlock()
		device.release(func() {
			vk.UnmapMemory(device.handle, memory)
			vk.DestroyBuffer(device.handle, buffer, nil)
			vk.FreeMemory(device.handle, memory, nil)
		})
	})
}

/**
 * @brief Per-frame host visible memory for uniform blocks. Every draw takes
 * a fresh range so the values recorded for one draw are never overwritten
 * by the next. Chunks are added when a frame outgrows the current ones.
 */
type blockArena struct {
	device    *Device
	alignment uint64
	chunkSize uint64
	chunks    []*Data
	current   int
	offset    uint64
}

const BLOCK_ARENA_CHUNK_SIZE uint64 = 256 * 1024

func newBlockArena(device *Device) *blockArena {
	return &blockArena{
		device:    device,
		alignment: max(uint64(device.limits.MinUniformBufferOffsetAlignment), 16),
		chunkSize: BLOCK_ARENA_CHUNK_SIZE,
	}
}

// reset makes every chunk reusable. The frame that used them must be done.
func (a *blockArena) reset() {
	a.current = 0
	a.offset = 0
}

// alloc returns a zeroed range of size bytes and where it lives.
func (a *blockArena) alloc(size uint64) ([]byte, *Data, uint64, error) {
	size = uint64(align(uint32(size), uint32(a.alignment)))
	if size > a.chunkSize {
		return nil, nil, 0, fmt.Errorf("uniform block of %d bytes exceeds the arena chunk of %d: %w", size, a.chunkSize, core.ErrInvalidDesc)
	}
	for {
		if a.current < len(a.chunks) && a.offset+size <= a.chunkSize {
			chunk := a.chunks[a.current]
			offset := a.offset
			a.offset += size
			dst := chunk.mapped[offset : offset+size]
			clear(dst)
			return dst, chunk, offset, nil
		}
		if a.current < len(a.chunks) {
			a.current++
			a.offset = 0
			continue
		}
		chunk, err := a.device.newData(hal.GraphicsDataDesc{
			Name: hal.DefaultName("vulkan.blocks"),
			Type: hal.DATA_TYPE_UNIFORM_BUFFER,
			Size: a.chunkSize,
		})
		if err != nil {
			return nil, nil, 0, err
		}
		a.chunks = append(a.chunks, chunk)
		a.current = len(a.chunks) - 1
		a.offset = 0
	}
}

func (a *blockArena) close() {
	for _, c := range a.chunks {
		c.Close()
	}
	a.chunks = nil
}
