package soft

import (
	"fmt"
	"sync"

	"github.com/spaghettifunk/octoon/engine/core"
	"github.com/spaghettifunk/octoon/engine/hal"
)

type Swapchain struct {
	hal.Lifecycle
	mu       sync.Mutex
	desc     hal.GraphicsSwapchainDesc
	presents uint64
}

func (s *Swapchain) Desc() hal.GraphicsSwapchainDesc {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.desc
}

func (s *Swapchain) Resize(width, height uint32) error {
	if s.IsClosed() {
		return fmt.Errorf("resize of a closed swapchain: %w", core.ErrDeviceClosed)
	}
	if width == 0 || height == 0 {
		// minimised windows report zero, keep the old size
		return core.ErrSwapchainBooting
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.desc.Width, s.desc.Height = width, height
	return nil
}

func (s *Swapchain) Present() error {
	if s.IsClosed() {
		return fmt.Errorf("present on a closed swapchain: %w", core.ErrDeviceClosed)
	}
	s.mu.Lock()
	s.presents++
	s.mu.Unlock()
	return nil
}

// Presents returns how many frames were presented.
func (s *Swapchain) Presents() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.presents
}

func (s *Swapchain) Close() {
	s.CloseOnce(nil)
}

type InputLayout struct {
	hal.Lifecycle
	desc hal.GraphicsInputLayoutDesc
}

func (l *InputLayout) Desc() hal.GraphicsInputLayoutDesc { return l.desc }
func (l *InputLayout) Close()                            { l.CloseOnce(nil) }

// Data is a buffer kept in host memory.
type Data struct {
	hal.Lifecycle
	mu    sync.Mutex
	desc  hal.GraphicsDataDesc
	bytes []byte
}

func (d *Data) Desc() hal.GraphicsDataDesc { return d.desc }
func (d *Data) Size() uint64               { return d.desc.Size }

func (d *Data) Upload(offset uint64, data []byte) error {
	if d.IsClosed() {
		return fmt.Errorf("upload to closed buffer '%s': %w", d.desc.Name, core.ErrDeviceClosed)
	}
	if offset+uint64(len(data)) > d.desc.Size {
		return fmt.Errorf("upload of %d bytes at %d overflows buffer '%s' of %d bytes: %w", len(data), offset, d.desc.Name, d.desc.Size, core.ErrInvalidDesc)
	}
	d.mu.Lock()
	copy(d.bytes[offset:], data)
	d.mu.Unlock()
	return nil
}

// Bytes returns a copy of the buffer contents.
func (d *Data) Bytes() []byte {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]byte(nil), d.bytes...)
}

func (d *Data) Close() {
	d.CloseOnce(func() { d.bytes = nil })
}

type Texture struct {
	hal.Lifecycle
	mu     sync.Mutex
	desc   hal.GraphicsTextureDesc
	pixels []byte
}

func (t *Texture) Desc() hal.GraphicsTextureDesc { return t.desc }

func (t *Texture) Upload(data []byte) error {
	if t.IsClosed() {
		return fmt.Errorf("upload to closed texture '%s': %w", t.desc.Name, core.ErrDeviceClosed)
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(data) > len(t.pixels) {
		return fmt.Errorf("upload of %d bytes overflows texture '%s' of %d bytes: %w", len(data), t.desc.Name, len(t.pixels), core.ErrInvalidDesc)
	}
	copy(t.pixels, data)
	return nil
}

// Pixels returns a copy of the texture memory.
func (t *Texture) Pixels() []byte {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]byte(nil), t.pixels...)
}

func (t *Texture) fill(texel []byte) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for i := 0; i+len(texel) <= len(t.pixels); i += len(texel) {
		copy(t.pixels[i:], texel)
	}
}

func (t *Texture) Close() {
	t.CloseOnce(func() { t.pixels = nil })
}

type Sampler struct {
	hal.Lifecycle
	desc hal.GraphicsSamplerDesc
}

func (s *Sampler) Desc() hal.GraphicsSamplerDesc { return s.desc }
func (s *Sampler) Close()                        { s.CloseOnce(nil) }

type FramebufferLayout struct {
	hal.Lifecycle
	desc hal.GraphicsFramebufferLayoutDesc
}

func (l *FramebufferLayout) Desc() hal.GraphicsFramebufferLayoutDesc { return l.desc }
func (l *FramebufferLayout) Close()                                  { l.CloseOnce(nil) }

type Framebuffer struct {
	hal.Lifecycle
	desc hal.GraphicsFramebufferDesc
}

func (f *Framebuffer) Desc() hal.GraphicsFramebufferDesc { return f.desc }
func (f *Framebuffer) Close()                            { f.CloseOnce(nil) }

type Program struct {
	hal.Lifecycle
	desc   hal.GraphicsProgramDesc
	params []hal.UniformParam
}

func (p *Program) Desc() hal.GraphicsProgramDesc { return p.desc }
func (p *Program) Params() []hal.UniformParam    { return p.params }
func (p *Program) Close()                        { p.CloseOnce(nil) }

type Pipeline struct {
	hal.Lifecycle
	desc hal.GraphicsPipelineDesc
}

func (p *Pipeline) Desc() hal.GraphicsPipelineDesc { return p.desc }
func (p *Pipeline) Close()                         { p.CloseOnce(nil) }

type DescriptorPool struct {
	hal.Lifecycle
	mu        sync.Mutex
	desc      hal.GraphicsDescriptorPoolDesc
	allocated uint32
}

func (p *DescriptorPool) Desc() hal.GraphicsDescriptorPoolDesc { return p.desc }
func (p *DescriptorPool) Close()                               { p.CloseOnce(nil) }

func (p *DescriptorPool) allocate() error {
	if p.IsClosed() {
		return fmt.Errorf("allocation from a closed descriptor pool: %w", core.ErrDeviceClosed)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	// zero means unbounded
	if p.desc.MaxSets > 0 && p.allocated >= p.desc.MaxSets {
		return fmt.Errorf("descriptor pool exhausted after %d sets: %w", p.desc.MaxSets, core.ErrInvalidDesc)
	}
	p.allocated++
	return nil
}

type DescriptorSetLayout struct {
	hal.Lifecycle
	desc hal.GraphicsDescriptorSetLayoutDesc
}

func (l *DescriptorSetLayout) Desc() hal.GraphicsDescriptorSetLayoutDesc { return l.desc }
func (l *DescriptorSetLayout) Close()                                    { l.CloseOnce(nil) }

type DescriptorSet struct {
	hal.Lifecycle
	desc     hal.GraphicsDescriptorSetDesc
	uniforms []*hal.UniformSet
}

func (s *DescriptorSet) Desc() hal.GraphicsDescriptorSetDesc { return s.desc }
func (s *DescriptorSet) UniformSets() []*hal.UniformSet      { return s.uniforms }
func (s *DescriptorSet) Close()                              { s.CloseOnce(nil) }

func (s *DescriptorSet) UniformSet(name string) *hal.UniformSet {
	for _, u := range s.uniforms {
		if u.Name() == name {
			return u
		}
	}
	return nil
}
