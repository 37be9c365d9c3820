package soft

import (
	"fmt"
	"sync/atomic"

	"github.com/spaghettifunk/octoon/engine/core"
	"github.com/spaghettifunk/octoon/engine/hal"
)

/** @brief Highest texture sample count soft devices accept unless lowered. */
const DEFAULT_MAX_SAMPLES uint32 = 8

type Device struct {
	desc       hal.GraphicsDeviceDesc
	ref        hal.DeviceRef
	debug      bool
	closed     atomic.Bool
	maxSamples atomic.Uint32
	tracker    hal.ResourceTracker
}

func newDevice(desc hal.GraphicsDeviceDesc, ref hal.DeviceRef, debug bool) *Device {
	d := &Device{desc: desc, ref: ref, debug: debug}
	d.maxSamples.Store(DEFAULT_MAX_SAMPLES)
	return d
}

// SetMaxSamples limits multisampled textures the way a driver would. Texture
// creation with more samples fails with ErrUnsupportedFormat.
func (d *Device) SetMaxSamples(samples uint32) {
	d.maxSamples.Store(max(samples, 1))
}

func (d *Device) Desc() hal.GraphicsDeviceDesc {
	return d.desc
}

func (d *Device) Ref() hal.DeviceRef {
	return d.ref
}

func (d *Device) IsClosed() bool {
	return d.closed.Load()
}

// LiveResources returns how many resources created by d are still open.
func (d *Device) LiveResources() int {
	return d.tracker.Live()
}

func (d *Device) Close() {
	if !d.closed.CompareAndSwap(false, true) {
		return
	}
	d.tracker.CloseAll()
	d.ref.Release()
}

func (d *Device) check(what string) error {
	if d.closed.Load() {
		err := fmt.Errorf("cannot create %s: %w", what, core.ErrDeviceClosed)
		core.LogError(err.Error())
		return err
	}
	return nil
}

func fail(err error) error {
	core.LogError(err.Error())
	return err
}

func (d *Device) CreateSwapchain(desc hal.GraphicsSwapchainDesc) (hal.GraphicsSwapchain, error) {
	if err := d.check("swapchain"); err != nil {
		return nil, err
	}
	if err := desc.Validate(); err != nil {
		return nil, fail(err)
	}
	s := &Swapchain{desc: desc}
	s.InitLifecycle(d.ref)
	d.tracker.Track(s)
	return s, nil
}

func (d *Device) CreateDeviceContext(desc hal.GraphicsContextDesc) (hal.GraphicsContext, error) {
	if err := d.check("device context"); err != nil {
		return nil, err
	}
	c := newContext(desc, d.debug)
	c.InitLifecycle(d.ref)
	d.tracker.Track(c)
	return c, nil
}

func (d *Device) CreateInputLayout(desc hal.GraphicsInputLayoutDesc) (hal.GraphicsInputLayout, error) {
	if err := d.check("input layout"); err != nil {
		return nil, err
	}
	if err := desc.Validate(); err != nil {
		return nil, fail(err)
	}
	desc, err := desc.Clone()
	if err != nil {
		return nil, fail(err)
	}
	l := &InputLayout{desc: desc}
	l.InitLifecycle(d.ref)
	d.tracker.Track(l)
	return l, nil
}

func (d *Device) CreateGraphicsData(desc hal.GraphicsDataDesc) (hal.GraphicsData, error) {
	if err := d.check("graphics data"); err != nil {
		return nil, err
	}
	if desc.Name == "" {
		desc.Name = hal.DefaultName("soft.data")
	}
	if err := desc.Validate(); err != nil {
		return nil, fail(err)
	}
	data := &Data{desc: desc, bytes: make([]byte, desc.Size)}
	copy(data.bytes, desc.Stream)
	// the stream belongs to the caller
	data.desc.Stream = nil
	data.InitLifecycle(d.ref)
	d.tracker.Track(data)
	return data, nil
}

func (d *Device) CreateTexture(desc hal.GraphicsTextureDesc) (hal.GraphicsTexture, error) {
	if err := d.check("texture"); err != nil {
		return nil, err
	}
	if desc.Name == "" {
		desc.Name = hal.DefaultName("soft.texture")
	}
	if desc.MipLevels == 0 {
		desc.MipLevels = 1
	}
	if desc.Layers == 0 {
		desc.Layers = 1
	}
	if err := desc.Validate(); err != nil {
		return nil, fail(err)
	}
	if limit := d.maxSamples.Load(); desc.Multisample > limit {
		return nil, fail(fmt.Errorf("texture '%s' with %d samples exceeds the device limit of %d: %w", desc.Name, desc.Multisample, limit, core.ErrUnsupportedFormat))
	}
	t := &Texture{desc: desc, pixels: make([]byte, textureSize(desc))}
	copy(t.pixels, desc.Stream)
	t.desc.Stream = nil
	t.InitLifecycle(d.ref)
	d.tracker.Track(t)
	return t, nil
}

func (d *Device) CreateSampler(desc hal.GraphicsSamplerDesc) (hal.GraphicsSampler, error) {
	if err := d.check("sampler"); err != nil {
		return nil, err
	}
	s := &Sampler{desc: desc}
	s.InitLifecycle(d.ref)
	d.tracker.Track(s)
	return s, nil
}

func (d *Device) CreateFramebufferLayout(desc hal.GraphicsFramebufferLayoutDesc) (hal.GraphicsFramebufferLayout, error) {
	if err := d.check("framebuffer layout"); err != nil {
		return nil, err
	}
	if err := desc.Validate(); err != nil {
		return nil, fail(err)
	}
	l := &FramebufferLayout{desc: desc}
	l.InitLifecycle(d.ref)
	d.tracker.Track(l)
	return l, nil
}

func (d *Device) CreateFramebuffer(desc hal.GraphicsFramebufferDesc) (hal.GraphicsFramebuffer, error) {
	if err := d.check("framebuffer"); err != nil {
		return nil, err
	}
	if desc.Name == "" {
		desc.Name = hal.DefaultName("soft.framebuffer")
	}
	if err := desc.Validate(); err != nil {
		return nil, fail(err)
	}
	f := &Framebuffer{desc: desc}
	f.InitLifecycle(d.ref)
	d.tracker.Track(f)
	return f, nil
}

func (d *Device) CreateProgram(desc hal.GraphicsProgramDesc) (hal.GraphicsProgram, error) {
	if err := d.check("program"); err != nil {
		return nil, err
	}
	if err := desc.Validate(); err != nil {
		return nil, fail(err)
	}
	desc, err := desc.Clone()
	if err != nil {
		return nil, fail(err)
	}
	p := &Program{desc: desc, params: reflectProgram(desc)}
	p.InitLifecycle(d.ref)
	d.tracker.Track(p)
	return p, nil
}

func (d *Device) CreateRenderPipeline(desc hal.GraphicsPipelineDesc) (hal.GraphicsPipeline, error) {
	if err := d.check("pipeline"); err != nil {
		return nil, err
	}
	if err := desc.Validate(); err != nil {
		return nil, fail(err)
	}
	if desc.Program.IsClosed() {
		return nil, fail(fmt.Errorf("pipeline program is closed: %w", core.ErrInvalidDesc))
	}
	p := &Pipeline{desc: desc}
	p.InitLifecycle(d.ref)
	d.tracker.Track(p)
	return p, nil
}

func (d *Device) CreateDescriptorPool(desc hal.GraphicsDescriptorPoolDesc) (hal.GraphicsDescriptorPool, error) {
	if err := d.check("descriptor pool"); err != nil {
		return nil, err
	}
	p := &DescriptorPool{desc: desc}
	p.InitLifecycle(d.ref)
	d.tracker.Track(p)
	return p, nil
}

func (d *Device) CreateDescriptorSetLayout(desc hal.GraphicsDescriptorSetLayoutDesc) (hal.GraphicsDescriptorSetLayout, error) {
	if err := d.check("descriptor set layout"); err != nil {
		return nil, err
	}
	l := &DescriptorSetLayout{desc: desc}
	l.InitLifecycle(d.ref)
	d.tracker.Track(l)
	return l, nil
}

func (d *Device) CreateDescriptorSet(desc hal.GraphicsDescriptorSetDesc) (hal.GraphicsDescriptorSet, error) {
	if err := d.check("descriptor set"); err != nil {
		return nil, err
	}
	if err := desc.Validate(); err != nil {
		return nil, fail(err)
	}
	if desc.Pool != nil {
		pool, ok := desc.Pool.(*DescriptorPool)
		if !ok {
			return nil, fail(fmt.Errorf("descriptor pool was not created by a soft device: %w", core.ErrInvalidDesc))
		}
		if err := pool.allocate(); err != nil {
			return nil, fail(err)
		}
	}
	params := desc.Layout.Desc().Params
	s := &DescriptorSet{desc: desc, uniforms: make([]*hal.UniformSet, 0, len(params))}
	for _, p := range params {
		s.uniforms = append(s.uniforms, hal.NewUniformSet(p))
	}
	s.InitLifecycle(d.ref)
	d.tracker.Track(s)
	return s, nil
}

func textureSize(desc hal.GraphicsTextureDesc) uint64 {
	size := uint64(desc.Width) * uint64(desc.Height) * uint64(desc.Format.Size()) * uint64(max(desc.Depth, 1)) * uint64(desc.Layers)
	if desc.Dim == hal.TEXTURE_DIM_CUBE || desc.Dim == hal.TEXTURE_DIM_CUBE_ARRAY {
		size *= 6
	}
	return size
}
