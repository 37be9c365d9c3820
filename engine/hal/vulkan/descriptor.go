package vulkan

import (
	"fmt"
	"sync"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/octoon/engine/core"
	"github.com/spaghettifunk/octoon/engine/hal"
)

/** @brief Sets each frame descriptor pool is sized for. */
const DESCRIPTOR_POOL_SETS uint32 = 256

type layoutBinding struct {
	index   int
	binding uint32
	typ     vk.DescriptorType
}

/**
 * @brief DescriptorSetLayout packs the plain-value params into one uniform
 * block at UNIFORM_BLOCK_BINDING and gives every resource param its own
 * binding after it.
 */
type DescriptorSetLayout struct {
	hal.Lifecycle
	device   *Device
	desc     hal.GraphicsDescriptorSetLayoutDesc
	handle   vk.DescriptorSetLayout
	block    blockLayout
	bindings []layoutBinding
}

func (d *Device) newDescriptorSetLayout(desc hal.GraphicsDescriptorSetLayoutDesc) (*DescriptorSetLayout, error) {
	l := &DescriptorSetLayout{device: d, desc: desc, block: newBlockLayout(desc.Params)}

	var bindings []vk.DescriptorSetLayoutBinding
	if l.block.size > 0 {
		bindings = append(bindings, vk.DescriptorSetLayoutBinding{
			Binding:         UNIFORM_BLOCK_BINDING,
			DescriptorType:  vk.DescriptorTypeUniformBuffer,
			DescriptorCount: 1,
			StageFlags:      vk.ShaderStageFlags(vk.ShaderStageVertexBit | vk.ShaderStageFragmentBit),
		})
	}
	used := map[uint32]string{UNIFORM_BLOCK_BINDING: "uniform block"}
	for i, p := range desc.Params {
		typ, ok := vkDescriptorType(p.Type)
		if !ok {
			continue
		}
		binding := resourceBinding(p)
		if other, taken := used[binding]; taken {
			return nil, fail(fmt.Errorf("uniform '%s' binding %d is taken by '%s': %w", p.Name, binding, other, core.ErrInvalidDesc))
		}
		used[binding] = p.Name
		l.bindings = append(l.bindings, layoutBinding{index: i, binding: binding, typ: typ})
		bindings = append(bindings, vk.DescriptorSetLayoutBinding{
			Binding:         binding,
			DescriptorType:  typ,
			DescriptorCount: 1,
			StageFlags:      vkShaderStages(p.Stage),
		})
	}

	info := vk.DescriptorSetLayoutCreateInfo{
		SType:        vk.StructureTypeDescriptorSetLayoutCreateInfo,
		BindingCount: uint32(len(bindings)),
		PBindings:    bindings,
	}
	if err := check(vk.CreateDescriptorSetLayout(d.handle, &info, nil, &l.handle), "vkCreateDescriptorSetLayout"); err != nil {
		return nil, err
	}
	l.InitLifecycle(d.ref)
	return l, nil
}

func (l *DescriptorSetLayout) Desc() hal.GraphicsDescriptorSetLayoutDesc { return l.desc }

func (l *DescriptorSetLayout) Close() {
	l.CloseOnce(func() {
		device, handle := l.device, l.handle
		device.release(func() { vk.DestroyDescriptorSetLayout(device.handle, handle, nil) })
	})
}

/**
 * @brief Writes the current uniform values into a fresh vk.DescriptorSet:
 * plain values go to a new range of the arena, empty or closed resource
 * slots get the device fallbacks.
 */
func (l *DescriptorSetLayout) bind(uniforms []*hal.UniformSet, arena *blockArena, sets *descriptorAllocator) (vk.DescriptorSet, error) {
	vkSet, err := sets.allocate(l.handle)
	if err != nil {
		return nil, err
	}

	writes := make([]vk.WriteDescriptorSet, 0, len(l.bindings)+1)
	if l.block.size > 0 {
		dst, chunk, offset, err := arena.alloc(uint64(l.block.size))
		if err != nil {
			return nil, err
		}
		l.block.encode(dst, uniforms)
		writes = append(writes, vk.WriteDescriptorSet{
			SType:           vk.StructureTypeWriteDescriptorSet,
			DstSet:          vkSet,
			DstBinding:      UNIFORM_BLOCK_BINDING,
			DescriptorCount: 1,
			DescriptorType:  vk.DescriptorTypeUniformBuffer,
			PBufferInfo: []vk.DescriptorBufferInfo{{
				Buffer: chunk.buffer,
				Offset: vk.DeviceSize(offset),
				Range:  vk.DeviceSize(l.block.size),
			}},
		})
	}

	fallbackTexture, fallbackSampler, err := l.device.fallbacks()
	if err != nil {
		return nil, err
	}
	for _, b := range l.bindings {
		var u *hal.UniformSet
		if b.index < len(uniforms) {
			u = uniforms[b.index]
		}
		write := vk.WriteDescriptorSet{
			SType:           vk.StructureTypeWriteDescriptorSet,
			DstSet:          vkSet,
			DstBinding:      b.binding,
			DescriptorCount: 1,
			DescriptorType:  b.typ,
		}
		switch b.typ {
		case vk.DescriptorTypeUniformBuffer, vk.DescriptorTypeStorageBuffer:
			info, err := bufferInfo(u, arena)
			if err != nil {
				return nil, err
			}
			write.PBufferInfo = []vk.DescriptorBufferInfo{info}
		default:
			tex, sampler := fallbackTexture, fallbackSampler
			if u != nil {
				if t, ok := u.Texture().(*Texture); ok && !t.IsClosed() {
					tex = t
				}
				if s, ok := u.TextureSampler().(*Sampler); ok && !s.IsClosed() {
					sampler = s
				}
			}
			layout := tex.layout
			if b.typ == vk.DescriptorTypeStorageImage {
				layout = vk.ImageLayoutGeneral
			}
			write.PImageInfo = []vk.DescriptorImageInfo{{
				Sampler:     sampler.handle,
				ImageView:   tex.view,
				ImageLayout: layout,
			}}
		}
		writes = append(writes, write)
	}
	if len(writes) > 0 {
		vk.UpdateDescriptorSets(l.device.handle, uint32(len(writes)), writes, 0, nil)
	}
	return vkSet, nil
}

func bufferInfo(u *hal.UniformSet, arena *blockArena) (vk.DescriptorBufferInfo, error) {
	if u != nil {
		if data, ok := u.Buffer().(*Data); ok && !data.IsClosed() {
			return vk.DescriptorBufferInfo{Buffer: data.buffer, Range: vk.DeviceSize(data.desc.Size)}, nil
		}
	}
	// nothing bound, point at a zeroed range
	_, chunk, offset, err := arena.alloc(16)
	if err != nil {
		return vk.DescriptorBufferInfo{}, err
	}
	return vk.DescriptorBufferInfo{Buffer: chunk.buffer, Offset: vk.DeviceSize(offset), Range: 16}, nil
}

/**
 * @brief Hands out vk.DescriptorSets for one frame. All pools are reset when
 * the frame starts over; a new pool is added when the current ones run dry.
 */
type descriptorAllocator struct {
	device  *Device
	pools   []vk.DescriptorPool
	current int
}

func (a *descriptorAllocator) reset() {
	for _, pool := range a.pools {
		vk.ResetDescriptorPool(a.device.handle, pool, 0)
	}
	a.current = 0
}

func (a *descriptorAllocator) allocate(layout vk.DescriptorSetLayout) (vk.DescriptorSet, error) {
	for {
		if a.current == len(a.pools) {
			pool, err := a.newPool()
			if err != nil {
				return nil, err
			}
			a.pools = append(a.pools, pool)
		}
		info := vk.DescriptorSetAllocateInfo{
			SType:              vk.StructureTypeDescriptorSetAllocateInfo,
			DescriptorPool:     a.pools[a.current],
			DescriptorSetCount: 1,
			PSetLayouts:        []vk.DescriptorSetLayout{layout},
		}
		var set vk.DescriptorSet
		switch res := vk.AllocateDescriptorSets(a.device.handle, &info, &set); res {
		case vk.Success:
			return set, nil
		case vk.ErrorOutOfPoolMemory, vk.ErrorFragmentedPool:
			a.current++
		default:
			return nil, check(res, "vkAllocateDescriptorSets")
		}
	}
}

func (a *descriptorAllocator) newPool() (vk.DescriptorPool, error) {
	n := DESCRIPTOR_POOL_SETS
	sizes := []vk.DescriptorPoolSize{
		{Type: vk.DescriptorTypeUniformBuffer, DescriptorCount: 2 * n},
		{Type: vk.DescriptorTypeCombinedImageSampler, DescriptorCount: 8 * n},
		{Type: vk.DescriptorTypeSampledImage, DescriptorCount: n},
		{Type: vk.DescriptorTypeSampler, DescriptorCount: n},
		{Type: vk.DescriptorTypeStorageImage, DescriptorCount: n},
		{Type: vk.DescriptorTypeStorageBuffer, DescriptorCount: n},
	}
	info := vk.DescriptorPoolCreateInfo{
		SType:         vk.StructureTypeDescriptorPoolCreateInfo,
		MaxSets:       n,
		PoolSizeCount: uint32(len(sizes)),
		PPoolSizes:    sizes,
	}
	var pool vk.DescriptorPool
	if err := check(vk.CreateDescriptorPool(a.device.handle, &info, nil, &pool), "vkCreateDescriptorPool"); err != nil {
		return nil, err
	}
	core.LogDebug("descriptor pool %d created", len(a.pools))
	return pool, nil
}

func (a *descriptorAllocator) destroy() {
	for _, pool := range a.pools {
		vk.DestroyDescriptorPool(a.device.handle, pool, nil)
	}
	a.pools = nil
}

// DescriptorPool only counts sets, vk.DescriptorSets come from the context.
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
	if p.desc.MaxSets > 0 && p.allocated >= p.desc.MaxSets {
		return fmt.Errorf("descriptor pool exhausted after %d sets: %w", p.desc.MaxSets, core.ErrInvalidDesc)
	}
	p.allocated++
	return nil
}

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
