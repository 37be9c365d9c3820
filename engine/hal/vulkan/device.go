package vulkan

import (
	"fmt"
	"sync"
	"sync/atomic"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/octoon/engine/core"
	"github.com/spaghettifunk/octoon/engine/hal"
)

const PORTABILITY_SUBSET_EXTENSION string = "VK_KHR_portability_subset"

/**
 * @brief Device is one logical Vulkan device on the first physical device
 * with a graphics queue, discrete GPUs first. A single queue serves graphics,
 * transfers and presentation.
 */
type Device struct {
	desc   hal.GraphicsDeviceDesc
	ref    hal.DeviceRef
	debug  bool
	closed atomic.Bool

	instance    vk.Instance
	physical    vk.PhysicalDevice
	handle      vk.Device
	queueFamily uint32
	queue       vk.Queue
	// serialises every use of queue, submission is not thread safe
	queueMu     sync.Mutex
	commandPool vk.CommandPool
	poolMu      sync.Mutex

	properties vk.PhysicalDeviceProperties
	limits     vk.PhysicalDeviceLimits
	features   vk.PhysicalDeviceFeatures
	memory     vk.PhysicalDeviceMemoryProperties
	swapchain  bool
	passes     renderPassCache

	// releases of closed resources wait for the frame that may still use them
	releaseMu sync.Mutex
	releases  []func()
	contexts  atomic.Int32

	fallbackOnce    sync.Once
	fallbackTexture *Texture
	fallbackSampler *Sampler
	fallbackErr     error

	tracker hal.ResourceTracker
}

func newDevice(instance vk.Instance, desc hal.GraphicsDeviceDesc, ref hal.DeviceRef, debug bool) (*Device, error) {
	d := &Device{desc: desc, ref: ref, debug: debug, instance: instance}
	if err := d.selectPhysicalDevice(); err != nil {
		return nil, err
	}
	if err := d.createLogicalDevice(); err != nil {
		return nil, err
	}
	return d, nil
}

func (d *Device) selectPhysicalDevice() error {
	var count uint32
	if err := check(vk.EnumeratePhysicalDevices(d.instance, &count, nil), "vkEnumeratePhysicalDevices"); err != nil {
		return err
	}
	if count == 0 {
		return fail(fmt.Errorf("no Vulkan capable GPU found: %w", core.ErrBackendUnavailable))
	}
	gpus := make([]vk.PhysicalDevice, count)
	if err := check(vk.EnumeratePhysicalDevices(d.instance, &count, gpus), "vkEnumeratePhysicalDevices"); err != nil {
		return err
	}

	found := false
	for _, gpu := range gpus {
		family, ok := graphicsQueueFamily(gpu)
		if !ok {
			continue
		}
		var props vk.PhysicalDeviceProperties
		vk.GetPhysicalDeviceProperties(gpu, &props)
		props.Deref()
		// the first usable GPU wins unless a discrete one shows up later
		if found && props.DeviceType != vk.PhysicalDeviceTypeDiscreteGpu {
			continue
		}
		d.physical = gpu
		d.queueFamily = family
		d.properties = props
		found = true
		if props.DeviceType == vk.PhysicalDeviceTypeDiscreteGpu {
			break
		}
	}
	if !found {
		return fail(fmt.Errorf("no GPU with a graphics queue: %w", core.ErrBackendUnavailable))
	}

	d.properties.Limits.Deref()
	d.limits = d.properties.Limits
	vk.GetPhysicalDeviceFeatures(d.physical, &d.features)
	d.features.Deref()
	vk.GetPhysicalDeviceMemoryProperties(d.physical, &d.memory)
	d.memory.Deref()
	for i := uint32(0); i < d.memory.MemoryTypeCount; i++ {
		d.memory.MemoryTypes[i].Deref()
	}

	core.LogInfo("selected GPU: %s", cString(d.properties.DeviceName[:]))
	api := d.properties.ApiVersion
	core.LogDebug("GPU driver version %d, API version %d.%d.%d", d.properties.DriverVersion, api>>22, (api>>12)&0x3ff, api&0xfff)
	return nil
}

func graphicsQueueFamily(gpu vk.PhysicalDevice) (uint32, bool) {
	var count uint32
	vk.GetPhysicalDeviceQueueFamilyProperties(gpu, &count, nil)
	families := make([]vk.QueueFamilyProperties, count)
	vk.GetPhysicalDeviceQueueFamilyProperties(gpu, &count, families)
	for i := range families {
		families[i].Deref()
		if vk.QueueFlagBits(families[i].QueueFlags)&vk.QueueGraphicsBit != 0 && families[i].QueueCount > 0 {
			return uint32(i), true
		}
	}
	return 0, false
}

func (d *Device) deviceExtensions() []string {
	var count uint32
	if vk.EnumerateDeviceExtensionProperties(d.physical, "", &count, nil) != vk.Success || count == 0 {
		return nil
	}
	available := make([]vk.ExtensionProperties, count)
	if vk.EnumerateDeviceExtensionProperties(d.physical, "", &count, available) != vk.Success {
		return nil
	}
	var extensions []string
	for i := range available {
		available[i].Deref()
		switch name := cString(available[i].ExtensionName[:]); name {
		case vk.KhrSwapchainExtensionName:
			extensions = append(extensions, name)
			d.swapchain = true
		case PORTABILITY_SUBSET_EXTENSION:
			core.LogInfo("adding required extension '%s'", name)
			extensions = append(extensions, name)
		}
	}
	return extensions
}

func (d *Device) createLogicalDevice() error {
	// only request what the GPU has, pipelines check the flags before use
	features := vk.PhysicalDeviceFeatures{
		SamplerAnisotropy: d.features.SamplerAnisotropy,
		FillModeNonSolid:  d.features.FillModeNonSolid,
		DepthClamp:        d.features.DepthClamp,
		WideLines:         d.features.WideLines,
	}
	extensions := d.deviceExtensions()
	createInfo := vk.DeviceCreateInfo{
		SType:                vk.StructureTypeDeviceCreateInfo,
		QueueCreateInfoCount: 1,
		PQueueCreateInfos: []vk.DeviceQueueCreateInfo{{
			SType:            vk.StructureTypeDeviceQueueCreateInfo,
			QueueFamilyIndex: d.queueFamily,
			QueueCount:       1,
			PQueuePriorities: []float32{1.0},
		}},
		PEnabledFeatures:        []vk.PhysicalDeviceFeatures{features},
		EnabledExtensionCount:   uint32(len(extensions)),
		PpEnabledExtensionNames: safeStrings(extensions),
	}
	var device vk.Device
	if err := check(vk.CreateDevice(d.physical, &createInfo, nil, &device), "vkCreateDevice"); err != nil {
		return err
	}
	d.handle = device
	vk.GetDeviceQueue(device, d.queueFamily, 0, &d.queue)

	poolInfo := vk.CommandPoolCreateInfo{
		SType:            vk.StructureTypeCommandPoolCreateInfo,
		Flags:            vk.CommandPoolCreateFlags(vk.CommandPoolCreateResetCommandBufferBit),
		QueueFamilyIndex: d.queueFamily,
	}
	if err := check(vk.CreateCommandPool(device, &poolInfo, nil, &d.commandPool), "vkCreateCommandPool"); err != nil {
		vk.DestroyDevice(device, nil)
		return err
	}
	core.LogInfo("vulkan logical device created")
	return nil
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

// Handle exposes the logical device for code that records its own commands.
func (d *Device) Handle() vk.Device {
	return d.handle
}

func (d *Device) Close() {
	if !d.closed.CompareAndSwap(false, true) {
		return
	}
	d.waitIdle()
	d.tracker.CloseAll()
	d.waitIdle()
	d.flushReleases()

	d.passes.destroy(d.handle)
	vk.DestroyCommandPool(d.handle, d.commandPool, nil)
	vk.DestroyDevice(d.handle, nil)
	d.handle = nil
	d.ref.Release()
	core.LogInfo("vulkan logical device destroyed")
}

func (d *Device) waitIdle() {
	d.queueMu.Lock()
	defer d.queueMu.Unlock()
	if res := vk.DeviceWaitIdle(d.handle); res != vk.Success {
		core.LogWarn("vkDeviceWaitIdle failed with %s", ResultString(res))
	}
}

// release runs fn once no frame can reference the resource anymore.
func (d *Device) release(fn func()) {
	if d.contexts.Load() == 0 || d.closed.Load() {
		d.waitIdle()
		fn()
		return
	}
	d.releaseMu.Lock()
	d.releases = append(d.releases, fn)
	d.releaseMu.Unlock()
}

func (d *Device) flushReleases() {
	d.releaseMu.Lock()
	releases := d.releases
	d.releases = nil
	d.releaseMu.Unlock()
	for _, fn := range releases {
		fn()
	}
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

func (d *Device) findMemoryType(typeBits uint32, props vk.MemoryPropertyFlagBits) (uint32, error) {
	for i := uint32(0); i < d.memory.MemoryTypeCount; i++ {
		flags := vk.MemoryPropertyFlagBits(d.memory.MemoryTypes[i].PropertyFlags)
		if typeBits&(1<<i) != 0 && flags&props == props {
			return i, nil
		}
	}
	return 0, fail(fmt.Errorf("no memory type with properties %#x in %#x: %w", props, typeBits, core.ErrBackendUnavailable))
}

// createBuffer allocates a buffer bound to fresh memory with props.
func (d *Device) createBuffer(size uint64, usage vk.BufferUsageFlags, props vk.MemoryPropertyFlagBits) (vk.Buffer, vk.DeviceMemory, error) {
	info := vk.BufferCreateInfo{
		SType:       vk.StructureTypeBufferCreateInfo,
		Size:        vk.DeviceSize(size),
		Usage:       usage,
		SharingMode: vk.SharingModeExclusive,
	}
	var buffer vk.Buffer
	if err := check(vk.CreateBuffer(d.handle, &info, nil, &buffer), "vkCreateBuffer"); err != nil {
		return vk.NullBuffer, vk.NullDeviceMemory, err
	}
	var req vk.MemoryRequirements
	vk.GetBufferMemoryRequirements(d.handle, buffer, &req)
	req.Deref()

	memory, err := d.allocate(req, props)
	if err != nil {
		vk.DestroyBuffer(d.handle, buffer, nil)
		return vk.NullBuffer, vk.NullDeviceMemory, err
	}
	if err := check(vk.BindBufferMemory(d.handle, buffer, memory, 0), "vkBindBufferMemory"); err != nil {
		vk.FreeMemory(d.handle, memory, nil)
		vk.DestroyBuffer(d.handle, buffer, nil)
		return vk.NullBuffer, vk.NullDeviceMemory, err
	}
	return buffer, memory, nil
}

func (d *Device) allocate(req vk.MemoryRequirements, props vk.MemoryPropertyFlagBits) (vk.DeviceMemory, error) {
	index, err := d.findMemoryType(req.MemoryTypeBits, props)
	if err != nil {
		return vk.NullDeviceMemory, err
	}
	info := vk.MemoryAllocateInfo{
		SType:           vk.StructureTypeMemoryAllocateInfo,
		AllocationSize:  req.Size,
		MemoryTypeIndex: index,
	}
	var memory vk.DeviceMemory
	if err := check(vk.AllocateMemory(d.handle, &info, nil, &memory), "vkAllocateMemory"); err != nil {
		return vk.NullDeviceMemory, err
	}
	return memory, nil
}

// supportsTexture reports whether the GPU can create desc with optimal tiling.
func (d *Device) supportsTexture(desc hal.GraphicsTextureDesc) bool {
	var props vk.FormatProperties
	vk.GetPhysicalDeviceFormatProperties(d.physical, vkFormat(desc.Format), &props)
	props.Deref()
	features := vk.FormatFeatureFlagBits(props.OptimalTilingFeatures)

	var need vk.FormatFeatureFlagBits
	if desc.Usage&hal.TEXTURE_USAGE_SAMPLED_BIT != 0 {
		need |= vk.FormatFeatureSampledImageBit
	}
	if desc.Usage&(hal.TEXTURE_USAGE_COLOR_ATTACHMENT_BIT|hal.TEXTURE_USAGE_DEPTH_ATTACHMENT_BIT) != 0 {
		if desc.Format.IsDepth() {
			need |= vk.FormatFeatureDepthStencilAttachmentBit
		} else {
			need |= vk.FormatFeatureColorAttachmentBit
		}
	}
	if features&need != need || features == 0 {
		return false
	}

	samples := vkSampleCount(desc.Multisample)
	if samples == vk.SampleCount1Bit {
		return true
	}
	counts := vk.SampleCountFlagBits(d.limits.FramebufferColorSampleCounts)
	if desc.Format.IsDepth() {
		counts = vk.SampleCountFlagBits(d.limits.FramebufferDepthSampleCounts)
	}
	// the nearest lower count is not good enough, callers asked for this one
	return counts&samples != 0 && uint32(samples) == max(desc.Multisample, 1)
}

/**
 * @brief Records commands into a one-shot buffer, submits it and waits for
 * the queue to drain. Used for uploads and initial layout transitions.
 */
func (d *Device) submitOnce(record func(cmd vk.CommandBuffer)) error {
	d.poolMu.Lock()
	defer d.poolMu.Unlock()

	cmds := make([]vk.CommandBuffer, 1)
	allocInfo := vk.CommandBufferAllocateInfo{
		SType:              vk.StructureTypeCommandBufferAllocateInfo,
		CommandPool:        d.commandPool,
		Level:              vk.CommandBufferLevelPrimary,
		CommandBufferCount: 1,
	}
	if err := check(vk.AllocateCommandBuffers(d.handle, &allocInfo, cmds), "vkAllocateCommandBuffers"); err != nil {
		return err
	}
	defer vk.FreeCommandBuffers(d.handle, d.commandPool, 1, cmds)

	beginInfo := vk.CommandBufferBeginInfo{
		SType: vk.StructureTypeCommandBufferBeginInfo,
		Flags: vk.CommandBufferUsageFlags(vk.CommandBufferUsageOneTimeSubmitBit),
	}
	if err := check(vk.BeginCommandBuffer(cmds[0], &beginInfo), "vkBeginCommandBuffer"); err != nil {
		return err
	}
	record(cmds[0])
	if err := check(vk.EndCommandBuffer(cmds[0]), "vkEndCommandBuffer"); err != nil {
		return err
	}

	d.queueMu.Lock()
	defer d.queueMu.Unlock()
	submit := []vk.SubmitInfo{{
		SType:              vk.StructureTypeSubmitInfo,
		CommandBufferCount: 1,
		PCommandBuffers:    cmds,
	}}
	if err := check(vk.QueueSubmit(d.queue, 1, submit, vk.NullFence), "vkQueueSubmit"); err != nil {
		return err
	}
	return check(vk.QueueWaitIdle(d.queue), "vkQueueWaitIdle")
}

// fallbacks returns the texture and sampler bound to resource slots left empty.
func (d *Device) fallbacks() (*Texture, *Sampler, error) {
	d.fallbackOnce.Do(func() {
		tex, err := d.newTexture(hal.GraphicsTextureDesc{
			Name:   "vulkan.fallback",
			Format: hal.FORMAT_R8G8B8A8_UNORM,
			Width:  1,
			Height: 1,
			Usage:  hal.TEXTURE_USAGE_SAMPLED_BIT,
			Stream: []byte{255, 255, 255, 255},
		})
		if err != nil {
			d.fallbackErr = err
			return
		}
		sampler, err := d.newSampler(hal.GraphicsSamplerDesc{
			MinFilter: hal.SAMPLER_FILTER_LINEAR,
			MagFilter: hal.SAMPLER_FILTER_LINEAR,
		})
		if err != nil {
			tex.Close()
			d.fallbackErr = err
			return
		}
		d.tracker.Track(tex)
		d.tracker.Track(sampler)
		d.fallbackTexture, d.fallbackSampler = tex, sampler
	})
	return d.fallbackTexture, d.fallbackSampler, d.fallbackErr
}

func (d *Device) CreateSwapchain(desc hal.GraphicsSwapchainDesc) (hal.GraphicsSwapchain, error) {
	if err := d.check("swapchain"); err != nil {
		return nil, err
	}
	if err := desc.Validate(); err != nil {
		return nil, fail(err)
	}
	if !d.swapchain {
		return nil, fail(fmt.Errorf("GPU lacks %s: %w", vk.KhrSwapchainExtensionName, core.ErrBackendUnavailable))
	}
	s, err := newSwapchain(d, desc)
	if err != nil {
		return nil, err
	}
	s.InitLifecycle(d.ref)
	d.tracker.Track(s)
	return s, nil
}

func (d *Device) CreateDeviceContext(desc hal.GraphicsContextDesc) (hal.GraphicsContext, error) {
	if err := d.check("device context"); err != nil {
		return nil, err
	}
	var swapchain *Swapchain
	if desc.Swapchain != nil {
		s, ok := desc.Swapchain.(*Swapchain)
		if !ok {
			return nil, fail(fmt.Errorf("swapchain was not created by a vulkan device: %w", core.ErrInvalidDesc))
		}
		swapchain = s
	}
	c, err := newContext(d, desc, swapchain)
	if err != nil {
		return nil, err
	}
	c.InitLifecycle(d.ref)
	d.contexts.Add(1)
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
		desc.Name = hal.DefaultName("vulkan.data")
	}
	if err := desc.Validate(); err != nil {
		return nil, fail(err)
	}
	data, err := d.newData(desc)
	if err != nil {
		return nil, err
	}
	d.tracker.Track(data)
	return data, nil
}

func (d *Device) CreateTexture(desc hal.GraphicsTextureDesc) (hal.GraphicsTexture, error) {
	if err := d.check("texture"); err != nil {
		return nil, err
	}
	t, err := d.newTexture(desc)
	if err != nil {
		return nil, err
	}
	d.tracker.Track(t)
	return t, nil
}

func (d *Device) CreateSampler(desc hal.GraphicsSamplerDesc) (hal.GraphicsSampler, error) {
	if err := d.check("sampler"); err != nil {
		return nil, err
	}
	s, err := d.newSampler(desc)
	if err != nil {
		return nil, err
	}
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
	l, err := d.newFramebufferLayout(desc)
	if err != nil {
		return nil, err
	}
	d.tracker.Track(l)
	return l, nil
}

func (d *Device) CreateFramebuffer(desc hal.GraphicsFramebufferDesc) (hal.GraphicsFramebuffer, error) {
	if err := d.check("framebuffer"); err != nil {
		return nil, err
	}
	if desc.Name == "" {
		desc.Name = hal.DefaultName("vulkan.framebuffer")
	}
	if err := desc.Validate(); err != nil {
		return nil, fail(err)
	}
	f, err := d.newFramebuffer(desc)
	if err != nil {
		return nil, err
	}
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
	p, err := d.newProgram(desc)
	if err != nil {
		return nil, err
	}
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
	p, err := d.newPipeline(desc)
	if err != nil {
		return nil, err
	}
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
	l, err := d.newDescriptorSetLayout(desc)
	if err != nil {
		return nil, err
	}
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
	if _, ok := desc.Layout.(*DescriptorSetLayout); !ok {
		return nil, fail(fmt.Errorf("descriptor set layout was not created by a vulkan device: %w", core.ErrInvalidDesc))
	}
	if desc.Pool != nil {
		pool, ok := desc.Pool.(*DescriptorPool)
		if !ok {
			return nil, fail(fmt.Errorf("descriptor pool was not created by a vulkan device: %w", core.ErrInvalidDesc))
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
