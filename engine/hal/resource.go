package hal

import (
	"sync"
	"sync/atomic"

	"github.com/spaghettifunk/octoon/engine/math"
)

/**
 * @brief Implemented by every object a device creates. A resource moves from
 * created to closed exactly once; Close on a closed resource does nothing.
 * Device returns a weak reference to the creator that never keeps it alive.
 */
type GraphicsResource interface {
	Device() DeviceRef
	Close()
	IsClosed() bool
}

type GraphicsDevice interface {
	Desc() GraphicsDeviceDesc
	// Ref is the weak reference resources created by this device hand out.
	Ref() DeviceRef
	Close()
	IsClosed() bool

	CreateSwapchain(desc GraphicsSwapchainDesc) (GraphicsSwapchain, error)
	CreateDeviceContext(desc GraphicsContextDesc) (GraphicsContext, error)
	CreateInputLayout(desc GraphicsInputLayoutDesc) (GraphicsInputLayout, error)
	CreateGraphicsData(desc GraphicsDataDesc) (GraphicsData, error)
	CreateTexture(desc GraphicsTextureDesc) (GraphicsTexture, error)
	CreateSampler(desc GraphicsSamplerDesc) (GraphicsSampler, error)
	CreateFramebufferLayout(desc GraphicsFramebufferLayoutDesc) (GraphicsFramebufferLayout, error)
	CreateFramebuffer(desc GraphicsFramebufferDesc) (GraphicsFramebuffer, error)
	CreateProgram(desc GraphicsProgramDesc) (GraphicsProgram, error)
	CreateRenderPipeline(desc GraphicsPipelineDesc) (GraphicsPipeline, error)
	CreateDescriptorPool(desc GraphicsDescriptorPoolDesc) (GraphicsDescriptorPool, error)
	CreateDescriptorSetLayout(desc GraphicsDescriptorSetLayoutDesc) (GraphicsDescriptorSetLayout, error)
	CreateDescriptorSet(desc GraphicsDescriptorSetDesc) (GraphicsDescriptorSet, error)
}

type GraphicsSwapchain interface {
	GraphicsResource
	Desc() GraphicsSwapchainDesc
	Resize(width, height uint32) error
	Present() error
}

/**
 * @brief Records and submits commands for one device. SetFramebuffer(nil)
 * targets the swapchain (or nothing on headless devices).
 */
type GraphicsContext interface {
	GraphicsResource

	BeginFrame() error
	EndFrame() error
	Present() error

	SetViewport(i uint32, viewport math.Viewport)
	Viewport(i uint32) math.Viewport
	SetScissor(i uint32, scissor math.Viewport)
	Scissor(i uint32) math.Viewport

	SetRenderPipeline(pipeline GraphicsPipeline)
	RenderPipeline() GraphicsPipeline
	SetDescriptorSet(set GraphicsDescriptorSet)
	DescriptorSet() GraphicsDescriptorSet

	SetVertexBufferData(i uint32, data GraphicsData, offset uint64)
	VertexBufferData(i uint32) GraphicsData
	SetIndexBufferData(data GraphicsData, offset uint64, format IndexFormat)
	IndexBufferData() GraphicsData

	SetFramebuffer(target GraphicsFramebuffer)
	Framebuffer() GraphicsFramebuffer
	ClearFramebuffer(i uint32, flags ClearFlags, color math.Vec4, depth float32, stencil int32)
	DiscardFramebuffer(target GraphicsFramebuffer, flags ClearFlags)
	BlitFramebuffer(src GraphicsFramebuffer, srcRect math.Viewport, dest GraphicsFramebuffer, destRect math.Viewport)

	Draw(numVertices, numInstances, startVertex, startInstance uint32)
	DrawIndexed(numIndices, numInstances, startIndice, startVertex, startInstance uint32)
}

type GraphicsInputLayout interface {
	GraphicsResource
	Desc() GraphicsInputLayoutDesc
}

type GraphicsData interface {
	GraphicsResource
	Desc() GraphicsDataDesc
	Size() uint64
	// Upload writes data at offset. Writes past the end fail.
	Upload(offset uint64, data []byte) error
}

type GraphicsTexture interface {
	GraphicsResource
	Desc() GraphicsTextureDesc
	Upload(data []byte) error
}

type GraphicsSampler interface {
	GraphicsResource
	Desc() GraphicsSamplerDesc
}

type GraphicsFramebufferLayout interface {
	GraphicsResource
	Desc() GraphicsFramebufferLayoutDesc
}

type GraphicsFramebuffer interface {
	GraphicsResource
	Desc() GraphicsFramebufferDesc
}

type GraphicsProgram interface {
	GraphicsResource
	Desc() GraphicsProgramDesc
	// Params lists the uniforms the program declares.
	Params() []UniformParam
}

type GraphicsPipeline interface {
	GraphicsResource
	Desc() GraphicsPipelineDesc
}

type GraphicsDescriptorPool interface {
	GraphicsResource
	Desc() GraphicsDescriptorPoolDesc
}

type GraphicsDescriptorSetLayout interface {
	GraphicsResource
	Desc() GraphicsDescriptorSetLayoutDesc
}

type GraphicsDescriptorSet interface {
	GraphicsResource
	Desc() GraphicsDescriptorSetDesc
	UniformSets() []*UniformSet
	// UniformSet returns the set named name, or nil.
	UniformSet(name string) *UniformSet
}

/**
 * @brief Lifecycle implements the created/closed state and the device back
 * reference shared by all resources. Backends embed it and call CloseOnce
 * from their Close.
 */
type Lifecycle struct {
	device DeviceRef
	closed atomic.Bool
}

// InitLifecycle binds the resource to its creator. Call it once, before use.
func (l *Lifecycle) InitLifecycle(device DeviceRef) {
	l.device = device
}

func (l *Lifecycle) Device() DeviceRef {
	return l.device
}

func (l *Lifecycle) IsClosed() bool {
	return l.closed.Load()
}

// CloseOnce runs release the first time it is called and reports whether it did.
func (l *Lifecycle) CloseOnce(release func()) bool {
	if !l.closed.CompareAndSwap(false, true) {
		return false
	}
	if release != nil {
		release()
	}
	return true
}

/**
 * @brief ResourceTracker remembers what a device created so closing the
 * device closes whatever its owners left open, newest first.
 */
type ResourceTracker struct {
	mu        sync.Mutex
	resources []GraphicsResource
}

func (t *ResourceTracker) Track(r GraphicsResource) {
	t.mu.Lock()
	defer t.mu.Unlock()

	// drop what was closed in the meantime so the list does not grow forever
	live := t.resources[:0]
	for _, res := range t.resources {
		if !res.IsClosed() {
			live = append(live, res)
		}
	}
	t.resources = append(live, r)
}

// Live returns how many tracked resources are not closed yet.
func (t *ResourceTracker) Live() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	n := 0
	for _, r := range t.resources {
		if !r.IsClosed() {
			n++
		}
	}
	return n
}

func (t *ResourceTracker) CloseAll() {
	t.mu.Lock()
	resources := t.resources
	t.resources = nil
	t.mu.Unlock()

	for i := len(resources) - 1; i >= 0; i-- {
		resources[i].Close()
	}
}
