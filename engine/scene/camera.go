package scene

import (
	"fmt"

	"github.com/spaghettifunk/octoon/engine/core"
	"github.com/spaghettifunk/octoon/engine/hal"
	"github.com/spaghettifunk/octoon/engine/math"
	"github.com/spaghettifunk/octoon/engine/object"
)

type CameraType uint8

const (
	CAMERA_TYPE_PERSPECTIVE CameraType = iota
	CAMERA_TYPE_ORTHOGRAPHIC
)

const (
	/** @brief Screen size used for the pixel viewport of cameras without a framebuffer. */
	DEFAULT_SCREEN_WIDTH  uint32 = 1920
	DEFAULT_SCREEN_HEIGHT uint32 = 1080
)

/** @brief Pitch limit used to avoid gimbal lock, 89 degrees. */
const pitchLimit float32 = 1.55334306

/**
 * @brief A Camera renders the scene from its transform through a perspective
 * or orthographic projection. The viewport is normalized: the pixel viewport
 * is the normalized one scaled by the size of the target framebuffer, or by
 * the screen size when the camera renders to the screen.
 */
type Camera struct {
	node

	name       string
	cameraType CameraType

	fov    float32
	aspect float32
	near   float32
	far    float32

	left   float32
	right  float32
	bottom float32
	top    float32

	order          int32
	viewport       math.Viewport
	clearFlags     hal.ClearFlags
	clearColor     math.Vec4
	renderToScreen bool
	screenWidth    uint32
	screenHeight   uint32

	eulerRotation math.Vec3

	framebuffer     hal.GraphicsFramebuffer
	swapFramebuffer hal.GraphicsFramebuffer
	// targets created by SetupFramebuffers, closed by Close
	target     *hal.RenderTarget
	swapTarget *hal.RenderTarget
}

func newCamera(ctx *object.Context, name string, cameraType CameraType) *Camera {
	c := &Camera{
		name:         name,
		cameraType:   cameraType,
		near:         0.1,
		far:          1000.0,
		viewport:     math.NewViewport(0, 0, 1, 1),
		clearFlags:   hal.CLEAR_ALL,
		clearColor:   math.NewVec4(0, 0, 0, 1),
		screenWidth:  DEFAULT_SCREEN_WIDTH,
		screenHeight: DEFAULT_SCREEN_HEIGHT,
	}
	c.initNode(ctx, object.KIND_CAMERA)
	return c
}

// NewPerspectiveCamera creates a camera with a vertical field of view in
// degrees. The aspect ratio follows the pixel viewport until SetAspect.
func NewPerspectiveCamera(ctx *object.Context, name string, fovDegrees, near, far float32) *Camera {
	c := newCamera(ctx, name, CAMERA_TYPE_PERSPECTIVE)
	c.fov = fovDegrees
	c.near = near
	c.far = far
	return c
}

func NewOrthographicCamera(ctx *object.Context, name string, left, right, bottom, top, near, far float32) *Camera {
	c := newCamera(ctx, name, CAMERA_TYPE_ORTHOGRAPHIC)
	c.left, c.right, c.bottom, c.top = left, right, bottom, top
	c.near = near
	c.far = far
	return c
}

func (c *Camera) Name() string {
	return c.name
}

func (c *Camera) CameraType() CameraType {
	return c.cameraType
}

func (c *Camera) Fov() float32 {
	return c.fov
}

func (c *Camera) SetFov(fovDegrees float32) {
	c.fov = fovDegrees
	c.MarkDirty()
}

// SetAspect fixes the aspect ratio. Zero restores the pixel viewport ratio.
func (c *Camera) SetAspect(aspect float32) {
	c.aspect = aspect
	c.MarkDirty()
}

func (c *Camera) Near() float32 {
	return c.near
}

func (c *Camera) Far() float32 {
	return c.far
}

func (c *Camera) SetClipPlanes(near, far float32) {
	c.near, c.far = near, far
	c.MarkDirty()
}

func (c *Camera) SetOrtho(left, right, bottom, top float32) {
	c.left, c.right, c.bottom, c.top = left, right, bottom, top
	c.MarkDirty()
}

// Order sorts cameras before rendering, lowest first.
func (c *Camera) Order() int32 {
	return c.order
}

func (c *Camera) SetOrder(order int32) {
	c.order = order
	c.MarkDirty()
}

func (c *Camera) Viewport() math.Viewport {
	return c.viewport
}

func (c *Camera) SetViewport(viewport math.Viewport) {
	c.viewport = viewport
	c.MarkDirty()
}

func (c *Camera) ClearFlags() hal.ClearFlags {
	return c.clearFlags
}

func (c *Camera) SetClearFlags(flags hal.ClearFlags) {
	c.clearFlags = flags
	c.MarkDirty()
}

func (c *Camera) ClearColor() math.Vec4 {
	return c.clearColor
}

func (c *Camera) SetClearColor(color math.Vec4) {
	c.clearColor = color
	c.MarkDirty()
}

func (c *Camera) RenderToScreen() bool {
	return c.renderToScreen
}

func (c *Camera) SetRenderToScreen(enable bool) {
	c.renderToScreen = enable
	c.MarkDirty()
}

func (c *Camera) ScreenSize() (uint32, uint32) {
	return c.screenWidth, c.screenHeight
}

// SetScreenSize sets the size the pixel viewport uses when the camera has no
// framebuffer, normally the window size.
func (c *Camera) SetScreenSize(width, height uint32) {
	c.screenWidth, c.screenHeight = width, height
	c.MarkDirty()
}

func (c *Camera) Framebuffer() hal.GraphicsFramebuffer {
	return c.framebuffer
}

func (c *Camera) SetFramebuffer(framebuffer hal.GraphicsFramebuffer) {
	c.framebuffer = framebuffer
	c.MarkDirty()
}

func (c *Camera) SwapFramebuffer() hal.GraphicsFramebuffer {
	return c.swapFramebuffer
}

func (c *Camera) SetSwapFramebuffer(framebuffer hal.GraphicsFramebuffer) {
	c.swapFramebuffer = framebuffer
	c.MarkDirty()
}

// PixelViewport is the normalized viewport scaled to the target size.
func (c *Camera) PixelViewport() math.Viewport {
	width, height := float32(c.screenWidth), float32(c.screenHeight)
	if c.framebuffer != nil {
		desc := c.framebuffer.Desc()
		width, height = float32(desc.Width), float32(desc.Height)
	}
	return c.viewport.Scale(width, height)
}

// View is the inverse of the camera transform.
func (c *Camera) View() math.Mat4 {
	return c.transform.Inverse()
}

func (c *Camera) Projection() math.Mat4 {
	if c.cameraType == CAMERA_TYPE_ORTHOGRAPHIC {
		return math.NewMat4Orthographic(c.left, c.right, c.bottom, c.top, c.near, c.far)
	}
	aspect := c.aspect
	if aspect <= 0 {
		vp := c.PixelViewport()
		aspect = 1
		if vp.Height > 0 {
			aspect = vp.Width / vp.Height
		}
	}
	return math.NewMat4Perspective(math.DegToRad(c.fov), aspect, c.near, c.far)
}

// ViewProjection transforms world positions to clip space.
func (c *Camera) ViewProjection() math.Mat4 {
	return c.View().Mul(c.Projection())
}

// LookAt places the camera at position facing target.
func (c *Camera) LookAt(position, target, up math.Vec3) {
	c.SetTransform(math.NewMat4LookAt(position, target, up).Inverse())
}

func (c *Camera) MoveForward(amount float32) {
	c.move(c.Forward().MulScalar(amount))
}

func (c *Camera) MoveBackward(amount float32) {
	c.move(c.Forward().MulScalar(-amount))
}

func (c *Camera) MoveLeft(amount float32) {
	c.move(c.transform.Right().MulScalar(-amount))
}

func (c *Camera) MoveRight(amount float32) {
	c.move(c.transform.Right().MulScalar(amount))
}

func (c *Camera) MoveUp(amount float32) {
	c.move(math.NewVec3Up().MulScalar(amount))
}

func (c *Camera) MoveDown(amount float32) {
	c.move(math.NewVec3Up().MulScalar(-amount))
}

func (c *Camera) Yaw(amount float32) {
	c.eulerRotation.Y += amount
	c.applyRotation()
}

func (c *Camera) Pitch(amount float32) {
	c.eulerRotation.X = math.Clamp(c.eulerRotation.X+amount, -pitchLimit, pitchLimit)
	c.applyRotation()
}

func (c *Camera) move(delta math.Vec3) {
	c.SetTranslate(c.Translate().Add(delta))
}

func (c *Camera) applyRotation() {
	rotation := math.NewMat4EulerXYZ(c.eulerRotation.X, c.eulerRotation.Y, c.eulerRotation.Z)
	c.SetTransform(rotation.Mul(math.NewMat4Translation(c.Translate())))
}

/**
 * @brief Creates the colour and depth targets of the camera and the
 * framebuffer over them. With multisample above one a resolve target
 * without multisampling is created as the swap framebuffer. Targets created
 * by a previous call are closed first. On failure nothing is kept.
 */
func (c *Camera) SetupFramebuffers(device hal.GraphicsDevice, width, height, multisample uint32, format, depthStencil hal.GraphicsFormat) error {
	desc := hal.RenderTargetDesc{
		Name:               hal.DefaultName(c.name),
		Width:              width,
		Height:             height,
		Multisample:        multisample,
		ColorFormat:        format,
		DepthStencilFormat: depthStencil,
	}
	target, err := hal.CreateRenderTarget(device, desc)
	if err != nil {
		err = fmt.Errorf("camera '%s': %w", c.name, err)
		core.LogError(err.Error())
		return err
	}

	var swap *hal.RenderTarget
	if multisample > 1 {
		desc.Name = hal.DefaultName(c.name + ".swap")
		desc.Multisample = 1
		if swap, err = hal.CreateRenderTarget(device, desc); err != nil {
			target.Close()
			err = fmt.Errorf("camera '%s': %w", c.name, err)
			core.LogError(err.Error())
			return err
		}
	}

	c.closeOwned()
	c.target, c.swapTarget = target, swap
	c.framebuffer = target.Framebuffer
	c.swapFramebuffer = nil
	if swap != nil {
		c.swapFramebuffer = swap.Framebuffer
	}
	c.MarkDirty()
	return nil
}

// ColorTexture returns the first colour attachment of the framebuffer, or nil.
func (c *Camera) ColorTexture() hal.GraphicsTexture {
	if c.framebuffer == nil {
		return nil
	}
	attachments := c.framebuffer.Desc().ColorAttachments
	if len(attachments) == 0 {
		return nil
	}
	return attachments[0].Texture
}

// DepthTexture returns the depth attachment of the framebuffer, or nil.
func (c *Camera) DepthTexture() hal.GraphicsTexture {
	if c.framebuffer == nil {
		return nil
	}
	return c.framebuffer.Desc().DepthStencilAttachment.Texture
}

// Close releases the targets created by SetupFramebuffers.
func (c *Camera) Close() {
	c.closeOwned()
	c.framebuffer = nil
	c.swapFramebuffer = nil
}

func (c *Camera) closeOwned() {
	c.target.Close()
	c.swapTarget.Close()
	c.target, c.swapTarget = nil, nil
}
