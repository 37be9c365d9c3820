package hal

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/jinzhu/copier"
	"github.com/spaghettifunk/octoon/engine/core"
)

// DefaultName builds a unique debug name for resources created without one.
func DefaultName(prefix string) string {
	return fmt.Sprintf("%s.%s", prefix, uuid.NewString())
}

// deepCopy copies src into dst without sharing slices, so a device can keep a
// description the caller goes on to mutate.
func deepCopy(dst, src interface{}) error {
	if err := copier.CopyWithOption(dst, src, copier.Option{DeepCopy: true}); err != nil {
		return fmt.Errorf("description copy failed: %s: %w", err.Error(), core.ErrInvalidDesc)
	}
	return nil
}

func invalidDesc(format string, args ...interface{}) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), core.ErrInvalidDesc)
}

type GraphicsDeviceDesc struct {
	DeviceType GraphicsDeviceType
	/** @brief Enables validation layers / command validation on the backend. */
	EnableDebug bool
	/** @brief Application name reported to the driver, if applicable. */
	ApplicationName string
}

type GraphicsSwapchainDesc struct {
	/** @brief Native window the swapchain presents to. Nil for headless devices. */
	Window             interface{}
	Width              uint32
	Height             uint32
	VSync              bool
	ColorFormat        GraphicsFormat
	DepthStencilFormat GraphicsFormat
	ImageCount         uint32
}

func (d *GraphicsSwapchainDesc) Validate() error {
	if d.Width == 0 || d.Height == 0 {
		return invalidDesc("swapchain size must be greater than zero, got %dx%d", d.Width, d.Height)
	}
	if d.ColorFormat.IsDepth() {
		return invalidDesc("swapchain colour format cannot be a depth format")
	}
	return nil
}

type GraphicsContextDesc struct {
	Swapchain GraphicsSwapchain
}

type VertexAttribute struct {
	Semantic      string
	SemanticIndex uint32
	Format        GraphicsFormat
	Offset        uint32
	Binding       uint32
}

type VertexBinding struct {
	Slot     uint32
	Stride   uint32
	StepMode VertexStepMode
}

type GraphicsInputLayoutDesc struct {
	Attributes []VertexAttribute
	Bindings   []VertexBinding
}

func (d *GraphicsInputLayoutDesc) Clone() (GraphicsInputLayoutDesc, error) {
	var c GraphicsInputLayoutDesc
	err := deepCopy(&c, d)
	return c, err
}

// VertexSize returns the summed size of the attributes read from binding slot.
func (d *GraphicsInputLayoutDesc) VertexSize(slot uint32) uint32 {
	size := uint32(0)
	for _, a := range d.Attributes {
		if a.Binding == slot {
			size += a.Format.Size()
		}
	}
	return size
}

func (d *GraphicsInputLayoutDesc) Validate() error {
	if len(d.Attributes) == 0 {
		return invalidDesc("input layout has no attributes")
	}
	for _, a := range d.Attributes {
		if a.Format == FORMAT_UNDEFINED || a.Format >= FORMAT_MAX {
			return invalidDesc("attribute '%s' has an undefined format", a.Semantic)
		}
	}
	return nil
}

type GraphicsDataDesc struct {
	Name   string
	Type   GraphicsDataType
	Usage  UsageFlags
	Stream []byte
	Size   uint64
}

func (d *GraphicsDataDesc) Validate() error {
	if d.Type == DATA_TYPE_NONE {
		return invalidDesc("graphics data '%s' has no type", d.Name)
	}
	if d.Size == 0 {
		return invalidDesc("graphics data '%s' has zero size", d.Name)
	}
	if d.Stream != nil && uint64(len(d.Stream)) > d.Size {
		return invalidDesc("graphics data '%s' stream of %d bytes exceeds size %d", d.Name, len(d.Stream), d.Size)
	}
	return nil
}

type GraphicsTextureDesc struct {
	Name      string
	Dim       TextureDim
	Format    GraphicsFormat
	Width     uint32
	Height    uint32
	Depth     uint32
	MipLevels uint32
	Layers    uint32
	/** @brief Number of samples per texel. 0 and 1 both mean no multisampling. */
	Multisample uint32
	Usage       TextureUsageFlags
	Stream      []byte
}

func (d *GraphicsTextureDesc) Validate() error {
	if d.Width == 0 || d.Height == 0 {
		return invalidDesc("texture '%s' size must be greater than zero, got %dx%d", d.Name, d.Width, d.Height)
	}
	if d.Format == FORMAT_UNDEFINED || d.Format >= FORMAT_MAX {
		return fmt.Errorf("texture '%s' format %d: %w", d.Name, d.Format, core.ErrUnsupportedFormat)
	}
	if d.Stream != nil {
		want := uint64(d.Width) * uint64(d.Height) * uint64(d.Format.Size()) * uint64(max(d.Layers, 1)) * uint64(max(d.Depth, 1))
		if d.Dim == TEXTURE_DIM_CUBE {
			want *= 6
		}
		if uint64(len(d.Stream)) < want {
			return invalidDesc("texture '%s' stream has %d bytes, expected %d", d.Name, len(d.Stream), want)
		}
	}
	return nil
}

type GraphicsSamplerDesc struct {
	MinFilter  SamplerFilter
	MagFilter  SamplerFilter
	WrapU      SamplerWrap
	WrapV      SamplerWrap
	WrapW      SamplerWrap
	Anisotropy uint32
}

type AttachmentLayout struct {
	Slot   uint32
	Layout ImageLayout
	Format GraphicsFormat
}

type GraphicsFramebufferLayoutDesc struct {
	Components []AttachmentLayout
}

func (d *GraphicsFramebufferLayoutDesc) Validate() error {
	if len(d.Components) == 0 {
		return invalidDesc("framebuffer layout has no attachments")
	}
	depth := 0
	for _, c := range d.Components {
		if c.Format.IsDepth() {
			depth++
		}
	}
	if depth > 1 {
		return invalidDesc("framebuffer layout has %d depth attachments", depth)
	}
	return nil
}

type Attachment struct {
	Texture  GraphicsTexture
	MipLevel uint32
	Layer    uint32
}

type GraphicsFramebufferDesc struct {
	Name                   string
	Width                  uint32
	Height                 uint32
	Layout                 GraphicsFramebufferLayout
	ColorAttachments       []Attachment
	DepthStencilAttachment Attachment
}

func (d *GraphicsFramebufferDesc) Validate() error {
	if d.Width == 0 || d.Height == 0 {
		return fmt.Errorf("framebuffer '%s' size %dx%d: %w", d.Name, d.Width, d.Height, core.ErrFramebufferSetup)
	}
	if d.Layout == nil {
		return fmt.Errorf("framebuffer '%s' has no layout: %w", d.Name, core.ErrFramebufferSetup)
	}
	if len(d.ColorAttachments) == 0 && d.DepthStencilAttachment.Texture == nil {
		return fmt.Errorf("framebuffer '%s' has no attachments: %w", d.Name, core.ErrFramebufferSetup)
	}
	check := func(a Attachment) error {
		if a.Texture == nil {
			return fmt.Errorf("framebuffer '%s' has an empty attachment: %w", d.Name, core.ErrFramebufferSetup)
		}
		if a.Texture.IsClosed() {
			return fmt.Errorf("framebuffer '%s' attachment '%s' is closed: %w", d.Name, a.Texture.Desc().Name, core.ErrFramebufferSetup)
		}
		td := a.Texture.Desc()
		if td.Width < d.Width || td.Height < d.Height {
			return fmt.Errorf("framebuffer '%s' attachment '%s' is %dx%d, smaller than %dx%d: %w", d.Name, td.Name, td.Width, td.Height, d.Width, d.Height, core.ErrFramebufferSetup)
		}
		return nil
	}
	for _, a := range d.ColorAttachments {
		if err := check(a); err != nil {
			return err
		}
	}
	if d.DepthStencilAttachment.Texture != nil {
		if err := check(d.DepthStencilAttachment); err != nil {
			return err
		}
		if !d.DepthStencilAttachment.Texture.Desc().Format.IsDepth() {
			return fmt.Errorf("framebuffer '%s' depth attachment has a colour format: %w", d.Name, core.ErrFramebufferSetup)
		}
	}
	return nil
}

type ShaderStageDesc struct {
	Stage      ShaderStageFlags
	Language   ShaderLanguage
	Source     string
	Bytecode   []byte
	EntryPoint string
}

type GraphicsProgramDesc struct {
	Name    string
	Shaders []ShaderStageDesc
}

// Clone returns a copy whose stages and bytecode are not shared with d.
func (d *GraphicsProgramDesc) Clone() (GraphicsProgramDesc, error) {
	var c GraphicsProgramDesc
	err := deepCopy(&c, d)
	return c, err
}

func (d *GraphicsProgramDesc) Validate() error {
	if len(d.Shaders) == 0 {
		return invalidDesc("program '%s' has no shader stages", d.Name)
	}
	for _, s := range d.Shaders {
		if s.Source == "" && len(s.Bytecode) == 0 {
			return invalidDesc("program '%s' stage %d has neither source nor bytecode", d.Name, s.Stage)
		}
	}
	return nil
}

type GraphicsPipelineDesc struct {
	Program             GraphicsProgram
	InputLayout         GraphicsInputLayout
	State               GraphicsStateDesc
	DescriptorSetLayout GraphicsDescriptorSetLayout
	FramebufferLayout   GraphicsFramebufferLayout
}

func (d *GraphicsPipelineDesc) Validate() error {
	if d.Program == nil {
		return invalidDesc("pipeline has no program")
	}
	if d.DescriptorSetLayout == nil {
		return invalidDesc("pipeline has no descriptor set layout")
	}
	return nil
}

type DescriptorPoolComponent struct {
	Type  UniformType
	Count uint32
}

type GraphicsDescriptorPoolDesc struct {
	MaxSets    uint32
	Components []DescriptorPoolComponent
}

// UniformParam describes one named slot of a descriptor set layout.
type UniformParam struct {
	Name         string
	Type         UniformType
	Stage        ShaderStageFlags
	BindingPoint uint32
}

type GraphicsDescriptorSetLayoutDesc struct {
	Params []UniformParam
}

type GraphicsDescriptorSetDesc struct {
	Layout GraphicsDescriptorSetLayout
	Pool   GraphicsDescriptorPool
}

func (d *GraphicsDescriptorSetDesc) Validate() error {
	if d.Layout == nil {
		return invalidDesc("descriptor set has no layout")
	}
	return nil
}
