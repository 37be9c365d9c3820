package hal

import "fmt"

/**
 * @brief Describes an offscreen target: an optional colour texture, an
 * optional depth texture and the framebuffer over them. FORMAT_UNDEFINED
 * leaves the attachment out.
 */
type RenderTargetDesc struct {
	Name               string
	Width              uint32
	Height             uint32
	Multisample        uint32
	ColorFormat        GraphicsFormat
	DepthStencilFormat GraphicsFormat
}

// RenderTarget owns every resource CreateRenderTarget made for it.
type RenderTarget struct {
	Framebuffer  GraphicsFramebuffer
	Layout       GraphicsFramebufferLayout
	Color        GraphicsTexture
	DepthStencil GraphicsTexture
}

/**
 * @brief Creates the textures, layout and framebuffer described by desc. On
 * failure whatever was created is closed again and the error is returned.
 */
func CreateRenderTarget(device GraphicsDevice, desc RenderTargetDesc) (*RenderTarget, error) {
	if desc.Name == "" {
		desc.Name = DefaultName("target")
	}
	t := &RenderTarget{}
	fail := func(err error) (*RenderTarget, error) {
		t.Close()
		return nil, fmt.Errorf("render target '%s': %w", desc.Name, err)
	}

	var components []AttachmentLayout
	fbDesc := GraphicsFramebufferDesc{
		Name:   desc.Name,
		Width:  desc.Width,
		Height: desc.Height,
	}

	if desc.ColorFormat != FORMAT_UNDEFINED {
		color, err := device.CreateTexture(GraphicsTextureDesc{
			Name:        desc.Name + ".color",
			Dim:         TEXTURE_DIM_2D,
			Format:      desc.ColorFormat,
			Width:       desc.Width,
			Height:      desc.Height,
			Multisample: desc.Multisample,
			Usage:       TEXTURE_USAGE_COLOR_ATTACHMENT_BIT | TEXTURE_USAGE_SAMPLED_BIT | TEXTURE_USAGE_TRANSFER_SRC_BIT,
		})
		if err != nil {
			return fail(err)
		}
		t.Color = color
		components = append(components, AttachmentLayout{Slot: 0, Layout: IMAGE_LAYOUT_COLOR_ATTACHMENT_OPTIMAL, Format: desc.ColorFormat})
		fbDesc.ColorAttachments = []Attachment{{Texture: color}}
	}

	if desc.DepthStencilFormat != FORMAT_UNDEFINED {
		depth, err := device.CreateTexture(GraphicsTextureDesc{
			Name:        desc.Name + ".depth",
			Dim:         TEXTURE_DIM_2D,
			Format:      desc.DepthStencilFormat,
			Width:       desc.Width,
			Height:      desc.Height,
			Multisample: desc.Multisample,
			Usage:       TEXTURE_USAGE_DEPTH_ATTACHMENT_BIT | TEXTURE_USAGE_SAMPLED_BIT,
		})
		if err != nil {
			return fail(err)
		}
		t.DepthStencil = depth
		components = append(components, AttachmentLayout{Slot: uint32(len(components)), Layout: IMAGE_LAYOUT_DEPTH_STENCIL_ATTACHMENT_OPTIMAL, Format: desc.DepthStencilFormat})
		fbDesc.DepthStencilAttachment = Attachment{Texture: depth}
	}

	layout, err := device.CreateFramebufferLayout(GraphicsFramebufferLayoutDesc{Components: components})
	if err != nil {
		return fail(err)
	}
	t.Layout = layout
	fbDesc.Layout = layout

	fb, err := device.CreateFramebuffer(fbDesc)
	if err != nil {
		return fail(err)
	}
	t.Framebuffer = fb
	return t, nil
}

// Close closes the framebuffer and its attachments. Safe on a partial target.
func (t *RenderTarget) Close() {
	if t == nil {
		return
	}
	if t.Framebuffer != nil {
		t.Framebuffer.Close()
	}
	if t.Layout != nil {
		t.Layout.Close()
	}
	if t.DepthStencil != nil {
		t.DepthStencil.Close()
	}
	if t.Color != nil {
		t.Color.Close()
	}
}
