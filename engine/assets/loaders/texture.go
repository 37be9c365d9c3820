package loaders

import (
	"fmt"

	"github.com/spaghettifunk/octoon/engine/core"
	"github.com/spaghettifunk/octoon/engine/hal"
)

type TextureParams struct {
	Device hal.GraphicsDevice
	FlipY  bool
}

// TextureLoader decodes an image and uploads it as an RGBA8 2D texture.
type TextureLoader struct {
	images ImageLoader
}

func (tl *TextureLoader) Load(path string, params interface{}) (*Resource, error) {
	p, _ := params.(*TextureParams)
	if p == nil || p.Device == nil {
		err := fmt.Errorf("texture '%s' needs a device: %w", path, core.ErrInvalidDesc)
		core.LogError(err.Error())
		return nil, err
	}

	res, err := tl.images.Load(path, &ImageParams{FlipY: p.FlipY})
	if err != nil {
		return nil, err
	}
	img := res.Data.(*ImageData)

	texture, err := UploadTexture(p.Device, res.Name, img)
	if err != nil {
		err = fmt.Errorf("texture '%s': %w", path, err)
		core.LogError(err.Error())
		return nil, err
	}

	return &Resource{
		Name:     res.Name,
		FullPath: path,
		Type:     RESOURCE_TYPE_TEXTURE,
		DataSize: res.DataSize,
		Data:     texture,
	}, nil
}

// UploadTexture creates a sampled RGBA8 2D texture holding img.
func UploadTexture(device hal.GraphicsDevice, name string, img *ImageData) (hal.GraphicsTexture, error) {
	return device.CreateTexture(hal.GraphicsTextureDesc{
		Name:      name,
		Dim:       hal.TEXTURE_DIM_2D,
		Format:    hal.FORMAT_R8G8B8A8_UNORM,
		Width:     img.Width,
		Height:    img.Height,
		Depth:     1,
		MipLevels: 1,
		Layers:    1,
		Usage:     hal.TEXTURE_USAGE_SAMPLED_BIT | hal.TEXTURE_USAGE_TRANSFER_DST_BIT,
		Stream:    img.Pixels,
	})
}

func (tl *TextureLoader) Unload(res *Resource) error {
	if res == nil {
		return nil
	}
	if texture, ok := res.Data.(hal.GraphicsTexture); ok && texture != nil {
		texture.Close()
	}
	return nil
}
