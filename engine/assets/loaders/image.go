package loaders

import (
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"

	"github.com/spaghettifunk/octoon/engine/core"
	"golang.org/x/image/draw"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
)

// every decoded image is expanded to RGBA8
const IMAGE_CHANNEL_COUNT uint8 = 4

type ImageParams struct {
	// Flip rows so the first row is the bottom of the image.
	FlipY bool
}

type ImageData struct {
	ChannelCount uint8
	Width        uint32
	Height       uint32
	Pixels       []uint8
}

type ImageLoader struct{}

func (il *ImageLoader) Load(path string, params interface{}) (*Resource, error) {
	p, _ := params.(*ImageParams)
	if p == nil {
		p = &ImageParams{}
	}

	f, err := os.Open(path)
	if err != nil {
		err = fmt.Errorf("image '%s': %w", path, err)
		core.LogError(err.Error())
		return nil, err
	}
	defer f.Close()

	img, format, err := image.Decode(f)
	if err != nil {
		err = fmt.Errorf("image '%s': %w", path, err)
		core.LogError(err.Error())
		return nil, err
	}

	data := DecodeRGBA(img, p.FlipY)
	core.LogDebug("loaded %s image '%s' (%dx%d)", format, path, data.Width, data.Height)

	return &Resource{
		Name:     resourceName(path),
		FullPath: path,
		Type:     RESOURCE_TYPE_IMAGE,
		DataSize: uint64(len(data.Pixels)),
		Data:     data,
	}, nil
}

func (il *ImageLoader) Unload(*Resource) error {
	return nil
}

// DecodeRGBA converts any decoded image into tightly packed RGBA8 rows.
func DecodeRGBA(img image.Image, flipY bool) *ImageData {
	bounds := img.Bounds()
	rgba, ok := img.(*image.RGBA)
	if !ok || rgba.Stride != bounds.Dx()*4 || bounds.Min != (image.Point{}) {
		rgba = image.NewRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
		draw.Draw(rgba, rgba.Bounds(), img, bounds.Min, draw.Src)
	}

	width, height := bounds.Dx(), bounds.Dy()
	pixels := make([]uint8, len(rgba.Pix))
	if flipY {
		row := width * 4
		for y := 0; y < height; y++ {
			copy(pixels[y*row:(y+1)*row], rgba.Pix[(height-1-y)*row:(height-y)*row])
		}
	} else {
		copy(pixels, rgba.Pix)
	}

	return &ImageData{
		ChannelCount: IMAGE_CHANNEL_COUNT,
		Width:        uint32(width),
		Height:       uint32(height),
		Pixels:       pixels,
	}
}
