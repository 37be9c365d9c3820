package loaders

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/spaghettifunk/octoon/engine/hal"
	"github.com/spaghettifunk/octoon/engine/hal/soft"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/bmp"
)

var (
	red  = color.NRGBA{R: 255, A: 255}
	blue = color.NRGBA{B: 255, A: 255}
)

// twoRows is 2x2: red on top, blue on the bottom.
func twoRows() image.Image {
	img := image.NewNRGBA(image.Rect(0, 0, 2, 2))
	for x := 0; x < 2; x++ {
		img.Set(x, 0, red)
		img.Set(x, 1, blue)
	}
	return img
}

func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestImageLoaderDecodesPNG(t *testing.T) {
	path := writeFile(t, t.TempDir(), "rows.png", encodePNG(t, twoRows()))

	res, err := (&ImageLoader{}).Load(path, nil)
	require.NoError(t, err)
	img := res.Data.(*ImageData)
	assert.Equal(t, uint32(2), img.Width)
	assert.Equal(t, uint32(2), img.Height)
	assert.Equal(t, IMAGE_CHANNEL_COUNT, img.ChannelCount)
	require.Len(t, img.Pixels, 16)
	assert.Equal(t, []uint8{255, 0, 0, 255}, img.Pixels[:4])
	assert.Equal(t, []uint8{0, 0, 255, 255}, img.Pixels[8:12])
}

func TestImageLoaderFlipsRows(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, bmp.Encode(&buf, twoRows()))
	path := writeFile(t, t.TempDir(), "rows.bmp", buf.Bytes())

	res, err := (&ImageLoader{}).Load(path, &ImageParams{FlipY: true})
	require.NoError(t, err)
	img := res.Data.(*ImageData)
	assert.Equal(t, []uint8{0, 0, 255, 255}, img.Pixels[:4])
	assert.Equal(t, []uint8{255, 0, 0, 255}, img.Pixels[8:12])
}

func TestImageLoaderRejectsGarbage(t *testing.T) {
	path := writeFile(t, t.TempDir(), "noise.png", []byte("not an image"))
	_, err := (&ImageLoader{}).Load(path, nil)
	assert.Error(t, err)
}

func TestTextureLoaderUploadsRGBA(t *testing.T) {
	sys := hal.NewGraphicsSystem()
	soft.Register(sys)
	t.Cleanup(sys.Close)
	device, err := sys.CreateDevice(hal.GraphicsDeviceDesc{DeviceType: hal.DEVICE_TYPE_SOFT})
	require.NoError(t, err)

	path := writeFile(t, t.TempDir(), "rows.png", encodePNG(t, twoRows()))
	loader := &TextureLoader{}

	_, err = loader.Load(path, nil)
	assert.Error(t, err)

	res, err := loader.Load(path, &TextureParams{Device: device})
	require.NoError(t, err)
	assert.Equal(t, RESOURCE_TYPE_TEXTURE, res.Type)
	texture := res.Data.(hal.GraphicsTexture)
	assert.Equal(t, hal.FORMAT_R8G8B8A8_UNORM, texture.Desc().Format)
	assert.Equal(t, uint32(2), texture.Desc().Width)

	require.NoError(t, loader.Unload(res))
	assert.True(t, texture.IsClosed())
}
