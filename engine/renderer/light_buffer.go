package renderer

import (
	"fmt"

	"github.com/spaghettifunk/octoon/engine/core"
	"github.com/spaghettifunk/octoon/engine/hal"
	"github.com/spaghettifunk/octoon/engine/math"
)

// Sizes in bytes of one packed light of each category. Every field is a
// vec4 so the layout matches std140 and std430.
const (
	DIRECTIONAL_LIGHT_SIZE = 48
	SPOT_LIGHT_SIZE        = 64
	POINT_LIGHT_SIZE       = 48
	RECTANGLE_LIGHT_SIZE   = 64
)

// shadowParams packs the shadow index, bias, radius and map size of a light.
func shadowParams(index int, shadows []ShadowData) math.Vec4 {
	if index < 0 || index >= len(shadows) {
		return math.NewVec4(-1, 0, 0, 0)
	}
	s := shadows[index]
	return math.NewVec4(float32(index), s.Bias, s.Radius, s.Size.X)
}

func (d *RenderingData) packDirectionalLights() []byte {
	buf := make([]byte, len(d.DirectionalLights)*DIRECTIONAL_LIGHT_SIZE)
	for i, l := range d.DirectionalLights {
		b := buf[i*DIRECTIONAL_LIGHT_SIZE:]
		putVec4(b[0:], l.Color.ToVec4(1))
		putVec4(b[16:], l.Direction.ToVec4(0))
		putVec4(b[32:], shadowParams(l.Shadow, d.DirectionalShadows))
	}
	return buf
}

func (d *RenderingData) packSpotLights() []byte {
	buf := make([]byte, len(d.SpotLights)*SPOT_LIGHT_SIZE)
	for i, l := range d.SpotLights {
		b := buf[i*SPOT_LIGHT_SIZE:]
		putVec4(b[0:], l.Color.ToVec4(1))
		putVec4(b[16:], l.Position.ToVec4(1))
		putVec4(b[32:], l.Direction.ToVec4(0))
		shadow := shadowParams(l.Shadow, d.SpotShadows)
		putVec4(b[48:], math.NewVec4(l.InnerCos, l.OuterCos, shadow.X, shadow.Y))
	}
	return buf
}

func (d *RenderingData) packPointLights() []byte {
	buf := make([]byte, len(d.PointLights)*POINT_LIGHT_SIZE)
	for i, l := range d.PointLights {
		b := buf[i*POINT_LIGHT_SIZE:]
		putVec4(b[0:], l.Color.ToVec4(1))
		putVec4(b[16:], l.Position.ToVec4(l.Distance))
		putVec4(b[32:], shadowParams(l.Shadow, d.PointShadows))
	}
	return buf
}

func (d *RenderingData) packRectangleLights() []byte {
	buf := make([]byte, len(d.RectangleLights)*RECTANGLE_LIGHT_SIZE)
	for i, l := range d.RectangleLights {
		b := buf[i*RECTANGLE_LIGHT_SIZE:]
		putVec4(b[0:], l.Color.ToVec4(1))
		putVec4(b[16:], l.Position.ToVec4(1))
		putVec4(b[32:], l.HalfWidth.ToVec4(0))
		putVec4(b[48:], l.HalfHeight.ToVec4(0))
	}
	return buf
}

/**
 * @brief Packs the collected lights into the per category uniform buffers.
 * A buffer is created when missing or too small and updated in place
 * otherwise. Categories without lights keep their buffer untouched.
 */
func (d *RenderingData) UploadLightBuffers(device hal.GraphicsDevice) error {
	uploads := []struct {
		name   string
		buffer *hal.GraphicsData
		stream []byte
	}{
		{"lights.directional", &d.DirectionalLightBuffer, d.packDirectionalLights()},
		{"lights.spot", &d.SpotLightBuffer, d.packSpotLights()},
		{"lights.point", &d.PointLightBuffer, d.packPointLights()},
		{"lights.rectangle", &d.RectangleLightBuffer, d.packRectangleLights()},
	}
	for _, u := range uploads {
		if err := uploadBuffer(device, u.name, u.buffer, u.stream); err != nil {
			return err
		}
	}
	return nil
}

func uploadBuffer(device hal.GraphicsDevice, name string, buffer *hal.GraphicsData, stream []byte) error {
	if len(stream) == 0 {
		return nil
	}
	if *buffer != nil && (*buffer).Size() >= uint64(len(stream)) {
		if err := (*buffer).Upload(0, stream); err != nil {
			err = fmt.Errorf("uniform buffer '%s': %w", name, err)
			core.LogError(err.Error())
			return err
		}
		return nil
	}
	if *buffer != nil {
		(*buffer).Close()
		*buffer = nil
	}
	data, err := device.CreateGraphicsData(hal.GraphicsDataDesc{
		Name:   name,
		Type:   hal.DATA_TYPE_UNIFORM_BUFFER,
		Usage:  hal.USAGE_WRITE_BIT | hal.USAGE_DYNAMIC_STORAGE,
		Stream: stream,
		Size:   uint64(len(stream)),
	})
	if err != nil {
		err = fmt.Errorf("uniform buffer '%s': %w", name, err)
		core.LogError(err.Error())
		return err
	}
	*buffer = data
	return nil
}
