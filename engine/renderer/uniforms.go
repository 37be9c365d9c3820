package renderer

import (
	"github.com/spaghettifunk/octoon/engine/hal"
	"github.com/spaghettifunk/octoon/engine/math"
	"github.com/spaghettifunk/octoon/engine/scene"
)

/** @brief Uniforms the render context fills on every draw when a program declares them. */
const (
	UNIFORM_MODEL_MATRIX       string = "modelMatrix"
	UNIFORM_VIEW_MATRIX        string = "viewMatrix"
	UNIFORM_PROJECTION_MATRIX  string = "projectionMatrix"
	UNIFORM_VIEW_PROJ_MATRIX   string = "viewProjMatrix"
	UNIFORM_MODEL_VIEW_MATRIX  string = "modelViewMatrix"
	UNIFORM_NORMAL_MATRIX      string = "normalMatrix"
	UNIFORM_CAMERA_POSITION    string = "cameraPosition"
	UNIFORM_AMBIENT_LIGHT      string = "ambientLightColor"
	UNIFORM_DIRECTIONAL_LIGHTS string = "directionalLights"
	UNIFORM_SPOT_LIGHTS        string = "spotLights"
	UNIFORM_POINT_LIGHTS       string = "pointLights"
	UNIFORM_RECTANGLE_LIGHTS   string = "rectangleLights"
	UNIFORM_NUM_DIRECTIONAL    string = "numDirectionalLights"
	UNIFORM_NUM_SPOT           string = "numSpotLights"
	UNIFORM_NUM_POINT          string = "numPointLights"
	UNIFORM_NUM_RECTANGLE      string = "numRectangleLights"
	UNIFORM_SHADOW_MATRIX      string = "directionalShadowMatrix"
	UNIFORM_SHADOW_MAP         string = "directionalShadowMap"
)

// engineParams is the layout used for programs that cannot be reflected.
var engineParams = []hal.UniformParam{
	{Name: UNIFORM_MODEL_MATRIX, Type: hal.UNIFORM_TYPE_FLOAT4X4, Stage: hal.SHADER_STAGE_VERTEX_BIT},
	{Name: UNIFORM_VIEW_MATRIX, Type: hal.UNIFORM_TYPE_FLOAT4X4, Stage: hal.SHADER_STAGE_VERTEX_BIT},
	{Name: UNIFORM_PROJECTION_MATRIX, Type: hal.UNIFORM_TYPE_FLOAT4X4, Stage: hal.SHADER_STAGE_VERTEX_BIT},
	{Name: UNIFORM_VIEW_PROJ_MATRIX, Type: hal.UNIFORM_TYPE_FLOAT4X4, Stage: hal.SHADER_STAGE_VERTEX_BIT},
	{Name: UNIFORM_MODEL_VIEW_MATRIX, Type: hal.UNIFORM_TYPE_FLOAT4X4, Stage: hal.SHADER_STAGE_VERTEX_BIT},
	{Name: UNIFORM_NORMAL_MATRIX, Type: hal.UNIFORM_TYPE_FLOAT3X3, Stage: hal.SHADER_STAGE_VERTEX_BIT},
	{Name: UNIFORM_CAMERA_POSITION, Type: hal.UNIFORM_TYPE_FLOAT3, Stage: hal.SHADER_STAGE_ALL},
	{Name: UNIFORM_AMBIENT_LIGHT, Type: hal.UNIFORM_TYPE_FLOAT3, Stage: hal.SHADER_STAGE_FRAGMENT_BIT},
}

/**
 * @brief Writes the camera, model and light uniforms into the slots set
 * declares. Slots the program does not declare are left alone, so a
 * material value is never overwritten by a name it does not use.
 */
func fillEngineUniforms(set hal.GraphicsDescriptorSet, camera *scene.Camera, model math.Mat4, data *RenderingData) {
	with := func(name string, fn func(u *hal.UniformSet)) {
		if u := set.UniformSet(name); u != nil {
			fn(u)
		}
	}

	with(UNIFORM_MODEL_MATRIX, func(u *hal.UniformSet) { u.Uniform4fmat(model) })

	if camera != nil {
		view := camera.View()
		projection := camera.Projection()
		modelView := model.Mul(view)
		with(UNIFORM_VIEW_MATRIX, func(u *hal.UniformSet) { u.Uniform4fmat(view) })
		with(UNIFORM_PROJECTION_MATRIX, func(u *hal.UniformSet) { u.Uniform4fmat(projection) })
		with(UNIFORM_VIEW_PROJ_MATRIX, func(u *hal.UniformSet) { u.Uniform4fmat(view.Mul(projection)) })
		with(UNIFORM_MODEL_VIEW_MATRIX, func(u *hal.UniformSet) { u.Uniform4fmat(modelView) })
		with(UNIFORM_NORMAL_MATRIX, func(u *hal.UniformSet) { u.Uniform3fmat(modelView.Inverse().Transposed().Mat3()) })
		with(UNIFORM_CAMERA_POSITION, func(u *hal.UniformSet) { u.Uniform3f(camera.Transform().Translation()) })
	}

	if data == nil {
		return
	}
	with(UNIFORM_AMBIENT_LIGHT, func(u *hal.UniformSet) { u.Uniform3f(data.AmbientLightColor) })

	buffers := []struct {
		buffer, count string
		data          hal.GraphicsData
		n             int
	}{
		{UNIFORM_DIRECTIONAL_LIGHTS, UNIFORM_NUM_DIRECTIONAL, data.DirectionalLightBuffer, len(data.DirectionalLights)},
		{UNIFORM_SPOT_LIGHTS, UNIFORM_NUM_SPOT, data.SpotLightBuffer, len(data.SpotLights)},
		{UNIFORM_POINT_LIGHTS, UNIFORM_NUM_POINT, data.PointLightBuffer, len(data.PointLights)},
		{UNIFORM_RECTANGLE_LIGHTS, UNIFORM_NUM_RECTANGLE, data.RectangleLightBuffer, len(data.RectangleLights)},
	}
	for _, b := range buffers {
		if b.data != nil {
			with(b.buffer, func(u *hal.UniformSet) { u.UniformBuffer(b.data) })
		}
		with(b.count, func(u *hal.UniformSet) { u.Uniform1i(int32(b.n)) })
	}

	if len(data.DirectionalShadows) > 0 {
		matrices := make([]math.Mat4, len(data.DirectionalShadows))
		for i, s := range data.DirectionalShadows {
			matrices[i] = s.Matrix
		}
		with(UNIFORM_SHADOW_MATRIX, func(u *hal.UniformSet) { u.Uniform4fmatv(matrices) })
		if m := data.DirectionalShadows[0].Map; m != nil {
			with(UNIFORM_SHADOW_MAP, func(u *hal.UniformSet) { u.UniformTexture(m, nil) })
		}
	}
}
