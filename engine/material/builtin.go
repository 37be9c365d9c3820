package material

import (
	"github.com/spaghettifunk/octoon/engine/hal"
	"github.com/spaghettifunk/octoon/engine/math"
	"github.com/spaghettifunk/octoon/engine/object"
)

/** @brief Parameter names the render passes look up on built-in materials. */
const (
	PARAM_MAP             string = "map"
	PARAM_MAP_ENABLE      string = "mapEnable"
	PARAM_COLOR           string = "color"
	PARAM_TRANSFORM       string = "transform"
	PARAM_VIEW_PROJECTION string = "viewProjection"
	PARAM_OPACITY         string = "opacity"
	PARAM_LINE_WIDTH      string = "lineWidth"
	PARAM_TEX_SIZE        string = "texSize"
)

const basicVertexShader = `#version 450
layout(location = 0) in vec3 POSITION0;
layout(location = 1) in vec3 NORMAL0;
layout(location = 2) in vec2 TEXCOORD0;
uniform mat4 modelMatrix;
uniform mat4 viewProjMatrix;
layout(location = 0) out vec2 vUv;
void main() {
	vUv = TEXCOORD0;
	gl_Position = viewProjMatrix * modelMatrix * vec4(POSITION0, 1.0);
}
`

const basicFragmentShader = `#version 450
layout(location = 0) in vec2 vUv;
layout(location = 0) out vec4 fragColor;
uniform vec4 color;
uniform float opacity;
uniform sampler2D map;
uniform bool mapEnable;
void main() {
	vec4 base = color;
	if (mapEnable) {
		base *= texture(map, vUv);
	}
	fragColor = vec4(base.rgb, base.a * opacity);
}
`

const depthVertexShader = `#version 450
layout(location = 0) in vec3 POSITION0;
uniform mat4 modelMatrix;
uniform mat4 viewProjMatrix;
void main() {
	gl_Position = viewProjMatrix * modelMatrix * vec4(POSITION0, 1.0);
}
`

const depthFragmentShader = `#version 450
void main() {
}
`

const skyboxVertexShader = `#version 450
layout(location = 0) in vec3 POSITION0;
uniform mat4 viewProjection;
layout(location = 0) out vec3 vDirection;
void main() {
	vDirection = POSITION0;
	vec4 position = viewProjection * vec4(POSITION0, 1.0);
	gl_Position = position.xyww;
}
`

const skyboxFragmentShader = `#version 450
layout(location = 0) in vec3 vDirection;
layout(location = 0) out vec4 fragColor;
uniform vec4 color;
uniform sampler2D map;
uniform bool mapEnable;
const float PI = 3.14159265359;
void main() {
	vec3 dir = normalize(vDirection);
	vec2 uv = vec2(atan(dir.z, dir.x) / (2.0 * PI) + 0.5, acos(dir.y) / PI);
	fragColor = mapEnable ? texture(map, uv) * color : color;
}
`

const screenVertexShader = `#version 450
layout(location = 0) in vec3 POSITION0;
layout(location = 2) in vec2 TEXCOORD0;
uniform mat4 transform;
layout(location = 0) out vec2 vUv;
void main() {
	vUv = TEXCOORD0;
	gl_Position = transform * vec4(POSITION0, 1.0);
}
`

const copyFragmentShader = `#version 450
layout(location = 0) in vec2 vUv;
layout(location = 0) out vec4 fragColor;
uniform sampler2D map;
void main() {
	fragColor = texture(map, vUv);
}
`

const edgeFragmentShader = `#version 450
layout(location = 0) in vec2 vUv;
layout(location = 0) out vec4 fragColor;
uniform sampler2D map;
uniform vec4 color;
uniform vec2 texSize;
void main() {
	vec2 texel = 1.0 / texSize;
	float center = texture(map, vUv).a;
	float edge = 0.0;
	for (int y = -1; y <= 1; y++) {
		for (int x = -1; x <= 1; x++) {
			edge = max(edge, abs(texture(map, vUv + vec2(x, y) * texel).a - center));
		}
	}
	fragColor = vec4(color.rgb, color.a * edge);
}
`

const lineVertexShader = `#version 450
layout(location = 0) in vec3 POSITION0;
uniform mat4 modelMatrix;
uniform mat4 viewProjMatrix;
void main() {
	gl_Position = viewProjMatrix * modelMatrix * vec4(POSITION0, 1.0);
}
`

const lineFragmentShader = `#version 450
layout(location = 0) out vec4 fragColor;
uniform vec4 color;
void main() {
	fragColor = color;
}
`

var (
	basicShader  = NewShader("builtin.basic", basicVertexShader, basicFragmentShader)
	depthShader  = NewShader("builtin.depth", depthVertexShader, depthFragmentShader)
	skyboxShader = NewShader("builtin.skybox", skyboxVertexShader, skyboxFragmentShader)
	copyShader   = NewShader("builtin.copy", screenVertexShader, copyFragmentShader)
	edgeShader   = NewShader("builtin.edge", screenVertexShader, edgeFragmentShader)
	lineShader   = NewShader("builtin.line", lineVertexShader, lineFragmentShader)
)

// BuiltinShader returns the built-in shader called name, or nil.
func BuiltinShader(name string) *Shader {
	for _, s := range []*Shader{basicShader, depthShader, skyboxShader, copyShader, edgeShader, lineShader} {
		if s.Name == name {
			return s
		}
	}
	return nil
}

// NewBasicMaterial is an unlit material drawing color, optionally modulated by map.
func NewBasicMaterial(ctx *object.Context, color math.Vec4) *Material {
	m := NewMaterial(ctx, "basic", basicShader)
	m.MustSet(PARAM_COLOR, color)
	m.MustSet(PARAM_OPACITY, float32(1))
	m.SetTexture(PARAM_MAP, nil)
	m.MustSet(PARAM_MAP_ENABLE, false)
	return m
}

// NewDepthMaterial writes depth only. Shadow passes draw casters with it.
func NewDepthMaterial(ctx *object.Context) *Material {
	m := NewMaterial(ctx, "depth", depthShader)
	m.lightMode = LIGHT_MODE_SHADOW_CASTER
	m.state.ColorWriteMask = hal.COLOR_WRITE_DISABLE
	m.state.DepthBiasEnable = true
	m.state.DepthBias = 1.25
	m.state.DepthSlopeScale = 1.75
	return m
}

func NewSkyboxMaterial(ctx *object.Context) *Material {
	m := NewMaterial(ctx, "skybox", skyboxShader)
	m.lightMode = LIGHT_MODE_UNLIT
	m.state.CullMode = hal.CULL_MODE_FRONT
	m.state.DepthWriteEnable = false
	m.state.DepthFunc = hal.COMPARE_LEQUAL
	m.MustSet(PARAM_VIEW_PROJECTION, math.NewMat4Identity())
	m.MustSet(PARAM_COLOR, math.NewVec4One())
	m.SetTexture(PARAM_MAP, nil)
	m.MustSet(PARAM_MAP_ENABLE, false)
	return m
}

// NewCopyMaterial samples map onto a screen quad.
func NewCopyMaterial(ctx *object.Context) *Material {
	m := NewMaterial(ctx, "copy", copyShader)
	m.lightMode = LIGHT_MODE_UNLIT
	m.state.CullMode = hal.CULL_MODE_NONE
	m.state.DepthEnable = false
	m.state.DepthWriteEnable = false
	m.state.BlendEnable = true
	m.MustSet(PARAM_TRANSFORM, math.NewMat4Identity())
	m.SetTexture(PARAM_MAP, nil)
	return m
}

/**
 * @brief Outlines the silhouette stored in the alpha of map with color. The
 * selector pass sets texSize to the size of the silhouette target.
 */
func NewEdgeMaterial(ctx *object.Context, color math.Vec4) *Material {
	m := NewMaterial(ctx, "edge", edgeShader)
	m.lightMode = LIGHT_MODE_UNLIT
	m.state.CullMode = hal.CULL_MODE_NONE
	m.state.DepthEnable = false
	m.state.DepthWriteEnable = false
	m.MustSet(PARAM_TRANSFORM, math.NewMat4Identity())
	m.SetTexture(PARAM_MAP, nil)
	m.MustSet(PARAM_COLOR, color)
	m.MustSet(PARAM_TEX_SIZE, math.NewVec2(1, 1))
	return m
}

func NewLineMaterial(ctx *object.Context, color math.Vec4, width float32) *Material {
	m := NewMaterial(ctx, "line", lineShader)
	m.lightMode = LIGHT_MODE_UNLIT
	m.state.PrimitiveType = hal.PRIMITIVE_TYPE_LINE_LIST
	m.state.CullMode = hal.CULL_MODE_NONE
	m.state.LineWidth = width
	m.MustSet(PARAM_COLOR, color)
	m.MustSet(PARAM_LINE_WIDTH, width)
	return m
}
