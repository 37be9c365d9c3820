package soft

import (
	"strings"

	"github.com/spaghettifunk/octoon/engine/hal"
)

var glslUniformTypes = map[string]hal.UniformType{
	"bool":        hal.UNIFORM_TYPE_BOOL,
	"int":         hal.UNIFORM_TYPE_INT,
	"ivec2":       hal.UNIFORM_TYPE_INT2,
	"ivec3":       hal.UNIFORM_TYPE_INT3,
	"ivec4":       hal.UNIFORM_TYPE_INT4,
	"uint":        hal.UNIFORM_TYPE_UINT,
	"float":       hal.UNIFORM_TYPE_FLOAT,
	"vec2":        hal.UNIFORM_TYPE_FLOAT2,
	"vec3":        hal.UNIFORM_TYPE_FLOAT3,
	"vec4":        hal.UNIFORM_TYPE_FLOAT4,
	"mat3":        hal.UNIFORM_TYPE_FLOAT3X3,
	"mat4":        hal.UNIFORM_TYPE_FLOAT4X4,
	"sampler2D":   hal.UNIFORM_TYPE_COMBINED_IMAGE_SAMPLER,
	"samplerCube": hal.UNIFORM_TYPE_COMBINED_IMAGE_SAMPLER,
	"sampler3D":   hal.UNIFORM_TYPE_COMBINED_IMAGE_SAMPLER,
}

var glslArrayTypes = map[hal.UniformType]hal.UniformType{
	hal.UNIFORM_TYPE_INT:      hal.UNIFORM_TYPE_INT_ARRAY,
	hal.UNIFORM_TYPE_FLOAT:    hal.UNIFORM_TYPE_FLOAT_ARRAY,
	hal.UNIFORM_TYPE_FLOAT3:   hal.UNIFORM_TYPE_FLOAT3_ARRAY,
	hal.UNIFORM_TYPE_FLOAT4:   hal.UNIFORM_TYPE_FLOAT4_ARRAY,
	hal.UNIFORM_TYPE_FLOAT4X4: hal.UNIFORM_TYPE_FLOAT4X4_ARRAY,
}

// reflectProgram lists the plain "uniform <type> <name>;" declarations of the
// GLSL stages. Uniform blocks and bytecode stages are not inspected.
func reflectProgram(desc hal.GraphicsProgramDesc) []hal.UniformParam {
	var params []hal.UniformParam
	index := make(map[string]int)

	for _, stage := range desc.Shaders {
		if stage.Language != hal.SHADER_LANGUAGE_GLSL {
			continue
		}
		for _, line := range strings.Split(stage.Source, "\n") {
			name, t, ok := parseUniform(line)
			if !ok {
				continue
			}
			if i, seen := index[name]; seen {
				params[i].Stage |= stage.Stage
				continue
			}
			index[name] = len(params)
			params = append(params, hal.UniformParam{
				Name:         name,
				Type:         t,
				Stage:        stage.Stage,
				BindingPoint: uint32(len(params)),
			})
		}
	}
	return params
}

func parseUniform(line string) (string, hal.UniformType, bool) {
	line = strings.TrimSpace(line)
	if i := strings.Index(line, "//"); i >= 0 {
		line = line[:i]
	}
	line = strings.TrimSuffix(strings.TrimSpace(line), ";")

	fields := strings.Fields(line)
	// layout qualifiers and precision keywords come before the type
	for len(fields) > 0 && fields[0] != "uniform" {
		fields = fields[1:]
	}
	if len(fields) < 3 {
		return "", hal.UNIFORM_TYPE_NONE, false
	}
	fields = fields[1:]
	if fields[0] == "lowp" || fields[0] == "mediump" || fields[0] == "highp" {
		fields = fields[1:]
	}
	if len(fields) != 2 {
		return "", hal.UNIFORM_TYPE_NONE, false
	}

	t, ok := glslUniformTypes[fields[0]]
	if !ok {
		return "", hal.UNIFORM_TYPE_NONE, false
	}
	name := fields[1]
	if open := strings.IndexByte(name, '['); open > 0 {
		name = name[:open]
		arr, ok := glslArrayTypes[t]
		if !ok {
			return "", hal.UNIFORM_TYPE_NONE, false
		}
		t = arr
	}
	return name, t, true
}
