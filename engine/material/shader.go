package material

import (
	"github.com/spaghettifunk/octoon/engine/hal"
)

/**
 * @brief Shader source of a material. Materials that share a *Shader share
 * the compiled program and pipeline in the renderer.
 */
type Shader struct {
	/** @brief The shader name, used in logs and by the asset manager. */
	Name string
	/** @brief Vertex stage source. */
	VertexShader string
	/** @brief Fragment stage source. */
	FragmentShader string
	/** @brief Language of the sources. GLSL unless set. */
	Language hal.ShaderLanguage
	/** @brief Precompiled stages, used instead of the sources when set. */
	VertexBytecode   []byte
	FragmentBytecode []byte
}

func NewShader(name, vertexShader, fragmentShader string) *Shader {
	return &Shader{
		Name:           name,
		VertexShader:   vertexShader,
		FragmentShader: fragmentShader,
		Language:       hal.SHADER_LANGUAGE_GLSL,
	}
}

// ProgramDesc describes the program the renderer compiles for s.
func (s *Shader) ProgramDesc() hal.GraphicsProgramDesc {
	stage := func(flag hal.ShaderStageFlags, source string, bytecode []byte) hal.ShaderStageDesc {
		if len(bytecode) > 0 {
			return hal.ShaderStageDesc{Stage: flag, Language: hal.SHADER_LANGUAGE_SPIRV, Bytecode: bytecode, EntryPoint: "main"}
		}
		return hal.ShaderStageDesc{Stage: flag, Language: s.Language, Source: source, EntryPoint: "main"}
	}
	return hal.GraphicsProgramDesc{
		Name: s.Name,
		Shaders: []hal.ShaderStageDesc{
			stage(hal.SHADER_STAGE_VERTEX_BIT, s.VertexShader, s.VertexBytecode),
			stage(hal.SHADER_STAGE_FRAGMENT_BIT, s.FragmentShader, s.FragmentBytecode),
		},
	}
}
