package loaders

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spaghettifunk/octoon/engine/core"
	"github.com/spaghettifunk/octoon/engine/material"
	"gopkg.in/yaml.v3"
)

/**
 * @brief Contents of a .shader file. Stage paths are relative to the file.
 * A stage ending in .spv is loaded as SPIR-V bytecode, anything else as
 * GLSL source.
 *
 *	name: unlit
 *	vertex: unlit.vert
 *	fragment: unlit.frag
 */
type ShaderConfig struct {
	Name     string `yaml:"name"`
	Vertex   string `yaml:"vertex"`
	Fragment string `yaml:"fragment"`
}

// ShaderSource is the loaded form of a .shader file.
type ShaderSource struct {
	Name             string
	VertexPath       string
	FragmentPath     string
	VertexSource     string
	FragmentSource   string
	VertexBytecode   []byte
	FragmentBytecode []byte
}

// NewShader creates a material shader from the loaded stages.
func (s *ShaderSource) NewShader() *material.Shader {
	shader := material.NewShader(s.Name, "", "")
	s.Apply(shader)
	return shader
}

// Apply replaces the stages of shader in place, keeping its identity so the
// materials using it pick up the new stages.
func (s *ShaderSource) Apply(shader *material.Shader) {
	shader.Name = s.Name
	shader.VertexShader = s.VertexSource
	shader.FragmentShader = s.FragmentSource
	shader.VertexBytecode = s.VertexBytecode
	shader.FragmentBytecode = s.FragmentBytecode
}

type ShaderLoader struct {
	binary BinaryLoader
}

func (sl *ShaderLoader) Load(path string, params interface{}) (*Resource, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		err = fmt.Errorf("shader '%s': %w", path, err)
		core.LogError(err.Error())
		return nil, err
	}

	var cfg ShaderConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		err = fmt.Errorf("shader '%s': %w", path, err)
		core.LogError(err.Error())
		return nil, err
	}
	if cfg.Vertex == "" || cfg.Fragment == "" {
		err := fmt.Errorf("shader '%s' needs a vertex and a fragment stage: %w", path, core.ErrInvalidDesc)
		core.LogError(err.Error())
		return nil, err
	}
	if cfg.Name == "" {
		cfg.Name = resourceName(path)
	}

	dir := filepath.Dir(path)
	src := &ShaderSource{
		Name:         cfg.Name,
		VertexPath:   filepath.Join(dir, cfg.Vertex),
		FragmentPath: filepath.Join(dir, cfg.Fragment),
	}
	if src.VertexSource, src.VertexBytecode, err = sl.loadStage(src.VertexPath); err != nil {
		return nil, err
	}
	if src.FragmentSource, src.FragmentBytecode, err = sl.loadStage(src.FragmentPath); err != nil {
		return nil, err
	}

	return &Resource{
		Name:     cfg.Name,
		FullPath: path,
		Type:     RESOURCE_TYPE_SHADER,
		DataSize: uint64(len(src.VertexSource) + len(src.FragmentSource) + len(src.VertexBytecode) + len(src.FragmentBytecode)),
		Data:     src,
	}, nil
}

func (sl *ShaderLoader) loadStage(path string) (string, []byte, error) {
	if strings.EqualFold(filepath.Ext(path), ".spv") {
		res, err := sl.binary.Load(path, &BinaryParams{SPIRV: true})
		if err != nil {
			return "", nil, err
		}
		return "", res.Data.([]byte), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		err = fmt.Errorf("shader stage '%s': %w", path, err)
		core.LogError(err.Error())
		return "", nil, err
	}
	return string(data), nil, nil
}

func (sl *ShaderLoader) Unload(*Resource) error {
	return nil
}
