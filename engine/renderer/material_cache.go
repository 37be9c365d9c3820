package renderer

import (
	"fmt"

	"github.com/spaghettifunk/octoon/engine/core"
	"github.com/spaghettifunk/octoon/engine/hal"
	"github.com/spaghettifunk/octoon/engine/material"
)

type compiledShader struct {
	program hal.GraphicsProgram
	layout  hal.GraphicsDescriptorSetLayout
}

type pipelineKey struct {
	shader *material.Shader
	state  hal.GraphicsStateDesc
}

type compiledMaterial struct {
	shader *material.Shader
	set    hal.GraphicsDescriptorSet
}

/**
 * @brief Compiles materials into device objects. Programs and descriptor set
 * layouts are shared per Shader, pipelines per Shader and render state, so
 * cloned materials reuse the pipeline of their source. Every material owns
 * its descriptor set.
 */
type materialCache struct {
	device      hal.GraphicsDevice
	inputLayout hal.GraphicsInputLayout
	shaders     map[*material.Shader]*compiledShader
	pipelines   map[pipelineKey]hal.GraphicsPipeline
	materials   map[uint64]*compiledMaterial
}

func newMaterialCache(device hal.GraphicsDevice) *materialCache {
	return &materialCache{
		device:    device,
		shaders:   make(map[*material.Shader]*compiledShader),
		pipelines: make(map[pipelineKey]hal.GraphicsPipeline),
		materials: make(map[uint64]*compiledMaterial),
	}
}

// compile returns the pipeline and descriptor set of mat, creating them on first use.
func (c *materialCache) compile(mat *material.Material) (hal.GraphicsPipeline, hal.GraphicsDescriptorSet, error) {
	shader := mat.Shader()
	if shader == nil {
		err := fmt.Errorf("material '%s' has no shader: %w", mat.Name(), core.ErrInvalidDesc)
		core.LogError(err.Error())
		return nil, nil, err
	}

	compiled, err := c.compileShader(mat, shader)
	if err != nil {
		return nil, nil, err
	}

	pipeline, err := c.compilePipeline(mat, shader, compiled)
	if err != nil {
		return nil, nil, err
	}

	entry, ok := c.materials[mat.ID()]
	if !ok || entry.shader != shader || entry.set.IsClosed() {
		if ok {
			entry.set.Close()
		}
		set, err := c.device.CreateDescriptorSet(hal.GraphicsDescriptorSetDesc{Layout: compiled.layout})
		if err != nil {
			err = fmt.Errorf("material '%s' descriptor set: %w", mat.Name(), err)
			core.LogError(err.Error())
			return nil, nil, err
		}
		entry = &compiledMaterial{shader: shader, set: set}
		c.materials[mat.ID()] = entry
	}
	return pipeline, entry.set, nil
}

func (c *materialCache) compileShader(mat *material.Material, shader *material.Shader) (*compiledShader, error) {
	if compiled, ok := c.shaders[shader]; ok {
		return compiled, nil
	}

	program, err := c.device.CreateProgram(shader.ProgramDesc())
	if err != nil {
		err = fmt.Errorf("shader '%s': %w", shader.Name, err)
		core.LogError(err.Error())
		return nil, err
	}

	params := program.Params()
	if len(params) == 0 {
		params = fallbackParams(mat)
	}
	layout, err := c.device.CreateDescriptorSetLayout(hal.GraphicsDescriptorSetLayoutDesc{Params: params})
	if err != nil {
		program.Close()
		err = fmt.Errorf("shader '%s' descriptor set layout: %w", shader.Name, err)
		core.LogError(err.Error())
		return nil, err
	}

	compiled := &compiledShader{program: program, layout: layout}
	c.shaders[shader] = compiled
	core.LogDebug("compiled shader '%s' with %d uniforms", shader.Name, len(params))
	return compiled, nil
}

func (c *materialCache) compilePipeline(mat *material.Material, shader *material.Shader, compiled *compiledShader) (hal.GraphicsPipeline, error) {
	key := pipelineKey{shader: shader, state: mat.RenderState()}
	if pipeline, ok := c.pipelines[key]; ok {
		return pipeline, nil
	}

	if c.inputLayout == nil {
		layout, err := c.device.CreateInputLayout(VertexLayoutDesc())
		if err != nil {
			err = fmt.Errorf("vertex input layout: %w", err)
			core.LogError(err.Error())
			return nil, err
		}
		c.inputLayout = layout
	}

	pipeline, err := c.device.CreateRenderPipeline(hal.GraphicsPipelineDesc{
		Program:             compiled.program,
		InputLayout:         c.inputLayout,
		State:               key.state,
		DescriptorSetLayout: compiled.layout,
	})
	if err != nil {
		err = fmt.Errorf("material '%s' pipeline: %w", mat.Name(), err)
		core.LogError(err.Error())
		return nil, err
	}
	c.pipelines[key] = pipeline
	return pipeline, nil
}

// fallbackParams declares the material parameters followed by the engine uniforms.
func fallbackParams(mat *material.Material) []hal.UniformParam {
	params := make([]hal.UniformParam, 0, len(mat.Params())+len(engineParams))
	seen := make(map[string]bool)
	for _, p := range mat.Params() {
		param := p.Param()
		param.BindingPoint = uint32(len(params))
		params = append(params, param)
		seen[param.Name] = true
	}
	for _, p := range engineParams {
		if seen[p.Name] {
			continue
		}
		p.BindingPoint = uint32(len(params))
		params = append(params, p)
	}
	return params
}

// release drops the descriptor set of mat.
func (c *materialCache) release(mat *material.Material) {
	if entry, ok := c.materials[mat.ID()]; ok {
		entry.set.Close()
		delete(c.materials, mat.ID())
	}
}

// evict drops everything compiled for shader, used when its sources change.
func (c *materialCache) evict(shader *material.Shader) {
	for key, pipeline := range c.pipelines {
		if key.shader == shader {
			pipeline.Close()
			delete(c.pipelines, key)
		}
	}
	for id, entry := range c.materials {
		if entry.shader == shader {
			entry.set.Close()
			delete(c.materials, id)
		}
	}
	if compiled, ok := c.shaders[shader]; ok {
		compiled.layout.Close()
		compiled.program.Close()
		delete(c.shaders, shader)
	}
}

func (c *materialCache) close() {
	for _, entry := range c.materials {
		entry.set.Close()
	}
	for _, pipeline := range c.pipelines {
		pipeline.Close()
	}
	for _, compiled := range c.shaders {
		compiled.layout.Close()
		compiled.program.Close()
	}
	if c.inputLayout != nil {
		c.inputLayout.Close()
		c.inputLayout = nil
	}
	clear(c.materials)
	clear(c.pipelines)
	clear(c.shaders)
}
