package material

import (
	"fmt"

	"github.com/spaghettifunk/octoon/engine/core"
	"github.com/spaghettifunk/octoon/engine/hal"
	"github.com/spaghettifunk/octoon/engine/object"
)

const (
	QUEUE_OPAQUE      string = "Opaque"
	QUEUE_TRANSPARENT string = "Transparent"
)

const (
	LIGHT_MODE_FORWARD       string = "ForwardBase"
	LIGHT_MODE_SHADOW_CASTER string = "ShadowCaster"
	LIGHT_MODE_UNLIT         string = "Unlit"
)

/**
 * @brief A Material pairs a Shader with render state and an ordered set of
 * named uniform parameters. Parameters are looked up by name; an absent name
 * yields nil. Changing a parameter marks the material dirty so every scene
 * controller re-uploads it.
 */
type Material struct {
	object.Object

	name      string
	shader    *Shader
	queue     string
	lightMode string
	state     hal.GraphicsStateDesc
	params    []*hal.UniformSet
}

func NewMaterial(ctx *object.Context, name string, shader *Shader) *Material {
	m := &Material{
		name:      name,
		shader:    shader,
		queue:     QUEUE_OPAQUE,
		lightMode: LIGHT_MODE_FORWARD,
		state:     hal.DefaultStateDesc(),
	}
	m.Init(ctx, object.KIND_MATERIAL)
	return m
}

func (m *Material) Name() string {
	return m.name
}

func (m *Material) SetName(name string) {
	m.name = name
}

func (m *Material) Shader() *Shader {
	return m.shader
}

func (m *Material) SetShader(shader *Shader) {
	m.shader = shader
	m.MarkDirty()
}

func (m *Material) Queue() string {
	return m.queue
}

func (m *Material) SetQueue(queue string) {
	m.queue = queue
	m.MarkDirty()
}

// IsTransparent reports whether the material renders in the transparent queue.
func (m *Material) IsTransparent() bool {
	return m.queue == QUEUE_TRANSPARENT
}

func (m *Material) LightMode() string {
	return m.lightMode
}

func (m *Material) SetLightMode(mode string) {
	m.lightMode = mode
	m.MarkDirty()
}

func (m *Material) RenderState() hal.GraphicsStateDesc {
	return m.state
}

func (m *Material) SetRenderState(state hal.GraphicsStateDesc) {
	m.state = state
	m.MarkDirty()
}

func (m *Material) PrimitiveType() hal.PrimitiveType {
	return m.state.PrimitiveType
}

func (m *Material) SetPrimitiveType(primitive hal.PrimitiveType) {
	m.state.PrimitiveType = primitive
	m.MarkDirty()
}

// Params returns the parameters in declaration order. The slice is shared.
func (m *Material) Params() []*hal.UniformSet {
	return m.params
}

// At returns the parameter named name, or nil.
func (m *Material) At(name string) *hal.UniformSet {
	for _, p := range m.params {
		if p.Name() == name {
			return p
		}
	}
	return nil
}

/**
 * @brief Stores value in the parameter named name, declaring it when absent.
 * The uniform type follows the Go type of value (see hal.UniformSet.SetValue).
 */
func (m *Material) Set(name string, value interface{}) error {
	p := m.At(name)
	declared := p == nil
	if declared {
		p = hal.NewUniformSet(hal.UniformParam{
			Name:         name,
			Stage:        hal.SHADER_STAGE_VERTEX_BIT | hal.SHADER_STAGE_FRAGMENT_BIT,
			BindingPoint: uint32(len(m.params)),
		})
	}
	if err := p.SetValue(value); err != nil {
		err = fmt.Errorf("material '%s': %w", m.name, err)
		core.LogError(err.Error())
		return err
	}
	if declared {
		m.params = append(m.params, p)
	}
	m.MarkDirty()
	return nil
}

// SetTexture binds texture to the parameter named name, declaring it when
// absent. A nil texture declares the slot with nothing bound.
func (m *Material) SetTexture(name string, texture hal.GraphicsTexture) {
	p := m.At(name)
	if p == nil {
		p = hal.NewUniformSet(hal.UniformParam{
			Name:         name,
			Stage:        hal.SHADER_STAGE_FRAGMENT_BIT,
			BindingPoint: uint32(len(m.params)),
		})
		m.params = append(m.params, p)
	}
	p.UniformTexture(texture, nil)
	m.MarkDirty()
}

// MustSet is Set for built-in parameters whose types are known to be valid.
func (m *Material) MustSet(name string, value interface{}) {
	if err := m.Set(name, value); err != nil {
		panic(err)
	}
}

/**
 * @brief Returns an independent material with a new object id. The shader is
 * shared, so the clone reuses the compiled pipeline; the parameters are
 * copied and can change without affecting m. Textures and buffers bound to
 * parameters stay shared.
 */
func (m *Material) Clone() *Material {
	c := &Material{
		name:      m.name,
		shader:    m.shader,
		queue:     m.queue,
		lightMode: m.lightMode,
		state:     m.state,
		params:    make([]*hal.UniformSet, len(m.params)),
	}
	for i, p := range m.params {
		c.params[i] = p.Clone()
	}
	c.Init(m.Context(), object.KIND_MATERIAL)
	return c
}

// CopyParams overwrites the values of the parameters both materials declare
// and adds the ones only other has.
func (m *Material) CopyParams(other *Material) {
	for _, p := range other.params {
		if own := m.At(p.Name()); own != nil {
			own.CopyFrom(p)
			continue
		}
		c := p.Clone()
		m.params = append(m.params, c)
	}
	m.MarkDirty()
}
