package loaders

import (
	"fmt"
	"os"

	"github.com/spaghettifunk/octoon/engine/core"
	"github.com/spaghettifunk/octoon/engine/hal"
	"github.com/spaghettifunk/octoon/engine/material"
	"github.com/spaghettifunk/octoon/engine/math"
	"gopkg.in/yaml.v3"
)

/**
 * @brief A material definition file.
 *
 *	name: ground
 *	shader: builtin.basic
 *	queue: Opaque
 *	params:
 *	  color: [0.8, 0.8, 0.8, 1.0]
 *	  mapEnable: true
 *	  map: textures/ground.png
 *
 * Sequences of 2, 3, 4 and 16 numbers become vectors and matrices, strings
 * name textures relative to the assets directory. Parameters keep the order
 * of the file.
 */
type MaterialConfig struct {
	Name      string    `yaml:"name"`
	Shader    string    `yaml:"shader"`
	Queue     string    `yaml:"queue"`
	LightMode string    `yaml:"light_mode"`
	Params    yaml.Node `yaml:"params"`

	params []MaterialParam
}

type MaterialParam struct {
	Name string
	// nil for textures
	Value interface{}
	// texture path, empty for values
	Texture string
	// Value came from an integer literal
	integral bool
}

// TextureResolver returns the texture stored at path.
type TextureResolver func(path string) (hal.GraphicsTexture, error)

func ParseMaterial(data []byte) (*MaterialConfig, error) {
	cfg := &MaterialConfig{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	if err := cfg.decodeParams(); err != nil {
		return nil, err
	}
	if err := validateMaterial(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *MaterialConfig) MaterialParams() []MaterialParam {
	return c.params
}

func (c *MaterialConfig) decodeParams() error {
	c.params = c.params[:0]
	if c.Params.Kind == 0 {
		return nil
	}
	if c.Params.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: params must be a mapping", c.Params.Line)
	}
	for i := 0; i+1 < len(c.Params.Content); i += 2 {
		key, value := c.Params.Content[i], c.Params.Content[i+1]
		p, err := decodeParam(key.Value, value)
		if err != nil {
			return fmt.Errorf("line %d: param '%s': %w", value.Line, key.Value, err)
		}
		c.params = append(c.params, p)
	}
	return nil
}

func decodeParam(name string, node *yaml.Node) (MaterialParam, error) {
	p := MaterialParam{Name: name}
	switch node.Kind {
	case yaml.ScalarNode:
		switch node.Tag {
		case "!!bool":
			var b bool
			if err := node.Decode(&b); err != nil {
				return p, err
			}
			p.Value = b
		case "!!int":
			var i int32
			if err := node.Decode(&i); err != nil {
				return p, err
			}
			p.Value = float32(i)
			p.integral = true
		case "!!float":
			var f float32
			if err := node.Decode(&f); err != nil {
				return p, err
			}
			p.Value = f
		case "!!str":
			p.Texture = node.Value
		default:
			return p, fmt.Errorf("unsupported value %q", node.Value)
		}
	case yaml.SequenceNode:
		var values []float32
		if err := node.Decode(&values); err != nil {
			return p, err
		}
		switch len(values) {
		case 2:
			p.Value = math.NewVec2(values[0], values[1])
		case 3:
			p.Value = math.NewVec3(values[0], values[1], values[2])
		case 4:
			p.Value = math.NewVec4(values[0], values[1], values[2], values[3])
		case 16:
			var m math.Mat4
			copy(m.Data[:], values)
			p.Value = m
		default:
			p.Value = values
		}
	default:
		return p, fmt.Errorf("expected a scalar or a sequence")
	}
	return p, nil
}

/**
 * @brief Writes the definition into m: name, queue, light mode and every
 * parameter. Integer literals follow the type m already declares for the
 * parameter and are floats otherwise. The shader is not touched; callers
 * resolve it by name.
 */
func (c *MaterialConfig) Apply(m *material.Material, textures TextureResolver) error {
	m.SetName(c.Name)
	if c.Queue != "" {
		m.SetQueue(c.Queue)
	}
	if c.LightMode != "" {
		m.SetLightMode(c.LightMode)
	}

	for _, p := range c.params {
		if p.Texture != "" {
			if textures == nil {
				return fmt.Errorf("material '%s' param '%s': no texture resolver for '%s': %w", c.Name, p.Name, p.Texture, core.ErrInvalidDesc)
			}
			tex, err := textures(p.Texture)
			if err != nil {
				return fmt.Errorf("material '%s' param '%s': %w", c.Name, p.Name, err)
			}
			m.SetTexture(p.Name, tex)
			continue
		}

		value := p.Value
		if p.integral {
			if existing := m.At(p.Name); existing != nil {
				switch existing.Type() {
				case hal.UNIFORM_TYPE_INT:
					value = int32(p.Value.(float32))
				case hal.UNIFORM_TYPE_UINT:
					value = uint32(p.Value.(float32))
				}
			}
		}
		if err := m.Set(p.Name, value); err != nil {
			return err
		}
	}
	return nil
}

func validateMaterial(cfg *MaterialConfig) error {
	if cfg.Name == "" {
		return fmt.Errorf("material name is required: %w", core.ErrInvalidDesc)
	}
	if cfg.Shader == "" {
		return fmt.Errorf("material '%s': shader name is required: %w", cfg.Name, core.ErrInvalidDesc)
	}
	switch cfg.Queue {
	case "", material.QUEUE_OPAQUE, material.QUEUE_TRANSPARENT:
	default:
		return fmt.Errorf("material '%s': unknown queue '%s': %w", cfg.Name, cfg.Queue, core.ErrInvalidDesc)
	}
	for _, p := range cfg.params {
		if p.Name != material.PARAM_COLOR {
			continue
		}
		if c, ok := p.Value.(math.Vec4); ok && !isValidVec4(c) {
			return fmt.Errorf("material '%s': color values must be between 0.0 and 1.0: %w", cfg.Name, core.ErrInvalidDesc)
		}
	}
	return nil
}

func isValidVec4(v math.Vec4) bool {
	return inRange(v.X) && inRange(v.Y) && inRange(v.Z) && inRange(v.W)
}

func inRange(value float32) bool {
	return value >= 0.0 && value <= 1.0
}

type MaterialLoader struct{}

func (ml *MaterialLoader) Load(path string, params interface{}) (*Resource, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		err = fmt.Errorf("material '%s': %w", path, err)
		core.LogError(err.Error())
		return nil, err
	}
	cfg, err := ParseMaterial(data)
	if err != nil {
		err = fmt.Errorf("material '%s': %w", path, err)
		core.LogError(err.Error())
		return nil, err
	}
	return &Resource{
		Name:     cfg.Name,
		FullPath: path,
		Type:     RESOURCE_TYPE_MATERIAL,
		DataSize: uint64(len(data)),
		Data:     cfg,
	}, nil
}

func (ml *MaterialLoader) Unload(*Resource) error {
	return nil
}
