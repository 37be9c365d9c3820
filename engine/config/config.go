package config

import (
	"bytes"
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"
	"github.com/spaghettifunk/octoon/engine/core"
)

const (
	BACKEND_SOFT   = "soft"
	BACKEND_VULKAN = "vulkan"

	PASS_FAILURE_SKIP  = "skip"
	PASS_FAILURE_ABORT = "abort"
)

type ApplicationConfig struct {
	// The application name used in windowing, if applicable.
	Name string `toml:"name"`
	// Window starting position, if applicable.
	StartPosX uint32 `toml:"start_pos_x"`
	StartPosY uint32 `toml:"start_pos_y"`
	// Target frames per second. 0 disables the limiter.
	TargetFPS uint32 `toml:"target_fps"`
	// Run without a window: soft backend, fixed number of frames.
	Headless bool `toml:"headless"`
	// Frames to render before exiting when headless.
	Frames uint64 `toml:"frames"`
}

type GraphicsConfig struct {
	Backend string `toml:"backend"`
	Debug   bool   `toml:"debug"`
	Width   uint32 `toml:"width"`
	Height  uint32 `toml:"height"`
	VSync   bool   `toml:"vsync"`
}

type RendererConfig struct {
	MSAA           uint32 `toml:"msaa"`
	ShadowMapSize  uint32 `toml:"shadow_map_size"`
	PassFailure    string `toml:"pass_failure"`
	EnableSelector bool   `toml:"enable_selector"`
	EnableSkybox   bool   `toml:"enable_skybox"`
}

type LogConfig struct {
	Level string `toml:"level"`
}

type AssetsConfig struct {
	Dir       string `toml:"dir"`
	HotReload bool   `toml:"hot_reload"`
}

// Config is the engine configuration as read from an octoon.toml file.
type Config struct {
	Application ApplicationConfig `toml:"application"`
	Graphics    GraphicsConfig    `toml:"graphics"`
	Renderer    RendererConfig    `toml:"renderer"`
	Log         LogConfig         `toml:"log"`
	Assets      AssetsConfig      `toml:"assets"`
}

func Default() *Config {
	return &Config{
		Application: ApplicationConfig{
			Name:      "Octoon",
			StartPosX: 100,
			StartPosY: 100,
			TargetFPS: 60,
		},
		Graphics: GraphicsConfig{
			Backend: BACKEND_VULKAN,
			Width:   1280,
			Height:  720,
			VSync:   true,
		},
		Renderer: RendererConfig{
			MSAA:           4,
			ShadowMapSize:  512,
			PassFailure:    PASS_FAILURE_SKIP,
			EnableSelector: true,
			EnableSkybox:   true,
		},
		Log: LogConfig{
			Level: "info",
		},
		Assets: AssetsConfig{
			Dir:       "assets",
			HotReload: true,
		},
	}
}

// Load reads the file at path on top of the defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		err := fmt.Errorf("failed to read configuration file '%s': %w", path, err)
		core.LogError(err.Error())
		return nil, err
	}
	return Parse(data)
}

// Parse decodes TOML on top of the defaults. Unknown keys are rejected.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	dec := toml.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(cfg); err != nil {
		err := fmt.Errorf("failed to decode configuration: %w", err)
		core.LogError(err.Error())
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	switch c.Graphics.Backend {
	case BACKEND_SOFT, BACKEND_VULKAN:
	default:
		return fmt.Errorf("graphics.backend must be '%s' or '%s', got '%s': %w", BACKEND_SOFT, BACKEND_VULKAN, c.Graphics.Backend, core.ErrInvalidDesc)
	}
	if c.Graphics.Width == 0 || c.Graphics.Height == 0 {
		return fmt.Errorf("graphics.width and graphics.height must be greater than zero: %w", core.ErrInvalidDesc)
	}
	switch c.Renderer.MSAA {
	case 0, 1, 2, 4, 8:
	default:
		return fmt.Errorf("renderer.msaa must be one of 0, 1, 2, 4, 8, got %d: %w", c.Renderer.MSAA, core.ErrInvalidDesc)
	}
	if c.Renderer.ShadowMapSize == 0 || c.Renderer.ShadowMapSize&(c.Renderer.ShadowMapSize-1) != 0 {
		return fmt.Errorf("renderer.shadow_map_size must be a power of two, got %d: %w", c.Renderer.ShadowMapSize, core.ErrInvalidDesc)
	}
	switch c.Renderer.PassFailure {
	case PASS_FAILURE_SKIP, PASS_FAILURE_ABORT:
	default:
		return fmt.Errorf("renderer.pass_failure must be '%s' or '%s', got '%s': %w", PASS_FAILURE_SKIP, PASS_FAILURE_ABORT, c.Renderer.PassFailure, core.ErrInvalidDesc)
	}
	return nil
}

// Encode writes the configuration back as TOML.
func (c *Config) Encode() ([]byte, error) {
	return toml.Marshal(c)
}
