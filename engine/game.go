package engine

import (
	"github.com/spaghettifunk/octoon/engine/assets"
	"github.com/spaghettifunk/octoon/engine/config"
	"github.com/spaghettifunk/octoon/engine/core"
	"github.com/spaghettifunk/octoon/engine/object"
	"github.com/spaghettifunk/octoon/engine/renderer/forward"
	"github.com/spaghettifunk/octoon/engine/scene"
)

/**
 * @brief Game is the application hooked into the engine. The engine fills in
 * the scene, the object context, the asset library, the job system and the
 * pipeline before FnInitialize is called. State is left to the game.
 */
type Game struct {
	Config   *config.Config
	Objects  *object.Context
	Scene    *scene.RenderScene
	Library  *assets.Library
	Pipeline *forward.Pipeline
	Jobs     *core.JobSystem
	State    interface{}

	FnInitialize Initialize
	FnUpdate     Update
	FnRender     Render
	FnOnResize   OnResize
	FnShutdown   Shutdown
}

type Initialize func() error
type Update func(deltaTime float64) error

// Render runs right before the pipeline draws the scene.
type Render func(deltaTime float64) error
type OnResize func(width uint32, height uint32) error
type Shutdown func() error
