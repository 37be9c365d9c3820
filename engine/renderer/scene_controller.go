package renderer

import (
	"fmt"

	"github.com/spaghettifunk/octoon/engine/core"
	"github.com/spaghettifunk/octoon/engine/object"
	"github.com/spaghettifunk/octoon/engine/scene"
	"golang.org/x/exp/slices"
)

/**
 * @brief SceneController turns a RenderScene into RenderingData, one per
 * camera. It owns a controller id of the object context and only reacts to
 * changes that are dirty for that id, so several controllers can observe
 * the same scene without consuming each other's changes.
 */
type SceneController struct {
	objects  *object.Context
	id       object.ControllerID
	data     map[*scene.Camera]*RenderingData
	revision uint64
	closed   bool
}

// NewSceneController reserves a controller id; it panics when none is left.
func NewSceneController(objects *object.Context) *SceneController {
	return &SceneController{
		objects: objects,
		id:      objects.NextControllerID(),
		data:    make(map[*scene.Camera]*RenderingData),
	}
}

func (c *SceneController) ID() object.ControllerID {
	return c.id
}

/**
 * @brief Fills the RenderingData of camera for this frame. The data is reset
 * first, then lights and geometries are collected. Meshes that changed are
 * scheduled for re-upload, changed materials are compiled and the light
 * buffers are refreshed. The returned data is owned by the controller and is
 * valid until the next Compile for the same camera.
 */
func (c *SceneController) Compile(s *scene.RenderScene, camera *scene.Camera, ctx *ScriptableRenderContext) (*RenderingData, error) {
	if c.closed {
		panic(fmt.Errorf("scene controller %d used after Close: %w", c.id.ID(), core.ErrInvalidController))
	}
	c.objects.Begin(c.id)
	defer c.objects.End(c.id)

	if s.Revision() != c.revision {
		c.prune(s)
		c.revision = s.Revision()
	}

	data, ok := c.data[camera]
	if !ok {
		data = NewRenderingData()
		c.data[camera] = data
	}
	data.Reset()

	camera.ClearDirty(c.id)
	data.CollectLights(s.Lights(), camera)
	data.CollectGeometries(s.Geometries())
	data.Framebuffer = camera.Framebuffer()
	data.ColorTexture = camera.ColorTexture()
	data.DepthTexture = camera.DepthTexture()

	for _, l := range s.Lights() {
		if l.Base().IsDirty(c.id) {
			l.Base().ClearDirty(c.id)
		}
	}

	for _, g := range data.Geometries {
		if !g.IsDirtyFor(c.id) {
			continue
		}
		if mesh := g.Mesh(); mesh.IsDirty(c.id) {
			ctx.RenderBuffer(mesh).SetMesh(mesh)
			mesh.ClearDirty(c.id)
		}
		for _, mat := range g.Materials() {
			if mat == nil || !mat.IsDirty(c.id) {
				continue
			}
			if err := ctx.CompileMaterial(mat); err != nil {
				return nil, fmt.Errorf("geometry '%s': %w", g.Name(), err)
			}
			mat.ClearDirty(c.id)
		}
		g.ClearDirty(c.id)
	}

	if err := data.UploadLightBuffers(ctx.Device()); err != nil {
		return nil, err
	}
	if data.ScreenQuad == nil {
		data.ScreenQuad = scene.PlaneMesh(c.objects, 2, 2)
	}

	ctx.SetRenderingData(data)
	return data, nil
}

// RenderingData returns the data compiled for camera, or nil.
func (c *SceneController) RenderingData(camera *scene.Camera) *RenderingData {
	return c.data[camera]
}

// prune drops the data of cameras no longer registered in s.
func (c *SceneController) prune(s *scene.RenderScene) {
	cameras := s.Cameras()
	for camera, data := range c.data {
		if !slices.Contains(cameras, camera) {
			data.Close()
			delete(c.data, camera)
		}
	}
}

// Close releases the rendering data and gives the controller id back.
func (c *SceneController) Close() {
	if c.closed {
		return
	}
	for camera, data := range c.data {
		data.Close()
		delete(c.data, camera)
	}
	c.objects.ReleaseControllerID(c.id)
	c.closed = true
}
