package scene

import (
	"cmp"
	"sync"

	"github.com/spaghettifunk/octoon/engine/math"
	"github.com/spaghettifunk/octoon/engine/object"
	"golang.org/x/exp/slices"
)

/**
 * @brief Anything the scene traversal hands to the renderer: lights and
 * geometries. Cameras are registered separately.
 */
type RenderObject interface {
	object.SceneObject
	Transform() math.Mat4
	Layer() uint8
	Visible() bool
}

// compile time checks
var (
	_ RenderObject = (*Geometry)(nil)
	_ ShadowCaster = (*DirectionalLight)(nil)
	_ ShadowCaster = (*SpotLight)(nil)
	_ ShadowCaster = (*PointLight)(nil)
	_ Light        = (*AmbientLight)(nil)
	_ Light        = (*HemisphereLight)(nil)
	_ Light        = (*EnvironmentLight)(nil)
	_ Light        = (*RectangleLight)(nil)
)

/**
 * @brief RenderScene tracks the cameras and render objects taking part in
 * rendering. It holds plain references: registering does not take ownership
 * and removing does not release. Removal swaps the last element into the
 * freed slot, so iteration order is insertion order only until a removal.
 * Not safe for concurrent use.
 */
type RenderScene struct {
	cameras       []*Camera
	renderObjects []RenderObject
	// bumped on every add or remove so controllers can tell the set changed
	revision uint64
}

var (
	sceneOnce     sync.Once
	sceneInstance *RenderScene
)

// Instance returns the process wide scene.
func Instance() *RenderScene {
	sceneOnce.Do(func() {
		sceneInstance = NewRenderScene()
	})
	return sceneInstance
}

func NewRenderScene() *RenderScene {
	return &RenderScene{}
}

// AddCamera registers camera. Adding a registered camera does nothing.
func (s *RenderScene) AddCamera(camera *Camera) {
	if camera == nil || slices.Contains(s.cameras, camera) {
		return
	}
	s.cameras = append(s.cameras, camera)
	s.revision++
}

// RemoveCamera unregisters camera. Removing an absent camera does nothing.
func (s *RenderScene) RemoveCamera(camera *Camera) {
	i := slices.Index(s.cameras, camera)
	if i < 0 {
		return
	}
	last := len(s.cameras) - 1
	s.cameras[i] = s.cameras[last]
	s.cameras[last] = nil
	s.cameras = s.cameras[:last]
	s.revision++
}

// Cameras returns the registered cameras. The slice is shared, do not modify.
func (s *RenderScene) Cameras() []*Camera {
	return s.cameras
}

// SortCameras orders the cameras by Order, keeping registration order for ties.
func (s *RenderScene) SortCameras() {
	slices.SortStableFunc(s.cameras, func(a, b *Camera) int {
		return cmp.Compare(a.Order(), b.Order())
	})
}

func (s *RenderScene) AddRenderObject(obj RenderObject) {
	if obj == nil || slices.Contains(s.renderObjects, obj) {
		return
	}
	s.renderObjects = append(s.renderObjects, obj)
	s.revision++
}

func (s *RenderScene) RemoveRenderObject(obj RenderObject) {
	i := slices.Index(s.renderObjects, obj)
	if i < 0 {
		return
	}
	last := len(s.renderObjects) - 1
	s.renderObjects[i] = s.renderObjects[last]
	s.renderObjects[last] = nil
	s.renderObjects = s.renderObjects[:last]
	s.revision++
}

// RenderObjects returns the registered objects. The slice is shared, do not modify.
func (s *RenderScene) RenderObjects() []RenderObject {
	return s.renderObjects
}

// Geometries returns the registered geometries in render object order.
func (s *RenderScene) Geometries() []*Geometry {
	out := make([]*Geometry, 0, len(s.renderObjects))
	for _, o := range s.renderObjects {
		if g, ok := o.(*Geometry); ok {
			out = append(out, g)
		}
	}
	return out
}

// Lights returns the registered lights in render object order.
func (s *RenderScene) Lights() []Light {
	out := make([]Light, 0, len(s.renderObjects))
	for _, o := range s.renderObjects {
		if l, ok := o.(Light); ok {
			out = append(out, l)
		}
	}
	return out
}

// Revision changes whenever a camera or render object is added or removed.
func (s *RenderScene) Revision() uint64 {
	return s.revision
}

// Clear unregisters everything.
func (s *RenderScene) Clear() {
	clear(s.cameras)
	clear(s.renderObjects)
	s.cameras = s.cameras[:0]
	s.renderObjects = s.renderObjects[:0]
	s.revision++
}
