package object

// Kind identifies the concrete category of a scene object. It replaces the
// class-name registration used for runtime type checks: code that needs the
// concrete type switches on Kind or uses a type assertion.
type Kind uint8

const (
	KIND_UNKNOWN Kind = iota
	KIND_MESH
	KIND_MATERIAL
	KIND_CAMERA
	KIND_LIGHT
	KIND_GEOMETRY
	KIND_MAX
)

var kindNames = [...]string{
	KIND_UNKNOWN:  "unknown",
	KIND_MESH:     "mesh",
	KIND_MATERIAL: "material",
	KIND_CAMERA:   "camera",
	KIND_LIGHT:    "light",
	KIND_GEOMETRY: "geometry",
}

func (k Kind) String() string {
	if k >= KIND_MAX {
		return "invalid"
	}
	return kindNames[k]
}

// SceneObject is implemented by every engine entity that takes part in
// dirty tracking.
type SceneObject interface {
	Base() *Object
	Kind() Kind
}

// IsKind reports whether obj is non-nil and of kind k.
func IsKind(obj SceneObject, k Kind) bool {
	return obj != nil && obj.Kind() == k
}

// As downcasts obj to T. The second value is false when obj is not a T.
func As[T SceneObject](obj SceneObject) (T, bool) {
	t, ok := obj.(T)
	return t, ok
}
