package assets

import "github.com/spaghettifunk/octoon/engine/assets/loaders"

// Loader reads one kind of resource from disk. params is loader specific.
type Loader interface {
	Load(path string, params interface{}) (*loaders.Resource, error)
	Unload(*loaders.Resource) error
}
