package loaders

import (
	"fmt"
	"path/filepath"
	"strings"
)

type ResourceType uint8

const (
	RESOURCE_TYPE_NONE ResourceType = iota
	// A .shader file naming the stage files of a shader.
	RESOURCE_TYPE_SHADER
	// A single GLSL or SPIR-V stage referenced by a .shader file.
	RESOURCE_TYPE_SHADER_STAGE
	RESOURCE_TYPE_MATERIAL
	RESOURCE_TYPE_IMAGE
	RESOURCE_TYPE_TEXTURE
	RESOURCE_TYPE_MODEL
	RESOURCE_TYPE_BINARY
)

var resourceTypeNames = [...]string{
	RESOURCE_TYPE_NONE:         "none",
	RESOURCE_TYPE_SHADER:       "shader",
	RESOURCE_TYPE_SHADER_STAGE: "shader_stage",
	RESOURCE_TYPE_MATERIAL:     "material",
	RESOURCE_TYPE_IMAGE:        "image",
	RESOURCE_TYPE_TEXTURE:      "texture",
	RESOURCE_TYPE_MODEL:        "model",
	RESOURCE_TYPE_BINARY:       "binary",
}

func (t ResourceType) String() string {
	if int(t) < len(resourceTypeNames) {
		return resourceTypeNames[t]
	}
	return fmt.Sprintf("resource_type(%d)", uint8(t))
}

/**
 * @brief What a loader returns. Data holds the loaded value; its concrete
 * type depends on the loader.
 */
type Resource struct {
	Name     string
	FullPath string
	Type     ResourceType
	DataSize uint64
	Data     interface{}
}

// DetermineType maps a file name to the resource type its extension stands
// for. Images are reported as images; textures are images uploaded on demand.
func DetermineType(path string) ResourceType {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".shader":
		return RESOURCE_TYPE_SHADER
	case ".vert", ".frag", ".glsl", ".spv":
		return RESOURCE_TYPE_SHADER_STAGE
	case ".yaml", ".yml":
		return RESOURCE_TYPE_MATERIAL
	case ".png", ".jpg", ".jpeg", ".bmp", ".tif", ".tiff":
		return RESOURCE_TYPE_IMAGE
	case ".obj":
		return RESOURCE_TYPE_MODEL
	case ".bin":
		return RESOURCE_TYPE_BINARY
	default:
		return RESOURCE_TYPE_NONE
	}
}

// resourceName is the file name without directory and extension.
func resourceName(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
