package assets

import (
	"fmt"

	"github.com/spaghettifunk/octoon/engine/assets/loaders"
	"github.com/spaghettifunk/octoon/engine/core"
	"github.com/spaghettifunk/octoon/engine/hal"
	"github.com/spaghettifunk/octoon/engine/material"
	"github.com/spaghettifunk/octoon/engine/object"
)

// ShaderCompiler drops the device objects compiled from a shader whose
// stages changed.
type ShaderCompiler interface {
	ReloadShader(shader *material.Shader)
}

type shaderEntry struct {
	shader *material.Shader
	stages []string
}

type materialEntry struct {
	config   *loaders.MaterialConfig
	material *material.Material
}

/**
 * @brief Owns the shaders, materials and textures loaded from the assets
 * directory and keeps them current. A changed file is reloaded into the
 * object that was handed out, so scenes never need to swap references:
 * shaders get new stages and their compiled programs are dropped, materials
 * get new parameters and are marked dirty, textures are replaced in every
 * material that samples them.
 */
type Library struct {
	manager  *AssetManager
	device   hal.GraphicsDevice
	objects  *object.Context
	compiler ShaderCompiler

	shaders   map[string]*shaderEntry
	stages    map[string]string
	materials map[string]*materialEntry
	textures  map[string]*loaders.Resource
	// textures being decoded by the job system
	preloading map[string]bool
}

func NewLibrary(manager *AssetManager, device hal.GraphicsDevice, objects *object.Context, compiler ShaderCompiler) *Library {
	l := &Library{
		manager:    manager,
		device:     device,
		objects:    objects,
		compiler:   compiler,
		shaders:    make(map[string]*shaderEntry),
		stages:     make(map[string]string),
		materials:  make(map[string]*materialEntry),
		textures:   make(map[string]*loaders.Resource),
		preloading: make(map[string]bool),
	}
	manager.Subscribe(loaders.RESOURCE_TYPE_SHADER, l.reloadShader)
	manager.Subscribe(loaders.RESOURCE_TYPE_SHADER_STAGE, l.reloadStage)
	manager.Subscribe(loaders.RESOURCE_TYPE_MATERIAL, l.reloadMaterial)
	manager.Subscribe(loaders.RESOURCE_TYPE_IMAGE, l.reloadTexture)
	return l
}

func (l *Library) LoadShader(path string) (*material.Shader, error) {
	if entry, ok := l.shaders[path]; ok {
		return entry.shader, nil
	}
	res, err := l.manager.LoadAsset(path, loaders.RESOURCE_TYPE_SHADER, nil)
	if err != nil {
		return nil, err
	}
	src := res.Data.(*loaders.ShaderSource)
	entry := &shaderEntry{shader: src.NewShader()}
	l.shaders[path] = entry
	l.trackStages(path, entry, src)
	return entry.shader, nil
}

// Shader finds a shader by name among the loaded shaders and the built-in ones.
func (l *Library) Shader(name string) *material.Shader {
	for _, entry := range l.shaders {
		if entry.shader.Name == name {
			return entry.shader
		}
	}
	return material.BuiltinShader(name)
}

func (l *Library) LoadMaterial(path string) (*material.Material, error) {
	if entry, ok := l.materials[path]; ok {
		return entry.material, nil
	}
	res, err := l.manager.LoadAsset(path, loaders.RESOURCE_TYPE_MATERIAL, nil)
	if err != nil {
		return nil, err
	}
	cfg := res.Data.(*loaders.MaterialConfig)

	shader := l.Shader(cfg.Shader)
	if shader == nil {
		err := fmt.Errorf("material '%s': shader '%s': %w", path, cfg.Shader, core.ErrAssetNotFound)
		core.LogError(err.Error())
		return nil, err
	}
	m := material.NewMaterial(l.objects, cfg.Name, shader)
	if err := cfg.Apply(m, l.Texture); err != nil {
		err = fmt.Errorf("material '%s': %w", path, err)
		core.LogError(err.Error())
		return nil, err
	}
	l.materials[path] = &materialEntry{config: cfg, material: m}
	return m, nil
}

// Texture returns the texture uploaded from the image at path, loading it
// on first use.
func (l *Library) Texture(path string) (hal.GraphicsTexture, error) {
	if res, ok := l.textures[path]; ok {
		return res.Data.(hal.GraphicsTexture), nil
	}
	res, err := l.manager.LoadAsset(path, loaders.RESOURCE_TYPE_TEXTURE, &loaders.TextureParams{Device: l.device})
	if err != nil {
		return nil, err
	}
	l.textures[path] = res
	return res.Data.(hal.GraphicsTexture), nil
}

func (l *Library) LoadModel(path string) (*loaders.ModelData, error) {
	res, err := l.manager.LoadAsset(path, loaders.RESOURCE_TYPE_MODEL, &loaders.ModelParams{Objects: l.objects})
	if err != nil {
		return nil, err
	}
	return res.Data.(*loaders.ModelData), nil
}

func (l *Library) Manager() *AssetManager {
	return l.manager
}

/**
 * @brief Decodes the images at paths on jobs and uploads them as textures
 * once jobs.Update delivers the pixels. Textures already loaded or in flight
 * are skipped. Returns how many jobs were submitted.
 */
func (l *Library) PreloadTextures(jobs *core.JobSystem, paths ...string) (int, error) {
	submitted := 0
	for _, path := range paths {
		if _, ok := l.textures[path]; ok || l.preloading[path] {
			continue
		}
		path := path
		err := jobs.Submit(core.JobTask{
			Name: "decode " + path,
			Run: func() (interface{}, error) {
				return l.manager.LoadAsset(path, loaders.RESOURCE_TYPE_IMAGE, nil)
			},
			OnComplete: func(result interface{}) { l.uploadPreloaded(path, result.(*loaders.Resource)) },
			OnFailure:  func(error) { delete(l.preloading, path) },
		})
		if err != nil {
			return submitted, err
		}
		l.preloading[path] = true
		submitted++
	}
	return submitted, nil
}

func (l *Library) uploadPreloaded(path string, res *loaders.Resource) {
	delete(l.preloading, path)
	if _, ok := l.textures[path]; ok {
		// loaded synchronously in the meantime
		return
	}
	texture, err := loaders.UploadTexture(l.device, res.Name, res.Data.(*loaders.ImageData))
	if err != nil {
		core.LogError("texture '%s': %s", path, err.Error())
		return
	}
	l.textures[path] = &loaders.Resource{
		Name:     res.Name,
		FullPath: res.FullPath,
		Type:     loaders.RESOURCE_TYPE_TEXTURE,
		DataSize: res.DataSize,
		Data:     texture,
	}
	core.LogDebug("preloaded texture '%s'", path)
}

// Close releases the uploaded textures.
func (l *Library) Close() {
	for path, res := range l.textures {
		if err := l.manager.UnloadAsset(res); err != nil {
			core.LogWarn("texture '%s': %s", path, err.Error())
		}
	}
	clear(l.textures)
}

func (l *Library) trackStages(path string, entry *shaderEntry, src *loaders.ShaderSource) {
	for _, stage := range entry.stages {
		delete(l.stages, stage)
	}
	entry.stages = entry.stages[:0]
	for _, stage := range []string{src.VertexPath, src.FragmentPath} {
		name, ok := l.manager.relative(stage)
		if !ok {
			continue
		}
		l.stages[name] = path
		entry.stages = append(entry.stages, name)
	}
}

func (l *Library) reloadShader(path string) {
	entry, ok := l.shaders[path]
	if !ok {
		return
	}
	res, err := l.manager.LoadAsset(path, loaders.RESOURCE_TYPE_SHADER, nil)
	if err != nil {
		core.LogWarn("keeping shader '%s': %s", path, err.Error())
		return
	}
	src := res.Data.(*loaders.ShaderSource)
	src.Apply(entry.shader)
	l.trackStages(path, entry, src)
	if l.compiler != nil {
		l.compiler.ReloadShader(entry.shader)
	}
	core.LogInfo("reloaded shader '%s'", path)
}

func (l *Library) reloadStage(path string) {
	if shader, ok := l.stages[path]; ok {
		l.reloadShader(shader)
	}
}

func (l *Library) reloadMaterial(path string) {
	entry, ok := l.materials[path]
	if !ok {
		return
	}
	res, err := l.manager.LoadAsset(path, loaders.RESOURCE_TYPE_MATERIAL, nil)
	if err != nil {
		core.LogWarn("keeping material '%s': %s", path, err.Error())
		return
	}
	cfg := res.Data.(*loaders.MaterialConfig)
	shader := l.Shader(cfg.Shader)
	if shader == nil {
		core.LogWarn("keeping material '%s': unknown shader '%s'", path, cfg.Shader)
		return
	}
	if shader != entry.material.Shader() {
		entry.material.SetShader(shader)
	}
	if err := cfg.Apply(entry.material, l.Texture); err != nil {
		core.LogWarn("material '%s' partially reloaded: %s", path, err.Error())
	}
	entry.config = cfg
	core.LogInfo("reloaded material '%s'", path)
}

func (l *Library) reloadTexture(path string) {
	old, ok := l.textures[path]
	if !ok {
		return
	}
	res, err := l.manager.LoadAsset(path, loaders.RESOURCE_TYPE_TEXTURE, &loaders.TextureParams{Device: l.device})
	if err != nil {
		core.LogWarn("keeping texture '%s': %s", path, err.Error())
		return
	}
	texture := res.Data.(hal.GraphicsTexture)
	l.textures[path] = res

	for _, entry := range l.materials {
		for _, p := range entry.config.MaterialParams() {
			if p.Texture == path {
				entry.material.SetTexture(p.Name, texture)
			}
		}
	}
	if err := l.manager.UnloadAsset(old); err != nil {
		core.LogWarn("texture '%s': %s", path, err.Error())
	}
	core.LogInfo("reloaded texture '%s'", path)
}
