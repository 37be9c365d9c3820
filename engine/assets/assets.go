package assets

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spaghettifunk/octoon/engine/assets/loaders"
	"github.com/spaghettifunk/octoon/engine/core"
)

type AssetInfo struct {
	// slash separated, relative to the assets directory
	Path     string
	Type     loaders.ResourceType
	Modified time.Time
}

// ReloadFunc is called on the frame thread with the path of a changed asset.
type ReloadFunc func(path string)

/**
 * @brief Indexes the files under an assets directory and watches it for
 * changes. The watcher goroutine only records what changed; reloads are
 * handed to subscribers from DispatchReloads, which the engine calls once per
 * frame so every reload happens on the thread that owns the device.
 */
type AssetManager struct {
	root        string
	assets      map[string]AssetInfo
	loaders     map[loaders.ResourceType]Loader
	subscribers map[loaders.ResourceType][]ReloadFunc
	pending     map[string]loaders.ResourceType

	mutex sync.RWMutex

	done     chan struct{}
	stopped  chan struct{}
	fsnotify *fsnotify.Watcher
	started  bool
	isClosed bool
}

func NewAssetManager(root string) (*AssetManager, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	fsWatch, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	am := &AssetManager{
		root:        abs,
		assets:      make(map[string]AssetInfo),
		loaders:     make(map[loaders.ResourceType]Loader),
		subscribers: make(map[loaders.ResourceType][]ReloadFunc),
		pending:     make(map[string]loaders.ResourceType),
		fsnotify:    fsWatch,
		done:        make(chan struct{}),
		stopped:     make(chan struct{}),
	}

	am.registerLoader(loaders.RESOURCE_TYPE_SHADER, &loaders.ShaderLoader{})
	am.registerLoader(loaders.RESOURCE_TYPE_BINARY, &loaders.BinaryLoader{})
	am.registerLoader(loaders.RESOURCE_TYPE_MATERIAL, &loaders.MaterialLoader{})
	am.registerLoader(loaders.RESOURCE_TYPE_IMAGE, &loaders.ImageLoader{})
	am.registerLoader(loaders.RESOURCE_TYPE_TEXTURE, &loaders.TextureLoader{})
	am.registerLoader(loaders.RESOURCE_TYPE_MODEL, &loaders.ModelLoader{})
	return am, nil
}

// Initialize indexes the assets directory and starts watching it.
func (am *AssetManager) Initialize() error {
	am.mutex.RLock()
	started := am.started
	am.mutex.RUnlock()
	if started {
		return nil
	}
	if err := am.addRecursive(am.root); err != nil {
		err = fmt.Errorf("assets '%s': %w", am.root, err)
		core.LogError(err.Error())
		return err
	}
	am.mutex.Lock()
	am.started = true
	am.mutex.Unlock()
	go am.start()
	core.LogInfo("watching %d assets under '%s'", len(am.Assets()), am.root)
	return nil
}

func (am *AssetManager) Root() string {
	return am.root
}

// Path returns the file system path of an asset.
func (am *AssetManager) Path(name string) string {
	return filepath.Join(am.root, filepath.FromSlash(name))
}

// Assets returns the indexed assets sorted by path.
func (am *AssetManager) Assets() []AssetInfo {
	am.mutex.RLock()
	defer am.mutex.RUnlock()

	out := make([]AssetInfo, 0, len(am.assets))
	for _, info := range am.assets {
		out = append(out, info)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out
}

// Subscribe registers fn for reloads of assets whose file type is t.
func (am *AssetManager) Subscribe(t loaders.ResourceType, fn ReloadFunc) {
	am.mutex.Lock()
	defer am.mutex.Unlock()
	am.subscribers[t] = append(am.subscribers[t], fn)
}

func (am *AssetManager) registerLoader(assetType loaders.ResourceType, loader Loader) {
	am.loaders[assetType] = loader
}

/**
 * @brief Loads the asset called name with the loader for resourceType. The
 * requested type may differ from the file type: an image file loads as a
 * texture when asked for one.
 */
func (am *AssetManager) LoadAsset(name string, resourceType loaders.ResourceType, params interface{}) (*loaders.Resource, error) {
	name = filepath.ToSlash(filepath.Clean(name))

	am.mutex.RLock()
	_, exists := am.assets[name]
	loader, loaderExists := am.loaders[resourceType]
	am.mutex.RUnlock()

	if !exists {
		// the watcher may not have seen a file written a moment ago
		if _, err := os.Stat(am.Path(name)); err != nil {
			return nil, fmt.Errorf("%s '%s': %w", resourceType, name, core.ErrAssetNotFound)
		}
		am.index(name)
	}
	if !loaderExists {
		return nil, fmt.Errorf("no loader registered for asset type %s: %w", resourceType, core.ErrInvalidDesc)
	}

	res, err := loader.Load(am.Path(name), params)
	if err != nil {
		return nil, err
	}
	res.Name = name
	return res, nil
}

func (am *AssetManager) UnloadAsset(res *loaders.Resource) error {
	if res == nil {
		return nil
	}
	am.mutex.RLock()
	loader, ok := am.loaders[res.Type]
	am.mutex.RUnlock()
	if !ok {
		return nil
	}
	return loader.Unload(res)
}

/**
 * @brief Hands every asset changed since the last call to its subscribers,
 * in path order, and returns how many changes were dispatched. Several writes
 * to one file between two calls are reported once.
 */
func (am *AssetManager) DispatchReloads() int {
	am.mutex.Lock()
	if len(am.pending) == 0 {
		am.mutex.Unlock()
		return 0
	}
	pending := am.pending
	am.pending = make(map[string]loaders.ResourceType)
	subscribers := make(map[loaders.ResourceType][]ReloadFunc, len(am.subscribers))
	for t, fns := range am.subscribers {
		subscribers[t] = append([]ReloadFunc(nil), fns...)
	}
	am.mutex.Unlock()

	paths := make([]string, 0, len(pending))
	for path := range pending {
		paths = append(paths, path)
	}
	sort.Strings(paths)

	for _, path := range paths {
		t := pending[path]
		core.LogDebug("reloading %s '%s'", t, path)
		for _, fn := range subscribers[t] {
			fn(path)
		}
	}
	return len(paths)
}

// Close stops the watcher. Loaded resources stay valid.
func (am *AssetManager) Close() {
	am.mutex.Lock()
	if am.isClosed {
		am.mutex.Unlock()
		return
	}
	am.isClosed = true
	started := am.started
	am.mutex.Unlock()

	if !started {
		am.fsnotify.Close()
		return
	}
	close(am.done)
	<-am.stopped
}

func (am *AssetManager) addRecursive(name string) error {
	if am.closed() {
		return errors.New("asset watcher already closed")
	}
	return am.watchRecursive(name)
}

func (am *AssetManager) closed() bool {
	am.mutex.RLock()
	defer am.mutex.RUnlock()
	return am.isClosed
}

func (am *AssetManager) start() {
	defer close(am.stopped)
	for {
		select {
		case e, ok := <-am.fsnotify.Events:
			if !ok {
				return
			}
			am.handleEvent(e)

		case err, ok := <-am.fsnotify.Errors:
			if !ok {
				return
			}
			core.LogError("asset watcher: %s", err.Error())

		case <-am.done:
			am.fsnotify.Close()
			return
		}
	}
}

func (am *AssetManager) handleEvent(e fsnotify.Event) {
	if e.Op&fsnotify.Create != 0 {
		if s, err := os.Stat(e.Name); err == nil && s.IsDir() {
			if err := am.watchRecursive(e.Name); err != nil {
				core.LogWarn("asset watcher: %s", err.Error())
			}
			return
		}
	}

	name, ok := am.relative(e.Name)
	if !ok {
		return
	}
	if e.Op&(fsnotify.Create|fsnotify.Write) != 0 {
		if t := am.index(name); t != loaders.RESOURCE_TYPE_NONE {
			am.mutex.Lock()
			am.pending[name] = t
			am.mutex.Unlock()
		}
	}
	// a removed directory can not be stat'ed, so every removal is also
	// dropped from the watch list
	if e.Op&(fsnotify.Remove|fsnotify.Rename) != 0 {
		am.removeAsset(name)
		_ = am.fsnotify.Remove(e.Name)
	}
}

// watchRecursive adds every directory under path to the watch list and
// indexes the files it finds.
func (am *AssetManager) watchRecursive(path string) error {
	return filepath.Walk(path, func(walkPath string, fi os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if fi.IsDir() {
			return am.fsnotify.Add(walkPath)
		}
		if name, ok := am.relative(walkPath); ok {
			am.index(name)
		}
		return nil
	})
}

func (am *AssetManager) relative(path string) (string, bool) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", false
	}
	rel, err := filepath.Rel(am.root, abs)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", false
	}
	return filepath.ToSlash(rel), true
}

// index records a created or modified file and returns its type.
func (am *AssetManager) index(name string) loaders.ResourceType {
	assetType := loaders.DetermineType(name)
	if assetType == loaders.RESOURCE_TYPE_NONE {
		return assetType
	}

	am.mutex.Lock()
	defer am.mutex.Unlock()
	am.assets[name] = AssetInfo{
		Path:     name,
		Type:     assetType,
		Modified: time.Now(),
	}
	return assetType
}

func (am *AssetManager) removeAsset(name string) {
	am.mutex.Lock()
	defer am.mutex.Unlock()

	delete(am.assets, name)
	delete(am.pending, name)
}
