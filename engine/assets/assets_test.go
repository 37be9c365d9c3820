package assets

import (
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/spaghettifunk/octoon/engine/assets/loaders"
	"github.com/spaghettifunk/octoon/engine/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	core.SetLogOutput(io.Discard)
	os.Exit(m.Run())
}

func writeAsset(t *testing.T, root, name, data string) {
	t.Helper()
	path := filepath.Join(root, filepath.FromSlash(name))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))
}

func newManager(t *testing.T, root string) *AssetManager {
	t.Helper()
	am, err := NewAssetManager(root)
	require.NoError(t, err)
	t.Cleanup(am.Close)
	require.NoError(t, am.Initialize())
	return am
}

// waitForReloads pumps DispatchReloads the way the frame loop does until
// done reports true.
func waitForReloads(t *testing.T, am *AssetManager, done func() bool) {
	t.Helper()
	require.Eventually(t, func() bool {
		am.DispatchReloads()
		return done()
	}, 5*time.Second, 10*time.Millisecond)
}

const basicMaterial = "name: ground\nshader: builtin.basic\nparams:\n  opacity: 0.5\n"

func TestInitializeIndexesKnownFiles(t *testing.T) {
	root := t.TempDir()
	writeAsset(t, root, "materials/ground.yaml", basicMaterial)
	writeAsset(t, root, "shaders/unlit.vert", "void main() {}")
	writeAsset(t, root, "notes.txt", "ignored")

	am := newManager(t, root)
	var paths []string
	for _, info := range am.Assets() {
		paths = append(paths, info.Path)
	}
	assert.Equal(t, []string{"materials/ground.yaml", "shaders/unlit.vert"}, paths)
	assert.Equal(t, loaders.RESOURCE_TYPE_SHADER_STAGE, am.Assets()[1].Type)
}

func TestLoadAsset(t *testing.T) {
	root := t.TempDir()
	writeAsset(t, root, "materials/ground.yaml", basicMaterial)
	am := newManager(t, root)

	res, err := am.LoadAsset("materials/ground.yaml", loaders.RESOURCE_TYPE_MATERIAL, nil)
	require.NoError(t, err)
	assert.Equal(t, "materials/ground.yaml", res.Name)
	assert.Equal(t, "ground", res.Data.(*loaders.MaterialConfig).Name)

	_, err = am.LoadAsset("materials/missing.yaml", loaders.RESOURCE_TYPE_MATERIAL, nil)
	assert.ErrorIs(t, err, core.ErrAssetNotFound)

	_, err = am.LoadAsset("materials/ground.yaml", loaders.RESOURCE_TYPE_NONE, nil)
	assert.ErrorIs(t, err, core.ErrInvalidDesc)
}

func TestWatcherQueuesChangesUntilDispatch(t *testing.T) {
	root := t.TempDir()
	writeAsset(t, root, "materials/ground.yaml", basicMaterial)
	am := newManager(t, root)

	var mu sync.Mutex
	var reloaded []string
	am.Subscribe(loaders.RESOURCE_TYPE_MATERIAL, func(path string) {
		mu.Lock()
		defer mu.Unlock()
		reloaded = append(reloaded, path)
	})

	writeAsset(t, root, "materials/ground.yaml", "name: ground\nshader: builtin.basic\n")
	waitForReloads(t, am, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(reloaded) > 0
	})
	mu.Lock()
	assert.Equal(t, "materials/ground.yaml", reloaded[0])
	mu.Unlock()
}

func TestWatcherFollowsNewDirectories(t *testing.T) {
	root := t.TempDir()
	am := newManager(t, root)

	require.NoError(t, os.MkdirAll(filepath.Join(root, "late"), 0o755))
	// the directory watch is added asynchronously; rewrite until the file is seen
	require.Eventually(t, func() bool {
		writeAsset(t, root, "late/sky.yaml", basicMaterial)
		for _, info := range am.Assets() {
			if info.Path == "late/sky.yaml" {
				return true
			}
		}
		return false
	}, 5*time.Second, 20*time.Millisecond)
}

func TestDispatchWithoutChangesIsNoop(t *testing.T) {
	am := newManager(t, t.TempDir())
	assert.Equal(t, 0, am.DispatchReloads())
}

func TestCloseIsIdempotent(t *testing.T) {
	am, err := NewAssetManager(t.TempDir())
	require.NoError(t, err)
	am.Close()
	am.Close()
	assert.Error(t, am.Initialize())
}
