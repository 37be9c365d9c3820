//go:build mage

package main

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/magefile/mage/mg"
)

const (
	binaryPath = "bin/octoon"
	shadersDir = "assets/shaders"
)

type Build mg.Namespace

// Compiles the testbed binary into bin/.
func (Build) Engine() error {
	mg.Deps(Build.Shaders)
	if _, err := executeCmd("go", withArgs("build", "-o", binaryPath, "."), withStream()); err != nil {
		return err
	}
	return nil
}

// Compiles every GLSL stage under assets/shaders to SPIR-V next to it.
func (Build) Shaders() error {
	return buildShaders()
}

func buildShaders() error {
	if _, err := os.Stat(shadersDir); err != nil {
		fmt.Printf("No shaders under %s, skipping\n", shadersDir)
		return nil
	}
	return filepath.WalkDir(shadersDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		switch filepath.Ext(path) {
		case ".vert", ".frag", ".comp":
		default:
			return nil
		}
		out := strings.TrimSuffix(path, filepath.Ext(path)) + "." + strings.TrimPrefix(filepath.Ext(path), ".") + ".spv"
		if _, err := executeCmd("glslc", withArgs(filepath.Base(path), "-o", filepath.Base(out)), withDir(filepath.Dir(path)), withStream()); err != nil {
			return err
		}
		return nil
	})
}
