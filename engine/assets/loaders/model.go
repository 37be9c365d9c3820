package loaders

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/spaghettifunk/octoon/engine/core"
	"github.com/spaghettifunk/octoon/engine/math"
	"github.com/spaghettifunk/octoon/engine/object"
	"github.com/spaghettifunk/octoon/engine/scene"
)

type ModelParams struct {
	Objects *object.Context
}

/**
 * @brief A parsed model. Subset i of Mesh uses the material named
 * Materials[i]; faces before the first usemtl land in a subset named "".
 */
type ModelData struct {
	Mesh      *scene.Mesh
	Materials []string
}

// ModelLoader reads Wavefront OBJ files: positions, texcoords, normals and
// polygonal faces. Polygons are triangulated as fans.
type ModelLoader struct{}

func (ml *ModelLoader) Load(path string, params interface{}) (*Resource, error) {
	p, _ := params.(*ModelParams)
	if p == nil || p.Objects == nil {
		err := fmt.Errorf("model '%s' needs an object context: %w", path, core.ErrInvalidDesc)
		core.LogError(err.Error())
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		err = fmt.Errorf("model '%s': %w", path, err)
		core.LogError(err.Error())
		return nil, err
	}
	defer f.Close()

	name := resourceName(path)
	model, err := ParseOBJ(p.Objects, name, f)
	if err != nil {
		err = fmt.Errorf("model '%s': %w", path, err)
		core.LogError(err.Error())
		return nil, err
	}

	size := uint64(model.Mesh.NumVertices()*int(3*4) + model.Mesh.NumIndices()*4)
	return &Resource{
		Name:     name,
		FullPath: path,
		Type:     RESOURCE_TYPE_MODEL,
		DataSize: size,
		Data:     model,
	}, nil
}

func (ml *ModelLoader) Unload(*Resource) error {
	return nil
}

type objVertex struct {
	position, texcoord, normal int
}

type objParser struct {
	positions []math.Vec3
	texcoords []math.Vec2
	normals   []math.Vec3

	vertices     []math.Vec3
	outTexcoords []math.Vec2
	outNormals   []math.Vec3
	lookup       map[objVertex]uint32

	subsets   [][]uint32
	materials []string
	current   int
}

func ParseOBJ(ctx *object.Context, name string, r io.Reader) (*ModelData, error) {
	p := &objParser{lookup: make(map[objVertex]uint32), current: -1}

	scanner := bufio.NewScanner(r)
	line := 0
	for scanner.Scan() {
		line++
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 || strings.HasPrefix(fields[0], "#") {
			continue
		}
		if err := p.parseLine(fields); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if len(p.vertices) == 0 {
		return nil, fmt.Errorf("no faces: %w", core.ErrInvalidDesc)
	}

	mesh := scene.NewMesh(ctx, name)
	mesh.SetVertices(p.vertices)
	if len(p.texcoords) > 0 {
		if err := mesh.SetTexcoords(0, p.outTexcoords); err != nil {
			return nil, err
		}
	}
	for i, subset := range p.subsets {
		mesh.SetIndices(i, subset)
	}
	if len(p.normals) > 0 {
		mesh.SetNormals(p.outNormals)
	} else {
		mesh.ComputeVertexNormals()
	}

	return &ModelData{Mesh: mesh, Materials: p.materials}, nil
}

func (p *objParser) parseLine(fields []string) error {
	switch fields[0] {
	case "v":
		v, err := parseFloats(fields[1:], 3)
		if err != nil {
			return err
		}
		p.positions = append(p.positions, math.NewVec3(v[0], v[1], v[2]))
	case "vt":
		v, err := parseFloats(fields[1:], 2)
		if err != nil {
			return err
		}
		p.texcoords = append(p.texcoords, math.NewVec2(v[0], v[1]))
	case "vn":
		v, err := parseFloats(fields[1:], 3)
		if err != nil {
			return err
		}
		p.normals = append(p.normals, math.NewVec3(v[0], v[1], v[2]))
	case "usemtl":
		material := ""
		if len(fields) > 1 {
			material = fields[1]
		}
		p.useMaterial(material)
	case "f":
		return p.parseFace(fields[1:])
	}
	// o, g, s and mtllib carry nothing a mesh stores
	return nil
}

func (p *objParser) useMaterial(name string) {
	for i, m := range p.materials {
		if m == name {
			p.current = i
			return
		}
	}
	p.materials = append(p.materials, name)
	p.subsets = append(p.subsets, nil)
	p.current = len(p.materials) - 1
}

func (p *objParser) parseFace(corners []string) error {
	if len(corners) < 3 {
		return fmt.Errorf("face with %d vertices: %w", len(corners), core.ErrInvalidDesc)
	}
	if p.current < 0 {
		p.useMaterial("")
	}

	indices := make([]uint32, len(corners))
	for i, corner := range corners {
		key, err := p.parseCorner(corner)
		if err != nil {
			return err
		}
		indices[i] = p.vertex(key)
	}
	for i := 1; i+1 < len(indices); i++ {
		p.subsets[p.current] = append(p.subsets[p.current], indices[0], indices[i], indices[i+1])
	}
	return nil
}

// parseCorner resolves v, v/vt, v//vn and v/vt/vn references. Negative
// references count back from the last element read.
func (p *objParser) parseCorner(corner string) (objVertex, error) {
	key := objVertex{position: -1, texcoord: -1, normal: -1}
	parts := strings.Split(corner, "/")
	counts := []int{len(p.positions), len(p.texcoords), len(p.normals)}
	targets := []*int{&key.position, &key.texcoord, &key.normal}

	for i, part := range parts {
		if i >= len(targets) {
			return key, fmt.Errorf("bad face vertex '%s': %w", corner, core.ErrInvalidDesc)
		}
		if part == "" {
			continue
		}
		n, err := strconv.Atoi(part)
		if err != nil {
			return key, fmt.Errorf("bad face vertex '%s': %w", corner, err)
		}
		idx := n - 1
		if n < 0 {
			idx = counts[i] + n
		}
		if n == 0 || idx < 0 || idx >= counts[i] {
			return key, fmt.Errorf("face vertex '%s' out of range: %w", corner, core.ErrInvalidDesc)
		}
		*targets[i] = idx
	}
	if key.position < 0 {
		return key, fmt.Errorf("face vertex '%s' without a position: %w", corner, core.ErrInvalidDesc)
	}
	return key, nil
}

func (p *objParser) vertex(key objVertex) uint32 {
	if idx, ok := p.lookup[key]; ok {
		return idx
	}
	idx := uint32(len(p.vertices))
	p.lookup[key] = idx
	p.vertices = append(p.vertices, p.positions[key.position])

	tc := math.NewVec2(0, 0)
	if key.texcoord >= 0 {
		tc = p.texcoords[key.texcoord]
	}
	p.outTexcoords = append(p.outTexcoords, tc)

	n := math.NewVec3Zero()
	if key.normal >= 0 {
		n = p.normals[key.normal]
	}
	p.outNormals = append(p.outNormals, n)
	return idx
}

func parseFloats(fields []string, n int) ([]float32, error) {
	if len(fields) < n {
		return nil, fmt.Errorf("expected %d values, got %d: %w", n, len(fields), core.ErrInvalidDesc)
	}
	out := make([]float32, n)
	for i := 0; i < n; i++ {
		f, err := strconv.ParseFloat(fields[i], 32)
		if err != nil {
			return nil, err
		}
		out[i] = float32(f)
	}
	return out, nil
}
