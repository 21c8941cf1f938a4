package importer

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-gl/mathgl/mgl32"
)

const (
	objType = "obj"
	mtlType = "mtl"

	defaultMaterialName = "DefaultMaterial"
	noIndex             = -1
)

// objDecoder holds the state of one OBJ + MTL parse.
type objDecoder struct {
	dir      string
	line     int
	warnings []string

	positions []mgl32.Vec3
	normals   []mgl32.Vec3
	uvs       []mgl32.Vec2

	objects    []*objObject
	objCurrent *objObject
	matCurrent string
	matlibs    []string

	materials     map[string]*Material
	materialOrder []string
	mtlCurrent    *Material
}

type objObject struct {
	name  string
	faces []objFace
}

type objFace struct {
	material string
	corners  []objCorner
}

// objCorner holds zero-based indices; noIndex marks an absent uv or normal.
type objCorner struct {
	v, vt, vn int
}

func decodeOBJ(path string) (*Scene, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open obj: %w", err)
	}
	defer f.Close()

	dec := &objDecoder{
		dir:       filepath.Dir(path),
		materials: make(map[string]*Material),
	}
	if err := dec.parse(f, dec.parseObjLine); err != nil {
		return nil, fmt.Errorf("parse obj %s: %w", filepath.Base(path), err)
	}
	for _, lib := range dec.matlibs {
		dec.loadMatlib(lib)
	}
	return dec.scene(filepath.Base(path)), nil
}

// parse feeds each trimmed line of r to parseLine.
func (dec *objDecoder) parse(r io.Reader, parseLine func([]string) error) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	dec.line = 0
	for scanner.Scan() {
		dec.line++
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 || strings.HasPrefix(fields[0], "#") {
			continue
		}
		if err := parseLine(fields); err != nil {
			return err
		}
	}
	return scanner.Err()
}

func (dec *objDecoder) parseObjLine(fields []string) error {
	switch fields[0] {
	case "mtllib":
		if len(fields) < 2 {
			return dec.formatError("mtllib with no fields")
		}
		dec.matlibs = append(dec.matlibs, strings.Join(fields[1:], " "))
	case "o", "g":
		name := fmt.Sprintf("unnamed%d", dec.line)
		if len(fields) > 1 {
			name = strings.Join(fields[1:], " ")
		}
		dec.startObject(name)
	case "v":
		v, err := dec.parseVec(fields[1:], 3)
		if err != nil {
			return err
		}
		dec.positions = append(dec.positions, mgl32.Vec3{v[0], v[1], v[2]})
	case "vn":
		v, err := dec.parseVec(fields[1:], 3)
		if err != nil {
			return err
		}
		dec.normals = append(dec.normals, mgl32.Vec3{v[0], v[1], v[2]})
	case "vt":
		v, err := dec.parseVec(fields[1:], 2)
		if err != nil {
			return err
		}
		dec.uvs = append(dec.uvs, mgl32.Vec2{v[0], v[1]})
	case "f":
		return dec.parseFace(fields[1:])
	case "usemtl":
		if len(fields) < 2 {
			return dec.formatError("usemtl with no fields")
		}
		dec.matCurrent = strings.Join(fields[1:], " ")
	case "s", "l", "p":
		// smoothing groups, lines and points are not imported
	default:
		dec.appendWarn(objType, "field not supported: "+fields[0])
	}
	return nil
}

func (dec *objDecoder) startObject(name string) {
	dec.objects = append(dec.objects, &objObject{name: name})
	dec.objCurrent = dec.objects[len(dec.objects)-1]
}

func (dec *objDecoder) parseVec(fields []string, n int) ([3]float32, error) {
	var out [3]float32
	if len(fields) < n {
		return out, dec.formatError(fmt.Sprintf("expected %d components, got %d", n, len(fields)))
	}
	for i := range n {
		val, err := strconv.ParseFloat(fields[i], 32)
		if err != nil {
			return out, dec.formatError(err.Error())
		}
		out[i] = float32(val)
	}
	return out, nil
}

// parseFace parses a face description:
// f v1[/vt1][/vn1] v2[/vt2][/vn2] v3[/vt3][/vn3] ...
func (dec *objDecoder) parseFace(fields []string) error {
	if len(fields) < 3 {
		return dec.formatError("face with less than 3 vertices")
	}
	if dec.objCurrent == nil {
		dec.startObject(fmt.Sprintf("unnamed%d", dec.line))
	}

	face := objFace{
		material: dec.matCurrent,
		corners:  make([]objCorner, len(fields)),
	}
	for pos, f := range fields {
		parts := strings.Split(f, "/")
		c := objCorner{v: noIndex, vt: noIndex, vn: noIndex}

		var err error
		if c.v, err = dec.resolveIndex(parts[0], len(dec.positions)); err != nil {
			return err
		}
		if len(parts) > 1 && parts[1] != "" {
			if c.vt, err = dec.resolveIndex(parts[1], len(dec.uvs)); err != nil {
				return err
			}
		}
		if len(parts) > 2 && parts[2] != "" {
			if c.vn, err = dec.resolveIndex(parts[2], len(dec.normals)); err != nil {
				return err
			}
		}
		face.corners[pos] = c
	}
	dec.objCurrent.faces = append(dec.objCurrent.faces, face)
	return nil
}

// resolveIndex converts a one-based (or negative, relative) OBJ index into
// a zero-based index into a list of length n.
func (dec *objDecoder) resolveIndex(s string, n int) (int, error) {
	val, err := strconv.Atoi(s)
	if err != nil {
		return 0, dec.formatError(err.Error())
	}
	var idx int
	switch {
	case val > 0:
		idx = val - 1
	case val < 0:
		idx = n + val
	default:
		return 0, dec.formatError("index value equal to 0")
	}
	if idx < 0 || idx >= n {
		return 0, dec.formatError(fmt.Sprintf("index %d out of range", val))
	}
	return idx, nil
}

func (dec *objDecoder) material(name string) *Material {
	if mat, ok := dec.materials[name]; ok {
		return mat
	}
	mat := NewMaterial(name)
	dec.materials[name] = mat
	dec.materialOrder = append(dec.materialOrder, name)
	return mat
}

// scene builds the node tree: one child node per object, one mesh per
// object and material.
func (dec *objDecoder) scene(name string) *Scene {
	s := &Scene{Root: &Node{Name: name, Transform: mgl32.Ident4()}}

	// faces referencing undefined materials still get a material
	for _, obj := range dec.objects {
		for _, f := range obj.faces {
			if f.material == "" {
				continue
			}
			if _, ok := dec.materials[f.material]; !ok {
				dec.appendWarn(objType, "could not find material: "+f.material)
				dec.material(f.material)
			}
		}
	}
	matIndex := make(map[string]int, len(dec.materialOrder))
	for _, n := range dec.materialOrder {
		matIndex[n] = len(s.Materials)
		s.Materials = append(s.Materials, dec.materials[n])
	}

	for _, obj := range dec.objects {
		if len(obj.faces) == 0 {
			continue
		}
		node := &Node{Name: obj.name, Transform: mgl32.Ident4()}
		for _, group := range groupByMaterial(obj.faces) {
			idx, ok := matIndex[group.material]
			if !ok {
				if _, seen := matIndex[defaultMaterialName]; !seen {
					matIndex[defaultMaterialName] = len(s.Materials)
					s.Materials = append(s.Materials, NewMaterial(defaultMaterialName))
				}
				idx = matIndex[defaultMaterialName]
			}
			mesh := dec.buildMesh(obj.name, group.faces)
			mesh.MaterialIndex = idx
			node.Meshes = append(node.Meshes, len(s.Meshes))
			s.Meshes = append(s.Meshes, mesh)
		}
		s.Root.AddChild(node)
	}
	s.Warnings = dec.warnings
	return s
}

type faceGroup struct {
	material string
	faces    []objFace
}

func groupByMaterial(faces []objFace) []faceGroup {
	var groups []faceGroup
	pos := map[string]int{}
	for _, f := range faces {
		i, ok := pos[f.material]
		if !ok {
			i = len(groups)
			pos[f.material] = i
			groups = append(groups, faceGroup{material: f.material})
		}
		groups[i].faces = append(groups[i].faces, f)
	}
	return groups
}

// buildMesh de-indexes OBJ corners into a vertex list, sharing vertices
// whose position, uv and normal indices all match.
func (dec *objDecoder) buildMesh(name string, faces []objFace) *Mesh {
	m := &Mesh{Name: name, MaterialIndex: -1}

	hasNormals, hasUVs := true, false
	for _, f := range faces {
		for _, c := range f.corners {
			if c.vn == noIndex {
				hasNormals = false
			}
			if c.vt != noIndex {
				hasUVs = true
			}
		}
	}
	if hasNormals {
		m.Normals = []mgl32.Vec3{}
	}
	if hasUVs {
		m.TextureCoords[0] = []mgl32.Vec2{}
	}

	seen := make(map[objCorner]uint32)
	for _, f := range faces {
		face := Face{Indices: make([]uint32, len(f.corners))}
		for i, c := range f.corners {
			key := c
			if !hasNormals {
				key.vn = noIndex
			}
			idx, ok := seen[key]
			if !ok {
				idx = uint32(len(m.Vertices))
				seen[key] = idx
				m.Vertices = append(m.Vertices, dec.positions[c.v])
				if hasNormals {
					m.Normals = append(m.Normals, dec.normals[c.vn])
				}
				if hasUVs {
					var uv mgl32.Vec2
					if c.vt != noIndex {
						uv = dec.uvs[c.vt]
					}
					m.TextureCoords[0] = append(m.TextureCoords[0], uv)
				}
			}
			face.Indices[i] = idx
		}
		m.Faces = append(m.Faces, face)
	}
	return m
}

func (dec *objDecoder) formatError(msg string) error {
	return fmt.Errorf("%s in line %d", msg, dec.line)
}

func (dec *objDecoder) appendWarn(ftype, msg string) {
	dec.warnings = append(dec.warnings, fmt.Sprintf("%s(%d): %s", ftype, dec.line, msg))
}
