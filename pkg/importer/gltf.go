package importer

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"net/url"
	"path/filepath"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/qmuntal/gltf"
)

// ErrNodeCycle is returned when a glTF node hierarchy is not a tree.
var ErrNodeCycle = errors.New("gltf node hierarchy contains a cycle")

func decodeGLTF(path string) (*Scene, error) {
	doc, err := gltf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open gltf: %w", err)
	}
	g := &gltfDecoder{doc: doc, scene: &Scene{}}
	if err := g.decode(filepath.Base(path)); err != nil {
		return nil, fmt.Errorf("decode gltf %s: %w", filepath.Base(path), err)
	}
	return g.scene, nil
}

type gltfDecoder struct {
	doc   *gltf.Document
	scene *Scene

	// meshes maps a glTF mesh index to the scene meshes built from its
	// primitives.
	meshes map[int][]int

	// images maps a glTF image index to the name materials use for it.
	images map[int]string

	defaultMaterial int
}

func (g *gltfDecoder) decode(name string) error {
	g.meshes = make(map[int][]int)
	g.images = make(map[int]string)
	g.defaultMaterial = -1

	g.loadImages()
	for _, m := range g.doc.Materials {
		g.scene.Materials = append(g.scene.Materials, g.convertMaterial(m))
	}
	for i, m := range g.doc.Meshes {
		if err := g.convertMesh(i, m); err != nil {
			return fmt.Errorf("mesh %d %q: %w", i, m.Name, err)
		}
	}

	root := &Node{Name: name, Transform: mgl32.Ident4()}
	visited := make(map[int]bool)
	for _, idx := range g.rootNodes() {
		child, err := g.convertNode(idx, visited)
		if err != nil {
			return err
		}
		root.AddChild(child)
	}
	g.scene.Root = root
	return nil
}

// rootNodes returns the nodes of the active scene, or every node without a
// parent when the document declares no scenes.
func (g *gltfDecoder) rootNodes() []int {
	if len(g.doc.Scenes) > 0 {
		idx := 0
		if g.doc.Scene != nil && *g.doc.Scene < len(g.doc.Scenes) {
			idx = *g.doc.Scene
		}
		return g.doc.Scenes[idx].Nodes
	}
	hasParent := make([]bool, len(g.doc.Nodes))
	for _, n := range g.doc.Nodes {
		for _, c := range n.Children {
			if c >= 0 && c < len(hasParent) {
				hasParent[c] = true
			}
		}
	}
	var roots []int
	for i, p := range hasParent {
		if !p {
			roots = append(roots, i)
		}
	}
	return roots
}

func (g *gltfDecoder) convertNode(idx int, visited map[int]bool) (*Node, error) {
	if idx < 0 || idx >= len(g.doc.Nodes) {
		return nil, fmt.Errorf("node index %d out of range", idx)
	}
	if visited[idx] {
		return nil, fmt.Errorf("%w at node %d", ErrNodeCycle, idx)
	}
	visited[idx] = true

	src := g.doc.Nodes[idx]
	n := &Node{Name: src.Name, Transform: nodeTransform(src)}
	if n.Name == "" {
		n.Name = fmt.Sprintf("node%d", idx)
	}
	if src.Mesh != nil {
		n.Meshes = append(n.Meshes, g.meshes[*src.Mesh]...)
	}
	for _, c := range src.Children {
		child, err := g.convertNode(c, visited)
		if err != nil {
			return nil, err
		}
		n.AddChild(child)
	}
	return n, nil
}

func nodeTransform(n *gltf.Node) mgl32.Mat4 {
	var m mgl32.Mat4
	if n.Matrix != [16]float64{} && n.Matrix != gltf.DefaultMatrix {
		for i, v := range n.Matrix {
			m[i] = float32(v)
		}
		return m
	}
	t := n.TranslationOrDefault()
	r := n.RotationOrDefault()
	s := n.ScaleOrDefault()
	rot := mgl32.Quat{
		W: float32(r[3]),
		V: mgl32.Vec3{float32(r[0]), float32(r[1]), float32(r[2])},
	}
	return mgl32.Translate3D(float32(t[0]), float32(t[1]), float32(t[2])).
		Mul4(rot.Mat4()).
		Mul4(mgl32.Scale3D(float32(s[0]), float32(s[1]), float32(s[2])))
}

// loadImages names every image. External images keep their relative URI;
// images stored in a buffer view or a data URI become embedded textures.
func (g *gltfDecoder) loadImages() {
	for i, img := range g.doc.Images {
		switch {
		case img.BufferView != nil:
			data, err := g.bufferViewBytes(*img.BufferView)
			if err != nil {
				g.warn("image %d: %v", i, err)
				continue
			}
			g.images[i] = g.embed(img, data)
		case img.IsEmbeddedResource():
			data, err := img.MarshalData()
			if err != nil {
				g.warn("image %d: %v", i, err)
				continue
			}
			g.images[i] = g.embed(img, data)
		case img.URI != "":
			uri, err := url.PathUnescape(img.URI)
			if err != nil {
				uri = img.URI
			}
			g.images[i] = uri
		}
	}
}

func (g *gltfDecoder) embed(img *gltf.Image, data []byte) string {
	idx := len(g.scene.Textures)
	g.scene.Textures = append(g.scene.Textures, &EmbeddedTexture{
		Name:     img.Name,
		MimeType: img.MimeType,
		Data:     data,
	})
	return EmbeddedName(idx)
}

func (g *gltfDecoder) textureName(texIdx int) (string, bool) {
	if texIdx < 0 || texIdx >= len(g.doc.Textures) {
		return "", false
	}
	src := g.doc.Textures[texIdx].Source
	if src == nil {
		return "", false
	}
	name, ok := g.images[*src]
	return name, ok
}

func (g *gltfDecoder) convertMaterial(m *gltf.Material) *Material {
	mat := NewMaterial(m.Name)
	add := func(t TextureType, idx *int) {
		if idx == nil {
			return
		}
		if name, ok := g.textureName(*idx); ok {
			mat.AddTexture(t, name)
		}
	}

	if pbr := m.PBRMetallicRoughness; pbr != nil {
		c := pbr.BaseColorFactorOrDefault()
		mat.Diffuse = mgl32.Vec4{float32(c[0]), float32(c[1]), float32(c[2]), float32(c[3])}
		mat.Opacity = float32(c[3])
		if pbr.BaseColorTexture != nil {
			add(TextureDiffuse, &pbr.BaseColorTexture.Index)
		}
		if pbr.MetallicRoughnessTexture != nil {
			add(TextureMetalness, &pbr.MetallicRoughnessTexture.Index)
		}
	}
	if m.NormalTexture != nil {
		add(TextureNormals, m.NormalTexture.Index)
	}
	if m.OcclusionTexture != nil {
		add(TextureLightmap, m.OcclusionTexture.Index)
	}
	if m.EmissiveTexture != nil {
		add(TextureEmissive, &m.EmissiveTexture.Index)
	}
	e := m.EmissiveFactor
	mat.Emissive = mgl32.Vec4{float32(e[0]), float32(e[1]), float32(e[2]), 1}
	return mat
}

func (g *gltfDecoder) materialFor(p *gltf.Primitive) int {
	if p.Material != nil && *p.Material < len(g.scene.Materials) {
		return *p.Material
	}
	if g.defaultMaterial < 0 {
		g.defaultMaterial = len(g.scene.Materials)
		g.scene.Materials = append(g.scene.Materials, NewMaterial(defaultMaterialName))
	}
	return g.defaultMaterial
}

// convertMesh turns every triangle primitive of m into a scene mesh.
// Point and line primitives are skipped.
func (g *gltfDecoder) convertMesh(idx int, m *gltf.Mesh) error {
	for pi, p := range m.Primitives {
		switch p.Mode {
		case gltf.PrimitiveTriangles, gltf.PrimitiveTriangleStrip, gltf.PrimitiveTriangleFan:
		default:
			g.warn("mesh %d primitive %d: mode %v not imported", idx, pi, p.Mode)
			continue
		}
		posIdx, ok := p.Attributes[gltf.POSITION]
		if !ok {
			g.warn("mesh %d primitive %d: no POSITION attribute", idx, pi)
			continue
		}

		out := &Mesh{Name: m.Name}
		var err error
		if out.Vertices, err = g.readVec3(posIdx); err != nil {
			return fmt.Errorf("read positions: %w", err)
		}
		if nIdx, ok := p.Attributes[gltf.NORMAL]; ok {
			if out.Normals, err = g.readVec3(nIdx); err != nil {
				return fmt.Errorf("read normals: %w", err)
			}
		}
		for ch := range MaxTextureCoords {
			uvIdx, ok := p.Attributes[fmt.Sprintf("TEXCOORD_%d", ch)]
			if !ok {
				continue
			}
			uvs, err := g.readVec2(uvIdx)
			if err != nil {
				return fmt.Errorf("read uv channel %d: %w", ch, err)
			}
			// glTF puts the uv origin at the top left
			for i := range uvs {
				uvs[i][1] = 1 - uvs[i][1]
			}
			out.TextureCoords[ch] = uvs
		}

		var indices []uint32
		if p.Indices != nil {
			if indices, err = g.readIndices(*p.Indices); err != nil {
				return fmt.Errorf("read indices: %w", err)
			}
		} else {
			indices = make([]uint32, len(out.Vertices))
			for i := range indices {
				indices[i] = uint32(i)
			}
		}
		for _, i := range indices {
			if int(i) >= len(out.Vertices) {
				return fmt.Errorf("index %d out of range (%d vertices)", i, len(out.Vertices))
			}
		}
		out.Faces = triangleFaces(p.Mode, indices)
		out.MaterialIndex = g.materialFor(p)

		g.meshes[idx] = append(g.meshes[idx], len(g.scene.Meshes))
		g.scene.Meshes = append(g.scene.Meshes, out)
	}
	return nil
}

// triangleFaces builds triangle faces from a list, strip or fan.
func triangleFaces(mode gltf.PrimitiveMode, idx []uint32) []Face {
	var faces []Face
	tri := func(a, b, c uint32) {
		faces = append(faces, Face{Indices: []uint32{a, b, c}})
	}
	switch mode {
	case gltf.PrimitiveTriangleStrip:
		for i := 2; i < len(idx); i++ {
			if i%2 == 0 {
				tri(idx[i-2], idx[i-1], idx[i])
			} else {
				tri(idx[i-1], idx[i-2], idx[i])
			}
		}
	case gltf.PrimitiveTriangleFan:
		for i := 2; i < len(idx); i++ {
			tri(idx[0], idx[i-1], idx[i])
		}
	default:
		for i := 0; i+2 < len(idx); i += 3 {
			tri(idx[i], idx[i+1], idx[i+2])
		}
	}
	return faces
}

func (g *gltfDecoder) warn(format string, args ...any) {
	g.scene.Warnings = append(g.scene.Warnings, fmt.Sprintf(format, args...))
}

func (g *gltfDecoder) bufferViewBytes(idx int) ([]byte, error) {
	if idx < 0 || idx >= len(g.doc.BufferViews) {
		return nil, fmt.Errorf("buffer view %d out of range", idx)
	}
	bv := g.doc.BufferViews[idx]
	if bv.Buffer < 0 || bv.Buffer >= len(g.doc.Buffers) {
		return nil, fmt.Errorf("buffer %d out of range", bv.Buffer)
	}
	data := g.doc.Buffers[bv.Buffer].Data
	end := bv.ByteOffset + bv.ByteLength
	if data == nil || end > len(data) {
		return nil, fmt.Errorf("buffer view %d exceeds buffer data", idx)
	}
	return data[bv.ByteOffset:end], nil
}

func componentSize(c gltf.ComponentType) int {
	switch c {
	case gltf.ComponentByte, gltf.ComponentUbyte:
		return 1
	case gltf.ComponentShort, gltf.ComponentUshort:
		return 2
	default:
		return 4
	}
}

// accessorElements returns the raw bytes of each element of accessor idx.
func (g *gltfDecoder) accessorElements(idx int, components int) ([][]byte, *gltf.Accessor, error) {
	if idx < 0 || idx >= len(g.doc.Accessors) {
		return nil, nil, fmt.Errorf("accessor %d out of range", idx)
	}
	acc := g.doc.Accessors[idx]
	if acc.BufferView == nil {
		return nil, nil, fmt.Errorf("accessor %d has no buffer view", idx)
	}
	data, err := g.bufferViewBytes(*acc.BufferView)
	if err != nil {
		return nil, nil, err
	}
	elemSize := componentSize(acc.ComponentType) * components
	stride := g.doc.BufferViews[*acc.BufferView].ByteStride
	if stride == 0 {
		stride = elemSize
	}
	out := make([][]byte, acc.Count)
	for i := range acc.Count {
		start := acc.ByteOffset + i*stride
		if start+elemSize > len(data) {
			return nil, nil, fmt.Errorf("accessor %d element %d exceeds buffer view", idx, i)
		}
		out[i] = data[start : start+elemSize]
	}
	return out, acc, nil
}

// readComponent decodes one float component, applying normalization for
// integer types.
func readComponent(b []byte, c gltf.ComponentType) float32 {
	switch c {
	case gltf.ComponentFloat:
		return math.Float32frombits(binary.LittleEndian.Uint32(b))
	case gltf.ComponentUbyte:
		return float32(b[0]) / 255
	case gltf.ComponentUshort:
		return float32(binary.LittleEndian.Uint16(b)) / 65535
	case gltf.ComponentByte:
		return max(float32(int8(b[0]))/127, -1)
	case gltf.ComponentShort:
		return max(float32(int16(binary.LittleEndian.Uint16(b)))/32767, -1)
	default:
		return 0
	}
}

func (g *gltfDecoder) readVec3(idx int) ([]mgl32.Vec3, error) {
	elems, acc, err := g.accessorElements(idx, 3)
	if err != nil {
		return nil, err
	}
	if acc.Type != gltf.AccessorVec3 {
		return nil, fmt.Errorf("expected VEC3, got %v", acc.Type)
	}
	size := componentSize(acc.ComponentType)
	out := make([]mgl32.Vec3, len(elems))
	for i, e := range elems {
		for j := range 3 {
			out[i][j] = readComponent(e[j*size:], acc.ComponentType)
		}
	}
	return out, nil
}

func (g *gltfDecoder) readVec2(idx int) ([]mgl32.Vec2, error) {
	elems, acc, err := g.accessorElements(idx, 2)
	if err != nil {
		return nil, err
	}
	if acc.Type != gltf.AccessorVec2 {
		return nil, fmt.Errorf("expected VEC2, got %v", acc.Type)
	}
	size := componentSize(acc.ComponentType)
	out := make([]mgl32.Vec2, len(elems))
	for i, e := range elems {
		for j := range 2 {
			out[i][j] = readComponent(e[j*size:], acc.ComponentType)
		}
	}
	return out, nil
}

func (g *gltfDecoder) readIndices(idx int) ([]uint32, error) {
	elems, acc, err := g.accessorElements(idx, 1)
	if err != nil {
		return nil, err
	}
	if acc.Type != gltf.AccessorScalar {
		return nil, fmt.Errorf("expected SCALAR indices, got %v", acc.Type)
	}
	out := make([]uint32, len(elems))
	for i, e := range elems {
		switch acc.ComponentType {
		case gltf.ComponentUbyte:
			out[i] = uint32(e[0])
		case gltf.ComponentUshort:
			out[i] = uint32(binary.LittleEndian.Uint16(e))
		case gltf.ComponentUint:
			out[i] = binary.LittleEndian.Uint32(e)
		default:
			return nil, fmt.Errorf("unsupported index component type %v", acc.ComponentType)
		}
	}
	return out, nil
}
