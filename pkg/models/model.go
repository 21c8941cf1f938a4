// Package models turns imported scenes into drawable meshes.
//
// A Model imports a scene file, flattens its node tree into Meshes with
// uploaded vertex data and bound textures, and draws every mesh with one
// shared shader. Scene parsing lives in package importer, and all device
// work goes through gfx.Device.
package models

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/charmbracelet/log"

	"github.com/taigrr/meshview/pkg/gfx"
	"github.com/taigrr/meshview/pkg/importer"
	"github.com/taigrr/meshview/pkg/render"
)

// MaxNodeDepth bounds the node tree walk. Deeper subtrees are skipped.
const MaxNodeDepth = 1024

// DefaultImportFlags are the post-processing steps Load asks for.
const DefaultImportFlags = importer.Triangulate | importer.GenNormals

// ErrImport wraps every error returned by Load.
var ErrImport = errors.New("import model")

// TextureCategory maps a material texture slot to the sampler kind it is
// bound under.
type TextureCategory struct {
	Slot importer.TextureType
	Kind TextureKind
}

// DefaultTextureCategories lists the material slots a Model loads, in
// binding order. Height maps are bound as texture_normal and ambient maps
// as texture_height.
var DefaultTextureCategories = []TextureCategory{
	{Slot: importer.TextureDiffuse, Kind: KindDiffuse},
	{Slot: importer.TextureSpecular, Kind: KindSpecular},
	{Slot: importer.TextureHeight, Kind: KindNormal},
	{Slot: importer.TextureAmbient, Kind: KindHeight},
}

// Model is a list of meshes loaded from one or more scene files.
type Model struct {
	dev    gfx.Device
	shader gfx.Shader
	logger *log.Logger

	importer   *importer.Importer
	flags      importer.PostProcess
	categories []TextureCategory
	textures   *TextureCache

	meshes    []*Mesh
	path      string
	directory string
}

// Option configures a Model.
type Option func(*Model)

// WithLogger sets the logger for import and texture diagnostics.
func WithLogger(l *log.Logger) Option {
	return func(m *Model) { m.logger = l }
}

// WithTextureCache shares a texture cache between models.
func WithTextureCache(c *TextureCache) Option {
	return func(m *Model) { m.textures = c }
}

// WithTextureCategories replaces DefaultTextureCategories.
func WithTextureCategories(cats ...TextureCategory) Option {
	return func(m *Model) { m.categories = cats }
}

// WithImportFlags replaces DefaultImportFlags.
func WithImportFlags(f importer.PostProcess) Option {
	return func(m *Model) { m.flags = f }
}

// New returns an empty model drawing through dev with shader.
func New(dev gfx.Device, shader gfx.Shader, opts ...Option) *Model {
	m := &Model{
		dev:        dev,
		shader:     shader,
		logger:     log.Default(),
		flags:      DefaultImportFlags,
		categories: DefaultTextureCategories,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.textures == nil {
		m.textures = NewTextureCache()
	}
	m.importer = importer.New(m.logger)
	return m
}

// Open creates a model and loads path into it.
func Open(path string, dev gfx.Device, shader gfx.Shader, opts ...Option) (*Model, error) {
	m := New(dev, shader, opts...)
	if err := m.Load(path); err != nil {
		return m, err
	}
	return m, nil
}

// Load imports the scene at path and appends its meshes. Calling Load
// again adds the new scene's meshes after the existing ones. On failure
// the mesh list is left unchanged.
func (m *Model) Load(path string) error {
	scene, err := m.importer.ReadFile(path, m.flags)
	if err == nil && (scene.Incomplete() || scene.Root == nil) {
		err = errors.New("scene is incomplete")
	}
	if err != nil {
		m.logger.Error("import failed", "path", path, "err", err)
		return fmt.Errorf("%w %s: %w", ErrImport, path, err)
	}

	m.path = path
	m.directory = filepath.Dir(path)
	before := len(m.meshes)
	m.processNode(scene.Root, scene, 0)
	m.logger.Info("loaded model",
		"path", path,
		"meshes", len(m.meshes)-before,
		"textures", m.textures.Len(),
	)
	return nil
}

// processNode appends the meshes of node, then recurses into its
// children.
func (m *Model) processNode(node *importer.Node, scene *importer.Scene, depth int) {
	if depth > MaxNodeDepth {
		m.logger.Warn("node tree too deep, skipping subtree", "node", node.Name, "depth", depth)
		return
	}
	for _, idx := range node.Meshes {
		if idx < 0 || idx >= len(scene.Meshes) {
			m.logger.Warn("node references missing mesh", "node", node.Name, "mesh", idx)
			continue
		}
		m.meshes = append(m.meshes, m.processMesh(scene.Meshes[idx], scene))
	}
	for _, child := range node.Children {
		m.processNode(child, scene, depth+1)
	}
}

func (m *Model) processMesh(src *importer.Mesh, scene *importer.Scene) *Mesh {
	hasNormals := src.HasNormals()
	hasUVs := src.HasTextureCoords(0) && len(src.TextureCoords[0]) == len(src.Vertices)

	vertices := make([]Vertex, len(src.Vertices))
	for i, p := range src.Vertices {
		v := Vertex{Position: p}
		if hasNormals {
			v.Normal = src.Normals[i]
		}
		if hasUVs {
			v.TexCoords = src.TextureCoords[0][i]
		}
		vertices[i] = v
	}

	var indices []uint32
	for _, f := range src.Faces {
		indices = append(indices, f.Indices...)
	}

	var textures []Texture
	if src.MaterialIndex >= 0 && src.MaterialIndex < len(scene.Materials) {
		mat := scene.Materials[src.MaterialIndex]
		for _, cat := range m.categories {
			textures = append(textures, m.loadMaterialTextures(mat, cat.Slot, cat.Kind, scene)...)
		}
	}

	return NewMesh(m.dev, vertices, indices, textures)
}

// loadMaterialTextures returns the textures in slot of mat, loading each
// distinct TextureKey once per cache.
func (m *Model) loadMaterialTextures(mat *importer.Material, slot importer.TextureType, kind TextureKind, scene *importer.Scene) []Texture {
	var out []Texture
	for i := range mat.TextureCount(slot) {
		name, _ := mat.Texture(slot, i)
		key := TextureKey(m.path, name)
		if tex, ok := m.textures.Get(key); ok {
			out = append(out, tex)
			continue
		}
		tex := Texture{
			ID:   loadTexture(m.dev, name, m.directory, scene, m.logger),
			Type: kind,
			Path: name,
		}
		m.textures.Put(key, tex)
		out = append(out, tex)
	}
	return out
}

// Draw draws every mesh in load order.
func (m *Model) Draw() {
	for _, mesh := range m.meshes {
		mesh.Draw(m.dev, m.shader)
	}
}

// Meshes returns the loaded meshes in draw order.
func (m *Model) Meshes() []*Mesh {
	return m.meshes
}

// Directory returns the directory of the last loaded scene.
func (m *Model) Directory() string {
	return m.directory
}

// Textures returns the texture cache.
func (m *Model) Textures() *TextureCache {
	return m.textures
}

// Bounds returns the box around every mesh vertex.
func (m *Model) Bounds() render.AABB {
	b := render.EmptyAABB()
	for _, mesh := range m.meshes {
		b = b.Union(mesh.Bounds())
	}
	return b
}

// Release frees the meshes and every texture in the cache, then empties
// the model. It does nothing when the device cannot delete objects.
// Release a model only when its cache is not shared.
func (m *Model) Release() {
	del, ok := m.dev.(gfx.Deleter)
	if !ok {
		return
	}
	for _, mesh := range m.meshes {
		mesh.Release(del)
	}
	for _, tex := range m.textures.All() {
		del.DeleteTexture(tex.ID)
	}
	m.meshes = nil
	m.textures = NewTextureCache()
}

// Stats summarizes what a model holds.
type Stats struct {
	Meshes    int
	Vertices  int
	Indices   int
	Triangles int
	Textures  int
}

// Stats counts meshes, vertices, indices and cached textures.
func (m *Model) Stats() Stats {
	s := Stats{Meshes: len(m.meshes), Textures: m.textures.Len()}
	for _, mesh := range m.meshes {
		s.Vertices += len(mesh.Vertices)
		s.Indices += len(mesh.Indices)
		s.Triangles += mesh.TriangleCount()
	}
	return s
}
