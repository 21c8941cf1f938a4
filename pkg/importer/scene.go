package importer

import (
	"github.com/go-gl/mathgl/mgl32"
)

// SceneFlags describe the state of an imported scene.
type SceneFlags uint32

const (
	// FlagIncomplete marks a scene that carries no drawable geometry.
	FlagIncomplete SceneFlags = 1 << iota
)

// Scene is the format-neutral result of an import.
type Scene struct {
	Flags     SceneFlags
	Root      *Node
	Meshes    []*Mesh
	Materials []*Material

	// Textures holds image data stored inside the scene file. Materials
	// refer to them by the name "*<index>".
	Textures []*EmbeddedTexture

	// Warnings collects non-fatal problems found while decoding.
	Warnings []string
}

// Incomplete reports whether FlagIncomplete is set.
func (s *Scene) Incomplete() bool {
	return s.Flags&FlagIncomplete != 0
}

// EmbeddedTexture returns the embedded texture referenced by a material
// texture name such as "*0".
func (s *Scene) EmbeddedTexture(name string) (*EmbeddedTexture, bool) {
	idx, ok := embeddedIndex(name)
	if !ok || idx >= len(s.Textures) {
		return nil, false
	}
	return s.Textures[idx], true
}

// Node groups mesh references and a local transform.
type Node struct {
	Name      string
	Transform mgl32.Mat4
	Meshes    []int // indices into Scene.Meshes
	Children  []*Node
	Parent    *Node
}

// AddChild appends c to n and sets its parent.
func (n *Node) AddChild(c *Node) {
	c.Parent = n
	n.Children = append(n.Children, c)
}

// MaxTextureCoords is the number of UV channels a Mesh can carry.
const MaxTextureCoords = 4

// Mesh is one drawable sub-mesh with a single material.
type Mesh struct {
	Name     string
	Vertices []mgl32.Vec3
	Normals  []mgl32.Vec3 // nil when the source has none

	// TextureCoords[ch] is nil when UV channel ch is absent.
	TextureCoords [MaxTextureCoords][]mgl32.Vec2

	Faces         []Face
	MaterialIndex int // -1 when no material is assigned
}

// HasNormals reports whether every vertex has a normal.
func (m *Mesh) HasNormals() bool {
	return len(m.Normals) > 0 && len(m.Normals) == len(m.Vertices)
}

// HasTextureCoords reports whether UV channel ch is present.
func (m *Mesh) HasTextureCoords(ch int) bool {
	if ch < 0 || ch >= MaxTextureCoords {
		return false
	}
	return m.TextureCoords[ch] != nil
}

// Face is an index list into Mesh.Vertices.
type Face struct {
	Indices []uint32
}

// TextureType is the semantic slot of a material texture.
type TextureType int

const (
	TextureNone TextureType = iota
	TextureDiffuse
	TextureSpecular
	TextureAmbient
	TextureEmissive
	TextureHeight
	TextureNormals
	TextureShininess
	TextureOpacity
	TextureDisplacement
	TextureLightmap
	TextureReflection
	TextureMetalness
	TextureUnknown
)

var textureTypeNames = map[TextureType]string{
	TextureNone:         "none",
	TextureDiffuse:      "diffuse",
	TextureSpecular:     "specular",
	TextureAmbient:      "ambient",
	TextureEmissive:     "emissive",
	TextureHeight:       "height",
	TextureNormals:      "normals",
	TextureShininess:    "shininess",
	TextureOpacity:      "opacity",
	TextureDisplacement: "displacement",
	TextureLightmap:     "lightmap",
	TextureReflection:   "reflection",
	TextureMetalness:    "metalness",
	TextureUnknown:      "unknown",
}

func (t TextureType) String() string {
	if s, ok := textureTypeNames[t]; ok {
		return s
	}
	return "unknown"
}

// ParseTextureType is the inverse of TextureType.String.
func ParseTextureType(s string) (TextureType, bool) {
	for t, name := range textureTypeNames {
		if name == s {
			return t, true
		}
	}
	return TextureNone, false
}

// Material is a named bundle of texture references and shading values.
type Material struct {
	Name      string
	Diffuse   mgl32.Vec4
	Ambient   mgl32.Vec4
	Specular  mgl32.Vec4
	Emissive  mgl32.Vec4
	Shininess float32
	Opacity   float32

	textures map[TextureType][]string
}

// NewMaterial returns a material with opaque white diffuse color.
func NewMaterial(name string) *Material {
	return &Material{
		Name:    name,
		Diffuse: mgl32.Vec4{1, 1, 1, 1},
		Opacity: 1,
	}
}

// AddTexture appends a texture reference to slot t.
func (m *Material) AddTexture(t TextureType, name string) {
	if m.textures == nil {
		m.textures = make(map[TextureType][]string)
	}
	m.textures[t] = append(m.textures[t], name)
}

// TextureCount returns the number of textures in slot t.
func (m *Material) TextureCount(t TextureType) int {
	return len(m.textures[t])
}

// Texture returns the i-th texture reference of slot t.
func (m *Material) Texture(t TextureType, i int) (string, bool) {
	list := m.textures[t]
	if i < 0 || i >= len(list) {
		return "", false
	}
	return list[i], true
}

// EmbeddedTexture is compressed image data (PNG, JPEG, ...) stored in a
// scene file.
type EmbeddedTexture struct {
	Name     string
	MimeType string
	Data     []byte
}
