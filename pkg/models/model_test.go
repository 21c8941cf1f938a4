package models

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taigrr/meshview/pkg/gfx"
	"github.com/taigrr/meshview/pkg/gfx/soft"
	"github.com/taigrr/meshview/pkg/importer"
	"github.com/taigrr/meshview/pkg/render"
)

const sceneOBJ = `mtllib scene.mtl
v 0 0 0
v 1 0 0
v 1 1 0
v 0 1 0
vt 0 0
vt 1 0
vt 1 1
vt 0 1
o first
usemtl red
f 1/1 2/2 3/3 4/4
o second
usemtl red
f 1/1 2/2 3/3
usemtl blue
f 1/1 3/3 4/4
`

const sceneMTL = `newmtl red
Kd 1 0 0
map_Kd shared.png

newmtl blue
map_Kd shared.png
map_Ka amb.png
map_Ks textures/spec.png
map_Bump bump.png
`

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func writePNG(t *testing.T, path string, img image.Image) {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))
}

func solid(w, h int, c color.Color) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := range h {
		for x := range w {
			img.Set(x, y, c)
		}
	}
	return img
}

// sceneDir writes sceneOBJ, sceneMTL and the textures that exist: shared.png
// and spec.png. amb.png and bump.png are missing.
func sceneDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "scene.obj"), sceneOBJ)
	writeFile(t, filepath.Join(dir, "scene.mtl"), sceneMTL)
	writePNG(t, filepath.Join(dir, "shared.png"), solid(4, 4, color.NRGBA{200, 0, 0, 255}))
	writePNG(t, filepath.Join(dir, "spec.png"), solid(2, 2, color.NRGBA{9, 9, 9, 255}))
	return dir
}

func quietLogger(buf *bytes.Buffer) *log.Logger {
	return log.New(buf)
}

func TestLoadFlattensNodesInPreOrder(t *testing.T) {
	dir := sceneDir(t)
	dev := soft.New()
	m, err := Open(filepath.Join(dir, "scene.obj"), dev, soft.NewProgram(dev), WithLogger(quietLogger(&bytes.Buffer{})))
	require.NoError(t, err)

	meshes := m.Meshes()
	require.Len(t, meshes, 3)
	assert.Len(t, meshes[0].Indices, 6, "triangulated quad")
	assert.Len(t, meshes[1].Indices, 3)
	assert.Len(t, meshes[2].Indices, 3)
	assert.Equal(t, dir, m.Directory())

	for _, mesh := range meshes {
		assert.NotZero(t, mesh.VAO())
		assert.Zero(t, len(mesh.Indices)%3)
	}
}

func TestLoadSharesTexturesByName(t *testing.T) {
	dir := sceneDir(t)
	dev := soft.New()
	m, err := Open(filepath.Join(dir, "scene.obj"), dev, soft.NewProgram(dev), WithLogger(quietLogger(&bytes.Buffer{})))
	require.NoError(t, err)

	meshes := m.Meshes()
	require.Len(t, meshes, 3)
	shared := meshes[0].Textures[0]
	assert.Equal(t, "shared.png", shared.Path)
	assert.Equal(t, KindDiffuse, shared.Type)
	assert.Equal(t, shared.ID, meshes[1].Textures[0].ID)
	assert.Equal(t, shared.ID, meshes[2].Textures[0].ID)

	// shared.png and textures/spec.png decode; the two missing files do not
	assert.Equal(t, 2, dev.Stats().TextureUploads)
	assert.Equal(t, 4, m.Textures().Len())
}

func TestLoadTextureCategoryOrder(t *testing.T) {
	dir := sceneDir(t)
	dev := soft.New()
	m, err := Open(filepath.Join(dir, "scene.obj"), dev, soft.NewProgram(dev), WithLogger(quietLogger(&bytes.Buffer{})))
	require.NoError(t, err)

	blue := m.Meshes()[2]
	var kinds []TextureKind
	var paths []string
	for _, tex := range blue.Textures {
		kinds = append(kinds, tex.Type)
		paths = append(paths, tex.Path)
	}
	assert.Equal(t, []TextureKind{KindDiffuse, KindSpecular, KindNormal, KindHeight}, kinds)
	assert.Equal(t, []string{"shared.png", "textures/spec.png", "bump.png", "amb.png"}, paths)
}

func TestWithTextureCategories(t *testing.T) {
	dir := sceneDir(t)
	dev := soft.New()
	m, err := Open(filepath.Join(dir, "scene.obj"), dev, soft.NewProgram(dev),
		WithLogger(quietLogger(&bytes.Buffer{})),
		WithTextureCategories(
			TextureCategory{Slot: importer.TextureHeight, Kind: KindHeight},
			TextureCategory{Slot: importer.TextureAmbient, Kind: "texture_ambient"},
		))
	require.NoError(t, err)

	blue := m.Meshes()[2]
	require.Len(t, blue.Textures, 2)
	assert.Equal(t, KindHeight, blue.Textures[0].Type)
	assert.Equal(t, "bump.png", blue.Textures[0].Path)
	assert.Equal(t, TextureKind("texture_ambient"), blue.Textures[1].Type)
	assert.Empty(t, m.Meshes()[0].Textures)
}

func TestMissingTextureKeepsEmptyHandle(t *testing.T) {
	dir := sceneDir(t)
	var logs bytes.Buffer
	dev := soft.New()
	m, err := Open(filepath.Join(dir, "scene.obj"), dev, soft.NewProgram(dev), WithLogger(quietLogger(&logs)))
	require.NoError(t, err)

	bump, ok := m.Textures().Get("bump.png")
	require.True(t, ok)
	assert.NotZero(t, bump.ID)
	tex, ok := dev.Texture(bump.ID)
	assert.True(t, ok, "handle names a real texture")
	assert.Nil(t, tex, "texture has no pixels")

	assert.Contains(t, logs.String(), "unable to load texture")
	assert.Contains(t, logs.String(), "bump.png")
	assert.Contains(t, logs.String(), "loaded texture")
}

func TestLoadWithoutUVsUsesZeroTexCoords(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "plain.obj")
	writeFile(t, path, "v 0 0 0\nv 1 0 0\nv 0 1 0\nf 1 2 3\n")

	dev := soft.New()
	m, err := Open(path, dev, soft.NewProgram(dev), WithLogger(quietLogger(&bytes.Buffer{})))
	require.NoError(t, err)
	require.Len(t, m.Meshes(), 1)
	mesh := m.Meshes()[0]
	require.Len(t, mesh.Vertices, 3)
	for _, v := range mesh.Vertices {
		assert.Equal(t, mgl32.Vec2{}, v.TexCoords)
		// generated flat normal of a CCW face in the xy plane
		assert.InDelta(t, 1, v.Normal.Z(), 1e-6)
	}
	assert.Empty(t, mesh.Textures, "DefaultMaterial has no textures")
}

func TestLoadTriangulatesPolygons(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "poly.obj")
	writeFile(t, path, `v 0 0 0
v 1 0 0
v 2 1 0
v 1 2 0
v 0 1 0
f 1 2 3 4 5
f 1 2 3
`)
	dev := soft.New()
	m, err := Open(path, dev, soft.NewProgram(dev), WithLogger(quietLogger(&bytes.Buffer{})))
	require.NoError(t, err)
	// 3 triangles from the pentagon plus one
	assert.Len(t, m.Meshes()[0].Indices, 3*4)
	assert.Equal(t, 4, m.Stats().Triangles)
}

func TestLoadMissingFile(t *testing.T) {
	var logs bytes.Buffer
	dev := soft.New()
	m := New(dev, soft.NewProgram(dev), WithLogger(quietLogger(&logs)))

	err := m.Load(filepath.Join(t.TempDir(), "nope.obj"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrImport)
	assert.Empty(t, m.Meshes())
	assert.Contains(t, logs.String(), "import failed")
	assert.Zero(t, dev.Stats().BufferUploads)

	_, err = Open("model.xyz", dev, soft.NewProgram(dev), WithLogger(quietLogger(&logs)))
	assert.ErrorIs(t, err, importer.ErrUnsupportedFormat)
}

func TestLoadAccumulates(t *testing.T) {
	dir := sceneDir(t)
	dev := soft.New()
	m := New(dev, soft.NewProgram(dev), WithLogger(quietLogger(&bytes.Buffer{})))
	path := filepath.Join(dir, "scene.obj")
	require.NoError(t, m.Load(path))
	require.NoError(t, m.Load(path))

	assert.Len(t, m.Meshes(), 6)
	assert.Equal(t, 2, dev.Stats().TextureUploads, "second load hits the cache")
}

func TestSharedTextureCache(t *testing.T) {
	dir := sceneDir(t)
	dev := soft.New()
	cache := NewTextureCache()
	logger := quietLogger(&bytes.Buffer{})
	path := filepath.Join(dir, "scene.obj")

	a, err := Open(path, dev, soft.NewProgram(dev), WithTextureCache(cache), WithLogger(logger))
	require.NoError(t, err)
	b, err := Open(path, dev, soft.NewProgram(dev), WithTextureCache(cache), WithLogger(logger))
	require.NoError(t, err)

	assert.Same(t, a.Textures(), b.Textures())
	assert.Equal(t, a.Meshes()[0].Textures[0].ID, b.Meshes()[0].Textures[0].ID)
}

func TestModelBoundsAndStats(t *testing.T) {
	dir := sceneDir(t)
	dev := soft.New()
	m, err := Open(filepath.Join(dir, "scene.obj"), dev, soft.NewProgram(dev), WithLogger(quietLogger(&bytes.Buffer{})))
	require.NoError(t, err)

	b := m.Bounds()
	assert.Equal(t, mgl32.Vec3{0, 0, 0}, b.Min)
	assert.Equal(t, mgl32.Vec3{1, 1, 0}, b.Max)

	st := m.Stats()
	assert.Equal(t, 3, st.Meshes)
	assert.Equal(t, 12, st.Indices)
	assert.Equal(t, 4, st.Triangles)
	assert.Equal(t, 4, st.Textures)

	assert.True(t, New(dev, nil).Bounds().IsEmpty())
}

func TestModelDrawIssuesOneCallPerMesh(t *testing.T) {
	dir := sceneDir(t)
	dev := soft.New(soft.WithRecording())
	m, err := Open(filepath.Join(dir, "scene.obj"), dev, soft.NewProgram(dev), WithLogger(quietLogger(&bytes.Buffer{})))
	require.NoError(t, err)

	m.Draw()
	require.Len(t, dev.Draws, 3)
	for i, mesh := range m.Meshes() {
		assert.Equal(t, len(mesh.Indices), dev.Draws[i].Count)
		assert.Equal(t, mesh.VAO(), dev.Draws[i].VAO)
	}
	require.NoError(t, dev.Err())
}

func TestModelRendersThroughSoftDevice(t *testing.T) {
	dir := sceneDir(t)
	fb := render.NewFramebuffer(40, 40)
	fb.Clear(render.ColorBlack)
	dev := soft.New(soft.WithFramebuffer(fb))
	prog := soft.NewProgram(dev)
	m, err := Open(filepath.Join(dir, "scene.obj"), dev, prog, WithLogger(quietLogger(&bytes.Buffer{})))
	require.NoError(t, err)

	// map the unit quad onto most of the viewport
	prog.SetMat4(gfx.UniformModel, mgl32.Translate3D(-0.5, -0.5, 0))
	m.Draw()
	require.NoError(t, dev.Err())

	assert.NotZero(t, dev.Rasterizer().Stats.Fragments)
	got := fb.GetPixel(22, 18)
	assert.Equal(t, uint8(200), got.R, "red texel lit head-on")
	assert.Zero(t, got.G)
}

// Scenes built in memory are served through a decoder registered for the
// ".mem" extension.
var memScenes sync.Map

func init() {
	importer.Register(".mem", importer.DecoderFunc(func(path string) (*importer.Scene, error) {
		s, ok := memScenes.Load(path)
		if !ok {
			return nil, os.ErrNotExist
		}
		return s.(*importer.Scene), nil
	}))
}

func memScene(t *testing.T, s *importer.Scene) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), t.Name()+".mem")
	memScenes.Store(path, s)
	t.Cleanup(func() { memScenes.Delete(path) })
	return path
}

func triangle(name string, material int) *importer.Mesh {
	return &importer.Mesh{
		Name:          name,
		Vertices:      []mgl32.Vec3{{0, 0, 0}, {1, 0, 0}, {0, 1, 0}},
		Normals:       []mgl32.Vec3{{0, 0, 1}, {0, 0, 1}, {0, 0, 1}},
		Faces:         []importer.Face{{Indices: []uint32{0, 1, 2}}},
		MaterialIndex: material,
	}
}

func TestProcessNodeVisitsParentBeforeChildren(t *testing.T) {
	root := &importer.Node{Name: "root", Meshes: []int{0}}
	a := &importer.Node{Name: "a", Meshes: []int{1, 2}}
	a.AddChild(&importer.Node{Name: "a1", Meshes: []int{3}})
	root.AddChild(a)
	root.AddChild(&importer.Node{Name: "b", Meshes: []int{4, 99}})

	var meshes []*importer.Mesh
	for _, n := range []string{"m0", "m1", "m2", "m3", "m4"} {
		meshes = append(meshes, triangle(n, -1))
	}
	meshes[3].Vertices[0] = mgl32.Vec3{-3, 0, 0}
	meshes[4].Vertices[0] = mgl32.Vec3{-4, 0, 0}
	path := memScene(t, &importer.Scene{Root: root, Meshes: meshes})

	var logs bytes.Buffer
	dev := soft.New()
	m, err := Open(path, dev, soft.NewProgram(dev), WithLogger(quietLogger(&logs)))
	require.NoError(t, err)
	require.Len(t, m.Meshes(), 5)
	assert.Equal(t, float32(-3), m.Meshes()[3].Vertices[0].Position.X())
	assert.Equal(t, float32(-4), m.Meshes()[4].Vertices[0].Position.X())
	assert.Contains(t, logs.String(), "node references missing mesh")
}

func TestProcessNodeDepthBound(t *testing.T) {
	root := &importer.Node{Name: "n0", Meshes: []int{0}}
	node := root
	for i := range MaxNodeDepth + 10 {
		child := &importer.Node{Name: "n" + strconv.Itoa(i+1), Meshes: []int{0}}
		node.AddChild(child)
		node = child
	}
	path := memScene(t, &importer.Scene{Root: root, Meshes: []*importer.Mesh{triangle("t", -1)}})

	var logs bytes.Buffer
	dev := soft.New()
	m, err := Open(path, dev, soft.NewProgram(dev), WithLogger(quietLogger(&logs)))
	require.NoError(t, err)
	assert.Len(t, m.Meshes(), MaxNodeDepth+1)
	assert.Contains(t, logs.String(), "node tree too deep")
}

func TestLoadIncompleteScene(t *testing.T) {
	path := memScene(t, &importer.Scene{Root: &importer.Node{Name: "empty"}})
	dev := soft.New()
	m := New(dev, soft.NewProgram(dev), WithLogger(quietLogger(&bytes.Buffer{})))
	err := m.Load(path)
	assert.ErrorIs(t, err, ErrImport)
	assert.Empty(t, m.Meshes())
}

// embeddedScene registers a one-triangle scene whose diffuse texture is
// an embedded 2x2 PNG of color c.
func embeddedScene(t *testing.T, name string, c color.NRGBA) string {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, solid(2, 2, c)))

	mat := importer.NewMaterial(name)
	mat.AddTexture(importer.TextureDiffuse, importer.EmbeddedName(0))
	path := filepath.Join(t.TempDir(), name+".mem")
	memScenes.Store(path, &importer.Scene{
		Root:      &importer.Node{Name: "root", Meshes: []int{0}},
		Meshes:    []*importer.Mesh{triangle(name, 0)},
		Materials: []*importer.Material{mat},
		Textures:  []*importer.EmbeddedTexture{{MimeType: "image/png", Data: buf.Bytes()}},
	})
	t.Cleanup(func() { memScenes.Delete(path) })
	return path
}

func diffusePixel(t *testing.T, dev *soft.Device, mesh *Mesh) render.Color {
	t.Helper()
	require.Len(t, mesh.Textures, 1)
	tex, ok := dev.Texture(mesh.Textures[0].ID)
	require.True(t, ok)
	require.NotNil(t, tex)
	return tex.GetPixel(1, 1)
}

func TestEmbeddedTexture(t *testing.T) {
	path := embeddedScene(t, "blue", color.NRGBA{0, 0, 255, 255})

	dev := soft.New()
	m, err := Open(path, dev, soft.NewProgram(dev), WithLogger(quietLogger(&bytes.Buffer{})))
	require.NoError(t, err)
	mesh := m.Meshes()[0]
	assert.Equal(t, "*0", mesh.Textures[0].Path)
	assert.Equal(t, render.RGB(0, 0, 255), diffusePixel(t, dev, mesh))
}

func TestEmbeddedTexturesAreScopedToTheirScene(t *testing.T) {
	red := embeddedScene(t, "red", color.NRGBA{255, 0, 0, 255})
	blue := embeddedScene(t, "blue", color.NRGBA{0, 0, 255, 255})
	logger := quietLogger(&bytes.Buffer{})

	t.Run("shared cache", func(t *testing.T) {
		dev := soft.New()
		cache := NewTextureCache()
		a, err := Open(red, dev, soft.NewProgram(dev), WithTextureCache(cache), WithLogger(logger))
		require.NoError(t, err)
		b, err := Open(blue, dev, soft.NewProgram(dev), WithTextureCache(cache), WithLogger(logger))
		require.NoError(t, err)

		assert.Equal(t, render.RGB(255, 0, 0), diffusePixel(t, dev, a.Meshes()[0]))
		assert.Equal(t, render.RGB(0, 0, 255), diffusePixel(t, dev, b.Meshes()[0]))
		assert.NotEqual(t, a.Meshes()[0].Textures[0].ID, b.Meshes()[0].Textures[0].ID)
		assert.Equal(t, 2, cache.Len())
	})

	t.Run("repeated load", func(t *testing.T) {
		dev := soft.New()
		m := New(dev, soft.NewProgram(dev), WithLogger(logger))
		require.NoError(t, m.Load(red))
		require.NoError(t, m.Load(blue))
		require.Len(t, m.Meshes(), 2)

		assert.Equal(t, render.RGB(255, 0, 0), diffusePixel(t, dev, m.Meshes()[0]))
		assert.Equal(t, render.RGB(0, 0, 255), diffusePixel(t, dev, m.Meshes()[1]))
		assert.Equal(t, "*0", m.Meshes()[1].Textures[0].Path)
	})
}

func TestModelReleaseFreesDeviceObjects(t *testing.T) {
	dir := sceneDir(t)
	dev := soft.New()
	m, err := Open(filepath.Join(dir, "scene.obj"), dev, soft.NewProgram(dev), WithLogger(quietLogger(&bytes.Buffer{})))
	require.NoError(t, err)

	textures, buffers, vaos := dev.Live()
	assert.Equal(t, 4, textures)
	assert.Equal(t, 6, buffers)
	assert.Equal(t, 3, vaos)

	m.Release()
	textures, buffers, vaos = dev.Live()
	assert.Zero(t, textures)
	assert.Zero(t, buffers)
	assert.Zero(t, vaos)
	assert.Empty(t, m.Meshes())
	assert.Zero(t, m.Textures().Len())
}
