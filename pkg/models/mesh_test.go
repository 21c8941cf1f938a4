package models

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taigrr/meshview/pkg/gfx"
	"github.com/taigrr/meshview/pkg/gfx/soft"
)

func quad() ([]Vertex, []uint32) {
	v := []Vertex{
		{Position: mgl32.Vec3{0, 0, 0}, Normal: mgl32.Vec3{0, 0, 1}, TexCoords: mgl32.Vec2{0, 0}},
		{Position: mgl32.Vec3{1, 0, 0}, Normal: mgl32.Vec3{0, 0, 1}, TexCoords: mgl32.Vec2{1, 0}},
		{Position: mgl32.Vec3{1, 1, 0}, Normal: mgl32.Vec3{0, 0, 1}, TexCoords: mgl32.Vec2{1, 1}},
		{Position: mgl32.Vec3{0, 1, 0}, Normal: mgl32.Vec3{0, 0, 1}, TexCoords: mgl32.Vec2{0, 1}},
	}
	return v, []uint32{0, 1, 2, 0, 2, 3}
}

func TestVertexLayout(t *testing.T) {
	assert.Equal(t, 32, VertexSize)
	assert.Equal(t, 12, normalOffset)
	assert.Equal(t, 24, texCoordsOffset)

	b := vertexBytes([]Vertex{{Position: mgl32.Vec3{1, 2, 3}, TexCoords: mgl32.Vec2{0.5, 0.25}}})
	require.Len(t, b, 32)
	assert.Equal(t, float32(2), math.Float32frombits(binary.LittleEndian.Uint32(b[4:])))
	assert.Equal(t, float32(0.25), math.Float32frombits(binary.LittleEndian.Uint32(b[28:])))
	assert.Nil(t, vertexBytes(nil))
}

func TestNewMeshUploads(t *testing.T) {
	dev := soft.New()
	v, idx := quad()
	m := NewMesh(dev, v, idx, nil)
	require.NoError(t, dev.Err())

	assert.Equal(t, gfx.Handle(0), dev.BoundVertexArray(), "vertex array is unbound after setup")
	assert.Equal(t, 2, dev.Stats().BufferUploads)
	assert.Len(t, dev.Buffer(m.vbo), 4*VertexSize)
	assert.Len(t, dev.Buffer(m.ebo), 6*4)

	want := map[uint32]gfx.VertexAttrib{
		0: {Location: 0, Size: 3, Type: gfx.Float, Stride: 32, Offset: 0},
		1: {Location: 1, Size: 3, Type: gfx.Float, Stride: 32, Offset: 12},
		2: {Location: 2, Size: 2, Type: gfx.Float, Stride: 32, Offset: 24},
	}
	for loc, a := range want {
		got, ok := dev.Attrib(m.VAO(), loc)
		require.True(t, ok, "attrib %d", loc)
		assert.Equal(t, a, got)
	}
}

func TestMeshDrawBindsTexturesByName(t *testing.T) {
	dev := soft.New(soft.WithRecording())
	prog := soft.NewProgram(dev)
	h := make([]gfx.Handle, 6)
	for i := range h {
		h[i] = dev.GenTexture()
	}
	v, idx := quad()
	m := NewMesh(dev, v, idx, []Texture{
		{ID: h[0], Type: KindDiffuse},
		{ID: h[1], Type: KindSpecular},
		{ID: h[2], Type: KindDiffuse},
		{ID: h[3], Type: KindNormal},
		{ID: h[4], Type: KindHeight},
		{ID: h[5], Type: "texture_custom"},
	})

	m.Draw(dev, prog)
	require.NoError(t, dev.Err())

	require.Len(t, dev.Draws, 1)
	call := dev.Draws[0]
	assert.Equal(t, gfx.Triangles, call.Mode)
	assert.Equal(t, len(idx), call.Count)
	assert.Equal(t, gfx.UnsignedInt, call.Type)
	assert.Equal(t, 0, call.Offset)
	assert.Equal(t, m.VAO(), call.VAO)
	assert.Equal(t, map[string]int32{
		"texture_diffuse1":  0,
		"texture_specular1": 1,
		"texture_diffuse2":  2,
		"texture_normal1":   3,
		"texture_height1":   4,
		"texture_custom":    5,
	}, call.Samplers)
	for i := range h {
		assert.Equal(t, h[i], call.Textures[i], "unit %d", i)
	}

	assert.Equal(t, 0, dev.ActiveUnit())
	assert.Equal(t, gfx.Handle(0), dev.BoundVertexArray())
}

func TestMeshDrawCountersResetPerDraw(t *testing.T) {
	dev := soft.New(soft.WithRecording())
	prog := soft.NewProgram(dev)
	v, idx := quad()
	m := NewMesh(dev, v, idx, []Texture{{ID: dev.GenTexture(), Type: KindDiffuse}})

	m.Draw(dev, prog)
	m.Draw(dev, prog)
	require.Len(t, dev.Draws, 2)
	assert.Equal(t, map[string]int32{"texture_diffuse1": 0}, dev.Draws[1].Samplers)
	assert.Equal(t, 2*len(idx), dev.Stats().Indices)
}

func TestMeshBounds(t *testing.T) {
	v, idx := quad()
	m := NewMesh(soft.New(), v, idx, nil)
	b := m.Bounds()
	assert.Equal(t, mgl32.Vec3{0, 0, 0}, b.Min)
	assert.Equal(t, mgl32.Vec3{1, 1, 0}, b.Max)
	assert.Equal(t, 2, m.TriangleCount())
}
