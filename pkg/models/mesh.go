package models

import (
	"strconv"

	"github.com/taigrr/meshview/pkg/gfx"
	"github.com/taigrr/meshview/pkg/render"
)

// Mesh is one drawable part of a model: vertex and index data uploaded
// once, plus the textures bound when it is drawn.
type Mesh struct {
	Vertices []Vertex
	Indices  []uint32
	Textures []Texture

	vao gfx.Handle
	vbo gfx.Handle
	ebo gfx.Handle
}

// NewMesh uploads vertices and indices to dev and returns the mesh.
func NewMesh(dev gfx.Device, vertices []Vertex, indices []uint32, textures []Texture) *Mesh {
	m := &Mesh{
		Vertices: vertices,
		Indices:  indices,
		Textures: textures,
	}
	m.setup(dev)
	return m
}

func (m *Mesh) setup(dev gfx.Device) {
	m.vao = dev.GenVertexArray()
	m.vbo = dev.GenBuffer()
	m.ebo = dev.GenBuffer()

	dev.BindVertexArray(m.vao)

	dev.BindBuffer(gfx.ArrayBuffer, m.vbo)
	dev.BufferData(gfx.ArrayBuffer, vertexBytes(m.Vertices), gfx.StaticDraw)

	dev.BindBuffer(gfx.ElementArrayBuffer, m.ebo)
	dev.BufferData(gfx.ElementArrayBuffer, indexBytes(m.Indices), gfx.StaticDraw)

	dev.VertexAttribPointer(gfx.VertexAttrib{Location: 0, Size: 3, Type: gfx.Float, Stride: VertexSize, Offset: 0})
	dev.VertexAttribPointer(gfx.VertexAttrib{Location: 1, Size: 3, Type: gfx.Float, Stride: VertexSize, Offset: normalOffset})
	dev.VertexAttribPointer(gfx.VertexAttrib{Location: 2, Size: 2, Type: gfx.Float, Stride: VertexSize, Offset: texCoordsOffset})

	dev.BindVertexArray(0)
}

// Draw binds the mesh textures to units 0..n-1 and issues one indexed
// draw. Texture i is exposed to the shader as its kind followed by a
// per-kind counter, e.g. texture_diffuse1, texture_diffuse2,
// texture_specular1. Kinds other than the four built-in ones are used
// as-is.
func (m *Mesh) Draw(dev gfx.Device, shader gfx.Shader) {
	shader.Use()

	counters := make(map[TextureKind]int, 4)
	for i, tex := range m.Textures {
		dev.ActiveTexture(i)
		name := string(tex.Type)
		if tex.Type.Numbered() {
			counters[tex.Type]++
			name += strconv.Itoa(counters[tex.Type])
		}
		dev.BindTexture(tex.ID)
		shader.SetInt(name, int32(i))
	}
	dev.ActiveTexture(0)

	dev.BindVertexArray(m.vao)
	dev.DrawElements(gfx.Triangles, len(m.Indices), gfx.UnsignedInt, 0)
	dev.BindVertexArray(0)
}

// VAO returns the vertex array holding the mesh bindings.
func (m *Mesh) VAO() gfx.Handle {
	return m.vao
}

// Bounds returns the axis-aligned box around the mesh vertices.
func (m *Mesh) Bounds() render.AABB {
	b := render.EmptyAABB()
	for _, v := range m.Vertices {
		b = b.Extend(v.Position)
	}
	return b
}

// TriangleCount returns the number of indexed triangles.
func (m *Mesh) TriangleCount() int {
	return len(m.Indices) / 3
}

// Release frees the mesh buffers and vertex array. Textures are owned by
// the texture cache.
func (m *Mesh) Release(dev gfx.Deleter) {
	dev.DeleteVertexArray(m.vao)
	dev.DeleteBuffer(m.vbo)
	dev.DeleteBuffer(m.ebo)
	m.vao, m.vbo, m.ebo = 0, 0, 0
}
