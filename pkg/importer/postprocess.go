package importer

import (
	"github.com/go-gl/mathgl/mgl32"
)

// ApplyPostProcess runs the steps selected by flags on every mesh of s.
func ApplyPostProcess(s *Scene, flags PostProcess) {
	for _, m := range s.Meshes {
		if flags&Triangulate != 0 {
			triangulate(m)
		}
		if !m.HasNormals() {
			switch {
			case flags&GenNormals != 0:
				genFlatNormals(m)
			case flags&GenSmoothNormals != 0:
				genSmoothNormals(m)
			}
		}
		if flags&FlipUVs != 0 {
			flipUVs(m)
		}
	}
}

// triangulate replaces every face with more than three indices by a fan
// around its first index. Points and lines are left alone.
func triangulate(m *Mesh) {
	needed := false
	for _, f := range m.Faces {
		if len(f.Indices) > 3 {
			needed = true
			break
		}
	}
	if !needed {
		return
	}

	faces := make([]Face, 0, len(m.Faces))
	for _, f := range m.Faces {
		if len(f.Indices) <= 3 {
			faces = append(faces, f)
			continue
		}
		for i := 2; i < len(f.Indices); i++ {
			faces = append(faces, Face{Indices: []uint32{
				f.Indices[0],
				f.Indices[i-1],
				f.Indices[i],
			}})
		}
	}
	m.Faces = faces
}

func faceNormal(m *Mesh, f Face) (mgl32.Vec3, bool) {
	if len(f.Indices) < 3 {
		return mgl32.Vec3{}, false
	}
	v0 := m.Vertices[f.Indices[0]]
	v1 := m.Vertices[f.Indices[1]]
	v2 := m.Vertices[f.Indices[2]]
	return v1.Sub(v0).Cross(v2.Sub(v0)), true
}

// genFlatNormals gives every face its own normal. A vertex shared by
// faces with different normals is duplicated for each extra normal.
func genFlatNormals(m *Mesh) {
	m.Normals = make([]mgl32.Vec3, len(m.Vertices))
	assigned := make([]bool, len(m.Vertices))
	for fi, f := range m.Faces {
		n, ok := faceNormal(m, f)
		if !ok {
			continue
		}
		n = safeNormalize(n)
		for i, idx := range f.Indices {
			switch {
			case !assigned[idx]:
				m.Normals[idx] = n
				assigned[idx] = true
			case m.Normals[idx] != n:
				m.Faces[fi].Indices[i] = duplicateVertex(m, idx, n)
			}
		}
	}
}

// duplicateVertex appends a copy of vertex idx with normal n and returns
// its index.
func duplicateVertex(m *Mesh, idx uint32, n mgl32.Vec3) uint32 {
	dup := uint32(len(m.Vertices))
	m.Vertices = append(m.Vertices, m.Vertices[idx])
	m.Normals = append(m.Normals, n)
	for ch := range m.TextureCoords {
		if uvs := m.TextureCoords[ch]; len(uvs) > int(idx) {
			m.TextureCoords[ch] = append(uvs, uvs[idx])
		}
	}
	return dup
}

// genSmoothNormals accumulates unnormalized face normals per vertex, which
// weights each face by its area, then normalizes.
func genSmoothNormals(m *Mesh) {
	m.Normals = make([]mgl32.Vec3, len(m.Vertices))
	for _, f := range m.Faces {
		n, ok := faceNormal(m, f)
		if !ok {
			continue
		}
		for _, idx := range f.Indices {
			m.Normals[idx] = m.Normals[idx].Add(n)
		}
	}
	for i := range m.Normals {
		m.Normals[i] = safeNormalize(m.Normals[i])
	}
}

func flipUVs(m *Mesh) {
	for ch := range m.TextureCoords {
		for i, uv := range m.TextureCoords[ch] {
			m.TextureCoords[ch][i] = mgl32.Vec2{uv[0], 1 - uv[1]}
		}
	}
}

func safeNormalize(v mgl32.Vec3) mgl32.Vec3 {
	if v.Len() < 1e-12 {
		return mgl32.Vec3{}
	}
	return v.Normalize()
}
