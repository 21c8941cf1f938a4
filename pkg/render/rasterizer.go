package render

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// ClipVertex is a vertex after the vertex stage: a clip-space position
// plus the attributes interpolated across the primitive.
type ClipVertex struct {
	Position  mgl32.Vec4
	UV        mgl32.Vec2
	Intensity float32 // lighting factor applied to the fragment color
}

// Lerp interpolates every attribute between a and b.
func (a ClipVertex) Lerp(b ClipVertex, t float32) ClipVertex {
	return ClipVertex{
		Position:  a.Position.Add(b.Position.Sub(a.Position).Mul(t)),
		UV:        a.UV.Add(b.UV.Sub(a.UV).Mul(t)),
		Intensity: a.Intensity + (b.Intensity-a.Intensity)*t,
	}
}

// RasterStats counts rasterizer work since the last Reset.
type RasterStats struct {
	Triangles int // triangles submitted
	Culled    int // rejected by clipping or backface culling
	Fragments int // fragments that passed the depth test
}

// Rasterizer draws clip-space primitives into a Framebuffer with a depth
// test. Triangles with counter-clockwise NDC winding are front facing.
type Rasterizer struct {
	fb *Framebuffer

	CullBackfaces bool
	Stats         RasterStats
}

// NewRasterizer creates a rasterizer targeting fb.
func NewRasterizer(fb *Framebuffer) *Rasterizer {
	return &Rasterizer{fb: fb}
}

// ResetStats zeroes the counters, typically once per frame.
func (r *Rasterizer) ResetStats() {
	r.Stats = RasterStats{}
}

// Framebuffer returns the render target.
func (r *Rasterizer) Framebuffer() *Framebuffer {
	return r.fb
}

// screenVertex holds a vertex mapped to pixel coordinates.
type screenVertex struct {
	X, Y      float32
	Z         float32 // window depth in [0, 1]
	InvW      float32
	UV        mgl32.Vec2
	Intensity float32
}

func (r *Rasterizer) toScreen(v ClipVertex) screenVertex {
	invW := 1 / v.Position.W()
	ndc := v.Position.Vec3().Mul(invW)
	return screenVertex{
		X:         (ndc.X() + 1) * 0.5 * float32(r.fb.Width),
		Y:         (1 - ndc.Y()) * 0.5 * float32(r.fb.Height),
		Z:         (ndc.Z() + 1) * 0.5,
		InvW:      invW,
		UV:        v.UV,
		Intensity: v.Intensity,
	}
}

// clipNear clips a polygon against the near plane z = -w.
func clipNear(in []ClipVertex) []ClipVertex {
	dist := func(v ClipVertex) float32 { return v.Position.Z() + v.Position.W() }
	var out []ClipVertex
	for i, cur := range in {
		prev := in[(i+len(in)-1)%len(in)]
		dc, dp := dist(cur), dist(prev)
		if dc >= 0 {
			if dp < 0 {
				out = append(out, prev.Lerp(cur, dp/(dp-dc)))
			}
			out = append(out, cur)
		} else if dp >= 0 {
			out = append(out, prev.Lerp(cur, dp/(dp-dc)))
		}
	}
	return out
}

// DrawTriangle rasterizes one triangle. The fragment color is
// base * texture(uv) * intensity, or base * intensity without a texture.
func (r *Rasterizer) DrawTriangle(v [3]ClipVertex, tex *Texture, base Color) {
	r.Stats.Triangles++
	poly := clipNear(v[:])
	if len(poly) < 3 {
		r.Stats.Culled++
		return
	}
	for i := 2; i < len(poly); i++ {
		r.fillTriangle(r.toScreen(poly[0]), r.toScreen(poly[i-1]), r.toScreen(poly[i]), tex, base)
	}
}

func edge(ax, ay, bx, by, px, py float32) float32 {
	return (bx-ax)*(py-ay) - (by-ay)*(px-ax)
}

func (r *Rasterizer) fillTriangle(s0, s1, s2 screenVertex, tex *Texture, base Color) {
	area := edge(s0.X, s0.Y, s1.X, s1.Y, s2.X, s2.Y)
	if area == 0 {
		r.Stats.Culled++
		return
	}
	// y points down in pixel space, so front faces have negative area
	if r.CullBackfaces && area > 0 {
		r.Stats.Culled++
		return
	}

	minX := max(0, int(floor32(min(s0.X, s1.X, s2.X))))
	maxX := min(r.fb.Width-1, int(math.Ceil(float64(max(s0.X, s1.X, s2.X)))))
	minY := max(0, int(floor32(min(s0.Y, s1.Y, s2.Y))))
	maxY := min(r.fb.Height-1, int(math.Ceil(float64(max(s0.Y, s1.Y, s2.Y)))))

	lod := float32(0)
	if tex != nil {
		lod = textureLOD(s0, s1, s2, area, tex)
	}
	invArea := 1 / area

	for y := minY; y <= maxY; y++ {
		py := float32(y) + 0.5
		for x := minX; x <= maxX; x++ {
			px := float32(x) + 0.5
			b0 := edge(s1.X, s1.Y, s2.X, s2.Y, px, py) * invArea
			b1 := edge(s2.X, s2.Y, s0.X, s0.Y, px, py) * invArea
			b2 := edge(s0.X, s0.Y, s1.X, s1.Y, px, py) * invArea
			if b0 < 0 || b1 < 0 || b2 < 0 {
				continue
			}

			z := b0*s0.Z + b1*s1.Z + b2*s2.Z
			if z < 0 || z > 1 || !r.fb.depthTest(x, y, z) {
				continue
			}

			// perspective-correct interpolation
			w0, w1, w2 := b0*s0.InvW, b1*s1.InvW, b2*s2.InvW
			oneOverW := w0 + w1 + w2
			if oneOverW == 0 {
				continue
			}
			intensity := (w0*s0.Intensity + w1*s1.Intensity + w2*s2.Intensity) / oneOverW

			c := base
			if tex != nil {
				u := (w0*s0.UV.X() + w1*s1.UV.X() + w2*s2.UV.X()) / oneOverW
				v := (w0*s0.UV.Y() + w1*s1.UV.Y() + w2*s2.UV.Y()) / oneOverW
				c = ModulateColor(tex.Sample(u, v, lod), base)
			}
			r.fb.SetPixel(x, y, MultiplyColor(c, intensity))
			r.Stats.Fragments++
		}
	}
}

// textureLOD estimates the mip level of a triangle from the ratio of its
// texel area to its pixel area.
func textureLOD(s0, s1, s2 screenVertex, screenArea float32, tex *Texture) float32 {
	du1, dv1 := s1.UV.X()-s0.UV.X(), s1.UV.Y()-s0.UV.Y()
	du2, dv2 := s2.UV.X()-s0.UV.X(), s2.UV.Y()-s0.UV.Y()
	texArea := (du1*dv2 - du2*dv1) * float32(tex.Width) * float32(tex.Height)
	texArea = float32(math.Abs(float64(texArea)))
	pixArea := float32(math.Abs(float64(screenArea)))
	if texArea == 0 || pixArea == 0 {
		return 0
	}
	return 0.5 * float32(math.Log2(float64(texArea/pixArea)))
}

// DrawLine draws a depth-tested line between two clip-space vertices.
func (r *Rasterizer) DrawLine(a, b ClipVertex, c Color) {
	da := a.Position.Z() + a.Position.W()
	db := b.Position.Z() + b.Position.W()
	switch {
	case da < 0 && db < 0:
		return
	case da < 0:
		a = a.Lerp(b, da/(da-db))
	case db < 0:
		b = b.Lerp(a, db/(db-da))
	}
	s0, s1 := r.toScreen(a), r.toScreen(b)
	steps := int(max(abs32(s1.X-s0.X), abs32(s1.Y-s0.Y))) + 1
	for i := 0; i <= steps; i++ {
		t := float32(i) / float32(steps)
		x := int(s0.X + (s1.X-s0.X)*t)
		y := int(s0.Y + (s1.Y-s0.Y)*t)
		z := s0.Z + (s1.Z-s0.Z)*t
		if x < 0 || x >= r.fb.Width || y < 0 || y >= r.fb.Height {
			continue
		}
		// bias lines toward the viewer so edges win over their own faces
		if r.fb.depthTest(x, y, z-1e-4) {
			r.fb.SetPixel(x, y, MultiplyColor(c, a.Intensity+(b.Intensity-a.Intensity)*t))
			r.Stats.Fragments++
		}
	}
}

// DrawTriangleEdges draws the three edges of a triangle.
func (r *Rasterizer) DrawTriangleEdges(v [3]ClipVertex, c Color) {
	r.Stats.Triangles++
	for i := range 3 {
		r.DrawLine(v[i], v[(i+1)%3], c)
	}
}

// DrawPoint draws a single depth-tested pixel.
func (r *Rasterizer) DrawPoint(p ClipVertex, c Color) {
	if p.Position.Z()+p.Position.W() < 0 || p.Position.W() <= 0 {
		return
	}
	s := r.toScreen(p)
	x, y := int(s.X), int(s.Y)
	if x < 0 || x >= r.fb.Width || y < 0 || y >= r.fb.Height {
		return
	}
	if r.fb.depthTest(x, y, s.Z) {
		r.fb.SetPixel(x, y, MultiplyColor(c, p.Intensity))
		r.Stats.Fragments++
	}
}

func abs32(f float32) float32 {
	if f < 0 {
		return -f
	}
	return f
}
