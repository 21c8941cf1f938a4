package render

import (
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
)

// ndcTriangle returns a triangle already in clip space (w=1) at depth z.
func ndcTriangle(z float32, ccw bool) [3]ClipVertex {
	v := [3]ClipVertex{
		{Position: mgl32.Vec4{-0.8, -0.8, z, 1}, UV: mgl32.Vec2{0, 0}, Intensity: 1},
		{Position: mgl32.Vec4{0.8, -0.8, z, 1}, UV: mgl32.Vec2{1, 0}, Intensity: 1},
		{Position: mgl32.Vec4{0, 0.8, z, 1}, UV: mgl32.Vec2{0.5, 1}, Intensity: 1},
	}
	if !ccw {
		v[1], v[2] = v[2], v[1]
	}
	return v
}

func createTestRasterizer(width, height int) (*Rasterizer, *Framebuffer) {
	fb := NewFramebuffer(width, height)
	fb.Clear(ColorBlack)
	return NewRasterizer(fb), fb
}

func TestDrawTriangleFillsCenter(t *testing.T) {
	r, fb := createTestRasterizer(64, 64)
	r.DrawTriangle(ndcTriangle(0, true), nil, RGB(200, 100, 50))

	if got := fb.GetPixel(32, 40); got != RGB(200, 100, 50) {
		t.Errorf("center pixel = %v, want (200,100,50)", got)
	}
	if got := fb.GetPixel(1, 1); got != ColorBlack {
		t.Errorf("corner pixel = %v, want black", got)
	}
	if r.Stats.Triangles != 1 || r.Stats.Fragments == 0 {
		t.Errorf("stats = %+v", r.Stats)
	}
}

func TestDrawTriangleBackfaceCulling(t *testing.T) {
	tests := []struct {
		name  string
		cull  bool
		ccw   bool
		drawn bool
	}{
		{"front no cull", false, true, true},
		{"back no cull", false, false, true},
		{"front cull", true, true, true},
		{"back cull", true, false, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			r, fb := createTestRasterizer(32, 32)
			r.CullBackfaces = tc.cull
			r.DrawTriangle(ndcTriangle(0, tc.ccw), nil, ColorWhite)
			drawn := fb.GetPixel(16, 20) == ColorWhite
			if drawn != tc.drawn {
				t.Errorf("drawn = %v, want %v", drawn, tc.drawn)
			}
		})
	}
}

func TestDrawTriangleDepthTest(t *testing.T) {
	r, fb := createTestRasterizer(32, 32)
	r.DrawTriangle(ndcTriangle(-0.5, true), nil, RGB(255, 0, 0))
	r.DrawTriangle(ndcTriangle(0.5, true), nil, RGB(0, 255, 0))

	if got := fb.GetPixel(16, 20); got != RGB(255, 0, 0) {
		t.Errorf("nearer triangle should win, got %v", got)
	}

	fb.ClearDepth()
	r.DrawTriangle(ndcTriangle(0.5, true), nil, RGB(0, 255, 0))
	if got := fb.GetPixel(16, 20); got != RGB(0, 255, 0) {
		t.Errorf("after ClearDepth got %v", got)
	}
}

func TestDrawTriangleBehindNearPlane(t *testing.T) {
	r, fb := createTestRasterizer(32, 32)
	tri := ndcTriangle(-2, true) // z < -w for every vertex
	r.DrawTriangle(tri, nil, ColorWhite)

	if r.Stats.Culled != 1 {
		t.Errorf("culled = %d, want 1", r.Stats.Culled)
	}
	if fb.GetPixel(16, 20) != ColorBlack {
		t.Error("triangle behind the near plane should not draw")
	}
}

func TestDrawTriangleClipsAgainstNearPlane(t *testing.T) {
	r, _ := createTestRasterizer(32, 32)
	tri := ndcTriangle(0, true)
	tri[2].Position[2] = -3 // apex crosses the near plane

	r.DrawTriangle(tri, nil, ColorWhite)
	if r.Stats.Fragments == 0 {
		t.Error("partially clipped triangle should still produce fragments")
	}
}

func TestDrawTriangleTexturedAndLit(t *testing.T) {
	r, fb := createTestRasterizer(32, 32)
	tex := NewTexture(1, 1)
	tex.SetPixel(0, 0, RGB(100, 200, 40))

	tri := ndcTriangle(0, true)
	for i := range tri {
		tri[i].Intensity = 0.5
	}
	r.DrawTriangle(tri, tex, ColorWhite)

	got := fb.GetPixel(16, 20)
	want := RGB(50, 100, 20)
	if absInt(int(got.R)-int(want.R)) > 1 || absInt(int(got.G)-int(want.G)) > 1 || absInt(int(got.B)-int(want.B)) > 1 {
		t.Errorf("lit texel = %v, want %v", got, want)
	}
}

func TestDrawLineAndPoint(t *testing.T) {
	r, fb := createTestRasterizer(32, 32)
	a := ClipVertex{Position: mgl32.Vec4{-1, 0, 0, 1}, Intensity: 1}
	b := ClipVertex{Position: mgl32.Vec4{1, 0, 0, 1}, Intensity: 1}
	r.DrawLine(a, b, ColorWhite)

	if fb.GetPixel(10, 16) != ColorWhite {
		t.Error("horizontal line should cross the middle row")
	}

	r.DrawPoint(ClipVertex{Position: mgl32.Vec4{0, 0.5, 0, 1}, Intensity: 1}, RGB(1, 2, 3))
	if fb.GetPixel(16, 8) != RGB(1, 2, 3) {
		t.Errorf("point pixel = %v", fb.GetPixel(16, 8))
	}
}

func TestDrawTriangleEdges(t *testing.T) {
	r, fb := createTestRasterizer(64, 64)
	r.DrawTriangleEdges(ndcTriangle(0, true), ColorWhite)

	if fb.GetPixel(32, 40) != ColorBlack {
		t.Error("edges only: interior should stay clear")
	}
	// bottom edge runs along y = -0.8, row 57
	if fb.GetPixel(32, 57) != ColorWhite {
		t.Error("bottom edge missing")
	}
}

func TestTextureLOD(t *testing.T) {
	tex := NewTexture(256, 256)
	s0 := screenVertex{X: 0, Y: 0, UV: mgl32.Vec2{0, 0}}
	s1 := screenVertex{X: 16, Y: 0, UV: mgl32.Vec2{1, 0}}
	s2 := screenVertex{X: 0, Y: 16, UV: mgl32.Vec2{0, 1}}
	area := edge(s0.X, s0.Y, s1.X, s1.Y, s2.X, s2.Y)

	// 256 texels map to 16 pixels: 16x minification = lod 4
	lod := textureLOD(s0, s1, s2, area, tex)
	if math.Abs(float64(lod-4)) > 1e-4 {
		t.Errorf("lod = %v, want 4", lod)
	}
}

func TestFramebufferResizeAndClearDepth(t *testing.T) {
	fb := NewFramebuffer(4, 4)
	fb.Resize(8, 2)
	if len(fb.Pixels) != 16 || len(fb.Depth) != 16 {
		t.Fatalf("resize produced %d pixels, %d depth", len(fb.Pixels), len(fb.Depth))
	}
	fb.Depth[3] = 0.5
	fb.ClearDepth()
	for i, d := range fb.Depth {
		if !math.IsInf(float64(d), 1) {
			t.Errorf("depth[%d] = %v, want +Inf", i, d)
		}
	}
}

func absInt(x int) int {
	if x < 0 {
		return -x
	}
	return x
}

func BenchmarkDrawTriangle(b *testing.B) {
	r, fb := createTestRasterizer(200, 100)
	tri := ndcTriangle(0, true)
	for b.Loop() {
		fb.ClearDepth()
		r.DrawTriangle(tri, nil, ColorWhite)
	}
}
