package render

import (
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
)

func TestCameraPositionOrbit(t *testing.T) {
	cam := NewCamera()
	if p := cam.Position(); !p.ApproxEqual(mgl32.Vec3{0, 0, 5}) {
		t.Errorf("default position = %v, want (0,0,5)", p)
	}

	cam.SetRotation(0, math.Pi/2)
	if p := cam.Position(); !p.ApproxEqualThreshold(mgl32.Vec3{5, 0, 0}, 1e-5) {
		t.Errorf("yawed position = %v, want (5,0,0)", p)
	}

	cam.SetRotation(math.Pi, 0)
	if cam.Pitch >= math.Pi/2 {
		t.Errorf("pitch not clamped: %v", cam.Pitch)
	}
}

func TestCameraWorldToScreen(t *testing.T) {
	cam := NewCamera()
	cam.SetAspectRatio(1)

	x, y, _, ok := cam.WorldToScreen(mgl32.Vec3{}, 100, 100)
	if !ok {
		t.Fatal("target should be visible")
	}
	if math.Abs(float64(x-50)) > 1e-3 || math.Abs(float64(y-50)) > 1e-3 {
		t.Errorf("target projects to (%v,%v), want (50,50)", x, y)
	}

	if _, _, _, ok := cam.WorldToScreen(mgl32.Vec3{0, 0, 10}, 100, 100); ok {
		t.Error("point behind the camera should not be visible")
	}
}

func TestCameraFrame(t *testing.T) {
	cam := NewCamera()
	cam.Frame(mgl32.Vec3{1, 2, 3}, 2)

	if cam.Target != (mgl32.Vec3{1, 2, 3}) {
		t.Errorf("target = %v", cam.Target)
	}
	if cam.Distance <= 2 {
		t.Errorf("distance %v should clear the bounding sphere", cam.Distance)
	}
	if cam.Near <= 0 || cam.Far <= cam.Distance {
		t.Errorf("clip planes near=%v far=%v", cam.Near, cam.Far)
	}
}
