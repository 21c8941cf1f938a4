package render

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// Camera is a perspective camera that orbits a target point.
type Camera struct {
	Target   mgl32.Vec3
	Distance float32

	// Orbit angles in radians. Yaw 0 looks down -Z.
	Pitch float32
	Yaw   float32

	FOV         float32 // vertical field of view in radians
	AspectRatio float32
	Near        float32
	Far         float32

	viewMatrix mgl32.Mat4
	projMatrix mgl32.Mat4
	viewDirty  bool
	projDirty  bool
}

// NewCamera creates a camera 5 units in front of the origin.
func NewCamera() *Camera {
	return &Camera{
		Distance:    5,
		FOV:         mgl32.DegToRad(45),
		AspectRatio: 16.0 / 9.0,
		Near:        0.1,
		Far:         1000,
		viewDirty:   true,
		projDirty:   true,
	}
}

// Position returns the eye position in world space.
func (c *Camera) Position() mgl32.Vec3 {
	cp := float32(math.Cos(float64(c.Pitch)))
	sp := float32(math.Sin(float64(c.Pitch)))
	cy := float32(math.Cos(float64(c.Yaw)))
	sy := float32(math.Sin(float64(c.Yaw)))
	offset := mgl32.Vec3{sy * cp, sp, cy * cp}.Mul(c.Distance)
	return c.Target.Add(offset)
}

// SetTarget sets the point the camera orbits.
func (c *Camera) SetTarget(target mgl32.Vec3) {
	c.Target = target
	c.viewDirty = true
}

// SetDistance sets the orbit radius. Non-positive values are ignored.
func (c *Camera) SetDistance(d float32) {
	if d <= 0 {
		return
	}
	c.Distance = d
	c.viewDirty = true
}

// SetRotation sets the orbit angles.
func (c *Camera) SetRotation(pitch, yaw float32) {
	c.Pitch = pitch
	c.Yaw = yaw
	c.clampPitch()
	c.viewDirty = true
}

// Rotate adds to the orbit angles.
func (c *Camera) Rotate(deltaPitch, deltaYaw float32) {
	c.SetRotation(c.Pitch+deltaPitch, c.Yaw+deltaYaw)
}

func (c *Camera) clampPitch() {
	const maxPitch = math.Pi/2 - 0.01
	c.Pitch = max(-maxPitch, min(maxPitch, c.Pitch))
}

// SetAspectRatio sets width / height.
func (c *Camera) SetAspectRatio(aspect float32) {
	c.AspectRatio = aspect
	c.projDirty = true
}

// SetClipPlanes sets the near and far clipping planes.
func (c *Camera) SetClipPlanes(near, far float32) {
	c.Near = near
	c.Far = far
	c.projDirty = true
}

// Frame positions the camera so a sphere of radius around center fills
// the view.
func (c *Camera) Frame(center mgl32.Vec3, radius float32) {
	if radius <= 0 {
		radius = 1
	}
	c.Target = center
	c.Distance = radius / float32(math.Sin(float64(c.FOV)/2)) * 1.1
	c.Near = max(c.Distance-radius*2, c.Distance/1000)
	c.Far = c.Distance + radius*2
	c.viewDirty = true
	c.projDirty = true
}

// ViewMatrix returns the world to eye transform.
func (c *Camera) ViewMatrix() mgl32.Mat4 {
	if c.viewDirty {
		c.viewMatrix = mgl32.LookAtV(c.Position(), c.Target, mgl32.Vec3{0, 1, 0})
		c.viewDirty = false
	}
	return c.viewMatrix
}

// ProjectionMatrix returns the eye to clip transform.
func (c *Camera) ProjectionMatrix() mgl32.Mat4 {
	if c.projDirty {
		c.projMatrix = mgl32.Perspective(c.FOV, c.AspectRatio, c.Near, c.Far)
		c.projDirty = false
	}
	return c.projMatrix
}

// ViewProjectionMatrix returns projection * view.
func (c *Camera) ViewProjectionMatrix() mgl32.Mat4 {
	return c.ProjectionMatrix().Mul4(c.ViewMatrix())
}

// WorldToScreen projects a world point to pixel coordinates.
// Returns (screenX, screenY, depth, visible).
func (c *Camera) WorldToScreen(p mgl32.Vec3, width, height int) (x, y, depth float32, visible bool) {
	clip := c.ViewProjectionMatrix().Mul4x1(p.Vec4(1))
	if clip.W() <= 0 {
		return 0, 0, 0, false
	}
	ndc := clip.Vec3().Mul(1 / clip.W())
	if ndc.X() < -1 || ndc.X() > 1 || ndc.Y() < -1 || ndc.Y() > 1 || ndc.Z() < -1 || ndc.Z() > 1 {
		return 0, 0, 0, false
	}
	x = (ndc.X() + 1) * 0.5 * float32(width)
	y = (1 - ndc.Y()) * 0.5 * float32(height)
	return x, y, ndc.Z(), true
}
