package main

import (
	"math"
	"math/rand/v2"

	"github.com/charmbracelet/log"
	"github.com/go-gl/mathgl/mgl32"

	"github.com/taigrr/meshview/internal/config"
	"github.com/taigrr/meshview/pkg/gfx"
	"github.com/taigrr/meshview/pkg/models"
	"github.com/taigrr/meshview/pkg/render"
)

const (
	torqueStrength = 3.0
	minZoom        = 0.2
	maxZoom        = 5.0
)

// viewer is the backend independent view state: the loaded model, the
// camera framing it and the user's rotation, zoom and light.
type viewer struct {
	path   string
	cfg    config.Config
	logger *log.Logger
	dev    gfx.Device
	shader gfx.Program

	model    *models.Model
	bounds   render.AABB
	camera   *render.Camera
	rotation *RotationState
	torque   [3]float64 // pitch, yaw, roll
	framed   float32    // camera distance that fits the model
	zoom     float32

	light        mgl32.Vec3
	pendingLight mgl32.Vec3
	lightMode    bool
	wireframe    bool
	showHUD      bool
}

// newViewer loads path and frames it. A failed first load is an error.
func newViewer(path string, cfg config.Config, dev gfx.Device, shader gfx.Program, logger *log.Logger) (*viewer, error) {
	v := &viewer{
		path:      path,
		cfg:       cfg,
		logger:    logger,
		dev:       dev,
		shader:    shader,
		camera:    render.NewCamera(),
		rotation:  NewRotationState(cfg.FPS),
		zoom:      1,
		light:     lightDir(cfg.LightDir),
		wireframe: cfg.Wireframe,
	}
	if err := v.load(); err != nil {
		return nil, err
	}
	return v, nil
}

func lightDir(d [3]float32) mgl32.Vec3 {
	l := mgl32.Vec3{d[0], d[1], d[2]}
	if l.Len() == 0 {
		return mgl32.Vec3{0, 0, 1}
	}
	return l.Normalize()
}

// load opens a fresh model with its own texture cache and swaps it in.
func (v *viewer) load() error {
	cats, err := v.cfg.TextureCategories()
	if err != nil {
		return err
	}
	m, err := models.Open(v.path, v.dev, v.shader,
		models.WithLogger(v.logger),
		models.WithImportFlags(v.cfg.ImportFlags()),
		models.WithTextureCategories(cats...),
	)
	if err != nil {
		return err
	}
	if v.model != nil {
		v.model.Release()
	}
	v.model = m
	v.bounds = m.Bounds()
	v.frame()
	return nil
}

// reload re-imports the model after a file change, keeping the current
// one when the new import fails.
func (v *viewer) reload(changed []string) {
	v.logger.Info("reloading model", "path", v.path, "changed", len(changed))
	if err := v.load(); err != nil {
		v.logger.Warn("reload failed, keeping previous model", "err", err)
	}
}

func (v *viewer) center() mgl32.Vec3 {
	if v.bounds.IsEmpty() {
		return mgl32.Vec3{}
	}
	return v.bounds.Center()
}

func (v *viewer) radius() float32 {
	if v.bounds.IsEmpty() {
		return 1
	}
	return max(v.bounds.Radius(), 1e-3)
}

func (v *viewer) frame() {
	v.camera.Frame(v.center(), v.radius())
	v.framed = v.camera.Distance
	v.applyZoom()
}

func (v *viewer) applyZoom() {
	d := v.framed * v.zoom
	r := v.radius()
	v.camera.SetDistance(d)
	v.camera.SetClipPlanes(max(d-r*2, d/1000), d+r*2)
}

func (v *viewer) zoomBy(f float32) {
	v.zoom = max(minZoom, min(maxZoom, v.zoom*f))
	v.applyZoom()
}

// modelMatrix spins the model about its own center.
func (v *viewer) modelMatrix() mgl32.Mat4 {
	c := v.center()
	return mgl32.Translate3D(c.X(), c.Y(), c.Z()).
		Mul4(v.rotation.Matrix()).
		Mul4(mgl32.Translate3D(-c.X(), -c.Y(), -c.Z()))
}

// step advances the spin by dt seconds.
func (v *viewer) step(dt float64) {
	dt = min(dt, 0.1)
	v.rotation.ApplyImpulse(v.torque[0]*dt, v.torque[1]*dt, v.torque[2]*dt)
	for i := range v.torque {
		v.torque[i] *= 0.9
	}
	v.rotation.Update()
}

// draw sets the per-frame uniforms and draws the model.
func (v *viewer) draw(aspect float32) {
	if aspect > 0 {
		v.camera.SetAspectRatio(aspect)
	}
	light := v.light
	if v.lightMode {
		light = v.pendingLight
	}
	v.shader.Use()
	v.shader.SetMat4(gfx.UniformModel, v.modelMatrix())
	v.shader.SetMat4(gfx.UniformView, v.camera.ViewMatrix())
	v.shader.SetMat4(gfx.UniformProjection, v.camera.ProjectionMatrix())
	v.shader.SetVec3(gfx.UniformLightDir, light)
	v.model.Draw()
}

// press handles a key by name and reports whether the viewer should quit.
func (v *viewer) press(key string) (quit bool) {
	switch key {
	case "esc", "escape":
		if v.lightMode {
			v.lightMode = false
			return false
		}
		return true
	case "ctrl+c":
		return true
	case "w", "up":
		v.torque[0] = -torqueStrength
	case "s", "down":
		v.torque[0] = torqueStrength
	case "a", "left":
		v.torque[1] = -torqueStrength
	case "d", "right":
		v.torque[1] = torqueStrength
	case "q":
		v.torque[2] = -torqueStrength
	case "e":
		v.torque[2] = torqueStrength
	case "space":
		v.rotation.ApplyImpulse(
			(rand.Float64()-0.5)*1.5,
			(rand.Float64()-0.5)*1.5,
			(rand.Float64()-0.5)*1.5,
		)
	case "r":
		v.rotation.Reset()
		v.torque = [3]float64{}
		v.zoom = 1
		v.applyZoom()
	case "+", "=":
		v.zoomBy(0.9)
	case "-", "_":
		v.zoomBy(1 / 0.9)
	case "x":
		v.wireframe = !v.wireframe
	case "l":
		v.lightMode = true
		v.pendingLight = v.light
	case "?":
		v.showHUD = !v.showHUD
	}
	return false
}

// release stops the torque a held key applies.
func (v *viewer) release(key string) {
	switch key {
	case "w", "up", "s", "down":
		v.torque[0] = 0
	case "a", "left", "d", "right":
		v.torque[1] = 0
	case "q", "e":
		v.torque[2] = 0
	}
}

// drag spins the model by a pointer movement in cells or pixels.
func (v *viewer) drag(dx, dy float64) {
	v.rotation.ApplyImpulse(dy*0.03, dx*0.03, 0)
}

// pointer aims the pending light while in light mode.
func (v *viewer) pointer(x, y, width, height int) {
	if v.lightMode {
		v.pendingLight = screenToLightDir(x, y, width, height)
	}
}

// click sets the pending light, and reports whether the click was used.
func (v *viewer) click() bool {
	if !v.lightMode {
		return false
	}
	v.light = v.pendingLight
	v.lightMode = false
	return true
}

// screenToLightDir maps a screen position onto a hemisphere facing the
// viewer.
func screenToLightDir(x, y, width, height int) mgl32.Vec3 {
	if width <= 0 || height <= 0 {
		return mgl32.Vec3{0, 0, 1}
	}
	nx := float64(x)/float64(width)*2 - 1
	ny := float64(y)/float64(height)*2 - 1

	lenSq := nx*nx + ny*ny
	if lenSq > 1 {
		l := math.Sqrt(lenSq)
		nx /= l
		ny /= l
		lenSq = 1
	}
	nz := math.Sqrt(1 - lenSq)
	return mgl32.Vec3{float32(nx), float32(-ny), float32(nz)}.Normalize()
}
