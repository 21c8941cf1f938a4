package soft

import (
	"maps"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/taigrr/meshview/pkg/gfx"
	"github.com/taigrr/meshview/pkg/render"
)

// Program is the fixed software shader: positions go through
// projection * view * model, and the fragment color is the diffuse
// texture scaled by 0.3 ambient plus 0.7 Lambert diffuse, computed per
// vertex.
type Program struct {
	dev *Device

	// DiffuseSampler names the sampler uniform read for base color.
	DiffuseSampler string

	ints       map[string]int32
	model      mgl32.Mat4
	view       mgl32.Mat4
	projection mgl32.Mat4
	lightDir   mgl32.Vec3
	color      render.Color
}

// NewProgram creates a program for dev with identity transforms and a
// light shining down the view axis.
func NewProgram(dev *Device) *Program {
	return &Program{
		dev:            dev,
		DiffuseSampler: "texture_diffuse1",
		ints:           make(map[string]int32),
		model:          mgl32.Ident4(),
		view:           mgl32.Ident4(),
		projection:     mgl32.Ident4(),
		lightDir:       mgl32.Vec3{0, 0, 1},
		color:          render.ColorWhite,
	}
}

// Use implements gfx.Shader.
func (p *Program) Use() {
	p.dev.program = p
}

// SetInt implements gfx.Shader.
func (p *Program) SetInt(name string, v int32) {
	p.ints[name] = v
}

// Int returns an int uniform.
func (p *Program) Int(name string) (int32, bool) {
	v, ok := p.ints[name]
	return v, ok
}

// Ints returns a copy of every int uniform set so far.
func (p *Program) Ints() map[string]int32 {
	return maps.Clone(p.ints)
}

// SetMat4 sets the model, view or projection matrix. Other names are
// ignored.
func (p *Program) SetMat4(name string, m mgl32.Mat4) {
	switch name {
	case gfx.UniformModel:
		p.model = m
	case gfx.UniformView:
		p.view = m
	case gfx.UniformProjection:
		p.projection = m
	}
}

// SetVec3 sets the light direction (toward the light, world space).
// Other names are ignored.
func (p *Program) SetVec3(name string, v mgl32.Vec3) {
	if name == gfx.UniformLightDir && v.Len() > 0 {
		p.lightDir = v.Normalize()
	}
}

// SetColor sets the color multiplied into every fragment.
func (p *Program) SetColor(c render.Color) {
	p.color = c
}

func (p *Program) mvp() mgl32.Mat4 {
	return p.projection.Mul4(p.view).Mul4(p.model)
}

func (p *Program) vertex(mvp mgl32.Mat4, pos, normal mgl32.Vec3, uv mgl32.Vec2) render.ClipVertex {
	n := p.model.Mat3().Mul3x1(normal)
	intensity := float32(0.3)
	if n.Len() > 0 {
		intensity += 0.7 * max(0, n.Normalize().Dot(p.lightDir))
	}
	return render.ClipVertex{
		Position:  mvp.Mul4x1(pos.Vec4(1)),
		UV:        uv,
		Intensity: intensity,
	}
}

var _ gfx.Program = (*Program)(nil)
