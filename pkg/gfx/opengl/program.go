package opengl

import (
	_ "embed"
	"fmt"
	"strings"

	"github.com/go-gl/gl/v4.1-core/gl"
	"github.com/go-gl/mathgl/mgl32"

	"github.com/taigrr/meshview/pkg/gfx"
)

var (
	//go:embed shaders/model.vert
	modelVertexSource string
	//go:embed shaders/model.frag
	modelFragmentSource string
)

// Program is a linked GL program with a uniform location cache.
type Program struct {
	handle   uint32
	uniforms map[string]int32
}

// NewModelProgram compiles the built-in textured, lit model program and
// points its light down the view axis.
func NewModelProgram() (*Program, error) {
	p, err := NewProgram(modelVertexSource, modelFragmentSource)
	if err != nil {
		return nil, err
	}
	p.Use()
	p.SetVec3(gfx.UniformLightDir, mgl32.Vec3{0, 0, 1})
	p.SetMat4(gfx.UniformModel, mgl32.Ident4())
	return p, nil
}

// NewProgram compiles and links a vertex and fragment shader.
func NewProgram(vertexSource, fragmentSource string) (*Program, error) {
	vs, err := compileShader(vertexSource, gl.VERTEX_SHADER)
	if err != nil {
		return nil, fmt.Errorf("vertex shader: %w", err)
	}
	defer gl.DeleteShader(vs)

	fs, err := compileShader(fragmentSource, gl.FRAGMENT_SHADER)
	if err != nil {
		return nil, fmt.Errorf("fragment shader: %w", err)
	}
	defer gl.DeleteShader(fs)

	handle := gl.CreateProgram()
	gl.AttachShader(handle, vs)
	gl.AttachShader(handle, fs)
	gl.LinkProgram(handle)

	var status int32
	gl.GetProgramiv(handle, gl.LINK_STATUS, &status)
	if status == gl.FALSE {
		var logLength int32
		gl.GetProgramiv(handle, gl.INFO_LOG_LENGTH, &logLength)
		msg := strings.Repeat("\x00", int(logLength+1))
		gl.GetProgramInfoLog(handle, logLength, nil, gl.Str(msg))
		gl.DeleteProgram(handle)
		return nil, fmt.Errorf("link program: %s", strings.TrimRight(msg, "\x00"))
	}
	return &Program{handle: handle, uniforms: make(map[string]int32)}, nil
}

func compileShader(source string, shaderType uint32) (uint32, error) {
	shader := gl.CreateShader(shaderType)
	csources, free := gl.Strs(source + "\x00")
	gl.ShaderSource(shader, 1, csources, nil)
	free()
	gl.CompileShader(shader)

	var status int32
	gl.GetShaderiv(shader, gl.COMPILE_STATUS, &status)
	if status == gl.FALSE {
		var logLength int32
		gl.GetShaderiv(shader, gl.INFO_LOG_LENGTH, &logLength)
		msg := strings.Repeat("\x00", int(logLength+1))
		gl.GetShaderInfoLog(shader, logLength, nil, gl.Str(msg))
		gl.DeleteShader(shader)
		return 0, fmt.Errorf("compile: %s", strings.TrimRight(msg, "\x00"))
	}
	return shader, nil
}

// location returns the cached location of a uniform; -1 for names the
// linker optimized away, which GL ignores.
func (p *Program) location(name string) int32 {
	if loc, ok := p.uniforms[name]; ok {
		return loc
	}
	loc := gl.GetUniformLocation(p.handle, gl.Str(name+"\x00"))
	p.uniforms[name] = loc
	return loc
}

// Use implements gfx.Shader.
func (p *Program) Use() {
	gl.UseProgram(p.handle)
}

// SetInt implements gfx.Shader.
func (p *Program) SetInt(name string, v int32) {
	gl.Uniform1i(p.location(name), v)
}

// SetMat4 implements gfx.Program.
func (p *Program) SetMat4(name string, m mgl32.Mat4) {
	gl.UniformMatrix4fv(p.location(name), 1, false, &m[0])
}

// SetVec3 implements gfx.Program.
func (p *Program) SetVec3(name string, v mgl32.Vec3) {
	gl.Uniform3f(p.location(name), v[0], v[1], v[2])
}

// Delete releases the program.
func (p *Program) Delete() {
	gl.DeleteProgram(p.handle)
	p.handle = 0
}

var _ gfx.Program = (*Program)(nil)
