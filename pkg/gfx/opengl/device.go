// Package opengl implements gfx.Device on an OpenGL 4.1 core context.
//
// A context must be current on the calling goroutine (see glfw) and Init
// must have been called before any other function in this package.
package opengl

import (
	"fmt"
	"unsafe"

	"github.com/charmbracelet/log"
	"github.com/go-gl/gl/v4.1-core/gl"

	"github.com/taigrr/meshview/pkg/gfx"
)

// Init loads the GL function pointers for the current context and
// returns the driver version string.
func Init() (string, error) {
	if err := gl.Init(); err != nil {
		return "", fmt.Errorf("init opengl: %w", err)
	}
	return gl.GoStr(gl.GetString(gl.VERSION)), nil
}

// Device forwards gfx.Device calls to the current GL context.
type Device struct {
	logger *log.Logger
}

// NewDevice returns a device for the current context and enables depth
// testing.
func NewDevice(logger *log.Logger) *Device {
	if logger == nil {
		logger = log.Default()
	}
	gl.Enable(gl.DEPTH_TEST)
	gl.DepthFunc(gl.LESS)
	gl.PixelStorei(gl.UNPACK_ALIGNMENT, 1)
	return &Device{logger: logger}
}

// Err returns the oldest pending GL error, if any.
func (d *Device) Err() error {
	if code := gl.GetError(); code != gl.NO_ERROR {
		return fmt.Errorf("gl error 0x%x", code)
	}
	return nil
}

// Clear clears the color and depth buffers of the default framebuffer.
func (d *Device) Clear(r, g, b float32) {
	gl.ClearColor(r, g, b, 1)
	gl.Clear(gl.COLOR_BUFFER_BIT | gl.DEPTH_BUFFER_BIT)
}

// Viewport sets the viewport to the framebuffer size in pixels.
func (d *Device) Viewport(width, height int) {
	gl.Viewport(0, 0, int32(width), int32(height))
}

// SetWireframe switches between filled and line polygon mode.
func (d *Device) SetWireframe(on bool) {
	mode := uint32(gl.FILL)
	if on {
		mode = gl.LINE
	}
	gl.PolygonMode(gl.FRONT_AND_BACK, mode)
}

// GenTexture implements gfx.Device.
func (d *Device) GenTexture() gfx.Handle {
	var h uint32
	gl.GenTextures(1, &h)
	return gfx.Handle(h)
}

// BindTexture implements gfx.Device.
func (d *Device) BindTexture(tex gfx.Handle) {
	gl.BindTexture(gl.TEXTURE_2D, uint32(tex))
}

// TexImage2D implements gfx.Device.
func (d *Device) TexImage2D(img gfx.Image) {
	format, ok := pixelFormat(img.Format)
	if !ok {
		d.logger.Warn("tex image 2d", "err", gfx.ErrUnsupportedChannels, "format", img.Format)
		return
	}
	var pix unsafe.Pointer
	if len(img.Pix) > 0 {
		pix = gl.Ptr(img.Pix)
	}
	gl.TexImage2D(gl.TEXTURE_2D, 0, int32(format), int32(img.Width), int32(img.Height), 0,
		format, gl.UNSIGNED_BYTE, pix)
}

// GenerateMipmap implements gfx.Device.
func (d *Device) GenerateMipmap() {
	gl.GenerateMipmap(gl.TEXTURE_2D)
}

// TexParameters implements gfx.Device.
func (d *Device) TexParameters(s gfx.Sampler) {
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_WRAP_S, wrapMode(s.WrapS))
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_WRAP_T, wrapMode(s.WrapT))
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MIN_FILTER, filterMode(s.MinFilter))
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MAG_FILTER, filterMode(s.MagFilter))
}

// ActiveTexture implements gfx.Device.
func (d *Device) ActiveTexture(unit int) {
	gl.ActiveTexture(gl.TEXTURE0 + uint32(unit))
}

// GenVertexArray implements gfx.Device.
func (d *Device) GenVertexArray() gfx.Handle {
	var h uint32
	gl.GenVertexArrays(1, &h)
	return gfx.Handle(h)
}

// BindVertexArray implements gfx.Device.
func (d *Device) BindVertexArray(vao gfx.Handle) {
	gl.BindVertexArray(uint32(vao))
}

// GenBuffer implements gfx.Device.
func (d *Device) GenBuffer() gfx.Handle {
	var h uint32
	gl.GenBuffers(1, &h)
	return gfx.Handle(h)
}

// BindBuffer implements gfx.Device.
func (d *Device) BindBuffer(target gfx.BufferTarget, buf gfx.Handle) {
	gl.BindBuffer(bufferTarget(target), uint32(buf))
}

// BufferData implements gfx.Device.
func (d *Device) BufferData(target gfx.BufferTarget, data []byte, usage gfx.Usage) {
	var ptr unsafe.Pointer
	if len(data) > 0 {
		ptr = gl.Ptr(data)
	}
	gl.BufferData(bufferTarget(target), len(data), ptr, bufferUsage(usage))
}

// VertexAttribPointer implements gfx.Device. The attribute array is
// enabled as well.
func (d *Device) VertexAttribPointer(a gfx.VertexAttrib) {
	gl.EnableVertexAttribArray(a.Location)
	gl.VertexAttribPointerWithOffset(a.Location, int32(a.Size), attribType(a.Type), a.Normalized,
		int32(a.Stride), uintptr(a.Offset))
}

// DrawElements implements gfx.Device.
func (d *Device) DrawElements(mode gfx.Primitive, count int, typ gfx.IndexType, offset int) {
	gl.DrawElementsWithOffset(primitive(mode), int32(count), indexType(typ), uintptr(offset))
}

// DeleteTexture implements gfx.Deleter.
func (d *Device) DeleteTexture(tex gfx.Handle) {
	h := uint32(tex)
	gl.DeleteTextures(1, &h)
}

// DeleteBuffer implements gfx.Deleter.
func (d *Device) DeleteBuffer(buf gfx.Handle) {
	h := uint32(buf)
	gl.DeleteBuffers(1, &h)
}

// DeleteVertexArray implements gfx.Deleter.
func (d *Device) DeleteVertexArray(vao gfx.Handle) {
	h := uint32(vao)
	gl.DeleteVertexArrays(1, &h)
}

var (
	_ gfx.Device  = (*Device)(nil)
	_ gfx.Deleter = (*Device)(nil)
)
