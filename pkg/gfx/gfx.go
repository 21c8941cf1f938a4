// Package gfx defines the graphics context that meshes and textures are
// uploaded to and drawn with.
//
// A Device mirrors the small slice of a rasterization API the model layer
// needs: object creation, binding and indexed draws. Binding state lives in
// the Device value that is passed to every call, so state changes are
// visible effects of the caller rather than ambient globals.
//
// Devices are not safe for concurrent use. All calls must happen on the
// goroutine that owns the underlying context.
package gfx

import (
	"errors"
	"fmt"

	"github.com/go-gl/mathgl/mgl32"
)

// Handle names a device object (texture, buffer or vertex array).
// The zero Handle unbinds.
type Handle uint32

// PixelFormat is the channel layout of texture data.
type PixelFormat int

const (
	FormatRed  PixelFormat = iota + 1 // 1 channel
	FormatRGB                         // 3 channels
	FormatRGBA                        // 4 channels
)

func (f PixelFormat) String() string {
	switch f {
	case FormatRed:
		return "red"
	case FormatRGB:
		return "rgb"
	case FormatRGBA:
		return "rgba"
	default:
		return fmt.Sprintf("PixelFormat(%d)", int(f))
	}
}

// Channels returns the number of bytes per pixel for the format.
func (f PixelFormat) Channels() int {
	switch f {
	case FormatRed:
		return 1
	case FormatRGB:
		return 3
	case FormatRGBA:
		return 4
	default:
		return 0
	}
}

// ErrUnsupportedChannels is returned for channel counts other than 1, 3 or 4.
var ErrUnsupportedChannels = errors.New("unsupported channel count")

// FormatForChannels maps a decoded image's channel count to a pixel format.
func FormatForChannels(n int) (PixelFormat, error) {
	switch n {
	case 1:
		return FormatRed, nil
	case 3:
		return FormatRGB, nil
	case 4:
		return FormatRGBA, nil
	default:
		return 0, fmt.Errorf("%w: %d", ErrUnsupportedChannels, n)
	}
}

// Image is tightly packed, row-major pixel data. The first row is sampled
// at v=0.
type Image struct {
	Width  int
	Height int
	Format PixelFormat
	Pix    []byte
}

// Wrap is a texture coordinate wrap mode.
type Wrap int

const (
	WrapRepeat Wrap = iota
	WrapClampToEdge
	WrapMirroredRepeat
)

// Filter is a texture sampling filter.
type Filter int

const (
	FilterNearest Filter = iota
	FilterLinear
	FilterNearestMipmapNearest
	FilterLinearMipmapNearest
	FilterNearestMipmapLinear
	FilterLinearMipmapLinear
)

// UsesMipmaps reports whether the filter reads from mip levels.
func (f Filter) UsesMipmaps() bool {
	return f >= FilterNearestMipmapNearest
}

// Sampler holds the sampling parameters of a texture.
type Sampler struct {
	WrapS     Wrap
	WrapT     Wrap
	MinFilter Filter
	MagFilter Filter
}

// BufferTarget selects the binding point of a buffer.
type BufferTarget int

const (
	ArrayBuffer BufferTarget = iota
	ElementArrayBuffer
)

// Usage hints how buffer data will be accessed.
type Usage int

const (
	StaticDraw Usage = iota
	DynamicDraw
	StreamDraw
)

// AttribType is the component type of a vertex attribute.
type AttribType int

const (
	Float AttribType = iota
	UnsignedByte
	UnsignedShort
)

// VertexAttrib describes where a vertex attribute lives in the bound array
// buffer. Offset and Stride are in bytes.
type VertexAttrib struct {
	Location   uint32
	Size       int
	Type       AttribType
	Normalized bool
	Stride     int
	Offset     int
}

// Primitive is the topology of an indexed draw.
type Primitive int

const (
	Triangles Primitive = iota
	Lines
	Points
)

// IndexType is the component type of an element buffer.
type IndexType int

const (
	UnsignedInt IndexType = iota
	UnsignedShortIndex
)

// Size returns the byte width of one index.
func (t IndexType) Size() int {
	if t == UnsignedShortIndex {
		return 2
	}
	return 4
}

// Device is a graphics context. Texture calls act on the texture bound to
// the active unit, buffer calls on the buffer bound to the target, and
// VertexAttribPointer/ElementArrayBuffer bindings are recorded in the bound
// vertex array.
type Device interface {
	GenTexture() Handle
	BindTexture(tex Handle)
	TexImage2D(img Image)
	GenerateMipmap()
	TexParameters(s Sampler)
	ActiveTexture(unit int)

	GenVertexArray() Handle
	BindVertexArray(vao Handle)
	GenBuffer() Handle
	BindBuffer(target BufferTarget, buf Handle)
	BufferData(target BufferTarget, data []byte, usage Usage)
	VertexAttribPointer(a VertexAttrib)

	DrawElements(mode Primitive, count int, typ IndexType, offset int)
}

// Deleter is implemented by devices that can free objects.
type Deleter interface {
	DeleteTexture(tex Handle)
	DeleteBuffer(buf Handle)
	DeleteVertexArray(vao Handle)
}

// Shader is a linked program whose sampler uniforms are set by name.
type Shader interface {
	Use()
	SetInt(name string, v int32)
}

// Uniform names shared by the built-in programs.
const (
	UniformModel      = "model"
	UniformView       = "view"
	UniformProjection = "projection"
	UniformLightDir   = "lightDir"
)

// Program is a Shader that also takes the transform and light uniforms
// the viewer sets once per frame.
type Program interface {
	Shader
	SetMat4(name string, m mgl32.Mat4)
	SetVec3(name string, v mgl32.Vec3)
}
