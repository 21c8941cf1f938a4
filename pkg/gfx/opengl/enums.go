package opengl

import (
	"github.com/go-gl/gl/v4.1-core/gl"

	"github.com/taigrr/meshview/pkg/gfx"
)

func pixelFormat(f gfx.PixelFormat) (uint32, bool) {
	switch f {
	case gfx.FormatRed:
		return gl.RED, true
	case gfx.FormatRGB:
		return gl.RGB, true
	case gfx.FormatRGBA:
		return gl.RGBA, true
	}
	return 0, false
}

func wrapMode(w gfx.Wrap) int32 {
	switch w {
	case gfx.WrapClampToEdge:
		return gl.CLAMP_TO_EDGE
	case gfx.WrapMirroredRepeat:
		return gl.MIRRORED_REPEAT
	default:
		return gl.REPEAT
	}
}

func filterMode(f gfx.Filter) int32 {
	switch f {
	case gfx.FilterNearest:
		return gl.NEAREST
	case gfx.FilterNearestMipmapNearest:
		return gl.NEAREST_MIPMAP_NEAREST
	case gfx.FilterLinearMipmapNearest:
		return gl.LINEAR_MIPMAP_NEAREST
	case gfx.FilterNearestMipmapLinear:
		return gl.NEAREST_MIPMAP_LINEAR
	case gfx.FilterLinearMipmapLinear:
		return gl.LINEAR_MIPMAP_LINEAR
	default:
		return gl.LINEAR
	}
}

func bufferTarget(t gfx.BufferTarget) uint32 {
	if t == gfx.ElementArrayBuffer {
		return gl.ELEMENT_ARRAY_BUFFER
	}
	return gl.ARRAY_BUFFER
}

func bufferUsage(u gfx.Usage) uint32 {
	switch u {
	case gfx.DynamicDraw:
		return gl.DYNAMIC_DRAW
	case gfx.StreamDraw:
		return gl.STREAM_DRAW
	default:
		return gl.STATIC_DRAW
	}
}

func attribType(t gfx.AttribType) uint32 {
	switch t {
	case gfx.UnsignedByte:
		return gl.UNSIGNED_BYTE
	case gfx.UnsignedShort:
		return gl.UNSIGNED_SHORT
	default:
		return gl.FLOAT
	}
}

func primitive(p gfx.Primitive) uint32 {
	switch p {
	case gfx.Lines:
		return gl.LINES
	case gfx.Points:
		return gl.POINTS
	default:
		return gl.TRIANGLES
	}
}

func indexType(t gfx.IndexType) uint32 {
	if t == gfx.UnsignedShortIndex {
		return gl.UNSIGNED_SHORT
	}
	return gl.UNSIGNED_INT
}
