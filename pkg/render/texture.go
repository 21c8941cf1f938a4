package render

import (
	"fmt"
	"math"

	"github.com/taigrr/meshview/pkg/gfx"
)

// Texture holds a 2D image and its mipmap chain for texture mapping.
// Row 0 of level 0 is sampled at v=0, matching glTexImage2D.
type Texture struct {
	Width   int
	Height  int
	Sampler gfx.Sampler

	levels []mipLevel
}

type mipLevel struct {
	w, h   int
	pixels []Color
}

// DefaultSampler matches the OpenGL defaults for a fresh texture object.
var DefaultSampler = gfx.Sampler{
	WrapS:     gfx.WrapRepeat,
	WrapT:     gfx.WrapRepeat,
	MinFilter: gfx.FilterNearestMipmapLinear,
	MagFilter: gfx.FilterLinear,
}

// NewTexture creates an empty texture with the given dimensions.
func NewTexture(width, height int) *Texture {
	return &Texture{
		Width:   width,
		Height:  height,
		Sampler: DefaultSampler,
		levels: []mipLevel{{
			w:      width,
			h:      height,
			pixels: make([]Color, width*height),
		}},
	}
}

// TextureFromImage expands a tightly packed 1, 3 or 4 channel image into
// a texture. A red image samples as (r, 0, 0, 1).
func TextureFromImage(img gfx.Image) (*Texture, error) {
	n := img.Format.Channels()
	if n == 0 {
		return nil, fmt.Errorf("%w: %v", gfx.ErrUnsupportedChannels, img.Format)
	}
	if len(img.Pix) < img.Width*img.Height*n {
		return nil, fmt.Errorf("image data too short: %d bytes for %dx%dx%d",
			len(img.Pix), img.Width, img.Height, n)
	}

	tex := NewTexture(img.Width, img.Height)
	px := tex.levels[0].pixels
	for i := range px {
		p := img.Pix[i*n:]
		switch n {
		case 1:
			px[i] = Color{R: p[0], A: 255}
		case 3:
			px[i] = Color{R: p[0], G: p[1], B: p[2], A: 255}
		case 4:
			px[i] = Color{R: p[0], G: p[1], B: p[2], A: p[3]}
		}
	}
	return tex, nil
}

// SetPixel sets a pixel of the base level.
func (t *Texture) SetPixel(x, y int, c Color) {
	if x < 0 || x >= t.Width || y < 0 || y >= t.Height {
		return
	}
	t.levels[0].pixels[y*t.Width+x] = c
}

// GetPixel returns a pixel of the base level with bounds checking.
func (t *Texture) GetPixel(x, y int) Color {
	return t.levelPixel(0, x, y)
}

// Levels returns the number of mipmap levels, including the base.
func (t *Texture) Levels() int {
	return len(t.levels)
}

// GenerateMipmaps rebuilds the mipmap chain from the base level with a 2x2
// box filter, down to 1x1.
func (t *Texture) GenerateMipmaps() {
	t.levels = t.levels[:1]
	prev := t.levels[0]
	for prev.w > 1 || prev.h > 1 {
		w, h := max(prev.w/2, 1), max(prev.h/2, 1)
		next := mipLevel{w: w, h: h, pixels: make([]Color, w*h)}
		for y := range h {
			for x := range w {
				x0, y0 := min(2*x, prev.w-1), min(2*y, prev.h-1)
				x1, y1 := min(2*x+1, prev.w-1), min(2*y+1, prev.h-1)
				next.pixels[y*w+x] = average4(
					prev.pixels[y0*prev.w+x0],
					prev.pixels[y0*prev.w+x1],
					prev.pixels[y1*prev.w+x0],
					prev.pixels[y1*prev.w+x1],
				)
			}
		}
		t.levels = append(t.levels, next)
		prev = next
	}
}

func average4(a, b, c, d Color) Color {
	return Color{
		R: uint8((int(a.R) + int(b.R) + int(c.R) + int(d.R) + 2) / 4),
		G: uint8((int(a.G) + int(b.G) + int(c.G) + int(d.G) + 2) / 4),
		B: uint8((int(a.B) + int(b.B) + int(c.B) + int(d.B) + 2) / 4),
		A: uint8((int(a.A) + int(b.A) + int(c.A) + int(d.A) + 2) / 4),
	}
}

// Sample samples the texture at (u, v) for a level of detail lod, where
// lod <= 0 is magnification.
func (t *Texture) Sample(u, v, lod float32) Color {
	if len(t.levels) == 0 || t.Width == 0 || t.Height == 0 {
		return Color{A: 255}
	}
	if lod <= 0 {
		return t.sampleLevel(0, u, v, t.Sampler.MagFilter == gfx.FilterLinear)
	}

	minify := t.Sampler.MinFilter
	linear := minify == gfx.FilterLinear || minify == gfx.FilterLinearMipmapNearest || minify == gfx.FilterLinearMipmapLinear
	// a texture without a complete mip chain samples the base level
	if !minify.UsesMipmaps() || len(t.levels) == 1 {
		return t.sampleLevel(0, u, v, linear)
	}

	maxLevel := float32(len(t.levels) - 1)
	lod = min(lod, maxLevel)
	switch minify {
	case gfx.FilterNearestMipmapNearest, gfx.FilterLinearMipmapNearest:
		return t.sampleLevel(int(lod+0.5), u, v, linear)
	default:
		lo := int(lod)
		hi := min(lo+1, int(maxLevel))
		a := t.sampleLevel(lo, u, v, linear)
		b := t.sampleLevel(hi, u, v, linear)
		return lerpColor(a, b, lod-float32(lo))
	}
}

func (t *Texture) sampleLevel(level int, u, v float32, linear bool) Color {
	l := t.levels[level]
	if linear {
		return t.sampleBilinear(l, level, u, v)
	}
	x := wrapPixelCoord(int(floor32(u*float32(l.w))), l.w, t.Sampler.WrapS)
	y := wrapPixelCoord(int(floor32(v*float32(l.h))), l.h, t.Sampler.WrapT)
	return t.levelPixel(level, x, y)
}

func (t *Texture) sampleBilinear(l mipLevel, level int, u, v float32) Color {
	fx := u*float32(l.w) - 0.5
	fy := v*float32(l.h) - 0.5
	x0 := int(floor32(fx))
	y0 := int(floor32(fy))
	tx := fx - float32(x0)
	ty := fy - float32(y0)

	x1 := wrapPixelCoord(x0+1, l.w, t.Sampler.WrapS)
	y1 := wrapPixelCoord(y0+1, l.h, t.Sampler.WrapT)
	x0 = wrapPixelCoord(x0, l.w, t.Sampler.WrapS)
	y0 = wrapPixelCoord(y0, l.h, t.Sampler.WrapT)

	top := lerpColor(t.levelPixel(level, x0, y0), t.levelPixel(level, x1, y0), tx)
	bot := lerpColor(t.levelPixel(level, x0, y1), t.levelPixel(level, x1, y1), tx)
	return lerpColor(top, bot, ty)
}

func (t *Texture) levelPixel(level, x, y int) Color {
	l := t.levels[level]
	if x < 0 || x >= l.w || y < 0 || y >= l.h {
		return Color{}
	}
	return l.pixels[y*l.w+x]
}

// wrapPixelCoord maps a texel coordinate into [0, size).
func wrapPixelCoord(x, size int, mode gfx.Wrap) int {
	switch mode {
	case gfx.WrapClampToEdge:
		return max(0, min(x, size-1))
	case gfx.WrapMirroredRepeat:
		period := 2 * size
		x %= period
		if x < 0 {
			x += period
		}
		if x >= size {
			x = period - 1 - x
		}
		return x
	default:
		x %= size
		if x < 0 {
			x += size
		}
		return x
	}
}

func floor32(f float32) float32 {
	return float32(math.Floor(float64(f)))
}

// lerpColor linearly interpolates between two colors.
func lerpColor(a, b Color, t float32) Color {
	return Color{
		R: uint8(float32(a.R) + (float32(b.R)-float32(a.R))*t),
		G: uint8(float32(a.G) + (float32(b.G)-float32(a.G))*t),
		B: uint8(float32(a.B) + (float32(b.B)-float32(a.B))*t),
		A: uint8(float32(a.A) + (float32(b.A)-float32(a.A))*t),
	}
}

// MultiplyColor multiplies a color by a scalar (for lighting).
func MultiplyColor(c Color, intensity float32) Color {
	return Color{
		R: uint8(min(255, float32(c.R)*intensity+0.5)),
		G: uint8(min(255, float32(c.G)*intensity+0.5)),
		B: uint8(min(255, float32(c.B)*intensity+0.5)),
		A: c.A,
	}
}

// ModulateColor modulates one color by another (texture * vertex color).
func ModulateColor(a, b Color) Color {
	return Color{
		R: uint8((int(a.R) * int(b.R)) / 255),
		G: uint8((int(a.G) * int(b.G)) / 255),
		B: uint8((int(a.B) * int(b.B)) / 255),
		A: uint8((int(a.A) * int(b.A)) / 255),
	}
}
