package models

import (
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"

	"github.com/charmbracelet/log"
	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/taigrr/meshview/pkg/gfx"
)

// decodeImage decodes any registered image format into tightly packed
// pixels, bottom row first so that v=0 samples the bottom of the image.
//
// Grayscale images keep one channel and opaque YCbCr (JPEG) images three.
// Other color models are uploaded as RGBA.
func decodeImage(r io.Reader, logger *log.Logger) (gfx.Image, error) {
	src, kind, err := image.Decode(r)
	if err != nil {
		return gfx.Image{}, err
	}
	b := src.Bounds()
	if b.Empty() {
		return gfx.Image{}, fmt.Errorf("%s image has no pixels", kind)
	}

	channels := imageChannels(src)
	format, err := gfx.FormatForChannels(channels)
	if err != nil {
		logger.Warn("promoting texture to rgba", "format", kind, "err", err)
		channels, format = 4, gfx.FormatRGBA
	}

	out := gfx.Image{
		Width:  b.Dx(),
		Height: b.Dy(),
		Format: format,
		Pix:    make([]byte, b.Dx()*b.Dy()*channels),
	}
	switch channels {
	case 1:
		gray := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
		draw.Draw(gray, gray.Bounds(), src, b.Min, draw.Src)
		flipRows(out.Pix, gray.Pix, gray.Stride, b.Dx(), b.Dy(), 1, 1)
	default:
		rgba := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
		draw.Draw(rgba, rgba.Bounds(), src, b.Min, draw.Src)
		flipRows(out.Pix, rgba.Pix, rgba.Stride, b.Dx(), b.Dy(), 4, channels)
	}
	return out, nil
}

// imageChannels returns the channel count of the decoded color model, or
// 0 when it has no direct GPU equivalent.
func imageChannels(img image.Image) int {
	switch img.(type) {
	case *image.Gray, *image.Gray16:
		return 1
	case *image.YCbCr:
		return 3
	case *image.RGBA, *image.NRGBA, *image.RGBA64, *image.NRGBA64, *image.NYCbCrA:
		return 4
	default:
		return 0
	}
}

// flipRows copies h rows of w pixels from src (srcChannels per pixel) into
// dst (dstChannels per pixel) in reverse row order.
func flipRows(dst, src []byte, stride, w, h, srcChannels, dstChannels int) {
	for y := range h {
		srow := src[y*stride:]
		drow := dst[(h-1-y)*w*dstChannels:]
		if srcChannels == dstChannels {
			copy(drow[:w*dstChannels], srow[:w*srcChannels])
			continue
		}
		for x := range w {
			copy(drow[x*dstChannels:x*dstChannels+dstChannels], srow[x*srcChannels:])
		}
	}
}
