package main

import (
	"fmt"
	"image/color"
	"path/filepath"
	"time"

	uv "github.com/charmbracelet/ultraviolet"
)

var (
	hudBg     = color.RGBA{0, 0, 0, 255}
	hudWhite  = color.RGBA{255, 255, 255, 255}
	hudGreen  = color.RGBA{80, 250, 123, 255}
	hudCyan   = color.RGBA{139, 233, 253, 255}
	hudYellow = color.RGBA{241, 250, 140, 255}
)

// fpsCounter measures frames per second over one second windows.
type fpsCounter struct {
	fps    float64
	frames int
	since  time.Time
}

func newFPSCounter() *fpsCounter {
	return &fpsCounter{since: time.Now()}
}

// Tick counts a frame and reports whether the rate was recomputed.
func (c *fpsCounter) Tick() bool {
	c.frames++
	elapsed := time.Since(c.since)
	if elapsed < time.Second {
		return false
	}
	c.fps = float64(c.frames) / elapsed.Seconds()
	c.frames = 0
	c.since = time.Now()
	return true
}

func (c *fpsCounter) FPS() float64 {
	return c.fps
}

// drawText writes s on row y starting at column x, clipped to area.
func drawText(scr uv.Screen, area uv.Rectangle, x, y int, s string, style uv.Style) {
	if y < area.Min.Y || y >= area.Max.Y {
		return
	}
	for _, r := range s {
		if x >= area.Max.X {
			return
		}
		if x >= area.Min.X {
			scr.SetCell(x, y, &uv.Cell{Content: string(r), Width: 1, Style: style})
		}
		x++
	}
}

// drawHUD overlays the top and bottom rows of area with model and view
// status.
func drawHUD(scr uv.Screen, area uv.Rectangle, v *viewer, fps float64) {
	top, bottom := area.Min.Y, area.Max.Y-1
	width := area.Dx()

	if v.lightMode {
		msg := " LIGHT MODE - move mouse to aim, click to set, esc to cancel "
		drawText(scr, area, area.Min.X+max((width-len(msg))/2, 0), bottom, msg,
			uv.Style{Fg: hudYellow, Bg: hudBg, Attrs: uv.AttrBold})
		return
	}
	if !v.showHUD {
		return
	}

	st := v.model.Stats()
	drawText(scr, area, area.Min.X, top, fmt.Sprintf(" %.0f FPS ", fps), uv.Style{Fg: hudGreen, Bg: hudBg})

	title := " " + filepath.Base(v.path) + " "
	drawText(scr, area, area.Min.X+max((width-len(title))/2, 0), top, title,
		uv.Style{Fg: hudWhite, Bg: hudBg, Attrs: uv.AttrBold})

	polys := fmt.Sprintf(" %d polys %d meshes ", st.Triangles, st.Meshes)
	drawText(scr, area, area.Max.X-len(polys), top, polys, uv.Style{Fg: hudCyan, Bg: hudBg})

	wire := "[ ]"
	if v.wireframe {
		wire = "[x]"
	}
	drawText(scr, area, area.Min.X, bottom, " "+wire+" X-ray (wireframe) ", uv.Style{Fg: hudWhite, Bg: hudBg})

	hint := " L: position light "
	drawText(scr, area, area.Max.X-len(hint), bottom, hint,
		uv.Style{Fg: hudYellow, Bg: hudBg, Attrs: uv.AttrFaint})
}
