package main

import (
	"fmt"

	"github.com/charmbracelet/log"

	"github.com/taigrr/meshview/internal/config"
	"github.com/taigrr/meshview/pkg/gfx/soft"
	"github.com/taigrr/meshview/pkg/render"
)

var wireColor = render.RGB(0, 255, 128)

// applySoftMode switches the software device between filled and
// wireframe drawing.
func applySoftMode(dev *soft.Device, prog *soft.Program, wireframe bool) {
	dev.Wireframe = wireframe
	if wireframe {
		prog.SetColor(wireColor)
		return
	}
	prog.SetColor(render.ColorWhite)
}

// renderSnapshot draws one frame of path at the configured window size
// with the software device and writes it to out as a PNG.
func renderSnapshot(path, out string, cfg config.Config, logger *log.Logger) error {
	dev := soft.New(soft.WithFramebuffer(render.NewFramebuffer(cfg.Width, cfg.Height)), soft.WithLogger(logger))
	prog := soft.NewProgram(dev)
	v, err := newViewer(path, cfg, dev, prog, logger)
	if err != nil {
		return err
	}

	fb := dev.Rasterizer().Framebuffer()
	fb.Clear(render.RGB(cfg.Background[0], cfg.Background[1], cfg.Background[2]))
	fb.ClearDepth()
	applySoftMode(dev, prog, v.wireframe)
	v.draw(float32(fb.Width) / float32(fb.Height))
	if err := dev.Err(); err != nil {
		return fmt.Errorf("draw snapshot: %w", err)
	}
	if err := fb.SavePNG(out); err != nil {
		return err
	}
	logger.Info("wrote snapshot", "path", out, "width", fb.Width, "height", fb.Height)
	return nil
}
