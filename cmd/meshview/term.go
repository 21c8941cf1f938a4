package main

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	uv "github.com/charmbracelet/ultraviolet"

	"github.com/taigrr/meshview/internal/config"
	"github.com/taigrr/meshview/pkg/gfx/soft"
	"github.com/taigrr/meshview/pkg/render"
)

const (
	mouseOn  = "\x1b[?1003h\x1b[?1006h" // any-event tracking, SGR encoding
	mouseOff = "\x1b[?1003l\x1b[?1006l"
)

// runTerminal draws the model with the software device into the
// terminal, two framebuffer rows per cell row.
func runTerminal(ctx context.Context, path string, cfg config.Config, logger *log.Logger, changes <-chan []string) error {
	term := uv.DefaultTerminal()

	width, height, err := term.GetSize()
	if err != nil {
		return fmt.Errorf("get terminal size: %w", err)
	}

	fb := render.NewFramebuffer(width, height*2)
	dev := soft.New(soft.WithFramebuffer(fb), soft.WithLogger(logger))
	prog := soft.NewProgram(dev)

	v, err := newViewer(path, cfg, dev, prog, logger)
	if err != nil {
		return err
	}
	logger.Info("terminal renderer ready", "cols", width, "rows", height)

	if err := term.Start(); err != nil {
		return fmt.Errorf("start terminal: %w", err)
	}
	term.EnterAltScreen()
	term.HideCursor()
	if err := term.Resize(width, height); err != nil {
		return fmt.Errorf("resize terminal: %w", err)
	}
	_, _ = term.WriteString(mouseOn)

	defer func() {
		_, _ = term.WriteString(mouseOff)
		term.ExitAltScreen()
		term.ShowCursor()
		if err := term.Shutdown(context.Background()); err != nil {
			logger.Error("shutdown terminal", "err", err)
		}
	}()

	bg := render.RGB(cfg.Background[0], cfg.Background[1], cfg.Background[2])
	fps := newFPSCounter()
	ticker := time.NewTicker(time.Second / time.Duration(cfg.FPS))
	defer ticker.Stop()

	var (
		dragging     bool
		lastX, lastY int
		lastFrame    = time.Now()
		events       = term.Events()
	)

	for {
		select {
		case <-ctx.Done():
			return nil

		case paths, ok := <-changes:
			if !ok {
				changes = nil
				continue
			}
			v.reload(paths)

		case ev, ok := <-events:
			if !ok {
				return nil
			}
			switch ev := ev.(type) {
			case uv.WindowSizeEvent:
				width, height = ev.Width, ev.Height
				term.Erase()
				if err := term.Resize(width, height); err != nil {
					return fmt.Errorf("resize terminal: %w", err)
				}
				fb.Resize(width, height*2)

			case uv.KeyPressEvent:
				if v.press(uv.Key(ev).String()) {
					return nil
				}

			case uv.KeyReleaseEvent:
				v.release(uv.Key(ev).String())

			case uv.MouseClickEvent:
				if !v.click() {
					dragging = true
					lastX, lastY = ev.X, ev.Y
				}

			case uv.MouseReleaseEvent:
				dragging = false

			case uv.MouseMotionEvent:
				if dragging && !v.lightMode {
					v.drag(float64(ev.X-lastX), float64(ev.Y-lastY))
					lastX, lastY = ev.X, ev.Y
				}
				v.pointer(ev.X, ev.Y, width, height)

			case uv.MouseWheelEvent:
				switch ev.Button {
				case uv.MouseWheelUp:
					v.zoomBy(0.9)
				case uv.MouseWheelDown:
					v.zoomBy(1 / 0.9)
				}
			}

		case now := <-ticker.C:
			v.step(now.Sub(lastFrame).Seconds())
			lastFrame = now

			fb.Clear(bg)
			fb.ClearDepth()
			applySoftMode(dev, prog, v.wireframe)
			v.draw(float32(fb.Width) / float32(max(fb.Height, 1)))
			if err := dev.Err(); err != nil {
				logger.Debug("draw", "err", err)
			}

			area := uv.Rect(0, 0, width, height)
			fb.Draw(term, area)
			fps.Tick()
			drawHUD(term, area, v, fps.FPS())
			if err := term.Display(); err != nil {
				return fmt.Errorf("display: %w", err)
			}
		}
	}
}
