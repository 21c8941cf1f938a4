package main

import (
	"context"
	"fmt"
	"path/filepath"
	"runtime"

	"github.com/charmbracelet/log"
	"github.com/go-gl/glfw/v3.3/glfw"

	"github.com/taigrr/meshview/internal/config"
	"github.com/taigrr/meshview/pkg/gfx/opengl"
)

// runWindow draws the model in a GLFW window with an OpenGL 4.1 core
// context.
func runWindow(ctx context.Context, path string, cfg config.Config, logger *log.Logger, changes <-chan []string) error {
	// GL calls must stay on the thread that owns the context
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	if err := glfw.Init(); err != nil {
		return fmt.Errorf("init glfw: %w", err)
	}
	defer glfw.Terminate()

	glfw.WindowHint(glfw.ContextVersionMajor, 4)
	glfw.WindowHint(glfw.ContextVersionMinor, 1)
	glfw.WindowHint(glfw.OpenGLProfile, glfw.OpenGLCoreProfile)
	glfw.WindowHint(glfw.OpenGLForwardCompatible, glfw.True)

	title := "meshview - " + filepath.Base(path)
	win, err := glfw.CreateWindow(cfg.Width, cfg.Height, title, nil, nil)
	if err != nil {
		return fmt.Errorf("create window: %w", err)
	}
	defer win.Destroy()
	win.MakeContextCurrent()
	glfw.SwapInterval(1)

	version, err := opengl.Init()
	if err != nil {
		return err
	}
	logger.Info("opengl ready", "version", version)

	dev := opengl.NewDevice(logger)
	prog, err := opengl.NewModelProgram()
	if err != nil {
		return err
	}
	defer prog.Delete()

	v, err := newViewer(path, cfg, dev, prog, logger)
	if err != nil {
		return err
	}

	var (
		dragging     bool
		lastX, lastY float64
	)
	win.SetKeyCallback(func(w *glfw.Window, key glfw.Key, scancode int, action glfw.Action, mods glfw.ModifierKey) {
		name := keyName(key, scancode, mods)
		switch action {
		case glfw.Press, glfw.Repeat:
			if v.press(name) {
				w.SetShouldClose(true)
			}
		case glfw.Release:
			v.release(name)
		}
	})
	win.SetMouseButtonCallback(func(w *glfw.Window, button glfw.MouseButton, action glfw.Action, _ glfw.ModifierKey) {
		if button != glfw.MouseButtonLeft {
			return
		}
		switch action {
		case glfw.Press:
			if !v.click() {
				dragging = true
				lastX, lastY = w.GetCursorPos()
			}
		case glfw.Release:
			dragging = false
		}
	})
	win.SetCursorPosCallback(func(w *glfw.Window, x, y float64) {
		if dragging && !v.lightMode {
			// window pixels are finer than terminal cells
			v.drag((x-lastX)/8, (y-lastY)/8)
			lastX, lastY = x, y
		}
		width, height := w.GetSize()
		v.pointer(int(x), int(y), width, height)
	})
	win.SetScrollCallback(func(_ *glfw.Window, _, yoff float64) {
		switch {
		case yoff > 0:
			v.zoomBy(0.9)
		case yoff < 0:
			v.zoomBy(1 / 0.9)
		}
	})

	bg := cfg.Background
	fps := newFPSCounter()
	last := glfw.GetTime()

	for !win.ShouldClose() {
		select {
		case <-ctx.Done():
			return nil
		case paths, ok := <-changes:
			if !ok {
				changes = nil
				continue
			}
			v.reload(paths)
		default:
		}

		now := glfw.GetTime()
		v.step(now - last)
		last = now

		fbw, fbh := win.GetFramebufferSize()
		dev.Viewport(fbw, fbh)
		dev.Clear(float32(bg[0])/255, float32(bg[1])/255, float32(bg[2])/255)
		dev.SetWireframe(v.wireframe)
		v.draw(float32(fbw) / float32(max(fbh, 1)))
		if err := dev.Err(); err != nil {
			logger.Warn("draw", "err", err)
		}

		win.SwapBuffers()
		glfw.PollEvents()

		if fps.Tick() {
			win.SetTitle(fmt.Sprintf("%s (%.0f fps, %d polys)", title, fps.FPS(), v.model.Stats().Triangles))
		}
	}
	return nil
}

// keyName maps a GLFW key to the names the viewer understands.
func keyName(key glfw.Key, scancode int, mods glfw.ModifierKey) string {
	switch key {
	case glfw.KeyEscape:
		return "esc"
	case glfw.KeySpace:
		return "space"
	case glfw.KeyUp:
		return "up"
	case glfw.KeyDown:
		return "down"
	case glfw.KeyLeft:
		return "left"
	case glfw.KeyRight:
		return "right"
	case glfw.KeyKPAdd:
		return "+"
	case glfw.KeyKPSubtract:
		return "-"
	}
	name := glfw.GetKeyName(key, scancode)
	if mods&glfw.ModControl != 0 && name == "c" {
		return "ctrl+c"
	}
	if mods&glfw.ModShift != 0 {
		switch name {
		case "/":
			return "?"
		case "=":
			return "+"
		}
	}
	return name
}
