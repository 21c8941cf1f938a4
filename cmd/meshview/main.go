// meshview - 3D model viewer for the terminal and OpenGL windows.
// View OBJ, glTF and GLB files with their material textures.
//
// Controls:
//
//	Mouse drag  - Rotate model (yaw/pitch)
//	Scroll      - Zoom in/out
//	W/S         - Pitch up/down
//	A/D         - Yaw left/right
//	Q/E         - Roll left/right
//	Space       - Apply random impulse
//	R           - Reset rotation and zoom
//	X           - Toggle wireframe mode (x-ray)
//	L           - Light positioning mode (move mouse, click to set, Esc to cancel)
//	?           - Toggle HUD overlay (terminal only)
//	+/-         - Adjust zoom
//	Esc         - Quit (or cancel light mode)
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/fang"
	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/taigrr/meshview/internal/config"
	"github.com/taigrr/meshview/internal/logging"
	"github.com/taigrr/meshview/pkg/importer"
	"github.com/taigrr/meshview/pkg/watch"
)

var version = "dev"

type options struct {
	configPath string
	backend    string
	fps        int
	width      int
	height     int
	logLevel   string
	logFile    string
	watch      bool
	wireframe  bool
	snapshot   string
}

func main() {
	if err := fang.Execute(context.Background(), newRootCmd(), fang.WithVersion(version)); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var opts options
	cmd := &cobra.Command{
		Use:   "meshview <model.obj|model.gltf|model.glb>",
		Short: "View 3D models in the terminal or an OpenGL window",
		Long:  "View 3D models in the terminal or an OpenGL window.\n\nSupported formats: " + strings.Join(importer.Extensions(), " "),
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := resolveConfig(cmd, opts)
			if err != nil {
				return err
			}
			return run(cmd.Context(), args[0], cfg, opts)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&opts.configPath, "config", "c", "", "config file (default: user config dir/meshview/config.toml)")
	f.StringVarP(&opts.backend, "backend", "b", config.BackendTerminal, "renderer: term or gl")
	f.IntVar(&opts.fps, "fps", 30, "target frames per second")
	f.IntVar(&opts.width, "width", 1280, "window width (gl backend)")
	f.IntVar(&opts.height, "height", 720, "window height (gl backend)")
	f.StringVar(&opts.logLevel, "log-level", "info", "debug, info, warn or error")
	f.StringVar(&opts.logFile, "log-file", "", "write logs to this file instead of stderr")
	f.BoolVarP(&opts.watch, "watch", "w", false, "reload the model when files in its directory change")
	f.BoolVar(&opts.wireframe, "wireframe", false, "start in wireframe mode")
	f.StringVar(&opts.snapshot, "snapshot", "", "render one frame at --width x --height to this PNG and exit")
	return cmd
}

// resolveConfig loads the config file and applies the flags the user set.
func resolveConfig(cmd *cobra.Command, opts options) (config.Config, error) {
	path, optional := opts.configPath, false
	if path == "" {
		p, err := config.DefaultPath()
		if err != nil {
			return config.Default(), nil
		}
		path, optional = p, true
	}
	cfg, err := config.Load(path, optional)
	if err != nil {
		return cfg, err
	}

	f := cmd.Flags()
	if f.Changed("backend") {
		cfg.Backend = opts.backend
	}
	if f.Changed("fps") {
		cfg.FPS = opts.fps
	}
	if f.Changed("width") {
		cfg.Width = opts.width
	}
	if f.Changed("height") {
		cfg.Height = opts.height
	}
	if f.Changed("log-level") {
		cfg.LogLevel = opts.logLevel
	}
	if f.Changed("watch") {
		cfg.Watch = opts.watch
	}
	if f.Changed("wireframe") {
		cfg.Wireframe = opts.wireframe
	}
	return cfg, cfg.Validate()
}

func run(ctx context.Context, path string, cfg config.Config, opts options) error {
	var w io.Writer = os.Stderr
	switch {
	case opts.logFile != "":
		lf, err := os.OpenFile(opts.logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("open log file: %w", err)
		}
		defer lf.Close()
		w = lf
	case cfg.Backend == config.BackendTerminal && opts.snapshot == "":
		// the terminal renderer owns the screen
		w = io.Discard
	}
	logger, err := logging.NewWithWriter(w, cfg.LogLevel, "meshview")
	if err != nil {
		return err
	}

	if opts.snapshot != "" {
		return renderSnapshot(path, opts.snapshot, cfg, logger)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var changes <-chan []string
	if cfg.Watch {
		changes, err = startWatch(ctx, filepath.Dir(path), logger)
		if err != nil {
			return err
		}
	}

	switch cfg.Backend {
	case config.BackendWindow:
		return runWindow(ctx, path, cfg, logger, changes)
	default:
		return runTerminal(ctx, path, cfg, logger, changes)
	}
}

func startWatch(ctx context.Context, dir string, logger *log.Logger) (<-chan []string, error) {
	w, err := watch.New(dir, watch.WithLogger(logger))
	if err != nil {
		return nil, err
	}
	go func() {
		if err := w.Run(ctx); err != nil && ctx.Err() == nil {
			logger.Error("watcher stopped", "err", err)
		}
	}()
	logger.Info("watching for changes", "dir", dir)
	return w.Changes(), nil
}
