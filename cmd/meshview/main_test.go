package main

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taigrr/meshview/internal/config"
)

func TestResolveConfigFlagsOverrideFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("backend = \"gl\"\nfps = 50\nwatch = true\n"), 0o644))

	cmd := newRootCmd()
	require.NoError(t, cmd.ParseFlags([]string{"--config", path, "--fps", "20", "--wireframe"}))

	var opts options
	opts.configPath, _ = cmd.Flags().GetString("config")
	opts.fps, _ = cmd.Flags().GetInt("fps")
	opts.wireframe, _ = cmd.Flags().GetBool("wireframe")

	cfg, err := resolveConfig(cmd, opts)
	require.NoError(t, err)
	assert.Equal(t, config.BackendWindow, cfg.Backend, "unset flags keep file values")
	assert.Equal(t, 20, cfg.FPS)
	assert.True(t, cfg.Watch)
	assert.True(t, cfg.Wireframe)
}

func TestResolveConfigRejectsBadFlag(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, nil, 0o644))

	cmd := newRootCmd()
	require.NoError(t, cmd.ParseFlags([]string{"--backend", "vulkan"}))

	_, err := resolveConfig(cmd, options{configPath: path, backend: "vulkan"})
	assert.ErrorContains(t, err, "vulkan")
}

func TestRootCmdRequiresModel(t *testing.T) {
	cmd := newRootCmd()
	cmd.SetArgs([]string{})
	cmd.SetOut(io.Discard)
	cmd.SetErr(io.Discard)
	assert.Error(t, cmd.Execute())
}
