package watch

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsAsset(t *testing.T) {
	for name, want := range map[string]bool{
		"model.obj":   true,
		"model.GLB":   true,
		"scene.gltf":  true,
		"scene.mtl":   true,
		"diffuse.PNG": true,
		"photo.jpeg":  true,
		"notes.txt":   false,
		"model.obj~":  false,
		"Makefile":    false,
	} {
		assert.Equal(t, want, IsAsset(name), name)
	}
}

func TestWatcherBatchesEvents(t *testing.T) {
	dir := t.TempDir()
	w, err := New(dir, WithDelay(50*time.Millisecond))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	model := filepath.Join(dir, "model.obj")
	tex := filepath.Join(dir, "tex.png")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(model, []byte("v 0 0 0\n"), 0o644))
	require.NoError(t, os.WriteFile(model, []byte("v 1 0 0\n"), 0o644))
	require.NoError(t, os.WriteFile(tex, []byte("png"), 0o644))

	select {
	case batch := <-w.Changes():
		assert.Equal(t, []string{model, tex}, batch)
	case <-time.After(5 * time.Second):
		t.Fatal("no change batch")
	}

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
	_, open := <-w.Changes()
	assert.False(t, open, "changes closed after Run")
}

func TestNewMissingDir(t *testing.T) {
	_, err := New(filepath.Join(t.TempDir(), "absent"))
	assert.Error(t, err)
}
