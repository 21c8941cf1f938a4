// Package importer reads 3D scene files into a format-neutral node tree of
// meshes and materials.
//
// Supported formats are Wavefront OBJ (with MTL materials) and glTF 2.0
// (.gltf and .glb). Decoders are selected by file extension.
package importer

import (
	"errors"
	"fmt"
	"maps"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"sync"

	"github.com/charmbracelet/log"
)

// PostProcess selects steps applied to a scene after decoding.
type PostProcess uint32

const (
	// Triangulate splits polygon faces into triangle fans.
	Triangulate PostProcess = 1 << iota
	// GenNormals computes flat face normals for meshes without normals.
	GenNormals
	// GenSmoothNormals computes area-weighted vertex normals for meshes
	// without normals. Ignored when GenNormals is also set.
	GenSmoothNormals
	// FlipUVs replaces v with 1-v on every texture coordinate.
	FlipUVs
)

var (
	// ErrUnsupportedFormat is returned when no decoder handles the extension.
	ErrUnsupportedFormat = errors.New("unsupported scene format")
	// ErrNoRoot is returned when a decoder produced no root node.
	ErrNoRoot = errors.New("scene has no root node")
)

// Decoder turns one file format into a Scene.
type Decoder interface {
	Decode(path string) (*Scene, error)
}

// DecoderFunc adapts a function to the Decoder interface.
type DecoderFunc func(path string) (*Scene, error)

// Decode calls f(path).
func (f DecoderFunc) Decode(path string) (*Scene, error) {
	return f(path)
}

var (
	decodersMu sync.RWMutex
	decoders   = map[string]Decoder{}
)

// Register makes a decoder available for files with extension ext
// (including the leading dot, case-insensitive).
func Register(ext string, d Decoder) {
	decodersMu.Lock()
	defer decodersMu.Unlock()
	decoders[strings.ToLower(ext)] = d
}

// Extensions lists the registered extensions in sorted order.
func Extensions() []string {
	decodersMu.RLock()
	defer decodersMu.RUnlock()
	return slices.Sorted(maps.Keys(decoders))
}

// Supported reports whether a decoder is registered for path's extension.
func Supported(path string) bool {
	_, ok := decoderFor(path)
	return ok
}

func decoderFor(path string) (Decoder, bool) {
	decodersMu.RLock()
	defer decodersMu.RUnlock()
	d, ok := decoders[strings.ToLower(filepath.Ext(path))]
	return d, ok
}

func init() {
	Register(".obj", DecoderFunc(decodeOBJ))
	Register(".gltf", DecoderFunc(decodeGLTF))
	Register(".glb", DecoderFunc(decodeGLTF))
}

// Importer reads scene files. The zero value is ready to use and logs to
// log.Default().
type Importer struct {
	Logger *log.Logger

	lastErr error
}

// New returns an importer logging to logger.
func New(logger *log.Logger) *Importer {
	return &Importer{Logger: logger}
}

func (imp *Importer) logger() *log.Logger {
	if imp.Logger != nil {
		return imp.Logger
	}
	return log.Default()
}

// ReadFile decodes the scene at path and applies the post-processing steps
// in flags. A scene is returned even when it is flagged Incomplete.
func (imp *Importer) ReadFile(path string, flags PostProcess) (*Scene, error) {
	scene, err := imp.readFile(path, flags)
	imp.lastErr = err
	return scene, err
}

func (imp *Importer) readFile(path string, flags PostProcess) (*Scene, error) {
	dec, ok := decoderFor(path)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, filepath.Ext(path))
	}
	scene, err := dec.Decode(path)
	if err != nil {
		return nil, err
	}
	if scene.Root == nil {
		return nil, ErrNoRoot
	}
	for _, w := range scene.Warnings {
		imp.logger().Warn("import", "path", path, "warning", w)
	}
	ApplyPostProcess(scene, flags)
	if len(scene.Meshes) == 0 {
		scene.Flags |= FlagIncomplete
	}
	imp.logger().Debug("imported scene",
		"path", path,
		"meshes", len(scene.Meshes),
		"materials", len(scene.Materials),
		"embedded", len(scene.Textures),
	)
	return scene, nil
}

// ErrorString returns the message of the last failed ReadFile call, or ""
// when the last call succeeded.
func (imp *Importer) ErrorString() string {
	if imp.lastErr == nil {
		return ""
	}
	return imp.lastErr.Error()
}

// ReadFile is a convenience wrapper around a zero Importer.
func ReadFile(path string, flags PostProcess) (*Scene, error) {
	var imp Importer
	return imp.ReadFile(path, flags)
}

// EmbeddedName returns the material texture name for embedded texture idx.
func EmbeddedName(idx int) string {
	return "*" + strconv.Itoa(idx)
}

// IsEmbeddedName reports whether a material texture name refers to an
// embedded texture.
func IsEmbeddedName(name string) bool {
	_, ok := embeddedIndex(name)
	return ok
}

func embeddedIndex(name string) (int, bool) {
	if !strings.HasPrefix(name, "*") {
		return 0, false
	}
	idx, err := strconv.Atoi(name[1:])
	if err != nil || idx < 0 {
		return 0, false
	}
	return idx, true
}
