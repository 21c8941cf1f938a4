package models

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/taigrr/meshview/pkg/gfx"
	"github.com/taigrr/meshview/pkg/importer"
)

// TextureKind is the sampler name prefix a texture is bound under.
type TextureKind string

const (
	KindDiffuse  TextureKind = "texture_diffuse"
	KindSpecular TextureKind = "texture_specular"
	KindNormal   TextureKind = "texture_normal"
	KindHeight   TextureKind = "texture_height"
)

// Numbered reports whether Mesh.Draw appends a per-kind counter to the
// sampler name.
func (k TextureKind) Numbered() bool {
	switch k {
	case KindDiffuse, KindSpecular, KindNormal, KindHeight:
		return true
	}
	return false
}

// Texture is a device texture and the name the importer reported for it.
type Texture struct {
	ID   gfx.Handle
	Type TextureKind
	Path string
}

// TextureCache maps texture keys to loaded textures. A key is the
// importer texture name, qualified by the scene path for embedded names
// (see TextureKey). Entries are never evicted.
type TextureCache struct {
	byKey map[string]Texture
	order []string
}

// NewTextureCache returns an empty cache.
func NewTextureCache() *TextureCache {
	return &TextureCache{byKey: make(map[string]Texture)}
}

// TextureKey returns the cache key of texture name in the scene at
// scenePath. Embedded names ("*0") only identify an image within one
// scene, so they are prefixed with the scene path.
func TextureKey(scenePath, name string) string {
	if importer.IsEmbeddedName(name) {
		return scenePath + "#" + name
	}
	return name
}

// Get returns the texture stored under key.
func (c *TextureCache) Get(key string) (Texture, bool) {
	t, ok := c.byKey[key]
	return t, ok
}

// Put stores t under key. An existing entry is kept.
func (c *TextureCache) Put(key string, t Texture) {
	if _, ok := c.byKey[key]; ok {
		return
	}
	c.byKey[key] = t
	c.order = append(c.order, key)
}

// Len returns the number of cached textures.
func (c *TextureCache) Len() int {
	return len(c.order)
}

// All returns the cached textures in load order.
func (c *TextureCache) All() []Texture {
	out := make([]Texture, len(c.order))
	for i, k := range c.order {
		out[i] = c.byKey[k]
	}
	return out
}

// TextureSampler is the sampling state every loaded texture gets.
var TextureSampler = gfx.Sampler{
	WrapS:     gfx.WrapRepeat,
	WrapT:     gfx.WrapRepeat,
	MinFilter: gfx.FilterLinearMipmapLinear,
	MagFilter: gfx.FilterLinear,
}

// TextureFromFile loads the image named name from dir into a new texture
// and returns its handle. Any directory part of name is dropped. When the
// image cannot be read the failure is logged and the handle of the empty
// texture is returned.
func TextureFromFile(dev gfx.Device, name, dir string, logger *log.Logger) gfx.Handle {
	return loadTexture(dev, name, dir, nil, logger)
}

// loadTexture is TextureFromFile with embedded texture names ("*0")
// resolved against scene.
func loadTexture(dev gfx.Device, name, dir string, scene *importer.Scene, logger *log.Logger) gfx.Handle {
	if logger == nil {
		logger = log.Default()
	}
	h := dev.GenTexture()

	var (
		src  string
		open func() (io.ReadCloser, error)
	)
	if emb, ok := embeddedTexture(scene, name); ok {
		src = name
		open = func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader(emb.Data)), nil
		}
	} else {
		src = filepath.Join(dir, baseName(name))
		open = func() (io.ReadCloser, error) { return os.Open(src) }
	}

	img, err := readImage(open, logger.With("path", src))
	if err != nil {
		logger.Error("unable to load texture", "path", src, "err", err)
		return h
	}

	dev.BindTexture(h)
	dev.TexImage2D(img)
	dev.GenerateMipmap()
	dev.TexParameters(TextureSampler)
	dev.BindTexture(0)

	logger.Info("loaded texture", "path", src, "width", img.Width, "height", img.Height, "format", img.Format)
	return h
}

func embeddedTexture(scene *importer.Scene, name string) (*importer.EmbeddedTexture, bool) {
	if scene == nil || !importer.IsEmbeddedName(name) {
		return nil, false
	}
	return scene.EmbeddedTexture(name)
}

// baseName strips both slash and backslash separated directories, since
// material files written on other systems use either.
func baseName(name string) string {
	name = strings.ReplaceAll(name, `\`, "/")
	return path.Base(name)
}

func readImage(open func() (io.ReadCloser, error), logger *log.Logger) (gfx.Image, error) {
	rc, err := open()
	if err != nil {
		return gfx.Image{}, err
	}
	defer rc.Close()
	img, err := decodeImage(rc, logger)
	if err != nil {
		return gfx.Image{}, fmt.Errorf("decode: %w", err)
	}
	return img, nil
}
