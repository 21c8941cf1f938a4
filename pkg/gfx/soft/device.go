// Package soft implements gfx.Device on the CPU.
//
// Objects live in Go maps keyed by handle, and draws run a fixed vertex
// and fragment stage (see Program) through render.Rasterizer. Without a
// framebuffer the device only records draws, which makes it usable as a
// headless test double.
package soft

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"github.com/charmbracelet/log"
	"github.com/go-gl/mathgl/mgl32"

	"github.com/taigrr/meshview/pkg/gfx"
	"github.com/taigrr/meshview/pkg/render"
)

// MaxTextureUnits is the number of texture units a Device exposes.
const MaxTextureUnits = 16

var (
	// ErrInvalidOperation is reported for calls that act on missing bindings.
	ErrInvalidOperation = errors.New("invalid operation")
	// ErrInvalidValue is reported for out of range arguments.
	ErrInvalidValue = errors.New("invalid value")
)

// Stats counts device work since the last ResetStats.
type Stats struct {
	DrawCalls      int
	Indices        int
	CulledDraws    int
	TextureUploads int
	BufferUploads  int
}

// DrawCall records one DrawElements call.
type DrawCall struct {
	Mode     gfx.Primitive
	Count    int
	Type     gfx.IndexType
	Offset   int
	VAO      gfx.Handle
	Textures [MaxTextureUnits]gfx.Handle
	Samplers map[string]int32 // sampler uniforms of the current program
}

type texture struct {
	tex     *render.Texture // nil until TexImage2D
	sampler gfx.Sampler
}

type attrib struct {
	gfx.VertexAttrib
	buffer gfx.Handle
}

type vertexArray struct {
	attribs  map[uint32]attrib
	elements gfx.Handle
}

// Device is a software gfx.Device.
type Device struct {
	logger *log.Logger
	raster *render.Rasterizer

	// Wireframe draws triangle edges instead of filled triangles.
	Wireframe bool
	// Record keeps every DrawCall in Draws.
	Record bool
	Draws  []DrawCall

	next     gfx.Handle
	textures map[gfx.Handle]*texture
	buffers  map[gfx.Handle][]byte
	vaos     map[gfx.Handle]*vertexArray

	units       [MaxTextureUnits]gfx.Handle
	activeUnit  int
	arrayBuffer gfx.Handle
	boundVAO    gfx.Handle
	program     *Program

	stats Stats
	err   error
}

// Option configures a Device.
type Option func(*Device)

// WithLogger sets the logger used for device errors.
func WithLogger(l *log.Logger) Option {
	return func(d *Device) { d.logger = l }
}

// WithFramebuffer makes draws rasterize into fb.
func WithFramebuffer(fb *render.Framebuffer) Option {
	return func(d *Device) { d.raster = render.NewRasterizer(fb) }
}

// WithRecording keeps a DrawCall for every draw.
func WithRecording() Option {
	return func(d *Device) { d.Record = true }
}

// New creates a device. Without WithFramebuffer draws are only counted.
func New(opts ...Option) *Device {
	d := &Device{
		logger:   log.Default(),
		textures: make(map[gfx.Handle]*texture),
		buffers:  make(map[gfx.Handle][]byte),
		vaos:     make(map[gfx.Handle]*vertexArray),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Rasterizer returns the rasterizer, or nil for a headless device.
func (d *Device) Rasterizer() *render.Rasterizer {
	return d.raster
}

// Stats returns the counters since the last ResetStats.
func (d *Device) Stats() Stats {
	return d.stats
}

// ResetStats zeroes the counters and drops recorded draws.
func (d *Device) ResetStats() {
	d.stats = Stats{}
	d.Draws = d.Draws[:0]
	if d.raster != nil {
		d.raster.ResetStats()
	}
}

// Err returns and clears the first error recorded since the last call.
func (d *Device) Err() error {
	err := d.err
	d.err = nil
	return err
}

func (d *Device) fail(err error, msg string, keyvals ...any) {
	d.logger.Warn(msg, append(keyvals, "err", err)...)
	if d.err == nil {
		d.err = fmt.Errorf("%s: %w", msg, err)
	}
}

func (d *Device) gen() gfx.Handle {
	d.next++
	return d.next
}

// GenTexture implements gfx.Device.
func (d *Device) GenTexture() gfx.Handle {
	h := d.gen()
	d.textures[h] = &texture{sampler: render.DefaultSampler}
	return h
}

// BindTexture implements gfx.Device.
func (d *Device) BindTexture(tex gfx.Handle) {
	if _, ok := d.textures[tex]; !ok && tex != 0 {
		d.fail(ErrInvalidOperation, "bind texture", "handle", tex)
		return
	}
	d.units[d.activeUnit] = tex
}

func (d *Device) boundTexture(op string) *texture {
	t := d.textures[d.units[d.activeUnit]]
	if t == nil {
		d.fail(ErrInvalidOperation, op, "unit", d.activeUnit)
	}
	return t
}

// TexImage2D implements gfx.Device.
func (d *Device) TexImage2D(img gfx.Image) {
	t := d.boundTexture("tex image 2d")
	if t == nil {
		return
	}
	tex, err := render.TextureFromImage(img)
	if err != nil {
		d.fail(err, "tex image 2d")
		return
	}
	tex.Sampler = t.sampler
	t.tex = tex
	d.stats.TextureUploads++
}

// GenerateMipmap implements gfx.Device.
func (d *Device) GenerateMipmap() {
	t := d.boundTexture("generate mipmap")
	if t == nil || t.tex == nil {
		return
	}
	t.tex.GenerateMipmaps()
}

// TexParameters implements gfx.Device.
func (d *Device) TexParameters(s gfx.Sampler) {
	t := d.boundTexture("tex parameters")
	if t == nil {
		return
	}
	t.sampler = s
	if t.tex != nil {
		t.tex.Sampler = s
	}
}

// ActiveTexture implements gfx.Device.
func (d *Device) ActiveTexture(unit int) {
	if unit < 0 || unit >= MaxTextureUnits {
		d.fail(ErrInvalidValue, "active texture", "unit", unit)
		return
	}
	d.activeUnit = unit
}

// Texture returns the texture stored under h. ok is false for unknown
// handles; tex is nil for a texture that never received pixels.
func (d *Device) Texture(h gfx.Handle) (tex *render.Texture, ok bool) {
	t, ok := d.textures[h]
	if !ok {
		return nil, false
	}
	return t.tex, true
}

// BoundTexture returns the texture bound to unit.
func (d *Device) BoundTexture(unit int) gfx.Handle {
	if unit < 0 || unit >= MaxTextureUnits {
		return 0
	}
	return d.units[unit]
}

// ActiveUnit returns the active texture unit.
func (d *Device) ActiveUnit() int {
	return d.activeUnit
}

// GenVertexArray implements gfx.Device.
func (d *Device) GenVertexArray() gfx.Handle {
	h := d.gen()
	d.vaos[h] = &vertexArray{attribs: make(map[uint32]attrib)}
	return h
}

// BindVertexArray implements gfx.Device.
func (d *Device) BindVertexArray(vao gfx.Handle) {
	if _, ok := d.vaos[vao]; !ok && vao != 0 {
		d.fail(ErrInvalidOperation, "bind vertex array", "handle", vao)
		return
	}
	d.boundVAO = vao
}

// BoundVertexArray returns the bound vertex array.
func (d *Device) BoundVertexArray() gfx.Handle {
	return d.boundVAO
}

// GenBuffer implements gfx.Device.
func (d *Device) GenBuffer() gfx.Handle {
	h := d.gen()
	d.buffers[h] = nil
	return h
}

// BindBuffer implements gfx.Device. Element buffer bindings are stored in
// the bound vertex array.
func (d *Device) BindBuffer(target gfx.BufferTarget, buf gfx.Handle) {
	if _, ok := d.buffers[buf]; !ok && buf != 0 {
		d.fail(ErrInvalidOperation, "bind buffer", "handle", buf)
		return
	}
	switch target {
	case gfx.ArrayBuffer:
		d.arrayBuffer = buf
	case gfx.ElementArrayBuffer:
		vao := d.vaos[d.boundVAO]
		if vao == nil {
			d.fail(ErrInvalidOperation, "bind element buffer without vertex array")
			return
		}
		vao.elements = buf
	}
}

// BufferData implements gfx.Device. The data is copied.
func (d *Device) BufferData(target gfx.BufferTarget, data []byte, _ gfx.Usage) {
	var h gfx.Handle
	switch target {
	case gfx.ArrayBuffer:
		h = d.arrayBuffer
	case gfx.ElementArrayBuffer:
		if vao := d.vaos[d.boundVAO]; vao != nil {
			h = vao.elements
		}
	}
	if h == 0 {
		d.fail(ErrInvalidOperation, "buffer data with no buffer bound", "target", target)
		return
	}
	d.buffers[h] = append([]byte(nil), data...)
	d.stats.BufferUploads++
}

// Buffer returns the contents of buffer h.
func (d *Device) Buffer(h gfx.Handle) []byte {
	return d.buffers[h]
}

// VertexAttribPointer implements gfx.Device.
func (d *Device) VertexAttribPointer(a gfx.VertexAttrib) {
	vao := d.vaos[d.boundVAO]
	if vao == nil || d.arrayBuffer == 0 {
		d.fail(ErrInvalidOperation, "vertex attrib pointer", "location", a.Location)
		return
	}
	vao.attribs[a.Location] = attrib{VertexAttrib: a, buffer: d.arrayBuffer}
}

// Attrib returns the attribute bound at location in vao.
func (d *Device) Attrib(vao gfx.Handle, location uint32) (gfx.VertexAttrib, bool) {
	v := d.vaos[vao]
	if v == nil {
		return gfx.VertexAttrib{}, false
	}
	a, ok := v.attribs[location]
	return a.VertexAttrib, ok
}

// DrawElements implements gfx.Device.
func (d *Device) DrawElements(mode gfx.Primitive, count int, typ gfx.IndexType, offset int) {
	vao := d.vaos[d.boundVAO]
	if vao == nil {
		d.fail(ErrInvalidOperation, "draw elements without vertex array")
		return
	}
	d.stats.DrawCalls++
	d.stats.Indices += count

	if d.Record {
		call := DrawCall{
			Mode:     mode,
			Count:    count,
			Type:     typ,
			Offset:   offset,
			VAO:      d.boundVAO,
			Textures: d.units,
		}
		if d.program != nil {
			call.Samplers = d.program.Ints()
		}
		d.Draws = append(d.Draws, call)
	}

	if d.raster == nil || d.program == nil {
		return
	}
	indices, err := d.readIndices(vao, count, typ, offset)
	if err != nil {
		d.fail(err, "draw elements")
		return
	}
	d.rasterize(vao, mode, indices)
}

func (d *Device) readIndices(vao *vertexArray, count int, typ gfx.IndexType, offset int) ([]uint32, error) {
	data := d.buffers[vao.elements]
	size := typ.Size()
	if offset < 0 || offset+count*size > len(data) {
		return nil, fmt.Errorf("%w: %d indices at offset %d exceed element buffer of %d bytes",
			ErrInvalidValue, count, offset, len(data))
	}
	out := make([]uint32, count)
	for i := range out {
		p := data[offset+i*size:]
		if typ == gfx.UnsignedShortIndex {
			out[i] = uint32(binary.LittleEndian.Uint16(p))
		} else {
			out[i] = binary.LittleEndian.Uint32(p)
		}
	}
	return out, nil
}

// fetch reads up to four float components of attribute location for
// vertex i. Missing attributes read as zero.
func (d *Device) fetch(vao *vertexArray, location uint32, i uint32) (v [4]float32) {
	a, ok := vao.attribs[location]
	if !ok {
		return v
	}
	data := d.buffers[a.buffer]
	compSize := 4
	switch a.Type {
	case gfx.UnsignedByte:
		compSize = 1
	case gfx.UnsignedShort:
		compSize = 2
	}
	stride := a.Stride
	if stride == 0 {
		stride = a.Size * compSize
	}
	base := a.Offset + int(i)*stride
	if base < 0 || base+a.Size*compSize > len(data) {
		return v
	}
	for c := 0; c < a.Size && c < 4; c++ {
		p := data[base+c*compSize:]
		switch a.Type {
		case gfx.UnsignedByte:
			v[c] = float32(p[0])
			if a.Normalized {
				v[c] /= math.MaxUint8
			}
		case gfx.UnsignedShort:
			v[c] = float32(binary.LittleEndian.Uint16(p))
			if a.Normalized {
				v[c] /= math.MaxUint16
			}
		default:
			v[c] = math.Float32frombits(binary.LittleEndian.Uint32(p))
		}
	}
	return v
}

func (d *Device) rasterize(vao *vertexArray, mode gfx.Primitive, indices []uint32) {
	prog := d.program
	mvp := prog.mvp()
	cache := make(map[uint32]render.ClipVertex, len(indices))
	bounds := render.EmptyAABB()
	for _, idx := range indices {
		if _, ok := cache[idx]; ok {
			continue
		}
		pos := d.fetch(vao, 0, idx)
		nrm := d.fetch(vao, 1, idx)
		uv := d.fetch(vao, 2, idx)
		p := mgl32.Vec3{pos[0], pos[1], pos[2]}
		cache[idx] = prog.vertex(mvp, p, mgl32.Vec3{nrm[0], nrm[1], nrm[2]}, mgl32.Vec2{uv[0], uv[1]})
		bounds = bounds.Extend(mgl32.TransformCoordinate(p, prog.model))
	}

	frustum := render.NewFrustumFromMatrix(prog.projection.Mul4(prog.view))
	if !bounds.IsEmpty() && !frustum.IntersectAABB(bounds) {
		d.stats.CulledDraws++
		return
	}

	tex := d.diffuseTexture()
	base := prog.color
	switch mode {
	case gfx.Points:
		for _, i := range indices {
			d.raster.DrawPoint(cache[i], base)
		}
	case gfx.Lines:
		for i := 0; i+1 < len(indices); i += 2 {
			d.raster.DrawLine(cache[indices[i]], cache[indices[i+1]], base)
		}
	default:
		for i := 0; i+2 < len(indices); i += 3 {
			tri := [3]render.ClipVertex{cache[indices[i]], cache[indices[i+1]], cache[indices[i+2]]}
			if d.Wireframe {
				d.raster.DrawTriangleEdges(tri, base)
				continue
			}
			d.raster.DrawTriangle(tri, tex, base)
		}
	}
}

// diffuseTexture returns the texture the program samples for base color,
// or nil when none is bound or it has no pixels.
func (d *Device) diffuseTexture() *render.Texture {
	unit, ok := d.program.ints[d.program.DiffuseSampler]
	if !ok || unit < 0 || int(unit) >= MaxTextureUnits {
		return nil
	}
	t := d.textures[d.units[unit]]
	if t == nil {
		return nil
	}
	return t.tex
}

// DeleteTexture implements gfx.Deleter. Units bound to tex are unbound.
func (d *Device) DeleteTexture(tex gfx.Handle) {
	delete(d.textures, tex)
	for i, h := range d.units {
		if h == tex {
			d.units[i] = 0
		}
	}
}

// DeleteBuffer implements gfx.Deleter.
func (d *Device) DeleteBuffer(buf gfx.Handle) {
	delete(d.buffers, buf)
	if d.arrayBuffer == buf {
		d.arrayBuffer = 0
	}
}

// DeleteVertexArray implements gfx.Deleter.
func (d *Device) DeleteVertexArray(vao gfx.Handle) {
	delete(d.vaos, vao)
	if d.boundVAO == vao {
		d.boundVAO = 0
	}
}

// Live returns the number of textures, buffers and vertex arrays that
// have not been deleted.
func (d *Device) Live() (textures, buffers, vaos int) {
	return len(d.textures), len(d.buffers), len(d.vaos)
}

var (
	_ gfx.Device  = (*Device)(nil)
	_ gfx.Deleter = (*Device)(nil)
)
