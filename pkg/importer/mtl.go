package importer

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-gl/mathgl/mgl32"
)

func (dec *objDecoder) loadMatlib(name string) {
	path := name
	if !filepath.IsAbs(path) {
		path = filepath.Join(dec.dir, name)
	}
	f, err := os.Open(path)
	if err != nil {
		dec.appendWarn(mtlType, "cannot open material library: "+err.Error())
		return
	}
	defer f.Close()

	dec.mtlCurrent = nil
	if err := dec.parse(f, dec.parseMtlLine); err != nil {
		dec.appendWarn(mtlType, err.Error())
	}
}

// mtlTextureKeys maps MTL map statements to texture slots.
var mtlTextureKeys = map[string]TextureType{
	"map_kd":   TextureDiffuse,
	"map_ks":   TextureSpecular,
	"map_ka":   TextureAmbient,
	"map_ke":   TextureEmissive,
	"map_bump": TextureHeight,
	"bump":     TextureHeight,
	"map_kn":   TextureNormals,
	"norm":     TextureNormals,
	"map_ns":   TextureShininess,
	"map_d":    TextureOpacity,
	"disp":     TextureDisplacement,
	"refl":     TextureReflection,
}

func (dec *objDecoder) parseMtlLine(fields []string) error {
	key := strings.ToLower(fields[0])
	if key == "newmtl" {
		if len(fields) < 2 {
			return dec.formatError("newmtl with no fields")
		}
		dec.mtlCurrent = dec.material(strings.Join(fields[1:], " "))
		return nil
	}
	if dec.mtlCurrent == nil {
		return dec.formatError(key + " before newmtl")
	}
	mat := dec.mtlCurrent

	if t, ok := mtlTextureKeys[key]; ok {
		name := mtlTextureName(fields[1:])
		if name == "" {
			return dec.formatError(key + " with no file name")
		}
		mat.AddTexture(t, name)
		return nil
	}

	switch key {
	case "kd", "ka", "ks", "ke":
		c, err := dec.parseVec(fields[1:], 3)
		if err != nil {
			return err
		}
		color := mgl32.Vec4{c[0], c[1], c[2], 1}
		switch key {
		case "kd":
			mat.Diffuse = color
		case "ka":
			mat.Ambient = color
		case "ks":
			mat.Specular = color
		case "ke":
			mat.Emissive = color
		}
	case "ns":
		v, err := dec.parseVec(fields[1:], 1)
		if err != nil {
			return err
		}
		mat.Shininess = v[0]
	case "d":
		v, err := dec.parseVec(fields[1:], 1)
		if err != nil {
			return err
		}
		mat.Opacity = v[0]
	case "tr":
		v, err := dec.parseVec(fields[1:], 1)
		if err != nil {
			return err
		}
		mat.Opacity = 1 - v[0]
	case "ni", "illum", "tf", "pr", "pm", "ps", "pc", "pcr", "aniso", "anisor":
		// recognized but unused
	default:
		dec.appendWarn(mtlType, "field not supported: "+fields[0])
	}
	return nil
}

// mtlOptionArgs is the number of arguments taken by each texture map option.
var mtlOptionArgs = map[string]int{
	"-blendu":  1,
	"-blendv":  1,
	"-boost":   1,
	"-mm":      2,
	"-o":       3,
	"-s":       3,
	"-t":       3,
	"-texres":  1,
	"-clamp":   1,
	"-bm":      1,
	"-imfchan": 1,
	"-type":    1,
	"-cc":      1,
}

// mtlTextureName strips map options and returns the file name, which may
// contain spaces.
func mtlTextureName(fields []string) string {
	i := 0
	for i < len(fields) {
		n, ok := mtlOptionArgs[strings.ToLower(fields[i])]
		if !ok {
			break
		}
		i++
		// numeric options may take fewer arguments than the maximum
		for j := 0; j < n && i < len(fields); j++ {
			if _, err := strconv.ParseFloat(fields[i], 64); err != nil && j > 0 {
				break
			}
			i++
		}
	}
	return strings.Join(fields[i:], " ")
}
