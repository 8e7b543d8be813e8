package otshape

import (
	"sync"

	"github.com/npillmayer/otype/internal/fontload"
	"github.com/npillmayer/otype/ot"
	"github.com/npillmayer/otype/otlayout"
)

// Face is a shaping-ready font: the parsed table structures plus the
// lookup engine operating on them. A Face is immutable and safe for
// concurrent use; per-size state lives in ScaledFace.
type Face struct {
	otf    *ot.Font
	engine *otlayout.Engine

	mu     sync.Mutex
	scaled map[scaleKey]*ScaledFace
}

type scaleKey struct {
	points float64
	dpi    float64
}

// Open loads and parses an OpenType font file.
func Open(fontfile string) (*Face, error) {
	sf, err := fontload.LoadOpenTypeFont(fontfile)
	if err != nil {
		return nil, err
	}
	return newFace(sf, 0)
}

// Parse parses an OpenType font from memory.
func Parse(fbytes []byte) (*Face, error) {
	sf, err := fontload.ParseOpenTypeFont(fbytes)
	if err != nil {
		return nil, err
	}
	return newFace(sf, 0)
}

// ParseCollection parses one font of an OpenType collection (TTC) from
// memory, selected by face index.
func ParseCollection(fbytes []byte, faceIndex int) (*Face, error) {
	sf, err := fontload.ParseOpenTypeCollection(fbytes, faceIndex)
	if err != nil {
		return nil, err
	}
	return newFace(sf, faceIndex)
}

func newFace(sf *fontload.ScalableFont, faceIndex int) (*Face, error) {
	otf, err := ot.ParseCollection(sf.Binary, faceIndex)
	if err != nil {
		return nil, err
	}
	otf.F = sf
	tracer().Infof("loaded font %s", sf.Fontname)
	return &Face{
		otf:    otf,
		engine: otlayout.NewEngine(otf),
		scaled: make(map[scaleKey]*ScaledFace),
	}, nil
}

// Font returns the parsed font tables.
func (f *Face) Font() *ot.Font {
	return f.otf
}

// Fontname returns the font's full name.
func (f *Face) Fontname() string {
	if f.otf.F != nil {
		return f.otf.F.Fontname
	}
	return ""
}

// Scale binds the face to a point size and resolution. Scaled faces are
// cached per (points, dpi) pair.
func (f *Face) Scale(points, dpi float64) *ScaledFace {
	if points <= 0 {
		points = 10
	}
	if dpi <= 0 {
		dpi = 72
	}
	key := scaleKey{points: points, dpi: dpi}
	f.mu.Lock()
	defer f.mu.Unlock()
	if sf, ok := f.scaled[key]; ok {
		return sf
	}
	upem := float64(f.otf.UnitsPerEm())
	sf := &ScaledFace{
		face:      f,
		PointSize: points,
		DPI:       dpi,
		factor:    points * dpi / 72 / upem,
	}
	sf.Metrics = sf.scaledMetrics()
	f.scaled[key] = sf
	return sf
}

// ScaledFace is a Face at a fixed size: design units scale to pixels by
// points * dpi / 72 / unitsPerEm.
type ScaledFace struct {
	face      *Face
	PointSize float64
	DPI       float64
	Metrics   LineMetrics
	factor    float64
}

// LineMetrics are the font-wide vertical metrics of a scaled face, in
// pixels.
type LineMetrics struct {
	Ascent  float64
	Descent float64 // negative for fonts descending below the baseline
	LineGap float64
}

func (sf *ScaledFace) scaledMetrics() LineMetrics {
	otf := sf.face.otf
	m := LineMetrics{}
	if otf.HHea != nil {
		m.Ascent = sf.Pixels(int32(otf.HHea.Ascender))
		m.Descent = sf.Pixels(int32(otf.HHea.Descender))
		m.LineGap = sf.Pixels(int32(otf.HHea.LineGap))
	}
	// typographic metrics from OS/2 take precedence when present
	if otf.OS2 != nil && otf.OS2.TypoAscender != 0 {
		m.Ascent = sf.Pixels(int32(otf.OS2.TypoAscender))
		m.Descent = sf.Pixels(int32(otf.OS2.TypoDescender))
		m.LineGap = sf.Pixels(int32(otf.OS2.TypoLineGap))
	}
	return m
}

// Face returns the unscaled face.
func (sf *ScaledFace) Face() *Face {
	return sf.face
}

// Pixels converts a value in design units to pixels at this size.
func (sf *ScaledFace) Pixels(designUnits int32) float64 {
	return float64(designUnits) * sf.factor
}
