package otshape

import (
	"github.com/npillmayer/otype/ot"
	"github.com/npillmayer/otype/otlayout"
	"golang.org/x/text/unicode/bidi"
)

// ScaledGlyphInfo is one shaped glyph with its metrics in pixels.
// Advance moves the pen; the offsets are GPOS placement deltas relative
// to the pen position; the bearing and extent describe the glyph's
// bounding box where outline data is available.
type ScaledGlyphInfo struct {
	Glyph    ot.GlyphIndex
	Advance  float64
	OffsetX  float64
	OffsetY  float64
	BearingX float64
	BearingY float64
	Width    float64
	Height   float64
}

// Shape turns text into positioned glyphs: cmap maps runes to glyph
// IDs, GSUB substitutes per the selected features, horizontal metrics
// and GPOS produce advances and offsets, and everything is scaled to
// pixels. The returned rune slice is the decoded input; the glyph slice
// may be shorter or longer after substitution.
//
// Codepoints the font does not map shape as glyph 0 (".notdef"), which
// is not an error.
func (sf *ScaledFace) Shape(text string, params Params) ([]rune, []ScaledGlyphInfo, error) {
	runes := []rune(text)
	otf := sf.face.otf
	glyphs := make([]ot.GlyphIndex, len(runes))
	for i, r := range runes {
		glyphs[i] = otf.CMap.Lookup(r)
	}
	// visual order; full bidi resolution is the caller's concern
	if params.Direction == bidi.RightToLeft {
		reverseGlyphs(glyphs)
	}
	script := scriptTag(params.Script)
	glyphs, err := sf.substitute(glyphs, script, params)
	if err != nil {
		return runes, nil, err
	}
	positions, err := sf.position(glyphs, script, params)
	if err != nil {
		return runes, nil, err
	}
	infos := make([]ScaledGlyphInfo, len(glyphs))
	for i, g := range glyphs {
		infos[i] = sf.scaledInfo(g, positions[i])
	}
	return runes, infos, nil
}

func (sf *ScaledFace) substitute(glyphs []ot.GlyphIndex, script ot.Tag, params Params) ([]ot.GlyphIndex, error) {
	gsub := sf.face.otf.Layout.GSub
	if gsub == nil {
		return glyphs, nil
	}
	wanted := featureSet(defaultGSubFeatures, params.Features)
	indices := lookupIndicesFor(&gsub.LayoutTable, script, params.Language, wanted)
	tracer().Debugf("shaping with %d GSUB lookups", len(indices))
	return sf.face.engine.ApplySubstitutions(glyphs, indices)
}

func (sf *ScaledFace) position(glyphs []ot.GlyphIndex, script ot.Tag, params Params) ([]otlayout.GlyphPos, error) {
	otf := sf.face.otf
	positions := make([]otlayout.GlyphPos, len(glyphs))
	for i, g := range glyphs {
		if advance, _, ok := otf.HMtx.HMetrics(g); ok {
			positions[i].XAdvance = int32(advance)
		}
	}
	gpos := otf.Layout.GPos
	if gpos != nil {
		wanted := featureSet(defaultGPosFeatures, params.Features)
		indices := lookupIndicesFor(&gpos.LayoutTable, script, params.Language, wanted)
		tracer().Debugf("positioning with %d GPOS lookups", len(indices))
		if err := sf.face.engine.ApplyPositioning(glyphs, positions, indices); err != nil {
			return nil, err
		}
		return positions, nil
	}
	// kern table fallback for fonts without GPOS
	if otf.Kern != nil {
		for i := 0; i+1 < len(glyphs); i++ {
			if d, ok := otf.Kern.Kerning(glyphs[i], glyphs[i+1]).Unwrap(); ok {
				positions[i].XAdvance += int32(d)
			}
		}
	}
	return positions, nil
}

func (sf *ScaledFace) scaledInfo(g ot.GlyphIndex, pos otlayout.GlyphPos) ScaledGlyphInfo {
	otf := sf.face.otf
	info := ScaledGlyphInfo{
		Glyph:   g,
		Advance: sf.Pixels(pos.XAdvance),
		OffsetX: sf.Pixels(pos.XPlacement),
		OffsetY: sf.Pixels(pos.YPlacement),
	}
	if otf.Glyf != nil {
		if bbox, err := otf.Glyf.BoundingBox(g); err == nil && !bbox.Empty() {
			info.BearingX = sf.Pixels(int32(bbox.XMin))
			info.BearingY = sf.Pixels(int32(bbox.YMax))
			info.Width = sf.Pixels(int32(bbox.XMax) - int32(bbox.XMin))
			info.Height = sf.Pixels(int32(bbox.YMax) - int32(bbox.YMin))
		}
		return info
	}
	// CFF outlines carry no glyf table; the left side bearing from hmtx
	// is all we can offer
	if _, lsb, ok := otf.HMtx.HMetrics(g); ok {
		info.BearingX = sf.Pixels(int32(lsb))
	}
	return info
}

func reverseGlyphs(glyphs []ot.GlyphIndex) {
	for i, j := 0, len(glyphs)-1; i < j; i, j = i+1, j-1 {
		glyphs[i], glyphs[j] = glyphs[j], glyphs[i]
	}
}
