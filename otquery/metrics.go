package otquery

import (
	"github.com/npillmayer/otype/ot"
	"golang.org/x/image/font/sfnt"
)

// FontMetricsInfo contains selected metric information for a font.
type FontMetricsInfo struct {
	UnitsPerEm      sfnt.Units // design units per em
	Ascent, Descent sfnt.Units // ascender and descender
	MaxAdvance      sfnt.Units // maximum advance width value in 'hmtx' table
	LineGap         sfnt.Units // typographic line gap
}

// GlyphMetricsInfo contains all metric information for a glyph.
type GlyphMetricsInfo struct {
	Advance  sfnt.Units  // advance width
	LSB, RSB sfnt.Units  // side bearings
	BBox     BoundingBox // bounding box
}

// BoundingBox describes the bounding box of a glyph.
type BoundingBox struct {
	MinX, MinY sfnt.Units
	MaxX, MaxY sfnt.Units
}

// IsEmpty reports whether this box has zero area.
func (bbox BoundingBox) IsEmpty() bool {
	return bbox.MaxX-bbox.MinX == 0 || bbox.MaxY-bbox.MinY == 0
}

// Dx returns the horizontal extent of this box.
func (bbox BoundingBox) Dx() sfnt.Units {
	return bbox.MaxX - bbox.MinX
}

// Dy returns the vertical extent of this box.
func (bbox BoundingBox) Dy() sfnt.Units {
	return bbox.MaxY - bbox.MinY
}

// FontMetrics retrieves selected metrics of a font.
func FontMetrics(otf *ot.Font) FontMetricsInfo {
	metrics := FontMetricsInfo{}
	if hhea := otf.HHea; hhea != nil {
		metrics.Ascent = sfnt.Units(hhea.Ascender)
		metrics.Descent = sfnt.Units(hhea.Descender)
		metrics.LineGap = sfnt.Units(hhea.LineGap)
		metrics.MaxAdvance = sfnt.Units(hhea.AdvanceWidthMax)
	}
	if metrics.Ascent == 0 && metrics.Descent == 0 {
		if os2 := otf.OS2; os2 != nil {
			if a := sfnt.Units(os2.TypoAscender); a > metrics.Ascent {
				tracer().Debugf("override of ascent: %d -> %d", metrics.Ascent, a)
				metrics.Ascent = a
			}
			if d := sfnt.Units(os2.TypoDescender); d < metrics.Descent {
				tracer().Debugf("override of descent: %d -> %d", metrics.Descent, d)
				metrics.Descent = d
			}
		}
	}
	metrics.UnitsPerEm = sfnt.Units(otf.UnitsPerEm())
	return metrics
}

// GlyphIndex returns the glyph index for a given code-point.
// If the code-point cannot be found, 0 is returned.
//
// From the OpenType specification: character codes that do not
// correspond to any glyph in the font should be mapped to glyph index 0.
// The glyph at this location must be a special glyph representing a
// missing character, commonly known as '.notdef'.
func GlyphIndex(otf *ot.Font, codepoint rune) ot.GlyphIndex {
	return otf.CMap.Lookup(codepoint)
}

// GlyphMetrics retrieves metrics for a given glyph.
func GlyphMetrics(otf *ot.Font, gid ot.GlyphIndex) GlyphMetricsInfo {
	metrics := GlyphMetricsInfo{}
	if aw, lsb, ok := otf.HMtx.HMetrics(gid); ok {
		metrics.Advance = sfnt.Units(aw)
		metrics.LSB = sfnt.Units(lsb)
	}
	if otf.Glyf != nil {
		if bbox, err := otf.Glyf.BoundingBox(gid); err == nil {
			metrics.BBox = BoundingBox{
				MinX: sfnt.Units(bbox.XMin),
				MinY: sfnt.Units(bbox.YMin),
				MaxX: sfnt.Units(bbox.XMax),
				MaxY: sfnt.Units(bbox.YMax),
			}
		}
	}
	// rsb = aw - (lsb + xMax - xMin)
	// From the spec: if a glyph has no contours, xMax/xMin are not
	// defined, and the left side bearing should be zero.
	if !metrics.BBox.IsEmpty() {
		metrics.RSB = metrics.Advance - (metrics.LSB + metrics.BBox.Dx())
	}
	return metrics
}
