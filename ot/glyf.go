package ot

// The glyf table holds TrueType glyph outlines, located through the loca
// table. We decode glyph headers (contour counts and bounding boxes) and
// composite component references for metrics; full outline decoding for
// rasterization is out of scope.

// GlyfTable gives access to per-glyph outline headers.
type GlyfTable struct {
	tableBase
	loca *LocaTable // wired during font consistency check
}

func newGlyfTable(tag Tag, b binarySegm, offset, size uint32) *GlyfTable {
	t := &GlyfTable{}
	t.tableBase = tableBase{data: b, name: tag, offset: offset, length: size}
	t.self = t
	return t
}

// BoundingBox is a glyph's bounding box in design units.
type BoundingBox struct {
	XMin, YMin, XMax, YMax int16
}

// Empty reports whether the box is the zero box.
func (bbox BoundingBox) Empty() bool {
	return bbox == BoundingBox{}
}

// glyph header: numberOfContours, xMin, yMin, xMax, yMax
const glyfHeaderSize = 10

// segment returns the data block of a glyph, or nil for an empty glyph
// (a glyph without an outline, e.g. the space character).
func (t *GlyfTable) segment(gid GlyphIndex) (binarySegm, error) {
	if t == nil || t.loca == nil {
		return nil, errInvalid(T("glyf"), "Location", "glyf table not wired to loca")
	}
	from := t.loca.IndexToLocation(gid)
	to := t.loca.IndexToLocation(gid + 1)
	if to == from {
		return nil, nil // empty glyph
	}
	if to < from || int(to) > len(t.data) {
		return nil, errInvalidAt(T("glyf"), "Location", "glyph location outside glyf table", t.offset+from)
	}
	if to-from < glyfHeaderSize {
		return nil, errInvalidAt(T("glyf"), "Header", "glyph data block smaller than header", t.offset+from)
	}
	return t.data[from:to], nil
}

// BoundingBox returns the bounding box of a glyph. Empty glyphs yield the
// zero box, which is not an error.
func (t *GlyfTable) BoundingBox(gid GlyphIndex) (BoundingBox, error) {
	seg, err := t.segment(gid)
	if err != nil || seg == nil {
		return BoundingBox{}, err
	}
	var bbox BoundingBox
	bbox.XMin, _ = seg.i16(2)
	bbox.YMin, _ = seg.i16(4)
	bbox.XMax, _ = seg.i16(6)
	bbox.YMax, err = seg.i16(8)
	if err != nil {
		return BoundingBox{}, errInvalid(T("glyf"), "Header", "glyph header truncated")
	}
	return bbox, nil
}

// ContourCount returns the number of contours of a glyph. Composite glyphs
// yield None, empty glyphs Some(0).
func (t *GlyfTable) ContourCount(gid GlyphIndex) (Option[int], error) {
	seg, err := t.segment(gid)
	if err != nil {
		return None[int](), err
	}
	if seg == nil {
		return Some(0), nil
	}
	n, err := seg.i16(0)
	if err != nil {
		return None[int](), errInvalid(T("glyf"), "Header", "glyph header truncated")
	}
	if n < 0 { // composite glyph
		return None[int](), nil
	}
	return Some(int(n)), nil
}

// composite glyph component flags
const (
	glyfArg1And2AreWords    = 0x0001
	glyfArgsAreXYValues     = 0x0002
	glyfWeHaveAScale        = 0x0008
	glyfMoreComponents      = 0x0020
	glyfWeHaveAnXAndYScale  = 0x0040
	glyfWeHaveATwoByTwo     = 0x0080
)

// GlyphComponent is one component reference of a composite glyph.
type GlyphComponent struct {
	Glyph  GlyphIndex
	Flags  uint16
	DX, DY int16 // component placement, valid if ARGS_ARE_XY_VALUES
}

// Components returns the component references of a composite glyph.
// Simple and empty glyphs yield an empty slice. Components using point
// matching instead of x/y offsets are reported with their flags; scaled
// components yield an Unsupported error since we cannot produce correct
// metrics for them.
func (t *GlyfTable) Components(gid GlyphIndex) ([]GlyphComponent, error) {
	seg, err := t.segment(gid)
	if err != nil || seg == nil {
		return nil, err
	}
	n, err := seg.i16(0)
	if err != nil || n >= 0 {
		return nil, err
	}
	var components []GlyphComponent
	at := glyfHeaderSize
	for {
		flags, err := seg.u16(at)
		if err != nil {
			return nil, errInvalid(T("glyf"), "Composite", "component record truncated")
		}
		comp, err := seg.u16(at + 2)
		if err != nil {
			return nil, errInvalid(T("glyf"), "Composite", "component record truncated")
		}
		c := GlyphComponent{Glyph: GlyphIndex(comp), Flags: flags}
		at += 4
		if flags&glyfArg1And2AreWords != 0 {
			if flags&glyfArgsAreXYValues != 0 {
				c.DX, _ = seg.i16(at)
				c.DY, err = seg.i16(at + 2)
				if err != nil {
					return nil, errInvalid(T("glyf"), "Composite", "component arguments truncated")
				}
			}
			at += 4
		} else {
			args, err := seg.view(at, 2)
			if err != nil {
				return nil, errInvalid(T("glyf"), "Composite", "component arguments truncated")
			}
			if flags&glyfArgsAreXYValues != 0 {
				c.DX, c.DY = int16(int8(args[0])), int16(int8(args[1]))
			}
			at += 2
		}
		switch {
		case flags&glyfWeHaveAScale != 0:
			return nil, errUnsupported(T("glyf"), "Composite", "scaled composite components")
		case flags&glyfWeHaveAnXAndYScale != 0:
			return nil, errUnsupported(T("glyf"), "Composite", "scaled composite components")
		case flags&glyfWeHaveATwoByTwo != 0:
			return nil, errUnsupported(T("glyf"), "Composite", "transformed composite components")
		}
		components = append(components, c)
		if flags&glyfMoreComponents == 0 {
			break
		}
	}
	return components, nil
}
