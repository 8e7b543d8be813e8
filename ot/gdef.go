package ot

import "fmt"

// Glyph classes, as declared by a GDEF glyph class definition table.
const (
	GlyphClassBase      = 1
	GlyphClassLigature  = 2
	GlyphClassMark      = 3
	GlyphClassComponent = 4
)

// GDefTable is the Glyph Definition table (GDEF). All of its sections
// are optional; accessors on a table with a missing section answer with
// the section's neutral default (class 0, no match), never an error.
type GDefTable struct {
	tableBase
	VersionHeader      GDefVersionHeader
	GlyphClassDef      *ClassDefinitions
	MarkAttachClassDef *ClassDefinitions
	MarkGlyphSets      []Coverage // version 1.2+
	AttachmentPoints   AttachmentPointList
	LigatureCarets     LigCaretList
}

func newGDefTable(tag Tag, b binarySegm, offset, size uint32) *GDefTable {
	t := &GDefTable{}
	t.tableBase = tableBase{data: b, name: tag, offset: offset, length: size}
	t.self = t
	return t
}

// GDefVersionHeader is the version header of a GDEF table.
type GDefVersionHeader struct {
	Major, Minor uint16
}

// Version returns the version of this GDEF table as major*10+minor.
func (h GDefVersionHeader) Version() int {
	return int(h.Major)*10 + int(h.Minor)
}

// GlyphClass returns the glyph class of g, or 0 if the font declares no
// glyph class definitions. Safe to call on a nil table.
func (t *GDefTable) GlyphClass(g GlyphIndex) int {
	if t == nil {
		return 0
	}
	return t.GlyphClassDef.Lookup(g)
}

// MarkAttachClass returns the mark attachment class of g, or 0.
// Safe to call on a nil table.
func (t *GDefTable) MarkAttachClass(g GlyphIndex) int {
	if t == nil {
		return 0
	}
	return t.MarkAttachClassDef.Lookup(g)
}

// InMarkGlyphSet reports whether g is a member of mark glyph set inx.
// An out-of-range set index matches nothing. Safe to call on a nil table.
func (t *GDefTable) InMarkGlyphSet(inx int, g GlyphIndex) bool {
	if t == nil || inx < 0 || inx >= len(t.MarkGlyphSets) {
		return false
	}
	_, ok := t.MarkGlyphSets[inx].Match(g)
	return ok
}

// AttachmentPointList lists contour point indices relevant for
// attachment, per covered glyph.
type AttachmentPointList struct {
	Coverage Coverage
	Points   [][]uint16 // by coverage index
}

// PointsFor returns the attachment point indices declared for g.
func (a AttachmentPointList) PointsFor(g GlyphIndex) []uint16 {
	inx, ok := a.Coverage.Match(g)
	if !ok || inx >= len(a.Points) {
		return nil
	}
	return a.Points[inx]
}

// CaretValue is one ligature caret position: an x coordinate in design
// units (formats 1 and 3) or a contour point index (format 2).
type CaretValue struct {
	Format       uint16
	Coordinate   int16          // formats 1, 3
	ContourPoint Option[uint16] // format 2
}

// LigCaretList declares caret positions inside ligature glyphs, used to
// place a text cursor between ligature components.
type LigCaretList struct {
	Coverage Coverage
	Carets   [][]CaretValue // by coverage index
}

// CaretsFor returns the caret values declared for ligature glyph g.
func (l LigCaretList) CaretsFor(g GlyphIndex) []CaretValue {
	inx, ok := l.Coverage.Match(g)
	if !ok || inx >= len(l.Carets) {
		return nil
	}
	return l.Carets[inx]
}

// --- Parsing ----------------------------------------------------------------

func parseGDef(tag Tag, b binarySegm, offset, size uint32, ec *errorCollector) (Table, error) {
	t := newGDefTable(tag, b, offset, size)
	major, _ := b.u16(0)
	minor, err := b.u16(2)
	if err != nil {
		return nil, errInvalid(tag, "Header", "version header truncated")
	}
	if major != 1 || (minor != 0 && minor != 2 && minor != 3) {
		return nil, errUnsupported(tag, "Header",
			fmt.Sprintf("GDEF version %d.%d", major, minor))
	}
	t.VersionHeader = GDefVersionHeader{Major: major, Minor: minor}
	headerSize := 12
	if minor >= 2 {
		headerSize = 14
	}
	if _, err := b.view(0, headerSize); err != nil {
		return nil, errInvalid(tag, "Header", "header truncated")
	}
	if t.GlyphClassDef, err = parseClassDefAt(b, 4, b); err != nil {
		return nil, err
	}
	if t.AttachmentPoints, err = parseAttachmentPointList(tag, b); err != nil {
		return nil, err
	}
	if t.LigatureCarets, err = parseLigCaretList(tag, b); err != nil {
		return nil, err
	}
	if t.MarkAttachClassDef, err = parseClassDefAt(b, 10, b); err != nil {
		return nil, err
	}
	if minor >= 2 {
		if t.MarkGlyphSets, err = parseMarkGlyphSets(tag, b); err != nil {
			return nil, err
		}
	}
	tracer().Debugf("GDEF v1.%d, %d mark glyph sets", minor, len(t.MarkGlyphSets))
	return t, nil
}

// attach list: coverageOffset, glyphCount, attachPointOffsets[];
// attach point: pointCount, pointIndices[]
func parseAttachmentPointList(tag Tag, b binarySegm) (AttachmentPointList, error) {
	var apl AttachmentPointList
	off, err := b.u16(6)
	if err != nil {
		return apl, errInvalid(tag, "AttachList", "header truncated")
	}
	if off == 0 {
		return apl, nil
	}
	if int(off) >= len(b) {
		return apl, errInvalid(tag, "AttachList", "attach list offset out of bounds")
	}
	list := b[off:]
	if apl.Coverage, err = parseCoverageAt(list, 0, list); err != nil {
		return apl, err
	}
	count, err := list.u16(2)
	if err != nil {
		return apl, errInvalid(tag, "AttachList", "attach list truncated")
	}
	apl.Points = make([][]uint16, count)
	for i := 0; i < int(count); i++ {
		ptOff, err := list.u16(4 + i*2)
		if err != nil || int(ptOff) >= len(list) {
			return apl, errInvalid(tag, "AttachList", "attach point offset out of bounds")
		}
		pt := list[ptOff:]
		ptCount, err := pt.u16(0)
		if err != nil {
			return apl, errInvalid(tag, "AttachList", "attach point truncated")
		}
		if apl.Points[i], err = pt.u16s(2, int(ptCount)); err != nil {
			return apl, errInvalid(tag, "AttachList", "point indices exceed table bounds")
		}
	}
	return apl, nil
}

// lig caret list: coverageOffset, ligGlyphCount, ligGlyphOffsets[];
// lig glyph: caretCount, caretValueOffsets[]
func parseLigCaretList(tag Tag, b binarySegm) (LigCaretList, error) {
	var lcl LigCaretList
	off, err := b.u16(8)
	if err != nil {
		return lcl, errInvalid(tag, "LigCaretList", "header truncated")
	}
	if off == 0 {
		return lcl, nil
	}
	if int(off) >= len(b) {
		return lcl, errInvalid(tag, "LigCaretList", "caret list offset out of bounds")
	}
	list := b[off:]
	if lcl.Coverage, err = parseCoverageAt(list, 0, list); err != nil {
		return lcl, err
	}
	count, err := list.u16(2)
	if err != nil {
		return lcl, errInvalid(tag, "LigCaretList", "caret list truncated")
	}
	lcl.Carets = make([][]CaretValue, count)
	for i := 0; i < int(count); i++ {
		ligOff, err := list.u16(4 + i*2)
		if err != nil || int(ligOff) >= len(list) {
			return lcl, errInvalid(tag, "LigCaretList", "lig glyph offset out of bounds")
		}
		lig := list[ligOff:]
		caretCount, err := lig.u16(0)
		if err != nil {
			return lcl, errInvalid(tag, "LigCaretList", "lig glyph truncated")
		}
		carets := make([]CaretValue, caretCount)
		for j := 0; j < int(caretCount); j++ {
			cvOff, err := lig.u16(2 + j*2)
			if err != nil || int(cvOff) >= len(lig) {
				return lcl, errInvalid(tag, "LigCaretList", "caret value offset out of bounds")
			}
			if carets[j], err = parseCaretValue(tag, lig[cvOff:]); err != nil {
				return lcl, err
			}
		}
		lcl.Carets[i] = carets
	}
	return lcl, nil
}

func parseCaretValue(tag Tag, b binarySegm) (CaretValue, error) {
	var cv CaretValue
	format, _ := b.u16(0)
	value, err := b.u16(2)
	if err != nil {
		return cv, errInvalid(tag, "LigCaretList", "caret value truncated")
	}
	cv.Format = format
	cv.ContourPoint = None[uint16]()
	switch format {
	case 1, 3: // format 3 carries a device table offset we ignore
		cv.Coordinate = int16(value)
	case 2:
		cv.ContourPoint = Some(value)
	default:
		return cv, errInvalid(tag, "LigCaretList",
			fmt.Sprintf("unknown caret value format %d", format))
	}
	return cv, nil
}

// mark glyph sets: format, markGlyphSetCount, 32-bit coverage offsets[]
func parseMarkGlyphSets(tag Tag, b binarySegm) ([]Coverage, error) {
	off, err := b.u16(12)
	if err != nil {
		return nil, errInvalid(tag, "MarkGlyphSets", "header truncated")
	}
	if off == 0 {
		return nil, nil
	}
	if int(off) >= len(b) {
		return nil, errInvalid(tag, "MarkGlyphSets", "mark glyph sets offset out of bounds")
	}
	def := b[off:]
	format, _ := def.u16(0)
	if format != 1 {
		return nil, errInvalid(tag, "MarkGlyphSets",
			fmt.Sprintf("unknown mark glyph sets format %d", format))
	}
	count, err := def.u16(2)
	if err != nil {
		return nil, errInvalid(tag, "MarkGlyphSets", "mark glyph sets truncated")
	}
	sets := make([]Coverage, count)
	for i := 0; i < int(count); i++ {
		covOff, err := def.u32(4 + i*4)
		if err != nil || covOff == 0 || int(covOff) >= len(def) {
			return nil, errInvalid(tag, "MarkGlyphSets", "coverage offset out of bounds")
		}
		if sets[i], err = parseCoverage(def[covOff:]); err != nil {
			return nil, err
		}
	}
	return sets, nil
}
