package ot

// This table defines the mapping of character codes to a default glyph index.
// Different subtables may be defined that each contain mappings for different
// character encoding schemes.
//
// From the spec: “If a font includes Unicode subtables for both 16-bit
// encoding (typically, format 4) and also 32-bit encoding (formats 10 or 12),
// then the characters supported by the subtable for 32-bit encoding should be
// a superset of the characters supported by the subtable for 16-bit encoding,
// and the 32-bit encoding should be used by applications.”
//
// We only support the following platform/encoding/format combinations:
//
//	0 (Unicode)  3    4   Unicode BMP
//	0 (Unicode)  4    12  Unicode full
//	3 (Win)      1    4   Unicode BMP
//	3 (Win)      10   12  Unicode full

// CMapTable gives access to the character-to-glyph mapping of a font.
type CMapTable struct {
	tableBase
	GlyphIndexMap CharToGlyph // best supported subtable, selected at load time
	NumGlyphs     int         // from maxp, for glyph index validation
}

func newCMapTable(tag Tag, b binarySegm, offset, size uint32) *CMapTable {
	t := &CMapTable{}
	t.tableBase = tableBase{data: b, name: tag, offset: offset, length: size}
	t.self = t
	return t
}

// CharToGlyph maps Unicode codepoints to font-internal glyph indices.
// Codepoints outside all declared segments map to glyph 0 (".notdef"),
// which is not an error.
type CharToGlyph interface {
	Lookup(r rune) GlyphIndex
}

// Lookup returns the glyph index for a codepoint, or glyph 0 if the
// codepoint is not mapped by the font.
func (t *CMapTable) Lookup(r rune) GlyphIndex {
	if t == nil || t.GlyphIndexMap == nil {
		return 0
	}
	return t.GlyphIndexMap.Lookup(r)
}

// --- Subtable selection -----------------------------------------------------

// encoding widths, in bytes; a larger width supersedes a smaller one
const (
	widthNone = 0
	widthBMP  = 2 // 16-bit encodings (format 4)
	widthFull = 4 // 32-bit encodings (format 12)
)

func platformEncodingWidth(pid, psid uint16) int {
	switch {
	case pid == 0 && psid == 3:
		return widthBMP
	case pid == 0 && psid == 4:
		return widthFull
	case pid == 3 && psid == 1:
		return widthBMP
	case pid == 3 && psid == 10:
		return widthFull
	}
	return widthNone
}

func supportedCmapFormat(format, pid, psid uint16) bool {
	switch format {
	case 4:
		return platformEncodingWidth(pid, psid) == widthBMP
	case 12:
		return platformEncodingWidth(pid, psid) == widthFull
	}
	return false
}

func makeGlyphIndex(sub binarySegm, format uint16, tag Tag, offset uint32, ec *errorCollector) (CharToGlyph, error) {
	switch format {
	case 4:
		return makeFormat4GlyphIndex(sub, tag, offset, ec)
	case 12:
		return makeFormat12GlyphIndex(sub, tag, offset, ec)
	}
	return nil, errInvalidAt(tag, "Subtable", "unsupported cmap subtable format", offset)
}

// --- Format 4 ---------------------------------------------------------------

// format4GlyphIndex resolves codepoints via four parallel segment arrays:
// end codes, start codes, deltas and range offsets. rangeOffset == 0 selects
// the fast path (cp + delta) & 0xffff; otherwise the glyph is read from the
// glyphIdArray the rangeOffset points into.
type format4GlyphIndex struct {
	segCount  int
	ends      binarySegm // uint16[segCount], last entry is 0xFFFF
	starts    binarySegm // uint16[segCount]
	deltas    binarySegm // int16[segCount]
	ranges    binarySegm // uint16[segCount], offsets into glyph ID array
	numGlyphs int
}

func makeFormat4GlyphIndex(b binarySegm, tag Tag, offset uint32, ec *errorCollector) (CharToGlyph, error) {
	length, err := b.u16(2)
	if err != nil || int(length) > len(b) {
		ec.addError(tag, "Format4", "subtable length exceeds table bounds", SeverityCritical, offset)
		return nil, errInvalidAt(tag, "Format4", "subtable length exceeds table bounds", offset)
	}
	b = b[:length]
	segCountX2, err := b.u16(6)
	if err != nil || segCountX2 == 0 || segCountX2%2 != 0 {
		return nil, errInvalidAt(tag, "Format4", "invalid segment count", offset)
	}
	segCount := int(segCountX2) / 2
	// header (14 bytes), endCode[segCount], reservedPad, startCode, idDelta, idRangeOffset
	need := 14 + 2 + segCount*8
	if need > len(b) {
		ec.addError(tag, "Format4", "segment arrays exceed subtable bounds", SeverityCritical, offset)
		return nil, errInvalidAt(tag, "Format4", "segment arrays exceed subtable bounds", offset)
	}
	inx := format4GlyphIndex{segCount: segCount}
	inx.ends, _ = b.view(14, segCount*2)
	inx.starts, _ = b.view(14+2+segCount*2, segCount*2)
	inx.deltas, _ = b.view(14+2+segCount*4, segCount*2)
	// the range-offset array stays attached to its tail so that indirect
	// lookups can address the glyph ID array following it
	inx.ranges = b[14+2+segCount*6:]
	if last, err := inx.ends.u16((segCount - 1) * 2); err != nil || last != 0xFFFF {
		ec.addWarning(tag, "cmap format 4 does not end with sentinel segment", offset)
	}
	tracer().Debugf("cmap format 4 subtable has %d segments", segCount)
	return inx, nil
}

func (inx format4GlyphIndex) Lookup(r rune) GlyphIndex {
	if r > 0xFFFF { // format 4 maps the BMP only
		return 0
	}
	cp := uint16(r)
	// binary search for the first segment with endCode >= cp
	lo, hi := 0, inx.segCount
	for lo < hi {
		mid := (lo + hi) / 2
		end, err := inx.ends.u16(mid * 2)
		if err != nil {
			return 0
		}
		if end < cp {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	if lo >= inx.segCount {
		return 0
	}
	start, err := inx.starts.u16(lo * 2)
	if err != nil || cp < start {
		return 0 // codepoint between segments ⇒ .notdef
	}
	delta, _ := inx.deltas.u16(lo * 2)
	rangeOff, err := inx.ranges.u16(lo * 2)
	if err != nil {
		return 0
	}
	if rangeOff == 0 { // fast path
		return inx.checked(GlyphIndex((cp + delta) & 0xFFFF))
	}
	// The range offset is relative to its own position inside the
	// idRangeOffset array.
	at := lo*2 + int(rangeOff) + 2*int(cp-start)
	g, err := inx.ranges.u16(at)
	if err != nil || g == 0 {
		return 0
	}
	return inx.checked(GlyphIndex((g + delta) & 0xFFFF))
}

func (inx format4GlyphIndex) checked(g GlyphIndex) GlyphIndex {
	if inx.numGlyphs > 0 && int(g) >= inx.numGlyphs {
		return 0
	}
	return g
}

// --- Format 12 --------------------------------------------------------------

// format12GlyphIndex resolves codepoints via sorted sequential map groups
// (startCharCode, endCharCode, startGlyphID).
type format12GlyphIndex struct {
	numGroups int
	groups    binarySegm // 12 bytes per group
	numGlyphs int
}

func makeFormat12GlyphIndex(b binarySegm, tag Tag, offset uint32, ec *errorCollector) (CharToGlyph, error) {
	length, err := b.u32(4)
	if err != nil || int(length) > len(b) {
		ec.addError(tag, "Format12", "subtable length exceeds table bounds", SeverityCritical, offset)
		return nil, errInvalidAt(tag, "Format12", "subtable length exceeds table bounds", offset)
	}
	b = b[:length]
	n, err := b.u32(12)
	if err != nil {
		return nil, errInvalidAt(tag, "Format12", "cannot read group count", offset)
	}
	groups, err := b.view(16, int(n)*12)
	if err != nil {
		ec.addError(tag, "Format12", "group array exceeds subtable bounds", SeverityCritical, offset)
		return nil, errInvalidAt(tag, "Format12", "group array exceeds subtable bounds", offset)
	}
	tracer().Debugf("cmap format 12 subtable has %d groups", n)
	return format12GlyphIndex{numGroups: int(n), groups: groups}, nil
}

func (inx format12GlyphIndex) Lookup(r rune) GlyphIndex {
	cp := uint32(r)
	lo, hi := 0, inx.numGroups
	for lo < hi {
		mid := (lo + hi) / 2
		start, err := inx.groups.u32(mid * 12)
		if err != nil {
			return 0
		}
		end, err := inx.groups.u32(mid*12 + 4)
		if err != nil {
			return 0
		}
		switch {
		case cp < start:
			hi = mid
		case cp > end:
			lo = mid + 1
		default:
			g, err := inx.groups.u32(mid*12 + 8)
			if err != nil {
				return 0
			}
			gid := GlyphIndex(g + (cp - start))
			if inx.numGlyphs > 0 && int(gid) >= inx.numGlyphs {
				return 0
			}
			return gid
		}
	}
	return 0
}

// --- Table parsing ----------------------------------------------------------

func parseCMap(tag Tag, b binarySegm, offset, size uint32, ec *errorCollector) (Table, error) {
	n, err := b.u16(2) // number of sub-tables
	if err != nil {
		return nil, errInvalidAt(tag, "Header", "cmap header too small", offset)
	}
	tracer().Debugf("font cmap has %d sub-tables in %d bytes", n, size)
	t := newCMapTable(tag, b, offset, size)
	const headerSize, entrySize = 4, 8
	if int(size) < headerSize+entrySize*int(n) {
		ec.addError(tag, "Header", "encoding records exceed table size", SeverityCritical, offset)
		return nil, errInvalidAt(tag, "Header", "encoding records exceed table size", offset)
	}
	bestWidth, bestFormat, bestOffset := widthNone, uint16(0), uint32(0)
	for i := 0; i < int(n); i++ {
		rec, _ := b.view(headerSize+entrySize*i, entrySize)
		pid, psid := u16(rec), u16(rec[2:])
		width := platformEncodingWidth(pid, psid)
		if width <= bestWidth {
			continue
		}
		subOffset := u32(rec[4:])
		if int(subOffset)+2 > len(b) {
			ec.addWarning(tag, "encoding record points outside cmap table", offset)
			continue
		}
		format := u16(b[subOffset:])
		tracer().Debugf("cmap table contains subtable with format %d", format)
		if supportedCmapFormat(format, pid, psid) {
			bestWidth, bestFormat, bestOffset = width, format, subOffset
		}
	}
	if bestWidth == widthNone {
		// absence of both format 4 and format 12 is a load-time error
		ec.addError(tag, "Format", "no supported cmap format found", SeverityCritical, offset)
		return nil, errInvalidAt(tag, "Format", "no supported cmap format found", offset)
	}
	t.GlyphIndexMap, err = makeGlyphIndex(b[bestOffset:], bestFormat, tag, offset+bestOffset, ec)
	if err != nil {
		return nil, err
	}
	return t, nil
}
