package ot

import "fmt"

// Parsing of the font's top-level structure: the table directory, the
// per-table decoders, and the consistency checks that wire tables to
// each other (loca needs head and maxp, glyf needs loca, hmtx needs
// hhea). Code comments often cite passages from the OpenType
// specification version 1.8.4; see
// https://docs.microsoft.com/en-us/typography/opentype/spec/.

// Recognized values of the sfnt version field.
const (
	fontTypeTrueType  = 0x00010000 // TrueType outlines
	fontTypeOTTO      = 0x4f54544f // 'OTTO', CFF outlines
	fontTypeAppleTrue = 0x74727565 // 'true', old-style Apple
	fontTypeTTC       = 0x74746366 // 'ttcf', font collection
)

// Parse parses an OpenType font from a byte slice. For font collection
// files the first contained font is selected; use ParseCollection to
// address a specific one.
//
// An ot.Font needs ongoing access to the font's byte data after Parse
// returns. Its elements are assumed immutable while the ot.Font remains
// in use.
func Parse(font []byte) (*Font, error) {
	return ParseCollection(font, 0)
}

// ParseCollection parses one font of an OpenType font collection
// ('ttcf') file, selected by face index. Single-font files are accepted
// with face index 0. An out-of-range face index yields an ErrInvalid
// error.
func ParseCollection(font []byte, faceIndex int) (*Font, error) {
	src := binarySegm(font)
	version, err := src.u32(0)
	if err != nil {
		return nil, errInvalid(0, "Header", "font data too small for header")
	}
	dirOffset := uint32(0)
	if version == fontTypeTTC {
		// TTC header: tag, major, minor, numFonts, tableDirectoryOffsets[]
		numFonts, err := src.u32(8)
		if err != nil {
			return nil, errInvalid(T("ttcf"), "Header", "collection header truncated")
		}
		if faceIndex < 0 || uint32(faceIndex) >= numFonts {
			return nil, errInvalid(T("ttcf"), "Header",
				fmt.Sprintf("face index %d out of bounds, collection has %d fonts", faceIndex, numFonts))
		}
		if dirOffset, err = src.u32(12 + faceIndex*4); err != nil {
			return nil, errInvalid(T("ttcf"), "Header", "table directory offsets truncated")
		}
		if int(dirOffset) >= len(src) {
			return nil, errInvalid(T("ttcf"), "Header", "table directory offset out of bounds")
		}
		if version, err = src.u32(int(dirOffset)); err != nil {
			return nil, errInvalid(T("ttcf"), "Header", "table directory truncated")
		}
	} else if faceIndex != 0 {
		return nil, errInvalid(0, "Header",
			fmt.Sprintf("face index %d out of bounds, font is not a collection", faceIndex))
	}
	if version != fontTypeTrueType && version != fontTypeOTTO && version != fontTypeAppleTrue {
		return nil, errUnsupported(0, "Header", fmt.Sprintf("font type %#x", version))
	}
	return parseFontDirectory(src, dirOffset, version)
}

// parseFontDirectory walks the table directory at dirOffset. Table
// offsets within the records are relative to the start of the file,
// also for collection members.
func parseFontDirectory(src binarySegm, dirOffset uint32, fontType uint32) (*Font, error) {
	tableCount, err := src.u16(int(dirOffset) + 4)
	if err != nil {
		return nil, errInvalid(0, "Header", "offset table truncated")
	}
	h := &FontHeader{FontType: fontType, TableCount: tableCount}
	tracer().Debugf("header = %v, tag = %x|%s", h, h.FontType, Tag(h.FontType).String())
	ec := &errorCollector{}
	otf := &Font{Header: h, tables: make(map[Tag]Table)}
	// "The Offset Table is followed immediately by the Table Record
	// entries … sorted in ascending order by tag", 16 bytes each.
	recordsSize, err := checkedMulInt(16, int(tableCount))
	if err != nil {
		return nil, errInvalidAt(0, "TableRecords", "table count too large", dirOffset)
	}
	buf, err := src.view(int(dirOffset)+12, recordsSize)
	if err != nil {
		return nil, errInvalidAt(0, "TableRecords", "table record entries exceed font size", dirOffset)
	}
	for b, prevTag := buf, Tag(0); len(b) > 0; b = b[16:] {
		tag := MakeTag(b)
		if tag < prevTag {
			return nil, errInvalid(tag, "TableRecords", "table records not in ascending tag order")
		}
		prevTag = tag
		off, size := u32(b[8:12]), u32(b[12:16])
		if off&3 != 0 { // "all tables must begin on four byte boundaries"
			return nil, errInvalidAt(tag, "TableRecords", "table offset not 4-byte aligned", off)
		}
		tableEnd, err := checkedAddUint32(off, size)
		if err != nil {
			return nil, errInvalidAt(tag, "TableRecords", "table size overflows", off)
		}
		if tableEnd > uint32(len(src)) {
			return nil, errInvalidAt(tag, "TableRecords",
				fmt.Sprintf("table bounds [%d:%d] exceed font size %d", off, tableEnd, len(src)), off)
		}
		otf.tables[tag], err = parseTable(tag, src[off:tableEnd], off, size, ec)
		if err != nil {
			return nil, err
		}
	}
	if err := extractLayoutInfo(otf, ec); err != nil {
		return nil, err
	}
	otf.parseErrors = ec.errors
	otf.parseWarnings = ec.warnings
	return otf, nil
}

// RequiredTables lists the tables a font must carry to be usable for
// text shaping.
var RequiredTables = []string{
	"cmap", "head", "hhea", "hmtx", "maxp",
}

func parseTable(t Tag, b binarySegm, offset, size uint32, ec *errorCollector) (Table, error) {
	switch t {
	case T("cmap"):
		return parseCMap(t, b, offset, size, ec)
	case T("head"):
		return parseHead(t, b, offset, size, ec)
	case T("hhea"):
		return parseHHea(t, b, offset, size, ec)
	case T("hmtx"):
		return newHMtxTable(t, b, offset, size), nil // wired during consistency check
	case T("maxp"):
		return parseMaxP(t, b, offset, size, ec)
	case T("loca"):
		return newLocaTable(t, b, offset, size), nil // wired during consistency check
	case T("glyf"):
		return newGlyfTable(t, b, offset, size), nil // wired during consistency check
	case T("OS/2"):
		return parseOS2(t, b, offset, size, ec)
	case T("kern"):
		return parseKern(t, b, offset, size, ec)
	case T("gasp"):
		return parseGasp(t, b, offset, size, ec)
	case T("name"):
		return parseName(t, b, offset, size, ec)
	case T("GDEF"):
		return parseGDef(t, b, offset, size, ec)
	case T("GSUB"):
		return parseGSub(t, b, offset, size, ec)
	case T("GPOS"):
		return parseGPos(t, b, offset, size, ec)
	}
	tracer().Infof("font contains table (%s), will not be interpreted", t)
	ec.addWarning(t, "table not interpreted", offset)
	return newTable(t, b, offset, size), nil
}

// Consistency check and shortcuts to essential tables, including layout
// tables.
func extractLayoutInfo(otf *Font, ec *errorCollector) error {
	for _, tag := range RequiredTables {
		if otf.tables[T(tag)] == nil {
			ec.addError(T(tag), "Missing", "missing required table", SeverityCritical, 0)
			return errInvalid(T(tag), "Missing", "missing required table")
		}
	}
	otf.CMap = otf.tables[T("cmap")].Self().AsCMap()
	otf.Head = otf.tables[T("head")].Self().AsHead()
	otf.HHea = otf.tables[T("hhea")].Self().AsHHea()
	otf.HMtx = otf.tables[T("hmtx")].Self().AsHMtx()
	otf.MaxP = otf.tables[T("maxp")].Self().AsMaxP()
	numGlyphs := otf.MaxP.NumGlyphs

	// cmap lookups clamp their results to the glyph count
	otf.CMap.NumGlyphs = numGlyphs
	switch gim := otf.CMap.GlyphIndexMap.(type) {
	case format4GlyphIndex:
		gim.numGlyphs = numGlyphs
		otf.CMap.GlyphIndexMap = gim
	case format12GlyphIndex:
		gim.numGlyphs = numGlyphs
		otf.CMap.GlyphIndexMap = gim
	}

	// hmtx holds NumberOfHMetrics long metrics (4 bytes each), then bare
	// left side bearings (2 bytes each) for the remaining glyphs
	if otf.HHea.NumberOfHMetrics > numGlyphs {
		ec.addError(T("hhea"), "NumberOfHMetrics",
			fmt.Sprintf("value %d exceeds maxp.NumGlyphs %d", otf.HHea.NumberOfHMetrics, numGlyphs),
			SeverityCritical, 0)
		return errInvalid(T("hhea"), "NumberOfHMetrics", "number of h-metrics exceeds glyph count")
	}
	need := otf.HHea.NumberOfHMetrics*4 + (numGlyphs-otf.HHea.NumberOfHMetrics)*2
	if int(otf.HMtx.length) < need {
		ec.addError(T("hmtx"), "Size",
			fmt.Sprintf("table size %d insufficient for %d glyphs (need %d)", otf.HMtx.length, numGlyphs, need),
			SeverityCritical, 0)
		return errInvalid(T("hmtx"), "Size", "hmtx table too small for glyph count")
	}
	otf.HMtx.NumberOfHMetrics = otf.HHea.NumberOfHMetrics
	otf.HMtx.numGlyphs = numGlyphs

	if lo := otf.Table(T("loca")); lo != nil {
		loca := lo.Self().AsLoca()
		entrySize := 2
		switch otf.Head.IndexToLocFormat {
		case 0: // short offsets
		case 1:
			loca.inx2loc = longLocaVersion
			entrySize = 4
		default:
			ec.addError(T("head"), "IndexToLocFormat",
				fmt.Sprintf("invalid value %d (must be 0 or 1)", otf.Head.IndexToLocFormat),
				SeverityCritical, 0)
			return errInvalid(T("head"), "IndexToLocFormat", "invalid index-to-location format")
		}
		if int(loca.length) < (numGlyphs+1)*entrySize {
			ec.addError(T("loca"), "Size",
				fmt.Sprintf("table size %d insufficient for %d glyphs", loca.length, numGlyphs),
				SeverityCritical, 0)
			return errInvalid(T("loca"), "Size", "loca table too small for glyph count")
		}
		loca.locCnt = numGlyphs
		if gl := otf.Table(T("glyf")); gl != nil {
			otf.Glyf = gl.Self().AsGlyf()
			otf.Glyf.loca = loca
		}
	}

	if os2 := otf.Table(T("OS/2")); os2 != nil {
		otf.OS2 = os2.Self().AsOS2()
	}
	if kern := otf.Table(T("kern")); kern != nil {
		otf.Kern = kern.Self().AsKern()
	}
	if gsub := otf.Table(T("GSUB")); gsub != nil {
		otf.Layout.GSub = gsub.Self().AsGSub()
	}
	if gpos := otf.Table(T("GPOS")); gpos != nil {
		otf.Layout.GPos = gpos.Self().AsGPos()
	}
	if gdef := otf.Table(T("GDEF")); gdef != nil {
		otf.Layout.GDef = gdef.Self().AsGDef()
	}
	return nil
}

// --- Head table --------------------------------------------------------------

func parseHead(tag Tag, b binarySegm, offset, size uint32, ec *errorCollector) (Table, error) {
	if size < 54 {
		ec.addError(tag, "Size", fmt.Sprintf("head table too small: %d bytes (need 54)", size), SeverityCritical, offset)
		return nil, errInvalidAt(tag, "Size", "head table too small", offset)
	}
	t := newHeadTable(tag, b, offset, size)
	t.Flags, _ = b.u16(16)
	t.UnitsPerEm, _ = b.u16(18)
	if t.UnitsPerEm < 16 || t.UnitsPerEm > 16384 {
		ec.addWarning(tag, fmt.Sprintf("unitsPerEm %d outside 16…16384, using 2048", t.UnitsPerEm), offset)
		t.UnitsPerEm = 2048
	}
	// IndexToLocFormat is needed to interpret the loca table:
	// 0 for short offsets, 1 for long
	t.IndexToLocFormat, _ = b.u16(50)
	return t, nil
}

// --- HHea table --------------------------------------------------------------

func parseHHea(tag Tag, b binarySegm, offset, size uint32, ec *errorCollector) (Table, error) {
	if size < 36 {
		ec.addError(tag, "Size", fmt.Sprintf("hhea table too small: %d bytes (need 36)", size), SeverityCritical, offset)
		return nil, errInvalidAt(tag, "Size", "hhea table too small", offset)
	}
	t := newHHeaTable(tag, b, offset, size)
	t.Ascender, _ = b.i16(4)
	t.Descender, _ = b.i16(6)
	t.LineGap, _ = b.i16(8)
	t.AdvanceWidthMax, _ = b.u16(10)
	n, _ := b.u16(34)
	t.NumberOfHMetrics = int(n)
	return t, nil
}

// --- MaxP table --------------------------------------------------------------

func parseMaxP(tag Tag, b binarySegm, offset, size uint32, ec *errorCollector) (Table, error) {
	n, err := b.u16(4)
	if err != nil {
		ec.addError(tag, "Size", "maxp table too small", SeverityCritical, offset)
		return nil, errInvalidAt(tag, "Size", "maxp table too small", offset)
	}
	t := newMaxPTable(tag, b, offset, size)
	t.NumGlyphs = int(n)
	return t, nil
}

// --- OS/2 table --------------------------------------------------------------

func parseOS2(tag Tag, b binarySegm, offset, size uint32, ec *errorCollector) (Table, error) {
	if size < 78 {
		ec.addWarning(tag, "OS/2 table too small, ignored", offset)
		return newTable(tag, b, offset, size), nil
	}
	t := newOS2Table(tag, b, offset, size)
	t.Version, _ = b.u16(0)
	t.XAvgCharWidth, _ = b.i16(2)
	t.TypoAscender, _ = b.i16(68)
	t.TypoDescender, _ = b.i16(70)
	t.TypoLineGap, _ = b.i16(72)
	t.WinAscent, _ = b.u16(74)
	t.WinDescent, _ = b.u16(76)
	return t, nil
}

// --- Kern table --------------------------------------------------------------

// Only the Microsoft flavor (version 0) with format 0 sub-tables is
// interpreted; other versions and formats are skipped with a warning.
// This is a fallback for fonts without a GPOS kern feature.
func parseKern(tag Tag, b binarySegm, offset, size uint32, ec *errorCollector) (Table, error) {
	t := newKernTable(tag, b, offset, size)
	version, err := b.u16(0)
	if err != nil {
		return nil, errInvalidAt(tag, "Header", "kern header truncated", offset)
	}
	if version != 0 {
		ec.addWarning(tag, fmt.Sprintf("kern table version %d not interpreted", version), offset)
		return t, nil
	}
	n, err := b.u16(2)
	if err != nil {
		return nil, errInvalidAt(tag, "Header", "kern header truncated", offset)
	}
	at := 4
	for i := 0; i < int(n); i++ {
		length, err := b.u16(at + 2)
		if err != nil {
			return nil, errInvalidAt(tag, "Subtable", "kern sub-table header truncated", offset)
		}
		coverage, _ := b.u16(at + 4)
		if coverage>>8 != 0 { // only format 0 pair lists
			ec.addWarning(tag, fmt.Sprintf("kern sub-table format %d not interpreted", coverage>>8), offset)
			at += int(length)
			continue
		}
		pairs, err := b.u16(at + 6)
		if err != nil {
			return nil, errInvalidAt(tag, "Subtable", "kern sub-table header truncated", offset)
		}
		// pairs start after version, length, coverage, nPairs and the
		// three binary search helper fields
		if _, err := b.view(at+14, int(pairs)*6); err != nil {
			return nil, errInvalidAt(tag, "Subtable", "kern pairs exceed table bounds", offset)
		}
		t.headers = append(t.headers, kernSubTableHeader{
			offset:   at + 14,
			pairs:    int(pairs),
			coverage: coverage,
		})
		at += int(length)
	}
	tracer().Debugf("kern table has %d usable sub-tables", len(t.headers))
	return t, nil
}

// --- Gasp table --------------------------------------------------------------

func parseGasp(tag Tag, b binarySegm, offset, size uint32, ec *errorCollector) (Table, error) {
	n, err := b.u16(2)
	if err != nil {
		return nil, errInvalidAt(tag, "Header", "gasp header truncated", offset)
	}
	t := newGaspTable(tag, b, offset, size)
	t.Ranges = make([]GaspRange, n)
	for i := 0; i < int(n); i++ {
		ppem, err := b.u16(4 + i*4)
		if err != nil {
			return nil, errInvalidAt(tag, "Ranges", "gasp ranges exceed table bounds", offset)
		}
		behavior, _ := b.u16(4 + i*4 + 2)
		t.Ranges[i] = GaspRange{MaxPPEM: ppem, Behavior: behavior}
	}
	return t, nil
}

// --- Name table --------------------------------------------------------------

func parseName(tag Tag, b binarySegm, offset, size uint32, ec *errorCollector) (Table, error) {
	count, err := b.u16(2)
	if err != nil {
		return nil, errInvalidAt(tag, "Header", "name header truncated", offset)
	}
	strOffset, err := b.u16(4)
	if err != nil || int(strOffset) > len(b) {
		return nil, errInvalidAt(tag, "Header", "string storage offset out of bounds", offset)
	}
	t := newNameTable(tag, b, offset, size)
	t.strbuf = b[strOffset:]
	t.records = make([]nameRecord, 0, count)
	for i := 0; i < int(count); i++ {
		rec, err := b.view(6+i*12, 12)
		if err != nil {
			ec.addWarning(tag, "name records exceed table bounds", offset)
			break
		}
		t.records = append(t.records, nameRecord{
			platformID: u16(rec),
			encodingID: u16(rec[2:]),
			languageID: u16(rec[4:]),
			nameID:     u16(rec[6:]),
			length:     u16(rec[8:]),
			offset:     u16(rec[10:]),
		})
	}
	return t, nil
}
