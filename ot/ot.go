package ot

import (
	"unicode/utf16"

	"github.com/npillmayer/otype/internal/fontload"
)

// Font represents the internal structure of an OpenType font.
// It is used to navigate properties of a font for typesetting tasks.
//
// A Font is created once from a byte buffer by Parse and is immutable
// thereafter. Multiple goroutines may shape different text concurrently
// against the same Font.
type Font struct {
	F             *fontload.ScalableFont
	Header        *FontHeader
	tables        map[Tag]Table
	CMap          *CMapTable    // cmap table is mandatory
	Head          *HeadTable    // typed access to head
	HHea          *HHeaTable    // typed access to hhea
	HMtx          *HMtxTable    // typed access to hmtx
	MaxP          *MaxPTable    // typed access to maxp
	OS2           *OS2Table     // typed access to OS/2, may be nil
	Glyf          *GlyfTable    // typed access to glyf, may be nil (CFF fonts)
	Kern          *KernTable    // typed access to kern, may be nil
	parseErrors   []FontError   // errors accumulated during parsing
	parseWarnings []FontWarning // warnings accumulated during parsing
	Layout        struct {      // OpenType advanced layout tables, each may be nil
		GSub *GSubTable // OpenType layout GSUB
		GPos *GPosTable // OpenType layout GPOS
		GDef *GDefTable // OpenType layout GDEF
	}
}

// FontHeader is a directory of the top-level tables in a font. If the font file
// contains only one font, the table directory will begin at byte 0 of the file.
// If the font file is an OpenType Font Collection file, the beginning
// point of the table directory for each font is indicated in the TTC header.
//
// OpenType fonts that contain TrueType outlines should use the value of
// 0x00010000 for the FontType. OpenType fonts containing CFF data (version 1
// or 2) should use 0x4F54544F ('OTTO', when re-interpreted as a Tag).
type FontHeader struct {
	FontType   uint32
	TableCount uint16
}

// Table returns the font table for a given tag. If a table for a tag cannot
// be found in the font, nil is returned.
//
// Not every kind of font table is interpreted; `Table` will return at least a
// generic table type for each table contained in the font, i.e. no table
// information will be dropped.
//
// Table tag names are case-sensitive, following the names in the OpenType
// specification, e.g. "head", "OS/2", "GSUB".
func (otf *Font) Table(tag Tag) Table {
	if t, ok := otf.tables[tag]; ok {
		return t
	}
	return nil
}

// TableTags returns a list of tags, one for each table contained in the font.
func (otf *Font) TableTags() []Tag {
	var tags = make([]Tag, 0, len(otf.tables))
	for tag := range otf.tables {
		tags = append(tags, tag)
	}
	return tags
}

// UnitsPerEm returns the design units per em square, from table head.
// The value is guaranteed to be in 16…16384.
func (otf *Font) UnitsPerEm() uint16 {
	if otf == nil || otf.Head == nil {
		return 2048
	}
	return otf.Head.UnitsPerEm
}

// Errors returns all errors encountered during font parsing.
// These errors represent issues that were found but did not prevent parsing
// from completing. Clients can inspect these errors to determine if the font
// is suitable for their use case.
func (otf *Font) Errors() []FontError {
	if otf.parseErrors == nil {
		return []FontError{}
	}
	return otf.parseErrors
}

// Warnings returns all warnings encountered during font parsing.
// Warnings indicate potential issues that are generally safe to ignore.
func (otf *Font) Warnings() []FontWarning {
	if otf.parseWarnings == nil {
		return []FontWarning{}
	}
	return otf.parseWarnings
}

// GlyphIndex is a glyph index in a font.
type GlyphIndex uint16

// --- Tag -------------------------------------------------------------------

// Tag is defined by the spec as:
// Array of four uint8s (length = 32 bits) used to identify a table,
// design-variation axis, script, language system, feature, or baseline.
type Tag uint32

// MakeTag creates a Tag from 4 bytes, e.g.,
//
//	MakeTag([]byte("cmap"))
//
// If b is shorter or longer, it will be silently extended or cut as appropriate.
func MakeTag(b []byte) Tag {
	if b == nil {
		b = []byte{0, 0, 0, 0}
	} else if len(b) > 4 {
		b = b[:4]
	} else if len(b) < 4 {
		b = append([]byte{0, 0, 0, 0}[:4-len(b)], b...)
	}
	return Tag(u32(b))
}

// T returns a Tag from a (4-letter) string.
// If t is shorter or longer, it will be silently extended or cut as appropriate.
func T(t string) Tag {
	t = (t + "    ")[:4]
	return Tag(u32([]byte(t)))
}

func (t Tag) String() string {
	bytes := []byte{
		byte(t >> 24 & 0xff),
		byte(t >> 16 & 0xff),
		byte(t >> 8 & 0xff),
		byte(t & 0xff),
	}
	return string(bytes)
}

// --- Table -----------------------------------------------------------------

// Table represents one of the various OpenType font tables.
//
// Required tables, according to the OpenType specification:
// 'cmap' (character to glyph mapping), 'head' (font header), 'hhea'
// (horizontal header), 'hmtx' (horizontal metrics), 'maxp' (maximum profile),
// 'name' (naming table), 'OS/2' (OS/2 and Windows specific metrics), 'post'
// (PostScript information).
//
// Advanced typographic tables: 'GDEF' (glyph definition data), 'GPOS' (glyph
// positioning data), 'GSUB' (glyph substitution data).
//
// For TrueType outline fonts: 'glyf' (glyph data), 'loca' (index to location),
// 'gasp' (grid-fitting/scan-conversion, optional), 'kern' (kerning, optional).
type Table interface {
	Extent() (uint32, uint32) // offset and byte size within the font's binary data
	Binary() []byte           // the bytes of this table; should be treated as read-only by clients
	Self() TableSelf          // reference to itself
}

func newTable(tag Tag, b binarySegm, offset, size uint32) *genericTable {
	t := &genericTable{tableBase{
		data:   b,
		name:   tag,
		offset: offset,
		length: size,
	}}
	t.self = t
	return t
}

type genericTable struct {
	tableBase
}

// tableBase is a common parent for all kinds of OpenType tables.
type tableBase struct {
	data   binarySegm // a table is a slice of font data
	name   Tag        // 4-byte name as an integer
	offset uint32     // from offset
	length uint32     // to offset + length
	self   any
}

// Extent returns offset and byte size of this table within the OpenType font.
func (tb *tableBase) Extent() (uint32, uint32) {
	return tb.offset, tb.length
}

// Binary returns the bytes of this table. Should be treated as read-only by
// clients, as it is a view into the original font data.
func (tb *tableBase) Binary() []byte {
	return tb.data
}

func (tb *tableBase) Self() TableSelf {
	return TableSelf{tableBase: tb}
}

// TableSelf is a reference to a table. Its primary use is for converting
// a generic table to a concrete table flavour, and for reproducing the
// name tag of a table.
type TableSelf struct {
	tableBase *tableBase
}

// NameTag returns the 4-letter name of a table.
func (tself TableSelf) NameTag() Tag {
	return tself.tableBase.name
}

func safeSelf(tself TableSelf) any {
	if tself.tableBase == nil || tself.tableBase.self == nil {
		return TableSelf{}
	}
	return tself.tableBase.self
}

// AsCMap returns this table as a cmap table, or nil.
func (tself TableSelf) AsCMap() *CMapTable {
	if k, ok := safeSelf(tself).(*CMapTable); ok {
		return k
	}
	return nil
}

// AsGPos returns this table as a GPOS table, or nil.
func (tself TableSelf) AsGPos() *GPosTable {
	if g, ok := safeSelf(tself).(*GPosTable); ok {
		return g
	}
	return nil
}

// AsGSub returns this table as a GSUB table, or nil.
func (tself TableSelf) AsGSub() *GSubTable {
	if g, ok := safeSelf(tself).(*GSubTable); ok {
		return g
	}
	return nil
}

// AsGDef returns this table as a GDEF table, or nil.
func (tself TableSelf) AsGDef() *GDefTable {
	if g, ok := safeSelf(tself).(*GDefTable); ok {
		return g
	}
	return nil
}

// AsLoca returns this table as a loca table, or nil.
func (tself TableSelf) AsLoca() *LocaTable {
	if k, ok := safeSelf(tself).(*LocaTable); ok {
		return k
	}
	return nil
}

// AsGlyf returns this table as a glyf table, or nil.
func (tself TableSelf) AsGlyf() *GlyfTable {
	if k, ok := safeSelf(tself).(*GlyfTable); ok {
		return k
	}
	return nil
}

// AsMaxP returns this table as a maxp table, or nil.
func (tself TableSelf) AsMaxP() *MaxPTable {
	if k, ok := safeSelf(tself).(*MaxPTable); ok {
		return k
	}
	return nil
}

// AsHead returns this table as a head table, or nil.
func (tself TableSelf) AsHead() *HeadTable {
	if k, ok := safeSelf(tself).(*HeadTable); ok {
		return k
	}
	return nil
}

// AsHHea returns this table as a hhea table, or nil.
func (tself TableSelf) AsHHea() *HHeaTable {
	if k, ok := safeSelf(tself).(*HHeaTable); ok {
		return k
	}
	return nil
}

// AsOS2 returns this table as an OS/2 table, or nil.
func (tself TableSelf) AsOS2() *OS2Table {
	if k, ok := safeSelf(tself).(*OS2Table); ok {
		return k
	}
	return nil
}

// AsHMtx returns this table as a hmtx table, or nil.
func (tself TableSelf) AsHMtx() *HMtxTable {
	if k, ok := safeSelf(tself).(*HMtxTable); ok {
		return k
	}
	return nil
}

// AsKern returns this table as a kern table, or nil.
func (tself TableSelf) AsKern() *KernTable {
	if k, ok := safeSelf(tself).(*KernTable); ok {
		return k
	}
	return nil
}

// AsGasp returns this table as a gasp table, or nil.
func (tself TableSelf) AsGasp() *GaspTable {
	if k, ok := safeSelf(tself).(*GaspTable); ok {
		return k
	}
	return nil
}

// AsName returns this table as a name table, or nil.
func (tself TableSelf) AsName() *NameTable {
	if k, ok := safeSelf(tself).(*NameTable); ok {
		return k
	}
	return nil
}

// --- Concrete table implementations ----------------------------------------

// HeadTable gives global information about the font.
type HeadTable struct {
	tableBase
	Flags            uint16 // see https://docs.microsoft.com/en-us/typography/opentype/spec/head
	UnitsPerEm       uint16 // values 16 … 16384 are valid
	IndexToLocFormat uint16 // needed to interpret the loca table: 0 short, 1 long
}

func newHeadTable(tag Tag, b binarySegm, offset, size uint32) *HeadTable {
	t := &HeadTable{}
	t.tableBase = tableBase{data: b, name: tag, offset: offset, length: size}
	t.self = t
	return t
}

// LocaTable stores the offsets to the locations of the glyphs in the font,
// relative to the beginning of the glyph data table.
// By definition, index zero points to the “missing character”.
type LocaTable struct {
	tableBase
	inx2loc func(t *LocaTable, gid GlyphIndex) uint32 // returns glyph location for glyph gid
	locCnt  int                                       // number of locations
}

// IndexToLocation returns the location of a glyph's data block within the
// glyf table. Out-of-range glyph indices map to location 0 (the missing
// character).
func (t *LocaTable) IndexToLocation(gid GlyphIndex) uint32 {
	return t.inx2loc(t, gid)
}

func newLocaTable(tag Tag, b binarySegm, offset, size uint32) *LocaTable {
	t := &LocaTable{}
	t.tableBase = tableBase{data: b, name: tag, offset: offset, length: size}
	t.inx2loc = shortLocaVersion // may get changed by font consistency check
	t.locCnt = 0                 // has to be set during consistency check
	t.self = t
	return t
}

func shortLocaVersion(t *LocaTable, gid GlyphIndex) uint32 {
	if int(gid) > t.locCnt {
		return 0
	}
	loc, err := t.data.u16(int(gid) * 2)
	if err != nil {
		return 0
	}
	return uint32(loc) * 2
}

func longLocaVersion(t *LocaTable, gid GlyphIndex) uint32 {
	if int(gid) > t.locCnt {
		return 0
	}
	loc, err := t.data.u32(int(gid) * 4)
	if err != nil {
		return 0
	}
	return loc
}

// MaxPTable establishes the memory requirements for this font.
// The 'maxp' table contains a count for the number of glyphs in the font.
type MaxPTable struct {
	tableBase
	NumGlyphs int
}

func newMaxPTable(tag Tag, b binarySegm, offset, size uint32) *MaxPTable {
	t := &MaxPTable{}
	t.tableBase = tableBase{data: b, name: tag, offset: offset, length: size}
	t.self = t
	return t
}

// HHeaTable contains information for horizontal layout.
type HHeaTable struct {
	tableBase
	Ascender         int16
	Descender        int16
	LineGap          int16
	AdvanceWidthMax  uint16
	NumberOfHMetrics int
}

func newHHeaTable(tag Tag, b binarySegm, offset, size uint32) *HHeaTable {
	t := &HHeaTable{}
	t.tableBase = tableBase{data: b, name: tag, offset: offset, length: size}
	t.self = t
	return t
}

// OS2Table contains a small, concrete subset of metrics from table 'OS/2'
// required for layout fallback decisions.
type OS2Table struct {
	tableBase
	Version       uint16
	XAvgCharWidth int16
	TypoAscender  int16
	TypoDescender int16
	TypoLineGap   int16
	WinAscent     uint16
	WinDescent    uint16
}

func newOS2Table(tag Tag, b binarySegm, offset, size uint32) *OS2Table {
	t := &OS2Table{}
	t.tableBase = tableBase{data: b, name: tag, offset: offset, length: size}
	t.self = t
	return t
}

// HMtxTable contains metric information for the horizontal layout of each
// glyph in the font. Each entry in the contained hMetrics array has two
// parts: the advance width and the left side bearing. The number of entries
// is `hhea.NumberOfHMetrics`; an optional array of bare left side bearings
// follows for the remaining glyphs, which all share the advance width of the
// last hMetrics entry (relevant for monospaced fonts).
type HMtxTable struct {
	tableBase
	NumberOfHMetrics int
	numGlyphs        int
}

func newHMtxTable(tag Tag, b binarySegm, offset, size uint32) *HMtxTable {
	t := &HMtxTable{}
	t.tableBase = tableBase{data: b, name: tag, offset: offset, length: size}
	t.self = t
	return t
}

// HMetrics returns the advance width and left side bearing for a glyph.
func (t *HMtxTable) HMetrics(g GlyphIndex) (advance uint16, lsb int16, ok bool) {
	if t == nil || t.numGlyphs == 0 || int(g) >= t.numGlyphs || t.NumberOfHMetrics == 0 {
		return 0, 0, false
	}
	if int(g) < t.NumberOfHMetrics {
		aw, err := t.data.u16(int(g) * 4)
		if err != nil {
			return 0, 0, false
		}
		l, err := t.data.i16(int(g)*4 + 2)
		if err != nil {
			return 0, 0, false
		}
		return aw, l, true
	}
	// trailing left side bearings share the last long metric's advance
	aw, err := t.data.u16((t.NumberOfHMetrics - 1) * 4)
	if err != nil {
		return 0, 0, false
	}
	l, err := t.data.i16(t.NumberOfHMetrics*4 + (int(g)-t.NumberOfHMetrics)*2)
	if err != nil {
		return 0, 0, false
	}
	return aw, l, true
}

// --- Kern table -------------------------------------------------------------

// KernTable gives access to pair-wise kerning distances. Only kern format 0
// sub-tables are interpreted; other formats are skipped during parsing.
type KernTable struct {
	tableBase
	headers []kernSubTableHeader
}

type kernSubTableHeader struct {
	offset   int    // start position of this sub-table's kern pairs
	pairs    int    // number of kern pairs
	coverage uint16 // info about type of information contained in this sub-table
}

// Kerning returns the kerning distance in design units between glyphs
// left and right. A pair not present in any sub-table yields None.
func (t *KernTable) Kerning(left, right GlyphIndex) Option[int16] {
	if t == nil {
		return None[int16]()
	}
	key := uint32(left)<<16 | uint32(right)
	for _, h := range t.headers {
		// binary search over sorted 6-byte kern pair records
		lo, hi := 0, h.pairs
		for lo < hi {
			mid := (lo + hi) / 2
			at := h.offset + mid*6
			k, err := t.data.u32(at)
			if err != nil {
				return None[int16]()
			}
			switch {
			case k == key:
				v, err := t.data.i16(at + 4)
				if err != nil {
					return None[int16]()
				}
				return Some(v)
			case k < key:
				lo = mid + 1
			default:
				hi = mid
			}
		}
	}
	return None[int16]()
}

func newKernTable(tag Tag, b binarySegm, offset, size uint32) *KernTable {
	t := &KernTable{}
	t.tableBase = tableBase{data: b, name: tag, offset: offset, length: size}
	t.self = t
	return t
}

// --- Gasp table -------------------------------------------------------------

// GaspTable describes the preferred rasterization behavior per ppem range.
type GaspTable struct {
	tableBase
	Ranges []GaspRange
}

// GaspRange covers ppem sizes up to and including MaxPPEM.
type GaspRange struct {
	MaxPPEM  uint16
	Behavior uint16
}

// Behavior flags of a gasp range.
const (
	GaspGridFit            = 0x0001
	GaspDoGray             = 0x0002
	GaspSymmetricGridFit   = 0x0004
	GaspSymmetricSmoothing = 0x0008
)

// BehaviorFor returns the rasterization behavior flags for a ppem size.
func (t *GaspTable) BehaviorFor(ppem uint16) uint16 {
	if t == nil {
		return 0
	}
	for _, r := range t.Ranges {
		if ppem <= r.MaxPPEM {
			return r.Behavior
		}
	}
	return 0
}

func newGaspTable(tag Tag, b binarySegm, offset, size uint32) *GaspTable {
	t := &GaspTable{}
	t.tableBase = tableBase{data: b, name: tag, offset: offset, length: size}
	t.self = t
	return t
}

// --- Name table -------------------------------------------------------------

// NameTable decodes the naming table; only platform Windows (3) with
// UTF-16BE encoding and platform Unicode (0) records are interpreted.
type NameTable struct {
	tableBase
	records []nameRecord
	strbuf  binarySegm
}

type nameRecord struct {
	platformID uint16
	encodingID uint16
	languageID uint16
	nameID     uint16
	length     uint16
	offset     uint16
}

func newNameTable(tag Tag, b binarySegm, offset, size uint32) *NameTable {
	t := &NameTable{}
	t.tableBase = tableBase{data: b, name: tag, offset: offset, length: size}
	t.self = t
	return t
}

// Name returns the (first decodable) name table entry for a name ID, e.g.
// 1 = font family, 2 = subfamily, 4 = full name, 6 = PostScript name.
func (t *NameTable) Name(nameID uint16) string {
	if t == nil {
		return ""
	}
	for _, rec := range t.records {
		if rec.nameID != nameID {
			continue
		}
		if s, ok := t.decode(rec); ok {
			return s
		}
	}
	return ""
}

// NameIDs returns the name IDs present in the table, in declaration order.
func (t *NameTable) NameIDs() []uint16 {
	if t == nil {
		return nil
	}
	ids := make([]uint16, 0, len(t.records))
	for _, rec := range t.records {
		ids = append(ids, rec.nameID)
	}
	return ids
}

func (t *NameTable) decode(rec nameRecord) (string, bool) {
	buf, err := t.strbuf.view(int(rec.offset), int(rec.length))
	if err != nil {
		return "", false
	}
	switch rec.platformID {
	case 0, 3: // Unicode, Windows: UTF-16BE
		if len(buf)%2 != 0 {
			return "", false
		}
		codes := make([]uint16, len(buf)/2)
		for i := range codes {
			codes[i] = u16(buf[i*2:])
		}
		return string(utf16.Decode(codes)), true
	case 1: // Macintosh, Roman: treat as Latin-1 subset
		runes := make([]rune, len(buf))
		for i, c := range buf {
			runes[i] = rune(c)
		}
		return string(runes), true
	}
	return "", false
}
