package ot

import "fmt"

// Common structures of the OpenType layout tables GSUB, GPOS and GDEF:
// Coverage and ClassDef predicates, the script/feature/lookup lists, and
// the lookup header. Code comments often cite passages from the OpenType
// specification version 1.8.4; see
// https://docs.microsoft.com/en-us/typography/opentype/spec/.

// Maximum reasonable counts for OpenType table structures. These limits
// prevent malicious fonts from claiming counts that would lead to
// excessive memory allocation.
const (
	MaxScriptCount  = 50   // scripts: typically < 10
	MaxFeatureCount = 500  // features: typically < 200
	MaxLookupCount  = 1000 // lookups: typically < 100
)

// --- Coverage ---------------------------------------------------------------

// Coverage declares the ordered set of glyphs a lookup or rule cares
// about, mapping each to a dense index (the coverage index), which is
// used to address parallel arrays of anchors, value records or rule sets.
//
// Two serialized formats exist: an explicit sorted glyph list (coverage
// index = position), or a sorted list of (start, end, startCoverageIndex)
// ranges. Both are kept as range-handles into the font buffer and
// searched binarily.
type Coverage struct {
	Format uint16
	rng    GlyphRange
}

// Match returns the coverage index of glyph g, if g is covered. Absence
// of a glyph is a normal "rule doesn't apply" outcome, never an error.
func (c Coverage) Match(g GlyphIndex) (int, bool) {
	if c.rng == nil {
		return 0, false
	}
	return c.rng.Match(g)
}

// Index is Match in Option form.
func (c Coverage) Index(g GlyphIndex) Option[int] {
	if inx, ok := c.Match(g); ok {
		return Some(inx)
	}
	return None[int]()
}

// GlyphCount returns the number of glyphs covered.
func (c Coverage) GlyphCount() int {
	if c.rng == nil {
		return 0
	}
	return c.rng.Count()
}

// parseCoverage decodes a coverage table (format 1 or 2).
func parseCoverage(b binarySegm) (Coverage, error) {
	format, err := b.u16(0)
	if err != nil {
		return Coverage{}, errInvalid(0, "Coverage", "coverage table header truncated")
	}
	count, err := b.u16(2)
	if err != nil {
		return Coverage{}, errInvalid(0, "Coverage", "coverage table header truncated")
	}
	switch format {
	case 1:
		data, err := b.view(4, int(count)*2)
		if err != nil {
			return Coverage{}, errInvalid(0, "Coverage", "glyph array exceeds coverage bounds")
		}
		return Coverage{Format: 1, rng: &glyphRangeArray{count: int(count), data: data}}, nil
	case 2:
		data, err := b.view(4, int(count)*6)
		if err != nil {
			return Coverage{}, errInvalid(0, "Coverage", "range records exceed coverage bounds")
		}
		return Coverage{Format: 2, rng: &glyphRangeRecords{count: int(count), data: data}}, nil
	}
	return Coverage{}, errInvalid(0, "Coverage", fmt.Sprintf("unknown coverage format %d", format))
}

// parseCoverageAt follows a 16-bit offset at position pos in b, relative
// to base, and decodes the coverage table there.
func parseCoverageAt(b binarySegm, pos int, base binarySegm) (Coverage, error) {
	off, err := b.u16(pos)
	if err != nil {
		return Coverage{}, errInvalid(0, "Coverage", "coverage offset truncated")
	}
	if int(off) >= len(base) {
		return Coverage{}, errInvalid(0, "Coverage", "coverage offset out of bounds")
	}
	return parseCoverage(base[off:])
}

// --- ClassDef ---------------------------------------------------------------

// ClassDefinitions partition glyphs into small integer classes for rule
// matching. Glyphs outside any declared range or array belong to class 0
// (the default class), which is not an error.
//
// Format 1 declares a contiguous class array starting at a first glyph;
// format 2 declares sorted class range records.
type ClassDefinitions struct {
	format     uint16
	startGlyph GlyphIndex // format 1
	count      int        // format 1: number of classes; format 2: number of records
	data       binarySegm
}

// Format returns the serialized format (1 or 2), or 0 for an absent table.
func (cdef *ClassDefinitions) Format() uint16 {
	if cdef == nil {
		return 0
	}
	return cdef.format
}

// Lookup returns the class of glyph g, class 0 if g is not classified.
// A nil receiver classifies every glyph as 0.
func (cdef *ClassDefinitions) Lookup(g GlyphIndex) int {
	if cdef == nil {
		return 0
	}
	switch cdef.format {
	case 1:
		if g < cdef.startGlyph || int(g-cdef.startGlyph) >= cdef.count {
			return 0
		}
		cls, err := cdef.data.u16(int(g-cdef.startGlyph) * 2)
		if err != nil {
			return 0
		}
		return int(cls)
	case 2:
		lo, hi := 0, cdef.count
		for lo < hi {
			mid := (lo + hi) / 2
			buf, err := cdef.data.view(mid*6, 6)
			if err != nil {
				return 0
			}
			from, to := GlyphIndex(u16(buf)), GlyphIndex(u16(buf[2:]))
			switch {
			case g < from:
				hi = mid
			case g > to:
				lo = mid + 1
			default:
				return int(u16(buf[4:]))
			}
		}
	}
	return 0
}

// parseClassDefinitions decodes a class definition table (format 1 or 2).
func parseClassDefinitions(b binarySegm) (*ClassDefinitions, error) {
	format, err := b.u16(0)
	if err != nil {
		return nil, errInvalid(0, "ClassDef", "class definition header truncated")
	}
	cdef := &ClassDefinitions{format: format}
	switch format {
	case 1:
		start, err := b.u16(2)
		if err != nil {
			return nil, errInvalid(0, "ClassDef", "class definition header truncated")
		}
		count, err := b.u16(4)
		if err != nil {
			return nil, errInvalid(0, "ClassDef", "class definition header truncated")
		}
		cdef.startGlyph = GlyphIndex(start)
		cdef.count = int(count)
		cdef.data, err = b.view(6, int(count)*2)
		if err != nil {
			return nil, errInvalid(0, "ClassDef", "class array exceeds table bounds")
		}
	case 2:
		count, err := b.u16(2)
		if err != nil {
			return nil, errInvalid(0, "ClassDef", "class definition header truncated")
		}
		cdef.count = int(count)
		cdef.data, err = b.view(4, int(count)*6)
		if err != nil {
			return nil, errInvalid(0, "ClassDef", "class range records exceed table bounds")
		}
	default:
		return nil, errInvalid(0, "ClassDef", fmt.Sprintf("unknown class definition format %d", format))
	}
	return cdef, nil
}

// parseClassDefAt follows a 16-bit offset at position pos in b, relative
// to base. A zero offset yields nil (= all glyphs class 0).
func parseClassDefAt(b binarySegm, pos int, base binarySegm) (*ClassDefinitions, error) {
	off, err := b.u16(pos)
	if err != nil {
		return nil, errInvalid(0, "ClassDef", "class definition offset truncated")
	}
	if off == 0 {
		return nil, nil
	}
	if int(off) >= len(base) {
		return nil, errInvalid(0, "ClassDef", "class definition offset out of bounds")
	}
	return parseClassDefinitions(base[off:])
}

// --- Lookup flags -----------------------------------------------------------

// LookupFlag governs which glyphs a lookup's scan may touch.
type LookupFlag uint16

// Lookup flags, see OpenType spec § “Lookup Table”.
const (
	LOOKUP_FLAG_RIGHT_TO_LEFT             LookupFlag = 0x0001 // cursive attachment on RTL scripts
	LOOKUP_FLAG_IGNORE_BASE_GLYPHS        LookupFlag = 0x0002 // skips over base glyphs
	LOOKUP_FLAG_IGNORE_LIGATURES          LookupFlag = 0x0004 // skips over ligatures
	LOOKUP_FLAG_IGNORE_MARKS              LookupFlag = 0x0008 // skips over all combining marks
	LOOKUP_FLAG_USE_MARK_FILTERING_SET    LookupFlag = 0x0010 // skips marks not in the lookup's mark filtering set
	LOOKUP_FLAG_MARK_ATTACHMENT_TYPE_MASK LookupFlag = 0xFF00 // skips marks of a different attachment type
)

// MarkAttachmentType extracts the mark attachment class filter, 0 if unset.
func (f LookupFlag) MarkAttachmentType() int {
	return int(f&LOOKUP_FLAG_MARK_ATTACHMENT_TYPE_MASK) >> 8
}

// --- Script and feature lists -----------------------------------------------

// LangSys is a language system table: the feature indices applicable for
// one script/language combination, plus an optional required feature.
type LangSys struct {
	Required       Option[uint16] // index of a feature required for this language system
	FeatureIndices []uint16       // indices into the feature list, in arbitrary order
}

// ScriptTable lists the language systems of one script.
type ScriptTable struct {
	Tag            Tag
	DefaultLangSys Option[LangSys]
	LangSys        map[Tag]LangSys
}

// ScriptList maps script tags to their script tables.
type ScriptList map[Tag]*ScriptTable

// FeatureRecord binds a feature tag (e.g. 'liga', 'kern') to the lookup
// indices implementing it.
type FeatureRecord struct {
	Tag           Tag
	LookupIndices []uint16
}

// LayoutTable is the shared base of the GSUB and GPOS tables: a script
// list, a feature list and a lookup list (the latter held by the
// concrete table since lookups are typed per table).
type LayoutTable struct {
	Scripts  ScriptList
	Features []FeatureRecord
}

// DFLT is the fallback script tag per the OpenType specification.
var DFLT = T("DFLT")

// FeatureIndicesFor resolves the feature indices applicable for a script
// and language, falling back to the script's default language system and
// to the DFLT script, mirroring the resolution order of the OpenType
// specification. The required feature index, if any, is returned
// separately.
func (lyt *LayoutTable) FeatureIndicesFor(script, lang Tag) (Option[uint16], []uint16) {
	if lyt == nil || len(lyt.Scripts) == 0 {
		return None[uint16](), nil
	}
	scr, ok := lyt.Scripts[script]
	if !ok {
		if scr, ok = lyt.Scripts[DFLT]; !ok {
			return None[uint16](), nil
		}
	}
	if lang != 0 {
		if ls, ok := scr.LangSys[lang]; ok {
			return ls.Required, ls.FeatureIndices
		}
	}
	if ls, ok := scr.DefaultLangSys.Unwrap(); ok {
		return ls.Required, ls.FeatureIndices
	}
	return None[uint16](), nil
}

// FeatureFor returns the feature record for a feature index.
func (lyt *LayoutTable) FeatureFor(inx uint16) (FeatureRecord, bool) {
	if lyt == nil || int(inx) >= len(lyt.Features) {
		return FeatureRecord{}, false
	}
	return lyt.Features[inx], true
}

// --- List parsing -----------------------------------------------------------

// layout table header, versions 1.0 and 1.1:
// majorVersion, minorVersion, scriptListOffset, featureListOffset,
// lookupListOffset [, featureVariationsOffset]
func parseLayoutLists(tag Tag, b binarySegm, ec *errorCollector) (LayoutTable, binarySegm, error) {
	var lyt LayoutTable
	if len(b) < 10 {
		ec.addError(tag, "Header", "layout table header too small", SeverityCritical, 0)
		return lyt, nil, errInvalid(tag, "Header", "layout table header too small")
	}
	major, _ := b.u16(0)
	minor, _ := b.u16(2)
	if major != 1 || minor > 1 {
		ec.addError(tag, "Header", fmt.Sprintf("unsupported version %d.%d", major, minor), SeverityMajor, 0)
		return lyt, nil, errUnsupported(tag, "Header", fmt.Sprintf("layout table version %d.%d", major, minor))
	}
	scriptsOff, _ := b.u16(4)
	featuresOff, _ := b.u16(6)
	lookupsOff, _ := b.u16(8)
	for _, off := range []uint16{scriptsOff, featuresOff, lookupsOff} {
		if int(off) >= len(b) {
			return lyt, nil, errInvalid(tag, "Header", "list offset out of bounds")
		}
	}
	var err error
	if lyt.Scripts, err = parseScriptList(tag, b[scriptsOff:]); err != nil {
		return lyt, nil, err
	}
	if lyt.Features, err = parseFeatureList(tag, b[featuresOff:]); err != nil {
		return lyt, nil, err
	}
	return lyt, b[lookupsOff:], nil
}

// A ScriptList table consists of a count of the scripts represented by
// the glyphs in the font and an array of records, one for each script,
// stored in alphabetic order of the script tags.
func parseScriptList(tag Tag, b binarySegm) (ScriptList, error) {
	count, err := b.u16(0)
	if err != nil {
		return nil, errInvalid(tag, "ScriptList", "script list truncated")
	}
	if int(count) > MaxScriptCount {
		return nil, errInvalid(tag, "ScriptList", fmt.Sprintf("script count %d exceeds maximum", count))
	}
	scripts := make(ScriptList, count)
	for i := 0; i < int(count); i++ {
		rec, err := b.view(2+i*6, 6)
		if err != nil {
			return nil, errInvalid(tag, "ScriptList", "script records exceed list bounds")
		}
		scrTag := MakeTag(rec)
		off := u16(rec[4:])
		if int(off) >= len(b) {
			return nil, errInvalid(tag, "ScriptList", "script table offset out of bounds")
		}
		scr, err := parseScriptTable(tag, scrTag, b[off:])
		if err != nil {
			return nil, err
		}
		scripts[scrTag] = scr
	}
	return scripts, nil
}

// A Script table has an offset to a default LangSys table and an array
// of LangSysRecords, one per supported language system.
func parseScriptTable(tag Tag, scrTag Tag, b binarySegm) (*ScriptTable, error) {
	defOff, err := b.u16(0)
	if err != nil {
		return nil, errInvalid(tag, "Script", "script table truncated")
	}
	count, err := b.u16(2)
	if err != nil {
		return nil, errInvalid(tag, "Script", "script table truncated")
	}
	scr := &ScriptTable{Tag: scrTag, DefaultLangSys: None[LangSys](), LangSys: make(map[Tag]LangSys, count)}
	if defOff != 0 {
		if int(defOff) >= len(b) {
			return nil, errInvalid(tag, "Script", "default LangSys offset out of bounds")
		}
		ls, err := parseLangSys(tag, b[defOff:])
		if err != nil {
			return nil, err
		}
		scr.DefaultLangSys = Some(ls)
	}
	for i := 0; i < int(count); i++ {
		rec, err := b.view(4+i*6, 6)
		if err != nil {
			return nil, errInvalid(tag, "Script", "LangSys records exceed script bounds")
		}
		langTag := MakeTag(rec)
		off := u16(rec[4:])
		if int(off) >= len(b) {
			return nil, errInvalid(tag, "Script", "LangSys offset out of bounds")
		}
		ls, err := parseLangSys(tag, b[off:])
		if err != nil {
			return nil, err
		}
		scr.LangSys[langTag] = ls
	}
	return scr, nil
}

// LangSys table:
//
//	Offset16  lookupOrderOffset                  = NULL, reserved
//	uint16    requiredFeatureIndex               0xFFFF if none
//	uint16    featureIndexCount
//	uint16    featureIndices[featureIndexCount]
func parseLangSys(tag Tag, b binarySegm) (LangSys, error) {
	required, err := b.u16(2)
	if err != nil {
		return LangSys{}, errInvalid(tag, "LangSys", "LangSys table truncated")
	}
	count, err := b.u16(4)
	if err != nil {
		return LangSys{}, errInvalid(tag, "LangSys", "LangSys table truncated")
	}
	indices, err := b.u16s(6, int(count))
	if err != nil {
		return LangSys{}, errInvalid(tag, "LangSys", "feature indices exceed LangSys bounds")
	}
	ls := LangSys{Required: None[uint16](), FeatureIndices: indices}
	if required != 0xFFFF {
		ls.Required = Some(required)
	}
	return ls, nil
}

// The FeatureList table enumerates features in an array of records,
// arranged alphabetically by feature tag.
func parseFeatureList(tag Tag, b binarySegm) ([]FeatureRecord, error) {
	count, err := b.u16(0)
	if err != nil {
		return nil, errInvalid(tag, "FeatureList", "feature list truncated")
	}
	if int(count) > MaxFeatureCount {
		return nil, errInvalid(tag, "FeatureList", fmt.Sprintf("feature count %d exceeds maximum", count))
	}
	features := make([]FeatureRecord, count)
	for i := 0; i < int(count); i++ {
		rec, err := b.view(2+i*6, 6)
		if err != nil {
			return nil, errInvalid(tag, "FeatureList", "feature records exceed list bounds")
		}
		featTag := MakeTag(rec)
		off := u16(rec[4:])
		if int(off) >= len(b) {
			return nil, errInvalid(tag, "FeatureList", "feature table offset out of bounds")
		}
		// feature table: featureParamsOffset, lookupIndexCount, lookupListIndices[]
		ft := b[off:]
		n, err := ft.u16(2)
		if err != nil {
			return nil, errInvalid(tag, "Feature", "feature table truncated")
		}
		indices, err := ft.u16s(4, int(n))
		if err != nil {
			return nil, errInvalid(tag, "Feature", "lookup indices exceed feature bounds")
		}
		features[i] = FeatureRecord{Tag: featTag, LookupIndices: indices}
	}
	return features, nil
}

// --- Lookup list ------------------------------------------------------------

// lookupHeader is the common front matter of a lookup table:
// lookupType, lookupFlag, subTableCount, subtableOffsets[],
// markFilteringSet (present iff USE_MARK_FILTERING_SET).
type lookupHeader struct {
	Type             uint16
	Flag             LookupFlag
	MarkFilteringSet Option[uint16]
	subtables        []binarySegm
}

// parseLookupList walks the lookup list and calls parse for each lookup's
// decoded header. The callback receives the lookup index for diagnostics.
func parseLookupList(tag Tag, b binarySegm, ec *errorCollector, parse func(inx int, h lookupHeader) error) error {
	count, err := b.u16(0)
	if err != nil {
		return errInvalid(tag, "LookupList", "lookup list truncated")
	}
	if int(count) > MaxLookupCount {
		return errInvalid(tag, "LookupList", fmt.Sprintf("lookup count %d exceeds maximum", count))
	}
	for i := 0; i < int(count); i++ {
		off, err := b.u16(2 + i*2)
		if err != nil {
			return errInvalid(tag, "LookupList", "lookup offsets exceed list bounds")
		}
		if int(off) >= len(b) {
			return errInvalid(tag, "LookupList", "lookup table offset out of bounds")
		}
		h, err := parseLookupHeader(tag, b[off:])
		if err != nil {
			return err
		}
		if err = parse(i, h); err != nil {
			return err
		}
	}
	return nil
}

func parseLookupHeader(tag Tag, b binarySegm) (lookupHeader, error) {
	var h lookupHeader
	lty, err := b.u16(0)
	if err != nil {
		return h, errInvalid(tag, "Lookup", "lookup table truncated")
	}
	flag, _ := b.u16(2)
	count, err := b.u16(4)
	if err != nil {
		return h, errInvalid(tag, "Lookup", "lookup table truncated")
	}
	h.Type = lty
	h.Flag = LookupFlag(flag)
	h.MarkFilteringSet = None[uint16]()
	h.subtables = make([]binarySegm, 0, count)
	for i := 0; i < int(count); i++ {
		off, err := b.u16(6 + i*2)
		if err != nil {
			return h, errInvalid(tag, "Lookup", "subtable offsets exceed lookup bounds")
		}
		if int(off) >= len(b) {
			return h, errInvalid(tag, "Lookup", "subtable offset out of bounds")
		}
		h.subtables = append(h.subtables, b[off:])
	}
	if h.Flag&LOOKUP_FLAG_USE_MARK_FILTERING_SET != 0 {
		mfs, err := b.u16(6 + int(count)*2)
		if err != nil {
			return h, errInvalid(tag, "Lookup", "mark filtering set truncated")
		}
		h.MarkFilteringSet = Some(mfs)
	}
	return h, nil
}

// --- GSUB and GPOS table shells ---------------------------------------------

// GSubTable is the glyph substitution table of a font. Its lookups
// mutate glyph identity; application lives in package otlayout.
type GSubTable struct {
	tableBase
	LayoutTable
	Lookups []*GSubLookup
}

func newGSubTable(tag Tag, b binarySegm, offset, size uint32) *GSubTable {
	t := &GSubTable{}
	t.tableBase = tableBase{data: b, name: tag, offset: offset, length: size}
	t.self = t
	return t
}

// GPosTable is the glyph positioning table of a font. Its lookups
// produce position deltas; application lives in package otlayout.
type GPosTable struct {
	tableBase
	LayoutTable
	Lookups []*GPosLookup
}

func newGPosTable(tag Tag, b binarySegm, offset, size uint32) *GPosTable {
	t := &GPosTable{}
	t.tableBase = tableBase{data: b, name: tag, offset: offset, length: size}
	t.self = t
	return t
}
