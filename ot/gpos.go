package ot

import (
	"fmt"
	"math/bits"
)

// GPOS lookup types.
const (
	GPosSingle         = 1 // adjust position of a single glyph
	GPosPair           = 2 // adjust position of a pair of glyphs
	GPosCursive        = 3 // attach cursive glyphs
	GPosMarkToBase     = 4 // attach a combining mark to a base glyph
	GPosMarkToLigature = 5 // attach a combining mark to a ligature
	GPosMarkToMark     = 6 // attach a combining mark to another mark
	GPosContext        = 7 // position one or more glyphs in context
	GPosChainedContext = 8 // position one or more glyphs in chained context
	GPosExtension      = 9 // extension mechanism for other positionings
)

// --- Value records ----------------------------------------------------------

// ValueFormat is the bitmask declaring which fields of a value record
// are serialized. The record's effective size varies per declaration and
// is recomputed from the bitmask on every parse.
type ValueFormat uint16

// Value format flags.
const (
	ValueXPlacement       ValueFormat = 0x0001
	ValueYPlacement       ValueFormat = 0x0002
	ValueXAdvance         ValueFormat = 0x0004
	ValueYAdvance         ValueFormat = 0x0008
	ValueXPlacementDevice ValueFormat = 0x0010
	ValueYPlacementDevice ValueFormat = 0x0020
	ValueXAdvanceDevice   ValueFormat = 0x0040
	ValueYAdvanceDevice   ValueFormat = 0x0080
)

// Size returns the serialized size in bytes of a value record with this
// format: 2 bytes per declared field.
func (f ValueFormat) Size() int {
	return bits.OnesCount16(uint16(f)&0x00FF) * 2
}

// ValueRecord is a positioning adjustment in design units. Fields absent
// from the declaring ValueFormat default to 0. Device table references
// are accounted for in the record size but not interpreted.
type ValueRecord struct {
	XPlacement int16
	YPlacement int16
	XAdvance   int16
	YAdvance   int16
}

// IsZero reports whether the record adjusts nothing.
func (vr ValueRecord) IsZero() bool {
	return vr == ValueRecord{}
}

// parseValueRecord reads a value record declared with format f at
// position at in b.
func parseValueRecord(b binarySegm, at int, f ValueFormat) (ValueRecord, error) {
	var vr ValueRecord
	if f == 0 {
		return vr, nil
	}
	buf, err := b.view(at, f.Size())
	if err != nil {
		return vr, errInvalid(0, "ValueRecord", "value record truncated")
	}
	pos := 0
	read := func() int16 {
		v := int16(u16(buf[pos:]))
		pos += 2
		return v
	}
	if f&ValueXPlacement != 0 {
		vr.XPlacement = read()
	}
	if f&ValueYPlacement != 0 {
		vr.YPlacement = read()
	}
	if f&ValueXAdvance != 0 {
		vr.XAdvance = read()
	}
	if f&ValueYAdvance != 0 {
		vr.YAdvance = read()
	}
	// device table offsets, if declared, are skipped
	return vr, nil
}

// --- Anchors and mark arrays ------------------------------------------------

// Anchor is a 2D design-unit coordinate used to align one glyph's
// attachment point to another's. Format 2 ties the anchor to a glyph
// contour point; format 3 device table references are ignored.
type Anchor struct {
	Format       uint16
	X, Y         int16
	ContourPoint Option[uint16] // format 2
}

func parseAnchor(b binarySegm) (Anchor, error) {
	var a Anchor
	var err error
	if a.Format, err = b.u16(0); err != nil {
		return a, errInvalid(0, "Anchor", "anchor table truncated")
	}
	if a.Format < 1 || a.Format > 3 {
		return a, errInvalid(0, "Anchor", fmt.Sprintf("unknown anchor format %d", a.Format))
	}
	if a.X, err = b.i16(2); err != nil {
		return a, errInvalid(0, "Anchor", "anchor table truncated")
	}
	if a.Y, err = b.i16(4); err != nil {
		return a, errInvalid(0, "Anchor", "anchor table truncated")
	}
	a.ContourPoint = None[uint16]()
	if a.Format == 2 {
		pt, err := b.u16(6)
		if err != nil {
			return a, errInvalid(0, "Anchor", "anchor table truncated")
		}
		a.ContourPoint = Some(pt)
	}
	return a, nil
}

// parseAnchorAt follows a 16-bit offset at position pos in b, relative to
// base. A zero offset yields None.
func parseAnchorAt(b binarySegm, pos int, base binarySegm) (Option[Anchor], error) {
	off, err := b.u16(pos)
	if err != nil {
		return None[Anchor](), errInvalid(0, "Anchor", "anchor offset truncated")
	}
	if off == 0 {
		return None[Anchor](), nil
	}
	if int(off) >= len(base) {
		return None[Anchor](), errInvalid(0, "Anchor", "anchor offset out of bounds")
	}
	a, err := parseAnchor(base[off:])
	if err != nil {
		return None[Anchor](), err
	}
	return Some(a), nil
}

// MarkRecord assigns a mark glyph (by coverage index) to a mark class
// and an attachment anchor.
type MarkRecord struct {
	Class  uint16
	Anchor Anchor
}

// mark array: markCount, MarkRecord{markClass, markAnchorOffset}[]
func parseMarkArray(b binarySegm) ([]MarkRecord, error) {
	count, err := b.u16(0)
	if err != nil {
		return nil, errInvalid(0, "MarkArray", "mark array truncated")
	}
	marks := make([]MarkRecord, count)
	for i := 0; i < int(count); i++ {
		cls, err := b.u16(2 + i*4)
		if err != nil {
			return nil, errInvalid(0, "MarkArray", "mark records exceed array bounds")
		}
		anchor, err := parseAnchorAt(b, 2+i*4+2, b)
		if err != nil {
			return nil, err
		}
		a, ok := anchor.Unwrap()
		if !ok {
			return nil, errInvalid(0, "MarkArray", "mark record without anchor")
		}
		marks[i] = MarkRecord{Class: cls, Anchor: a}
	}
	return marks, nil
}

// --- Subtable union ---------------------------------------------------------

// GPosLookup is one glyph positioning lookup.
type GPosLookup struct {
	Type             uint16
	Flag             LookupFlag
	MarkFilteringSet Option[uint16]
	Subtables        []GPosSubtable
}

// GPosSubtable is the closed union of GPOS subtable types. Concrete
// types are SinglePos, PairPos, CursivePos, MarkToBasePos,
// MarkToLigaturePos, MarkToMarkPos, ContextPos and ChainedContextPos.
// Extension subtables are resolved at load time and never appear here.
type GPosSubtable interface {
	LookupType() uint16
}

// SinglePos adjusts the position of single glyphs: one shared record
// (format 1) or one record per covered glyph (format 2).
type SinglePos struct {
	Format   uint16
	Coverage Coverage
	Records  []ValueRecord // format 1: one entry; format 2: by coverage index
}

func (SinglePos) LookupType() uint16 { return GPosSingle }

// Value returns the adjustment for glyph g, if g is covered.
func (st *SinglePos) Value(g GlyphIndex) Option[ValueRecord] {
	inx, ok := st.Coverage.Match(g)
	if !ok {
		return None[ValueRecord]()
	}
	if st.Format == 1 {
		inx = 0
	}
	if inx >= len(st.Records) {
		return None[ValueRecord]()
	}
	return Some(st.Records[inx])
}

// PairValueRecord adjusts both glyphs of one specific glyph pair.
type PairValueRecord struct {
	Second GlyphIndex
	Value1 ValueRecord
	Value2 ValueRecord
}

// ClassPairAdjust adjusts both glyphs of a class pair.
type ClassPairAdjust struct {
	Value1 ValueRecord
	Value2 ValueRecord
}

// PairPos adjusts glyph pairs, keyed by the second glyph ID (format 1)
// or by class pair (format 2).
type PairPos struct {
	Format   uint16
	Coverage Coverage // of the first glyph
	Format1  ValueFormat
	Format2  ValueFormat
	PairSets [][]PairValueRecord // format 1, by coverage index
	// format 2:
	ClassDef1    *ClassDefinitions
	ClassDef2    *ClassDefinitions
	Class2Count  int
	ClassRecords []ClassPairAdjust // class1 * Class2Count + class2
}

func (PairPos) LookupType() uint16 { return GPosPair }

// Adjust returns the adjustments for the pair (first, second), if the
// subtable declares the pair.
func (st *PairPos) Adjust(first, second GlyphIndex) Option[ClassPairAdjust] {
	inx, ok := st.Coverage.Match(first)
	if !ok {
		return None[ClassPairAdjust]()
	}
	switch st.Format {
	case 1:
		if inx >= len(st.PairSets) {
			return None[ClassPairAdjust]()
		}
		for _, pvr := range st.PairSets[inx] {
			if pvr.Second == second {
				return Some(ClassPairAdjust{Value1: pvr.Value1, Value2: pvr.Value2})
			}
		}
	case 2:
		c1 := st.ClassDef1.Lookup(first)
		c2 := st.ClassDef2.Lookup(second)
		at := c1*st.Class2Count + c2
		if at < len(st.ClassRecords) {
			return Some(st.ClassRecords[at])
		}
	}
	return None[ClassPairAdjust]()
}

// EntryExit is one cursive attachment record: where the pen enters and
// exits a glyph.
type EntryExit struct {
	Entry Option[Anchor]
	Exit  Option[Anchor]
}

// CursivePos attaches cursive glyphs: each covered glyph's exit anchor
// is aligned with the following covered glyph's entry anchor.
type CursivePos struct {
	Coverage   Coverage
	EntryExits []EntryExit // by coverage index
}

func (CursivePos) LookupType() uint16 { return GPosCursive }

// MarkToBasePos attaches a combining mark to a base glyph: the mark's
// anchor is aligned with the base anchor selected by the mark's class.
type MarkToBasePos struct {
	MarkCoverage Coverage
	BaseCoverage Coverage
	ClassCount   int
	Marks        []MarkRecord       // by mark coverage index
	Bases        [][]Option[Anchor] // [base coverage index][mark class]
}

func (MarkToBasePos) LookupType() uint16 { return GPosMarkToBase }

// MarkToLigaturePos attaches a combining mark to a ligature, selecting
// the base anchor per ligature component.
type MarkToLigaturePos struct {
	MarkCoverage     Coverage
	LigatureCoverage Coverage
	ClassCount       int
	Marks            []MarkRecord         // by mark coverage index
	Ligatures        [][][]Option[Anchor] // [ligature coverage index][component][mark class]
}

func (MarkToLigaturePos) LookupType() uint16 { return GPosMarkToLigature }

// MarkToMarkPos attaches a combining mark to another mark.
type MarkToMarkPos struct {
	Mark1Coverage Coverage
	Mark2Coverage Coverage
	ClassCount    int
	Marks         []MarkRecord       // by mark1 coverage index
	Mark2Anchors  [][]Option[Anchor] // [mark2 coverage index][mark class]
}

func (MarkToMarkPos) LookupType() uint16 { return GPosMarkToMark }

// ContextPos applies nested lookups in a sequence context.
type ContextPos struct {
	Ctx *SequenceContext
}

func (ContextPos) LookupType() uint16 { return GPosContext }

// ChainedContextPos applies nested lookups in a chained sequence context.
type ChainedContextPos struct {
	Ctx *ChainedSequenceContext
}

func (ChainedContextPos) LookupType() uint16 { return GPosChainedContext }

// --- Parsing ----------------------------------------------------------------

func parseGPos(tag Tag, b binarySegm, offset, size uint32, ec *errorCollector) (Table, error) {
	t := newGPosTable(tag, b, offset, size)
	lyt, lookupList, err := parseLayoutLists(tag, b, ec)
	if err != nil {
		return nil, err
	}
	t.LayoutTable = lyt
	err = parseLookupList(tag, lookupList, ec, func(inx int, h lookupHeader) error {
		lookup := &GPosLookup{
			Type:             h.Type,
			Flag:             h.Flag,
			MarkFilteringSet: h.MarkFilteringSet,
		}
		for _, sub := range h.subtables {
			st, err := parseGPosSubtable(tag, h.Type, sub, 0)
			if err != nil {
				return err
			}
			lookup.Subtables = append(lookup.Subtables, st)
		}
		if h.Type == GPosExtension && len(lookup.Subtables) > 0 {
			lookup.Type = lookup.Subtables[0].LookupType()
		}
		t.Lookups = append(t.Lookups, lookup)
		return nil
	})
	if err != nil {
		return nil, err
	}
	tracer().Debugf("GPOS has %d lookups", len(t.Lookups))
	return t, nil
}

// parseGPosSubtable is the dispatch constructor over the closed subtable
// union. Extension subtables re-dispatch exactly once.
func parseGPosSubtable(tag Tag, lookupType uint16, b binarySegm, depth int) (GPosSubtable, error) {
	switch lookupType {
	case GPosSingle:
		return parseSinglePos(tag, b)
	case GPosPair:
		return parsePairPos(tag, b)
	case GPosCursive:
		return parseCursivePos(tag, b)
	case GPosMarkToBase:
		return parseMarkToBasePos(tag, b)
	case GPosMarkToLigature:
		return parseMarkToLigaturePos(tag, b)
	case GPosMarkToMark:
		return parseMarkToMarkPos(tag, b)
	case GPosContext:
		ctx, err := parseSequenceContext(tag, b)
		if err != nil {
			return nil, err
		}
		return &ContextPos{Ctx: ctx}, nil
	case GPosChainedContext:
		ctx, err := parseChainedSequenceContext(tag, b)
		if err != nil {
			return nil, err
		}
		return &ChainedContextPos{Ctx: ctx}, nil
	case GPosExtension:
		if depth > 0 {
			return nil, errInvalid(tag, "ExtensionPos", "extension subtable wraps another extension")
		}
		wrappedType, wrapped, err := parseExtension(tag, b, "ExtensionPos", GPosExtension)
		if err != nil {
			return nil, err
		}
		return parseGPosSubtable(tag, wrappedType, wrapped, depth+1)
	}
	return nil, errInvalid(tag, "Lookup", fmt.Sprintf("unknown GPOS lookup type %d", lookupType))
}

func parseSinglePos(tag Tag, b binarySegm) (GPosSubtable, error) {
	format, err := b.u16(0)
	if err != nil {
		return nil, errInvalid(tag, "SinglePos", "subtable truncated")
	}
	st := &SinglePos{Format: format}
	if st.Coverage, err = parseCoverageAt(b, 2, b); err != nil {
		return nil, err
	}
	vf, err := b.u16(4)
	if err != nil {
		return nil, errInvalid(tag, "SinglePos", "subtable truncated")
	}
	format1 := ValueFormat(vf)
	switch format {
	case 1:
		vr, err := parseValueRecord(b, 6, format1)
		if err != nil {
			return nil, err
		}
		st.Records = []ValueRecord{vr}
	case 2:
		count, err := b.u16(6)
		if err != nil {
			return nil, errInvalid(tag, "SinglePos", "subtable truncated")
		}
		st.Records = make([]ValueRecord, count)
		for i := 0; i < int(count); i++ {
			if st.Records[i], err = parseValueRecord(b, 8+i*format1.Size(), format1); err != nil {
				return nil, err
			}
		}
	default:
		return nil, errInvalid(tag, "SinglePos", fmt.Sprintf("unknown format %d", format))
	}
	return st, nil
}

func parsePairPos(tag Tag, b binarySegm) (GPosSubtable, error) {
	format, err := b.u16(0)
	if err != nil {
		return nil, errInvalid(tag, "PairPos", "subtable truncated")
	}
	st := &PairPos{Format: format}
	if st.Coverage, err = parseCoverageAt(b, 2, b); err != nil {
		return nil, err
	}
	vf1, _ := b.u16(4)
	vf2, err := b.u16(6)
	if err != nil {
		return nil, errInvalid(tag, "PairPos", "subtable truncated")
	}
	st.Format1, st.Format2 = ValueFormat(vf1), ValueFormat(vf2)
	recSize := st.Format1.Size() + st.Format2.Size()
	switch format {
	case 1:
		setCount, err := b.u16(8)
		if err != nil {
			return nil, errInvalid(tag, "PairPos", "subtable truncated")
		}
		st.PairSets = make([][]PairValueRecord, setCount)
		for i := 0; i < int(setCount); i++ {
			off, err := b.u16(10 + i*2)
			if err != nil || int(off) >= len(b) {
				return nil, errInvalid(tag, "PairPos", "pair set offset out of bounds")
			}
			set := b[off:]
			pairCount, err := set.u16(0)
			if err != nil {
				return nil, errInvalid(tag, "PairPos", "pair set truncated")
			}
			records := make([]PairValueRecord, pairCount)
			for j := 0; j < int(pairCount); j++ {
				at := 2 + j*(2+recSize)
				second, err := set.u16(at)
				if err != nil {
					return nil, errInvalid(tag, "PairPos", "pair value records exceed set bounds")
				}
				v1, err := parseValueRecord(set, at+2, st.Format1)
				if err != nil {
					return nil, err
				}
				v2, err := parseValueRecord(set, at+2+st.Format1.Size(), st.Format2)
				if err != nil {
					return nil, err
				}
				records[j] = PairValueRecord{Second: GlyphIndex(second), Value1: v1, Value2: v2}
			}
			st.PairSets[i] = records
		}
	case 2:
		if st.ClassDef1, err = parseClassDefAt(b, 8, b); err != nil {
			return nil, err
		}
		if st.ClassDef2, err = parseClassDefAt(b, 10, b); err != nil {
			return nil, err
		}
		c1Count, _ := b.u16(12)
		c2Count, err := b.u16(14)
		if err != nil {
			return nil, errInvalid(tag, "PairPos", "subtable truncated")
		}
		st.Class2Count = int(c2Count)
		total, err := checkedMulInt(int(c1Count), int(c2Count))
		if err != nil {
			return nil, errInvalid(tag, "PairPos", "class matrix size overflow")
		}
		st.ClassRecords = make([]ClassPairAdjust, total)
		for i := 0; i < total; i++ {
			at := 16 + i*recSize
			v1, err := parseValueRecord(b, at, st.Format1)
			if err != nil {
				return nil, err
			}
			v2, err := parseValueRecord(b, at+st.Format1.Size(), st.Format2)
			if err != nil {
				return nil, err
			}
			st.ClassRecords[i] = ClassPairAdjust{Value1: v1, Value2: v2}
		}
	default:
		return nil, errInvalid(tag, "PairPos", fmt.Sprintf("unknown format %d", format))
	}
	return st, nil
}

func parseCursivePos(tag Tag, b binarySegm) (GPosSubtable, error) {
	format, err := b.u16(0)
	if err != nil || format != 1 {
		return nil, errInvalid(tag, "CursivePos", "unknown subtable format")
	}
	st := &CursivePos{}
	if st.Coverage, err = parseCoverageAt(b, 2, b); err != nil {
		return nil, err
	}
	count, err := b.u16(4)
	if err != nil {
		return nil, errInvalid(tag, "CursivePos", "subtable truncated")
	}
	st.EntryExits = make([]EntryExit, count)
	for i := 0; i < int(count); i++ {
		entry, err := parseAnchorAt(b, 6+i*4, b)
		if err != nil {
			return nil, err
		}
		exit, err := parseAnchorAt(b, 6+i*4+2, b)
		if err != nil {
			return nil, err
		}
		st.EntryExits[i] = EntryExit{Entry: entry, Exit: exit}
	}
	return st, nil
}

// base array / mark2 array: count, then per entry one anchor offset per
// mark class (offsets may be NULL)
func parseAnchorMatrix(b binarySegm, classCount int) ([][]Option[Anchor], error) {
	count, err := b.u16(0)
	if err != nil {
		return nil, errInvalid(0, "AnchorMatrix", "anchor matrix truncated")
	}
	matrix := make([][]Option[Anchor], count)
	for i := 0; i < int(count); i++ {
		row := make([]Option[Anchor], classCount)
		for c := 0; c < classCount; c++ {
			if row[c], err = parseAnchorAt(b, 2+(i*classCount+c)*2, b); err != nil {
				return nil, err
			}
		}
		matrix[i] = row
	}
	return matrix, nil
}

// mark attachment header shared by lookup types 4 and 6:
// format, markCoverageOffset, baseCoverageOffset, markClassCount,
// markArrayOffset, baseArrayOffset
type markAttach struct {
	markCov    Coverage
	baseCov    Coverage
	classCount int
	marks      []MarkRecord
	baseArray  binarySegm
}

func parseMarkAttach(tag Tag, b binarySegm, section string) (markAttach, error) {
	var ma markAttach
	format, err := b.u16(0)
	if err != nil || format != 1 {
		return ma, errInvalid(tag, section, "unknown subtable format")
	}
	if ma.markCov, err = parseCoverageAt(b, 2, b); err != nil {
		return ma, err
	}
	if ma.baseCov, err = parseCoverageAt(b, 4, b); err != nil {
		return ma, err
	}
	classCount, err := b.u16(6)
	if err != nil {
		return ma, errInvalid(tag, section, "subtable truncated")
	}
	ma.classCount = int(classCount)
	markOff, _ := b.u16(8)
	baseOff, err := b.u16(10)
	if err != nil {
		return ma, errInvalid(tag, section, "subtable truncated")
	}
	if int(markOff) >= len(b) || int(baseOff) >= len(b) {
		return ma, errInvalid(tag, section, "array offset out of bounds")
	}
	if ma.marks, err = parseMarkArray(b[markOff:]); err != nil {
		return ma, err
	}
	for _, m := range ma.marks {
		if int(m.Class) >= ma.classCount {
			return ma, errInvalid(tag, section, "mark class exceeds mark class count")
		}
	}
	ma.baseArray = b[baseOff:]
	return ma, nil
}

func parseMarkToBasePos(tag Tag, b binarySegm) (GPosSubtable, error) {
	ma, err := parseMarkAttach(tag, b, "MarkBasePos")
	if err != nil {
		return nil, err
	}
	bases, err := parseAnchorMatrix(ma.baseArray, ma.classCount)
	if err != nil {
		return nil, err
	}
	return &MarkToBasePos{
		MarkCoverage: ma.markCov,
		BaseCoverage: ma.baseCov,
		ClassCount:   ma.classCount,
		Marks:        ma.marks,
		Bases:        bases,
	}, nil
}

func parseMarkToMarkPos(tag Tag, b binarySegm) (GPosSubtable, error) {
	ma, err := parseMarkAttach(tag, b, "MarkMarkPos")
	if err != nil {
		return nil, err
	}
	anchors, err := parseAnchorMatrix(ma.baseArray, ma.classCount)
	if err != nil {
		return nil, err
	}
	return &MarkToMarkPos{
		Mark1Coverage: ma.markCov,
		Mark2Coverage: ma.baseCov,
		ClassCount:    ma.classCount,
		Marks:         ma.marks,
		Mark2Anchors:  anchors,
	}, nil
}

func parseMarkToLigaturePos(tag Tag, b binarySegm) (GPosSubtable, error) {
	ma, err := parseMarkAttach(tag, b, "MarkLigPos")
	if err != nil {
		return nil, err
	}
	// ligature array: ligatureCount, ligatureAttachOffsets[];
	// ligature attach: componentCount, per component one anchor offset
	// per mark class
	ligCount, err := ma.baseArray.u16(0)
	if err != nil {
		return nil, errInvalid(tag, "MarkLigPos", "ligature array truncated")
	}
	ligatures := make([][][]Option[Anchor], ligCount)
	for i := 0; i < int(ligCount); i++ {
		off, err := ma.baseArray.u16(2 + i*2)
		if err != nil || int(off) >= len(ma.baseArray) {
			return nil, errInvalid(tag, "MarkLigPos", "ligature attach offset out of bounds")
		}
		if ligatures[i], err = parseAnchorMatrix(ma.baseArray[off:], ma.classCount); err != nil {
			return nil, err
		}
	}
	return &MarkToLigaturePos{
		MarkCoverage:     ma.markCov,
		LigatureCoverage: ma.baseCov,
		ClassCount:       ma.classCount,
		Marks:            ma.marks,
		Ligatures:        ligatures,
	}, nil
}
