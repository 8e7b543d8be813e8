package ot

import "fmt"

// GSUB lookup types.
const (
	GSubSingle         = 1 // replace one glyph with one glyph
	GSubMultiple       = 2 // replace one glyph with more than one glyph
	GSubAlternate      = 3 // replace one glyph with one of many glyphs
	GSubLigature       = 4 // replace multiple glyphs with one glyph
	GSubContext        = 5 // replace one or more glyphs in context
	GSubChainedContext = 6 // replace one or more glyphs in chained context
	GSubExtension      = 7 // extension mechanism for other substitutions
	GSubReverseChained = 8 // applied in reverse order, replace single glyph in chaining context
)

// GSubLookup is one glyph substitution lookup: a lookup type, flags
// governing the glyph scan, and an ordered list of typed subtables with
// first-match-wins semantics at any one position.
type GSubLookup struct {
	Type             uint16
	Flag             LookupFlag
	MarkFilteringSet Option[uint16]
	Subtables        []GSubSubtable
}

// GSubSubtable is the closed union of GSUB subtable types. Concrete
// types are SingleSubst, MultipleSubst, AlternateSubst, LigatureSubst,
// ContextSubst, ChainedContextSubst and ReverseChainedSubst. Extension
// subtables are resolved at load time and never appear here.
type GSubSubtable interface {
	LookupType() uint16
}

// SingleSubst substitutes exactly one glyph for another, either by a
// constant delta added to the glyph ID (format 1) or through a
// substitute array parallel to the coverage (format 2).
type SingleSubst struct {
	Format      uint16
	Coverage    Coverage
	Delta       int16        // format 1
	Substitutes []GlyphIndex // format 2, by coverage index
}

func (SingleSubst) LookupType() uint16 { return GSubSingle }

// Substitute returns the replacement for glyph g, if g is covered.
func (st *SingleSubst) Substitute(g GlyphIndex) Option[GlyphIndex] {
	inx, ok := st.Coverage.Match(g)
	if !ok {
		return None[GlyphIndex]()
	}
	if st.Format == 1 {
		return Some(GlyphIndex(uint16(g) + uint16(st.Delta)))
	}
	if inx >= len(st.Substitutes) {
		return None[GlyphIndex]()
	}
	return Some(st.Substitutes[inx])
}

// MultipleSubst replaces one glyph with a sequence of glyphs.
type MultipleSubst struct {
	Coverage  Coverage
	Sequences [][]GlyphIndex // by coverage index
}

func (MultipleSubst) LookupType() uint16 { return GSubMultiple }

// AlternateSubst declares aesthetic alternates for a glyph. Selecting an
// alternate requires an external choice (e.g. a UI); application of this
// subtable performs no automatic substitution, which is intentional.
type AlternateSubst struct {
	Coverage   Coverage
	Alternates [][]GlyphIndex // by coverage index
}

func (AlternateSubst) LookupType() uint16 { return GSubAlternate }

// Ligature is one ligature candidate: the resulting glyph and the
// component glyphs that must follow the first (covered) glyph.
type Ligature struct {
	Glyph      GlyphIndex   // the ligature glyph
	Components []GlyphIndex // components 2…n, in text order
}

// LigatureSubst composes multiple glyphs into one ligature glyph.
// Candidates of one set are tried in declaration order, each requiring
// an exact, contiguous match of its components; the first full match
// wins. This is not longest-match: fonts list longer ligatures first by
// authoring convention.
type LigatureSubst struct {
	Coverage     Coverage
	LigatureSets [][]Ligature // by coverage index of the first glyph
}

func (LigatureSubst) LookupType() uint16 { return GSubLigature }

// ContextSubst applies nested lookups in a sequence context.
type ContextSubst struct {
	Ctx *SequenceContext
}

func (ContextSubst) LookupType() uint16 { return GSubContext }

// ChainedContextSubst applies nested lookups in a chained sequence context.
type ChainedContextSubst struct {
	Ctx *ChainedSequenceContext
}

func (ChainedContextSubst) LookupType() uint16 { return GSubChainedContext }

// ReverseChainedSubst substitutes single glyphs in a chaining context,
// processed in reverse text order (the outer scan for this lookup type
// runs right to left per the OpenType specification).
type ReverseChainedSubst struct {
	Coverage           Coverage
	BacktrackCoverages []Coverage // in reverse text order
	LookaheadCoverages []Coverage
	Substitutes        []GlyphIndex // by coverage index
}

func (ReverseChainedSubst) LookupType() uint16 { return GSubReverseChained }

// --- Parsing ----------------------------------------------------------------

func parseGSub(tag Tag, b binarySegm, offset, size uint32, ec *errorCollector) (Table, error) {
	t := newGSubTable(tag, b, offset, size)
	lyt, lookupList, err := parseLayoutLists(tag, b, ec)
	if err != nil {
		return nil, err
	}
	t.LayoutTable = lyt
	err = parseLookupList(tag, lookupList, ec, func(inx int, h lookupHeader) error {
		lookup := &GSubLookup{
			Type:             h.Type,
			Flag:             h.Flag,
			MarkFilteringSet: h.MarkFilteringSet,
		}
		for _, sub := range h.subtables {
			st, err := parseGSubSubtable(tag, h.Type, sub, 0)
			if err != nil {
				return err
			}
			lookup.Subtables = append(lookup.Subtables, st)
		}
		if h.Type == GSubExtension && len(lookup.Subtables) > 0 {
			// lookup carries the resolved type after extension indirection
			lookup.Type = lookup.Subtables[0].LookupType()
		}
		t.Lookups = append(t.Lookups, lookup)
		return nil
	})
	if err != nil {
		return nil, err
	}
	tracer().Debugf("GSUB has %d lookups", len(t.Lookups))
	return t, nil
}

// parseGSubSubtable is the dispatch constructor over the closed subtable
// union. Extension subtables re-dispatch exactly once.
func parseGSubSubtable(tag Tag, lookupType uint16, b binarySegm, depth int) (GSubSubtable, error) {
	switch lookupType {
	case GSubSingle:
		return parseSingleSubst(tag, b)
	case GSubMultiple:
		st, err := parseGlyphSequenceSets(tag, b, "MultipleSubst", 0)
		if err != nil {
			return nil, err
		}
		return &MultipleSubst{Coverage: st.cov, Sequences: st.seqs}, nil
	case GSubAlternate:
		st, err := parseGlyphSequenceSets(tag, b, "AlternateSubst", 1)
		if err != nil {
			return nil, err
		}
		return &AlternateSubst{Coverage: st.cov, Alternates: st.seqs}, nil
	case GSubLigature:
		return parseLigatureSubst(tag, b)
	case GSubContext:
		ctx, err := parseSequenceContext(tag, b)
		if err != nil {
			return nil, err
		}
		return &ContextSubst{Ctx: ctx}, nil
	case GSubChainedContext:
		ctx, err := parseChainedSequenceContext(tag, b)
		if err != nil {
			return nil, err
		}
		return &ChainedContextSubst{Ctx: ctx}, nil
	case GSubExtension:
		if depth > 0 {
			return nil, errInvalid(tag, "ExtensionSubst", "extension subtable wraps another extension")
		}
		wrappedType, wrapped, err := parseExtension(tag, b, "ExtensionSubst", GSubExtension)
		if err != nil {
			return nil, err
		}
		return parseGSubSubtable(tag, wrappedType, wrapped, depth+1)
	case GSubReverseChained:
		return parseReverseChainedSubst(tag, b)
	}
	return nil, errInvalid(tag, "Lookup", fmt.Sprintf("unknown GSUB lookup type %d", lookupType))
}

// extension subtable: format (=1), extensionLookupType, extensionOffset (u32)
func parseExtension(tag Tag, b binarySegm, section string, extensionType uint16) (uint16, binarySegm, error) {
	format, err := b.u16(0)
	if err != nil || format != 1 {
		return 0, nil, errInvalid(tag, section, "unknown extension subtable format")
	}
	wrappedType, err := b.u16(2)
	if err != nil {
		return 0, nil, errInvalid(tag, section, "extension subtable truncated")
	}
	if wrappedType == extensionType {
		return 0, nil, errInvalid(tag, section, "extension subtable wraps another extension")
	}
	off, err := b.u32(4)
	if err != nil {
		return 0, nil, errInvalid(tag, section, "extension subtable truncated")
	}
	if int(off) >= len(b) {
		return 0, nil, errInvalid(tag, section, "extension offset out of bounds")
	}
	return wrappedType, b[off:], nil
}

func parseSingleSubst(tag Tag, b binarySegm) (GSubSubtable, error) {
	format, err := b.u16(0)
	if err != nil {
		return nil, errInvalid(tag, "SingleSubst", "subtable truncated")
	}
	st := &SingleSubst{Format: format}
	if st.Coverage, err = parseCoverageAt(b, 2, b); err != nil {
		return nil, err
	}
	switch format {
	case 1:
		if st.Delta, err = b.i16(4); err != nil {
			return nil, errInvalid(tag, "SingleSubst", "subtable truncated")
		}
	case 2:
		count, err := b.u16(4)
		if err != nil {
			return nil, errInvalid(tag, "SingleSubst", "subtable truncated")
		}
		buf, err := b.view(6, int(count)*2)
		if err != nil {
			return nil, errInvalid(tag, "SingleSubst", "substitute array exceeds subtable bounds")
		}
		if st.Substitutes, err = buf.glyphs(int(count)); err != nil {
			return nil, errInvalid(tag, "SingleSubst", "substitute array truncated")
		}
	default:
		return nil, errInvalid(tag, "SingleSubst", fmt.Sprintf("unknown format %d", format))
	}
	return st, nil
}

// Multiple and Alternate substitution share their wire layout: a
// coverage plus per-coverage-index sets of glyph sequences.
// minLen guards against empty sequences where the spec forbids them.
type glyphSeqSets struct {
	cov  Coverage
	seqs [][]GlyphIndex
}

func parseGlyphSequenceSets(tag Tag, b binarySegm, section string, minLen int) (glyphSeqSets, error) {
	var st glyphSeqSets
	format, err := b.u16(0)
	if err != nil || format != 1 {
		return st, errInvalid(tag, section, "unknown subtable format")
	}
	if st.cov, err = parseCoverageAt(b, 2, b); err != nil {
		return st, err
	}
	count, err := b.u16(4)
	if err != nil {
		return st, errInvalid(tag, section, "subtable truncated")
	}
	st.seqs = make([][]GlyphIndex, count)
	for i := 0; i < int(count); i++ {
		off, err := b.u16(6 + i*2)
		if err != nil || int(off) >= len(b) {
			return st, errInvalid(tag, section, "sequence offset out of bounds")
		}
		seq := b[off:]
		n, err := seq.u16(0)
		if err != nil {
			return st, errInvalid(tag, section, "sequence table truncated")
		}
		if int(n) < minLen {
			return st, errInvalid(tag, section, "sequence table too short")
		}
		buf, err := seq.view(2, int(n)*2)
		if err != nil {
			return st, errInvalid(tag, section, "glyph sequence exceeds subtable bounds")
		}
		if st.seqs[i], err = buf.glyphs(int(n)); err != nil {
			return st, errInvalid(tag, section, "glyph sequence truncated")
		}
	}
	return st, nil
}

func parseLigatureSubst(tag Tag, b binarySegm) (GSubSubtable, error) {
	format, err := b.u16(0)
	if err != nil || format != 1 {
		return nil, errInvalid(tag, "LigatureSubst", "unknown subtable format")
	}
	st := &LigatureSubst{}
	if st.Coverage, err = parseCoverageAt(b, 2, b); err != nil {
		return nil, err
	}
	setCount, err := b.u16(4)
	if err != nil {
		return nil, errInvalid(tag, "LigatureSubst", "subtable truncated")
	}
	st.LigatureSets = make([][]Ligature, setCount)
	for i := 0; i < int(setCount); i++ {
		off, err := b.u16(6 + i*2)
		if err != nil || int(off) >= len(b) {
			return nil, errInvalid(tag, "LigatureSubst", "ligature set offset out of bounds")
		}
		set := b[off:]
		ligCount, err := set.u16(0)
		if err != nil {
			return nil, errInvalid(tag, "LigatureSubst", "ligature set truncated")
		}
		ligatures := make([]Ligature, 0, ligCount)
		for j := 0; j < int(ligCount); j++ {
			ligOff, err := set.u16(2 + j*2)
			if err != nil || int(ligOff) >= len(set) {
				return nil, errInvalid(tag, "LigatureSubst", "ligature offset out of bounds")
			}
			lig := set[ligOff:]
			glyph, err := lig.u16(0)
			if err != nil {
				return nil, errInvalid(tag, "LigatureSubst", "ligature table truncated")
			}
			compCount, err := lig.u16(2)
			if err != nil || compCount == 0 {
				return nil, errInvalid(tag, "LigatureSubst", "invalid ligature component count")
			}
			buf, err := lig.view(4, (int(compCount)-1)*2)
			var components []GlyphIndex
			if int(compCount) > 1 {
				if err != nil {
					return nil, errInvalid(tag, "LigatureSubst", "ligature components exceed subtable bounds")
				}
				if components, err = buf.glyphs(int(compCount) - 1); err != nil {
					return nil, errInvalid(tag, "LigatureSubst", "ligature components truncated")
				}
			}
			ligatures = append(ligatures, Ligature{Glyph: GlyphIndex(glyph), Components: components})
		}
		st.LigatureSets[i] = ligatures
	}
	return st, nil
}

func parseReverseChainedSubst(tag Tag, b binarySegm) (GSubSubtable, error) {
	format, err := b.u16(0)
	if err != nil || format != 1 {
		return nil, errInvalid(tag, "ReverseChainSingleSubst", "unknown subtable format")
	}
	st := &ReverseChainedSubst{}
	if st.Coverage, err = parseCoverageAt(b, 2, b); err != nil {
		return nil, err
	}
	at := 4
	if st.BacktrackCoverages, at, err = parseCoverageArray(b, at); err != nil {
		return nil, err
	}
	if st.LookaheadCoverages, at, err = parseCoverageArray(b, at); err != nil {
		return nil, err
	}
	count, err := b.u16(at)
	if err != nil {
		return nil, errInvalid(tag, "ReverseChainSingleSubst", "subtable truncated")
	}
	buf, err := b.view(at+2, int(count)*2)
	if err != nil {
		return nil, errInvalid(tag, "ReverseChainSingleSubst", "substitute array exceeds subtable bounds")
	}
	if st.Substitutes, err = buf.glyphs(int(count)); err != nil {
		return nil, errInvalid(tag, "ReverseChainSingleSubst", "substitute array truncated")
	}
	return st, nil
}
