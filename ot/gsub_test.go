package ot

import (
	"errors"
	"testing"

	"github.com/npillmayer/schuko/tracing/gotestingadapter"
	"github.com/stretchr/testify/require"
)

func singleSubstFmt1(delta int16, glyphs ...GlyphIndex) []byte {
	b := make([]byte, 6)
	putU16(b, 0, 1)
	putU16(b, 2, 6) // coverage offset
	putU16(b, 4, uint16(delta))
	return append(b, covFmt1(glyphs...)...)
}

func singleSubstFmt2(substitutes []GlyphIndex, glyphs ...GlyphIndex) []byte {
	b := make([]byte, 6+2*len(substitutes))
	putU16(b, 0, 2)
	putU16(b, 2, uint16(len(b)))
	putU16(b, 4, uint16(len(substitutes)))
	for i, g := range substitutes {
		putU16(b, 6+i*2, uint16(g))
	}
	return append(b, covFmt1(glyphs...)...)
}

func TestSingleSubstFormat1(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "otype.fonts")
	defer teardown()
	st, err := parseGSubSubtable(T("GSUB"), GSubSingle, singleSubstFmt1(10, 2, 4), 0)
	require.NoError(t, err)
	single := st.(*SingleSubst)
	if g, ok := single.Substitute(2).Unwrap(); !ok || g != 12 {
		t.Errorf("expected glyph 2 to substitute to 12, got %d/%v", g, ok)
	}
	if single.Substitute(3).IsSome() {
		t.Errorf("expected glyph 3 not to be substituted")
	}
}

func TestSingleSubstFormat2(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "otype.fonts")
	defer teardown()
	st, err := parseGSubSubtable(T("GSUB"), GSubSingle, singleSubstFmt2([]GlyphIndex{20, 30}, 2, 4), 0)
	require.NoError(t, err)
	single := st.(*SingleSubst)
	if g, ok := single.Substitute(4).Unwrap(); !ok || g != 30 {
		t.Errorf("expected glyph 4 to substitute to 30, got %d/%v", g, ok)
	}
}

func TestSingleSubstNegativeDelta(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "otype.fonts")
	defer teardown()
	st, err := parseGSubSubtable(T("GSUB"), GSubSingle, singleSubstFmt1(-3, 7), 0)
	require.NoError(t, err)
	single := st.(*SingleSubst)
	if g, ok := single.Substitute(7).Unwrap(); !ok || g != 4 {
		t.Errorf("expected glyph 7 to substitute to 4, got %d/%v", g, ok)
	}
}

// glyphSeqSetsTable serializes the shared wire layout of Multiple and
// Alternate substitutions.
func glyphSeqSetsTable(seqs [][]GlyphIndex, glyphs ...GlyphIndex) []byte {
	header := 6 + 2*len(seqs)
	b := make([]byte, header)
	putU16(b, 0, 1)
	putU16(b, 4, uint16(len(seqs)))
	for i, seq := range seqs {
		putU16(b, 6+i*2, uint16(len(b)))
		seqData := make([]byte, 2+2*len(seq))
		putU16(seqData, 0, uint16(len(seq)))
		for j, g := range seq {
			putU16(seqData, 2+j*2, uint16(g))
		}
		b = append(b, seqData...)
	}
	putU16(b, 2, uint16(len(b))) // coverage trails the sequences
	return append(b, covFmt1(glyphs...)...)
}

func TestMultipleSubst(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "otype.fonts")
	defer teardown()
	b := glyphSeqSetsTable([][]GlyphIndex{{5, 6}, {7}}, 2, 4)
	st, err := parseGSubSubtable(T("GSUB"), GSubMultiple, b, 0)
	require.NoError(t, err)
	multiple := st.(*MultipleSubst)
	require.Equal(t, [][]GlyphIndex{{5, 6}, {7}}, multiple.Sequences)
	if _, ok := multiple.Coverage.Match(4); !ok {
		t.Errorf("expected glyph 4 to be covered")
	}
}

func TestAlternateSubstRejectsEmptySet(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "otype.fonts")
	defer teardown()
	b := glyphSeqSetsTable([][]GlyphIndex{{}}, 2)
	_, err := parseGSubSubtable(T("GSUB"), GSubAlternate, b, 0)
	if !errors.Is(err, ErrInvalid) {
		t.Errorf("expected ErrInvalid for empty alternate set, got %v", err)
	}
	// an empty sequence is legal for Multiple substitution (glyph deletion)
	if _, err := parseGSubSubtable(T("GSUB"), GSubMultiple, b, 0); err != nil {
		t.Errorf("expected empty sequence to parse for multiple substitution, got %v", err)
	}
}

func TestLigatureSubstDeclarationOrder(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "otype.fonts")
	defer teardown()
	b := ligatureSubstSingleSet(1, []Ligature{
		{Glyph: 8, Components: []GlyphIndex{2, 3}},
		{Glyph: 9, Components: []GlyphIndex{2}},
	})
	st, err := parseGSubSubtable(T("GSUB"), GSubLigature, b, 0)
	require.NoError(t, err)
	liga := st.(*LigatureSubst)
	require.Len(t, liga.LigatureSets, 1)
	set := liga.LigatureSets[0]
	require.Len(t, set, 2)
	if set[0].Glyph != 8 || set[1].Glyph != 9 {
		t.Errorf("expected candidates in declaration order, got %v", set)
	}
	require.Equal(t, []GlyphIndex{2, 3}, set[0].Components)
	require.Equal(t, []GlyphIndex{2}, set[1].Components)
}

func extensionSubtable(wrappedType uint16, wrapped []byte) []byte {
	b := make([]byte, 8)
	putU16(b, 0, 1)
	putU16(b, 2, wrappedType)
	putU32(b, 4, 8)
	return append(b, wrapped...)
}

func TestExtensionSubst(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "otype.fonts")
	defer teardown()
	b := extensionSubtable(GSubSingle, singleSubstFmt1(10, 2))
	st, err := parseGSubSubtable(T("GSUB"), GSubExtension, b, 0)
	require.NoError(t, err)
	if st.LookupType() != GSubSingle {
		t.Errorf("expected extension to resolve to a single substitution, got type %d", st.LookupType())
	}
}

func TestExtensionSubstNoNesting(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "otype.fonts")
	defer teardown()
	inner := extensionSubtable(GSubSingle, singleSubstFmt1(10, 2))
	b := extensionSubtable(GSubExtension, inner)
	_, err := parseGSubSubtable(T("GSUB"), GSubExtension, b, 0)
	if !errors.Is(err, ErrInvalid) {
		t.Errorf("expected ErrInvalid for extension wrapping an extension, got %v", err)
	}
}

func reverseChainedSubstTable() []byte {
	b := make([]byte, 14)
	putU16(b, 0, 1)
	putU16(b, 2, 14) // coverage
	putU16(b, 4, 1)  // one backtrack coverage
	putU16(b, 6, 20)
	putU16(b, 8, 0)  // no lookahead
	putU16(b, 10, 1) // one substitute
	putU16(b, 12, 20)
	b = append(b, covFmt1(4)...)
	return append(b, covFmt1(2, 4)...)
}

func TestReverseChainedSubstParse(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "otype.fonts")
	defer teardown()
	st, err := parseGSubSubtable(T("GSUB"), GSubReverseChained, reverseChainedSubstTable(), 0)
	require.NoError(t, err)
	rev := st.(*ReverseChainedSubst)
	require.Len(t, rev.BacktrackCoverages, 1)
	require.Len(t, rev.LookaheadCoverages, 0)
	require.Equal(t, []GlyphIndex{20}, rev.Substitutes)
	if _, ok := rev.Coverage.Match(4); !ok {
		t.Errorf("expected glyph 4 to be covered")
	}
	if _, ok := rev.BacktrackCoverages[0].Match(2); !ok {
		t.Errorf("expected glyph 2 in backtrack coverage")
	}
}

func TestUnknownGSubLookupType(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "otype.fonts")
	defer teardown()
	_, err := parseGSubSubtable(T("GSUB"), 99, []byte{0, 1}, 0)
	if !errors.Is(err, ErrInvalid) {
		t.Errorf("expected ErrInvalid for unknown lookup type, got %v", err)
	}
}
