package ot

import (
	"errors"
	"testing"

	"github.com/npillmayer/schuko/tracing/gotestingadapter"
	"github.com/stretchr/testify/require"
)

func TestCoverageFormat1(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "otype.fonts")
	defer teardown()
	cov, err := parseCoverage(covFmt1(3, 7, 12))
	require.NoError(t, err)
	if cov.GlyphCount() != 3 {
		t.Errorf("expected coverage of 3 glyphs, got %d", cov.GlyphCount())
	}
	for g, want := range map[GlyphIndex]int{3: 0, 7: 1, 12: 2} {
		inx, ok := cov.Match(g)
		if !ok || inx != want {
			t.Errorf("expected glyph %d at coverage index %d, got %d/%v", g, want, inx, ok)
		}
	}
	if _, ok := cov.Match(5); ok {
		t.Errorf("expected glyph 5 not to be covered")
	}
}

func TestCoverageFormat2(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "otype.fonts")
	defer teardown()
	// two ranges: glyphs 10…12 at indices 0…2, glyphs 20…21 at 3…4
	b := make([]byte, 4+2*6)
	putU16(b, 0, 2)
	putU16(b, 2, 2)
	putU16(b, 4, 10)
	putU16(b, 6, 12)
	putU16(b, 8, 0)
	putU16(b, 10, 20)
	putU16(b, 12, 21)
	putU16(b, 14, 3)
	cov, err := parseCoverage(b)
	require.NoError(t, err)
	if cov.GlyphCount() != 5 {
		t.Errorf("expected coverage of 5 glyphs, got %d", cov.GlyphCount())
	}
	for g, want := range map[GlyphIndex]int{10: 0, 12: 2, 20: 3, 21: 4} {
		inx, ok := cov.Match(g)
		if !ok || inx != want {
			t.Errorf("expected glyph %d at coverage index %d, got %d/%v", g, want, inx, ok)
		}
	}
	for _, g := range []GlyphIndex{9, 13, 22} {
		if _, ok := cov.Match(g); ok {
			t.Errorf("expected glyph %d not to be covered", g)
		}
	}
}

func TestCoverageTruncated(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "otype.fonts")
	defer teardown()
	b := covFmt1(3, 7, 12)
	_, err := parseCoverage(b[:6]) // count says 3 glyphs, data holds 1
	if !errors.Is(err, ErrInvalid) {
		t.Errorf("expected ErrInvalid for truncated coverage, got %v", err)
	}
}

func classDefFmt1(start GlyphIndex, classes ...uint16) []byte {
	b := make([]byte, 6+2*len(classes))
	putU16(b, 0, 1)
	putU16(b, 2, uint16(start))
	putU16(b, 4, uint16(len(classes)))
	for i, c := range classes {
		putU16(b, 6+i*2, c)
	}
	return b
}

func TestClassDefFormat1(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "otype.fonts")
	defer teardown()
	cdef, err := parseClassDefinitions(classDefFmt1(4, 1, 2, 2, 3))
	require.NoError(t, err)
	for g, want := range map[GlyphIndex]int{4: 1, 5: 2, 6: 2, 7: 3, 3: 0, 8: 0} {
		if clz := cdef.Lookup(g); clz != want {
			t.Errorf("expected class %d for glyph %d, got %d", want, g, clz)
		}
	}
}

func TestClassDefFormat2(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "otype.fonts")
	defer teardown()
	// ranges: 10…14 -> class 2, 30…30 -> class 7
	b := make([]byte, 4+2*6)
	putU16(b, 0, 2)
	putU16(b, 2, 2)
	putU16(b, 4, 10)
	putU16(b, 6, 14)
	putU16(b, 8, 2)
	putU16(b, 10, 30)
	putU16(b, 12, 30)
	putU16(b, 14, 7)
	cdef, err := parseClassDefinitions(b)
	require.NoError(t, err)
	for g, want := range map[GlyphIndex]int{10: 2, 14: 2, 30: 7, 9: 0, 15: 0, 31: 0} {
		if clz := cdef.Lookup(g); clz != want {
			t.Errorf("expected class %d for glyph %d, got %d", want, g, clz)
		}
	}
}

func TestClassDefNilLookup(t *testing.T) {
	var cdef *ClassDefinitions
	if clz := cdef.Lookup(5); clz != 0 {
		t.Errorf("expected class 0 from nil class definitions, got %d", clz)
	}
}

func TestLookupFlagMarkAttachmentType(t *testing.T) {
	f := LookupFlag(0x0208) // IGNORE_MARKS plus mark attachment type 2
	if f&LOOKUP_FLAG_IGNORE_MARKS == 0 {
		t.Errorf("expected IGNORE_MARKS to be set")
	}
	if f.MarkAttachmentType() != 2 {
		t.Errorf("expected mark attachment type 2, got %d", f.MarkAttachmentType())
	}
	if LookupFlag(0x0001) != LOOKUP_FLAG_RIGHT_TO_LEFT {
		t.Errorf("unexpected value for RIGHT_TO_LEFT flag")
	}
}

func TestLayoutTableScriptsAndFeatures(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "otype.fonts")
	defer teardown()
	gsub := testGSubLiga(t)
	req, features := gsub.FeatureIndicesFor(T("latn"), 0)
	if req.IsSome() {
		t.Errorf("expected no required feature")
	}
	// unknown script falls back to DFLT
	require.Equal(t, []uint16{0}, features)
	feat, ok := gsub.FeatureFor(features[0])
	require.True(t, ok)
	if feat.Tag != T("liga") {
		t.Errorf("expected feature 'liga', got %s", feat.Tag)
	}
	require.Equal(t, []uint16{0}, feat.LookupIndices)
}

// testGSubLiga parses a minimal GSUB with a DFLT script, a 'liga' feature
// and one ligature lookup composing glyphs 1+2+3 into glyph 8.
func testGSubLiga(t *testing.T) *GSubTable {
	t.Helper()
	b := gsubLigaTable()
	ec := &errorCollector{}
	table, err := parseGSub(T("GSUB"), b, 0, uint32(len(b)), ec)
	require.NoError(t, err)
	gsub := table.Self().AsGSub()
	require.NotNil(t, gsub)
	return gsub
}

func scriptListDFLT() []byte {
	b := make([]byte, 20)
	putU16(b, 0, 1)
	copy(b[2:], "DFLT")
	putU16(b, 6, 8) // script table offset
	// script table: default lang-sys at 4, no tagged lang-sys records
	putU16(b, 8, 4)
	putU16(b, 10, 0)
	// lang-sys: no required feature, one feature index
	putU16(b, 14, 0xFFFF)
	putU16(b, 16, 1)
	putU16(b, 18, 0)
	return b
}

func featureListSingle(tag string, lookups ...uint16) []byte {
	b := make([]byte, 12+2*len(lookups))
	putU16(b, 0, 1)
	copy(b[2:], tag)
	putU16(b, 6, 8) // feature table offset
	putU16(b, 10, uint16(len(lookups)))
	for i, l := range lookups {
		putU16(b, 12+i*2, l)
	}
	return b
}

// lookupTable wraps a single subtable into a lookup table.
func lookupTable(lookupType uint16, flag LookupFlag, subtable []byte) []byte {
	b := make([]byte, 8+len(subtable))
	putU16(b, 0, lookupType)
	putU16(b, 2, uint16(flag))
	putU16(b, 4, 1)
	putU16(b, 6, 8)
	copy(b[8:], subtable)
	return b
}

func lookupListTable(lookups ...[]byte) []byte {
	headerSize := 2 + 2*len(lookups)
	size := headerSize
	for _, l := range lookups {
		size += len(l)
	}
	b := make([]byte, size)
	putU16(b, 0, uint16(len(lookups)))
	at := headerSize
	for i, l := range lookups {
		putU16(b, 2+i*2, uint16(at))
		copy(b[at:], l)
		at += len(l)
	}
	return b
}

// layoutTableBinary assembles a GSUB/GPOS table from its three lists.
func layoutTableBinary(scripts, features, lookups []byte) []byte {
	b := make([]byte, 10+len(scripts)+len(features)+len(lookups))
	putU16(b, 0, 1) // major version
	scriptsAt := 10
	featuresAt := scriptsAt + len(scripts)
	lookupsAt := featuresAt + len(features)
	putU16(b, 4, uint16(scriptsAt))
	putU16(b, 6, uint16(featuresAt))
	putU16(b, 8, uint16(lookupsAt))
	copy(b[scriptsAt:], scripts)
	copy(b[featuresAt:], features)
	copy(b[lookupsAt:], lookups)
	return b
}

// emptyList is a script or feature list without entries.
func emptyList() []byte {
	return []byte{0, 0}
}

// ligatureSubstSingleSet serializes a ligature substitution with one covered
// first glyph and the given ligatures, in declaration order.
func ligatureSubstSingleSet(first GlyphIndex, ligs []Ligature) []byte {
	cov := covFmt1(first)
	// ligature set
	setHeader := 2 + 2*len(ligs)
	set := make([]byte, setHeader)
	putU16(set, 0, uint16(len(ligs)))
	for i, lig := range ligs {
		putU16(set, 2+i*2, uint16(len(set)))
		ligData := make([]byte, 4+2*(len(lig.Components)))
		putU16(ligData, 0, uint16(lig.Glyph))
		putU16(ligData, 2, uint16(len(lig.Components)+1))
		for j, comp := range lig.Components {
			putU16(ligData, 4+j*2, uint16(comp))
		}
		set = append(set, ligData...)
	}
	b := make([]byte, 10)
	putU16(b, 0, 1) // format
	putU16(b, 2, uint16(10+len(set)))
	putU16(b, 4, 1)  // one ligature set
	putU16(b, 6, 10) // set offset
	b = append(b, set...)
	b = append(b, cov...)
	return b
}

func gsubLigaTable() []byte {
	liga := ligatureSubstSingleSet(1, []Ligature{{Glyph: 8, Components: []GlyphIndex{2, 3}}})
	return layoutTableBinary(
		scriptListDFLT(),
		featureListSingle("liga", 0),
		lookupListTable(lookupTable(GSubLigature, 0, liga)),
	)
}
