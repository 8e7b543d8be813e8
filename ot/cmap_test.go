package ot

import (
	"errors"
	"testing"

	"github.com/npillmayer/schuko/tracing/gotestingadapter"
	"github.com/stretchr/testify/require"
)

// cmapFmt12Subtable maps 'A'…'D' to glyphs first…first+3 and U+1F600 to smiley.
func cmapFmt12Subtable(first GlyphIndex, smiley GlyphIndex) []byte {
	b := make([]byte, 16+2*12)
	putU16(b, 0, 12)
	putU32(b, 4, uint32(len(b))) // length
	putU32(b, 12, 2)             // numGroups
	putU32(b, 16, 0x41)
	putU32(b, 20, 0x44)
	putU32(b, 24, uint32(first))
	putU32(b, 28, 0x1F600)
	putU32(b, 32, 0x1F600)
	putU32(b, 36, uint32(smiley))
	return b
}

func cmapWithFmt4And12() []byte {
	sub4 := cmapFmt4Subtable(1)
	sub12 := cmapFmt12Subtable(5, 7)
	b := make([]byte, 20+len(sub4)+len(sub12))
	putU16(b, 2, 2) // two encoding records
	putU16(b, 4, 3)
	putU16(b, 6, 1) // Windows, Unicode BMP -> format 4
	putU32(b, 8, 20)
	putU16(b, 12, 3)
	putU16(b, 14, 10) // Windows, full Unicode -> format 12
	putU32(b, 16, uint32(20+len(sub4)))
	copy(b[20:], sub4)
	copy(b[20+len(sub4):], sub12)
	return b
}

func parseTestCMap(t *testing.T, b []byte) *CMapTable {
	t.Helper()
	ec := &errorCollector{}
	table, err := parseCMap(T("cmap"), b, 0, uint32(len(b)), ec)
	require.NoError(t, err)
	cmap := table.Self().AsCMap()
	require.NotNil(t, cmap)
	setTestNumGlyphs(cmap, 10)
	return cmap
}

func setTestNumGlyphs(cmap *CMapTable, n int) {
	cmap.NumGlyphs = n
	switch gim := cmap.GlyphIndexMap.(type) {
	case format4GlyphIndex:
		gim.numGlyphs = n
		cmap.GlyphIndexMap = gim
	case format12GlyphIndex:
		gim.numGlyphs = n
		cmap.GlyphIndexMap = gim
	}
}

func TestCMapFormat4(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "otype.fonts")
	defer teardown()
	cmap := parseTestCMap(t, cmapTable())
	for r, want := range map[rune]GlyphIndex{'A': 1, 'D': 4, 'Z': 0, 0x1F600: 0} {
		if gid := cmap.Lookup(r); gid != want {
			t.Errorf("lookup of %#U = %d, want %d", r, gid, want)
		}
	}
}

func TestCMapFormat12Preferred(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "otype.fonts")
	defer teardown()
	cmap := parseTestCMap(t, cmapWithFmt4And12())
	// the full-repertoire sub-table maps 'A' differently than the BMP one,
	// so the resulting glyph tells which sub-table got selected
	if gid := cmap.Lookup('A'); gid != 5 {
		t.Errorf("lookup of 'A' = %d, want 5 from the format 12 sub-table", gid)
	}
	if gid := cmap.Lookup(0x1F600); gid != 7 {
		t.Errorf("lookup of U+1F600 = %d, want 7", gid)
	}
	if gid := cmap.Lookup('Z'); gid != 0 {
		t.Errorf("lookup of unmapped 'Z' = %d, want 0", gid)
	}
}

func TestCMapNoSupportedSubtable(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "otype.fonts")
	defer teardown()
	b := make([]byte, 20)
	putU16(b, 2, 1)
	putU16(b, 4, 1) // Macintosh platform, not supported
	putU16(b, 6, 0)
	putU32(b, 8, 12)
	putU16(b, 12, 6) // format 6, not interpreted
	ec := &errorCollector{}
	_, err := parseCMap(T("cmap"), b, 0, uint32(len(b)), ec)
	if !errors.Is(err, ErrInvalid) {
		t.Errorf("expected ErrInvalid for cmap without usable sub-table, got %v", err)
	}
}

func TestCMapGlyphIndexClamped(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "otype.fonts")
	defer teardown()
	cmap := parseTestCMap(t, cmapTable())
	setTestNumGlyphs(cmap, 3) // glyphs 3 and 4 from the mapping are now out of range
	if gid := cmap.Lookup('B'); gid != 2 {
		t.Errorf("lookup of 'B' = %d, want 2", gid)
	}
	if gid := cmap.Lookup('D'); gid != 0 {
		t.Errorf("expected out-of-range glyph mapped to 0, got %d", gid)
	}
}

func TestCMapNilSafety(t *testing.T) {
	var cmap *CMapTable
	if gid := cmap.Lookup('A'); gid != 0 {
		t.Errorf("expected 0 from nil cmap, got %d", gid)
	}
}
