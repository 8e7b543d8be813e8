package ot

import (
	"errors"
	"testing"

	"github.com/npillmayer/schuko/tracing/gotestingadapter"
	"github.com/stretchr/testify/require"
)

func TestValueFormatSize(t *testing.T) {
	cases := []struct {
		format ValueFormat
		size   int
	}{
		{0, 0},
		{ValueXAdvance, 2},
		{ValueXPlacement | ValueYPlacement, 4},
		{ValueXPlacement | ValueYPlacement | ValueXAdvance | ValueYAdvance, 8},
		{ValueXAdvance | ValueXAdvanceDevice, 4},
	}
	for _, c := range cases {
		if s := c.format.Size(); s != c.size {
			t.Errorf("expected size %d for value format %#x, got %d", c.size, c.format, s)
		}
	}
}

func singlePosFmt1(vf ValueFormat, values []int16, glyphs ...GlyphIndex) []byte {
	b := make([]byte, 6+2*len(values))
	putU16(b, 0, 1)
	putU16(b, 2, uint16(len(b)))
	putU16(b, 4, uint16(vf))
	for i, v := range values {
		putU16(b, 6+i*2, uint16(v))
	}
	return append(b, covFmt1(glyphs...)...)
}

func TestSinglePosFormat1(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "otype.fonts")
	defer teardown()
	b := singlePosFmt1(ValueXPlacement|ValueXAdvance, []int16{5, -50}, 1, 3)
	st, err := parseGPosSubtable(T("GPOS"), GPosSingle, b, 0)
	require.NoError(t, err)
	single := st.(*SinglePos)
	vr, ok := single.Value(3).Unwrap()
	require.True(t, ok)
	if vr.XPlacement != 5 || vr.XAdvance != -50 || vr.YAdvance != 0 {
		t.Errorf("unexpected value record %v", vr)
	}
	if single.Value(2).IsSome() {
		t.Errorf("expected glyph 2 not to be adjusted")
	}
}

func pairPosFmt1() []byte {
	b := make([]byte, 18)
	putU16(b, 0, 1)
	putU16(b, 2, 18) // coverage
	putU16(b, 4, uint16(ValueXAdvance))
	putU16(b, 6, 0)
	putU16(b, 8, 1)   // one pair set
	putU16(b, 10, 12) // set offset
	putU16(b, 12, 1)  // one pair value record
	putU16(b, 14, 2)  // second glyph
	putU16(b, 16, 0xFFE2) // -30
	return append(b, covFmt1(1)...)
}

func TestPairPosFormat1(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "otype.fonts")
	defer teardown()
	st, err := parseGPosSubtable(T("GPOS"), GPosPair, pairPosFmt1(), 0)
	require.NoError(t, err)
	pair := st.(*PairPos)
	adj, ok := pair.Adjust(1, 2).Unwrap()
	require.True(t, ok)
	if adj.Value1.XAdvance != -30 {
		t.Errorf("expected first glyph advance adjustment -30, got %d", adj.Value1.XAdvance)
	}
	if !adj.Value2.IsZero() {
		t.Errorf("expected no adjustment for the second glyph")
	}
	if pair.Adjust(1, 3).IsSome() {
		t.Errorf("expected no adjustment for pair (1,3)")
	}
}

func pairPosFmt2() []byte {
	b := make([]byte, 24)
	putU16(b, 0, 2)
	putU16(b, 4, uint16(ValueXAdvance))
	putU16(b, 6, 0)
	putU16(b, 12, 2) // class1 count
	putU16(b, 14, 2) // class2 count
	// class matrix, one XAdvance per cell: only (1,1) kerns
	putU16(b, 22, 0xFFE7) // -25
	cd1 := classDefFmt1(1, 1) // glyph 1 -> class 1
	cd2 := classDefFmt1(2, 1) // glyph 2 -> class 1
	putU16(b, 8, uint16(len(b)))
	b = append(b, cd1...)
	putU16(b, 10, uint16(len(b)))
	b = append(b, cd2...)
	putU16(b, 2, uint16(len(b)))
	return append(b, covFmt1(1, 5)...)
}

func TestPairPosFormat2(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "otype.fonts")
	defer teardown()
	st, err := parseGPosSubtable(T("GPOS"), GPosPair, pairPosFmt2(), 0)
	require.NoError(t, err)
	pair := st.(*PairPos)
	adj, ok := pair.Adjust(1, 2).Unwrap()
	require.True(t, ok)
	if adj.Value1.XAdvance != -25 {
		t.Errorf("expected class pair advance adjustment -25, got %d", adj.Value1.XAdvance)
	}
	// both glyphs in class 0 hit the zero cell of the matrix
	adj, ok = pair.Adjust(5, 9).Unwrap()
	require.True(t, ok)
	if !adj.Value1.IsZero() || !adj.Value2.IsZero() {
		t.Errorf("expected zero adjustment for class pair (0,0), got %v", adj)
	}
}

func anchorFmt1(x, y int16) []byte {
	b := make([]byte, 6)
	putU16(b, 0, 1)
	putU16(b, 2, uint16(x))
	putU16(b, 4, uint16(y))
	return b
}

func cursivePosTable() []byte {
	b := make([]byte, 14)
	putU16(b, 0, 1)
	putU16(b, 4, 2) // two entry/exit records
	// glyph 1: exit only; glyph 2: entry only
	putU16(b, 8, uint16(len(b)))
	b = append(b, anchorFmt1(480, 30)...)
	putU16(b, 10, uint16(len(b)))
	b = append(b, anchorFmt1(20, 30)...)
	putU16(b, 2, uint16(len(b)))
	return append(b, covFmt1(1, 2)...)
}

func TestCursivePosParse(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "otype.fonts")
	defer teardown()
	st, err := parseGPosSubtable(T("GPOS"), GPosCursive, cursivePosTable(), 0)
	require.NoError(t, err)
	cursive := st.(*CursivePos)
	require.Len(t, cursive.EntryExits, 2)
	exit, ok := cursive.EntryExits[0].Exit.Unwrap()
	require.True(t, ok)
	if exit.X != 480 || exit.Y != 30 {
		t.Errorf("unexpected exit anchor (%d,%d)", exit.X, exit.Y)
	}
	if cursive.EntryExits[0].Entry.IsSome() {
		t.Errorf("expected no entry anchor for the first glyph")
	}
	entry, ok := cursive.EntryExits[1].Entry.Unwrap()
	require.True(t, ok)
	if entry.X != 20 {
		t.Errorf("unexpected entry anchor x %d", entry.X)
	}
}

// markToBasePosTable attaches mark glyph 5 (class 0) to base glyph 1.
func markToBasePosTable() []byte {
	b := make([]byte, 12)
	putU16(b, 0, 1)
	putU16(b, 6, 1) // one mark class
	// mark array: one record, anchor behind it
	markArray := make([]byte, 6)
	putU16(markArray, 0, 1)
	putU16(markArray, 4, 6) // anchor offset
	markArray = append(markArray, anchorFmt1(10, 15)...)
	// base array: one base, one anchor
	baseArray := make([]byte, 4)
	putU16(baseArray, 0, 1)
	putU16(baseArray, 2, 4)
	baseArray = append(baseArray, anchorFmt1(250, 600)...)
	putU16(b, 8, uint16(len(b)))
	b = append(b, markArray...)
	putU16(b, 10, uint16(len(b)))
	b = append(b, baseArray...)
	putU16(b, 2, uint16(len(b)))
	b = append(b, covFmt1(5)...)
	putU16(b, 4, uint16(len(b)))
	return append(b, covFmt1(1)...)
}

func TestMarkToBasePosParse(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "otype.fonts")
	defer teardown()
	st, err := parseGPosSubtable(T("GPOS"), GPosMarkToBase, markToBasePosTable(), 0)
	require.NoError(t, err)
	mb := st.(*MarkToBasePos)
	require.Len(t, mb.Marks, 1)
	if mb.Marks[0].Class != 0 || mb.Marks[0].Anchor.X != 10 {
		t.Errorf("unexpected mark record %v", mb.Marks[0])
	}
	require.Len(t, mb.Bases, 1)
	base, ok := mb.Bases[0][0].Unwrap()
	require.True(t, ok)
	if base.X != 250 || base.Y != 600 {
		t.Errorf("unexpected base anchor (%d,%d)", base.X, base.Y)
	}
}

func TestMarkClassOutOfRange(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "otype.fonts")
	defer teardown()
	b := markToBasePosTable()
	// declare the mark with class 3 while the subtable has one class
	putU16(b, 12+2, 3)
	_, err := parseGPosSubtable(T("GPOS"), GPosMarkToBase, b, 0)
	if !errors.Is(err, ErrInvalid) {
		t.Errorf("expected ErrInvalid for out-of-range mark class, got %v", err)
	}
}

func TestExtensionPosNoNesting(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "otype.fonts")
	defer teardown()
	inner := extensionSubtable(GPosSingle, singlePosFmt1(ValueXAdvance, []int16{-10}, 1))
	b := extensionSubtable(GPosExtension, inner)
	_, err := parseGPosSubtable(T("GPOS"), GPosExtension, b, 0)
	if !errors.Is(err, ErrInvalid) {
		t.Errorf("expected ErrInvalid for extension wrapping an extension, got %v", err)
	}
}

func TestUnknownGPosLookupType(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "otype.fonts")
	defer teardown()
	_, err := parseGPosSubtable(T("GPOS"), 42, []byte{0, 1}, 0)
	if !errors.Is(err, ErrInvalid) {
		t.Errorf("expected ErrInvalid for unknown lookup type, got %v", err)
	}
}
