package ot

import (
	"errors"
	"testing"

	"github.com/npillmayer/schuko/tracing/gotestingadapter"
	"github.com/stretchr/testify/require"
)

// seqContextFmt1 builds a format 1 sequence context: glyph 2 followed by
// glyphs 3 and 4, applying lookup 1 at sequence index 0.
func seqContextFmt1() []byte {
	b := make([]byte, 8)
	putU16(b, 0, 1)
	putU16(b, 4, 1) // one rule set
	putU16(b, 6, 8) // rule set offset
	// rule set: one rule at offset 4
	set := make([]byte, 4)
	putU16(set, 0, 1)
	putU16(set, 2, 4)
	// rule: 3 input glyphs, one lookup record
	rule := make([]byte, 12)
	putU16(rule, 0, 3)
	putU16(rule, 2, 1)
	putU16(rule, 4, 3) // second glyph
	putU16(rule, 6, 4) // third glyph
	putU16(rule, 8, 0) // sequence index
	putU16(rule, 10, 1)
	set = append(set, rule...)
	b = append(b, set...)
	putU16(b, 2, uint16(len(b)))
	return append(b, covFmt1(2)...)
}

func TestSequenceContextFormat1(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "otype.fonts")
	defer teardown()
	ctx, err := parseSequenceContext(T("GSUB"), seqContextFmt1())
	require.NoError(t, err)
	m, ok := ctx.Match([]GlyphIndex{1, 2, 3, 4, 5}, 1).Unwrap()
	require.True(t, ok)
	if m.Consumed != 3 {
		t.Errorf("expected match to consume 3 glyphs, got %d", m.Consumed)
	}
	require.Equal(t, []SequenceLookupRecord{{SequenceIndex: 0, LookupListIndex: 1}}, m.Records)
	// input too short for the rule
	if ctx.Match([]GlyphIndex{2, 3}, 0).IsSome() {
		t.Errorf("expected no match on truncated input")
	}
	if ctx.Match([]GlyphIndex{2, 3, 5}, 0).IsSome() {
		t.Errorf("expected no match with wrong third glyph")
	}
}

// seqContextFmt2 matches a class sequence: a glyph of class 1 followed by
// a glyph of class 2.
func seqContextFmt2() []byte {
	b := make([]byte, 12)
	putU16(b, 0, 2)
	putU16(b, 6, 2)  // two rule sets (classes 0 and 1)
	putU16(b, 8, 0)  // class 0 has no rules
	putU16(b, 10, 12)
	// rule set for class 1
	set := make([]byte, 4)
	putU16(set, 0, 1)
	putU16(set, 2, 4)
	rule := make([]byte, 10)
	putU16(rule, 0, 2)
	putU16(rule, 2, 1)
	putU16(rule, 4, 2) // class of the second glyph
	putU16(rule, 6, 0)
	putU16(rule, 8, 7)
	set = append(set, rule...)
	b = append(b, set...)
	putU16(b, 4, uint16(len(b)))
	b = append(b, classDefFmt1(2, 1, 2)...) // glyph 2 -> class 1, glyph 3 -> class 2
	putU16(b, 2, uint16(len(b)))
	return append(b, covFmt1(2)...)
}

func TestSequenceContextFormat2(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "otype.fonts")
	defer teardown()
	ctx, err := parseSequenceContext(T("GSUB"), seqContextFmt2())
	require.NoError(t, err)
	m, ok := ctx.Match([]GlyphIndex{2, 3}, 0).Unwrap()
	require.True(t, ok)
	if m.Consumed != 2 {
		t.Errorf("expected match to consume 2 glyphs, got %d", m.Consumed)
	}
	require.Equal(t, []SequenceLookupRecord{{SequenceIndex: 0, LookupListIndex: 7}}, m.Records)
	if ctx.Match([]GlyphIndex{2, 2}, 0).IsSome() {
		t.Errorf("expected no match when the second glyph has the wrong class")
	}
}

// seqContextFmt3 matches two coverages in sequence.
func seqContextFmt3() []byte {
	b := make([]byte, 14)
	putU16(b, 0, 3)
	putU16(b, 2, 2) // two input coverages
	putU16(b, 4, 1) // one lookup record
	putU16(b, 10, 1)
	putU16(b, 12, 4)
	putU16(b, 6, uint16(len(b)))
	b = append(b, covFmt1(2, 3)...)
	putU16(b, 8, uint16(len(b)))
	return append(b, covFmt1(5)...)
}

func TestSequenceContextFormat3(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "otype.fonts")
	defer teardown()
	ctx, err := parseSequenceContext(T("GSUB"), seqContextFmt3())
	require.NoError(t, err)
	m, ok := ctx.Match([]GlyphIndex{3, 5}, 0).Unwrap()
	require.True(t, ok)
	if m.Consumed != 2 {
		t.Errorf("expected match to consume 2 glyphs, got %d", m.Consumed)
	}
	require.Equal(t, []SequenceLookupRecord{{SequenceIndex: 1, LookupListIndex: 4}}, m.Records)
	if ctx.Match([]GlyphIndex{3, 6}, 0).IsSome() {
		t.Errorf("expected no match with uncovered second glyph")
	}
}

func TestSequenceContextFormat3EmptyInput(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "otype.fonts")
	defer teardown()
	b := make([]byte, 6)
	putU16(b, 0, 3)
	_, err := parseSequenceContext(T("GSUB"), b)
	if !errors.Is(err, ErrInvalid) {
		t.Errorf("expected ErrInvalid for empty input sequence, got %v", err)
	}
}

// chainedContextFmt3 matches glyph 2 with backtrack glyph 4 and lookahead
// glyph 6.
func chainedContextFmt3() []byte {
	b := make([]byte, 16)
	putU16(b, 0, 3)
	putU16(b, 2, 1) // one backtrack coverage
	putU16(b, 6, 1) // one input coverage
	putU16(b, 10, 1) // one lookahead coverage
	putU16(b, 14, 0) // no lookup records
	putU16(b, 4, uint16(len(b)))
	b = append(b, covFmt1(4)...)
	putU16(b, 8, uint16(len(b)))
	b = append(b, covFmt1(2)...)
	putU16(b, 12, uint16(len(b)))
	return append(b, covFmt1(6)...)
}

func TestChainedSequenceContextFormat3(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "otype.fonts")
	defer teardown()
	ctx, err := parseChainedSequenceContext(T("GSUB"), chainedContextFmt3())
	require.NoError(t, err)
	m, ok := ctx.Match([]GlyphIndex{4, 2, 6}, 1).Unwrap()
	require.True(t, ok)
	if m.Consumed != 1 {
		t.Errorf("expected match to consume 1 glyph, got %d", m.Consumed)
	}
	// no preceding glyph for the backtrack sequence
	if ctx.Match([]GlyphIndex{2, 6}, 0).IsSome() {
		t.Errorf("expected no match without backtrack glyph")
	}
	// no trailing glyph for the lookahead sequence
	if ctx.Match([]GlyphIndex{4, 2}, 1).IsSome() {
		t.Errorf("expected no match without lookahead glyph")
	}
	if ctx.Match([]GlyphIndex{5, 2, 6}, 1).IsSome() {
		t.Errorf("expected no match with wrong backtrack glyph")
	}
}

// chainedRuleSetFmt1 builds a chained format 1 context: glyph 3 with
// backtrack glyphs 2,1 (reverse order) and lookahead glyph 4.
func chainedContextFmt1() []byte {
	b := make([]byte, 8)
	putU16(b, 0, 1)
	putU16(b, 4, 1)
	putU16(b, 6, 8)
	set := make([]byte, 4)
	putU16(set, 0, 1)
	putU16(set, 2, 4)
	rule := make([]byte, 18)
	putU16(rule, 0, 2) // two backtrack glyphs, nearest first
	putU16(rule, 2, 2)
	putU16(rule, 4, 1)
	putU16(rule, 6, 1) // one input glyph (the covered one)
	putU16(rule, 8, 1) // one lookahead glyph
	putU16(rule, 10, 4)
	putU16(rule, 12, 1) // one lookup record
	putU16(rule, 14, 0)
	putU16(rule, 16, 9)
	set = append(set, rule...)
	b = append(b, set...)
	putU16(b, 2, uint16(len(b)))
	return append(b, covFmt1(3)...)
}

func TestChainedSequenceContextFormat1(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "otype.fonts")
	defer teardown()
	ctx, err := parseChainedSequenceContext(T("GSUB"), chainedContextFmt1())
	require.NoError(t, err)
	m, ok := ctx.Match([]GlyphIndex{1, 2, 3, 4}, 2).Unwrap()
	require.True(t, ok)
	if m.Consumed != 1 {
		t.Errorf("expected match to consume 1 glyph, got %d", m.Consumed)
	}
	require.Equal(t, []SequenceLookupRecord{{SequenceIndex: 0, LookupListIndex: 9}}, m.Records)
	// backtrack must match in reverse text order
	if ctx.Match([]GlyphIndex{2, 1, 3, 4}, 2).IsSome() {
		t.Errorf("expected no match with swapped backtrack glyphs")
	}
}

// chainedContextMinimal matches covered glyph 3 alone: the rule's
// backtrack and lookahead sequences are empty and the input sequence is
// just the covered glyph.
func chainedContextMinimal() []byte {
	b := make([]byte, 8)
	putU16(b, 0, 1)
	putU16(b, 4, 1)
	putU16(b, 6, 8)
	set := make([]byte, 4)
	putU16(set, 0, 1)
	putU16(set, 2, 4)
	rule := make([]byte, 12)
	putU16(rule, 0, 0) // no backtrack glyphs
	putU16(rule, 2, 1) // one input glyph (the covered one)
	putU16(rule, 4, 0) // no lookahead glyphs
	putU16(rule, 6, 1) // one lookup record
	putU16(rule, 8, 0)
	putU16(rule, 10, 2)
	set = append(set, rule...)
	b = append(b, set...)
	putU16(b, 2, uint16(len(b)))
	return append(b, covFmt1(3)...)
}

func TestChainedSequenceContextEmptySequences(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "otype.fonts")
	defer teardown()
	ctx, err := parseChainedSequenceContext(T("GSUB"), chainedContextMinimal())
	require.NoError(t, err)
	m, ok := ctx.Match([]GlyphIndex{3}, 0).Unwrap()
	require.True(t, ok)
	if m.Consumed != 1 {
		t.Errorf("expected match to consume 1 glyph, got %d", m.Consumed)
	}
	require.Equal(t, []SequenceLookupRecord{{SequenceIndex: 0, LookupListIndex: 2}}, m.Records)
}

func TestSequenceContextUnknownFormat(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "otype.fonts")
	defer teardown()
	b := []byte{0, 9, 0, 0}
	if _, err := parseSequenceContext(T("GSUB"), b); !errors.Is(err, ErrInvalid) {
		t.Errorf("expected ErrInvalid for unknown sequence context format, got %v", err)
	}
	if _, err := parseChainedSequenceContext(T("GPOS"), b); !errors.Is(err, ErrInvalid) {
		t.Errorf("expected ErrInvalid for unknown chained context format, got %v", err)
	}
}
