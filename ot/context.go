package ot

import "fmt"

// Contextual lookups — GSUB types 5/6 and GPOS types 7/8 — share one
// matching primitive: a sequence context (with a chained variant adding
// backtrack and lookahead sequences). Three serialized formats exist;
// all of them, on a successful match, yield a list of sequence lookup
// records to be applied by the lookup engine, plus the number of input
// glyphs consumed.

// SequenceLookupRecord is a reference from a contextual rule into
// another lookup, applied at a relative offset from the match position.
type SequenceLookupRecord struct {
	SequenceIndex   uint16 // offset into the matched input sequence
	LookupListIndex uint16 // lookup to apply there
}

// ContextMatch is the result of a successful contextual match.
type ContextMatch struct {
	Records  []SequenceLookupRecord
	Consumed int // number of input glyphs matched, starting at the match position
}

// SequenceRule is one rule of a format 1 or 2 rule set. Input holds the
// glyph IDs (format 1) or glyph classes (format 2) to match after the
// first glyph, which is covered by the context's coverage table.
type SequenceRule struct {
	Input   []uint16
	Records []SequenceLookupRecord
}

// ChainedSequenceRule adds backtrack and lookahead sequences, again as
// glyph IDs (format 1) or classes (format 2). Backtrack is stored in
// reverse text order: Backtrack[0] is matched against the glyph directly
// preceding the match position.
type ChainedSequenceRule struct {
	Backtrack []uint16
	Input     []uint16
	Lookahead []uint16
	Records   []SequenceLookupRecord
}

// SequenceContext is the loaded form of a SequenceContext subtable
// (formats 1–3).
type SequenceContext struct {
	Format   uint16
	Coverage Coverage          // formats 1 and 2: coverage of the first input glyph
	ClassDef *ClassDefinitions // format 2
	RuleSets [][]SequenceRule  // formats 1 and 2, indexed by coverage index resp. class
	// format 3:
	InputCoverages []Coverage
	Records        []SequenceLookupRecord
}

// Match tests the context against glyphs at position at. A mismatch at
// any position yields None with no partial effects.
func (ctx *SequenceContext) Match(glyphs []GlyphIndex, at int) Option[ContextMatch] {
	if ctx == nil || at < 0 || at >= len(glyphs) {
		return None[ContextMatch]()
	}
	switch ctx.Format {
	case 1:
		inx, ok := ctx.Coverage.Match(glyphs[at])
		if !ok || inx >= len(ctx.RuleSets) {
			return None[ContextMatch]()
		}
		for _, rule := range ctx.RuleSets[inx] {
			if matchGlyphSeq(glyphs, at+1, rule.Input) {
				return Some(ContextMatch{Records: rule.Records, Consumed: 1 + len(rule.Input)})
			}
		}
	case 2:
		if _, ok := ctx.Coverage.Match(glyphs[at]); !ok {
			return None[ContextMatch]()
		}
		cls := ctx.ClassDef.Lookup(glyphs[at])
		if cls >= len(ctx.RuleSets) {
			return None[ContextMatch]()
		}
		for _, rule := range ctx.RuleSets[cls] {
			if matchClassSeq(glyphs, at+1, rule.Input, ctx.ClassDef) {
				return Some(ContextMatch{Records: rule.Records, Consumed: 1 + len(rule.Input)})
			}
		}
	case 3:
		if matchCoverageSeq(glyphs, at, ctx.InputCoverages) {
			return Some(ContextMatch{Records: ctx.Records, Consumed: len(ctx.InputCoverages)})
		}
	}
	return None[ContextMatch]()
}

// ChainedSequenceContext is the loaded form of a ChainedSequenceContext
// subtable (formats 1–3).
type ChainedSequenceContext struct {
	Format    uint16
	Coverage  Coverage // formats 1 and 2
	ClassDefs struct { // format 2
		Backtrack *ClassDefinitions
		Input     *ClassDefinitions
		Lookahead *ClassDefinitions
	}
	RuleSets [][]ChainedSequenceRule // formats 1 and 2
	// format 3:
	BacktrackCoverages []Coverage // in reverse text order
	InputCoverages     []Coverage
	LookaheadCoverages []Coverage
	Records            []SequenceLookupRecord
}

// Match tests the chained context against glyphs at position at.
// Backtrack is checked walking backward from at, input forward from at,
// lookahead continuing past the input.
func (ctx *ChainedSequenceContext) Match(glyphs []GlyphIndex, at int) Option[ContextMatch] {
	if ctx == nil || at < 0 || at >= len(glyphs) {
		return None[ContextMatch]()
	}
	switch ctx.Format {
	case 1:
		inx, ok := ctx.Coverage.Match(glyphs[at])
		if !ok || inx >= len(ctx.RuleSets) {
			return None[ContextMatch]()
		}
		for _, rule := range ctx.RuleSets[inx] {
			if matchGlyphSeqBackward(glyphs, at-1, rule.Backtrack) &&
				matchGlyphSeq(glyphs, at+1, rule.Input) &&
				matchGlyphSeq(glyphs, at+1+len(rule.Input), rule.Lookahead) {
				return Some(ContextMatch{Records: rule.Records, Consumed: 1 + len(rule.Input)})
			}
		}
	case 2:
		if _, ok := ctx.Coverage.Match(glyphs[at]); !ok {
			return None[ContextMatch]()
		}
		cls := ctx.ClassDefs.Input.Lookup(glyphs[at])
		if cls >= len(ctx.RuleSets) {
			return None[ContextMatch]()
		}
		for _, rule := range ctx.RuleSets[cls] {
			if matchClassSeqBackward(glyphs, at-1, rule.Backtrack, ctx.ClassDefs.Backtrack) &&
				matchClassSeq(glyphs, at+1, rule.Input, ctx.ClassDefs.Input) &&
				matchClassSeq(glyphs, at+1+len(rule.Input), rule.Lookahead, ctx.ClassDefs.Lookahead) {
				return Some(ContextMatch{Records: rule.Records, Consumed: 1 + len(rule.Input)})
			}
		}
	case 3:
		if matchCoverageSeqBackward(glyphs, at-1, ctx.BacktrackCoverages) &&
			matchCoverageSeq(glyphs, at, ctx.InputCoverages) &&
			matchCoverageSeq(glyphs, at+len(ctx.InputCoverages), ctx.LookaheadCoverages) {
			return Some(ContextMatch{Records: ctx.Records, Consumed: len(ctx.InputCoverages)})
		}
	}
	return None[ContextMatch]()
}

// --- Sequence matching helpers ----------------------------------------------

func matchGlyphSeq(glyphs []GlyphIndex, from int, seq []uint16) bool {
	if from+len(seq) > len(glyphs) {
		return false
	}
	for i, g := range seq {
		if glyphs[from+i] != GlyphIndex(g) {
			return false
		}
	}
	return true
}

func matchGlyphSeqBackward(glyphs []GlyphIndex, from int, seq []uint16) bool {
	if from-len(seq) < -1 {
		return false
	}
	for i, g := range seq {
		if glyphs[from-i] != GlyphIndex(g) {
			return false
		}
	}
	return true
}

func matchClassSeq(glyphs []GlyphIndex, from int, seq []uint16, cdef *ClassDefinitions) bool {
	if from+len(seq) > len(glyphs) {
		return false
	}
	for i, cls := range seq {
		if cdef.Lookup(glyphs[from+i]) != int(cls) {
			return false
		}
	}
	return true
}

func matchClassSeqBackward(glyphs []GlyphIndex, from int, seq []uint16, cdef *ClassDefinitions) bool {
	if from-len(seq) < -1 {
		return false
	}
	for i, cls := range seq {
		if cdef.Lookup(glyphs[from-i]) != int(cls) {
			return false
		}
	}
	return true
}

func matchCoverageSeq(glyphs []GlyphIndex, from int, covs []Coverage) bool {
	if from+len(covs) > len(glyphs) {
		return false
	}
	for i, cov := range covs {
		if _, ok := cov.Match(glyphs[from+i]); !ok {
			return false
		}
	}
	return true
}

func matchCoverageSeqBackward(glyphs []GlyphIndex, from int, covs []Coverage) bool {
	if from-len(covs) < -1 {
		return false
	}
	for i, cov := range covs {
		if _, ok := cov.Match(glyphs[from-i]); !ok {
			return false
		}
	}
	return true
}

// --- Parsing ----------------------------------------------------------------

func parseSequenceLookupRecords(b binarySegm, at, count int) ([]SequenceLookupRecord, error) {
	buf, err := b.view(at, count*4)
	if err != nil {
		return nil, errInvalid(0, "SequenceLookupRecord", "lookup records truncated")
	}
	records := make([]SequenceLookupRecord, count)
	for i := 0; i < count; i++ {
		records[i] = SequenceLookupRecord{
			SequenceIndex:   u16(buf[i*4:]),
			LookupListIndex: u16(buf[i*4+2:]),
		}
	}
	return records, nil
}

// parseSequenceContext decodes a SequenceContext subtable (formats 1–3).
func parseSequenceContext(tag Tag, b binarySegm) (*SequenceContext, error) {
	format, err := b.u16(0)
	if err != nil {
		return nil, errInvalid(tag, "SequenceContext", "subtable truncated")
	}
	ctx := &SequenceContext{Format: format}
	switch format {
	case 1, 2:
		if ctx.Coverage, err = parseCoverageAt(b, 2, b); err != nil {
			return nil, err
		}
		setCountAt := 4
		if format == 2 {
			if ctx.ClassDef, err = parseClassDefAt(b, 4, b); err != nil {
				return nil, err
			}
			setCountAt = 6
		}
		count, err := b.u16(setCountAt)
		if err != nil {
			return nil, errInvalid(tag, "SequenceContext", "rule set count truncated")
		}
		ctx.RuleSets = make([][]SequenceRule, count)
		for i := 0; i < int(count); i++ {
			off, err := b.u16(setCountAt + 2 + i*2)
			if err != nil {
				return nil, errInvalid(tag, "SequenceContext", "rule set offsets truncated")
			}
			if off == 0 {
				continue // no rules for this coverage index / class
			}
			if int(off) >= len(b) {
				return nil, errInvalid(tag, "SequenceContext", "rule set offset out of bounds")
			}
			if ctx.RuleSets[i], err = parseSequenceRuleSet(tag, b[off:]); err != nil {
				return nil, err
			}
		}
	case 3:
		glyphCount, err := b.u16(2)
		if err != nil {
			return nil, errInvalid(tag, "SequenceContext", "subtable truncated")
		}
		if glyphCount == 0 {
			return nil, errInvalid(tag, "SequenceContext", "format 3 input sequence empty")
		}
		lookupCount, err := b.u16(4)
		if err != nil {
			return nil, errInvalid(tag, "SequenceContext", "subtable truncated")
		}
		ctx.InputCoverages = make([]Coverage, glyphCount)
		for i := 0; i < int(glyphCount); i++ {
			if ctx.InputCoverages[i], err = parseCoverageAt(b, 6+i*2, b); err != nil {
				return nil, err
			}
		}
		if ctx.Records, err = parseSequenceLookupRecords(b, 6+int(glyphCount)*2, int(lookupCount)); err != nil {
			return nil, err
		}
	default:
		return nil, errInvalid(tag, "SequenceContext", fmt.Sprintf("unknown format %d", format))
	}
	return ctx, nil
}

// rule set: ruleCount, ruleOffsets[]; rule: glyphCount, seqLookupCount,
// inputSequence[glyphCount-1], seqLookupRecords[]
func parseSequenceRuleSet(tag Tag, b binarySegm) ([]SequenceRule, error) {
	count, err := b.u16(0)
	if err != nil {
		return nil, errInvalid(tag, "SequenceRuleSet", "rule set truncated")
	}
	rules := make([]SequenceRule, 0, count)
	for i := 0; i < int(count); i++ {
		off, err := b.u16(2 + i*2)
		if err != nil || int(off) >= len(b) {
			return nil, errInvalid(tag, "SequenceRuleSet", "rule offset out of bounds")
		}
		rule := b[off:]
		glyphCount, err := rule.u16(0)
		if err != nil || glyphCount == 0 {
			return nil, errInvalid(tag, "SequenceRule", "invalid input glyph count")
		}
		lookupCount, err := rule.u16(2)
		if err != nil {
			return nil, errInvalid(tag, "SequenceRule", "rule truncated")
		}
		input, err := rule.u16s(4, int(glyphCount)-1)
		if err != nil {
			return nil, errInvalid(tag, "SequenceRule", "input sequence truncated")
		}
		records, err := parseSequenceLookupRecords(rule, 4+(int(glyphCount)-1)*2, int(lookupCount))
		if err != nil {
			return nil, err
		}
		rules = append(rules, SequenceRule{Input: input, Records: records})
	}
	return rules, nil
}

// parseChainedSequenceContext decodes a ChainedSequenceContext subtable
// (formats 1–3).
func parseChainedSequenceContext(tag Tag, b binarySegm) (*ChainedSequenceContext, error) {
	format, err := b.u16(0)
	if err != nil {
		return nil, errInvalid(tag, "ChainedSequenceContext", "subtable truncated")
	}
	ctx := &ChainedSequenceContext{Format: format}
	switch format {
	case 1, 2:
		if ctx.Coverage, err = parseCoverageAt(b, 2, b); err != nil {
			return nil, err
		}
		setCountAt := 4
		if format == 2 {
			if ctx.ClassDefs.Backtrack, err = parseClassDefAt(b, 4, b); err != nil {
				return nil, err
			}
			if ctx.ClassDefs.Input, err = parseClassDefAt(b, 6, b); err != nil {
				return nil, err
			}
			if ctx.ClassDefs.Lookahead, err = parseClassDefAt(b, 8, b); err != nil {
				return nil, err
			}
			setCountAt = 10
		}
		count, err := b.u16(setCountAt)
		if err != nil {
			return nil, errInvalid(tag, "ChainedSequenceContext", "rule set count truncated")
		}
		ctx.RuleSets = make([][]ChainedSequenceRule, count)
		for i := 0; i < int(count); i++ {
			off, err := b.u16(setCountAt + 2 + i*2)
			if err != nil {
				return nil, errInvalid(tag, "ChainedSequenceContext", "rule set offsets truncated")
			}
			if off == 0 {
				continue
			}
			if int(off) >= len(b) {
				return nil, errInvalid(tag, "ChainedSequenceContext", "rule set offset out of bounds")
			}
			if ctx.RuleSets[i], err = parseChainedRuleSet(tag, b[off:]); err != nil {
				return nil, err
			}
		}
	case 3:
		at := 2
		if ctx.BacktrackCoverages, at, err = parseCoverageArray(b, at); err != nil {
			return nil, err
		}
		if ctx.InputCoverages, at, err = parseCoverageArray(b, at); err != nil {
			return nil, err
		}
		if len(ctx.InputCoverages) == 0 {
			return nil, errInvalid(tag, "ChainedSequenceContext", "format 3 input sequence empty")
		}
		if ctx.LookaheadCoverages, at, err = parseCoverageArray(b, at); err != nil {
			return nil, err
		}
		lookupCount, err := b.u16(at)
		if err != nil {
			return nil, errInvalid(tag, "ChainedSequenceContext", "subtable truncated")
		}
		if ctx.Records, err = parseSequenceLookupRecords(b, at+2, int(lookupCount)); err != nil {
			return nil, err
		}
	default:
		return nil, errInvalid(tag, "ChainedSequenceContext", fmt.Sprintf("unknown format %d", format))
	}
	return ctx, nil
}

// parseCoverageArray reads a counted array of coverage offsets at
// position at, returning the coverages and the position after the array.
func parseCoverageArray(b binarySegm, at int) ([]Coverage, int, error) {
	count, err := b.u16(at)
	if err != nil {
		return nil, 0, errInvalid(0, "CoverageArray", "coverage array truncated")
	}
	covs := make([]Coverage, count)
	for i := 0; i < int(count); i++ {
		if covs[i], err = parseCoverageAt(b, at+2+i*2, b); err != nil {
			return nil, 0, err
		}
	}
	return covs, at + 2 + int(count)*2, nil
}

// chained rule: backtrackGlyphCount, backtrackSequence[], inputGlyphCount,
// inputSequence[inputGlyphCount-1], lookaheadGlyphCount,
// lookaheadSequence[], seqLookupCount, seqLookupRecords[]
func parseChainedRuleSet(tag Tag, b binarySegm) ([]ChainedSequenceRule, error) {
	count, err := b.u16(0)
	if err != nil {
		return nil, errInvalid(tag, "ChainedSequenceRuleSet", "rule set truncated")
	}
	rules := make([]ChainedSequenceRule, 0, count)
	for i := 0; i < int(count); i++ {
		off, err := b.u16(2 + i*2)
		if err != nil || int(off) >= len(b) {
			return nil, errInvalid(tag, "ChainedSequenceRuleSet", "rule offset out of bounds")
		}
		rule := b[off:]
		at := 0
		backCount, err := rule.u16(at)
		if err != nil {
			return nil, errInvalid(tag, "ChainedSequenceRule", "rule truncated")
		}
		backtrack, err := rule.u16s(at+2, int(backCount))
		if err != nil {
			return nil, errInvalid(tag, "ChainedSequenceRule", "backtrack sequence truncated")
		}
		at += 2 + int(backCount)*2
		inputCount, err := rule.u16(at)
		if err != nil || inputCount == 0 {
			return nil, errInvalid(tag, "ChainedSequenceRule", "invalid input glyph count")
		}
		input, err := rule.u16s(at+2, int(inputCount)-1)
		if err != nil {
			return nil, errInvalid(tag, "ChainedSequenceRule", "input sequence truncated")
		}
		at += 2 + (int(inputCount)-1)*2
		aheadCount, err := rule.u16(at)
		if err != nil {
			return nil, errInvalid(tag, "ChainedSequenceRule", "rule truncated")
		}
		lookahead, err := rule.u16s(at+2, int(aheadCount))
		if err != nil {
			return nil, errInvalid(tag, "ChainedSequenceRule", "lookahead sequence truncated")
		}
		at += 2 + int(aheadCount)*2
		lookupCount, err := rule.u16(at)
		if err != nil {
			return nil, errInvalid(tag, "ChainedSequenceRule", "rule truncated")
		}
		records, err := parseSequenceLookupRecords(rule, at+2, int(lookupCount))
		if err != nil {
			return nil, err
		}
		rules = append(rules, ChainedSequenceRule{
			Backtrack: backtrack,
			Input:     input,
			Lookahead: lookahead,
			Records:   records,
		})
	}
	return rules, nil
}
