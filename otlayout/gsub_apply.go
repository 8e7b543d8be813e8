package otlayout

import "github.com/npillmayer/otype/ot"

// Application of GSUB lookups. The scan runs left to right over the
// lookup's view of the buffer (glyphs not skipped by the lookup flags);
// at each position the lookup's subtables are tried in order and the
// first matching one wins, advancing the scan past the consumed glyphs.
// Reverse chained substitution is the exception and scans right to left.

// ApplySubstitutions applies the given GSUB lookups, in the given order,
// to a buffer of glyph IDs and returns the substituted buffer. A font
// without a GSUB table substitutes nothing, which is not an error.
func (e *Engine) ApplySubstitutions(glyphs []ot.GlyphIndex, lookupIndices []uint16) ([]ot.GlyphIndex, error) {
	gsub := e.otf.Layout.GSub
	if gsub == nil || len(glyphs) == 0 {
		return glyphs, nil
	}
	var err error
	for _, li := range lookupIndices {
		if int(li) >= len(gsub.Lookups) {
			return nil, errLayout("GSUB lookup index %d out of range", li)
		}
		if glyphs, err = e.applyGSubLookup(gsub, gsub.Lookups[li], glyphs); err != nil {
			return nil, err
		}
	}
	return glyphs, nil
}

func (e *Engine) applyGSubLookup(gsub *ot.GSubTable, lookup *ot.GSubLookup, glyphs []ot.GlyphIndex) ([]ot.GlyphIndex, error) {
	if lookup.Type == ot.GSubReverseChained {
		return e.applyReverseChained(lookup, glyphs)
	}
	v := e.viewOf(glyphs, lookup.Flag, lookup.MarkFilteringSet)
	vpos := 0
	for vpos < len(v.glyphs) {
		matched := false
		for _, st := range lookup.Subtables {
			out, advance, ok, err := e.applyGSubSubtable(gsub, st, glyphs, v, vpos)
			if err != nil {
				return nil, err
			}
			if ok {
				glyphs = out
				v = e.viewOf(glyphs, lookup.Flag, lookup.MarkFilteringSet)
				vpos += advance
				matched = true
				break
			}
		}
		if !matched {
			vpos++
		}
	}
	return glyphs, nil
}

// applyGSubSubtable tries one subtable at view position vpos. On a match
// it returns the edited buffer, the number of view positions to jump,
// and true.
func (e *Engine) applyGSubSubtable(gsub *ot.GSubTable, st ot.GSubSubtable, glyphs []ot.GlyphIndex,
	v matchView, vpos int) ([]ot.GlyphIndex, int, bool, error) {
	//
	g := v.glyphs[vpos]
	switch sub := st.(type) {
	case *ot.SingleSubst:
		repl, ok := sub.Substitute(g).Unwrap()
		if !ok {
			return glyphs, 0, false, nil
		}
		tracer().Debugf("GSUB single: subst %d for %d", repl, g)
		glyphs[v.pos[vpos]] = repl
		return glyphs, 1, true, nil
	case *ot.MultipleSubst:
		inx, ok := sub.Coverage.Match(g)
		if !ok || inx >= len(sub.Sequences) {
			return glyphs, 0, false, nil
		}
		seq := sub.Sequences[inx]
		tracer().Debugf("GSUB multiple: subst %v for %d", seq, g)
		p := v.pos[vpos]
		out := GlyphSlice(glyphs).Replace(p, p+1, seq)
		return out.(GlyphSlice), len(seq), true, nil
	case *ot.AlternateSubst:
		// alternates require an external selection; application of this
		// lookup type substitutes nothing
		return glyphs, 0, false, nil
	case *ot.LigatureSubst:
		inx, ok := sub.Coverage.Match(g)
		if !ok || inx >= len(sub.LigatureSets) {
			return glyphs, 0, false, nil
		}
		// candidates are tried in declaration order, first full match wins
		for _, lig := range sub.LigatureSets[inx] {
			if !componentsMatch(v, vpos+1, lig.Components) {
				continue
			}
			tracer().Debugf("GSUB ligature: subst %d for %d glyphs", lig.Glyph, 1+len(lig.Components))
			out := composeLigature(glyphs, v, vpos, len(lig.Components), lig.Glyph)
			return out, 1, true, nil
		}
		return glyphs, 0, false, nil
	case *ot.ContextSubst:
		m, ok := sub.Ctx.Match(v.glyphs, vpos).Unwrap()
		if !ok {
			return glyphs, 0, false, nil
		}
		out, err := e.applyGSubRecords(gsub, glyphs, v, vpos, m)
		if err != nil {
			return nil, 0, false, err
		}
		return out, m.Consumed, true, nil
	case *ot.ChainedContextSubst:
		m, ok := sub.Ctx.Match(v.glyphs, vpos).Unwrap()
		if !ok {
			return glyphs, 0, false, nil
		}
		out, err := e.applyGSubRecords(gsub, glyphs, v, vpos, m)
		if err != nil {
			return nil, 0, false, err
		}
		return out, m.Consumed, true, nil
	}
	return nil, 0, false, errLayout("GSUB subtable type %d in forward scan", st.LookupType())
}

// componentsMatch checks ligature components against the view, starting
// at view position from.
func componentsMatch(v matchView, from int, components []ot.GlyphIndex) bool {
	if from+len(components) > len(v.glyphs) {
		return false
	}
	for i, c := range components {
		if v.glyphs[from+i] != c {
			return false
		}
	}
	return true
}

// composeLigature replaces the covered glyph and its matched components
// with the ligature glyph. Glyphs skipped by the lookup flags (e.g.
// marks between components) stay in the buffer.
func composeLigature(glyphs []ot.GlyphIndex, v matchView, vpos, compCount int, lig ot.GlyphIndex) []ot.GlyphIndex {
	glyphs[v.pos[vpos]] = lig
	drop := make(map[int]bool, compCount)
	for i := 1; i <= compCount; i++ {
		drop[v.pos[vpos+i]] = true
	}
	out := glyphs[:0:0]
	for i, g := range glyphs {
		if !drop[i] {
			out = append(out, g)
		}
	}
	return out
}

// applyGSubRecords applies the nested lookups of a matched contextual
// rule. Sequence indices address the matched input glyphs directly;
// nesting is one level deep, so a nested lookup must not be contextual
// itself.
func (e *Engine) applyGSubRecords(gsub *ot.GSubTable, glyphs []ot.GlyphIndex,
	v matchView, vpos int, m ot.ContextMatch) ([]ot.GlyphIndex, error) {
	//
	orig := make([]int, m.Consumed)
	for i := range orig {
		orig[i] = v.pos[vpos+i]
	}
	for _, rec := range m.Records {
		if int(rec.SequenceIndex) >= m.Consumed {
			return nil, errLayout("GSUB contextual rule: sequence index %d exceeds match length %d",
				rec.SequenceIndex, m.Consumed)
		}
		if int(rec.LookupListIndex) >= len(gsub.Lookups) {
			return nil, errLayout("GSUB contextual rule: lookup index %d out of range", rec.LookupListIndex)
		}
		nested := gsub.Lookups[rec.LookupListIndex]
		if !gsubNestable(nested.Type) {
			return nil, errLayout("GSUB contextual rule: nested lookup %d is contextual", rec.LookupListIndex)
		}
		out, editPos, delta, applied, err := e.applyGSubLookupAt(gsub, nested, glyphs, orig[rec.SequenceIndex])
		if err != nil {
			return nil, err
		}
		if !applied {
			continue
		}
		glyphs = out
		if delta != 0 {
			for i := range orig {
				if orig[i] > editPos {
					orig[i] += delta
				}
			}
		}
	}
	return glyphs, nil
}

// applyGSubLookupAt applies a (non-contextual) lookup at exactly one
// buffer position. It returns the edited buffer, the edit position, and
// the buffer length change.
func (e *Engine) applyGSubLookupAt(gsub *ot.GSubTable, lookup *ot.GSubLookup,
	glyphs []ot.GlyphIndex, p int) ([]ot.GlyphIndex, int, int, bool, error) {
	//
	v := e.viewOf(glyphs, lookup.Flag, lookup.MarkFilteringSet)
	vpos := -1
	for i, bp := range v.pos {
		if bp == p {
			vpos = i
			break
		}
	}
	if vpos < 0 { // glyph at p is skipped by the nested lookup's flags
		return glyphs, 0, 0, false, nil
	}
	for _, st := range lookup.Subtables {
		out, _, ok, err := e.applyGSubSubtable(gsub, st, glyphs, v, vpos)
		if err != nil {
			return nil, 0, 0, false, err
		}
		if ok {
			return out, p, len(out) - len(glyphs), true, nil
		}
	}
	return glyphs, 0, 0, false, nil
}

// applyReverseChained applies a reverse chained substitution lookup:
// the scan runs right to left, each position is visited once, and every
// substitution is a one-for-one replacement, so no jumps occur.
func (e *Engine) applyReverseChained(lookup *ot.GSubLookup, glyphs []ot.GlyphIndex) ([]ot.GlyphIndex, error) {
	v := e.viewOf(glyphs, lookup.Flag, lookup.MarkFilteringSet)
	for vpos := len(v.glyphs) - 1; vpos >= 0; vpos-- {
		for _, st := range lookup.Subtables {
			sub, ok := st.(*ot.ReverseChainedSubst)
			if !ok {
				return nil, errLayout("GSUB reverse chained lookup with subtable type %d", st.LookupType())
			}
			inx, covered := sub.Coverage.Match(v.glyphs[vpos])
			if !covered || inx >= len(sub.Substitutes) {
				continue
			}
			if !reverseContextMatches(v, vpos, sub) {
				continue
			}
			tracer().Debugf("GSUB reverse chained: subst %d for %d", sub.Substitutes[inx], v.glyphs[vpos])
			glyphs[v.pos[vpos]] = sub.Substitutes[inx]
			v.glyphs[vpos] = sub.Substitutes[inx]
			break
		}
	}
	return glyphs, nil
}

func reverseContextMatches(v matchView, vpos int, sub *ot.ReverseChainedSubst) bool {
	if vpos < len(sub.BacktrackCoverages) ||
		vpos+len(sub.LookaheadCoverages) >= len(v.glyphs) {
		return false
	}
	for i, cov := range sub.BacktrackCoverages { // in reverse text order
		if _, ok := cov.Match(v.glyphs[vpos-1-i]); !ok {
			return false
		}
	}
	for i, cov := range sub.LookaheadCoverages {
		if _, ok := cov.Match(v.glyphs[vpos+1+i]); !ok {
			return false
		}
	}
	return true
}
