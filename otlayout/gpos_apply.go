package otlayout

import "github.com/npillmayer/otype/ot"

// Application of GPOS lookups. Positioning never changes glyph identity
// or buffer length; it accumulates per-glyph deltas in a positions array
// parallel to the glyph buffer. Callers initialize the XAdvance fields
// from the font's horizontal metrics before applying GPOS, so anchor
// attachment can measure pen distances.

// ApplyPositioning applies the given GPOS lookups, in the given order,
// to a glyph buffer, accumulating adjustments in positions. positions
// must be parallel to glyphs. A font without a GPOS table positions
// nothing, which is not an error.
func (e *Engine) ApplyPositioning(glyphs []ot.GlyphIndex, positions []GlyphPos, lookupIndices []uint16) error {
	gpos := e.otf.Layout.GPos
	if gpos == nil || len(glyphs) == 0 {
		return nil
	}
	if len(positions) != len(glyphs) {
		return errLayout("positions length %d does not match glyph count %d", len(positions), len(glyphs))
	}
	for _, li := range lookupIndices {
		if int(li) >= len(gpos.Lookups) {
			return errLayout("GPOS lookup index %d out of range", li)
		}
		if err := e.applyGPosLookup(gpos, gpos.Lookups[li], glyphs, positions); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) applyGPosLookup(gpos *ot.GPosTable, lookup *ot.GPosLookup, glyphs []ot.GlyphIndex, positions []GlyphPos) error {
	v := e.viewOf(glyphs, lookup.Flag, lookup.MarkFilteringSet)
	vpos := 0
	for vpos < len(v.glyphs) {
		matched := false
		for _, st := range lookup.Subtables {
			advance, ok, err := e.applyGPosSubtable(gpos, lookup, st, glyphs, positions, v, vpos)
			if err != nil {
				return err
			}
			if ok {
				vpos += advance
				matched = true
				break
			}
		}
		if !matched {
			vpos++
		}
	}
	return nil
}

// applyGPosSubtable tries one subtable at view position vpos. On a match
// it returns the number of view positions to jump and true.
func (e *Engine) applyGPosSubtable(gpos *ot.GPosTable, lookup *ot.GPosLookup, st ot.GPosSubtable,
	glyphs []ot.GlyphIndex, positions []GlyphPos, v matchView, vpos int) (int, bool, error) {
	//
	g := v.glyphs[vpos]
	switch sub := st.(type) {
	case *ot.SinglePos:
		vr, ok := sub.Value(g).Unwrap()
		if !ok {
			return 0, false, nil
		}
		applyValue(&positions[v.pos[vpos]], vr)
		return 1, true, nil
	case *ot.PairPos:
		if vpos+1 >= len(v.glyphs) {
			return 0, false, nil
		}
		adj, ok := sub.Adjust(g, v.glyphs[vpos+1]).Unwrap()
		if !ok {
			return 0, false, nil
		}
		tracer().Debugf("GPOS pair: adjust (%d, %d)", g, v.glyphs[vpos+1])
		applyValue(&positions[v.pos[vpos]], adj.Value1)
		applyValue(&positions[v.pos[vpos+1]], adj.Value2)
		// the pair consumes the second glyph only if it received its own
		// value record, otherwise it remains eligible as a first glyph
		if sub.Format2 != 0 {
			return 2, true, nil
		}
		return 1, true, nil
	case *ot.CursivePos:
		return e.applyCursive(sub, lookup.Flag, positions, v, vpos)
	case *ot.MarkToBasePos:
		return e.applyMarkToBase(sub, glyphs, positions, v, vpos)
	case *ot.MarkToLigaturePos:
		return e.applyMarkToLigature(sub, glyphs, positions, v, vpos)
	case *ot.MarkToMarkPos:
		return e.applyMarkToMark(sub, positions, v, vpos)
	case *ot.ContextPos:
		m, ok := sub.Ctx.Match(v.glyphs, vpos).Unwrap()
		if !ok {
			return 0, false, nil
		}
		if err := e.applyGPosRecords(gpos, glyphs, positions, v, vpos, m); err != nil {
			return 0, false, err
		}
		return m.Consumed, true, nil
	case *ot.ChainedContextPos:
		m, ok := sub.Ctx.Match(v.glyphs, vpos).Unwrap()
		if !ok {
			return 0, false, nil
		}
		if err := e.applyGPosRecords(gpos, glyphs, positions, v, vpos, m); err != nil {
			return 0, false, err
		}
		return m.Consumed, true, nil
	}
	return 0, false, errLayout("GPOS subtable type %d in scan", st.LookupType())
}

func applyValue(p *GlyphPos, vr ot.ValueRecord) {
	p.XPlacement += int32(vr.XPlacement)
	p.YPlacement += int32(vr.YPlacement)
	p.XAdvance += int32(vr.XAdvance)
	p.YAdvance += int32(vr.YAdvance)
}

// applyCursive aligns the exit anchor of the glyph at vpos with the
// entry anchor of the following (unfiltered) glyph: the first glyph's
// advance is trimmed to its exit point and the second glyph is shifted
// so its entry point continues the pen path.
func (e *Engine) applyCursive(sub *ot.CursivePos, flag ot.LookupFlag,
	positions []GlyphPos, v matchView, vpos int) (int, bool, error) {
	//
	if vpos+1 >= len(v.glyphs) {
		return 0, false, nil
	}
	curInx, ok := sub.Coverage.Match(v.glyphs[vpos])
	if !ok || curInx >= len(sub.EntryExits) {
		return 0, false, nil
	}
	nextInx, ok := sub.Coverage.Match(v.glyphs[vpos+1])
	if !ok || nextInx >= len(sub.EntryExits) {
		return 0, false, nil
	}
	exit, haveExit := sub.EntryExits[curInx].Exit.Unwrap()
	entry, haveEntry := sub.EntryExits[nextInx].Entry.Unwrap()
	if !haveExit || !haveEntry {
		return 0, false, nil
	}
	i, j := v.pos[vpos], v.pos[vpos+1]
	positions[i].XAdvance = int32(exit.X) + positions[i].XPlacement
	d := int32(entry.X) + positions[j].XPlacement
	positions[j].XAdvance -= d
	positions[j].XPlacement -= d
	if flag&ot.LOOKUP_FLAG_RIGHT_TO_LEFT != 0 {
		positions[i].YPlacement = int32(entry.Y) - int32(exit.Y)
	} else {
		positions[j].YPlacement = int32(exit.Y) - int32(entry.Y)
	}
	return 1, true, nil
}

// attachMark shifts the mark at buffer position markPos so that its
// anchor coincides with the base anchor of the glyph at basePos. The
// horizontal delta subtracts the pen advances between base and mark,
// since placement is relative to the mark's own pen position.
func attachMark(positions []GlyphPos, basePos, markPos int, base, mark ot.Anchor) {
	dx := int32(base.X) - int32(mark.X)
	for k := basePos; k < markPos; k++ {
		dx -= positions[k].XAdvance
	}
	positions[markPos].XPlacement += dx
	positions[markPos].YPlacement += int32(base.Y) - int32(mark.Y)
}

// precedingBase returns the buffer position of the nearest glyph before
// p that is not a combining mark, per GDEF glyph classes.
func (e *Engine) precedingBase(glyphs []ot.GlyphIndex, p int) (int, bool) {
	for q := p - 1; q >= 0; q-- {
		if e.gdef.GlyphClass(glyphs[q]) != ot.GlyphClassMark {
			return q, true
		}
	}
	return 0, false
}

func (e *Engine) applyMarkToBase(sub *ot.MarkToBasePos, glyphs []ot.GlyphIndex,
	positions []GlyphPos, v matchView, vpos int) (int, bool, error) {
	//
	markInx, ok := sub.MarkCoverage.Match(v.glyphs[vpos])
	if !ok || markInx >= len(sub.Marks) {
		return 0, false, nil
	}
	markPos := v.pos[vpos]
	basePos, ok := e.precedingBase(glyphs, markPos)
	if !ok {
		return 0, false, nil
	}
	baseInx, ok := sub.BaseCoverage.Match(glyphs[basePos])
	if !ok || baseInx >= len(sub.Bases) {
		return 0, false, nil
	}
	mark := sub.Marks[markInx]
	anchor, ok := sub.Bases[baseInx][mark.Class].Unwrap()
	if !ok {
		return 0, false, nil
	}
	tracer().Debugf("GPOS mark-to-base: attach %d to %d", glyphs[markPos], glyphs[basePos])
	attachMark(positions, basePos, markPos, anchor, mark.Anchor)
	return 1, true, nil
}

func (e *Engine) applyMarkToLigature(sub *ot.MarkToLigaturePos, glyphs []ot.GlyphIndex,
	positions []GlyphPos, v matchView, vpos int) (int, bool, error) {
	//
	markInx, ok := sub.MarkCoverage.Match(v.glyphs[vpos])
	if !ok || markInx >= len(sub.Marks) {
		return 0, false, nil
	}
	markPos := v.pos[vpos]
	ligPos, ok := e.precedingBase(glyphs, markPos)
	if !ok {
		return 0, false, nil
	}
	ligInx, ok := sub.LigatureCoverage.Match(glyphs[ligPos])
	if !ok || ligInx >= len(sub.Ligatures) {
		return 0, false, nil
	}
	components := sub.Ligatures[ligInx]
	if len(components) == 0 {
		return 0, false, nil
	}
	// the mark attaches to the last ligature component
	mark := sub.Marks[markInx]
	anchor, ok := components[len(components)-1][mark.Class].Unwrap()
	if !ok {
		return 0, false, nil
	}
	attachMark(positions, ligPos, markPos, anchor, mark.Anchor)
	return 1, true, nil
}

func (e *Engine) applyMarkToMark(sub *ot.MarkToMarkPos,
	positions []GlyphPos, v matchView, vpos int) (int, bool, error) {
	//
	if vpos == 0 {
		return 0, false, nil
	}
	markInx, ok := sub.Mark1Coverage.Match(v.glyphs[vpos])
	if !ok || markInx >= len(sub.Marks) {
		return 0, false, nil
	}
	// the attachment target is the directly preceding glyph in the
	// lookup's view (mark filtering narrows the view to one mark group)
	mark2Inx, ok := sub.Mark2Coverage.Match(v.glyphs[vpos-1])
	if !ok || mark2Inx >= len(sub.Mark2Anchors) {
		return 0, false, nil
	}
	mark := sub.Marks[markInx]
	anchor, ok := sub.Mark2Anchors[mark2Inx][mark.Class].Unwrap()
	if !ok {
		return 0, false, nil
	}
	attachMark(positions, v.pos[vpos-1], v.pos[vpos], anchor, mark.Anchor)
	return 1, true, nil
}

// applyGPosRecords applies the nested lookups of a matched contextual
// rule. Sequence indices address the matched input glyphs directly;
// nesting is one level deep, so a nested lookup must not be contextual
// itself.
func (e *Engine) applyGPosRecords(gpos *ot.GPosTable, glyphs []ot.GlyphIndex, positions []GlyphPos,
	v matchView, vpos int, m ot.ContextMatch) error {
	//
	for _, rec := range m.Records {
		if int(rec.SequenceIndex) >= m.Consumed {
			return errLayout("GPOS contextual rule: sequence index %d exceeds match length %d",
				rec.SequenceIndex, m.Consumed)
		}
		if int(rec.LookupListIndex) >= len(gpos.Lookups) {
			return errLayout("GPOS contextual rule: lookup index %d out of range", rec.LookupListIndex)
		}
		nested := gpos.Lookups[rec.LookupListIndex]
		if !gposNestable(nested.Type) {
			return errLayout("GPOS contextual rule: nested lookup %d is contextual", rec.LookupListIndex)
		}
		p := v.pos[vpos+int(rec.SequenceIndex)]
		if err := e.applyGPosLookupAt(gpos, nested, glyphs, positions, p); err != nil {
			return err
		}
	}
	return nil
}

// applyGPosLookupAt applies a (non-contextual) lookup at exactly one
// buffer position.
func (e *Engine) applyGPosLookupAt(gpos *ot.GPosTable, lookup *ot.GPosLookup,
	glyphs []ot.GlyphIndex, positions []GlyphPos, p int) error {
	//
	v := e.viewOf(glyphs, lookup.Flag, lookup.MarkFilteringSet)
	for vpos, bp := range v.pos {
		if bp != p {
			continue
		}
		for _, st := range lookup.Subtables {
			_, ok, err := e.applyGPosSubtable(gpos, lookup, st, glyphs, positions, v, vpos)
			if err != nil {
				return err
			}
			if ok {
				break
			}
		}
		break
	}
	return nil
}
