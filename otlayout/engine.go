package otlayout

import (
	"fmt"

	"github.com/npillmayer/otype/ot"
)

// Engine applies GSUB and GPOS lookups of one font. An Engine holds no
// mutable state besides the font reference and may be shared between
// goroutines.
type Engine struct {
	otf  *ot.Font
	gdef *ot.GDefTable
}

// NewEngine creates a lookup engine for a font.
func NewEngine(otf *ot.Font) *Engine {
	e := &Engine{otf: otf}
	if otf != nil {
		e.gdef = otf.Layout.GDef
	}
	return e
}

// Font returns the font this engine operates on.
func (e *Engine) Font() *ot.Font {
	return e.otf
}

// errLayout reports a structural violation found during lookup
// application, e.g. an out-of-range lookup index referenced by a
// contextual rule. These wrap ot.ErrInvalid.
func errLayout(format string, args ...any) error {
	return fmt.Errorf(format+": %w", append(args, ot.ErrInvalid)...)
}

// --- Glyph filtering ---------------------------------------------------------

// skipsGlyph reports whether a lookup with the given flags ignores glyph
// g during scanning and sequence matching. Without a GDEF table no glyph
// classes are known and nothing is skipped.
func (e *Engine) skipsGlyph(flag ot.LookupFlag, mfs ot.Option[uint16], g ot.GlyphIndex) bool {
	if e.gdef == nil {
		return false
	}
	cls := e.gdef.GlyphClass(g)
	switch {
	case flag&ot.LOOKUP_FLAG_IGNORE_BASE_GLYPHS != 0 && cls == ot.GlyphClassBase:
		return true
	case flag&ot.LOOKUP_FLAG_IGNORE_LIGATURES != 0 && cls == ot.GlyphClassLigature:
		return true
	case flag&ot.LOOKUP_FLAG_IGNORE_MARKS != 0 && cls == ot.GlyphClassMark:
		return true
	}
	if cls != ot.GlyphClassMark {
		return false
	}
	// the mark filtering set supersedes the attachment type filter
	if flag&ot.LOOKUP_FLAG_USE_MARK_FILTERING_SET != 0 {
		set, ok := mfs.Unwrap()
		return ok && !e.gdef.InMarkGlyphSet(int(set), g)
	}
	if mtype := flag.MarkAttachmentType(); mtype != 0 {
		return e.gdef.MarkAttachClass(g) != mtype
	}
	return false
}

// matchView is the lookup's view of a glyph buffer: the subsequence of
// glyphs not skipped by the lookup's flags, together with their
// positions in the underlying buffer. Sequence matching always runs on
// the view; edits and positioning address the buffer through pos.
type matchView struct {
	glyphs []ot.GlyphIndex
	pos    []int
}

func (e *Engine) viewOf(glyphs []ot.GlyphIndex, flag ot.LookupFlag, mfs ot.Option[uint16]) matchView {
	v := matchView{
		glyphs: make([]ot.GlyphIndex, 0, len(glyphs)),
		pos:    make([]int, 0, len(glyphs)),
	}
	for i, g := range glyphs {
		if e.skipsGlyph(flag, mfs, g) {
			continue
		}
		v.glyphs = append(v.glyphs, g)
		v.pos = append(v.pos, i)
	}
	return v
}

// --- Nested lookup guards ----------------------------------------------------

// Contextual rules reference other lookups by index. The referenced
// lookup is applied at a fixed position one level deep; a nested lookup
// that is itself contextual would open unbounded recursion and is
// rejected as invalid font data.

func gsubNestable(lookupType uint16) bool {
	switch lookupType {
	case ot.GSubContext, ot.GSubChainedContext, ot.GSubReverseChained:
		return false
	}
	return true
}

func gposNestable(lookupType uint16) bool {
	switch lookupType {
	case ot.GPosContext, ot.GPosChainedContext:
		return false
	}
	return true
}
