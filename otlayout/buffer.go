package otlayout

import "github.com/npillmayer/otype/ot"

// GlyphBuffer is a mutable sequence of glyph IDs used by GSUB application.
//
// Implementations may be simple slices or more complex structures (e.g. a
// glyph buffer with parallel positioning data). The interface is
// intentionally small to let clients provide their own storage while still
// enabling substitutions.
//
// Contract:
//   - Indices are zero-based in the range [0, Len()).
//   - At/Set operate on the current buffer.
//   - Replace/Insert/Delete return the resulting buffer. They may return the
//     same receiver or a new buffer. Callers must always use the returned value.
//   - Arguments follow slice semantics: Replace(i, j, repl) replaces the range
//     [i:j) with repl; Insert(i, glyphs) inserts before i; Delete(i, j) removes
//     [i:j).
//   - Out-of-range indices are programmer errors and may panic.
type GlyphBuffer interface {
	// Len returns the number of glyphs in the buffer.
	Len() int
	// At returns the glyph at index i.
	At(i int) ot.GlyphIndex
	// Set overwrites the glyph at index i.
	Set(i int, g ot.GlyphIndex)
	// Replace replaces the range [i:j) with repl and returns the resulting buffer.
	Replace(i, j int, repl []ot.GlyphIndex) GlyphBuffer
	// Insert inserts glyphs before index i and returns the resulting buffer.
	Insert(i int, glyphs []ot.GlyphIndex) GlyphBuffer
	// Delete removes the range [i:j) and returns the resulting buffer.
	Delete(i, j int) GlyphBuffer
}

// GlyphSlice is the default GlyphBuffer implementation backed by a slice.
type GlyphSlice []ot.GlyphIndex

func (b GlyphSlice) Len() int {
	return len(b)
}

func (b GlyphSlice) At(i int) ot.GlyphIndex {
	return b[i]
}

func (b GlyphSlice) Set(i int, g ot.GlyphIndex) {
	b[i] = g
}

func (b GlyphSlice) Replace(i, j int, repl []ot.GlyphIndex) GlyphBuffer {
	out := make(GlyphSlice, 0, len(b)-(j-i)+len(repl))
	out = append(out, b[:i]...)
	out = append(out, repl...)
	out = append(out, b[j:]...)
	return out
}

func (b GlyphSlice) Insert(i int, glyphs []ot.GlyphIndex) GlyphBuffer {
	return b.Replace(i, i, glyphs)
}

func (b GlyphSlice) Delete(i, j int) GlyphBuffer {
	return b.Replace(i, j, nil)
}

// GlyphPos is the positioning delta of one glyph in design units,
// accumulated by GPOS application. Placement moves the glyph outline
// without affecting the pen; advance adjustments move the pen.
type GlyphPos struct {
	XPlacement int32
	YPlacement int32
	XAdvance   int32
	YAdvance   int32
}
