package ot

import (
	"errors"
	"fmt"
	"math"
)

// Reading bytes from a font's binary representation.
//
// A font file is one contiguous byte buffer; every table and sub-table
// is a segment of it. We never copy table bytes, we slice them. The
// segment type below carries bounds-checked big-endian accessors which
// all other decoding is built on, so truncated input fails uniformly.

var errBufferBounds = errors.New("buffer bounds error")

func u16(b []byte) uint16 {
	_ = b[1] // bounds check hint to compiler
	return uint16(b[0])<<8 | uint16(b[1])<<0
}

func u32(b []byte) uint32 {
	_ = b[3] // bounds check hint to compiler
	return uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3])<<0
}

// binarySegm is a segment of byte data, i.e. a slice of the font's
// binary data. All offsets are relative to the start of the segment.
type binarySegm []byte

// view returns n bytes at the given offset.
// The byte segment returned is a sub-slice of b. n may be zero: empty
// arrays (no lookup records, no backtrack sequence) are valid structures.
func (b binarySegm) view(offset, n int) (binarySegm, error) {
	if offset < 0 || n < 0 || offset+n > len(b) {
		return nil, errBufferBounds
	}
	return b[offset : offset+n], nil
}

// u16 returns the uint16 in b at the relative offset i.
func (b binarySegm) u16(i int) (uint16, error) {
	buf, err := b.view(i, 2)
	if err != nil {
		return 0, err
	}
	return u16(buf), nil
}

// u32 returns the uint32 in b at the relative offset i.
func (b binarySegm) u32(i int) (uint32, error) {
	buf, err := b.view(i, 4)
	if err != nil {
		return 0, err
	}
	return u32(buf), nil
}

// i16 returns the int16 in b at the relative offset i.
func (b binarySegm) i16(i int) (int16, error) {
	n, err := b.u16(i)
	return int16(n), err
}

// U16 is a convenience accessor returning 0 on out-of-range access.
// Use method u16 whenever the distinction matters.
func (b binarySegm) U16(i int) uint16 {
	n, err := b.u16(i)
	if err != nil {
		return 0
	}
	return n
}

// U32 is a convenience accessor returning 0 on out-of-range access.
func (b binarySegm) U32(i int) uint32 {
	n, err := b.u32(i)
	if err != nil {
		return 0
	}
	return n
}

// glyphs interprets the segment as a big-endian array of glyph IDs.
func (b binarySegm) glyphs(count int) ([]GlyphIndex, error) {
	buf, err := b.view(0, count*2)
	if err != nil {
		return nil, err
	}
	glyphs := make([]GlyphIndex, count)
	for i := 0; i < count; i++ {
		glyphs[i] = GlyphIndex(u16(buf[i*2:]))
	}
	return glyphs, nil
}

// u16s interprets a sub-segment as a big-endian uint16 array.
func (b binarySegm) u16s(offset, count int) ([]uint16, error) {
	buf, err := b.view(offset, count*2)
	if err != nil {
		return nil, err
	}
	r := make([]uint16, count)
	for i := 0; i < count; i++ {
		r[i] = u16(buf[i*2:])
	}
	return r, nil
}

// --- Checked arithmetic -----------------------------------------------------

// Size computations on counts read from the font must not overflow;
// a malicious font may claim unreasonably large counts.

// checkedMulInt checks for overflow in multiplication of two integers.
func checkedMulInt(a, b int) (int, error) {
	if a == 0 || b == 0 {
		return 0, nil
	}
	if a > 0 && b > 0 && a > math.MaxInt/b {
		return 0, fmt.Errorf("integer overflow: %d * %d", a, b)
	}
	if a < 0 && b < 0 && a < math.MaxInt/b {
		return 0, fmt.Errorf("integer overflow: %d * %d", a, b)
	}
	if (a < 0 && b > 0 && a < math.MinInt/b) || (a > 0 && b < 0 && b < math.MinInt/a) {
		return 0, fmt.Errorf("integer overflow: %d * %d", a, b)
	}
	return a * b, nil
}

// checkedAddUint32 checks for overflow in addition of two uint32 values.
func checkedAddUint32(a, b uint32) (uint32, error) {
	if a > math.MaxUint32-b {
		return 0, fmt.Errorf("integer overflow: %d + %d", a, b)
	}
	return a + b, nil
}

// --- Ranges of glyphs -------------------------------------------------------

// GlyphRange is the loaded form of the two Coverage encodings, shared by
// the layout tables (GSUB, GPOS, GDEF). If an input glyph g is contained
// in the range, its index and true is returned, false otherwise.
type GlyphRange interface {
	Match(g GlyphIndex) (int, bool) // is glyph ID g in range?
	Count() int                     // number of glyphs covered
}

// glyphRangeArray holds entries as a block of consecutive sorted glyph
// keys; the index of a key is its position in the block.
type glyphRangeArray struct {
	count int // number of glyph keys
	data  binarySegm
}

// Match performs a binary search over the sorted glyph array.
// 0 is a valid return value.
func (r *glyphRangeArray) Match(g GlyphIndex) (int, bool) {
	lo, hi := 0, r.count
	for lo < hi {
		mid := (lo + hi) / 2
		k, err := r.data.u16(mid * 2)
		if err != nil {
			return 0, false
		}
		switch {
		case GlyphIndex(k) == g:
			return mid, true
		case GlyphIndex(k) < g:
			lo = mid + 1
		default:
			hi = mid
		}
	}
	return 0, false
}

func (r *glyphRangeArray) Count() int {
	return r.count
}

type rangeRecord struct {
	from, to GlyphIndex
	index    uint16
}

// glyphRangeRecords holds entries as sorted (start, end, startIndex)
// range records of 6 bytes each.
type glyphRangeRecords struct {
	count int // number of range records
	data  binarySegm
}

func (r *glyphRangeRecords) record(i int) (rangeRecord, error) {
	buf, err := r.data.view(i*6, 6)
	if err != nil {
		return rangeRecord{}, err
	}
	return rangeRecord{
		from:  GlyphIndex(u16(buf)),
		to:    GlyphIndex(u16(buf[2:])),
		index: u16(buf[4:]),
	}, nil
}

// Match performs a binary search over the sorted range records.
// 0 is a valid return value.
func (r *glyphRangeRecords) Match(g GlyphIndex) (int, bool) {
	lo, hi := 0, r.count
	for lo < hi {
		mid := (lo + hi) / 2
		rec, err := r.record(mid)
		if err != nil {
			return 0, false
		}
		switch {
		case g < rec.from:
			hi = mid
		case g > rec.to:
			lo = mid + 1
		default:
			return int(rec.index) + int(g-rec.from), true
		}
	}
	return 0, false
}

func (r *glyphRangeRecords) Count() int {
	n := 0
	for i := 0; i < r.count; i++ {
		rec, err := r.record(i)
		if err != nil {
			return n
		}
		n += int(rec.to-rec.from) + 1
	}
	return n
}
