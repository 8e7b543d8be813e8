/*
Package otype handles OpenType fonts: parsing of the binary table
structures, layout lookups (GSUB and GPOS), and text shaping.

There is a certain confusion with the nomenclature of typesetting. We will
stick to the following definitions:

▪︎ A "typeface" is a family of fonts. An example is "Helvetica".
This corresponds to a TrueType "collection" (*.ttc).

▪︎ A "scalable font" is a font, i.e. a variant of a typeface with a
certain weight, slant, etc.  An example is "Helvetica regular".

▪︎ A "scaled face" is a font in a certain size for a certain script and
language. An example is "Helvetica regular 11pt, Latin, en_US".

Please note that Go (Golang) does use the terms "font" and "face"
differently–actually more or less in an opposite manner.

The sub-packages split the work: `ot` decodes the font tables,
`otlayout` drives the layout lookups, `otshape` turns text into
positioned glyphs and `otquery` answers questions about a font's
inventory. This package bundles convenience functions for the most
common use-cases.

# Links

OpenType explained:
https://docs.microsoft.com/en-us/typography/opentype/

______________________________________________________________________

# License

Governed by a 3-Clause BSD license. License file may be found in the root
folder of this module.

Copyright © Norbert Pillmayer <norbert@pillmayer.com>
*/
package otype

import (
	"github.com/npillmayer/otype/ot"
	"github.com/npillmayer/otype/otquery"
	"github.com/npillmayer/otype/otshape"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/bidi"
)

// FromBinary parses raw OpenType bytes and returns a decoded font.
//
// The input is expected to contain a complete single-font SFNT stream.
// It must not change after parsing for the font to remain usable.
func FromBinary(data []byte) (*ot.Font, error) {
	return ot.Parse(data)
}

// FamilyName extracts family and subfamily names from a font's `name` table.
//
// Returned values are empty if no matching records exist or if records cannot
// be decoded by the current name-table reader.
func FamilyName(f *ot.Font) (family, subfamily string) {
	info := otquery.InfoOf(f)
	return info.Family, info.Subfamily
}

// ShapeLatinText shapes UTF-8 text as one left-to-right run in “Latin”
// (i.e., Western) script, at a given point size and 72 dpi.
//
// It returns the decoded runes and the shaped glyphs in output order.
// If `face` is nil or `text` is empty, it does nothing.
//
// This is a convenience API for a very common use-case of short pieces of
// Western text. Clients who need more control over shaping, such as shaping
// multiple runs or using different scripts and languages, need to use the
// `otshape` package directly.
func ShapeLatinText(face *otshape.Face, text string, points float64) ([]rune, []otshape.ScaledGlyphInfo, error) {
	if face == nil || text == "" {
		return nil, nil, nil
	}
	params := otshape.Params{
		Script:    language.MustParseScript("Latn"),
		Direction: bidi.LeftToRight,
	}
	return face.Scale(points, 72).Shape(text, params)
}
