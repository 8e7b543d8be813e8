/*
Package otshape turns Unicode text into positioned glyphs.

The package API is centered around [Face] and [ScaledFace]: a Face wraps
a parsed font, a ScaledFace binds it to a point size and resolution.
[ScaledFace.Shape] maps runes to glyphs through the font's cmap, applies
GSUB substitutions and GPOS positioning per the requested script and
features, and scales the resulting metrics to pixels.

# Status

Work in progress.

# License

Governed by a 3-Clause BSD license. License file may be found in the root
folder of this module.

Copyright © Norbert Pillmayer <norbert@pillmayer.com>
*/
package otshape

import (
	"fmt"

	"github.com/npillmayer/otype/ot"
	"github.com/npillmayer/schuko/tracing"
)

// NOTDEF is the glyph index for OpenType ".notdef".
const NOTDEF = ot.GlyphIndex(0)

// tracer returns a trace sink for the otshape package namespace.
func tracer() tracing.Trace {
	return tracing.Select("otype.fonts")
}

// errShaper wraps a message as a user-facing shaping error.
func errShaper(x string) error {
	return fmt.Errorf("OpenType text shaping: %s", x)
}
