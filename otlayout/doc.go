/*
Package otlayout applies OpenType layout features: glyph substitution
(GSUB) and glyph positioning (GPOS) lookups, with GDEF-driven glyph
filtering.

Substitution transforms a buffer of glyph IDs; positioning produces
per-glyph deltas (placement and advance adjustments) without touching
glyph identity. Both follow the same scan discipline: left to right,
first matching subtable wins at any one position, a match jumps the
scan position past the consumed glyphs. The single exception is
reverse chained substitution, which scans right to left.

# Status

Work in progress.

# License

Governed by a 3-Clause BSD license. License file may be found in the root
folder of this module.

Copyright © Norbert Pillmayer <norbert@pillmayer.com>
*/
package otlayout

import (
	"github.com/npillmayer/schuko/tracing"
)

// tracer writes to trace with key 'otype.fonts'
func tracer() tracing.Trace {
	return tracing.Select("otype.fonts")
}
