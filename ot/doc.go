/*
Package ot decodes OpenType font tables.

Fonts are parsed from their binary representation into typed tables.
All offset resolution happens at load time: every offset recorded in the
font file is turned into a typed structure or a sub-slice of the original
font buffer, and the resulting Font is immutable afterwards. Clients may
therefore share one Font between goroutines without locking.

Package ot does not interpret the tables for text shaping. That is the
job of the sister packages otlayout and otshape, which walk the typed
structures produced here.

Errors fall into two disjoint classes: ErrInvalid for malformed data
(truncated buffers, unknown required format codes, out-of-range offsets)
and ErrUnsupported for valid fonts using features we do not implement
(CFF outlines, device tables, variations). Misses—a glyph absent from a
Coverage table, a codepoint outside all cmap segments—are not errors;
they yield None or a default value.

# Status

Supports TrueType-outline OpenType fonts and collections with the
advanced layout tables GDEF, GSUB and GPOS. CFF outlines are recognized
but not decoded.

# License

Governed by a 3-Clause BSD license. License file may be found in the root
folder of this module.

Copyright © Norbert Pillmayer <norbert@pillmayer.com>
*/
package ot

import (
	"github.com/npillmayer/schuko/tracing"
)

// tracer writes to trace with key 'otype.fonts'
func tracer() tracing.Trace {
	return tracing.Select("otype.fonts")
}
