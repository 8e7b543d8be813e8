/*
Package otquery provides query access to properties of OpenType fonts:
naming, metrics, layout feature inventory and glyph classification.

# License

Governed by a 3-Clause BSD license. License file may be found in the root
folder of this module.

Copyright © Norbert Pillmayer <norbert@pillmayer.com>
*/
package otquery

import (
	"github.com/npillmayer/otype/ot"
	"github.com/npillmayer/schuko/tracing"
)

// tracer writes to trace with key 'otype.fonts'
func tracer() tracing.Trace {
	return tracing.Select("otype.fonts")
}

// Well-known name table IDs.
const (
	NameFontFamily    = 1
	NameFontSubfamily = 2
	NameFullFontName  = 4
	NameVersion       = 5
	NamePostScript    = 6
)

// FontInfo is a summary of a font's naming table entries.
type FontInfo struct {
	Family     string
	Subfamily  string
	FullName   string
	PostScript string
	Version    string
}

// InfoOf collects naming information for a font. Fonts without a name
// table yield empty strings.
func InfoOf(otf *ot.Font) FontInfo {
	info := FontInfo{}
	table := otf.Table(ot.T("name"))
	if table == nil {
		return info
	}
	name := table.Self().AsName()
	info.Family = name.Name(NameFontFamily)
	info.Subfamily = name.Name(NameFontSubfamily)
	info.FullName = name.Name(NameFullFontName)
	info.PostScript = name.Name(NamePostScript)
	info.Version = name.Name(NameVersion)
	return info
}

// SupportedScripts returns the script tags a font's layout tables
// declare, across GSUB and GPOS.
func SupportedScripts(otf *ot.Font) []ot.Tag {
	seen := make(map[ot.Tag]bool)
	collect := func(lyt *ot.LayoutTable) {
		if lyt == nil {
			return
		}
		for tag := range lyt.Scripts {
			seen[tag] = true
		}
	}
	if otf.Layout.GSub != nil {
		collect(&otf.Layout.GSub.LayoutTable)
	}
	if otf.Layout.GPos != nil {
		collect(&otf.Layout.GPos.LayoutTable)
	}
	return sortedTags(seen)
}

// SupportedFeatures returns the feature tags a font's layout tables
// declare, across GSUB and GPOS.
func SupportedFeatures(otf *ot.Font) []ot.Tag {
	seen := make(map[ot.Tag]bool)
	collect := func(lyt *ot.LayoutTable) {
		if lyt == nil {
			return
		}
		for _, feature := range lyt.Features {
			seen[feature.Tag] = true
		}
	}
	if otf.Layout.GSub != nil {
		collect(&otf.Layout.GSub.LayoutTable)
	}
	if otf.Layout.GPos != nil {
		collect(&otf.Layout.GPos.LayoutTable)
	}
	return sortedTags(seen)
}

// FontSupportsScript returns a tuple (script-tag, language-tag) for a
// given input of a script tag and a language tag. If the language has no
// special support in the font, DFLT will be returned. If the script has
// no support in the font, DFLT will be returned for the script.
func FontSupportsScript(otf *ot.Font, scr ot.Tag, lang ot.Tag) (ot.Tag, ot.Tag) {
	if otf == nil || otf.Layout.GSub == nil {
		return ot.DFLT, ot.DFLT
	}
	script, ok := otf.Layout.GSub.Scripts[scr]
	if !ok {
		tracer().Infof("cannot find script %s in font", scr.String())
		return ot.DFLT, ot.DFLT
	}
	tracer().Debugf("script %s is contained in GSUB", scr.String())
	if _, ok := script.LangSys[lang]; ok {
		return scr, lang
	}
	return scr, ot.DFLT
}

// GlyphClass returns the GDEF glyph class of a glyph (base, ligature,
// mark or component), or 0 if the font does not classify it.
func GlyphClass(otf *ot.Font, gid ot.GlyphIndex) int {
	return otf.Layout.GDef.GlyphClass(gid)
}

func sortedTags(seen map[ot.Tag]bool) []ot.Tag {
	tags := make([]ot.Tag, 0, len(seen))
	for tag := range seen {
		tags = append(tags, tag)
	}
	for i := 1; i < len(tags); i++ {
		for j := i; j > 0 && tags[j] < tags[j-1]; j-- {
			tags[j], tags[j-1] = tags[j-1], tags[j]
		}
	}
	return tags
}
