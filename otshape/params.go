package otshape

import (
	"strings"

	"github.com/npillmayer/otype/ot"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/bidi"
)

// Params select script, direction and typographic features for one
// shaping call. The zero value shapes with the DFLT script, left to
// right, and the default feature sets.
type Params struct {
	Script    language.Script // ISO 15924, e.g. language.MustParseScript("Latn")
	Direction bidi.Direction
	Language  ot.Tag   // OpenType language system tag, 0 selects the default
	Features  []ot.Tag // requested in addition to the defaults
}

// Feature tags applied by default, per OpenType layout recommendations.
var (
	defaultGSubFeatures = []ot.Tag{ot.T("ccmp"), ot.T("liga"), ot.T("clig"), ot.T("calt")}
	defaultGPosFeatures = []ot.Tag{ot.T("kern"), ot.T("mark"), ot.T("mkmk")}
)

// scriptTag converts an ISO 15924 script code to an OpenType script
// tag. For most scripts the tag is the lowercased code; the unknown
// script maps to DFLT.
func scriptTag(s language.Script) ot.Tag {
	code := s.String()
	if code == "" || code == "Zzzz" {
		return ot.DFLT
	}
	return ot.T(strings.ToLower(code))
}

// featureSet merges the default features for a table with the features
// requested by the caller.
func featureSet(defaults, requested []ot.Tag) map[ot.Tag]bool {
	set := make(map[ot.Tag]bool, len(defaults)+len(requested))
	for _, tag := range defaults {
		set[tag] = true
	}
	for _, tag := range requested {
		set[tag] = true
	}
	return set
}

// lookupIndicesFor resolves the lookup indices of all wanted features
// for a script and language, in lookup list order. The language
// system's required feature is always included.
func lookupIndicesFor(lyt *ot.LayoutTable, script, lang ot.Tag, wanted map[ot.Tag]bool) []uint16 {
	required, featureIndices := lyt.FeatureIndicesFor(script, lang)
	seen := make(map[uint16]bool)
	collect := func(inx uint16) {
		feature, ok := lyt.FeatureFor(inx)
		if !ok {
			return
		}
		for _, li := range feature.LookupIndices {
			seen[li] = true
		}
	}
	if r, ok := required.Unwrap(); ok {
		collect(r)
	}
	for _, fi := range featureIndices {
		if feature, ok := lyt.FeatureFor(fi); ok && wanted[feature.Tag] {
			collect(fi)
		}
	}
	// lookups apply in lookup list order, independent of feature order
	indices := make([]uint16, 0, len(seen))
	for li := range seen {
		indices = append(indices, li)
	}
	for i := 1; i < len(indices); i++ { // insertion sort, lists are short
		for j := i; j > 0 && indices[j] < indices[j-1]; j-- {
			indices[j], indices[j-1] = indices[j-1], indices[j]
		}
	}
	return indices
}
