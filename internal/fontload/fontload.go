package fontload

import (
	"fmt"
	"os"

	"golang.org/x/image/font/sfnt"
)

// ScalableFont is a parsed scalable font with original bytes and SFNT view.
type ScalableFont struct {
	Fontname string
	Binary   []byte
	SFNT     *sfnt.Font
}

// LoadOpenTypeFont loads an OpenType font (TTF or OTF) from a file.
func LoadOpenTypeFont(fontfile string) (*ScalableFont, error) {
	bytez, err := os.ReadFile(fontfile)
	if err != nil {
		return nil, err
	}
	return ParseOpenTypeFont(bytez)
}

// ParseOpenTypeFont loads an OpenType font (TTF or OTF) from memory.
func ParseOpenTypeFont(fbytes []byte) (f *ScalableFont, err error) {
	f = &ScalableFont{Binary: fbytes}
	f.SFNT, err = sfnt.Parse(f.Binary)
	if err != nil {
		return nil, err
	}
	f.Fontname, err = f.SFNT.Name(nil, sfnt.NameIDFull)
	return f, nil
}

// ParseOpenTypeCollection loads one font of an OpenType collection (TTC)
// from memory, selected by face index. Single fonts are accepted with
// face index 0.
func ParseOpenTypeCollection(fbytes []byte, faceIndex int) (*ScalableFont, error) {
	coll, err := sfnt.ParseCollection(fbytes)
	if err != nil {
		return nil, err
	}
	if faceIndex < 0 || faceIndex >= coll.NumFonts() {
		return nil, fmt.Errorf("face index %d out of bounds, collection has %d fonts",
			faceIndex, coll.NumFonts())
	}
	f := &ScalableFont{Binary: fbytes}
	if f.SFNT, err = coll.Font(faceIndex); err != nil {
		return nil, err
	}
	f.Fontname, err = f.SFNT.Name(nil, sfnt.NameIDFull)
	return f, nil
}
