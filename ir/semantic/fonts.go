package semantic

import (
	"github.com/docshield/pdfredact/ir/decoded"
	"github.com/docshield/pdfredact/ir/raw"
)

// Font is an immutable view of a font resource: code-to-text mapping and
// advance widths. Shared read-only across every glyph run that uses it.
type Font struct {
	Subtype  string
	BaseFont string
	// CodeLen is the bytes consumed per character code when no ToUnicode
	// codespace says otherwise: 2 for Type0 (Identity), 1 for simple fonts.
	CodeLen int
	// Widths maps character code to advance width in 1000-unit glyph space.
	Widths       map[int]float64
	DefaultWidth float64
	Ascent       float64 // 1000-unit glyph space; 0 means unknown
	Descent      float64

	toUnicode *toUnicodeMap
	encoding  map[int]rune // simple-font differences / base encoding
}

const defaultGlyphWidth = 500

// Width returns the advance width for a character code in glyph space.
func (f *Font) Width(code int) float64 {
	if f == nil {
		return defaultGlyphWidth
	}
	if w, ok := f.Widths[code]; ok {
		return w
	}
	if f.DefaultWidth > 0 {
		return f.DefaultWidth
	}
	return defaultGlyphWidth
}

// AscentDescent returns vertical extents in glyph space with sensible
// defaults when the descriptor was absent.
func (f *Font) AscentDescent() (asc, desc float64) {
	asc, desc = 800, -200
	if f == nil {
		return asc, desc
	}
	if f.Ascent != 0 {
		asc = f.Ascent
	}
	if f.Descent != 0 {
		desc = f.Descent
	}
	return asc, desc
}

// NextCode decodes the leading character code of data. It prefers the
// ToUnicode CMap's codespace, then falls back to fixed-length codes with
// the encoding table or identity Latin-1 mapping.
func (f *Font) NextCode(data []byte) CharCode {
	if len(data) == 0 {
		return CharCode{}
	}
	if f != nil && f.toUnicode != nil {
		if text, n, ok := f.toUnicode.lookup(data); ok {
			return CharCode{Code: bytesToInt(data[:n]), Size: n, Text: text, Mapped: text != ""}
		}
	}
	n := 1
	if f != nil && f.CodeLen > 1 {
		n = f.CodeLen
	}
	if n > len(data) {
		n = len(data)
	}
	code := bytesToInt(data[:n])
	if f != nil && f.encoding != nil {
		if r, ok := f.encoding[code]; ok {
			return CharCode{Code: code, Size: n, Text: string(r), Mapped: true}
		}
	}
	if f != nil && f.toUnicode != nil {
		// Codespace known but code unmapped: a filler glyph that keeps
		// offset accounting intact without ever matching.
		return CharCode{Code: code, Size: n, Text: "�", Mapped: false}
	}
	if n == 1 && code >= 0x20 && code != 0x7F {
		return CharCode{Code: code, Size: n, Text: string(rune(code)), Mapped: true}
	}
	return CharCode{Code: code, Size: n, Text: "�", Mapped: false}
}

// Codes decodes a whole show-operator string.
func (f *Font) Codes(data []byte) []CharCode {
	var out []CharCode
	for len(data) > 0 {
		cc := f.NextCode(data)
		if cc.Size == 0 {
			break
		}
		out = append(out, cc)
		data = data[cc.Size:]
	}
	return out
}

func bytesToInt(b []byte) int {
	v := 0
	for _, by := range b {
		v = v<<8 | int(by)
	}
	return v
}

// parseFont builds a Font from its dictionary.
func parseFont(dec *decoded.Document, obj raw.Object) *Font {
	doc := dec.Raw
	dict, ok := doc.ResolveDict(obj)
	if !ok {
		return nil
	}
	f := &Font{CodeLen: 1, Widths: make(map[int]float64)}
	if v, ok := doc.ResolveName(dictGet(dict, "Subtype")); ok {
		f.Subtype = v
	}
	if v, ok := doc.ResolveName(dictGet(dict, "BaseFont")); ok {
		f.BaseFont = v
	}
	if f.Subtype == "Type0" {
		f.CodeLen = 2
		parseCIDFont(doc, dict, f)
	} else {
		parseSimpleWidths(doc, dict, f)
		parseEncoding(doc, dict, f)
	}
	parseDescriptor(doc, dict, f)
	if tuObj, ok := dict.Get("ToUnicode"); ok {
		if ref, isRef := tuObj.(raw.RefObj); isRef {
			if data, ok := dec.StreamData(ref.R); ok {
				f.toUnicode = parseToUnicode(data)
			}
		} else if s, isStream := doc.Resolve(tuObj).(*raw.StreamObj); isStream {
			f.toUnicode = parseToUnicode(s.Data)
		}
	}
	return f
}

func dictGet(d *raw.DictObj, key string) raw.Object {
	v, _ := d.Get(key)
	return v
}

func parseSimpleWidths(doc *raw.Document, dict *raw.DictObj, f *Font) {
	first := 0
	if v, ok := doc.ResolveNumber(dictGet(dict, "FirstChar")); ok {
		first = int(v)
	}
	arr, ok := doc.ResolveArray(dictGet(dict, "Widths"))
	if !ok {
		return
	}
	for i, item := range arr.Items {
		if w, ok := doc.ResolveNumber(item); ok {
			f.Widths[first+i] = w
		}
	}
}

// parseCIDFont reads the descendant CID font's /W and /DW width data. With
// Identity encodings the character code equals the CID, which is all this
// pipeline supports for Type0 fonts.
func parseCIDFont(doc *raw.Document, dict *raw.DictObj, f *Font) {
	descArr, ok := doc.ResolveArray(dictGet(dict, "DescendantFonts"))
	if !ok || len(descArr.Items) == 0 {
		return
	}
	cid, ok := doc.ResolveDict(descArr.Items[0])
	if !ok {
		return
	}
	if dw, ok := doc.ResolveNumber(dictGet(cid, "DW")); ok {
		f.DefaultWidth = dw
	} else {
		f.DefaultWidth = 1000
	}
	wArr, ok := doc.ResolveArray(dictGet(cid, "W"))
	if !ok {
		return
	}
	items := wArr.Items
	for i := 0; i < len(items); {
		start, ok := doc.ResolveNumber(items[i])
		if !ok {
			break
		}
		i++
		if i >= len(items) {
			break
		}
		if inner, ok := doc.ResolveArray(items[i]); ok {
			// form: c [w1 w2 ...]
			for j, wi := range inner.Items {
				if w, ok := doc.ResolveNumber(wi); ok {
					f.Widths[int(start)+j] = w
				}
			}
			i++
			continue
		}
		// form: c_first c_last w
		last, ok := doc.ResolveNumber(items[i])
		if !ok {
			break
		}
		i++
		if i >= len(items) {
			break
		}
		w, ok := doc.ResolveNumber(items[i])
		if !ok {
			break
		}
		i++
		for c := int(start); c <= int(last); c++ {
			f.Widths[c] = w
		}
	}
	if descDict, ok := doc.ResolveDict(dictGet(cid, "FontDescriptor")); ok {
		readDescriptor(doc, descDict, f)
	}
}

func parseDescriptor(doc *raw.Document, dict *raw.DictObj, f *Font) {
	descDict, ok := doc.ResolveDict(dictGet(dict, "FontDescriptor"))
	if !ok {
		return
	}
	readDescriptor(doc, descDict, f)
}

func readDescriptor(doc *raw.Document, desc *raw.DictObj, f *Font) {
	if v, ok := doc.ResolveNumber(dictGet(desc, "Ascent")); ok {
		f.Ascent = v
	}
	if v, ok := doc.ResolveNumber(dictGet(desc, "Descent")); ok {
		f.Descent = v
	}
	if v, ok := doc.ResolveNumber(dictGet(desc, "MissingWidth")); ok && f.DefaultWidth == 0 {
		f.DefaultWidth = v
	}
}

func parseEncoding(doc *raw.Document, dict *raw.DictObj, f *Font) {
	encObj, ok := dict.Get("Encoding")
	if !ok {
		return
	}
	switch enc := doc.Resolve(encObj).(type) {
	case raw.NameObj:
		// Standard, WinAnsi and MacRoman all agree with Latin-1 over the
		// printable ASCII range the identity fallback already covers.
	case *raw.DictObj:
		diffs, ok := doc.ResolveArray(dictGet(enc, "Differences"))
		if !ok {
			return
		}
		f.encoding = make(map[int]rune)
		code := 0
		for _, item := range diffs.Items {
			switch v := doc.Resolve(item).(type) {
			case raw.NumberObj:
				code = int(v.Int())
			case raw.NameObj:
				if r, ok := glyphNameToRune(v.Val); ok {
					f.encoding[code] = r
				}
				code++
			}
		}
	}
}
