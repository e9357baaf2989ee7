package semantic

import (
	"testing"

	"github.com/docshield/pdfredact/ir/decoded"
	"github.com/docshield/pdfredact/ir/raw"
)

func decodedDoc(objects map[raw.ObjectRef]raw.Object) *decoded.Document {
	return &decoded.Document{Raw: &raw.Document{Objects: objects}}
}

func TestWidthFallbacks(t *testing.T) {
	var nilFont *Font
	if w := nilFont.Width(65); w != 500 {
		t.Errorf("nil font: got %v, want 500", w)
	}
	f := &Font{Widths: map[int]float64{65: 650}, DefaultWidth: 410}
	if w := f.Width(65); w != 650 {
		t.Errorf("known code: got %v", w)
	}
	if w := f.Width(66); w != 410 {
		t.Errorf("default width: got %v", w)
	}
}

func TestAscentDescentDefaults(t *testing.T) {
	asc, desc := (*Font)(nil).AscentDescent()
	if asc != 800 || desc != -200 {
		t.Errorf("nil font: got %v %v", asc, desc)
	}
	f := &Font{Ascent: 718, Descent: -207}
	if asc, desc := f.AscentDescent(); asc != 718 || desc != -207 {
		t.Errorf("descriptor values: got %v %v", asc, desc)
	}
}

func TestParseSimpleFont(t *testing.T) {
	dict := raw.Dict()
	dict.Set("Subtype", raw.Name("TrueType"))
	dict.Set("BaseFont", raw.Name("Arial"))
	dict.Set("FirstChar", raw.Int(65))
	dict.Set("Widths", raw.NewArray(raw.Int(650), raw.Int(700)))
	desc := raw.Dict()
	desc.Set("Ascent", raw.Int(905))
	desc.Set("Descent", raw.Int(-212))
	dict.Set("FontDescriptor", desc)

	f := parseFont(decodedDoc(nil), dict)
	if f == nil {
		t.Fatal("parseFont returned nil")
	}
	if f.CodeLen != 1 || f.BaseFont != "Arial" {
		t.Errorf("font header: %+v", f)
	}
	if f.Width(65) != 650 || f.Width(66) != 700 {
		t.Errorf("widths: %v %v", f.Width(65), f.Width(66))
	}
	if f.Width(67) != 500 {
		t.Errorf("missing code should fall back: got %v", f.Width(67))
	}
	if f.Ascent != 905 || f.Descent != -212 {
		t.Errorf("descriptor: %v %v", f.Ascent, f.Descent)
	}
}

func TestParseType0Font(t *testing.T) {
	cid := raw.Dict()
	cid.Set("DW", raw.Int(1000))
	cid.Set("W", raw.NewArray(
		raw.Int(1), raw.NewArray(raw.Int(600), raw.Int(620)),
		raw.Int(10), raw.Int(12), raw.Int(450),
	))
	dict := raw.Dict()
	dict.Set("Subtype", raw.Name("Type0"))
	dict.Set("DescendantFonts", raw.NewArray(cid))

	f := parseFont(decodedDoc(nil), dict)
	if f == nil {
		t.Fatal("parseFont returned nil")
	}
	if f.CodeLen != 2 {
		t.Errorf("code length: got %d, want 2", f.CodeLen)
	}
	for code, want := range map[int]float64{1: 600, 2: 620, 10: 450, 11: 450, 12: 450, 99: 1000} {
		if got := f.Width(code); got != want {
			t.Errorf("width(%d): got %v, want %v", code, got, want)
		}
	}
}

func TestParseFontFollowsReferences(t *testing.T) {
	widths := raw.NewArray(raw.Int(333))
	objects := map[raw.ObjectRef]raw.Object{
		{Num: 7}: widths,
	}
	dict := raw.Dict()
	dict.Set("Subtype", raw.Name("Type1"))
	dict.Set("FirstChar", raw.Int(32))
	dict.Set("Widths", raw.Ref(7, 0))

	f := parseFont(decodedDoc(objects), dict)
	if f == nil {
		t.Fatal("parseFont returned nil")
	}
	if f.Width(32) != 333 {
		t.Errorf("indirect widths: got %v", f.Width(32))
	}
}

func TestEncodingDifferences(t *testing.T) {
	enc := raw.Dict()
	enc.Set("Differences", raw.NewArray(raw.Int(200), raw.Name("eacute"), raw.Name("Euro")))
	dict := raw.Dict()
	dict.Set("Subtype", raw.Name("Type1"))
	dict.Set("Encoding", enc)

	f := parseFont(decodedDoc(nil), dict)
	if f == nil {
		t.Fatal("parseFont returned nil")
	}
	cc := f.NextCode([]byte{200})
	if !cc.Mapped || cc.Text != "é" {
		t.Errorf("code 200: %+v", cc)
	}
	cc = f.NextCode([]byte{201})
	if !cc.Mapped || cc.Text != "€" {
		t.Errorf("code 201: %+v", cc)
	}
}

func TestNextCodeIdentityFallback(t *testing.T) {
	var f *Font
	cc := f.NextCode([]byte("Az"))
	if cc.Code != 'A' || cc.Size != 1 || cc.Text != "A" || !cc.Mapped {
		t.Errorf("printable: %+v", cc)
	}
	cc = f.NextCode([]byte{0x07})
	if cc.Mapped || cc.Text != "�" {
		t.Errorf("control byte: %+v", cc)
	}
	if cc = f.NextCode(nil); cc.Size != 0 {
		t.Errorf("empty input: %+v", cc)
	}
}

func TestCodesConsumesWholeString(t *testing.T) {
	f := &Font{CodeLen: 2, toUnicode: &toUnicodeMap{
		entries: map[string]string{"\x00\x01": "H", "\x00\x02": "i"},
		lengths: []int{2},
	}}
	codes := f.Codes([]byte{0, 1, 0, 2, 0, 9})
	if len(codes) != 3 {
		t.Fatalf("got %d codes, want 3", len(codes))
	}
	if codes[0].Text != "H" || codes[1].Text != "i" {
		t.Errorf("mapped text: %+v", codes[:2])
	}
	if codes[2].Mapped || codes[2].Size != 2 {
		t.Errorf("unmapped code should be a 2-byte filler: %+v", codes[2])
	}
}
