package semantic

import "testing"

const cmapHeader = `/CIDInit /ProcSet findresource begin
12 dict begin
begincmap
1 begincodespacerange
<0000> <FFFF>
endcodespacerange
`

func TestParseToUnicodeBFChar(t *testing.T) {
	m := parseToUnicode([]byte(cmapHeader + `
2 beginbfchar
<0048> <0048>
<0049> <FB01>
endbfchar
endcmap
`))
	if m == nil {
		t.Fatal("parseToUnicode returned nil")
	}
	if text, n, ok := m.lookup([]byte{0x00, 0x48}); !ok || text != "H" || n != 2 {
		t.Errorf("bfchar: %q %d %v", text, n, ok)
	}
	if text, _, ok := m.lookup([]byte{0x00, 0x49}); !ok || text != "ﬁ" {
		t.Errorf("ligature: %q %v", text, ok)
	}
	if _, _, ok := m.lookup([]byte{0x00, 0x50}); ok {
		t.Error("unmapped code should miss")
	}
}

func TestParseToUnicodeBFRangeIncrementing(t *testing.T) {
	m := parseToUnicode([]byte(cmapHeader + `
1 beginbfrange
<0041> <0043> <0061>
endbfrange
endcmap
`))
	if m == nil {
		t.Fatal("parseToUnicode returned nil")
	}
	for i, want := range []string{"a", "b", "c"} {
		if text, _, ok := m.lookup([]byte{0x00, byte(0x41 + i)}); !ok || text != want {
			t.Errorf("code %d: got %q %v, want %q", 0x41+i, text, ok, want)
		}
	}
}

func TestParseToUnicodeBFRangeArray(t *testing.T) {
	m := parseToUnicode([]byte(cmapHeader + `
1 beginbfrange
<0001> <0002> [<0058> <0059>]
endbfrange
endcmap
`))
	if m == nil {
		t.Fatal("parseToUnicode returned nil")
	}
	if text, _, ok := m.lookup([]byte{0x00, 0x01}); !ok || text != "X" {
		t.Errorf("first: %q %v", text, ok)
	}
	if text, _, ok := m.lookup([]byte{0x00, 0x02}); !ok || text != "Y" {
		t.Errorf("second: %q %v", text, ok)
	}
}

func TestParseToUnicodeMixedCodeLengths(t *testing.T) {
	m := parseToUnicode([]byte(`
2 begincodespacerange
<00> <80>
<8140> <9FFC>
endcodespacerange
2 beginbfchar
<41> <0041>
<8140> <3042>
endbfchar
`))
	if m == nil {
		t.Fatal("parseToUnicode returned nil")
	}
	// Longest code wins when both lengths could apply.
	if text, n, ok := m.lookup([]byte{0x81, 0x40}); !ok || text != "あ" || n != 2 {
		t.Errorf("two-byte code: %q %d %v", text, n, ok)
	}
	if text, n, ok := m.lookup([]byte{0x41, 0x40}); !ok || text != "A" || n != 1 {
		t.Errorf("one-byte code: %q %d %v", text, n, ok)
	}
}

func TestParseToUnicodeEmpty(t *testing.T) {
	if m := parseToUnicode([]byte("no cmap content here")); m != nil {
		t.Errorf("expected nil map, got %+v", m)
	}
}

func TestParseToUnicodeRefusesHugeRange(t *testing.T) {
	m := parseToUnicode([]byte(cmapHeader + `
1 beginbfrange
<000000> <FFFFFF> <0000>
endbfrange
`))
	if m == nil {
		t.Fatal("parseToUnicode returned nil")
	}
	if len(m.entries) != 0 {
		t.Errorf("oversized range should be dropped, got %d entries", len(m.entries))
	}
}
