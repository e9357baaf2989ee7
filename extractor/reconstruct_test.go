package extractor

import (
	"testing"

	"github.com/docshield/pdfredact/contentstream"
	"github.com/docshield/pdfredact/coords"
)

// textRun builds a run at device position (x, y) whose glyphs are the bytes
// of s, each 6 units wide at size 12.
func textRun(s string, x, y float64) contentstream.GlyphRun {
	run := contentstream.GlyphRun{
		Size:   12,
		Hscale: 1,
		Matrix: coords.Translate(x, y),
	}
	for i, r := range s {
		run.Glyphs = append(run.Glyphs, contentstream.Glyph{
			Code:   int(r),
			Size:   1,
			Text:   string(r),
			Mapped: true,
			X:      float64(i) * 6,
			W:      6,
		})
	}
	run.Advance = float64(len(run.Glyphs)) * 6
	return run
}

func TestReconstructJoinsAdjacentRuns(t *testing.T) {
	runs := []contentstream.GlyphRun{
		textRun("Hel", 72, 700),
		textRun("lo", 90, 700), // starts exactly where the first ends
	}
	pt := Reconstruct(runs, Config{})
	if pt.Text != "Hello" {
		t.Errorf("got %q, want %q", pt.Text, "Hello")
	}
}

func TestReconstructInsertsSpaceOnGap(t *testing.T) {
	runs := []contentstream.GlyphRun{
		textRun("one", 72, 700),
		textRun("two", 110, 700), // 20-unit gap, well past half an advance
	}
	pt := Reconstruct(runs, Config{})
	if pt.Text != "one two" {
		t.Errorf("got %q, want %q", pt.Text, "one two")
	}
}

func TestReconstructInsertsNewlineOnBaselineChange(t *testing.T) {
	runs := []contentstream.GlyphRun{
		textRun("first", 72, 700),
		textRun("second", 72, 686),
	}
	pt := Reconstruct(runs, Config{})
	if pt.Text != "first\nsecond" {
		t.Errorf("got %q, want %q", pt.Text, "first\nsecond")
	}
}

func TestReconstructEntriesCoverText(t *testing.T) {
	runs := []contentstream.GlyphRun{
		textRun("ab", 72, 700),
		textRun("cd", 72, 686),
	}
	pt := Reconstruct(runs, Config{})
	if pt.Text != "ab\ncd" {
		t.Fatalf("text: %q", pt.Text)
	}
	prev := 0
	for _, e := range pt.Entries {
		if e.Start != prev {
			t.Fatalf("entry gap at offset %d: %+v", prev, e)
		}
		prev = e.End
	}
	if prev != len(pt.Text) {
		t.Errorf("entries end at %d, text length %d", prev, len(pt.Text))
	}
	sep := pt.Entries[2]
	if !sep.Synthetic || sep.Run != -1 {
		t.Errorf("separator entry: %+v", sep)
	}
}

func TestResolveRangeMergesContiguousGlyphs(t *testing.T) {
	runs := []contentstream.GlyphRun{
		textRun("hello", 72, 700),
		textRun("world", 72, 686),
	}
	pt := Reconstruct(runs, Config{})
	// "hello\nworld": span "lo\nwo" covers glyphs 3..5 of run 0 and 0..2
	// of run 1; the newline contributes nothing.
	got := pt.ResolveRange(3, 8)
	want := []GlyphRange{
		{Run: 0, GlyphStart: 3, GlyphEnd: 5},
		{Run: 1, GlyphStart: 0, GlyphEnd: 2},
	}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("range %d: got %v, want %v", i, got[i], want[i])
		}
	}
}

func TestResolveRangeMultiByteGlyph(t *testing.T) {
	run := textRun("x", 72, 700)
	run.Glyphs[0].Text = "ﬁ" // one glyph, three text bytes
	pt := Reconstruct([]contentstream.GlyphRun{run}, Config{})
	if pt.Text != "ﬁ" {
		t.Fatalf("text: %q", pt.Text)
	}
	got := pt.ResolveRange(0, 1)
	if len(got) != 1 || got[0] != (GlyphRange{Run: 0, GlyphStart: 0, GlyphEnd: 1}) {
		t.Errorf("partial byte range should still resolve the glyph: %v", got)
	}
}

func TestReconstructEmpty(t *testing.T) {
	pt := Reconstruct(nil, Config{})
	if pt.Text != "" || len(pt.Entries) != 0 {
		t.Errorf("got %q %v", pt.Text, pt.Entries)
	}
}
