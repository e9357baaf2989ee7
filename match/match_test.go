package match

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docshield/pdfredact/contentstream"
	"github.com/docshield/pdfredact/coords"
	"github.com/docshield/pdfredact/extractor"
)

func pageWithText(s string) (extractor.PageText, []contentstream.GlyphRun) {
	run := contentstream.GlyphRun{
		Size:   10,
		Hscale: 1,
		Matrix: coords.Translate(50, 600),
	}
	for i, r := range s {
		run.Glyphs = append(run.Glyphs, contentstream.Glyph{
			Code:   int(r),
			Size:   1,
			Text:   string(r),
			Mapped: true,
			X:      float64(i) * 5,
			W:      5,
		})
	}
	run.Advance = float64(len(run.Glyphs)) * 5
	runs := []contentstream.GlyphRun{run}
	return extractor.Reconstruct(runs, extractor.Config{}), runs
}

func TestLocateCaseInsensitive(t *testing.T) {
	pt, runs := pageWithText("Call JOHN DOE now")
	matches := Locate(pt, runs, []string{"john doe"}, 0)
	require.Len(t, matches, 1)
	assert.Equal(t, "JOHN DOE", pt.Text[matches[0].Start:matches[0].End])
}

func TestLocateNormalizationInsensitive(t *testing.T) {
	// U+FB01 LATIN SMALL LIGATURE FI folds to "fi" under NFKC.
	pt, runs := pageWithText("the ﬁle name")
	matches := Locate(pt, runs, []string{"File"}, 0)
	require.Len(t, matches, 1)
	assert.Equal(t, "ﬁle", pt.Text[matches[0].Start:matches[0].End])
}

func TestLocateSelfOverlapIsLeftmost(t *testing.T) {
	pt, runs := pageWithText("aaaa")
	matches := Locate(pt, runs, []string{"aa"}, 0)
	require.Len(t, matches, 2)
	assert.Equal(t, 0, matches[0].Start)
	assert.Equal(t, 2, matches[1].Start)
}

func TestLocateCrossTermOverlapsKept(t *testing.T) {
	pt, runs := pageWithText("John Doe called")
	matches := Locate(pt, runs, []string{"Doe", "John Doe"}, 0)
	require.Len(t, matches, 2)
	// Ordered by offset, then term order.
	assert.Equal(t, 1, matches[0].Term)
	assert.Equal(t, 0, matches[0].Start)
	assert.Equal(t, 0, matches[1].Term)
	assert.Equal(t, 5, matches[1].Start)
}

func TestLocateRectCoversGlyphs(t *testing.T) {
	pt, runs := pageWithText("xxSECRETxx")
	matches := Locate(pt, runs, []string{"SECRET"}, 0)
	require.Len(t, matches, 1)
	require.Len(t, matches[0].Rects, 1)
	r := matches[0].Rects[0]
	// Glyphs 2..8 at 5 units each from x=50, ascent/descent defaults
	// 800/-200 at size 10.
	assert.InDelta(t, 60, r.LLX, 1e-9)
	assert.InDelta(t, 90, r.URX, 1e-9)
	assert.InDelta(t, 598, r.LLY, 1e-9)
	assert.InDelta(t, 608, r.URY, 1e-9)
}

func TestLocatePaddingExpandsRects(t *testing.T) {
	pt, runs := pageWithText("SECRET")
	plain := Locate(pt, runs, []string{"SECRET"}, 0)
	padded := Locate(pt, runs, []string{"SECRET"}, 2)
	require.Len(t, plain, 1)
	require.Len(t, padded, 1)
	assert.InDelta(t, plain[0].Rects[0].LLX-2, padded[0].Rects[0].LLX, 1e-9)
	assert.InDelta(t, plain[0].Rects[0].URY+2, padded[0].Rects[0].URY, 1e-9)
}

func TestLocateNoMatch(t *testing.T) {
	pt, runs := pageWithText("nothing to see")
	assert.Empty(t, Locate(pt, runs, []string{"secret"}, 0))
	assert.Empty(t, Locate(pt, runs, []string{""}, 0))
}

func TestLocateMatchSpanningRuns(t *testing.T) {
	var runs []contentstream.GlyphRun
	for i, part := range []string{"Jo", "hn"} {
		run := contentstream.GlyphRun{
			Size:   10,
			Hscale: 1,
			Matrix: coords.Translate(50+float64(i)*10, 600),
		}
		for g, r := range part {
			run.Glyphs = append(run.Glyphs, contentstream.Glyph{
				Code: int(r), Size: 1, Text: string(r), Mapped: true,
				X: float64(g) * 5, W: 5,
			})
		}
		run.Advance = 10
		runs = append(runs, run)
	}
	pt := extractor.Reconstruct(runs, extractor.Config{})
	require.Equal(t, "John", pt.Text)

	matches := Locate(pt, runs, []string{"john"}, 0)
	require.Len(t, matches, 1)
	assert.Len(t, matches[0].Ranges, 2)
	assert.Len(t, matches[0].Rects, 2)
}
