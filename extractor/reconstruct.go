// Package extractor rebuilds a page's linear text from decoded glyph runs,
// keeping an exact map from every text offset back to the glyph that
// produced it. PDFs encode visual positions, not word or line boundaries,
// so joining runs relies on two configurable heuristics: a large horizontal
// gap becomes a single space, a baseline change becomes a single newline.
package extractor

import (
	"math"
	"strings"

	"github.com/docshield/pdfredact/contentstream"
	"github.com/docshield/pdfredact/coords"
)

type Config struct {
	// GapFactor inserts a space when the horizontal displacement between
	// two runs exceeds this multiple of the previous run's average
	// advance width.
	GapFactor float64
	// LineTolerance inserts a newline when the baseline moves vertically
	// by more than this fraction of the font size.
	LineTolerance float64
}

func (c *Config) defaults() {
	if c.GapFactor <= 0 {
		c.GapFactor = 0.5
	}
	if c.LineTolerance <= 0 {
		c.LineTolerance = 0.5
	}
}

// Entry maps one glyph (or one synthetic separator) to its byte range in
// the reconstructed text. Entries cover the text completely and in order.
type Entry struct {
	Start, End int // byte offsets into Text
	Run        int // index into the run slice; -1 for synthetic entries
	Glyph      int // index into the run's glyphs
	Synthetic  bool
}

// PageText is the reconstructed linear text of one page plus its offset map.
type PageText struct {
	Text    string
	Entries []Entry
}

// GlyphRange identifies a contiguous glyph span [GlyphStart, GlyphEnd)
// within a single run.
type GlyphRange struct {
	Run        int
	GlyphStart int
	GlyphEnd   int
}

// ResolveRange maps a byte range of the text to the glyph spans that
// produced it. Synthetic separators inside the range contribute nothing.
func (pt *PageText) ResolveRange(start, end int) []GlyphRange {
	var out []GlyphRange
	for _, e := range pt.Entries {
		if e.End <= start || e.Start >= end || e.Synthetic {
			continue
		}
		n := len(out)
		if n > 0 && out[n-1].Run == e.Run && out[n-1].GlyphEnd == e.Glyph {
			out[n-1].GlyphEnd = e.Glyph + 1
			continue
		}
		out = append(out, GlyphRange{Run: e.Run, GlyphStart: e.Glyph, GlyphEnd: e.Glyph + 1})
	}
	return out
}

// Reconstruct joins glyph runs into PageText. Runs are consumed in stream
// order; multi-column layouts therefore follow stream order, not visual
// reading order.
func Reconstruct(runs []contentstream.GlyphRun, cfg Config) PageText {
	cfg.defaults()
	var sb strings.Builder
	var entries []Entry

	for i := range runs {
		run := &runs[i]
		if i > 0 {
			if sep := separator(&runs[i-1], run, cfg); sep != 0 {
				start := sb.Len()
				sb.WriteByte(sep)
				entries = append(entries, Entry{Start: start, End: sb.Len(), Run: -1, Synthetic: true})
			}
		}
		for g := range run.Glyphs {
			start := sb.Len()
			sb.WriteString(run.Glyphs[g].Text)
			entries = append(entries, Entry{Start: start, End: sb.Len(), Run: i, Glyph: g})
		}
	}
	return PageText{Text: sb.String(), Entries: entries}
}

// separator decides what, if anything, to insert between two adjacent runs:
// '\n' on a baseline change, ' ' on a large horizontal gap, 0 otherwise.
func separator(prev, cur *contentstream.GlyphRun, cfg Config) byte {
	prevEnd := prev.Matrix.Transform(coords.Point{X: prev.Advance})
	curStart := cur.Matrix.Transform(coords.Point{})

	size := deviceLen(prev.Matrix, 0, prev.Size)
	if size > 0 && math.Abs(curStart.Y-prevEnd.Y) > cfg.LineTolerance*size {
		return '\n'
	}

	gap := math.Hypot(curStart.X-prevEnd.X, curStart.Y-prevEnd.Y)
	if curStart.X < prevEnd.X {
		// Backwards movement on the same baseline: treat as a word break
		// only when it is large (e.g. a column restart without Td).
		if gap > 2*deviceLen(prev.Matrix, prev.Size, 0) && prev.Size > 0 {
			return ' '
		}
		return 0
	}
	avg := averageAdvance(prev)
	threshold := cfg.GapFactor * deviceLen(prev.Matrix, avg, 0)
	if threshold > 0 && gap > threshold {
		return ' '
	}
	return 0
}

// averageAdvance is the mean glyph advance of a run in text space.
func averageAdvance(run *contentstream.GlyphRun) float64 {
	if len(run.Glyphs) == 0 {
		return 0
	}
	return run.Advance / float64(len(run.Glyphs))
}

// deviceLen measures the device-space length of a text-space displacement
// under the run matrix.
func deviceLen(m coords.Matrix, dx, dy float64) float64 {
	o := m.Transform(coords.Point{})
	p := m.Transform(coords.Point{X: dx, Y: dy})
	return math.Hypot(p.X-o.X, p.Y-o.Y)
}
