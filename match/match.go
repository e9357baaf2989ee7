// Package match finds occurrences of sensitive strings in reconstructed
// page text and resolves each occurrence to the device-space rectangles
// covering its glyphs. Comparison is case-insensitive and Unicode
// normalization-insensitive: both haystack and needles are NFKC-normalized
// and case-folded before searching, with an index map carrying folded
// offsets back to the original text.
package match

import (
	"sort"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"

	"github.com/docshield/pdfredact/contentstream"
	"github.com/docshield/pdfredact/extractor"
	"github.com/docshield/pdfredact/ir/semantic"
)

// Match is one located occurrence of a sensitive string on a page.
type Match struct {
	Term       int // index into the sensitive-string list
	Start, End int // byte offsets into the page text
	Ranges     []extractor.GlyphRange
	Rects      []semantic.Rectangle
}

// foldedText is the case/normalization-folded view of a page text with the
// offset map back to original bytes.
type foldedText struct {
	folded string
	// back[i] is the original byte offset of the rune that produced
	// folded byte i; back[len(folded)] is len(original).
	back []int
	orig string
}

var folder = cases.Fold()

// foldRune normalizes and case-folds a single rune. Folding rune-by-rune
// keeps the offset map exact; compositions across rune boundaries are not
// merged, which only affects needles relying on combining sequences.
func foldRune(r rune) string {
	return folder.String(norm.NFKC.String(string(r)))
}

func fold(text string) foldedText {
	var sb strings.Builder
	var back []int
	for pos, r := range text {
		f := foldRune(r)
		for range []byte(f) {
			back = append(back, pos)
		}
		sb.WriteString(f)
	}
	back = append(back, len(text))
	return foldedText{folded: sb.String(), back: back, orig: text}
}

// span maps a folded byte range back to an original byte range.
func (ft *foldedText) span(start, end int) (int, int) {
	origStart := ft.back[start]
	lastRune := ft.back[end-1]
	_, size := utf8.DecodeRuneInString(ft.orig[lastRune:])
	return origStart, lastRune + size
}

func foldTerm(term string) string {
	var sb strings.Builder
	for _, r := range term {
		sb.WriteString(foldRune(r))
	}
	return sb.String()
}

// Locate finds all occurrences of the terms in the page text. Every term is
// scanned independently, leftmost-first and non-overlapping with itself;
// overlaps between different terms are all kept. Results are ordered by
// offset, then by term order. Each match carries one padded rectangle per
// glyph-run segment it intersects; synthetic separators inside a match have
// no glyphs and so contribute no rectangle.
func Locate(pt extractor.PageText, runs []contentstream.GlyphRun, terms []string, padding float64) []Match {
	ft := fold(pt.Text)
	var matches []Match
	for t, term := range terms {
		needle := foldTerm(term)
		if needle == "" {
			continue
		}
		pos := 0
		for {
			i := strings.Index(ft.folded[pos:], needle)
			if i < 0 {
				break
			}
			fs := pos + i
			fe := fs + len(needle)
			start, end := ft.span(fs, fe)
			m := Match{Term: t, Start: start, End: end}
			m.Ranges = pt.ResolveRange(start, end)
			for _, gr := range m.Ranges {
				rect := runs[gr.Run].Rect(gr.GlyphStart, gr.GlyphEnd)
				m.Rects = append(m.Rects, rect.Expand(padding))
			}
			matches = append(matches, m)
			pos = fe
		}
	}
	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].Start != matches[j].Start {
			return matches[i].Start < matches[j].Start
		}
		return matches[i].Term < matches[j].Term
	})
	return matches
}
