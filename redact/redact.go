// Package redact rewrites content streams so that matched glyphs are
// removed from the text-showing operators that painted them, and paints
// opaque rectangles over the vacated areas.
package redact

import (
	"sort"

	"github.com/docshield/pdfredact/contentstream"
	"github.com/docshield/pdfredact/coords"
	"github.com/docshield/pdfredact/ir/raw"
	"github.com/docshield/pdfredact/ir/semantic"
	"github.com/docshield/pdfredact/match"
)

// Plan splits located matches into the ones that can be applied and the
// ones that must be left alone because their geometry is unusable.
type Plan struct {
	Matches []match.Match
	// Skipped holds matches with at least one degenerate rectangle. A
	// cover of zero area hides nothing, so the whole match stays
	// untouched rather than deleting glyphs it cannot conceal.
	Skipped []match.Match
}

// BuildPlan validates match geometry. A match is applied only if every one
// of its rectangles has positive area.
func BuildPlan(matches []match.Match) Plan {
	var p Plan
	for _, m := range matches {
		degenerate := len(m.Rects) == 0
		for _, r := range m.Rects {
			if r.Area() <= 0 {
				degenerate = true
				break
			}
		}
		if degenerate {
			p.Skipped = append(p.Skipped, m)
		} else {
			p.Matches = append(p.Matches, m)
		}
	}
	return p
}

// Rects returns every cover rectangle the plan will paint.
func (p Plan) Rects() []semantic.Rectangle {
	var rects []semantic.Rectangle
	for _, m := range p.Matches {
		rects = append(rects, m.Rects...)
	}
	return rects
}

type span struct{ from, to int }

// Apply returns a rewritten operation sequence: planned glyphs are deleted
// from their show strings with the lost advances compensated, and a cover
// block painting each rectangle solid black is appended. Operations not
// named by the plan pass through byte for byte.
func Apply(ops []contentstream.Operation, runs []contentstream.GlyphRun, plan Plan, finalCTM coords.Matrix) []contentstream.Operation {
	deletions := make(map[int][]span) // run index -> glyph spans
	for _, m := range plan.Matches {
		for _, gr := range m.Ranges {
			deletions[gr.Run] = append(deletions[gr.Run], span{gr.GlyphStart, gr.GlyphEnd})
		}
	}
	for run := range deletions {
		deletions[run] = mergeSpans(deletions[run])
	}

	// Group edits by the operation that painted the run. TJ elements of
	// one array land in the same group.
	type runEdit struct {
		run   *contentstream.GlyphRun
		spans []span
	}
	edits := make(map[int][]runEdit)
	for i := range runs {
		if spans, ok := deletions[i]; ok {
			r := &runs[i]
			edits[r.Op] = append(edits[r.Op], runEdit{run: r, spans: spans})
		}
	}

	out := make([]contentstream.Operation, 0, len(ops)+8)
	for i, op := range ops {
		opEdits, ok := edits[i]
		if !ok {
			out = append(out, op)
			continue
		}
		switch op.Operator {
		case "Tj":
			str := op.Operands[len(op.Operands)-1].(raw.StringObj)
			e := opEdits[0]
			out = append(out, tjOp(rewriteString(e.run, str, e.spans)))
		case "'":
			str := op.Operands[len(op.Operands)-1].(raw.StringObj)
			e := opEdits[0]
			out = append(out,
				contentstream.Operation{Operator: "T*"},
				tjOp(rewriteString(e.run, str, e.spans)))
		case "\"":
			str := op.Operands[len(op.Operands)-1].(raw.StringObj)
			e := opEdits[0]
			out = append(out,
				contentstream.Operation{Operator: "Tw", Operands: []raw.Object{op.Operands[len(op.Operands)-3]}},
				contentstream.Operation{Operator: "Tc", Operands: []raw.Object{op.Operands[len(op.Operands)-2]}},
				contentstream.Operation{Operator: "T*"},
				tjOp(rewriteString(e.run, str, e.spans)))
		case "TJ":
			arr := op.Operands[len(op.Operands)-1].(*raw.ArrayObj)
			byElem := make(map[int]runEdit, len(opEdits))
			for _, e := range opEdits {
				byElem[e.run.Elem] = e
			}
			var items []raw.Object
			for elem, item := range arr.Items {
				e, edited := byElem[elem]
				str, isStr := item.(raw.StringObj)
				if !edited || !isStr {
					items = append(items, item)
					continue
				}
				items = append(items, rewriteString(e.run, str, e.spans)...)
			}
			out = append(out, tjOp(items))
		default:
			// A run can only originate from a show operator; anything
			// else here means the indices are stale.
			out = append(out, op)
		}
	}

	return append(out, coverOps(plan.Rects(), finalCTM)...)
}

func tjOp(items []raw.Object) contentstream.Operation {
	return contentstream.Operation{
		Operator: "TJ",
		Operands: []raw.Object{raw.NewArray(items...)},
	}
}

// rewriteString splits one show string into TJ elements: the surviving byte
// fragments interleaved with adjustment numbers sized to reproduce the
// advance of the deleted glyphs.
func rewriteString(run *contentstream.GlyphRun, str raw.StringObj, spans []span) []raw.Object {
	offsets := make([]int, len(run.Glyphs)+1)
	for i, g := range run.Glyphs {
		offsets[i+1] = offsets[i] + g.Size
	}

	var items []raw.Object
	keep := func(fromByte, toByte int) {
		if toByte > fromByte {
			items = append(items, raw.StringObj{Bytes: str.Bytes[fromByte:toByte], Hex: str.Hex})
		}
	}

	cursor := 0
	for _, s := range spans {
		keep(cursor, offsets[s.from])
		cursor = offsets[s.to]

		width := 0.0
		for i := s.from; i < s.to; i++ {
			width += run.Glyphs[i].W
		}
		// A TJ number n shifts the pen by -n/1000 * size * hscale.
		if denom := run.Size * run.Hscale; denom != 0 && width != 0 {
			items = append(items, raw.Real(-width*1000/denom))
		}
	}
	// Trailing bytes past the last decoded glyph stay with the final
	// fragment.
	keep(cursor, len(str.Bytes))
	return items
}

func mergeSpans(spans []span) []span {
	sort.Slice(spans, func(i, j int) bool { return spans[i].from < spans[j].from })
	merged := spans[:1]
	for _, s := range spans[1:] {
		last := &merged[len(merged)-1]
		if s.from <= last.to {
			if s.to > last.to {
				last.to = s.to
			}
		} else {
			merged = append(merged, s)
		}
	}
	return merged
}

// coverOps paints the rectangles in solid black inside a saved graphics
// state. The rectangles are in device space; if the stream left a CTM in
// effect it is cancelled first so the covers land where the glyphs were.
func coverOps(rects []semantic.Rectangle, finalCTM coords.Matrix) []contentstream.Operation {
	if len(rects) == 0 {
		return nil
	}
	ops := []contentstream.Operation{{Operator: "q"}}
	if finalCTM != coords.Identity() {
		if inv, err := finalCTM.Inverse(); err == nil {
			operands := make([]raw.Object, 6)
			for i, v := range inv {
				operands[i] = raw.Real(v)
			}
			ops = append(ops, contentstream.Operation{Operator: "cm", Operands: operands})
		}
	}
	ops = append(ops, contentstream.Operation{Operator: "g", Operands: []raw.Object{raw.Int(0)}})
	for _, r := range rects {
		ops = append(ops, contentstream.Operation{Operator: "re", Operands: []raw.Object{
			raw.Real(r.LLX), raw.Real(r.LLY), raw.Real(r.Width()), raw.Real(r.Height()),
		}})
	}
	return append(ops,
		contentstream.Operation{Operator: "f"},
		contentstream.Operation{Operator: "Q"})
}
