package contentstream

import (
	"fmt"

	"github.com/docshield/pdfredact/coords"
	"github.com/docshield/pdfredact/ir/raw"
	"github.com/docshield/pdfredact/ir/semantic"
)

// Glyph is one positioned character inside a run. X and W are in unscaled
// text space relative to the run origin, with font size, character/word
// spacing and horizontal scaling already applied.
type Glyph struct {
	Code   int
	Size   int // bytes the code occupied in the show string
	Text   string
	Mapped bool
	X      float64
	W      float64
}

// GlyphRun is a maximal sequence of glyphs painted by a single text-showing
// operator element under one graphics state.
type GlyphRun struct {
	Op       int // index into the Operation slice
	Elem     int // element index inside a TJ array, -1 otherwise
	FontName string
	Font     *semantic.Font
	Size     float64
	// Matrix maps run-local text space to device space: Tm at the run
	// start composed with the CTM.
	Matrix  coords.Matrix
	Hscale  float64 // Tz as a fraction, already folded into glyph advances
	Glyphs  []Glyph
	Advance float64 // total advance in text space
}

// Ascent and Descent return the run's vertical extent in text space.
func (r *GlyphRun) Ascent() float64 {
	asc, _ := r.Font.AscentDescent()
	return asc / 1000 * r.Size
}

func (r *GlyphRun) Descent() float64 {
	_, desc := r.Font.AscentDescent()
	return desc / 1000 * r.Size
}

// Rect returns the device-space bounding box covering glyphs [from, to).
func (r *GlyphRun) Rect(from, to int) semantic.Rectangle {
	x0 := r.Glyphs[from].X
	x1 := r.Glyphs[to-1].X + r.Glyphs[to-1].W
	return r.boxRect(x0, x1)
}

func (r *GlyphRun) boxRect(x0, x1 float64) semantic.Rectangle {
	top := r.Ascent()
	bottom := r.Descent()
	corners := []coords.Point{
		r.Matrix.Transform(coords.Point{X: x0, Y: bottom}),
		r.Matrix.Transform(coords.Point{X: x1, Y: bottom}),
		r.Matrix.Transform(coords.Point{X: x0, Y: top}),
		r.Matrix.Transform(coords.Point{X: x1, Y: top}),
	}
	rect := semantic.Rectangle{LLX: corners[0].X, LLY: corners[0].Y, URX: corners[0].X, URY: corners[0].Y}
	for _, p := range corners[1:] {
		rect = rect.Union(semantic.Rectangle{LLX: p.X, LLY: p.Y, URX: p.X, URY: p.Y})
	}
	return rect
}

// Origin returns the device-space baseline origin of glyph i.
func (r *GlyphRun) Origin(i int) coords.Point {
	return r.Matrix.Transform(coords.Point{X: r.Glyphs[i].X, Y: 0})
}

// graphicsState mirrors the operators the decoder interprets: the CTM with
// its q/Q stack.
type graphicsState struct {
	ctm   coords.Matrix
	stack []coords.Matrix
}

func (gs *graphicsState) save() { gs.stack = append(gs.stack, gs.ctm) }
func (gs *graphicsState) restore() {
	if n := len(gs.stack); n > 0 {
		gs.ctm = gs.stack[n-1]
		gs.stack = gs.stack[:n-1]
	}
	// An unbalanced Q is tolerated; real-world streams contain them and the
	// identity state is the correct reset.
}

type textState struct {
	font     *semantic.Font
	fontName string
	size     float64
	tm       coords.Matrix
	tlm      coords.Matrix
	charSp   float64 // Tc
	wordSp   float64 // Tw
	hscale   float64 // Tz fraction (1.0 = 100%)
	leading  float64 // TL
}

// Decoder turns a page's operations into glyph runs.
type Decoder struct {
	resources *semantic.Resources
}

func NewDecoder(resources *semantic.Resources) *Decoder {
	return &Decoder{resources: resources}
}

// Decode walks the operator sequence and emits one GlyphRun per shown
// string element, plus the CTM left in effect after the last operator.
// Operand-count
// violations on interpreted operators are malformed-stream errors; unknown
// operators pass through untouched.
func (d *Decoder) Decode(ops []Operation) ([]GlyphRun, coords.Matrix, error) {
	gs := graphicsState{ctm: coords.Identity()}
	ts := textState{tm: coords.Identity(), tlm: coords.Identity(), hscale: 1}
	var runs []GlyphRun

	for i, op := range ops {
		switch op.Operator {
		case "q":
			gs.save()
		case "Q":
			gs.restore()
		case "cm":
			m, err := matrixOperands(op)
			if err != nil {
				return nil, coords.Matrix{}, err
			}
			gs.ctm = m.Multiply(gs.ctm)
		case "BT":
			ts.tm = coords.Identity()
			ts.tlm = coords.Identity()
		case "ET":
		case "Tf":
			if len(op.Operands) < 2 {
				return nil, coords.Matrix{}, operandErr(op)
			}
			if name, ok := op.Operands[len(op.Operands)-2].(raw.NameObj); ok {
				ts.fontName = name.Val
				ts.font = nil
				if d.resources != nil {
					ts.font = d.resources.Fonts[name.Val]
				}
			}
			ts.size = numOperand(op.Operands[len(op.Operands)-1])
		case "Td":
			if len(op.Operands) < 2 {
				return nil, coords.Matrix{}, operandErr(op)
			}
			tx := numOperand(op.Operands[len(op.Operands)-2])
			ty := numOperand(op.Operands[len(op.Operands)-1])
			ts.tlm = coords.Translate(tx, ty).Multiply(ts.tlm)
			ts.tm = ts.tlm
		case "TD":
			if len(op.Operands) < 2 {
				return nil, coords.Matrix{}, operandErr(op)
			}
			ty := numOperand(op.Operands[len(op.Operands)-1])
			ts.leading = -ty
			tx := numOperand(op.Operands[len(op.Operands)-2])
			ts.tlm = coords.Translate(tx, ty).Multiply(ts.tlm)
			ts.tm = ts.tlm
		case "Tm":
			m, err := matrixOperands(op)
			if err != nil {
				return nil, coords.Matrix{}, err
			}
			ts.tlm = m
			ts.tm = m
		case "T*":
			ts.tlm = coords.Translate(0, -ts.leading).Multiply(ts.tlm)
			ts.tm = ts.tlm
		case "TL":
			if len(op.Operands) < 1 {
				return nil, coords.Matrix{}, operandErr(op)
			}
			ts.leading = numOperand(op.Operands[len(op.Operands)-1])
		case "Tc":
			if len(op.Operands) < 1 {
				return nil, coords.Matrix{}, operandErr(op)
			}
			ts.charSp = numOperand(op.Operands[len(op.Operands)-1])
		case "Tw":
			if len(op.Operands) < 1 {
				return nil, coords.Matrix{}, operandErr(op)
			}
			ts.wordSp = numOperand(op.Operands[len(op.Operands)-1])
		case "Tz":
			if len(op.Operands) < 1 {
				return nil, coords.Matrix{}, operandErr(op)
			}
			ts.hscale = numOperand(op.Operands[len(op.Operands)-1]) / 100
		case "Tj":
			if len(op.Operands) < 1 {
				return nil, coords.Matrix{}, operandErr(op)
			}
			str, ok := op.Operands[len(op.Operands)-1].(raw.StringObj)
			if !ok {
				return nil, coords.Matrix{}, operandErr(op)
			}
			runs = appendRun(runs, showString(&gs, &ts, str.Bytes, i, -1))
		case "'":
			if len(op.Operands) < 1 {
				return nil, coords.Matrix{}, operandErr(op)
			}
			str, ok := op.Operands[len(op.Operands)-1].(raw.StringObj)
			if !ok {
				return nil, coords.Matrix{}, operandErr(op)
			}
			ts.tlm = coords.Translate(0, -ts.leading).Multiply(ts.tlm)
			ts.tm = ts.tlm
			runs = appendRun(runs, showString(&gs, &ts, str.Bytes, i, -1))
		case "\"":
			if len(op.Operands) < 3 {
				return nil, coords.Matrix{}, operandErr(op)
			}
			ts.wordSp = numOperand(op.Operands[len(op.Operands)-3])
			ts.charSp = numOperand(op.Operands[len(op.Operands)-2])
			str, ok := op.Operands[len(op.Operands)-1].(raw.StringObj)
			if !ok {
				return nil, coords.Matrix{}, operandErr(op)
			}
			ts.tlm = coords.Translate(0, -ts.leading).Multiply(ts.tlm)
			ts.tm = ts.tlm
			runs = appendRun(runs, showString(&gs, &ts, str.Bytes, i, -1))
		case "TJ":
			if len(op.Operands) < 1 {
				return nil, coords.Matrix{}, operandErr(op)
			}
			arr, ok := op.Operands[len(op.Operands)-1].(*raw.ArrayObj)
			if !ok {
				return nil, coords.Matrix{}, operandErr(op)
			}
			for e, item := range arr.Items {
				switch v := item.(type) {
				case raw.StringObj:
					runs = appendRun(runs, showString(&gs, &ts, v.Bytes, i, e))
				case raw.NumberObj:
					tx := -v.Float() / 1000 * ts.size * ts.hscale
					ts.tm = coords.Translate(tx, 0).Multiply(ts.tm)
				}
			}
		}
	}
	return runs, gs.ctm, nil
}

// showString paints one string element: it decodes character codes, lays
// them out with spacing applied, and advances the text matrix.
func showString(gs *graphicsState, ts *textState, data []byte, opIdx, elem int) GlyphRun {
	run := GlyphRun{
		Op:       opIdx,
		Elem:     elem,
		FontName: ts.fontName,
		Font:     ts.font,
		Size:     ts.size,
		Matrix:   ts.tm.Multiply(gs.ctm),
		Hscale:   ts.hscale,
	}
	x := 0.0
	for len(data) > 0 {
		cc := ts.font.NextCode(data)
		if cc.Size == 0 {
			break
		}
		w := ts.font.Width(cc.Code)/1000*ts.size + ts.charSp
		if cc.Code == 32 && cc.Size == 1 {
			w += ts.wordSp
		}
		w *= ts.hscale
		run.Glyphs = append(run.Glyphs, Glyph{
			Code:   cc.Code,
			Size:   cc.Size,
			Text:   cc.Text,
			Mapped: cc.Mapped,
			X:      x,
			W:      w,
		})
		x += w
		data = data[cc.Size:]
	}
	run.Advance = x
	ts.tm = coords.Translate(x, 0).Multiply(ts.tm)
	return run
}

func appendRun(runs []GlyphRun, run GlyphRun) []GlyphRun {
	if len(run.Glyphs) == 0 {
		return runs
	}
	return append(runs, run)
}

func matrixOperands(op Operation) (coords.Matrix, error) {
	if len(op.Operands) < 6 {
		return coords.Matrix{}, operandErr(op)
	}
	var m coords.Matrix
	base := len(op.Operands) - 6
	for i := 0; i < 6; i++ {
		m[i] = numOperand(op.Operands[base+i])
	}
	return m, nil
}

func numOperand(obj raw.Object) float64 {
	if n, ok := obj.(raw.NumberObj); ok {
		return n.Float()
	}
	return 0
}

func operandErr(op Operation) error {
	return fmt.Errorf("%w: operator %q missing operands", ErrMalformedStream, op.Operator)
}
