// Package semantic models the parts of a PDF the anonymization pipeline
// works on: pages, their content streams, and font resources with enough
// encoding and metric data to map character codes to text and geometry.
package semantic

import "github.com/docshield/pdfredact/ir/raw"

// Rectangle is an axis-aligned box in device space (lower-left origin).
type Rectangle struct {
	LLX, LLY, URX, URY float64
}

func (r Rectangle) Width() float64  { return r.URX - r.LLX }
func (r Rectangle) Height() float64 { return r.URY - r.LLY }
func (r Rectangle) Area() float64   { return r.Width() * r.Height() }

func (r Rectangle) Union(o Rectangle) Rectangle {
	if o.LLX < r.LLX {
		r.LLX = o.LLX
	}
	if o.LLY < r.LLY {
		r.LLY = o.LLY
	}
	if o.URX > r.URX {
		r.URX = o.URX
	}
	if o.URY > r.URY {
		r.URY = o.URY
	}
	return r
}

func (r Rectangle) Contains(x, y float64) bool {
	return x >= r.LLX && x <= r.URX && y >= r.LLY && y <= r.URY
}

// Expand grows the rectangle by pad on every side.
func (r Rectangle) Expand(pad float64) Rectangle {
	return Rectangle{LLX: r.LLX - pad, LLY: r.LLY - pad, URX: r.URX + pad, URY: r.URY + pad}
}

// Document is the page-level view of a parsed PDF. The raw object graph
// stays referenced so the writer can re-serialize everything the pipeline
// did not touch.
type Document struct {
	Pages   []*Page
	Raw     *raw.Document
	RootRef raw.ObjectRef
}

// Page carries a page's merged, filter-decoded content stream and its font
// resources. Content is read-only; redaction writes the replacement into
// Redacted, which the writer swaps in at serialization time.
type Page struct {
	Index       int
	MediaBox    Rectangle
	Rotate      int // 0/90/180/270
	Resources   *Resources
	Content     []byte
	ContentRefs []raw.ObjectRef
	Ref         raw.ObjectRef // page dictionary object
	Redacted    []byte
}

// Resources holds the named font resources visible to a page's content
// stream. Fonts are immutable once built and may be shared across pages.
type Resources struct {
	Fonts map[string]*Font
}

// CharCode is one decoded character code from a show-operator string: the
// source code value, how many bytes it consumed, and the text it maps to.
// A ligature code maps to multiple runes. Unmapped codes carry U+FFFD and
// Mapped=false so they occupy text positions without ever matching.
type CharCode struct {
	Code   int
	Size   int
	Text   string
	Mapped bool
}
