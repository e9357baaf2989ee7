// Package pdfredact removes sensitive strings from PDF documents. The
// text is located in the decoded content streams, the glyphs that painted
// it are deleted from the file, and black boxes are drawn over the areas
// they occupied. The result can be emitted as a rewritten PDF, as
// per-page PNG images, as a markdown transcript, or any combination.
package pdfredact

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"time"

	"github.com/docshield/pdfredact/observability"
)

// OutputKind selects an artifact for Anonymize to produce.
type OutputKind string

const (
	OutputPDF      OutputKind = "pdf"
	OutputImages   OutputKind = "images"
	OutputMarkdown OutputKind = "markdown"
)

// Fatal errors. Anything else the pipeline survives is reported as a
// Warning on the Result instead.
var (
	ErrInvalidDocument       = errors.New("invalid pdf document")
	ErrEmptySensitiveList    = errors.New("no sensitive terms given")
	ErrTimeout               = errors.New("processing deadline exceeded")
	ErrUnsupportedOutputKind = errors.New("unsupported output kind")
)

// Warning codes.
const (
	WarnMalformedStream = "malformed-stream"
	WarnDegenerateMatch = "degenerate-match"
	WarnFontResolution  = "font-resolution"
	WarnOutputFailed    = "output-failed"
)

// Warning describes a recoverable defect encountered while processing.
// Page is the zero-based page index, or -1 when the warning is not tied
// to one page.
type Warning struct {
	Page    int
	Code    string
	Message string
}

// Options tunes Anonymize. The zero value asks for a redacted PDF with
// the default heuristics.
type Options struct {
	// OutputKinds lists the artifacts to produce. Empty means OutputPDF.
	OutputKinds []OutputKind

	// GapFactor scales the average glyph advance when deciding whether
	// the horizontal gap between two runs is a word break. Defaults to
	// 0.5.
	GapFactor float64

	// LineTolerance scales the font size when deciding whether a
	// baseline shift between two runs is a line break. Defaults to 0.5.
	LineTolerance float64

	// ImageDPI is the raster resolution for OutputImages. Defaults to 96.
	ImageDPI float64

	// Padding grows every cover rectangle by this many device units on
	// each side. 0 means the default of 2; negative disables padding.
	Padding float64

	// Timeout bounds the whole operation. When it expires no partial
	// artifacts are returned. 0 means no limit beyond ctx.
	Timeout time.Duration

	// Workers caps per-page parallelism. 0 means GOMAXPROCS.
	Workers int

	Logger observability.Logger
}

func (o Options) withDefaults() Options {
	if len(o.OutputKinds) == 0 {
		o.OutputKinds = []OutputKind{OutputPDF}
	}
	if o.GapFactor <= 0 {
		o.GapFactor = 0.5
	}
	if o.LineTolerance <= 0 {
		o.LineTolerance = 0.5
	}
	if o.ImageDPI <= 0 {
		o.ImageDPI = 96
	}
	switch {
	case o.Padding == 0:
		o.Padding = 2
	case o.Padding < 0:
		o.Padding = 0
	}
	if o.Workers <= 0 {
		o.Workers = runtime.GOMAXPROCS(0)
	}
	if o.Logger == nil {
		o.Logger = observability.NopLogger{}
	}
	return o
}

func (o Options) wants(kind OutputKind) bool {
	for _, k := range o.OutputKinds {
		if k == kind {
			return true
		}
	}
	return false
}

// Result carries the requested artifacts. Fields for kinds that were not
// requested stay zero.
type Result struct {
	PDF      []byte
	Images   [][]byte // one PNG per page, in page order
	Markdown string
	Warnings []Warning
}

// Anonymize locates every occurrence of the sensitive terms in the
// document's text, removes the glyphs that painted them, covers the
// vacated areas with black rectangles, and emits the requested output
// kinds. Term matching ignores case and Unicode compatibility forms.
func Anonymize(ctx context.Context, pdf []byte, sensitive []string, opts Options) (*Result, error) {
	terms := make([]string, 0, len(sensitive))
	for _, t := range sensitive {
		if t != "" {
			terms = append(terms, t)
		}
	}
	if len(terms) == 0 {
		return nil, ErrEmptySensitiveList
	}

	opts = opts.withDefaults()
	for _, k := range opts.OutputKinds {
		switch k {
		case OutputPDF, OutputImages, OutputMarkdown:
		default:
			return nil, fmt.Errorf("%w: %q", ErrUnsupportedOutputKind, k)
		}
	}

	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	res, err := run(ctx, pdf, terms, opts)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, ErrTimeout
		}
		return nil, err
	}
	return res, nil
}
