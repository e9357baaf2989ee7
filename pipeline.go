package pdfredact

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/docshield/pdfredact/contentstream"
	"github.com/docshield/pdfredact/extractor"
	"github.com/docshield/pdfredact/filters"
	"github.com/docshield/pdfredact/ir/decoded"
	"github.com/docshield/pdfredact/ir/raw"
	"github.com/docshield/pdfredact/ir/semantic"
	"github.com/docshield/pdfredact/match"
	"github.com/docshield/pdfredact/observability"
	"github.com/docshield/pdfredact/parser"
	"github.com/docshield/pdfredact/redact"
	"github.com/docshield/pdfredact/render"
	"github.com/docshield/pdfredact/writer"
)

// pageState is what page processing leaves behind for the output stage.
// runs and text reflect the page after redaction.
type pageState struct {
	page     *semantic.Page
	runs     []contentstream.GlyphRun
	text     extractor.PageText
	covers   []semantic.Rectangle
	matches  int
	skipped  int
	warnings []Warning
}

func run(ctx context.Context, pdf []byte, terms []string, opts Options) (*Result, error) {
	log := opts.Logger
	start := time.Now()

	rawDoc, err := parser.NewDocumentParser(parser.Config{}).Parse(ctx, pdf)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}
	dec, failed, err := decoded.NewDecoder(filters.Default(), opts.Workers).Decode(ctx, rawDoc)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}
	doc, err := semantic.Build(ctx, dec)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}
	if len(doc.Pages) == 0 {
		return nil, fmt.Errorf("%w: no pages", ErrInvalidDocument)
	}
	log.Info("document parsed",
		observability.Duration(observability.MetricParseTime, time.Since(start)),
		observability.Int(observability.MetricPageCount, len(doc.Pages)))

	res := &Result{Warnings: streamWarnings(failed)}

	states := make([]*pageState, len(doc.Pages))
	sem := make(chan struct{}, opts.Workers)
	var wg sync.WaitGroup
	for i, page := range doc.Pages {
		wg.Add(1)
		go func(i int, page *semantic.Page) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			if ctx.Err() != nil {
				return
			}
			states[i] = processPage(page, terms, opts)
		}(i, page)
	}
	wg.Wait()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	matches, skipped := 0, 0
	for _, st := range states {
		res.Warnings = append(res.Warnings, st.warnings...)
		matches += st.matches
		skipped += st.skipped
	}
	log.Info("redaction applied",
		observability.Int(observability.MetricMatchCount, matches),
		observability.Int(observability.MetricSkippedCount, skipped),
		observability.Duration(observability.MetricRedactTime, time.Since(start)))

	renderStart := time.Now()
	if opts.wants(OutputPDF) {
		data, werr := writer.Write(doc)
		if werr != nil {
			res.Warnings = append(res.Warnings, Warning{
				Page: -1, Code: WarnOutputFailed, Message: fmt.Sprintf("pdf: %v", werr),
			})
		} else {
			res.PDF = data
			log.Info("pdf written", observability.Int(observability.MetricOutputBytes, len(data)))
		}
	}
	if opts.wants(OutputImages) {
		images, warns := renderImages(ctx, states, opts, sem)
		res.Images = images
		res.Warnings = append(res.Warnings, warns...)
	}
	if opts.wants(OutputMarkdown) {
		texts := make([]extractor.PageText, len(states))
		for i, st := range states {
			texts[i] = st.text
		}
		res.Markdown = render.Markdown(texts)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	log.Info("outputs rendered",
		observability.Duration(observability.MetricRenderTime, time.Since(renderStart)))
	return res, nil
}

func streamWarnings(failed map[raw.ObjectRef]error) []Warning {
	if len(failed) == 0 {
		return nil
	}
	refs := make([]raw.ObjectRef, 0, len(failed))
	for ref := range failed {
		refs = append(refs, ref)
	}
	sort.Slice(refs, func(i, j int) bool { return refs[i].Num < refs[j].Num })
	warnings := make([]Warning, 0, len(refs))
	for _, ref := range refs {
		warnings = append(warnings, Warning{
			Page: -1, Code: WarnMalformedStream,
			Message: fmt.Sprintf("stream %d: %v", ref.Num, failed[ref]),
		})
	}
	return warnings
}

// processPage decodes, matches and redacts one page. Failures here never
// abort the document: the page is left untouched and reported as a
// warning.
func processPage(page *semantic.Page, terms []string, opts Options) *pageState {
	st := &pageState{page: page}
	warn := func(code, format string, args ...interface{}) {
		st.warnings = append(st.warnings, Warning{
			Page: page.Index, Code: code, Message: fmt.Sprintf(format, args...),
		})
	}

	ops, err := contentstream.Parse(page.Content)
	if err != nil {
		warn(WarnMalformedStream, "content parse: %v", err)
		return st
	}
	decoder := contentstream.NewDecoder(page.Resources)
	runs, finalCTM, err := decoder.Decode(ops)
	if err != nil {
		warn(WarnMalformedStream, "content decode: %v", err)
		return st
	}
	for _, name := range missingFonts(runs) {
		warn(WarnFontResolution, "font %s unresolved, using fallback metrics", name)
	}

	cfg := extractor.Config{GapFactor: opts.GapFactor, LineTolerance: opts.LineTolerance}
	st.text = extractor.Reconstruct(runs, cfg)
	st.runs = runs

	matches := match.Locate(st.text, runs, terms, opts.Padding)
	plan := redact.BuildPlan(matches)
	st.matches = len(plan.Matches)
	st.skipped = len(plan.Skipped)
	for _, m := range plan.Skipped {
		warn(WarnDegenerateMatch, "match %q at offset %d has degenerate geometry, left intact", terms[m.Term], m.Start)
	}
	if len(plan.Matches) == 0 {
		return st
	}

	newOps := redact.Apply(ops, runs, plan, finalCTM)
	page.Redacted = contentstream.Serialize(newOps)
	st.covers = plan.Rects()
	// The rendered outputs must reflect the page as redacted, not as
	// parsed.
	if runsAfter, _, err := decoder.Decode(newOps); err == nil {
		st.runs = runsAfter
		st.text = extractor.Reconstruct(runsAfter, cfg)
	}
	return st
}

func missingFonts(runs []contentstream.GlyphRun) []string {
	var names []string
	seen := make(map[string]bool)
	for i := range runs {
		r := &runs[i]
		if r.Font == nil && r.FontName != "" && !seen[r.FontName] {
			seen[r.FontName] = true
			names = append(names, r.FontName)
		}
	}
	return names
}

func renderImages(ctx context.Context, states []*pageState, opts Options, sem chan struct{}) ([][]byte, []Warning) {
	images := make([][]byte, len(states))
	errs := make([]error, len(states))
	var wg sync.WaitGroup
	for i, st := range states {
		wg.Add(1)
		go func(i int, st *pageState) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			if ctx.Err() != nil {
				return
			}
			images[i], errs[i] = render.PageImage(st.page, st.runs, st.covers, opts.ImageDPI)
		}(i, st)
	}
	wg.Wait()

	var warnings []Warning
	for i, err := range errs {
		if err != nil {
			warnings = append(warnings, Warning{
				Page: i, Code: WarnOutputFailed, Message: fmt.Sprintf("image: %v", err),
			})
		}
	}
	return images, warnings
}
