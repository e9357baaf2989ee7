package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/docshield/pdfredact"
)

type options struct {
	pdfPath string
	terms   []string
	outDir  string
	kinds   []pdfredact.OutputKind
	dpi     float64
	padding float64
	timeout time.Duration
	verbose bool
}

func main() {
	opts, err := parseFlags()
	if err != nil {
		fmt.Fprintf(os.Stderr, "redact: %v\n", err)
		os.Exit(2)
	}
	if err := run(opts); err != nil {
		fmt.Fprintf(os.Stderr, "redact: %v\n", err)
		os.Exit(1)
	}
}

func parseFlags() (options, error) {
	var opts options
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: go run ./cmd/redact [flags] <pdf>\n")
		flag.PrintDefaults()
	}
	terms := flag.String("terms", "", "Comma-separated sensitive strings to remove (required)")
	termsFile := flag.String("terms-file", "", "File with one sensitive string per line")
	outDir := flag.String("out", "redact_output", "Directory for output artifacts")
	formats := flag.String("formats", "pdf", "Comma-separated outputs: pdf, images, markdown")
	dpi := flag.Float64("dpi", 96, "Raster resolution for image output")
	padding := flag.Float64("padding", 2, "Cover rectangle padding in PDF units")
	timeout := flag.Duration("timeout", 0, "Abort processing after this duration (0 = no limit)")
	verbose := flag.Bool("v", false, "Log pipeline progress to stderr")
	flag.Parse()

	if flag.NArg() != 1 {
		flag.Usage()
		return options{}, fmt.Errorf("missing pdf path")
	}
	opts.pdfPath = flag.Arg(0)
	opts.outDir = *outDir
	opts.dpi = *dpi
	opts.padding = *padding
	opts.timeout = *timeout
	opts.verbose = *verbose

	for _, t := range strings.Split(*terms, ",") {
		if t = strings.TrimSpace(t); t != "" {
			opts.terms = append(opts.terms, t)
		}
	}
	if *termsFile != "" {
		data, err := os.ReadFile(*termsFile)
		if err != nil {
			return options{}, fmt.Errorf("read terms file: %w", err)
		}
		for _, line := range strings.Split(string(data), "\n") {
			if line = strings.TrimSpace(line); line != "" {
				opts.terms = append(opts.terms, line)
			}
		}
	}
	if len(opts.terms) == 0 {
		return options{}, fmt.Errorf("no sensitive terms given (use -terms or -terms-file)")
	}

	for _, f := range strings.Split(*formats, ",") {
		switch kind := pdfredact.OutputKind(strings.TrimSpace(f)); kind {
		case pdfredact.OutputPDF, pdfredact.OutputImages, pdfredact.OutputMarkdown:
			opts.kinds = append(opts.kinds, kind)
		case "":
		default:
			return options{}, fmt.Errorf("unknown format %q", kind)
		}
	}
	return opts, nil
}

func run(opts options) error {
	data, err := os.ReadFile(opts.pdfPath)
	if err != nil {
		return fmt.Errorf("read pdf: %w", err)
	}

	ropts := pdfredact.Options{
		OutputKinds: opts.kinds,
		ImageDPI:    opts.dpi,
		Padding:     opts.padding,
		Timeout:     opts.timeout,
	}
	if opts.verbose {
		ropts.Logger = stderrLogger{}
	}

	res, err := pdfredact.Anonymize(context.Background(), data, opts.terms, ropts)
	if err != nil {
		return err
	}

	for _, w := range res.Warnings {
		if w.Page >= 0 {
			fmt.Fprintf(os.Stderr, "redact: warning: page %d: [%s] %s\n", w.Page+1, w.Code, w.Message)
		} else {
			fmt.Fprintf(os.Stderr, "redact: warning: [%s] %s\n", w.Code, w.Message)
		}
	}

	if err := os.MkdirAll(opts.outDir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	base := strings.TrimSuffix(filepath.Base(opts.pdfPath), filepath.Ext(opts.pdfPath))

	if res.PDF != nil {
		path := filepath.Join(opts.outDir, base+"-redacted.pdf")
		if err := os.WriteFile(path, res.PDF, 0o644); err != nil {
			return fmt.Errorf("write pdf: %w", err)
		}
		fmt.Println(path)
	}
	for i, img := range res.Images {
		if img == nil {
			continue
		}
		path := filepath.Join(opts.outDir, fmt.Sprintf("%s-page-%03d.png", base, i+1))
		if err := os.WriteFile(path, img, 0o644); err != nil {
			return fmt.Errorf("write image %q: %w", path, err)
		}
		fmt.Println(path)
	}
	if res.Markdown != "" {
		path := filepath.Join(opts.outDir, base+".md")
		if err := os.WriteFile(path, []byte(res.Markdown), 0o644); err != nil {
			return fmt.Errorf("write markdown: %w", err)
		}
		fmt.Println(path)
	}
	return nil
}
