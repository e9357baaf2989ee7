package render

import (
	"strings"

	"github.com/docshield/pdfredact/extractor"
)

// pageSeparator is the thematic break between pages in the transcript.
const pageSeparator = "\n\n---\n\n"

// Markdown joins the reconstructed page texts into one document. Line
// structure inside a page is preserved; trailing whitespace and blank
// edges are trimmed so separators stay unambiguous.
func Markdown(pages []extractor.PageText) string {
	rendered := make([]string, len(pages))
	for i, pt := range pages {
		rendered[i] = pageMarkdown(pt.Text)
	}
	out := strings.Join(rendered, pageSeparator)
	if out == "" {
		return out
	}
	return out + "\n"
}

func pageMarkdown(text string) string {
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRight(line, " \t")
	}
	// Collapse runs of blank lines; markdown treats them all as one
	// paragraph break anyway.
	out := lines[:0]
	blank := 0
	for _, line := range lines {
		if line == "" {
			blank++
			if blank > 1 {
				continue
			}
		} else {
			blank = 0
		}
		out = append(out, line)
	}
	return strings.Trim(strings.Join(out, "\n"), "\n")
}
