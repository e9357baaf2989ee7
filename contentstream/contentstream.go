// Package contentstream parses page content into an operator sequence and
// decodes positioned glyph runs from the text-showing operators. It is the
// geometric heart of the anonymization pipeline: everything downstream
// (text reconstruction, match geometry, redaction rewriting) works on the
// Operations and GlyphRuns produced here.
package contentstream

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/docshield/pdfredact/ir/raw"
	"github.com/docshield/pdfredact/parser"
	"github.com/docshield/pdfredact/scanner"
)

// ErrMalformedStream reports a content stream this package cannot safely
// interpret: an unterminated string literal, a truncated inline image, or
// an operator missing its operands. Such failures are page-local.
var ErrMalformedStream = errors.New("malformed content stream")

// Operation is one content-stream operator with its operands. Raw holds the
// original bytes of the operation so untouched operators are re-emitted
// verbatim; rewritten operations carry Raw == nil and are serialized from
// their operands.
type Operation struct {
	Operator string
	Operands []raw.Object
	Raw      []byte
}

// Parse tokenizes a content stream into operations. Inline images (BI..EI)
// are captured whole as opaque passthrough operations.
func Parse(data []byte) ([]Operation, error) {
	sc := scanner.New(data, scanner.Config{})
	var ops []Operation
	var operands []raw.Object
	spanStart := -1

	for {
		obj, tok, err := parser.ReadValue(sc)
		switch {
		case err == nil:
			if spanStart < 0 {
				spanStart = tok.Pos
			}
			operands = append(operands, obj)
			continue
		case errors.Is(err, io.EOF):
			if len(operands) > 0 {
				return nil, fmt.Errorf("%w: %d dangling operands", ErrMalformedStream, len(operands))
			}
			return ops, nil
		case errors.Is(err, parser.ErrKeyword):
			// fall through to operator handling below
		case errors.Is(err, scanner.ErrUnterminatedString):
			return nil, fmt.Errorf("%w: %v", ErrMalformedStream, err)
		default:
			// Unparsable operand data (e.g. stray delimiter): treat the
			// remaining token as an opaque operator-less blob and stop.
			return nil, fmt.Errorf("%w: %v", ErrMalformedStream, err)
		}

		if tok.Str == "BI" {
			end, err := skipInlineImage(data, tok.End)
			if err != nil {
				return nil, err
			}
			ops = append(ops, Operation{Operator: "BI", Raw: data[tok.Pos:end]})
			if err := sc.Seek(end); err != nil {
				return nil, fmt.Errorf("%w: %v", ErrMalformedStream, err)
			}
			operands = nil
			spanStart = -1
			continue
		}

		start := spanStart
		if start < 0 {
			start = tok.Pos
		}
		ops = append(ops, Operation{
			Operator: tok.Str,
			Operands: operands,
			Raw:      data[start:tok.End],
		})
		operands = nil
		spanStart = -1
	}
}

// skipInlineImage advances past an inline image: the dictionary entries up
// to ID, then binary data until a whitespace-delimited EI.
func skipInlineImage(data []byte, from int) (int, error) {
	idIdx := bytes.Index(data[from:], []byte("ID"))
	if idIdx < 0 {
		return 0, fmt.Errorf("%w: inline image without ID", ErrMalformedStream)
	}
	pos := from + idIdx + 2
	if pos < len(data) && (data[pos] == ' ' || data[pos] == '\n' || data[pos] == '\r') {
		pos++
	}
	for {
		eiIdx := bytes.Index(data[pos:], []byte("EI"))
		if eiIdx < 0 {
			return 0, fmt.Errorf("%w: inline image without EI", ErrMalformedStream)
		}
		end := pos + eiIdx
		afterOK := end+2 >= len(data) || isStreamWS(data[end+2])
		beforeOK := end == 0 || isStreamWS(data[end-1])
		if beforeOK && afterOK {
			return end + 2, nil
		}
		pos = end + 2
	}
}

func isStreamWS(c byte) bool {
	switch c {
	case 0x00, 0x09, 0x0A, 0x0C, 0x0D, 0x20:
		return true
	}
	return false
}

// Serialize re-emits operations as content-stream bytes. Operations that
// still carry their original bytes are copied verbatim.
func Serialize(ops []Operation) []byte {
	var buf bytes.Buffer
	for _, op := range ops {
		if buf.Len() > 0 {
			buf.WriteByte('\n')
		}
		if op.Raw != nil {
			buf.Write(op.Raw)
			continue
		}
		for _, operand := range op.Operands {
			raw.AppendSerialized(&buf, operand)
			buf.WriteByte(' ')
		}
		buf.WriteString(op.Operator)
	}
	return buf.Bytes()
}
