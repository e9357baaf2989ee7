// Package xref locates and parses cross-reference tables, both the classic
// "xref ... trailer" form and cross-reference streams, with a whole-file
// repair scan as fallback for damaged documents.
package xref

import (
	"bytes"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/docshield/pdfredact/ir/raw"
)

type Entry struct {
	Offset int64
	Gen    int
	// InObjStm marks a compressed object: it lives at index StmIdx inside
	// the object stream numbered StmNum instead of at a file offset.
	InObjStm bool
	StmNum   int
	StmIdx   int
}

// Table maps object numbers to file offsets plus the trailer dictionary
// assembled across incremental updates.
type Table struct {
	Entries map[int]Entry
	Trailer *raw.DictObj
}

func (t *Table) Lookup(objNum int) (Entry, bool) {
	e, ok := t.Entries[objNum]
	return e, ok
}

func (t *Table) Objects() []int {
	out := make([]int, 0, len(t.Entries))
	for k := range t.Entries {
		out = append(out, k)
	}
	sort.Ints(out)
	return out
}

// DictParser parses a dictionary object starting at the given byte offset.
// Supplied by the parser package so xref does not duplicate object parsing.
type DictParser func(offset int) (*raw.DictObj, error)

// StreamParser parses an indirect stream object starting at the given byte
// offset and returns its dictionary and decoded payload. Supplied by the
// parser package, which owns object parsing and filter decoding.
type StreamParser func(offset int) (*raw.DictObj, []byte, error)

// Resolve walks the startxref chain and merges all table sections, classic
// and stream form. Older updates never override newer entries.
func Resolve(data []byte, parseDict DictParser, parseStream StreamParser) (*Table, error) {
	offset, err := startXRefOffset(data)
	if err != nil {
		return nil, err
	}
	table := &Table{Entries: make(map[int]Entry)}
	seen := make(map[int64]bool)
	for offset > 0 {
		if seen[offset] {
			return nil, errors.New("xref offset cycle")
		}
		seen[offset] = true
		if offset >= int64(len(data)) {
			return nil, fmt.Errorf("xref offset out of range: %d", offset)
		}
		trailer, prev, err := parseSection(data, offset, table, parseDict, parseStream)
		if err != nil {
			return nil, err
		}
		if table.Trailer == nil {
			table.Trailer = trailer
		}
		offset = prev
	}
	if table.Trailer == nil {
		return nil, errors.New("no trailer found")
	}
	if len(table.Entries) == 0 {
		return nil, errors.New("empty xref table")
	}
	return table, nil
}

func startXRefOffset(data []byte) (int64, error) {
	idx := bytes.LastIndex(data, []byte("startxref"))
	if idx < 0 {
		return 0, errors.New("startxref not found")
	}
	rest := data[idx+len("startxref"):]
	for _, line := range strings.Split(string(rest), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		val, err := strconv.ParseInt(line, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("parse startxref: %w", err)
		}
		return val, nil
	}
	return 0, errors.New("startxref value missing")
}

// parseSection parses one cross-reference section. Classic sections are the
// "xref ... trailer <<...>>" form; anything else at the offset is treated as
// a cross-reference stream. It returns the trailer dictionary and the /Prev
// offset (0 when absent).
func parseSection(data []byte, offset int64, table *Table, parseDict DictParser, parseStream StreamParser) (*raw.DictObj, int64, error) {
	section := data[offset:]
	if !bytes.HasPrefix(bytes.TrimLeft(section, " \r\n\t"), []byte("xref")) {
		return parseStreamSection(offset, table, parseStream)
	}
	pos := int(offset) + bytes.Index(section, []byte("xref")) + len("xref")

	for {
		pos = skipWS(data, pos)
		if pos >= len(data) {
			return nil, 0, errors.New("unexpected end of xref section")
		}
		if bytes.HasPrefix(data[pos:], []byte("trailer")) {
			pos += len("trailer")
			break
		}
		start, count, next, err := subsectionHeader(data, pos)
		if err != nil {
			return nil, 0, err
		}
		pos = next
		for i := 0; i < count; i++ {
			pos = skipWS(data, pos)
			if pos+18 > len(data) {
				return nil, 0, errors.New("truncated xref entry")
			}
			entry := string(data[pos : pos+18])
			fields := strings.Fields(entry)
			if len(fields) < 3 {
				return nil, 0, fmt.Errorf("invalid xref entry %q", entry)
			}
			off, err := strconv.ParseInt(fields[0], 10, 64)
			if err != nil {
				return nil, 0, fmt.Errorf("parse xref offset: %w", err)
			}
			gen, err := strconv.Atoi(fields[1])
			if err != nil {
				return nil, 0, fmt.Errorf("parse xref gen: %w", err)
			}
			objNum := start + i
			if fields[2] == "n" {
				if _, exists := table.Entries[objNum]; !exists {
					table.Entries[objNum] = Entry{Offset: off, Gen: gen}
				}
			}
			pos += 18
		}
	}

	pos = skipWS(data, pos)
	trailer, err := parseDict(pos)
	if err != nil {
		return nil, 0, fmt.Errorf("parse trailer: %w", err)
	}
	// Hybrid-reference files point at a supplemental cross-reference stream
	// holding the compressed-object entries. Classic entries stay first.
	if stmOff, ok := dictInt(trailer, "XRefStm"); ok {
		if _, _, err := parseStreamSection(int64(stmOff), table, parseStream); err != nil {
			return nil, 0, fmt.Errorf("hybrid xref stream: %w", err)
		}
	}
	var prev int64
	if v, ok := trailer.Get("Prev"); ok {
		if n, ok := v.(raw.NumberObj); ok {
			prev = n.Int()
		}
	}
	return trailer, prev, nil
}

// parseStreamSection parses a cross-reference stream: typed binary rows whose
// widths come from /W and whose object-number ranges come from /Index. The
// stream dictionary doubles as the trailer.
func parseStreamSection(offset int64, table *Table, parseStream StreamParser) (*raw.DictObj, int64, error) {
	dict, payload, err := parseStream(int(offset))
	if err != nil {
		return nil, 0, fmt.Errorf("parse xref stream: %w", err)
	}
	widths, ok := dictIntArray(dict, "W")
	if !ok || len(widths) < 3 {
		return nil, 0, errors.New("xref stream missing /W")
	}
	w1, w2, w3 := widths[0], widths[1], widths[2]
	rowLen := w1 + w2 + w3
	if rowLen <= 0 || rowLen > 32 {
		return nil, 0, fmt.Errorf("invalid xref stream field widths %v", widths)
	}
	size, ok := dictInt(dict, "Size")
	if !ok {
		return nil, 0, errors.New("xref stream missing /Size")
	}
	index, ok := dictIntArray(dict, "Index")
	if !ok {
		index = []int{0, size}
	}
	if len(index)%2 != 0 {
		return nil, 0, fmt.Errorf("odd xref stream /Index %v", index)
	}
	pos := 0
	for i := 0; i < len(index); i += 2 {
		start, count := index[i], index[i+1]
		for j := 0; j < count; j++ {
			if pos+rowLen > len(payload) {
				return nil, 0, errors.New("truncated xref stream data")
			}
			typ := readField(payload[pos:], w1, 1)
			f2 := readField(payload[pos+w1:], w2, 0)
			f3 := readField(payload[pos+w1+w2:], w3, 0)
			pos += rowLen
			objNum := start + j
			if _, exists := table.Entries[objNum]; exists {
				continue
			}
			switch typ {
			case 1:
				table.Entries[objNum] = Entry{Offset: f2, Gen: int(f3)}
			case 2:
				table.Entries[objNum] = Entry{InObjStm: true, StmNum: int(f2), StmIdx: int(f3)}
			}
		}
	}
	var prev int64
	if p, ok := dictInt(dict, "Prev"); ok {
		prev = int64(p)
	}
	return dict, prev, nil
}

// readField decodes a big-endian integer of the given width. A zero width
// means the field is absent and the default applies.
func readField(b []byte, width int, def int64) int64 {
	if width == 0 {
		return def
	}
	var v int64
	for i := 0; i < width; i++ {
		v = v<<8 | int64(b[i])
	}
	return v
}

func dictInt(d *raw.DictObj, key string) (int, bool) {
	v, ok := d.Get(key)
	if !ok {
		return 0, false
	}
	n, ok := v.(raw.NumberObj)
	if !ok {
		return 0, false
	}
	return int(n.Int()), true
}

func dictIntArray(d *raw.DictObj, key string) ([]int, bool) {
	v, ok := d.Get(key)
	if !ok {
		return nil, false
	}
	arr, ok := v.(*raw.ArrayObj)
	if !ok {
		return nil, false
	}
	out := make([]int, 0, len(arr.Items))
	for _, it := range arr.Items {
		n, ok := it.(raw.NumberObj)
		if !ok {
			return nil, false
		}
		out = append(out, int(n.Int()))
	}
	return out, true
}

func subsectionHeader(data []byte, pos int) (start, count, next int, err error) {
	end := pos
	for end < len(data) && data[end] != '\r' && data[end] != '\n' {
		end++
	}
	fields := strings.Fields(string(data[pos:end]))
	if len(fields) != 2 {
		return 0, 0, 0, fmt.Errorf("invalid xref subsection header %q", string(data[pos:end]))
	}
	start, err = strconv.Atoi(fields[0])
	if err != nil {
		return 0, 0, 0, err
	}
	count, err = strconv.Atoi(fields[1])
	if err != nil {
		return 0, 0, 0, err
	}
	return start, count, end, nil
}

func skipWS(data []byte, pos int) int {
	for pos < len(data) {
		switch data[pos] {
		case ' ', '\t', '\r', '\n', '\f', 0:
			pos++
		default:
			return pos
		}
	}
	return pos
}
