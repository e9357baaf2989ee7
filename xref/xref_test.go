package xref_test

import (
	"bytes"
	"fmt"
	"strings"
	"testing"

	"github.com/docshield/pdfredact/ir/raw"
	"github.com/docshield/pdfredact/parser"
	"github.com/docshield/pdfredact/scanner"
	"github.com/docshield/pdfredact/xref"
)

func dictParser(data []byte) xref.DictParser {
	return func(offset int) (*raw.DictObj, error) {
		sc := scanner.New(data, scanner.Config{})
		if err := sc.Seek(offset); err != nil {
			return nil, err
		}
		obj, err := parser.ReadObject(sc)
		if err != nil {
			return nil, err
		}
		dict, ok := obj.(*raw.DictObj)
		if !ok {
			return nil, fmt.Errorf("not a dictionary")
		}
		return dict, nil
	}
}

func streamParser(data []byte) xref.StreamParser {
	return func(offset int) (*raw.DictObj, []byte, error) {
		sc := scanner.New(data, scanner.Config{})
		if err := sc.Seek(offset); err != nil {
			return nil, nil, err
		}
		for i := 0; i < 3; i++ { // "N G obj"
			if _, err := sc.Next(); err != nil {
				return nil, nil, err
			}
		}
		obj, err := parser.ReadObject(sc)
		if err != nil {
			return nil, nil, err
		}
		dict, ok := obj.(*raw.DictObj)
		if !ok {
			return nil, nil, fmt.Errorf("not a dictionary")
		}
		if tok, err := sc.Next(); err != nil || tok.Str != "stream" {
			return nil, nil, fmt.Errorf("stream keyword expected")
		}
		sc.SkipEOL()
		length, _ := dict.Get("Length")
		payload, err := sc.ReadRaw(int(length.(raw.NumberObj).Int()))
		if err != nil {
			return nil, nil, err
		}
		return dict, payload, nil
	}
}

func buildFile(body string, entries map[int]int, trailerExtra string) []byte {
	var sb strings.Builder
	sb.WriteString(body)
	xrefOff := sb.Len()
	maxNum := 0
	for num := range entries {
		if num > maxNum {
			maxNum = num
		}
	}
	fmt.Fprintf(&sb, "xref\n0 %d\n0000000000 65535 f \n", maxNum+1)
	for num := 1; num <= maxNum; num++ {
		if off, ok := entries[num]; ok {
			fmt.Fprintf(&sb, "%010d 00000 n \n", off)
		} else {
			sb.WriteString("0000000000 65535 f \n")
		}
	}
	fmt.Fprintf(&sb, "trailer\n<</Size %d /Root 1 0 R%s>>\nstartxref\n%d\n%%%%EOF\n",
		maxNum+1, trailerExtra, xrefOff)
	return []byte(sb.String())
}

func TestResolveSingleSection(t *testing.T) {
	body := "%PDF-1.7\n1 0 obj\n<</Type /Catalog>>\nendobj\n"
	data := buildFile(body, map[int]int{1: 9}, "")

	table, err := xref.Resolve(data, dictParser(data), streamParser(data))
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	entry, ok := table.Lookup(1)
	if !ok || entry.Offset != 9 {
		t.Fatalf("entry 1 = %+v, ok=%v", entry, ok)
	}
	if _, ok := table.Lookup(2); ok {
		t.Fatal("free entry must not resolve")
	}
	if table.Trailer == nil {
		t.Fatal("trailer missing")
	}
	if got := table.Objects(); len(got) != 1 || got[0] != 1 {
		t.Fatalf("objects = %v", got)
	}
}

func TestResolveIncrementalUpdateKeepsNewest(t *testing.T) {
	// Base revision: object 1 at offset 9. Update revision: object 1
	// rewritten at offset 100, /Prev pointing at the base xref.
	base := buildFile("%PDF-1.7\n1 0 obj\n<</Type /Catalog>>\nendobj\n", map[int]int{1: 9}, "")
	baseXref := strings.Index(string(base), "xref")

	var sb strings.Builder
	sb.Write(base)
	for sb.Len() < 100 {
		sb.WriteByte('\n')
	}
	sb.WriteString("1 0 obj\n<</Type /Catalog /Version /Two>>\nendobj\n")
	updXref := sb.Len()
	fmt.Fprintf(&sb, "xref\n1 1\n%010d 00000 n \ntrailer\n<</Size 2 /Root 1 0 R /Prev %d>>\nstartxref\n%d\n%%%%EOF\n",
		100, baseXref, updXref)
	data := []byte(sb.String())

	table, err := xref.Resolve(data, dictParser(data), streamParser(data))
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	entry, _ := table.Lookup(1)
	if entry.Offset != 100 {
		t.Fatalf("update must win: offset = %d", entry.Offset)
	}
}

func TestResolveDetectsCycle(t *testing.T) {
	body := "%PDF-1.7\n1 0 obj\n<</Type /Catalog>>\nendobj\n"
	data := buildFile(body, map[int]int{1: 9}, " /Prev 44")
	// Point /Prev at this same section's xref offset.
	xrefOff := strings.Index(string(data), "xref")
	data = buildFile(body, map[int]int{1: 9}, fmt.Sprintf(" /Prev %d", xrefOff))

	if _, err := xref.Resolve(data, dictParser(data), streamParser(data)); err == nil {
		t.Fatal("expected cycle error")
	}
}

func TestResolveMissingStartxref(t *testing.T) {
	if _, err := xref.Resolve([]byte("no xref here"), dictParser(nil), streamParser(nil)); err == nil {
		t.Fatal("expected error")
	}
}

func TestResolveXRefStream(t *testing.T) {
	body := "%PDF-1.5\n1 0 obj\n<</Type /Catalog /Pages 2 0 R>>\nendobj\n"
	var buf bytes.Buffer
	buf.WriteString(body)
	off := buf.Len()
	// W [1 2 1]: type byte, 2-byte offset or container number, 1-byte
	// gen or index. Object 2 lives at index 0 of object stream 3.
	rows := []byte{
		0, 0, 0, 255,
		1, 0, 9, 0,
		2, 0, 3, 0,
		1, byte(off >> 8), byte(off), 0,
	}
	fmt.Fprintf(&buf, "3 0 obj\n<</Type /XRef /Size 4 /W [1 2 1] /Root 1 0 R /Length %d>>\nstream\n", len(rows))
	buf.Write(rows)
	buf.WriteString("\nendstream\nendobj\n")
	fmt.Fprintf(&buf, "startxref\n%d\n%%%%EOF\n", off)
	data := buf.Bytes()

	table, err := xref.Resolve(data, dictParser(data), streamParser(data))
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	e1, ok := table.Lookup(1)
	if !ok || e1.Offset != 9 || e1.InObjStm {
		t.Fatalf("entry 1 = %+v, ok=%v", e1, ok)
	}
	e2, ok := table.Lookup(2)
	if !ok || !e2.InObjStm || e2.StmNum != 3 || e2.StmIdx != 0 {
		t.Fatalf("entry 2 = %+v, ok=%v", e2, ok)
	}
	if _, ok := table.Lookup(0); ok {
		t.Fatal("free entry must not resolve")
	}
	if table.Trailer == nil {
		t.Fatal("stream dictionary must serve as trailer")
	}
	if _, ok := table.Trailer.Get("Root"); !ok {
		t.Fatal("trailer root missing")
	}
}

func TestResolveHybridTableReadsXRefStm(t *testing.T) {
	body := "%PDF-1.5\n1 0 obj\n<</Type /Catalog>>\nendobj\n"
	var buf bytes.Buffer
	buf.WriteString(body)
	stmOff := buf.Len()
	// /Index [1 1 4 1]: object 1 at offset 9, object 4 compressed into
	// object stream 5 at index 1.
	rows := []byte{
		1, 0, 9, 0,
		2, 0, 5, 1,
	}
	fmt.Fprintf(&buf, "6 0 obj\n<</Type /XRef /Size 7 /W [1 2 1] /Index [1 1 4 1] /Root 1 0 R /Length %d>>\nstream\n", len(rows))
	buf.Write(rows)
	buf.WriteString("\nendstream\nendobj\n")
	xrefOff := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 2\n0000000000 65535 f \n%010d 00000 n \ntrailer\n<</Size 7 /Root 1 0 R /XRefStm %d>>\nstartxref\n%d\n%%%%EOF\n",
		9, stmOff, xrefOff)
	data := buf.Bytes()

	table, err := xref.Resolve(data, dictParser(data), streamParser(data))
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	e1, _ := table.Lookup(1)
	if e1.Offset != 9 || e1.InObjStm {
		t.Fatalf("classic entry must win: %+v", e1)
	}
	e4, ok := table.Lookup(4)
	if !ok || !e4.InObjStm || e4.StmNum != 5 || e4.StmIdx != 1 {
		t.Fatalf("entry 4 = %+v, ok=%v", e4, ok)
	}
	if table.Trailer == nil || table.Trailer.KV["XRefStm"] == nil {
		t.Fatal("classic trailer must be kept")
	}
}

func TestRepairScansObjects(t *testing.T) {
	data := []byte("garbage header\n" +
		"3 0 obj\n<</Type /Catalog>>\nendobj\n" +
		"7 0 obj\n<</Length 2>>\nstream\nhi\nendstream\nendobj\n" +
		"trailer\n<</Root 3 0 R>>\n")

	table, err := xref.Repair(data, dictParser(data))
	if err != nil {
		t.Fatalf("repair: %v", err)
	}
	if _, ok := table.Lookup(3); !ok {
		t.Fatal("object 3 not recovered")
	}
	if _, ok := table.Lookup(7); !ok {
		t.Fatal("object 7 not recovered")
	}
	if table.Trailer == nil {
		t.Fatal("trailer not recovered")
	}
	if v, ok := table.Trailer.Get("Root"); !ok {
		t.Fatalf("trailer root missing: %v", v)
	}
}

func TestRepairNothingToRecover(t *testing.T) {
	if _, err := xref.Repair([]byte("just text"), dictParser(nil)); err == nil {
		t.Fatal("expected error")
	}
}
