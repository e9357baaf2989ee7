// Package writer re-serializes a parsed document as a complete, single
// revision PDF file. Objects the pipeline never touched round-trip from
// the original graph; pages carrying a redacted content stream get it
// swapped in before the body is emitted with a fresh cross-reference
// table. The original content stream objects are overwritten, never left
// behind, so the removed text does not survive in the file.
package writer

import (
	"bytes"
	"compress/zlib"
	"fmt"
	"sort"

	"github.com/docshield/pdfredact/ir/raw"
	"github.com/docshield/pdfredact/ir/semantic"
)

// Write serializes the document. Pages whose Redacted field is set have
// their content replaced by it; every other object is emitted as parsed.
func Write(doc *semantic.Document) ([]byte, error) {
	objects := make(map[raw.ObjectRef]raw.Object, len(doc.Raw.Objects))
	for ref, obj := range doc.Raw.Objects {
		objects[ref] = obj
	}
	nextNum := doc.Raw.MaxObjectNum() + 1

	for _, p := range doc.Pages {
		if p.Redacted == nil {
			continue
		}
		target := raw.ObjectRef{Num: nextNum}
		if len(p.ContentRefs) > 0 {
			target = p.ContentRefs[0]
		} else {
			nextNum++
		}
		objects[target] = contentStream(p.Redacted)

		// Pages may split content across several streams; the merged
		// replacement lands in the first and the rest are blanked so no
		// copy of the original text remains.
		for _, ref := range p.ContentRefs[min(1, len(p.ContentRefs)):] {
			objects[ref] = contentStream(nil)
		}

		pageDict, ok := doc.Raw.Objects[p.Ref].(*raw.DictObj)
		if !ok {
			return nil, fmt.Errorf("page %d: dictionary object %d missing", p.Index, p.Ref.Num)
		}
		clone := cloneDict(pageDict)
		clone.Set("Contents", raw.Ref(target.Num, target.Gen))
		objects[p.Ref] = clone
	}

	return serializeFile(doc, objects)
}

// contentStream builds a flate-compressed stream object.
func contentStream(data []byte) *raw.StreamObj {
	var buf bytes.Buffer
	zw := zlib.NewWriter(&buf)
	zw.Write(data)
	zw.Close()
	dict := raw.Dict()
	dict.Set("Length", raw.Int(int64(buf.Len())))
	dict.Set("Filter", raw.Name("FlateDecode"))
	return raw.NewStream(dict, buf.Bytes())
}

func cloneDict(d *raw.DictObj) *raw.DictObj {
	out := raw.Dict()
	for k, v := range d.KV {
		out.Set(k, v)
	}
	return out
}

func serializeFile(doc *semantic.Document, objects map[raw.ObjectRef]raw.Object) ([]byte, error) {
	version := doc.Raw.Version
	if version == "" {
		version = "1.7"
	}

	var buf bytes.Buffer
	fmt.Fprintf(&buf, "%%PDF-%s\n%%\xE2\xE3\xCF\xD3\n", version)

	ordered := make([]raw.ObjectRef, 0, len(objects))
	for ref := range objects {
		ordered = append(ordered, ref)
	}
	sort.Slice(ordered, func(i, j int) bool {
		if ordered[i].Num != ordered[j].Num {
			return ordered[i].Num < ordered[j].Num
		}
		return ordered[i].Gen < ordered[j].Gen
	})

	offsets := make(map[int]int, len(ordered))
	for _, ref := range ordered {
		offsets[ref.Num] = buf.Len()
		fmt.Fprintf(&buf, "%d %d obj\n", ref.Num, ref.Gen)
		raw.AppendSerialized(&buf, objects[ref])
		buf.WriteString("\nendobj\n")
	}

	maxNum := 0
	if len(ordered) > 0 {
		maxNum = ordered[len(ordered)-1].Num
	}
	xrefOffset := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n", maxNum+1)
	buf.WriteString("0000000000 65535 f \n")
	for num := 1; num <= maxNum; num++ {
		if off, ok := offsets[num]; ok {
			fmt.Fprintf(&buf, "%010d 00000 n \n", off)
		} else {
			buf.WriteString("0000000000 65535 f \n")
		}
	}

	trailer := raw.Dict()
	trailer.Set("Size", raw.Int(int64(maxNum+1)))
	trailer.Set("Root", raw.Ref(doc.RootRef.Num, doc.RootRef.Gen))
	if doc.Raw.Trailer != nil {
		if info, ok := doc.Raw.Trailer.Get("Info"); ok {
			trailer.Set("Info", info)
		}
	}
	buf.WriteString("trailer\n")
	raw.AppendSerialized(&buf, trailer)
	fmt.Fprintf(&buf, "\nstartxref\n%d\n%%%%EOF\n", xrefOffset)
	return buf.Bytes(), nil
}
