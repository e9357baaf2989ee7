// Package parser turns PDF bytes into a raw.Document by resolving the
// cross-reference table and loading every indirect object.
package parser

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/docshield/pdfredact/filters"
	"github.com/docshield/pdfredact/ir/raw"
	"github.com/docshield/pdfredact/scanner"
	"github.com/docshield/pdfredact/xref"
)

// Config controls document parsing limits.
type Config struct {
	Scanner    scanner.Config
	MaxObjects int
}

func (c *Config) defaults() {
	if c.MaxObjects <= 0 {
		c.MaxObjects = 1 << 20
	}
}

type DocumentParser struct {
	cfg Config
}

func NewDocumentParser(cfg Config) *DocumentParser {
	cfg.defaults()
	return &DocumentParser{cfg: cfg}
}

// Parse loads the full object graph. The xref chain is tried first; on any
// failure a whole-file repair scan recovers what it can. A document is only
// unparseable when neither yields a usable trailer with a /Root.
func (p *DocumentParser) Parse(ctx context.Context, data []byte) (*raw.Document, error) {
	if len(data) == 0 {
		return nil, errors.New("empty input")
	}
	parseDict := func(offset int) (*raw.DictObj, error) {
		sc := scanner.New(data, p.cfg.Scanner)
		if err := sc.Seek(offset); err != nil {
			return nil, err
		}
		obj, err := ReadObject(sc)
		if err != nil {
			return nil, err
		}
		dict, ok := obj.(*raw.DictObj)
		if !ok {
			return nil, fmt.Errorf("expected dictionary, got %s", obj.Type())
		}
		return dict, nil
	}

	parseStream := func(offset int) (*raw.DictObj, []byte, error) {
		// Cross-reference streams require a direct /Length and direct
		// filter parameters, so no table is needed here.
		_, obj, err := p.loadObjectAt(data, nil, int64(offset))
		if err != nil {
			return nil, nil, err
		}
		st, ok := obj.(*raw.StreamObj)
		if !ok {
			return nil, nil, fmt.Errorf("expected stream, got %s", obj.Type())
		}
		payload, err := decodeStream(st, nil)
		if err != nil {
			return nil, nil, err
		}
		return st.Dict, payload, nil
	}

	table, err := xref.Resolve(data, parseDict, parseStream)
	if err != nil {
		table, err = xref.Repair(data, parseDict)
		if err != nil {
			return nil, fmt.Errorf("resolve xref: %w", err)
		}
	}
	if len(table.Entries) > p.cfg.MaxObjects {
		return nil, fmt.Errorf("object count %d exceeds limit", len(table.Entries))
	}

	doc := &raw.Document{
		Objects: make(map[raw.ObjectRef]raw.Object, len(table.Entries)),
		Trailer: table.Trailer,
		Version: headerVersion(data),
	}
	for _, num := range table.Objects() {
		if num == 0 {
			continue
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}
		entry, _ := table.Lookup(num)
		if entry.InObjStm {
			// Compressed objects are resolved below, once their
			// containers are loaded.
			continue
		}
		ref, obj, err := p.loadObjectAt(data, table, entry.Offset)
		if err != nil {
			// A single unloadable object is not fatal; missing refs
			// resolve to null later.
			continue
		}
		// The offset may point at a different object than the xref claims;
		// index by the header actually found.
		doc.Objects[ref] = obj
	}
	if err := p.expandObjectStreams(ctx, doc, table); err != nil {
		return nil, err
	}
	if len(doc.Objects) == 0 {
		return nil, errors.New("no objects loaded")
	}
	if doc.Trailer == nil {
		doc.Trailer = synthesizeTrailer(doc)
	}
	if doc.Trailer == nil {
		return nil, errors.New("no trailer and no catalog found")
	}
	return doc, nil
}

func (p *DocumentParser) loadObjectAt(data []byte, table *xref.Table, offset int64) (raw.ObjectRef, raw.Object, error) {
	sc := scanner.New(data, p.cfg.Scanner)
	if err := sc.Seek(int(offset)); err != nil {
		return raw.ObjectRef{}, nil, err
	}
	numTok, err := sc.Next()
	if err != nil || numTok.Type != scanner.TokenNumber || !numTok.IsInt {
		return raw.ObjectRef{}, nil, errors.New("object header: number expected")
	}
	genTok, err := sc.Next()
	if err != nil || genTok.Type != scanner.TokenNumber || !genTok.IsInt {
		return raw.ObjectRef{}, nil, errors.New("object header: generation expected")
	}
	objTok, err := sc.Next()
	if err != nil || objTok.Type != scanner.TokenKeyword || objTok.Str != "obj" {
		return raw.ObjectRef{}, nil, errors.New("object header: obj keyword expected")
	}
	ref := raw.ObjectRef{Num: int(numTok.Int), Gen: int(genTok.Int)}

	obj, err := ReadObject(sc)
	if err != nil {
		return ref, nil, err
	}

	dict, isDict := obj.(*raw.DictObj)
	if !isDict {
		return ref, obj, nil
	}
	rewind := sc.Position()
	next, err := sc.Next()
	if err != nil || next.Type != scanner.TokenKeyword || next.Str != "stream" {
		sc.Seek(rewind)
		return ref, dict, nil
	}

	sc.SkipEOL()
	length := p.streamLength(data, table, dict)
	var payload []byte
	if length >= 0 {
		payload, err = sc.ReadRaw(length)
		if err != nil {
			length = -1
		}
	}
	if length < 0 {
		// Length missing or unusable: recover by searching for endstream.
		rest := data[sc.Position():]
		end := bytes.Index(rest, []byte("endstream"))
		if end < 0 {
			return ref, nil, errors.New("unterminated stream")
		}
		payload = bytes.TrimRight(rest[:end], "\r\n")
		sc.ReadRaw(len(rest[:end]))
	}
	return ref, raw.NewStream(dict, payload), nil
}

// streamLength resolves /Length, following a single indirect reference by
// parsing the referenced number object directly. Returns -1 when unusable.
func (p *DocumentParser) streamLength(data []byte, table *xref.Table, dict *raw.DictObj) int {
	v, ok := dict.Get("Length")
	if !ok {
		return -1
	}
	switch n := v.(type) {
	case raw.NumberObj:
		return int(n.Int())
	case raw.RefObj:
		if table == nil {
			return -1
		}
		entry, ok := table.Lookup(n.R.Num)
		if !ok {
			return -1
		}
		sc := scanner.New(data, p.cfg.Scanner)
		if err := sc.Seek(int(entry.Offset)); err != nil {
			return -1
		}
		// skip "N G obj"
		for i := 0; i < 3; i++ {
			if _, err := sc.Next(); err != nil {
				return -1
			}
		}
		tok, err := sc.Next()
		if err != nil || tok.Type != scanner.TokenNumber {
			return -1
		}
		return int(tok.Int)
	}
	return -1
}

// expandObjectStreams promotes objects held inside /Type /ObjStm containers
// to top-level entries. Compressed entries from the xref are authoritative;
// containers the repair scan recovered only fill numbers that are still
// absent. Containers are dropped afterwards so the rewritten file does not
// carry stale copies of their members.
func (p *DocumentParser) expandObjectStreams(ctx context.Context, doc *raw.Document, table *xref.Table) error {
	resolve := func(o raw.Object) raw.Object {
		if ref, ok := o.(raw.RefObj); ok {
			if r, ok := doc.Objects[raw.ObjectRef{Num: ref.R.Num, Gen: ref.R.Gen}]; ok {
				return r
			}
		}
		return o
	}

	members := make(map[int]map[int]raw.Object)
	load := func(stmNum int) (map[int]raw.Object, error) {
		if m, ok := members[stmNum]; ok {
			return m, nil
		}
		obj, ok := doc.Objects[raw.ObjectRef{Num: stmNum}]
		if !ok {
			return nil, fmt.Errorf("object stream %d not loaded", stmNum)
		}
		st, ok := obj.(*raw.StreamObj)
		if !ok {
			return nil, fmt.Errorf("object %d is not a stream", stmNum)
		}
		m, err := p.objStreamMembers(st, resolve)
		if err != nil {
			return nil, err
		}
		members[stmNum] = m
		return m, nil
	}

	for _, num := range table.Objects() {
		entry, _ := table.Lookup(num)
		if !entry.InObjStm {
			continue
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		m, err := load(entry.StmNum)
		if err != nil {
			// Same policy as direct objects: one bad container is not
			// fatal, its members resolve to null later.
			continue
		}
		if obj, ok := m[num]; ok {
			doc.Objects[raw.ObjectRef{Num: num}] = obj
		}
	}

	var containers []raw.ObjectRef
	for ref, obj := range doc.Objects {
		if st, ok := obj.(*raw.StreamObj); ok && isObjStm(st.Dict) {
			containers = append(containers, ref)
		}
	}
	for _, ref := range containers {
		if m, err := load(ref.Num); err == nil {
			for num, member := range m {
				memberRef := raw.ObjectRef{Num: num}
				if _, exists := doc.Objects[memberRef]; !exists {
					doc.Objects[memberRef] = member
				}
			}
		}
		delete(doc.Objects, ref)
	}
	return nil
}

// objStreamMembers decodes one object stream: /N pairs of "objnum offset"
// integers in the header region, then member bodies starting at /First.
// Offsets are relative to /First.
func (p *DocumentParser) objStreamMembers(st *raw.StreamObj, resolve filters.Resolver) (map[int]raw.Object, error) {
	data, err := decodeStream(st, resolve)
	if err != nil {
		return nil, err
	}
	n, ok := streamInt(st.Dict, "N", resolve)
	if !ok || n <= 0 {
		return nil, errors.New("object stream missing /N")
	}
	first, ok := streamInt(st.Dict, "First", resolve)
	if !ok || first < 0 || first > len(data) {
		return nil, errors.New("object stream missing /First")
	}
	sc := scanner.New(data, p.cfg.Scanner)
	pairs := make([]int, 0, 2*n)
	for len(pairs) < 2*n {
		tok, err := sc.Next()
		if err != nil {
			return nil, fmt.Errorf("object stream header: %w", err)
		}
		if tok.Type != scanner.TokenNumber || !tok.IsInt {
			return nil, errors.New("object stream header: integer expected")
		}
		pairs = append(pairs, int(tok.Int))
	}
	objs := make(map[int]raw.Object, n)
	for i := 0; i+1 < len(pairs); i += 2 {
		num, off := pairs[i], pairs[i+1]
		if off < 0 || first+off >= len(data) {
			continue
		}
		msc := scanner.New(data, p.cfg.Scanner)
		if err := msc.Seek(first + off); err != nil {
			continue
		}
		obj, err := ReadObject(msc)
		if err != nil {
			continue
		}
		objs[num] = obj
	}
	return objs, nil
}

// decodeStream runs a stream payload through its /Filter chain. A stream
// with no filters decodes to its raw bytes.
func decodeStream(st *raw.StreamObj, resolve filters.Resolver) ([]byte, error) {
	names, params := filters.ExtractFilters(st.Dict, resolve)
	if len(names) == 0 {
		return st.Data, nil
	}
	return filters.Default().Decode(st.Data, names, params, resolve)
}

func streamInt(d *raw.DictObj, key string, resolve filters.Resolver) (int, bool) {
	v, ok := d.Get(key)
	if !ok {
		return 0, false
	}
	if resolve != nil {
		v = resolve(v)
	}
	n, ok := v.(raw.NumberObj)
	if !ok {
		return 0, false
	}
	return int(n.Int()), true
}

func isObjStm(d *raw.DictObj) bool {
	t, ok := d.Get("Type")
	if !ok {
		return false
	}
	n, ok := t.(raw.NameObj)
	return ok && n.Val == "ObjStm"
}

// synthesizeTrailer scans loaded objects for the document catalog when the
// repair path found no trailer keyword.
func synthesizeTrailer(doc *raw.Document) *raw.DictObj {
	for ref, obj := range doc.Objects {
		dict, ok := obj.(*raw.DictObj)
		if !ok {
			continue
		}
		if t, ok := dict.Get("Type"); ok {
			if name, ok := t.(raw.NameObj); ok && name.Val == "Catalog" {
				trailer := raw.Dict()
				trailer.Set("Root", raw.Ref(ref.Num, ref.Gen))
				return trailer
			}
		}
	}
	return nil
}

func headerVersion(data []byte) string {
	if bytes.HasPrefix(data, []byte("%PDF-")) {
		end := bytes.IndexAny(data, "\r\n")
		if end > 5 && end < 16 {
			return string(data[5:end])
		}
	}
	return ""
}
