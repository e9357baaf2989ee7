// Package decoded provides the filter-decoded view of a raw document:
// every stream's bytes after FlateDecode and friends have been applied.
package decoded

import (
	"context"
	"fmt"
	"runtime"
	"sync"

	"github.com/docshield/pdfredact/filters"
	"github.com/docshield/pdfredact/ir/raw"
)

// Document pairs the raw object graph with decoded stream payloads.
type Document struct {
	Raw     *raw.Document
	Streams map[raw.ObjectRef][]byte
}

// StreamData returns the decoded payload for a stream object reference,
// falling back to the raw payload when no decoded entry exists.
func (d *Document) StreamData(ref raw.ObjectRef) ([]byte, bool) {
	if data, ok := d.Streams[ref]; ok {
		return data, true
	}
	if s, ok := d.Raw.Objects[ref].(*raw.StreamObj); ok {
		return s.Data, true
	}
	return nil, false
}

type Decoder struct {
	pipeline *filters.Pipeline
	workers  int
}

// NewDecoder builds a decoder running at most workers concurrent filter
// chains; workers <= 0 means GOMAXPROCS.
func NewDecoder(p *filters.Pipeline, workers int) *Decoder {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	if p == nil {
		p = filters.Default()
	}
	return &Decoder{pipeline: p, workers: workers}
}

// Decode applies filter chains to every stream in the document. Streams are
// independent, so decoding fans out over a bounded worker pool. A stream
// whose filter chain fails keeps its raw bytes and is reported in failed;
// callers decide per use whether that matters.
func (d *Decoder) Decode(ctx context.Context, rawDoc *raw.Document) (*Document, map[raw.ObjectRef]error, error) {
	out := &Document{Raw: rawDoc, Streams: make(map[raw.ObjectRef][]byte)}

	type task struct {
		ref raw.ObjectRef
		obj *raw.StreamObj
	}
	var tasks []task
	for ref, obj := range rawDoc.Objects {
		if s, ok := obj.(*raw.StreamObj); ok {
			tasks = append(tasks, task{ref: ref, obj: s})
		}
	}
	if len(tasks) == 0 {
		return out, nil, nil
	}

	type result struct {
		ref  raw.ObjectRef
		data []byte
		err  error
	}
	sem := make(chan struct{}, d.workers)
	results := make(chan result, len(tasks))
	resolve := func(o raw.Object) raw.Object { return rawDoc.Resolve(o) }

	var wg sync.WaitGroup
	for _, t := range tasks {
		wg.Add(1)
		go func(t task) {
			defer wg.Done()
			select {
			case sem <- struct{}{}:
			case <-ctx.Done():
				results <- result{ref: t.ref, err: ctx.Err()}
				return
			}
			defer func() { <-sem }()

			names, params := filters.ExtractFilters(t.obj.Dict, resolve)
			if len(names) == 0 {
				results <- result{ref: t.ref, data: t.obj.Data}
				return
			}
			data, err := d.pipeline.Decode(t.obj.Data, names, params, resolve)
			if err != nil {
				results <- result{ref: t.ref, err: fmt.Errorf("decode %v: %w", t.ref, err)}
				return
			}
			results <- result{ref: t.ref, data: data}
		}(t)
	}
	go func() {
		wg.Wait()
		close(results)
	}()

	failed := make(map[raw.ObjectRef]error)
	for res := range results {
		if res.err != nil {
			if ctx.Err() != nil {
				return nil, nil, ctx.Err()
			}
			failed[res.ref] = res.err
			continue
		}
		out.Streams[res.ref] = res.data
	}
	if len(failed) == 0 {
		failed = nil
	}
	return out, failed, nil
}
