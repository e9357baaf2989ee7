package semantic

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/docshield/pdfredact/ir/decoded"
	"github.com/docshield/pdfredact/ir/raw"
)

type inherited struct {
	MediaBox  *Rectangle
	Rotate    *int
	Resources raw.Object
}

// Build walks the page tree of a decoded document and produces the
// page-level model. Font parsing failures are tolerated per font; a page
// with no parsable content still appears with empty Content.
func Build(ctx context.Context, dec *decoded.Document) (*Document, error) {
	doc := dec.Raw
	if doc.Trailer == nil {
		return nil, errors.New("document has no trailer")
	}
	rootObj, ok := doc.Trailer.Get("Root")
	if !ok {
		return nil, errors.New("trailer has no /Root")
	}
	rootRef, _ := rootObj.(raw.RefObj)
	catalog, ok := doc.ResolveDict(rootObj)
	if !ok {
		return nil, errors.New("catalog is not a dictionary")
	}
	pagesObj, ok := catalog.Get("Pages")
	if !ok {
		return nil, errors.New("catalog has no /Pages")
	}

	out := &Document{Raw: doc, RootRef: rootRef.R}
	fontCache := make(map[raw.ObjectRef]*Font)
	if err := walkPages(ctx, dec, pagesObj, inherited{}, out, fontCache, 0); err != nil {
		return nil, err
	}
	if len(out.Pages) == 0 {
		return nil, errors.New("document has no pages")
	}
	for i, p := range out.Pages {
		p.Index = i
	}
	return out, nil
}

func walkPages(ctx context.Context, dec *decoded.Document, obj raw.Object, inh inherited, out *Document, fontCache map[raw.ObjectRef]*Font, depth int) error {
	if depth > 64 {
		return errors.New("page tree too deep")
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}
	doc := dec.Raw
	ref, _ := obj.(raw.RefObj)
	dict, ok := doc.ResolveDict(obj)
	if !ok {
		return fmt.Errorf("page tree node is not a dictionary")
	}

	if mb, ok := doc.ResolveArray(dictGet(dict, "MediaBox")); ok {
		if r := rectFromArray(doc, mb); r != nil {
			inh.MediaBox = r
		}
	}
	if rot, ok := doc.ResolveNumber(dictGet(dict, "Rotate")); ok {
		v := ((int(rot) % 360) + 360) % 360
		inh.Rotate = &v
	}
	if res, ok := dict.Get("Resources"); ok {
		inh.Resources = res
	}

	isPage := false
	if t, ok := doc.ResolveName(dictGet(dict, "Type")); ok {
		isPage = t == "Page"
	} else if _, hasKids := dict.Get("Kids"); !hasKids {
		isPage = true
	}
	if isPage {
		out.Pages = append(out.Pages, buildPage(dec, dict, ref.R, inh, fontCache))
		return nil
	}

	kids, ok := doc.ResolveArray(dictGet(dict, "Kids"))
	if !ok {
		return errors.New("pages node has no /Kids")
	}
	for _, kid := range kids.Items {
		if err := walkPages(ctx, dec, kid, inh, out, fontCache, depth+1); err != nil {
			return err
		}
	}
	return nil
}

func buildPage(dec *decoded.Document, dict *raw.DictObj, ref raw.ObjectRef, inh inherited, fontCache map[raw.ObjectRef]*Font) *Page {
	page := &Page{Ref: ref, MediaBox: Rectangle{URX: 612, URY: 792}} // US Letter default
	if inh.MediaBox != nil {
		page.MediaBox = *inh.MediaBox
	}
	if inh.Rotate != nil {
		page.Rotate = *inh.Rotate
	}

	resObj := inh.Resources
	if v, ok := dict.Get("Resources"); ok {
		resObj = v
	}
	page.Resources = buildResources(dec, resObj, fontCache)

	contents, refs := collectContent(dec, dictGet(dict, "Contents"))
	page.Content = contents
	page.ContentRefs = refs
	return page
}

// collectContent merges a page's content stream(s) into one buffer,
// separated by newlines so operators never fuse across stream boundaries.
func collectContent(dec *decoded.Document, obj raw.Object) ([]byte, []raw.ObjectRef) {
	doc := dec.Raw
	var buf bytes.Buffer
	var refs []raw.ObjectRef
	var walk func(o raw.Object)
	walk = func(o raw.Object) {
		switch v := o.(type) {
		case raw.RefObj:
			if data, ok := dec.StreamData(v.R); ok {
				if buf.Len() > 0 {
					buf.WriteByte('\n')
				}
				buf.Write(data)
				refs = append(refs, v.R)
				return
			}
			walk(doc.Resolve(v))
		case *raw.ArrayObj:
			for _, item := range v.Items {
				walk(item)
			}
		case *raw.StreamObj:
			if buf.Len() > 0 {
				buf.WriteByte('\n')
			}
			buf.Write(v.Data)
		}
	}
	if obj != nil {
		walk(obj)
	}
	return buf.Bytes(), refs
}

func buildResources(dec *decoded.Document, obj raw.Object, fontCache map[raw.ObjectRef]*Font) *Resources {
	res := &Resources{Fonts: make(map[string]*Font)}
	if obj == nil {
		return res
	}
	doc := dec.Raw
	dict, ok := doc.ResolveDict(obj)
	if !ok {
		return res
	}
	fontsDict, ok := doc.ResolveDict(dictGet(dict, "Font"))
	if !ok {
		return res
	}
	for name, fontObj := range fontsDict.KV {
		if ref, isRef := fontObj.(raw.RefObj); isRef {
			if cached, ok := fontCache[ref.R]; ok {
				res.Fonts[name] = cached
				continue
			}
			if f := parseFont(dec, fontObj); f != nil {
				fontCache[ref.R] = f
				res.Fonts[name] = f
			}
			continue
		}
		if f := parseFont(dec, fontObj); f != nil {
			res.Fonts[name] = f
		}
	}
	return res
}

func rectFromArray(doc *raw.Document, arr *raw.ArrayObj) *Rectangle {
	if len(arr.Items) != 4 {
		return nil
	}
	var v [4]float64
	for i := 0; i < 4; i++ {
		n, ok := doc.ResolveNumber(arr.Items[i])
		if !ok {
			return nil
		}
		v[i] = n
	}
	r := &Rectangle{LLX: v[0], LLY: v[1], URX: v[2], URY: v[3]}
	if r.LLX > r.URX {
		r.LLX, r.URX = r.URX, r.LLX
	}
	if r.LLY > r.URY {
		r.LLY, r.URY = r.URY, r.LLY
	}
	return r
}
