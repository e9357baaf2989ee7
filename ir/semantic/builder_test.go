package semantic

import (
	"context"
	"testing"

	"github.com/docshield/pdfredact/ir/decoded"
	"github.com/docshield/pdfredact/ir/raw"
)

// treeDoc builds a two-level page tree: the root node carries the MediaBox
// and font resources, an intermediate node overrides /Rotate, and the leaf
// pages inherit the rest.
func treeDoc() *decoded.Document {
	catalog := raw.Dict()
	catalog.Set("Type", raw.Name("Catalog"))
	catalog.Set("Pages", raw.Ref(2, 0))

	font := raw.Dict()
	font.Set("Type", raw.Name("Font"))
	font.Set("Subtype", raw.Name("Type1"))
	font.Set("BaseFont", raw.Name("Helvetica"))
	fonts := raw.Dict()
	fonts.Set("F1", raw.Ref(3, 0))
	resources := raw.Dict()
	resources.Set("Font", fonts)

	root := raw.Dict()
	root.Set("Type", raw.Name("Pages"))
	root.Set("Kids", raw.NewArray(raw.Ref(4, 0), raw.Ref(5, 0)))
	root.Set("Count", raw.Int(2))
	root.Set("MediaBox", raw.NewArray(raw.Int(0), raw.Int(0), raw.Int(400), raw.Int(500)))
	root.Set("Resources", resources)

	page1 := raw.Dict()
	page1.Set("Type", raw.Name("Page"))
	page1.Set("Contents", raw.Ref(6, 0))

	inner := raw.Dict()
	inner.Set("Type", raw.Name("Pages"))
	inner.Set("Kids", raw.NewArray(raw.Ref(7, 0)))
	inner.Set("Count", raw.Int(1))
	inner.Set("Rotate", raw.Int(90))

	page2 := raw.Dict()
	page2.Set("Type", raw.Name("Page"))
	page2.Set("MediaBox", raw.NewArray(raw.Int(0), raw.Int(0), raw.Int(200), raw.Int(100)))
	page2.Set("Contents", raw.NewArray(raw.Ref(8, 0), raw.Ref(9, 0)))

	trailer := raw.Dict()
	trailer.Set("Root", raw.Ref(1, 0))

	doc := &raw.Document{
		Objects: map[raw.ObjectRef]raw.Object{
			{Num: 1}: catalog,
			{Num: 2}: root,
			{Num: 3}: font,
			{Num: 4}: page1,
			{Num: 5}: inner,
			{Num: 6}: raw.NewStream(nil, []byte("BT ET")),
			{Num: 7}: page2,
			{Num: 8}: raw.NewStream(nil, []byte("q")),
			{Num: 9}: raw.NewStream(nil, []byte("Q")),
		},
		Trailer: trailer,
	}
	return &decoded.Document{Raw: doc}
}

func TestBuildWalksPageTree(t *testing.T) {
	doc, err := Build(context.Background(), treeDoc())
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if len(doc.Pages) != 2 {
		t.Fatalf("got %d pages, want 2", len(doc.Pages))
	}
	if doc.RootRef.Num != 1 {
		t.Errorf("root ref: got %v", doc.RootRef)
	}
	for i, p := range doc.Pages {
		if p.Index != i {
			t.Errorf("page %d: index %d", i, p.Index)
		}
	}
}

func TestBuildInheritsAttributes(t *testing.T) {
	doc, err := Build(context.Background(), treeDoc())
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	p1, p2 := doc.Pages[0], doc.Pages[1]

	if p1.MediaBox.Width() != 400 || p1.MediaBox.Height() != 500 {
		t.Errorf("page 1 inherited box: %+v", p1.MediaBox)
	}
	if p1.Rotate != 0 {
		t.Errorf("page 1 rotate: %d", p1.Rotate)
	}
	if _, ok := p1.Resources.Fonts["F1"]; !ok {
		t.Error("page 1 should inherit font resources")
	}

	if p2.MediaBox.Width() != 200 || p2.MediaBox.Height() != 100 {
		t.Errorf("page 2 own box should win: %+v", p2.MediaBox)
	}
	if p2.Rotate != 90 {
		t.Errorf("page 2 inherited rotate: %d", p2.Rotate)
	}
}

func TestBuildMergesContentStreams(t *testing.T) {
	doc, err := Build(context.Background(), treeDoc())
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	p2 := doc.Pages[1]
	if string(p2.Content) != "q\nQ" {
		t.Errorf("merged content: %q", p2.Content)
	}
	if len(p2.ContentRefs) != 2 || p2.ContentRefs[0].Num != 8 || p2.ContentRefs[1].Num != 9 {
		t.Errorf("content refs: %v", p2.ContentRefs)
	}
}

func TestBuildSharedFontCache(t *testing.T) {
	doc, err := Build(context.Background(), treeDoc())
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	f1 := doc.Pages[0].Resources.Fonts["F1"]
	f2 := doc.Pages[1].Resources.Fonts["F1"]
	if f1 == nil || f1 != f2 {
		t.Error("pages referencing the same font object should share the parsed font")
	}
}

func TestBuildRejectsMissingPages(t *testing.T) {
	trailer := raw.Dict()
	trailer.Set("Root", raw.Ref(1, 0))
	catalog := raw.Dict()
	catalog.Set("Type", raw.Name("Catalog"))
	dec := &decoded.Document{Raw: &raw.Document{
		Objects: map[raw.ObjectRef]raw.Object{{Num: 1}: catalog},
		Trailer: trailer,
	}}
	if _, err := Build(context.Background(), dec); err == nil {
		t.Fatal("expected error for catalog without /Pages")
	}
}

func TestBuildHonorsContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := Build(ctx, treeDoc()); err == nil {
		t.Fatal("expected context error")
	}
}

func TestRectFromArrayNormalizes(t *testing.T) {
	doc := &raw.Document{}
	arr := raw.NewArray(raw.Int(612), raw.Int(792), raw.Int(0), raw.Int(0))
	r := rectFromArray(doc, arr)
	if r == nil {
		t.Fatal("rectFromArray returned nil")
	}
	if r.LLX != 0 || r.LLY != 0 || r.URX != 612 || r.URY != 792 {
		t.Errorf("normalized: %+v", r)
	}
	if rectFromArray(doc, raw.NewArray(raw.Int(1))) != nil {
		t.Error("short array should be rejected")
	}
}
