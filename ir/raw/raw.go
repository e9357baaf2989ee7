// Package raw holds the low-level PDF object model: the direct result of
// parsing the file's cross-reference table and indirect objects, before any
// stream decoding or page-level interpretation.
package raw

import "fmt"

// ObjectRef uniquely identifies an indirect PDF object.
type ObjectRef struct {
	Num int
	Gen int
}

func (r ObjectRef) String() string { return fmt.Sprintf("%d %d R", r.Num, r.Gen) }

// Object is the base interface for all raw PDF objects.
type Object interface {
	Type() string
}

type NameObj struct{ Val string }

func (n NameObj) Type() string { return "name" }

type NumberObj struct {
	I     int64
	F     float64
	IsInt bool
}

func (n NumberObj) Type() string { return "number" }
func (n NumberObj) Int() int64   { return n.I }
func (n NumberObj) Float() float64 {
	if n.IsInt {
		return float64(n.I)
	}
	return n.F
}

type BoolObj struct{ V bool }

func (b BoolObj) Type() string { return "boolean" }

type NullObj struct{}

func (NullObj) Type() string { return "null" }

// StringObj is a PDF string; Hex records which of the two source syntaxes
// produced it so serialization can round-trip the same form.
type StringObj struct {
	Bytes []byte
	Hex   bool
}

func (s StringObj) Type() string { return "string" }

type ArrayObj struct{ Items []Object }

func (*ArrayObj) Type() string { return "array" }

func (a *ArrayObj) Append(o Object) { a.Items = append(a.Items, o) }

func (a *ArrayObj) Get(i int) (Object, bool) {
	if i < 0 || i >= len(a.Items) {
		return nil, false
	}
	return a.Items[i], true
}

type DictObj struct{ KV map[string]Object }

func (*DictObj) Type() string { return "dict" }

func (d *DictObj) Get(key string) (Object, bool) {
	o, ok := d.KV[key]
	return o, ok
}

func (d *DictObj) Set(key string, value Object) {
	if d.KV == nil {
		d.KV = make(map[string]Object)
	}
	d.KV[key] = value
}

type StreamObj struct {
	Dict *DictObj
	Data []byte
}

func (*StreamObj) Type() string { return "stream" }

type RefObj struct{ R ObjectRef }

func (r RefObj) Type() string   { return "ref" }
func (r RefObj) Ref() ObjectRef { return r.R }

// Constructors.

func Dict() *DictObj                     { return &DictObj{KV: make(map[string]Object)} }
func Name(v string) NameObj              { return NameObj{Val: v} }
func Int(v int64) NumberObj              { return NumberObj{I: v, IsInt: true} }
func Real(v float64) NumberObj           { return NumberObj{F: v} }
func Str(b []byte) StringObj             { return StringObj{Bytes: b} }
func Ref(num, gen int) RefObj            { return RefObj{R: ObjectRef{Num: num, Gen: gen}} }
func NewArray(items ...Object) *ArrayObj { return &ArrayObj{Items: items} }
func NewStream(dict *DictObj, data []byte) *StreamObj {
	if dict == nil {
		dict = Dict()
	}
	return &StreamObj{Dict: dict, Data: data}
}

// Document is the root container for raw PDF objects.
type Document struct {
	Objects map[ObjectRef]Object
	Trailer *DictObj
	Version string // header version, e.g. "1.7"
}

// Resolve follows indirect references until a direct object is reached.
// A dangling reference resolves to NullObj.
func (d *Document) Resolve(obj Object) Object {
	for depth := 0; depth < 32; depth++ {
		ref, ok := obj.(RefObj)
		if !ok {
			return obj
		}
		next, ok := d.Objects[ref.R]
		if !ok {
			return NullObj{}
		}
		obj = next
	}
	return NullObj{}
}

// ResolveDict resolves obj and returns it as a dictionary. Streams expose
// their dictionary.
func (d *Document) ResolveDict(obj Object) (*DictObj, bool) {
	switch v := d.Resolve(obj).(type) {
	case *DictObj:
		return v, true
	case *StreamObj:
		return v.Dict, true
	}
	return nil, false
}

// ResolveArray resolves obj and returns it as an array.
func (d *Document) ResolveArray(obj Object) (*ArrayObj, bool) {
	arr, ok := d.Resolve(obj).(*ArrayObj)
	return arr, ok
}

// ResolveName resolves obj and returns its name value.
func (d *Document) ResolveName(obj Object) (string, bool) {
	n, ok := d.Resolve(obj).(NameObj)
	if !ok {
		return "", false
	}
	return n.Val, true
}

// ResolveNumber resolves obj and returns its numeric value.
func (d *Document) ResolveNumber(obj Object) (float64, bool) {
	n, ok := d.Resolve(obj).(NumberObj)
	if !ok {
		return 0, false
	}
	return n.Float(), true
}

// MaxObjectNum returns the highest allocated object number.
func (d *Document) MaxObjectNum() int {
	max := 0
	for ref := range d.Objects {
		if ref.Num > max {
			max = ref.Num
		}
	}
	return max
}
