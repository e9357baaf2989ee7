// Package filters implements the stream decode filters needed to read page
// content: FlateDecode, LZWDecode, ASCIIHexDecode and ASCII85Decode, with
// PNG predictor support for flate/LZW parameters.
package filters

import (
	"bytes"
	"compress/flate"
	"compress/lzw"
	"compress/zlib"
	stdascii85 "encoding/ascii85"
	"encoding/hex"
	"errors"
	"fmt"
	"io"

	"github.com/docshield/pdfredact/ir/raw"
)

type Decoder interface {
	Name() string
	Decode(input []byte, params *raw.DictObj, resolve Resolver) ([]byte, error)
}

// Resolver resolves indirect references inside DecodeParms.
type Resolver func(obj raw.Object) raw.Object

type Limits struct {
	MaxDecompressedSize int64
}

type Pipeline struct {
	decoders map[string]Decoder
	limits   Limits
}

func NewPipeline(limits Limits, decoders ...Decoder) *Pipeline {
	p := &Pipeline{decoders: make(map[string]Decoder), limits: limits}
	for _, d := range decoders {
		p.decoders[d.Name()] = d
	}
	return p
}

// Default returns a pipeline with all supported decoders registered.
func Default() *Pipeline {
	return NewPipeline(Limits{MaxDecompressedSize: 256 << 20},
		flateDecoder{}, lzwDecoder{}, asciiHexDecoder{}, ascii85Decoder{},
		runLengthDecoder{})
}

// Decode applies the filter chain named in the stream dictionary to data.
func (p *Pipeline) Decode(data []byte, names []string, params []*raw.DictObj, resolve Resolver) ([]byte, error) {
	for i, name := range names {
		dec, ok := p.decoders[name]
		if !ok {
			return nil, fmt.Errorf("unsupported filter %q", name)
		}
		var parm *raw.DictObj
		if i < len(params) {
			parm = params[i]
		}
		out, err := dec.Decode(data, parm, resolve)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		if p.limits.MaxDecompressedSize > 0 && int64(len(out)) > p.limits.MaxDecompressedSize {
			return nil, errors.New("decompressed size exceeds limit")
		}
		data = out
	}
	return data, nil
}

// ExtractFilters reads /Filter and /DecodeParms from a stream dictionary.
func ExtractFilters(dict *raw.DictObj, resolve Resolver) (names []string, params []*raw.DictObj) {
	if dict == nil {
		return nil, nil
	}
	if resolve == nil {
		resolve = func(o raw.Object) raw.Object { return o }
	}
	if f, ok := dict.Get("Filter"); ok {
		switch v := resolve(f).(type) {
		case raw.NameObj:
			names = append(names, v.Val)
		case *raw.ArrayObj:
			for _, item := range v.Items {
				if n, ok := resolve(item).(raw.NameObj); ok {
					names = append(names, n.Val)
				}
			}
		}
	}
	if pm, ok := dict.Get("DecodeParms"); ok {
		switch v := resolve(pm).(type) {
		case *raw.DictObj:
			params = append(params, v)
		case *raw.ArrayObj:
			for _, item := range v.Items {
				d, _ := resolve(item).(*raw.DictObj)
				params = append(params, d)
			}
		}
	}
	return names, params
}

type flateDecoder struct{}

func (flateDecoder) Name() string { return "FlateDecode" }

func (flateDecoder) Decode(in []byte, params *raw.DictObj, resolve Resolver) ([]byte, error) {
	var r io.ReadCloser
	zr, err := zlib.NewReader(bytes.NewReader(in))
	if err != nil {
		// Some producers omit the zlib header.
		r = flate.NewReader(bytes.NewReader(in))
	} else {
		r = zr
	}
	defer r.Close()
	var out bytes.Buffer
	if _, err := io.Copy(&out, r); err != nil && out.Len() == 0 {
		return nil, err
	}
	return applyPredictor(out.Bytes(), params, resolve)
}

type lzwDecoder struct{}

func (lzwDecoder) Name() string { return "LZWDecode" }

func (lzwDecoder) Decode(in []byte, params *raw.DictObj, resolve Resolver) ([]byte, error) {
	r := lzw.NewReader(bytes.NewReader(in), lzw.MSB, 8)
	defer r.Close()
	var out bytes.Buffer
	if _, err := io.Copy(&out, r); err != nil && out.Len() == 0 {
		return nil, err
	}
	return applyPredictor(out.Bytes(), params, resolve)
}

type asciiHexDecoder struct{}

func (asciiHexDecoder) Name() string { return "ASCIIHexDecode" }

func (asciiHexDecoder) Decode(in []byte, _ *raw.DictObj, _ Resolver) ([]byte, error) {
	trimmed := bytes.Map(func(r rune) rune {
		switch r {
		case ' ', '\t', '\r', '\n', '\f', 0:
			return -1
		}
		return r
	}, in)
	if i := bytes.IndexByte(trimmed, '>'); i >= 0 {
		trimmed = trimmed[:i]
	}
	if len(trimmed)%2 == 1 {
		trimmed = append(trimmed, '0')
	}
	out := make([]byte, hex.DecodedLen(len(trimmed)))
	n, err := hex.Decode(out, trimmed)
	if err != nil {
		return nil, err
	}
	return out[:n], nil
}

type ascii85Decoder struct{}

func (ascii85Decoder) Name() string { return "ASCII85Decode" }

func (ascii85Decoder) Decode(in []byte, _ *raw.DictObj, _ Resolver) ([]byte, error) {
	trimmed := bytes.TrimSpace(in)
	if bytes.HasPrefix(trimmed, []byte("<~")) {
		trimmed = trimmed[2:]
	}
	if bytes.HasSuffix(trimmed, []byte("~>")) {
		trimmed = trimmed[:len(trimmed)-2]
	}
	out := make([]byte, len(trimmed)*2)
	n, _, err := stdascii85.Decode(out, trimmed, true)
	if err != nil {
		return nil, err
	}
	return out[:n], nil
}

type runLengthDecoder struct{}

func (runLengthDecoder) Name() string { return "RunLengthDecode" }

func (runLengthDecoder) Decode(in []byte, _ *raw.DictObj, _ Resolver) ([]byte, error) {
	var out bytes.Buffer
	i := 0
	for i < len(in) {
		n := int(in[i])
		i++
		switch {
		case n == 128: // end of data
			return out.Bytes(), nil
		case n < 128:
			if i+n+1 > len(in) {
				return nil, errors.New("truncated run-length literal")
			}
			out.Write(in[i : i+n+1])
			i += n + 1
		default:
			if i >= len(in) {
				return nil, errors.New("truncated run-length run")
			}
			out.Write(bytes.Repeat(in[i:i+1], 257-n))
			i++
		}
	}
	return out.Bytes(), nil
}

// applyPredictor reverses the PNG predictor family when DecodeParms asks
// for it (Predictor >= 10). TIFF predictor 2 is not supported.
func applyPredictor(data []byte, params *raw.DictObj, resolve Resolver) ([]byte, error) {
	if params == nil {
		return data, nil
	}
	if resolve == nil {
		resolve = func(o raw.Object) raw.Object { return o }
	}
	predictor := intParam(params, "Predictor", 1, resolve)
	if predictor <= 1 {
		return data, nil
	}
	if predictor < 10 {
		return nil, fmt.Errorf("unsupported predictor %d", predictor)
	}
	colors := intParam(params, "Colors", 1, resolve)
	bpc := intParam(params, "BitsPerComponent", 8, resolve)
	columns := intParam(params, "Columns", 1, resolve)
	bpp := (colors*bpc + 7) / 8
	rowLen := (colors*bpc*columns + 7) / 8
	if rowLen <= 0 || bpp <= 0 {
		return nil, errors.New("invalid predictor parameters")
	}
	stride := rowLen + 1
	if len(data)%stride != 0 {
		return nil, errors.New("predictor data not row aligned")
	}
	rows := len(data) / stride
	out := make([]byte, 0, rows*rowLen)
	prev := make([]byte, rowLen)
	for r := 0; r < rows; r++ {
		tag := data[r*stride]
		row := append([]byte(nil), data[r*stride+1:(r+1)*stride]...)
		switch tag {
		case 0: // None
		case 1: // Sub
			for i := bpp; i < rowLen; i++ {
				row[i] += row[i-bpp]
			}
		case 2: // Up
			for i := 0; i < rowLen; i++ {
				row[i] += prev[i]
			}
		case 3: // Average
			for i := 0; i < rowLen; i++ {
				var left byte
				if i >= bpp {
					left = row[i-bpp]
				}
				row[i] += byte((int(left) + int(prev[i])) / 2)
			}
		case 4: // Paeth
			for i := 0; i < rowLen; i++ {
				var left, upLeft byte
				if i >= bpp {
					left = row[i-bpp]
					upLeft = prev[i-bpp]
				}
				row[i] += paeth(left, prev[i], upLeft)
			}
		default:
			return nil, fmt.Errorf("unknown PNG predictor tag %d", tag)
		}
		out = append(out, row...)
		prev = row
	}
	return out, nil
}

func paeth(a, b, c byte) byte {
	p := int(a) + int(b) - int(c)
	pa, pb, pc := abs(p-int(a)), abs(p-int(b)), abs(p-int(c))
	if pa <= pb && pa <= pc {
		return a
	}
	if pb <= pc {
		return b
	}
	return c
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

func intParam(dict *raw.DictObj, key string, def int, resolve Resolver) int {
	v, ok := dict.Get(key)
	if !ok {
		return def
	}
	if n, ok := resolve(v).(raw.NumberObj); ok {
		return int(n.Int())
	}
	return def
}
