// Package render produces the secondary output formats: per-page PNG
// rasters and a markdown transcript. Both read the post-redaction page
// state, so removed text appears in neither.
package render

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"math"
	"sync"

	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"

	"github.com/docshield/pdfredact/contentstream"
	"github.com/docshield/pdfredact/coords"
	"github.com/docshield/pdfredact/ir/semantic"
)

var (
	rasterFontOnce sync.Once
	rasterFont     *opentype.Font
	rasterFontErr  error
)

func loadRasterFont() (*opentype.Font, error) {
	rasterFontOnce.Do(func() {
		rasterFont, rasterFontErr = opentype.Parse(goregular.TTF)
	})
	return rasterFont, rasterFontErr
}

// pageMapper translates device-space points to top-left pixel coordinates,
// honoring the page's /Rotate value.
type pageMapper struct {
	box    semantic.Rectangle
	rotate int
	scale  float64
}

func newPageMapper(box semantic.Rectangle, rotate int, dpi float64) pageMapper {
	return pageMapper{box: box, rotate: ((rotate % 360) + 360) % 360, scale: dpi / 72}
}

func (m pageMapper) size() (w, h int) {
	pw := m.box.Width() * m.scale
	ph := m.box.Height() * m.scale
	if m.rotate == 90 || m.rotate == 270 {
		pw, ph = ph, pw
	}
	return max(1, int(math.Round(pw))), max(1, int(math.Round(ph)))
}

func (m pageMapper) point(p coords.Point) (float64, float64) {
	switch m.rotate {
	case 90:
		return (p.Y - m.box.LLY) * m.scale, (p.X - m.box.LLX) * m.scale
	case 180:
		return (m.box.URX - p.X) * m.scale, (p.Y - m.box.LLY) * m.scale
	case 270:
		return (m.box.URY - p.Y) * m.scale, (m.box.URX - p.X) * m.scale
	default:
		return (p.X - m.box.LLX) * m.scale, (m.box.URY - p.Y) * m.scale
	}
}

// PageImage rasterizes one page to PNG: white background, glyph runs drawn
// with a substitute face at their device positions, cover rectangles
// filled solid black on top.
func PageImage(page *semantic.Page, runs []contentstream.GlyphRun, covers []semantic.Rectangle, dpi float64) ([]byte, error) {
	if dpi <= 0 {
		return nil, fmt.Errorf("raster dpi %v out of range", dpi)
	}
	ttf, err := loadRasterFont()
	if err != nil {
		return nil, fmt.Errorf("raster font: %w", err)
	}

	m := newPageMapper(page.MediaBox, page.Rotate, dpi)
	w, h := m.size()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(img, img.Bounds(), &image.Uniform{C: color.White}, image.Point{}, draw.Src)

	faces := make(map[int]font.Face)
	defer func() {
		for _, f := range faces {
			f.Close()
		}
	}()
	face := func(size float64) (font.Face, error) {
		key := int(math.Round(size * 4))
		if f, ok := faces[key]; ok {
			return f, nil
		}
		f, err := opentype.NewFace(ttf, &opentype.FaceOptions{
			Size:    size,
			DPI:     dpi,
			Hinting: font.HintingFull,
		})
		if err != nil {
			return nil, err
		}
		faces[key] = f
		return f, nil
	}

	d := font.Drawer{Dst: img, Src: image.Black}
	for i := range runs {
		run := &runs[i]
		size := deviceFontSize(run)
		if size <= 0 {
			continue
		}
		f, err := face(size)
		if err != nil {
			return nil, fmt.Errorf("raster face: %w", err)
		}
		d.Face = f
		for g := range run.Glyphs {
			glyph := &run.Glyphs[g]
			if !glyph.Mapped || glyph.Text == "" {
				continue
			}
			x, y := m.point(run.Origin(g))
			d.Dot = fixed.Point26_6{X: floatToFixed(x), Y: floatToFixed(y)}
			d.DrawString(glyph.Text)
		}
	}

	for _, r := range covers {
		fillRect(img, m, r)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}

// deviceFontSize measures the run's font size after the text and
// transformation matrices are applied.
func deviceFontSize(run *contentstream.GlyphRun) float64 {
	o := run.Matrix.Transform(coords.Point{})
	t := run.Matrix.Transform(coords.Point{Y: run.Size})
	return math.Hypot(t.X-o.X, t.Y-o.Y)
}

func fillRect(img *image.RGBA, m pageMapper, r semantic.Rectangle) {
	x0, y0 := m.point(coords.Point{X: r.LLX, Y: r.LLY})
	x1, y1 := m.point(coords.Point{X: r.URX, Y: r.URY})
	if x0 > x1 {
		x0, x1 = x1, x0
	}
	if y0 > y1 {
		y0, y1 = y1, y0
	}
	bounds := image.Rect(int(math.Floor(x0)), int(math.Floor(y0)), int(math.Ceil(x1)), int(math.Ceil(y1)))
	draw.Draw(img, bounds.Intersect(img.Bounds()), image.Black, image.Point{}, draw.Src)
}

func floatToFixed(v float64) fixed.Int26_6 {
	return fixed.Int26_6(math.Round(v * 64))
}
