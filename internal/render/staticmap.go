// Package render draws the dashboard artifacts: static district maps, the
// department bar chart, GeoJSON layers and the interactive Leaflet pages.
package render

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"io"
	"math"
	"sync"

	"github.com/paulmach/orb"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"
	"golang.org/x/image/vector"

	"github.com/couchcryptid/ipress-geo-dashboard/internal/domain"
	"github.com/couchcryptid/ipress-geo-dashboard/internal/spatial"
)

// ErrNoDistricts is returned when there is no geometry to draw.
var ErrNoDistricts = errors.New("no district geometry to draw")

// Map titles.
const (
	ChoroplethTitle = "Distribución de Hospitales por Distrito en Perú"
	ZeroTitle       = "Distritos sin Hospitales Públicos"
	Top10Title      = "Top 10 Distritos con Mayor Número de Hospitales"
)

const (
	titleHeight = 44
	margin      = 16
)

var (
	background = color.RGBA{0xff, 0xff, 0xff, 0xff}
	border     = color.RGBA{0x55, 0x55, 0x55, 0xff}
	muted      = color.RGBA{0xf0, 0xf0, 0xf0, 0xff}
	highlight  = color.RGBA{0xd7, 0x30, 0x1f, 0xff}
	textColor  = color.RGBA{0x22, 0x22, 0x22, 0xff}
)

// MapOptions sizes a static map. Zero values take the defaults.
type MapOptions struct {
	Width  int
	Height int
	Title  string
}

func (o MapOptions) withDefaults(title string) MapOptions {
	if o.Width <= 0 {
		o.Width = 900
	}
	if o.Height <= 0 {
		o.Height = 1000
	}
	if o.Title == "" {
		o.Title = title
	}
	return o
}

// Choropleth draws every district filled by its hospital count class.
func Choropleth(w io.Writer, districts []domain.District, opts MapOptions) error {
	opts = opts.withDefaults(ChoroplethTitle)
	counts := make([]int, len(districts))
	for i, d := range districts {
		counts[i] = d.Hospitals
	}
	scale := NewScale(counts, len(Palette))

	c, err := newCanvas(districts, opts)
	if err != nil {
		return err
	}
	for _, d := range districts {
		c.fill(d.Geometry, scale.Color(d.Hospitals))
	}
	c.outlineAll(districts)
	c.legend("Hospitales", scale.Legend())
	return c.encode(w)
}

// ZeroHospitalsMap highlights the districts without hospitals.
func ZeroHospitalsMap(w io.Writer, districts []domain.District, opts MapOptions) error {
	opts = opts.withDefaults(ZeroTitle)
	c, err := newCanvas(districts, opts)
	if err != nil {
		return err
	}
	zero := 0
	for _, d := range districts {
		col := muted
		if d.Hospitals == 0 {
			col = highlight
			zero++
		}
		c.fill(d.Geometry, col)
	}
	c.outlineAll(districts)
	c.legend("Distritos", []LegendEntry{
		{Label: fmt.Sprintf("Sin hospitales (%d)", zero), Color: highlight},
		{Label: fmt.Sprintf("Con hospitales (%d)", len(districts)-zero), Color: muted},
	})
	return c.encode(w)
}

// Top10Map highlights the ten districts with the most hospitals and lists
// them in the legend by rank.
func Top10Map(w io.Writer, districts []domain.District, opts MapOptions) error {
	opts = opts.withDefaults(Top10Title)
	ranking := spatial.TopDistricts(districts, 10)
	positions := ranking.Positions()

	counts := make([]int, len(ranking.Rows))
	for i, r := range ranking.Rows {
		counts[i] = r.Hospitals
	}
	scale := NewScale(counts, len(Palette))

	c, err := newCanvas(districts, opts)
	if err != nil {
		return err
	}
	for _, d := range districts {
		c.fill(d.Geometry, muted)
	}
	for _, pos := range positions {
		d := districts[pos]
		col := scale.Color(d.Hospitals)
		if d.Hospitals == 0 {
			col = ZeroColor
		}
		c.fill(d.Geometry, col)
	}
	c.outlineAll(districts)

	entries := make([]LegendEntry, 0, len(ranking.Rows))
	for _, r := range ranking.Rows {
		entries = append(entries, LegendEntry{
			Label: fmt.Sprintf("%d. %s (%d)", r.Rank, r.Name, r.Hospitals),
			Color: scale.Color(r.Hospitals),
		})
	}
	c.legend("Ranking", entries)
	return c.encode(w)
}

// canvas projects lon/lat onto an image with an equirectangular projection
// scaled by the cosine of the mid latitude.
type canvas struct {
	img    *image.RGBA
	z      *vector.Rasterizer
	bound  orb.Bound
	scale  float64
	kx     float64
	offset [2]float64
	large  font.Face
	small  font.Face
}

func newCanvas(districts []domain.District, opts MapOptions) (*canvas, error) {
	var bound orb.Bound
	found := false
	for _, d := range districts {
		if len(d.Geometry) == 0 {
			continue
		}
		if !found {
			bound = d.Geometry.Bound()
			found = true
			continue
		}
		bound = bound.Union(d.Geometry.Bound())
	}
	if !found {
		return nil, ErrNoDistricts
	}

	img := image.NewRGBA(image.Rect(0, 0, opts.Width, opts.Height))
	draw.Draw(img, img.Bounds(), &image.Uniform{C: background}, image.Point{}, draw.Src)

	c := &canvas{
		img:   img,
		z:     vector.NewRasterizer(opts.Width, opts.Height),
		bound: bound,
		kx:    math.Cos(bound.Center().Lat() * math.Pi / 180),
		large: newFace(18),
		small: newFace(12),
	}

	areaW := float64(opts.Width - 2*margin)
	areaH := float64(opts.Height - titleHeight - 2*margin)
	spanX := (bound.Max.Lon() - bound.Min.Lon()) * c.kx
	spanY := bound.Max.Lat() - bound.Min.Lat()
	if spanX <= 0 {
		spanX = 1e-9
	}
	if spanY <= 0 {
		spanY = 1e-9
	}
	c.scale = math.Min(areaW/spanX, areaH/spanY)
	c.offset = [2]float64{
		margin + (areaW-spanX*c.scale)/2,
		titleHeight + margin + (areaH-spanY*c.scale)/2,
	}

	c.title(opts.Title)
	return c, nil
}

func (c *canvas) project(p orb.Point) (float32, float32) {
	x := c.offset[0] + (p.Lon()-c.bound.Min.Lon())*c.kx*c.scale
	y := c.offset[1] + (c.bound.Max.Lat()-p.Lat())*c.scale
	return float32(x), float32(y)
}

func (c *canvas) paint(col color.Color) {
	c.z.DrawOp = draw.Over
	c.z.Draw(c.img, c.img.Bounds(), image.NewUniform(col), image.Point{})
	b := c.img.Bounds()
	c.z.Reset(b.Dx(), b.Dy())
}

// fill rasterizes a multipolygon. Holes are drawn with the opposite winding
// of their shell so they stay empty.
func (c *canvas) fill(mp orb.MultiPolygon, col color.Color) {
	if len(mp) == 0 {
		return
	}
	for _, poly := range mp {
		for i, ring := range poly {
			if len(ring) < 3 {
				continue
			}
			want := orb.CCW
			if i > 0 {
				want = orb.CW
			}
			r := ring
			if r.Orientation() != want {
				r = ring.Clone()
				r.Reverse()
			}
			x, y := c.project(r[0])
			c.z.MoveTo(x, y)
			for _, p := range r[1:] {
				x, y = c.project(p)
				c.z.LineTo(x, y)
			}
			c.z.ClosePath()
		}
	}
	c.paint(col)
}

// outlineAll strokes every ring of every district in one pass.
func (c *canvas) outlineAll(districts []domain.District) {
	const width = 0.6
	for _, d := range districts {
		for _, poly := range d.Geometry {
			for _, ring := range poly {
				for i := 1; i < len(ring); i++ {
					c.segment(ring[i-1], ring[i], width)
				}
			}
		}
	}
	c.paint(border)
}

// segment adds a thin quad along a-b.
func (c *canvas) segment(a, b orb.Point, width float32) {
	x0, y0 := c.project(a)
	x1, y1 := c.project(b)
	dx, dy := x1-x0, y1-y0
	l := float32(math.Hypot(float64(dx), float64(dy)))
	if l == 0 {
		return
	}
	nx, ny := -dy/l*width/2, dx/l*width/2
	c.z.MoveTo(x0+nx, y0+ny)
	c.z.LineTo(x1+nx, y1+ny)
	c.z.LineTo(x1-nx, y1-ny)
	c.z.LineTo(x0-nx, y0-ny)
	c.z.ClosePath()
}

func (c *canvas) rect(r image.Rectangle, col color.Color) {
	draw.Draw(c.img, r, &image.Uniform{C: col}, image.Point{}, draw.Over)
}

func (c *canvas) title(text string) {
	face := c.large
	width := font.MeasureString(face, text).Ceil()
	ascent := face.Metrics().Ascent.Ceil()
	x := (c.img.Bounds().Dx() - width) / 2
	y := (titleHeight-ascent)/2 + ascent
	drawText(c.img, text, x, y, textColor, face)
}

// legend draws a boxed legend in the lower left corner.
func (c *canvas) legend(heading string, entries []LegendEntry) {
	face := c.small
	lineH := face.Metrics().Height.Ceil() + 4
	swatch := lineH - 6

	width := font.MeasureString(face, heading).Ceil()
	for _, e := range entries {
		if w := font.MeasureString(face, e.Label).Ceil() + swatch + 8; w > width {
			width = w
		}
	}
	width += 16
	height := lineH*(len(entries)+1) + 12

	b := c.img.Bounds()
	box := image.Rect(margin, b.Dy()-margin-height, margin+width, b.Dy()-margin)
	c.rect(box, color.NRGBA{0xff, 0xff, 0xff, 0xe6})

	ascent := face.Metrics().Ascent.Ceil()
	x := box.Min.X + 8
	y := box.Min.Y + 6
	drawText(c.img, heading, x, y+ascent, textColor, face)
	for _, e := range entries {
		y += lineH
		c.rect(image.Rect(x, y+2, x+swatch, y+2+swatch), border)
		c.rect(image.Rect(x+1, y+3, x+swatch-1, y+1+swatch), e.Color)
		drawText(c.img, e.Label, x+swatch+8, y+ascent, textColor, face)
	}
}

func (c *canvas) encode(w io.Writer) error {
	if err := png.Encode(w, c.img); err != nil {
		return fmt.Errorf("encode png: %w", err)
	}
	return nil
}

func drawText(img *image.RGBA, text string, x, y int, col color.Color, face font.Face) {
	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(col),
		Face: face,
		Dot:  fixed.P(x, y),
	}
	d.DrawString(text)
}

var (
	fontOnce sync.Once
	fontData *opentype.Font
)

// newFace returns Go Regular at size, falling back to the 7x13 bitmap face.
// Faces keep glyph buffers, so each canvas gets its own.
func newFace(size float64) font.Face {
	fontOnce.Do(func() {
		fontData, _ = opentype.Parse(goregular.TTF)
	})
	if fontData == nil {
		return basicfont.Face7x13
	}
	face, err := opentype.NewFace(fontData, &opentype.FaceOptions{
		Size:    size,
		DPI:     72,
		Hinting: font.HintingFull,
	})
	if err != nil {
		return basicfont.Face7x13
	}
	return face
}
