package render

import (
	"fmt"
	"image/color"
	"sort"
)

// Palette is the six-class yellow to red ramp used for hospital counts.
var Palette = []color.RGBA{
	{0xff, 0xff, 0xb2, 0xff},
	{0xfe, 0xd9, 0x76, 0xff},
	{0xfe, 0xb2, 0x4c, 0xff},
	{0xfd, 0x8d, 0x3c, 0xff},
	{0xf0, 0x3b, 0x20, 0xff},
	{0xbd, 0x00, 0x26, 0xff},
}

// ZeroColor fills districts without hospitals.
var ZeroColor = color.RGBA{0xd9, 0xd9, 0xd9, 0xff}

// Scale assigns hospital counts to quantile classes. Zero is a class of its
// own and never takes a palette color.
type Scale struct {
	// Breaks holds the inclusive upper bound of each class, ascending.
	Breaks []int
}

// NewScale computes at most k quantile breaks over the positive counts.
// Duplicate breaks collapse, so skewed data may yield fewer classes.
func NewScale(counts []int, k int) Scale {
	if k <= 0 {
		k = len(Palette)
	}
	var vals []int
	for _, n := range counts {
		if n > 0 {
			vals = append(vals, n)
		}
	}
	if len(vals) == 0 {
		return Scale{}
	}
	sort.Ints(vals)

	var breaks []int
	for i := 1; i <= k; i++ {
		pos := (i*len(vals)+k-1)/k - 1
		b := vals[pos]
		if len(breaks) == 0 || b > breaks[len(breaks)-1] {
			breaks = append(breaks, b)
		}
	}
	return Scale{Breaks: breaks}
}

// Class returns the class index of n, or -1 for zero.
func (s Scale) Class(n int) int {
	if n <= 0 || len(s.Breaks) == 0 {
		return -1
	}
	for i, b := range s.Breaks {
		if n <= b {
			return i
		}
	}
	return len(s.Breaks) - 1
}

// Color returns the fill for count n. Classes are spread over the palette
// so the top class is always the darkest red.
func (s Scale) Color(n int) color.RGBA {
	c := s.Class(n)
	if c < 0 {
		return ZeroColor
	}
	return Palette[s.paletteIndex(c)]
}

func (s Scale) paletteIndex(class int) int {
	if len(s.Breaks) <= 1 {
		return len(Palette) - 1
	}
	return class * (len(Palette) - 1) / (len(s.Breaks) - 1)
}

// LegendEntry is one swatch of a map legend.
type LegendEntry struct {
	Label string
	Color color.RGBA
}

// Legend describes every class, zero first.
func (s Scale) Legend() []LegendEntry {
	out := []LegendEntry{{Label: "0", Color: ZeroColor}}
	lo := 1
	for i, b := range s.Breaks {
		label := fmt.Sprintf("%d - %d", lo, b)
		if lo == b {
			label = fmt.Sprintf("%d", b)
		}
		out = append(out, LegendEntry{Label: label, Color: Palette[s.paletteIndex(i)]})
		lo = b + 1
	}
	return out
}

func hexColor(c color.RGBA) string {
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}
