// Package ocr reads text from fixed-grid console screens by cutting the
// screenshot into character cells and looking each cell's bitmap up in
// trained data. It implements device.OCR on top of any screenshot source.
package ocr

import (
	"fmt"
	"image"
	"image/color"
	"strings"

	"github.com/jeeftor/rowpilot/internal/constants"
)

// UnknownChar stands in for a cell with no trained bitmap
const UnknownChar = "¿"

// Grid is the text console size in character cells
type Grid struct {
	Columns int `json:"columns"`
	Rows    int `json:"rows"`
}

// DefaultGrid is the usual 160x50 console
func DefaultGrid() Grid {
	return Grid{Columns: constants.DefaultGridColumns, Rows: constants.DefaultGridRows}
}

// CellSize returns the pixel size of one cell for an image
func (g Grid) CellSize(bounds image.Rectangle) (int, int, error) {
	if g.Columns <= 0 || g.Rows <= 0 {
		return 0, 0, fmt.Errorf("invalid grid %dx%d", g.Columns, g.Rows)
	}
	w, h := bounds.Dx()/g.Columns, bounds.Dy()/g.Rows
	if w <= 0 || h <= 0 {
		return 0, 0, fmt.Errorf("image %dx%d is too small for a %dx%d grid", bounds.Dx(), bounds.Dy(), g.Columns, g.Rows)
	}
	return w, h, nil
}

// Bitmap is the foreground mask of one cell
type Bitmap struct {
	Width  int      `json:"width"`
	Height int      `json:"height"`
	Data   [][]bool `json:"data"`
}

// Empty reports whether the cell is uniform
func (b Bitmap) Empty() bool {
	var on, off bool
	for _, row := range b.Data {
		for _, px := range row {
			if px {
				on = true
			} else {
				off = true
			}
			if on && off {
				return false
			}
		}
	}
	return true
}

// Hex encodes the mask row by row as fixed-width hex digits
func (b Bitmap) Hex() string {
	var sb strings.Builder
	sb.WriteString("0x")
	digits := (b.Width + 3) / 4
	for y := 0; y < b.Height; y++ {
		var row uint64
		for x := 0; x < b.Width && x < 64; x++ {
			if y < len(b.Data) && x < len(b.Data[y]) && b.Data[y][x] {
				row |= 1 << (b.Width - 1 - x)
			}
		}
		fmt.Fprintf(&sb, "%0*X", digits, row)
	}
	return sb.String()
}

// String renders the mask as ASCII art, for debug output
func (b Bitmap) String() string {
	var sb strings.Builder
	for _, row := range b.Data {
		for _, px := range row {
			if px {
				sb.WriteByte('#')
			} else {
				sb.WriteByte('.')
			}
		}
		sb.WriteByte('\n')
	}
	return sb.String()
}

// Cells cuts img into grid cells, row-major
func Cells(img image.Image, g Grid) ([]Bitmap, int, int, error) {
	bounds := img.Bounds()
	cw, ch, err := g.CellSize(bounds)
	if err != nil {
		return nil, 0, 0, err
	}
	out := make([]Bitmap, 0, g.Columns*g.Rows)
	for row := 0; row < g.Rows; row++ {
		for col := 0; col < g.Columns; col++ {
			out = append(out, cellBitmap(img, bounds.Min.X+col*cw, bounds.Min.Y+row*ch, cw, ch))
		}
	}
	return out, cw, ch, nil
}

// cellBitmap marks pixels that differ from the cell's most common colour
func cellBitmap(img image.Image, x, y, w, h int) Bitmap {
	bg := dominantColor(img, x, y, w, h)
	b := Bitmap{Width: w, Height: h, Data: make([][]bool, h)}
	for cy := 0; cy < h; cy++ {
		b.Data[cy] = make([]bool, w)
		for cx := 0; cx < w; cx++ {
			b.Data[cy][cx] = distinct(img.At(x+cx, y+cy), bg)
		}
	}
	return b
}

type rgb struct{ r, g, b uint8 }

func toRGB(c color.Color) rgb {
	r, g, b, _ := c.RGBA()
	return rgb{uint8(r >> 8), uint8(g >> 8), uint8(b >> 8)}
}

// dominantColor returns the most frequent colour; ties go to the darker one
func dominantColor(img image.Image, x, y, w, h int) rgb {
	counts := map[rgb]int{}
	for cy := 0; cy < h; cy++ {
		for cx := 0; cx < w; cx++ {
			counts[toRGB(img.At(x+cx, y+cy))]++
		}
	}
	var best rgb
	bestN := -1
	for c, n := range counts {
		if n > bestN || (n == bestN && luma(c) < luma(best)) {
			best, bestN = c, n
		}
	}
	return best
}

func luma(c rgb) int {
	return int(c.r)*299 + int(c.g)*587 + int(c.b)*114
}

// distinct reports a colour distance above roughly 30 units per channel
func distinct(c color.Color, bg rgb) bool {
	p := toRGB(c)
	dr := int(p.r) - int(bg.r)
	dg := int(p.g) - int(bg.g)
	db := int(p.b) - int(bg.b)
	return dr*dr+dg*dg+db*db > 30*30
}
