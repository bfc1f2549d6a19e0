package ocr

import (
	"image"
	"strings"
	"unicode/utf8"

	"github.com/jeeftor/rowpilot/internal/device"
	"github.com/jeeftor/rowpilot/internal/macro"
)

// Screen is a recognized console: one string per grid row, one rune per cell
type Screen struct {
	Grid       Grid     `json:"grid"`
	CellWidth  int      `json:"cell_width"`
	CellHeight int      `json:"cell_height"`
	Lines      []string `json:"lines"`
}

// Recognize reads every cell of img. Empty cells become spaces and cells
// missing from td become UnknownChar.
func Recognize(img image.Image, g Grid, td *TrainingData) (*Screen, error) {
	cells, cw, ch, err := Cells(img, g)
	if err != nil {
		return nil, err
	}
	s := &Screen{Grid: g, CellWidth: cw, CellHeight: ch, Lines: make([]string, g.Rows)}
	for row := 0; row < g.Rows; row++ {
		var sb strings.Builder
		for col := 0; col < g.Columns; col++ {
			sb.WriteString(lookup(cells[row*g.Columns+col], td))
		}
		s.Lines[row] = sb.String()
	}
	return s, nil
}

func lookup(b Bitmap, td *TrainingData) string {
	if b.Empty() {
		return " "
	}
	if td != nil {
		if c, ok := td.BitmapMap[b.Hex()]; ok {
			return c
		}
	}
	return UnknownChar
}

// Text returns the screen with trailing spaces trimmed from each line
func (s *Screen) Text() string {
	lines := make([]string, len(s.Lines))
	for i, l := range s.Lines {
		lines[i] = strings.TrimRight(l, " ")
	}
	return strings.TrimRight(strings.Join(lines, "\n"), "\n")
}

// Fragments splits each line into phrases separated by two or more spaces.
// Boxes are in image pixels; confidence is the share of recognized cells.
func (s *Screen) Fragments() []device.Fragment {
	var out []device.Fragment
	for row, line := range s.Lines {
		runes := []rune(line)
		for start := 0; start < len(runes); {
			if runes[start] == ' ' {
				start++
				continue
			}
			end := start
			for end < len(runes) {
				if runes[end] == ' ' && (end+1 >= len(runes) || runes[end+1] == ' ') {
					break
				}
				end++
			}
			if f, ok := s.fragment(row, start, runes[start:end]); ok {
				out = append(out, f)
			}
			start = end
		}
	}
	return out
}

func (s *Screen) fragment(row, col int, runes []rune) (device.Fragment, bool) {
	unknown, _ := utf8.DecodeRuneInString(UnknownChar)
	known, total := 0, 0
	for _, r := range runes {
		if r == ' ' {
			continue
		}
		total++
		if r != unknown {
			known++
		}
	}
	if known == 0 {
		return device.Fragment{}, false
	}
	return device.Fragment{
		Text: string(runes),
		Box: macro.Region{
			X:      col * s.CellWidth,
			Y:      row * s.CellHeight,
			Width:  len(runes) * s.CellWidth,
			Height: s.CellHeight,
		},
		Confidence: float64(known) / float64(total),
	}, true
}
