package session

import "image/color"

// MaxPerColumn is how many neurons are stacked before wrapping to a new
// column.
const MaxPerColumn = 50

// Cell is one neuron's activation placed on the network grid.
type Cell struct {
	Layer  int
	Neuron int
	Column int
	Row    int
	Value  float64
}

// Color fades from red at 0 to green at 1.
func (c Cell) Color() color.RGBA {
	return color.RGBA{R: uint8(0xff * (1 - c.Value)), G: uint8(0xff * c.Value), A: 0xff}
}

// Cells lays out every neuron output of the last run, clamped to [0, 1]. Each
// layer starts a new column and leaves one empty column before it.
func (s *Session) Cells() []Cell {
	var cells []Cell
	offset := -1
	for i, l := range s.net.Layers() {
		for j, v := range l.Outputs() {
			if j%MaxPerColumn == 0 {
				offset++
			}
			cells = append(cells, Cell{
				Layer:  i,
				Neuron: j,
				Column: i + offset,
				Row:    j % MaxPerColumn,
				Value:  clamp(v, 0, 1),
			})
		}
	}
	return cells
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
