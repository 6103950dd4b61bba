package terminal

import (
	"github.com/gdamore/tcell/v2"
)

// Progress bar characters
const (
	progressFull  = '█'
	progressEmpty = '░'
	progressHalf  = '▌'
)

// Region is a clipped rectangle of a screen; coordinates are region-relative
type Region struct {
	Screen     tcell.Screen
	X, Y, W, H int
}

// Sub returns a child region clipped to r
func (r Region) Sub(x, y, w, h int) Region {
	x, y = max(x, 0), max(y, 0)
	w = max(min(w, r.W-x), 0)
	h = max(min(h, r.H-y), 0)
	return Region{Screen: r.Screen, X: r.X + x, Y: r.Y + y, W: w, H: h}
}

// Cell sets one cell; out of bounds writes are dropped
func (r Region) Cell(x, y int, ch rune, style tcell.Style) {
	if x < 0 || x >= r.W || y < 0 || y >= r.H {
		return
	}
	r.Screen.SetContent(r.X+x, r.Y+y, ch, nil, style)
}

// Fill clears the region with style
func (r Region) Fill(style tcell.Style) {
	for y := range r.H {
		for x := range r.W {
			r.Cell(x, y, ' ', style)
		}
	}
}

// Text writes s from x, truncating with an ellipsis at the region edge
// Returns the number of cells written
func (r Region) Text(x, y int, s string, style tcell.Style) int {
	if y < 0 || y >= r.H || x >= r.W {
		return 0
	}
	runes := truncate([]rune(s), r.W-x)
	for i, ch := range runes {
		r.Cell(x+i, y, ch, style)
	}
	return len(runes)
}

// TextRight writes s so that it ends at the right edge of the region
func (r Region) TextRight(y int, s string, style tcell.Style) int {
	n := len([]rune(s))
	return r.Text(max(r.W-n, 0), y, s, style)
}

// Progress draws horizontal progress bar (0.0-1.0)
func (r Region) Progress(x, y, w int, pct float64, style tcell.Style) {
	if y < 0 || y >= r.H || w <= 0 {
		return
	}
	pct = min(max(pct, 0), 1)

	filled := int(float64(w) * pct)
	remainder := float64(w)*pct - float64(filled)

	for i := range w {
		if x+i >= r.W {
			break
		}
		var ch rune
		switch {
		case i < filled:
			ch = progressFull
		case i == filled && remainder >= 0.5:
			ch = progressHalf
		default:
			ch = progressEmpty
		}
		r.Cell(x+i, y, ch, style)
	}
}

// KeyValue renders key right-aligned in a column of keyW cells, then sep and value
func (r Region) KeyValue(y, keyW int, key, value string, keyStyle, valStyle tcell.Style, sep rune) {
	if y < 0 || y >= r.H || r.W < 3 {
		return
	}
	keyW = min(max(keyW, 1), r.W-2)

	keyRunes := truncate([]rune(key), keyW)
	pad := keyW - len(keyRunes)
	for i, ch := range keyRunes {
		r.Cell(pad+i, y, ch, keyStyle)
	}
	r.Cell(keyW, y, sep, keyStyle)
	r.Text(keyW+2, y, value, valStyle)
}

func truncate(runes []rune, w int) []rune {
	if w <= 0 {
		return nil
	}
	if len(runes) <= w {
		return runes
	}
	if w == 1 {
		return runes[:1]
	}
	out := append([]rune(nil), runes[:w-1]...)
	return append(out, '…')
}
