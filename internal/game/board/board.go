// Package board implements the alternating-turn 3x3 line game, including
// the two-party rematch handshake.
package board

import "errors"

// Size is the number of cells on the board.
const Size = 9

// Mark is the content of one cell.
type Mark string

// Cell marks. Empty is the zero value.
const (
	Empty Mark = ""
	X     Mark = "X"
	O     Mark = "O"
)

// Cells is the board in row-major order.
type Cells [Size]Mark

// ErrInvalidMove is returned for any move that cannot be applied: out of
// range, occupied cell, wrong turn, inactive game, or an unseated player.
var ErrInvalidMove = errors.New("invalid board move")

// Lines are the winning three-in-a-row patterns, scanned in this order:
// rows, columns, diagonals.
var Lines = [8][3]int{
	{0, 1, 2}, {3, 4, 5}, {6, 7, 8},
	{0, 3, 6}, {1, 4, 7}, {2, 5, 8},
	{0, 4, 8}, {2, 4, 6},
}

// SymbolForSeat returns the mark played by the given seat index.
// Seat 0 plays X and moves first; seat 1 plays O.
//
// Postcondition: Returns Empty for indices outside the seat range.
func SymbolForSeat(seat int) Mark {
	switch seat {
	case 0:
		return X
	case 1:
		return O
	default:
		return Empty
	}
}

// Winner returns the mark and indices of the first completed line in Lines
// order, or (Empty, nil) when no line is complete.
func Winner(c Cells) (Mark, []int) {
	for _, l := range Lines {
		a, b, d := l[0], l[1], l[2]
		if c[a] != Empty && c[a] == c[b] && c[a] == c[d] {
			return c[a], []int{a, b, d}
		}
	}
	return Empty, nil
}

// Full reports whether every cell is marked.
func Full(c Cells) bool {
	for _, m := range c {
		if m == Empty {
			return false
		}
	}
	return true
}
