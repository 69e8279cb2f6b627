package domain

import (
	"errors"
	"fmt"
)

// Mark is the content of a board cell.
type Mark uint8

const (
	Empty Mark = iota
	X
	O
)

func (m Mark) String() string {
	switch m {
	case X:
		return "X"
	case O:
		return "O"
	default:
		return ""
	}
}

// Size is the number of cells on the board.
const Size = 9

// ErrOutOfRange is matched by every OutOfRangeError.
var ErrOutOfRange = errors.New("cell index out of range")

// OutOfRangeError reports a cell index outside [0,8].
type OutOfRangeError struct {
	Index int
}

func (e *OutOfRangeError) Error() string {
	return fmt.Sprintf("cell index %d out of range [0,%d]", e.Index, Size-1)
}

func (e *OutOfRangeError) Is(target error) bool { return target == ErrOutOfRange }

func checkIndex(index int) error {
	if index < 0 || index >= Size {
		return &OutOfRangeError{Index: index}
	}
	return nil
}

// Board is a fixed 3x3 grid stored row-major. It knows nothing about players or turns;
// SetCell overwrites unconditionally.
type Board struct {
	cells    [Size]Mark
	onChange func([Size]Mark)
}

// NewBoard returns an empty board.
func NewBoard() *Board { return &Board{} }

// OnChange registers the re-render hook called after every mutation.
func (b *Board) OnChange(fn func([Size]Mark)) { b.onChange = fn }

// Reset sets every cell to Empty.
func (b *Board) Reset() {
	b.cells = [Size]Mark{}
	b.changed()
}

// SetCell writes mark at index.
func (b *Board) SetCell(index int, mark Mark) error {
	if err := checkIndex(index); err != nil {
		return err
	}
	b.cells[index] = mark
	b.changed()
	return nil
}

// Cell returns the mark at index.
func (b *Board) Cell(index int) (Mark, error) {
	if err := checkIndex(index); err != nil {
		return Empty, err
	}
	return b.cells[index], nil
}

// Snapshot returns a copy of all cells.
func (b *Board) Snapshot() [Size]Mark { return b.cells }

// IsFull reports whether no cell is Empty.
func (b *Board) IsFull() bool {
	for _, c := range b.cells {
		if c == Empty {
			return false
		}
	}
	return true
}

func (b *Board) changed() {
	if b.onChange != nil {
		b.onChange(b.cells)
	}
}

var lines = [8][3]int{
	// rows
	{0, 1, 2}, {3, 4, 5}, {6, 7, 8},
	// cols
	{0, 3, 6}, {1, 4, 7}, {2, 5, 8},
	// diags
	{0, 4, 8}, {2, 4, 6},
}

// HasWin reports whether mark fills any row, column or diagonal of cells.
func HasWin(cells [Size]Mark, mark Mark) bool {
	if mark == Empty {
		return false
	}
	for _, ln := range lines {
		if cells[ln[0]] == mark && cells[ln[1]] == mark && cells[ln[2]] == mark {
			return true
		}
	}
	return false
}
