package domain

import (
	"errors"
	"strings"
)

// ErrMatchInProgress is returned by Start while a match is still being played.
var ErrMatchInProgress = errors.New("match in progress")

// Default names used when a start request carries a blank name.
const (
	DefaultPlayer1 = "Player 1"
	DefaultPlayer2 = "Player 2"
)

// State is the lifecycle stage of a Match.
type State uint8

const (
	NotStarted State = iota
	InProgress
	Finished
)

func (s State) String() string {
	switch s {
	case InProgress:
		return "in_progress"
	case Finished:
		return "finished"
	default:
		return "not_started"
	}
}

// Outcome is the terminal flag of a Match.
type Outcome uint8

const (
	None Outcome = iota
	Win
	Tie
)

func (o Outcome) String() string {
	switch o {
	case Win:
		return "win"
	case Tie:
		return "tie"
	default:
		return "none"
	}
}

// Player is a display name paired with a mark.
type Player struct {
	Name string
	Mark Mark
}

// EventType names what a match Event reports.
type EventType string

const (
	EventBoard    EventType = "board"
	EventContinue EventType = "continue"
	EventWin      EventType = "win"
	EventTie      EventType = "tie"
	EventReset    EventType = "reset"
)

// Event is delivered to the match listener. Board is always the current snapshot.
type Event struct {
	Type       EventType
	WinnerName string
	Board      [Size]Mark
}

// Match drives a single game between two players on a Board.
// It is not safe for concurrent use.
type Match struct {
	board    *Board
	players  [2]Player
	current  int
	state    State
	outcome  Outcome
	moves    int
	listener func(Event)
}

// NewMatch returns a match in NotStarted with an empty board. listener may be nil.
func NewMatch(listener func(Event)) *Match {
	m := &Match{board: NewBoard(), listener: listener}
	m.board.OnChange(func(cells [Size]Mark) {
		m.emit(Event{Type: EventBoard, Board: cells})
	})
	return m
}

// Start seats two fresh players, X then O, and clears the board.
// Blank names fall back to DefaultPlayer1 and DefaultPlayer2.
func (m *Match) Start(name1, name2 string) error {
	if m.state == InProgress {
		return ErrMatchInProgress
	}
	m.players = [2]Player{
		{Name: nameOr(name1, DefaultPlayer1), Mark: X},
		{Name: nameOr(name2, DefaultPlayer2), Mark: O},
	}
	m.current = 0
	m.outcome = None
	m.moves = 0
	m.state = InProgress
	m.board.Reset()
	return nil
}

// SubmitMove places the current player's mark at index.
// Moves outside InProgress and moves onto occupied cells are ignored (applied is false).
// Only an index outside [0,8] yields an error.
func (m *Match) SubmitMove(index int) (applied bool, err error) {
	cell, err := m.board.Cell(index)
	if err != nil {
		return false, err
	}
	if m.state != InProgress || cell != Empty {
		return false, nil
	}

	p := m.players[m.current]
	if err := m.board.SetCell(index, p.Mark); err != nil {
		return false, err
	}
	m.moves++

	cells := m.board.Snapshot()
	switch {
	case HasWin(cells, p.Mark):
		m.outcome = Win
		m.state = Finished
		m.emit(Event{Type: EventWin, WinnerName: p.Name, Board: cells})
	case m.board.IsFull():
		m.outcome = Tie
		m.state = Finished
		m.emit(Event{Type: EventTie, Board: cells})
	default:
		m.current = 1 - m.current
		m.emit(Event{Type: EventContinue, Board: cells})
	}
	return true, nil
}

// Restart clears the board and terminal flag and hands the move back to X.
// The roster is kept; a match that never started stays NotStarted.
func (m *Match) Restart() {
	m.current = 0
	m.outcome = None
	m.moves = 0
	if m.state != NotStarted {
		m.state = InProgress
	}
	m.board.Reset()
	m.emit(Event{Type: EventReset, Board: m.board.Snapshot()})
}

func (m *Match) State() State       { return m.state }
func (m *Match) Outcome() Outcome   { return m.outcome }
func (m *Match) Players() [2]Player { return m.players }
func (m *Match) Moves() int         { return m.moves }
func (m *Match) Board() [Size]Mark  { return m.board.Snapshot() }

// Current returns the player to move, or the winner once the match is won.
func (m *Match) Current() Player { return m.players[m.current] }

// Winner returns the winning player; ok is false unless the outcome is Win.
func (m *Match) Winner() (p Player, ok bool) {
	if m.outcome != Win {
		return Player{}, false
	}
	return m.players[m.current], true
}

// Message is the status line shown to the players.
func (m *Match) Message() string {
	switch m.outcome {
	case Win:
		return m.players[m.current].Name + " won!"
	case Tie:
		return "It's a tie!"
	default:
		return ""
	}
}

func (m *Match) emit(ev Event) {
	if m.listener != nil {
		m.listener(ev)
	}
}

func nameOr(name, fallback string) string {
	if n := strings.TrimSpace(name); n != "" {
		return n
	}
	return fallback
}
