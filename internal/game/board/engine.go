package board

import (
	"fmt"

	"github.com/cory-johannsen/arena/internal/game/room"
)

// State is the per-room board game state.
//
// Invariant: active is false exactly when the cells hold a completed line or are full.
// Invariant: rematch holds at most room.MaxSeats players and is empty right after a reset.
type State struct {
	cells   Cells
	xIsNext bool
	active  bool
	rematch map[room.PlayerID]struct{}
}

// NewState returns the state of a fresh board room: empty cells, X to move, active.
func NewState() room.State {
	return &State{
		xIsNext: true,
		active:  true,
		rematch: make(map[room.PlayerID]struct{}),
	}
}

// Vacate withdraws a departing player's pending rematch request.
func (s *State) Vacate(id room.PlayerID) {
	delete(s.rematch, id)
}

// Snapshot returns a copy of the shared board state.
func (s *State) Snapshot() Snapshot {
	return Snapshot{Cells: s.cells, XIsNext: s.xIsNext, Active: s.active}
}

// RematchRequests returns the size of the agreement set.
func (s *State) RematchRequests() int {
	return len(s.rematch)
}

func (s *State) reset() {
	s.cells = Cells{}
	s.xIsNext = true
	s.active = true
	clear(s.rematch)
}

func (s *State) turn() Mark {
	if s.xIsNext {
		return X
	}
	return O
}

// Snapshot is the state shared by both seats.
type Snapshot struct {
	Cells   Cells
	XIsNext bool
	Active  bool
}

// Update is the result of one legal move.
type Update struct {
	Snapshot
	// Winner is Empty unless the move completed a line.
	Winner Mark
	// Line holds the winning indices, or is empty.
	Line   []int
	IsDraw bool
}

// Rematch is the result of one rematch request.
type Rematch struct {
	// Requests is the size of the agreement set after the request; zero after a reset.
	Requests int
	// OfferTo is the other seat to notify when the request opened an offer.
	OfferTo room.PlayerID
	// Reset is true when both seats agreed and the board was reset.
	Reset    bool
	Snapshot Snapshot
}

func stateOf(r *room.Room) (*State, error) {
	st, ok := r.State().(*State)
	if !ok {
		return nil, fmt.Errorf("room %q: %w", r.Code, room.ErrKindMismatch)
	}
	return st, nil
}

// Init returns the shared state of r together with the mark id plays.
//
// Precondition: the caller holds r.
// Postcondition: Returns room.ErrNotSeated when id has no seat.
func Init(r *room.Room, id room.PlayerID) (Snapshot, Mark, error) {
	st, err := stateOf(r)
	if err != nil {
		return Snapshot{}, Empty, err
	}
	seat, ok := r.SeatOf(id)
	if !ok {
		return Snapshot{}, Empty, fmt.Errorf("board room %q: %w", r.Code, room.ErrNotSeated)
	}
	return st.Snapshot(), SymbolForSeat(seat), nil
}

// Move places id's mark at index. The turn flips, and the game deactivates
// when the move completes a line or fills the board.
//
// Precondition: the caller holds r.
// Postcondition: On ErrInvalidMove the board, turn flag, and active flag are unchanged.
func Move(r *room.Room, id room.PlayerID, index int) (Update, error) {
	st, err := stateOf(r)
	if err != nil {
		return Update{}, err
	}
	seat, seated := r.SeatOf(id)
	switch {
	case !seated:
		return Update{}, fmt.Errorf("player not seated: %w", ErrInvalidMove)
	case !st.active:
		return Update{}, fmt.Errorf("game over: %w", ErrInvalidMove)
	case index < 0 || index >= Size:
		return Update{}, fmt.Errorf("index %d out of range: %w", index, ErrInvalidMove)
	case st.cells[index] != Empty:
		return Update{}, fmt.Errorf("cell %d occupied: %w", index, ErrInvalidMove)
	case SymbolForSeat(seat) != st.turn():
		return Update{}, fmt.Errorf("not %s's turn: %w", SymbolForSeat(seat), ErrInvalidMove)
	}

	st.cells[index] = st.turn()
	st.xIsNext = !st.xIsNext

	winner, line := Winner(st.cells)
	draw := winner == Empty && Full(st.cells)
	if winner != Empty || draw {
		st.active = false
	}
	if line == nil {
		line = []int{}
	}
	return Update{
		Snapshot: st.Snapshot(),
		Winner:   winner,
		Line:     line,
		IsDraw:   draw,
	}, nil
}

// RequestRematch adds id to the agreement set. The first request produces an
// offer for the other seat; the second distinct request resets the board.
//
// Precondition: the caller holds r.
// Postcondition: The board is reset exactly when the set reaches room.MaxSeats.
func RequestRematch(r *room.Room, id room.PlayerID) (Rematch, error) {
	st, err := stateOf(r)
	if err != nil {
		return Rematch{}, err
	}
	if _, ok := r.SeatOf(id); !ok {
		return Rematch{}, fmt.Errorf("board room %q: %w", r.Code, room.ErrNotSeated)
	}

	st.rematch[id] = struct{}{}
	if len(st.rematch) >= room.MaxSeats {
		st.reset()
		return Rematch{Reset: true, Snapshot: st.Snapshot()}, nil
	}

	out := Rematch{Requests: len(st.rematch), Snapshot: st.Snapshot()}
	if other, ok := r.Opponent(id); ok {
		out.OfferTo = other
	}
	return out, nil
}

// Reset clears the board and any pending rematch agreement without consent
// from the seats.
//
// Precondition: the caller holds r.
func Reset(r *room.Room) (Snapshot, error) {
	st, err := stateOf(r)
	if err != nil {
		return Snapshot{}, err
	}
	st.reset()
	return st.Snapshot(), nil
}
