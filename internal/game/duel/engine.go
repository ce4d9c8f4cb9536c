package duel

import (
	"fmt"

	"github.com/cory-johannsen/arena/internal/game/room"
)

// State is the per-room round state: one pending move per seat and the
// number of the round those moves belong to.
//
// Invariant: choices only holds moves of currently seated players.
// Invariant: round starts at 1 and increases by one per resolved pair.
type State struct {
	choices map[room.PlayerID]Move
	round   uint64
}

// NewState returns the state of a fresh duel room.
func NewState() room.State {
	return &State{
		choices: make(map[room.PlayerID]Move),
		round:   1,
	}
}

// Vacate drops the pending move of a player who lost its seat.
func (s *State) Vacate(id room.PlayerID) {
	delete(s.choices, id)
}

// Round returns the number of the round currently collecting moves.
func (s *State) Round() uint64 {
	return s.round
}

// Pending returns the number of moves waiting for resolution.
func (s *State) Pending() int {
	return len(s.choices)
}

// Result is one seat's personalized view of a resolved round.
type Result struct {
	Player   room.PlayerID
	Yours    Move
	Opponent Move
	Outcome  Outcome
}

// Resolution is a resolved round: one Result per seat, in seat order.
type Resolution struct {
	Round   uint64
	Results [room.MaxSeats]Result
}

// Winner returns the winning player, or ("", false) on a draw.
func (r *Resolution) Winner() (room.PlayerID, bool) {
	for _, res := range r.Results {
		if res.Outcome == Win {
			return res.Player, true
		}
	}
	return "", false
}

func stateOf(r *room.Room) (*State, error) {
	st, ok := r.State().(*State)
	if !ok {
		return nil, fmt.Errorf("room %q: %w", r.Code, room.ErrKindMismatch)
	}
	return st, nil
}

// Submit records id's move for the current round of r. When both seats have
// moved the round is resolved, its state cleared, and the round counter advanced.
// A non-zero round must match the current round; zero means "whatever round
// is open".
//
// Precondition: the caller holds r (inside room.Registry.Do).
// Postcondition: Returns (nil, nil) while waiting for the other seat, or the
// Resolution once both moves are in. Returns ErrNotSeated, ErrStaleRound, or
// ErrInvalidMove without changing state.
func Submit(r *room.Room, id room.PlayerID, move Move, round uint64) (*Resolution, error) {
	st, err := stateOf(r)
	if err != nil {
		return nil, err
	}
	if _, ok := r.SeatOf(id); !ok {
		return nil, fmt.Errorf("duel room %q: %w", r.Code, room.ErrNotSeated)
	}
	if !move.Valid() {
		return nil, fmt.Errorf("%q: %w", move, ErrInvalidMove)
	}
	if round != 0 && round != st.round {
		return nil, fmt.Errorf("round %d, current %d: %w", round, st.round, ErrStaleRound)
	}

	st.choices[id] = move

	seats := r.Seats()
	if len(seats) < room.MaxSeats {
		return nil, nil
	}
	first, ok1 := st.choices[seats[0]]
	second, ok2 := st.choices[seats[1]]
	if !ok1 || !ok2 {
		return nil, nil
	}

	res := &Resolution{
		Round: st.round,
		Results: [room.MaxSeats]Result{
			{Player: seats[0], Yours: first, Opponent: second, Outcome: Resolve(first, second)},
			{Player: seats[1], Yours: second, Opponent: first, Outcome: Resolve(second, first)},
		},
	}
	clear(st.choices)
	st.round++
	return res, nil
}
