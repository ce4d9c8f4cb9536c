// Package room provides the registry that owns every two-seat game room,
// its seat list, and the game state hosted inside it.
package room

import (
	"errors"
	"slices"
	"sync"
)

// MaxSeats is the number of seats in every room.
const MaxSeats = 2

// PlayerID identifies a participant for the lifetime of one transport session.
// It is issued by the session layer and never derived from transport objects.
type PlayerID string

// Kind names the game a room hosts. Rooms of different kinds never share codes.
type Kind string

// Supported game kinds.
const (
	KindDuel  Kind = "duel"
	KindBoard Kind = "board"
)

var (
	// ErrCapacityExceeded is returned when a third distinct player tries to join.
	ErrCapacityExceeded = errors.New("room is full")
	// ErrUnknownRoom is returned when no room exists for the given kind and code.
	ErrUnknownRoom = errors.New("unknown room")
	// ErrNotSeated is returned when a player acts in a room it does not occupy.
	ErrNotSeated = errors.New("player not seated")
	// ErrUnknownKind is returned when no state factory is registered for a kind.
	ErrUnknownKind = errors.New("unknown game kind")
	// ErrKindMismatch is returned when a room's state is not the type an engine expects.
	ErrKindMismatch = errors.New("room state kind mismatch")
)

// State is the game-specific state hosted by a room.
type State interface {
	// Vacate drops every piece of pending state held for id.
	// It is called with the room locked, after id has lost its seat.
	Vacate(id PlayerID)
}

// Factory builds the initial State for a newly created room.
type Factory func() State

// Room is one rendezvous point: an ordered seat list and the game state.
//
// Invariant: len(seats) <= MaxSeats.
// Invariant: a Room reachable from the Registry has at least one seat, except
// transiently while its creating Join holds the lock.
type Room struct {
	Kind Kind
	Code string

	mu      sync.Mutex
	seats   []PlayerID
	state   State
	removed bool
}

// Seats returns a copy of the ordered seat list.
//
// Precondition: the caller holds the room (inside Registry.Do, Join, or Leave).
func (r *Room) Seats() []PlayerID {
	return slices.Clone(r.seats)
}

// SeatOf returns the seat index held by id.
//
// Postcondition: Returns (index, true) if id is seated, or (-1, false).
func (r *Room) SeatOf(id PlayerID) (int, bool) {
	idx := slices.Index(r.seats, id)
	return idx, idx >= 0
}

// Opponent returns the occupant of the other seat.
//
// Postcondition: Returns ("", false) when the room has no other occupant.
func (r *Room) Opponent(id PlayerID) (PlayerID, bool) {
	for _, s := range r.seats {
		if s != id {
			return s, true
		}
	}
	return "", false
}

// Full reports whether every seat is taken.
func (r *Room) Full() bool {
	return len(r.seats) >= MaxSeats
}

// State returns the game state hosted by the room.
func (r *Room) State() State {
	return r.state
}
