package room

import (
	"fmt"
	"sync"
)

type roomKey struct {
	kind Kind
	code string
}

// JoinResult describes the outcome of a successful Join.
type JoinResult struct {
	// Seat is the index the player occupies.
	Seat int
	// Seats is the ordered seat list after the join.
	Seats []PlayerID
	// Added is false when the player was already seated.
	Added bool
	// Created is true when this join created the room.
	Created bool
}

// LeaveResult describes the outcome of a successful Leave.
type LeaveResult struct {
	// Seats is the ordered seat list after the leave.
	Seats []PlayerID
	// Removed is true when the room was deleted because it became empty.
	Removed bool
}

// Registry owns every Room of every kind.
// The room map has its own lock; each Room is guarded by its own mutex, so
// work in one room never waits on another.
//
// Lock order: Room.mu before Registry.mu. Registry.mu is never held while
// acquiring a Room.mu.
type Registry struct {
	mu        sync.Mutex
	rooms     map[roomKey]*Room
	factories map[Kind]Factory
}

// NewRegistry creates an empty Registry hosting the given game kinds.
//
// Precondition: factories must contain at least one entry; no Factory may be nil.
// Postcondition: Returns a Registry with no rooms.
func NewRegistry(factories map[Kind]Factory) *Registry {
	fs := make(map[Kind]Factory, len(factories))
	for k, f := range factories {
		fs[k] = f
	}
	return &Registry{
		rooms:     make(map[roomKey]*Room),
		factories: fs,
	}
}

// acquire returns the room for (kind, code) locked. When create is true a
// missing room is created with fresh state.
func (g *Registry) acquire(kind Kind, code string, create bool) (*Room, bool, error) {
	k := roomKey{kind: kind, code: code}
	for {
		created := false
		g.mu.Lock()
		r, ok := g.rooms[k]
		if !ok {
			if !create {
				g.mu.Unlock()
				return nil, false, fmt.Errorf("%s room %q: %w", kind, code, ErrUnknownRoom)
			}
			f, ok := g.factories[kind]
			if !ok {
				g.mu.Unlock()
				return nil, false, fmt.Errorf("%q: %w", kind, ErrUnknownKind)
			}
			r = &Room{Kind: kind, Code: code, state: f()}
			g.rooms[k] = r
			created = true
		}
		g.mu.Unlock()

		r.mu.Lock()
		if !r.removed {
			return r, created, nil
		}
		// Reaped between lookup and lock.
		r.mu.Unlock()
		if !create {
			return nil, false, fmt.Errorf("%s room %q: %w", kind, code, ErrUnknownRoom)
		}
	}
}

// reap deletes an empty room. Caller holds r.mu.
func (g *Registry) reap(r *Room) {
	r.removed = true
	k := roomKey{kind: r.Kind, code: r.Code}
	g.mu.Lock()
	if g.rooms[k] == r {
		delete(g.rooms, k)
	}
	g.mu.Unlock()
}

// Join seats id in the room (kind, code), creating the room on first reference.
// then, when non-nil, runs with the room still locked so that any fan-out it
// performs is ordered with respect to other operations on the same room.
//
// Precondition: code must be non-empty.
// Postcondition: On success id is seated and len(seats) <= MaxSeats. Returns
// ErrCapacityExceeded, leaving the room unchanged, when two other players hold the seats.
func (g *Registry) Join(kind Kind, code string, id PlayerID, then func(*Room, JoinResult)) (JoinResult, error) {
	r, created, err := g.acquire(kind, code, true)
	if err != nil {
		return JoinResult{}, err
	}
	defer r.mu.Unlock()

	res := JoinResult{Created: created}
	seat, ok := r.SeatOf(id)
	if !ok {
		if r.Full() {
			return JoinResult{}, fmt.Errorf("%s room %q: %w", kind, code, ErrCapacityExceeded)
		}
		r.seats = append(r.seats, id)
		seat = len(r.seats) - 1
		res.Added = true
	}
	res.Seat = seat
	res.Seats = r.Seats()

	if then != nil {
		then(r, res)
	}
	return res, nil
}

// Leave removes id from the room (kind, code). The room's state is told to
// vacate id, and the room is deleted together with its state when no seat
// remains. then, when non-nil, runs with the room still locked.
//
// Postcondition: id holds no seat in the room. Returns ErrUnknownRoom when the
// room does not exist and ErrNotSeated when id was not seated.
func (g *Registry) Leave(kind Kind, code string, id PlayerID, then func(*Room, LeaveResult)) (LeaveResult, error) {
	r, _, err := g.acquire(kind, code, false)
	if err != nil {
		return LeaveResult{}, err
	}
	defer r.mu.Unlock()

	seat, ok := r.SeatOf(id)
	if !ok {
		return LeaveResult{}, fmt.Errorf("%s room %q: %w", kind, code, ErrNotSeated)
	}
	r.seats = append(r.seats[:seat], r.seats[seat+1:]...)
	r.state.Vacate(id)

	res := LeaveResult{Seats: r.Seats()}
	if len(r.seats) == 0 {
		g.reap(r)
		res.Removed = true
	}

	if then != nil {
		then(r, res)
	}
	return res, nil
}

// Do runs fn with exclusive access to the room (kind, code). The error
// returned by fn is passed through.
//
// Postcondition: Returns ErrUnknownRoom without calling fn when the room does not exist.
func (g *Registry) Do(kind Kind, code string, fn func(*Room) error) error {
	r, _, err := g.acquire(kind, code, false)
	if err != nil {
		return err
	}
	defer r.mu.Unlock()
	return fn(r)
}

// Exists reports whether a room is registered for (kind, code).
func (g *Registry) Exists(kind Kind, code string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, ok := g.rooms[roomKey{kind: kind, code: code}]
	return ok
}

// Count returns the number of live rooms of the given kind.
func (g *Registry) Count(kind Kind) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	n := 0
	for k := range g.rooms {
		if k.kind == kind {
			n++
		}
	}
	return n
}
