package room

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

// recordingState remembers which players were vacated.
type recordingState struct {
	vacated []PlayerID
}

func (s *recordingState) Vacate(id PlayerID) {
	s.vacated = append(s.vacated, id)
}

func newTestRegistry() *Registry {
	f := func() State { return &recordingState{} }
	return NewRegistry(map[Kind]Factory{KindDuel: f, KindBoard: f})
}

func TestRegistry_JoinCreatesRoom(t *testing.T) {
	g := newTestRegistry()
	res, err := g.Join(KindDuel, "abc", "p1", nil)
	require.NoError(t, err)
	assert.True(t, res.Created)
	assert.True(t, res.Added)
	assert.Equal(t, 0, res.Seat)
	assert.Equal(t, []PlayerID{"p1"}, res.Seats)
	assert.True(t, g.Exists(KindDuel, "abc"))
	assert.False(t, g.Exists(KindBoard, "abc"))
}

func TestRegistry_JoinIsIdempotent(t *testing.T) {
	g := newTestRegistry()
	_, err := g.Join(KindBoard, "abc", "p1", nil)
	require.NoError(t, err)
	res, err := g.Join(KindBoard, "abc", "p1", nil)
	require.NoError(t, err)
	assert.False(t, res.Added)
	assert.False(t, res.Created)
	assert.Equal(t, []PlayerID{"p1"}, res.Seats)
}

func TestRegistry_ThirdJoinExceedsCapacity(t *testing.T) {
	g := newTestRegistry()
	_, err := g.Join(KindDuel, "abc", "p1", nil)
	require.NoError(t, err)
	_, err = g.Join(KindDuel, "abc", "p2", nil)
	require.NoError(t, err)

	called := false
	_, err = g.Join(KindDuel, "abc", "p3", func(*Room, JoinResult) { called = true })
	assert.ErrorIs(t, err, ErrCapacityExceeded)
	assert.False(t, called)

	err = g.Do(KindDuel, "abc", func(r *Room) error {
		assert.Equal(t, []PlayerID{"p1", "p2"}, r.Seats())
		return nil
	})
	require.NoError(t, err)

	// Seated players may still rejoin a full room.
	res, err := g.Join(KindDuel, "abc", "p2", nil)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Seat)
}

func TestRegistry_RoomCodesAreCaseSensitive(t *testing.T) {
	g := newTestRegistry()
	_, err := g.Join(KindDuel, "abc", "p1", nil)
	require.NoError(t, err)
	_, err = g.Join(KindDuel, "ABC", "p2", nil)
	require.NoError(t, err)
	assert.Equal(t, 2, g.Count(KindDuel))
}

func TestRegistry_LeaveVacatesAndReaps(t *testing.T) {
	g := newTestRegistry()
	_, err := g.Join(KindBoard, "abc", "p1", nil)
	require.NoError(t, err)
	_, err = g.Join(KindBoard, "abc", "p2", nil)
	require.NoError(t, err)

	var st *recordingState
	require.NoError(t, g.Do(KindBoard, "abc", func(r *Room) error {
		st = r.State().(*recordingState)
		return nil
	}))

	res, err := g.Leave(KindBoard, "abc", "p1", nil)
	require.NoError(t, err)
	assert.False(t, res.Removed)
	assert.Equal(t, []PlayerID{"p2"}, res.Seats)
	assert.Equal(t, []PlayerID{"p1"}, st.vacated)
	assert.True(t, g.Exists(KindBoard, "abc"))

	res, err = g.Leave(KindBoard, "abc", "p2", nil)
	require.NoError(t, err)
	assert.True(t, res.Removed)
	assert.Empty(t, res.Seats)
	assert.False(t, g.Exists(KindBoard, "abc"))

	// A later join under the same code starts from fresh state.
	_, err = g.Join(KindBoard, "abc", "p1", nil)
	require.NoError(t, err)
	require.NoError(t, g.Do(KindBoard, "abc", func(r *Room) error {
		assert.NotSame(t, st, r.State())
		assert.Empty(t, r.State().(*recordingState).vacated)
		return nil
	}))
}

func TestRegistry_LeaveErrors(t *testing.T) {
	g := newTestRegistry()
	_, err := g.Leave(KindDuel, "nope", "p1", nil)
	assert.ErrorIs(t, err, ErrUnknownRoom)

	_, err = g.Join(KindDuel, "abc", "p1", nil)
	require.NoError(t, err)
	_, err = g.Leave(KindDuel, "abc", "p2", nil)
	assert.ErrorIs(t, err, ErrNotSeated)
}

func TestRegistry_DoUnknownRoom(t *testing.T) {
	g := newTestRegistry()
	called := false
	err := g.Do(KindDuel, "missing", func(*Room) error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, ErrUnknownRoom)
	assert.False(t, called)
}

func TestRegistry_UnknownKind(t *testing.T) {
	g := NewRegistry(map[Kind]Factory{KindDuel: func() State { return &recordingState{} }})
	_, err := g.Join(KindBoard, "abc", "p1", nil)
	assert.ErrorIs(t, err, ErrUnknownKind)
}

func TestRoom_Opponent(t *testing.T) {
	r := &Room{seats: []PlayerID{"a", "b"}}
	opp, ok := r.Opponent("a")
	assert.True(t, ok)
	assert.Equal(t, PlayerID("b"), opp)

	r = &Room{seats: []PlayerID{"a"}}
	_, ok = r.Opponent("a")
	assert.False(t, ok)
}

func TestRegistry_ConcurrentJoinsNeverExceedCapacity(t *testing.T) {
	g := newTestRegistry()
	var wg sync.WaitGroup
	var mu sync.Mutex
	full := 0
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := g.Join(KindDuel, "race", PlayerID(fmt.Sprintf("p%d", i)), nil)
			if err != nil {
				mu.Lock()
				full++
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 30, full)
	require.NoError(t, g.Do(KindDuel, "race", func(r *Room) error {
		assert.Len(t, r.Seats(), MaxSeats)
		return nil
	}))
}

func TestPropertySeatListNeverExceedsCapacity(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		g := newTestRegistry()
		players := []PlayerID{"a", "b", "c", "d"}
		steps := rapid.IntRange(1, 60).Draw(t, "steps")
		for i := 0; i < steps; i++ {
			id := rapid.SampledFrom(players).Draw(t, "player")
			if rapid.Bool().Draw(t, "join") {
				_, _ = g.Join(KindDuel, "r", id, nil)
			} else {
				_, _ = g.Leave(KindDuel, "r", id, nil)
			}
			err := g.Do(KindDuel, "r", func(r *Room) error {
				seats := r.Seats()
				if len(seats) == 0 || len(seats) > MaxSeats {
					t.Fatalf("seat list has %d entries", len(seats))
				}
				if len(seats) == 2 && seats[0] == seats[1] {
					t.Fatalf("duplicate seat %q", seats[0])
				}
				return nil
			})
			if err != nil && g.Exists(KindDuel, "r") {
				t.Fatalf("Do failed on live room: %v", err)
			}
		}
	})
}
