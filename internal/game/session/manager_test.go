package session

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/cory-johannsen/arena/internal/game/room"
)

func TestOutbox_Push(t *testing.T) {
	o := NewOutbox("test", 4)
	require.NoError(t, o.Push([]byte("hello")))

	data := <-o.Messages()
	assert.Equal(t, []byte("hello"), data)
}

func TestOutbox_PushClosed(t *testing.T) {
	o := NewOutbox("test", 4)
	require.NoError(t, o.Close())
	assert.True(t, o.IsClosed())
	assert.Error(t, o.Push([]byte("fail")))
}

func TestOutbox_PushFull(t *testing.T) {
	o := NewOutbox("test", 1)
	require.NoError(t, o.Push([]byte("first")))
	err := o.Push([]byte("overflow"))
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "buffer full")
}

func TestOutbox_CloseIdempotent(t *testing.T) {
	o := NewOutbox("test", 4)
	require.NoError(t, o.Close())
	require.NoError(t, o.Close())
	assert.True(t, o.IsClosed())
}

func TestManager_OpenIssuesDistinctIDs(t *testing.T) {
	m := NewManager(Options{OutboxSize: 8})
	a := m.Open("10.0.0.1:1", "websocket")
	b := m.Open("10.0.0.1:1", "websocket")
	assert.NotEmpty(t, a.ID)
	assert.NotEqual(t, a.ID, b.ID)
	assert.Equal(t, 2, m.Count())

	got, ok := m.Get(a.ID)
	require.True(t, ok)
	assert.Same(t, a, got)
}

func TestManager_MembershipsAndCurrent(t *testing.T) {
	m := NewManager(Options{})
	s := m.Open("addr", "telnet")

	require.NoError(t, m.Join(s.ID, room.KindDuel, "b"))
	require.NoError(t, m.Join(s.ID, room.KindDuel, "a"))
	require.NoError(t, m.Join(s.ID, room.KindBoard, "z"))

	cur, ok := m.Current(s.ID, room.KindDuel)
	require.True(t, ok)
	assert.Equal(t, "a", cur)

	assert.Equal(t, []Membership{
		{Kind: room.KindBoard, Code: "z"},
		{Kind: room.KindDuel, Code: "a"},
		{Kind: room.KindDuel, Code: "b"},
	}, m.Memberships(s.ID))

	m.Leave(s.ID, room.KindDuel, "b")
	cur, ok = m.Current(s.ID, room.KindDuel)
	require.True(t, ok, "leaving a non-current room keeps the current one")
	assert.Equal(t, "a", cur)

	m.Leave(s.ID, room.KindDuel, "a")
	_, ok = m.Current(s.ID, room.KindDuel)
	assert.False(t, ok)
}

func TestManager_JoinUnknownSession(t *testing.T) {
	m := NewManager(Options{})
	assert.Error(t, m.Join("ghost", room.KindDuel, "a"))
}

func TestManager_CloseReturnsMemberships(t *testing.T) {
	m := NewManager(Options{})
	s := m.Open("addr", "websocket")
	require.NoError(t, m.Join(s.ID, room.KindBoard, "r"))

	held, err := m.Close(s.ID)
	require.NoError(t, err)
	assert.Equal(t, []Membership{{Kind: room.KindBoard, Code: "r"}}, held)
	assert.True(t, s.Outbox.IsClosed())
	assert.Equal(t, 0, m.Count())

	_, err = m.Close(s.ID)
	assert.Error(t, err)
}

func TestSession_RateLimit(t *testing.T) {
	m := NewManager(Options{RateLimit: 0.001, RateBurst: 2})
	s := m.Open("addr", "websocket")
	assert.True(t, s.Allow())
	assert.True(t, s.Allow())
	assert.False(t, s.Allow())

	unlimited := NewManager(Options{}).Open("addr", "websocket")
	for i := 0; i < 100; i++ {
		require.True(t, unlimited.Allow())
	}
}

func TestManager_ConcurrentOpenClose(t *testing.T) {
	m := NewManager(Options{})
	const n = 100
	ids := make(chan room.PlayerID, n)
	var wg sync.WaitGroup

	wg.Add(n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			s := m.Open("addr", "websocket")
			_ = m.Join(s.ID, room.KindDuel, "shared")
			ids <- s.ID
		}()
	}
	wg.Wait()
	close(ids)
	assert.Equal(t, n, m.Count())

	wg.Add(n)
	for id := range ids {
		go func(id room.PlayerID) {
			defer wg.Done()
			_, _ = m.Close(id)
		}(id)
	}
	wg.Wait()
	assert.Equal(t, 0, m.Count())
}

func TestPropertyCurrentIsAlwaysAMembership(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		m := NewManager(Options{})
		s := m.Open("addr", "websocket")
		codes := []string{"a", "b", "c"}
		kinds := []room.Kind{room.KindDuel, room.KindBoard}
		steps := rapid.IntRange(1, 40).Draw(t, "steps")
		for i := 0; i < steps; i++ {
			k := rapid.SampledFrom(kinds).Draw(t, "kind")
			c := rapid.SampledFrom(codes).Draw(t, "code")
			if rapid.Bool().Draw(t, "join") {
				_ = m.Join(s.ID, k, c)
			} else {
				m.Leave(s.ID, k, c)
			}
			for _, kind := range kinds {
				cur, ok := m.Current(s.ID, kind)
				if !ok {
					continue
				}
				found := false
				for _, ms := range m.Memberships(s.ID) {
					if ms.Kind == kind && ms.Code == cur {
						found = true
					}
				}
				if !found {
					t.Fatalf("current %s room %q is not a membership", kind, cur)
				}
			}
		}
	})
}
