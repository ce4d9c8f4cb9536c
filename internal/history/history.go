// Package history records finished duel rounds and board games. Recording is
// asynchronous: game operations hand a Match to the Recorder and never wait
// on the Store.
package history

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/cory-johannsen/arena/internal/game/room"
)

// ErrQueueFull is returned by Record when the buffer has no room.
var ErrQueueFull = errors.New("history queue full")

// ErrStopped is returned by Record after Stop.
var ErrStopped = errors.New("history recorder stopped")

// Match is one finished duel round or board game.
type Match struct {
	Kind room.Kind
	Code string
	// Round is the duel round number; zero for board games.
	Round   uint64
	Players []room.PlayerID
	// Winner is empty on a draw.
	Winner room.PlayerID
	// Detail is a short kind-specific summary, e.g. "Rock/Scissors" or the winning line.
	Detail     string
	FinishedAt time.Time
}

// Draw reports whether the match ended without a winner.
func (m Match) Draw() bool {
	return m.Winner == ""
}

// Store persists finished matches.
type Store interface {
	SaveMatch(ctx context.Context, m Match) error
}

// NopStore discards every match. Used when persistence is disabled.
type NopStore struct{}

// SaveMatch implements Store.
func (NopStore) SaveMatch(context.Context, Match) error { return nil }

// Recorder drains a bounded queue of matches into a Store on one goroutine.
// It implements server.Service.
type Recorder struct {
	store        Store
	logger       *zap.Logger
	writeTimeout time.Duration
	queue        chan Match

	mu      sync.RWMutex
	started bool
	stopped bool
	done    chan struct{}
	ctx     context.Context
	cancel  context.CancelFunc
}

// NewRecorder creates a Recorder that buffers up to queueSize matches.
//
// Precondition: store and logger must be non-nil; queueSize >= 1.
func NewRecorder(store Store, queueSize int, writeTimeout time.Duration, logger *zap.Logger) *Recorder {
	if queueSize < 1 {
		queueSize = 1
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Recorder{
		store:        store,
		logger:       logger,
		writeTimeout: writeTimeout,
		queue:        make(chan Match, queueSize),
		done:         make(chan struct{}),
		ctx:          ctx,
		cancel:       cancel,
	}
}

// Record enqueues m without blocking.
//
// Postcondition: Returns ErrQueueFull or ErrStopped when m was dropped.
func (r *Recorder) Record(m Match) error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.stopped {
		return ErrStopped
	}
	if m.FinishedAt.IsZero() {
		m.FinishedAt = time.Now().UTC()
	}
	select {
	case r.queue <- m:
		return nil
	default:
		r.logger.Warn("dropping match, history queue full",
			append(roomFields(m), zap.Int("capacity", cap(r.queue)))...)
		return ErrQueueFull
	}
}

// Start writes queued matches until Stop is called, then flushes what is left.
func (r *Recorder) Start() error {
	r.mu.Lock()
	r.started = true
	r.mu.Unlock()
	defer close(r.done)
	for m := range r.queue {
		r.save(m)
	}
	return nil
}

// Stop closes the queue and, when Start is running, waits for it to flush.
func (r *Recorder) Stop() {
	r.mu.Lock()
	if r.stopped {
		r.mu.Unlock()
		return
	}
	r.stopped = true
	started := r.started
	close(r.queue)
	r.mu.Unlock()
	if started {
		<-r.done
	}
	r.cancel()
}

func (r *Recorder) running() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.started
}

func (r *Recorder) save(m Match) {
	ctx := r.ctx
	if r.writeTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.writeTimeout)
		defer cancel()
	}
	if err := r.store.SaveMatch(ctx, m); err != nil {
		r.logger.Error("saving match", append(roomFields(m), zap.Error(err))...)
		return
	}
	r.logger.Debug("match saved", append(roomFields(m), zap.String("winner", string(m.Winner)))...)
}

func roomFields(m Match) []zap.Field {
	return []zap.Field{zap.String("kind", string(m.Kind)), zap.String("room", m.Code)}
}
