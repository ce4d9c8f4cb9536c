package session

import (
	"fmt"
	"sync"

	"github.com/cory-johannsen/arena/internal/game/room"
)

// Outbox buffers encoded outbound messages for one participant. The
// transport's writer goroutine drains Messages; game code only ever Pushes.
type Outbox struct {
	id       room.PlayerID
	messages chan []byte
	mu       sync.Mutex
	closed   bool
}

// NewOutbox creates an Outbox for the given player.
//
// Precondition: id must be non-empty.
// Postcondition: Returns an Outbox with an open channel of at least one slot.
func NewOutbox(id room.PlayerID, bufferSize int) *Outbox {
	if bufferSize <= 0 {
		bufferSize = 64
	}
	return &Outbox{
		id:       id,
		messages: make(chan []byte, bufferSize),
	}
}

// Push enqueues data without blocking.
//
// Postcondition: data is enqueued, or an error is returned if the outbox is closed or full.
func (o *Outbox) Push(data []byte) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.closed {
		return fmt.Errorf("outbox %s is closed", o.id)
	}
	select {
	case o.messages <- data:
		return nil
	default:
		return fmt.Errorf("outbox %s buffer full", o.id)
	}
}

// Messages returns the read-only message channel. It is closed by Close.
func (o *Outbox) Messages() <-chan []byte {
	return o.messages
}

// Close marks the outbox closed and closes the message channel.
//
// Postcondition: Further Push calls return an error. Safe to call more than once.
func (o *Outbox) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if !o.closed {
		o.closed = true
		close(o.messages)
	}
	return nil
}

// IsClosed reports whether the outbox has been closed.
func (o *Outbox) IsClosed() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.closed
}
