package broadcast

import (
	"sync"

	"github.com/cockroachdb/errors"
)

var (
	ErrSinkClosed = errors.New("sink closed")
	ErrSinkFull   = errors.New("sink queue full")
)

// Sink is one live broadcast destination.
type Sink interface {
	// ID returns the unique sink ID.
	ID() string
	// Write hands a chunk to the sink without blocking.
	Write(chunk []byte) error
	// Congested reports that the sink cannot accept another chunk right now.
	Congested() bool
}

// QueueSink is a Sink backed by a bounded chunk queue that a connection
// goroutine drains. It is congested while the queue is full.
type QueueSink struct {
	id     string
	chunks chan []byte
	done   chan struct{}
	once   sync.Once
}

// NewQueueSink creates a sink holding at most depth pending chunks.
func NewQueueSink(id string, depth int) *QueueSink {
	if depth < 1 {
		depth = 1
	}
	return &QueueSink{
		id:     id,
		chunks: make(chan []byte, depth),
		done:   make(chan struct{}),
	}
}

// ID returns the sink ID.
func (s *QueueSink) ID() string {
	return s.id
}

// Write enqueues a chunk. It fails with ErrSinkClosed once the connection
// has gone away and with ErrSinkFull if the queue has no room.
func (s *QueueSink) Write(chunk []byte) error {
	select {
	case <-s.done:
		return ErrSinkClosed
	default:
	}

	select {
	case s.chunks <- chunk:
		return nil
	default:
		return ErrSinkFull
	}
}

// Congested reports whether the queue is full.
func (s *QueueSink) Congested() bool {
	return len(s.chunks) >= cap(s.chunks)
}

// Chunks returns the queue for the connection writer.
func (s *QueueSink) Chunks() <-chan []byte {
	return s.chunks
}

// Done is closed once the sink is closed.
func (s *QueueSink) Done() <-chan struct{} {
	return s.done
}

// Close marks the sink closed. Subsequent writes fail.
func (s *QueueSink) Close() {
	s.once.Do(func() {
		close(s.done)
	})
}
