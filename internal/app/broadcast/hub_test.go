package broadcast

import (
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osa030/19cast/internal/domain/listener"
)

// fakeSink records writes and lets tests control congestion and failure.
type fakeSink struct {
	id        string
	congested bool
	failWith  error
	writes    [][]byte
}

func (s *fakeSink) ID() string {
	return s.id
}

func (s *fakeSink) Congested() bool {
	return s.congested
}

func (s *fakeSink) Write(chunk []byte) error {
	if s.failWith != nil {
		return s.failWith
	}
	s.writes = append(s.writes, chunk)
	return nil
}

func TestHub_BroadcastToAll(t *testing.T) {
	hub := NewHub()
	a := &fakeSink{id: "a"}
	b := &fakeSink{id: "b"}
	hub.Add(a, nil)
	hub.Add(b, nil)

	stats := hub.Broadcast([]byte("chunk"))

	assert.Equal(t, Stats{Delivered: 2}, stats)
	assert.Equal(t, [][]byte{[]byte("chunk")}, a.writes)
	assert.Equal(t, [][]byte{[]byte("chunk")}, b.writes)
}

func TestHub_CongestedSinkSkipsChunkButStays(t *testing.T) {
	hub := NewHub()
	slow := &fakeSink{id: "slow", congested: true}
	fast := &fakeSink{id: "fast"}
	hub.Add(slow, listener.NewSession("slow", "", "", listener.TransportHTTP))
	hub.Add(fast, nil)

	stats := hub.Broadcast([]byte("one"))
	assert.Equal(t, 1, stats.Delivered)
	assert.Equal(t, 1, stats.Dropped)
	assert.Empty(t, slow.writes)
	assert.True(t, hub.Contains("slow"), "congestion must not evict")

	// Congestion is per chunk: once drained, the sink receives again.
	slow.congested = false
	hub.Broadcast([]byte("two"))
	assert.Equal(t, [][]byte{[]byte("two")}, slow.writes)

	for _, l := range hub.Listeners() {
		if l.ID == "slow" {
			assert.Equal(t, 1, l.ChunksDropped)
			assert.Equal(t, 1, l.ChunksSent)
		}
	}
}

func TestHub_WriteFailureEvicts(t *testing.T) {
	hub := NewHub()
	broken := &fakeSink{id: "broken", failWith: ErrSinkClosed}
	ok := &fakeSink{id: "ok"}
	hub.Add(broken, nil)
	hub.Add(ok, nil)

	stats := hub.Broadcast([]byte("x"))

	assert.Equal(t, 1, stats.Evicted)
	assert.False(t, hub.Contains("broken"))
	assert.True(t, hub.Contains("ok"))
	assert.Equal(t, 1, hub.Len())
}

func TestHub_FullQueueIsADrop(t *testing.T) {
	hub := NewHub()
	racy := &fakeSink{id: "racy", failWith: errors.Wrap(ErrSinkFull, "raced")}
	hub.Add(racy, nil)

	stats := hub.Broadcast([]byte("x"))

	assert.Equal(t, 1, stats.Dropped)
	assert.True(t, hub.Contains("racy"))
}

func TestHub_Remove(t *testing.T) {
	hub := NewHub()
	hub.Add(&fakeSink{id: "a"}, nil)

	assert.True(t, hub.Remove("a"))
	assert.False(t, hub.Remove("a"))
	assert.Equal(t, 0, hub.Len())
}

func TestQueueSink(t *testing.T) {
	sink := NewQueueSink("s1", 2)
	require.Equal(t, "s1", sink.ID())

	require.NoError(t, sink.Write([]byte("1")))
	assert.False(t, sink.Congested())
	require.NoError(t, sink.Write([]byte("2")))
	assert.True(t, sink.Congested())
	assert.ErrorIs(t, sink.Write([]byte("3")), ErrSinkFull)

	assert.Equal(t, []byte("1"), <-sink.Chunks())
	assert.False(t, sink.Congested())

	sink.Close()
	sink.Close()
	assert.ErrorIs(t, sink.Write([]byte("4")), ErrSinkClosed)

	select {
	case <-sink.Done():
	default:
		t.Fatal("done channel should be closed")
	}
}
