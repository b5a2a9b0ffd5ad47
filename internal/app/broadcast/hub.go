// Package broadcast provides the live fan-out of audio chunks to listeners.
package broadcast

import (
	"sort"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/19cast/internal/domain/listener"
)

// member pairs a sink with its listener bookkeeping.
type member struct {
	sink    Sink
	session *listener.Session
}

// Stats summarises one fan-out.
type Stats struct {
	Delivered int // Sinks that accepted the chunk
	Dropped   int // Sinks skipped because they were congested
	Evicted   int // Sinks removed after a write failure
}

// Hub holds the set of connected sinks and performs lossy fan-out.
// A Hub is not safe for concurrent use: the playback scheduler owns it and
// is the only goroutine that touches it.
type Hub struct {
	members map[string]*member
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{
		members: make(map[string]*member),
	}
}

// Add registers a sink. A nil session gets a placeholder entry.
func (h *Hub) Add(sink Sink, session *listener.Session) {
	if session == nil {
		session = listener.NewSession(sink.ID(), "", "", "")
	}
	h.members[sink.ID()] = &member{sink: sink, session: session}
}

// Remove unregisters a sink and reports whether it was present.
func (h *Hub) Remove(id string) bool {
	if _, ok := h.members[id]; !ok {
		return false
	}
	delete(h.members, id)
	return true
}

// Broadcast writes chunk to every sink that is not congested.
// Congested sinks skip this chunk and stay registered; sinks whose
// write fails are removed.
func (h *Hub) Broadcast(chunk []byte) Stats {
	var stats Stats
	for id, m := range h.members {
		if m.sink.Congested() {
			m.session.RecordDropped()
			stats.Dropped++
			continue
		}

		err := m.sink.Write(chunk)
		switch {
		case err == nil:
			m.session.RecordSent(len(chunk))
			stats.Delivered++
		case errors.Is(err, ErrSinkFull):
			// Filled up between the check and the write.
			m.session.RecordDropped()
			stats.Dropped++
		default:
			zlog.Debug().Msgf("broadcast: evicting sink: id=%s err=%v", id, err)
			delete(h.members, id)
			stats.Evicted++
		}
	}
	return stats
}

// Len returns the number of registered sinks.
func (h *Hub) Len() int {
	return len(h.members)
}

// Contains reports whether a sink is registered.
func (h *Hub) Contains(id string) bool {
	_, ok := h.members[id]
	return ok
}

// Listeners returns copies of the listener sessions ordered by join time.
func (h *Hub) Listeners() []listener.Session {
	result := make([]listener.Session, 0, len(h.members))
	for _, m := range h.members {
		result = append(result, *m.session)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].JoinedAt.Before(result[j].JoinedAt)
	})
	return result
}
