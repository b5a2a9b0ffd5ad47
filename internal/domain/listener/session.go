// Package listener provides the listener Session domain entity.
package listener

import "time"

// Transport identifies how a listener receives the broadcast.
type Transport string

const (
	TransportHTTP      Transport = "http"
	TransportWebSocket Transport = "websocket"
)

// Session represents one connected broadcast listener.
type Session struct {
	ID            string    // UUID, equal to the sink ID
	RemoteAddr    string    // Remote address of the connection
	UserAgent     string    // User-Agent header (may be empty)
	Transport     Transport // Delivery transport
	JoinedAt      time.Time // Connection time
	ChunksSent    int       // Chunks handed to the sink
	ChunksDropped int       // Chunks skipped because the sink was congested
	BytesSent     int64     // Bytes handed to the sink
}

// NewSession creates a new listener session.
func NewSession(id, remoteAddr, userAgent string, transport Transport) *Session {
	return &Session{
		ID:         id,
		RemoteAddr: remoteAddr,
		UserAgent:  userAgent,
		Transport:  transport,
		JoinedAt:   time.Now(),
	}
}

// RecordSent counts a chunk delivered to the listener.
func (s *Session) RecordSent(n int) {
	s.ChunksSent++
	s.BytesSent += int64(n)
}

// RecordDropped counts a chunk skipped for the listener.
func (s *Session) RecordDropped() {
	s.ChunksDropped++
}

// DropRatio returns the fraction of chunks that were dropped.
func (s *Session) DropRatio() float64 {
	total := s.ChunksSent + s.ChunksDropped
	if total == 0 {
		return 0
	}
	return float64(s.ChunksDropped) / float64(total)
}
