package listener

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewSession(t *testing.T) {
	tests := []struct {
		name       string
		id         string
		remoteAddr string
		userAgent  string
		transport  Transport
	}{
		{
			name:       "http listener",
			id:         "listener-1",
			remoteAddr: "127.0.0.1:50000",
			userAgent:  "VLC/3.0.20",
			transport:  TransportHTTP,
		},
		{
			name:       "websocket listener",
			id:         "listener-2",
			remoteAddr: "10.0.0.2:40000",
			userAgent:  "",
			transport:  TransportWebSocket,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			session := NewSession(tt.id, tt.remoteAddr, tt.userAgent, tt.transport)

			assert.Equal(t, tt.id, session.ID)
			assert.Equal(t, tt.remoteAddr, session.RemoteAddr)
			assert.Equal(t, tt.userAgent, session.UserAgent)
			assert.Equal(t, tt.transport, session.Transport)
			assert.False(t, session.JoinedAt.IsZero())
			assert.Equal(t, 0, session.ChunksSent)
			assert.Equal(t, 0, session.ChunksDropped)
			assert.Equal(t, int64(0), session.BytesSent)
		})
	}
}

func TestSession_Counters(t *testing.T) {
	session := NewSession("listener-1", "127.0.0.1:1", "", TransportHTTP)

	session.RecordSent(4096)
	session.RecordSent(100)
	session.RecordDropped()

	assert.Equal(t, 2, session.ChunksSent)
	assert.Equal(t, 1, session.ChunksDropped)
	assert.Equal(t, int64(4196), session.BytesSent)
	assert.InDelta(t, 1.0/3.0, session.DropRatio(), 0.0001)
}

func TestSession_DropRatioEmpty(t *testing.T) {
	session := NewSession("listener-1", "127.0.0.1:1", "", TransportHTTP)
	assert.Equal(t, 0.0, session.DropRatio())
}
