package discovery

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/hashicorp/mdns"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromEntry(t *testing.T) {
	entry := &mdns.ServiceEntry{
		Name:       "living-room._jukebox._tcp.local.",
		AddrV4:     net.ParseIP("192.168.1.20"),
		Port:       8080,
		InfoFields: []string{"path=/", "control=3000"},
	}

	s := fromEntry(entry)
	assert.Equal(t, "living-room", s.Instance)
	assert.Equal(t, "192.168.1.20", s.Host)
	assert.Equal(t, 8080, s.Port)
	assert.Equal(t, 3000, s.ControlPort)
	assert.Equal(t, "http://192.168.1.20:8080/", s.StreamURL())
}

func TestCollect_CanceledKeepsDraining(t *testing.T) {
	entries := make(chan *mdns.ServiceEntry)
	errCh := make(chan error, 1)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	servers, err := collect(ctx, entries, errCh)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, servers)

	// Late responses must not block the sender
	sent := make(chan struct{})
	go func() {
		defer close(sent)
		for i := 0; i < 3; i++ {
			entries <- &mdns.ServiceEntry{Name: "late._jukebox._tcp.local.", AddrV4: net.ParseIP("10.0.0.1")}
		}
		close(entries)
	}()

	select {
	case <-sent:
	case <-time.After(2 * time.Second):
		require.FailNow(t, "query goroutine blocked after cancel")
	}
}

func TestCollect_SkipsEntriesWithoutIPv4(t *testing.T) {
	entries := make(chan *mdns.ServiceEntry, 2)
	errCh := make(chan error, 1)
	entries <- &mdns.ServiceEntry{Name: "v6._jukebox._tcp.local."}
	entries <- &mdns.ServiceEntry{Name: "kitchen._jukebox._tcp.local.", AddrV4: net.ParseIP("10.0.0.2"), Port: 8080}
	close(entries)
	errCh <- nil

	servers, err := collect(context.Background(), entries, errCh)
	require.NoError(t, err)
	require.Len(t, servers, 1)
	assert.Equal(t, "kitchen", servers[0].Instance)
}
