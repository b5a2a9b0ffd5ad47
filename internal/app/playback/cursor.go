package playback

import (
	"io"

	"github.com/osa030/19cast/internal/domain/track"
)

// TrackFile is an opened track readable at arbitrary offsets.
type TrackFile interface {
	io.ReaderAt
	io.Closer
	Info() track.Track
}

// Cursor is the read position within the currently open track.
// The zero value holds no track.
type Cursor struct {
	file   TrackFile
	info   track.Track
	offset int64
	gen    uint64 // Incremented on every Open to spot stale reads
}

// Open makes f the current track at offset 0.
func (c *Cursor) Open(f TrackFile) {
	c.file = f
	c.info = f.Info()
	c.offset = 0
	c.gen++
}

// Active reports whether a track is open.
func (c *Cursor) Active() bool {
	return c.file != nil
}

// Track returns the open track, or the zero Track.
func (c *Cursor) Track() track.Track {
	return c.info
}

// Offset returns the number of bytes delivered from the open track.
func (c *Cursor) Offset() int64 {
	return c.offset
}

// Generation identifies the currently opened track.
func (c *Cursor) Generation() uint64 {
	return c.gen
}

// Advance moves the offset forward by n bytes.
func (c *Cursor) Advance(n int) {
	c.offset += int64(n)
}

// Close releases the open track. It is a no-op when nothing is open.
func (c *Cursor) Close() error {
	if c.file == nil {
		return nil
	}
	err := c.file.Close()
	c.file = nil
	c.info = track.Track{}
	c.offset = 0
	return err
}
