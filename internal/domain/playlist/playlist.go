// Package playlist provides the Playlist domain entity.
package playlist

// Playlist is a FIFO queue of track names awaiting playback.
// Insertion order is play order and duplicates are kept.
// It is not safe for concurrent use; the scheduler owns it.
type Playlist struct {
	names []string
}

// New creates an empty playlist.
func New() *Playlist {
	return &Playlist{names: make([]string, 0)}
}

// Push appends a track name to the end of the playlist.
func (p *Playlist) Push(name string) {
	p.names = append(p.names, name)
}

// Pop removes and returns the next track name.
func (p *Playlist) Pop() (string, bool) {
	if len(p.names) == 0 {
		return "", false
	}
	name := p.names[0]
	p.names[0] = ""
	p.names = p.names[1:]
	return name, true
}

// Peek returns the next track name without removing it.
func (p *Playlist) Peek() (string, bool) {
	if len(p.names) == 0 {
		return "", false
	}
	return p.names[0], true
}

// Len returns the number of queued tracks.
func (p *Playlist) Len() int {
	return len(p.names)
}

// IsEmpty returns true if nothing is queued.
func (p *Playlist) IsEmpty() bool {
	return len(p.names) == 0
}

// Names returns a copy of the queued track names in play order.
func (p *Playlist) Names() []string {
	result := make([]string, len(p.names))
	copy(result, p.names)
	return result
}
