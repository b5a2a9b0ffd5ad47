package control

import (
	"context"
	"io"
	"net"
	"time"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"
)

const (
	DefaultReadSize     = 4096
	DefaultMaxLineBytes = 4096
)

// SessionConfig holds per-connection settings.
type SessionConfig struct {
	MaxLineBytes int           // 0 = unlimited
	WriteTimeout time.Duration // 0 = no deadline
	ReadSize     int           // Bytes requested per read
}

// Session is one control connection: a framer feeding a dispatcher.
type Session struct {
	conn       net.Conn
	dispatcher *Dispatcher
	framer     *LineFramer
	config     SessionConfig
}

// NewSession creates a session on conn.
func NewSession(conn net.Conn, dispatcher *Dispatcher, config SessionConfig) *Session {
	if config.ReadSize <= 0 {
		config.ReadSize = DefaultReadSize
	}
	return &Session{
		conn:       conn,
		dispatcher: dispatcher,
		framer:     NewLineFramer(config.MaxLineBytes),
		config:     config,
	}
}

// Serve reads commands until the peer disconnects or ctx is cancelled.
// Lines are dispatched in arrival order, each one completing before the
// next is read. The connection is closed on return.
func (s *Session) Serve(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	defer s.conn.Close()

	go func() {
		<-ctx.Done()
		// Unblocks the pending Read.
		_ = s.conn.SetReadDeadline(time.Now())
	}()

	remote := s.conn.RemoteAddr().String()
	zlog.Debug().Msgf("control: session opened: remote=%s", remote)
	defer zlog.Debug().Msgf("control: session closed: remote=%s", remote)

	buf := make([]byte, s.config.ReadSize)
	for {
		n, err := s.conn.Read(buf)
		if n > 0 {
			s.framer.Feed(buf[:n])
			if werr := s.drain(ctx); werr != nil {
				return werr
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) || ctx.Err() != nil {
				return nil
			}
			return errors.Wrap(err, "read control connection")
		}
	}
}

func (s *Session) drain(ctx context.Context) error {
	for {
		line, ok, err := s.framer.Next()
		if !ok {
			return nil
		}

		var reply string
		if err != nil {
			zlog.Debug().Msgf("control: %v: remote=%s", err, s.conn.RemoteAddr())
			reply = ProtocolReply(err)
		} else {
			reply = s.dispatcher.Dispatch(ctx, line)
		}
		if reply == "" {
			continue
		}
		if err := s.write(reply); err != nil {
			return err
		}
	}
}

func (s *Session) write(reply string) error {
	if s.config.WriteTimeout > 0 {
		if err := s.conn.SetWriteDeadline(time.Now().Add(s.config.WriteTimeout)); err != nil {
			return errors.Wrap(err, "set write deadline")
		}
	}
	if _, err := io.WriteString(s.conn, reply); err != nil {
		return errors.Wrap(err, "write control reply")
	}
	return nil
}
