// Package netctl serves the control protocol over TCP.
package netctl

import (
	"context"
	"net"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/19cast/internal/app/control"
)

// Config holds control server configuration.
type Config struct {
	Addr         string
	MaxLineBytes int
	WriteTimeout time.Duration
}

// Server accepts control connections and runs one session per connection.
type Server struct {
	config     Config
	dispatcher *control.Dispatcher

	mu       sync.Mutex
	listener net.Listener
	conns    map[net.Conn]struct{}
	wg       sync.WaitGroup
}

// NewServer creates a control server dispatching to player.
func NewServer(config Config, player control.Player) *Server {
	return &Server{
		config:     config,
		dispatcher: control.NewDispatcher(player),
		conns:      make(map[net.Conn]struct{}),
	}
}

// Listen binds the configured address.
func (s *Server) Listen() error {
	ln, err := net.Listen("tcp", s.config.Addr)
	if err != nil {
		return errors.Wrapf(err, "listen control on %s", s.config.Addr)
	}
	s.mu.Lock()
	s.listener = ln
	s.mu.Unlock()
	return nil
}

// Addr returns the bound address, or nil before Listen.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Serve accepts connections until ctx is cancelled, then closes every
// open session and waits for them to finish.
func (s *Server) Serve(ctx context.Context) error {
	if s.Addr() == nil {
		if err := s.Listen(); err != nil {
			return err
		}
	}
	s.mu.Lock()
	ln := s.listener
	s.mu.Unlock()

	go func() {
		<-ctx.Done()
		_ = ln.Close()
	}()

	zlog.Info().Msgf("netctl: control server listening: addr=%s", ln.Addr())
	defer s.wg.Wait()
	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				s.closeAll()
				return nil
			}
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				zlog.Warn().Err(err).Msg("netctl: accept timeout")
				continue
			}
			s.closeAll()
			return errors.Wrap(err, "accept control connection")
		}
		s.track(conn, true)

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			defer s.track(conn, false)
			zlog.Info().Msgf("netctl: control client connected: remote=%s", conn.RemoteAddr())

			session := control.NewSession(conn, s.dispatcher, control.SessionConfig{
				MaxLineBytes: s.config.MaxLineBytes,
				WriteTimeout: s.config.WriteTimeout,
			})
			if err := session.Serve(ctx); err != nil {
				zlog.Warn().Err(err).Msgf("netctl: control session ended with error: remote=%s", conn.RemoteAddr())
			}
			zlog.Info().Msgf("netctl: control client disconnected: remote=%s", conn.RemoteAddr())
		}()
	}
}

func (s *Server) track(conn net.Conn, add bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if add {
		s.conns[conn] = struct{}{}
	} else {
		delete(s.conns, conn)
	}
}

func (s *Server) closeAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for conn := range s.conns {
		_ = conn.Close()
	}
}
