// Package stream serves the live broadcast over HTTP and WebSocket.
package stream

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/19cast/internal/app/broadcast"
	"github.com/osa030/19cast/internal/domain/listener"
)

const (
	ContentType         = "audio/mpeg"
	DefaultQueueChunks  = 4
	DefaultWriteTimeout = 5 * time.Second

	pingInterval = 30 * time.Second
)

// Attacher registers broadcast sinks with the scheduler.
type Attacher interface {
	Attach(ctx context.Context, sink broadcast.Sink, session *listener.Session) error
	Detach(id string)
}

// Config holds broadcast transport configuration.
type Config struct {
	QueueChunks  int           // Pending chunks per listener before it counts as congested
	WriteTimeout time.Duration // Deadline for each network write
	WebSocket    bool          // Serve /ws
}

// Handler serves broadcast connections.
type Handler struct {
	config   Config
	attacher Attacher
	upgrader websocket.Upgrader
}

// NewHandler creates a broadcast handler.
func NewHandler(config Config, attacher Attacher) *Handler {
	if config.QueueChunks <= 0 {
		config.QueueChunks = DefaultQueueChunks
	}
	if config.WriteTimeout <= 0 {
		config.WriteTimeout = DefaultWriteTimeout
	}
	return &Handler{
		config:   config,
		attacher: attacher,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

// RegisterRoutes mounts the broadcast endpoints on r.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.serveHTTP)
	if h.config.WebSocket {
		r.Get("/ws", h.serveWebSocket)
	}
}

// NewRouter returns a router serving only the broadcast endpoints.
func NewRouter(h *Handler) *chi.Mux {
	r := chi.NewRouter()
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	h.RegisterRoutes(r)
	return r
}

func (h *Handler) join(ctx context.Context, r *http.Request, transport listener.Transport) (*broadcast.QueueSink, error) {
	id := uuid.NewString()
	sink := broadcast.NewQueueSink(id, h.config.QueueChunks)
	session := listener.NewSession(id, r.RemoteAddr, r.UserAgent(), transport)
	if err := h.attacher.Attach(ctx, sink, session); err != nil {
		sink.Close()
		return nil, err
	}
	zlog.Info().Msgf("stream: listener joined: id=%s transport=%s remote=%s", id, transport, r.RemoteAddr)
	return sink, nil
}

func (h *Handler) leave(sink *broadcast.QueueSink) {
	sink.Close()
	h.attacher.Detach(sink.ID())
	zlog.Info().Msgf("stream: listener left: id=%s", sink.ID())
}

// serveHTTP streams the broadcast as one endless chunked response. While
// playback is paused nothing is written and the connection stays open.
func (h *Handler) serveHTTP(w http.ResponseWriter, r *http.Request) {
	sink, err := h.join(r.Context(), r, listener.TransportHTTP)
	if err != nil {
		zlog.Warn().Err(err).Msg("stream: failed to attach listener")
		http.Error(w, "broadcast unavailable", http.StatusServiceUnavailable)
		return
	}
	defer h.leave(sink)

	w.Header().Set("Content-Type", ContentType)
	w.Header().Set("Cache-Control", "no-cache, no-store")
	w.WriteHeader(http.StatusOK)

	rc := http.NewResponseController(w)
	_ = rc.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-sink.Done():
			return
		case chunk := <-sink.Chunks():
			_ = rc.SetWriteDeadline(time.Now().Add(h.config.WriteTimeout))
			if _, err := w.Write(chunk); err != nil {
				zlog.Debug().Err(err).Msgf("stream: write failed: id=%s", sink.ID())
				return
			}
			if err := rc.Flush(); err != nil {
				zlog.Debug().Err(err).Msgf("stream: flush failed: id=%s", sink.ID())
				return
			}
		}
	}
}

// serveWebSocket streams the broadcast as binary messages.
func (h *Handler) serveWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		zlog.Warn().Err(err).Msg("stream: websocket upgrade failed")
		return
	}
	defer conn.Close()

	sink, err := h.join(r.Context(), r, listener.TransportWebSocket)
	if err != nil {
		zlog.Warn().Err(err).Msg("stream: failed to attach listener")
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseTryAgainLater, "broadcast unavailable"),
			time.Now().Add(time.Second))
		return
	}
	defer h.leave(sink)

	// Incoming messages are ignored; the read loop only detects the close.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					zlog.Debug().Err(err).Msgf("stream: websocket read error: id=%s", sink.ID())
				}
				return
			}
		}
	}()

	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-closed:
			return
		case <-sink.Done():
			return
		case chunk := <-sink.Chunks():
			_ = conn.SetWriteDeadline(time.Now().Add(h.config.WriteTimeout))
			if err := conn.WriteMessage(websocket.BinaryMessage, chunk); err != nil {
				zlog.Debug().Err(err).Msgf("stream: websocket write failed: id=%s", sink.ID())
				return
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(h.config.WriteTimeout)); err != nil {
				return
			}
		}
	}
}
