// Package ws is the session gateway: it authenticates WebSocket
// connections and pumps commands and events between them and the dispatcher.
package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"planning-poker/auth"
	"planning-poker/contract"
	"planning-poker/domain"
	"planning-poker/domain/event"
	"planning-poker/errors"
	"planning-poker/sink"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// Authenticator turns a session token into the profile of its user.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (domain.Profile, error)
}

type Config struct {
	BufferSize      int
	PingInterval    time.Duration
	WriteTimeout    time.Duration
	SinkTimeout     time.Duration
	MaxMessageBytes int64
}

type Gateway struct {
	auth       Authenticator
	dispatcher contract.IDispatcher
	upgrader   websocket.Upgrader
	log        *slog.Logger
	config     Config
	now        func() time.Time

	mu       sync.Mutex
	conns    map[string]*websocket.Conn
	live     sync.WaitGroup
	draining bool
}

func NewGateway(authenticator Authenticator, dispatcher contract.IDispatcher, log *slog.Logger, config Config) *Gateway {
	if config.MaxMessageBytes == 0 {
		config.MaxMessageBytes = 16 << 10
	}
	if config.PingInterval <= 0 {
		config.PingInterval = 15 * time.Second
	}
	if config.WriteTimeout <= 0 {
		config.WriteTimeout = 10 * time.Second
	}
	if config.SinkTimeout <= 0 {
		config.SinkTimeout = time.Second
	}
	if config.BufferSize <= 0 {
		config.BufferSize = 64
	}
	return &Gateway{
		auth:       authenticator,
		dispatcher: dispatcher,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		log:    log,
		config: config,
		now:    time.Now,
		conns:  make(map[string]*websocket.Conn),
	}
}

// ServeHTTP upgrades authenticated requests only; anything else gets a 401
// and never reaches command handling.
func (g *Gateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	token := auth.ExtractToken(r)
	if token == "" {
		writeUnauthorized(w, errors.ErrUnauthenticated)
		return
	}
	profile, err := g.auth.Authenticate(r.Context(), token)
	if err != nil {
		writeUnauthorized(w, err)
		return
	}

	conn, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		g.log.Warn("Could not upgrade to WebSocket", "user_id", profile.UserID, "error", err)
		return
	}

	connSink := sink.NewConnectionSink(g.config.BufferSize)
	session := contract.Session{ID: uuid.NewString(), User: profile, Sink: connSink}
	if !g.track(session.ID, conn) {
		_ = conn.Close()
		return
	}
	defer g.live.Done()
	g.log.Info("Connection opened", "session_id", session.ID, "user_id", profile.UserID)

	ctx := context.WithoutCancel(r.Context())
	done := make(chan struct{})
	go func() {
		defer close(done)
		g.writePump(conn, connSink, session.ID)
	}()

	g.readPump(ctx, conn, session, connSink)

	g.dispatcher.Disconnect(ctx, session)
	connSink.Close()
	<-done
	g.untrack(session.ID)
	_ = conn.Close()
	g.log.Info("Connection closed", "session_id", session.ID, "user_id", profile.UserID)
}

// readPump handles frames one at a time so that a connection's commands
// are applied in the order they were sent.
func (g *Gateway) readPump(ctx context.Context, conn *websocket.Conn, session contract.Session, connSink *sink.ConnectionSink) {
	pongWait := 2 * g.config.PingInterval
	conn.SetReadLimit(g.config.MaxMessageBytes)
	_ = conn.SetReadDeadline(g.now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(g.now().Add(pongWait))
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				g.log.Debug("Read failed", "session_id", session.ID, "error", err)
			}
			return
		}
		_ = conn.SetReadDeadline(g.now().Add(pongWait))

		cmd, err := DecodeCommand(data)
		if err != nil {
			g.reject(ctx, connSink, err)
			continue
		}
		g.dispatcher.Dispatch(ctx, session, cmd)
	}
}

func (g *Gateway) writePump(conn *websocket.Conn, connSink *sink.ConnectionSink, sessionID string) {
	ticker := time.NewTicker(g.config.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case e, ok := <-connSink.Events():
			_ = conn.SetWriteDeadline(g.now().Add(g.config.WriteTimeout))
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			data, err := EncodeEvent(e, g.now())
			if err != nil {
				g.log.Error("Event encoding failed", "session_id", sessionID, "event", e.Type(), "error", err)
				continue
			}
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				g.log.Debug("Write failed", "session_id", sessionID, "error", err)
				// unblocks the read pump
				_ = conn.Close()
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(g.now().Add(g.config.WriteTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				_ = conn.Close()
				return
			}
		}
	}
}

func (g *Gateway) reject(ctx context.Context, connSink *sink.ConnectionSink, err error) {
	ctx, cancel := context.WithTimeout(ctx, g.config.SinkTimeout)
	defer cancel()
	_ = connSink.Consume(ctx, event.Error{
		Message:   errors.Message(err),
		Code:      errors.Code(err),
		Retryable: errors.Retryable(err),
	})
}

// track refuses connections once the gateway drains.
func (g *Gateway) track(id string, conn *websocket.Conn) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.draining {
		return false
	}
	g.live.Add(1)
	g.conns[id] = conn
	return true
}

func (g *Gateway) untrack(id string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.conns, id)
}

// CloseAll drops every live connection; their read pumps then run the
// usual disconnect cleanup.
func (g *Gateway) CloseAll() {
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, conn := range g.conns {
		_ = conn.Close()
	}
}

// Drain closes every connection and waits until their disconnect cleanup
// has run, or until ctx is done.
func (g *Gateway) Drain(ctx context.Context) error {
	g.mu.Lock()
	g.draining = true
	g.mu.Unlock()
	g.CloseAll()

	done := make(chan struct{})
	go func() {
		g.live.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Connections is the number of live connections.
func (g *Gateway) Connections() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.conns)
}

func writeUnauthorized(w http.ResponseWriter, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"status": "error",
		"error":  errors.Message(err),
		"code":   errors.Code(err),
	})
}
