package websocket

import (
	"context"
	stderrors "errors"
	"io"
	"log/slog"
	"math"
	"net/http"
	"sync"
	"time"
	"whirl/auth"
	"whirl/contract"
	"whirl/errors"
	"whirl/runtime"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"
)

// IDispatcher is the protocol core seen from the transport.
type IDispatcher interface {
	Accept(peer contract.Peer, sessionToken string) *runtime.Connection
	HandleFrame(ctx context.Context, conn *runtime.Connection, data []byte)
	Reject(ctx context.Context, conn *runtime.Connection, err error)
	Disconnect(conn *runtime.Connection)
}

type Config struct {
	AllowedOrigins     []string
	SessionCookie      string
	SendBufferSize     int
	MaxFrameSize       int64
	RateLimitPerSecond float64
	RateLimitBurst     int
	PongWait           time.Duration
	WriteWait          time.Duration
}

func (c Config) withDefaults() Config {
	if c.SendBufferSize <= 0 {
		c.SendBufferSize = 256
	}
	if c.MaxFrameSize <= 0 {
		c.MaxFrameSize = 8192
	}
	if c.RateLimitBurst <= 0 {
		c.RateLimitBurst = 1
	}
	if c.PongWait <= 0 {
		c.PongWait = 60 * time.Second
	}
	if c.WriteWait <= 0 {
		c.WriteWait = 10 * time.Second
	}
	return c
}

// Handler upgrades HTTP requests to websocket connections and pumps
// frames between the socket and the dispatcher.
type Handler struct {
	log        *slog.Logger
	dispatcher IDispatcher
	cfg        Config
	upgrader   websocket.Upgrader

	mu       sync.Mutex
	draining bool
	wg       sync.WaitGroup
}

func NewHandler(log *slog.Logger, dispatcher IDispatcher, cfg Config) *Handler {
	cfg = cfg.withDefaults()
	origins := newOriginPolicy(log, cfg.AllowedOrigins)
	return &Handler{
		log:        log,
		dispatcher: dispatcher,
		cfg:        cfg,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     origins.check,
		},
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !h.track() {
		http.Error(w, "server is shutting down", http.StatusServiceUnavailable)
		return
	}
	defer h.wg.Done()

	// The cookie must be read before the connection is hijacked.
	token := auth.SessionToken(r, h.cfg.SessionCookie)

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already answered the request.
		h.log.Debug("Websocket upgrade failed", "addr", r.RemoteAddr, "error", err)
		return
	}
	conn.SetReadLimit(h.cfg.MaxFrameSize)

	peer := newPeer(conn, h.log, r.RemoteAddr, h.cfg)
	connection := h.dispatcher.Accept(peer, token)
	h.log.Debug("Websocket accepted", "id", connection.ID, "addr", peer.RemoteAddr())

	// Safe while Wait is blocked: this request already holds a slot.
	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		peer.writePump()
	}()
	h.readPump(context.WithoutCancel(r.Context()), peer, connection)
}

// track reserves a slot for one request, unless Wait has been called.
func (h *Handler) track() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.draining {
		return false
	}
	h.wg.Add(1)
	return true
}

// Wait refuses new upgrades, then blocks until every pump has returned
// or ctx is done.
func (h *Handler) Wait(ctx context.Context) error {
	h.mu.Lock()
	h.draining = true
	h.mu.Unlock()

	done := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (h *Handler) readPump(ctx context.Context, peer *Peer, conn *runtime.Connection) {
	defer func() {
		h.dispatcher.Disconnect(conn)
		_ = peer.Close()
	}()

	limiter := h.newLimiter()
	h.extendReadDeadline(peer)
	peer.conn.SetPongHandler(func(string) error {
		h.extendReadDeadline(peer)
		return nil
	})

	for {
		_, data, err := peer.conn.ReadMessage()
		if err != nil {
			h.logReadError(peer, err)
			return
		}
		if !limiter.Allow() {
			h.dispatcher.Reject(ctx, conn, errors.ErrRateLimited)
			continue
		}
		h.dispatcher.HandleFrame(ctx, conn, data)
	}
}

func (h *Handler) newLimiter() *rate.Limiter {
	limit := rate.Limit(h.cfg.RateLimitPerSecond)
	if h.cfg.RateLimitPerSecond <= 0 || math.IsInf(h.cfg.RateLimitPerSecond, 1) {
		limit = rate.Inf
	}
	return rate.NewLimiter(limit, h.cfg.RateLimitBurst)
}

func (h *Handler) extendReadDeadline(peer *Peer) {
	if err := peer.conn.SetReadDeadline(time.Now().Add(h.cfg.PongWait)); err != nil {
		h.log.Debug("Error setting read deadline", "addr", peer.addr, "error", err)
	}
}

func (h *Handler) logReadError(peer *Peer, err error) {
	switch {
	case stderrors.Is(err, websocket.ErrReadLimit):
		h.log.Info("Frame exceeded maximum size", "addr", peer.addr, "limit", h.cfg.MaxFrameSize)
	case websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived, websocket.CloseAbnormalClosure):
		h.log.Debug("Client disconnected", "addr", peer.addr)
	case stderrors.Is(err, io.EOF) || isExpectedCloseError(err):
		h.log.Debug("Connection closed", "addr", peer.addr, "error", err)
	default:
		h.log.Info("Websocket read error", "addr", peer.addr, "error", err)
	}
}
