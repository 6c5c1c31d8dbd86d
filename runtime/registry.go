package runtime

import (
	stderrors "errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"whirl/contract"
	"whirl/domain"
	"whirl/errors"

	"github.com/google/uuid"
	"github.com/samber/lo"
)

// ConnectionRegistry tracks every live connection and which display name
// each authenticated one answers to.
type ConnectionRegistry struct {
	mu          sync.RWMutex
	log         *slog.Logger
	metrics     contract.IMetrics
	connections map[uuid.UUID]*Connection // all live connections
	byName      map[string]*Connection    // authenticated connections only
}

func NewConnectionRegistry(log *slog.Logger, metrics contract.IMetrics) *ConnectionRegistry {
	return &ConnectionRegistry{
		log:         log,
		metrics:     metrics,
		connections: make(map[uuid.UUID]*Connection),
		byName:      make(map[string]*Connection),
	}
}

// Register adds a freshly accepted transport as an unauthenticated connection.
func (r *ConnectionRegistry) Register(peer contract.Peer, sessionToken string) *Connection {
	conn := newConnection(peer, sessionToken)

	r.mu.Lock()
	r.connections[conn.ID] = conn
	total := len(r.connections)
	r.mu.Unlock()

	r.log.Debug("Connection registered", "id", conn.ID, "addr", conn.RemoteAddr(), "total", total)
	return conn
}

// Authenticate binds identity to conn, making it addressable by name.
// A name already bound to another live connection is rejected.
func (r *ConnectionRegistry) Authenticate(conn *Connection, identity domain.Identity) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.connections[conn.ID]; !ok {
		return fmt.Errorf("%w: connection %s is closed", errors.ErrPeerUnreachable, conn.ID)
	}
	if conn.Authenticated() {
		return errors.ErrAlreadyLoggedIn
	}
	if _, taken := r.byName[identity.Username]; taken {
		return errors.ErrNameTaken
	}
	if !conn.bind(identity) {
		return errors.ErrAlreadyLoggedIn
	}
	r.byName[identity.Username] = conn
	return nil
}

// Deregister removes conn. It reports false when conn was already gone,
// which makes a double close harmless.
func (r *ConnectionRegistry) Deregister(conn *Connection) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.connections[conn.ID]; !ok {
		return false
	}
	delete(r.connections, conn.ID)
	if name := conn.Name(); name != "" && r.byName[name] == conn {
		delete(r.byName, name)
	}
	r.log.Debug("Connection deregistered", "id", conn.ID, "total", len(r.connections))
	return true
}

func (r *ConnectionRegistry) Contains(conn *Connection) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.connections[conn.ID]
	return ok
}

// Len counts live connections, authenticated or not.
func (r *ConnectionRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.connections)
}

// ListAuthenticated returns the sorted display names of authenticated connections.
func (r *ConnectionRegistry) ListAuthenticated() []string {
	r.mu.RLock()
	names := lo.Keys(r.byName)
	r.mu.RUnlock()

	slices.Sort(names)
	return names
}

// Authenticated snapshots every authenticated connection except exclude.
func (r *ConnectionRegistry) Authenticated(exclude *Connection) []*Connection {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return lo.Filter(lo.Values(r.byName), func(c *Connection, _ int) bool {
		return c != exclude
	})
}

// Resolve maps display names to their live connections, skipping names
// that are no longer online.
func (r *ConnectionRegistry) Resolve(names []string) []*Connection {
	r.mu.RLock()
	defer r.mu.RUnlock()

	targets := make([]*Connection, 0, len(names))
	for _, name := range names {
		if conn, ok := r.byName[name]; ok {
			targets = append(targets, conn)
		}
	}
	return targets
}

// Deliver sends one frame to conn, best effort. A dead or saturated peer
// is expected and only counted; anything else is logged but still swallowed
// so the caller's fan-out carries on.
func (r *ConnectionRegistry) Deliver(conn *Connection, frame []byte) {
	if conn.peer == nil {
		return
	}
	err := conn.peer.Send(frame)
	if err == nil {
		return
	}
	r.metrics.DeliveryDropped()
	if stderrors.Is(err, errors.ErrPeerUnreachable) {
		r.log.Debug("Frame dropped", "id", conn.ID, "user", conn.Name(), "reason", err)
		return
	}
	r.log.Error("Unexpected send failure", "id", conn.ID, "user", conn.Name(), "error", err)
}

// Broadcast delivers the same frame to each target.
func (r *ConnectionRegistry) Broadcast(targets []*Connection, frame []byte) {
	for _, conn := range targets {
		r.Deliver(conn, frame)
	}
}

// CloseAll closes every transport, typically on shutdown. The transports'
// own close callbacks perform the protocol cleanup.
func (r *ConnectionRegistry) CloseAll() int {
	r.mu.RLock()
	conns := lo.Values(r.connections)
	r.mu.RUnlock()

	for _, conn := range conns {
		if conn.peer == nil {
			continue
		}
		if err := conn.peer.Close(); err != nil {
			r.log.Debug("Error closing connection", "id", conn.ID, "error", err)
		}
	}
	return len(conns)
}
