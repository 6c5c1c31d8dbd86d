package runtime

import (
	"sync"
	"whirl/contract"
	"whirl/domain"

	"github.com/google/uuid"
)

// Connection is one live session. It is owned by the ConnectionRegistry;
// everything else only holds the pointer as a handle.
type Connection struct {
	ID      uuid.UUID
	peer    contract.Peer
	session string

	mu       sync.RWMutex
	identity *domain.Identity

	cleanup sync.Once
}

func newConnection(peer contract.Peer, sessionToken string) *Connection {
	return &Connection{
		ID:      uuid.New(),
		peer:    peer,
		session: sessionToken,
	}
}

// Identity returns the bound account, if the connection authenticated.
func (c *Connection) Identity() (domain.Identity, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.identity == nil {
		return domain.Identity{}, false
	}
	return *c.identity, true
}

// Name is the display name, empty until authenticated.
func (c *Connection) Name() string {
	identity, _ := c.Identity()
	return identity.Username
}

func (c *Connection) Authenticated() bool {
	_, ok := c.Identity()
	return ok
}

// SessionToken is the session credential presented when the transport was accepted.
func (c *Connection) SessionToken() string {
	return c.session
}

func (c *Connection) RemoteAddr() string {
	if c.peer == nil {
		return ""
	}
	return c.peer.RemoteAddr()
}

// bind sets the identity once. Callers hold the registry lock.
func (c *Connection) bind(identity domain.Identity) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.identity != nil {
		return false
	}
	c.identity = &identity
	return true
}
