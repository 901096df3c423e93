// Package presence tracks which identities currently have at least one
// live connection. The registry is an injected instance, never a
// package global, so it can be swapped for a shared store later
// without touching call sites.
package presence

import (
	"sort"
	"sync"

	"github.com/arotu/chat-server/internal/metrics"
)

// Conn is a live connection handle as seen by the registry. Connection
// IDs are process-unique; a handle is registered under at most one
// identity at a time.
type Conn interface {
	ConnID() string
}

// Registry maps identities to their live connection handles.
type Registry interface {
	// Announce registers conn under identity. Idempotent for a conn
	// already announced as that identity.
	Announce(identity string, conn Conn)

	// Forget removes conn from whichever identity holds it and reports
	// that identity and whether it still has other connections.
	Forget(conn Conn) (identity string, stillOnline bool)

	// IsOnline reports whether identity has at least one connection.
	IsOnline(identity string) bool

	// ConnectionsFor returns the live connections for identity,
	// possibly empty.
	ConnectionsFor(identity string) []Conn

	// OnlineIdentities returns a sorted snapshot of all online
	// identities.
	OnlineIdentities() []string
}

// MemoryRegistry is the single-process Registry implementation. All
// mutations happen under one mutex; there is no read-modify-write
// across blocking calls.
type MemoryRegistry struct {
	mu     sync.Mutex
	byUser map[string]map[string]Conn // identity -> conn id -> conn
	byConn map[string]string          // conn id -> identity
}

// NewMemoryRegistry creates an empty registry.
func NewMemoryRegistry() *MemoryRegistry {
	return &MemoryRegistry{
		byUser: make(map[string]map[string]Conn),
		byConn: make(map[string]string),
	}
}

// Announce registers conn under identity.
func (r *MemoryRegistry) Announce(identity string, conn Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := conn.ConnID()
	if prev, ok := r.byConn[id]; ok {
		if prev == identity {
			return
		}
		// A connection does not re-announce as a different identity
		// without disconnecting first; drop the stale entry anyway.
		r.removeLocked(prev, id)
	}

	conns, ok := r.byUser[identity]
	if !ok {
		conns = make(map[string]Conn)
		r.byUser[identity] = conns
		metrics.OnlineUsers.Inc()
	}
	conns[id] = conn
	r.byConn[id] = identity
}

// Forget removes conn from the registry.
func (r *MemoryRegistry) Forget(conn Conn) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := conn.ConnID()
	identity, ok := r.byConn[id]
	if !ok {
		return "", false
	}
	r.removeLocked(identity, id)
	_, stillOnline := r.byUser[identity]
	return identity, stillOnline
}

func (r *MemoryRegistry) removeLocked(identity, connID string) {
	delete(r.byConn, connID)
	conns, ok := r.byUser[identity]
	if !ok {
		return
	}
	delete(conns, connID)
	if len(conns) == 0 {
		delete(r.byUser, identity)
		metrics.OnlineUsers.Dec()
	}
}

// IsOnline reports whether identity has at least one connection.
func (r *MemoryRegistry) IsOnline(identity string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.byUser[identity]) > 0
}

// ConnectionsFor returns the live connections for identity.
func (r *MemoryRegistry) ConnectionsFor(identity string) []Conn {
	r.mu.Lock()
	defer r.mu.Unlock()

	conns := make([]Conn, 0, len(r.byUser[identity]))
	for _, c := range r.byUser[identity] {
		conns = append(conns, c)
	}
	return conns
}

// OnlineIdentities returns a sorted snapshot of online identities.
func (r *MemoryRegistry) OnlineIdentities() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	identities := make([]string, 0, len(r.byUser))
	for identity := range r.byUser {
		identities = append(identities, identity)
	}
	sort.Strings(identities)
	return identities
}

var _ Registry = (*MemoryRegistry)(nil)
