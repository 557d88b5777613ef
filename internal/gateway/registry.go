// Package gateway owns the session lifecycle: the in-memory registry of
// live sessions, the supervisor that dials and repairs connections, and
// the pipeline that turns protocol events into persisted state and
// webhook deliveries.
package gateway

import (
	"sync"

	"github.com/wagate/gateway-server-go/internal/errors"
	"github.com/wagate/gateway-server-go/internal/protocol"
)

// Registry maps session ids to live handles. It is the single source of
// truth for which sessions hold a socket in this process.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

func NewRegistry() *Registry {
	return &Registry{sessions: make(map[string]*Session)}
}

// Register claims the session id. Returns false when the id is already
// held, which callers must treat as "another socket is live".
func (r *Registry) Register(sess *Session) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.sessions[sess.SessionID]; exists {
		return false
	}
	r.sessions[sess.SessionID] = sess
	return true
}

func (r *Registry) Get(sessionID string) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	sess, ok := r.sessions[sessionID]
	return sess, ok
}

func (r *Registry) Remove(sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, sessionID)
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Sessions returns a snapshot of all live handles.
func (r *Registry) Sessions() []*Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Session, 0, len(r.sessions))
	for _, sess := range r.sessions {
		out = append(out, sess)
	}
	return out
}

// SocketFor resolves the open socket for a tenant's session. Callers get
// typed errors they can map straight to API responses.
func (r *Registry) SocketFor(tenantID, sessionID string) (protocol.Socket, error) {
	sess, ok := r.Get(sessionID)
	if !ok || sess.TenantID != tenantID {
		return nil, errors.SessionNotFound(sessionID)
	}
	sock := sess.Socket()
	if sock == nil || !sock.IsConnected() {
		return nil, errors.NotConnected(sessionID)
	}
	return sock, nil
}

// SocketHealthy reports whether the session is registered with an open
// socket. Used by the health audit to cross-check persisted state.
func (r *Registry) SocketHealthy(sessionID string) bool {
	sess, ok := r.Get(sessionID)
	return ok && sess.SocketHealthy()
}

// TenantSessions returns a snapshot of the tenant's live handles.
func (r *Registry) TenantSessions(tenantID string) []*Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*Session
	for _, sess := range r.sessions {
		if sess.TenantID == tenantID {
			out = append(out, sess)
		}
	}
	return out
}
