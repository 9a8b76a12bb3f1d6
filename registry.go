package server

import "sync"

// ConnectionRegistry maps a participant identity to its live transport
// handle. It is a pure back-reference: entries exist only while the socket is
// open and the registry never owns match state.
type ConnectionRegistry struct {
	mu    sync.Mutex
	conns map[string]*subscriber
}

func NewConnectionRegistry() *ConnectionRegistry {
	return &ConnectionRegistry{conns: make(map[string]*subscriber)}
}

// register binds identity to sub. The last registration for an identity wins.
func (r *ConnectionRegistry) register(identity string, sub *subscriber) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.conns[identity] = sub
}

// unregister removes the identity; absent identities are a no-op.
func (r *ConnectionRegistry) unregister(identity string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.conns, identity)
}

// unregisterIf removes the identity only while it still maps to sub, so a
// stale disconnect cannot clobber a newer registration after a reconnect.
func (r *ConnectionRegistry) unregisterIf(identity string, sub *subscriber) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if current, ok := r.conns[identity]; ok && current == sub {
		delete(r.conns, identity)
	}
}

func (r *ConnectionRegistry) lookup(identity string) (*subscriber, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	sub, ok := r.conns[identity]
	return sub, ok
}

func (r *ConnectionRegistry) len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.conns)
}
