package session

import (
	"sync"

	"github.com/boddenberg/zillo-assist-go/internal/infra/kv"
	"github.com/boddenberg/zillo-assist-go/internal/port"
)

// Registry hands out one Store per client over a shared KV backend. Stores
// live in a TTL cache and every For refreshes the entry, so an idle client's
// Store is dropped after the TTL while its persisted keys stay in the KV.
type Registry struct {
	mu      sync.Mutex
	backend port.KV
	stores  port.Cache[*Store]
	opts    []Option
}

// NewRegistry creates a registry caching stores in stores; opts apply to
// every store it creates.
func NewRegistry(backend port.KV, stores port.Cache[*Store], opts ...Option) *Registry {
	return &Registry{
		backend: backend,
		stores:  stores,
		opts:    opts,
	}
}

// For returns the store of clientID, creating it after a miss.
func (r *Registry) For(clientID string) *Store {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.stores.Get(clientID)
	if !ok {
		s = New(kv.Namespace(r.backend, clientID), r.opts...)
	}
	r.stores.Set(clientID, s)
	return s
}
