package kv

import (
	"context"

	"github.com/boddenberg/zillo-assist-go/internal/port"
)

// Namespaced scopes a shared KV to one client by prefixing every key.
type Namespaced struct {
	inner  port.KV
	prefix string
}

// Namespace returns a view of inner restricted to namespace ns.
func Namespace(inner port.KV, ns string) *Namespaced {
	return &Namespaced{inner: inner, prefix: ns + "/"}
}

func (n *Namespaced) Get(ctx context.Context, key string) (string, bool, error) {
	return n.inner.Get(ctx, n.prefix+key)
}

func (n *Namespaced) Set(ctx context.Context, key, value string) error {
	return n.inner.Set(ctx, n.prefix+key, value)
}

func (n *Namespaced) Remove(ctx context.Context, key string) error {
	return n.inner.Remove(ctx, n.prefix+key)
}
