package kv_test

import (
	"context"
	"testing"

	"github.com/boddenberg/zillo-assist-go/internal/infra/kv"
	"github.com/boddenberg/zillo-assist-go/internal/port"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func exerciseKV(t *testing.T, store port.KV) {
	t.Helper()
	ctx := context.Background()

	_, found, err := store.Get(ctx, "authToken")
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, store.Set(ctx, "authToken", "t1"))
	v, found, err := store.Get(ctx, "authToken")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "t1", v)

	require.NoError(t, store.Set(ctx, "authToken", "t2"))
	v, _, _ = store.Get(ctx, "authToken")
	assert.Equal(t, "t2", v)

	require.NoError(t, store.Remove(ctx, "authToken"))
	_, found, err = store.Get(ctx, "authToken")
	require.NoError(t, err)
	assert.False(t, found)

	// removing an absent key is not an error
	require.NoError(t, store.Remove(ctx, "authToken"))
}

func TestMemory(t *testing.T) {
	exerciseKV(t, kv.NewMemory())
}

func TestSQLite(t *testing.T) {
	store, err := kv.OpenSQLite(context.Background(), ":memory:", zap.NewNop())
	require.NoError(t, err)
	defer store.Close()

	exerciseKV(t, store)
}

func TestSQLite_PersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	path := t.TempDir() + "/sessions.db"

	first, err := kv.OpenSQLite(ctx, path, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, first.Set(ctx, "savedCnpj", "11222333000181"))
	require.NoError(t, first.Close())

	second, err := kv.OpenSQLite(ctx, path, zap.NewNop())
	require.NoError(t, err)
	defer second.Close()

	v, found, err := second.Get(ctx, "savedCnpj")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "11222333000181", v)
}

func TestNamespace_IsolatesClients(t *testing.T) {
	ctx := context.Background()
	shared := kv.NewMemory()
	a := kv.Namespace(shared, "client-a")
	b := kv.Namespace(shared, "client-b")

	require.NoError(t, a.Set(ctx, "userName", "admin"))

	_, found, _ := b.Get(ctx, "userName")
	assert.False(t, found)

	v, found, _ := a.Get(ctx, "userName")
	assert.True(t, found)
	assert.Equal(t, "admin", v)
	assert.Equal(t, 1, shared.Len())

	exerciseKV(t, b)
}
