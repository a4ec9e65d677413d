package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newPasscodeStore(t *testing.T) (*PasscodeStore, *miniredis.Miniredis) {
	t.Helper()
	s := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: s.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewPasscodeStore(client), s
}

func TestPasscodeStore_SaveAndGet(t *testing.T) {
	store, _ := newPasscodeStore(t)
	ctx := context.Background()

	hash, err := store.Get(ctx, "bob@example.com")
	require.NoError(t, err)
	assert.Empty(t, hash, "no passcode before save")

	require.NoError(t, store.Save(ctx, "bob@example.com", "$argon2id$abc", 10*time.Minute))

	hash, err = store.Get(ctx, "bob@example.com")
	require.NoError(t, err)
	assert.Equal(t, "$argon2id$abc", hash)
}

func TestPasscodeStore_Expiry(t *testing.T) {
	store, s := newPasscodeStore(t)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, "bob@example.com", "h", time.Minute))
	s.FastForward(2 * time.Minute)

	hash, err := store.Get(ctx, "bob@example.com")
	require.NoError(t, err)
	assert.Empty(t, hash)
	assert.False(t, s.Exists("passcode:bob@example.com:attempts"), "attempt counter expires with the code")
}

func TestPasscodeStore_Attempts(t *testing.T) {
	store, s := newPasscodeStore(t)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, "bob@example.com", "h", time.Minute))

	for want := int64(1); want <= 3; want++ {
		n, err := store.IncrAttempts(ctx, "bob@example.com")
		require.NoError(t, err)
		assert.Equal(t, want, n)
	}
	assert.Greater(t, s.TTL("passcode:bob@example.com:attempts"), time.Duration(0))

	// A new code resets the budget.
	require.NoError(t, store.Save(ctx, "bob@example.com", "h2", time.Minute))
	n, err := store.IncrAttempts(ctx, "bob@example.com")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestPasscodeStore_Delete(t *testing.T) {
	store, s := newPasscodeStore(t)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, "bob@example.com", "h", time.Minute))
	_, err := store.IncrAttempts(ctx, "bob@example.com")
	require.NoError(t, err)

	require.NoError(t, store.Delete(ctx, "bob@example.com"))
	assert.False(t, s.Exists("passcode:bob@example.com"))
	assert.False(t, s.Exists("passcode:bob@example.com:attempts"))

	// Deleting again is harmless.
	require.NoError(t, store.Delete(ctx, "bob@example.com"))
}

func TestPasscodeStore_Unavailable(t *testing.T) {
	store, s := newPasscodeStore(t)
	s.Close()

	_, err := store.Get(context.Background(), "bob@example.com")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "redis passcode get")
}
