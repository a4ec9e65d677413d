package redis

import (
	"bytes"
	"context"
	"strconv"
	"testing"
	"time"

	"secure-escrow/config"
	"secure-escrow/internal/core/domain"
	"secure-escrow/pkg/logger"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisAddr(t *testing.T) {
	cfg := config.RedisConfig{
		Host: "redis.example.com",
		Port: 6380,
	}

	assert.Equal(t, "redis.example.com:6380", cfg.Addr())
}

func TestNewClient(t *testing.T) {
	s := miniredis.RunT(t)
	cfg := config.RedisConfig{Host: s.Host(), Port: mustPort(t, s)}

	client, err := NewClient(context.Background(), cfg, logger.New("error", false))
	require.NoError(t, err)
	defer client.Close()

	hc := NewHealthCheck(client)
	assert.Equal(t, "redis", hc.Name())
	assert.NoError(t, hc.Ping(context.Background()))

	s.Close()
	assert.Error(t, hc.Ping(context.Background()))
}

func TestNewClient_Unreachable(t *testing.T) {
	s := miniredis.RunT(t)
	cfg := config.RedisConfig{Host: s.Host(), Port: mustPort(t, s)}
	s.Close()

	_, err := NewClient(context.Background(), cfg, logger.New("error", false))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "pinging redis")
}

func mustPort(t *testing.T, s *miniredis.Miniredis) int {
	t.Helper()
	port, err := strconv.Atoi(s.Port())
	require.NoError(t, err)
	return port
}

func newEventBus(t *testing.T) *EventBus {
	t.Helper()
	s := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: s.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewEventBus(client, logger.New("error", false))
}

func TestEventBus_PublishSubscribe(t *testing.T) {
	bus := newEventBus(t)
	ctx := context.Background()

	watched := &domain.Escrow{ID: uuid.New(), Status: domain.EscrowStatusPending, Version: 3}
	other := &domain.Escrow{ID: uuid.New(), Status: domain.EscrowStatusPending}

	events, cancel, err := bus.Subscribe(ctx, watched.ID)
	require.NoError(t, err)
	defer cancel()

	require.NoError(t, bus.Publish(ctx, domain.NewEscrowEvent(domain.EventConfirmed, other, nil)))
	require.NoError(t, bus.Publish(ctx, domain.NewEscrowEvent(domain.EventConfirmed, watched, nil)))

	select {
	case ev := <-events:
		assert.Equal(t, watched.ID, ev.EscrowID, "only the watched escrow's events arrive")
		assert.Equal(t, domain.EventConfirmed, ev.Type)
		assert.Equal(t, int64(3), ev.Version)
	case <-time.After(2 * time.Second):
		t.Fatal("no event received")
	}
}

func TestEventBus_CancelClosesChannel(t *testing.T) {
	bus := newEventBus(t)

	events, cancel, err := bus.Subscribe(context.Background(), uuid.New())
	require.NoError(t, err)

	cancel()
	cancel() // idempotent

	select {
	case _, ok := <-events:
		assert.False(t, ok)
	case <-time.After(2 * time.Second):
		t.Fatal("channel not closed after cancel")
	}
}

func TestEventBus_ContextEndClosesChannel(t *testing.T) {
	bus := newEventBus(t)
	ctx, cancelCtx := context.WithCancel(context.Background())

	events, cancel, err := bus.Subscribe(ctx, uuid.New())
	require.NoError(t, err)
	defer cancel()

	cancelCtx()

	select {
	case _, ok := <-events:
		assert.False(t, ok)
	case <-time.After(2 * time.Second):
		t.Fatal("channel not closed after context end")
	}
}

func TestEventBus_MalformedPayloadIsSkipped(t *testing.T) {
	s := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: s.Addr()})
	t.Cleanup(func() { client.Close() })

	var logs bytes.Buffer
	bus := NewEventBus(client, zerolog.New(&logs))
	ctx := context.Background()

	watched := &domain.Escrow{ID: uuid.New(), Status: domain.EscrowStatusPending, Version: 2}
	events, cancel, err := bus.Subscribe(ctx, watched.ID)
	require.NoError(t, err)
	defer cancel()

	require.NoError(t, client.Publish(ctx, eventChannel(watched.ID), "{not json").Err())
	require.NoError(t, bus.Publish(ctx, domain.NewEscrowEvent(domain.EventDisputed, watched, nil)))

	select {
	case ev := <-events:
		assert.Equal(t, domain.EventDisputed, ev.Type, "the watcher survives a bad payload")
	case <-time.After(2 * time.Second):
		t.Fatal("no event received")
	}
	assert.Contains(t, logs.String(), `"message":"dropping malformed escrow event"`)
}
