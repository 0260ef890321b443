package redis_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/aretw0/dispenser/pkg/adapters/redis"
	"github.com/aretw0/dispenser/pkg/domain"
	"github.com/aretw0/dispenser/pkg/ports"
	backend "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setup(t *testing.T) (*miniredis.Miniredis, *backend.Client) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := backend.NewClient(&backend.Options{
		Addr: mr.Addr(),
	})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestRedisStore_Contract(t *testing.T) {
	_, client := setup(t)
	store := redis.NewFromClient(client)
	ports.RunSnapshotStoreContract(t, store)
}

func TestRedisStore_HashLayout(t *testing.T) {
	mr, client := setup(t)
	store := redis.NewFromClient(client)
	ctx := context.Background()

	err := store.Save(ctx, "lobby", &domain.Snapshot{MachineID: "lobby", State: domain.StateNoPayment, Inventory: 12, Version: 3})
	require.NoError(t, err)

	assert.Equal(t, "no_payment", mr.HGet("dispenser:machine:lobby", "state"))
	assert.Equal(t, "12", mr.HGet("dispenser:machine:lobby", "inventory"))
	assert.Equal(t, "3", mr.HGet("dispenser:machine:lobby", "version"))
}

func TestRedisStore_IndexLikeIDs(t *testing.T) {
	_, client := setup(t)
	store := redis.NewFromClient(client)
	ctx := context.Background()

	ids := []string{"index", "machines", "lobby"}
	for _, id := range ids {
		require.NoError(t, store.Save(ctx, id, &domain.Snapshot{MachineID: id, State: domain.StateNoPayment, Inventory: 3}))
	}

	list, err := store.List(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, ids, list)

	for _, id := range ids {
		snap, err := store.Load(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, 3, snap.Inventory)
	}
}

func TestRedisStore_CorruptHash(t *testing.T) {
	mr, client := setup(t)
	store := redis.NewFromClient(client)

	mr.HSet("dispenser:machine:broken", "state", "no_payment", "inventory", "many")

	_, err := store.Load(context.Background(), "broken")
	assert.Error(t, err)
	assert.NotErrorIs(t, err, domain.ErrMachineNotFound)
}

func TestRedisStore_TTL_Expiration(t *testing.T) {
	mr, client := setup(t)

	store := redis.NewFromClient(client, redis.WithTTL(1*time.Second))
	ctx := context.Background()
	machineID := "machine-ttl"

	err := store.Save(ctx, machineID, &domain.Snapshot{MachineID: machineID, State: domain.StateNoPayment, Inventory: 1})
	assert.NoError(t, err)

	machines, err := store.List(ctx)
	assert.NoError(t, err)
	assert.Contains(t, machines, machineID)

	// Fast forward miniredis for key expiration.
	mr.FastForward(2 * time.Second)

	_, err = store.Load(ctx, machineID)
	assert.ErrorIs(t, err, domain.ErrMachineNotFound)

	// Index pruning relies on time.Now(), so wait past the score.
	time.Sleep(1200 * time.Millisecond)

	machines, err = store.List(ctx)
	assert.NoError(t, err)
	assert.Empty(t, machines)
}

func TestRedisStore_Prefix(t *testing.T) {
	mr, client := setup(t)

	store := redis.NewFromClient(client, redis.WithPrefix("custom:app:"))
	ctx := context.Background()

	err := store.Save(ctx, "my-machine", domain.NewSnapshot("my-machine"))
	assert.NoError(t, err)

	assert.True(t, mr.Exists("custom:app:machine:my-machine"), "Expected key with custom prefix to exist")
	assert.True(t, mr.Exists("custom:app:machines"), "Expected index with custom prefix to exist")

	list, err := store.List(ctx)
	assert.NoError(t, err)
	assert.Contains(t, list, "my-machine")
}

func TestConnect(t *testing.T) {
	mr, _ := setup(t)
	ctx := context.Background()

	client, err := redis.Connect(ctx, "redis://"+mr.Addr()+"/0", 2, 10*time.Millisecond)
	require.NoError(t, err)
	assert.NoError(t, client.Close())

	_, err = redis.Connect(ctx, "not a url", 1, 0)
	assert.ErrorIs(t, err, redis.ErrFailedToParseURL)
}

func TestConnect_NotReady(t *testing.T) {
	mr, _ := setup(t)
	addr := mr.Addr()
	mr.Close()

	_, err := redis.Connect(context.Background(), "redis://"+addr+"/0", 2, 10*time.Millisecond)
	assert.ErrorIs(t, err, redis.ErrRedisNotReady)
}
