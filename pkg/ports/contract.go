package ports

import (
	"context"
	"sort"
	"testing"
	"time"

	"github.com/aretw0/dispenser/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunSnapshotStoreContract runs a suite of tests to verify that a SnapshotStore
// implementation adheres to the defined interface contract.
func RunSnapshotStoreContract(t *testing.T, store SnapshotStore) {
	ctx := context.Background()
	machineID := "contract-test-machine-" + time.Now().Format("20060102150405")

	t.Run("Save and Load", func(t *testing.T) {
		snap := &domain.Snapshot{
			MachineID: machineID,
			State:     domain.StateHasPayment,
			Inventory: 42,
			Version:   7,
			UpdatedAt: time.Date(2026, 10, 17, 12, 0, 0, 0, time.UTC),
		}

		err := store.Save(ctx, machineID, snap)
		require.NoError(t, err, "Save should not return error")

		loaded, err := store.Load(ctx, machineID)
		require.NoError(t, err, "Load should not return error")
		assert.Equal(t, machineID, loaded.MachineID)
		assert.Equal(t, domain.StateHasPayment, loaded.State)
		assert.Equal(t, 42, loaded.Inventory)
		assert.Equal(t, int64(7), loaded.Version)
		assert.True(t, snap.UpdatedAt.Equal(loaded.UpdatedAt), "UpdatedAt should round-trip")
	})

	t.Run("Save Overwrites", func(t *testing.T) {
		require.NoError(t, store.Save(ctx, machineID, &domain.Snapshot{MachineID: machineID, State: domain.StateNoPayment, Inventory: 3, Version: 8}))
		require.NoError(t, store.Save(ctx, machineID, &domain.Snapshot{MachineID: machineID, State: domain.StateSoldOut, Inventory: 0, Version: 9}))

		loaded, err := store.Load(ctx, machineID)
		require.NoError(t, err)
		assert.Equal(t, domain.StateSoldOut, loaded.State)
		assert.Equal(t, 0, loaded.Inventory)
		assert.Equal(t, int64(9), loaded.Version)
	})

	t.Run("Loaded Copy Is Isolated", func(t *testing.T) {
		require.NoError(t, store.Save(ctx, machineID, &domain.Snapshot{MachineID: machineID, State: domain.StateNoPayment, Inventory: 5}))

		loaded, err := store.Load(ctx, machineID)
		require.NoError(t, err)
		loaded.Inventory = 99

		again, err := store.Load(ctx, machineID)
		require.NoError(t, err)
		assert.Equal(t, 5, again.Inventory)
	})

	t.Run("Load Non-Existent", func(t *testing.T) {
		_, err := store.Load(ctx, "non-existent-"+machineID)
		assert.ErrorIs(t, err, domain.ErrMachineNotFound)
	})

	t.Run("Delete", func(t *testing.T) {
		require.NoError(t, store.Save(ctx, machineID, domain.NewSnapshot(machineID)))

		err := store.Delete(ctx, machineID)
		require.NoError(t, err, "Delete should not return error")

		_, err = store.Load(ctx, machineID)
		assert.ErrorIs(t, err, domain.ErrMachineNotFound, "Load after Delete should return ErrMachineNotFound")

		assert.NoError(t, store.Delete(ctx, machineID), "Deleting twice should be a no-op")
	})

	t.Run("List", func(t *testing.T) {
		id1 := machineID + "-1"
		id2 := machineID + "-2"
		require.NoError(t, store.Save(ctx, id1, domain.NewSnapshot(id1)))
		require.NoError(t, store.Save(ctx, id2, domain.NewSnapshot(id2)))

		defer func() {
			_ = store.Delete(ctx, id1)
			_ = store.Delete(ctx, id2)
		}()

		machines, err := store.List(ctx)
		require.NoError(t, err)
		sort.Strings(machines)
		assert.Contains(t, machines, id1)
		assert.Contains(t, machines, id2)
	})
}
