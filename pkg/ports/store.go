package ports

import (
	"context"

	"github.com/aretw0/dispenser/pkg/domain"
)

// SnapshotStore defines the interface for persisting machine snapshots.
// The controller itself never persists; callers load, fire and save.
type SnapshotStore interface {
	// Save persists the snapshot for a given machine ID.
	Save(ctx context.Context, machineID string, snap *domain.Snapshot) error

	// Load retrieves the snapshot for a given machine ID.
	// Returns domain.ErrMachineNotFound if the machine does not exist.
	Load(ctx context.Context, machineID string) (*domain.Snapshot, error)

	// Delete removes the snapshot for a given machine ID.
	// Deleting an unknown machine is not an error.
	Delete(ctx context.Context, machineID string) error

	// List returns the IDs of every stored machine.
	List(ctx context.Context) ([]string, error)
}
