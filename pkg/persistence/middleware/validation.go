package middleware

import (
	"context"
	"fmt"

	"github.com/aretw0/dispenser/pkg/domain"
	"github.com/aretw0/dispenser/pkg/ports"
)

type validationMiddleware struct {
	next ports.SnapshotStore
}

// NewValidationMiddleware refuses to persist snapshots of unsettled machines
// and flags stored snapshots that no longer describe one.
//
// Save fails with domain.ErrInvalidArgument; Load fails with
// domain.ErrInternalInconsistency, since the data was already written.
func NewValidationMiddleware() Middleware {
	return func(next ports.SnapshotStore) ports.SnapshotStore {
		return &validationMiddleware{next: next}
	}
}

func (m *validationMiddleware) Save(ctx context.Context, machineID string, snap *domain.Snapshot) error {
	if err := snap.Validate(); err != nil {
		return fmt.Errorf("refusing to save machine %s: %w", machineID, err)
	}
	if snap.MachineID != "" && snap.MachineID != machineID {
		return fmt.Errorf("%w: snapshot of %s saved under %s", domain.ErrInvalidArgument, snap.MachineID, machineID)
	}
	return m.next.Save(ctx, machineID, snap)
}

func (m *validationMiddleware) Load(ctx context.Context, machineID string) (*domain.Snapshot, error) {
	snap, err := m.next.Load(ctx, machineID)
	if err != nil {
		return nil, err
	}
	if err := snap.Validate(); err != nil {
		return nil, fmt.Errorf("%w: stored machine %s: %v", domain.ErrInternalInconsistency, machineID, err)
	}
	return snap, nil
}

func (m *validationMiddleware) Delete(ctx context.Context, machineID string) error {
	return m.next.Delete(ctx, machineID)
}

func (m *validationMiddleware) List(ctx context.Context) ([]string, error) {
	return m.next.List(ctx)
}
