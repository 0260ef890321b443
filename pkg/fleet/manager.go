package fleet

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/aretw0/dispenser"
	"github.com/aretw0/dispenser/internal/logging"
	"github.com/aretw0/dispenser/pkg/domain"
	"github.com/aretw0/dispenser/pkg/ports"
	"github.com/google/uuid"
)

// DefaultLockTTL bounds how long a crashed replica can hold a machine.
const DefaultLockTTL = 30 * time.Second

// lockEntry holds the mutex and the reference count.
type lockEntry struct {
	mu   sync.Mutex
	refs int
}

// Manager orchestrates machine access, ensuring safe concurrent operations.
// Unused per-machine locks are garbage collected through reference counting.
type Manager struct {
	store ports.SnapshotStore

	mu    sync.Mutex            // guards locks
	locks map[string]*lockEntry // active per-machine locks

	locker  ports.DistributedLocker
	lockTTL time.Duration
	hooks   domain.LifecycleHooks
	logger  *slog.Logger
	clock   func() time.Time
}

// Option configures the Manager.
type Option func(*Manager)

// WithLocker enables distributed locking.
func WithLocker(locker ports.DistributedLocker) Option {
	return func(m *Manager) {
		m.locker = locker
	}
}

// WithLockTTL sets the lease requested from the distributed locker.
func WithLockTTL(ttl time.Duration) Option {
	return func(m *Manager) {
		if ttl > 0 {
			m.lockTTL = ttl
		}
	}
}

// WithLogger configures a logger for the Manager and the machines it restores.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithLifecycleHooks attaches hooks to every machine the Manager operates on.
// Hooks run while the machine lock is held and before the snapshot is saved.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(m *Manager) {
		m.hooks = hooks
	}
}

// WithClock overrides the time source stamped into snapshots.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		m.clock = now
	}
}

// NewManager creates a Manager backed by the given snapshot store.
func NewManager(store ports.SnapshotStore, opts ...Option) *Manager {
	m := &Manager{
		store:   store,
		locks:   make(map[string]*lockEntry),
		lockTTL: DefaultLockTTL,
		logger:  logging.NewNop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Store returns the underlying snapshot store.
func (m *Manager) Store() ports.SnapshotStore {
	return m.store
}

// acquire gets or creates a lock entry and increments its reference count.
// The caller MUST Lock the entry.mu, and then call release(machineID) after unlocking.
func (m *Manager) acquire(machineID string) *lockEntry {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.locks[machineID]
	if !exists {
		entry = &lockEntry{}
		m.locks[machineID] = entry
	}
	entry.refs++
	return entry
}

// release decrements the reference count and deletes the entry if it reaches zero.
func (m *Manager) release(machineID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.locks[machineID]
	if !exists {
		return
	}

	entry.refs--
	if entry.refs <= 0 {
		delete(m.locks, machineID)
	}
}

// WithLock executes fn while holding the lock for the machine.
func (m *Manager) WithLock(ctx context.Context, machineID string, fn func(context.Context) error) error {
	entry := m.acquire(machineID)
	entry.mu.Lock()
	defer func() {
		entry.mu.Unlock()
		m.release(machineID)
	}()

	if m.locker != nil {
		unlock, err := m.locker.Lock(ctx, machineID, m.lockTTL)
		if err != nil {
			return fmt.Errorf("failed to acquire distributed lock: %w", err)
		}
		defer func() {
			// The caller's context may already be cancelled; release on a fresh one.
			if err := unlock(context.WithoutCancel(ctx)); err != nil {
				m.logger.Warn("Failed to release distributed lock (will expire via TTL)",
					"machine_id", machineID,
					"err", err,
				)
			}
		}()
	}

	return fn(ctx)
}

func (m *Manager) machineOptions(id string) []dispenser.Option {
	return []dispenser.Option{
		dispenser.WithMachineID(id),
		dispenser.WithLogger(m.logger),
		dispenser.WithLifecycleHooks(m.hooks),
		dispenser.WithClock(m.clock),
	}
}

// Create stores a new machine stocked with the given units.
// An empty ID is replaced by a random UUID.
func (m *Manager) Create(ctx context.Context, machineID string, stock int) (*domain.Snapshot, error) {
	if stock < 0 {
		return nil, fmt.Errorf("%w: initial stock must be >= 0, got %d", domain.ErrInvalidArgument, stock)
	}
	if machineID == "" {
		machineID = uuid.NewString()
	}

	var snap *domain.Snapshot
	err := m.WithLock(ctx, machineID, func(ctx context.Context) error {
		_, err := m.store.Load(ctx, machineID)
		if err == nil {
			return fmt.Errorf("%w: %s", domain.ErrMachineExists, machineID)
		}
		if !errors.Is(err, domain.ErrMachineNotFound) {
			return fmt.Errorf("failed to check machine existence: %w", err)
		}

		machine := dispenser.New(m.machineOptions(machineID)...)
		if stock > 0 {
			if err := machine.Refill(ctx, stock); err != nil {
				return err
			}
		}
		snap = machine.Snapshot()
		if err := m.store.Save(ctx, machineID, snap); err != nil {
			return fmt.Errorf("failed to save machine: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	m.logger.InfoContext(ctx, "Machine created", "machine_id", machineID, "inventory", stock)
	return snap, nil
}

// Get returns the stored snapshot of a machine.
func (m *Manager) Get(ctx context.Context, machineID string) (*domain.Snapshot, error) {
	var snap *domain.Snapshot
	err := m.WithLock(ctx, machineID, func(ctx context.Context) error {
		var err error
		snap, err = m.store.Load(ctx, machineID)
		return err
	})
	return snap, err
}

// List delegates to the store.
func (m *Manager) List(ctx context.Context) ([]string, error) {
	return m.store.List(ctx)
}

// Delete removes the machine from the store.
func (m *Manager) Delete(ctx context.Context, machineID string) error {
	return m.WithLock(ctx, machineID, func(ctx context.Context) error {
		return m.store.Delete(ctx, machineID)
	})
}

// Fire loads the machine, dispatches the trigger and persists the result.
// The snapshot is only written when the machine actually changed.
func (m *Manager) Fire(ctx context.Context, machineID string, trigger domain.Trigger) (domain.Outcome, *domain.Snapshot, error) {
	var out domain.Outcome
	snap, err := m.update(ctx, machineID, func(ctx context.Context, machine *dispenser.Machine) error {
		var err error
		out, err = machine.Fire(ctx, trigger)
		return err
	})
	if err != nil {
		return domain.Outcome{}, nil, err
	}
	return out, snap, nil
}

// Refill restocks a stored machine.
func (m *Manager) Refill(ctx context.Context, machineID string, n int) (*domain.Snapshot, error) {
	return m.update(ctx, machineID, func(ctx context.Context, machine *dispenser.Machine) error {
		return machine.Refill(ctx, n)
	})
}

// Ensure creates the machine with stock units, or refills it when it already exists.
// Used to apply seed files at startup.
func (m *Manager) Ensure(ctx context.Context, machineID string, stock int) (*domain.Snapshot, error) {
	snap, err := m.Create(ctx, machineID, stock)
	if errors.Is(err, domain.ErrMachineExists) {
		return m.Refill(ctx, machineID, stock)
	}
	return snap, err
}

// update runs fn against a restored machine under the lock and saves the result.
func (m *Manager) update(ctx context.Context, machineID string, fn func(context.Context, *dispenser.Machine) error) (*domain.Snapshot, error) {
	var snap *domain.Snapshot
	err := m.WithLock(ctx, machineID, func(ctx context.Context) error {
		stored, err := m.store.Load(ctx, machineID)
		if err != nil {
			return err
		}

		machine, err := dispenser.Restore(stored, m.machineOptions(machineID)...)
		if err != nil {
			return fmt.Errorf("%w: machine %s has a corrupt snapshot: %v", domain.ErrInternalInconsistency, machineID, err)
		}

		if err := fn(ctx, machine); err != nil {
			return err
		}

		snap = machine.Snapshot()
		if snap.Version == stored.Version {
			return nil
		}
		if err := m.store.Save(ctx, machineID, snap); err != nil {
			return fmt.Errorf("failed to save machine: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return snap, nil
}
