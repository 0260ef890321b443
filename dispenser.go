package dispenser

import (
	"context"
	"log/slog"
	"time"

	"github.com/aretw0/dispenser/internal/logging"
	"github.com/aretw0/dispenser/internal/runtime"
	"github.com/aretw0/dispenser/pkg/domain"
)

// Machine is the high-level entry point for the dispenser library.
// It wraps the internal controller and provides a simplified API for consumers.
type Machine struct {
	ctrl   *runtime.Controller
	hooks  domain.LifecycleHooks
	logger *slog.Logger
	clock  func() time.Time
	ID     string
}

// Option defines a functional option for configuring the Machine.
type Option func(*Machine)

// WithLifecycleHooks registers observability hooks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(m *Machine) {
		m.hooks = hooks
	}
}

// WithLogger sets a custom structured logger for the machine.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Machine) {
		m.logger = logger
	}
}

// WithMachineID labels the machine in logs, events and snapshots.
func WithMachineID(id string) Option {
	return func(m *Machine) {
		m.ID = id
	}
}

// WithClock overrides the time source used for snapshots and events.
func WithClock(now func() time.Time) Option {
	return func(m *Machine) {
		m.clock = now
	}
}

func (m *Machine) runtimeOptions() []runtime.Option {
	// Ensure logger is initialized (so we don't pass nil to runtime, which would keep its default)
	if m.logger == nil {
		m.logger = logging.NewNop()
	}
	return []runtime.Option{
		runtime.WithMachineID(m.ID),
		runtime.WithLifecycleHooks(m.hooks),
		runtime.WithLogger(m.logger),
		runtime.WithClock(m.clock),
	}
}

// New builds a sold-out machine with no inventory. Call Refill to stock it.
func New(opts ...Option) *Machine {
	m := &Machine{}
	for _, opt := range opts {
		opt(m)
	}
	m.ctrl = runtime.NewController(m.runtimeOptions()...)
	return m
}

// Restore rebuilds a machine from a persisted snapshot.
func Restore(snap *domain.Snapshot, opts ...Option) (*Machine, error) {
	m := &Machine{}
	for _, opt := range opts {
		opt(m)
	}
	if snap != nil && snap.MachineID != "" {
		m.ID = snap.MachineID
	}
	ctrl, err := runtime.Restore(snap, m.runtimeOptions()...)
	if err != nil {
		return nil, err
	}
	m.ctrl = ctrl
	return m, nil
}

// InsertPayment offers a payment. It never fails; the outcome is reported as a notice.
func (m *Machine) InsertPayment(ctx context.Context) {
	m.ctrl.InsertPayment(ctx)
}

// CancelPayment refunds a held payment, or reports that there is nothing to cancel.
func (m *Machine) CancelPayment(ctx context.Context) {
	m.ctrl.CancelPayment(ctx)
}

// Activate turns the crank and returns Dispensed or Rejected(reason).
// A non-nil error means the machine detected a broken invariant (domain.ErrInternalInconsistency).
func (m *Machine) Activate(ctx context.Context) (domain.DispenseResult, error) {
	return m.ctrl.Activate(ctx)
}

// Refill sets the inventory to n and resets the state (NoPayment, or SoldOut when n is 0).
// A negative n fails with domain.ErrInvalidArgument and leaves the machine untouched.
func (m *Machine) Refill(ctx context.Context, n int) error {
	return m.ctrl.Refill(ctx, n)
}

// Fire dispatches any trigger and returns the full outcome (transitions, notices, result).
func (m *Machine) Fire(ctx context.Context, trigger domain.Trigger) (domain.Outcome, error) {
	return m.ctrl.Fire(ctx, trigger)
}

// CurrentState returns the active state.
func (m *Machine) CurrentState() domain.State {
	return m.ctrl.CurrentState()
}

// InventoryCount returns the number of units left.
func (m *Machine) InventoryCount() int {
	return m.ctrl.InventoryCount()
}

// Snapshot returns the serializable view of the machine.
func (m *Machine) Snapshot() *domain.Snapshot {
	return m.ctrl.Snapshot()
}
