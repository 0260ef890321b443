package runtime

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/aretw0/dispenser/internal/logging"
	"github.com/aretw0/dispenser/pkg/domain"
)

// Controller is the stateful transaction controller of a single machine.
// It owns the current state and the inventory and applies the transitions
// selected by Apply. It is not safe for concurrent use; callers serialize
// access (see pkg/fleet).
type Controller struct {
	id        string
	state     domain.State
	inventory int
	version   int64
	updatedAt time.Time

	inFlight atomic.Bool

	hooks  domain.LifecycleHooks
	logger *slog.Logger
	now    func() time.Time
}

// Option configures the Controller.
type Option func(*Controller)

// WithMachineID labels the controller in logs, events and snapshots.
func WithMachineID(id string) Option {
	return func(c *Controller) {
		c.id = id
	}
}

// WithLifecycleHooks registers observability hooks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(c *Controller) {
		c.hooks = hooks
	}
}

// WithLogger sets the logger used for notices.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Controller) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithClock overrides the time source (tests).
func WithClock(now func() time.Time) Option {
	return func(c *Controller) {
		if now != nil {
			c.now = now
		}
	}
}

// NewController creates a sold-out machine with no inventory.
func NewController(opts ...Option) *Controller {
	c := &Controller{
		state:  domain.StateSoldOut,
		logger: logging.NewNop(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.id != "" {
		c.logger = c.logger.With("machine_id", c.id)
	}
	return c
}

// Restore rebuilds a controller from a persisted snapshot.
// The snapshot machine ID wins over WithMachineID.
func Restore(snap *domain.Snapshot, opts ...Option) (*Controller, error) {
	if err := snap.Validate(); err != nil {
		return nil, err
	}
	if snap.MachineID != "" {
		opts = append(opts, WithMachineID(snap.MachineID))
	}
	c := NewController(opts...)
	c.state = snap.State
	c.inventory = snap.Inventory
	c.version = snap.Version
	c.updatedAt = snap.UpdatedAt
	return c, nil
}

// CurrentState returns the active state.
func (c *Controller) CurrentState() domain.State {
	return c.state
}

// InventoryCount returns the number of dispensable units left.
func (c *Controller) InventoryCount() int {
	return c.inventory
}

// MachineID returns the label given at construction.
func (c *Controller) MachineID() string {
	return c.id
}

// Snapshot returns the serializable view of the machine.
func (c *Controller) Snapshot() *domain.Snapshot {
	return &domain.Snapshot{
		MachineID: c.id,
		State:     c.state,
		Inventory: c.inventory,
		Version:   c.version,
		UpdatedAt: c.updatedAt,
	}
}

// InsertPayment offers a payment to the machine.
func (c *Controller) InsertPayment(ctx context.Context) {
	_, _ = c.Fire(ctx, domain.TriggerInsertPayment)
}

// CancelPayment asks the machine to refund a held payment.
// Cancelling with nothing pending is a benign no-op.
func (c *Controller) CancelPayment(ctx context.Context) {
	_, _ = c.Fire(ctx, domain.TriggerCancelPayment)
}

// Activate turns the crank. Rejections are returned as values; the error is
// only set when the machine detects a broken invariant while dispensing.
func (c *Controller) Activate(ctx context.Context) (domain.DispenseResult, error) {
	out, err := c.Fire(ctx, domain.TriggerActivate)
	if err != nil {
		return domain.DispenseResult{}, err
	}
	return *out.Result, nil
}

// Fire dispatches a trigger to the active state and commits the selected transition.
// The compound dispense path is committed as a single step.
func (c *Controller) Fire(ctx context.Context, trigger domain.Trigger) (domain.Outcome, error) {
	c.enter()
	out, err := Apply(c.state, c.inventory, trigger)
	if err != nil {
		c.leave()
		if errors.Is(err, domain.ErrInternalInconsistency) {
			c.logger.ErrorContext(ctx, "Trigger aborted",
				"trigger", trigger,
				"state", c.state,
				"inventory", c.inventory,
				"err", err,
			)
		}
		return domain.Outcome{}, err
	}

	if out.To != c.state || out.Inventory != c.inventory {
		c.state = out.To
		c.inventory = out.Inventory
		c.touch()
	}
	c.leave()

	c.emitOutcome(ctx, out)
	return out, nil
}

// Refill restocks the machine with n units, overriding the current state.
func (c *Controller) Refill(ctx context.Context, n int) error {
	if n < 0 {
		return fmt.Errorf("%w: refill count must be >= 0, got %d", domain.ErrInvalidArgument, n)
	}

	c.enter()
	from, previous := c.state, c.inventory
	c.state = RefillTarget(n)
	c.inventory = n
	c.touch()
	c.leave()

	restock := RefillNotice(n)
	c.logger.InfoContext(ctx, restock.Message, "state", from, "notice", restock.Code, "previous", previous)
	if c.hooks.OnNotice != nil {
		c.hooks.OnNotice(ctx, &domain.NoticeEvent{EventBase: c.event(domain.EventNotice), State: from, Notice: restock})
	}

	base := c.event(domain.EventRefill)
	if from != c.state && c.hooks.OnTransition != nil {
		tb := c.event(domain.EventTransition)
		c.hooks.OnTransition(ctx, &domain.TransitionEvent{EventBase: tb, From: from, To: c.state})
	}
	if c.hooks.OnRefill != nil {
		c.hooks.OnRefill(ctx, &domain.RefillEvent{EventBase: base, Previous: previous, Inventory: n})
	}
	return nil
}

func (c *Controller) enter() {
	if !c.inFlight.CompareAndSwap(false, true) {
		panic(domain.ErrReentrantTrigger)
	}
}

func (c *Controller) leave() {
	c.inFlight.Store(false)
}

func (c *Controller) touch() {
	c.version++
	c.updatedAt = c.now().UTC()
}

func (c *Controller) event(t domain.EventType) domain.EventBase {
	return domain.EventBase{Timestamp: c.now().UTC(), Type: t, MachineID: c.id}
}

// emitOutcome routes notices to the logger and hooks once the machine has settled.
func (c *Controller) emitOutcome(ctx context.Context, out domain.Outcome) {
	for _, n := range out.Notices {
		c.logger.InfoContext(ctx, n.Message,
			"trigger", out.Trigger,
			"state", out.From,
			"notice", n.Code,
		)
		if c.hooks.OnNotice != nil {
			c.hooks.OnNotice(ctx, &domain.NoticeEvent{EventBase: c.event(domain.EventNotice), State: out.From, Notice: n})
		}
	}

	if c.hooks.OnTransition != nil {
		for _, tr := range out.Transitions {
			c.hooks.OnTransition(ctx, &domain.TransitionEvent{
				EventBase: c.event(domain.EventTransition),
				Trigger:   out.Trigger,
				From:      tr.From,
				To:        tr.To,
			})
		}
	}

	if out.Result == nil {
		return
	}
	ev := &domain.DispenseEvent{EventBase: c.event(domain.EventDispense), Result: *out.Result, Inventory: out.Inventory}
	if out.Result.Dispensed {
		if c.hooks.OnDispense != nil {
			c.hooks.OnDispense(ctx, ev)
		}
		return
	}
	ev.Type = domain.EventReject
	if c.hooks.OnReject != nil {
		c.hooks.OnReject(ctx, ev)
	}
}
