package middleware

import (
	"context"
	"errors"
	"time"

	"github.com/aretw0/dispenser/pkg/domain"
	"github.com/aretw0/dispenser/pkg/ports"
	"github.com/prometheus/client_golang/prometheus"
)

// Outcome label values.
const (
	OutcomeOK       = "ok"
	OutcomeNotFound = "not_found"
	OutcomeError    = "error"
)

type instrumentationMiddleware struct {
	next     ports.SnapshotStore
	observer prometheus.ObserverVec
	now      func() time.Time
}

// NewInstrumentationMiddleware records the duration of every store call in
// observer, labelled by "op" (save, load, delete, list) and "outcome".
func NewInstrumentationMiddleware(observer prometheus.ObserverVec) Middleware {
	return func(next ports.SnapshotStore) ports.SnapshotStore {
		return &instrumentationMiddleware{next: next, observer: observer, now: time.Now}
	}
}

func (m *instrumentationMiddleware) observe(op string, start time.Time, err error) {
	outcome := OutcomeOK
	switch {
	case errors.Is(err, domain.ErrMachineNotFound):
		outcome = OutcomeNotFound
	case err != nil:
		outcome = OutcomeError
	}
	m.observer.WithLabelValues(op, outcome).Observe(m.now().Sub(start).Seconds())
}

func (m *instrumentationMiddleware) Save(ctx context.Context, machineID string, snap *domain.Snapshot) error {
	start := m.now()
	err := m.next.Save(ctx, machineID, snap)
	m.observe("save", start, err)
	return err
}

func (m *instrumentationMiddleware) Load(ctx context.Context, machineID string) (*domain.Snapshot, error) {
	start := m.now()
	snap, err := m.next.Load(ctx, machineID)
	m.observe("load", start, err)
	return snap, err
}

func (m *instrumentationMiddleware) Delete(ctx context.Context, machineID string) error {
	start := m.now()
	err := m.next.Delete(ctx, machineID)
	m.observe("delete", start, err)
	return err
}

func (m *instrumentationMiddleware) List(ctx context.Context) ([]string, error) {
	start := m.now()
	ids, err := m.next.List(ctx)
	m.observe("list", start, err)
	return ids, err
}
