package domain

import (
	"fmt"
	"time"
)

// Snapshot is the serializable view of a machine.
// It is what stores persist; the runtime restores a controller from it.
type Snapshot struct {
	MachineID string    `json:"machine_id" mapstructure:"machine_id"`
	State     State     `json:"state" mapstructure:"state"`
	Inventory int       `json:"inventory" mapstructure:"inventory"`
	Version   int64     `json:"version" mapstructure:"version"`
	UpdatedAt time.Time `json:"updated_at" mapstructure:"updated_at"`
}

// NewSnapshot returns the snapshot of a freshly built machine: sold out, no stock.
func NewSnapshot(machineID string) *Snapshot {
	return &Snapshot{
		MachineID: machineID,
		State:     StateSoldOut,
	}
}

// Validate checks that the snapshot describes a settled machine.
func (s *Snapshot) Validate() error {
	if s == nil {
		return fmt.Errorf("%w: nil snapshot", ErrInvalidArgument)
	}
	if !s.State.Valid() {
		return fmt.Errorf("%w: unknown state %q", ErrInvalidArgument, s.State)
	}
	if s.Inventory < 0 {
		return fmt.Errorf("%w: negative inventory %d", ErrInvalidArgument, s.Inventory)
	}
	if s.State == StateDispensing {
		return fmt.Errorf("%w: %s is not a settled state", ErrInvalidArgument, s.State)
	}
	if s.Inventory == 0 && s.State != StateSoldOut {
		return fmt.Errorf("%w: state %s with empty inventory", ErrInvalidArgument, s.State)
	}
	if s.Inventory > 0 && s.State == StateSoldOut {
		return fmt.Errorf("%w: sold out with inventory %d", ErrInvalidArgument, s.Inventory)
	}
	return nil
}

// Clone returns a copy of the snapshot.
func (s *Snapshot) Clone() *Snapshot {
	if s == nil {
		return nil
	}
	c := *s
	return &c
}
