package domain

import "errors"

// ErrInvalidArgument is returned for rejected inputs such as a negative refill count.
// No state is mutated when it is returned.
var ErrInvalidArgument = errors.New("invalid argument")

// ErrInternalInconsistency is returned when the dispense step is reached with no inventory.
// It signals a broken invariant; the operation is aborted.
var ErrInternalInconsistency = errors.New("internal inconsistency")

// ErrReentrantTrigger is the panic value used when a trigger is fired while another one is in flight.
var ErrReentrantTrigger = errors.New("re-entrant trigger")

// ErrMachineNotFound is returned when a machine ID cannot be found in the store.
var ErrMachineNotFound = errors.New("machine not found")

// ErrMachineExists is returned when creating a machine whose ID is already stored.
var ErrMachineExists = errors.New("machine already exists")
