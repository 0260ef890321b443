/*
Package domain contains the core vocabulary of the dispensing controller.

It defines the fixed set of machine states, the triggers a machine accepts,
the outcome of an activation and the snapshot callers persist between
operations. This package is kept pure and free of I/O so that it can be shared
by the runtime, the adapters and the CLI.

# Key Entities

  - State: the active mode of a machine (NoPayment, HasPayment, Dispensing, SoldOut).
  - Trigger: an external event offered to a machine (insert, cancel, activate).
  - DispenseResult: the value returned by an activation, Dispensed or Rejected(reason).
  - Outcome: everything a single trigger produced (transitions, notices, result).
  - Snapshot: the serializable view of a machine (state + inventory).
*/
package domain
