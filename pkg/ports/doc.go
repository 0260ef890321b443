/*
Package ports defines the driven ports (interfaces) around the dispensing controller.

These interfaces decouple the fleet manager from external implementations, allowing
machines to be persisted in memory, on disk, in SQLite or in Redis, and to be
locked across replicas.

# Key Interfaces

  - SnapshotStore: Responsible for persisting and loading machine Snapshots.
  - DistributedLocker: Provides distributed locking for concurrent access to one machine.
*/
package ports
