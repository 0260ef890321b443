/*
Package fleet serializes access to many persisted machines.

A single machine is not safe for concurrent use. The Manager owns that
concern: every operation runs load, restore, fire and save while holding a
per-machine mutex and, when configured, a distributed lock shared by every
replica pointing at the same store.
*/
package fleet
