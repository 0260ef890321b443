/*
Package observability turns machine lifecycle hooks into Prometheus metrics
and structured log records.

Both helpers return domain.LifecycleHooks, so they compose with Merge and
can be attached to a single machine or to a whole fleet.
*/
package observability
