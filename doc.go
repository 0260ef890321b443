/*
Package dispenser is a stateful transaction controller for inventory-bound
dispensing devices (gumball and vending machines, ticket kiosks).

A Machine holds a single authoritative state and an inventory count. It accepts
discrete triggers (insert payment, cancel payment, activate) and lets the
active state decide both the side effect and the next state. Dispensing is a
compound transition (HasPayment -> Dispensing -> NoPayment|SoldOut) that is
committed as one step, so no other trigger can interleave with it.

# Concept

Transitions are a pure function of (state, inventory, trigger). The Machine
owns the state tag and applies the outcome; states never hold references back
to the machine. Notices ("Payment accepted.", "Out of stock.") are advisory and
routed to a slog.Logger and to LifecycleHooks.

A Machine is not safe for concurrent use. For multi-machine or multi-replica
deployments use pkg/fleet, which serializes triggers per machine and persists
snapshots through a ports.SnapshotStore.

# Usage

	package main

	import (
		"context"
		"fmt"
		"log"

		"github.com/aretw0/dispenser"
	)

	func main() {
		ctx := context.Background()
		m := dispenser.New(dispenser.WithMachineID("lobby"))

		if err := m.Refill(ctx, 5); err != nil {
			log.Fatal(err)
		}

		m.InsertPayment(ctx)
		res, err := m.Activate(ctx)
		if err != nil {
			log.Fatal(err)
		}
		fmt.Println(res, m.InventoryCount()) // Dispensed 4
	}
*/
package dispenser
