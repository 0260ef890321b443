package dispenser_test

import (
	"context"
	"fmt"
	"log"

	"github.com/aretw0/dispenser"
	"github.com/aretw0/dispenser/pkg/domain"
)

// ExampleNew walks a machine through a purchase and a sell-out.
func ExampleNew() {
	ctx := context.Background()
	m := dispenser.New(dispenser.WithMachineID("lobby"))

	if err := m.Refill(ctx, 1); err != nil {
		log.Fatal(err)
	}

	m.InsertPayment(ctx)
	res, err := m.Activate(ctx)
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println(res, m.CurrentState().Label(), m.InventoryCount())

	res, _ = m.Activate(ctx)
	fmt.Println(res)
	// Output:
	// Dispensed SoldOut 0
	// Rejected(out_of_stock)
}

// ExampleMachine_Fire shows the full outcome of a trigger.
func ExampleMachine_Fire() {
	ctx := context.Background()
	m := dispenser.New()
	_ = m.Refill(ctx, 3)
	m.InsertPayment(ctx)

	out, err := m.Fire(ctx, domain.TriggerActivate)
	if err != nil {
		log.Fatal(err)
	}
	for _, tr := range out.Transitions {
		fmt.Printf("%s -> %s\n", tr.From.Label(), tr.To.Label())
	}
	for _, n := range out.Notices {
		fmt.Println(n.Message)
	}
	// Output:
	// HasPayment -> Dispensing
	// Dispensing -> NoPayment
	// Dispensing...
	// Unit released.
}
