package main

import (
	"context"
	"fmt"
	"io"

	"github.com/aretw0/dispenser"
	"github.com/aretw0/dispenser/pkg/domain"
	"github.com/spf13/cobra"
)

func newDemoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "demo",
		Short: "Play the classic gumball scenario on an in-memory machine",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDemo(cmd.Context(), cmd.OutOrStdout())
		},
	}
}

// runDemo stocks five units, exercises every rejection path and drains the machine.
func runDemo(ctx context.Context, w io.Writer) error {
	m := dispenser.New(
		dispenser.WithMachineID("demo"),
		dispenser.WithLifecycleHooks(domain.LifecycleHooks{
			OnNotice: func(_ context.Context, e *domain.NoticeEvent) {
				fmt.Fprintln(w, e.Notice.Message)
			},
		}),
	)

	activate := func() error {
		res, err := m.Activate(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintln(w, res)
		return nil
	}

	// The restock notice reaches w through OnNotice.
	if err := m.Refill(ctx, 5); err != nil {
		return err
	}

	m.InsertPayment(ctx)
	if err := activate(); err != nil {
		return err
	}
	m.CancelPayment(ctx)
	if err := activate(); err != nil {
		return err
	}

	for i := 0; i < 5; i++ {
		m.InsertPayment(ctx)
		if err := activate(); err != nil {
			return err
		}
	}

	fmt.Fprintf(w, "State: %s | Inventory: %d\n", m.CurrentState().Label(), m.InventoryCount())
	return nil
}
