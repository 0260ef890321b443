package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/aretw0/dispenser/internal/runtime"
	"github.com/aretw0/dispenser/pkg/domain"
	"github.com/spf13/cobra"
)

func newMachineCmd(a *app) *cobra.Command {
	machineCmd := &cobra.Command{
		Use:   "machine",
		Short: "Manage persisted machines",
		Long:  `Create, list, inspect and remove machines in the configured store.`,
	}

	createCmd := &cobra.Command{
		Use:   "create [machine-id]",
		Short: "Create a machine (a random ID is generated when omitted)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			stock, _ := cmd.Flags().GetInt("stock")
			var id string
			if len(args) == 1 {
				id = args[0]
			}

			mgr, err := a.openFleet(cmd.Context())
			if err != nil {
				return err
			}
			snap, err := mgr.Create(cmd.Context(), id, stock)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created machine '%s'\n", snap.MachineID)
			printStatus(cmd.OutOrStdout(), snap)
			return nil
		},
	}
	createCmd.Flags().Int("stock", 0, "Initial inventory")

	lsCmd := &cobra.Command{
		Use:   "ls",
		Short: "List all machines",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr, err := a.openFleet(cmd.Context())
			if err != nil {
				return err
			}
			ids, err := mgr.List(cmd.Context())
			if err != nil {
				return fmt.Errorf("error listing machines: %w", err)
			}

			out := cmd.OutOrStdout()
			if len(ids) == 0 {
				fmt.Fprintln(out, "No machines found.")
				return nil
			}
			fmt.Fprintln(out, "Machines:")
			for _, id := range ids {
				fmt.Fprintln(out, "- "+id)
			}
			return nil
		},
	}

	inspectCmd := &cobra.Command{
		Use:   "inspect <machine-id>",
		Short: "Print the stored snapshot of a machine",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr, err := a.openFleet(cmd.Context())
			if err != nil {
				return err
			}
			snap, err := mgr.Get(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("error loading machine '%s': %w", args[0], err)
			}

			data, err := json.MarshalIndent(snap, "", "  ")
			if err != nil {
				return fmt.Errorf("error marshaling snapshot: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(data))
			return nil
		},
	}

	rmCmd := &cobra.Command{
		Use:   "rm <machine-id>...",
		Short: "Remove one or more machines",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr, err := a.openFleet(cmd.Context())
			if err != nil {
				return err
			}

			failed := 0
			for _, id := range args {
				if err := mgr.Delete(cmd.Context(), id); err != nil {
					fmt.Fprintf(cmd.ErrOrStderr(), "Error removing '%s': %v\n", id, err)
					failed++
					continue
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed machine '%s'\n", id)
			}
			if failed > 0 {
				return fmt.Errorf("%d machine(s) could not be removed", failed)
			}
			return nil
		},
	}

	machineCmd.AddCommand(createCmd, lsCmd, inspectCmd, rmCmd)
	return machineCmd
}

func newTriggerCmd(a *app, use, short string, trigger domain.Trigger) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr, err := a.openFleet(cmd.Context())
			if err != nil {
				return err
			}
			out, snap, err := mgr.Fire(cmd.Context(), args[0], trigger)
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			printOutcome(w, out)
			printStatus(w, snap)
			return nil
		},
	}
}

func newRefillCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "refill <machine-id> <count>",
		Short: "Restock a machine with exactly count units",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("%w: %q is not a number", domain.ErrInvalidArgument, args[1])
			}
			mgr, err := a.openFleet(cmd.Context())
			if err != nil {
				return err
			}
			snap, err := mgr.Refill(cmd.Context(), args[0], n)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), runtime.RefillNotice(n).Message)
			printStatus(cmd.OutOrStdout(), snap)
			return nil
		},
	}
}

func printOutcome(w io.Writer, out domain.Outcome) {
	for _, n := range out.Notices {
		fmt.Fprintln(w, n.Message)
	}
	if out.Result != nil {
		fmt.Fprintln(w, out.Result.String())
	}
}

func printStatus(w io.Writer, snap *domain.Snapshot) {
	fmt.Fprintf(w, "State: %s | Inventory: %d\n", snap.State.Label(), snap.Inventory)
}
