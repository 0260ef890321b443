package main

import (
	"fmt"

	"github.com/aretw0/dispenser/internal/presentation/graph"
	"github.com/aretw0/dispenser/internal/presentation/tui"
	"github.com/aretw0/dispenser/internal/runtime"
	"github.com/spf13/cobra"
)

func newGraphCmd(a *app) *cobra.Command {
	graphCmd := &cobra.Command{
		Use:   "graph",
		Short: "Export the state machine visualization",
		Long: `Outputs a Mermaid diagram (stateDiagram-v2) of the transition rules.
With --machine the machine's current state is highlighted.
With --table the rules are printed as a markdown table, rendered for the terminal unless --raw is set.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			machineID, _ := cmd.Flags().GetString("machine")
			table, _ := cmd.Flags().GetBool("table")
			raw, _ := cmd.Flags().GetBool("raw")
			out := cmd.OutOrStdout()

			if table {
				md := graph.GenerateTable(runtime.Table())
				if raw {
					fmt.Fprint(out, md)
					return nil
				}
				render, err := tui.NewRenderer("")
				if err != nil {
					return err
				}
				rendered, err := render(md)
				if err != nil {
					return err
				}
				fmt.Fprint(out, rendered)
				return nil
			}

			var overlay *graph.Overlay
			if machineID != "" {
				mgr, err := a.openFleet(cmd.Context())
				if err != nil {
					return err
				}
				snap, err := mgr.Get(cmd.Context(), machineID)
				if err != nil {
					return err
				}
				overlay = &graph.Overlay{Current: snap.State}
			}
			fmt.Fprint(out, graph.GenerateMermaid(runtime.Table(), overlay))
			return nil
		},
	}
	graphCmd.Flags().String("machine", "", "Highlight the current state of this machine")
	graphCmd.Flags().Bool("table", false, "Print the transition table instead of the diagram")
	graphCmd.Flags().Bool("raw", false, "With --table, print plain markdown")
	return graphCmd
}
