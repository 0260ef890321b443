package main

import (
	"os"

	"github.com/aretw0/dispenser"
	"github.com/aretw0/dispenser/internal/presentation/tui"
	"github.com/muesli/termenv"
	"github.com/spf13/cobra"
)

func newRunCmd() *cobra.Command {
	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Play with an in-memory machine from the console",
		Long: `Starts an interactive console on a fresh machine.
Commands are read line by line: insert, cancel, crank, refill <n>, status, quit.
With --headless the banner and prompt are suppressed, which makes the command scriptable.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			stock, _ := cmd.Flags().GetInt("stock")
			headless, _ := cmd.Flags().GetBool("headless")
			echo, _ := cmd.Flags().GetBool("echo")

			m := dispenser.New(dispenser.WithMachineID("console"))
			if stock > 0 {
				if err := m.Refill(cmd.Context(), stock); err != nil {
					return err
				}
			}

			out := cmd.OutOrStdout()
			r := dispenser.NewRunner()
			r.Input = cmd.InOrStdin()
			r.Output = out
			r.Headless = headless
			r.Echo = echo

			if f, ok := out.(*os.File); ok {
				profile := termenv.NewOutput(f).ColorProfile()
				r.Styler = tui.NewStateStyler(profile)
				if !headless {
					tui.PrintBanner(f)
				}
			}
			return r.Run(cmd.Context(), m)
		},
	}
	runCmd.Flags().Int("stock", 5, "Initial inventory")
	runCmd.Flags().Bool("headless", false, "No banner and no prompt (strict IO)")
	runCmd.Flags().Bool("echo", false, "Echo every command (useful with piped input)")
	return runCmd
}
