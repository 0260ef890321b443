package main

import (
	"fmt"
	"strings"

	"github.com/aretw0/dispenser"
	"github.com/spf13/cobra"
)

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version number of dispenser",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "dispenser version %s\n", strings.TrimSpace(dispenser.Version))
		},
	}
}
