// Package main provides arenad, the two-seat game arena server and its
// maintenance commands.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "arenad",
		Short:         "Room-scoped two-seat game arena",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().String("config", "configs/dev.yaml", "path to configuration file (empty for defaults and environment only)")
	root.AddCommand(newServeCmd(), newMigrateCmd(), newHistoryCmd())
	return root
}

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "arenad:", err)
		os.Exit(1)
	}
}
