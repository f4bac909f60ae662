package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	root := &cobra.Command{
		Use:   "gitpack",
		Short: "Build and inspect git-style pack files",
	}

	root.AddCommand(newVersionCmd())
	root.AddCommand(newPackCmd())
	root.AddCommand(newLsCmd())
	root.AddCommand(newVerifyCmd())
	root.AddCommand(newTagCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), "gitpack 0.1.0-dev")
		},
	}
}
