package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/odvcencio/gitpack/pkg/object"
)

func newVerifyCmd() *cobra.Command {
	var storeRoot string

	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Check object integrity across loose objects and packs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store := object.NewStore(storeRoot)
			summary, err := store.Verify()
			if err != nil {
				return err
			}
			fmt.Fprintf(
				cmd.OutOrStdout(),
				"ok: %d loose object(s), %d pack(s) holding %d object(s)\n",
				summary.LooseObjects,
				summary.PackFiles,
				summary.PackObjects,
			)
			return nil
		},
	}

	cmd.Flags().StringVarP(&storeRoot, "store", "C", ".", "object store root directory")
	return cmd
}
