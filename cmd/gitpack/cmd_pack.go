package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/odvcencio/gitpack/pkg/object"
	"github.com/odvcencio/gitpack/pkg/pack"
)

func newPackCmd() *cobra.Command {
	var storeRoot string
	var outDir string
	var threads int
	var direct bool

	cmd := &cobra.Command{
		Use:   "pack <object-id>...",
		Short: "Build a pack file from the given root objects",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(storeRoot)
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("threads") {
				threads = cfg.Pack.Threads
			}

			store := object.NewStore(storeRoot)
			b, err := pack.New(store)
			if err != nil {
				return err
			}
			defer b.Close()

			configured, err := b.SetMaxThreads(threads)
			if err != nil {
				return err
			}
			if _, err := b.SetDeltaWindow(cfg.Pack.Window); err != nil {
				return err
			}

			for _, arg := range args {
				id := object.Hash(arg)
				if direct {
					err = b.Add(id)
				} else {
					err = b.AddRecursively(id)
				}
				if err != nil {
					return err
				}
			}

			// The builder never creates directories; do it here.
			dest := outDir
			if dest == "" {
				dest = store.PackDir()
			}
			if err := os.MkdirAll(dest, 0o755); err != nil {
				return fmt.Errorf("create output dir: %w", err)
			}

			result, err := b.WriteToDirectory(dest)
			if err != nil {
				return err
			}

			fmt.Fprintf(
				cmd.OutOrStdout(),
				"wrote %d object(s) to pack-%s.pack (%d thread(s))\n",
				result.ObjectCount,
				result.PackHash,
				configured,
			)
			return nil
		},
	}

	cmd.Flags().StringVarP(&storeRoot, "store", "C", ".", "object store root directory")
	cmd.Flags().StringVarP(&outDir, "out", "o", "", "output directory (default: <store>/objects/pack)")
	cmd.Flags().IntVarP(&threads, "threads", "j", 1, "compression threads (0 = all available)")
	cmd.Flags().BoolVar(&direct, "direct", false, "add ids as given without walking references")
	return cmd
}
