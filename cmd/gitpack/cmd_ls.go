package main

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/odvcencio/gitpack/pkg/object"
)

func newLsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ls <pack-file>",
		Short: "List the objects contained in a pack file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			packPath := args[0]
			packData, err := os.ReadFile(packPath)
			if err != nil {
				return fmt.Errorf("read pack: %w", err)
			}
			pf, err := object.ReadPack(packData)
			if err != nil {
				return err
			}

			idxPath := strings.TrimSuffix(packPath, ".pack") + ".idx"
			idxData, err := os.ReadFile(idxPath)
			if err != nil {
				return fmt.Errorf("read companion index: %w", err)
			}
			idx, err := object.ReadPackIndex(idxData)
			if err != nil {
				return err
			}
			if idx.PackChecksum != pf.Checksum {
				return fmt.Errorf("index %s does not match pack checksum %s", idxPath, pf.Checksum)
			}

			names := make(map[uint64]object.Hash, len(pf.Entries))
			for _, entry := range idx.Entries() {
				names[entry.Offset] = entry.Hash
			}

			entries := pf.Entries
			sort.Slice(entries, func(i, j int) bool { return entries[i].Offset < entries[j].Offset })

			out := cmd.OutOrStdout()
			for _, entry := range entries {
				objType, ok := object.StoreType(entry.Type)
				if !ok {
					return fmt.Errorf("entry at offset %d: unknown type %d", entry.Offset, entry.Type)
				}
				storage := "raw"
				if entry.IsDelta() {
					storage = fmt.Sprintf("delta<-%d", entry.BaseOffset)
				}
				fmt.Fprintf(out, "%s %s %d %s\n", names[entry.Offset], objType, entry.Size, storage)
			}
			return nil
		},
	}
	return cmd
}
