package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/odvcencio/gitpack/pkg/object"
)

func newTagCmd() *cobra.Command {
	var storeRoot string
	var message string
	var tagger string
	var sign bool
	var keyPath string

	cmd := &cobra.Command{
		Use:   "tag <name> <target-id>",
		Short: "Create an annotated tag object in the store",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]
			target := object.Hash(args[1])
			if !target.Valid() {
				return fmt.Errorf("invalid target id %q", args[1])
			}

			store := object.NewStore(storeRoot)
			targetType, _, err := store.Read(target)
			if err != nil {
				return fmt.Errorf("resolve target: %w", err)
			}

			tag := &object.TagObj{
				TargetHash: target,
				TargetType: targetType,
				Name:       name,
				Tagger:     tagger,
				Timestamp:  time.Now().Unix(),
				Message:    message,
			}

			if sign {
				signer, usedKey, err := newSSHTagSigner(keyPath)
				if err != nil {
					return err
				}
				sig, err := signer(object.TagSigningPayload(tag))
				if err != nil {
					return fmt.Errorf("sign tag with %s: %w", usedKey, err)
				}
				tag.Signature = sig
			}

			h, err := store.WriteTag(tag)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", h, name)
			return nil
		},
	}

	cmd.Flags().StringVarP(&storeRoot, "store", "C", ".", "object store root directory")
	cmd.Flags().StringVarP(&message, "message", "m", "", "tag message")
	cmd.Flags().StringVar(&tagger, "tagger", "", "tagger identity")
	cmd.Flags().BoolVarP(&sign, "sign", "s", false, "sign the tag with an SSH key")
	cmd.Flags().StringVar(&keyPath, "key", "", "SSH private key path (default: ~/.ssh/id_*)")
	return cmd
}
