// Copyright 2026 The Padkv Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/pflag"

	"github.com/padkv/padkv/cmd/padkv/cli"
)

func rmCommand() *cli.Command {
	var flags storeFlags
	var force bool
	return &cli.Command{
		Name:    "rm",
		Summary: "Remove a key",
		Description: `Remove a key.

A tombstone is appended to the key's history and its pointer is
dropped. Earlier versions remain fetchable by number. Removing an
absent key succeeds silently.`,
		Usage: "padkv rm <key> [flags]",
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("rm", pflag.ContinueOnError)
			flags.addFlags(flagSet, false)
			flagSet.BoolVarP(&force, "force", "f", false, "remove without confirmation")
			return flagSet
		},
		Run: func(args []string) error {
			if len(args) != 1 {
				return fmt.Errorf("rm requires exactly one key argument")
			}
			if !force && !cli.Confirm(fmt.Sprintf("remove %q?", args[0])) {
				fmt.Fprintln(os.Stderr, "aborted; pass --force to remove without confirmation")
				return &cli.ExitError{Code: 1}
			}

			store, _, err := flags.openStore("rm")
			if err != nil {
				return err
			}
			defer store.Close()

			if err := store.Remove(context.Background(), args[0]); err != nil {
				return err
			}
			fmt.Printf("removed %s\n", args[0])
			return nil
		},
	}
}
