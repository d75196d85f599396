// Copyright 2026 The Padkv Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"fmt"
	"os"

	"github.com/spf13/pflag"

	"github.com/padkv/padkv/cmd/padkv/cli"
)

func resetCommand() *cli.Command {
	var flags storeFlags
	var force bool
	return &cli.Command{
		Name:    "reset",
		Summary: "Discard the local cache",
		Description: `Discard the local index and all staged pads.

Committed pointers and history are untouched; the cache repopulates on
the next read. Pending writes that have not committed are lost, so the
command refuses to run without --force while writes are pending.`,
		Usage: "padkv reset --force [flags]",
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("reset", pflag.ContinueOnError)
			flags.addFlags(flagSet, false)
			flagSet.BoolVar(&force, "force", false, "discard the cache even with pending writes")
			return flagSet
		},
		Run: func(args []string) error {
			if len(args) != 0 {
				return fmt.Errorf("reset takes no arguments")
			}

			store, _, err := flags.openStore("reset")
			if err != nil {
				return err
			}
			defer store.Close()

			stats, err := store.Stats()
			if err != nil {
				return err
			}
			if stats.PendingWrites > 0 && !force {
				return fmt.Errorf(
					"%d pending write(s) would be lost; run 'padkv sync' first or pass --force",
					stats.PendingWrites)
			}
			if !force && !cli.Confirm("discard the local cache?") {
				fmt.Fprintln(os.Stderr, "aborted; pass --force to discard without confirmation")
				return &cli.ExitError{Code: 1}
			}

			if err := store.Reset(); err != nil {
				return err
			}
			fmt.Println("local cache discarded")
			return nil
		},
	}
}
