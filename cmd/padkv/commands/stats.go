// Copyright 2026 The Padkv Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"fmt"

	"github.com/spf13/pflag"

	"github.com/padkv/padkv/cmd/padkv/cli"
)

func statsCommand() *cli.Command {
	var flags storeFlags
	return &cli.Command{
		Name:    "stats",
		Summary: "Show local store statistics",
		Usage:   "padkv stats [flags]",
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("stats", pflag.ContinueOnError)
			flags.addFlags(flagSet, true)
			return flagSet
		},
		Run: func(args []string) error {
			if len(args) != 0 {
				return fmt.Errorf("stats takes no arguments")
			}

			store, _, err := flags.openStore("stats")
			if err != nil {
				return err
			}
			defer store.Close()

			stats, err := store.Stats()
			if err != nil {
				return err
			}

			if flags.json {
				return cli.WriteJSON(map[string]int{
					"keys":           stats.Keys,
					"index_entries":  stats.IndexEntries,
					"pending_writes": stats.PendingWrites,
					"staged_pads":    stats.StagedPads,
				})
			}
			fmt.Printf("keys:           %d\n", stats.Keys)
			fmt.Printf("index entries:  %d\n", stats.IndexEntries)
			fmt.Printf("pending writes: %d\n", stats.PendingWrites)
			fmt.Printf("staged pads:    %d\n", stats.StagedPads)
			return nil
		},
	}
}
