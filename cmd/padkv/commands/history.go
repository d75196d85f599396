// Copyright 2026 The Padkv Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"errors"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/pflag"

	"github.com/padkv/padkv/cmd/padkv/cli"
	"github.com/padkv/padkv/lib/kv"
)

// versionInfo is the JSON shape for one history entry.
type versionInfo struct {
	Version   uint64 `json:"version"`
	Size      int64  `json:"size"`
	Pads      int    `json:"pads"`
	Head      string `json:"head,omitempty"`
	Timestamp string `json:"timestamp"`
	Tombstone bool   `json:"tombstone,omitempty"`
}

func historyCommand() *cli.Command {
	var flags storeFlags
	return &cli.Command{
		Name:    "history",
		Summary: "Show a key's version history",
		Description: `Show a key's full version history, oldest first.

Each write is a version; removals appear as tombstones. Any
non-tombstone version is fetchable with 'padkv fetch <key>@<version>'.`,
		Usage: "padkv history <key> [flags]",
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("history", pflag.ContinueOnError)
			flags.addFlags(flagSet, true)
			return flagSet
		},
		Run: func(args []string) error {
			if len(args) != 1 {
				return fmt.Errorf("history requires exactly one key argument")
			}
			key := args[0]

			store, _, err := flags.openStore("history")
			if err != nil {
				return err
			}
			defer store.Close()

			entries, err := store.History(key)
			if err != nil {
				if errors.Is(err, kv.ErrNotFound) {
					fmt.Fprintf(os.Stderr, "key %q has no history\n", key)
					return &cli.ExitError{Code: 2}
				}
				return err
			}

			if flags.json {
				infos := make([]versionInfo, 0, len(entries))
				for _, entry := range entries {
					info := versionInfo{
						Version:   entry.Version,
						Size:      entry.Size,
						Pads:      entry.PadCount,
						Timestamp: entry.Timestamp.UTC().Format("2006-01-02T15:04:05Z"),
						Tombstone: entry.Tombstone,
					}
					if !entry.Tombstone {
						info.Head = entry.Head.String()
					}
					infos = append(infos, info)
				}
				return cli.WriteJSON(infos)
			}

			tw := tabwriter.NewWriter(os.Stdout, 2, 0, 3, ' ', 0)
			fmt.Fprintf(tw, "VERSION\tSIZE\tPADS\tWRITTEN\tHEAD\n")
			for _, entry := range entries {
				head := entry.Head.Short()
				if entry.Tombstone {
					head = "(removed)"
				}
				fmt.Fprintf(tw, "%d\t%d\t%d\t%s\t%s\n",
					entry.Version, entry.Size, entry.PadCount,
					entry.Timestamp.UTC().Format("2006-01-02 15:04:05"), head)
			}
			return tw.Flush()
		},
	}
}
