// Copyright 2026 The Padkv Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/pflag"

	"github.com/padkv/padkv/cmd/padkv/cli"
)

// keyInfo is the JSON shape for a listed key.
type keyInfo struct {
	Key       string `json:"key"`
	Size      int64  `json:"size"`
	Pads      int    `json:"pads"`
	Head      string `json:"head"`
	UpdatedAt string `json:"updated_at"`
}

func lsCommand() *cli.Command {
	var flags storeFlags
	return &cli.Command{
		Name:    "ls",
		Summary: "List keys",
		Description: `List committed keys, optionally filtered by prefix.

Keys are hierarchical: 'padkv ls backups/' lists everything under
backups/.`,
		Usage: "padkv ls [prefix] [flags]",
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("ls", pflag.ContinueOnError)
			flags.addFlags(flagSet, true)
			return flagSet
		},
		Run: func(args []string) error {
			if len(args) > 1 {
				return fmt.Errorf("ls takes at most one prefix argument")
			}
			prefix := ""
			if len(args) == 1 {
				prefix = args[0]
			}

			store, _, err := flags.openStore("ls")
			if err != nil {
				return err
			}
			defer store.Close()

			records := store.List(prefix)

			if flags.json {
				infos := make([]keyInfo, 0, len(records))
				for _, record := range records {
					infos = append(infos, keyInfo{
						Key:       record.Key,
						Size:      record.Size,
						Pads:      record.PadCount,
						Head:      record.Head.String(),
						UpdatedAt: record.UpdatedAt.UTC().Format("2006-01-02T15:04:05Z"),
					})
				}
				return cli.WriteJSON(infos)
			}

			if len(records) == 0 {
				return nil
			}
			tw := tabwriter.NewWriter(os.Stdout, 2, 0, 3, ' ', 0)
			fmt.Fprintf(tw, "KEY\tSIZE\tPADS\tUPDATED\n")
			for _, record := range records {
				fmt.Fprintf(tw, "%s\t%d\t%d\t%s\n",
					record.Key, record.Size, record.PadCount,
					record.UpdatedAt.UTC().Format("2006-01-02 15:04:05"))
			}
			return tw.Flush()
		},
	}
}
