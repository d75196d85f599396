// Copyright 2026 The Padkv Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/pflag"

	"github.com/padkv/padkv/cmd/padkv/cli"
)

func putCommand() *cli.Command {
	var flags storeFlags
	return &cli.Command{
		Name:    "put",
		Summary: "Store a value under a key",
		Description: `Store a value under a key, replacing any previous value.

The value is read from a file argument or from stdin. The write becomes
a new version in the key's history; the previous version stays
fetchable with 'padkv fetch <key>@<version>'.`,
		Usage: "padkv put <key> [file] [flags]",
		Examples: []cli.Example{
			{
				Description: "Store a file",
				Command:     "padkv put backups/db/latest dump.sql",
			},
			{
				Description: "Store from stdin",
				Command:     "tar cz ./site | padkv put site/archive",
			},
		},
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("put", pflag.ContinueOnError)
			flags.addFlags(flagSet, true)
			return flagSet
		},
		Run: func(args []string) error {
			if len(args) < 1 || len(args) > 2 {
				return fmt.Errorf("put requires a key and an optional file argument")
			}
			key := args[0]

			var value []byte
			var err error
			if len(args) == 2 {
				value, err = os.ReadFile(args[1])
				if err != nil {
					return fmt.Errorf("reading input file: %w", err)
				}
			} else {
				value, err = io.ReadAll(os.Stdin)
				if err != nil {
					return fmt.Errorf("reading stdin: %w", err)
				}
			}

			store, _, err := flags.openStore("put")
			if err != nil {
				return err
			}
			defer store.Close()

			progress := cli.NewProgress("uploading")
			record, err := store.Put(context.Background(), key, value, progress.Callback())
			if err != nil {
				return err
			}

			if flags.json {
				return cli.WriteJSON(map[string]any{
					"key":  record.Key,
					"size": record.Size,
					"pads": record.PadCount,
					"head": record.Head.String(),
				})
			}
			fmt.Printf("stored %s (%d bytes, %d pads, head %s)\n",
				record.Key, record.Size, record.PadCount, record.Head.Short())
			return nil
		},
	}
}
