// Copyright 2026 The Padkv Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/pflag"

	"github.com/padkv/padkv/cmd/padkv/cli"
	"github.com/padkv/padkv/lib/kv"
)

func getCommand() *cli.Command {
	var flags storeFlags
	var outputPath string
	return &cli.Command{
		Name:    "get",
		Summary: "Fetch the current value of a key",
		Description: `Fetch the current value of a key.

The value is written to stdout, or to a file with -o. A missing key
exits with code 2 so scripts can branch without parsing stderr.`,
		Usage: "padkv get <key> [flags]",
		Examples: []cli.Example{
			{
				Description: "Fetch to a file",
				Command:     "padkv get backups/db/latest -o dump.sql",
			},
		},
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("get", pflag.ContinueOnError)
			flags.addFlags(flagSet, false)
			flagSet.StringVarP(&outputPath, "output", "o", "", "write the value to this file instead of stdout")
			return flagSet
		},
		Run: func(args []string) error {
			if len(args) != 1 {
				return fmt.Errorf("get requires exactly one key argument")
			}
			key := args[0]

			store, _, err := flags.openStore("get")
			if err != nil {
				return err
			}
			defer store.Close()

			progress := cli.NewProgress("fetching")
			value, _, err := store.Get(context.Background(), key, progress.Callback())
			if err != nil {
				if errors.Is(err, kv.ErrNotFound) {
					fmt.Fprintf(os.Stderr, "key %q not found\n", key)
					return &cli.ExitError{Code: 2}
				}
				return err
			}

			return writeValue(outputPath, value)
		},
	}
}

// writeValue writes a fetched value to a file or stdout.
func writeValue(path string, value []byte) error {
	if path == "" {
		_, err := os.Stdout.Write(value)
		return err
	}
	if err := os.WriteFile(path, value, 0o644); err != nil {
		return fmt.Errorf("writing output file: %w", err)
	}
	return nil
}
