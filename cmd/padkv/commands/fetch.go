// Copyright 2026 The Padkv Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/pflag"

	"github.com/padkv/padkv/cmd/padkv/cli"
	"github.com/padkv/padkv/lib/kv"
)

func fetchCommand() *cli.Command {
	var flags storeFlags
	var outputPath string
	return &cli.Command{
		Name:    "fetch",
		Summary: "Fetch a specific historical version of a key",
		Description: `Fetch a historical version of a key using key@version syntax.

Pads are immutable, so every version a key has ever held remains
fetchable. Version numbers start at 1; 'padkv history <key>' lists
them.`,
		Usage: "padkv fetch <key>@<version> [flags]",
		Examples: []cli.Example{
			{
				Description: "Fetch version 3 of a key",
				Command:     "padkv fetch backups/db/latest@3 -o dump-v3.sql",
			},
		},
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("fetch", pflag.ContinueOnError)
			flags.addFlags(flagSet, false)
			flagSet.StringVarP(&outputPath, "output", "o", "", "write the value to this file instead of stdout")
			return flagSet
		},
		Run: func(args []string) error {
			if len(args) != 1 {
				return fmt.Errorf("fetch requires exactly one <key>@<version> argument")
			}
			key, version, err := parseKeyVersion(args[0])
			if err != nil {
				return err
			}

			store, _, err := flags.openStore("fetch")
			if err != nil {
				return err
			}
			defer store.Close()

			progress := cli.NewProgress("fetching")
			value, _, err := store.GetVersion(context.Background(), key, version, progress.Callback())
			if err != nil {
				if errors.Is(err, kv.ErrNotFound) {
					fmt.Fprintf(os.Stderr, "%v\n", err)
					return &cli.ExitError{Code: 2}
				}
				return err
			}

			return writeValue(outputPath, value)
		},
	}
}

// parseKeyVersion splits "key@version". The version is the part after
// the last '@', so keys containing '@' still work.
func parseKeyVersion(arg string) (string, uint64, error) {
	at := strings.LastIndexByte(arg, '@')
	if at < 0 {
		return "", 0, fmt.Errorf("expected <key>@<version>, got %q", arg)
	}
	key := arg[:at]
	if key == "" {
		return "", 0, fmt.Errorf("empty key in %q", arg)
	}
	version, err := strconv.ParseUint(arg[at+1:], 10, 64)
	if err != nil || version == 0 {
		return "", 0, fmt.Errorf("invalid version in %q: versions are positive integers", arg)
	}
	return key, version, nil
}
