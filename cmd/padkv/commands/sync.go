// Copyright 2026 The Padkv Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"fmt"

	"github.com/spf13/pflag"

	"github.com/padkv/padkv/cmd/padkv/cli"
	padsync "github.com/padkv/padkv/lib/sync"
)

// reconcileInfo is the JSON shape for one reconciled key.
type reconcileInfo struct {
	Key     string `json:"key"`
	Outcome string `json:"outcome"`
	Error   string `json:"error,omitempty"`
}

func syncCommand() *cli.Command {
	var flags storeFlags
	return &cli.Command{
		Name:    "sync",
		Summary: "Finish or roll back interrupted writes",
		Description: `Reconcile pending writes.

A put interrupted by a crash or network failure leaves its pads staged
locally and its intent recorded. Sync finishes the upload and commits
the write, or rolls it back when it can no longer complete. Exits
non-zero when any key stays pending.`,
		Usage: "padkv sync [flags]",
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("sync", pflag.ContinueOnError)
			flags.addFlags(flagSet, true)
			return flagSet
		},
		Run: func(args []string) error {
			if len(args) != 0 {
				return fmt.Errorf("sync takes no arguments")
			}

			store, _, err := flags.openStore("sync")
			if err != nil {
				return err
			}
			defer store.Close()

			report, err := store.Reconcile(context.Background())
			if err != nil {
				return err
			}

			if flags.json {
				infos := make([]reconcileInfo, 0, len(report.Results))
				for _, result := range report.Results {
					info := reconcileInfo{Key: result.Key, Outcome: result.Outcome.String()}
					if result.Err != nil {
						info.Error = result.Err.Error()
					}
					infos = append(infos, info)
				}
				if err := cli.WriteJSON(infos); err != nil {
					return err
				}
			} else {
				for _, result := range report.Results {
					if result.Err != nil {
						fmt.Printf("%s: %s (%v)\n", result.Key, result.Outcome, result.Err)
					} else {
						fmt.Printf("%s: %s\n", result.Key, result.Outcome)
					}
				}
				if len(report.Results) == 0 {
					fmt.Println("nothing to reconcile")
				}
			}

			if report.Count(padsync.Failed) > 0 {
				return &cli.ExitError{Code: 1}
			}
			return nil
		},
	}
}
