// Copyright 2026 The Padkv Authors
// SPDX-License-Identifier: Apache-2.0

// Package commands builds the complete padkv CLI command tree.
package commands

import (
	"fmt"
	"log/slog"

	"github.com/spf13/pflag"

	"github.com/padkv/padkv/cmd/padkv/cli"
	"github.com/padkv/padkv/lib/config"
	"github.com/padkv/padkv/lib/kv"
	"github.com/padkv/padkv/lib/version"
)

// Root builds and returns the complete padkv CLI command tree.
func Root() *cli.Command {
	return &cli.Command{
		Name: "padkv",
		Description: `padkv: a mutable key-value store over an immutable pad network.

Values are split into content-addressed pad chains and uploaded once;
keys are mutable pointers to chain heads. Every write is a new version,
old versions stay fetchable, and interrupted writes resume with 'padkv
sync'.`,
		Subcommands: []*cli.Command{
			putCommand(),
			getCommand(),
			rmCommand(),
			lsCommand(),
			historyCommand(),
			fetchCommand(),
			syncCommand(),
			statsCommand(),
			resetCommand(),
			{
				Name:    "version",
				Summary: "Print version information",
				Run: func(args []string) error {
					fmt.Printf("padkv %s\n", version.Full())
					return nil
				},
			},
		},
	}
}

// storeFlags carries the flags every store-touching command shares.
type storeFlags struct {
	configPath string
	storeRoot  string
	verbose    bool
	json       bool
}

// addFlags registers the shared flags. withJSON adds --json for
// commands with structured output.
func (f *storeFlags) addFlags(flagSet *pflag.FlagSet, withJSON bool) {
	flagSet.StringVar(&f.configPath, "config", "", "path to padkv.yaml (overrides PADKV_CONFIG)")
	flagSet.StringVar(&f.storeRoot, "store", "", "local state directory (overrides the configured store_root)")
	flagSet.BoolVarP(&f.verbose, "verbose", "v", false, "enable debug logging")
	if withJSON {
		flagSet.BoolVar(&f.json, "json", false, "output as JSON")
	}
}

// openStore loads configuration and opens the store, scoping the
// logger to the command name.
func (f *storeFlags) openStore(command string) (*kv.Store, *slog.Logger, error) {
	var cfg *config.Config
	var err error
	if f.configPath != "" {
		cfg, err = config.LoadFile(f.configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, nil, err
	}
	if f.storeRoot != "" {
		cfg.StoreRoot = f.storeRoot
	}

	logger := cli.NewCommandLogger(f.verbose).With("command", command)
	store, err := kv.Open(cfg, kv.WithLogger(logger))
	if err != nil {
		return nil, nil, err
	}
	return store, logger, nil
}
