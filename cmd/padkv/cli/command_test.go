// Copyright 2026 The Padkv Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"strings"
	"testing"

	"github.com/spf13/pflag"
)

func TestExecuteDispatchesSubcommand(t *testing.T) {
	var got []string
	root := &Command{
		Name: "padkv",
		Subcommands: []*Command{
			{
				Name: "put",
				Run: func(args []string) error {
					got = args
					return nil
				},
			},
		},
	}

	if err := root.Execute([]string{"put", "key", "value"}); err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[0] != "key" || got[1] != "value" {
		t.Errorf("run received %v", got)
	}
}

func TestExecuteSuggestsCommand(t *testing.T) {
	root := &Command{
		Name: "padkv",
		Subcommands: []*Command{
			{Name: "history", Run: func([]string) error { return nil }},
			{Name: "put", Run: func([]string) error { return nil }},
		},
	}

	err := root.Execute([]string{"histroy"})
	if err == nil {
		t.Fatal("unknown command did not error")
	}
	if !strings.Contains(err.Error(), `did you mean "history"`) {
		t.Errorf("error lacks suggestion: %v", err)
	}

	// Nothing close: no suggestion offered.
	err = root.Execute([]string{"frobnicate"})
	if err == nil || strings.Contains(err.Error(), "did you mean") {
		t.Errorf("distant typo got a suggestion: %v", err)
	}
}

func TestExecuteParsesFlags(t *testing.T) {
	var verbose bool
	var rest []string
	command := &Command{
		Name: "sync",
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("sync", pflag.ContinueOnError)
			flagSet.BoolVarP(&verbose, "verbose", "v", false, "")
			return flagSet
		},
		Run: func(args []string) error {
			rest = args
			return nil
		},
	}

	if err := command.Execute([]string{"--verbose", "extra"}); err != nil {
		t.Fatal(err)
	}
	if !verbose {
		t.Error("--verbose not parsed")
	}
	if len(rest) != 1 || rest[0] != "extra" {
		t.Errorf("positional args = %v", rest)
	}
}

func TestExecuteSuggestsFlag(t *testing.T) {
	command := &Command{
		Name: "get",
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("get", pflag.ContinueOnError)
			flagSet.Bool("json", false, "")
			return flagSet
		},
		Run: func([]string) error { return nil },
	}

	err := command.Execute([]string{"--jsno"})
	if err == nil {
		t.Fatal("unknown flag did not error")
	}
	if !strings.Contains(err.Error(), "did you mean --json") {
		t.Errorf("error lacks flag suggestion: %v", err)
	}
}

func TestExecuteRequiresSubcommand(t *testing.T) {
	root := &Command{
		Name:        "padkv",
		Subcommands: []*Command{{Name: "put", Run: func([]string) error { return nil }}},
	}
	if err := root.Execute(nil); err == nil {
		t.Fatal("bare invocation of a command group did not error")
	}
}

func TestLevenshtein(t *testing.T) {
	cases := []struct {
		a, b string
		want int
	}{
		{"", "", 0},
		{"put", "put", 0},
		{"put", "", 3},
		{"histroy", "history", 2},
		{"stats", "status", 1},
		{"rm", "ls", 2},
	}
	for _, tc := range cases {
		if got := levenshtein(tc.a, tc.b); got != tc.want {
			t.Errorf("levenshtein(%q, %q) = %d, want %d", tc.a, tc.b, got, tc.want)
		}
	}
}

func TestSuggestCommandThreshold(t *testing.T) {
	commands := []*Command{{Name: "history"}, {Name: "reset"}}
	if got := suggestCommand("histry", commands); got != "history" {
		t.Errorf("suggestCommand = %q", got)
	}
	if got := suggestCommand("xxxxxxxxxx", commands); got != "" {
		t.Errorf("far-off input suggested %q", got)
	}
}

func TestFullName(t *testing.T) {
	root := &Command{Name: "padkv"}
	sub := &Command{Name: "history", parent: root}
	if sub.fullName() != "padkv history" {
		t.Errorf("fullName = %q", sub.fullName())
	}
}
