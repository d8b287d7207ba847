// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Command kiln is a Flatpak-style content installer: it resolves refs
// against configured remotes, plans installs/updates/dependency and
// related-ref resolution, and executes the resulting transaction
// against a pluggable store backend.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/pflag"

	"github.com/kiln-pm/kiln/cmd/kiln/cli"
	"github.com/kiln-pm/kiln/cmd/kiln/commands"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	// --config has to be known before the App (and the subcommands that
	// close over it) can be built, but the cli package parses flags
	// per-command rather than globally — so it's pulled out of argv by
	// hand before the command tree is even constructed.
	configPath, rest := extractConfigFlag(args)

	root := &cli.Command{
		Name:    "kiln",
		Summary: "a Flatpak-style content installer",
		Usage:   "kiln <command> [flags]",
		Flags: func() *pflag.FlagSet {
			fs := pflag.NewFlagSet("kiln", pflag.ContinueOnError)
			fs.String("config", "", "path to the kiln config file (overrides KILN_CONFIG)")
			return fs
		},
	}

	app, err := commands.NewApp(configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "kiln:", err)
		return 1
	}

	root.Subcommands = []*cli.Command{
		commands.Install(app),
		commands.Update(app),
		commands.Run(app, os.Stdin),
		commands.Search(app, os.Stdout),
		commands.Info(app, os.Stdout),
		commands.Remote(app, os.Stdout),
	}

	if err := root.Execute(rest); err != nil {
		fmt.Fprintln(os.Stderr, "kiln:", err)
		return 1
	}
	return 0
}

// extractConfigFlag pulls a "--config=<path>" or "--config <path>"
// out of args, wherever it appears, returning the path and the remaining args in
// original order. kiln needs the config path before it can build the
// App that every subcommand closes over, so this runs ahead of the
// cli package's own per-command flag parsing.
func extractConfigFlag(args []string) (string, []string) {
	rest := make([]string, 0, len(args))
	var path string

	for i := 0; i < len(args); i++ {
		arg := args[i]
		switch {
		case arg == "--config" && i+1 < len(args):
			path = args[i+1]
			i++
		case len(arg) > len("--config=") && arg[:len("--config=")] == "--config=":
			path = arg[len("--config="):]
		default:
			rest = append(rest, arg)
		}
	}
	return path, rest
}
