// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"fmt"
	"io"

	"github.com/spf13/pflag"

	"github.com/kiln-pm/kiln/cmd/kiln/cli"
	"github.com/kiln-pm/kiln/lib/config"
)

// Remote builds the `kiln remote` command group: list, add, and remove
// manage the remotes section of the loaded configuration file.
func Remote(app *App, out io.Writer) *cli.Command {
	return &cli.Command{
		Name:    "remote",
		Summary: "manage configured remotes",
		Usage:   "kiln remote <list|add|remove> [flags]",
		Subcommands: []*cli.Command{
			remoteList(app, out),
			remoteAdd(app),
			remoteRemove(app),
		},
	}
}

func remoteList(app *App, out io.Writer) *cli.Command {
	return &cli.Command{
		Name:    "list",
		Summary: "list configured remotes",
		Usage:   "kiln remote list",
		Run: func(args []string) error {
			for _, r := range app.Config.Remotes {
				status := "enabled"
				if r.Disabled {
					status = "disabled"
				}
				fmt.Fprintf(out, "%s\t%s\t%s\n", r.Name, r.URL, status)
			}
			return nil
		},
	}
}

func remoteAdd(app *App) *cli.Command {
	var url, defaultBranch string
	var disabled bool

	return &cli.Command{
		Name:    "add",
		Summary: "add a remote",
		Usage:   "kiln remote add <name> --url=<url> [flags]",
		Flags: func() *pflag.FlagSet {
			fs := pflag.NewFlagSet("add", pflag.ContinueOnError)
			fs.StringVar(&url, "url", "", "the remote's repository summary/objects endpoint")
			fs.StringVar(&defaultBranch, "default-branch", "", "branch used when an install omits one")
			fs.BoolVar(&disabled, "disabled", false, "add the remote already disabled")
			return fs
		},
		Run: func(args []string) error {
			if len(args) != 1 {
				return fmt.Errorf("remote add: expected <name>, got %d args", len(args))
			}
			name := args[0]
			if url == "" {
				return fmt.Errorf("remote add: --url is required")
			}
			if _, ok := app.Config.RemoteByName(name); ok {
				return fmt.Errorf("remote add: %s is already configured", name)
			}
			app.Config.Remotes = append(app.Config.Remotes, config.RemoteConfig{
				Name:          name,
				URL:           url,
				Disabled:      disabled,
				DefaultBranch: defaultBranch,
			})
			return app.Config.Save()
		},
	}
}

func remoteRemove(app *App) *cli.Command {
	return &cli.Command{
		Name:    "remove",
		Summary: "remove a configured remote",
		Usage:   "kiln remote remove <name>",
		Run: func(args []string) error {
			if len(args) != 1 {
				return fmt.Errorf("remote remove: expected <name>, got %d args", len(args))
			}
			name := args[0]
			remotes := app.Config.Remotes[:0:0]
			found := false
			for _, r := range app.Config.Remotes {
				if r.Name == name {
					found = true
					continue
				}
				remotes = append(remotes, r)
			}
			if !found {
				return fmt.Errorf("remote remove: %s is not configured", name)
			}
			app.Config.Remotes = remotes
			return app.Config.Save()
		},
	}
}
