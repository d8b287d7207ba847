// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"fmt"

	"github.com/spf13/pflag"

	"github.com/kiln-pm/kiln/cmd/kiln/cli"
	"github.com/kiln-pm/kiln/internal/executor"
	"github.com/kiln-pm/kiln/internal/planner"
)

// Update builds the `kiln update` subcommand.
func Update(app *App) *cli.Command {
	var subpaths []string
	var commit string
	var noPull, noDeploy, addDeps, addRelated bool

	return &cli.Command{
		Name:    "update",
		Summary: "update an installed ref",
		Usage:   "kiln update <ref> [flags]",
		Flags: func() *pflag.FlagSet {
			fs := pflag.NewFlagSet("update", pflag.ContinueOnError)
			fs.StringArrayVar(&subpaths, "subpath", nil, "restrict the pull to this subpath (repeatable)")
			fs.StringVar(&commit, "commit", "", "pin the update to this commit")
			fs.BoolVar(&noPull, "no-pull", false, "plan the update without pulling content")
			fs.BoolVar(&noDeploy, "no-deploy", false, "pull without deploying")
			fs.BoolVar(&addDeps, "add-deps", true, "resolve and update the declared runtime dependency")
			fs.BoolVar(&addRelated, "add-related", true, "resolve and update related refs")
			return fs
		},
		Run: func(args []string) error {
			if len(args) != 1 {
				return fmt.Errorf("update: expected <ref>, got %d args", len(args))
			}

			cfg := planner.Config{NoPull: noPull, NoDeploy: noDeploy, AddDeps: addDeps, AddRelated: addRelated}
			tx := planner.New(app.Scope, cfg, planner.WithChooser(app.Chooser), planner.WithLogger(app.Logger))
			ctx := context.Background()

			if err := tx.AddUpdate(ctx, args[0], subpaths, commit); err != nil {
				return err
			}

			exec := executor.New(app.Scope, executor.WithLogger(app.Logger))
			ok, err := exec.Run(ctx, tx.ID(), tx.Ops(), tx.Config(), true)
			if !ok {
				return err
			}
			return nil
		},
	}
}
