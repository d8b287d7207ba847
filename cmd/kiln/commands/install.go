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

// Install builds the `kiln install` subcommand.
func Install(app *App) *cli.Command {
	var subpaths []string
	var noPull, noDeploy, addDeps, addRelated bool
	var ociURI, ociTag string

	return &cli.Command{
		Name:    "install",
		Summary: "install a ref from a remote",
		Usage:   "kiln install <remote> <ref> [flags]\n  kiln install --oci <uri> [--tag <tag>] [flags]",
		Flags: func() *pflag.FlagSet {
			fs := pflag.NewFlagSet("install", pflag.ContinueOnError)
			fs.StringArrayVar(&subpaths, "subpath", nil, "restrict the pull to this subpath (repeatable)")
			fs.BoolVar(&noPull, "no-pull", false, "plan the install without pulling content")
			fs.BoolVar(&noDeploy, "no-deploy", false, "pull without deploying")
			fs.BoolVar(&addDeps, "add-deps", true, "resolve and install the declared runtime dependency")
			fs.BoolVar(&addRelated, "add-related", true, "resolve and install related refs")
			fs.StringVar(&ociURI, "oci", "", "install from an OCI registry URI instead of a configured remote")
			fs.StringVar(&ociTag, "tag", "latest", "OCI image tag, used with --oci")
			return fs
		},
		Run: func(args []string) error {
			cfg := planner.Config{NoPull: noPull, NoDeploy: noDeploy, AddDeps: addDeps, AddRelated: addRelated}
			tx := planner.New(app.Scope, cfg, planner.WithChooser(app.Chooser), planner.WithLogger(app.Logger))
			ctx := context.Background()

			if ociURI != "" {
				if err := tx.AddInstallFromOCI(ctx, newOCIRegistry(), ociURI, ociTag); err != nil {
					return err
				}
			} else {
				if len(args) != 2 {
					return fmt.Errorf("install: expected <remote> <ref>, got %d args", len(args))
				}
				if err := tx.AddInstall(ctx, args[0], args[1], subpaths); err != nil {
					return err
				}
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
