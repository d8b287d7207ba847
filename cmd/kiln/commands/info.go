// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"fmt"
	"io"

	"github.com/kiln-pm/kiln/cmd/kiln/cli"
	"github.com/kiln-pm/kiln/internal/metadata"
	"github.com/kiln-pm/kiln/internal/render"
	"github.com/kiln-pm/kiln/lib/ref"
)

// Info builds the `kiln info` subcommand: prints the deploy record, the
// cached Application metadata (syntax-highlighted), the declared
// runtime dependency, and related refs for a single ref.
func Info(app *App, out io.Writer) *cli.Command {
	return &cli.Command{
		Name:    "info",
		Summary: "show what kiln knows about a ref",
		Usage:   "kiln info <ref>",
		Run: func(args []string) error {
			if len(args) != 1 {
				return fmt.Errorf("info: expected <ref>, got %d args", len(args))
			}
			targetRef := args[0]
			ctx := context.Background()

			fmt.Fprintf(out, "# %s\n\n", ref.MustPretty(targetRef))

			var remote string
			record, deployed, err := app.Scope.GetDeployData(ctx, targetRef)
			if err != nil {
				return fmt.Errorf("info: %w", err)
			}
			if deployed {
				fmt.Fprintf(out, "deployed: yes (remote=%s commit=%s)\n", record.Origin, record.Commit)
				remote = record.Origin
			} else {
				fmt.Fprintln(out, "deployed: no")
				if remotes, err := app.Scope.SearchForDependency(ctx, targetRef); err == nil && len(remotes) > 0 {
					remote = remotes[0]
				}
			}

			if remote != "" {
				if raw, ok, err := metadata.FetchRawKeyfile(ctx, app.Scope, app.Logger, remote, targetRef); err == nil && ok {
					fmt.Fprintln(out, "\nmetadata:")
					fmt.Fprintln(out, render.Keyfile(raw))
				}

				if runtime, ok, err := metadata.FetchRuntimeRef(ctx, app.Scope, app.Logger, remote, targetRef); err == nil && ok {
					fmt.Fprintf(out, "runtime dependency: %s\n", ref.MustPretty(runtime))
				}
			}

			related, err := app.Scope.FindLocalRelated(ctx, targetRef, remote)
			if err != nil {
				return fmt.Errorf("info: %w", err)
			}
			if len(related) > 0 {
				fmt.Fprintln(out, "\nrelated refs:")
				for _, r := range related {
					fmt.Fprintf(out, "  %s (download=%t)\n", ref.MustPretty(r.Ref), r.Download)
				}
			}

			return nil
		},
	}
}
