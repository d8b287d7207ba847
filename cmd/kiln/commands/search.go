// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/pflag"

	"github.com/kiln-pm/kiln/cmd/kiln/cli"
	"github.com/kiln-pm/kiln/internal/fuzzy"
	"github.com/kiln-pm/kiln/lib/ref"
)

// Search builds the `kiln search` subcommand: fuzzy-matches query
// against every ref this scope knows about (junegunn/fzf), printing
// the pretty name of each match best-score-first.
func Search(app *App, out io.Writer) *cli.Command {
	var limit int

	return &cli.Command{
		Name:    "search",
		Summary: "fuzzy-search known refs",
		Usage:   "kiln search <query> [flags]",
		Flags: func() *pflag.FlagSet {
			fs := pflag.NewFlagSet("search", pflag.ContinueOnError)
			fs.IntVar(&limit, "limit", 20, "maximum number of matches to print")
			return fs
		},
		Run: func(args []string) error {
			if len(args) != 1 {
				return fmt.Errorf("search: expected <query>, got %d args", len(args))
			}

			refs, err := app.Scope.ListRefs(context.Background())
			if err != nil {
				return fmt.Errorf("search: %w", err)
			}

			matches := fuzzy.Search(refs, args[0])
			if limit > 0 && len(matches) > limit {
				matches = matches[:limit]
			}
			for _, m := range matches {
				fmt.Fprintln(out, ref.MustPretty(m.Text))
			}
			return nil
		},
	}
}
