// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/pflag"

	"github.com/kiln-pm/kiln/cmd/kiln/cli"
	"github.com/kiln-pm/kiln/internal/executor"
	"github.com/kiln-pm/kiln/internal/planner"
)

// Run builds the `kiln run` subcommand: a batch mode that reads a
// script of install/update lines from stdin, accumulates them into a
// single Transaction, and executes it once. This is the CLI's answer
// to the teacher's scripted multi-host orchestration — here scripted
// across multiple refs instead of multiple machines.
//
// Each stdin line is one of:
//
//	install <remote> <ref> [subpath...]
//	update <ref> [commit]
//
// Blank lines and lines starting with '#' are ignored.
func Run(app *App, stdin io.Reader) *cli.Command {
	var stopOnFirstError bool
	var noPull, noDeploy, addDeps, addRelated bool

	return &cli.Command{
		Name:    "run",
		Summary: "run a batch of install/update operations from stdin",
		Usage:   "kiln run [--stop-on-first-error]",
		Flags: func() *pflag.FlagSet {
			fs := pflag.NewFlagSet("run", pflag.ContinueOnError)
			fs.BoolVar(&stopOnFirstError, "stop-on-first-error", false, "halt the batch at the first failing operation")
			fs.BoolVar(&noPull, "no-pull", false, "plan every operation without pulling content")
			fs.BoolVar(&noDeploy, "no-deploy", false, "pull without deploying")
			fs.BoolVar(&addDeps, "add-deps", true, "resolve and install declared runtime dependencies")
			fs.BoolVar(&addRelated, "add-related", true, "resolve and install related refs")
			return fs
		},
		Run: func(args []string) error {
			if len(args) != 0 {
				return fmt.Errorf("run: expected no positional args, got %d", len(args))
			}

			cfg := planner.Config{NoPull: noPull, NoDeploy: noDeploy, AddDeps: addDeps, AddRelated: addRelated}
			tx := planner.New(app.Scope, cfg, planner.WithChooser(app.Chooser), planner.WithLogger(app.Logger))
			ctx := context.Background()

			if err := readBatch(ctx, tx, stdin); err != nil {
				return err
			}

			exec := executor.New(app.Scope, executor.WithLogger(app.Logger))
			ok, err := exec.Run(ctx, tx.ID(), tx.Ops(), tx.Config(), stopOnFirstError)
			if !ok {
				return err
			}
			return nil
		},
	}
}

// readBatch parses stdin line by line and enqueues each operation
// onto tx, stopping at the first malformed line.
func readBatch(ctx context.Context, tx *planner.Transaction, stdin io.Reader) error {
	scanner := bufio.NewScanner(stdin)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		fields := strings.Fields(line)
		switch fields[0] {
		case "install":
			if len(fields) < 3 {
				return fmt.Errorf("run: line %d: install requires <remote> <ref>", lineNo)
			}
			if err := tx.AddInstall(ctx, fields[1], fields[2], fields[3:]); err != nil {
				return fmt.Errorf("run: line %d: %w", lineNo, err)
			}
		case "update":
			if len(fields) < 2 {
				return fmt.Errorf("run: line %d: update requires <ref>", lineNo)
			}
			commit := ""
			if len(fields) >= 3 {
				commit = fields[2]
			}
			if err := tx.AddUpdate(ctx, fields[1], nil, commit); err != nil {
				return fmt.Errorf("run: line %d: %w", lineNo, err)
			}
		default:
			return fmt.Errorf("run: line %d: unknown operation %q", lineNo, fields[0])
		}
	}
	return scanner.Err()
}
