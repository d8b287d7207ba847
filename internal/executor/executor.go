// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package executor implements the Executor (§4.8): it walks a
// finalized, insertion-ordered plan and dispatches each operation to
// the store, applying intent narrowing, the noop-update rule, and the
// fatality policy.
package executor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/kiln-pm/kiln/internal/kilnerr"
	"github.com/kiln-pm/kiln/internal/planner"
	"github.com/kiln-pm/kiln/internal/store"
	"github.com/kiln-pm/kiln/lib/ref"
)

// ErrTransactionFailed is the generic error Run returns when one or
// more fatal operations failed and stop_on_first_error was not set —
// the individual store errors are printed, not propagated,
// so the caller gets one uniform failure signal (§4.8, §6 "Exit
// semantics of run").
var ErrTransactionFailed = errors.New("one or more operations failed")

// Executor dispatches a plan's operations to a store scope.
type Executor struct {
	scope  store.Client
	out    io.Writer
	logger *slog.Logger
}

// Option customizes an Executor.
type Option func(*Executor)

// WithOutput overrides the writer user-facing transaction output is
// printed to. Defaults to os.Stdout.
func WithOutput(out io.Writer) Option {
	return func(e *Executor) { e.out = out }
}

// WithLogger overrides the default discard logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Executor) { e.logger = logger }
}

// New creates an Executor dispatching operations to scope.
func New(scope store.Client, opts ...Option) *Executor {
	e := &Executor{scope: scope}
	for _, opt := range opts {
		opt(e)
	}
	if e.out == nil {
		e.out = os.Stdout
	}
	if e.logger == nil {
		e.logger = slog.New(slog.DiscardHandler)
	}
	return e
}

// Run walks ops in insertion order, dispatching each to the store.
// It returns true iff every non-fatal failure was indeed flagged
// non_fatal and every other operation succeeded (a noop update counts
// as success). When stopOnFirstError is set, the first fatal failure
// halts the walk immediately and its concrete error is returned;
// otherwise Run continues past fatal failures, printing each, and
// returns (false, ErrTransactionFailed) if any occurred. cfg's
// NoPull/NoDeploy flags are threaded to every store call unchanged.
func (e *Executor) Run(ctx context.Context, transactionID string, ops []planner.Operation, cfg planner.Config, stopOnFirstError bool) (bool, error) {
	failed := false

	for _, op := range ops {
		if err := ctx.Err(); err != nil {
			failure := fmt.Errorf("%s: %w", ref.MustPretty(op.Ref), kilnerr.ErrCancelled)
			if halt, haltErr := e.handleFailure(op, failure, stopOnFirstError); halt {
				return false, haltErr
			}
			if !op.NonFatal {
				failed = true
			}
			continue
		}

		op = e.narrow(ctx, op, transactionID)

		err := e.dispatch(ctx, op, transactionID, cfg)
		if err == nil {
			continue
		}

		if halt, haltErr := e.handleFailure(op, err, stopOnFirstError); halt {
			return false, haltErr
		}
		if !op.NonFatal {
			failed = true
		}
	}

	if failed {
		return false, ErrTransactionFailed
	}
	return true, nil
}

// narrow implements E1: when an op carries both intents, the scope is
// checked once and the intent that does not apply is cleared, so
// dependency resolution can enqueue "whichever applies" without
// knowing the answer in advance.
func (e *Executor) narrow(ctx context.Context, op planner.Operation, transactionID string) planner.Operation {
	if !op.Install || !op.Update {
		return op
	}

	installed, err := store.IsInstalled(ctx, e.scope, op.Ref)
	if err != nil {
		e.logger.Warn("E1 narrowing probe failed, leaving both intents set",
			"transaction_id", transactionID, "ref", op.Ref, "error", err)
		return op
	}

	if installed {
		op.Install = false
	} else {
		op.Update = false
	}
	return op
}

func (e *Executor) dispatch(ctx context.Context, op planner.Operation, transactionID string, cfg planner.Config) error {
	pretty := ref.MustPretty(op.Ref)

	switch {
	case op.Install:
		fmt.Fprintf(e.out, "[transaction] Installing: %s from %s\n", pretty, op.Remote)
		e.logger.Debug("transaction: dispatch install",
			"transaction_id", transactionID, "ref", op.Ref, "remote", op.Remote)
		return e.scope.Install(ctx, store.InstallRequest{
			Ref:      op.Ref,
			Remote:   op.Remote,
			Subpaths: op.Subpaths,
			NoPull:   cfg.NoPull,
			NoDeploy: cfg.NoDeploy,
		})

	case op.Update:
		fmt.Fprintf(e.out, "[transaction] Updating: %s from %s\n", pretty, op.Remote)
		e.logger.Debug("transaction: dispatch update",
			"transaction_id", transactionID, "ref", op.Ref, "remote", op.Remote)
		record, err := e.scope.Update(ctx, store.UpdateRequest{
			Ref:      op.Ref,
			Remote:   op.Remote,
			Commit:   op.Commit,
			Subpaths: op.Subpaths,
			NoPull:   cfg.NoPull,
			NoDeploy: cfg.NoDeploy,
		})
		if err != nil {
			if kilnerr.IsAlreadyInstalled(err) {
				fmt.Fprintln(e.out, "[transaction] No updates.")
				return nil
			}
			return err
		}
		fmt.Fprintf(e.out, "[transaction] Now at %s.\n", truncateCommit(record.Commit))
		return nil

	default:
		// The operation carries neither intent (narrow never clears
		// both); nothing to do.
		return nil
	}
}

// handleFailure applies the §4.8 fatality policy to err for op. It
// returns (true, err) when the caller must halt immediately, or
// (false, nil) when it should continue to the next operation.
func (e *Executor) handleFailure(op planner.Operation, err error, stopOnFirstError bool) (bool, error) {
	pretty := ref.MustPretty(op.Ref)

	switch {
	case op.NonFatal:
		fmt.Fprintf(e.out, "[transaction] Warning: %s: %v\n", pretty, err)
		return false, nil
	case !stopOnFirstError:
		fmt.Fprintf(e.out, "[transaction] Error: %s: %v\n", pretty, err)
		return false, nil
	default:
		return true, err
	}
}

// truncateCommit returns the first 12 characters of commit, or commit
// itself if shorter.
func truncateCommit(commit string) string {
	if len(commit) <= 12 {
		return commit
	}
	return commit[:12]
}
