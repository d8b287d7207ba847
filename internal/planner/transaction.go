// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package planner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/google/uuid"

	"github.com/kiln-pm/kiln/internal/chooser"
	"github.com/kiln-pm/kiln/internal/kilnerr"
	"github.com/kiln-pm/kiln/internal/metadata"
	"github.com/kiln-pm/kiln/internal/ociorigin"
	"github.com/kiln-pm/kiln/internal/related"
	"github.com/kiln-pm/kiln/internal/store"
	"github.com/kiln-pm/kiln/lib/ref"
)

// Config holds the Transaction Config (§3): immutable flags governing
// how a transaction's add-operations behave, for the lifetime of the
// transaction.
type Config struct {
	// NoPull makes related-ref resolution consult the local index
	// instead of the remote one, and is threaded to the Executor as
	// the corresponding store-call flag.
	NoPull bool

	// NoDeploy is threaded to the Executor's store calls unchanged.
	NoDeploy bool

	// AddDeps enables runtime-dependency resolution on every add_install
	// and add_update call (app refs only).
	AddDeps bool

	// AddRelated enables related-ref resolution on every add_install
	// and add_update call.
	AddRelated bool
}

// Transaction is the Planner's public surface: created empty, mutated
// only by the Add* methods, then consumed by the Executor's Run. After
// Run returns, re-using the Transaction is undefined (§3 Lifecycle).
type Transaction struct {
	id      string
	scope   store.Client
	cfg     Config
	plan    *Plan
	chooser chooser.Strategy
	logger  *slog.Logger
	out     io.Writer
	related related.Source
}

// Option customizes a Transaction beyond its required scope and
// config. The zero-value options (nil logger, nil chooser, nil out)
// all resolve to sensible production defaults in New.
type Option func(*Transaction)

// WithChooser overrides the default interactive Remote Chooser, the
// hook tests use to inject a deterministic strategy (§9 "Interactive
// prompt as an injected strategy").
func WithChooser(strategy chooser.Strategy) Option {
	return func(t *Transaction) { t.chooser = strategy }
}

// WithLogger overrides the default discard logger.
func WithLogger(logger *slog.Logger) Option {
	return func(t *Transaction) { t.logger = logger }
}

// WithOutput overrides the writer informational planning messages
// (e.g. "no remote found for runtime ...") are printed to. Defaults to
// os.Stdout.
func WithOutput(out io.Writer) Option {
	return func(t *Transaction) { t.out = out }
}

// New creates an empty Transaction scoped to scope, per spec.md §6's
// exposed `new(scope, {no_pull, no_deploy, add_deps, add_related})`.
func New(scope store.Client, cfg Config, opts ...Option) *Transaction {
	t := &Transaction{
		id:    uuid.New().String(),
		scope: scope,
		cfg:   cfg,
		plan:  newPlan(),
	}
	t.related = relatedAdapter{scope: scope}
	for _, opt := range opts {
		opt(t)
	}
	if t.chooser == nil {
		t.chooser = chooser.NewInteractive()
	}
	if t.logger == nil {
		t.logger = slog.New(slog.DiscardHandler)
	}
	if t.out == nil {
		t.out = os.Stdout
	}
	return t
}

// ID returns the transaction's diagnostic identifier, attached to
// every log line the Planner and Executor emit for it.
func (t *Transaction) ID() string { return t.id }

// Config returns the transaction's immutable configuration.
func (t *Transaction) Config() Config { return t.cfg }

// Contains reports whether ref already has an operation planned
// (O(1), §4.7).
func (t *Transaction) Contains(ref string) bool { return t.plan.Contains(ref) }

// Ops returns the plan's operations in insertion order, for the
// Executor to run.
func (t *Transaction) Ops() []Operation { return t.plan.Ops() }

// Len returns the number of distinct refs planned.
func (t *Transaction) Len() int { return t.plan.Len() }

// Get returns the operation planned for ref, if any.
func (t *Transaction) Get(ref string) (Operation, bool) { return t.plan.Get(ref) }

// normalizeSubpaths substitutes the empty-sequence wildcard for an
// absent (nil) subpaths argument — the install-path rule from §4.7
// ("if subpaths is absent, substitutes the empty-sequence wildcard").
func normalizeSubpaths(subpaths []string) []string {
	if subpaths == nil {
		return []string{}
	}
	return subpaths
}

// AddInstall enqueues an install of ref from remote. Fails
// AlreadyInstalled if ref is already deployed in this scope. If
// AddDeps is set, resolves ref's declared runtime dependency first;
// that resolution's own failures (RuntimeMissing) propagate and no
// operation for ref is enqueued.
func (t *Transaction) AddInstall(ctx context.Context, remote, targetRef string, subpaths []string) error {
	if remote == "" {
		return fmt.Errorf("planner: add_install requires a non-empty remote")
	}

	installed, err := store.IsInstalled(ctx, t.scope, targetRef)
	if err != nil {
		return fmt.Errorf("planner: checking install state of %s: %w", targetRef, err)
	}
	if installed {
		return fmt.Errorf("planner: %s: %w", ref.MustPretty(targetRef), kilnerr.ErrAlreadyInstalled)
	}

	if t.cfg.AddDeps {
		if err := t.resolveDeps(ctx, remote, targetRef); err != nil {
			return err
		}
	}

	t.addOp(Operation{
		Ref:      targetRef,
		Remote:   remote,
		Subpaths: normalizeSubpaths(subpaths),
		Install:  true,
	})

	if t.cfg.AddRelated {
		t.resolveRelated(ctx, targetRef, remote)
	}
	return nil
}

// AddUpdate enqueues an update of ref. The remote is derived from the
// ref's recorded origin, not supplied by the caller. Fails
// NotInstalled if ref is not deployed in this scope. If the origin
// remote is disabled, the call is a silent no-op returning success.
func (t *Transaction) AddUpdate(ctx context.Context, targetRef string, subpaths []string, commit string) error {
	origin, ok, err := store.OriginOf(ctx, t.scope, targetRef)
	if err != nil {
		return fmt.Errorf("planner: resolving origin of %s: %w", targetRef, err)
	}
	if !ok {
		return fmt.Errorf("planner: %s: %w", ref.MustPretty(targetRef), kilnerr.ErrNotInstalled)
	}

	disabled, err := store.RemoteDisabled(ctx, t.scope, origin)
	if err != nil {
		return fmt.Errorf("planner: checking remote %s disabled: %w", origin, err)
	}
	if disabled {
		return nil
	}

	if t.cfg.AddDeps {
		if err := t.resolveDeps(ctx, origin, targetRef); err != nil {
			return err
		}
	}

	t.addOp(Operation{
		Ref:      targetRef,
		Remote:   origin,
		Subpaths: subpaths,
		Commit:   commit,
		Update:   true,
	})

	if t.cfg.AddRelated {
		t.resolveRelated(ctx, targetRef, origin)
	}
	return nil
}

// AddInstallFromOCI binds an OCI image to an installable ref (§4.6)
// and enqueues its install, pinned to the resolved commit with
// wildcard subpaths. Runtime-dependency and related-ref resolution
// are deliberately skipped for OCI installs (open question, §9).
func (t *Transaction) AddInstallFromOCI(ctx context.Context, registry ociorigin.Registry, uri, tag string) error {
	binding, err := ociorigin.Bind(ctx, registry, t.scope, uri, tag)
	if err != nil {
		return err
	}

	t.addOp(Operation{
		Ref:      binding.Ref,
		Remote:   binding.RemoteID,
		Subpaths: binding.Subpaths,
		Commit:   binding.Commit,
		Install:  true,
	})
	return nil
}

// addOp records op in the plan and emits the debug operation trace
// reinstated from original_source/ (§13): every add_op, regardless of
// outcome, is visible at debug level before Run executes anything.
func (t *Transaction) addOp(op Operation) {
	t.logger.Debug("transaction: add_op",
		"transaction_id", t.id,
		"ref", op.Ref,
		"remote", op.Remote,
		"install", op.Install,
		"update", op.Update,
		"commit", op.Commit,
		"subpaths", op.Subpaths,
		"non_fatal", op.NonFatal,
	)
	t.plan.addOp(op)
}

// resolveDeps implements the §4.7 dependency-resolution algorithm, for
// app refs only.
func (t *Transaction) resolveDeps(ctx context.Context, remote, appRef string) error {
	runtimeRef, declared, err := metadata.FetchRuntimeRef(ctx, t.scope, t.logger, remote, appRef)
	if err != nil {
		return fmt.Errorf("planner: fetching declared runtime for %s: %w", appRef, err)
	}
	if !declared {
		return nil
	}

	if t.plan.Contains(runtimeRef) {
		return nil
	}

	origin, sameScope, err := store.OriginOf(ctx, t.scope, runtimeRef)
	if err != nil {
		return fmt.Errorf("planner: resolving origin of runtime %s: %w", runtimeRef, err)
	}
	if sameScope {
		t.addOp(Operation{
			Ref:    runtimeRef,
			Remote: origin,
			Update: true,
		})
		t.resolveRelatedIfEnabled(ctx, runtimeRef, origin)
		return nil
	}

	installedElsewhere, err := store.IsInstalled(ctx, t.scope, runtimeRef)
	if err != nil {
		return fmt.Errorf("planner: probing runtime %s: %w", runtimeRef, err)
	}
	if installedElsewhere {
		// Satisfied by the other scope: nothing to enqueue.
		return nil
	}

	candidates, err := t.scope.SearchForDependency(ctx, runtimeRef)
	if err != nil {
		return fmt.Errorf("planner: searching remotes for runtime %s: %w", runtimeRef, err)
	}
	if len(candidates) == 0 {
		fmt.Fprintf(t.out, "[transaction] No remote found for runtime %s.\n", ref.MustPretty(runtimeRef))
		return fmt.Errorf("planner: %s: %w", ref.MustPretty(runtimeRef), kilnerr.ErrRuntimeMissing)
	}

	chosen, ok, err := t.chooser.Choose(ctx, runtimeRef, candidates)
	if err != nil {
		return fmt.Errorf("planner: choosing remote for runtime %s: %w", runtimeRef, err)
	}
	if !ok {
		return fmt.Errorf("planner: %s: %w", ref.MustPretty(runtimeRef), kilnerr.ErrRuntimeMissing)
	}

	t.addOp(Operation{
		Ref:     runtimeRef,
		Remote:  chosen,
		Install: true,
		Update:  true,
	})
	t.resolveRelatedIfEnabled(ctx, runtimeRef, chosen)
	return nil
}

func (t *Transaction) resolveRelatedIfEnabled(ctx context.Context, targetRef, remote string) {
	if t.cfg.AddRelated {
		t.resolveRelated(ctx, targetRef, remote)
	}
}

// resolveRelated enqueues every downloadable related-ref tuple as a
// non-fatal install+update op (§4.7 "Related-ref enqueueing"). Lookup
// failure is itself non-fatal (§4.4) and handled inside
// related.FindRelated; nothing here can fail.
func (t *Transaction) resolveRelated(ctx context.Context, targetRef, remote string) {
	tuples := related.FindRelated(ctx, t.related, t.logger, remote, targetRef, t.cfg.NoPull)
	for _, tuple := range tuples {
		if !tuple.Download {
			continue
		}
		t.addOp(Operation{
			Ref:      tuple.Ref,
			Remote:   remote,
			Subpaths: normalizeSubpaths(tuple.Subpaths),
			Install:  true,
			Update:   true,
			NonFatal: true,
		})
	}
}

// relatedAdapter bridges store.Client's []store.RelatedRef return type
// onto the related.Source interface's []related.Tuple, so
// internal/store never needs to import internal/related's tuple type
// and internal/related never needs to import internal/store.
type relatedAdapter struct {
	scope store.Client
}

func (a relatedAdapter) FindLocalRelated(ctx context.Context, ref, remote string) ([]related.Tuple, error) {
	refs, err := a.scope.FindLocalRelated(ctx, ref, remote)
	return storeRefsToTuples(refs), err
}

func (a relatedAdapter) FindRemoteRelated(ctx context.Context, ref, remote string) ([]related.Tuple, error) {
	refs, err := a.scope.FindRemoteRelated(ctx, ref, remote)
	return storeRefsToTuples(refs), err
}

func storeRefsToTuples(refs []store.RelatedRef) []related.Tuple {
	if len(refs) == 0 {
		return nil
	}
	tuples := make([]related.Tuple, len(refs))
	for i, r := range refs {
		tuples[i] = related.Tuple{Ref: r.Ref, Subpaths: r.Subpaths, Download: r.Download}
	}
	return tuples
}

// IsRuntimeMissing reports whether err (or any error it wraps)
// indicates a required runtime could not be located or selection was
// aborted.
func IsRuntimeMissing(err error) bool {
	return errors.Is(err, kilnerr.ErrRuntimeMissing)
}

// IsAlreadyInstalled reports whether err indicates the install target
// was already present.
func IsAlreadyInstalled(err error) bool {
	return errors.Is(err, kilnerr.ErrAlreadyInstalled)
}

// IsNotInstalled reports whether err indicates the update target was
// not present.
func IsNotInstalled(err error) bool {
	return errors.Is(err, kilnerr.ErrNotInstalled)
}
