// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package store defines the narrow interface the transaction planner and
// executor consume from the installation scope, plus the Store Probe's
// read-only queries (§4.2) and a SQLite-backed reference implementation
// of Client that is explicitly a stand-in, not the canonical production
// content store.
package store

import "context"

// DeployRecord is what the store remembers about a deployed ref: the
// remote it was pulled from, the deployed commit, and the subpaths
// materialized locally. Subpaths follows the same tri-state convention
// as planner.Operation: nil means "no filter recorded" (pull
// everything), a non-nil empty slice also means everything (the
// wildcard), and a non-empty slice is a filter.
type DeployRecord struct {
	Origin   string
	Commit   string
	Subpaths []string
}

// RelatedRef is one entry returned by the related-refs resolver: a
// companion ref, its subpath filter, and whether it should actually be
// downloaded (the store may list related refs that are not flagged for
// download, e.g. optional debug info).
type RelatedRef struct {
	Ref      string
	Subpaths []string
	Download bool
}

// InstallRequest carries everything the store needs to perform an
// install dispatched by the executor.
type InstallRequest struct {
	Ref      string
	Remote   string
	Subpaths []string
	NoPull   bool
	NoDeploy bool
}

// UpdateRequest carries everything the store needs to perform an
// update dispatched by the executor. Commit is empty unless the
// operation pinned a specific commit (OCI installs, explicit --commit).
type UpdateRequest struct {
	Ref      string
	Remote   string
	Commit   string
	Subpaths []string
	NoPull   bool
	NoDeploy bool
}

// Client is the interface the planner and executor consume from an
// installation scope (spec §6, "To the store (consumed)"). A
// production implementation backs this with the real content store and
// deploy engine; kiln ships a SQLite-backed reference implementation
// (sqlite.go) so the CLI is runnable end-to-end without one.
type Client interface {
	// GetIfDeployed returns the deploy path for ref and true if it is
	// currently deployed in this scope, or ("", false, nil) if not.
	GetIfDeployed(ctx context.Context, ref string) (path string, ok bool, err error)

	// GetDeployData returns the recorded deploy metadata for ref, or
	// (nil, false, nil) if ref is not deployed.
	GetDeployData(ctx context.Context, ref string) (*DeployRecord, bool, error)

	// IsUser reports whether this handle is the user scope. The Store
	// Probe's cross-scope check only applies when this is true.
	IsUser() bool

	// GetSystem returns a handle to the system scope, for the
	// cross-scope check performed when this handle is the user scope.
	GetSystem() (Client, error)

	// GetRemoteDisabled reports whether remote is marked disabled in
	// this scope's configuration.
	GetRemoteDisabled(ctx context.Context, remote string) (bool, error)

	// FetchRefCache returns the cached metadata keyfile bytes for
	// (remote, ref), or (nil, false, nil) on a cache miss.
	FetchRefCache(ctx context.Context, remote, ref string) (metadataBytes []byte, ok bool, err error)

	// FindLocalRelated returns the related-refs index entries for ref
	// from the local (no-pull) index.
	FindLocalRelated(ctx context.Context, ref, remote string) ([]RelatedRef, error)

	// FindRemoteRelated returns the related-refs index entries for ref
	// by querying the remote index.
	FindRemoteRelated(ctx context.Context, ref, remote string) ([]RelatedRef, error)

	// SearchForDependency returns the names of configured remotes that
	// carry ref, for runtime dependency resolution.
	SearchForDependency(ctx context.Context, ref string) ([]string, error)

	// ListRefs returns every distinct ref known to this scope, across
	// all remotes, for the CLI's fuzzy search surface. Callers that need
	// a particular remote's set should further filter the result.
	ListRefs(ctx context.Context) ([]string, error)

	// Install performs an install dispatched by the executor.
	Install(ctx context.Context, req InstallRequest) error

	// Update performs an update dispatched by the executor, returning
	// the resulting deploy record on success. Returns an error
	// satisfying kilnerr.IsAlreadyInstalled when the requested commit
	// is already the deployed one (the executor's noop-update rule).
	Update(ctx context.Context, req UpdateRequest) (*DeployRecord, error)

	// CreateOriginRemote provisions an ephemeral remote (used by the
	// OCI Origin Binder) and returns its assigned name.
	CreateOriginRemote(ctx context.Context, id, title, ref, uri, tag string) (string, error)

	// RecreateRepo recreates the underlying repository handle so that
	// subsequently created remotes (CreateOriginRemote) are visible to
	// later pulls within the same transaction.
	RecreateRepo(ctx context.Context) error
}
