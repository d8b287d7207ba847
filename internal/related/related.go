// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package related implements the Related-Refs Resolver (§4.4): a
// JSONC-backed local index for no-pull lookups, a zstd-cached remote
// index for ordinary lookups, and the non-fatal resolution wrapper the
// planner calls.
package related

import (
	"context"
	"log/slog"
	"os"
)

// Tuple is one related-ref entry: a companion ref, its subpath
// filter, and whether it is actually flagged for download. Mirrors
// store.RelatedRef field-for-field; kept as a distinct type here so
// this package does not need to import internal/store.
type Tuple struct {
	Ref      string
	Subpaths []string
	Download bool
}

// Source is the subset of store.Client the resolver consumes.
type Source interface {
	FindLocalRelated(ctx context.Context, ref, remote string) ([]Tuple, error)
	FindRemoteRelated(ctx context.Context, ref, remote string) ([]Tuple, error)
}

// FindRelated returns the related refs for ref from remote, consulting
// the local index when localOnly (no_pull) is set, else the remote
// index. Failure is non-fatal: per spec.md §4.4 it is logged as a
// warning and treated as an empty result, never propagated to the
// caller.
func FindRelated(ctx context.Context, source Source, logger *slog.Logger, remote, ref string, localOnly bool) []Tuple {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	var (
		tuples []Tuple
		err    error
	)
	if localOnly {
		tuples, err = source.FindLocalRelated(ctx, ref, remote)
	} else {
		tuples, err = source.FindRemoteRelated(ctx, ref, remote)
	}
	if err != nil {
		logger.Warn("related-refs lookup failed, treating as empty",
			"ref", ref, "remote", remote, "local_only", localOnly, "error", err)
		return nil
	}
	return tuples
}

// LocalIndex backs FindLocalRelated for a reference store
// implementation: it parses a JSONC index file from disk on every
// call (no_pull lookups are expected to be rare and local, so there is
// no benefit to caching the parse).
type LocalIndex struct {
	// Path is the JSONC index file's location. If the file does not
	// exist, lookups return an empty result rather than an error —
	// "no local index configured" is not itself a failure.
	Path string
}

// Lookup returns ref's related entries from the local index file.
func (l LocalIndex) Lookup(ref string) ([]Tuple, error) {
	data, err := os.ReadFile(l.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	parsed, err := parseIndex(data)
	if err != nil {
		return nil, err
	}

	return toTuples(parsed.lookup(ref)), nil
}

func toTuples(entries []entry) []Tuple {
	if len(entries) == 0 {
		return nil
	}
	tuples := make([]Tuple, len(entries))
	for i, e := range entries {
		tuples[i] = Tuple{Ref: e.Ref, Subpaths: e.Subpaths, Download: e.Download}
	}
	return tuples
}
