// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package kilnerr holds the sentinel error values shared by the store,
// planner, and executor packages. Centralizing them here (rather than
// declaring duplicates per package) lets any layer wrap one with
// fmt.Errorf's %w and lets callers classify failures with errors.Is
// regardless of which package produced them.
package kilnerr

import "errors"

var (
	// ErrNotInstalled is returned when an update target is not deployed
	// in the scope.
	ErrNotInstalled = errors.New("not installed")

	// ErrAlreadyInstalled is returned when an install target is already
	// deployed in the scope. The store also returns this for a no-op
	// update (the requested commit is already deployed); the executor
	// recognizes that case and converts it to success.
	ErrAlreadyInstalled = errors.New("already installed")

	// ErrRuntimeMissing is returned when a required runtime dependency
	// cannot be located in any configured remote, or the user aborted
	// remote selection for it.
	ErrRuntimeMissing = errors.New("runtime missing")

	// ErrNotAFlatpakImage is returned when an OCI image manifest lacks
	// the annotations needed to recover a ref and commit.
	ErrNotAFlatpakImage = errors.New("not a flatpak image")

	// ErrStoreError is an opaque pass-through wrapper for failures
	// surfaced by the store or OCI layers that don't fit a more
	// specific sentinel above.
	ErrStoreError = errors.New("store error")

	// ErrCancelled is returned when a blocking store call observes
	// context cancellation.
	ErrCancelled = errors.New("cancelled")
)

// IsAlreadyInstalled reports whether err (or any error it wraps) is
// ErrAlreadyInstalled.
func IsAlreadyInstalled(err error) bool {
	return errors.Is(err, ErrAlreadyInstalled)
}

// IsNotInstalled reports whether err (or any error it wraps) is
// ErrNotInstalled.
func IsNotInstalled(err error) bool {
	return errors.Is(err, ErrNotInstalled)
}

// IsCancelled reports whether err (or any error it wraps) is
// ErrCancelled.
func IsCancelled(err error) bool {
	return errors.Is(err, ErrCancelled)
}
