// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package metadata implements the Metadata Fetcher (§4.3): recovering
// a declared runtime dependency from a ref's cached Flatpak-style
// keyfile metadata, stored LZ4-compressed in the scope's cache table.
package metadata

import (
	"context"
	"encoding/binary"
	"fmt"
	"log/slog"

	"github.com/kiln-pm/kiln/lib/ref"
)

// store is the subset of store.Client the fetcher consumes. Defined
// locally (rather than importing internal/store) to avoid a dependency
// cycle: internal/store never needs to know about metadata parsing.
type store interface {
	FetchRefCache(ctx context.Context, remote, ref string) ([]byte, bool, error)
}

// FetchRuntimeRef returns the value of the "runtime" key under the
// "Application" section of appRef's cached metadata, already expanded
// to a full "runtime/name/arch/branch" ref. It returns (_, false, nil)
// — never an error — for non-app refs, cache misses, and malformed
// metadata: a missing or unreadable dependency declaration means "no
// declared runtime", and planning proceeds; the executor or store
// surfaces the real error later if a dependency was in fact required.
func FetchRuntimeRef(ctx context.Context, scope store, logger *slog.Logger, remote, appRef string) (string, bool, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	if !ref.IsApp(appRef) {
		return "", false, nil
	}

	blob, ok, err := scope.FetchRefCache(ctx, remote, appRef)
	if err != nil {
		logger.Warn("metadata fetch failed, treating as no declared runtime",
			"ref", appRef, "remote", remote, "error", err)
		return "", false, nil
	}
	if !ok {
		return "", false, nil
	}

	data, err := decodeEnvelope(blob)
	if err != nil {
		logger.Warn("metadata cache entry malformed, treating as no declared runtime",
			"ref", appRef, "remote", remote, "error", err)
		return "", false, nil
	}

	runtime, found := parseKeyfile(data).lookup("Application", "runtime")
	if !found || runtime == "" {
		return "", false, nil
	}

	return ref.RuntimeRef(runtime), true, nil
}

// FetchRawKeyfile returns the decoded, decompressed keyfile text cached
// for (remote, ref), for display (e.g. `kiln info`). It returns
// (_, false, nil) on a cache miss or a malformed cache entry, the same
// forgiving convention as FetchRuntimeRef.
func FetchRawKeyfile(ctx context.Context, scope store, logger *slog.Logger, remote, targetRef string) (string, bool, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	blob, ok, err := scope.FetchRefCache(ctx, remote, targetRef)
	if err != nil {
		logger.Warn("metadata fetch failed", "ref", targetRef, "remote", remote, "error", err)
		return "", false, nil
	}
	if !ok {
		return "", false, nil
	}

	data, err := decodeEnvelope(blob)
	if err != nil {
		logger.Warn("metadata cache entry malformed", "ref", targetRef, "remote", remote, "error", err)
		return "", false, nil
	}
	return string(data), true, nil
}

// EncodeCacheEntry compresses a raw metadata keyfile for storage via
// the store's cache-seeding path (production fetchers populate this;
// SeedRefCache is the reference store's equivalent).
func EncodeCacheEntry(raw []byte) ([]byte, error) {
	compressed, uncompressedSize, err := compressCache(raw)
	if err != nil {
		return nil, fmt.Errorf("metadata: encoding cache entry: %w", err)
	}
	return encodeEnvelope(compressed, uncompressedSize), nil
}

// envelope format: 8-byte big-endian uncompressed size (0 = stored
// uncompressed), followed by the (possibly compressed) payload. A
// fixed-width length prefix needs no library; it is a two-line
// encoding that any third-party framing format would be overkill for.
func encodeEnvelope(payload []byte, uncompressedSize int) []byte {
	out := make([]byte, 8+len(payload))
	binary.BigEndian.PutUint64(out[:8], uint64(uncompressedSize))
	copy(out[8:], payload)
	return out
}

func decodeEnvelope(blob []byte) ([]byte, error) {
	if len(blob) < 8 {
		return nil, fmt.Errorf("metadata: cache entry too short (%d bytes)", len(blob))
	}
	uncompressedSize := binary.BigEndian.Uint64(blob[:8])
	payload := blob[8:]
	// An LZ4 block expands at most about 255-fold, so a larger claimed
	// size can only come from a corrupt or foreign entry.
	if uncompressedSize > uint64(len(payload))*255 {
		return nil, fmt.Errorf("metadata: cache entry claims %d uncompressed bytes for a %d-byte payload", uncompressedSize, len(payload))
	}
	return decompressCache(payload, int(uncompressedSize))
}
