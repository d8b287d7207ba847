// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package related

import (
	"context"
	"fmt"
)

// RemoteIndexStore is the narrow cache surface RemoteIndex needs: a
// keyed blob get/put, the same shape internal/store's ref_cache table
// already exposes for internal/metadata, reused here under a different
// cache key (RemoteIndexCacheKey) and compression scheme (zstd).
type RemoteIndexStore interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Put(ctx context.Context, key string, blob []byte) error
}

// FetchIndexFunc retrieves a remote's full related-refs index as raw
// JSONC bytes, e.g. by downloading a summary file from the remote
// repository. Implementations live outside this package (the real
// network fetch is an external collaborator, same as the content
// store itself).
type FetchIndexFunc func(ctx context.Context, remote string) ([]byte, error)

// RemoteIndex backs FindRemoteRelated for a reference store
// implementation: the remote's index is fetched once per remote and
// cached zstd-compressed; subsequent lookups for other refs on the
// same remote hit the cache.
type RemoteIndex struct {
	Cache RemoteIndexStore
	Fetch FetchIndexFunc
}

// Lookup returns ref's related entries from remote's index, fetching
// and caching the index on a cache miss.
func (r RemoteIndex) Lookup(ctx context.Context, remote, ref string) ([]Tuple, error) {
	key := RemoteIndexCacheKey(remote)

	compressed, ok, err := r.Cache.Get(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("related: reading cached remote index for %s: %w", remote, err)
	}

	var raw []byte
	if ok {
		raw, err = DecompressRemoteIndex(compressed)
		if err != nil {
			return nil, fmt.Errorf("related: decompressing cached remote index for %s: %w", remote, err)
		}
	} else {
		raw, err = r.Fetch(ctx, remote)
		if err != nil {
			return nil, fmt.Errorf("related: fetching remote index for %s: %w", remote, err)
		}
		if err := r.Cache.Put(ctx, key, CompressRemoteIndex(raw)); err != nil {
			return nil, fmt.Errorf("related: caching remote index for %s: %w", remote, err)
		}
	}

	parsed, err := parseIndex(raw)
	if err != nil {
		return nil, fmt.Errorf("related: parsing remote index for %s: %w", remote, err)
	}

	return toTuples(parsed.lookup(ref)), nil
}
