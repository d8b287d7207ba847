// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package metadata

import (
	"fmt"

	"github.com/pierrec/lz4/v4"
	"github.com/zeebo/blake3"
)

// cacheDomainKey domain-separates ref-metadata cache keys from every
// other BLAKE3 keyed use in kiln (internal/related uses its own key),
// following lib/artifact/hash.go's fixed-constant keyed-domain pattern.
var cacheDomainKey = [32]byte{
	'k', 'i', 'l', 'n', '.', 'm', 'e', 't', 'a', 'd', 'a', 't', 'a', '.',
	'r', 'e', 'f', '-', 'c', 'a', 'c', 'h', 'e', 0, 0, 0, 0, 0, 0, 0, 0, 0,
}

// CacheKey derives the stable cache key kiln uses to look up a ref's
// cached metadata blob for (remote, ref). The key is opaque and does
// not need to be reversible — callers compare it by value only.
func CacheKey(remote, ref string) string {
	hasher, err := blake3.NewKeyed(cacheDomainKey[:])
	if err != nil {
		panic("metadata: BLAKE3 keyed hash initialization failed: " + err.Error())
	}
	hasher.Write([]byte(remote))
	hasher.Write([]byte{0})
	hasher.Write([]byte(ref))
	var sum [32]byte
	copy(sum[:], hasher.Sum(nil))
	return fmt.Sprintf("%x", sum)
}

// compressCache LZ4-compresses a metadata blob for storage in the
// scope's cache table. Metadata keyfiles are small (a few hundred
// bytes to a few KB) and read far more often than written, which is
// exactly the "small, frequently-read blob" case lib/artifactstore's
// compress.go doc comment prescribes LZ4 for over zstd.
func compressCache(data []byte) ([]byte, int, error) {
	bound := lz4.CompressBlockBound(len(data))
	destination := make([]byte, bound)
	written, err := lz4.CompressBlock(data, destination, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("metadata: lz4 compress: %w", err)
	}
	if written == 0 || written >= len(data) {
		// Incompressible or too small to benefit; store as-is with a
		// zero uncompressed-size sentinel meaning "not compressed".
		return data, 0, nil
	}
	return destination[:written], len(data), nil
}

// decompressCache reverses compressCache. uncompressedSize of 0 means
// the blob was stored uncompressed.
func decompressCache(blob []byte, uncompressedSize int) ([]byte, error) {
	if uncompressedSize == 0 {
		return blob, nil
	}
	destination := make([]byte, uncompressedSize)
	read, err := lz4.UncompressBlock(blob, destination)
	if err != nil {
		return nil, fmt.Errorf("metadata: lz4 decompress: %w", err)
	}
	if read != uncompressedSize {
		return nil, fmt.Errorf("metadata: lz4 decompress: got %d bytes, want %d", read, uncompressedSize)
	}
	return destination, nil
}
