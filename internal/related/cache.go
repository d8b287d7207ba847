// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package related

import (
	"fmt"

	"github.com/klauspost/compress/zstd"
	"github.com/zeebo/blake3"
)

// remoteIndexDomainKey domain-separates related-refs cache keys from
// internal/metadata's CacheKey, following lib/artifact/hash.go's
// fixed-constant keyed-domain pattern.
var remoteIndexDomainKey = [32]byte{
	'k', 'i', 'l', 'n', '.', 'r', 'e', 'l', 'a', 't', 'e', 'd', '.',
	'r', 'e', 'm', 'o', 't', 'e', '-', 'i', 'n', 'd', 'e', 'x', 0, 0, 0, 0, 0, 0, 0,
}

// RemoteIndexCacheKey derives the cache key for a remote's full
// related-refs index, keyed by remote name alone (the index covers
// every ref the remote carries, not one ref at a time).
func RemoteIndexCacheKey(remote string) string {
	hasher, err := blake3.NewKeyed(remoteIndexDomainKey[:])
	if err != nil {
		panic("related: BLAKE3 keyed hash initialization failed: " + err.Error())
	}
	hasher.Write([]byte(remote))
	var sum [32]byte
	copy(sum[:], hasher.Sum(nil))
	return fmt.Sprintf("%x", sum)
}

// zstdEncoder and zstdDecoder are reused across calls; both types are
// safe for concurrent use, matching lib/artifactstore/compress.go.
var (
	zstdEncoder *zstd.Encoder
	zstdDecoder *zstd.Decoder
)

func init() {
	var err error
	zstdEncoder, err = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		panic("related: zstd encoder initialization failed: " + err.Error())
	}
	zstdDecoder, err = zstd.NewReader(nil)
	if err != nil {
		panic("related: zstd decoder initialization failed: " + err.Error())
	}
}

// CompressRemoteIndex compresses a remote's related-refs index JSON
// (the teacher's compress.go prescribes zstd for text-like JSON
// payloads, unlike internal/metadata's small LZ4 blobs).
func CompressRemoteIndex(data []byte) []byte {
	return zstdEncoder.EncodeAll(data, nil)
}

// DecompressRemoteIndex reverses CompressRemoteIndex.
func DecompressRemoteIndex(compressed []byte) ([]byte, error) {
	result, err := zstdDecoder.DecodeAll(compressed, nil)
	if err != nil {
		return nil, fmt.Errorf("related: zstd decompress: %w", err)
	}
	return result, nil
}
