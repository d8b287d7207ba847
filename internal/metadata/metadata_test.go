// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package metadata_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/kiln-pm/kiln/internal/metadata"
)

type fakeStore struct {
	blobs map[string][]byte
	err   error
}

func (f *fakeStore) FetchRefCache(ctx context.Context, remote, ref string) ([]byte, bool, error) {
	if f.err != nil {
		return nil, false, f.err
	}
	blob, ok := f.blobs[remote+"\x00"+ref]
	return blob, ok, nil
}

func seed(t *testing.T, fs *fakeStore, remote, ref, raw string) {
	t.Helper()
	entry, err := metadata.EncodeCacheEntry([]byte(raw))
	if err != nil {
		t.Fatalf("EncodeCacheEntry: %v", err)
	}
	if fs.blobs == nil {
		fs.blobs = map[string][]byte{}
	}
	fs.blobs[remote+"\x00"+ref] = entry
}

func TestFetchRuntimeRef_Found(t *testing.T) {
	fs := &fakeStore{}
	const appRef = "app/org.gnome.Recipes/x86_64/stable"
	seed(t, fs, "flathub", appRef, "[Application]\nname=org.gnome.Recipes\nruntime=org.gnome.Platform/x86_64/3.28\n")

	got, ok, err := metadata.FetchRuntimeRef(context.Background(), fs, nil, "flathub", appRef)
	if err != nil {
		t.Fatalf("FetchRuntimeRef: %v", err)
	}
	if !ok {
		t.Fatal("expected runtime found")
	}
	if got != "runtime/org.gnome.Platform/x86_64/3.28" {
		t.Errorf("got %q, want %q", got, "runtime/org.gnome.Platform/x86_64/3.28")
	}
}

func TestFetchRuntimeRef_NonAppRef(t *testing.T) {
	fs := &fakeStore{}
	got, ok, err := metadata.FetchRuntimeRef(context.Background(), fs, nil, "flathub", "runtime/org.gnome.Platform/x86_64/3.28")
	if err != nil || ok || got != "" {
		t.Fatalf("got (%q, %v, %v), want (\"\", false, nil)", got, ok, err)
	}
}

func TestFetchRuntimeRef_CacheMiss(t *testing.T) {
	fs := &fakeStore{}
	got, ok, err := metadata.FetchRuntimeRef(context.Background(), fs, nil, "flathub", "app/org.gnome.Recipes/x86_64/stable")
	if err != nil || ok || got != "" {
		t.Fatalf("got (%q, %v, %v), want (\"\", false, nil)", got, ok, err)
	}
}

func TestFetchRuntimeRef_StoreErrorDemotedToAbsence(t *testing.T) {
	fs := &fakeStore{err: errors.New("boom")}
	got, ok, err := metadata.FetchRuntimeRef(context.Background(), fs, nil, "flathub", "app/org.gnome.Recipes/x86_64/stable")
	if err != nil || ok || got != "" {
		t.Fatalf("got (%q, %v, %v), want (\"\", false, nil)", got, ok, err)
	}
}

func TestFetchRuntimeRef_MalformedMetadata(t *testing.T) {
	fs := &fakeStore{blobs: map[string][]byte{"flathub\x00app/org.gnome.Recipes/x86_64/stable": []byte("not an envelope")}}

	got, ok, err := metadata.FetchRuntimeRef(context.Background(), fs, nil, "flathub", "app/org.gnome.Recipes/x86_64/stable")
	if err != nil || ok || got != "" {
		t.Fatalf("got (%q, %v, %v), want (\"\", false, nil)", got, ok, err)
	}
}

func TestFetchRuntimeRef_NoRuntimeKey(t *testing.T) {
	fs := &fakeStore{}
	const appRef = "app/org.gnome.Recipes/x86_64/stable"
	seed(t, fs, "flathub", appRef, "[Application]\nname=org.gnome.Recipes\n")

	got, ok, err := metadata.FetchRuntimeRef(context.Background(), fs, nil, "flathub", appRef)
	if err != nil || ok || got != "" {
		t.Fatalf("got (%q, %v, %v), want (\"\", false, nil)", got, ok, err)
	}
}

func TestEncodeCacheEntry_ShrinksLargeRepetitiveBlob(t *testing.T) {
	raw := []byte(strings.Repeat("[Application]\nname=test\nruntime=org.foo/x86_64/1.0\n", 50))
	entry, err := metadata.EncodeCacheEntry(raw)
	if err != nil {
		t.Fatalf("EncodeCacheEntry: %v", err)
	}
	if len(entry) >= len(raw) {
		t.Errorf("expected compression to shrink a repetitive blob: got %d bytes for %d byte input", len(entry), len(raw))
	}
}

func TestCacheKey_DeterministicAndDistinct(t *testing.T) {
	a := metadata.CacheKey("flathub", "app/org.gnome.Recipes/x86_64/stable")
	b := metadata.CacheKey("flathub", "app/org.gnome.Recipes/x86_64/stable")
	if a != b {
		t.Error("CacheKey is not deterministic")
	}

	c := metadata.CacheKey("flathub-beta", "app/org.gnome.Recipes/x86_64/stable")
	if a == c {
		t.Error("CacheKey does not distinguish remotes")
	}
}
