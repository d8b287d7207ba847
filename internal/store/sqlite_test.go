// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package store_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/kiln-pm/kiln/internal/kilnerr"
	"github.com/kiln-pm/kiln/internal/store"
)

func openUserAndSystem(t *testing.T) (*store.SQLiteScope, *store.SQLiteScope) {
	t.Helper()

	system, err := store.OpenSQLiteScope(store.SQLiteScopeConfig{
		Path: filepath.Join(t.TempDir(), "system.db"),
	})
	if err != nil {
		t.Fatalf("OpenSQLiteScope(system): %v", err)
	}
	t.Cleanup(func() { system.Close() })

	user, err := store.OpenSQLiteScope(store.SQLiteScopeConfig{
		Path:   filepath.Join(t.TempDir(), "user.db"),
		IsUser: true,
		System: system,
	})
	if err != nil {
		t.Fatalf("OpenSQLiteScope(user): %v", err)
	}
	t.Cleanup(func() { user.Close() })

	return user, system
}

func TestSQLiteScope_InstallAndGetIfDeployed(t *testing.T) {
	user, _ := openUserAndSystem(t)
	ctx := context.Background()

	const ref = "app/org.gnome.Recipes/x86_64/stable"
	if err := user.Install(ctx, store.InstallRequest{Ref: ref, Remote: "flathub"}); err != nil {
		t.Fatalf("Install: %v", err)
	}

	path, ok, err := user.GetIfDeployed(ctx, ref)
	if err != nil {
		t.Fatalf("GetIfDeployed: %v", err)
	}
	if !ok {
		t.Fatal("GetIfDeployed: expected deployed ref to be found")
	}
	if path == "" {
		t.Error("GetIfDeployed: expected non-empty path")
	}
}

func TestSQLiteScope_InstallAlreadyInstalled(t *testing.T) {
	user, _ := openUserAndSystem(t)
	ctx := context.Background()

	const ref = "app/org.gnome.Recipes/x86_64/stable"
	if err := user.Install(ctx, store.InstallRequest{Ref: ref, Remote: "flathub"}); err != nil {
		t.Fatalf("first Install: %v", err)
	}

	err := user.Install(ctx, store.InstallRequest{Ref: ref, Remote: "flathub"})
	if !kilnerr.IsAlreadyInstalled(err) {
		t.Fatalf("second Install: got %v, want ErrAlreadyInstalled", err)
	}
}

func TestSQLiteScope_UpdateNotInstalled(t *testing.T) {
	user, _ := openUserAndSystem(t)
	ctx := context.Background()

	_, err := user.Update(ctx, store.UpdateRequest{Ref: "app/org.gnome.Recipes/x86_64/stable", Remote: "flathub"})
	if !errors.Is(err, kilnerr.ErrNotInstalled) {
		t.Fatalf("Update: got %v, want ErrNotInstalled", err)
	}
}

func TestSQLiteScope_UpdateNoop(t *testing.T) {
	user, _ := openUserAndSystem(t)
	ctx := context.Background()

	const ref = "app/org.gnome.Recipes/x86_64/stable"
	if err := user.Install(ctx, store.InstallRequest{Ref: ref, Remote: "flathub"}); err != nil {
		t.Fatalf("Install: %v", err)
	}
	record, _, err := user.GetDeployData(ctx, ref)
	if err != nil {
		t.Fatalf("GetDeployData: %v", err)
	}

	_, err = user.Update(ctx, store.UpdateRequest{Ref: ref, Remote: "flathub", Commit: record.Commit})
	if !kilnerr.IsAlreadyInstalled(err) {
		t.Fatalf("no-op Update: got %v, want ErrAlreadyInstalled", err)
	}
}

func TestSQLiteScope_UpdateChangesCommit(t *testing.T) {
	user, _ := openUserAndSystem(t)
	ctx := context.Background()

	const ref = "app/org.gnome.Recipes/x86_64/stable"
	if err := user.Install(ctx, store.InstallRequest{Ref: ref, Remote: "flathub"}); err != nil {
		t.Fatalf("Install: %v", err)
	}

	updated, err := user.Update(ctx, store.UpdateRequest{Ref: ref, Remote: "flathub", Commit: "deadbeefcafe0"})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if updated.Commit != "deadbeefcafe0" {
		t.Errorf("Commit = %q, want %q", updated.Commit, "deadbeefcafe0")
	}
}

func TestSQLiteScope_SubpathsRoundtrip(t *testing.T) {
	user, _ := openUserAndSystem(t)
	ctx := context.Background()

	const ref = "app/org.gnome.Recipes/x86_64/stable"
	subpaths := []string{"/share/locale/en", "/share/locale/fr"}
	if err := user.Install(ctx, store.InstallRequest{Ref: ref, Remote: "flathub", Subpaths: subpaths}); err != nil {
		t.Fatalf("Install: %v", err)
	}

	record, ok, err := user.GetDeployData(ctx, ref)
	if err != nil {
		t.Fatalf("GetDeployData: %v", err)
	}
	if !ok {
		t.Fatal("expected deploy record")
	}
	if len(record.Subpaths) != 2 || record.Subpaths[0] != subpaths[0] || record.Subpaths[1] != subpaths[1] {
		t.Errorf("Subpaths = %v, want %v", record.Subpaths, subpaths)
	}
}

func TestSQLiteScope_AbsentSubpathsStayNil(t *testing.T) {
	user, _ := openUserAndSystem(t)
	ctx := context.Background()

	const ref = "app/org.gnome.Recipes/x86_64/stable"
	if err := user.Install(ctx, store.InstallRequest{Ref: ref, Remote: "flathub"}); err != nil {
		t.Fatalf("Install: %v", err)
	}

	record, _, err := user.GetDeployData(ctx, ref)
	if err != nil {
		t.Fatalf("GetDeployData: %v", err)
	}
	if record.Subpaths != nil {
		t.Errorf("Subpaths = %v, want nil (absent)", record.Subpaths)
	}
}

func TestSQLiteScope_RemoteDisabled(t *testing.T) {
	user, _ := openUserAndSystem(t)
	ctx := context.Background()

	if err := user.RegisterRemote(ctx, "flathub", false); err != nil {
		t.Fatalf("RegisterRemote: %v", err)
	}
	if err := user.RegisterRemote(ctx, "flathub-beta", true); err != nil {
		t.Fatalf("RegisterRemote: %v", err)
	}

	disabled, err := user.GetRemoteDisabled(ctx, "flathub")
	if err != nil {
		t.Fatalf("GetRemoteDisabled(flathub): %v", err)
	}
	if disabled {
		t.Error("flathub: expected enabled")
	}

	disabled, err = user.GetRemoteDisabled(ctx, "flathub-beta")
	if err != nil {
		t.Fatalf("GetRemoteDisabled(flathub-beta): %v", err)
	}
	if !disabled {
		t.Error("flathub-beta: expected disabled")
	}
}

func TestSQLiteScope_RefCacheRoundtrip(t *testing.T) {
	user, _ := openUserAndSystem(t)
	ctx := context.Background()

	payload := []byte(`{"commit":"abc123"}`)
	if err := user.SeedRefCache(ctx, "flathub", "runtime/org.freedesktop.Platform/x86_64/23.08", payload); err != nil {
		t.Fatalf("SeedRefCache: %v", err)
	}

	got, ok, err := user.FetchRefCache(ctx, "flathub", "runtime/org.freedesktop.Platform/x86_64/23.08")
	if err != nil {
		t.Fatalf("FetchRefCache: %v", err)
	}
	if !ok {
		t.Fatal("expected cache hit")
	}
	if string(got) != string(payload) {
		t.Errorf("FetchRefCache = %q, want %q", got, payload)
	}

	_, ok, err = user.FetchRefCache(ctx, "flathub", "runtime/does.not.Exist/x86_64/stable")
	if err != nil {
		t.Fatalf("FetchRefCache(miss): %v", err)
	}
	if ok {
		t.Error("expected cache miss")
	}
}

func TestSQLiteScope_SearchForDependency(t *testing.T) {
	user, _ := openUserAndSystem(t)
	ctx := context.Background()

	const runtimeRef = "runtime/org.freedesktop.Platform/x86_64/23.08"
	if err := user.RegisterRemoteRef(ctx, "flathub", runtimeRef); err != nil {
		t.Fatalf("RegisterRemoteRef(flathub): %v", err)
	}
	if err := user.RegisterRemoteRef(ctx, "flathub-beta", runtimeRef); err != nil {
		t.Fatalf("RegisterRemoteRef(flathub-beta): %v", err)
	}

	remotes, err := user.SearchForDependency(ctx, runtimeRef)
	if err != nil {
		t.Fatalf("SearchForDependency: %v", err)
	}
	if len(remotes) != 2 {
		t.Fatalf("SearchForDependency = %v, want 2 remotes", remotes)
	}
	if remotes[0] != "flathub" || remotes[1] != "flathub-beta" {
		t.Errorf("SearchForDependency = %v, want sorted [flathub flathub-beta]", remotes)
	}
}

func TestSQLiteScope_CreateOriginRemote(t *testing.T) {
	user, _ := openUserAndSystem(t)
	ctx := context.Background()

	const ref = "app/org.gnome.Recipes/x86_64/stable"
	id, err := user.CreateOriginRemote(ctx, "oci-recipes", "OCI remote for recipes", ref, "docker://registry.example/recipes", "latest")
	if err != nil {
		t.Fatalf("CreateOriginRemote: %v", err)
	}
	if id != "oci-recipes" {
		t.Errorf("CreateOriginRemote id = %q, want %q", id, "oci-recipes")
	}

	remotes, err := user.SearchForDependency(ctx, ref)
	if err != nil {
		t.Fatalf("SearchForDependency: %v", err)
	}
	if len(remotes) != 1 || remotes[0] != "oci-recipes" {
		t.Errorf("SearchForDependency = %v, want [oci-recipes]", remotes)
	}
}

func TestSQLiteScope_IsUserAndGetSystem(t *testing.T) {
	user, system := openUserAndSystem(t)

	if !user.IsUser() {
		t.Error("user.IsUser() = false, want true")
	}
	if system.IsUser() {
		t.Error("system.IsUser() = true, want false")
	}

	got, err := user.GetSystem()
	if err != nil {
		t.Fatalf("GetSystem: %v", err)
	}
	if got != store.Client(system) {
		t.Error("GetSystem did not return the configured system scope")
	}

	if _, err := system.GetSystem(); err == nil {
		t.Error("expected error resolving system scope from a system handle with no system configured")
	}
}

func TestSQLiteScope_RecreateRepo(t *testing.T) {
	user, _ := openUserAndSystem(t)
	if err := user.RecreateRepo(context.Background()); err != nil {
		t.Fatalf("RecreateRepo: %v", err)
	}
}

func TestSQLiteScope_FindLocalRelated_Unconfigured(t *testing.T) {
	user, _ := openUserAndSystem(t)
	got, err := user.FindLocalRelated(context.Background(), "app/org.gnome.Recipes/x86_64/stable", "flathub")
	if err != nil {
		t.Fatalf("FindLocalRelated: %v", err)
	}
	if got != nil {
		t.Errorf("got %v, want nil", got)
	}
}

func TestSQLiteScope_FindLocalRelated_FromIndexFile(t *testing.T) {
	indexPath := filepath.Join(t.TempDir(), "related.jsonc")
	if err := os.WriteFile(indexPath, []byte(`{
		"app/org.gnome.Recipes/x86_64/stable": [
			{"ref": "app/org.gnome.Recipes.Locale/x86_64/stable", "download": true}
		]
	}`), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	user, err := store.OpenSQLiteScope(store.SQLiteScopeConfig{
		Path:                  filepath.Join(t.TempDir(), "user.db"),
		IsUser:                true,
		RelatedLocalIndexPath: indexPath,
	})
	if err != nil {
		t.Fatalf("OpenSQLiteScope: %v", err)
	}
	defer user.Close()

	got, err := user.FindLocalRelated(context.Background(), "app/org.gnome.Recipes/x86_64/stable", "flathub")
	if err != nil {
		t.Fatalf("FindLocalRelated: %v", err)
	}
	if len(got) != 1 || got[0].Ref != "app/org.gnome.Recipes.Locale/x86_64/stable" {
		t.Errorf("got %v", got)
	}
}

func TestSQLiteScope_FindRemoteRelated_CachesAcrossCalls(t *testing.T) {
	fetchCount := 0
	user, err := store.OpenSQLiteScope(store.SQLiteScopeConfig{
		Path:   filepath.Join(t.TempDir(), "user.db"),
		IsUser: true,
		RelatedRemoteFetch: func(ctx context.Context, remote string) ([]byte, error) {
			fetchCount++
			return []byte(`{"app/org.gnome.Recipes/x86_64/stable": [{"ref": "app/X/a/locale", "download": true}]}`), nil
		},
	})
	if err != nil {
		t.Fatalf("OpenSQLiteScope: %v", err)
	}
	defer user.Close()

	ctx := context.Background()
	got, err := user.FindRemoteRelated(ctx, "app/org.gnome.Recipes/x86_64/stable", "flathub")
	if err != nil {
		t.Fatalf("FindRemoteRelated: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("got %v", got)
	}

	if _, err := user.FindRemoteRelated(ctx, "app/org.other/x86_64/stable", "flathub"); err != nil {
		t.Fatalf("FindRemoteRelated (second): %v", err)
	}
	if fetchCount != 1 {
		t.Errorf("fetchCount = %d, want 1 (cache hit on second call)", fetchCount)
	}
}
