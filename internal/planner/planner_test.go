// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package planner_test

import (
	"context"
	"errors"
	"testing"

	"github.com/kiln-pm/kiln/internal/chooser"
	"github.com/kiln-pm/kiln/internal/metadata"
	"github.com/kiln-pm/kiln/internal/planner"
	"github.com/kiln-pm/kiln/internal/store"
)

const (
	recipesApp   = "app/org.gnome.Recipes/x86_64/stable"
	gnomeRuntime = "runtime/org.gnome.Platform/x86_64/3.28"
	localeRef    = "runtime/org.gnome.Recipes.Locale/x86_64/stable"
)

func gnomeMetadata() []byte {
	raw := []byte("[Application]\nname=org.gnome.Recipes\nruntime=org.gnome.Platform/x86_64/3.28\n")
	encoded, err := metadata.EncodeCacheEntry(raw)
	if err != nil {
		panic(err)
	}
	return encoded
}

type fakeScope struct {
	isUser  bool
	system  *fakeScope
	deploys map[string]store.DeployRecord

	disabled map[string]bool

	refCache map[string][]byte // key: remote+"\x00"+ref

	localRelated  map[string][]store.RelatedRef
	remoteRelated map[string][]store.RelatedRef

	searchResults map[string][]string

	installed []store.InstallRequest
	updated   []store.UpdateRequest

	installErr error
	updateErr  error
	updateRecord *store.DeployRecord
}

func newFakeScope() *fakeScope {
	return &fakeScope{
		deploys:       map[string]store.DeployRecord{},
		disabled:      map[string]bool{},
		refCache:      map[string][]byte{},
		localRelated:  map[string][]store.RelatedRef{},
		remoteRelated: map[string][]store.RelatedRef{},
		searchResults: map[string][]string{},
	}
}

func cacheKey(remote, ref string) string { return remote + "\x00" + ref }

func (s *fakeScope) GetIfDeployed(ctx context.Context, ref string) (string, bool, error) {
	_, ok := s.deploys[ref]
	if !ok {
		return "", false, nil
	}
	return "/deploy/" + ref, true, nil
}

func (s *fakeScope) GetDeployData(ctx context.Context, ref string) (*store.DeployRecord, bool, error) {
	record, ok := s.deploys[ref]
	if !ok {
		return nil, false, nil
	}
	return &record, true, nil
}

func (s *fakeScope) IsUser() bool { return s.isUser }

func (s *fakeScope) GetSystem() (store.Client, error) {
	if s.system == nil {
		return nil, errors.New("no system scope configured")
	}
	return s.system, nil
}

func (s *fakeScope) GetRemoteDisabled(ctx context.Context, remote string) (bool, error) {
	return s.disabled[remote], nil
}

func (s *fakeScope) FetchRefCache(ctx context.Context, remote, ref string) ([]byte, bool, error) {
	blob, ok := s.refCache[cacheKey(remote, ref)]
	return blob, ok, nil
}

func (s *fakeScope) FindLocalRelated(ctx context.Context, ref, remote string) ([]store.RelatedRef, error) {
	return s.localRelated[cacheKey(remote, ref)], nil
}

func (s *fakeScope) FindRemoteRelated(ctx context.Context, ref, remote string) ([]store.RelatedRef, error) {
	return s.remoteRelated[cacheKey(remote, ref)], nil
}

func (s *fakeScope) SearchForDependency(ctx context.Context, ref string) ([]string, error) {
	return s.searchResults[ref], nil
}

func (s *fakeScope) ListRefs(ctx context.Context) ([]string, error) {
	return nil, nil
}

func (s *fakeScope) Install(ctx context.Context, req store.InstallRequest) error {
	if s.installErr != nil {
		return s.installErr
	}
	s.installed = append(s.installed, req)
	s.deploys[req.Ref] = store.DeployRecord{Origin: req.Remote, Commit: "deadbeef", Subpaths: req.Subpaths}
	return nil
}

func (s *fakeScope) Update(ctx context.Context, req store.UpdateRequest) (*store.DeployRecord, error) {
	if s.updateErr != nil {
		return nil, s.updateErr
	}
	s.updated = append(s.updated, req)
	if s.updateRecord != nil {
		return s.updateRecord, nil
	}
	record := store.DeployRecord{Origin: req.Remote, Commit: "cafebabe", Subpaths: req.Subpaths}
	s.deploys[req.Ref] = record
	return &record, nil
}

func (s *fakeScope) CreateOriginRemote(ctx context.Context, id, title, ref, uri, tag string) (string, error) {
	return id, nil
}

func (s *fakeScope) RecreateRepo(ctx context.Context) error { return nil }

var _ store.Client = (*fakeScope)(nil)

func mustNewPlan(t *testing.T, scope store.Client, cfg planner.Config, opts ...planner.Option) *planner.Transaction {
	t.Helper()
	return planner.New(scope, cfg, opts...)
}

// --- Scenario 1: simple install with a resolvable runtime dependency ---

func TestScenario_SimpleInstall(t *testing.T) {
	scope := newFakeScope()
	scope.refCache[cacheKey("flathub", recipesApp)] = gnomeMetadata()
	scope.searchResults[gnomeRuntime] = []string{"flathub"}

	tx := mustNewPlan(t, scope, planner.Config{AddDeps: true}, planner.WithChooser(chooser.First{}))
	if err := tx.AddInstall(context.Background(), "flathub", recipesApp, nil); err != nil {
		t.Fatalf("AddInstall: %v", err)
	}

	ops := tx.Ops()
	if len(ops) != 2 {
		t.Fatalf("plan length = %d, want 2", len(ops))
	}
	if ops[0].Ref != gnomeRuntime {
		t.Errorf("ops[0].Ref = %q, want runtime first", ops[0].Ref)
	}
	if ops[1].Ref != recipesApp {
		t.Errorf("ops[1].Ref = %q, want app second", ops[1].Ref)
	}
	if !ops[0].Install || !ops[0].Update {
		t.Errorf("runtime op = %+v, want install=true update=true (E1 deferred)", ops[0])
	}
	if !ops[1].Install || ops[1].Update {
		t.Errorf("app op = %+v, want install=true update=false", ops[1])
	}
}

// --- Scenario 2: dependency already deployed in the same scope ---

func TestScenario_DepPresentInSameScope(t *testing.T) {
	scope := newFakeScope()
	scope.refCache[cacheKey("flathub", recipesApp)] = gnomeMetadata()
	scope.deploys[gnomeRuntime] = store.DeployRecord{Origin: "flathub", Commit: "11111111"}

	tx := mustNewPlan(t, scope, planner.Config{AddDeps: true})
	if err := tx.AddInstall(context.Background(), "flathub", recipesApp, nil); err != nil {
		t.Fatalf("AddInstall: %v", err)
	}

	ops := tx.Ops()
	if len(ops) != 2 {
		t.Fatalf("plan length = %d, want 2", len(ops))
	}
	if ops[0].Ref != gnomeRuntime || ops[0].Install || !ops[0].Update {
		t.Errorf("runtime op = %+v, want update-only", ops[0])
	}
	if ops[0].Remote != "flathub" {
		t.Errorf("runtime op remote = %q, want flathub (recorded origin)", ops[0].Remote)
	}
}

// --- Scenario 3: update of disabled remote is a silent no-op ---

func TestScenario_UpdateDisabledRemote(t *testing.T) {
	scope := newFakeScope()
	scope.deploys[recipesApp] = store.DeployRecord{Origin: "flathub", Commit: "11111111"}
	scope.disabled["flathub"] = true

	tx := mustNewPlan(t, scope, planner.Config{})
	if err := tx.AddUpdate(context.Background(), recipesApp, nil, ""); err != nil {
		t.Fatalf("AddUpdate: %v", err)
	}
	if tx.Len() != 0 {
		t.Errorf("plan length = %d, want 0", tx.Len())
	}
}

// --- Scenario 4: already-installed install fails AlreadyInstalled ---

func TestScenario_AlreadyInstalled(t *testing.T) {
	scope := newFakeScope()
	scope.deploys[recipesApp] = store.DeployRecord{Origin: "flathub", Commit: "11111111"}

	tx := mustNewPlan(t, scope, planner.Config{})
	err := tx.AddInstall(context.Background(), "flathub", recipesApp, nil)
	if !planner.IsAlreadyInstalled(err) {
		t.Fatalf("got %v, want AlreadyInstalled", err)
	}
	if tx.Len() != 0 {
		t.Errorf("plan length = %d, want 0 (unchanged)", tx.Len())
	}
}

// --- Scenario 6: related-ref failure is non-fatal ---

func TestScenario_RelatedRefNonFatal(t *testing.T) {
	scope := newFakeScope()
	scope.remoteRelated[cacheKey("flathub", recipesApp)] = []store.RelatedRef{
		{Ref: localeRef, Download: true},
	}

	tx := mustNewPlan(t, scope, planner.Config{AddRelated: true})
	if err := tx.AddInstall(context.Background(), "flathub", recipesApp, nil); err != nil {
		t.Fatalf("AddInstall: %v", err)
	}

	ops := tx.Ops()
	if len(ops) != 2 {
		t.Fatalf("plan length = %d, want 2", len(ops))
	}
	related := ops[1]
	if related.Ref != localeRef || !related.NonFatal {
		t.Errorf("related op = %+v, want non_fatal install+update op for %s", related, localeRef)
	}
}

// --- P1: uniqueness ---

func TestP1_Uniqueness(t *testing.T) {
	scope := newFakeScope()
	tx := mustNewPlan(t, scope, planner.Config{})

	if err := tx.AddInstall(context.Background(), "flathub", recipesApp, nil); err != nil {
		t.Fatalf("AddInstall: %v", err)
	}
	seen := map[string]bool{}
	for _, op := range tx.Ops() {
		if seen[op.Ref] {
			t.Fatalf("ref %s appears twice", op.Ref)
		}
		seen[op.Ref] = true
	}
}

// --- P2: subpath dominance ("all wins over some") ---

func TestP2_SubpathDominance(t *testing.T) {
	scope := newFakeScope()
	scope.deploys[recipesApp] = store.DeployRecord{Origin: "flathub", Commit: "11111111"}
	scope.disabled["flathub"] = false

	tx := mustNewPlan(t, scope, planner.Config{})
	if err := tx.AddUpdate(context.Background(), recipesApp, []string{"/lib/locale/en"}, ""); err != nil {
		t.Fatalf("AddUpdate (filtered): %v", err)
	}
	if err := tx.AddUpdate(context.Background(), recipesApp, []string{}, ""); err != nil {
		t.Fatalf("AddUpdate (wildcard): %v", err)
	}

	op, ok := tx.Get(recipesApp)
	if !ok {
		t.Fatal("expected op present")
	}
	if len(op.Subpaths) != 0 {
		t.Errorf("Subpaths = %v, want empty (wildcard dominates)", op.Subpaths)
	}
}
