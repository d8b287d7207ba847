// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package executor_test

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/kiln-pm/kiln/internal/executor"
	"github.com/kiln-pm/kiln/internal/kilnerr"
	"github.com/kiln-pm/kiln/internal/planner"
	"github.com/kiln-pm/kiln/internal/store"
)

type fakeScope struct {
	deployed map[string]bool

	installErr error
	updateErr  error
	updateRecord *store.DeployRecord

	installCalls []store.InstallRequest
	updateCalls  []store.UpdateRequest
}

func newFakeScope() *fakeScope {
	return &fakeScope{deployed: map[string]bool{}}
}

func (s *fakeScope) GetIfDeployed(ctx context.Context, ref string) (string, bool, error) {
	if s.deployed[ref] {
		return "/deploy/" + ref, true, nil
	}
	return "", false, nil
}

func (s *fakeScope) GetDeployData(ctx context.Context, ref string) (*store.DeployRecord, bool, error) {
	if !s.deployed[ref] {
		return nil, false, nil
	}
	return &store.DeployRecord{Origin: "flathub", Commit: "11111111"}, true, nil
}

func (s *fakeScope) IsUser() bool                            { return false }
func (s *fakeScope) GetSystem() (store.Client, error)        { return nil, errors.New("no system scope") }
func (s *fakeScope) GetRemoteDisabled(ctx context.Context, remote string) (bool, error) { return false, nil }
func (s *fakeScope) FetchRefCache(ctx context.Context, remote, ref string) ([]byte, bool, error) {
	return nil, false, nil
}
func (s *fakeScope) FindLocalRelated(ctx context.Context, ref, remote string) ([]store.RelatedRef, error) {
	return nil, nil
}
func (s *fakeScope) FindRemoteRelated(ctx context.Context, ref, remote string) ([]store.RelatedRef, error) {
	return nil, nil
}
func (s *fakeScope) SearchForDependency(ctx context.Context, ref string) ([]string, error) {
	return nil, nil
}
func (s *fakeScope) ListRefs(ctx context.Context) ([]string, error) {
	return nil, nil
}

func (s *fakeScope) Install(ctx context.Context, req store.InstallRequest) error {
	s.installCalls = append(s.installCalls, req)
	if s.installErr != nil {
		return s.installErr
	}
	s.deployed[req.Ref] = true
	return nil
}

func (s *fakeScope) Update(ctx context.Context, req store.UpdateRequest) (*store.DeployRecord, error) {
	s.updateCalls = append(s.updateCalls, req)
	if s.updateErr != nil {
		return nil, s.updateErr
	}
	if s.updateRecord != nil {
		return s.updateRecord, nil
	}
	return &store.DeployRecord{Origin: req.Remote, Commit: "0123456789abcdef"}, nil
}

func (s *fakeScope) CreateOriginRemote(ctx context.Context, id, title, ref, uri, tag string) (string, error) {
	return id, nil
}
func (s *fakeScope) RecreateRepo(ctx context.Context) error { return nil }

var _ store.Client = (*fakeScope)(nil)

func TestRun_SimpleInstall(t *testing.T) {
	scope := newFakeScope()
	var out bytes.Buffer
	exec := executor.New(scope, executor.WithOutput(&out))

	ops := []planner.Operation{{Ref: "app/org.gnome.Recipes/x86_64/stable", Remote: "flathub", Install: true}}
	ok, err := exec.Run(context.Background(), "tx-1", ops, planner.Config{}, false)
	if err != nil || !ok {
		t.Fatalf("Run() = (%v, %v), want (true, nil)", ok, err)
	}
	if !strings.Contains(out.String(), "Installing: org.gnome.Recipes/x86_64/stable from flathub") {
		t.Errorf("missing install line: %q", out.String())
	}
	if len(scope.installCalls) != 1 {
		t.Fatalf("installCalls = %d, want 1", len(scope.installCalls))
	}
}

func TestRun_UpdatePrintsTruncatedCommit(t *testing.T) {
	scope := newFakeScope()
	scope.deployed["app/X/a/b"] = true
	scope.updateRecord = &store.DeployRecord{Origin: "flathub", Commit: "abcdef0123456789"}
	var out bytes.Buffer
	exec := executor.New(scope, executor.WithOutput(&out))

	ops := []planner.Operation{{Ref: "app/X/a/b", Remote: "flathub", Update: true}}
	ok, err := exec.Run(context.Background(), "tx-1", ops, planner.Config{}, false)
	if err != nil || !ok {
		t.Fatalf("Run() = (%v, %v)", ok, err)
	}
	if !strings.Contains(out.String(), "Now at abcdef012345.") {
		t.Errorf("output = %q, want truncated 12-char commit", out.String())
	}
}

func TestRun_NoopUpdateIsSuccess(t *testing.T) {
	scope := newFakeScope()
	scope.deployed["app/X/a/b"] = true
	scope.updateErr = kilnerr.ErrAlreadyInstalled
	var out bytes.Buffer
	exec := executor.New(scope, executor.WithOutput(&out))

	ops := []planner.Operation{{Ref: "app/X/a/b", Remote: "flathub", Update: true}}
	ok, err := exec.Run(context.Background(), "tx-1", ops, planner.Config{}, false)
	if err != nil || !ok {
		t.Fatalf("Run() = (%v, %v), want (true, nil)", ok, err)
	}
	if !strings.Contains(out.String(), "No updates.") {
		t.Errorf("output = %q, want \"No updates.\"", out.String())
	}
}

func TestRun_E1NarrowingInstalledBecomesUpdate(t *testing.T) {
	scope := newFakeScope()
	scope.deployed["app/X/a/b"] = true
	var out bytes.Buffer
	exec := executor.New(scope, executor.WithOutput(&out))

	ops := []planner.Operation{{Ref: "app/X/a/b", Remote: "flathub", Install: true, Update: true}}
	ok, err := exec.Run(context.Background(), "tx-1", ops, planner.Config{}, false)
	if err != nil || !ok {
		t.Fatalf("Run() = (%v, %v)", ok, err)
	}
	if len(scope.installCalls) != 0 || len(scope.updateCalls) != 1 {
		t.Errorf("installCalls=%d updateCalls=%d, want 0/1", len(scope.installCalls), len(scope.updateCalls))
	}
}

func TestRun_E1NarrowingNotInstalledBecomesInstall(t *testing.T) {
	scope := newFakeScope()
	var out bytes.Buffer
	exec := executor.New(scope, executor.WithOutput(&out))

	ops := []planner.Operation{{Ref: "app/X/a/b", Remote: "flathub", Install: true, Update: true}}
	ok, err := exec.Run(context.Background(), "tx-1", ops, planner.Config{}, false)
	if err != nil || !ok {
		t.Fatalf("Run() = (%v, %v)", ok, err)
	}
	if len(scope.installCalls) != 1 || len(scope.updateCalls) != 0 {
		t.Errorf("installCalls=%d updateCalls=%d, want 1/0", len(scope.installCalls), len(scope.updateCalls))
	}
}

func TestRun_NonFatalFailureDoesNotFailTransaction(t *testing.T) {
	scope := newFakeScope()
	scope.installErr = errors.New("disk full")
	var out bytes.Buffer
	exec := executor.New(scope, executor.WithOutput(&out))

	ops := []planner.Operation{{Ref: "runtime/locale/x86_64/stable", Remote: "flathub", Install: true, NonFatal: true}}
	ok, err := exec.Run(context.Background(), "tx-1", ops, planner.Config{}, false)
	if err != nil || !ok {
		t.Fatalf("Run() = (%v, %v), want (true, nil) — non-fatal failures must not fail the transaction", ok, err)
	}
	if !strings.Contains(out.String(), "Warning:") {
		t.Errorf("output = %q, want a Warning: line", out.String())
	}
}

func TestRun_FatalFailureWithoutStopOnFirstError(t *testing.T) {
	scope := newFakeScope()
	scope.installErr = errors.New("disk full")
	var out bytes.Buffer
	exec := executor.New(scope, executor.WithOutput(&out))

	ops := []planner.Operation{
		{Ref: "app/A/a/b", Remote: "flathub", Install: true},
		{Ref: "app/B/a/b", Remote: "flathub", Install: true},
	}
	ok, err := exec.Run(context.Background(), "tx-1", ops, planner.Config{}, false)
	if ok || !errors.Is(err, executor.ErrTransactionFailed) {
		t.Fatalf("Run() = (%v, %v), want (false, ErrTransactionFailed)", ok, err)
	}
	if len(scope.installCalls) != 2 {
		t.Errorf("installCalls = %d, want 2 (execution continues past the failure)", len(scope.installCalls))
	}
	if !strings.Contains(out.String(), "Error:") {
		t.Errorf("output = %q, want an Error: line", out.String())
	}
}

func TestRun_StopOnFirstErrorHaltsAndPropagates(t *testing.T) {
	scope := newFakeScope()
	sentinel := errors.New("disk full")
	scope.installErr = sentinel
	var out bytes.Buffer
	exec := executor.New(scope, executor.WithOutput(&out))

	ops := []planner.Operation{
		{Ref: "app/A/a/b", Remote: "flathub", Install: true},
		{Ref: "app/B/a/b", Remote: "flathub", Install: true},
	}
	ok, err := exec.Run(context.Background(), "tx-1", ops, planner.Config{}, true)
	if ok || !errors.Is(err, sentinel) {
		t.Fatalf("Run() = (%v, %v), want (false, sentinel)", ok, err)
	}
	if len(scope.installCalls) != 1 {
		t.Errorf("installCalls = %d, want 1 (halted after first failure)", len(scope.installCalls))
	}
}

func TestRun_CancellationMidRun(t *testing.T) {
	scope := newFakeScope()
	var out bytes.Buffer
	exec := executor.New(scope, executor.WithOutput(&out))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	ops := []planner.Operation{{Ref: "app/A/a/b", Remote: "flathub", Install: true}}
	ok, err := exec.Run(ctx, "tx-1", ops, planner.Config{}, false)
	if ok || !errors.Is(err, executor.ErrTransactionFailed) {
		t.Fatalf("Run() = (%v, %v), want (false, ErrTransactionFailed)", ok, err)
	}
	if len(scope.installCalls) != 0 {
		t.Errorf("installCalls = %d, want 0 (cancelled before dispatch)", len(scope.installCalls))
	}
}

func TestRun_NoPullNoDeployThreadedToStoreCalls(t *testing.T) {
	scope := newFakeScope()
	exec := executor.New(scope)

	ops := []planner.Operation{{Ref: "app/A/a/b", Remote: "flathub", Install: true}}
	cfg := planner.Config{NoPull: true, NoDeploy: true}
	ok, err := exec.Run(context.Background(), "tx-1", ops, cfg, false)
	if err != nil || !ok {
		t.Fatalf("Run() = (%v, %v)", ok, err)
	}
	if !scope.installCalls[0].NoPull || !scope.installCalls[0].NoDeploy {
		t.Errorf("install request = %+v, want NoPull=NoDeploy=true", scope.installCalls[0])
	}
}
