// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package store

import (
	"context"
	"fmt"
)

// IsInstalled reports whether ref is deployed in scope. If scope is a
// user scope, the system scope is additionally consulted and a hit
// there also counts. Installing into the system scope must not take a
// dependency on a user-only runtime, so a system-scope probe never
// widens to the user scope; a user-scope probe may be satisfied by
// either.
func IsInstalled(ctx context.Context, scope Client, ref string) (bool, error) {
	_, ok, err := scope.GetIfDeployed(ctx, ref)
	if err != nil {
		return false, fmt.Errorf("probing %s in scope: %w", ref, err)
	}
	if ok {
		return true, nil
	}
	if !scope.IsUser() {
		return false, nil
	}

	system, err := scope.GetSystem()
	if err != nil {
		return false, fmt.Errorf("resolving system scope: %w", err)
	}
	_, ok, err = system.GetIfDeployed(ctx, ref)
	if err != nil {
		return false, fmt.Errorf("probing %s in system scope: %w", ref, err)
	}
	return ok, nil
}

// OriginOf returns the remote name recorded at deploy time for ref in
// scope, or ("", false, nil) if ref is not deployed here. Unlike
// IsInstalled, this never consults the system scope — origin is
// meaningful only for a ref actually deployed in the scope being asked.
func OriginOf(ctx context.Context, scope Client, ref string) (string, bool, error) {
	record, ok, err := scope.GetDeployData(ctx, ref)
	if err != nil {
		return "", false, fmt.Errorf("fetching deploy data for %s: %w", ref, err)
	}
	if !ok {
		return "", false, nil
	}
	return record.Origin, true, nil
}

// RemoteDisabled reports whether remote is disabled in scope.
func RemoteDisabled(ctx context.Context, scope Client, remote string) (bool, error) {
	disabled, err := scope.GetRemoteDisabled(ctx, remote)
	if err != nil {
		return false, fmt.Errorf("checking remote %s disabled: %w", remote, err)
	}
	return disabled, nil
}
