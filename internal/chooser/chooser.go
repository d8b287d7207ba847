// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package chooser implements the Remote Chooser (§4.5), the sole
// interactive surface of the planner: given an unsatisfied runtime
// dependency, ask the operator which of the candidate remotes should
// supply it, or let them abort.
package chooser

import "context"

// Strategy resolves an unsatisfied dependency's candidate remote list
// down to a single choice, or reports abort. Candidates is always
// non-empty; implementations must not be called otherwise.
type Strategy interface {
	Choose(ctx context.Context, ref string, candidates []string) (remote string, ok bool, err error)
}

// First always picks the first candidate without prompting. Useful
// for tests and for non-interactive / scripted CLI invocations.
type First struct{}

func (First) Choose(ctx context.Context, ref string, candidates []string) (string, bool, error) {
	return candidates[0], true, nil
}

// Abort always aborts, as if the operator declined every prompt.
// Useful for tests asserting RuntimeMissing propagation.
type Abort struct{}

func (Abort) Choose(ctx context.Context, ref string, candidates []string) (string, bool, error) {
	return "", false, nil
}

// Fixed always returns a predetermined remote, failing if it is not
// among the candidates. Useful for tests pinning a specific choice.
type Fixed struct {
	Remote string
}

func (f Fixed) Choose(ctx context.Context, ref string, candidates []string) (string, bool, error) {
	for _, candidate := range candidates {
		if candidate == f.Remote {
			return f.Remote, true, nil
		}
	}
	return "", false, nil
}
