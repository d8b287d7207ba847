// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package ref

import (
	"errors"
	"fmt"
	"strings"
)

// Kind distinguishes the two ref families kiln plans and installs.
type Kind string

const (
	// KindApp identifies a sandboxed application bundle.
	KindApp Kind = "app"
	// KindRuntime identifies a shared base environment that apps depend on.
	KindRuntime Kind = "runtime"
)

// ErrMalformedRef is returned when a ref string cannot be decomposed into
// kind/name/arch/branch parts.
var ErrMalformedRef = errors.New("malformed ref")

// Ref is a parsed kind/name/arch/branch identifier. The zero value is not
// a valid ref; construct one with Parse.
type Ref struct {
	Kind   Kind
	Name   string
	Arch   string
	Branch string
}

// Parse decomposes a raw ref string of the form kind/name/arch/branch.
// kind must be exactly "app" or "runtime". Returns ErrMalformedRef if the
// string has the wrong number of segments or an unrecognized kind.
func Parse(raw string) (Ref, error) {
	segments := strings.Split(raw, "/")
	if len(segments) != 4 {
		return Ref{}, fmt.Errorf("%w: %q has %d segments, want 4 (kind/name/arch/branch)", ErrMalformedRef, raw, len(segments))
	}

	kind := Kind(segments[0])
	if kind != KindApp && kind != KindRuntime {
		return Ref{}, fmt.Errorf("%w: %q has kind %q, want %q or %q", ErrMalformedRef, raw, kind, KindApp, KindRuntime)
	}

	for i, segment := range segments[1:] {
		if segment == "" {
			return Ref{}, fmt.Errorf("%w: %q has an empty segment at position %d", ErrMalformedRef, raw, i+1)
		}
	}

	return Ref{
		Kind:   kind,
		Name:   segments[1],
		Arch:   segments[2],
		Branch: segments[3],
	}, nil
}

// String reassembles the canonical kind/name/arch/branch form.
func (r Ref) String() string {
	return string(r.Kind) + "/" + r.Name + "/" + r.Arch + "/" + r.Branch
}

// Pretty returns the substring after the first "/" — the name/arch/branch
// form used in every user-facing message. Fails with ErrMalformedRef if
// raw contains no "/".
func Pretty(raw string) (string, error) {
	index := strings.IndexByte(raw, '/')
	if index < 0 {
		return "", fmt.Errorf("%w: %q has no \"/\"", ErrMalformedRef, raw)
	}
	return raw[index+1:], nil
}

// MustPretty is Pretty without an error return, for call sites (logging,
// CLI output) that already know raw is well-formed because it came from a
// Ref that parsed successfully. On malformed input it returns raw itself
// rather than panicking — user-facing output should degrade, not crash.
func MustPretty(raw string) string {
	pretty, err := Pretty(raw)
	if err != nil {
		return raw
	}
	return pretty
}

// IsApp reports whether raw starts with the "app/" kind prefix.
func IsApp(raw string) bool {
	return strings.HasPrefix(raw, string(KindApp)+"/")
}

// IsRuntime reports whether raw starts with the "runtime/" kind prefix.
func IsRuntime(raw string) bool {
	return strings.HasPrefix(raw, string(KindRuntime)+"/")
}

// RuntimeRef prepends the "runtime/" kind to a bare name/arch/branch
// string, producing a full runtime ref. This is how the Planner turns a
// declared "runtime" metadata value (already in pretty form) into a ref
// it can look up in the plan index and the store.
func RuntimeRef(nameArchBranch string) string {
	return string(KindRuntime) + "/" + nameArchBranch
}
