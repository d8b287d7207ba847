// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package ociorigin implements the OCI Origin Binder (§4.6): given a
// registry URI and tag, resolve the image's flatpak-style ref and
// commit annotations and provision an ephemeral origin remote for it.
//
// The registry itself is an external collaborator (spec.md §1 treats
// the content store and its transports as out of scope), so Registry
// is an interface: production code backs it with a real OCI client,
// tests back it with a fake.
package ociorigin

import (
	"context"
	"errors"
	"fmt"

	"github.com/kiln-pm/kiln/internal/kilnerr"
	"github.com/kiln-pm/kiln/lib/ref"
)

// Manifest is the minimal image manifest surface the binder needs:
// the flatpak-specific annotations carrying the canonical ref and
// commit checksum.
type Manifest struct {
	// Annotations are the manifest's OCI annotations. The binder reads
	// "org.flatpak.ref" and "org.flatpak.commit".
	Annotations map[string]string
}

const (
	annotationRef    = "org.flatpak.ref"
	annotationCommit = "org.flatpak.commit"
)

// Registry is the subset of an OCI registry client the binder
// consumes: open a connection, then fetch the manifest for a tag.
type Registry interface {
	// Open connects to the registry at uri. Fail → propagate.
	Open(ctx context.Context, uri string) (Session, error)
}

// Session is an open registry connection scoped to one image.
type Session interface {
	// Manifest fetches the image manifest for tag. Fail → propagate.
	Manifest(ctx context.Context, tag string) (Manifest, error)
}

// Binding is the result of successfully resolving an OCI image to an
// installable ref: everything the Planner needs to enqueue an install.
type Binding struct {
	Ref      string
	Commit   string
	RemoteID string
	Remote   string // the human title recorded with the remote
	Subpaths []string
	URI      string
	Tag      string
}

// Scope is the subset of store.Client the binder needs to provision
// the ephemeral origin remote and make it visible to subsequent pulls.
type Scope interface {
	CreateOriginRemote(ctx context.Context, id, title, ref, uri, tag string) (string, error)
	RecreateRepo(ctx context.Context) error
}

// Bind runs the full 7-step process from spec.md §4.6: open the
// registry, fetch the manifest, parse its flatpak annotations,
// decompose the ref, provision an origin remote, and recreate the
// repo handle so the new remote is visible to the pull the caller is
// about to enqueue. Subpaths is always empty (all) for OCI installs,
// per spec.
func Bind(ctx context.Context, registry Registry, scope Scope, uri, tag string) (Binding, error) {
	session, err := registry.Open(ctx, uri)
	if err != nil {
		return Binding{}, fmt.Errorf("ociorigin: opening registry %s: %w", uri, err)
	}

	manifest, err := session.Manifest(ctx, tag)
	if err != nil {
		return Binding{}, fmt.Errorf("ociorigin: fetching manifest for %s:%s: %w", uri, tag, err)
	}

	rawRef, commit, err := parseAnnotations(manifest)
	if err != nil {
		return Binding{}, err
	}

	parsed, err := ref.Parse(rawRef)
	if err != nil {
		return Binding{}, fmt.Errorf("ociorigin: decomposing ref %q: %w", rawRef, err)
	}

	pretty := ref.MustPretty(parsed.String())
	remoteID := "oci-" + pretty
	title := "OCI remote for " + pretty

	assignedRemote, err := scope.CreateOriginRemote(ctx, remoteID, title, parsed.String(), uri, tag)
	if err != nil {
		return Binding{}, fmt.Errorf("ociorigin: provisioning origin remote for %s: %w", pretty, err)
	}

	if err := scope.RecreateRepo(ctx); err != nil {
		return Binding{}, fmt.Errorf("ociorigin: recreating repo after binding %s: %w", pretty, err)
	}

	return Binding{
		Ref:      parsed.String(),
		Commit:   commit,
		RemoteID: assignedRemote,
		Remote:   title,
		Subpaths: []string{},
		URI:      uri,
		Tag:      tag,
	}, nil
}

// parseAnnotations extracts the ref and commit from a manifest's
// flatpak annotations. If the ref annotation is missing, the image is
// not a flatpak image.
func parseAnnotations(manifest Manifest) (rawRef, commit string, err error) {
	rawRef = manifest.Annotations[annotationRef]
	if rawRef == "" {
		return "", "", fmt.Errorf("ociorigin: manifest has no %q annotation: %w", annotationRef, kilnerr.ErrNotAFlatpakImage)
	}
	commit = manifest.Annotations[annotationCommit]
	return rawRef, commit, nil
}

// IsNotAFlatpakImage reports whether err (or any error it wraps)
// indicates the image lacked the required flatpak annotations.
func IsNotAFlatpakImage(err error) bool {
	return errors.Is(err, kilnerr.ErrNotAFlatpakImage)
}
