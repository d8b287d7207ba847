// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package ociorigin

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

// manifestMediaType is the OCI image manifest media type requested
// from the registry's v2 manifests endpoint.
const manifestMediaType = "application/vnd.oci.image.manifest.v1+json"

// HTTPRegistry is a minimal OCI Distribution Specification client: it
// speaks the plain GET /v2/<name>/manifests/<tag> manifest endpoint
// directly over net/http. No OCI registry client library appears
// anywhere in the example corpus (see DESIGN.md), so this talks the
// wire protocol directly rather than reaching for an unavailable
// dependency — kiln's only use of it is reading two annotations out of
// one manifest, not the full registry surface (push, blobs, auth
// flows) a real client library would cover.
type HTTPRegistry struct {
	Client *http.Client
}

// NewHTTPRegistry returns a Registry backed by http.DefaultClient.
func NewHTTPRegistry() HTTPRegistry {
	return HTTPRegistry{Client: http.DefaultClient}
}

// Open parses uri as "https://host/name" and returns a Session scoped
// to that repository.
func (r HTTPRegistry) Open(ctx context.Context, uri string) (Session, error) {
	host, name, err := splitRegistryURI(uri)
	if err != nil {
		return nil, err
	}
	client := r.Client
	if client == nil {
		client = http.DefaultClient
	}
	return httpSession{client: client, host: host, name: name}, nil
}

type httpSession struct {
	client *http.Client
	host   string
	name   string
}

func (s httpSession) Manifest(ctx context.Context, tag string) (Manifest, error) {
	url := fmt.Sprintf("%s/v2/%s/manifests/%s", s.host, s.name, tag)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Manifest{}, fmt.Errorf("ociorigin: building manifest request: %w", err)
	}
	req.Header.Set("Accept", manifestMediaType)

	resp, err := s.client.Do(req)
	if err != nil {
		return Manifest{}, fmt.Errorf("ociorigin: fetching manifest: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Manifest{}, fmt.Errorf("ociorigin: registry returned %s for %s", resp.Status, url)
	}

	var body struct {
		Annotations map[string]string `json:"annotations"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return Manifest{}, fmt.Errorf("ociorigin: decoding manifest: %w", err)
	}
	return Manifest{Annotations: body.Annotations}, nil
}

// splitRegistryURI splits "https://host/name" into its host and
// repository name parts.
func splitRegistryURI(uri string) (host, name string, err error) {
	const schemeSep = "://"
	idx := strings.Index(uri, schemeSep)
	if idx < 0 {
		return "", "", fmt.Errorf("ociorigin: malformed registry uri %q (missing scheme)", uri)
	}
	rest := uri[idx+len(schemeSep):]
	slash := strings.IndexByte(rest, '/')
	if slash < 0 {
		return "", "", fmt.Errorf("ociorigin: malformed registry uri %q (missing repository name)", uri)
	}
	return uri[:idx+len(schemeSep)] + rest[:slash], rest[slash+1:], nil
}
