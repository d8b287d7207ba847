// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import "github.com/kiln-pm/kiln/internal/ociorigin"

// newOCIRegistry returns the Registry backing `kiln install --oci`.
func newOCIRegistry() ociorigin.Registry {
	return ociorigin.NewHTTPRegistry()
}
