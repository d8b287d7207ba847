// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package ref provides the canonical decomposition of kiln reference
// strings: kind/name/arch/branch identifiers for installable application
// bundles and runtimes (e.g. "app/org.gnome.Recipes/x86_64/stable").
//
// A Ref is compared and stored as a plain string throughout the rest of
// kiln — this package supplies the handful of pure string operations
// every other component needs: splitting off the "pretty" suffix used in
// user-facing messages, testing the leading kind segment, and building a
// runtime ref from its pretty suffix.
package ref
