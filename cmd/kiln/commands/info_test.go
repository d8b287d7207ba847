// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"bytes"
	"strings"
	"testing"

	"github.com/kiln-pm/kiln/internal/metadata"
	"github.com/kiln-pm/kiln/internal/store"
)

func TestInfo_NotDeployed(t *testing.T) {
	scope := &fakeListScope{deploys: map[string]store.DeployRecord{}}
	var out bytes.Buffer
	cmd := Info(&App{Scope: scope}, &out)
	if err := cmd.Run([]string{"app/org.gnome.Recipes/x86_64/stable"}); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !strings.Contains(out.String(), "deployed: no") {
		t.Errorf("output = %q", out.String())
	}
}

func TestInfo_DeployedShowsMetadataAndRuntime(t *testing.T) {
	appRef := "app/org.gnome.Recipes/x86_64/stable"
	keyfile := "[Application]\nname=org.gnome.Recipes\nruntime=org.gnome.Platform/x86_64/45\n"
	entry, err := metadata.EncodeCacheEntry([]byte(keyfile))
	if err != nil {
		t.Fatalf("EncodeCacheEntry: %v", err)
	}

	scope := &fakeListScope{
		deploys: map[string]store.DeployRecord{
			appRef: {Origin: "flathub", Commit: "deadbeef"},
		},
		keyfiles: map[string][]byte{
			"flathub/" + appRef: entry,
		},
		related: []store.RelatedRef{
			{Ref: "app/org.gnome.Recipes.Locale/x86_64/stable", Download: true},
		},
	}
	var out bytes.Buffer
	cmd := Info(&App{Scope: scope}, &out)
	if err := cmd.Run([]string{appRef}); err != nil {
		t.Fatalf("Run: %v", err)
	}
	output := out.String()
	if !strings.Contains(output, "deployed: yes (remote=flathub commit=deadbeef)") {
		t.Errorf("output missing deploy line: %q", output)
	}
	if !strings.Contains(output, "runtime dependency") {
		t.Errorf("output missing runtime dependency: %q", output)
	}
	if !strings.Contains(output, "related refs") {
		t.Errorf("output missing related refs: %q", output)
	}
}

func TestInfo_RequiresExactlyOneArg(t *testing.T) {
	cmd := Info(&App{Scope: &fakeListScope{}}, &bytes.Buffer{})
	if err := cmd.Run(nil); err == nil {
		t.Fatal("expected error for missing ref")
	}
}
