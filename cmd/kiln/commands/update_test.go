// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import "testing"

func TestUpdate_RequiresExactlyOneArg(t *testing.T) {
	cmd := Update(&App{})
	if err := cmd.Run(nil); err == nil {
		t.Fatal("expected error for zero args")
	}
	if err := cmd.Run([]string{"a", "b"}); err == nil {
		t.Fatal("expected error for two args")
	}
}

func TestUpdate_Usage(t *testing.T) {
	cmd := Update(&App{})
	if cmd.Name != "update" {
		t.Errorf("Name = %q", cmd.Name)
	}
	fs := cmd.Flags()
	if fs.Lookup("commit") == nil {
		t.Error("expected --commit flag")
	}
	if fs.Lookup("subpath") == nil {
		t.Error("expected --subpath flag")
	}
}
