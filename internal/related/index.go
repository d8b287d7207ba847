// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package related

import (
	"encoding/json"
	"fmt"

	"github.com/tidwall/jsonc"
)

// entry is the on-disk / on-wire shape of one related-ref tuple,
// matching the (ref, subpaths, download_flag) triple from spec.md
// §4.4. Subpaths is omitted entirely (not merely empty) when the
// entry carries no filter, preserving the tri-state convention used
// throughout kiln.
type entry struct {
	Ref      string   `json:"ref"`
	Subpaths []string `json:"subpaths,omitempty"`
	Download bool     `json:"download"`
}

// index is the parsed form of a related-refs index file: primary ref
// to its related entries.
type index map[string][]entry

// parseIndex strips JSONC comments/trailing commas and unmarshals the
// result, the same two-step the teacher uses for every hand-authored
// JSONC document (lib/pipelinedef/parse.go).
func parseIndex(data []byte) (index, error) {
	stripped := jsonc.ToJSON(data)

	var parsed index
	if err := json.Unmarshal(stripped, &parsed); err != nil {
		return nil, fmt.Errorf("related: parsing index: %w", err)
	}
	return parsed, nil
}

// lookup returns the related entries for ref, or nil if there are none.
func (idx index) lookup(ref string) []entry {
	return idx[ref]
}
