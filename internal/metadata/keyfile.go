// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package metadata

import "strings"

// keyfile is a minimal GLib-keyfile-style (INI) parser: sections in
// brackets, "key=value" pairs, "#" comment lines, blank lines
// ignored. Flatpak's metadata format is exactly this shape; no parser
// in the example corpus covers it; the format is small enough that a
// hand-rolled scanner is clearer than pulling in a general-purpose INI
// library for one lookup.
type keyfile map[string]map[string]string

// parseKeyfile parses raw keyfile bytes. Malformed input (a key=value
// line before any section header) is tolerated by discarding the line
// rather than failing — callers only ever want one key's value and
// treat any lookup miss as absence, never as an error.
func parseKeyfile(data []byte) keyfile {
	sections := keyfile{}
	var current string

	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if strings.HasPrefix(line, "[") && strings.HasSuffix(line, "]") {
			current = strings.TrimSpace(line[1 : len(line)-1])
			if _, ok := sections[current]; !ok {
				sections[current] = map[string]string{}
			}
			continue
		}
		if current == "" {
			continue
		}
		key, value, found := strings.Cut(line, "=")
		if !found {
			continue
		}
		sections[current][strings.TrimSpace(key)] = strings.TrimSpace(value)
	}

	return sections
}

// lookup returns the value of key under section, or ("", false).
func (k keyfile) lookup(section, key string) (string, bool) {
	values, ok := k[section]
	if !ok {
		return "", false
	}
	value, ok := values[key]
	return value, ok
}
