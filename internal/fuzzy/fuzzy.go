// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package fuzzy implements ranked fuzzy matching for `kiln search`,
// delegating the actual scoring to fzf's matcher the way
// lib/ticketui/fuzzy.go delegates to the shared TUI library — kiln has
// no equivalent shared wrapper, so this package talks to
// github.com/junegunn/fzf/src/algo directly.
package fuzzy

import (
	"sort"
	"strings"

	"github.com/junegunn/fzf/src/algo"
	"github.com/junegunn/fzf/src/util"
)

// Result is a single ref's fuzzy match outcome: its score (zero or
// negative means no match) and the matched rune positions within Text,
// for highlighting.
type Result struct {
	Text      string
	Score     int
	Positions []int
}

// Match scores a single candidate string against pattern. An empty
// pattern always scores zero with no positions, matching every
// candidate (used for the unfiltered "show everything" case).
func Match(text string, pattern []rune, slab *util.Slab) Result {
	if len(pattern) == 0 {
		return Result{Text: text}
	}

	chars := util.ToChars([]byte(strings.ToLower(text)))
	result, positions := algo.FuzzyMatchV2(false, true, true, &chars, lowerRunes(pattern), true, slab)
	if result.Score <= 0 {
		return Result{Text: text}
	}

	var pos []int
	if positions != nil {
		pos = make([]int, len(*positions))
		for i, p := range *positions {
			pos[i] = int(p)
		}
		sort.Ints(pos)
	}
	return Result{Text: text, Score: int(result.Score), Positions: pos}
}

func lowerRunes(pattern []rune) []rune {
	lowered := make([]rune, len(pattern))
	for i, r := range pattern {
		lowered[i] = toLowerRune(r)
	}
	return lowered
}

func toLowerRune(r rune) rune {
	if r >= 'A' && r <= 'Z' {
		return r + ('a' - 'A')
	}
	return r
}

// Search ranks every candidate in refs against query, returning only
// the matches (score > 0) sorted by descending score, ties broken by
// shorter text first, then lexicographically — the ranking kiln search
// presents to the user.
func Search(refs []string, query string) []Result {
	pattern := []rune(query)
	// Slab sizes mirror fzf's own terminal.go defaults: large enough
	// for typical ref strings, reused across every candidate in refs
	// to avoid a per-match allocation.
	slab := util.MakeSlab(100*1024, 2048)

	results := make([]Result, 0, len(refs))
	for _, candidate := range refs {
		if query == "" {
			results = append(results, Result{Text: candidate})
			continue
		}
		if match := Match(candidate, pattern, slab); match.Score > 0 {
			results = append(results, match)
		}
	}

	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		if len(results[i].Text) != len(results[j].Text) {
			return len(results[i].Text) < len(results[j].Text)
		}
		return results[i].Text < results[j].Text
	})
	return results
}
