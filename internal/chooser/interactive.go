// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package chooser

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"golang.org/x/term"
)

// Interactive is the production Remote Chooser: a single-candidate
// yes/no prompt or a multi-candidate numbered menu (§4.5), rendered
// with bubbletea/lipgloss when stdout is a terminal and falling back
// to a plain-text line-oriented prompt otherwise — the same check
// site pattern as cmd/bureau/cli's logger.go and login.go.
type Interactive struct {
	In  io.Reader
	Out io.Writer
}

// NewInteractive returns an Interactive chooser reading from stdin and
// writing prompts to stdout.
func NewInteractive() Interactive {
	return Interactive{In: os.Stdin, Out: os.Stdout}
}

func (c Interactive) Choose(ctx context.Context, ref string, candidates []string) (string, bool, error) {
	out := c.Out
	if out == nil {
		out = os.Stdout
	}
	in := c.In
	if in == nil {
		in = os.Stdin
	}

	if file, ok := out.(*os.File); ok && term.IsTerminal(int(file.Fd())) {
		return runMenuProgram(ref, candidates, in, out)
	}
	return plainPrompt(ref, candidates, in, out)
}

// --- plain-text fallback (non-TTY stdout, e.g. piped output or CI) ---

func plainPrompt(ref string, candidates []string, in io.Reader, out io.Writer) (string, bool, error) {
	reader := bufio.NewReader(in)

	if len(candidates) == 1 {
		fmt.Fprintf(out, "Found in remote %s, do you want to install it? [y/N] ", candidates[0])
		line, _ := reader.ReadString('\n')
		answer := strings.ToLower(strings.TrimSpace(line))
		if answer == "y" || answer == "yes" {
			return candidates[0], true, nil
		}
		return "", false, nil
	}

	fmt.Fprintln(out, "Found in multiple remotes:")
	for i, candidate := range candidates {
		fmt.Fprintf(out, "  %d) %s\n", i+1, candidate)
	}
	fmt.Fprint(out, "Select a remote (0 to abort): ")

	line, _ := reader.ReadString('\n')
	choice, err := strconv.Atoi(strings.TrimSpace(line))
	if err != nil || choice == 0 || choice < 0 || choice > len(candidates) {
		return "", false, nil
	}
	return candidates[choice-1], true, nil
}

// --- interactive bubbletea/lipgloss menu ---

type menuModel struct {
	ref        string
	candidates []string
	cursor     int
	chosen     string
	ok         bool
	done       bool

	promptStyle   lipgloss.Style
	optionStyle   lipgloss.Style
	selectedStyle lipgloss.Style
	hintStyle     lipgloss.Style
}

// newMenuModel builds a model with styles bound to a renderer whose
// color profile is pinned to the destination writer, following
// lib/ticketui/markdown.go's rationale: auto-detection re-derives the
// profile from the environment and produces uncolored output in test
// harnesses with no TTY, so the profile is forced explicitly instead.
func newMenuModel(ref string, candidates []string, out io.Writer) menuModel {
	renderer := lipgloss.NewRenderer(out, termenv.WithProfile(termenv.ANSI256))
	renderer.SetColorProfile(termenv.ANSI256)

	return menuModel{
		ref:           ref,
		candidates:    candidates,
		promptStyle:   renderer.NewStyle().Bold(true),
		optionStyle:   renderer.NewStyle().PaddingLeft(2),
		selectedStyle: renderer.NewStyle().PaddingLeft(2).Bold(true).Foreground(lipgloss.Color("12")),
		hintStyle:     renderer.NewStyle().Faint(true),
	}
}

func (m menuModel) Init() tea.Cmd { return nil }

func (m menuModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	keyMsg, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}

	if len(m.candidates) == 1 {
		switch keyMsg.String() {
		case "y", "Y", "enter":
			m.chosen, m.ok, m.done = m.candidates[0], true, true
			return m, tea.Quit
		case "n", "N", "esc", "ctrl+c":
			m.ok, m.done = false, true
			return m, tea.Quit
		}
		return m, nil
	}

	switch keyMsg.String() {
	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
	case "down", "j":
		if m.cursor < len(m.candidates)-1 {
			m.cursor++
		}
	case "enter":
		m.chosen, m.ok, m.done = m.candidates[m.cursor], true, true
		return m, tea.Quit
	case "0", "esc", "ctrl+c":
		m.ok, m.done = false, true
		return m, tea.Quit
	default:
		if digit, err := strconv.Atoi(keyMsg.String()); err == nil && digit >= 1 && digit <= len(m.candidates) {
			m.chosen, m.ok, m.done = m.candidates[digit-1], true, true
			return m, tea.Quit
		}
	}
	return m, nil
}

func (m menuModel) View() string {
	var b strings.Builder

	if len(m.candidates) == 1 {
		fmt.Fprintf(&b, "%s\n", m.promptStyle.Render(fmt.Sprintf("Found in remote %s, do you want to install it?", m.candidates[0])))
		b.WriteString(m.hintStyle.Render("[y] yes  [n] abort"))
		b.WriteString("\n")
		return b.String()
	}

	fmt.Fprintf(&b, "%s\n", m.promptStyle.Render(fmt.Sprintf("Found %q in multiple remotes:", m.ref)))
	for i, candidate := range m.candidates {
		line := fmt.Sprintf("%d) %s", i+1, candidate)
		if i == m.cursor {
			b.WriteString(m.selectedStyle.Render("> " + line))
		} else {
			b.WriteString(m.optionStyle.Render(line))
		}
		b.WriteString("\n")
	}
	b.WriteString(m.hintStyle.Render("[up/down] move  [enter] select  [0] abort"))
	b.WriteString("\n")
	return b.String()
}

func runMenuProgram(ref string, candidates []string, in io.Reader, out io.Writer) (string, bool, error) {
	model := newMenuModel(ref, candidates, out)
	program := tea.NewProgram(model, tea.WithInput(in), tea.WithOutput(out))

	final, err := program.Run()
	if err != nil {
		return "", false, fmt.Errorf("chooser: running menu: %w", err)
	}

	result := final.(menuModel)
	return result.chosen, result.ok, nil
}
