// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package render turns goldmark-parsed markdown and chroma-highlighted
// keyfile text into styled terminal output for `kiln info` and the CLI's
// long-form help. It is a trimmed version of the teacher's
// lib/ticketui markdown renderer: kiln's help surface has no tables,
// images, or definition lists, so those node kinds are not handled.
package render

import (
	"io"
	"strings"
	"sync"

	"github.com/alecthomas/chroma/v2/quick"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
	"github.com/muesli/termenv"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/text"
)

// Theme names the colors Markdown and Keyfile rendering use.
type Theme struct {
	Heading lipgloss.Color
	Faint   lipgloss.Color
	Border  lipgloss.Color
	Normal  lipgloss.Color
}

// DefaultTheme matches the muted palette the teacher's ticket UI uses
// for terminal-rendered markdown.
var DefaultTheme = Theme{
	Heading: lipgloss.Color("39"),
	Faint:   lipgloss.Color("245"),
	Border:  lipgloss.Color("240"),
	Normal:  lipgloss.Color("252"),
}

var (
	parserInstance goldmark.Markdown
	parserOnce     sync.Once
)

func parser() goldmark.Markdown {
	parserOnce.Do(func() {
		parserInstance = goldmark.New(goldmark.WithExtensions(extension.GFM))
	})
	return parserInstance
}

// Markdown renders input as styled terminal text, word-wrapped to
// width. Code blocks are chroma-highlighted when fenced with a
// language tag.
func Markdown(input string, theme Theme, width int) string {
	if input == "" {
		return ""
	}
	source := []byte(input)
	document := parser().Parser().Parse(text.NewReader(source))

	// Pin the color profile: help text is rendered to a pipe in tests
	// and to a terminal in normal use, and auto-detection would drop
	// color in the former. See lib/ticketui/markdown.go for the same
	// fix applied to the ticket UI.
	lipRenderer := lipgloss.NewRenderer(io.Discard, termenv.WithProfile(termenv.ANSI256))
	lipRenderer.SetColorProfile(termenv.ANSI256)

	renderer := &markdownRenderer{source: source, theme: theme, width: width, lipRenderer: lipRenderer}
	ast.Walk(document, renderer.walk)
	return strings.TrimRight(renderer.output.String(), "\n")
}

// Keyfile syntax-highlights a GLib-keyfile-style Application metadata
// blob (the format internal/metadata parses) using chroma's INI
// lexer, which covers keyfile's [section]/key=value/# comment grammar.
// Returns plain text unchanged if highlighting fails.
func Keyfile(raw string) string {
	var buf strings.Builder
	if err := quick.Highlight(&buf, raw, "ini", "terminal256", "monokai"); err != nil {
		return raw
	}
	return buf.String()
}

type markdownRenderer struct {
	source []byte
	theme  Theme
	width  int

	output strings.Builder
	inline strings.Builder

	linePrefix      string
	linePrefixWidth int
	prefixStack     []int // width pushed at each list item, for popping in leaveListItem
	pendingBullet   string

	boldCount   int
	italicCount int

	listStack []listState

	lipRenderer      *lipgloss.Renderer
	trailingNewlines int
}

type listState struct {
	ordered bool
	counter int
}

func (r *markdownRenderer) newStyle() lipgloss.Style { return r.lipRenderer.NewStyle() }

func (r *markdownRenderer) currentWidth() int {
	width := r.width - r.linePrefixWidth
	if width < 10 {
		width = 10
	}
	return width
}

func (r *markdownRenderer) writeOutput(s string) {
	if s == "" {
		return
	}
	r.output.WriteString(s)
	trailing := 0
	allNewlines := true
	for i := len(s) - 1; i >= 0; i-- {
		if s[i] == '\n' {
			trailing++
		} else {
			allNewlines = false
			break
		}
	}
	if allNewlines {
		r.trailingNewlines += trailing
	} else {
		r.trailingNewlines = trailing
	}
}

func (r *markdownRenderer) ensureNewline() {
	if r.trailingNewlines < 1 {
		r.writeOutput("\n")
	}
}

func (r *markdownRenderer) ensureBlankLine() {
	for r.trailingNewlines < 2 {
		r.writeOutput("\n")
	}
}

func (r *markdownRenderer) consumeLinePrefix() string {
	if r.pendingBullet != "" {
		bullet := r.pendingBullet
		r.pendingBullet = ""
		return bullet
	}
	return r.linePrefix
}

func (r *markdownRenderer) applyPrefixes(content string) string {
	lines := strings.Split(content, "\n")
	var out strings.Builder
	for i, line := range lines {
		if i == 0 {
			out.WriteString(r.consumeLinePrefix())
		} else {
			out.WriteString(r.linePrefix)
		}
		out.WriteString(line)
		if i < len(lines)-1 {
			out.WriteString("\n")
		}
	}
	return out.String()
}

func (r *markdownRenderer) flushInline() string {
	content := r.inline.String()
	r.inline.Reset()
	if content == "" {
		return ""
	}
	wrapped := ansi.Wrap(content, r.currentWidth(), " ,.;-+|")
	return r.applyPrefixes(wrapped)
}

func (r *markdownRenderer) styledText(content string) string {
	style := r.newStyle().Foreground(r.theme.Normal)
	if r.boldCount > 0 {
		style = style.Bold(true)
	}
	if r.italicCount > 0 {
		style = style.Italic(true)
	}
	return style.Render(content)
}

func (r *markdownRenderer) renderInlineContent(node ast.Node) string {
	saved := r.inline.String()
	r.inline.Reset()
	for child := node.FirstChild(); child != nil; child = child.NextSibling() {
		ast.Walk(child, r.walk)
	}
	result := r.inline.String()
	r.inline.Reset()
	r.inline.WriteString(saved)
	return result
}

func (r *markdownRenderer) highlightCode(code, language string) string {
	if language == "" {
		return r.newStyle().Foreground(r.theme.Faint).Render(code)
	}
	var buf strings.Builder
	if err := quick.Highlight(&buf, code, language, "terminal256", "monokai"); err != nil {
		return r.newStyle().Foreground(r.theme.Faint).Render(code)
	}
	return buf.String()
}

func (r *markdownRenderer) walk(node ast.Node, entering bool) (ast.WalkStatus, error) {
	switch node.Kind() {
	case ast.KindParagraph, ast.KindTextBlock:
		if entering {
			r.inline.Reset()
		} else if flushed := r.flushInline(); flushed != "" {
			r.writeOutput(flushed)
			r.ensureNewline()
			r.ensureBlankLine()
		}

	case ast.KindHeading:
		if entering {
			r.inline.Reset()
		} else {
			r.leaveHeading(node.(*ast.Heading))
		}

	case ast.KindFencedCodeBlock:
		if entering {
			r.renderFencedCodeBlock(node.(*ast.FencedCodeBlock))
			return ast.WalkSkipChildren, nil
		}

	case ast.KindCodeBlock:
		if entering {
			r.renderCodeBlock(node.(*ast.CodeBlock))
			return ast.WalkSkipChildren, nil
		}

	case ast.KindList:
		if entering {
			r.enterList(node.(*ast.List))
		} else {
			r.leaveList()
		}

	case ast.KindListItem:
		if entering {
			r.enterListItem()
		} else {
			r.leaveListItem()
		}

	case ast.KindText:
		if entering {
			r.handleText(node.(*ast.Text))
		}

	case ast.KindEmphasis:
		r.handleEmphasis(node.(*ast.Emphasis), entering)

	case ast.KindCodeSpan:
		if entering {
			r.renderCodeSpan(node)
			return ast.WalkSkipChildren, nil
		}

	case ast.KindLink:
		if entering {
			r.renderLink(node.(*ast.Link))
			return ast.WalkSkipChildren, nil
		}

	case ast.KindAutoLink:
		if entering {
			r.renderAutoLink(node.(*ast.AutoLink))
		}
	}
	return ast.WalkContinue, nil
}

func (r *markdownRenderer) leaveHeading(heading *ast.Heading) {
	content := ansi.Strip(r.inline.String())
	r.inline.Reset()
	if content == "" {
		return
	}
	style := r.newStyle().Bold(true).Foreground(r.theme.Heading)
	wrapped := ansi.Wrap(style.Render(content), r.currentWidth(), " ,.;-+|")
	flushed := r.applyPrefixes(wrapped)
	r.ensureBlankLine()
	r.writeOutput(flushed)
	r.ensureNewline()
	r.ensureBlankLine()
}

func (r *markdownRenderer) renderFencedCodeBlock(node *ast.FencedCodeBlock) {
	language := string(node.Language(r.source))
	var code strings.Builder
	lines := node.Lines()
	for i := 0; i < lines.Len(); i++ {
		seg := lines.At(i)
		code.Write(seg.Value(r.source))
	}
	highlighted := r.highlightCode(code.String(), language)
	r.ensureBlankLine()
	for _, line := range strings.Split(strings.TrimRight(highlighted, "\n"), "\n") {
		r.writeOutput(r.consumeLinePrefix() + line)
		r.ensureNewline()
	}
	r.ensureBlankLine()
}

func (r *markdownRenderer) renderCodeBlock(node *ast.CodeBlock) {
	var code strings.Builder
	lines := node.Lines()
	for i := 0; i < lines.Len(); i++ {
		seg := lines.At(i)
		code.Write(seg.Value(r.source))
	}
	faint := r.newStyle().Foreground(r.theme.Faint)
	r.ensureBlankLine()
	for _, line := range strings.Split(strings.TrimRight(code.String(), "\n"), "\n") {
		r.writeOutput(r.consumeLinePrefix() + faint.Render(line))
		r.ensureNewline()
	}
	r.ensureBlankLine()
}

func (r *markdownRenderer) enterList(list *ast.List) {
	start := 0
	if list.IsOrdered() {
		start = list.Start
	}
	r.listStack = append(r.listStack, listState{ordered: list.IsOrdered(), counter: start})
}

func (r *markdownRenderer) leaveList() {
	if len(r.listStack) > 0 {
		r.listStack = r.listStack[:len(r.listStack)-1]
	}
	r.ensureBlankLine()
}

func (r *markdownRenderer) enterListItem() {
	if len(r.listStack) == 0 {
		return
	}
	top := &r.listStack[len(r.listStack)-1]
	var bullet string
	if top.ordered {
		bullet = intToString(top.counter) + ". "
		top.counter++
	} else {
		bullet = "- "
	}
	width := len(bullet)
	r.pendingBullet = r.linePrefix + bullet
	r.linePrefix += strings.Repeat(" ", width)
	r.linePrefixWidth += width
	r.prefixStack = append(r.prefixStack, width)
}

func (r *markdownRenderer) leaveListItem() {
	if len(r.prefixStack) > 0 {
		width := r.prefixStack[len(r.prefixStack)-1]
		r.prefixStack = r.prefixStack[:len(r.prefixStack)-1]
		r.linePrefix = r.linePrefix[:len(r.linePrefix)-width]
		r.linePrefixWidth -= width
	}
	r.pendingBullet = ""
	r.ensureNewline()
}

func intToString(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var digits []byte
	for n > 0 {
		digits = append([]byte{byte('0' + n%10)}, digits...)
		n /= 10
	}
	if neg {
		return "-" + string(digits)
	}
	return string(digits)
}

func (r *markdownRenderer) handleText(node *ast.Text) {
	segment := node.Segment
	value := string(segment.Value(r.source))
	r.inline.WriteString(r.styledText(value))
	if node.SoftLineBreak() {
		r.inline.WriteString(" ")
	}
	if node.HardLineBreak() {
		r.inline.WriteString("\n")
	}
}

func (r *markdownRenderer) handleEmphasis(node *ast.Emphasis, entering bool) {
	if node.Level >= 2 {
		if entering {
			r.boldCount++
		} else {
			r.boldCount--
		}
	} else {
		if entering {
			r.italicCount++
		} else {
			r.italicCount--
		}
	}
}

func (r *markdownRenderer) renderCodeSpan(node ast.Node) {
	var code strings.Builder
	for child := node.FirstChild(); child != nil; child = child.NextSibling() {
		if textNode, ok := child.(*ast.Text); ok {
			code.Write(textNode.Segment.Value(r.source))
		}
	}
	style := r.newStyle().Foreground(r.theme.Faint)
	r.inline.WriteString(style.Render(code.String()))
}

func (r *markdownRenderer) renderLink(node *ast.Link) {
	display := r.renderInlineContent(node)
	url := string(node.Destination)
	r.inline.WriteString(display)
	if url != "" {
		style := r.newStyle().Foreground(r.theme.Faint)
		r.inline.WriteString(" " + style.Render("("+url+")"))
	}
}

func (r *markdownRenderer) renderAutoLink(node *ast.AutoLink) {
	url := string(node.URL(r.source))
	style := r.newStyle().Foreground(r.theme.Faint)
	r.inline.WriteString(style.Render(url))
}
