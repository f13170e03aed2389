// Copyright (C) 2026 Meridian AI (mbridger@meridianai.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package ux provides terminal output styling for the Meridian CLI.
//
// Styling is plain ANSI, gated on the output being a real terminal and on
// the NO_COLOR convention, so piped and scripted invocations always get
// clean text. There is no interactive rendering layer here; the CLI prints
// line-oriented output and lets the terminal scroll.
package ux

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
)

// ANSI sequences for the Meridian palette. Cyan is the brand accent.
const (
	ansiReset  = "\033[0m"
	ansiBold   = "\033[1m"
	ansiDim    = "\033[2m"
	ansiCyan   = "\033[36m"
	ansiGreen  = "\033[32m"
	ansiYellow = "\033[33m"
	ansiRed    = "\033[31m"
)

// Printer writes styled CLI output to a single destination.
//
// A Printer decides once, at construction, whether its destination gets
// ANSI styling. Construct one per stream (stdout, stderr) and reuse it;
// the zero value writes unstyled text to io.Discard.
type Printer struct {
	w     io.Writer
	color bool
}

// NewPrinter builds a Printer for w, enabling color only when w is a
// terminal and the environment does not opt out.
func NewPrinter(w io.Writer) *Printer {
	return &Printer{w: w, color: colorEnabled(w)}
}

// NewPlainPrinter builds a Printer that never styles, for tests and for
// machine-readable output modes.
func NewPlainPrinter(w io.Writer) *Printer {
	return &Printer{w: w}
}

// colorEnabled reports whether ANSI styling is appropriate for w.
//
// Styling requires a terminal fd and is suppressed by the NO_COLOR
// convention (https://no-color.org) and by TERM=dumb.
func colorEnabled(w io.Writer) bool {
	if os.Getenv("NO_COLOR") != "" || os.Getenv("TERM") == "dumb" {
		return false
	}
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// ColorEnabled reports whether this printer styles its output.
func (p *Printer) ColorEnabled() bool {
	return p.color
}

func (p *Printer) write(s string) {
	if p.w == nil {
		return
	}
	fmt.Fprint(p.w, s)
}

func (p *Printer) styled(code, s string) string {
	if !p.color {
		return s
	}
	return code + s + ansiReset
}

// Printf writes unstyled formatted text.
func (p *Printer) Printf(format string, args ...any) {
	p.write(fmt.Sprintf(format, args...))
}

// Println writes an unstyled line.
func (p *Printer) Println(args ...any) {
	p.write(fmt.Sprintln(args...))
}

// Title writes a bold cyan heading line.
func (p *Printer) Title(format string, args ...any) {
	p.write(p.styled(ansiBold+ansiCyan, fmt.Sprintf(format, args...)) + "\n")
}

// Successf writes a line prefixed with a success mark.
func (p *Printer) Successf(format string, args ...any) {
	p.write(p.styled(ansiGreen, "✓ "+fmt.Sprintf(format, args...)) + "\n")
}

// Warnf writes a line prefixed with a warning mark.
func (p *Printer) Warnf(format string, args ...any) {
	p.write(p.styled(ansiYellow, "! "+fmt.Sprintf(format, args...)) + "\n")
}

// Errorf writes a line prefixed with a failure mark.
func (p *Printer) Errorf(format string, args ...any) {
	p.write(p.styled(ansiRed, "✗ "+fmt.Sprintf(format, args...)) + "\n")
}

// Mutedf writes a dimmed line for secondary detail.
func (p *Printer) Mutedf(format string, args ...any) {
	p.write(p.styled(ansiDim, fmt.Sprintf(format, args...)) + "\n")
}

// Bulletf writes an indented bullet line.
func (p *Printer) Bulletf(format string, args ...any) {
	p.write("  " + p.styled(ansiCyan, "•") + " " + fmt.Sprintf(format, args...) + "\n")
}

// KeyValue writes an aligned "key: value" detail line.
func (p *Printer) KeyValue(key string, value any) {
	p.write("  " + p.styled(ansiDim, fmt.Sprintf("%-14s", key+":")) + fmt.Sprintf(" %v", value) + "\n")
}

// Rule writes a horizontal divider.
func (p *Printer) Rule() {
	p.write(p.styled(ansiDim, strings.Repeat("─", 60)) + "\n")
}

// Prompt returns the shell prompt string, styled when possible.
func (p *Printer) Prompt(name string) string {
	return p.styled(ansiBold+ansiCyan, name+"> ")
}
