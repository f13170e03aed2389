// Copyright (C) 2026 Meridian AI (mbridger@meridianai.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package ux

import (
	"bytes"
	"strings"
	"testing"
)

func TestNewPrinter_BufferGetsNoColor(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	if p.ColorEnabled() {
		t.Error("a bytes.Buffer is not a terminal; color should be off")
	}

	p.Successf("cleaned %d files", 3)
	got := buf.String()
	if strings.Contains(got, "\033[") {
		t.Errorf("output should carry no ANSI sequences, got %q", got)
	}
	if got != "✓ cleaned 3 files\n" {
		t.Errorf("unexpected output %q", got)
	}
}

func TestPrinter_Prefixes(t *testing.T) {
	var buf bytes.Buffer
	p := NewPlainPrinter(&buf)

	p.Successf("ok")
	p.Warnf("careful")
	p.Errorf("broken")
	p.Bulletf("item")

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	want := []string{"✓ ok", "! careful", "✗ broken", "  • item"}
	if len(lines) != len(want) {
		t.Fatalf("got %d lines, want %d: %q", len(lines), len(want), lines)
	}
	for i, w := range want {
		if lines[i] != w {
			t.Errorf("line %d = %q, want %q", i, lines[i], w)
		}
	}
}

func TestPrinter_KeyValueAlignment(t *testing.T) {
	var buf bytes.Buffer
	p := NewPlainPrinter(&buf)

	p.KeyValue("steps", 7)
	p.KeyValue("revisions", 2)

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	if !strings.HasPrefix(lines[0], "  steps:") {
		t.Errorf("line 0 = %q", lines[0])
	}
	if !strings.HasSuffix(lines[0], " 7") {
		t.Errorf("line 0 should end with the value, got %q", lines[0])
	}
	// Both value columns start at the same offset.
	if strings.Index(lines[0], " 7") != strings.Index(lines[1], " 2") {
		t.Errorf("values are not aligned: %q vs %q", lines[0], lines[1])
	}
}

func TestPrinter_ZeroValueIsSafe(t *testing.T) {
	var p Printer
	p.Successf("goes nowhere") // must not panic
}

func TestColorEnabled_RespectsNoColor(t *testing.T) {
	t.Setenv("NO_COLOR", "1")
	var buf bytes.Buffer
	if colorEnabled(&buf) {
		t.Error("NO_COLOR should disable styling")
	}
}

func TestColorEnabled_RespectsDumbTerm(t *testing.T) {
	t.Setenv("TERM", "dumb")
	var buf bytes.Buffer
	if colorEnabled(&buf) {
		t.Error("TERM=dumb should disable styling")
	}
}

func TestPrompt_PlainHasNoEscapes(t *testing.T) {
	p := NewPlainPrinter(nil)
	if got := p.Prompt("meridian"); got != "meridian> " {
		t.Errorf("Prompt = %q", got)
	}
}
