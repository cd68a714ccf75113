package main

import (
	"strings"
	"testing"
)

func TestRenderStatusLinePlain(t *testing.T) {
	line := renderStatusLine("Daemon", statusOK, "running", false)
	if strings.Contains(line, "\x1b[") {
		t.Fatalf("plain output contains ANSI codes: %q", line)
	}
	if !strings.Contains(line, "Daemon:") || !strings.Contains(line, "running") {
		t.Fatalf("unexpected line: %q", line)
	}
}

func TestRenderStatusLineColorized(t *testing.T) {
	line := renderStatusLine("Daemon", statusError, "stopped", true)
	if !strings.HasPrefix(line, ansiRed) || !strings.HasSuffix(line, ansiReset) {
		t.Fatalf("expected red wrapping: %q", line)
	}
}

func TestRenderTableAlignsColumns(t *testing.T) {
	out := renderTable(
		[]string{"Status", "Tasks"},
		[][]string{{"tracked", "2"}, {"archived", "11"}},
		[]columnAlignment{alignLeft, alignRight},
	)
	if !strings.Contains(out, "tracked") || !strings.Contains(out, "archived") {
		t.Fatalf("rows missing from table:\n%s", out)
	}
	if !strings.Contains(out, "Status") {
		t.Fatalf("header missing from table:\n%s", out)
	}
}

func TestRenderTableEmptyHeaders(t *testing.T) {
	if out := renderTable(nil, nil, nil); out != "" {
		t.Fatalf("expected empty render, got %q", out)
	}
}
