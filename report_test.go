package main

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/x/ansi"

	"github.com/entro314-labs/spacemap/internal/core"
	"github.com/entro314-labs/spacemap/internal/session"
)

func TestWriteReport(t *testing.T) {
	st := session.Stats{
		Root:     "/data",
		Files:    12,
		Dirs:     3,
		Bytes:    4096,
		Errors:   1,
		Duration: 1500 * time.Millisecond,
		Done:     true,
	}
	top := []session.PreviewEntry{
		{ID: 2, Name: "node_modules", Kind: core.Dir, Size: 3072},
		{ID: 3, Name: "locked", Kind: core.Dir, Size: 0, Err: true},
		{ID: 4, Name: "notes.txt", Kind: core.File, Size: 1024},
	}

	var buf bytes.Buffer
	if err := writeReport(&buf, st, top); err != nil {
		t.Fatalf("writeReport: %v", err)
	}
	out := ansi.Strip(buf.String())
	for _, want := range []string{
		"/data",
		"12 files · 3 dirs · 4.00 KB in 1.5s · 1 unreadable",
		"node_modules/",
		"75.0%",
		"node",
		"locked/ (incomplete)",
		"notes.txt",
		"1.00 KB",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("report does not contain %q:\n%s", want, out)
		}
	}
	if strings.Index(out, "node_modules") > strings.Index(out, "notes.txt") {
		t.Error("report reordered the entries")
	}
}

func TestWriteReportCancelled(t *testing.T) {
	var buf bytes.Buffer
	if err := writeReport(&buf, session.Stats{Root: "/x", Cancelled: true}, nil); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "cancelled, totals are partial") {
		t.Errorf("report = %q", buf.String())
	}
}

func TestShare(t *testing.T) {
	if got := share(1, 0); got != "-" {
		t.Errorf("share(1, 0) = %q", got)
	}
	if got := share(1, 3); got != "33.3%" {
		t.Errorf("share(1, 3) = %q", got)
	}
}

func TestProgressLine(t *testing.T) {
	line := progressLine(session.Progress{Entries: 5, Bytes: 2048, Errors: 2, Elapsed: 250 * time.Millisecond, Cancelled: true})
	if line != "5 entries · 2.00 KB · 2 errors · 200ms · cancelled" {
		t.Errorf("progressLine = %q", line)
	}
}
