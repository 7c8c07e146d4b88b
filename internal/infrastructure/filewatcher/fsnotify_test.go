package filewatcher

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestWatchEmitsSettledPDFs(t *testing.T) {
	dir := t.TempDir()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events, err := New(nil, 50*time.Millisecond, nil).Watch(ctx, dir)
	if err != nil {
		t.Fatalf("Watch() error = %v", err)
	}

	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644); err != nil {
		t.Fatalf("write txt: %v", err)
	}
	pdf := filepath.Join(dir, "ACME_2023.PDF")
	if err := os.WriteFile(pdf, []byte("%PDF-1.4"), 0o644); err != nil {
		t.Fatalf("write pdf: %v", err)
	}

	select {
	case got := <-events:
		if got != pdf {
			t.Fatalf("expected %s, got %s", pdf, got)
		}
	case <-time.After(3 * time.Second):
		t.Fatalf("timed out waiting for pdf event")
	}

	select {
	case got := <-events:
		t.Fatalf("unexpected extra event %s", got)
	case <-time.After(200 * time.Millisecond):
	}
}

func TestWatchClosesOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	events, err := New([]string{".pdf"}, 10*time.Millisecond, nil).Watch(ctx, t.TempDir())
	if err != nil {
		t.Fatalf("Watch() error = %v", err)
	}
	cancel()

	select {
	case _, ok := <-events:
		if ok {
			t.Fatalf("expected closed channel")
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("channel not closed after cancel")
	}
}

func TestWatchMissingDir(t *testing.T) {
	if _, err := New(nil, 0, nil).Watch(context.Background(), filepath.Join(t.TempDir(), "missing")); err == nil {
		t.Fatalf("expected error for missing dir")
	}
}
