package artifact

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeArtifact(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte("module bytes"), 0644); err != nil {
		t.Fatalf("write artifact: %v", err)
	}
	return path
}

func TestScanFindsModifiedArtifact(t *testing.T) {
	dir := t.TempDir()
	path := writeArtifact(t, dir, "policy.bin")

	now := time.Now()
	past := now.Add(-time.Hour)
	future := now.Add(time.Minute)

	s := NewScanner([]string{path})

	if err := os.Chtimes(path, past, past); err != nil {
		t.Fatalf("chtimes: %v", err)
	}
	if findings := s.Scan(now); len(findings) != 0 {
		t.Fatalf("artifact older than reference reported: %+v", findings)
	}

	if err := os.Chtimes(path, future, future); err != nil {
		t.Fatalf("chtimes: %v", err)
	}
	findings := s.Scan(now)
	if len(findings) != 1 {
		t.Fatalf("expected one finding, got %d", len(findings))
	}
	if findings[0].Path != path {
		t.Fatalf("finding path = %q, want %q", findings[0].Path, path)
	}
}

func TestScanSkipsMissingArtifact(t *testing.T) {
	s := NewScanner([]string{filepath.Join(t.TempDir(), "gone.bin"), ""})
	if findings := s.Scan(time.Now().Add(-time.Hour)); len(findings) != 0 {
		t.Fatalf("missing artifact produced findings: %+v", findings)
	}
	if got := len(s.Paths()); got != 1 {
		t.Fatalf("empty path kept: %d watched", got)
	}
}

func TestScanPath(t *testing.T) {
	dir := t.TempDir()
	path := writeArtifact(t, dir, "policy.bin")
	future := time.Now().Add(time.Minute)
	if err := os.Chtimes(path, future, future); err != nil {
		t.Fatalf("chtimes: %v", err)
	}

	s := NewScanner(nil)
	if _, ok := s.ScanPath(path, time.Now()); !ok {
		t.Fatal("expected finding for future mtime")
	}
	if _, ok := s.ScanPath(path, future.Add(time.Minute)); ok {
		t.Fatal("expected no finding when reference is newer")
	}
}

func TestWatcherTriggersOnWrite(t *testing.T) {
	dir := t.TempDir()
	path := writeArtifact(t, dir, "policy.bin")

	fired := make(chan struct{}, 4)
	w, err := NewWatcher([]string{path}, func() { fired <- struct{}{} })
	if err != nil {
		t.Fatalf("new watcher: %v", err)
	}
	w.debounce = 10 * time.Millisecond

	if got := w.Watched(); len(got) != 1 || got[0] != path {
		t.Fatalf("watched = %v", got)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	// Let the watch loop start before modifying the file.
	time.Sleep(50 * time.Millisecond)
	if err := os.WriteFile(path, []byte("tampered"), 0644); err != nil {
		t.Fatalf("modify artifact: %v", err)
	}

	select {
	case <-fired:
	case <-time.After(2 * time.Second):
		t.Fatal("watcher did not trigger within 2s")
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("run returned %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("watcher did not stop after cancel")
	}
}

func TestWatcherSkipsMissingPaths(t *testing.T) {
	w, err := NewWatcher([]string{filepath.Join(t.TempDir(), "gone.bin")}, func() {})
	if err != nil {
		t.Fatalf("new watcher: %v", err)
	}
	defer w.fsw.Close()
	if got := len(w.Watched()); got != 0 {
		t.Fatalf("missing path watched: %d", got)
	}
}
