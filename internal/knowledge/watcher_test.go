package knowledge

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

type recordingStaler struct {
	stale chan string
}

func (r *recordingStaler) MarkStale(projectID string) {
	select {
	case r.stale <- projectID:
	default:
	}
}

func TestManifestWatcherMarksStaleOnManifestWrite(t *testing.T) {
	dir := t.TempDir()
	staler := &recordingStaler{stale: make(chan string, 1)}

	watcher, err := NewManifestWatcher(staler)
	if err != nil {
		t.Fatalf("NewManifestWatcher: %v", err)
	}
	defer watcher.Close()

	if err := watcher.Watch("projecta", dir); err != nil {
		t.Fatalf("Watch: %v", err)
	}

	if err := os.WriteFile(filepath.Join(dir, "go.mod"), []byte("module m\n"), 0644); err != nil {
		t.Fatalf("write go.mod: %v", err)
	}

	select {
	case projectID := <-staler.stale:
		if projectID != "projecta" {
			t.Errorf("marked stale %q, want projecta", projectID)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("manifest write did not mark the project stale")
	}
}

func TestManifestWatcherIgnoresOtherFiles(t *testing.T) {
	dir := t.TempDir()
	staler := &recordingStaler{stale: make(chan string, 1)}

	watcher, err := NewManifestWatcher(staler)
	if err != nil {
		t.Fatalf("NewManifestWatcher: %v", err)
	}
	defer watcher.Close()

	if err := watcher.Watch("projecta", dir); err != nil {
		t.Fatalf("Watch: %v", err)
	}

	if err := os.WriteFile(filepath.Join(dir, "main.go"), []byte("package main\n"), 0644); err != nil {
		t.Fatalf("write main.go: %v", err)
	}

	select {
	case projectID := <-staler.stale:
		t.Errorf("non-manifest write marked %q stale", projectID)
	case <-time.After(200 * time.Millisecond):
	}
}

func TestManifestWatcherCloseStopsLoop(t *testing.T) {
	watcher, err := NewManifestWatcher(&recordingStaler{stale: make(chan string, 1)})
	if err != nil {
		t.Fatalf("NewManifestWatcher: %v", err)
	}
	if err := watcher.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}
