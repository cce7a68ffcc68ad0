package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestInitializeDisabledIsNoOp(t *testing.T) {
	t.Cleanup(CloseAll)

	ws := t.TempDir()
	if err := Initialize(ws, Options{DebugMode: false}); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}

	Get(CategoryStore).Info("should go nowhere")

	if _, err := os.Stat(filepath.Join(ws, ".patternmind", "logs")); !os.IsNotExist(err) {
		t.Error("logs directory should not exist in production mode")
	}
}

func TestInitializeRequiresWorkspace(t *testing.T) {
	if err := Initialize("", Options{}); err == nil {
		t.Error("expected error for empty workspace")
	}
}

func TestDebugModeWritesCategoryFile(t *testing.T) {
	t.Cleanup(CloseAll)

	ws := t.TempDir()
	if err := Initialize(ws, Options{DebugMode: true, Level: "debug"}); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}

	Store("stored %d patterns", 3)
	CloseAll()

	entries, err := os.ReadDir(filepath.Join(ws, ".patternmind", "logs"))
	if err != nil {
		t.Fatalf("logs directory missing: %v", err)
	}

	var found bool
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), "_store.log") {
			found = true
			data, _ := os.ReadFile(filepath.Join(ws, ".patternmind", "logs", e.Name()))
			if !strings.Contains(string(data), "stored 3 patterns") {
				t.Errorf("log content missing message, got: %s", data)
			}
		}
	}
	if !found {
		t.Error("no store category log file written")
	}
}

func TestCategoryFilter(t *testing.T) {
	t.Cleanup(CloseAll)

	ws := t.TempDir()
	err := Initialize(ws, Options{
		DebugMode:  true,
		Level:      "debug",
		Categories: map[string]bool{"search": false},
	})
	if err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}

	if IsCategoryEnabled(CategorySearch) {
		t.Error("search category should be disabled")
	}
	if !IsCategoryEnabled(CategoryStore) {
		t.Error("unlisted categories should default to enabled")
	}
}

func TestLevelFiltering(t *testing.T) {
	t.Cleanup(CloseAll)

	ws := t.TempDir()
	if err := Initialize(ws, Options{DebugMode: true, Level: "warn"}); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}

	l := Get(CategoryMetrics)
	l.Debug("hidden debug")
	l.Info("hidden info")
	l.Warn("visible warn")
	CloseAll()

	entries, _ := os.ReadDir(filepath.Join(ws, ".patternmind", "logs"))
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), "_metrics.log") {
			data, _ := os.ReadFile(filepath.Join(ws, ".patternmind", "logs", e.Name()))
			if strings.Contains(string(data), "hidden") {
				t.Errorf("level filter leaked messages: %s", data)
			}
			if !strings.Contains(string(data), "visible warn") {
				t.Errorf("warn message missing: %s", data)
			}
		}
	}
}
