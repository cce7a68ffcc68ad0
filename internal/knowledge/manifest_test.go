package knowledge

import (
	"context"
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
}

func TestReadDependenciesGoMod(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "go.mod", `module example

go 1.24.0

require github.com/google/uuid v1.6.0

require (
	github.com/spf13/cobra v1.10.2
	go.uber.org/zap v1.27.1 // indirect
)
`)

	deps, err := ManifestReader{}.ReadDependencies(context.Background(), dir)
	if err != nil {
		t.Fatalf("ReadDependencies: %v", err)
	}

	want := []string{"github.com/google/uuid", "github.com/spf13/cobra", "go.uber.org/zap"}
	if !reflect.DeepEqual(deps, want) {
		t.Errorf("deps = %v, want %v", deps, want)
	}
}

func TestReadDependenciesPackageJSON(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "package.json", `{
	"name": "web",
	"dependencies": {"react": "^18.0.0", "axios": "^1.0.0"},
	"devDependencies": {"vitest": "^1.0.0"}
}`)

	deps, err := ManifestReader{}.ReadDependencies(context.Background(), dir)
	if err != nil {
		t.Fatalf("ReadDependencies: %v", err)
	}

	want := []string{"axios", "react", "vitest"}
	if !reflect.DeepEqual(deps, want) {
		t.Errorf("deps = %v, want %v", deps, want)
	}
}

func TestReadDependenciesMergesManifests(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "go.mod", "module m\n\nrequire github.com/google/uuid v1.6.0\n")
	writeFile(t, dir, "package.json", `{"dependencies": {"react": "^18.0.0"}}`)

	deps, err := ManifestReader{}.ReadDependencies(context.Background(), dir)
	if err != nil {
		t.Fatalf("ReadDependencies: %v", err)
	}

	want := []string{"github.com/google/uuid", "react"}
	if !reflect.DeepEqual(deps, want) {
		t.Errorf("deps = %v, want %v", deps, want)
	}
}

func TestReadDependenciesNoManifest(t *testing.T) {
	deps, err := ManifestReader{}.ReadDependencies(context.Background(), t.TempDir())
	if err != nil {
		t.Fatalf("ReadDependencies: %v", err)
	}
	if len(deps) != 0 {
		t.Errorf("deps = %v, want none", deps)
	}
}

func TestReadDependenciesMalformedPackageJSON(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "package.json", "{not json")

	if _, err := (ManifestReader{}).ReadDependencies(context.Background(), dir); err == nil {
		t.Fatal("expected error for malformed package.json")
	}
}

func TestReadDependenciesCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := (ManifestReader{}).ReadDependencies(ctx, t.TempDir()); err == nil {
		t.Fatal("expected context error")
	}
}
