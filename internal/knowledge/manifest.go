package knowledge

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// ManifestReader is the default DependencyReader. It understands go.mod and
// package.json, merging both when a project carries both.
type ManifestReader struct{}

// manifestNames lists the files the reader (and watcher) consider to be
// dependency manifests, in read order.
var manifestNames = []string{"go.mod", "package.json"}

// ReadDependencies returns the declared dependency names for the project at
// path, deduplicated and sorted. A project with no recognized manifest has
// no dependencies; that is not an error.
func (ManifestReader) ReadDependencies(ctx context.Context, path string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	seen := make(map[string]bool)

	goModPath := filepath.Join(path, "go.mod")
	if data, err := os.ReadFile(goModPath); err == nil {
		for _, dep := range parseGoMod(data) {
			seen[dep] = true
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to read %s: %w", goModPath, err)
	}

	pkgJSONPath := filepath.Join(path, "package.json")
	if data, err := os.ReadFile(pkgJSONPath); err == nil {
		deps, err := parsePackageJSON(data)
		if err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", pkgJSONPath, err)
		}
		for _, dep := range deps {
			seen[dep] = true
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to read %s: %w", pkgJSONPath, err)
	}

	out := make([]string, 0, len(seen))
	for dep := range seen {
		out = append(out, dep)
	}
	sort.Strings(out)
	return out, nil
}

// parseGoMod extracts module paths from require lines and require blocks.
// Indirect requirements count; the project still depends on them.
func parseGoMod(data []byte) []string {
	var deps []string
	inBlock := false

	scanner := bufio.NewScanner(strings.NewReader(string(data)))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if i := strings.Index(line, "//"); i >= 0 {
			line = strings.TrimSpace(line[:i])
		}

		switch {
		case line == "require (":
			inBlock = true
		case inBlock && line == ")":
			inBlock = false
		case inBlock:
			if fields := strings.Fields(line); len(fields) >= 2 {
				deps = append(deps, fields[0])
			}
		case strings.HasPrefix(line, "require "):
			if fields := strings.Fields(line); len(fields) >= 3 {
				deps = append(deps, fields[1])
			}
		}
	}
	return deps
}

// parsePackageJSON extracts dependency names from the dependencies and
// devDependencies maps.
func parsePackageJSON(data []byte) ([]string, error) {
	var manifest struct {
		Dependencies    map[string]string `json:"dependencies"`
		DevDependencies map[string]string `json:"devDependencies"`
	}
	if err := json.Unmarshal(data, &manifest); err != nil {
		return nil, err
	}

	var deps []string
	for name := range manifest.Dependencies {
		deps = append(deps, name)
	}
	for name := range manifest.DevDependencies {
		deps = append(deps, name)
	}
	return deps, nil
}
