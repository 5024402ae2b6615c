package policy

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// LoadRegoDir compiles every .rego file in dir and registers it with the
// engine under the file's base name. Files load in sorted order and the
// first bad module aborts the load.
func LoadRegoDir(ctx context.Context, engine *Engine, dir string) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, fmt.Errorf("read rego dir %s: %w", dir, err)
	}

	var paths []string
	for _, entry := range entries {
		if entry.IsDir() || strings.ToLower(filepath.Ext(entry.Name())) != ".rego" {
			continue
		}
		paths = append(paths, filepath.Join(dir, entry.Name()))
	}
	sort.Strings(paths)

	for _, path := range paths {
		//nolint:gosec // Policy modules come from the operator-configured dir
		data, err := os.ReadFile(path)
		if err != nil {
			return 0, fmt.Errorf("read rego module %s: %w", path, err)
		}
		name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
		p, err := NewRegoPolicy(ctx, RegoOptions{Name: name, Module: string(data)})
		if err != nil {
			return 0, fmt.Errorf("policy %s: %w", path, err)
		}
		if err := engine.Register(p); err != nil {
			return 0, fmt.Errorf("policy %s: %w", path, err)
		}
	}
	return len(paths), nil
}
