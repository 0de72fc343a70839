package pipeline

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"
)

// LoadDir discovers template files in dir (*.yaml, sorted), compiles
// them, and returns a populated store. A missing directory yields an
// empty store, not an error.
func LoadDir(dir string) (*Store, error) {
	store := NewStore()

	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return store, nil
		}
		return nil, fmt.Errorf("read templates directory %q: %w", dir, err)
	}

	var files []string
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".yaml" {
			continue
		}
		files = append(files, filepath.Join(dir, entry.Name()))
	}
	sort.Strings(files)

	seen := make(map[string]string)
	for _, path := range files {
		spec, err := LoadFile(path)
		if err != nil {
			return nil, err
		}
		for _, ts := range spec.Templates {
			t, err := Compile(ts)
			if err != nil {
				return nil, fmt.Errorf("compile %q: %w", path, err)
			}
			if prev, dup := seen[t.Name]; dup {
				return nil, fmt.Errorf("template %q defined in both %s and %s", t.Name, prev, path)
			}
			seen[t.Name] = path
			if err := store.Register(t); err != nil {
				return nil, err
			}
		}
	}
	return store, nil
}

// LoadFile parses one template YAML file.
func LoadFile(path string) (*FileSpec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read template file %q: %w", path, err)
	}
	var spec FileSpec
	if err := yaml.Unmarshal(data, &spec); err != nil {
		return nil, fmt.Errorf("parse template file %q: %w", path, err)
	}
	return &spec, nil
}
