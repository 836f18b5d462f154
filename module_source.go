package packforge

import (
	"fmt"
	"os"
	"path/filepath"
)

// DirModuleSource serves modules from files in a directory: the identity is
// the file name, the content its bytes. Suitable as a host-module source
// for hosts that ship their modules as loose files.
type DirModuleSource struct {
	Dir string
}

// ModuleNames lists all top-level regular files in the directory.
func (s DirModuleSource) ModuleNames() ([]string, error) {
	entries, err := os.ReadDir(s.Dir)
	if err != nil {
		return nil, fmt.Errorf("enumerating %s: %w", s.Dir, err)
	}
	var names []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		names = append(names, entry.Name())
	}
	return names, nil
}

// LoadModule reads one module file.
func (s DirModuleSource) LoadModule(name string) (*ResolvedModule, error) {
	data, err := os.ReadFile(filepath.Join(s.Dir, name))
	if err != nil {
		return nil, fmt.Errorf("reading module %s: %w", name, err)
	}
	return &ResolvedModule{Name: name, Data: data}, nil
}
