package packforge

import (
	"fmt"
	"os"
	"path/filepath"
)

// pakPattern is the fixed name pattern participant archives must match
// within a search location.
const pakPattern = "*.pak"

// ModLocation is one configured mod search location. Each location
// contributes its own candidate enumeration to discovery; a failing
// location contributes zero candidates without affecting its siblings.
type ModLocation interface {
	// Path returns the location's directory, used by the ensure-locations
	// pre-flight and for logging.
	Path() string

	// Enumerate returns candidate archive paths found at this location.
	Enumerate() ([]string, error)
}

// LocationResolver exposes the ordered search paths the loader discovers
// participants from. The loader consumes this interface; hosts decide where
// content actually lives.
type LocationResolver interface {
	// GamePackPath returns the single fixed directory searched for game
	// packs. Discovery is top-level only.
	GamePackPath() string

	// ModLocations returns the ordered mod search locations.
	ModLocations() []ModLocation

	// ConfigPath returns the directory participant config scopes live in.
	ConfigPath() string
}

// DirLocation is a ModLocation over a plain directory, matching archives at
// the top level by the fixed name pattern.
type DirLocation struct {
	Dir string
}

func (l DirLocation) Path() string { return l.Dir }

// Enumerate lists top-level archive files matching the pak pattern.
func (l DirLocation) Enumerate() ([]string, error) {
	entries, err := os.ReadDir(l.Dir)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrLocationUnreadable, l.Dir, err)
	}
	var paths []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if ok, _ := filepath.Match(pakPattern, entry.Name()); ok {
			paths = append(paths, filepath.Join(l.Dir, entry.Name()))
		}
	}
	return paths, nil
}

// StdLocationResolver resolves all loader paths under a single root
// directory: game packs in root/gamepacks, mods in root/mods, participant
// configs in root/config. Extra mod locations can be appended.
type StdLocationResolver struct {
	Root     string
	ExtraMod []ModLocation
}

// NewStdLocationResolver creates a resolver rooted at root.
func NewStdLocationResolver(root string) *StdLocationResolver {
	return &StdLocationResolver{Root: root}
}

func (r *StdLocationResolver) GamePackPath() string {
	return filepath.Join(r.Root, "gamepacks")
}

func (r *StdLocationResolver) ModLocations() []ModLocation {
	locations := []ModLocation{DirLocation{Dir: filepath.Join(r.Root, "mods")}}
	return append(locations, r.ExtraMod...)
}

func (r *StdLocationResolver) ConfigPath() string {
	return filepath.Join(r.Root, "config")
}
